// Package api exposes the process's HTTP surface: the websocket
// endpoint, a health probe and Prometheus metrics. There is no CRUD
// API here; profile, group and friend management belong to the
// surrounding request/response layer.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	ws "chatwire/internal/websocket"
)

// Server is the HTTP front of the realtime core.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds the server and its routes.
func NewServer(addr string, wsHandler *ws.Handler, promReg *prometheus.Registry, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
			// No global write timeout: websocket connections outlive
			// any sane value. Read headers promptly, though.
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start blocks serving until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the server within the context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
