// Package app assembles the process: store, registry, presence,
// recall, router, websocket handler and HTTP server, in dependency
// order.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"chatwire/internal/api"
	"chatwire/internal/config"
	"chatwire/internal/metrics"
	"chatwire/internal/presence"
	"chatwire/internal/recall"
	"chatwire/internal/registry"
	"chatwire/internal/router"
	"chatwire/internal/store"
	ws "chatwire/internal/websocket"
)

// Application owns every long-lived component of the process.
type Application struct {
	cfg    *config.Config
	log    *zap.Logger
	store  *store.Store
	server *api.Server
}

// New builds the whole object graph. The registry is an explicit
// instance owned here and handed to the router and presence notifier
// as a dependency; nothing in the process reaches for a global.
func New(cfg *config.Config, log *zap.Logger) (*Application, error) {
	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(promReg)

	reg := registry.New(log, m)
	notifier := presence.NewNotifier(reg, st.Users(), st.Friends(), log, m)
	coordinator := recall.NewCoordinator(reg, st.Messages(), st.Groups(), log, m)
	limiter := router.NewRateLimiter(cfg.RatePerSecond, cfg.RateBurst)
	rt := router.NewRouter(reg, st.Messages(), st.Groups(), coordinator, limiter, log, m)
	handler := ws.NewHandler(reg, rt, notifier, st.Users(), st.Messages(),
		cfg.SendBuffer, cfg.WriteTimeout, log)

	return &Application{
		cfg:    cfg,
		log:    log,
		store:  st,
		server: api.NewServer(cfg.Addr(), handler, promReg, log),
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("http shutdown failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("store close failed", zap.Error(err))
	}
	return nil
}
