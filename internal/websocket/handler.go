package websocket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatwire/internal/presence"
	"chatwire/internal/registry"
	"chatwire/internal/router"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy belongs to the fronting proxy, like credential
		// checks do.
		return true
	},
}

// Handler admits authenticated connections. The surrounding transport
// or auth layer resolves credentials and supplies the identity in the
// X-Identity header (or ?identity= for clients that cannot set
// headers); the core never sees a credential.
type Handler struct {
	registry *registry.Registry
	router   *router.Router
	presence *presence.Notifier
	users    interfaces.IdentityDirectory
	messages interfaces.MessageStore

	sendBuffer   int
	writeTimeout time.Duration
	log          *zap.Logger
}

// NewHandler wires the admission handler.
func NewHandler(reg *registry.Registry, rt *router.Router, pn *presence.Notifier, users interfaces.IdentityDirectory, messages interfaces.MessageStore, sendBuffer int, writeTimeout time.Duration, log *zap.Logger) *Handler {
	return &Handler{
		registry:     reg,
		router:       rt,
		presence:     pn,
		users:        users,
		messages:     messages,
		sendBuffer:   sendBuffer,
		writeTimeout: writeTimeout,
		log:          log,
	}
}

// HandleWebSocket upgrades the request and services the connection
// until it closes. Envelopes from this connection are processed
// strictly in arrival order; other connections proceed concurrently.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := r.Header.Get("X-Identity")
	if identity == "" {
		identity = r.URL.Query().Get("identity")
	}
	if identity == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	user, err := h.users.FindByIdentity(ctx, identity)
	if err != nil {
		http.Error(w, "unknown identity", http.StatusForbidden)
		return
	}

	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConnection(rawConn, h.sendBuffer, h.writeTimeout, h.log)
	h.log.Info("connection admitted",
		zap.String("identity", identity),
		zap.String("conn_id", conn.ID().String()))

	// Install the new session. If a previous one exists this is a
	// duplicate login: kick and close the old channel, and emit no
	// presence transition for the swap.
	sess, prev := h.registry.Register(identity, conn)
	if prev != nil {
		if err := prev.Send(types.NewKickEnvelope()); err != nil {
			h.log.Debug("kick notice not delivered", zap.Error(err))
		}
		_ = prev.Close()
		h.log.Info("previous session kicked", zap.String("identity", identity))
	} else {
		h.presence.HandleConnect(ctx, user)
	}
	h.registry.Bind(user.ID, sess)

	if err := conn.Send(types.NewSystemEnvelope(fmt.Sprintf("welcome %s", user.DisplayName()))); err != nil {
		h.log.Debug("welcome not delivered", zap.Error(err))
	}

	h.flushOffline(ctx, user, conn)

	// Read loop. net/http already gives this request its own
	// goroutine, so the loop runs inline.
	for {
		payload, err := conn.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("connection transport error",
					zap.String("identity", identity),
					zap.Error(err))
			}
			break
		}
		h.router.HandleInbound(ctx, user, payload)
	}

	_ = conn.Close()

	// Only the current session's departure is a disconnect. An evicted
	// session fails the conditional unregister and must not flip the
	// newer session's presence.
	if h.registry.Unregister(sess) {
		h.registry.Unbind(user.ID, sess)
		h.presence.HandleDisconnect(ctx, user)
	}
}

// flushOffline delivers the messages persisted while the user had no
// registered channel, then marks them delivered. Delivery stops on the
// first send failure; the messages stay SENT and the next connect
// retries the backlog.
func (h *Handler) flushOffline(ctx context.Context, user *types.User, conn *Connection) {
	msgs, err := h.messages.FindOfflineFor(ctx, user.ID)
	if err != nil {
		h.log.Error("failed to load offline backlog",
			zap.Int64("user_id", user.ID),
			zap.Error(err))
		return
	}
	if len(msgs) == 0 {
		return
	}

	senders := make(map[int64]*types.User)
	for _, msg := range msgs {
		sender, ok := senders[msg.SenderID]
		if !ok {
			sender, err = h.users.FindByID(ctx, msg.SenderID)
			if err != nil {
				sender = &types.User{ID: msg.SenderID}
			}
			senders[msg.SenderID] = sender
		}
		if err := conn.Send(types.NewDirectEnvelope(msg, sender)); err != nil {
			h.log.Warn("offline flush interrupted",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
			return
		}
	}

	if err := h.messages.MarkDelivered(ctx, user.ID); err != nil {
		h.log.Error("failed to mark backlog delivered",
			zap.Int64("user_id", user.ID),
			zap.Error(err))
	}
	h.log.Info("offline backlog flushed",
		zap.Int64("user_id", user.ID),
		zap.Int("messages", len(msgs)))
}
