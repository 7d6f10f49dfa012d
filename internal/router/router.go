// Package router validates inbound envelopes and dispatches them to
// their recipients. Envelopes from one connection arrive here strictly
// in order; distinct connections dispatch concurrently and only meet
// in the registry.
package router

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"chatwire/internal/metrics"
	"chatwire/internal/recall"
	"chatwire/internal/registry"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// Router dispatches direct, group, typing, read-receipt and recall
// envelopes using the registry and the persistence collaborators.
type Router struct {
	registry *registry.Registry
	messages interfaces.MessageStore
	groups   interfaces.GroupDirectory
	recall   *recall.Coordinator
	limiter  *RateLimiter
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewRouter wires the router's collaborators. limiter may come from
// config; a nil limiter disables rate limiting.
func NewRouter(reg *registry.Registry, messages interfaces.MessageStore, groups interfaces.GroupDirectory, rc *recall.Coordinator, limiter *RateLimiter, log *zap.Logger, m *metrics.Metrics) *Router {
	return &Router{
		registry: reg,
		messages: messages,
		groups:   groups,
		recall:   rc,
		limiter:  limiter,
		log:      log,
		metrics:  m,
	}
}

// HandleInbound processes one raw envelope from sender's connection.
// A malformed envelope is logged and dropped without closing the
// connection; domain rule violations come back to the sender as a
// synchronous Error envelope. The returned error is always nil for
// per-envelope failures; it is reserved for conditions the caller
// should treat as fatal for the connection.
func (r *Router) HandleInbound(ctx context.Context, sender *types.User, payload []byte) {
	in, err := types.ParseInbound(payload)
	if err != nil {
		r.metrics.RejectedTotal.WithLabelValues("malformed").Inc()
		r.log.Warn("dropping malformed envelope",
			zap.Int64("sender_id", sender.ID),
			zap.Error(err))
		return
	}

	r.metrics.EnvelopesTotal.WithLabelValues(string(in.Kind())).Inc()

	if r.limiter != nil && !r.limiter.Allow(sender.Username) {
		r.metrics.RejectedTotal.WithLabelValues("rate_limited").Inc()
		r.sendError(sender, "sending too fast, slow down", nil)
		return
	}

	switch msg := in.(type) {
	case types.Direct:
		r.handleDirect(ctx, sender, msg)
	case types.GroupChat:
		r.handleGroupChat(ctx, sender, msg)
	case types.Typing:
		r.handleTyping(sender, msg)
	case types.ReadReceipt:
		r.handleReadReceipt(ctx, sender, msg)
	case types.Recall:
		r.handleRecall(ctx, sender, msg)
	}
}

// handleDirect persists first, then delivers to the receiver and
// echoes the persisted envelope back to the sender's own channel. An
// unregistered receiver needs no further action here: the message is
// durable and the offline query picks it up on their next connect.
func (r *Router) handleDirect(ctx context.Context, sender *types.User, d types.Direct) {
	msg := &types.Message{
		SenderID:    sender.ID,
		ReceiverID:  d.ReceiverID,
		Content:     d.Content,
		ContentType: d.ContentType,
	}
	if err := r.messages.Insert(ctx, msg); err != nil {
		r.log.Error("failed to persist direct message",
			zap.Int64("sender_id", sender.ID),
			zap.Int64("receiver_id", d.ReceiverID),
			zap.Error(err))
		r.sendError(sender, "message could not be saved", nil)
		return
	}

	env := types.NewDirectEnvelope(msg, sender)
	r.registry.DeliverToUser(msg.ReceiverID, env)
	// Echo to the sender so every device of theirs sees the send.
	r.registry.Deliver(sender.Username, env)
}

// handleGroupChat rejects before persisting: a non-member or muted
// sender gets a synchronous Error envelope and no record is written.
// On success the member list is resolved at send time and each
// delivery is independent of its siblings.
func (r *Router) handleGroupChat(ctx context.Context, sender *types.User, g types.GroupChat) {
	msg, err := r.groups.SendMessage(ctx, g.GroupID, sender.ID, g.Content, g.ContentType)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrNotMember):
			r.metrics.RejectedTotal.WithLabelValues("not_member").Inc()
			r.sendError(sender, "you are not a member of this group", &g.GroupID)
		case errors.Is(err, interfaces.ErrMuted):
			r.metrics.RejectedTotal.WithLabelValues("muted").Inc()
			r.sendError(sender, "you are muted and cannot send messages", &g.GroupID)
		default:
			r.log.Error("failed to persist group message",
				zap.Int64("sender_id", sender.ID),
				zap.Int64("group_id", g.GroupID),
				zap.Error(err))
			r.sendError(sender, "message could not be saved", &g.GroupID)
		}
		return
	}

	memberIDs, err := r.groups.MemberIDs(ctx, g.GroupID)
	if err != nil {
		// The message is durable; members fetch it from history.
		r.log.Error("failed to resolve group members for fanout",
			zap.Int64("group_id", g.GroupID),
			zap.Error(err))
		return
	}

	env := types.NewGroupEnvelope(msg, sender)
	for _, memberID := range lo.Uniq(memberIDs) {
		r.registry.DeliverToUser(memberID, env)
	}
}

// handleTyping forwards the indicator to the receiver if registered.
// No persistence, no error feedback.
func (r *Router) handleTyping(sender *types.User, t types.Typing) {
	r.registry.DeliverToUser(t.ReceiverID, types.NewTypingEnvelope(sender, t.ReceiverID))
}

// handleReadReceipt advances the stored read cursor, then acknowledges
// the original sender if they are registered.
func (r *Router) handleReadReceipt(ctx context.Context, sender *types.User, rr types.ReadReceipt) {
	if err := r.messages.MarkRead(ctx, rr.MessageID); err != nil {
		r.log.Error("failed to mark message read",
			zap.Int64("message_id", rr.MessageID),
			zap.Error(err))
		return
	}
	r.registry.DeliverToUser(rr.OriginalSenderID,
		types.NewReadAckEnvelope(sender, rr.MessageID, rr.OriginalSenderID))
}

// handleRecall delegates to the coordinator and converts its rule
// violations into the synchronous Error envelope.
func (r *Router) handleRecall(ctx context.Context, sender *types.User, rc types.Recall) {
	err := r.recall.Recall(ctx, sender, rc.MessageID, rc.GroupID)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, recall.ErrNotFound),
		errors.Is(err, recall.ErrNotOwner),
		errors.Is(err, recall.ErrWindowExpired):
		r.sendError(sender, err.Error(), rc.GroupID)
	default:
		r.log.Error("recall failed",
			zap.Int64("message_id", rc.MessageID),
			zap.Error(err))
		r.sendError(sender, "recall failed", rc.GroupID)
	}
}

// sendError delivers a synchronous Error envelope to the sender only.
func (r *Router) sendError(sender *types.User, content string, groupID *int64) {
	r.registry.Deliver(sender.Username, types.NewErrorEnvelope(content, groupID))
}
