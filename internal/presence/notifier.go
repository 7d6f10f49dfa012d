// Package presence flips a user's stored status on connect and
// disconnect and tells their online friends about it. Session
// replacement from a duplicate login goes through neither path: the
// evicted channel is kicked by the admission handler and no presence
// transition is emitted.
package presence

import (
	"context"

	"go.uber.org/zap"

	"chatwire/internal/metrics"
	"chatwire/internal/registry"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// Notifier broadcasts connect/disconnect transitions to friends that
// currently hold a registered channel.
type Notifier struct {
	registry *registry.Registry
	users    interfaces.IdentityDirectory
	friends  interfaces.FriendDirectory
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewNotifier wires the notifier's collaborators.
func NewNotifier(reg *registry.Registry, users interfaces.IdentityDirectory, friends interfaces.FriendDirectory, log *zap.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		registry: reg,
		users:    users,
		friends:  friends,
		log:      log,
		metrics:  m,
	}
}

// HandleConnect marks user online and notifies registered friends.
func (n *Notifier) HandleConnect(ctx context.Context, user *types.User) {
	n.transition(ctx, user, types.StatusOnline)
}

// HandleDisconnect marks user offline and notifies registered friends.
func (n *Notifier) HandleDisconnect(ctx context.Context, user *types.User) {
	n.transition(ctx, user, types.StatusOffline)
}

func (n *Notifier) transition(ctx context.Context, user *types.User, status types.Status) {
	if err := n.users.UpdateStatus(ctx, user.ID, status); err != nil {
		n.log.Error("failed to update presence status",
			zap.Int64("user_id", user.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		// Broadcast anyway: friends should still hear about the
		// transition even if the durable status write failed.
	}

	friendIDs, err := n.friends.FriendIDsOf(ctx, user.ID)
	if err != nil {
		n.log.Error("failed to resolve friends for presence broadcast",
			zap.Int64("user_id", user.ID),
			zap.Error(err))
		return
	}

	env := types.NewPresenceEnvelope(user, status)
	notified := 0
	for _, friendID := range friendIDs {
		if n.registry.DeliverToUser(friendID, env) {
			notified++
		}
	}

	n.metrics.PresenceEvents.WithLabelValues(string(status)).Inc()
	n.log.Info("presence transition broadcast",
		zap.Int64("user_id", user.ID),
		zap.String("status", string(status)),
		zap.Int("friends", len(friendIDs)),
		zap.Int("notified", notified))
}
