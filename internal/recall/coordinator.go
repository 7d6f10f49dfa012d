// Package recall enforces the ownership and time-window rules for
// message withdrawal and fans the withdrawal notice out to everyone
// who could see the original.
package recall

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chatwire/internal/metrics"
	"chatwire/internal/registry"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// Window is how long after creation a message stays recallable.
const Window = 2 * time.Minute

// Coordinator resolves recall requests against the direct or group
// store and delivers the notice with the registry's best-effort,
// no-retry policy.
type Coordinator struct {
	registry *registry.Registry
	messages interfaces.MessageStore
	groups   interfaces.GroupDirectory
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewCoordinator wires the coordinator's collaborators.
func NewCoordinator(reg *registry.Registry, messages interfaces.MessageStore, groups interfaces.GroupDirectory, log *zap.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		registry: reg,
		messages: messages,
		groups:   groups,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// Recall withdraws messageID on behalf of requester. A non-nil groupID
// selects the group store. Rule violations come back as the sentinel
// errors in this package; the router turns them into Error envelopes.
//
// Recalling an already-recalled message is accepted and re-sends the
// notice: the storage update is idempotent and the coordinator does
// not deduplicate notifications.
func (c *Coordinator) Recall(ctx context.Context, requester *types.User, messageID int64, groupID *int64) error {
	var outcome string
	defer func() { c.metrics.RecallsTotal.WithLabelValues(outcome).Inc() }()

	if groupID != nil {
		if err := c.recallGroup(ctx, requester, messageID, *groupID); err != nil {
			outcome = outcomeFor(err)
			return err
		}
	} else {
		if err := c.recallDirect(ctx, requester, messageID); err != nil {
			outcome = outcomeFor(err)
			return err
		}
	}
	outcome = "ok"
	return nil
}

func (c *Coordinator) recallDirect(ctx context.Context, requester *types.User, messageID int64) error {
	msg, err := c.messages.FindByID(ctx, messageID)
	if err != nil {
		return ErrNotFound
	}
	if msg.SenderID != requester.ID {
		return ErrNotOwner
	}
	if c.now().Sub(msg.CreatedAt) > Window {
		return ErrWindowExpired
	}
	if err := c.messages.MarkRecalled(ctx, messageID); err != nil {
		return err
	}

	env := types.NewRecallEnvelope(requester, messageID, nil)
	c.registry.DeliverToUser(msg.ReceiverID, env)
	c.registry.DeliverToUser(msg.SenderID, env)

	c.log.Info("direct message recalled",
		zap.Int64("message_id", messageID),
		zap.Int64("owner_id", requester.ID))
	return nil
}

func (c *Coordinator) recallGroup(ctx context.Context, requester *types.User, messageID, groupID int64) error {
	msg, err := c.groups.FindMessage(ctx, messageID)
	if err != nil {
		return ErrNotFound
	}
	if msg.SenderID != requester.ID {
		return ErrNotOwner
	}
	if c.now().Sub(msg.CreatedAt) > Window {
		return ErrWindowExpired
	}
	if err := c.groups.MarkRecalled(ctx, messageID); err != nil {
		return err
	}

	memberIDs, err := c.groups.MemberIDs(ctx, groupID)
	if err != nil {
		// The record is already marked; the notice just reaches nobody.
		c.log.Warn("recall persisted but member resolution failed",
			zap.Int64("message_id", messageID),
			zap.Int64("group_id", groupID),
			zap.Error(err))
		return nil
	}

	env := types.NewRecallEnvelope(requester, messageID, &groupID)
	for _, memberID := range memberIDs {
		c.registry.DeliverToUser(memberID, env)
	}

	c.log.Info("group message recalled",
		zap.Int64("message_id", messageID),
		zap.Int64("group_id", groupID),
		zap.Int64("owner_id", requester.ID))
	return nil
}

func outcomeFor(err error) string {
	switch err {
	case ErrNotFound:
		return "not_found"
	case ErrNotOwner:
		return "forbidden"
	case ErrWindowExpired:
		return "expired"
	default:
		return "error"
	}
}
