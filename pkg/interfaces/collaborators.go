// Package interfaces defines the boundaries between the realtime core
// and its collaborators. The registry, router, presence notifier and
// recall coordinator consume these; the SQLite store implements them,
// and so can any request/response layer built around the core.
package interfaces

import (
	"context"

	"chatwire/pkg/types"
)

// Channel is a live outbound handle to one connected client. Send is
// best-effort: an error means the recipient is unreachable right now
// and the envelope is dropped for that attempt.
type Channel interface {
	Send(env *types.Envelope) error
	Close() error
	IsOpen() bool
}

// IdentityDirectory resolves identities to user records and owns the
// persisted status field the presence notifier flips.
type IdentityDirectory interface {
	FindByIdentity(ctx context.Context, identity string) (*types.User, error)
	FindByID(ctx context.Context, userID int64) (*types.User, error)
	UpdateStatus(ctx context.Context, userID int64, status types.Status) error
}

// MessageStore persists direct messages. Insert assigns the message ID
// and creation time before returning.
type MessageStore interface {
	Insert(ctx context.Context, msg *types.Message) error
	FindByID(ctx context.Context, id int64) (*types.Message, error)
	MarkRecalled(ctx context.Context, id int64) error
	MarkRead(ctx context.Context, id int64) error
	FindOfflineFor(ctx context.Context, receiverID int64) ([]*types.Message, error)
	MarkDelivered(ctx context.Context, receiverID int64) error
}

// GroupDirectory answers membership questions and persists group
// messages. SendMessage performs the member and mute checks before any
// insert, so every transport that sends into a group shares the same
// rules.
type GroupDirectory interface {
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	SendMessage(ctx context.Context, groupID, senderID int64, content string, ct types.ContentType) (*types.GroupMessage, error)
	FindMessage(ctx context.Context, id int64) (*types.GroupMessage, error)
	MarkRecalled(ctx context.Context, id int64) error
	RecordSystemNotice(ctx context.Context, groupID int64, content string) error
}

// FriendDirectory lists the accepted friends of a user, for presence
// fanout.
type FriendDirectory interface {
	FriendIDsOf(ctx context.Context, userID int64) ([]int64, error)
}
