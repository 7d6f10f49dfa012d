package types

import (
	"fmt"
	"time"
)

// Kind discriminates envelope payloads. The wire values match the
// protocol the original clients speak, so they are not Go-style names.
type Kind string

const (
	KindDirect      Kind = "CHAT"
	KindGroupChat   Kind = "GROUP_CHAT"
	KindTyping      Kind = "TYPING"
	KindReadReceipt Kind = "READ"
	KindRecall      Kind = "RECALL"
	KindPresence    Kind = "STATUS"
	KindSystem      Kind = "SYSTEM"
	KindError       Kind = "ERROR"
	KindKick        Kind = "KICK"
)

// Envelope is the flat wire shape exchanged over a connection. Field
// names are part of the protocol and must not change. Internally the
// router works with the Inbound union; Envelope is what goes over the
// socket in both directions.
type Envelope struct {
	ID           *int64      `json:"id,omitempty" validate:"omitempty,gt=0"`
	Type         Kind        `json:"type" validate:"required"`
	SenderID     int64       `json:"senderId,omitempty"`
	SenderName   string      `json:"senderName,omitempty" validate:"max=100"`
	SenderAvatar string      `json:"senderAvatar,omitempty" validate:"max=500"`
	ReceiverID   *int64      `json:"receiverId,omitempty" validate:"omitempty,gt=0"`
	ReceiverName string      `json:"receiverName,omitempty" validate:"max=100"`
	GroupID      *int64      `json:"groupId,omitempty" validate:"omitempty,gt=0"`
	GroupName    string      `json:"groupName,omitempty" validate:"max=100"`
	Content      string      `json:"content" validate:"max=8192"`
	ContentType  ContentType `json:"contentType,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	Recalled     bool        `json:"recalled,omitempty"`
}

// stamp fills in the denormalized sender fields every outbound
// envelope carries.
func stamp(env *Envelope, sender *User) *Envelope {
	env.SenderID = sender.ID
	env.SenderName = sender.DisplayName()
	env.SenderAvatar = sender.Avatar
	return env
}

// NewDirectEnvelope builds the outbound CHAT envelope for a persisted
// direct message.
func NewDirectEnvelope(msg *Message, sender *User) *Envelope {
	return stamp(&Envelope{
		ID:          &msg.ID,
		Type:        KindDirect,
		ReceiverID:  &msg.ReceiverID,
		Content:     msg.Content,
		ContentType: msg.ContentType,
		Timestamp:   msg.CreatedAt,
	}, sender)
}

// NewGroupEnvelope builds the outbound GROUP_CHAT envelope for a
// persisted group message.
func NewGroupEnvelope(msg *GroupMessage, sender *User) *Envelope {
	return stamp(&Envelope{
		ID:          &msg.ID,
		Type:        KindGroupChat,
		GroupID:     &msg.GroupID,
		Content:     msg.Content,
		ContentType: msg.ContentType,
		Timestamp:   msg.CreatedAt,
	}, sender)
}

// NewTypingEnvelope signals that sender is composing a message to the
// receiver. Never persisted.
func NewTypingEnvelope(sender *User, receiverID int64) *Envelope {
	return stamp(&Envelope{
		Type:       KindTyping,
		ReceiverID: &receiverID,
		Timestamp:  time.Now(),
	}, sender)
}

// NewReadAckEnvelope acknowledges that reader has read messageID. It is
// forwarded to the original sender of that message.
func NewReadAckEnvelope(reader *User, messageID int64, originalSenderID int64) *Envelope {
	return stamp(&Envelope{
		ID:         &messageID,
		Type:       KindReadReceipt,
		ReceiverID: &originalSenderID,
		Timestamp:  time.Now(),
	}, reader)
}

// NewRecallEnvelope announces a withdrawn message. Content is the
// generic withdrawal notice; the original body is never echoed back.
func NewRecallEnvelope(owner *User, messageID int64, groupID *int64) *Envelope {
	return stamp(&Envelope{
		ID:        &messageID,
		Type:      KindRecall,
		GroupID:   groupID,
		Content:   fmt.Sprintf("%s recalled a message", owner.DisplayName()),
		Timestamp: time.Now(),
		Recalled:  true,
	}, owner)
}

// NewPresenceEnvelope carries a connect/disconnect transition to a
// friend. Content is the status name.
func NewPresenceEnvelope(user *User, status Status) *Envelope {
	return stamp(&Envelope{
		Type:      KindPresence,
		Content:   string(status),
		Timestamp: time.Now(),
	}, user)
}

// NewSystemEnvelope carries server-originated informational text.
func NewSystemEnvelope(content string) *Envelope {
	return &Envelope{
		Type:        KindSystem,
		Content:     content,
		ContentType: ContentSystem,
		Timestamp:   time.Now(),
	}
}

// NewErrorEnvelope is the synchronous rejection returned to a sender
// whose envelope violated a domain rule.
func NewErrorEnvelope(content string, groupID *int64) *Envelope {
	return &Envelope{
		Type:      KindError,
		GroupID:   groupID,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewKickEnvelope notifies an evicted session that a newer login
// replaced it.
func NewKickEnvelope() *Envelope {
	return &Envelope{
		Type:      KindKick,
		Content:   "your account signed in on another device; this session has been disconnected",
		Timestamp: time.Now(),
	}
}
