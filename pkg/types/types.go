package types

import (
	"time"
)

// Status is a user's presence state as stored and broadcast to friends.
type Status string

const (
	StatusOnline    Status = "ONLINE"
	StatusOffline   Status = "OFFLINE"
	StatusAway      Status = "AWAY"
	StatusBusy      Status = "BUSY"
	StatusInvisible Status = "INVISIBLE"
)

// ContentType describes the payload carried in a message body.
type ContentType string

const (
	ContentText   ContentType = "TEXT"
	ContentImage  ContentType = "IMAGE"
	ContentFile   ContentType = "FILE"
	ContentAudio  ContentType = "AUDIO"
	ContentVideo  ContentType = "VIDEO"
	ContentEmoji  ContentType = "EMOJI"
	ContentSystem ContentType = "SYSTEM"
)

// DeliveryStatus tracks a direct message through its store lifecycle.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "SENT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryRead      DeliveryStatus = "READ"
)

// User is the resolved principal behind a connection. Identity (the
// username) is what the registry keys on; ID is the numeric key the
// stores and the reverse index use.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Status   Status `json:"status"`
}

// DisplayName prefers the nickname and falls back to the username.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// Message is a persisted direct message. The store assigns ID and
// CreatedAt on insert.
type Message struct {
	ID          int64          `json:"id"`
	SenderID    int64          `json:"senderId"`
	ReceiverID  int64          `json:"receiverId"`
	Content     string         `json:"content"`
	ContentType ContentType    `json:"contentType"`
	Status      DeliveryStatus `json:"status"`
	Recalled    bool           `json:"recalled"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// GroupMessage is a persisted group message.
type GroupMessage struct {
	ID          int64       `json:"id"`
	GroupID     int64       `json:"groupId"`
	SenderID    int64       `json:"senderId"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"contentType"`
	Recalled    bool        `json:"recalled"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// IsValidStatus reports whether s is one of the five presence states.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy, StatusInvisible:
		return true
	}
	return false
}

// IsValidContentType reports whether ct is a known payload type.
func IsValidContentType(ct ContentType) bool {
	switch ct {
	case ContentText, ContentImage, ContentFile, ContentAudio, ContentVideo, ContentEmoji, ContentSystem:
		return true
	}
	return false
}
