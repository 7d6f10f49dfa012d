package types

import (
	"encoding/json"
	"fmt"
)

// Inbound is the tagged union of envelope payloads a client may submit.
// Each variant carries only the fields its kind actually uses; the
// flat wire shape with its many optional fields stops at ParseInbound.
type Inbound interface {
	Kind() Kind
}

// Direct is a one-to-one chat message.
type Direct struct {
	ReceiverID  int64
	Content     string
	ContentType ContentType
}

func (Direct) Kind() Kind { return KindDirect }

// GroupChat is a message to every member of a group.
type GroupChat struct {
	GroupID     int64
	Content     string
	ContentType ContentType
}

func (GroupChat) Kind() Kind { return KindGroupChat }

// Typing is a fire-and-forget composing indicator for the receiver.
type Typing struct {
	ReceiverID int64
}

func (Typing) Kind() Kind { return KindTyping }

// ReadReceipt marks MessageID read and acknowledges OriginalSenderID.
type ReadReceipt struct {
	MessageID        int64
	OriginalSenderID int64
}

func (ReadReceipt) Kind() Kind { return KindReadReceipt }

// Recall asks to withdraw MessageID. GroupID selects the group store
// when set; nil means a direct message.
type Recall struct {
	MessageID int64
	GroupID   *int64
}

func (Recall) Kind() Kind { return KindRecall }

// ParseInbound decodes and validates one wire envelope into its
// Inbound variant. Any error here means the single envelope is dropped
// or rejected; the caller decides which.
func ParseInbound(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := ValidateEnvelope(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch env.Type {
	case KindDirect:
		if env.ReceiverID == nil {
			return nil, ErrMissingReceiver
		}
		if env.Content == "" {
			return nil, ErrEmptyContent
		}
		return Direct{
			ReceiverID:  *env.ReceiverID,
			Content:     env.Content,
			ContentType: contentTypeOrText(env.ContentType),
		}, nil

	case KindGroupChat:
		if env.GroupID == nil {
			return nil, ErrMissingGroup
		}
		if env.Content == "" {
			return nil, ErrEmptyContent
		}
		return GroupChat{
			GroupID:     *env.GroupID,
			Content:     env.Content,
			ContentType: contentTypeOrText(env.ContentType),
		}, nil

	case KindTyping:
		if env.ReceiverID == nil {
			return nil, ErrMissingReceiver
		}
		return Typing{ReceiverID: *env.ReceiverID}, nil

	case KindReadReceipt:
		if env.ID == nil {
			return nil, ErrMissingMessageID
		}
		if env.ReceiverID == nil {
			return nil, ErrMissingReceiver
		}
		return ReadReceipt{MessageID: *env.ID, OriginalSenderID: *env.ReceiverID}, nil

	case KindRecall:
		if env.ID == nil {
			return nil, ErrMissingMessageID
		}
		return Recall{MessageID: *env.ID, GroupID: env.GroupID}, nil

	case KindPresence, KindSystem, KindError, KindKick:
		return nil, fmt.Errorf("%w: %s", ErrServerOnlyKind, env.Type)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, env.Type)
	}
}

// contentTypeOrText defaults an absent contentType to TEXT, matching
// what stored messages default to.
func contentTypeOrText(ct ContentType) ContentType {
	if ct == "" {
		return ContentText
	}
	return ct
}
