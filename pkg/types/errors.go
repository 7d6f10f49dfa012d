package types

import "errors"

// Envelope decoding and validation errors. A failed parse drops the
// single envelope; it never tears down the connection.
var (
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrUnknownKind        = errors.New("unknown envelope kind")
	ErrServerOnlyKind     = errors.New("envelope kind cannot be sent by clients")
	ErrMissingReceiver    = errors.New("envelope missing receiverId")
	ErrMissingGroup       = errors.New("envelope missing groupId")
	ErrMissingMessageID   = errors.New("envelope missing message id")
	ErrEmptyContent       = errors.New("envelope content is empty")
	ErrInvalidContentType = errors.New("invalid content type")
)
