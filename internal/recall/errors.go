package recall

import "errors"

var (
	ErrNotFound      = errors.New("message not found")
	ErrNotOwner      = errors.New("only the sender can recall a message")
	ErrWindowExpired = errors.New("message is older than the recall window")
)
