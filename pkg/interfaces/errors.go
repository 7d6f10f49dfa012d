package interfaces

import "errors"

// Sentinel errors collaborators return for domain rule violations. The
// router converts these into synchronous Error envelopes at its single
// dispatch site.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMember       = errors.New("sender is not a member of this group")
	ErrMuted           = errors.New("sender is muted in this group")
)
