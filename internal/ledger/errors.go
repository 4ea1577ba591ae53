package ledger

import "errors"

var (
	// ErrMissingGroup means an adjustment was attempted for a user with
	// no profile-context group and no stored group. Nothing is written.
	ErrMissingGroup = errors.New("no resolvable group for user")

	// ErrUnknownPointType means the requested type id is not configured
	// or not enabled.
	ErrUnknownPointType = errors.New("unknown point type")
)
