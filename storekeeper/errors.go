package storekeeper

import "github.com/pkg/errors"

// Sentinel errors the Coordination Service distinguishes, per spec.md §7.
// Callers use errors.Is against these; storekeeper wraps underlying Redis
// failures with pkg/errors so a stack trace survives to the log line.
var (
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrConflict           = errors.New("optimistic lock conflict")
	ErrOutOfStock         = errors.New("pack stock exhausted")
	ErrMissingCards       = errors.New("one or more named cards are not present")
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrProtocolViolation  = errors.New("protocol violation: record already decided differently")
)
