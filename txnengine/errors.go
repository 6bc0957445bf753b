package txnengine

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/skirmishlabs/vault/domain"
)

var (
	ErrUnknownKind     = errors.New("unknown transaction kind")
	ErrTimeout         = errors.New("operation timed out")
	ErrPeerUnavailable = errors.New("peer unavailable")
	ErrNotCoordinator  = errors.New("this peer is not the transaction's coordinator")
	ErrAlreadyDecided  = errors.New("transaction already has a decision")
)

// ErrProtocolViolationf reports a second coordinator attempting to decide a
// record already decided differently (spec.md §7, ProtocolViolation).
func ErrProtocolViolationf(txID string, have, got domain.Vote) error {
	return fmt.Errorf("protocol violation: tx %s already decided %s, received conflicting decision %s", txID, have, got)
}
