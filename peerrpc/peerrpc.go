// Package peerrpc is the Peer Transport component (spec.md §4.2): an
// HTTP/JSON server answering PREPARE/DECIDE/STATUS, and a client the
// Transaction Engine uses to call other peers.
package peerrpc

import (
	"context"

	"github.com/skirmishlabs/vault/domain"
)

// Handler is the inbound side a Server dispatches to. *txnengine.Engine
// satisfies this directly; peerrpc never imports txnengine so the two
// packages only share the domain package.
type Handler interface {
	HandlePrepare(ctx context.Context, req domain.PrepareRequest) (domain.PrepareResponse, error)
	HandleDecide(ctx context.Context, req domain.DecideRequest) (domain.DecideResponse, error)
	HandleStatus(ctx context.Context, req domain.StatusRequest) (domain.StatusResponse, error)
}

// PeerValidator tells the server whether an inbound X-Peer-Id is a member
// of this peer's registry (spec.md §4.2, "every inbound peer call is
// authenticated/authorized against the Peer Registry").
type PeerValidator interface {
	IsPeer(peerID string) bool
}

const (
	headerPeerID   = "X-Peer-Id"
	headerSequence = "X-Sequence"
)

// phase tags the three RPC kinds for the idempotence cache key.
type phase string

const (
	phasePrepare phase = "prepare"
	phaseDecide  phase = "decide"
	phaseStatus  phase = "status"
)
