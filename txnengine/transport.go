package txnengine

import (
	"context"

	"github.com/skirmishlabs/vault/domain"
)

// Transport is the outbound half of the Peer Transport component
// (spec.md §4.2): everything the engine needs to call another peer. The
// concrete implementation (package peerrpc) carries the HTTP client,
// deadlines and retry policy; the engine only sees this interface, so the
// two packages don't import each other.
type Transport interface {
	Prepare(ctx context.Context, peerAddr string, req domain.PrepareRequest) (domain.PrepareResponse, error)
	Decide(ctx context.Context, peerAddr string, req domain.DecideRequest) (domain.DecideResponse, error)
	Status(ctx context.Context, peerAddr string, req domain.StatusRequest) (domain.StatusResponse, error)
}

// PeerResolver maps a peer id to its transport address, and names the
// peers this engine must treat as the participant set (spec.md §4.4).
type PeerResolver interface {
	SelfID() string
	Peers() []string       // all peer ids, including self
	Address(peerID string) (string, bool)
	LowestReachableID(reachable []string) string
}
