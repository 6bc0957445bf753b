// Package registry is the Peer Registry component (spec.md §4.4): a
// static, config-loaded map of peer id to transport address.
package registry

import "sort"

// Peer is one entry of the static registry.
type Peer struct {
	ID      string
	Address string
}

// Registry answers the peer-id/address questions the Transaction Engine
// and Peer Transport need. It satisfies both txnengine.PeerResolver and
// peerrpc.PeerValidator without either package importing this one.
type Registry struct {
	selfID string
	byID   map[string]string
	ids    []string // stable, sorted; Peers() relies on this order
}

// New builds a Registry. selfID must be one of peers' ids.
func New(selfID string, peers []Peer) *Registry {
	byID := make(map[string]string, len(peers))
	ids := make([]string, 0, len(peers))
	for _, p := range peers {
		byID[p.ID] = p.Address
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return &Registry{selfID: selfID, byID: byID, ids: ids}
}

func (r *Registry) SelfID() string { return r.selfID }

// Peers returns every known peer id, including self, in a stable order.
func (r *Registry) Peers() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) Address(peerID string) (string, bool) {
	addr, ok := r.byID[peerID]
	return addr, ok
}

func (r *Registry) IsPeer(peerID string) bool {
	_, ok := r.byID[peerID]
	return ok
}

// LowestReachableID picks the deterministic tie-breaker spec.md §4.3.3's
// blocking-window fallback names ("elect, e.g., the peer with the lowest
// id among those reachable"). Kept for interface completeness and tests
// even though txnengine never invokes it (see txnengine/recovery.go) —
// see DESIGN.md.
func (r *Registry) LowestReachableID(reachable []string) string {
	if len(reachable) == 0 {
		return ""
	}
	lowest := reachable[0]
	for _, id := range reachable[1:] {
		if id < lowest {
			lowest = id
		}
	}
	return lowest
}
