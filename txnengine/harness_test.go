package txnengine_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skirmishlabs/vault/domain"
	"github.com/skirmishlabs/vault/internal/testutil"
	"github.com/skirmishlabs/vault/peerrpc"
	"github.com/skirmishlabs/vault/txnengine"
)

// multiPeerHarness wires N fully independent peers, each with its own
// local state store (the core is regionally-replicated: every peer holds a
// full copy of PackStock/PlayerInventory, and 2PC exists to apply each
// transaction identically across every replica), joined by real HTTP
// peerrpc servers on httptest.Server so PREPARE/DECIDE genuinely cross the
// wire for every non-self participant.
type multiPeerHarness struct {
	engines map[string]*txnengine.Engine
	servers map[string]*httptest.Server
}

func newMultiPeerHarness(t *testing.T, peerIDs []string, templates map[string][]string, initialStock int64, seedInventories map[string][]string) *multiPeerHarness {
	t.Helper()

	h := &multiPeerHarness{engines: map[string]*txnengine.Engine{}, servers: map[string]*httptest.Server{}}

	// Addresses aren't known until the httptest servers are up, so every
	// peer's resolver reads from this shared map, filled in as each server
	// starts below.
	addrByID := map[string]string{}
	for _, id := range peerIDs {
		addrByID[id] = ""
	}

	cfg := txnengine.DefaultConfig()
	cfg.PrepareTimeout = 2 * time.Second
	cfg.DecideTimeout = 2 * time.Second

	engines := map[string]*txnengine.Engine{}
	for _, id := range peerIDs {
		store := testutil.NewStore(t)
		ctx := context.Background()
		require.NoError(t, store.InitStock(ctx, initialStock))
		for player, cards := range seedInventories {
			require.NoError(t, store.SeedInventory(ctx, player, cards))
		}
		catalog := txnengine.NewCatalog(templates)
		// Registry is finalized below; pass a resolver that reads from the
		// shared addrByID map, which is safe because all mutation happens
		// before any engine method runs.
		resolver := &lateBoundRegistry{selfID: id, peerIDs: peerIDs, addrByID: addrByID}
		client := peerrpc.NewClient(id)
		engine := txnengine.New(id, store, client, resolver, catalog, cfg, nil)
		engines[id] = engine

		server := peerrpc.NewServer(engine, resolver)
		ts := httptest.NewServer(server)
		t.Cleanup(ts.Close)
		addrByID[id] = ts.URL
		h.servers[id] = ts
	}
	h.engines = engines
	return h
}

// lateBoundRegistry defers address resolution to a shared map so every
// peer can be told about every other peer's httptest.Server URL once all
// servers are listening, without a second construction pass.
type lateBoundRegistry struct {
	selfID   string
	peerIDs  []string
	addrByID map[string]string
}

func (r *lateBoundRegistry) SelfID() string { return r.selfID }
func (r *lateBoundRegistry) Peers() []string {
	out := make([]string, len(r.peerIDs))
	copy(out, r.peerIDs)
	return out
}
func (r *lateBoundRegistry) Address(peerID string) (string, bool) {
	addr, ok := r.addrByID[peerID]
	return addr, ok && addr != ""
}
func (r *lateBoundRegistry) IsPeer(peerID string) bool {
	_, ok := r.addrByID[peerID]
	return ok
}
func (r *lateBoundRegistry) LowestReachableID(reachable []string) string {
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

func TestMultiPeerOpenPackCommitsOnAllPeers(t *testing.T) {
	h := newMultiPeerHarness(t, []string{"peer1", "peer2", "peer3"},
		map[string][]string{"starter": {"card-1", "card-2"}}, 5, nil)

	outcome, err := h.engines["peer1"].Begin(context.Background(), domain.KindOpenPack, domain.OpenPackPayload{
		PlayerID:       "alice",
		PackTemplateID: "starter",
	})
	require.NoError(t, err)
	require.Equal(t, domain.VoteCommit, outcome.Decision)

	// Let background DECIDE delivery and acking land.
	require.Eventually(t, func() bool {
		for _, e := range h.engines {
			if e.Stats().GlobalCommits != 1 {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMultiPeerTradeCardsCommitsWhenBothSidesHaveCards(t *testing.T) {
	h := newMultiPeerHarness(t, []string{"peer1", "peer2"}, nil, 0, map[string][]string{
		"alice": {"card-1"},
		"bob":   {"card-2"},
	})

	outcome, err := h.engines["peer1"].Begin(context.Background(), domain.KindTradeCards, domain.TradeCardsPayload{
		PlayerA:   "alice",
		CardsAOut: []string{"card-1"},
		PlayerB:   "bob",
		CardsBOut: []string{"card-2"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.VoteCommit, outcome.Decision)
}

func TestMultiPeerTradeCardsAbortsWhenOneSideMissingCards(t *testing.T) {
	h := newMultiPeerHarness(t, []string{"peer1", "peer2"}, nil, 0, map[string][]string{
		"alice": {"card-1"},
		"bob":   {},
	})

	outcome, err := h.engines["peer1"].Begin(context.Background(), domain.KindTradeCards, domain.TradeCardsPayload{
		PlayerA:   "alice",
		CardsAOut: []string{"card-1"},
		PlayerB:   "bob",
		CardsBOut: []string{"card-2"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.VoteAbort, outcome.Decision)
	require.Equal(t, "MISSING_CARDS", outcome.Reason)
}
