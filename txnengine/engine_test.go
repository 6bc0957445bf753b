package txnengine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skirmishlabs/vault/domain"
	"github.com/skirmishlabs/vault/internal/testutil"
	"github.com/skirmishlabs/vault/registry"
	"github.com/skirmishlabs/vault/txnengine"
)

// unreachableTransport fails every call; single-peer tests never need the
// engine to actually dial out, since the coordinator is also the only
// participant and every RPC takes the self-dispatch path.
type unreachableTransport struct{}

func (unreachableTransport) Prepare(context.Context, string, domain.PrepareRequest) (domain.PrepareResponse, error) {
	return domain.PrepareResponse{}, context.DeadlineExceeded
}
func (unreachableTransport) Decide(context.Context, string, domain.DecideRequest) (domain.DecideResponse, error) {
	return domain.DecideResponse{}, context.DeadlineExceeded
}
func (unreachableTransport) Status(context.Context, string, domain.StatusRequest) (domain.StatusResponse, error) {
	return domain.StatusResponse{}, context.DeadlineExceeded
}

func newSinglePeerEngine(t *testing.T, templates map[string][]string) *txnengine.Engine {
	t.Helper()
	return newSinglePeerEngineWithStock(t, templates, 10)
}

func newSinglePeerEngineWithStock(t *testing.T, templates map[string][]string, stock int64) *txnengine.Engine {
	t.Helper()
	store := testutil.NewStore(t)
	require.NoError(t, store.InitStock(context.Background(), stock))
	reg := registry.New("peer1", []registry.Peer{{ID: "peer1", Address: "unused"}})
	catalog := txnengine.NewCatalog(templates)
	cfg := txnengine.DefaultConfig()
	return txnengine.New("peer1", store, unreachableTransport{}, reg, catalog, cfg, nil)
}

func TestBeginOpenPackCommits(t *testing.T) {
	engine := newSinglePeerEngine(t, map[string][]string{"starter": {"card-1", "card-2"}})
	outcome, err := engine.Begin(context.Background(), domain.KindOpenPack, domain.OpenPackPayload{
		PlayerID:       "alice",
		PackTemplateID: "starter",
	})
	require.NoError(t, err)
	require.Equal(t, domain.VoteCommit, outcome.Decision)

	snap := engine.Stats()
	require.Equal(t, uint64(1), snap.GlobalCommits)
}

func TestBeginOpenPackAbortsWhenOutOfStock(t *testing.T) {
	engine := newSinglePeerEngine(t, map[string][]string{"starter": {"card-1"}})

	// Drain the single-peer engine's own store to zero first.
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := engine.Begin(ctx, domain.KindOpenPack, domain.OpenPackPayload{PlayerID: "p", PackTemplateID: "starter"})
		require.NoError(t, err)
	}

	outcome, err := engine.Begin(ctx, domain.KindOpenPack, domain.OpenPackPayload{PlayerID: "late", PackTemplateID: "starter"})
	require.NoError(t, err)
	require.Equal(t, domain.VoteAbort, outcome.Decision)
	require.Equal(t, "OUT_OF_STOCK", outcome.Reason)
}

// TestConcurrentBeginOpenPackNeverOversells drives spec.md §8 scenario 1 at
// single-peer scale: concurrent Begin calls against a stock of 50 must
// commit exactly 50 and abort the rest with OUT_OF_STOCK, never oversell.
func TestConcurrentBeginOpenPackNeverOversells(t *testing.T) {
	const stock = 50
	const attempts = 60
	engine := newSinglePeerEngineWithStock(t, map[string][]string{"starter": {"card-1"}}, stock)

	outcomes := make([]domain.Vote, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		i := i
		go func() {
			defer wg.Done()
			outcome, err := engine.Begin(context.Background(), domain.KindOpenPack, domain.OpenPackPayload{
				PlayerID:       "player",
				PackTemplateID: "starter",
			})
			require.NoError(t, err)
			outcomes[i] = outcome.Decision
		}()
	}
	wg.Wait()

	commits, aborts := 0, 0
	for _, o := range outcomes {
		switch o {
		case domain.VoteCommit:
			commits++
		case domain.VoteAbort:
			aborts++
		}
	}
	require.Equal(t, stock, commits)
	require.Equal(t, attempts-stock, aborts)

	snap := engine.Stats()
	require.Equal(t, uint64(stock), snap.GlobalCommits)
}

func TestBeginTradeCardsAbortsOnInvalidPayload(t *testing.T) {
	engine := newSinglePeerEngine(t, nil)
	outcome, err := engine.Begin(context.Background(), domain.KindTradeCards, domain.TradeCardsPayload{
		PlayerA: "alice",
		PlayerB: "alice",
	})
	require.NoError(t, err)
	require.Equal(t, domain.VoteAbort, outcome.Decision)
	require.Equal(t, "INVALID_PAYLOAD", outcome.Reason)
}
