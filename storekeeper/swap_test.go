package storekeeper_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skirmishlabs/vault/internal/testutil"
	"github.com/skirmishlabs/vault/storekeeper"
)

func seedInventory(t *testing.T, store *storekeeper.Store, playerID string, cards []string) {
	t.Helper()
	require.NoError(t, store.SeedInventory(context.Background(), playerID, cards))
}

func TestVerifyAndSwapRequiresAllCards(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	seedInventory(t, store, "alice", []string{"card-1"})
	seedInventory(t, store, "bob", []string{"card-2"})

	result, err := store.VerifyAndSwap(ctx, "tx1", "alice", []string{"card-1"}, "bob", []string{"card-2"})
	require.NoError(t, err)
	require.Equal(t, storekeeper.Prepared, result)
}

func TestVerifyAndSwapMissingCards(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	seedInventory(t, store, "alice", []string{"card-1"})
	seedInventory(t, store, "bob", []string{"card-2"})

	result, err := store.VerifyAndSwap(ctx, "tx1", "alice", []string{"card-3"}, "bob", []string{"card-2"})
	require.NoError(t, err)
	require.Equal(t, storekeeper.MissingCards, result)

	// A rejected verify must not move anything.
	invAlice, err := store.Inventory(ctx, "alice")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"card-1"}, invAlice)
}

func TestApplySwapMovesCardsBothWays(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	seedInventory(t, store, "alice", []string{"card-1"})
	seedInventory(t, store, "bob", []string{"card-2"})

	_, err := store.VerifyAndSwap(ctx, "tx1", "alice", []string{"card-1"}, "bob", []string{"card-2"})
	require.NoError(t, err)

	require.NoError(t, store.ApplySwap(ctx, "tx1"))

	invAlice, err := store.Inventory(ctx, "alice")
	require.NoError(t, err)
	invBob, err := store.Inventory(ctx, "bob")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"card-2"}, invAlice)
	require.ElementsMatch(t, []string{"card-1"}, invBob)

	// Idempotent: a second ApplySwap after the intent is consumed is a no-op.
	require.NoError(t, store.ApplySwap(ctx, "tx1"))
	invAlice, err = store.Inventory(ctx, "alice")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"card-2"}, invAlice)
}

// TestVerifyAndSwapRejectsAlreadyClaimedCard covers spec.md §8 scenario 6:
// once one in-flight intent has claimed a card, a second intent trying to
// move the same card must see it as unavailable rather than independently
// succeeding.
func TestVerifyAndSwapRejectsAlreadyClaimedCard(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	seedInventory(t, store, "alice", []string{"card-1"})
	seedInventory(t, store, "bob", []string{"card-2"})
	seedInventory(t, store, "carol", []string{"card-3"})

	result1, err := store.VerifyAndSwap(ctx, "tx1", "alice", []string{"card-1"}, "bob", []string{"card-2"})
	require.NoError(t, err)
	require.Equal(t, storekeeper.Prepared, result1)

	result2, err := store.VerifyAndSwap(ctx, "tx2", "alice", []string{"card-1"}, "carol", []string{"card-3"})
	require.NoError(t, err)
	require.Equal(t, storekeeper.MissingCards, result2)
}

// TestConcurrentVerifyAndSwapRacingSameCardCommitsExactlyOnce drives the
// concurrent race of spec.md §8 scenario 6 directly against the store:
// two goroutines each try to move alice's only card-1 to a different
// counterparty. Exactly one must observe Prepared; the other must observe
// MissingCards once it re-reads the claim set.
func TestConcurrentVerifyAndSwapRacingSameCardCommitsExactlyOnce(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	seedInventory(t, store, "alice", []string{"card-1"})
	seedInventory(t, store, "bob", []string{"card-2"})
	seedInventory(t, store, "carol", []string{"card-3"})

	results := make([]storekeeper.SwapResult, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r, err := store.VerifyAndSwap(ctx, "tx-bob", "alice", []string{"card-1"}, "bob", []string{"card-2"})
		require.NoError(t, err)
		results[0] = r
	}()
	go func() {
		defer wg.Done()
		r, err := store.VerifyAndSwap(ctx, "tx-carol", "alice", []string{"card-1"}, "carol", []string{"card-3"})
		require.NoError(t, err)
		results[1] = r
	}()
	wg.Wait()

	prepared, missing := 0, 0
	for _, r := range results {
		switch r {
		case storekeeper.Prepared:
			prepared++
		case storekeeper.MissingCards:
			missing++
		}
	}
	require.Equal(t, 1, prepared)
	require.Equal(t, 1, missing)
}

func TestCancelSwapLeavesInventoriesUntouched(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	seedInventory(t, store, "alice", []string{"card-1"})
	seedInventory(t, store, "bob", []string{"card-2"})

	_, err := store.VerifyAndSwap(ctx, "tx1", "alice", []string{"card-1"}, "bob", []string{"card-2"})
	require.NoError(t, err)

	require.NoError(t, store.CancelSwap(ctx, "tx1"))

	invAlice, err := store.Inventory(ctx, "alice")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"card-1"}, invAlice)
}
