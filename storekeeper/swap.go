package storekeeper

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/skirmishlabs/vault/domain"
)

// SwapResult is the outcome of VerifyAndSwap, per spec.md §4.1.
type SwapResult int

const (
	Prepared SwapResult = iota
	MissingCards
	SwapConflict
)

// VerifyAndSwap confirms each named card is present in the respective
// player's inventory and not already claimed by another in-flight swap, and
// if so, records a swap-intent marker plus a claim on every card it moves.
// It never mutates inventories; the move happens only in ApplySwap.
//
// The claim sets are part of both the watched and the written key set: two
// concurrent calls racing the same card both watch that card's owner's
// claim set, but only one of them writes it first, so the second's EXEC
// fails the CAS and retries against the now-claimed card (spec.md §8
// scenario 6).
func (s *Store) VerifyAndSwap(ctx context.Context, txID, playerA string, cardsAOut []string, playerB string, cardsBOut []string) (SwapResult, error) {
	var result SwapResult
	err := s.casLoop(ctx, func(tx *redis.Tx) error {
		invA, err := tx.LRange(ctx, inventoryKey(playerA), 0, -1).Result()
		if err != nil {
			return err
		}
		invB, err := tx.LRange(ctx, inventoryKey(playerB), 0, -1).Result()
		if err != nil {
			return err
		}
		claimedA, err := tx.SMembers(ctx, claimKey(playerA)).Result()
		if err != nil {
			return err
		}
		claimedB, err := tx.SMembers(ctx, claimKey(playerB)).Result()
		if err != nil {
			return err
		}
		if !containsAll(invA, cardsAOut) || !containsAll(invB, cardsBOut) ||
			anyClaimed(claimedA, cardsAOut) || anyClaimed(claimedB, cardsBOut) {
			result = MissingCards
			return nil
		}
		intent := domain.SwapIntent{TxID: txID, PlayerA: playerA, CardsAOut: cardsAOut, PlayerB: playerB, CardsBOut: cardsBOut}
		encoded, err := json.Marshal(intent)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, swapIntentKey(txID), encoded, 0)
			pipe.SAdd(ctx, nonterminalIndexKey(), txID)
			if len(cardsAOut) > 0 {
				pipe.SAdd(ctx, claimKey(playerA), toInterfaceSlice(cardsAOut)...)
			}
			if len(cardsBOut) > 0 {
				pipe.SAdd(ctx, claimKey(playerB), toInterfaceSlice(cardsBOut)...)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = Prepared
		return nil
	}, inventoryKey(playerA), inventoryKey(playerB), claimKey(playerA), claimKey(playerB))
	if err != nil {
		if err == ErrConflict {
			return SwapConflict, err
		}
		return 0, err
	}
	return result, nil
}

// ApplySwap is idempotent: a missing swap-intent is treated as already
// applied (spec.md §4.1). It releases the claims VerifyAndSwap placed on
// the moved cards.
func (s *Store) ApplySwap(ctx context.Context, txID string) error {
	return s.casLoop(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, swapIntentKey(txID)).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		var intent domain.SwapIntent
		if err := json.Unmarshal(raw, &intent); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, c := range intent.CardsAOut {
				pipe.LRem(ctx, inventoryKey(intent.PlayerA), 1, c)
				pipe.RPush(ctx, inventoryKey(intent.PlayerB), c)
			}
			for _, c := range intent.CardsBOut {
				pipe.LRem(ctx, inventoryKey(intent.PlayerB), 1, c)
				pipe.RPush(ctx, inventoryKey(intent.PlayerA), c)
			}
			pipe.Del(ctx, swapIntentKey(txID))
			pipe.SRem(ctx, nonterminalIndexKey(), txID)
			releaseClaims(ctx, pipe, intent)
			return nil
		})
		return err
	}, swapIntentKey(txID))
}

// CancelSwap is idempotent: removes the swap-intent and releases its claims
// without mutating inventories (spec.md §4.1).
func (s *Store) CancelSwap(ctx context.Context, txID string) error {
	return s.casLoop(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, swapIntentKey(txID)).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		var intent domain.SwapIntent
		if err := json.Unmarshal(raw, &intent); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, swapIntentKey(txID))
			releaseClaims(ctx, pipe, intent)
			return nil
		})
		return err
	}, swapIntentKey(txID))
}

// releaseClaims removes a resolved swap-intent's card claims within an
// already-open pipeline.
func releaseClaims(ctx context.Context, pipe redis.Pipeliner, intent domain.SwapIntent) {
	if len(intent.CardsAOut) > 0 {
		pipe.SRem(ctx, claimKey(intent.PlayerA), toInterfaceSlice(intent.CardsAOut)...)
	}
	if len(intent.CardsBOut) > 0 {
		pipe.SRem(ctx, claimKey(intent.PlayerB), toInterfaceSlice(intent.CardsBOut)...)
	}
}

// containsAll reports whether have contains every element of want at least
// as many times as it appears there, i.e. multiset containment.
func containsAll(have []string, want []string) bool {
	counts := make(map[string]int, len(have))
	for _, c := range have {
		counts[c]++
	}
	for _, c := range want {
		if counts[c] <= 0 {
			return false
		}
		counts[c]--
	}
	return true
}

// anyClaimed reports whether any card in want is already present in claimed.
func anyClaimed(claimed []string, want []string) bool {
	for _, c := range want {
		for _, claim := range claimed {
			if c == claim {
				return true
			}
		}
	}
	return false
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
