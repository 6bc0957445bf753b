package storekeeper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/skirmishlabs/vault/domain"
)

// ReserveResult is the outcome of ReservePack, per spec.md §4.1.
type ReserveResult int

const (
	Reserved ReserveResult = iota
	OutOfStock
	ReserveConflict
)

// InitStock seeds stock:packs at bootstrap (spec.md §3, PackStock lifecycle:
// "created once at bootstrap"). It never overwrites an existing stock
// value, since that would violate I1: once stock:packs exists, a further
// call leaves it untouched and returns an error.
func (s *Store) InitStock(ctx context.Context, initial int64) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	set, err := s.rdb.SetNX(ctx, stockKey(), initial, 0).Result()
	if err != nil {
		return err
	}
	if !set {
		return fmt.Errorf("stock already initialized")
	}
	return nil
}

// StockRemaining reads the current PackStock.remaining. Business decisions
// must not cache this value; it is provided for diagnostics and tests.
func (s *Store) StockRemaining(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	v, err := s.rdb.Get(ctx, stockKey()).Int64()
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ReservePack atomically decrements stock and records a reservation for
// txID, or reports OutOfStock without mutating anything.
func (s *Store) ReservePack(ctx context.Context, txID, playerID, packTemplateID string) (ReserveResult, error) {
	var result ReserveResult
	err := s.casLoop(ctx, func(tx *redis.Tx) error {
		remaining, err := tx.Get(ctx, stockKey()).Int64()
		if err != nil {
			return err
		}
		if remaining <= 0 {
			result = OutOfStock
			return nil
		}
		reservation := domain.ReservedPack{TxID: txID, PlayerID: playerID, PackTemplateID: packTemplateID}
		encoded, err := json.Marshal(reservation)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Decr(ctx, stockKey())
			pipe.Set(ctx, reservationKey(txID), encoded, 0)
			pipe.SAdd(ctx, nonterminalIndexKey(), txID)
			return nil
		})
		if err != nil {
			return err
		}
		result = Reserved
		return nil
	}, stockKey())
	if err != nil {
		if err == ErrConflict {
			return ReserveConflict, err
		}
		return 0, err
	}
	return result, nil
}

// ReleasePack is idempotent: if no reservation exists for txID, it is a
// no-op success (spec.md §4.1).
func (s *Store) ReleasePack(ctx context.Context, txID string) error {
	return s.casLoop(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, reservationKey(txID)).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, stockKey())
			pipe.Del(ctx, reservationKey(txID))
			return nil
		})
		_ = raw
		return err
	}, reservationKey(txID))
}

// MaterializePack is idempotent: a reservation present means this is the
// first delivery; a materialized marker present with no reservation means a
// prior delivery already applied the effect (spec.md §4.1).
func (s *Store) MaterializePack(ctx context.Context, txID, playerID string, cardIDs []string) error {
	return s.casLoop(ctx, func(tx *redis.Tx) error {
		_, err := tx.Get(ctx, reservationKey(txID)).Result()
		switch err {
		case nil:
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, c := range cardIDs {
					pipe.RPush(ctx, inventoryKey(playerID), c)
				}
				pipe.Del(ctx, reservationKey(txID))
				pipe.Set(ctx, materializedMarkerKey(txID), 1, 0)
				pipe.SRem(ctx, nonterminalIndexKey(), txID)
				return nil
			})
			return err
		case redis.Nil:
			already, err := tx.Exists(ctx, materializedMarkerKey(txID)).Result()
			if err != nil {
				return err
			}
			if already > 0 {
				return nil
			}
			return ErrConflict
		default:
			return err
		}
	}, reservationKey(txID), materializedMarkerKey(txID))
}

// Inventory returns the full card-id multiset for a player, in insertion
// order. Lazily-created players simply return an empty slice.
func (s *Store) Inventory(ctx context.Context, playerID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	return s.rdb.LRange(ctx, inventoryKey(playerID), 0, -1).Result()
}

// SeedInventory grants cards to a player outside the transaction protocol.
// It exists for bootstrap (e.g. starter decks handed out at account
// creation) and tests; it is not part of OPEN_PACK/TRADE_CARDS and carries
// none of their atomicity guarantees.
func (s *Store) SeedInventory(ctx context.Context, playerID string, cardIDs []string) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if len(cardIDs) == 0 {
		return nil
	}
	args := make([]interface{}, len(cardIDs))
	for i, c := range cardIDs {
		args[i] = c
	}
	return s.rdb.RPush(ctx, inventoryKey(playerID), args...).Err()
}
