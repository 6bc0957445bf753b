package storekeeper

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/skirmishlabs/vault/domain"
)

// validEdges enumerates the directed edges of the state machine in
// spec.md §4.3, enforcing invariant I4 (monotonic transaction state) inside
// the CAS so no caller can regress a record regardless of race.
var validEdges = map[domain.Status]map[domain.Status]bool{
	"": {
		domain.StatusPreparing: true,
	},
	domain.StatusPreparing: {
		domain.StatusGlobalCommit: true,
		domain.StatusGlobalAbort:  true,
	},
	domain.StatusGlobalCommit: {
		domain.StatusCompleted: true,
	},
	domain.StatusGlobalAbort: {
		domain.StatusCompleted: true,
	},
}

func transitionAllowed(from, to domain.Status) bool {
	if from == to {
		return true // re-assertion by a retried RPC, idempotent no-op
	}
	edges, ok := validEdges[from]
	return ok && edges[to]
}

// LogTx persists a brand-new TransactionRecord in PREPARING status. It must
// be called, and succeed, before the coordinator contacts any peer
// (spec.md §4.3.1 step 1).
func (s *Store) LogTx(ctx context.Context, rec *domain.TransactionRecord) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, txKey(rec.TxID), encoded, 0)
	pipe.SAdd(ctx, nonterminalIndexKey(), rec.TxID)
	_, err = pipe.Exec(ctx)
	return err
}

// LoadTx returns ErrUnknownTransaction if no record exists for txID,
// matching the DECIDE/STATUS handling of an unseen tx_id in spec.md §7.
func (s *Store) LoadTx(ctx context.Context, txID string) (*domain.TransactionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	raw, err := s.rdb.Get(ctx, txKey(txID)).Bytes()
	if err == redis.Nil {
		return nil, ErrUnknownTransaction
	}
	if err != nil {
		return nil, err
	}
	var rec domain.TransactionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// mutateTx loads the record under WATCH, lets mutate adjust it in place,
// and writes it back inside the same optimistic transaction. mutate is
// responsible for checking transitionAllowed against the record's current
// status before changing it.
func (s *Store) mutateTx(ctx context.Context, txID string, mutate func(*domain.TransactionRecord) error) (*domain.TransactionRecord, error) {
	var result *domain.TransactionRecord
	err := s.casLoop(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, txKey(txID)).Bytes()
		if err != nil {
			return err
		}
		var rec domain.TransactionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if err := mutate(&rec); err != nil {
			return err
		}
		encoded, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, txKey(txID), encoded, 0)
			if rec.Status.Terminal() {
				pipe.SRem(ctx, nonterminalIndexKey(), txID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = &rec
		return nil
	}, txKey(txID))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordPeerVote persists a single peer's vote into the shared record's
// Votes map. Both the participant persisting its own vote before answering
// PREPARE (the durability boundary of invariant I5) and the coordinator
// recording each reply it collects (spec.md §4.3.1 step 3) call this: the
// participant with its own peer id, the coordinator with the id of the
// peer that replied.
func (s *Store) RecordPeerVote(ctx context.Context, txID, peerID string, vote domain.Vote) (*domain.TransactionRecord, error) {
	return s.mutateTx(ctx, txID, func(rec *domain.TransactionRecord) error {
		if rec.Status != domain.StatusPreparing {
			return nil // late vote after a decision was already reached; ignore
		}
		if rec.Votes == nil {
			rec.Votes = map[string]domain.Vote{}
		}
		rec.Votes[peerID] = vote
		return nil
	})
}

// Decide writes the coordinator's global decision via CAS from PREPARING.
// If another actor already decided (recovery raced this coordinator), the
// already-decided record is returned with no error — the caller adopts it,
// per spec.md §4.3.1 step 4.
func (s *Store) Decide(ctx context.Context, txID string, decision domain.Vote, newStatus domain.Status) (*domain.TransactionRecord, error) {
	return s.mutateTx(ctx, txID, func(rec *domain.TransactionRecord) error {
		if rec.Status.Decided() {
			return nil // adopt: leave the existing decision untouched
		}
		if !transitionAllowed(rec.Status, newStatus) {
			return ErrProtocolViolation
		}
		rec.Status = newStatus
		rec.Decision = decision
		return nil
	})
}

// ParticipantComplete transitions a participant's record to COMPLETED after
// its local effect (materialize/apply-swap or release/cancel-swap) is
// durable, per spec.md §4.3.2, "Acknowledge DECIDE only after the
// state-store effect is durable." A record already in GLOBAL_COMMIT or
// GLOBAL_ABORT is the coordinator's own record; it keeps that status until
// MarkAcked sees every participant's acknowledgement.
func (s *Store) ParticipantComplete(ctx context.Context, txID string, decision domain.Vote) (*domain.TransactionRecord, error) {
	return s.mutateTx(ctx, txID, func(rec *domain.TransactionRecord) error {
		rec.Decision = decision
		if rec.Status.Decided() {
			return nil
		}
		rec.Status = domain.StatusCompleted
		return nil
	})
}

// MarkAcked records that peerID has acknowledged DECIDE, and completes the
// coordinator's record once every participant has (spec.md §4.3.1 step 6).
func (s *Store) MarkAcked(ctx context.Context, txID, peerID string) (*domain.TransactionRecord, error) {
	return s.mutateTx(ctx, txID, func(rec *domain.TransactionRecord) error {
		if rec.Acked == nil {
			rec.Acked = map[string]bool{}
		}
		rec.Acked[peerID] = true
		if rec.AllAcked() && rec.Status.Decided() {
			rec.Status = domain.StatusCompleted
		}
		return nil
	})
}

// AdoptCoordinator lets a recovering peer claim ownership of a record stuck
// in PREPARING (spec.md §4.3.3). The CAS on the record guarantees a single
// winner even if several peers attempt adoption concurrently.
func (s *Store) AdoptCoordinator(ctx context.Context, txID, newCoordinatorID string) (*domain.TransactionRecord, error) {
	return s.mutateTx(ctx, txID, func(rec *domain.TransactionRecord) error {
		if rec.Status != domain.StatusPreparing {
			return nil
		}
		rec.CoordinatorID = newCoordinatorID
		return nil
	})
}

// LateJoinDecide writes a decided record for a tx_id this peer has never
// seen before, because it received a DECIDE for it (spec.md §7,
// UnknownTransaction handling: "the receiver accepts the decision").
func (s *Store) LateJoinDecide(ctx context.Context, rec *domain.TransactionRecord) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	pipe := s.rdb.TxPipeline()
	pipe.SetNX(ctx, txKey(rec.TxID), encoded, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// NonterminalTxIDs lists every transaction the recovery sweeper should
// inspect (spec.md §6, tx_index:nonterminal).
func (s *Store) NonterminalTxIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	return s.rdb.SMembers(ctx, nonterminalIndexKey()).Result()
}
