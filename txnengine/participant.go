package txnengine

import (
	"context"
	"time"

	"github.com/skirmishlabs/vault/domain"
)

// HandlePrepare answers a PREPARE call, whether it arrived over the wire or
// was dispatched in-process for the coordinator's own self-participation
// (spec.md §4.3.1 step 2, §4.3.2). Every peer keeps its own local record of
// every transaction it participates in (the core is regionally-replicated:
// PackStock/PlayerInventory are applied identically to every peer's copy),
// so a participant that has never seen this tx_id before creates its local
// record from the RPC payload rather than requiring the coordinator's
// LogTx write to already be visible here.
func (e *Engine) HandlePrepare(ctx context.Context, req domain.PrepareRequest) (domain.PrepareResponse, error) {
	unlock := e.locks.lock(req.TxID)
	defer unlock()

	rec, err := e.store.LoadTx(ctx, req.TxID)
	if err != nil {
		now := time.Now()
		rec = &domain.TransactionRecord{
			TxID:          req.TxID,
			Kind:          req.Kind,
			CoordinatorID: req.Coordinator,
			Participants:  req.Participants,
			Payload:       req.Payload,
			Status:        domain.StatusPreparing,
			Votes:         map[string]domain.Vote{},
			Acked:         map[string]bool{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := e.store.LogTx(ctx, rec); err != nil {
			return domain.PrepareResponse{}, err
		}
	}

	// Idempotence: a repeated PREPARE for a vote this peer already cast
	// replays the same answer (spec.md §4.3.2, "return the cached
	// vote/decision").
	if v, voted := rec.Votes[e.selfID]; voted {
		return domain.PrepareResponse{Vote: v}, nil
	}

	handler, err := handlerFor(req.Kind, e.catalog)
	if err != nil {
		return domain.PrepareResponse{}, err
	}

	vote, reason, err := handler.prepare(ctx, e.store, req.TxID, req.Payload)
	if err != nil {
		return domain.PrepareResponse{}, err
	}

	// Persist the vote before answering: the durability boundary of
	// invariant I5.
	if _, err := e.store.RecordPeerVote(ctx, req.TxID, e.selfID, vote); err != nil {
		return domain.PrepareResponse{}, err
	}
	e.stats.recordVote(vote)

	return domain.PrepareResponse{Vote: vote, Reason: reason}, nil
}

// HandleDecide answers a DECIDE call: apply or roll back the kind-specific
// effect, then mark this peer's view of the transaction COMPLETED
// (spec.md §4.3.2).
func (e *Engine) HandleDecide(ctx context.Context, req domain.DecideRequest) (domain.DecideResponse, error) {
	unlock := e.locks.lock(req.TxID)
	defer unlock()

	rec, err := e.store.LoadTx(ctx, req.TxID)
	if err != nil {
		// Late-joiner after restart, or a peer that was never reached
		// during PREPARE: accept the decision so STATUS can answer it
		// later (spec.md §7, UnknownTransaction).
		rec = &domain.TransactionRecord{
			TxID:     req.TxID,
			Status:   domain.StatusCompleted,
			Decision: req.Decision,
			Votes:    map[string]domain.Vote{},
			Acked:    map[string]bool{},
		}
		if err := e.store.LateJoinDecide(ctx, rec); err != nil {
			return domain.DecideResponse{}, err
		}
		return domain.DecideResponse{Ack: true}, nil
	}

	if rec.Decision != "" && rec.Decision != req.Decision {
		return domain.DecideResponse{}, ErrProtocolViolationf(req.TxID, rec.Decision, req.Decision)
	}

	handler, err := handlerFor(rec.Kind, e.catalog)
	if err != nil {
		// Record predates this engine knowing its own kind (shouldn't
		// happen once LogTx always carries it); treat as a protocol bug
		// rather than silently dropping the decision.
		return domain.DecideResponse{}, err
	}

	if req.Decision == domain.VoteCommit {
		err = handler.commit(ctx, e.store, req.TxID, rec.Payload)
	} else {
		err = handler.abort(ctx, e.store, req.TxID, rec.Payload)
	}
	if err != nil {
		return domain.DecideResponse{}, err
	}

	if _, err := e.store.ParticipantComplete(ctx, req.TxID, req.Decision); err != nil {
		return domain.DecideResponse{}, err
	}
	// The coordinator counted this decision in driveToDecision; a
	// participant counts it once, on the first DECIDE it applies.
	if rec.CoordinatorID != e.selfID && rec.Status != domain.StatusCompleted {
		e.stats.recordDecision(req.Decision == domain.VoteCommit)
	}
	e.locks.forget(req.TxID)
	e.events.Publish(ctx, DecidedEvent{TxID: req.TxID, Kind: rec.Kind, Decision: req.Decision})

	return domain.DecideResponse{Ack: true}, nil
}

// HandleStatus answers a STATUS call, used only by recovery (spec.md §6).
func (e *Engine) HandleStatus(ctx context.Context, req domain.StatusRequest) (domain.StatusResponse, error) {
	rec, err := e.store.LoadTx(ctx, req.TxID)
	if err != nil {
		return domain.StatusResponse{Unknown: true}, nil
	}
	return domain.StatusResponse{
		Status:   rec.Status,
		Vote:     rec.Votes[e.selfID],
		Decision: rec.Decision,
	}, nil
}
