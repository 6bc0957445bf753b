package txnengine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skirmishlabs/vault/domain"
)

// Outcome is what a client-facing caller of Begin sees: at most
// {COMMITTED, ABORTED(reason)} per spec.md §7, "The system never exposes
// partial success."
type Outcome struct {
	TxID     string
	Decision domain.Vote
	Reason   string
}

// Begin drives a brand-new transaction through 2PC as coordinator
// (spec.md §4.3.1). The participant set is always the full peer registry,
// to preserve I1/I2 globally.
func (e *Engine) Begin(ctx context.Context, kind domain.Kind, payload interface{}) (Outcome, error) {
	if !kind.Valid() {
		return Outcome{}, ErrUnknownKind
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Outcome{}, err
	}

	txID, err := e.nextTxID()
	if err != nil {
		return Outcome{}, err
	}
	participants := e.registry.Peers()

	rec := &domain.TransactionRecord{
		TxID:          txID,
		Kind:          kind,
		CoordinatorID: e.selfID,
		Participants:  participants,
		Payload:       raw,
		Status:        domain.StatusPreparing,
		Votes:         map[string]domain.Vote{},
		Acked:         map[string]bool{},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	// Step 1: this write must succeed before any peer is contacted.
	if err := e.store.LogTx(ctx, rec); err != nil {
		return Outcome{}, err
	}

	return e.driveToDecision(ctx, txID, kind, raw, participants)
}

// driveToDecision runs steps 2-6 of spec.md §4.3.1. It is also the resume
// point recovery uses when adopting a PREPARING record (spec.md §4.3.3,
// "resuming from step 2").
func (e *Engine) driveToDecision(ctx context.Context, txID string, kind domain.Kind, payload []byte, participants []string) (Outcome, error) {
	req := domain.PrepareRequest{TxID: txID, Kind: kind, Payload: payload, Participants: participants, Coordinator: e.selfID}

	// Step 2-3: fan out PREPARE, collect votes.
	outcomes := e.fanoutPrepare(ctx, participants, req)

	decision := domain.VoteCommit
	reason := ""
	for _, p := range participants {
		o, ok := outcomes[p]
		if !ok || o.err != nil {
			decision = domain.VoteAbort
			continue
		}
		if p != e.selfID {
			if _, err := e.store.RecordPeerVote(ctx, txID, p, o.resp.Vote); err != nil {
				e.log.WithFields(map[string]interface{}{"tx": txID, "peer": p, "err": err}).
					Warn("failed to record peer vote")
			}
		}
		if o.resp.Vote == domain.VoteAbort {
			decision = domain.VoteAbort
			if reason == "" {
				reason = o.resp.Reason
			}
		}
	}
	// A reason carried by an ABORT vote wins over a missing or failed reply,
	// which may only be a sibling call cancelled by fanoutPrepare.
	if decision == domain.VoteAbort && reason == "" {
		reason = "TIMEOUT"
	}

	newStatus := domain.StatusGlobalCommit
	if decision == domain.VoteAbort {
		newStatus = domain.StatusGlobalAbort
	}

	// Step 4: CAS the decision; adopt whatever recovery already wrote if
	// this coordinator lost the race.
	rec, err := e.store.Decide(ctx, txID, decision, newStatus)
	if err != nil {
		return Outcome{}, err
	}
	decision = rec.Decision
	e.stats.recordDecision(decision == domain.VoteCommit)

	// Step 5-6: deliver DECIDE to every participant and complete the
	// record once all have acknowledged. This runs in the background so a
	// slow/unreachable participant doesn't block the caller past the
	// decision being durable (spec.md §5, client timeouts are independent
	// of transaction timeouts).
	go e.deliverDecision(context.Background(), txID, rec.Kind, rec.Payload, participants, decision)

	e.events.Publish(ctx, DecidedEvent{TxID: txID, Kind: kind, Decision: decision, DecidedAt: time.Now()})

	return Outcome{TxID: txID, Decision: decision, Reason: reason}, nil
}

// deliverDecision sends DECIDE to every participant, retrying a peer that
// hasn't acknowledged yet. A participant that repeatedly fails is left to
// recovery (spec.md §4.3.1 step 5).
func (e *Engine) deliverDecision(ctx context.Context, txID string, kind domain.Kind, payload []byte, participants []string, decision domain.Vote) {
	req := domain.DecideRequest{TxID: txID, Decision: decision}
	for _, p := range participants {
		p := p
		go func() {
			if err := e.sendDecideWithRetry(ctx, p, req); err != nil {
				e.log.WithFields(map[string]interface{}{"tx": txID, "peer": p, "err": err}).
					Warn("giving up delivering DECIDE; recovery will retry")
				return
			}
			if _, err := e.store.MarkAcked(ctx, txID, p); err != nil {
				e.log.WithFields(map[string]interface{}{"tx": txID, "peer": p, "err": err}).
					Warn("failed to record DECIDE ack")
			}
		}()
	}
}

func (e *Engine) sendDecideWithRetry(ctx context.Context, peerID string, req domain.DecideRequest) error {
	if peerID == e.selfID {
		_, err := e.HandleDecide(ctx, req)
		return err
	}
	addr, ok := e.registry.Address(peerID)
	if !ok {
		return ErrPeerUnavailable
	}
	// The peerrpc.Client implementation of Transport owns the actual
	// backoff loop (SPEC_FULL.md §4.2); the engine only needs to call
	// Decide with four times T_decide as the deadline for the whole retry
	// loop and trust that the transport retries transport-level failures.
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.DecideTimeout*4)
	defer cancel()
	_, err := e.transport.Decide(attemptCtx, addr, req)
	return err
}
