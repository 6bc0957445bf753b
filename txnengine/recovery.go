package txnengine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skirmishlabs/vault/domain"
)

// Recoverer is the background sweeper of spec.md §4.3.3: it scans the
// transaction log for non-terminal records stuck past T_recovery and
// drives each one to a terminal state. Its loop shape is grounded on the
// teacher's CallIteratively pattern (arbnode/sequencer.go's Start:
// "s.CallIteratively(func(ctx) time.Duration { ...; return time.Until(next) })")
// reimplemented locally since the teacher's util/stopwaiter package isn't
// part of this domain's dependency surface.
type Recoverer struct {
	engine *Engine
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecoverer attaches a sweeper to engine. Call Start to begin scanning.
func NewRecoverer(engine *Engine) *Recoverer {
	return &Recoverer{engine: engine}
}

// Start launches the sweeper loop and returns immediately.
func (r *Recoverer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.engine.cfg.RecoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweepOnce(ctx)
			}
		}
	}()
}

// Stop cancels the sweeper and blocks until its loop has exited.
func (r *Recoverer) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Recoverer) sweepOnce(ctx context.Context) {
	e := r.engine
	ids, err := e.store.NonterminalTxIDs(ctx)
	if err != nil {
		e.log.WithField("err", err).Warn("recovery: failed to list nonterminal transactions")
		return
	}
	for _, txID := range ids {
		r.recoverOne(ctx, txID)
	}
}

func (r *Recoverer) recoverOne(ctx context.Context, txID string) {
	e := r.engine
	rec, err := e.store.LoadTx(ctx, txID)
	if err != nil {
		return
	}
	if rec.Status.Terminal() {
		return // index entry is stale; skipped, and left in the index
	}
	if time.Since(rec.UpdatedAt) < e.cfg.RecoveryAge {
		return
	}

	switch rec.Status {
	case domain.StatusPreparing:
		r.recoverPreparing(ctx, rec)
	case domain.StatusGlobalCommit, domain.StatusGlobalAbort:
		r.recoverDecided(ctx, rec)
	}
}

// recoverPreparing implements spec.md §4.3.3's first bullet: any peer may
// adopt the coordinator role by CAS-updating the record, then resuming
// from PREPARE. Each peer keeps its own local record and resolves a
// stalled PREPARING record by re-running PREPARE from it; the T_block_max
// lowest-reachable-peer fallback of spec.md's third bullet is not
// implemented — see DESIGN.md.
func (r *Recoverer) recoverPreparing(ctx context.Context, rec *domain.TransactionRecord) {
	e := r.engine
	adopted, err := e.store.AdoptCoordinator(ctx, rec.TxID, e.selfID)
	if err != nil {
		return
	}
	if adopted.CoordinatorID != e.selfID {
		return // someone else won the CAS
	}
	e.stats.recordRecoveryAdoption()

	var payload []byte
	if len(adopted.Payload) > 0 {
		payload = adopted.Payload
	} else {
		payload, _ = json.Marshal(struct{}{})
	}
	if _, err := e.driveToDecision(ctx, adopted.TxID, adopted.Kind, payload, adopted.Participants); err != nil {
		e.log.WithFields(map[string]interface{}{"tx": rec.TxID, "err": err}).Warn("recovery: failed to drive adopted transaction to decision")
	}
}

// recoverDecided implements spec.md §4.3.3's second bullet: the decision is
// durable, so any peer may complete delivery to participants missing an
// ack.
func (r *Recoverer) recoverDecided(ctx context.Context, rec *domain.TransactionRecord) {
	e := r.engine
	var missing []string
	for _, p := range rec.Participants {
		if !rec.Acked[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return
	}
	e.deliverDecision(ctx, rec.TxID, rec.Kind, rec.Payload, missing, rec.Decision)
}
