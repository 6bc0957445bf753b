package txnengine

import (
	"context"
	"sync"

	"github.com/skirmishlabs/vault/domain"
)

type prepareOutcome struct {
	peerID string
	resp   domain.PrepareResponse
	err    error
}

// fanoutPrepare issues PREPARE to every participant in parallel with
// deadline T_prepare (spec.md §4.3.1 step 2). It cancels sibling calls as
// soon as any ABORT vote or error is observed — the optional optimization
// spec.md §9 allows ("cancel siblings on first ABORT vote to shorten
// latency"), grounded on the teacher's goroutine-per-item +
// channel-collection shape in arbnode/sequencer.go's sequenceTransactions.
func (e *Engine) fanoutPrepare(ctx context.Context, participants []string, req domain.PrepareRequest) map[string]prepareOutcome {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PrepareTimeout)
	defer cancel()

	results := make(chan prepareOutcome, len(participants))
	var wg sync.WaitGroup
	for _, p := range participants {
		wg.Add(1)
		go func(peerID string) {
			defer wg.Done()
			resp, err := e.callPrepare(ctx, peerID, req)
			select {
			case results <- prepareOutcome{peerID: peerID, resp: resp, err: err}:
			case <-ctx.Done():
			}
		}(p)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make(map[string]prepareOutcome, len(participants))
	for o := range results {
		outcomes[o.peerID] = o
		if o.err != nil || o.resp.Vote == domain.VoteAbort {
			cancel()
		}
	}
	return outcomes
}

func (e *Engine) callPrepare(ctx context.Context, peerID string, req domain.PrepareRequest) (domain.PrepareResponse, error) {
	if peerID == e.selfID {
		return e.HandlePrepare(ctx, req)
	}
	addr, ok := e.registry.Address(peerID)
	if !ok {
		return domain.PrepareResponse{}, ErrPeerUnavailable
	}
	resp, err := e.transport.Prepare(ctx, addr, req)
	if err != nil {
		return domain.PrepareResponse{}, ErrPeerUnavailable
	}
	return resp, nil
}
