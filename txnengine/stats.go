package txnengine

import (
	"sync/atomic"

	"github.com/skirmishlabs/vault/domain"
)

// Stats is an in-process counter snapshot (SPEC_FULL.md "SUPPLEMENTED
// FEATURES"). It gives tests a queryable source of truth for P1/P2
// conservation checks without re-deriving totals from log lines.
type Stats struct {
	votesCommit       uint64
	votesAbort        uint64
	globalCommits     uint64
	globalAborts      uint64
	recoveryAdoptions uint64
}

func (s *Stats) recordVote(v domain.Vote) {
	if v == domain.VoteCommit {
		atomic.AddUint64(&s.votesCommit, 1)
	} else {
		atomic.AddUint64(&s.votesAbort, 1)
	}
}

func (s *Stats) recordDecision(committed bool) {
	if committed {
		atomic.AddUint64(&s.globalCommits, 1)
	} else {
		atomic.AddUint64(&s.globalAborts, 1)
	}
}

func (s *Stats) recordRecoveryAdoption() {
	atomic.AddUint64(&s.recoveryAdoptions, 1)
}

// Snapshot is a point-in-time, non-atomic-across-fields copy for reporting.
type Snapshot struct {
	VotesCommit       uint64
	VotesAbort        uint64
	GlobalCommits     uint64
	GlobalAborts      uint64
	RecoveryAdoptions uint64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		VotesCommit:       atomic.LoadUint64(&s.votesCommit),
		VotesAbort:        atomic.LoadUint64(&s.votesAbort),
		GlobalCommits:     atomic.LoadUint64(&s.globalCommits),
		GlobalAborts:      atomic.LoadUint64(&s.globalAborts),
		RecoveryAdoptions: atomic.LoadUint64(&s.recoveryAdoptions),
	}
}
