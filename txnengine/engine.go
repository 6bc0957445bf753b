// Package txnengine is the Transaction Engine: it drives 2PC as coordinator,
// answers 2PC as participant, and runs recovery (spec.md §4.3).
package txnengine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/skirmishlabs/vault/internal/logging"
	"github.com/skirmishlabs/vault/storekeeper"
)

// Engine wires the Coordination Service, Peer Transport, and Peer Registry
// together into the coordinator/participant/recovery trio.
type Engine struct {
	selfID    string
	store     *storekeeper.Store
	transport Transport
	registry  PeerResolver
	catalog   *Catalog
	cfg       Config
	events    EventPublisher

	locks *lockTable
	stats *Stats

	log *logrus.Entry
}

// New builds an Engine. events may be nil, in which case it falls back to
// NoopPublisher; catalog must be non-nil for OPEN_PACK commits, which
// expand the pack template through it.
func New(selfID string, store *storekeeper.Store, transport Transport, registry PeerResolver, catalog *Catalog, cfg Config, events EventPublisher) *Engine {
	if events == nil {
		events = NoopPublisher{}
	}
	return &Engine{
		selfID:    selfID,
		store:     store,
		transport: transport,
		registry:  registry,
		catalog:   catalog,
		cfg:       cfg,
		events:    events,
		locks:     newLockTable(),
		stats:     &Stats{},
		log:       logging.New("txnengine").WithField("peer", selfID),
	}
}

// Stats returns a point-in-time snapshot of this engine's counters.
func (e *Engine) Stats() Snapshot {
	return e.stats.Snapshot()
}

// nextTxID generates a unique, time-ordered, sender-qualified transaction
// id (spec.md §4.3.1 step 1). uuid.NewUUID is RFC 4122 version 1, so the
// low bits already sort close to creation time; prefixing with the peer id
// makes collisions across peers structurally impossible even under clock
// skew.
func (e *Engine) nextTxID() (string, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", e.selfID, id.String()), nil
}
