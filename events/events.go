// Package events is a concrete notification substrate for the Transaction
// Engine's EventPublisher (spec.md §9, "a small set of domain events to
// whatever notification substrate the surrounding system provides"). This
// core ships a structured-log publisher; a real deployment can swap in a
// pub/sub-backed one without touching txnengine.
package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/skirmishlabs/vault/internal/logging"
	"github.com/skirmishlabs/vault/txnengine"
)

// LogPublisher emits each DecidedEvent as a structured log line. It never
// returns an error to the caller: per spec.md §9 a lost event is not a
// correctness violation, so there is nothing for txnengine to handle.
type LogPublisher struct {
	log *logrus.Entry
}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{log: logging.New("events")}
}

func (p *LogPublisher) Publish(_ context.Context, event txnengine.DecidedEvent) {
	p.log.WithFields(logrus.Fields{
		"tx":        event.TxID,
		"kind":      event.Kind,
		"decision":  event.Decision,
		"decidedAt": event.DecidedAt,
	}).Info("transaction decided")
}
