package txnengine

import (
	"context"
	"time"

	"github.com/skirmishlabs/vault/domain"
)

// DecidedEvent is the one domain event the core publishes (spec.md §9):
// "a small set of domain events (transaction-decided) to whatever
// notification substrate the surrounding system provides."
type DecidedEvent struct {
	TxID      string
	Kind      domain.Kind
	Decision  domain.Vote
	DecidedAt time.Time
}

// EventPublisher is deliberately at-least-once and decoupled from
// transaction completion: a failed Publish never fails the transaction
// (spec.md §9, "a lost event is not a correctness violation").
type EventPublisher interface {
	Publish(ctx context.Context, event DecidedEvent)
}

// NoopPublisher drops every event. It is the default when the surrounding
// system hasn't wired a notification substrate.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, DecidedEvent) {}
