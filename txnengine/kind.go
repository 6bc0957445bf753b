package txnengine

import (
	"context"
	"encoding/json"

	"github.com/skirmishlabs/vault/domain"
	"github.com/skirmishlabs/vault/storekeeper"
)

// kindHandler is the small interface spec.md §9 calls for: "[p]olymorphism
// over the participant capability set {PREPARE, DECIDE, STATUS} is
// expressed as a small interface with two implementations (one per
// transaction kind) selected by kind." PREPARE and the two DECIDE
// directions (commit effect, abort rollback) are the only kind-specific
// behavior; STATUS never touches kind-specific state.
type kindHandler interface {
	name() domain.Kind
	prepare(ctx context.Context, store *storekeeper.Store, txID string, payload []byte) (domain.Vote, string, error)
	commit(ctx context.Context, store *storekeeper.Store, txID string, payload []byte) error
	abort(ctx context.Context, store *storekeeper.Store, txID string, payload []byte) error
}

func handlerFor(kind domain.Kind, catalog *Catalog) (kindHandler, error) {
	switch kind {
	case domain.KindOpenPack:
		return openPackKind{catalog: catalog}, nil
	case domain.KindTradeCards:
		return tradeCardsKind{}, nil
	default:
		return nil, ErrUnknownKind
	}
}

type openPackKind struct {
	catalog *Catalog
}

func (openPackKind) name() domain.Kind { return domain.KindOpenPack }

func (k openPackKind) prepare(ctx context.Context, store *storekeeper.Store, txID string, payload []byte) (domain.Vote, string, error) {
	var p domain.OpenPackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.VoteAbort, "", err
	}
	result, err := store.ReservePack(ctx, txID, p.PlayerID, p.PackTemplateID)
	if err != nil && result != storekeeper.OutOfStock {
		return domain.VoteAbort, "", err
	}
	switch result {
	case storekeeper.Reserved:
		return domain.VoteCommit, "", nil
	case storekeeper.OutOfStock:
		return domain.VoteAbort, "OUT_OF_STOCK", nil
	default:
		return domain.VoteAbort, "CONFLICT", nil
	}
}

func (k openPackKind) commit(ctx context.Context, store *storekeeper.Store, txID string, payload []byte) error {
	var p domain.OpenPackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	cards, err := k.catalog.Expand(p.PackTemplateID)
	if err != nil {
		return err
	}
	return store.MaterializePack(ctx, txID, p.PlayerID, cards)
}

func (openPackKind) abort(ctx context.Context, store *storekeeper.Store, txID string, payload []byte) error {
	return store.ReleasePack(ctx, txID)
}

type tradeCardsKind struct{}

func (tradeCardsKind) name() domain.Kind { return domain.KindTradeCards }

func (tradeCardsKind) prepare(ctx context.Context, store *storekeeper.Store, txID string, payload []byte) (domain.Vote, string, error) {
	var p domain.TradeCardsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.VoteAbort, "", err
	}
	if err := p.Validate(); err != nil {
		return domain.VoteAbort, "INVALID_PAYLOAD", nil
	}
	result, err := store.VerifyAndSwap(ctx, txID, p.PlayerA, p.CardsAOut, p.PlayerB, p.CardsBOut)
	if err != nil && result != storekeeper.MissingCards {
		return domain.VoteAbort, "", err
	}
	switch result {
	case storekeeper.Prepared:
		return domain.VoteCommit, "", nil
	case storekeeper.MissingCards:
		return domain.VoteAbort, "MISSING_CARDS", nil
	default:
		return domain.VoteAbort, "CONFLICT", nil
	}
}

func (tradeCardsKind) commit(ctx context.Context, store *storekeeper.Store, txID string, payload []byte) error {
	return store.ApplySwap(ctx, txID)
}

func (tradeCardsKind) abort(ctx context.Context, store *storekeeper.Store, txID string, payload []byte) error {
	return store.CancelSwap(ctx, txID)
}
