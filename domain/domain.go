// Package domain holds the data types shared across the vault: the static
// card/pack reference data and the wire payloads the two transaction kinds
// carry. Nothing here touches the store or the network.
package domain

import "fmt"

// Rank is the rock-paper-scissors affinity of a card.
type Rank string

const (
	RankRock     Rank = "rock"
	RankPaper    Rank = "paper"
	RankScissors Rank = "scissors"
)

// Rarity buckets a card for drop-rate purposes. The core does not compute
// drop rates; it only needs templates to expand deterministically.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

// Card is immutable reference data. The vault never mutates a Card; it only
// moves card IDs between inventories.
type Card struct {
	ID     string `json:"id"`
	Rank   Rank   `json:"rank"`
	Rarity Rarity `json:"rarity"`
}

// PackTemplate expands deterministically into a fixed set of card IDs. Real
// deployments seed this table from a catalog service; the core only needs
// the expansion function.
type PackTemplate struct {
	ID    string   `json:"id"`
	Cards []string `json:"cards"`
}

// Kind tags the two transaction payload shapes the core understands.
type Kind string

const (
	KindOpenPack   Kind = "OPEN_PACK"
	KindTradeCards Kind = "TRADE_CARDS"
)

func (k Kind) Valid() bool {
	switch k {
	case KindOpenPack, KindTradeCards:
		return true
	default:
		return false
	}
}

// OpenPackPayload is the PREPARE payload for an OPEN_PACK transaction.
type OpenPackPayload struct {
	PlayerID       string `json:"playerId"`
	PackTemplateID string `json:"packTemplateId"`
}

// TradeCardsPayload is the PREPARE payload for a TRADE_CARDS transaction.
type TradeCardsPayload struct {
	PlayerA    string   `json:"playerA"`
	CardsAOut  []string `json:"cardsAOut"`
	PlayerB    string   `json:"playerB"`
	CardsBOut  []string `json:"cardsBOut"`
}

func (p TradeCardsPayload) Validate() error {
	if p.PlayerA == "" || p.PlayerB == "" {
		return fmt.Errorf("trade payload: both players must be set")
	}
	if p.PlayerA == p.PlayerB {
		return fmt.Errorf("trade payload: a player cannot trade with itself")
	}
	if len(p.CardsAOut) == 0 && len(p.CardsBOut) == 0 {
		return fmt.Errorf("trade payload: at least one side must offer a card")
	}
	return nil
}
