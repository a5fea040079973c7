package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderBookSource string

const (
	OrderBookSource_Provider       OrderBookSource = "Provider"
	OrderBookSource_LocalOrderBook OrderBookSource = "LocalOrderBook"
)

// OrderBookSnapshot is an authoritative book state tagged with the last applied sequence id.
type OrderBookSnapshot struct {
	Source       OrderBookSource `json:"source"`
	Symbol       Symbol          `json:"symbol"`
	LastUpdateID uint64          `json:"lastUpdateId"`
	Bids         []PriceLevel    `json:"bids"`
	Asks         []PriceLevel    `json:"asks"`
}

// OrderBookUpdate is a depth diff covering sequence ids FirstUpdateID..LastUpdateID.
type OrderBookUpdate struct {
	Symbol        Symbol
	FirstUpdateID uint64
	LastUpdateID  uint64
	Bids          []PriceLevel
	Asks          []PriceLevel
}

func NewOrderBookUpdate(symbol Symbol, bids, asks []PriceLevel, firstUpdateID, lastUpdateID uint64) *OrderBookUpdate {
	return &OrderBookUpdate{
		Symbol:        symbol,
		FirstUpdateID: firstUpdateID,
		LastUpdateID:  lastUpdateID,
		Bids:          bids,
		Asks:          asks,
	}
}

// OrderBook is a published, immutable top-N view of a synced book.
// Holders must not modify Bids or Asks.
type OrderBook struct {
	Symbol       Symbol       `json:"symbol"`
	LastUpdateID uint64       `json:"lastUpdateId"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(ob.Bids) == 0 {
		return decimal.Decimal{}, false
	}
	return ob.Bids[0].Price, true
}

func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(ob.Asks) == 0 {
		return decimal.Decimal{}, false
	}
	return ob.Asks[0].Price, true
}

func (ob *OrderBook) TakeSnapshot(limit int) *OrderBookSnapshot {
	bids := make([]PriceLevel, len(ob.Bids))
	asks := make([]PriceLevel, len(ob.Asks))

	copy(bids, ob.Bids)
	copy(asks, ob.Asks)

	return &OrderBookSnapshot{
		Source:       OrderBookSource_LocalOrderBook,
		Symbol:       ob.Symbol,
		LastUpdateID: ob.LastUpdateID,
		Bids:         limitDepth(bids, limit),
		Asks:         limitDepth(asks, limit),
	}
}

func limitDepth(depth []PriceLevel, limit int) []PriceLevel {
	if limit > 0 && len(depth) > limit {
		return depth[:limit]
	}

	return depth
}
