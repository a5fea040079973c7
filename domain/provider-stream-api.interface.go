package domain

import "context"

type ConnectionEvent int

const (
	ConnectionLost ConnectionEvent = iota + 1
	ConnectionRestored
)

func (e ConnectionEvent) String() string {
	switch e {
	case ConnectionLost:
		return "connection_lost"
	case ConnectionRestored:
		return "connection_restored"
	default:
		return "none"
	}
}

// StreamMessage carries either a depth update or a connection event, in arrival order.
type StreamMessage struct {
	Update     *OrderBookUpdate
	Connection ConnectionEvent
}

type Subscription[T any] struct {
	Stream      <-chan T
	Subscribe   func(symbols ...Symbol) error
	Unsubscribe func(symbols ...Symbol) error
}

// ProviderSyncAPI pulls an authoritative order book snapshot. Safe for concurrent use.
type ProviderSyncAPI interface {
	OrderBookSnapshot(ctx context.Context, symbol Symbol, limit int) (*OrderBookSnapshot, error)
}

// ProviderStreamAPI produces depth diffs for a set of symbols until ctx is done,
// reconnecting transparently and reporting outages as connection events.
type ProviderStreamAPI interface {
	DepthDiffStream(ctx context.Context, symbols []Symbol) (*Subscription[StreamMessage], error)
}
