package maintainer

import (
	"testing"
	"time"

	"github.com/spooky-finn/depthbridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book(symbol domain.Symbol, seq uint64) *domain.OrderBook {
	return &domain.OrderBook{Symbol: symbol, LastUpdateID: seq}
}

func waitForBook(t *testing.T, ch <-chan *domain.OrderBook, d time.Duration) *domain.OrderBook {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			return nil
		}
		return b
	case <-time.After(d):
		t.Errorf("timeout waiting for order book")
		return nil
	}
}

func TestHub_BroadcastDeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	_, a := h.Subscribe(4)
	_, b := h.Subscribe(4)

	h.Broadcast(book("BTCUSDT", 1))

	for _, ch := range []<-chan *domain.OrderBook{a, b} {
		got := waitForBook(t, ch, time.Second)
		require.NotNil(t, got)
		assert.Equal(t, uint64(1), got.LastUpdateID)
	}
}

func TestHub_EvictsLaggingSubscriber(t *testing.T) {
	h := NewHub()
	_, slow := h.Subscribe(1)
	_, fast := h.Subscribe(8)

	h.Broadcast(book("BTCUSDT", 1))
	h.Broadcast(book("BTCUSDT", 2))

	assert.Equal(t, 1, h.SubscriberCount())

	got := waitForBook(t, slow, time.Second)
	require.NotNil(t, got)
	assert.Equal(t, uint64(1), got.LastUpdateID)
	assert.Nil(t, waitForBook(t, slow, time.Second), "evicted channel must be closed")

	assert.Equal(t, uint64(1), waitForBook(t, fast, time.Second).LastUpdateID)
	assert.Equal(t, uint64(2), waitForBook(t, fast, time.Second).LastUpdateID)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(0)

	h.Unsubscribe(id)
	h.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	_, before := h.Subscribe(1)
	assert.False(t, h.Closed())

	h.Close()
	assert.True(t, h.Closed())
	h.Close()
	h.Broadcast(book("BTCUSDT", 1))

	_, ok := <-before
	assert.False(t, ok)

	_, after := h.Subscribe(1)
	_, ok = <-after
	assert.False(t, ok)
}
