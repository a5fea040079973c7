package maintainer

import (
	"sync"
	"sync/atomic"

	"github.com/spooky-finn/depthbridge/domain"
)

const defaultSubscriberBuffer = 128

// Hub fans published order books out to subscribers. A subscriber whose
// channel is full is disconnected and its channel closed.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int64]chan *domain.OrderBook
	seq    atomic.Int64
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[int64]chan *domain.OrderBook),
	}
}

func (h *Hub) Subscribe(buffer int) (int64, <-chan *domain.OrderBook) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	id := h.seq.Add(1)
	ch := make(chan *domain.OrderBook, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch

	return id, ch
}

func (h *Hub) Unsubscribe(id int64) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Broadcast(book *domain.OrderBook) {
	var lagging []int64

	h.mu.RLock()
	for id, ch := range h.subs {
		select {
		case ch <- book:
		default:
			lagging = append(lagging, id)
		}
	}
	h.mu.RUnlock()

	if len(lagging) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range lagging {
		if ch, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
			logger.WithField("subscriber", id).Warn("disconnected lagging subscriber (channel full)")
		}
	}
	h.mu.Unlock()
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Close disconnects every subscriber. Later subscriptions receive a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
