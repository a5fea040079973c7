package domain

import (
	"sort"
	"sync"
)

// OrderBookStorage holds the latest published book per symbol.
type OrderBookStorage struct {
	mu      sync.RWMutex
	storage map[Symbol]*OrderBook
}

func NewOrderBookStorage() *OrderBookStorage {
	return &OrderBookStorage{
		storage: make(map[Symbol]*OrderBook),
	}
}

func (o *OrderBookStorage) Add(orderBook *OrderBook) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.storage[orderBook.Symbol] = orderBook
}

func (o *OrderBookStorage) Get(symbol Symbol) (*OrderBook, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	orderBook, ok := o.storage[symbol]
	if !ok {
		return nil, ErrOrderBookNotFound
	}

	return orderBook, nil
}

func (o *OrderBookStorage) Delete(symbol Symbol) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.storage, symbol)
}

func (o *OrderBookStorage) Symbols() []Symbol {
	o.mu.RLock()
	defer o.mu.RUnlock()

	symbols := make([]Symbol, 0, len(o.storage))
	for symbol := range o.storage {
		symbols = append(symbols, symbol)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	return symbols
}

func (o *OrderBookStorage) OrderBookCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return len(o.storage)
}
