package domain_test

import (
	"sync"
	"testing"

	"github.com/spooky-finn/depthbridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBookStorage(t *testing.T) {
	storage := domain.NewOrderBookStorage()

	_, err := storage.Get("BTCUSDT")
	assert.ErrorIs(t, err, domain.ErrOrderBookNotFound)

	storage.Add(&domain.OrderBook{Symbol: "ETHUSDT", LastUpdateID: 1})
	storage.Add(&domain.OrderBook{Symbol: "BTCUSDT", LastUpdateID: 2})
	storage.Add(&domain.OrderBook{Symbol: "BTCUSDT", LastUpdateID: 3})

	ob, err := storage.Get("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ob.LastUpdateID)
	assert.Equal(t, 2, storage.OrderBookCount())
	assert.Equal(t, []domain.Symbol{"BTCUSDT", "ETHUSDT"}, storage.Symbols())

	storage.Delete("BTCUSDT")
	_, err = storage.Get("BTCUSDT")
	assert.ErrorIs(t, err, domain.ErrOrderBookNotFound)
}

func TestOrderBookStorage_Concurrent(t *testing.T) {
	storage := domain.NewOrderBookStorage()
	wg := sync.WaitGroup{}

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				storage.Add(&domain.OrderBook{Symbol: "BTCUSDT", LastUpdateID: uint64(j)})
				_, _ = storage.Get("BTCUSDT")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, storage.OrderBookCount())
}
