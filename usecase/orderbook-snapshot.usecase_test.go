package usecase

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/depthbridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	tracked map[domain.Symbol]bool
	storage *domain.OrderBookStorage
}

func newFakeTracker(symbols ...domain.Symbol) *fakeTracker {
	tracked := make(map[domain.Symbol]bool)
	for _, s := range symbols {
		tracked[s] = true
	}
	return &fakeTracker{tracked: tracked, storage: domain.NewOrderBookStorage()}
}

func (f *fakeTracker) IsTracked(symbol domain.Symbol) bool { return f.tracked[symbol] }

func (f *fakeTracker) Subscribe(symbol domain.Symbol) error {
	f.tracked[symbol] = true
	return nil
}

func (f *fakeTracker) Storage() *domain.OrderBookStorage { return f.storage }

type fakeSyncAPI struct {
	calls int
	limit int
}

func (f *fakeSyncAPI) OrderBookSnapshot(_ context.Context, symbol domain.Symbol, limit int) (*domain.OrderBookSnapshot, error) {
	f.calls++
	f.limit = limit
	return &domain.OrderBookSnapshot{Source: domain.OrderBookSource_Provider, Symbol: symbol, LastUpdateID: 7}, nil
}

func levels(prices ...int64) []domain.PriceLevel {
	result := make([]domain.PriceLevel, len(prices))
	for i, p := range prices {
		result[i] = domain.PriceLevel{Price: decimal.NewFromInt(p), Quantity: decimal.NewFromInt(1)}
	}
	return result
}

func TestGetOrderBookSnapshot_LocalBook(t *testing.T) {
	tracker := newFakeTracker("BTCUSDT")
	tracker.storage.Add(&domain.OrderBook{
		Symbol:       "BTCUSDT",
		LastUpdateID: 101,
		Bids:         levels(5000, 4999, 4998),
		Asks:         levels(5010, 5011, 5012),
	})
	api := &fakeSyncAPI{}
	uc := NewOrderBookSnapshotUseCase(tracker, api, false)

	snapshot, err := uc.GetOrderBookSnapshot(context.Background(), "BTCUSDT", 2)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderBookSource_LocalOrderBook, snapshot.Source)
	assert.Equal(t, uint64(101), snapshot.LastUpdateID)
	assert.Len(t, snapshot.Bids, 2)
	assert.Len(t, snapshot.Asks, 2)
	assert.Zero(t, api.calls)
}

func TestGetOrderBookSnapshot_ProviderWhileInitializing(t *testing.T) {
	api := &fakeSyncAPI{}
	uc := NewOrderBookSnapshotUseCase(newFakeTracker("BTCUSDT"), api, false)

	snapshot, err := uc.GetOrderBookSnapshot(context.Background(), "BTCUSDT", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderBookSource_Provider, snapshot.Source)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 5, api.limit)
}

func TestGetOrderBookSnapshot_Untracked(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		uc := NewOrderBookSnapshotUseCase(newFakeTracker(), &fakeSyncAPI{}, false)

		_, err := uc.GetOrderBookSnapshot(context.Background(), "XRPUSDT", 5)
		assert.ErrorIs(t, err, domain.ErrSymbolNotTracked)
	})

	t.Run("auto tracked", func(t *testing.T) {
		tracker := newFakeTracker()
		api := &fakeSyncAPI{}
		uc := NewOrderBookSnapshotUseCase(tracker, api, true)

		snapshot, err := uc.GetOrderBookSnapshot(context.Background(), "XRPUSDT", 5)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderBookSource_Provider, snapshot.Source)
		assert.True(t, tracker.IsTracked("XRPUSDT"))
	})
}
