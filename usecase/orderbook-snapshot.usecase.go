package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/depthbridge/domain"
)

var logger = logrus.WithField("component", "orderbook-snapshot-usecase")

// OrderBookTracker is the part of the engine the use case relies on.
type OrderBookTracker interface {
	IsTracked(symbol domain.Symbol) bool
	Subscribe(symbol domain.Symbol) error
	Storage() *domain.OrderBookStorage
}

type OrderBookSnapshotUseCase struct {
	tracker   OrderBookTracker
	syncAPI   domain.ProviderSyncAPI
	autoTrack bool
}

// NewOrderBookSnapshotUseCase builds the use case. With autoTrack, a request for
// an untracked symbol starts tracking it and is answered by the provider meanwhile.
func NewOrderBookSnapshotUseCase(
	tracker OrderBookTracker,
	syncAPI domain.ProviderSyncAPI,
	autoTrack bool,
) *OrderBookSnapshotUseCase {
	return &OrderBookSnapshotUseCase{
		tracker:   tracker,
		syncAPI:   syncAPI,
		autoTrack: autoTrack,
	}
}

// GetOrderBookSnapshot returns the snapshot of the local synced order book or,
// while it is initializing, the provider's snapshot.
func (o *OrderBookSnapshotUseCase) GetOrderBookSnapshot(
	ctx context.Context, symbol domain.Symbol, limit int,
) (*domain.OrderBookSnapshot, error) {
	if !o.tracker.IsTracked(symbol) {
		if !o.autoTrack {
			return nil, fmt.Errorf("%w: %s", domain.ErrSymbolNotTracked, symbol)
		}
		if err := o.tracker.Subscribe(symbol); err != nil {
			return nil, fmt.Errorf("failed to track %s: %w", symbol, err)
		}
		logger.WithField("symbol", symbol.String()).Info("started tracking on request")
	}

	orderbook, err := o.tracker.Storage().Get(symbol)
	if err == nil {
		return orderbook.TakeSnapshot(limit), nil
	}
	if !errors.Is(err, domain.ErrOrderBookNotFound) {
		return nil, err
	}

	logger.WithField("symbol", symbol.String()).Debug("orderbook is initializing, provider snapshot returned")
	return o.syncAPI.OrderBookSnapshot(ctx, symbol, limit)
}
