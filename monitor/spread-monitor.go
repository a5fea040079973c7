package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/depthbridge/domain"
	"github.com/spooky-finn/depthbridge/helpers"
	promclient "github.com/spooky-finn/depthbridge/infrastructure/prometheus"
)

var logger = logrus.WithField("component", "monitor")

const (
	feedBuffer       = 1024
	resubscribeDelay = 100 * time.Millisecond
)

// ArbitrageSignal reports a best bid exceeding the best ask by more than the fee threshold.
type ArbitrageSignal struct {
	ID           uuid.UUID       `json:"id"`
	Symbol       domain.Symbol   `json:"symbol"`
	BestBid      decimal.Decimal `json:"bestBid"`
	BestAsk      decimal.Decimal `json:"bestAsk"`
	Spread       decimal.Decimal `json:"spread"`
	LastUpdateID uint64          `json:"lastUpdateId"`
	DetectedAt   time.Time       `json:"detectedAt"`
}

type SignalSink interface {
	Publish(ctx context.Context, signal *ArbitrageSignal) error
}

// BookFeed delivers published order books.
type BookFeed interface {
	Subscribe(buffer int) (int64, <-chan *domain.OrderBook)
	Unsubscribe(id int64)
	Closed() bool
}

type SpreadMonitor struct {
	threshold decimal.Decimal
	sinks     []SignalSink
	metrics   *promclient.Metrics
	now       func() time.Time
}

func NewSpreadMonitor(threshold decimal.Decimal, metrics *promclient.Metrics, sinks ...SignalSink) *SpreadMonitor {
	return &SpreadMonitor{
		threshold: threshold,
		sinks:     sinks,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Evaluate computes the spread of book and returns a signal when it exceeds the threshold.
func (m *SpreadMonitor) Evaluate(book *domain.OrderBook) (*ArbitrageSignal, bool) {
	bestBid, ok := book.BestBid()
	if !ok {
		return nil, false
	}
	bestAsk, ok := book.BestAsk()
	if !ok {
		return nil, false
	}

	spread := bestBid.Sub(bestAsk)
	if !spread.GreaterThan(m.threshold) {
		return nil, false
	}

	return &ArbitrageSignal{
		ID:           uuid.New(),
		Symbol:       book.Symbol,
		BestBid:      bestBid,
		BestAsk:      bestAsk,
		Spread:       spread,
		LastUpdateID: book.LastUpdateID,
		DetectedAt:   m.now(),
	}, true
}

// Run evaluates every book published on feed until ctx is done.
// An evicted subscription is renewed.
func (m *SpreadMonitor) Run(ctx context.Context, feed BookFeed) {
	for ctx.Err() == nil {
		id, books := feed.Subscribe(feedBuffer)
		m.consume(ctx, books)
		feed.Unsubscribe(id)
		if feed.Closed() {
			logger.Info("order book feed closed, stopping")
			return
		}

		if helpers.SleepContext(ctx, resubscribeDelay) != nil {
			return
		}
		logger.Warn("dropped from order book feed, resubscribing")
	}
}

func (m *SpreadMonitor) consume(ctx context.Context, books <-chan *domain.OrderBook) {
	for {
		select {
		case <-ctx.Done():
			return
		case book, ok := <-books:
			if !ok {
				return
			}
			if signal, ok := m.Evaluate(book); ok {
				m.emit(ctx, signal)
			}
		}
	}
}

func (m *SpreadMonitor) emit(ctx context.Context, signal *ArbitrageSignal) {
	m.metrics.ObserveSignal(signal.Symbol.String())

	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, signal); err != nil {
			logger.WithError(err).WithField("symbol", signal.Symbol.String()).Error("failed to publish arbitrage signal")
		}
	}
}
