package maintainer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/depthbridge/domain"
	promclient "github.com/spooky-finn/depthbridge/infrastructure/prometheus"
)

var logger = logrus.WithField("component", "maintainer")

var (
	ErrEngineRunning = errors.New("engine is already running")
	ErrEngineStopped = errors.New("engine is stopped")
	ErrStreamClosed  = errors.New("depth stream closed")
)

type Options struct {
	Symbols []domain.Symbol
	// Depth is the number of levels kept per side.
	Depth int
	// SnapshotLimit is the depth requested from the snapshot source.
	SnapshotLimit    int
	MaxPendingEvents int
	PollInterval     time.Duration
	RetryMin         time.Duration
}

func (o Options) withDefaults() Options {
	if o.Depth <= 0 {
		o.Depth = 10
	}
	if o.SnapshotLimit < o.Depth {
		o.SnapshotLimit = o.Depth
	}
	if o.MaxPendingEvents <= 0 {
		o.MaxPendingEvents = 1000
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Second
	}
	if o.RetryMin <= 0 || o.RetryMin > o.PollInterval {
		o.RetryMin = min(time.Second, o.PollInterval)
	}
	return o
}

// Engine keeps a consistent top-N order book per tracked symbol by reconciling
// snapshots with the depth diff stream.
type Engine struct {
	stream    domain.ProviderStreamAPI
	snapshots domain.ProviderSyncAPI
	validator domain.DepthUpdateValidator
	opts      Options
	metrics   *promclient.Metrics
	storage   *domain.OrderBookStorage
	hub       *Hub

	mu      sync.RWMutex
	workers map[domain.Symbol]*worker
	sub     *domain.Subscription[domain.StreamMessage]
	ctx     context.Context
	running bool
	stopped bool
}

func NewEngine(
	stream domain.ProviderStreamAPI,
	snapshots domain.ProviderSyncAPI,
	validator domain.DepthUpdateValidator,
	opts Options,
	metrics *promclient.Metrics,
) *Engine {
	opts = opts.withDefaults()

	e := &Engine{
		stream:    stream,
		snapshots: snapshots,
		validator: validator,
		opts:      opts,
		metrics:   metrics,
		storage:   domain.NewOrderBookStorage(),
		hub:       NewHub(),
		workers:   make(map[domain.Symbol]*worker),
	}
	for _, symbol := range opts.Symbols {
		e.workers[symbol] = nil
	}

	return e
}

// Run subscribes to the depth stream and maintains every tracked symbol until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	if e.running {
		e.mu.Unlock()
		return ErrEngineRunning
	}

	symbols := e.symbolsLocked()
	sub, err := e.stream.DepthDiffStream(ctx, symbols)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to subscribe to depth stream: %w", err)
	}

	e.running = true
	e.ctx = ctx
	e.sub = sub
	for _, symbol := range symbols {
		e.workers[symbol] = e.startWorker(ctx, symbol)
	}
	e.mu.Unlock()

	logger.WithField("symbols", symbols).Info("engine started")
	err = e.dispatch(ctx, sub.Stream)

	e.mu.Lock()
	e.stopped = true
	workers := make([]*worker, 0, len(e.workers))
	for _, w := range e.workers {
		if w != nil {
			workers = append(workers, w)
		}
	}
	e.mu.Unlock()

	for _, w := range workers {
		w.stop()
	}
	e.hub.Close()
	logger.Info("engine stopped")

	return err
}

// Subscribe starts tracking symbol. Tracking an already tracked symbol is a no-op.
func (e *Engine) Subscribe(symbol domain.Symbol) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	if _, ok := e.workers[symbol]; ok {
		e.mu.Unlock()
		return nil
	}
	if !e.running {
		e.workers[symbol] = nil
		e.mu.Unlock()
		return nil
	}

	e.workers[symbol] = e.startWorker(e.ctx, symbol)
	sub := e.sub
	e.mu.Unlock()

	return sub.Subscribe(symbol)
}

// Unsubscribe stops tracking symbol and frees its state without affecting other symbols.
func (e *Engine) Unsubscribe(symbol domain.Symbol) error {
	e.mu.Lock()
	w, ok := e.workers[symbol]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSymbolNotTracked, symbol)
	}
	delete(e.workers, symbol)
	sub := e.sub
	e.mu.Unlock()

	if w != nil {
		w.stop()
	}
	e.storage.Delete(symbol)
	e.metrics.Forget(symbol.String())
	logger.WithField("symbol", symbol.String()).Info("stopped tracking order book")

	if sub != nil {
		return sub.Unsubscribe(symbol)
	}
	return nil
}

func (e *Engine) IsTracked(symbol domain.Symbol) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.workers[symbol]
	return ok
}

func (e *Engine) Symbols() []domain.Symbol {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.symbolsLocked()
}

func (e *Engine) Status() []SymbolStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]SymbolStatus, 0, len(e.workers))
	for _, symbol := range e.symbolsLocked() {
		if w := e.workers[symbol]; w != nil {
			result = append(result, w.Status())
		} else {
			result = append(result, SymbolStatus{Symbol: symbol, Phase: domain.PhaseAwaitingSnapshot})
		}
	}
	return result
}

// Storage holds the latest published book of every synced symbol.
func (e *Engine) Storage() *domain.OrderBookStorage {
	return e.storage
}

// Updates is the hub every published book is broadcast on.
func (e *Engine) Updates() *Hub {
	return e.hub
}

func (e *Engine) startWorker(ctx context.Context, symbol domain.Symbol) *worker {
	w := e.newWorker(ctx, symbol)
	go w.run()
	return w
}

func (e *Engine) symbolsLocked() []domain.Symbol {
	symbols := make([]domain.Symbol, 0, len(e.workers))
	for symbol := range e.workers {
		symbols = append(symbols, symbol)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })
	return symbols
}

func (e *Engine) workerFor(symbol domain.Symbol) *worker {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workers[symbol]
}

func (e *Engine) activeWorkers() []*worker {
	e.mu.RLock()
	defer e.mu.RUnlock()

	workers := make([]*worker, 0, len(e.workers))
	for _, w := range e.workers {
		if w != nil {
			workers = append(workers, w)
		}
	}
	return workers
}

func (e *Engine) dispatch(ctx context.Context, stream <-chan domain.StreamMessage) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-stream:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrStreamClosed
			}

			switch {
			case msg.Update != nil:
				w := e.workerFor(msg.Update.Symbol)
				if w == nil {
					logger.WithField("symbol", msg.Update.Symbol.String()).Debug("dropping update for untracked symbol")
					continue
				}
				w.send(workerEvent{update: msg.Update})

			case msg.Connection == domain.ConnectionLost:
				logger.Warn("depth stream connection lost, resynchronizing all symbols")
				for _, w := range e.activeWorkers() {
					w.send(workerEvent{reset: domain.ResyncReasonConnectionLost})
				}

			case msg.Connection == domain.ConnectionRestored:
				logger.Info("depth stream connection restored")
				e.metrics.ObserveReconnect()
			}
		}
	}
}
