package maintainer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/depthbridge/config"
	"github.com/spooky-finn/depthbridge/domain"
	promclient "github.com/spooky-finn/depthbridge/infrastructure/prometheus"
)

const inboxSize = 256

// workerEvent is either a depth update or a forced reset.
type workerEvent struct {
	update *domain.OrderBookUpdate
	reset  domain.ResyncReason
}

type snapshotResult struct {
	epoch    uint64
	snapshot *domain.OrderBookSnapshot
	backstop bool
}

// SymbolStatus is a point-in-time view of one symbol's synchronization.
type SymbolStatus struct {
	Symbol       domain.Symbol    `json:"symbol"`
	Phase        domain.SyncPhase `json:"phase"`
	Epoch        uint64           `json:"epoch"`
	LastUpdateID uint64           `json:"lastUpdateId"`
	Pending      int              `json:"pending"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// worker owns the SyncState of one symbol. Updates, resets and snapshot results
// are serialized through its run loop.
type worker struct {
	symbol    domain.Symbol
	state     *domain.SyncState
	snapshots domain.ProviderSyncAPI
	storage   *domain.OrderBookStorage
	hub       *Hub
	metrics   *promclient.Metrics
	opts      Options
	log       *logrus.Entry

	inbox    chan workerEvent
	results  chan snapshotResult
	fetchReq chan uint64
	epoch    atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.RWMutex
	status   SymbolStatus

	// backstop snapshots ahead of the book with no update received in between
	aheadBackstops int
}

func (e *Engine) newWorker(ctx context.Context, symbol domain.Symbol) *worker {
	ctx, cancel := context.WithCancel(ctx)

	return &worker{
		symbol:    symbol,
		state:     domain.NewSyncState(symbol, e.opts.Depth, e.opts.MaxPendingEvents, e.validator),
		snapshots: e.snapshots,
		storage:   e.storage,
		hub:       e.hub,
		metrics:   e.metrics,
		opts:      e.opts,
		log:       logger.WithField("symbol", symbol.String()),
		inbox:     make(chan workerEvent, inboxSize),
		results:   make(chan snapshotResult),
		fetchReq:  make(chan uint64, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    SymbolStatus{Symbol: symbol, Phase: domain.PhaseAwaitingSnapshot},
	}
}

func (w *worker) run() {
	defer close(w.done)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.fetchLoop()
	}()
	defer wg.Wait()

	w.log.Info("tracking order book")
	w.requestSnapshot()
	w.updateStatus()

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev := <-w.inbox:
			if ev.update != nil {
				w.aheadBackstops = 0
				outcome := w.state.OnUpdate(ev.update)
				if config.DebugMode {
					w.log.WithFields(logrus.Fields{
						"U":       ev.update.FirstUpdateID,
						"u":       ev.update.LastUpdateID,
						"phase":   w.state.Phase().String(),
						"publish": outcome.Publish,
					}).Debug("depth update processed")
				}
				w.handle(outcome)
			} else {
				w.handle(w.state.Reset(ev.reset))
			}
		case res := <-w.results:
			w.onSnapshot(res)
		}
	}
}

func (w *worker) stop() {
	w.cancel()
	<-w.done
}

// send queues ev for the worker. It gives up when the worker is stopped.
func (w *worker) send(ev workerEvent) bool {
	select {
	case w.inbox <- ev:
		return true
	case <-w.ctx.Done():
		return false
	}
}

func (w *worker) onSnapshot(res snapshotResult) {
	if !res.backstop {
		w.handle(w.state.OnSnapshot(res.epoch, res.snapshot))
		return
	}

	switch w.state.Phase() {
	case domain.PhaseSynced:
		// A synced book only leaves Synced on a gap or a lost connection.
		if res.snapshot.LastUpdateID <= w.state.LastAppliedSeq() {
			w.aheadBackstops = 0
			return
		}
		w.aheadBackstops++
		if w.aheadBackstops >= 2 {
			w.log.WithFields(logrus.Fields{
				"lastUpdateId": w.state.LastAppliedSeq(),
				"snapshotId":   res.snapshot.LastUpdateID,
			}).Warn("depth stream looks stalled")
		}
	case domain.PhaseAwaitingSnapshot:
		w.handle(w.state.OnSnapshot(res.epoch, res.snapshot))
	}
}

func (w *worker) handle(outcome domain.SyncOutcome) {
	if outcome.Resync {
		w.storage.Delete(w.symbol)
		w.log.WithFields(logrus.Fields{
			"reason": outcome.Reason,
			"epoch":  w.state.Epoch(),
		}).Warn("order book resync")
		w.metrics.ObserveResync(w.symbol.String(), string(outcome.Reason))
	}

	w.epoch.Store(w.state.Epoch())

	if outcome.NeedSnapshot {
		w.requestSnapshot()
	}

	if outcome.Publish {
		book := w.state.OrderBook()
		w.storage.Add(book)
		w.hub.Broadcast(book)
		w.metrics.ObserveApplied(w.symbol.String())
	}

	w.updateStatus()
}

// requestSnapshot asks the fetcher for a snapshot of the current epoch,
// replacing any request it has not picked up yet.
func (w *worker) requestSnapshot() {
	epoch := w.state.Epoch()
	for {
		select {
		case w.fetchReq <- epoch:
			return
		default:
		}
		select {
		case <-w.fetchReq:
		default:
		}
	}
}

func (w *worker) updateStatus() {
	phase := w.state.Phase()
	pending := w.state.Pending()

	w.statusMu.Lock()
	if phase == domain.PhaseSynced && w.status.Phase != domain.PhaseSynced {
		w.log.WithField("lastUpdateId", w.state.LastAppliedSeq()).Info("order book synced")
	}
	w.status = SymbolStatus{
		Symbol:       w.symbol,
		Phase:        phase,
		Epoch:        w.state.Epoch(),
		LastUpdateID: w.state.LastAppliedSeq(),
		Pending:      pending,
		UpdatedAt:    time.Now(),
	}
	w.statusMu.Unlock()

	w.metrics.SetPhase(w.symbol.String(), int(phase))
	w.metrics.SetPending(w.symbol.String(), pending)
}

func (w *worker) Status() SymbolStatus {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()
	return w.status
}

// fetchLoop serves on-demand snapshot requests and issues a backstop fetch every poll interval.
func (w *worker) fetchLoop() {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case epoch := <-w.fetchReq:
			w.fetchWithRetry(epoch)
			ticker.Reset(w.opts.PollInterval)
		case <-ticker.C:
			snapshot, err := w.fetch()
			if err != nil {
				w.log.WithError(err).Debug("backstop snapshot fetch failed")
				continue
			}
			w.deliver(snapshotResult{epoch: w.epoch.Load(), snapshot: snapshot, backstop: true})
		}
	}
}

// fetchWithRetry retries until a snapshot is delivered or the worker stops.
// Delays grow from RetryMin up to the poll interval.
func (w *worker) fetchWithRetry(epoch uint64) {
	b := &backoff.Backoff{
		Min:    w.opts.RetryMin,
		Max:    w.opts.PollInterval,
		Factor: 2,
		Jitter: true,
	}

	for {
		snapshot, err := w.fetch()
		if err == nil {
			w.deliver(snapshotResult{epoch: epoch, snapshot: snapshot})
			return
		}
		if w.ctx.Err() != nil {
			return
		}

		delay := b.Duration()
		w.log.WithError(err).Warnf("snapshot fetch failed, retrying in %s", delay)

		timer := time.NewTimer(delay)
		select {
		case <-w.ctx.Done():
			timer.Stop()
			return
		case newer := <-w.fetchReq:
			timer.Stop()
			epoch = newer
		case <-timer.C:
		}
	}
}

func (w *worker) fetch() (*domain.OrderBookSnapshot, error) {
	snapshot, err := w.snapshots.OrderBookSnapshot(w.ctx, w.symbol, w.opts.SnapshotLimit)
	if err == nil && snapshot.Symbol != "" && snapshot.Symbol != w.symbol {
		err = &domain.MalformedResponseError{Symbol: w.symbol, Reason: "snapshot for " + snapshot.Symbol.String()}
	}

	w.metrics.ObserveSnapshotFetch(w.symbol.String(), fetchResult(err))
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (w *worker) deliver(res snapshotResult) {
	select {
	case w.results <- res:
	case <-w.ctx.Done():
	}
}

func fetchResult(err error) string {
	var transient *domain.TransientFetchError
	var malformed *domain.MalformedResponseError

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &transient):
		return "transient"
	case errors.As(err, &malformed):
		return "malformed"
	default:
		return "error"
	}
}
