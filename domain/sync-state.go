package domain

import (
	"errors"
	"time"

	"github.com/gammazero/deque"
)

type SyncPhase int

const (
	PhaseAwaitingSnapshot SyncPhase = iota
	PhaseBuffering
	PhaseSynced
)

func (p SyncPhase) String() string {
	switch p {
	case PhaseAwaitingSnapshot:
		return "AwaitingSnapshot"
	case PhaseBuffering:
		return "Buffering"
	case PhaseSynced:
		return "Synced"
	default:
		return "Unknown"
	}
}

func (p SyncPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type ResyncReason string

const (
	ResyncReasonGap            ResyncReason = "gap"
	ResyncReasonBufferOverflow ResyncReason = "buffer_overflow"
	ResyncReasonConnectionLost ResyncReason = "connection_lost"
	ResyncReasonSnapshotBehind ResyncReason = "snapshot_behind"
)

// SyncOutcome tells the owner of a SyncState what to do after an input was processed.
type SyncOutcome struct {
	// Publish is set when the book changed and is consistent.
	Publish bool
	// NeedSnapshot is set when a snapshot for the current epoch has to be fetched.
	NeedSnapshot bool
	// Resync is set when the book state was discarded.
	Resync bool
	Reason ResyncReason
}

// SyncState reconciles snapshots and depth diffs of one symbol.
// It is not safe for concurrent use; a single owner drives it.
type SyncState struct {
	symbol     Symbol
	validator  DepthUpdateValidator
	maxPending int

	phase          SyncPhase
	epoch          uint64
	snapshotSeq    uint64
	lastAppliedSeq uint64
	pending        deque.Deque[*OrderBookUpdate]

	bids      *BookSide
	asks      *BookSide
	updatedAt time.Time
}

func NewSyncState(symbol Symbol, depth, maxPending int, validator DepthUpdateValidator) *SyncState {
	return &SyncState{
		symbol:     symbol,
		validator:  validator,
		maxPending: maxPending,
		phase:      PhaseAwaitingSnapshot,
		bids:       NewBookSide(SideBid, depth),
		asks:       NewBookSide(SideAsk, depth),
	}
}

func (s *SyncState) Symbol() Symbol         { return s.symbol }
func (s *SyncState) Phase() SyncPhase       { return s.phase }
func (s *SyncState) Epoch() uint64          { return s.epoch }
func (s *SyncState) Pending() int           { return s.pending.Len() }
func (s *SyncState) LastAppliedSeq() uint64 { return s.lastAppliedSeq }

// OnUpdate processes a depth diff received from the stream.
func (s *SyncState) OnUpdate(update *OrderBookUpdate) SyncOutcome {
	switch s.phase {
	case PhaseSynced:
		return s.applyNext(update)
	case PhaseBuffering:
		if s.buffer(update) {
			return s.resync(ResyncReasonBufferOverflow)
		}
		return s.drain()
	default:
		if s.buffer(update) {
			return s.resync(ResyncReasonBufferOverflow)
		}
		return SyncOutcome{}
	}
}

// OnSnapshot installs a snapshot requested for epoch. Snapshots of older epochs and
// snapshots arriving outside AwaitingSnapshot are ignored.
func (s *SyncState) OnSnapshot(epoch uint64, snapshot *OrderBookSnapshot) SyncOutcome {
	if epoch != s.epoch || s.phase != PhaseAwaitingSnapshot {
		return SyncOutcome{}
	}

	s.bids.Reset()
	s.asks.Reset()
	s.bids.Apply(snapshot.Bids)
	s.asks.Apply(snapshot.Asks)

	s.snapshotSeq = snapshot.LastUpdateID
	s.lastAppliedSeq = snapshot.LastUpdateID
	s.updatedAt = time.Now()
	s.phase = PhaseBuffering

	return s.drain()
}

// Reset discards the book and every buffered update and starts a new epoch.
func (s *SyncState) Reset(reason ResyncReason) SyncOutcome {
	s.pending.Clear()
	return s.resync(reason)
}

// OrderBook returns an immutable copy of the current book.
func (s *SyncState) OrderBook() *OrderBook {
	return &OrderBook{
		Symbol:       s.symbol,
		LastUpdateID: s.lastAppliedSeq,
		Bids:         s.bids.Levels(),
		Asks:         s.asks.Levels(),
		UpdatedAt:    s.updatedAt,
	}
}

func (s *SyncState) applyNext(update *OrderBookUpdate) SyncOutcome {
	err := s.validator.IsValidUpd(update, s.lastAppliedSeq)
	switch {
	case err == nil:
		s.apply(update)
		return SyncOutcome{Publish: true}
	case errors.Is(err, ErrOrderBookUpdateIsOutdated):
		return SyncOutcome{}
	default:
		s.pending.Clear()
		s.pending.PushBack(update)
		return s.resync(ResyncReasonGap)
	}
}

// drain applies buffered updates once a snapshot is installed.
func (s *SyncState) drain() SyncOutcome {
	bridged := false

	for s.pending.Len() > 0 {
		update := s.pending.PopFront()

		var err error
		if bridged {
			err = s.validator.IsValidUpd(update, s.lastAppliedSeq)
		} else {
			err = s.validator.IsValidFirstUpd(update, s.snapshotSeq)
		}

		switch {
		case err == nil:
			s.apply(update)
			bridged = true
		case errors.Is(err, ErrOrderBookUpdateIsOutdated):
			continue
		case bridged:
			s.pending.PushFront(update)
			return s.resync(ResyncReasonGap)
		default:
			// The feed has moved past the snapshot. Later diffs start even
			// further ahead, so no buffered update can bridge it any more.
			s.pending.PushFront(update)
			return s.resync(ResyncReasonSnapshotBehind)
		}
	}

	if !bridged {
		return SyncOutcome{}
	}

	s.phase = PhaseSynced
	return SyncOutcome{Publish: true}
}

// buffer appends update and reports whether the oldest updates had to be dropped.
func (s *SyncState) buffer(update *OrderBookUpdate) bool {
	s.pending.PushBack(update)
	if s.maxPending <= 0 || s.pending.Len() <= s.maxPending {
		return false
	}

	for s.pending.Len() > s.maxPending {
		s.pending.PopFront()
	}
	return true
}

func (s *SyncState) apply(update *OrderBookUpdate) {
	s.bids.Apply(update.Bids)
	s.asks.Apply(update.Asks)
	s.lastAppliedSeq = update.LastUpdateID
	s.updatedAt = time.Now()
}

func (s *SyncState) resync(reason ResyncReason) SyncOutcome {
	s.phase = PhaseAwaitingSnapshot
	s.epoch++
	s.snapshotSeq = 0
	s.lastAppliedSeq = 0
	s.bids.Reset()
	s.asks.Reset()

	return SyncOutcome{NeedSnapshot: true, Resync: true, Reason: reason}
}
