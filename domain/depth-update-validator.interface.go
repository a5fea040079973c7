package domain

import "errors"

var (
	// The update leaves a hole in the sequence; the book has to be resynchronized.
	ErrOrderBookUpdateIsOutOfSequence = errors.New("order book update is out of sequence")
	// should just skip them
	ErrOrderBookUpdateIsOutdated = errors.New("order book update is outdated")
)

type DepthUpdateValidator interface {
	// IsValidFirstUpd checks that update bridges a snapshot taken at snapshotID.
	// Returns nil if the update has to be applied first.
	IsValidFirstUpd(update *OrderBookUpdate, snapshotID uint64) error
	// IsValidUpd checks that update directly continues a chain ending at lastUpdateID.
	IsValidUpd(update *OrderBookUpdate, lastUpdateID uint64) error
}
