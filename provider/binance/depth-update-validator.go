package binance

import "github.com/spooky-finn/depthbridge/domain"

// BinanceDepthUpdateValidator implements the U/u rules of the Binance local order book guide.
type BinanceDepthUpdateValidator struct{}

func (v *BinanceDepthUpdateValidator) IsValidFirstUpd(update *domain.OrderBookUpdate, snapshotID uint64) error {
	// Drop any event where u is <= lastUpdateId in the snapshot
	if update.LastUpdateID <= snapshotID {
		return domain.ErrOrderBookUpdateIsOutdated
	}

	// The first processed event should have U <= lastUpdateId+1 AND u >= lastUpdateId+1
	if update.FirstUpdateID <= snapshotID+1 {
		return nil
	}

	return domain.ErrOrderBookUpdateIsOutOfSequence
}

func (v *BinanceDepthUpdateValidator) IsValidUpd(update *domain.OrderBookUpdate, lastUpdateID uint64) error {
	if update.LastUpdateID <= lastUpdateID {
		return domain.ErrOrderBookUpdateIsOutdated
	}

	// While listening to the stream, each new event's U should be equal to the previous event's u+1
	if update.FirstUpdateID == lastUpdateID+1 {
		return nil
	}

	return domain.ErrOrderBookUpdateIsOutOfSequence
}
