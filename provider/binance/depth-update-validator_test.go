package binance

import (
	"testing"

	"github.com/spooky-finn/depthbridge/domain"
	"github.com/stretchr/testify/assert"
)

func depthUpdate(first, last uint64) *domain.OrderBookUpdate {
	return domain.NewOrderBookUpdate("BTCUSDT", nil, nil, first, last)
}

func TestDepthUpdateValidator_FirstUpdate(t *testing.T) {
	v := &BinanceDepthUpdateValidator{}

	tests := []struct {
		name       string
		upd        *domain.OrderBookUpdate
		snapshotID uint64
		expected   error
	}{
		// u <= lastUpdateId
		{"Outdated", depthUpdate(120, 124), 124, domain.ErrOrderBookUpdateIsOutdated},
		// 123 <= 124 && 124 >= 124
		{"BridgesExactly", depthUpdate(123, 124), 123, nil},
		// 95 <= 101 && 101 >= 101
		{"BridgesFromBelow", depthUpdate(95, 101), 100, nil},
		{"WideRange", depthUpdate(123, 140), 123, nil},
		// 125 > 122+1
		{"StartsPastSnapshot", depthUpdate(125, 136), 122, domain.ErrOrderBookUpdateIsOutOfSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, v.IsValidFirstUpd(tt.upd, tt.snapshotID))
		})
	}
}

func TestDepthUpdateValidator_NextUpdate(t *testing.T) {
	v := &BinanceDepthUpdateValidator{}

	tests := []struct {
		name     string
		upd      *domain.OrderBookUpdate
		lastID   uint64
		expected error
	}{
		{"Contiguous", depthUpdate(102, 104), 101, nil},
		{"Duplicate", depthUpdate(100, 101), 101, domain.ErrOrderBookUpdateIsOutdated},
		{"Gap", depthUpdate(103, 104), 101, domain.ErrOrderBookUpdateIsOutOfSequence},
		{"Overlap", depthUpdate(100, 105), 101, domain.ErrOrderBookUpdateIsOutOfSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, v.IsValidUpd(tt.upd, tt.lastID))
		})
	}
}
