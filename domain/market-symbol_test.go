package domain_test

import (
	"testing"

	"github.com/spooky-finn/depthbridge/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewSymbol(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    domain.Symbol
		expectError bool
	}{
		{"ValidSymbol", "BTCUSDT", "BTCUSDT", false},
		{"LowercaseIsNormalized", "ethusdt", "ETHUSDT", false},
		{"SurroundingSpaces", "  xmrbtc ", "XMRBTC", false},
		{"Empty", "", "", true},
		{"Separator", "BTC_USDT", "", true},
		{"Dash", "ETH-USD", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			symbol, err := domain.NewSymbol(tt.input)

			if tt.expectError {
				assert.Error(t, err, "NewSymbol() should return an error")
			} else {
				assert.NoError(t, err, "NewSymbol() should not return an error")
				assert.Equal(t, tt.expected, symbol)
			}
		})
	}
}

func TestParseSymbols(t *testing.T) {
	symbols, err := domain.ParseSymbols("btcusdt, ETHUSDT,,BTCUSDT")
	assert.NoError(t, err)
	assert.Equal(t, []domain.Symbol{"BTCUSDT", "ETHUSDT"}, symbols)

	_, err = domain.ParseSymbols(" , ")
	assert.Error(t, err, "empty list should be rejected")

	_, err = domain.ParseSymbols("BTCUSDT,BTC/USDT")
	assert.Error(t, err, "invalid entry should be rejected")
}

func TestSymbol_Lower(t *testing.T) {
	symbol := domain.Symbol("BTCUSDT")

	assert.Equal(t, "btcusdt", symbol.Lower())
	assert.Equal(t, "BTCUSDT", symbol.String())
}
