package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

func NewPriceLevel(price, quantity string) (PriceLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("invalid price %q: %w", price, err)
	}
	if !p.IsPositive() {
		return PriceLevel{}, fmt.Errorf("price must be positive, got %s", price)
	}

	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	if q.IsNegative() {
		return PriceLevel{}, fmt.Errorf("quantity must not be negative, got %s", quantity)
	}

	return PriceLevel{Price: p, Quantity: q}, nil
}

// ParsePriceLevels converts exchange [price, quantity, ...] string pairs.
func ParsePriceLevels(depth [][]string) ([]PriceLevel, error) {
	result := make([]PriceLevel, 0, len(depth))
	for i, level := range depth {
		if len(level) < 2 {
			return nil, fmt.Errorf("level %d: expected [price, quantity], got %v", i, level)
		}

		pl, err := NewPriceLevel(level[0], level[1])
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		result = append(result, pl)
	}

	return result, nil
}

func SerializePriceLevels(depth []PriceLevel) [][]string {
	result := make([][]string, len(depth))
	for i, level := range depth {
		result[i] = []string{level.Price.String(), level.Quantity.String()}
	}

	return result
}
