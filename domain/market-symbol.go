package domain

import (
	"fmt"
	"strings"
)

// Symbol identifies a market on the exchange, e.g. BTCUSDT.
type Symbol string

func NewSymbol(s string) (Symbol, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("symbol must not be empty")
	}

	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("invalid symbol %q: only letters and digits are allowed", s)
		}
	}

	return Symbol(s), nil
}

// ParseSymbols parses a comma separated list of symbols, skipping duplicates.
func ParseSymbols(list string) ([]Symbol, error) {
	seen := make(map[Symbol]struct{})
	symbols := make([]Symbol, 0)

	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}

		symbol, err := NewSymbol(part)
		if err != nil {
			return nil, err
		}

		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbol list must not be empty")
	}

	return symbols, nil
}

func (s Symbol) String() string {
	return string(s)
}

// Lower is the form used in stream topic names.
func (s Symbol) Lower() string {
	return strings.ToLower(string(s))
}
