package rpc

import (
	"fmt"
	"strings"

	"github.com/spooky-finn/depthbridge/domain"
)

type ValidationServiceConfig struct {
	// DefaultDepth is used when a request does not ask for a depth.
	DefaultDepth int
	MaxDepth     int
}

type ValidationService struct {
	config *ValidationServiceConfig
}

func NewValidationService(config *ValidationServiceConfig) *ValidationService {
	return &ValidationService{
		config: config,
	}
}

// ParseMarket accepts "BTCUSDT" as well as the "BTC/USDT" form.
func (s *ValidationService) ParseMarket(market string) (domain.Symbol, error) {
	symbol, err := domain.NewSymbol(strings.ReplaceAll(market, "/", ""))
	if err != nil {
		return "", fmt.Errorf("invalid market symbol %q: %w", market, err)
	}
	return symbol, nil
}

func (s *ValidationService) Depth(maxDepth int) (int, error) {
	switch {
	case maxDepth == 0:
		return s.config.DefaultDepth, nil
	case maxDepth < 0:
		return 0, fmt.Errorf("maxDepth must not be negative, got %d", maxDepth)
	case s.config.MaxDepth > 0 && maxDepth > s.config.MaxDepth:
		return 0, fmt.Errorf("maxDepth %d exceeds the limit of %d", maxDepth, s.config.MaxDepth)
	default:
		return maxDepth, nil
	}
}
