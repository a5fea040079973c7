package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSymbolNotTracked  = errors.New("symbol is not tracked")
	ErrOrderBookNotFound = errors.New("order book not found")
)

// TransientFetchError is a network or HTTP failure while fetching a snapshot.
type TransientFetchError struct {
	Symbol     Symbol
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("snapshot fetch for %s failed with status %d: %v", e.Symbol, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("snapshot fetch for %s failed: %v", e.Symbol, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

func (e *TransientFetchError) Temporary() bool { return true }

// MalformedResponseError is a snapshot payload without usable bids or asks.
type MalformedResponseError struct {
	Symbol Symbol
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed snapshot for %s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed snapshot for %s: %s", e.Symbol, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Temporary reports true: the engine retries malformed payloads like network failures.
func (e *MalformedResponseError) Temporary() bool { return true }
