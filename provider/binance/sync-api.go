package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/depthbridge/domain"
	"golang.org/x/time/rate"
)

var logger = logrus.WithField("component", "binance")

const (
	depthPath          = "/api/v3/depth"
	maxSnapshotLimit   = 5000
	defaultHTTPTimeout = 10 * time.Second
)

// Get OrderBookSnapshot (Depth)
type BinanceSyncAPI struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

type depthResponse struct {
	LastUpdateID *uint64    `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// NewBinanceSyncAPI builds a REST snapshot client. All requests wait on limiter,
// which may be shared with other clients of the same exchange account. A nil limiter disables throttling.
func NewBinanceSyncAPI(endpoint string, limiter *rate.Limiter, client *http.Client) *BinanceSyncAPI {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	return &BinanceSyncAPI{
		endpoint: endpoint,
		client:   client,
		limiter:  limiter,
	}
}

func (api *BinanceSyncAPI) OrderBookSnapshot(ctx context.Context, symbol domain.Symbol, limit int) (*domain.OrderBookSnapshot, error) {
	if limit < 1 || limit > maxSnapshotLimit {
		return nil, fmt.Errorf("snapshot limit must be within 1..%d, got %d", maxSnapshotLimit, limit)
	}

	if err := api.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := api.newRequest(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}

	resp, err := api.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.TransientFetchError{Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientFetchError{Symbol: symbol, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransientFetchError{
			Symbol:     symbol,
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(string(body), 256)),
		}
	}

	return decodeSnapshot(symbol, body)
}

func (api *BinanceSyncAPI) newRequest(ctx context.Context, symbol domain.Symbol, limit int) (*http.Request, error) {
	u, err := url.Parse(api.endpoint + depthPath)
	if err != nil {
		return nil, fmt.Errorf("invalid rest endpoint %q: %w", api.endpoint, err)
	}

	q := u.Query()
	q.Set("symbol", symbol.String())
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func decodeSnapshot(symbol domain.Symbol, body []byte) (*domain.OrderBookSnapshot, error) {
	var response depthResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &domain.MalformedResponseError{Symbol: symbol, Reason: "invalid json", Err: err}
	}

	if response.LastUpdateID == nil {
		return nil, &domain.MalformedResponseError{Symbol: symbol, Reason: "missing lastUpdateId"}
	}
	if len(response.Bids) == 0 || len(response.Asks) == 0 {
		return nil, &domain.MalformedResponseError{Symbol: symbol, Reason: "empty bids or asks"}
	}

	bids, err := domain.ParsePriceLevels(response.Bids)
	if err != nil {
		return nil, &domain.MalformedResponseError{Symbol: symbol, Reason: "invalid bids", Err: err}
	}

	asks, err := domain.ParsePriceLevels(response.Asks)
	if err != nil {
		return nil, &domain.MalformedResponseError{Symbol: symbol, Reason: "invalid asks", Err: err}
	}

	return &domain.OrderBookSnapshot{
		Source:       domain.OrderBookSource_Provider,
		Symbol:       symbol,
		LastUpdateID: *response.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
