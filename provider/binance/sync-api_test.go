package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spooky-finn/depthbridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newDepthServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, depthPath, r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestBinanceSyncAPI_OrderBookSnapshot(t *testing.T) {
	srv := newDepthServer(t, http.StatusOK, `{
		"lastUpdateId": 160,
		"bids": [["5000.00", "1.5"], ["4999.50", "2"]],
		"asks": [["5001.00", "0.7", "ignored"]]
	}`)

	api := NewBinanceSyncAPI(srv.URL, nil, srv.Client())
	snapshot, err := api.OrderBookSnapshot(context.Background(), "BTCUSDT", 1000)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderBookSource_Provider, snapshot.Source)
	assert.Equal(t, domain.Symbol("BTCUSDT"), snapshot.Symbol)
	assert.Equal(t, uint64(160), snapshot.LastUpdateID)
	require.Len(t, snapshot.Bids, 2)
	require.Len(t, snapshot.Asks, 1)
	assert.Equal(t, "4999.5", snapshot.Bids[1].Price.String())
	assert.Equal(t, "0.7", snapshot.Asks[0].Quantity.String())
}

func TestBinanceSyncAPI_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
		malformed bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", transient: true},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"code":-1003}`, transient: true},
		{name: "invalid json", status: http.StatusOK, body: "{", malformed: true},
		{name: "missing sequence", status: http.StatusOK, body: `{"bids":[["1","1"]],"asks":[["2","1"]]}`, malformed: true},
		{name: "empty bids", status: http.StatusOK, body: `{"lastUpdateId":1,"bids":[],"asks":[["2","1"]]}`, malformed: true},
		{name: "missing asks", status: http.StatusOK, body: `{"lastUpdateId":1,"bids":[["1","1"]]}`, malformed: true},
		{name: "bad price", status: http.StatusOK, body: `{"lastUpdateId":1,"bids":[["x","1"]],"asks":[["2","1"]]}`, malformed: true},
		{name: "short level", status: http.StatusOK, body: `{"lastUpdateId":1,"bids":[["1"]],"asks":[["2","1"]]}`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newDepthServer(t, tt.status, tt.body)
			api := NewBinanceSyncAPI(srv.URL, nil, srv.Client())

			snapshot, err := api.OrderBookSnapshot(context.Background(), "BTCUSDT", 1000)
			require.Error(t, err)
			assert.Nil(t, snapshot)

			var transient *domain.TransientFetchError
			var malformed *domain.MalformedResponseError
			assert.Equal(t, tt.transient, errors.As(err, &transient))
			assert.Equal(t, tt.malformed, errors.As(err, &malformed))

			if tt.transient {
				assert.Equal(t, tt.status, transient.StatusCode)
				assert.Contains(t, err.Error(), "status")
			}
		})
	}
}

func TestBinanceSyncAPI_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	api := NewBinanceSyncAPI(endpoint, nil, nil)
	_, err := api.OrderBookSnapshot(context.Background(), "BTCUSDT", 1000)

	var transient *domain.TransientFetchError
	require.ErrorAs(t, err, &transient)
	assert.Zero(t, transient.StatusCode)
	assert.True(t, transient.Temporary())
}

func TestBinanceSyncAPI_InvalidLimit(t *testing.T) {
	api := NewBinanceSyncAPI("http://127.0.0.1:0", nil, nil)

	_, err := api.OrderBookSnapshot(context.Background(), "BTCUSDT", 0)
	assert.Error(t, err)
}

func TestBinanceSyncAPI_RateLimiterHonoursContext(t *testing.T) {
	srv := newDepthServer(t, http.StatusOK, `{"lastUpdateId":1,"bids":[["1","1"]],"asks":[["2","1"]]}`)

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	api := NewBinanceSyncAPI(srv.URL, limiter, srv.Client())

	_, err := api.OrderBookSnapshot(context.Background(), "BTCUSDT", 1000)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = api.OrderBookSnapshot(ctx, "BTCUSDT", 1000)
	assert.Error(t, err)
}
