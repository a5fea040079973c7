package promclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.SetPhase("BTCUSDT", 2)
	m.ObserveResync("BTCUSDT", "gap")
	m.ObserveResync("BTCUSDT", "gap")
	m.ObserveApplied("BTCUSDT")
	m.ObserveSnapshotFetch("BTCUSDT", "ok")
	m.SetPending("BTCUSDT", 7)
	m.ObserveReconnect()
	m.ObserveSignal("ETHUSDT")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncPhase.WithLabelValues("BTCUSDT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resyncs.WithLabelValues("BTCUSDT", "gap")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesApplied.WithLabelValues("BTCUSDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotFetches.WithLabelValues("BTCUSDT", "ok")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PendingEvents.WithLabelValues("BTCUSDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamReconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArbitrageSignals.WithLabelValues("ETHUSDT")))

	m.Forget("BTCUSDT")
	assert.Equal(t, 0, testutil.CollectAndCount(m.SyncPhase))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SetPhase("BTCUSDT", 1)
		m.ObserveResync("BTCUSDT", "gap")
		m.ObserveApplied("BTCUSDT")
		m.ObserveSnapshotFetch("BTCUSDT", "error")
		m.SetPending("BTCUSDT", 1)
		m.ObserveReconnect()
		m.ObserveSignal("BTCUSDT")
		m.Forget("BTCUSDT")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveResync("BTCUSDT", "connection_lost")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `depthbridge_resyncs_total{reason="connection_lost",symbol="BTCUSDT"} 1`)
}
