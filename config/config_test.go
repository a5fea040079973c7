package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	c, err := FromEnv(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, c.Symbols)
	assert.Equal(t, 10, c.Depth)
	assert.Equal(t, 1000, c.SnapshotLimit)
	assert.Equal(t, 10*time.Second, c.SnapshotPollInterval)
	assert.Equal(t, time.Second, c.ReconnectMin)
	assert.Equal(t, 30*time.Second, c.ReconnectMax)
	assert.Equal(t, "0.1", c.FeeThreshold.String())
	assert.Equal(t, 1000, c.MaxPendingEvents)
	assert.Equal(t, "@depth", c.DepthStreamSuffix)
	assert.False(t, c.AutoTrack)
}

func TestFromEnv_Overrides(t *testing.T) {
	c, err := FromEnv(lookupFrom(map[string]string{
		"SYMBOLS":                " btcusdt, solusdt ,",
		"DEPTH":                  "20",
		"SNAPSHOT_LIMIT":         "100",
		"SNAPSHOT_POLL_INTERVAL": "3s",
		"SNAPSHOT_RATE_LIMIT":    "2.5",
		"FEE_THRESHOLD":          "0.25",
		"KAFKA_BROKERS":          "k1:9092,k2:9092",
		"AUTO_TRACK":             "true",
		"DEBUG":                  "1",
		"HTTP_ADDR":              "",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"btcusdt", "solusdt"}, c.Symbols)
	assert.Equal(t, 20, c.Depth)
	assert.Equal(t, 100, c.SnapshotLimit)
	assert.Equal(t, 3*time.Second, c.SnapshotPollInterval)
	assert.Equal(t, 2.5, c.SnapshotRateLimit)
	assert.Equal(t, "0.25", c.FeeThreshold.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.True(t, c.AutoTrack)
	assert.True(t, c.Debug)
	assert.Equal(t, ":8080", c.HTTPAddr)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad int", env: map[string]string{"DEPTH": "ten"}},
		{name: "bad duration", env: map[string]string{"RECONNECT_MIN": "soon"}},
		{name: "bad decimal", env: map[string]string{"FEE_THRESHOLD": "x"}},
		{name: "bad bool", env: map[string]string{"DEBUG": "maybe"}},
		{name: "zero depth", env: map[string]string{"DEPTH": "0"}},
		{name: "limit below depth", env: map[string]string{"DEPTH": "50", "SNAPSHOT_LIMIT": "20"}},
		{name: "inverted backoff", env: map[string]string{"RECONNECT_MIN": "1m", "RECONNECT_MAX": "1s"}},
		{name: "negative threshold", env: map[string]string{"FEE_THRESHOLD": "-1"}},
		{name: "zero cap", env: map[string]string{"MAX_PENDING_EVENTS": "0"}},
		{name: "no symbols", env: map[string]string{"SYMBOLS": ",,"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(lookupFrom(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("DEPTH_STREAM_SUFFIX=@depth@100ms\n"), 0o600))
	t.Setenv("DEPTH_STREAM_SUFFIX", "")
	require.NoError(t, os.Unsetenv("DEPTH_STREAM_SUFFIX"))

	c, err := Load(file, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "@depth@100ms", c.DepthStreamSuffix)
}
