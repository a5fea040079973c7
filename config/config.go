package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// DebugMode enables verbose logging of per-update decisions.
var DebugMode = false

const (
	DefaultRestEndpoint   = "https://api.binance.com"
	DefaultStreamEndpoint = "wss://stream.binance.com:9443/ws"
)

type Config struct {
	Symbols []string

	// Depth is the number of levels kept per side.
	Depth int
	// SnapshotLimit is the depth requested from the snapshot endpoint, at least Depth.
	SnapshotLimit        int
	SnapshotPollInterval time.Duration
	SnapshotRetryMin     time.Duration
	SnapshotRateLimit    float64
	SnapshotRateBurst    int
	MaxPendingEvents     int

	RestEndpoint      string
	StreamEndpoint    string
	DepthStreamSuffix string
	ReconnectMin      time.Duration
	ReconnectMax      time.Duration
	ReadTimeout       time.Duration

	FeeThreshold decimal.Decimal
	// AutoTrack starts tracking symbols requested through the query surfaces.
	AutoTrack bool

	HTTPAddr     string
	GRPCAddr     string
	NATSURL      string
	NATSSubject  string
	KafkaBrokers []string
	KafkaTopic   string

	LogLevel string
	Debug    bool
}

func Default() Config {
	return Config{
		Symbols:              []string{"BTCUSDT", "ETHUSDT"},
		Depth:                10,
		SnapshotLimit:        1000,
		SnapshotPollInterval: 10 * time.Second,
		SnapshotRetryMin:     time.Second,
		SnapshotRateLimit:    5,
		SnapshotRateBurst:    5,
		MaxPendingEvents:     1000,
		RestEndpoint:         DefaultRestEndpoint,
		StreamEndpoint:       DefaultStreamEndpoint,
		DepthStreamSuffix:    "@depth",
		ReconnectMin:         time.Second,
		ReconnectMax:         30 * time.Second,
		ReadTimeout:          time.Minute,
		FeeThreshold:         decimal.RequireFromString("0.1"),
		HTTPAddr:             ":8080",
		GRPCAddr:             ":50051",
		NATSSubject:          "depthbridge.arbitrage",
		KafkaTopic:           "depthbridge.arbitrage",
		LogLevel:             "info",
	}
}

// Load reads the given env files, when present, and overrides defaults from the environment.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup on top of Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.list("SYMBOLS", &c.Symbols)
	p.integer("DEPTH", &c.Depth)
	p.integer("SNAPSHOT_LIMIT", &c.SnapshotLimit)
	p.dur("SNAPSHOT_POLL_INTERVAL", &c.SnapshotPollInterval)
	p.dur("SNAPSHOT_RETRY_MIN", &c.SnapshotRetryMin)
	p.float("SNAPSHOT_RATE_LIMIT", &c.SnapshotRateLimit)
	p.integer("SNAPSHOT_RATE_BURST", &c.SnapshotRateBurst)
	p.integer("MAX_PENDING_EVENTS", &c.MaxPendingEvents)
	p.str("BINANCE_REST_ENDPOINT", &c.RestEndpoint)
	p.str("BINANCE_STREAM_ENDPOINT", &c.StreamEndpoint)
	p.str("DEPTH_STREAM_SUFFIX", &c.DepthStreamSuffix)
	p.dur("RECONNECT_MIN", &c.ReconnectMin)
	p.dur("RECONNECT_MAX", &c.ReconnectMax)
	p.dur("READ_TIMEOUT", &c.ReadTimeout)
	p.dec("FEE_THRESHOLD", &c.FeeThreshold)
	p.boolean("AUTO_TRACK", &c.AutoTrack)
	p.str("HTTP_ADDR", &c.HTTPAddr)
	p.str("GRPC_ADDR", &c.GRPCAddr)
	p.str("NATS_URL", &c.NATSURL)
	p.str("NATS_SUBJECT", &c.NATSSubject)
	p.list("KAFKA_BROKERS", &c.KafkaBrokers)
	p.str("KAFKA_TOPIC", &c.KafkaTopic)
	p.str("LOG_LEVEL", &c.LogLevel)
	p.boolean("DEBUG", &c.Debug)

	if p.err != nil {
		return Config{}, p.err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c Config) Validate() error {
	switch {
	case len(c.Symbols) == 0:
		return errors.New("config: at least one symbol is required")
	case c.Depth < 1:
		return fmt.Errorf("config: depth must be positive, got %d", c.Depth)
	case c.SnapshotLimit < c.Depth:
		return fmt.Errorf("config: snapshot limit %d is below depth %d", c.SnapshotLimit, c.Depth)
	case c.SnapshotPollInterval <= 0 || c.SnapshotRetryMin <= 0:
		return errors.New("config: snapshot intervals must be positive")
	case c.SnapshotRateLimit <= 0 || c.SnapshotRateBurst < 1:
		return errors.New("config: snapshot rate limit must be positive")
	case c.MaxPendingEvents < 1:
		return fmt.Errorf("config: max pending events must be positive, got %d", c.MaxPendingEvents)
	case c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin:
		return fmt.Errorf("config: invalid reconnect backoff bounds %s..%s", c.ReconnectMin, c.ReconnectMax)
	case c.ReadTimeout <= 0:
		return errors.New("config: read timeout must be positive")
	case c.FeeThreshold.IsNegative():
		return fmt.Errorf("config: fee threshold must not be negative, got %s", c.FeeThreshold)
	case c.RestEndpoint == "" || c.StreamEndpoint == "":
		return errors.New("config: exchange endpoints are required")
	}

	return nil
}

type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) value(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) fail(key string, err error) {
	p.err = fmt.Errorf("config: invalid %s: %w", key, err)
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.value(key); ok {
		*dst = v
	}
}

func (p *parser) list(key string, dst *[]string) {
	v, ok := p.value(key)
	if !ok {
		return
	}

	items := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (p *parser) integer(key string, dst *int) {
	if v, ok := p.value(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = n
	}
}

func (p *parser) float(key string, dst *float64) {
	if v, ok := p.value(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = f
	}
}

func (p *parser) boolean(key string, dst *bool) {
	if v, ok := p.value(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = b
	}
}

func (p *parser) dur(key string, dst *time.Duration) {
	if v, ok := p.value(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = d
	}
}

func (p *parser) dec(key string, dst *decimal.Decimal) {
	if v, ok := p.value(key); ok {
		d, err := decimal.NewFromString(v)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = d
	}
}
