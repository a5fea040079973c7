package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/spooky-finn/depthbridge/domain"
	"github.com/spooky-finn/depthbridge/helpers"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
)

var ErrStreamClientRunning = errors.New("stream client is already running")

type WebSocketRequestModel struct {
	ReqId  int64    `json:"id"`
	Params []string `json:"params"`
	Method string   `json:"method"`
}

// frame is either a raw websocket payload or a connection event.
type frame struct {
	payload []byte
	event   domain.ConnectionEvent
}

type StreamClientOptions struct {
	Endpoint     string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	ReadTimeout  time.Duration
}

// BinanceStreamClient keeps a single websocket connection alive and re-subscribes
// the current topic set after every reconnect.
type BinanceStreamClient struct {
	opts   StreamClientOptions
	dialer *websocket.Dialer

	mu     sync.Mutex
	topics map[string]struct{}
	conn   *websocket.Conn

	writeMu sync.Mutex
	reqID   atomic.Int64
	running atomic.Bool
}

func NewBinanceStreamClient(opts StreamClientOptions) *BinanceStreamClient {
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * opts.ReconnectMin
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = time.Minute
	}

	return &BinanceStreamClient{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		topics: make(map[string]struct{}),
	}
}

// Subscribe adds topics to the subscription set. When connected the SUBSCRIBE
// request is sent right away, otherwise it is sent on the next connect.
func (c *BinanceStreamClient) Subscribe(topics ...string) error {
	return c.updateTopics("SUBSCRIBE", topics, func(topic string) bool {
		if _, ok := c.topics[topic]; ok {
			return false
		}
		c.topics[topic] = struct{}{}
		return true
	})
}

func (c *BinanceStreamClient) Unsubscribe(topics ...string) error {
	return c.updateTopics("UNSUBSCRIBE", topics, func(topic string) bool {
		if _, ok := c.topics[topic]; !ok {
			return false
		}
		delete(c.topics, topic)
		return true
	})
}

func (c *BinanceStreamClient) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedTopics()
}

func (c *BinanceStreamClient) updateTopics(method string, topics []string, change func(string) bool) error {
	c.mu.Lock()
	changed := make([]string, 0, len(topics))
	for _, topic := range topics {
		if change(topic) {
			changed = append(changed, topic)
		}
	}
	conn := c.conn
	c.mu.Unlock()

	if len(changed) == 0 || conn == nil {
		return nil
	}

	logger.WithField("topics", changed).Infof("sending %s", method)
	return c.send(conn, method, changed)
}

func (c *BinanceStreamClient) send(conn *websocket.Conn, method string, params []string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	req := WebSocketRequestModel{
		Method: method,
		ReqId:  c.reqID.Add(1),
		Params: params,
	}
	logger.Debugf("ws request: %s", helpers.ToJsonString(req))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send %s msg for topics=%v: %w", method, params, err)
	}
	return nil
}

// run connects, reads and reconnects until ctx is done, then closes out.
func (c *BinanceStreamClient) run(ctx context.Context, out chan<- frame) {
	defer close(out)
	defer c.running.Store(false)

	b := &backoff.Backoff{
		Min:    c.opts.ReconnectMin,
		Max:    c.opts.ReconnectMax,
		Factor: 2,
		Jitter: true,
	}
	lost := false

	for ctx.Err() == nil {
		conn, err := c.connect(ctx)
		if err != nil {
			delay := b.Duration()
			logger.WithError(err).Warnf("failed to connect to %s, retrying in %s", c.opts.Endpoint, delay)
			if helpers.SleepContext(ctx, delay) != nil {
				return
			}
			continue
		}

		b.Reset()
		if lost {
			logger.Info("stream connection restored")
			if !emit(ctx, out, frame{event: domain.ConnectionRestored}) {
				conn.Close()
				return
			}
			lost = false
		}

		err = c.readLoop(ctx, conn, out)
		c.detach(conn)

		if ctx.Err() != nil {
			return
		}

		logger.WithError(err).Warn("stream connection lost")
		lost = true
		if !emit(ctx, out, frame{event: domain.ConnectionLost}) {
			return
		}

		if helpers.SleepContext(ctx, b.Duration()) != nil {
			return
		}
	}
}

func (c *BinanceStreamClient) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.opts.Endpoint, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	topics := c.sortedTopics()
	c.mu.Unlock()

	if len(topics) > 0 {
		if err := c.send(conn, "SUBSCRIBE", topics); err != nil {
			c.detach(conn)
			return nil, err
		}
	}

	logger.WithField("topics", topics).Infof("connected to %s", c.opts.Endpoint)
	return conn, nil
}

func (c *BinanceStreamClient) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- frame) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	refresh := func() error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	}

	conn.SetPingHandler(func(data string) error {
		if err := refresh(); err != nil {
			return err
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		if err := refresh(); err != nil {
			return err
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if !emit(ctx, out, frame{payload: msg}) {
			return ctx.Err()
		}
	}
}

func (c *BinanceStreamClient) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	conn.Close()
}

func (c *BinanceStreamClient) sortedTopics() []string {
	topics := make([]string, 0, len(c.topics))
	for topic := range c.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

func emit(ctx context.Context, out chan<- frame, f frame) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
