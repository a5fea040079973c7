package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spooky-finn/depthbridge/domain"
)

const (
	depthUpdateEvent   = "depthUpdate"
	streamBufferSize   = 1024
	defaultTopicSuffix = "@depth"
)

type BinanceStreamAPI struct {
	streamClient *BinanceStreamClient
	topicSuffix  string
}

// Message is the envelope used by combined streams.
type Message[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

type DepthUpdateData struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateId uint64     `json:"U"`
	FinalUpdateId uint64     `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// NewBinanceStreamAPI builds a DiffSource over client. topicSuffix selects the
// depth stream flavour, e.g. "@depth" or "@depth@100ms".
func NewBinanceStreamAPI(client *BinanceStreamClient, topicSuffix string) *BinanceStreamAPI {
	if topicSuffix == "" {
		topicSuffix = defaultTopicSuffix
	}

	return &BinanceStreamAPI{
		streamClient: client,
		topicSuffix:  topicSuffix,
	}
}

func (bs *BinanceStreamAPI) Topic(symbol domain.Symbol) string {
	return symbol.Lower() + bs.topicSuffix
}

// DepthDiffStream starts the underlying connection and returns the merged stream of
// depth updates and connection events for symbols. The stream is closed once ctx is done.
func (bs *BinanceStreamAPI) DepthDiffStream(ctx context.Context, symbols []domain.Symbol) (*domain.Subscription[domain.StreamMessage], error) {
	if !bs.streamClient.running.CompareAndSwap(false, true) {
		return nil, ErrStreamClientRunning
	}

	if err := bs.streamClient.Subscribe(bs.topics(symbols)...); err != nil {
		bs.streamClient.running.Store(false)
		return nil, err
	}

	frames := make(chan frame, streamBufferSize)
	out := make(chan domain.StreamMessage, streamBufferSize)

	go bs.streamClient.run(ctx, frames)
	go bs.decode(ctx, frames, out)

	return &domain.Subscription[domain.StreamMessage]{
		Stream: out,
		Subscribe: func(symbols ...domain.Symbol) error {
			return bs.streamClient.Subscribe(bs.topics(symbols)...)
		},
		Unsubscribe: func(symbols ...domain.Symbol) error {
			return bs.streamClient.Unsubscribe(bs.topics(symbols)...)
		},
	}, nil
}

func (bs *BinanceStreamAPI) decode(ctx context.Context, frames <-chan frame, out chan<- domain.StreamMessage) {
	defer close(out)

	for f := range frames {
		var msg domain.StreamMessage

		if f.event != 0 {
			msg.Connection = f.event
		} else {
			update, err := decodeDepthUpdate(f.payload)
			if err != nil {
				logger.WithError(err).Warn("skipping malformed depth frame")
				continue
			}
			if update == nil {
				continue
			}
			msg.Update = update
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			// drain so the client goroutine can observe ctx and exit
			for range frames {
			}
			return
		}
	}
}

func (bs *BinanceStreamAPI) topics(symbols []domain.Symbol) []string {
	topics := make([]string, len(symbols))
	for i, symbol := range symbols {
		topics[i] = bs.Topic(symbol)
	}
	return topics
}

var errNotDepthUpdate = errors.New("not a depth update")

// decodeDepthUpdate accepts raw and combined stream frames. It returns a nil update
// for control frames such as subscription acks.
func decodeDepthUpdate(payload []byte) (*domain.OrderBookUpdate, error) {
	var envelope Message[json.RawMessage]
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}

	body := payload
	if len(envelope.Data) > 0 {
		body = envelope.Data
	}

	var data DepthUpdateData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}

	if data.Event == "" {
		return nil, nil
	}
	if data.Event != depthUpdateEvent {
		return nil, fmt.Errorf("%w: event %q", errNotDepthUpdate, data.Event)
	}

	symbol, err := domain.NewSymbol(data.Symbol)
	if err != nil {
		return nil, err
	}

	if data.FirstUpdateId == 0 || data.FirstUpdateId > data.FinalUpdateId {
		return nil, fmt.Errorf("invalid update range %d..%d", data.FirstUpdateId, data.FinalUpdateId)
	}

	bids, err := domain.ParsePriceLevels(data.Bids)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}

	asks, err := domain.ParsePriceLevels(data.Asks)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}

	return domain.NewOrderBookUpdate(symbol, bids, asks, data.FirstUpdateId, data.FinalUpdateId), nil
}
