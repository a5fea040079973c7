package sink

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/depthbridge/monitor"
)

var logger = logrus.WithField("component", "sink")

// LogSink writes every signal to the process log.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink() *LogSink {
	return &LogSink{log: logger.WithField("sink", "log")}
}

func (s *LogSink) Publish(_ context.Context, signal *monitor.ArbitrageSignal) error {
	s.log.WithFields(logrus.Fields{
		"id":           signal.ID.String(),
		"symbol":       signal.Symbol.String(),
		"bestBid":      signal.BestBid.String(),
		"bestAsk":      signal.BestAsk.String(),
		"spread":       signal.Spread.String(),
		"lastUpdateId": signal.LastUpdateID,
	}).Info("arbitrage opportunity detected")
	return nil
}

func encodeSignal(signal *monitor.ArbitrageSignal) ([]byte, error) {
	return json.Marshal(signal)
}
