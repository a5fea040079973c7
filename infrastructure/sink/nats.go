package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spooky-finn/depthbridge/monitor"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes signals as JSON on "<prefix>.<SYMBOL>".
type NATSSink struct {
	conn   natsPublisher
	prefix string
}

func NewNATSSink(conn natsPublisher, prefix string) *NATSSink {
	return &NATSSink{conn: conn, prefix: prefix}
}

// ConnectNATS dials url and keeps reconnecting for the lifetime of the process.
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("depthbridge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
}

func (s *NATSSink) Subject(signal *monitor.ArbitrageSignal) string {
	return s.prefix + "." + signal.Symbol.String()
}

func (s *NATSSink) Publish(_ context.Context, signal *monitor.ArbitrageSignal) error {
	data, err := encodeSignal(signal)
	if err != nil {
		return err
	}

	if err := s.conn.Publish(s.Subject(signal), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", s.Subject(signal), err)
	}
	return nil
}
