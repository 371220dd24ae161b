package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher emits gateway events over NATS. Publishing is best-effort:
// a failed publish is logged and never fails the API call that produced
// the event.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// Connect establishes the NATS connection with unlimited reconnects.
func Connect(url, clientName string) (*Publisher, error) {
	logger := logrus.WithField("component", "bus")

	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Errorf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Errorf("NATS error: %v", err)
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// Publish serializes v as JSON and publishes it. Never returns an error;
// failures are logged.
func (p *Publisher) Publish(subject string, v interface{}) {
	if p == nil || p.conn == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.WithError(err).WithField("subject", subject).Error("failed to marshal event")
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Error("failed to publish event")
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.WithError(err).Warn("NATS drain failed")
	}
}
