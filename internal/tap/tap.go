package tap

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/BullionBear/depthgate/internal/config"
	"github.com/BullionBear/depthgate/pkg/logger"
)

// Publisher mirrors every parsed upstream event onto JetStream so sibling
// processes can consume the feed without holding a WebSocket to the gateway.
// Publish failures are logged and swallowed; the tap must never slow down or
// break the fan-out path.
type Publisher struct {
	conn        *nats.Conn
	js          nats.JetStreamContext
	subjectBase string
}

// NewPublisher connects and makes sure the stream exists.
func NewPublisher(cfg *config.NATSConfig) (*Publisher, error) {
	conn, err := nats.Connect(strings.Join(cfg.GetNATSURIs(), ","))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(cfg.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.Subject + ".>"},
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", cfg.Stream, err)
		}
	}

	return &Publisher{
		conn:        conn,
		js:          js,
		subjectBase: cfg.Subject,
	}, nil
}

// Publish mirrors one event payload. The subject is
// <base>.<eventType>.<symbol>, lowercased.
func (p *Publisher) Publish(eventType, symbol string, data []byte) {
	subject := fmt.Sprintf("%s.%s.%s",
		p.subjectBase, strings.ToLower(eventType), strings.ToLower(symbol))

	if _, err := p.js.PublishAsync(subject, data); err != nil {
		logger.Log.Warn().
			Str("subject", subject).
			Err(err).
			Msg("tap publish failed")
	}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
