package nats

import (
	"context"
	"fmt"
	"time"

	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName    = "EVENTS"
	SubjectPrefix = "events."
)

// Subject maps an event type to its bus subject.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

// Conn is one NATS connection with its JetStream context, shared by the
// publisher and every subscriber of the process.
type Conn struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func Connect(url string, log logger.ILogger) (*Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		// The stream may already exist with another config, or NATS is still starting.
		log.Warn("NATS", "Failed to ensure stream", map[string]interface{}{
			"stream": StreamName,
			"error":  err,
		})
	}

	return &Conn{nc: nc, js: js}, nil
}

func (c *Conn) Close() {
	if c.nc != nil {
		c.nc.Drain()
	}
}

// Publisher sends domain events to JetStream.
type Publisher struct {
	conn *Conn
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(conn *Conn) *Publisher {
	return &Publisher{conn: conn}
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := events.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := Subject(event.EventType())
	if _, err := p.conn.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}
