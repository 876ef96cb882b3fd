package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/pkg/events"

	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.BaseEvent) error

// Subscriber consumes events through durable JetStream consumers.
type Subscriber struct {
	conn           *Conn
	logger         logger.ILogger
	handlerTimeout time.Duration
	consumers      []jetstream.ConsumeContext
}

func NewSubscriber(conn *Conn, log logger.ILogger) *Subscriber {
	return &Subscriber{conn: conn, logger: log, handlerTimeout: 30 * time.Second}
}

// Subscribe registers a handler for an event type. The durable consumer
// survives restarts, so no message published while down is lost. A failing
// handler naks the message for redelivery; an undecodable one is terminated.
func (s *Subscriber) Subscribe(ctx context.Context, eventType, durableName string, handler EventHandler) error {
	subject := Subject(eventType)
	consumer, err := s.conn.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := events.Unmarshal(strings.TrimPrefix(msg.Subject(), SubjectPrefix), msg.Data())
		if err != nil {
			s.logger.Error("NATS", "Dropping undecodable event", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err,
			})
			_ = msg.Term()
			return
		}

		hctx, cancel := context.WithTimeout(context.Background(), s.handlerTimeout)
		defer cancel()
		if err := handler(hctx, event); err != nil {
			s.logger.Warn("NATS", "Handler failed, message will be redelivered", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err,
			})
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.consumers = append(s.consumers, cc)

	s.logger.Info("NATS", "Subscribed", map[string]interface{}{
		"subject": subject,
		"durable": durableName,
	})
	return nil
}

// Stop halts every consumer started by this subscriber.
func (s *Subscriber) Stop() {
	for _, cc := range s.consumers {
		cc.Stop()
	}
	s.consumers = nil
}
