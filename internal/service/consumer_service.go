package service

import (
	"context"
	"encoding/json"
	"sync"

	"elearning-chatbot-be/internal/dto"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

const maxIngestAttempts = 3

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the knowledge upsert topic. Malformed and invalid
// writes are acked and dropped; upstream failures are nacked for redelivery
// up to maxIngestAttempts times.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	knowledge  IKnowledgeService
	logger     logger.ILogger

	mu       sync.Mutex
	attempts map[string]int
}

func NewConsumerService(subscriber message.Subscriber, topicName string, knowledge IKnowledgeService, log logger.ILogger) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		knowledge:  knowledge,
		logger:     log,
		attempts:   make(map[string]int),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	cs.logger.Info("CONSUMER", "Knowledge ingestion consumer started", map[string]interface{}{"topic": cs.topicName})
	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.KnowledgeUpsertMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Dropping undecodable message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err,
		})
		msg.Ack()
		return
	}

	err := cs.knowledge.Upsert(ctx, payload)
	if err == nil {
		cs.forget(msg.UUID)
		msg.Ack()
		return
	}

	attempt := cs.record(msg.UUID)
	details := map[string]interface{}{
		"message_id": msg.UUID,
		"collection": payload.Collection,
		"id":         payload.Id,
		"attempt":    attempt,
		"error":      err,
	}
	if apperr.KindOf(err) != apperr.KindUpstreamUnavailable || attempt >= maxIngestAttempts {
		cs.logger.Error("CONSUMER", "Giving up on knowledge write", details)
		cs.forget(msg.UUID)
		msg.Ack()
		return
	}
	cs.logger.Warn("CONSUMER", "Knowledge write failed, requeueing", details)
	msg.Nack()
}

func (cs *consumerService) record(id string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.attempts[id]++
	return cs.attempts[id]
}

func (cs *consumerService) forget(id string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.attempts, id)
}
