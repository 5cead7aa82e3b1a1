package service

import (
	"context"
	"encoding/json"

	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/pipeline"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IConsumerService drains pipeline stage events off the in-process bus
// and records them, so engine progress is observable without coupling
// the pipeline to any particular sink.
type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	log       logger.ILogger
}

func NewConsumerService(pubSub *gochannel.GoChannel, topicName string, log logger.ILogger) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		log:       log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var event pipeline.StageEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		cs.log.Warn("consumer", "unparseable stage event", map[string]interface{}{
			"error": err.Error(),
		})
		// Ack malformed payloads to prevent infinite retry.
		msg.Ack()
		return
	}

	details := map[string]interface{}{
		"request_id": event.RequestId,
		"persona":    event.Persona,
		"mode":       event.Mode,
		"stage":      event.Stage,
	}
	for k, v := range event.Detail {
		details[k] = v
	}
	cs.log.Info("consumer", "pipeline stage", details)

	msg.Ack()
}
