package pipeline

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// StageEvent reports one stage boundary for observers (logging,
// websocket bridges). Published best-effort; the pipeline never blocks
// on its observers.
type StageEvent struct {
	RequestId string                 `json:"request_id"`
	Persona   string                 `json:"persona"`
	Mode      string                 `json:"mode"`
	Stage     string                 `json:"stage"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	At        time.Time              `json:"at"`
}

// StagePublisher fans stage events out over the in-process bus.
type StagePublisher struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewStagePublisher(pubSub *gochannel.GoChannel, topic string) *StagePublisher {
	return &StagePublisher{pubSub: pubSub, topic: topic}
}

func (p *StagePublisher) Publish(event StageEvent) {
	if p == nil || p.pubSub == nil {
		return
	}
	event.At = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	// Observer failure must not affect the pipeline.
	_ = p.pubSub.Publish(p.topic, msg)
}
