package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"account-service/pkg/kafka"
)

// Subscriber starts a background reader for a topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, groupID string, handler func([]byte) error)
}

// Consumer relays user change events from kafka to the hub.
type Consumer struct {
	sub     Subscriber
	hub     *Hub
	groupID string
}

// NewConsumer creates a consumer feeding hub. Every instance serving
// websockets needs its own groupID so each one sees every event.
func NewConsumer(sub Subscriber, hub *Hub, groupID string) *Consumer {
	return &Consumer{sub: sub, hub: hub, groupID: groupID}
}

// Start begins consuming user.updated and user.password_changed.
func (c *Consumer) Start(ctx context.Context) {
	for _, topic := range []string{kafka.TopicUserUpdated, kafka.TopicUserPasswordChanged} {
		c.sub.Subscribe(ctx, topic, c.groupID, c.handler(topic))
	}
}

func (c *Consumer) handler(topic string) func([]byte) error {
	return func(data []byte) error {
		var ev struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", topic, err)
		}
		if ev.UserID == "" {
			log.Printf("[feed] %s without user_id dropped", topic)
			return nil
		}
		n := c.hub.Broadcast(ev.UserID, topic, data)
		log.Printf("[feed] %s → user %s (%d clients)", topic, ev.UserID, n)
		return nil
	}
}
