package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// DefaultTopic carries every event on the in-process channel.
const DefaultTopic = "lectern.events"

// Channel publishes events on a watermill Go channel for in-process consumers.
type Channel struct {
	pubSub *gochannel.GoChannel
	topic  string
}

var _ ports.EventPublisher = (*Channel)(nil)

// NewChannel creates an in-process publisher on topic (DefaultTopic when empty).
func NewChannel(topic string) *Channel {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Channel{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
		topic:  topic,
	}
}

// Publish sends the event. Without subscribers the message is dropped.
func (c *Channel) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(event.Type))
	msg.SetContext(ctx)
	return c.pubSub.Publish(c.topic, msg)
}

// Subscribe returns decoded events until ctx is done. Each message is acked.
func (c *Channel) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	messages, err := c.pubSub.Subscribe(ctx, c.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	out := make(chan domain.Event)
	go func() {
		defer close(out)
		for msg := range messages {
			var event domain.Event
			err := json.Unmarshal(msg.Payload, &event)
			msg.Ack()
			if err != nil {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the channel down.
func (c *Channel) Close() error {
	return c.pubSub.Close()
}
