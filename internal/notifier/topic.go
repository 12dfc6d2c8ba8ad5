package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gocloud.dev/pubsub"
)

// Topic publishes alerts to a gocloud pub/sub topic, for setups where a
// separate consumer owns delivery.
type Topic struct {
	topic *pubsub.Topic
	now   func() time.Time
}

type topicPayload struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

func NewTopic(topic *pubsub.Topic) *Topic {
	return &Topic{topic: topic, now: time.Now}
}

// OpenTopic opens a topic by URL, e.g. mem://alerts or nats://alerts.
func OpenTopic(ctx context.Context, topicURL string) (*Topic, error) {
	topic, err := pubsub.OpenTopic(ctx, topicURL)
	if err != nil {
		return nil, fmt.Errorf("opening topic %q: %w", topicURL, err)
	}
	return NewTopic(topic), nil
}

func (t *Topic) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(topicPayload{Message: message, SentAt: t.now().UTC()})
	if err != nil {
		return err
	}
	err = t.topic.Send(ctx, &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			"source": "pingdom-alert",
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

func (t *Topic) Shutdown(ctx context.Context) error {
	return t.topic.Shutdown(ctx)
}
