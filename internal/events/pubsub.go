package events

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/nxtgm/feedserver/config"
	"google.golang.org/api/option"
)

// PubSubPublisher publishes feed activity to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher constructs the client and ensures the activity topic.
func NewPubSubPublisher(ctx context.Context, cfg config.EventsConfig) (*PubSubPublisher, error) {
	if strings.TrimSpace(cfg.PubSubProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.PubSubCredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.PubSubCredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSubProjectID, opts...)
	if err != nil {
		return nil, err
	}

	topic, err := ensureTopic(ctx, client, Channel)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &PubSubPublisher{client: client, topic: topic}, nil
}

// Publish sends one event to the activity topic.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	body, err := encodeEvent(event)
	if err != nil {
		return err
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{"type": event.Type},
	})
	_, err = result.Get(ctx)
	return err
}

// Close stops the topic and closes the underlying client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

func ensureTopic(ctx context.Context, client *pubsub.Client, name string) (*pubsub.Topic, error) {
	topic := client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return client.CreateTopic(ctx, name)
	}
	return topic, nil
}
