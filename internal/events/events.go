package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nxtgm/feedserver/config"
)

// Channel is the broker channel all feed activity is published on.
const Channel = "feed.activity"

// Event types emitted by the feed service.
const (
	TypePostCreated  = "post.created"
	TypePostDeleted  = "post.deleted"
	TypePostLiked    = "post.liked"
	TypeCommentAdded = "comment.added"
)

// Event is a feed activity record delivered to downstream consumers.
type Event struct {
	Type       string    `json:"type"`
	PostID     string    `json:"postId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers feed activity events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// New constructs the publisher selected by config. An empty backend yields
// a no-op publisher so callers never have to nil-check.
func New(ctx context.Context, cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Backend {
	case "":
		return NopPublisher{}, nil
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg)
	case "pubsub":
		return NewPubSubPublisher(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

func encodeEvent(event Event) ([]byte, error) {
	if event.Type == "" {
		return nil, errors.New("event type is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return json.Marshal(event)
}
