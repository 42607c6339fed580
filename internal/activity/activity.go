package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTopic is where activity records are published.
const DefaultTopic = "activities"

// Action names.
const (
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// Activity is an "acted by" record stamped from the RequestIdentity.
type Activity struct {
	ID       string    `json:"id"`
	Action   string    `json:"action"`
	Item     string    `json:"item"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

// Publisher emits activity records. Publishing is best effort for callers.
type Publisher interface {
	Publish(ctx context.Context, a Activity) error
	Close() error
}

// WatermillPublisher publishes JSON encoded activities on one topic.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillPublisher(publisher message.Publisher, topic string) *WatermillPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{publisher: publisher, topic: topic}
}

// NewRedisStreamPublisher publishes to a Redis stream named after the topic.
func NewRedisStreamPublisher(client redis.UniversalClient, topic string) (*WatermillPublisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, watermill.NewStdLogger(false, false))
	if err != nil {
		return nil, fmt.Errorf("activity: redis stream publisher: %w", err)
	}
	return NewWatermillPublisher(pub, topic), nil
}

// NewInProcess returns a gochannel pub/sub pair. The subscriber side is
// handed out so in-process consumers (and tests) can read the stream.
func NewInProcess(topic string) (*WatermillPublisher, *gochannel.GoChannel) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	return NewWatermillPublisher(ch, topic), ch
}

func (p *WatermillPublisher) Topic() string { return p.topic }

func (p *WatermillPublisher) Publish(ctx context.Context, a Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	msg := message.NewMessage(a.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("action", a.Action)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}
	return nil
}

func (p *WatermillPublisher) Close() error { return p.publisher.Close() }

// Decode parses a message produced by WatermillPublisher.
func Decode(msg *message.Message) (Activity, error) {
	var a Activity
	if err := json.Unmarshal(msg.Payload, &a); err != nil {
		return Activity{}, fmt.Errorf("activity: decode %s: %w", msg.UUID, err)
	}
	return a, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, Activity) error { return nil }
func (Nop) Close() error { return nil }
