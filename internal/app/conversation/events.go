package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"

	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

const topic = "lawless.conversations"

type EventType string

const (
	// EventStateChanged is published after every mutation; renderers re-read Snapshot.
	EventStateChanged EventType = "state_changed"
	// EventNotification carries a transient, user facing notice.
	EventNotification EventType = "notification"
)

type NotificationKind string

const (
	NotifyCompletionFailed  NotificationKind = "completion_failed"
	NotifyPersistenceFailed NotificationKind = "persistence_failed"
)

// Notification is a transient message for the user (a toast in a UI).
type Notification struct {
	Kind    NotificationKind      `json:"kind"`
	Title   string                `json:"title"`
	Message string                `json:"message"`
	Reason  domain.CompletionKind `json:"reason,omitempty"`
}

type Event struct {
	Type           EventType             `json:"type"`
	ConversationID domain.ConversationID `json:"conversationId,omitempty"`
	Notification   *Notification         `json:"notification,omitempty"`
	At             time.Time             `json:"at"`
}

// Bus fans store events out to subscribers over a watermill go channel.
// Publishing never waits for subscribers.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

func NewBus() *Bus {
	logger := observability.NewWatermillAdapter(observability.Logger())
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, logger),
		logger: logger,
	}
}

func (b *Bus) Publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.logger.Error("encode event", err, nil)
		return
	}
	if err := b.pubSub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		b.logger.Error("publish event", err, watermill.LogFields{"type": e.Type})
	}
}

// Subscribe streams events until ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to events")
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var e Event
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				b.logger.Error("decode event", err, watermill.LogFields{"message_uuid": msg.UUID})
				msg.Ack()
				continue
			}
			select {
			case out <- e:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
