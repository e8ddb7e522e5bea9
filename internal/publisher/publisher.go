package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/domain/billingevent"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/pubsub"
	"github.com/flexprice/collections/internal/pubsub/kafka"
	"github.com/flexprice/collections/internal/pubsub/memory"
)

// EventPublisher publishes committed billing events to the event stream.
type EventPublisher interface {
	Publish(ctx context.Context, event *billingevent.Event) error
}

type eventPublisher struct {
	pubSub pubsub.PubSub
	topic  string
	logger *logger.Logger
}

// NewEventPublisher picks kafka or the in-process channel from event_publisher.type.
func NewEventPublisher(cfg *config.Configuration, log *logger.Logger) (EventPublisher, error) {
	var (
		ps  pubsub.PubSub
		err error
	)
	switch cfg.EventPublisher.Type {
	case "kafka":
		ps, err = kafka.NewPubSubFromConfig(cfg, log, cfg.Kafka.ClientID)
		if err != nil {
			return nil, err
		}
	default:
		ps = memory.NewPubSub(log)
	}
	return NewPubSubPublisher(ps, cfg.EventPublisher.Topic, log), nil
}

func NewPubSubPublisher(ps pubsub.PubSub, topic string, log *logger.Logger) EventPublisher {
	return &eventPublisher{pubSub: ps, topic: topic, logger: log}
}

func (p *eventPublisher) Publish(ctx context.Context, event *billingevent.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal billing event").
			Mark(ierr.ErrValidation)
	}

	// event ids are unique, consumers dedupe on the message uuid
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("agency_id", event.AgencyID)
	msg.Metadata.Set("event_type", string(event.EventType))
	msg.Metadata.Set(kafka.PartitionKeyMetadata, event.AgencyID+":"+event.SubscriptionID)

	if err := p.pubSub.Publish(ctx, p.topic, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish billing event").
			WithReportableDetails(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.EventType,
			}).
			Mark(ierr.ErrSystem)
	}

	p.logger.Debugw("published billing event",
		"event_id", event.ID,
		"event_type", event.EventType,
		"subscription_id", event.SubscriptionID,
		"topic", p.topic,
	)
	return nil
}
