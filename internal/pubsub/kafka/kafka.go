package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	kafkaConfig "github.com/flexprice/collections/internal/kafka"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/pubsub"
)

// PartitionKeyMetadata is the message metadata key used to pick the partition.
const PartitionKeyMetadata = "partition_key"

type KafkaPubSub struct {
	publisher  *kafka.Publisher
	subscriber *kafka.Subscriber
	logger     *logger.Logger
}

func partitionKey(_ string, msg *message.Message) (string, error) {
	if key := msg.Metadata.Get(PartitionKeyMetadata); key != "" {
		return key, nil
	}
	return msg.UUID, nil
}

// NewPubSubFromConfig connects a publisher and a subscriber in consumerGroup to the
// configured brokers.
func NewPubSubFromConfig(cfg *config.Configuration, log *logger.Logger, consumerGroup string) (pubsub.PubSub, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, ierr.NewError("no kafka brokers configured").
			WithHint("Set kafka.brokers or use the memory event publisher").
			Mark(ierr.ErrValidation)
	}

	saramaConfig := kafkaConfig.GetSaramaConfig(cfg)
	marshaler := kafka.NewWithPartitioningMarshaler(partitionKey)

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               cfg.Kafka.Brokers,
		Marshaler:             marshaler,
		OverwriteSaramaConfig: saramaConfig,
	}, log.GetWatermillLogger())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create kafka publisher").
			Mark(ierr.ErrSystem)
	}

	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               cfg.Kafka.Brokers,
		Unmarshaler:           marshaler,
		OverwriteSaramaConfig: saramaConfig,
		ConsumerGroup:         consumerGroup,
	}, log.GetWatermillLogger())
	if err != nil {
		_ = publisher.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to create kafka subscriber").
			Mark(ierr.ErrSystem)
	}

	log.Infow("kafka pubsub initialized",
		"brokers", cfg.Kafka.Brokers,
		"consumer_group", consumerGroup,
	)

	return &KafkaPubSub{publisher: publisher, subscriber: subscriber, logger: log}, nil
}

func (p *KafkaPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.publisher.Publish(topic, msg)
}

func (p *KafkaPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

func (p *KafkaPubSub) Close() error {
	pubErr := p.publisher.Close()
	subErr := p.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
