package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/pubsub"
)

// MemoryPubSub is an in-process pub/sub used by local runs and tests.
type MemoryPubSub struct {
	ch *gochannel.GoChannel
}

func NewPubSub(log *logger.Logger) pubsub.PubSub {
	return &MemoryPubSub{
		ch: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 1024,
			// late subscribers still receive what was published before they joined
			Persistent: true,
		}, log.GetWatermillLogger()),
	}
}

func (p *MemoryPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.ch.Publish(topic, msg)
}

func (p *MemoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.ch.Subscribe(ctx, topic)
}

func (p *MemoryPubSub) Close() error {
	return p.ch.Close()
}
