package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/flexprice/collections/internal/domain/billingevent"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/pubsub/memory"
	"github.com/flexprice/collections/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_PublishesToTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := logger.NewNopLogger()
	ps := memory.NewPubSub(log)
	defer ps.Close()

	messages, err := ps.Subscribe(ctx, "billing_events")
	require.NoError(t, err)

	p := NewPubSubPublisher(ps, "billing_events", log)
	event := billingevent.New("agency_1", "sub_1", types.BillingEventChargeCreated, "", map[string]interface{}{
		"charge_id": "chg_1",
	})
	require.NoError(t, p.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, "agency_1", msg.Metadata.Get("agency_id"))
		assert.Equal(t, "agency_1:sub_1", msg.Metadata.Get("partition_key"))

		var got billingevent.Event
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, types.BillingEventChargeCreated, got.EventType)
		assert.Equal(t, types.DefaultActor, got.Actor)
		assert.Equal(t, "chg_1", got.Payload["charge_id"])
	case <-ctx.Done():
		t.Fatal("billing event was not delivered")
	}
}
