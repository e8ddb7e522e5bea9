package billingevent

import (
	"time"

	"github.com/flexprice/collections/internal/types"
)

// Event is an append-only audit record of a billing state change. Events are also
// published to the event bus once the transaction that recorded them commits.
type Event struct {
	ID             string                 `json:"id"`
	AgencyID       string                 `json:"agency_id"`
	SubscriptionID string                 `json:"subscription_id,omitempty"`
	EventType      types.BillingEventType `json:"event_type"`
	Payload        map[string]interface{} `json:"payload"`
	Actor          string                 `json:"actor"`
	CreatedAt      time.Time              `json:"created_at"`
}

// New builds an event with a fresh id.
func New(agencyID, subscriptionID string, eventType types.BillingEventType, actor string, payload map[string]interface{}) *Event {
	if actor == "" {
		actor = types.DefaultActor
	}
	return &Event{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_EVENT),
		AgencyID:       agencyID,
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		Payload:        payload,
		Actor:          actor,
		CreatedAt:      time.Now().UTC(),
	}
}
