package webhook

// EventType is the type of a payment intent notification
type EventType string

const (
	EventIntentPaid     EventType = "payment_intent.paid"
	EventIntentExpired  EventType = "payment_intent.expired"
	EventIntentCanceled EventType = "payment_intent.canceled"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body
const SignatureHeader = "X-Qrpay-Signature"

// Event is a payment intent notification
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CreatedAt string    `json:"created_at"`
	Data      EventData `json:"data"`
}

type EventData struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	// ExternalReference is the fallback intent id sent on creation
	ExternalReference string `json:"external_reference"`
}
