package types

type FallbackIntentStatus string

const (
	FallbackIntentStatusPending  FallbackIntentStatus = "PENDING"
	FallbackIntentStatusPaid     FallbackIntentStatus = "PAID"
	FallbackIntentStatusExpired  FallbackIntentStatus = "EXPIRED"
	FallbackIntentStatusCanceled FallbackIntentStatus = "CANCELED"
)

func (s FallbackIntentStatus) IsFinal() bool {
	return s != FallbackIntentStatusPending
}
