package types

type BillingEventType string

const (
	BillingEventCycleCreated          BillingEventType = "CYCLE_CREATED"
	BillingEventChargeCreated         BillingEventType = "CHARGE_CREATED"
	BillingEventChargePaid            BillingEventType = "CHARGE_PAID"
	BillingEventChargeFailed          BillingEventType = "CHARGE_FAILED"
	BillingEventAttemptCreated        BillingEventType = "ATTEMPT_CREATED"
	BillingEventAttemptPresented      BillingEventType = "ATTEMPT_PRESENTED"
	BillingEventAttemptResult         BillingEventType = "ATTEMPT_RESULT"
	BillingEventMandateStatusChanged  BillingEventType = "MANDATE_STATUS_CHANGED"
	BillingEventMandateRejected       BillingEventType = "MANDATE_REJECTED"
	BillingEventMandateRevoked        BillingEventType = "MANDATE_REVOKED"
	BillingEventFiscalDocumentIssued  BillingEventType = "FISCAL_DOCUMENT_ISSUED"
	BillingEventFiscalDocumentFailed  BillingEventType = "FISCAL_DOCUMENT_FAILED"
	BillingEventFallbackIntentCreated BillingEventType = "FALLBACK_INTENT_CREATED"
	BillingEventFallbackIntentUpdated BillingEventType = "FALLBACK_INTENT_UPDATED"
	BillingEventSubscriptionAdvanced  BillingEventType = "SUBSCRIPTION_ANCHOR_ADVANCED"
)
