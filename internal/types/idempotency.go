package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// IdempotencyScope namespaces idempotency keys so two entities never share a key.
type IdempotencyScope string

const (
	IdempotencyScopeCharge         IdempotencyScope = "charge"
	IdempotencyScopeFallbackIntent IdempotencyScope = "fallback_intent"
)

// GenerateIdempotencyKey builds a deterministic key from a scope and parameters.
// Parameters are sorted so the key does not depend on map iteration order; the
// canonical string is scope:key1=value1:key2=value2 and the key is its sha256 hex.
func GenerateIdempotencyKey(scope IdempotencyScope, params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return string(scope) + "_" + hex.EncodeToString(sum[:])[:40]
}

// RecurringChargeIdempotencyKey is the key of the charge created for a subscription on
// an anchor date.
func RecurringChargeIdempotencyKey(subscriptionID string, anchorDate Date) string {
	return GenerateIdempotencyKey(IdempotencyScopeCharge, map[string]interface{}{
		"purpose":         ChargePurposeRecurring,
		"subscription_id": subscriptionID,
		"anchor_date":     anchorDate.String(),
	})
}

// TableName represents a database table name
type TableName string

const (
	TableNameSubscriptions    TableName = "subscriptions"
	TableNamePaymentMethods   TableName = "payment_methods"
	TableNamePlanPrices       TableName = "plan_prices"
	TableNameAdjustments      TableName = "subscription_adjustments"
	TableNameFXRates          TableName = "fx_rates"
	TableNameBillingCycles    TableName = "billing_cycles"
	TableNameCharges          TableName = "charges"
	TableNameAttempts         TableName = "charge_attempts"
	TableNameMandates         TableName = "mandates"
	TableNameFiscalDocuments  TableName = "fiscal_documents"
	TableNameFallbackIntents  TableName = "fallback_intents"
	TableNameBillingEvents    TableName = "billing_events"
	TableNameBankBatches      TableName = "bank_batches"
	TableNameBankResponseRows TableName = "bank_response_rows"
)

func (t TableName) String() string {
	return string(t)
}
