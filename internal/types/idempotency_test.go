package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIdempotencyKey_IsDeterministic(t *testing.T) {
	a := GenerateIdempotencyKey(IdempotencyScopeCharge, map[string]interface{}{
		"subscription_id": "sub_1",
		"anchor_date":     "2026-03-10",
		"purpose":         "recurring",
	})
	b := GenerateIdempotencyKey(IdempotencyScopeCharge, map[string]interface{}{
		"purpose":         "recurring",
		"anchor_date":     "2026-03-10",
		"subscription_id": "sub_1",
	})

	assert.Equal(t, a, b)
	assert.Contains(t, a, "charge_")
}

func TestRecurringChargeIdempotencyKey(t *testing.T) {
	march := RecurringChargeIdempotencyKey("sub_1", MustParseDate("2026-03-10"))

	assert.Equal(t, march, RecurringChargeIdempotencyKey("sub_1", MustParseDate("2026-03-10")))
	assert.NotEqual(t, march, RecurringChargeIdempotencyKey("sub_1", MustParseDate("2026-04-10")))
	assert.NotEqual(t, march, RecurringChargeIdempotencyKey("sub_2", MustParseDate("2026-03-10")))
}
