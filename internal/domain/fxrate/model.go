package fxrate

import (
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

// Rate is the number of Quote currency units per Base currency unit effective from
// EffectiveDate.
type Rate struct {
	ID            string          `json:"id"`
	Base          string          `json:"base"`
	Quote         string          `json:"quote"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate types.Date      `json:"effective_date"`
	Source        string          `json:"source"`
	CreatedAt     time.Time       `json:"created_at"`
}
