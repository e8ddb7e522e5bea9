package types

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	UUID_PREFIX_SUBSCRIPTION    = "sub"
	UUID_PREFIX_PAYMENT_METHOD  = "pm"
	UUID_PREFIX_BILLING_CYCLE   = "cyc"
	UUID_PREFIX_CHARGE          = "chg"
	UUID_PREFIX_ATTEMPT         = "att"
	UUID_PREFIX_MANDATE         = "mdt"
	UUID_PREFIX_FISCAL_DOCUMENT = "fdoc"
	UUID_PREFIX_FALLBACK_INTENT = "fbi"
	UUID_PREFIX_BILLING_EVENT   = "bevt"
	UUID_PREFIX_BANK_BATCH      = "bbat"
	UUID_PREFIX_BANK_RESPONSE   = "bres"
	UUID_PREFIX_FX_RATE         = "fx"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier with a prefix ex inv_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return prefix + "_" + strings.ToLower(GenerateUUID())
}
