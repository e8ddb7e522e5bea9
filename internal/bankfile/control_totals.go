package bankfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type checksumPair struct {
	ref    string
	amount string
}

// Checksum is the first 16 upper-case hex chars of the sha256 of the
// (external_reference, amount) pairs sorted ascending. Input order does not matter.
func Checksum(refs []string, amounts []decimal.Decimal) string {
	pairs := make([]checksumPair, len(refs))
	for i := range refs {
		pairs[i] = checksumPair{ref: refs[i], amount: types.RoundMoney(amounts[i]).StringFixed(types.MoneyPrecision)}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ref != pairs[j].ref {
			return pairs[i].ref < pairs[j].ref
		}
		return pairs[i].amount < pairs[j].amount
	})

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p.ref))
		h.Write([]byte{':'})
		h.Write([]byte(p.amount))
		h.Write([]byte{'\n'})
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))[:16])
}

// ComputeOutboundTotals derives the control totals of a set of debit lines.
func ComputeOutboundTotals(lines []OutboundLine) ControlTotals {
	return computeTotals(
		lo.Map(lines, func(l OutboundLine, _ int) string { return l.ExternalReference }),
		lo.Map(lines, func(l OutboundLine, _ int) decimal.Decimal { return l.Amount }),
	)
}

// ComputeInboundTotals derives the control totals of parsed response rows.
func ComputeInboundTotals(rows []InboundRow) ControlTotals {
	return computeTotals(
		lo.Map(rows, func(r InboundRow, _ int) string { return r.ExternalReference }),
		lo.Map(rows, func(r InboundRow, _ int) decimal.Decimal { return r.Amount }),
	)
}

func computeTotals(refs []string, amounts []decimal.Decimal) ControlTotals {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(types.RoundMoney(a))
	}
	return ControlTotals{
		RecordCount: len(refs),
		AmountTotal: types.RoundMoney(total),
		Checksum:    Checksum(refs, amounts),
	}
}

// ValidateOutboundControlTotals compares declared totals with the ones computed from
// lines and returns one message per mismatch.
func ValidateOutboundControlTotals(lines []OutboundLine, declared ControlTotals) []string {
	return compareTotals("outbound", ComputeOutboundTotals(lines), declared)
}

// ValidateInboundControlTotals compares declared totals with the ones computed from
// the parsed rows and returns one message per mismatch.
func ValidateInboundControlTotals(rows []InboundRow, declared ControlTotals) []string {
	return compareTotals("inbound", ComputeInboundTotals(rows), declared)
}

// ValidateInboundFile checks the rows against both the header and the trailer totals.
func ValidateInboundFile(f *InboundFile) []string {
	var mismatches []string
	for _, m := range ValidateInboundControlTotals(f.Rows, f.HeaderTotals) {
		mismatches = append(mismatches, "header: "+m)
	}
	for _, m := range ValidateInboundControlTotals(f.Rows, f.TrailerTotals) {
		mismatches = append(mismatches, "trailer: "+m)
	}
	return mismatches
}

func compareTotals(direction string, computed, declared ControlTotals) []string {
	var mismatches []string

	if computed.RecordCount != declared.RecordCount {
		mismatches = append(mismatches, fmt.Sprintf("%s record_count mismatch: declared %d, computed %d",
			direction, declared.RecordCount, computed.RecordCount))
	}

	diff := computed.AmountTotal.Sub(declared.AmountTotal).Abs()
	if diff.GreaterThan(types.MoneyTolerance) {
		mismatches = append(mismatches, fmt.Sprintf("%s amount_total mismatch: declared %s, computed %s",
			direction, declared.AmountTotal.StringFixed(types.MoneyPrecision), computed.AmountTotal.StringFixed(types.MoneyPrecision)))
	}

	if declared.Checksum != "" && computed.Checksum != "" && !strings.EqualFold(declared.Checksum, computed.Checksum) {
		mismatches = append(mismatches, fmt.Sprintf("%s checksum mismatch: declared %s, computed %s",
			direction, declared.Checksum, computed.Checksum))
	}

	return mismatches
}
