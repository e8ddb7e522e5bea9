package bankfile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

const (
	PipeAdapterName = "pipe"
	pipeFormatTag   = "DDPIPE"
	pipeVersion     = "1"
	pipeSeparator   = '|'
)

// Records of the pipe format. Every field is a string so amounts keep their exact
// textual form.
type pipeHeaderRecord struct {
	RecordType   string `csv:"record_type"`
	FormatTag    string `csv:"format_tag"`
	Version      string `csv:"version"`
	EntityID     string `csv:"entity_id"`
	ServiceID    string `csv:"service_id"`
	BusinessDate string `csv:"business_date"`
	RecordCount  string `csv:"record_count"`
	AmountTotal  string `csv:"amount_total"`
	Checksum     string `csv:"checksum"`
}

type pipeDetailRecord struct {
	RecordType        string `csv:"record_type"`
	Sequence          string `csv:"sequence"`
	ExternalReference string `csv:"external_reference"`
	Amount            string `csv:"amount"`
	ScheduledDate     string `csv:"scheduled_date"`
	HolderName        string `csv:"holder_name"`
	HolderTaxID       string `csv:"holder_tax_id"`
	AccountLast4      string `csv:"account_last4"`
}

type pipeResponseRecord struct {
	RecordType        string `csv:"record_type"`
	Sequence          string `csv:"sequence"`
	ExternalReference string `csv:"external_reference"`
	Amount            string `csv:"amount"`
	ResultCode        string `csv:"result_code"`
	ResultMessage     string `csv:"result_message"`
	SettledAt         string `csv:"settled_at"`
	TraceID           string `csv:"trace_id"`
	OperationID       string `csv:"operation_id"`
}

type pipeTrailerRecord struct {
	RecordType  string `csv:"record_type"`
	RecordCount string `csv:"record_count"`
	AmountTotal string `csv:"amount_total"`
	Checksum    string `csv:"checksum"`
}

const (
	pipeHeaderFields   = 9
	pipeResponseFields = 9
	pipeTrailerFields  = 4
)

// PipeAdapter is the human readable pipe delimited format:
//
//	H|DDPIPE|1|entity|service|YYYYMMDD|count|amount|checksum
//	D|seq|reference|amount|YYYYMMDD|holder|tax id|last4
//	T|count|amount|checksum
//
// Response details are D|seq|reference|amount|code|message|settled_at|trace|operation.
type PipeAdapter struct {
	codes ResultCodeTable
}

func NewPipeAdapter() *PipeAdapter {
	return &PipeAdapter{codes: pipeResultCodes}
}

func (a *PipeAdapter) Name() string {
	return PipeAdapterName
}

// FileName is DD_<entity>_<YYYYMMDD>_<seq>.txt
func (a *PipeAdapter) FileName(batch BatchInfo) string {
	return fmt.Sprintf("DD_%s_%s_%03d.txt", batch.EntityID, batch.BusinessDate.Compact(), max(batch.Sequence, 1))
}

func sanitizeField(s string) string {
	return strings.TrimSpace(strings.NewReplacer("|", " ", "\n", " ", "\r", " ").Replace(s))
}

func (a *PipeAdapter) BuildOutboundFile(batch BatchInfo, lines []OutboundLine) (*OutboundFile, error) {
	if batch.BusinessDate.IsZero() {
		return nil, ierr.NewError("business date is required").
			WithHint("Outbound files need a business date").
			Mark(ierr.ErrValidation)
	}

	totals := ComputeOutboundTotals(lines)
	amountTotal := totals.AmountTotal.StringFixed(types.MoneyPrecision)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = pipeSeparator
	out := gocsv.NewSafeCSVWriter(w)

	header := []pipeHeaderRecord{{
		RecordType:   "H",
		FormatTag:    pipeFormatTag,
		Version:      pipeVersion,
		EntityID:     batch.EntityID,
		ServiceID:    batch.ServiceID,
		BusinessDate: batch.BusinessDate.Compact(),
		RecordCount:  strconv.Itoa(totals.RecordCount),
		AmountTotal:  amountTotal,
		Checksum:     totals.Checksum,
	}}
	if err := gocsv.MarshalCSVWithoutHeaders(&header, out); err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to render file header").Mark(ierr.ErrInternal)
	}

	details := make([]pipeDetailRecord, 0, len(lines))
	for i, l := range lines {
		details = append(details, pipeDetailRecord{
			RecordType:        "D",
			Sequence:          strconv.Itoa(i + 1),
			ExternalReference: sanitizeField(l.ExternalReference),
			Amount:            types.RoundMoney(l.Amount).StringFixed(types.MoneyPrecision),
			ScheduledDate:     l.ScheduledDate.Compact(),
			HolderName:        sanitizeField(l.HolderName),
			HolderTaxID:       sanitizeField(l.HolderTaxID),
			AccountLast4:      sanitizeField(l.AccountLast4),
		})
	}
	if len(details) > 0 {
		if err := gocsv.MarshalCSVWithoutHeaders(&details, out); err != nil {
			return nil, ierr.WithError(err).WithHint("Failed to render file details").Mark(ierr.ErrInternal)
		}
	}

	trailer := []pipeTrailerRecord{{
		RecordType:  "T",
		RecordCount: strconv.Itoa(totals.RecordCount),
		AmountTotal: amountTotal,
		Checksum:    totals.Checksum,
	}}
	if err := gocsv.MarshalCSVWithoutHeaders(&trailer, out); err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to render file trailer").Mark(ierr.ErrInternal)
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to render outbound file").Mark(ierr.ErrInternal)
	}

	return &OutboundFile{
		FileName: a.FileName(batch),
		Content:  buf.Bytes(),
		Totals:   totals,
	}, nil
}

// readPipeFields splits one line into its fields.
func readPipeFields(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = pipeSeparator
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.Read()
}

// decodePipeRecord maps one line onto a record struct by position.
func decodePipeRecord[T any](line string, fields int) (*T, error) {
	got, err := readPipeFields(line)
	if err != nil {
		return nil, err
	}
	if len(got) != fields {
		return nil, fmt.Errorf("expected %d fields, got %d", fields, len(got))
	}

	r := csv.NewReader(strings.NewReader(line))
	r.Comma = pipeSeparator
	r.LazyQuotes = true

	var records []T
	if err := gocsv.UnmarshalCSVWithoutHeaders(r, &records); err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("expected one record, got %d", len(records))
	}
	return &records[0], nil
}

func parseTotals(count, amount, checksum string) (ControlTotals, error) {
	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil {
		return ControlTotals{}, fmt.Errorf("invalid record count %q", count)
	}
	total, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return ControlTotals{}, fmt.Errorf("invalid amount total %q", amount)
	}
	return ControlTotals{
		RecordCount: n,
		AmountTotal: total,
		Checksum:    strings.TrimSpace(checksum),
	}, nil
}

// parseSettledAt accepts RFC3339, YYYYMMDDhhmmss and YYYYMMDD.
func parseSettledAt(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "20060102150405", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid settlement date %q", s)
}

func malformed(what string, err error) error {
	return ierr.WithError(err).
		WithHintf("Malformed %s", what).
		Mark(ierr.ErrValidation)
}

func (a *PipeAdapter) ParseInboundFile(data []byte) (*InboundFile, error) {
	lines := splitLines(data)
	if len(lines) < 2 {
		return nil, ierr.NewError("inbound file too short").
			WithHint("Inbound file must contain a header and a trailer").
			Mark(ierr.ErrValidation)
	}

	header, err := decodePipeRecord[pipeHeaderRecord](lines[0], pipeHeaderFields)
	if err != nil {
		return nil, malformed("file header", err)
	}
	if header.RecordType != "H" || header.FormatTag != pipeFormatTag {
		return nil, ierr.NewError("unrecognized file header").
			WithHintf("Header must start with H|%s", pipeFormatTag).
			Mark(ierr.ErrValidation)
	}
	businessDate, err := types.ParseCompactDate(header.BusinessDate)
	if err != nil {
		return nil, malformed("business date", err)
	}
	headerTotals, err := parseTotals(header.RecordCount, header.AmountTotal, header.Checksum)
	if err != nil {
		return nil, malformed("file header", err)
	}

	trailer, err := decodePipeRecord[pipeTrailerRecord](lines[len(lines)-1], pipeTrailerFields)
	if err != nil {
		return nil, malformed("file trailer", err)
	}
	if trailer.RecordType != "T" {
		return nil, ierr.NewError("missing file trailer").
			WithHint("Last line must be the T trailer").
			Mark(ierr.ErrValidation)
	}
	trailerTotals, err := parseTotals(trailer.RecordCount, trailer.AmountTotal, trailer.Checksum)
	if err != nil {
		return nil, malformed("file trailer", err)
	}

	f := &InboundFile{
		BusinessDate:  businessDate,
		HeaderTotals:  headerTotals,
		TrailerTotals: trailerTotals,
	}

	for i, line := range lines[1 : len(lines)-1] {
		lineNo := i + 2
		row, err := a.parseDetail(line, lineNo)
		if err != nil {
			f.Warnings = append(f.Warnings, fmt.Sprintf("line %d skipped: %v", lineNo, err))
			continue
		}
		f.Rows = append(f.Rows, *row)
	}

	return f, nil
}

func (a *PipeAdapter) parseDetail(line string, lineNo int) (*InboundRow, error) {
	rec, err := decodePipeRecord[pipeResponseRecord](line, pipeResponseFields)
	if err != nil {
		return nil, err
	}
	if rec.RecordType != "D" {
		return nil, fmt.Errorf("unexpected record type %q", rec.RecordType)
	}
	ref := strings.TrimSpace(rec.ExternalReference)
	if ref == "" {
		return nil, fmt.Errorf("missing external reference")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rec.Amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", rec.Amount)
	}
	settledAt, err := parseSettledAt(rec.SettledAt)
	if err != nil {
		return nil, err
	}

	mapping := a.MapResultCode(rec.ResultCode, ResultContext{Message: rec.ResultMessage})
	return &InboundRow{
		LineNo:            lineNo,
		ExternalReference: ref,
		RawCode:           strings.TrimSpace(rec.ResultCode),
		RawMessage:        strings.TrimSpace(rec.ResultMessage),
		Amount:            amount,
		SettledAt:         settledAt,
		TraceID:           strings.TrimSpace(rec.TraceID),
		OperationID:       strings.TrimSpace(rec.OperationID),
		Status:            mapping.Status,
		Reason:            mapping.Reason,
		LineHash:          LineHash(line),
	}, nil
}

func (a *PipeAdapter) MapResultCode(code string, rc ResultContext) ResultMapping {
	return a.codes.Map(code, rc)
}
