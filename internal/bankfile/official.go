package bankfile

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
)

const OfficialAdapterName = "official"

// FieldKind controls how a positional field is padded.
type FieldKind string

const (
	// FieldAlpha is left aligned and space padded
	FieldAlpha FieldKind = "alpha"
	// FieldNumeric is right aligned and zero padded
	FieldNumeric FieldKind = "numeric"
	// FieldAmount is an amount in cents, right aligned and zero padded
	FieldAmount FieldKind = "amount"
)

// Field is one fixed width column of a record.
type Field struct {
	Name  string
	Width int
	Kind  FieldKind
}

// RecordLayout is the ordered columns of one record type. The first column is
// always the record tag.
type RecordLayout struct {
	Tag    string
	Fields []Field
}

func (r RecordLayout) width() int {
	w := len(r.Tag)
	for _, f := range r.Fields {
		w += f.Width
	}
	return w
}

// Layout describes a positional bank format. The bank's final layout has not been
// published, so DefaultOfficialLayout is provisional and callers only depend on
// Layout.
type Layout struct {
	FormatTag string
	Version   string
	// FileNamePattern is formatted with prefix, entity id, YYYYMMDD and sequence
	FileNamePattern string
	FilePrefix      string
	Header          RecordLayout
	Detail          RecordLayout
	Response        RecordLayout
	Trailer         RecordLayout
	ResultCodes     ResultCodeTable
}

// Column names understood by the official adapter.
const (
	colFormatTag     = "format_tag"
	colVersion       = "version"
	colEntityID      = "entity_id"
	colServiceID     = "service_id"
	colBusinessDate  = "business_date"
	colRecordCount   = "record_count"
	colAmountTotal   = "amount_total"
	colChecksum      = "checksum"
	colSequence      = "sequence"
	colReference     = "external_reference"
	colAmount        = "amount"
	colScheduledDate = "scheduled_date"
	colHolderName    = "holder_name"
	colHolderTaxID   = "holder_tax_id"
	colAccountLast4  = "account_last4"
	colResultCode    = "result_code"
	colResultMessage = "result_message"
	colSettledAt     = "settled_at"
	colTraceID       = "trace_id"
	colOperationID   = "operation_id"
)

func DefaultOfficialLayout(filePrefix string) Layout {
	if filePrefix == "" {
		filePrefix = "DEB"
	}
	return Layout{
		FormatTag:       "DDOFC",
		Version:         "01",
		FileNamePattern: "%s%s%s%02d.dat",
		FilePrefix:      filePrefix,
		Header: RecordLayout{Tag: "1", Fields: []Field{
			{Name: colFormatTag, Width: 5, Kind: FieldAlpha},
			{Name: colVersion, Width: 2, Kind: FieldNumeric},
			{Name: colEntityID, Width: 10, Kind: FieldAlpha},
			{Name: colServiceID, Width: 10, Kind: FieldAlpha},
			{Name: colBusinessDate, Width: 8, Kind: FieldNumeric},
			{Name: colRecordCount, Width: 7, Kind: FieldNumeric},
			{Name: colAmountTotal, Width: 15, Kind: FieldAmount},
			{Name: colChecksum, Width: 16, Kind: FieldAlpha},
		}},
		Detail: RecordLayout{Tag: "2", Fields: []Field{
			{Name: colSequence, Width: 7, Kind: FieldNumeric},
			{Name: colReference, Width: 40, Kind: FieldAlpha},
			{Name: colAmount, Width: 13, Kind: FieldAmount},
			{Name: colScheduledDate, Width: 8, Kind: FieldNumeric},
			{Name: colHolderName, Width: 30, Kind: FieldAlpha},
			{Name: colHolderTaxID, Width: 11, Kind: FieldNumeric},
			{Name: colAccountLast4, Width: 4, Kind: FieldNumeric},
		}},
		Response: RecordLayout{Tag: "2", Fields: []Field{
			{Name: colSequence, Width: 7, Kind: FieldNumeric},
			{Name: colReference, Width: 40, Kind: FieldAlpha},
			{Name: colAmount, Width: 13, Kind: FieldAmount},
			{Name: colResultCode, Width: 3, Kind: FieldAlpha},
			{Name: colResultMessage, Width: 40, Kind: FieldAlpha},
			{Name: colSettledAt, Width: 8, Kind: FieldAlpha},
			{Name: colTraceID, Width: 15, Kind: FieldAlpha},
			{Name: colOperationID, Width: 15, Kind: FieldAlpha},
		}},
		Trailer: RecordLayout{Tag: "9", Fields: []Field{
			{Name: colRecordCount, Width: 7, Kind: FieldNumeric},
			{Name: colAmountTotal, Width: 15, Kind: FieldAmount},
			{Name: colChecksum, Width: 16, Kind: FieldAlpha},
		}},
		ResultCodes: ResultCodeTable{
			"000": paid(),
			"R01": rejected(types.BankReasonInsufficientFunds),
			"R02": rejected(types.BankReasonAccountClosed),
			"R03": rejected(types.BankReasonInvalidAccount),
			"R04": rejected(types.BankReasonMandateInvalid),
			"R05": rejected(types.BankReasonMandateInvalid),
			"R10": rejected(types.BankReasonDuplicate),
			"R99": rejected(types.BankReasonNone),
			"E01": failed(types.BankReasonFormatError),
			"E99": failed(types.BankReasonNone),
		},
	}
}

// OfficialAdapter renders and parses a positional layout.
type OfficialAdapter struct {
	layout Layout
}

func NewOfficialAdapter(layout Layout) *OfficialAdapter {
	return &OfficialAdapter{layout: layout}
}

func (a *OfficialAdapter) Name() string {
	return OfficialAdapterName
}

func (a *OfficialAdapter) FileName(batch BatchInfo) string {
	return fmt.Sprintf(a.layout.FileNamePattern, a.layout.FilePrefix, batch.EntityID, batch.BusinessDate.Compact(), max(batch.Sequence, 1))
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N",
)

// toASCII keeps positional widths stable: accents are folded and any other rune
// outside printable ASCII becomes a space.
func toASCII(s string) string {
	s = accentFolder.Replace(s)
	var b strings.Builder
	for _, r := range s {
		if r < utf8.RuneSelf && r >= ' ' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func formatField(f Field, value string) (string, error) {
	switch f.Kind {
	case FieldAmount:
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return "", fmt.Errorf("field %s: invalid amount %q", f.Name, value)
		}
		if amount.IsNegative() {
			return "", fmt.Errorf("field %s: negative amount", f.Name)
		}
		cents := types.RoundMoney(amount).Shift(types.MoneyPrecision).StringFixed(0)
		if len(cents) > f.Width {
			return "", fmt.Errorf("field %s: %s does not fit %d digits", f.Name, value, f.Width)
		}
		return strings.Repeat("0", f.Width-len(cents)) + cents, nil
	case FieldNumeric:
		digits := strings.TrimSpace(value)
		if len(digits) > f.Width {
			return "", fmt.Errorf("field %s: %q does not fit %d digits", f.Name, value, f.Width)
		}
		return strings.Repeat("0", f.Width-len(digits)) + digits, nil
	default:
		v := toASCII(strings.TrimSpace(value))
		if len(v) > f.Width {
			v = v[:f.Width]
		}
		return v + strings.Repeat(" ", f.Width-len(v)), nil
	}
}

func renderRecord(r RecordLayout, values map[string]string) (string, error) {
	var b strings.Builder
	b.WriteString(r.Tag)
	for _, f := range r.Fields {
		s, err := formatField(f, values[f.Name])
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// splitRecord cuts a line into named raw values. Fixed width lines must match the
// layout width exactly.
func splitRecord(r RecordLayout, line string) (map[string]string, error) {
	// positions are byte offsets, so a multi-byte character would shift every field after it
	for i := 0; i < len(line); i++ {
		if line[i] >= utf8.RuneSelf {
			return nil, fmt.Errorf("non-ASCII byte at position %d", i+1)
		}
	}
	if len(line) != r.width() {
		return nil, fmt.Errorf("expected %d characters, got %d", r.width(), len(line))
	}
	if !strings.HasPrefix(line, r.Tag) {
		return nil, fmt.Errorf("expected record tag %q", r.Tag)
	}
	values := make(map[string]string, len(r.Fields))
	pos := len(r.Tag)
	for _, f := range r.Fields {
		values[f.Name] = strings.TrimSpace(line[pos : pos+f.Width])
		pos += f.Width
	}
	return values, nil
}

func parseCents(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("missing amount")
	}
	cents, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return cents.Shift(-types.MoneyPrecision), nil
}

func (a *OfficialAdapter) BuildOutboundFile(batch BatchInfo, lines []OutboundLine) (*OutboundFile, error) {
	if batch.BusinessDate.IsZero() {
		return nil, ierr.NewError("business date is required").
			WithHint("Outbound files need a business date").
			Mark(ierr.ErrValidation)
	}

	totals := ComputeOutboundTotals(lines)
	totalValues := map[string]string{
		colFormatTag:    a.layout.FormatTag,
		colVersion:      a.layout.Version,
		colEntityID:     batch.EntityID,
		colServiceID:    batch.ServiceID,
		colBusinessDate: batch.BusinessDate.Compact(),
		colRecordCount:  strconv.Itoa(totals.RecordCount),
		colAmountTotal:  totals.AmountTotal.StringFixed(types.MoneyPrecision),
		colChecksum:     totals.Checksum,
	}

	var buf bytes.Buffer
	header, err := renderRecord(a.layout.Header, totalValues)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to render file header").Mark(ierr.ErrValidation)
	}
	buf.WriteString(header + "\r\n")

	for i, l := range lines {
		detail, err := renderRecord(a.layout.Detail, map[string]string{
			colSequence:      strconv.Itoa(i + 1),
			colReference:     l.ExternalReference,
			colAmount:        l.Amount.String(),
			colScheduledDate: l.ScheduledDate.Compact(),
			colHolderName:    l.HolderName,
			colHolderTaxID:   onlyDigits(l.HolderTaxID),
			colAccountLast4:  onlyDigits(l.AccountLast4),
		})
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Failed to render debit for %s", l.ExternalReference).
				Mark(ierr.ErrValidation)
		}
		buf.WriteString(detail + "\r\n")
	}

	trailer, err := renderRecord(a.layout.Trailer, totalValues)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to render file trailer").Mark(ierr.ErrValidation)
	}
	buf.WriteString(trailer + "\r\n")

	return &OutboundFile{
		FileName: a.FileName(batch),
		Content:  buf.Bytes(),
		Totals:   totals,
	}, nil
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func (a *OfficialAdapter) parseTotals(values map[string]string) (ControlTotals, error) {
	count, err := strconv.Atoi(values[colRecordCount])
	if err != nil {
		return ControlTotals{}, fmt.Errorf("invalid record count %q", values[colRecordCount])
	}
	amount, err := parseCents(values[colAmountTotal])
	if err != nil {
		return ControlTotals{}, err
	}
	return ControlTotals{RecordCount: count, AmountTotal: amount, Checksum: values[colChecksum]}, nil
}

func (a *OfficialAdapter) ParseInboundFile(data []byte) (*InboundFile, error) {
	lines := splitLines(data)
	if len(lines) < 2 {
		return nil, ierr.NewError("inbound file too short").
			WithHint("Inbound file must contain a header and a trailer").
			Mark(ierr.ErrValidation)
	}

	headerValues, err := splitRecord(a.layout.Header, lines[0])
	if err != nil {
		return nil, malformed("file header", err)
	}
	if headerValues[colFormatTag] != a.layout.FormatTag {
		return nil, ierr.NewError("unrecognized file header").
			WithHintf("Header format tag must be %s", a.layout.FormatTag).
			Mark(ierr.ErrValidation)
	}
	businessDate, err := types.ParseCompactDate(headerValues[colBusinessDate])
	if err != nil {
		return nil, malformed("business date", err)
	}
	headerTotals, err := a.parseTotals(headerValues)
	if err != nil {
		return nil, malformed("file header", err)
	}

	trailerValues, err := splitRecord(a.layout.Trailer, lines[len(lines)-1])
	if err != nil {
		return nil, malformed("file trailer", err)
	}
	trailerTotals, err := a.parseTotals(trailerValues)
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

func (a *OfficialAdapter) parseDetail(line string, lineNo int) (*InboundRow, error) {
	values, err := splitRecord(a.layout.Response, line)
	if err != nil {
		return nil, err
	}
	if values[colReference] == "" {
		return nil, fmt.Errorf("missing external reference")
	}
	amount, err := parseCents(values[colAmount])
	if err != nil {
		return nil, err
	}
	settledAt, err := parseSettledAt(values[colSettledAt])
	if err != nil {
		return nil, err
	}

	mapping := a.MapResultCode(values[colResultCode], ResultContext{Message: values[colResultMessage]})
	return &InboundRow{
		LineNo:            lineNo,
		ExternalReference: values[colReference],
		RawCode:           values[colResultCode],
		RawMessage:        values[colResultMessage],
		Amount:            amount,
		SettledAt:         settledAt,
		TraceID:           values[colTraceID],
		OperationID:       values[colOperationID],
		Status:            mapping.Status,
		Reason:            mapping.Reason,
		LineHash:          LineHash(line),
	}, nil
}

func (a *OfficialAdapter) MapResultCode(code string, rc ResultContext) ResultMapping {
	return a.layout.ResultCodes.Map(code, rc)
}
