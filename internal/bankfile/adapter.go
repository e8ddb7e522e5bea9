// Package bankfile implements the bank presentment and response file formats.
//
// Each bank format is an Adapter registered by name. Adapters are pure: building and
// parsing files never touches persisted state.
package bankfile

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BatchInfo identifies the presentment a file is built for.
type BatchInfo struct {
	EntityID     string
	ServiceID    string
	BusinessDate types.Date
	// Sequence distinguishes several files sent on the same business date
	Sequence int
}

// OutboundLine is one debit instruction.
type OutboundLine struct {
	ExternalReference string
	Amount            decimal.Decimal
	ScheduledDate     types.Date
	HolderName        string
	HolderTaxID       string
	AccountLast4      string
}

// ControlTotals are the integrity totals carried in a file's header and trailer.
type ControlTotals struct {
	RecordCount int             `json:"record_count"`
	AmountTotal decimal.Decimal `json:"amount_total"`
	Checksum    string          `json:"checksum"`
}

type OutboundFile struct {
	FileName string
	Content  []byte
	Totals   ControlTotals
}

// InboundRow is one parsed response line.
type InboundRow struct {
	LineNo            int
	ExternalReference string
	RawCode           string
	RawMessage        string
	Amount            decimal.Decimal
	SettledAt         *time.Time
	TraceID           string
	OperationID       string
	Status            types.BankResultStatus
	Reason            types.BankReasonCode
	// LineHash is the sha256 of the raw line, used to skip reprocessed lines
	LineHash string
}

type InboundFile struct {
	BusinessDate  types.Date
	HeaderTotals  ControlTotals
	TrailerTotals ControlTotals
	Rows          []InboundRow
	Warnings      []string
}

// ResultContext carries what a bank sent along with a result code.
type ResultContext struct {
	Message string
}

type ResultMapping struct {
	Status types.BankResultStatus
	Reason types.BankReasonCode
}

// Adapter is one bank file format.
type Adapter interface {
	Name() string

	// BuildOutboundFile renders a header, one detail per line and a trailer.
	BuildOutboundFile(batch BatchInfo, lines []OutboundLine) (*OutboundFile, error)

	// ParseInboundFile parses a response file. Malformed detail lines become
	// warnings; a missing or malformed header or trailer is an error.
	ParseInboundFile(data []byte) (*InboundFile, error)

	// MapResultCode maps a bank code to the internal taxonomy. It is total:
	// unknown and empty codes map to UNKNOWN.
	MapResultCode(code string, rc ResultContext) ResultMapping
}

// Registry resolves adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// NewDefaultRegistry registers the pipe adapter and the official adapter with
// the given layout.
func NewDefaultRegistry(layout Layout) *Registry {
	return NewRegistry(NewPipeAdapter(), NewOfficialAdapter(layout))
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	if !ok {
		return nil, ierr.NewErrorf("bank adapter %q not registered", name).
			WithHintf("Bank adapter must be one of: %s", strings.Join(r.names(), ", ")).
			Mark(ierr.ErrValidation)
	}
	return a, nil
}

func (r *Registry) names() []string {
	names := lo.Keys(r.adapters)
	sort.Strings(names)
	return names
}

// LineHash returns the sha256 hex digest of a raw file line.
func LineHash(line string) string {
	sum := sha256.Sum256([]byte(line))
	return hex.EncodeToString(sum[:])
}

// splitLines splits file content into non-empty lines without line terminators.
func splitLines(data []byte) []string {
	raw := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	return lo.Filter(raw, func(l string, _ int) bool { return strings.TrimSpace(l) != "" })
}
