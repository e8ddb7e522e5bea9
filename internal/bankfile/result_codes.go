package bankfile

import (
	"strings"

	"github.com/flexprice/collections/internal/types"
)

// ResultCodeTable maps normalized bank codes to the internal taxonomy.
type ResultCodeTable map[string]ResultMapping

func paid() ResultMapping {
	return ResultMapping{Status: types.BankResultStatusPaid}
}

func rejected(reason types.BankReasonCode) ResultMapping {
	return ResultMapping{Status: types.BankResultStatusRejected, Reason: reason}
}

func failed(reason types.BankReasonCode) ResultMapping {
	return ResultMapping{Status: types.BankResultStatusError, Reason: reason}
}

// messageReasons refines generic rejection codes from the bank message. Keywords
// are matched on the lower-cased message, Spanish and English.
var messageReasons = []struct {
	keywords []string
	reason   types.BankReasonCode
}{
	{keywords: []string{"fondos insuficientes", "insufficient funds", "sin saldo"}, reason: types.BankReasonInsufficientFunds},
	{keywords: []string{"cuenta cerrada", "account closed"}, reason: types.BankReasonAccountClosed},
	{keywords: []string{"cuenta inexistente", "cuenta invalida", "invalid account", "cbu invalido"}, reason: types.BankReasonInvalidAccount},
	{keywords: []string{"adhesion", "mandato", "mandate"}, reason: types.BankReasonMandateInvalid},
	{keywords: []string{"duplicad", "duplicate"}, reason: types.BankReasonDuplicate},
	{keywords: []string{"formato", "format"}, reason: types.BankReasonFormatError},
}

func reasonFromMessage(message string) types.BankReasonCode {
	m := strings.ToLower(message)
	for _, mr := range messageReasons {
		for _, kw := range mr.keywords {
			if strings.Contains(m, kw) {
				return mr.reason
			}
		}
	}
	return types.BankReasonNone
}

// Map looks up code in the table. Codes mapped without a reason take one from the
// message when it names one. Unknown and empty codes map to UNKNOWN.
func (t ResultCodeTable) Map(code string, rc ResultContext) ResultMapping {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return ResultMapping{Status: types.BankResultStatusUnknown}
	}

	mapping, ok := t[normalized]
	if !ok {
		return ResultMapping{Status: types.BankResultStatusUnknown}
	}

	if mapping.Status != types.BankResultStatusPaid && mapping.Reason == types.BankReasonNone {
		mapping.Reason = reasonFromMessage(rc.Message)
	}
	return mapping
}

// pipeResultCodes are the codes used by the pipe format.
var pipeResultCodes = ResultCodeTable{
	"00": paid(),
	"05": rejected(types.BankReasonNone),
	"14": rejected(types.BankReasonInvalidAccount),
	"51": rejected(types.BankReasonInsufficientFunds),
	"54": rejected(types.BankReasonAccountClosed),
	"M1": rejected(types.BankReasonMandateInvalid),
	"M2": rejected(types.BankReasonMandateInvalid),
	"94": rejected(types.BankReasonDuplicate),
	"30": failed(types.BankReasonFormatError),
	"91": failed(types.BankReasonNone),
	"96": failed(types.BankReasonNone),
}
