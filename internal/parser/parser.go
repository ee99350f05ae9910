// Package parser turns decoded bank export text into RawTransactions.
//
// Two layouts are understood: the line-oriented client-bank exchange format
// (Key=Value pairs grouped in СекцияДокумент … КонецДокумента sections) and
// delimited exports with a header row. Records that cannot be imported are
// dropped silently and counted in Diagnostics.
package parser

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Format identifies the layout of a bank export.
type Format string

const (
	FormatExchange  Format = "exchange"
	FormatDelimited Format = "delimited"
	FormatUnknown   Format = "unknown"
)

// PaymentType is the purpose class derived from the payment description.
type PaymentType string

const (
	PaymentPrepayment PaymentType = "PREPAYMENT"
	PaymentFull       PaymentType = "FULL"
	PaymentRetainer   PaymentType = "RETAINER"
	PaymentRefund     PaymentType = "REFUND"
)

// DefaultBaseCurrency is the organisation currency when none is configured.
const DefaultBaseCurrency = "KZT"

// Marker tokens of the exchange format.
const (
	exchangeHeader = "1CClientBankExchange"
	sectionStart   = "СекцияДокумент"
	sectionEnd     = "КонецДокумента"
)

// RawTransaction is one incoming payment read from a bank export.
// Amount is always positive and expressed in the base currency.
type RawTransaction struct {
	Date              string           `json:"date"` // YYYY-MM-DD
	Amount            decimal.Decimal  `json:"amount"`
	AmountOriginal    decimal.Decimal  `json:"amount_original"`
	Currency          string           `json:"currency"`
	ExchangeRate      *decimal.Decimal `json:"exchange_rate,omitempty"`
	CounterpartyName  string           `json:"counterparty_name"`
	CounterpartyTaxID string           `json:"counterparty_tax_id"`
	Description       string           `json:"description"`
	DocumentNumber    string           `json:"document_number"`
	PurposeCode       string           `json:"purpose_code"`
	PaymentType       PaymentType      `json:"payment_type"`
}

// Options tune parsing for one organisation.
type Options struct {
	// BaseCurrency is the organisation currency; DefaultBaseCurrency when empty.
	BaseCurrency string
	// Now supplies the fallback date for unparseable dates; time.Now when nil.
	Now func() time.Time
}

func (o Options) baseCurrency() string {
	if o.BaseCurrency == "" {
		return DefaultBaseCurrency
	}
	return strings.ToUpper(o.BaseCurrency)
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Result is the outcome of parsing one file.
type Result struct {
	Format       Format           `json:"format"`
	Transactions []RawTransaction `json:"transactions"`
	Diagnostics  Diagnostics      `json:"diagnostics"`
}

// tabularExtensions are file extensions that hint at a delimited export.
var tabularExtensions = map[string]bool{
	".csv":  true,
	".tsv":  true,
	".xls":  true,
	".xlsx": true,
}

// DetectFormat classifies content using its marker tokens, the file extension
// and, failing both, the shape of its first two lines.
func DetectFormat(content, fileName string) Format {
	if strings.Contains(content, exchangeHeader) || strings.Contains(content, sectionStart) {
		return FormatExchange
	}
	if tabularExtensions[strings.ToLower(filepath.Ext(fileName))] {
		return FormatDelimited
	}

	lines := nonEmptyLines(content, 2)
	if len(lines) < 2 {
		return FormatUnknown
	}
	header := lines[0]
	for _, delim := range []string{";", ","} {
		if strings.Contains(header, delim) && len(strings.Split(header, delim)) > 3 {
			return FormatDelimited
		}
	}
	return FormatUnknown
}

// Parse detects the format of content and extracts its transactions.
// Unknown content yields an empty result tagged FormatUnknown.
func Parse(content, fileName string, opts Options) Result {
	format := DetectFormat(content, fileName)
	var res Result
	switch format {
	case FormatExchange:
		res = ParseExchange(content, opts)
	case FormatDelimited:
		res = ParseDelimited(content, opts)
	default:
		res = Result{Diagnostics: newDiagnostics()}
	}
	res.Format = format
	if res.Transactions == nil {
		res.Transactions = []RawTransaction{}
	}
	return res
}

// nonEmptyLines returns up to limit non-blank lines of content.
func nonEmptyLines(content string, limit int) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == limit {
			break
		}
	}
	return lines
}
