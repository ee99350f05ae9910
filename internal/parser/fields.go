package parser

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"bankimport/internal/textnorm"
)

// ParseAmount reads a bank amount such as "1 500,50" or "1,234.56".
// Whitespace (including non-breaking spaces) is removed and a comma decimal
// separator becomes a dot. When both separators occur the last one is the
// decimal point. Non-numeric input yields zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseDate converts DD.MM.YYYY or YYYY-MM-DD (optionally followed by a time)
// to YYYY-MM-DD. Any other input falls back to the date returned by now and
// reports fallback=true.
func ParseDate(s string, now time.Time) (date string, fallback bool) {
	s = strings.TrimSpace(s)
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	for _, layout := range []string{"02.01.2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), false
		}
	}
	return now.Format("2006-01-02"), true
}

// Exchange rate phrasings found in payment descriptions.
var exchangeRatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)курс\s+сделки\s*[:=]?\s*(\d+(?:[.,]\d+)?)`),
	regexp.MustCompile(`(?i)по\s+курсу\s*[:=]?\s*(\d+(?:[.,]\d+)?)`),
}

// ExtractExchangeRate finds the conversion rate quoted in a payment description.
func ExtractExchangeRate(description string) (decimal.Decimal, bool) {
	for _, re := range exchangeRatePatterns {
		if m := re.FindStringSubmatch(description); len(m) > 1 {
			rate := ParseAmount(m[1])
			if rate.IsPositive() {
				return rate, true
			}
		}
	}
	return decimal.Zero, false
}

// numericCurrencies maps ISO 4217 numeric codes used by some banks.
var numericCurrencies = map[string]string{
	"398": "KZT",
	"840": "USD",
	"978": "EUR",
	"643": "RUB",
	"156": "CNY",
}

// NormalizeCurrency upper-cases a currency code, resolves numeric codes and
// substitutes base for an empty value.
func NormalizeCurrency(code, base string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return base
	}
	if alpha, ok := numericCurrencies[code]; ok {
		return alpha
	}
	return code
}

// Payment purpose keyword groups, in precedence order.
var paymentKeywords = []struct {
	kind     PaymentType
	keywords []string
}{
	{PaymentPrepayment, []string{"предоплат", "аванс", "prepayment", "advance"}},
	{PaymentRefund, []string{"возврат", "refund"}},
	{PaymentRetainer, []string{"абонент", "ежемесячн", "подписк", "retainer", "subscription", "monthly"}},
	{PaymentFull, []string{"полная оплата", "full payment"}},
}

// ClassifyPayment derives the payment type from a description. The first
// matching keyword group wins; prepayment is the default.
func ClassifyPayment(description string) PaymentType {
	lower := strings.ToLower(description)
	for _, group := range paymentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.kind
			}
		}
	}
	return PaymentPrepayment
}

// fieldSet is the format-independent view of one record, filled by the
// exchange and delimited record types before conversion.
type fieldSet struct {
	date           string
	amount         decimal.Decimal
	currency       string
	name           string
	taxID          string
	description    string
	documentNumber string
	purposeCode    string
}

// toTransaction applies date parsing, currency normalisation and conversion.
// Callers have already checked that date is present and amount positive.
func (f fieldSet) toTransaction(opts Options, diag *Diagnostics) RawTransaction {
	date, fallback := ParseDate(f.date, opts.now())
	if fallback {
		diag.DateFallbacks++
	}

	base := opts.baseCurrency()
	txn := RawTransaction{
		Date:              date,
		Amount:            f.amount,
		AmountOriginal:    f.amount,
		Currency:          NormalizeCurrency(f.currency, base),
		CounterpartyName:  strings.TrimSpace(f.name),
		CounterpartyTaxID: strings.TrimSpace(f.taxID),
		Description:       strings.TrimSpace(f.description),
		DocumentNumber:    strings.TrimSpace(f.documentNumber),
		PurposeCode:       strings.TrimSpace(f.purposeCode),
		PaymentType:       ClassifyPayment(f.description),
	}
	if txn.CounterpartyTaxID == "" {
		txn.CounterpartyTaxID = textnorm.ExtractTaxID(txn.CounterpartyName)
	}

	if txn.Currency != base {
		if rate, ok := ExtractExchangeRate(txn.Description); ok {
			txn.ExchangeRate = &rate
			txn.Amount = txn.AmountOriginal.Mul(rate).Round(2)
		}
	}
	return txn
}
