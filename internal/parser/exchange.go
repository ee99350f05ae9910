package parser

import (
	"regexp"
	"strings"
)

// Field names of a payment document section. Slices list aliases in the
// order they are tried.
var (
	exchangeDateFields        = []string{"Дата"}
	exchangeOperationFields   = []string{"ДатаОперации", "ДатаПоступило"}
	exchangeAmountFields      = []string{"Сумма"}
	exchangePayerFields       = []string{"ПлательщикНаименование", "Плательщик1", "Плательщик"}
	exchangePayerTaxFields    = []string{"ПлательщикБИН", "ПлательщикИИН", "ПлательщикИНН"}
	exchangeDescriptionFields = []string{"НазначениеПлатежа"}
	exchangePurposeFields     = []string{"КНП", "КодНазначенияПлатежа"}
	exchangeCurrencyFields    = []string{"Валюта", "КодВалюты"}
	exchangeNumberFields      = []string{"Номер"}
)

// fieldPatterns holds the anchored and loose pattern of one field name.
type fieldPatterns struct {
	anchored *regexp.Regexp
	loose    *regexp.Regexp
}

var exchangePatterns = func() map[string]fieldPatterns {
	m := make(map[string]fieldPatterns)
	groups := [][]string{
		exchangeDateFields, exchangeOperationFields, exchangeAmountFields,
		exchangePayerFields, exchangePayerTaxFields, exchangeDescriptionFields,
		exchangePurposeFields, exchangeCurrencyFields, exchangeNumberFields,
	}
	for _, names := range groups {
		for _, name := range names {
			q := regexp.QuoteMeta(name)
			m[name] = fieldPatterns{
				anchored: regexp.MustCompile(`(?im)^[ \t]*` + q + `[ \t]*=[ \t]*([^\r\n]*)$`),
				loose:    regexp.MustCompile(`(?i)` + q + `[ \t]*=[ \t]*([^\r\n]*)`),
			}
		}
	}
	return m
}()

// exchangeSection is one СекцияДокумент block with its fields extracted.
type exchangeSection struct {
	Number        string
	Date          string
	OperationDate string
	Amount        string
	PayerName     string
	PayerTaxID    string
	Description   string
	PurposeCode   string
	Currency      string
}

func newExchangeSection(body string) exchangeSection {
	return exchangeSection{
		Number:        exchangeField(body, exchangeNumberFields),
		Date:          exchangeField(body, exchangeDateFields),
		OperationDate: exchangeField(body, exchangeOperationFields),
		Amount:        exchangeField(body, exchangeAmountFields),
		PayerName:     exchangeField(body, exchangePayerFields),
		PayerTaxID:    exchangeField(body, exchangePayerTaxFields),
		Description:   exchangeField(body, exchangeDescriptionFields),
		PurposeCode:   exchangeField(body, exchangePurposeFields),
		Currency:      exchangeField(body, exchangeCurrencyFields),
	}
}

// exchangeField returns the first non-empty value of any alias. For each alias
// a Name=value line is tried before a match anywhere in the section.
func exchangeField(body string, names []string) string {
	for _, name := range names {
		p := exchangePatterns[name]
		for _, re := range []*regexp.Regexp{p.anchored, p.loose} {
			if m := re.FindStringSubmatch(body); len(m) > 1 {
				if v := strings.TrimSpace(m[1]); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

// fields validates the section. A section without a date or with a
// non-positive amount is dropped.
func (s exchangeSection) fields() (fieldSet, DropReason) {
	date := s.Date
	if date == "" {
		date = s.OperationDate
	}
	if date == "" {
		return fieldSet{}, DropMissingDate
	}
	if s.Amount == "" {
		return fieldSet{}, DropMissingAmount
	}
	amount := ParseAmount(s.Amount)
	if !amount.IsPositive() {
		return fieldSet{}, DropNonPositiveAmount
	}
	return fieldSet{
		date:           date,
		amount:         amount,
		currency:       s.Currency,
		name:           s.PayerName,
		taxID:          s.PayerTaxID,
		description:    s.Description,
		documentNumber: s.Number,
		purposeCode:    s.PurposeCode,
	}, ""
}

// ParseExchange extracts transactions from client-bank exchange content.
// Sections without a closing КонецДокумента marker are discarded.
func ParseExchange(content string, opts Options) Result {
	res := Result{Format: FormatExchange, Diagnostics: newDiagnostics()}
	content = strings.ReplaceAll(content, "\r\n", "\n")

	parts := strings.Split(content, sectionStart)
	for _, part := range parts[1:] {
		res.Diagnostics.Seen++
		end := strings.Index(part, sectionEnd)
		if end == -1 {
			res.Diagnostics.drop(DropIncompleteSection)
			continue
		}

		f, reason := newExchangeSection(part[:end]).fields()
		if reason != "" {
			res.Diagnostics.drop(reason)
			continue
		}
		res.Transactions = append(res.Transactions, f.toTransaction(opts, &res.Diagnostics))
		res.Diagnostics.Parsed++
	}
	return res
}
