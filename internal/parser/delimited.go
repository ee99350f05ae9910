package parser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// column is a logical column of a delimited export.
type column int

const (
	colDate column = iota
	colTaxID
	colPurposeCode
	colDocumentNumber
	colCredit
	colDebit
	colAmount
	colCurrency
	colName
	colDescription
	columnCount
)

// columnKeywords are matched against lower-cased headers in this order; a
// header claimed by an earlier column is not offered to later ones, so the
// more specific columns come first.
var columnKeywords = []struct {
	col      column
	keywords []string
}{
	{colDate, []string{"дата", "date"}},
	{colTaxID, []string{"бин", "иин", "инн", "tax id", "taxid", "bin", "iin"}},
	{colPurposeCode, []string{"кнп", "код назначения", "purpose code"}},
	{colDocumentNumber, []string{"номер документа", "номер док", "№ документа", "№ док", "document number", "doc no"}},
	{colCredit, []string{"кредит", "зачислен", "приход", "поступлен", "credit", "incoming"}},
	{colDebit, []string{"дебет", "списан", "расход", "debit", "outgoing"}},
	{colAmount, []string{"сумма", "amount"}},
	{colCurrency, []string{"валюта", "currency"}},
	{colName, []string{"наименование", "контрагент", "плательщик", "отправитель", "корреспондент", "name", "counterparty", "payer"}},
	{colDescription, []string{"назначение", "описание", "комментар", "детали", "description", "purpose", "details"}},
}

// columnMap holds the index of each logical column, -1 when absent.
type columnMap [columnCount]int

func mapColumns(header []string) columnMap {
	var m columnMap
	for i := range m {
		m[i] = -1
	}
	used := make([]bool, len(header))
	for _, ck := range columnKeywords {
		for i, h := range header {
			if used[i] {
				continue
			}
			if containsAny(strings.ToLower(strings.TrimSpace(h)), ck.keywords) {
				m[ck.col] = i
				used[i] = true
				break
			}
		}
	}
	return m
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// delimitedRow is one data row mapped onto the logical columns.
type delimitedRow struct {
	Date           string
	Name           string
	Credit         string
	Debit          string
	Amount         string
	Description    string
	PurposeCode    string
	TaxID          string
	Currency       string
	DocumentNumber string
}

func newDelimitedRow(record []string, cols columnMap) delimitedRow {
	cell := func(c column) string {
		i := cols[c]
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	return delimitedRow{
		Date:           cell(colDate),
		Name:           cell(colName),
		Credit:         cell(colCredit),
		Debit:          cell(colDebit),
		Amount:         cell(colAmount),
		Description:    cell(colDescription),
		PurposeCode:    cell(colPurposeCode),
		TaxID:          cell(colTaxID),
		Currency:       cell(colCurrency),
		DocumentNumber: cell(colDocumentNumber),
	}
}

// fields validates the row. Only incoming payments are imported: a row
// whose sole positive amount is in the debit column is dropped.
func (r delimitedRow) fields() (fieldSet, DropReason) {
	if r.Date == "" {
		return fieldSet{}, DropMissingDate
	}
	if r.Credit == "" && r.Debit == "" && r.Amount == "" {
		return fieldSet{}, DropMissingAmount
	}

	amount := ParseAmount(r.Credit)
	if !amount.IsPositive() {
		if ParseAmount(r.Debit).IsPositive() {
			return fieldSet{}, DropDebitOnly
		}
		amount = ParseAmount(r.Amount)
	}
	if !amount.IsPositive() {
		return fieldSet{}, DropNonPositiveAmount
	}

	return fieldSet{
		date:           r.Date,
		amount:         amount,
		currency:       r.Currency,
		name:           r.Name,
		taxID:          r.TaxID,
		description:    r.Description,
		documentNumber: r.DocumentNumber,
		purposeCode:    r.PurposeCode,
	}, ""
}

// ParseDelimited extracts transactions from a delimited export. The
// separator is ';' when the header line has one, ',' otherwise.
func ParseDelimited(content string, opts Options) Result {
	res := Result{Format: FormatDelimited, Diagnostics: newDiagnostics()}
	content = strings.TrimPrefix(content, "\ufeff")

	lines := nonEmptyLines(content, 1)
	if len(lines) == 0 {
		return res
	}
	delim := ','
	if strings.Contains(lines[0], ";") {
		delim = ';'
	}

	r := csv.NewReader(strings.NewReader(content))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return res
	}
	cols := mapColumns(header)

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				res.Diagnostics.Seen++
				res.Diagnostics.drop(DropMalformedRow)
				continue
			}
			break
		}
		if isBlankRecord(record) {
			continue
		}

		res.Diagnostics.Seen++
		f, reason := newDelimitedRow(record, cols).fields()
		if reason != "" {
			res.Diagnostics.drop(reason)
			continue
		}
		res.Transactions = append(res.Transactions, f.toTransaction(opts, &res.Diagnostics))
		res.Diagnostics.Parsed++
	}
	return res
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
