package reconciliation

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bankimport/internal/models"
	"bankimport/internal/parser"
	"bankimport/internal/resolver"
)

// Classification is the outcome bucket of an imported transaction.
type Classification string

const (
	ClassNew         Classification = "new"
	ClassVerified    Classification = "verified"
	ClassDiscrepancy Classification = "discrepancy"
	ClassDuplicate   Classification = "duplicate"
)

// ErrCounterpartyNotResolved is returned when a transaction reaches the
// matcher without having been through the resolver.
var ErrCounterpartyNotResolved = errors.New("reconcile transaction: counterparty not resolved")

const (
	maxDaysApart     = 3
	closeAmountRatio = 0.05
)

var amountTolerance = decimal.New(1, -2)

// Result is the classification of one imported transaction.
type Result struct {
	Classification             Classification `json:"classification"`
	MatchedLedgerTransactionID *int64         `json:"matched_ledger_transaction_id,omitempty"`
	AmountDiffers              bool           `json:"amount_differs"`
}

// Matcher classifies the transactions of one import against an
// organization's ledger. Matching is greedy: each transaction takes the first
// acceptable ledger entry in ledger order, and matched entries stay
// available to later transactions.
//
// A Matcher remembers the document numbers it has seen, so a transaction
// repeated within the same file is reported as a duplicate. Use one Matcher
// per import.
type Matcher struct {
	ledger []models.LedgerTransaction
	seen   map[batchKey]bool
}

type batchKey struct {
	documentNumber string
	date           string
	amount         string
}

func NewMatcher(ledger []models.LedgerTransaction) *Matcher {
	return &Matcher{ledger: ledger, seen: make(map[batchKey]bool)}
}

// Classify matches a single transaction with no in-file duplicate tracking.
func Classify(txn parser.RawTransaction, cp resolver.Resolved, ledger []models.LedgerTransaction) (Result, error) {
	return NewMatcher(ledger).Match(txn, cp)
}

// Match classifies txn. Lookup order:
//  1. same document number, date and amount earlier in this import: duplicate
//  2. ledger entry with the same document number: duplicate when it came from
//     a bank import, else verified or discrepancy by amount
//  3. open entry of the resolved client within three days: verified on an
//     equal amount, else discrepancy when amounts differ by less than 5%
//  4. new
func (m *Matcher) Match(txn parser.RawTransaction, cp resolver.Resolved) (Result, error) {
	if cp.Kind == "" {
		return Result{}, ErrCounterpartyNotResolved
	}

	doc := strings.TrimSpace(txn.DocumentNumber)
	if doc != "" {
		key := batchKey{documentNumber: doc, date: txn.Date, amount: txn.Amount.String()}
		if m.seen[key] {
			return Result{Classification: ClassDuplicate}, nil
		}
		m.seen[key] = true

		if entry, ok := m.byDocumentNumber(doc); ok {
			differs := !amountsEqual(entry.Amount, txn.Amount)
			res := Result{MatchedLedgerTransactionID: &entry.ID, AmountDiffers: differs}
			switch {
			case entry.ReconciliationStatus == models.StatusBankImport:
				res.Classification = ClassDuplicate
			case differs:
				res.Classification = ClassDiscrepancy
			default:
				res.Classification = ClassVerified
			}
			return res, nil
		}
	}

	clientID := cp.ClientID()
	if clientID == nil {
		return Result{Classification: ClassNew}, nil
	}

	candidates := m.openEntries(*clientID, txn.Date)
	for _, entry := range candidates {
		if amountsEqual(entry.Amount, txn.Amount) {
			return Result{Classification: ClassVerified, MatchedLedgerTransactionID: &entry.ID}, nil
		}
	}
	for _, entry := range candidates {
		if amountsClose(entry.Amount, txn.Amount) {
			return Result{Classification: ClassDiscrepancy, MatchedLedgerTransactionID: &entry.ID, AmountDiffers: true}, nil
		}
	}
	return Result{Classification: ClassNew}, nil
}

// byDocumentNumber finds the first ledger entry carrying the document number,
// either in its own field or as a [DOC:n] tag in the description.
func (m *Matcher) byDocumentNumber(doc string) (models.LedgerTransaction, bool) {
	tag := "[DOC:" + doc + "]"
	for _, entry := range m.ledger {
		if entry.BankDocumentNumber == doc || strings.Contains(entry.Description, tag) {
			return entry, true
		}
	}
	return models.LedgerTransaction{}, false
}

// openEntries returns the client's entries that are neither verified nor
// bank imports and are dated within three days of date, in ledger order.
func (m *Matcher) openEntries(clientID int64, date string) []models.LedgerTransaction {
	txnDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}

	var out []models.LedgerTransaction
	for _, entry := range m.ledger {
		if entry.ClientID == nil || *entry.ClientID != clientID {
			continue
		}
		if entry.ReconciliationStatus == models.StatusVerified || entry.ReconciliationStatus == models.StatusBankImport {
			continue
		}
		entryDate, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			continue
		}
		daysDiff := math.Abs(txnDate.Sub(entryDate).Hours() / 24)
		if daysDiff <= maxDaysApart {
			out = append(out, entry)
		}
	}
	return out
}

func amountsEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(amountTolerance)
}

// amountsClose reports whether |a-b| / max(a, b) is under 5%.
func amountsClose(a, b decimal.Decimal) bool {
	larger := decimal.Max(a, b)
	if !larger.IsPositive() {
		return false
	}
	ratio := a.Sub(b).Abs().Div(larger)
	return ratio.LessThan(decimal.NewFromFloat(closeAmountRatio))
}
