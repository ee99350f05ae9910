package importer

import (
	"bankimport/internal/models"
	"bankimport/internal/parser"
	"bankimport/internal/reconciliation"
	"bankimport/internal/resolver"
)

// Record is one classified transaction, ready for review.
type Record struct {
	Transaction    parser.RawTransaction `json:"transaction"`
	Counterparty   resolver.Resolved     `json:"counterparty"`
	Reconciliation reconciliation.Result `json:"reconciliation"`
}

// TaxIDUpdate is a tax ID learned for a client during an import.
type TaxIDUpdate struct {
	ClientID int64  `json:"client_id"`
	TaxID    string `json:"tax_id"`
	Saved    bool   `json:"saved"`
}

// Result is the outcome of one import, in file order.
type Result struct {
	OrganizationID int64              `json:"organization_id"`
	FileName       string             `json:"file_name"`
	Format         parser.Format      `json:"format"`
	Records        []Record           `json:"records"`
	Diagnostics    parser.Diagnostics `json:"diagnostics"`
	TaxIDUpdates   []TaxIDUpdate      `json:"tax_id_updates,omitempty"`
}

// Counts returns the number of records per classification.
func (r *Result) Counts() map[reconciliation.Classification]int {
	counts := make(map[reconciliation.Classification]int)
	for _, rec := range r.Records {
		counts[rec.Reconciliation.Classification]++
	}
	return counts
}

// LedgerChanges turns the classifications into ledger writes: new records
// become bank_import entries, verified and discrepancy records update the
// status of the matched entry, and duplicates are skipped.
func (r *Result) LedgerChanges() []models.LedgerChange {
	var changes []models.LedgerChange
	for _, rec := range r.Records {
		txn := rec.Transaction
		switch rec.Reconciliation.Classification {
		case reconciliation.ClassNew:
			changes = append(changes, models.LedgerChange{Insert: &models.LedgerTransaction{
				OrganizationID:       r.OrganizationID,
				Date:                 txn.Date,
				Amount:               txn.Amount,
				ClientID:             rec.Counterparty.ClientID(),
				BankDocumentNumber:   txn.DocumentNumber,
				Description:          txn.Description,
				ReconciliationStatus: models.StatusBankImport,
			}})
		case reconciliation.ClassVerified, reconciliation.ClassDiscrepancy:
			if id := rec.Reconciliation.MatchedLedgerTransactionID; id != nil {
				changes = append(changes, models.LedgerChange{ID: *id, Status: string(rec.Reconciliation.Classification)})
			}
		}
	}
	return changes
}
