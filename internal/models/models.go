package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger reconciliation statuses.
const (
	StatusNone        = "none"
	StatusBankImport  = "bank_import"
	StatusDiscrepancy = "discrepancy"
	StatusVerified    = "verified"
)

// Client is a customer of an organization. A client may carry a company tax
// ID (BIN), a personal one (IIN), both or neither.
type Client struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	BIN            string    `json:"bin,omitempty"`
	IIN            string    `json:"iin,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TaxIDs returns the non-empty tax identifiers on file.
func (c Client) TaxIDs() []string {
	var ids []string
	for _, id := range []string{c.BIN, c.IIN} {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// HasTaxID reports whether any tax identifier is on file.
func (c Client) HasTaxID() bool {
	return len(c.TaxIDs()) > 0
}

type Employee struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	IIN            string    `json:"iin,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// CounterpartyAlias binds a bank-displayed counterparty to a known client.
type CounterpartyAlias struct {
	ID                 int64     `json:"id"`
	OrganizationID     int64     `json:"organization_id"`
	NormalizedBankName string    `json:"normalized_bank_name"`
	BankTaxID          string    `json:"bank_tax_id,omitempty"`
	ClientID           int64     `json:"client_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LedgerTransaction is an income entry in an organization's books.
type LedgerTransaction struct {
	ID                   int64           `json:"id"`
	OrganizationID       int64           `json:"organization_id"`
	Date                 string          `json:"date"` // YYYY-MM-DD
	Amount               decimal.Decimal `json:"amount"`
	ClientID             *int64          `json:"client_id,omitempty"`
	BankDocumentNumber   string          `json:"bank_document_number,omitempty"`
	Description          string          `json:"description"`
	ReconciliationStatus string          `json:"reconciliation_status"` // none, bank_import, discrepancy, verified
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// LedgerChange is one write derived from an import: either a new bank_import
// entry (ID zero) or a status change on an existing entry.
type LedgerChange struct {
	Insert *LedgerTransaction `json:"insert,omitempty"`
	ID     int64              `json:"id,omitempty"`
	Status string             `json:"status,omitempty"`
}

// Job represents a background job in the queue
type Job struct {
	ID          int64      `json:"id"`
	JobType     string     `json:"job_type"`
	Payload     string     `json:"-"`      // JSON payload
	Status      string     `json:"status"` // pending, running, completed, failed, committed
	Progress    int        `json:"progress"`
	Result      string     `json:"-"` // JSON result or error message
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
