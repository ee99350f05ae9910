package database

import (
	"context"
	"database/sql"
	"fmt"

	"bankimport/internal/models"
)

const transactionColumns = `id, organization_id, date, amount, client_id, bank_document_number,
	description, reconciliation_status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (models.LedgerTransaction, error) {
	var t models.LedgerTransaction
	var clientID sql.NullInt64
	err := s.Scan(&t.ID, &t.OrganizationID, &t.Date, &t.Amount, &clientID, &t.BankDocumentNumber,
		&t.Description, &t.ReconciliationStatus, &t.CreatedAt, &t.UpdatedAt)
	if clientID.Valid {
		t.ClientID = &clientID.Int64
	}
	return t, err
}

// ListLedgerTransactions returns an organization's ledger ordered by date and
// ID, which is the order the reconciliation matcher scans it in.
func (db *DB) ListLedgerTransactions(ctx context.Context, orgID int64) ([]models.LedgerTransaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE organization_id = ?
		ORDER BY date, id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.LedgerTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (db *DB) GetLedgerTransaction(ctx context.Context, orgID, id int64) (models.LedgerTransaction, error) {
	t, err := scanTransaction(db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE organization_id = ? AND id = ?
	`, orgID, id))
	if err != nil {
		return t, notFound("transaction", err)
	}
	return t, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, e execer, t models.LedgerTransaction) (int64, error) {
	status := t.ReconciliationStatus
	if status == "" {
		status = models.StatusNone
	}
	var clientID sql.NullInt64
	if t.ClientID != nil {
		clientID = sql.NullInt64{Int64: *t.ClientID, Valid: true}
	}

	result, err := e.ExecContext(ctx, `
		INSERT INTO transactions (organization_id, date, amount, client_id, bank_document_number, description, reconciliation_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.OrganizationID, t.Date, t.Amount.String(), clientID, t.BankDocumentNumber, t.Description, status)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return result.LastInsertId()
}

func (db *DB) CreateLedgerTransaction(ctx context.Context, t models.LedgerTransaction) (int64, error) {
	return insertTransaction(ctx, db, t)
}

// ApplyLedgerChanges writes the changes of one import in a single
// transaction.
func (db *DB) ApplyLedgerChanges(ctx context.Context, orgID int64, changes []models.LedgerChange) (ApplySummary, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ApplySummary{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	summary, err := applyLedgerChanges(ctx, tx, orgID, changes)
	if err != nil {
		return ApplySummary{}, err
	}
	if err := tx.Commit(); err != nil {
		return ApplySummary{}, fmt.Errorf("commit: %w", err)
	}
	return summary, nil
}

// ApplySummary counts the rows written by ApplyLedgerChanges.
type ApplySummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

func applyLedgerChanges(ctx context.Context, tx *sql.Tx, orgID int64, changes []models.LedgerChange) (ApplySummary, error) {
	var s ApplySummary
	for _, c := range changes {
		if c.Insert != nil {
			t := *c.Insert
			t.OrganizationID = orgID
			if _, err := insertTransaction(ctx, tx, t); err != nil {
				return s, err
			}
			s.Inserted++
			continue
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET reconciliation_status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE organization_id = ? AND id = ?
		`, c.Status, orgID, c.ID)
		if err != nil {
			return s, fmt.Errorf("update transaction %d: %w", c.ID, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return s, fmt.Errorf("transaction %d: %w", c.ID, ErrNotFound)
		}
		s.Updated++
	}
	return s, nil
}
