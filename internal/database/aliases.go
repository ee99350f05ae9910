package database

import (
	"context"
	"database/sql"
	"fmt"

	"bankimport/internal/models"
)

// GetAliases returns the confirmed aliases of an organization, oldest first.
func (db *DB) GetAliases(ctx context.Context, orgID int64) ([]models.CounterpartyAlias, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, organization_id, normalized_bank_name, bank_tax_id, client_id, created_at, updated_at
		FROM counterparty_aliases
		WHERE organization_id = ?
		ORDER BY id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer rows.Close()

	var aliases []models.CounterpartyAlias
	for rows.Next() {
		var a models.CounterpartyAlias
		var taxID sql.NullString
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.NormalizedBankName, &taxID, &a.ClientID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		a.BankTaxID = taxID.String
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// SaveAlias upserts an alias keyed by (organization, tax ID). With an empty
// tax ID a new row is inserted every time.
func (db *DB) SaveAlias(ctx context.Context, orgID int64, normalizedName, taxID string, clientID int64) error {
	var tax sql.NullString
	if taxID != "" {
		tax = sql.NullString{String: taxID, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO counterparty_aliases (organization_id, normalized_bank_name, bank_tax_id, client_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (organization_id, bank_tax_id) DO UPDATE SET
			normalized_bank_name = excluded.normalized_bank_name,
			client_id = excluded.client_id,
			updated_at = CURRENT_TIMESTAMP
	`, orgID, normalizedName, tax, clientID)
	if err != nil {
		return fmt.Errorf("upsert alias: %w", err)
	}
	return nil
}
