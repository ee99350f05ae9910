package database

import (
	"context"
	"fmt"

	"bankimport/internal/models"
)

func (db *DB) ListClients(ctx context.Context, orgID int64) ([]models.Client, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, organization_id, name, bin, iin, created_at
		FROM clients
		WHERE organization_id = ?
		ORDER BY id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.BIN, &c.IIN, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (db *DB) GetClient(ctx context.Context, orgID, id int64) (models.Client, error) {
	var c models.Client
	err := db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, bin, iin, created_at
		FROM clients
		WHERE organization_id = ? AND id = ?
	`, orgID, id).Scan(&c.ID, &c.OrganizationID, &c.Name, &c.BIN, &c.IIN, &c.CreatedAt)
	if err != nil {
		return c, notFound("client", err)
	}
	return c, nil
}

func (db *DB) CreateClient(ctx context.Context, c models.Client) (int64, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO clients (organization_id, name, bin, iin) VALUES (?, ?, ?, ?)
	`, c.OrganizationID, c.Name, c.BIN, c.IIN)
	if err != nil {
		return 0, fmt.Errorf("insert client: %w", err)
	}
	return result.LastInsertId()
}

// SetClientTaxIDIfEmpty stores taxID as the client's BIN when the client has
// no tax ID on file. It reports whether a row was changed.
func (db *DB) SetClientTaxIDIfEmpty(ctx context.Context, orgID, clientID int64, taxID string) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE clients
		SET bin = ?
		WHERE organization_id = ? AND id = ? AND bin = '' AND iin = ''
	`, taxID, orgID, clientID)
	if err != nil {
		return false, fmt.Errorf("update client tax id: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update client tax id: %w", err)
	}
	return n > 0, nil
}
