package database

import (
	"context"
	"fmt"

	"bankimport/internal/models"
)

func (db *DB) ListEmployees(ctx context.Context, orgID int64, activeOnly bool) ([]models.Employee, error) {
	query := `
		SELECT id, organization_id, name, iin, active, created_at
		FROM employees
		WHERE organization_id = ?
	`
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY id"

	rows, err := db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var e models.Employee
		var active int
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.IIN, &active, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		e.Active = active == 1
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (db *DB) CreateEmployee(ctx context.Context, e models.Employee) (int64, error) {
	active := 0
	if e.Active {
		active = 1
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO employees (organization_id, name, iin, active) VALUES (?, ?, ?, ?)
	`, e.OrganizationID, e.Name, e.IIN, active)
	if err != nil {
		return 0, fmt.Errorf("insert employee: %w", err)
	}
	return result.LastInsertId()
}

func (db *DB) SetEmployeeActive(ctx context.Context, orgID, id int64, active bool) error {
	v := 0
	if active {
		v = 1
	}
	result, err := db.ExecContext(ctx, `
		UPDATE employees SET active = ? WHERE organization_id = ? AND id = ?
	`, v, orgID, id)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("employee: %w", ErrNotFound)
	}
	return nil
}
