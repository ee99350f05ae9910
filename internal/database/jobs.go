package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bankimport/internal/models"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCommitted = "committed"
)

// ErrJobNotCompleted is returned when committing a job that has no result
// yet or was already committed.
var ErrJobNotCompleted = errors.New("job is not completed")

const jobColumns = `id, job_type, payload, status, progress, result, attempts, max_attempts, created_at, started_at, completed_at`

func scanJob(s rowScanner) (models.Job, error) {
	var job models.Job
	var startedAt, completedAt sql.NullTime
	err := s.Scan(&job.ID, &job.JobType, &job.Payload, &job.Status, &job.Progress, &job.Result,
		&job.Attempts, &job.MaxAttempts, &job.CreatedAt, &startedAt, &completedAt)
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, err
}

// CreateJob creates a new job and returns its ID
func (db *DB) CreateJob(ctx context.Context, jobType string, payload any) (int64, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO jobs (job_type, payload)
		VALUES (?, ?)
	`, jobType, string(payloadJSON))
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	return result.LastInsertId()
}

// ClaimNextJob atomically claims the next pending job for processing.
// It returns nil when the queue is empty.
func (db *DB) ClaimNextJob(ctx context.Context) (*models.Job, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'running', started_at = ?, attempts = attempts + 1
		WHERE id = ?
	`, now, job.ID)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	job.Status = JobRunning
	job.StartedAt = &now
	job.Attempts++

	return &job, nil
}

// GetJob returns a job by ID
func (db *DB) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	job, err := scanJob(db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE id = ?
	`, id))
	if err != nil {
		return nil, notFound("job", err)
	}
	return &job, nil
}

// UpdateJobProgress updates the progress percentage of a running job
func (db *DB) UpdateJobProgress(ctx context.Context, id int64, progress int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jobs SET progress = ? WHERE id = ?
	`, progress, id)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteJob marks a job as completed with an optional result
func (db *DB) CompleteJob(ctx context.Context, id int64, result string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed', progress = 100, result = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, result, id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks a job as failed with an error message
func (db *DB) FailJob(ctx context.Context, id int64, errMsg string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed', result = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, errMsg, id)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// RetryJob resets a job to pending status for retry
func (db *DB) RetryJob(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return nil
}

// CommitImportJob applies the ledger changes of a completed import job and
// marks it committed, in one transaction. A job can be committed once.
func (db *DB) CommitImportJob(ctx context.Context, jobID, orgID int64, changes []models.LedgerChange) (ApplySummary, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ApplySummary{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'committed'
		WHERE id = ? AND status = 'completed'
	`, jobID)
	if err != nil {
		return ApplySummary{}, fmt.Errorf("mark job committed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ApplySummary{}, fmt.Errorf("commit job %d: %w", jobID, ErrJobNotCompleted)
	}

	summary, err := applyLedgerChanges(ctx, tx, orgID, changes)
	if err != nil {
		return ApplySummary{}, err
	}
	if err := tx.Commit(); err != nil {
		return ApplySummary{}, fmt.Errorf("commit: %w", err)
	}
	return summary, nil
}
