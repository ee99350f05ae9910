package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"bankimport/internal/decode"
	"bankimport/internal/importer"
	"bankimport/internal/logger"
	"bankimport/internal/models"
)

// ImportStatementJob is the job type of statement imports.
const ImportStatementJob = "import_statement"

// ImportStatementPayload is the JSON payload for import_statement jobs
type ImportStatementPayload struct {
	OrganizationID int64  `json:"organization_id"`
	FilePath       string `json:"file_path"` // stored filename in filestore
	FileName       string `json:"file_name"` // name as uploaded
	Encoding       string `json:"encoding,omitempty"`
}

// FileReader returns the content of a stored upload.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// ImportStore is what an import job reads and writes besides the file.
type ImportStore interface {
	importer.Directory
	UpdateJobProgress(ctx context.Context, id int64, progress int) error
	CompleteJob(ctx context.Context, id int64, result string) error
}

// ImportStatementHandler creates a job handler that classifies an uploaded
// statement and stores the importer.Result as the job result. Nothing is
// written to the ledger until the job is committed.
func ImportStatementHandler(store ImportStore, files FileReader, im *importer.Importer) JobHandler {
	return func(ctx context.Context, job *models.Job) error {
		log := logger.FromContext(ctx)

		var payload ImportStatementPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}

		raw, err := files.ReadFile(payload.FilePath)
		if err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
		content, err := decode.DecodeUpload(raw, payload.FileName, payload.Encoding)
		if err != nil {
			return fmt.Errorf("decode upload: %w", err)
		}
		progress(ctx, store, job.ID, 20)

		in, err := importer.Load(ctx, store, payload.OrganizationID)
		if err != nil {
			return err
		}
		in.FileName = payload.FileName
		in.Content = content
		progress(ctx, store, job.ID, 40)

		res, err := im.Import(ctx, in)
		if err != nil {
			return fmt.Errorf("import statement: %w", err)
		}
		progress(ctx, store, job.ID, 90)

		resultJSON, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		if err := store.CompleteJob(ctx, job.ID, string(resultJSON)); err != nil {
			return err
		}

		log.Info("statement_imported",
			"org_id", payload.OrganizationID,
			"format", res.Format,
			"records", len(res.Records),
		)
		return nil
	}
}

func progress(ctx context.Context, store ImportStore, jobID int64, pct int) {
	if err := store.UpdateJobProgress(ctx, jobID, pct); err != nil {
		logger.FromContext(ctx).Warn("job_progress_update_failed", "job_id", jobID, "error", err.Error())
	}
}
