package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"bankimport/internal/database"
	"bankimport/internal/decode"
	"bankimport/internal/importer"
	"bankimport/internal/jobs"
	"bankimport/internal/logger"
	"bankimport/internal/models"
)

// errBadUpload marks request problems that are the uploader's fault.
var errBadUpload = errors.New("bad upload")

type upload struct {
	file     multipart.File
	name     string
	size     int64
	encoding string
}

// readUpload extracts the "file" part and the optional "encoding" field of a
// multipart request. The caller closes the file.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("%w: parse form: %v", errBadUpload, err)
	}

	enc := r.FormValue("encoding")
	if !decode.Supported(enc) {
		return nil, fmt.Errorf("%w: unsupported encoding %q", errBadUpload, enc)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: missing file: %v", errBadUpload, err)
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		file.Close()
		return nil, fmt.Errorf("%w: file larger than %d bytes", errBadUpload, h.maxUpload)
	}
	return &upload{file: file, name: header.Filename, size: header.Size, encoding: enc}, nil
}

// PreviewImport classifies an uploaded export against the organization's
// records and returns the result without writing anything.
func (h *Handler) PreviewImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.FromContext(ctx)

	orgID, ok := pathID(r, "orgID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	up, err := h.readUpload(w, r)
	if err != nil {
		l.Warn("import_preview_rejected", "org_id", orgID, "error", err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer up.file.Close()

	raw, err := io.ReadAll(up.file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file: "+err.Error())
		return
	}
	content, err := decode.DecodeUpload(raw, up.name, up.encoding)
	if err != nil {
		l.Warn("import_preview_decode_failed", "org_id", orgID, "filename", up.name, "error", err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in, err := importer.Load(ctx, h.db, orgID)
	if err != nil {
		writeStoreError(w, r, "import_preview_load_failed", err)
		return
	}
	in.FileName = up.name
	in.Content = content
	in.DryRun = true

	res, err := h.importer.Import(ctx, in)
	if err != nil {
		writeStoreError(w, r, "import_preview_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateImport stores an uploaded export and queues an import_statement job.
// The client polls GET /api/organizations/{orgID}/jobs/{id} for the result.
func (h *Handler) CreateImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.FromContext(ctx)

	orgID, ok := pathID(r, "orgID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	up, err := h.readUpload(w, r)
	if err != nil {
		l.Warn("import_upload_rejected", "org_id", orgID, "error", err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer up.file.Close()

	l.Info("import_upload", "org_id", orgID, "filename", up.name, "size", up.size)

	stored, err := h.files.Save(up.name, up.file)
	if err != nil {
		l.Error("import_file_save_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to save uploaded file")
		return
	}

	jobID, err := h.db.CreateJob(ctx, jobs.ImportStatementJob, jobs.ImportStatementPayload{
		OrganizationID: orgID,
		FilePath:       stored,
		FileName:       up.name,
		Encoding:       up.encoding,
	})
	if err != nil {
		h.files.Delete(stored)
		l.Error("import_job_create_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to queue import job")
		return
	}

	l.Info("import_job_queued", "org_id", orgID, "job_id", jobID)
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}

// orgJob loads a job and checks that it belongs to the organization in the
// path. A job of another organization is reported as not found.
func (h *Handler) orgJob(w http.ResponseWriter, r *http.Request, event string) (*models.Job, *jobs.ImportStatementPayload, bool) {
	orgID, ok1 := pathID(r, "orgID")
	id, ok2 := pathID(r, "id")
	if !ok1 || !ok2 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, nil, false
	}

	job, err := h.db.GetJob(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, event, err)
		return nil, nil, false
	}

	var payload jobs.ImportStatementPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		logger.FromContext(r.Context()).Error(event, "job_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, nil, false
	}
	// Hide jobs of other organizations
	if payload.OrganizationID != orgID {
		writeError(w, http.StatusNotFound, database.ErrNotFound.Error())
		return nil, nil, false
	}
	return job, &payload, true
}

// JobStatus returns the status of a background job (for polling). The result
// of a completed import is embedded as JSON; a failed job carries its error.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, _, ok := h.orgJob(w, r, "job_status_error")
	if !ok {
		return
	}

	resp := map[string]any{
		"id":       job.ID,
		"job_type": job.JobType,
		"status":   job.Status,
		"progress": job.Progress,
		"attempts": job.Attempts,
	}
	switch job.Status {
	case database.JobCompleted, database.JobCommitted:
		if job.Result != "" {
			resp["result"] = json.RawMessage(job.Result)
		}
	case database.JobFailed:
		resp["error"] = job.Result
	}
	writeJSON(w, http.StatusOK, resp)
}

// CommitImport applies a completed import job to the ledger: new records are
// inserted as bank imports, verified and discrepancy records update the
// matched entries, and duplicates are skipped. A job commits once.
func (h *Handler) CommitImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.FromContext(ctx)

	job, payload, ok := h.orgJob(w, r, "import_commit_load_error")
	if !ok {
		return
	}
	if job.JobType != jobs.ImportStatementJob {
		writeError(w, http.StatusBadRequest, "job is not an import")
		return
	}
	if job.Status != database.JobCompleted {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s, not completed", job.Status))
		return
	}

	var res importer.Result
	if err := json.Unmarshal([]byte(job.Result), &res); err != nil {
		l.Error("import_commit_result_error", "job_id", job.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	summary, err := h.db.CommitImportJob(ctx, job.ID, payload.OrganizationID, res.LedgerChanges())
	if err != nil {
		if errors.Is(err, database.ErrJobNotCompleted) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeStoreError(w, r, "import_commit_error", err)
		return
	}

	l.Info("import_committed",
		"job_id", job.ID,
		"org_id", payload.OrganizationID,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
	)
	writeJSON(w, http.StatusOK, summary)
}
