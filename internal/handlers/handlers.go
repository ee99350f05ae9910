// Package handlers is the JSON API of the bank import service.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bankimport/internal/database"
	"bankimport/internal/filestore"
	"bankimport/internal/importer"
	"bankimport/internal/logger"
	"bankimport/internal/version"
)

// multipartMemory is how much of a multipart form is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

type Handler struct {
	db        *database.DB
	files     *filestore.Store
	importer  *importer.Importer
	maxUpload int64
}

// New creates the API handlers. Uploads larger than maxUpload bytes are
// rejected; zero means no limit.
func New(db *database.DB, files *filestore.Store, im *importer.Importer, maxUpload int64) *Handler {
	return &Handler{
		db:        db,
		files:     files,
		importer:  im,
		maxUpload: maxUpload,
	}
}

// Healthz reports whether the database answers.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("healthz_db_ping_failed", "error", err.Error())
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// APIVersion returns build information.
func (h *Handler) APIVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a store error to 404 or 500. The message of a 500 is
// generic; the cause is logged.
func writeStoreError(w http.ResponseWriter, r *http.Request, event string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	logger.FromContext(r.Context()).Error(event, "error", err.Error())
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
