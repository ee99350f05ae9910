package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bankimport/internal/auth"
	"bankimport/internal/database"
	"bankimport/internal/filestore"
	"bankimport/internal/importer"
	"bankimport/internal/jobs"
	"bankimport/internal/metrics"
	"bankimport/internal/models"
	"bankimport/internal/resolver"
)

const testToken = "s3cret"

const statement = "Дата;Наименование;Зачислено;Назначение\n" +
	"02.03.2024;ТОО Ромашка;100000;Оплата услуг\n" +
	"03.03.2024;ТОО Неизвестный;5000;Предоплата\n"

type testServer struct {
	db     *database.DB
	files  *filestore.Store
	im     *importer.Importer
	server http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	files, err := filestore.New(filepath.Join(dir, "uploads"), 1<<20)
	if err != nil {
		t.Fatal(err)
	}

	rec := metrics.New()
	im := importer.New(importer.Config{
		Aliases:  db,
		Cache:    resolver.NewAliasCache(8, time.Minute),
		TaxIDs:   db,
		Observer: rec,
	})
	h := New(db, files, im, 1<<20)
	router := NewRouter(h, RouterConfig{
		Auth:    auth.New(testToken),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: rec.Handler(),
	})
	return &testServer{db: db, files: files, im: im, server: router}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

func uploadRequest(t *testing.T, path, fileName, content, encoding string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if encoding != "" {
		mw.WriteField("encoding", encoding)
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// seed creates client "ТОО Ромашка" with an open 100000 ledger entry dated
// 2024-03-01 in organization 1.
func (s *testServer) seed(t *testing.T) (clientID, ledgerID int64) {
	t.Helper()
	rec := s.postJSON(t, "/api/organizations/1/clients", map[string]string{"name": "ТОО Ромашка"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create client: %d %s", rec.Code, rec.Body)
	}
	var c models.Client
	decodeJSON(t, rec, &c)

	ledgerID, err := s.db.CreateLedgerTransaction(context.Background(), models.LedgerTransaction{
		OrganizationID:       1,
		Date:                 "2024-03-01",
		Amount:               decimal.NewFromInt(100000),
		ClientID:             &c.ID,
		Description:          "Счет 15",
		ReconciliationStatus: models.StatusNone,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c.ID, ledgerID
}

func TestAuthAndHealth(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"no token", "/api/version", "-", http.StatusUnauthorized},
		{"wrong token", "/api/version", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/api/version", "", http.StatusOK},
		{"healthz is public", "/healthz", "-", http.StatusOK},
		{"metrics is public", "/metrics", "-", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token == "-" {
				rec := httptest.NewRecorder()
				s.server.ServeHTTP(rec, req)
				if rec.Code != tt.status {
					t.Errorf("status = %d, want %d", rec.Code, tt.status)
				}
				return
			}
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			if rec := s.do(t, req); rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestPreviewImport(t *testing.T) {
	s := newTestServer(t)
	clientID, ledgerID := s.seed(t)

	rec := s.do(t, uploadRequest(t, "/api/organizations/1/imports/preview", "statement.csv", statement, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", rec.Code, rec.Body)
	}
	var res importer.Result
	decodeJSON(t, rec, &res)

	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	first := res.Records[0]
	if first.Reconciliation.Classification != "verified" || *first.Reconciliation.MatchedLedgerTransactionID != ledgerID {
		t.Errorf("first record = %+v", first.Reconciliation)
	}
	if first.Counterparty.ClientID() == nil || *first.Counterparty.ClientID() != clientID {
		t.Errorf("first counterparty = %+v", first.Counterparty)
	}
	if second := res.Records[1]; second.Reconciliation.Classification != "new" || second.Counterparty.Kind != resolver.KindUnresolved {
		t.Errorf("second record = %+v", second)
	}

	// a preview writes nothing
	txn, err := s.db.GetLedgerTransaction(context.Background(), 1, ledgerID)
	if err != nil || txn.ReconciliationStatus != models.StatusNone {
		t.Errorf("ledger entry after preview = %+v, %v", txn, err)
	}

	// nor is it counted as an import
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(rec.Body.String(), "bankimport_classifications_total{") {
		t.Error("metrics count the preview")
	}
}

func TestPreviewImportRejects(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"bad org id", uploadRequest(t, "/api/organizations/x/imports/preview", "a.csv", statement, ""), http.StatusBadRequest},
		{"unsupported encoding", uploadRequest(t, "/api/organizations/1/imports/preview", "a.csv", statement, "koi8-r"), http.StatusBadRequest},
		{"corrupt workbook", uploadRequest(t, "/api/organizations/1/imports/preview", "a.xlsx", "PK\x03\x04broken", ""), http.StatusBadRequest},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/organizations/1/imports/preview", strings.NewReader("x")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestImportJobCommit(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	_, ledgerID := s.seed(t)

	rec := s.do(t, uploadRequest(t, "/api/organizations/1/imports", "statement.csv", statement, "utf-8"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create import: %d %s", rec.Code, rec.Body)
	}
	var created struct {
		JobID int64 `json:"job_id"`
	}
	decodeJSON(t, rec, &created)

	// committing before the worker ran is a conflict
	if rec := s.do(t, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/organizations/1/jobs/%d/commit", created.JobID), nil)); rec.Code != http.StatusConflict {
		t.Errorf("early commit status = %d, want 409", rec.Code)
	}

	job, err := s.db.ClaimNextJob(ctx)
	if err != nil || job == nil || job.ID != created.JobID {
		t.Fatalf("ClaimNextJob = %+v, %v", job, err)
	}
	if err := jobs.ImportStatementHandler(s.db, s.files, s.im)(ctx, job); err != nil {
		t.Fatalf("import handler: %v", err)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/organizations/1/jobs/%d", created.JobID), nil))
	var status struct {
		Status string          `json:"status"`
		Result importer.Result `json:"result"`
	}
	decodeJSON(t, rec, &status)
	if status.Status != database.JobCompleted || len(status.Result.Records) != 2 {
		t.Fatalf("job status = %+v", status)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `bankimport_classifications_total{classification="verified"} 1`) {
		t.Error("metrics do not count the import job")
	}

	// another organization can neither see nor commit the job
	otherPath := fmt.Sprintf("/api/organizations/2/jobs/%d", created.JobID)
	if rec := s.do(t, httptest.NewRequest(http.MethodGet, otherPath, nil)); rec.Code != http.StatusNotFound {
		t.Errorf("foreign job status = %d, want 404", rec.Code)
	}
	if rec := s.do(t, httptest.NewRequest(http.MethodPost, otherPath+"/commit", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("foreign commit status = %d, want 404", rec.Code)
	}

	commitPath := fmt.Sprintf("/api/organizations/1/jobs/%d/commit", created.JobID)
	rec = s.do(t, httptest.NewRequest(http.MethodPost, commitPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: %d %s", rec.Code, rec.Body)
	}
	var summary database.ApplySummary
	decodeJSON(t, rec, &summary)
	if summary.Inserted != 1 || summary.Updated != 1 {
		t.Errorf("summary = %+v, want 1 inserted, 1 updated", summary)
	}

	if rec := s.do(t, httptest.NewRequest(http.MethodPost, commitPath, nil)); rec.Code != http.StatusConflict {
		t.Errorf("second commit status = %d, want 409", rec.Code)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/organizations/1/transactions", nil))
	var ledger []models.LedgerTransaction
	decodeJSON(t, rec, &ledger)
	if len(ledger) != 2 {
		t.Fatalf("ledger has %d entries, want 2", len(ledger))
	}
	if ledger[0].ID != ledgerID || ledger[0].ReconciliationStatus != models.StatusVerified {
		t.Errorf("matched entry = %+v", ledger[0])
	}
	if ledger[1].ReconciliationStatus != models.StatusBankImport || !ledger[1].Amount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("inserted entry = %+v", ledger[1])
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/organizations/1/transactions?status=bank_import", nil))
	decodeJSON(t, rec, &ledger)
	if len(ledger) != 1 {
		t.Errorf("status filter returned %d entries, want 1", len(ledger))
	}
}

func TestJobStatusNotFound(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/organizations/1/jobs/42", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/organizations/1/jobs/abc", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAliases(t *testing.T) {
	s := newTestServer(t)
	clientID, _ := s.seed(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"unknown client", aliasRequest{BankName: "ROMASHKA LLP", ClientID: 999}, http.StatusNotFound},
		{"missing client", aliasRequest{BankName: "ROMASHKA LLP"}, http.StatusBadRequest},
		{"empty alias", aliasRequest{BankName: "  ", ClientID: clientID}, http.StatusBadRequest},
		{"unknown field", map[string]any{"bank_name": "x", "client_id": clientID, "extra": 1}, http.StatusBadRequest},
		{"confirmed", aliasRequest{BankName: "ТОО «Ромашка-Алматы»", TaxID: "123456789012", ClientID: clientID}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.postJSON(t, "/api/organizations/1/aliases", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
		})
	}

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/organizations/1/aliases", nil))
	var aliases []models.CounterpartyAlias
	decodeJSON(t, rec, &aliases)
	if len(aliases) != 1 || aliases[0].BankTaxID != "123456789012" || aliases[0].ClientID != clientID {
		t.Fatalf("aliases = %+v", aliases)
	}

	// the alias now resolves a statement row by tax ID
	content := "Дата;БИН/ИИН;Наименование;Зачислено\n10.03.2024;123456789012;ROMASHKA;777\n"
	rec = s.do(t, uploadRequest(t, "/api/organizations/1/imports/preview", "s.csv", content, ""))
	var res importer.Result
	decodeJSON(t, rec, &res)
	if len(res.Records) != 1 || res.Records[0].Counterparty.Source != resolver.SourceAlias {
		t.Errorf("preview after alias = %+v", res.Records)
	}
}

func TestEmployees(t *testing.T) {
	s := newTestServer(t)

	rec := s.postJSON(t, "/api/organizations/1/employees", map[string]string{"name": "Иванов Иван", "iin": "900101300123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create employee: %d %s", rec.Code, rec.Body)
	}
	var e models.Employee
	decodeJSON(t, rec, &e)

	if rec := s.do(t, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/organizations/1/employees/%d/deactivate", e.ID), nil)); rec.Code != http.StatusOK {
		t.Fatalf("deactivate: %d", rec.Code)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/organizations/1/employees?active=true", nil))
	var active []models.Employee
	decodeJSON(t, rec, &active)
	if len(active) != 0 {
		t.Errorf("active employees = %+v, want none", active)
	}

	if rec := s.do(t, httptest.NewRequest(http.MethodPost, "/api/organizations/1/employees/99/reactivate", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("reactivate unknown status = %d, want 404", rec.Code)
	}
	if rec := s.postJSON(t, "/api/organizations/1/employees", map[string]string{"name": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty name status = %d, want 400", rec.Code)
	}
}
