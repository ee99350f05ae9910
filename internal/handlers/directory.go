package handlers

import (
	"errors"
	"net/http"
	"strings"

	"bankimport/internal/importer"
	"bankimport/internal/logger"
	"bankimport/internal/models"
)

func (h *Handler) ClientsList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathID(r, "orgID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	clients, err := h.db.ListClients(r.Context(), orgID)
	if err != nil {
		writeStoreError(w, r, "clients_list_error", err)
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *Handler) ClientsShow(w http.ResponseWriter, r *http.Request) {
	orgID, ok1 := pathID(r, "orgID")
	id, ok2 := pathID(r, "id")
	if !ok1 || !ok2 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	client, err := h.db.GetClient(r.Context(), orgID, id)
	if err != nil {
		writeStoreError(w, r, "client_get_error", err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

type clientRequest struct {
	Name string `json:"name"`
	BIN  string `json:"bin"`
	IIN  string `json:"iin"`
}

func (h *Handler) ClientsCreate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathID(r, "orgID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	var req clientRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	client := models.Client{
		OrganizationID: orgID,
		Name:           req.Name,
		BIN:            strings.TrimSpace(req.BIN),
		IIN:            strings.TrimSpace(req.IIN),
	}
	id, err := h.db.CreateClient(r.Context(), client)
	if err != nil {
		writeStoreError(w, r, "client_create_error", err)
		return
	}
	client.ID = id
	writeJSON(w, http.StatusCreated, client)
}

func (h *Handler) EmployeesList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathID(r, "orgID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	employees, err := h.db.ListEmployees(r.Context(), orgID, activeOnly)
	if err != nil {
		writeStoreError(w, r, "employees_list_error", err)
		return
	}
	if employees == nil {
		employees = []models.Employee{}
	}
	writeJSON(w, http.StatusOK, employees)
}

type employeeRequest struct {
	Name string `json:"name"`
	IIN  string `json:"iin"`
}

func (h *Handler) EmployeesCreate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathID(r, "orgID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	var req employeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	employee := models.Employee{
		OrganizationID: orgID,
		Name:           req.Name,
		IIN:            strings.TrimSpace(req.IIN),
		Active:         true,
	}
	id, err := h.db.CreateEmployee(r.Context(), employee)
	if err != nil {
		writeStoreError(w, r, "employee_create_error", err)
		return
	}
	employee.ID = id
	writeJSON(w, http.StatusCreated, employee)
}

func (h *Handler) EmployeesDeactivate(w http.ResponseWriter, r *http.Request) {
	h.setEmployeeActive(w, r, false)
}

func (h *Handler) EmployeesReactivate(w http.ResponseWriter, r *http.Request) {
	h.setEmployeeActive(w, r, true)
}

func (h *Handler) setEmployeeActive(w http.ResponseWriter, r *http.Request, active bool) {
	orgID, ok1 := pathID(r, "orgID")
	id, ok2 := pathID(r, "id")
	if !ok1 || !ok2 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.db.SetEmployeeActive(r.Context(), orgID, id, active); err != nil {
		writeStoreError(w, r, "employee_update_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": active})
}

func (h *Handler) TransactionsList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathID(r, "orgID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	txns, err := h.db.ListLedgerTransactions(r.Context(), orgID)
	if err != nil {
		writeStoreError(w, r, "transactions_list_error", err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := txns[:0]
		for _, t := range txns {
			if t.ReconciliationStatus == status {
				filtered = append(filtered, t)
			}
		}
		txns = filtered
	}
	if txns == nil {
		txns = []models.LedgerTransaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *Handler) TransactionsShow(w http.ResponseWriter, r *http.Request) {
	orgID, ok1 := pathID(r, "orgID")
	id, ok2 := pathID(r, "id")
	if !ok1 || !ok2 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	txn, err := h.db.GetLedgerTransaction(r.Context(), orgID, id)
	if err != nil {
		writeStoreError(w, r, "transaction_get_error", err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (h *Handler) AliasesList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathID(r, "orgID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	aliases, err := h.db.GetAliases(r.Context(), orgID)
	if err != nil {
		writeStoreError(w, r, "aliases_list_error", err)
		return
	}
	if aliases == nil {
		aliases = []models.CounterpartyAlias{}
	}
	writeJSON(w, http.StatusOK, aliases)
}

type aliasRequest struct {
	BankName string `json:"bank_name"`
	TaxID    string `json:"tax_id"`
	ClientID int64  `json:"client_id"`
}

// AliasesCreate confirms that a bank counterparty is one of the
// organization's clients. Later imports resolve it by alias.
func (h *Handler) AliasesCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := pathID(r, "orgID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	var req aliasRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ClientID <= 0 {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if _, err := h.db.GetClient(ctx, orgID, req.ClientID); err != nil {
		writeStoreError(w, r, "alias_client_lookup_error", err)
		return
	}

	err := h.importer.ConfirmAlias(ctx, orgID, req.BankName, strings.TrimSpace(req.TaxID), req.ClientID)
	if err != nil {
		if errors.Is(err, importer.ErrEmptyAlias) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.FromContext(ctx).Error("alias_save_error", "org_id", orgID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to save alias")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"client_id": req.ClientID})
}
