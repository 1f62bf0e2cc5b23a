package handlers

import (
	"net/http"

	"kobonz/internal/auth"
	"kobonz/internal/logger"
	"kobonz/internal/models"
)

// AccountHandler регистрация, вход и данные текущего аккаунта.
type AccountHandler struct {
	accounts AccountService
	log      *logger.Logger
}

// NewAccountHandler создаёт обработчик аккаунтов.
func NewAccountHandler(accounts AccountService, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		log:      log,
	}
}

// Register регистрирует аккаунт и возвращает токен.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.RegisterRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Failed to register account")
		return
	}

	resp, err := h.accounts.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to register account")
		return
	}

	writeJSONResponse(w, http.StatusCreated, resp)
}

// Login выдаёт токен по email и паролю.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.LoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Failed to log in")
		return
	}

	resp, err := h.accounts.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to log in")
		return
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// Me возвращает текущий аккаунт с балансами.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	principal := auth.FromContext(r.Context())
	if principal == nil {
		writeErrorResponse(w, http.StatusUnauthorized, errAuthRequired.Error())
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), principal.AccountID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get account")
		return
	}

	writeJSONResponse(w, http.StatusOK, account)
}

// Ledger журнал движений балансов текущего аккаунта.
func (h *AccountHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	principal := auth.FromContext(r.Context())
	if principal == nil {
		writeErrorResponse(w, http.StatusUnauthorized, errAuthRequired.Error())
		return
	}

	limit, offset := parsePagination(r, 50, 200)
	entries, err := h.accounts.ListLedger(r.Context(), principal.AccountID, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list ledger")
		return
	}

	writeJSONResponse(w, http.StatusOK, entries)
}

// Get возвращает аккаунт по ID: владельцу или администратору.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/accounts/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid account ID")
		return
	}
	if !auth.CanViewAccount(auth.FromContext(r.Context()), id) {
		writeErrorResponse(w, http.StatusForbidden, "Not allowed to view this account")
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get account")
		return
	}

	writeJSONResponse(w, http.StatusOK, account)
}
