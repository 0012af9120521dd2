package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	mW "github.com/orgledger/backend/internal/middleware"
	"github.com/orgledger/backend/internal/models"
	"github.com/orgledger/backend/internal/services"
	"go.uber.org/zap"
)

type LedgerHandler struct {
	db              *sql.DB
	ledger          *services.LedgerService
	pins            *services.PinService
	validator       *ValidationHelper
	historyMaxLimit int
	logger          *zap.Logger
}

func NewLedgerHandler(db *sql.DB, ledger *services.LedgerService, pins *services.PinService, historyMaxLimit int, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		db:              db,
		ledger:          ledger,
		pins:            pins,
		validator:       NewValidationHelper(),
		historyMaxLimit: historyMaxLimit,
		logger:          logger.Named("ledger_handler"),
	}
}

// Routes expects an authenticated Identity in the request context.
func (h *LedgerHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/pin", h.SetPin)
	r.Get("/accounts", h.ListAccounts)
	r.Get("/balances/{currency}", h.GetBalance)
	r.Post("/transfers", h.CreateTransfer)
	r.Get("/transactions", h.ListTransactions)
	r.Get("/transactions/{txId}", h.GetTransaction)
	r.With(mW.RequireRole("owner", "admin")).Post("/transactions/{txId}/reverse", h.ReverseTransaction)
	return r
}

func (h *LedgerHandler) identity(w http.ResponseWriter, r *http.Request) (mW.Identity, bool) {
	id, ok := mW.IdentityFromContext(r.Context())
	if !ok || id.UserID == "" || id.OrganizationID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return mW.Identity{}, false
	}
	return id, true
}

type SetPinRequest struct {
	Pin      string `json:"pin" validate:"required,numeric,min=4,max=6"`
	Password string `json:"password" validate:"required"`
}

// SetPin sets or changes the caller's transaction PIN after a password re-check.
func (h *LedgerHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req SetPinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := h.pins.SetPinWithPasswordCheck(r.Context(), id.UserID, req.Pin, req.Password); err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Transaction PIN updated",
	})
}

func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	accounts, err := services.ListAccounts(r.Context(), h.db, id.UserID, id.OrganizationID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	views := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newAccountView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": views})
}

// GetBalance returns the caller's account in a currency, creating it on first use.
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	currency := strings.ToUpper(chi.URLParam(r, "currency"))
	if err := h.validator.ValidateVar(currency, "iso4217"); err != nil {
		SendErrorResponse(w, "Unsupported currency", http.StatusBadRequest, nil)
		return
	}

	account, err := h.ledger.GetBalance(r.Context(), h.db, id.UserID, id.OrganizationID, currency)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(*account))
}

type TransferRequest struct {
	RecipientID    string `json:"recipientId" validate:"required_without=RecipientEmail,excluded_with=RecipientEmail"`
	RecipientEmail string `json:"recipientEmail" validate:"omitempty,email"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"required,iso4217"`
	Pin            string `json:"pin" validate:"required"`
	Description    string `json:"description" validate:"max=255"`
}

// CreateTransfer moves funds from the caller to a recipient given by id or email.
func (h *LedgerHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Currency = strings.ToUpper(req.Currency)
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transfer := services.TransferRequest{
		SenderID:       id.UserID,
		RecipientID:    req.RecipientID,
		OrganizationID: id.OrganizationID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Pin:            req.Pin,
		Description:    req.Description,
	}

	var (
		txn *models.Transaction
		err error
	)
	if req.RecipientEmail != "" {
		txn, err = h.ledger.TransferByEmail(r.Context(), h.db, req.RecipientEmail, transfer)
	} else {
		txn, err = h.ledger.Transfer(r.Context(), h.db, transfer)
	}
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newTransactionView(*txn))
}

func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	query := services.HistoryQuery{
		OrganizationID: id.OrganizationID,
		Currency:       strings.ToUpper(q.Get("currency")),
		Cursor:         q.Get("cursor"),
	}
	if query.Currency != "" {
		if err := h.validator.ValidateVar(query.Currency, "iso4217"); err != nil {
			SendErrorResponse(w, "Unsupported currency", http.StatusBadRequest, nil)
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			SendErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest, nil)
			return
		}
		query.Limit = limit
	}
	if h.historyMaxLimit > 0 && query.Limit > h.historyMaxLimit {
		query.Limit = h.historyMaxLimit
	}

	page, err := services.GetTransactions(r.Context(), h.db, query)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	view := TransactionPageView{
		Transactions: make([]TransactionView, 0, len(page.Transactions)),
		NextCursor:   page.NextCursor,
	}
	for _, t := range page.Transactions {
		view.Transactions = append(view.Transactions, newTransactionView(t))
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	txn, err := services.GetTransaction(r.Context(), h.db, id.OrganizationID, chi.URLParam(r, "txId"))
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionView(*txn))
}

type ReverseRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ReverseTransaction is mounted behind RequireRole("owner", "admin").
func (h *LedgerHandler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req ReverseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	reversal, err := h.ledger.ReverseTransaction(r.Context(), h.db, services.ReversalRequest{
		OrganizationID: id.OrganizationID,
		TransactionID:  chi.URLParam(r, "txId"),
		Reason:         req.Reason,
	})
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("reversal requested",
		zap.String("user_id", id.UserID),
		zap.String("role", id.Role),
		zap.String("reversal_id", reversal.ID))
	writeJSON(w, http.StatusCreated, newTransactionView(*reversal))
}
