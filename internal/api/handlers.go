package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/api/middleware"
	"github.com/Veraticus/the-books-must-balance/internal/bankfeed"
	"github.com/Veraticus/the-books-must-balance/internal/categorize"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type userRequest struct {
	UserID string `json:"user_id"`
}

type syncRequest struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	Force     bool   `json:"force"`
}

type syncResponse struct {
	Results []bankfeed.Result `json:"results"`
	Errors  []string          `json:"errors,omitempty"`
}

type categorizeRequest struct {
	UserID         string   `json:"user_id"`
	TransactionIDs []string `json:"transaction_ids"`
}

type categorizeResponse struct {
	categorize.Summary
	Error string `json:"error,omitempty"`
}

type transactionRequest struct {
	UserID        string `json:"user_id"`
	TransactionID string `json:"transaction_id"`
}

type exchangeRequest struct {
	UserID          string `json:"user_id"`
	PublicToken     string `json:"public_token"`
	InstitutionName string `json:"institution_name"`
}

type categoryRequest struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	TaxCode      string `json:"tax_code"`
	IsDeductible bool   `json:"is_deductible"`
}

type manualTransactionRequest struct {
	CategoryID  *int64 `json:"category_id"`
	UserID      string `json:"user_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Vendor      string `json:"vendor"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !s.decode(w, r, &req) || !requireUser(w, req.UserID) {
		return
	}
	if s.syncer == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "bank sync is not configured")
		return
	}

	opts := bankfeed.Options{Force: req.Force}
	if req.AccountID != "" {
		account, err := s.storage.GetBankAccount(r.Context(), req.UserID, req.AccountID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		result, err := s.syncer.SyncAccount(r.Context(), *account, opts)
		if err != nil {
			s.writeError(w, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, syncResponse{Results: []bankfeed.Result{result}})
		return
	}

	results, err := s.syncer.SyncUser(r.Context(), req.UserID, opts)
	resp := syncResponse{Results: results}
	if err != nil {
		if len(results) == 0 {
			s.writeError(w, err)
			return
		}
		resp.Errors = splitErrors(err)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req categorizeRequest
	if !s.decode(w, r, &req) || !requireUser(w, req.UserID) {
		return
	}
	if s.categorizer == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "categorization is not configured")
		return
	}

	var (
		summary categorize.Summary
		err     error
	)
	if len(req.TransactionIDs) > 0 {
		summary, err = s.categorizer.CategorizeIDs(r.Context(), req.UserID, req.TransactionIDs)
	} else {
		summary, err = s.categorizer.CategorizeUncategorized(r.Context(), req.UserID)
	}

	// Abandoned batches still leave the applied results in place.
	if err != nil && !errors.Is(err, common.ErrClassificationFailed) {
		s.writeError(w, err)
		return
	}
	resp := categorizeResponse{Summary: summary}
	if err != nil {
		resp.Error = err.Error()
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decode(w, r, &req) || !requireUser(w, req.UserID) {
		return
	}
	if s.reconciler == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "reconciliation is not configured")
		return
	}

	report, err := s.reconciler.Reconcile(r.Context(), req.UserID, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

func (s *Server) handleReviewList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if !requireUser(w, userID) {
		return
	}

	txns, err := s.review.Candidates(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"patterns":     s.review.Patterns(),
		"transactions": txns,
	})
}

func (s *Server) handleFlipType(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !s.decode(w, r, &req) || !requireUser(w, req.UserID) || !requireField(w, req.TransactionID, "transaction_id") {
		return
	}

	txn, err := s.review.FlipType(r.Context(), req.UserID, req.TransactionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, txn)
}

func (s *Server) handleAcceptFlag(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !s.decode(w, r, &req) || !requireUser(w, req.UserID) || !requireField(w, req.TransactionID, "transaction_id") {
		return
	}

	txn, err := s.review.AcceptFlag(r.Context(), req.UserID, req.TransactionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, txn)
}

func (s *Server) handleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decode(w, r, &req) || !requireUser(w, req.UserID) {
		return
	}
	if s.syncer == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "bank sync is not configured")
		return
	}

	token, err := s.syncer.CreateLinkToken(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

func (s *Server) handleExchangePublicToken(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if !s.decode(w, r, &req) || !requireUser(w, req.UserID) || !requireField(w, req.PublicToken, "public_token") {
		return
	}
	if s.syncer == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "bank sync is not configured")
		return
	}

	accounts, err := s.syncer.LinkAccounts(r.Context(), req.UserID, req.PublicToken, req.InstitutionName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if !requireUser(w, userID) {
		return
	}

	accounts, err := s.storage.ListBankAccounts(r.Context(), userID, false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []model.BankAccount{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if !requireUser(w, userID) {
		return
	}

	categories, err := s.storage.GetCategories(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !s.decode(w, r, &req) || !requireUser(w, req.UserID) || !requireField(w, req.Name, "name") {
		return
	}
	txnType, err := model.ParseTransactionType(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cat := &model.Category{
		UserID:       req.UserID,
		Name:         strings.TrimSpace(req.Name),
		Type:         txnType,
		TaxCode:      req.TaxCode,
		IsDeductible: req.IsDeductible && txnType == model.TypeExpense,
	}
	if err := s.storage.CreateCategory(r.Context(), cat); err != nil {
		s.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req manualTransactionRequest
	if !s.decode(w, r, &req) || !requireUser(w, req.UserID) || !requireField(w, req.Description, "description") {
		return
	}

	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "amount must be a decimal number")
		return
	}
	txnType, err := model.ParseTransactionType(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.storage.GetProfile(r.Context(), req.UserID); err != nil {
		s.writeError(w, err)
		return
	}

	vendor := req.Vendor
	if vendor == "" {
		vendor = req.Description
	}
	txn := &model.Transaction{
		UserID:      req.UserID,
		Date:        date,
		Description: req.Description,
		Vendor:      vendor,
		Amount:      amount,
		Type:        txnType,
		CategoryID:  req.CategoryID,
		Source:      model.SourceManual,
	}
	if err := s.storage.CreateTransaction(r.Context(), txn); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.storage.RecordAudit(r.Context(), &model.AuditLog{
		UserID:     txn.UserID,
		Action:     model.ActionTransactionCreated,
		EntityType: "transaction",
		EntityID:   txn.ID,
	}); err != nil {
		s.logger.Warn("Failed to record audit log", "error", err)
	}
	middleware.WriteJSON(w, http.StatusCreated, txn)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, userID string) bool {
	return requireField(w, userID, "user_id")
}

func requireField(w http.ResponseWriter, value, name string) bool {
	if strings.TrimSpace(value) == "" {
		middleware.WriteError(w, http.StatusBadRequest, name+" is required")
		return false
	}
	return true
}

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	var userErr *common.UserError
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &userErr),
		errors.Is(err, common.ErrDuplicateEntry),
		errors.Is(err, common.ErrCategoryTypeMismatch),
		errors.Is(err, common.ErrAccountInactive),
		errors.Is(err, common.ErrNotFlagged),
		errors.Is(err, storage.ErrEmptyString),
		errors.Is(err, storage.ErrInvalidDateRange),
		errors.Is(err, storage.ErrInvalidTransaction),
		errors.Is(err, storage.ErrInvalidCategory),
		errors.Is(err, storage.ErrInvalidAccount),
		errors.Is(err, model.ErrNegativeAmount),
		errors.Is(err, model.ErrInvalidType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	middleware.WriteError(w, status, err.Error())
}

// splitErrors flattens an errors.Join result into its messages.
func splitErrors(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
