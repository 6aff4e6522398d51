package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"budgetapp/internal/core"
	"budgetapp/internal/storage"
)

// requireAPIUser enforces session + path identity for JSON routes: 401 when
// no valid session exists, 403 when the session does not match the path id.
func (s *Server) requireAPIUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sessionID, ok := s.sessions.UserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}

	pathID, ok := pathUserID(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	if sessionID != pathID {
		writeJSONError(w, http.StatusForbidden, "forbidden")
		return 0, false
	}

	return pathID, true
}

// handleAPIListTransactions returns the user's transactions as
// {"transactions": [...]}, newest first.
func (s *Server) handleAPIListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireAPIUser(w, r)
	if !ok {
		return
	}

	transactions, err := s.repo.ListTransactionsForUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transactions", "user_id", userID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Empty list serializes as [], not null
	out := make([]transactionJSON, 0, len(transactions))
	for _, t := range transactions {
		out = append(out, toTransactionJSON(t))
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// handleAPITransactionDetail returns one transaction the session user owns.
// Missing and not-owned both answer 404 so ids cannot be probed.
func (s *Server) handleAPITransactionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessions.UserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := pathTransactionID(r)
	owns, err := s.repo.UserOwnsTransaction(r.Context(), sessionID, id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Ownership check failed", "id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !owns {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	t, err := s.repo.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to load transaction", "id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transaction": toTransactionJSON(*t)})
}

// handleAPICreateTransaction records a transaction, answering
// 201 {"transaction": {...}} or 422 {"errors": {field: msg}}.
func (s *Server) handleAPICreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireAPIUser(w, r)
	if !ok {
		return
	}

	t, fieldErrors, err := decodeTransactionRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrors != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fieldErrors})
		return
	}

	created, err := s.transactions.CreateTransaction(r.Context(), userID, t)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create transaction", "user_id", userID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"transaction": toTransactionJSON(created)})
}

// handleAPIUpdateTransaction overwrites all mutable fields of an owned
// transaction.
func (s *Server) handleAPIUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireAPIUser(w, r)
	if !ok {
		return
	}

	id := pathTransactionID(r)
	owns, err := s.repo.UserOwnsTransaction(r.Context(), userID, id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Ownership check failed", "id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !owns {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	t, fieldErrors, err := decodeTransactionRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrors != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fieldErrors})
		return
	}

	t.ID = id
	if err := s.transactions.UpdateTransaction(r.Context(), t); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to update transaction", "id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := s.repo.GetTransaction(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to reload transaction", "id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transaction": toTransactionJSON(*updated)})
}

// handleAPIDeleteTransaction permanently removes an owned transaction.
func (s *Server) handleAPIDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireAPIUser(w, r)
	if !ok {
		return
	}

	id := pathTransactionID(r)
	owns, err := s.repo.UserOwnsTransaction(r.Context(), userID, id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Ownership check failed", "id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !owns {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	if err := s.transactions.DeleteTransaction(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete transaction", "id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Removed"})
}

// decodeTransactionRequest reads the transaction fields from a JSON body or
// a form submission, returning field-level validation errors.
func decodeTransactionRequest(r *http.Request) (core.Transaction, map[string]string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return decodeTransactionJSON(r)
	}

	if err := r.ParseForm(); err != nil {
		return core.Transaction{}, nil, err
	}
	t, fieldErrors := parseTransactionForm(r)
	return t, fieldErrors, nil
}

func decodeTransactionJSON(r *http.Request) (core.Transaction, map[string]string, error) {
	var body struct {
		Location string `json:"location"`
		Amount   any    `json:"amount"`
		Category string `json:"category"`
		Details  string `json:"details"`
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return core.Transaction{}, nil, err
	}

	fieldErrors := make(map[string]string)
	t := core.Transaction{
		Location: sanitizeInput(body.Location),
		Category: sanitizeInput(body.Category),
		Details:  sanitizeInput(body.Details),
	}

	// Amount may arrive as a JSON number or a string; a non-numeric value
	// is a field error, not a malformed request.
	var amountStr string
	switch v := body.Amount.(type) {
	case json.Number:
		amountStr = v.String()
	case string:
		amountStr = v
	}
	amount, err := core.ParseAmount(amountStr)
	if err != nil {
		fieldErrors["amount"] = "Amount must be a number"
	}
	t.Amount = amount

	collectValidationErrors(t, fieldErrors)

	if len(fieldErrors) > 0 {
		return t, fieldErrors, nil
	}
	return t, nil, nil
}
