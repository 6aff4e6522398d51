package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"budgetapp/internal/core"
	"budgetapp/internal/storage"
)

const handsOffFlash = "Hey you! Hands off! That's not yours! Here's your profile instead."
const spoofFlash = "Uh oh! That transaction does not exist. Are you trying to spoof a transaction?"

// requirePathUser enforces that the session user matches the {userID} path
// segment. A mismatch never 404s: it flashes a warning and redirects home,
// revealing nothing about the requested resource.
func (s *Server) requirePathUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	pathID, ok := pathUserID(r)
	if !ok {
		setFlash(w, handsOffFlash)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return 0, false
	}

	sessionID, ok := s.sessions.UserID(r)
	if !ok || sessionID != pathID {
		setFlash(w, handsOffFlash)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return 0, false
	}

	return pathID, true
}

type transactionRow struct {
	ID       string
	Location string
	Amount   int64
	Category string
	Details  string
}

type transactionsPage struct {
	Flash        string
	UserID       int64
	Username     string
	Transactions []transactionRow
}

// handleUserTransactions lists the user's transactions, newest first.
func (s *Server) handleUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requirePathUser(w, r)
	if !ok {
		return
	}

	user, err := s.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load user", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	transactions, err := s.repo.ListTransactionsForUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transactions", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := transactionsPage{
		Flash:    popFlash(w, r),
		UserID:   userID,
		Username: user.Username,
	}
	for _, t := range transactions {
		page.Transactions = append(page.Transactions, transactionRow{
			ID:       t.ID,
			Location: t.Location,
			Amount:   t.Amount,
			Category: t.Category,
			Details:  t.Details,
		})
	}

	s.render(w, r, "user_transactions.html", page)
}

type transactionFormPage struct {
	Flash         string
	UserID        int64
	TransactionID string
	Location      string
	Amount        string
	Category      string
	Details       string
	Errors        map[string]string
}

func (s *Server) handleNewTransactionForm(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requirePathUser(w, r)
	if !ok {
		return
	}
	s.render(w, r, "new_transaction.html", transactionFormPage{
		Flash:  popFlash(w, r),
		UserID: userID,
	})
}

// handleNewTransaction records a transaction for the user. Field errors
// re-render the form with the submitted values preserved.
func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requirePathUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	t, fieldErrors := parseTransactionForm(r)
	if fieldErrors != nil {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "new_transaction.html", transactionFormPage{
			UserID:   userID,
			Location: t.Location,
			Amount:   r.Form.Get("amount"),
			Category: t.Category,
			Details:  t.Details,
			Errors:   fieldErrors,
		})
		return
	}

	if _, err := s.transactions.CreateTransaction(r.Context(), userID, t); err != nil {
		slog.ErrorContext(r.Context(), "Failed to create transaction", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	setFlash(w, "Added!")
	http.Redirect(w, r, fmt.Sprintf("/users/%d/transactions", userID), http.StatusSeeOther)
}

// handleTransactionDetail renders the edit form for one owned transaction.
func (s *Server) handleTransactionDetail(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requirePathUser(w, r)
	if !ok {
		return
	}

	t, ok := s.ownedTransaction(w, r, userID)
	if !ok {
		return
	}

	s.render(w, r, "edit_transaction.html", transactionFormPage{
		Flash:         popFlash(w, r),
		UserID:        userID,
		TransactionID: t.ID,
		Location:      t.Location,
		Amount:        strconv.FormatInt(t.Amount, 10),
		Category:      t.Category,
		Details:       t.Details,
	})
}

// handleTransactionSubmit applies an edit, or a delete when the form asks
// for one.
func (s *Server) handleTransactionSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requirePathUser(w, r)
	if !ok {
		return
	}

	existing, ok := s.ownedTransaction(w, r, userID)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if r.Form.Get("delete") != "" {
		if err := s.transactions.DeleteTransaction(r.Context(), existing.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.ErrorContext(r.Context(), "Failed to delete transaction", "id", existing.ID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		setFlash(w, "Removed")
		http.Redirect(w, r, fmt.Sprintf("/users/%d/transactions", userID), http.StatusSeeOther)
		return
	}

	t, fieldErrors := parseTransactionForm(r)
	if fieldErrors != nil {
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "edit_transaction.html", transactionFormPage{
			UserID:        userID,
			TransactionID: existing.ID,
			Location:      t.Location,
			Amount:        r.Form.Get("amount"),
			Category:      t.Category,
			Details:       t.Details,
			Errors:        fieldErrors,
		})
		return
	}

	t.ID = existing.ID
	if err := s.transactions.UpdateTransaction(r.Context(), t); err != nil {
		slog.ErrorContext(r.Context(), "Failed to update transaction", "id", existing.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/users/%d/transactions", userID), http.StatusSeeOther)
}

// ownedTransaction loads the transaction and verifies the ownership link.
// Missing and not-owned both flash the same message and redirect home.
func (s *Server) ownedTransaction(w http.ResponseWriter, r *http.Request, userID int64) (*core.Transaction, bool) {
	id := pathTransactionID(r)

	owns, err := s.repo.UserOwnsTransaction(r.Context(), userID, id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Ownership check failed", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if !owns {
		setFlash(w, spoofFlash)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, false
	}

	t, err := s.repo.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			setFlash(w, spoofFlash)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return nil, false
		}
		slog.ErrorContext(r.Context(), "Failed to load transaction", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}

	return t, true
}

// handleNotFound renders the HTML 404 page; API paths get JSON instead.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	s.renderStatus(w, r, http.StatusNotFound, "not_found.html", struct{ Flash string }{})
}
