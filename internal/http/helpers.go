package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"budgetapp/internal/core"

	"github.com/go-chi/chi/v5"
)

const flashCookie = "flash"

// setFlash queues a one-shot message for the next rendered page.
// The value is base64-encoded so punctuation survives cookie encoding.
func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.URLEncoding.EncodeToString([]byte(message)),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the queued message, if any, and clears the cookie.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	decoded, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if comma := strings.IndexByte(ip, ','); comma >= 0 {
			ip = ip[:comma]
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// pathUserID parses the {userID} route parameter.
func pathUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pathTransactionID(r *http.Request) string {
	return chi.URLParam(r, "transactionID")
}

// render executes a page template, logging instead of panicking on failure.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "template", name, "error", err)
	}
}

// writeJSON marshals v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// transactionJSON is the wire shape of a transaction. CreatedAt is internal
// bookkeeping and never serialized.
type transactionJSON struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Amount   int64  `json:"amount"`
	Category string `json:"category"`
	Details  string `json:"details"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:       t.ID,
		Location: t.Location,
		Amount:   t.Amount,
		Category: t.Category,
		Details:  t.Details,
	}
}

// parseTransactionForm reads transaction fields from a submitted form and
// returns per-field validation errors keyed by field name.
func parseTransactionForm(r *http.Request) (core.Transaction, map[string]string) {
	fieldErrors := make(map[string]string)

	t := core.Transaction{
		Location: sanitizeInput(r.Form.Get("location")),
		Category: sanitizeInput(r.Form.Get("category")),
		Details:  sanitizeInput(r.Form.Get("details")),
	}

	amount, err := core.ParseAmount(r.Form.Get("amount"))
	if err != nil {
		fieldErrors["amount"] = "Amount must be a number"
	}
	t.Amount = amount

	collectValidationErrors(t, fieldErrors)

	if len(fieldErrors) > 0 {
		return t, fieldErrors
	}
	return t, nil
}

// collectValidationErrors maps core validation sentinels onto field names.
func collectValidationErrors(t core.Transaction, fieldErrors map[string]string) {
	switch err := t.Validate(); {
	case err == nil:
	case errors.Is(err, core.ErrEmptyLocation), errors.Is(err, core.ErrLocationTooLong):
		fieldErrors["location"] = err.Error()
	case errors.Is(err, core.ErrEmptyCategory), errors.Is(err, core.ErrCategoryTooLong):
		fieldErrors["category"] = err.Error()
	case errors.Is(err, core.ErrDetailsTooLong):
		fieldErrors["details"] = err.Error()
	default:
		fieldErrors["transaction"] = err.Error()
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
