package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"budgetapp/internal/storage"
)

// handleHome shows the profile of the logged-in user, or the landing page.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	flash := popFlash(w, r)

	userID, ok := s.sessions.UserID(r)
	if !ok {
		s.render(w, r, "homepage.html", struct{ Flash string }{Flash: flash})
		return
	}

	user, err := s.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		// Stale session pointing at a user that no longer exists
		if errors.Is(err, storage.ErrNotFound) {
			s.sessions.Clear(w)
			s.render(w, r, "homepage.html", struct{ Flash string }{Flash: flash})
			return
		}
		slog.ErrorContext(r.Context(), "Failed to load user for homepage", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "profile.html", struct {
		Flash    string
		UserID   int64
		Username string
	}{Flash: flash, UserID: user.ID, Username: user.Username})
}

type credentialsPage struct {
	Flash    string
	Username string
	Error    string
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", credentialsPage{Flash: popFlash(w, r)})
}

// handleRegister creates the account, opens a session and lands the user on
// their transactions page.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")

	user, err := s.users.Register(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateUsername) {
			setFlash(w, "Username already exists!")
			http.Redirect(w, r, "/register", http.StatusSeeOther)
			return
		}
		s.render(w, r, "register.html", credentialsPage{Username: username, Error: err.Error()})
		return
	}

	if err := s.sessions.Issue(w, user.ID); err != nil {
		slog.ErrorContext(r.Context(), "Failed to issue session", "user_id", user.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	setFlash(w, fmt.Sprintf("Welcome, %s!", user.Username))
	http.Redirect(w, r, fmt.Sprintf("/users/%d/transactions", user.ID), http.StatusSeeOther)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", credentialsPage{Flash: popFlash(w, r)})
}

// handleLogin checks credentials and opens a session. Unknown username and
// wrong password produce the same combined error.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")

	user, err := s.users.Authenticate(r.Context(), username, password)
	if err != nil {
		slog.ErrorContext(r.Context(), "Authentication failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		s.renderStatus(w, r, http.StatusUnauthorized, "login.html", credentialsPage{
			Username: username,
			Error:    "Bad password or Incorrect Username",
		})
		return
	}

	if err := s.sessions.Issue(w, user.ID); err != nil {
		slog.ErrorContext(r.Context(), "Failed to issue session", "user_id", user.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	setFlash(w, fmt.Sprintf("Welcome Back, %s!", user.Username))
	http.Redirect(w, r, fmt.Sprintf("/users/%d/transactions", user.ID), http.StatusSeeOther)
}

// handleLogout clears the session. Logging out without one still succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	setFlash(w, "Successfully logged out!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
