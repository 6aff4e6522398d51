package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func issueCookie(t *testing.T, m *SessionManager, userID int64) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	if err := m.Issue(rr, userID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("no session cookie set")
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", time.Hour)
	cookie := issueCookie(t, m, 42)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	id, ok := m.UserID(req)
	if !ok {
		t.Fatalf("expected session to be readable")
	}
	if id != 42 {
		t.Fatalf("expected user id 42, got %d", id)
	}
}

func TestSessionMissingCookie(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := m.UserID(req); ok {
		t.Fatalf("expected no session without cookie")
	}
}

func TestSessionTamperedToken(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", time.Hour)
	cookie := issueCookie(t, m, 42)
	cookie.Value += "x"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if _, ok := m.UserID(req); ok {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestSessionWrongSecret(t *testing.T) {
	issuer := NewSessionManager("0123456789abcdef", time.Hour)
	verifier := NewSessionManager("fedcba9876543210", time.Hour)
	cookie := issueCookie(t, issuer, 42)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if _, ok := verifier.UserID(req); ok {
		t.Fatalf("expected token signed with other secret to be rejected")
	}
}

func TestSessionExpired(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", -time.Minute)
	cookie := issueCookie(t, m, 42)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if _, ok := m.UserID(req); ok {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestSessionClear(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", time.Hour)

	// Clearing with no session present must not fail
	rr := httptest.NewRecorder()
	m.Clear(rr)

	var cleared *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			cleared = c
		}
	}
	if cleared == nil {
		t.Fatalf("expected clearing cookie to be set")
	}
	if cleared.MaxAge >= 0 {
		t.Fatalf("expected negative MaxAge, got %d", cleared.MaxAge)
	}
	if cleared.Value != "" {
		t.Fatalf("expected empty cookie value")
	}
}
