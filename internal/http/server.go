package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"budgetapp/internal/auth"
	applog "budgetapp/internal/log"
	"budgetapp/internal/services"
	"budgetapp/internal/storage"
	appweb "budgetapp/web"
)

// Server serves the HTML pages and the JSON API on one listener.
type Server struct {
	http.Server
	templates    *template.Template
	sessions     *auth.SessionManager
	users        *auth.Service
	transactions *services.TransactionService
	repo         *storage.SQLiteRepository
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, sessions *auth.SessionManager, users *auth.Service, transactions *services.TransactionService, repo *storage.SQLiteRepository) *Server {
	s := &Server{
		sessions:     sessions,
		users:        users,
		transactions: transactions,
		repo:         repo,
		rateLimiter:  newRateLimiter(),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	logCfg := applog.DefaultConfig()
	logCfg.Component = "http"
	r.Use(applog.Middleware(applog.New(logCfg)))
	r.Use(applog.RequestIDMiddleware(func(req *http.Request) string {
		return chimw.GetReqID(req.Context())
	}))
	r.Use(s.withSecurityHeaders)
	r.Use(s.withRequestLogging)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Get("/static/*", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, req)
		})
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	// HTML pages
	r.Get("/", s.handleHome)
	r.Get("/register", s.handleRegisterForm)
	r.With(s.withRateLimit).Post("/register", s.handleRegister)
	r.Get("/login", s.handleLoginForm)
	r.With(s.withRateLimit).Post("/login", s.handleLogin)
	r.Get("/logout", s.handleLogout)

	r.Route("/users/{userID}/transactions", func(r chi.Router) {
		r.Get("/", s.handleUserTransactions)
		r.Get("/new", s.handleNewTransactionForm)
		r.Post("/new", s.handleNewTransaction)
		r.Get("/{transactionID}", s.handleTransactionDetail)
		r.Post("/{transactionID}", s.handleTransactionSubmit)
	})

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Get("/{userID}/transactions", s.handleAPIListTransactions)
		r.Post("/{userID}/transactions", s.handleAPICreateTransaction)
		r.Get("/transactions/{transactionID}", s.handleAPITransactionDetail)
		r.Patch("/{userID}/transactions/{transactionID}", s.handleAPIUpdateTransaction)
		r.Post("/{userID}/transactions/{transactionID}", s.handleAPIUpdateTransaction)
		r.Post("/{userID}/transactions/{transactionID}/delete", s.handleAPIDeleteTransaction)
		r.Delete("/{userID}/transactions/{transactionID}/delete", s.handleAPIDeleteTransaction)
	})

	r.NotFound(s.handleNotFound)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds the standard response security headers.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// withRequestLogging logs request start and completion with the status code.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		slog.InfoContext(ctx, "Request started",
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP(r),
			"user_agent", r.Header.Get("User-Agent"))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// withRateLimit throttles credential-guessing endpoints per client IP.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.allow(ip) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", ip, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.repo != nil {
		if err := s.repo.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
