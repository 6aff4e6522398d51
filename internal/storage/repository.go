package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetapp/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateUsername is returned when registration hits the
	// username uniqueness constraint.
	ErrDuplicateUsername = errors.New("username already taken")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping verifies the database connection, used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser persists a new user. The username uniqueness constraint is
// enforced here; a violation surfaces as ErrDuplicateUsername.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (*core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user last insert id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", id, "username", username)

	return &core.User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// GetUserByUsername returns the user with the given username, or ErrNotFound.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user by username: %w", err)
	}
	return &u, nil
}

// GetUserByID returns the user with the given id, or ErrNotFound.
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user by id: %w", err)
	}
	return &u, nil
}

// CreateTransaction inserts the transaction row and its ownership link in
// one database transaction, so a transaction can never exist without an
// owning link.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID int64, t core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, location, amount, category, details, created_at, synced)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		t.ID, t.Location, t.Amount, t.Category, t.Details, t.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_transactions (user_id, transaction_id) VALUES (?, ?)`,
		userID, t.ID)
	if err != nil {
		return fmt.Errorf("insert ownership link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"user_id", userID,
		"location", t.Location,
		"amount", t.Amount)

	return nil
}

// GetTransaction returns a transaction by id, or ErrNotFound.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	var (
		t         core.Transaction
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, location, amount, category, details, created_at
		 FROM transactions WHERE id = ?`,
		id).Scan(&t.ID, &t.Location, &t.Amount, &t.Category, &t.Details, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select transaction: %w", err)
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	return &t, nil
}

// ListTransactionsForUser returns the transactions reachable through the
// user's ownership links, newest first.
func (r *SQLiteRepository) ListTransactionsForUser(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.location, t.amount, t.category, t.details, t.created_at
		 FROM transactions t
		 JOIN user_transactions ut ON ut.transaction_id = t.id
		 WHERE ut.user_id = ?
		 ORDER BY t.created_at DESC, t.rowid DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("select user transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t         core.Transaction
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.Location, &t.Amount, &t.Category, &t.Details, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// UserOwnsTransaction reports whether an ownership link exists between
// the user and the transaction.
func (r *SQLiteRepository) UserOwnsTransaction(ctx context.Context, userID int64, transactionID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM user_transactions WHERE user_id = ? AND transaction_id = ?`,
		userID, transactionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select ownership link: %w", err)
	}
	return true, nil
}

// UpdateTransaction rewrites all four mutable fields unconditionally and
// queues the row for re-export. Returns ErrNotFound for a missing id.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET location = ?, amount = ?, category = ?, details = ?, synced = 0, sync_error = 0
		 WHERE id = ?`,
		t.Location, t.Amount, t.Category, t.Details, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction updated", "id", t.ID)
	return nil
}

// DeleteTransaction removes the transaction and its ownership links in one
// database transaction. Deletion is permanent.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_transactions WHERE transaction_id = ?`, id); err != nil {
		return fmt.Errorf("delete ownership links: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// PendingSyncTransaction is the minimal data needed for export queue scans.
type PendingSyncTransaction struct {
	ID        string
	CreatedAt time.Time
}

// GetPendingSyncTransactions returns transactions that have not been
// exported to the ledger yet, oldest first.
func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at FROM transactions
		 WHERE synced = 0 AND sync_error = 0
		 ORDER BY created_at ASC
		 LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("select pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncTransaction
	for rows.Next() {
		var (
			p         PendingSyncTransaction
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending sync transaction: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending sync transactions: %w", err)
	}
	return out, nil
}

// MarkSynced marks a transaction as successfully exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET synced = 1, sync_error = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a transaction as having export errors so periodic
// scans stop retrying it.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_error = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

// OwnerUsername returns the username of the first owner of a transaction,
// used to label exported ledger rows.
func (r *SQLiteRepository) OwnerUsername(ctx context.Context, transactionID string) (string, error) {
	var username string
	err := r.db.QueryRowContext(ctx,
		`SELECT u.username FROM users u
		 JOIN user_transactions ut ON ut.user_id = u.id
		 WHERE ut.transaction_id = ?
		 ORDER BY u.id ASC LIMIT 1`,
		transactionID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select transaction owner: %w", err)
	}
	return username, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
