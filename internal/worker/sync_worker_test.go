package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetapp/internal/amqp"
	"budgetapp/internal/core"
	"budgetapp/internal/export"
	"budgetapp/internal/storage"

	"github.com/google/uuid"
)

type fakeLedger struct {
	rows    []export.LedgerRow
	removed []string
	fail    bool
}

func (f *fakeLedger) Append(ctx context.Context, row export.LedgerRow) (string, error) {
	if f.fail {
		return "", errors.New("sheets unavailable")
	}
	f.rows = append(f.rows, row)
	return "Ledger!A2:G2", nil
}

func (f *fakeLedger) Remove(ctx context.Context, id string) error {
	if f.fail {
		return errors.New("sheets unavailable")
	}
	f.removed = append(f.removed, id)
	return nil
}

func newTestWorker(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *fakeLedger) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ledger := &fakeLedger{}
	return NewSyncWorker(repo, ledger, ledger, 10), repo, ledger
}

func saveTransaction(t *testing.T, repo *storage.SQLiteRepository) (int64, core.Transaction) {
	t.Helper()
	ctx := context.Background()
	user, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	tr := core.Transaction{
		ID:        uuid.NewString(),
		Location:  "Cafe",
		Amount:    12,
		Category:  "Food",
		Details:   "lunch",
		CreatedAt: time.Now(),
	}
	if err := repo.CreateTransaction(ctx, user.ID, tr); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return user.ID, tr
}

func TestHandleSyncMessage(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	_, tr := saveTransaction(t, repo)

	msg := amqp.NewTransactionSyncMessage(tr.ID, 1)
	if err := w.HandleSyncMessage(ctx, msg); err != nil {
		t.Fatalf("handle sync: %v", err)
	}

	if len(ledger.rows) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(ledger.rows))
	}
	row := ledger.rows[0]
	if row.ID != tr.ID || row.Location != "Cafe" || row.Amount != 12 || row.Owner != "alice" {
		t.Fatalf("unexpected exported row: %+v", row)
	}

	// The row must leave the pending queue
	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending queue after sync, got %+v", pending)
	}
}

func TestHandleSyncMessageMissingTransaction(t *testing.T) {
	w, _, ledger := newTestWorker(t)

	// A row deleted before its sync message arrives is not an error
	msg := amqp.NewTransactionSyncMessage("gone", 1)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected missing transaction to be skipped, got %v", err)
	}
	if len(ledger.rows) != 0 {
		t.Fatalf("expected no exported rows, got %d", len(ledger.rows))
	}
}

func TestHandleSyncMessageLedgerFailure(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	_, tr := saveTransaction(t, repo)
	ledger.fail = true

	msg := amqp.NewTransactionSyncMessage(tr.ID, 1)
	if err := w.HandleSyncMessage(ctx, msg); err == nil {
		t.Fatalf("expected error from ledger failure")
	}

	// A failed export marks the row so periodic scans stop retrying it
	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected row out of the pending queue after sync error, got %+v", pending)
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	w, _, ledger := newTestWorker(t)

	msg := amqp.NewTransactionDeleteMessage("tx-1", "Cafe", 12, "Food")
	if err := w.HandleDeleteMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle delete: %v", err)
	}
	if len(ledger.removed) != 1 || ledger.removed[0] != "tx-1" {
		t.Fatalf("expected tx-1 removed from ledger, got %v", ledger.removed)
	}
}

func TestHandleDeleteMessageNoRemover(t *testing.T) {
	_, repo, _ := newTestWorker(t)
	w := NewSyncWorker(repo, &fakeLedger{}, nil, 10)

	msg := amqp.NewTransactionDeleteMessage("tx-1", "Cafe", 12, "Food")
	if err := w.HandleDeleteMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected nil remover to be a no-op, got %v", err)
	}
}

func TestProcessPendingTransactions(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	_, tr := saveTransaction(t, repo)

	if err := w.ProcessPendingTransactions(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(ledger.rows) != 1 || ledger.rows[0].ID != tr.ID {
		t.Fatalf("expected pending row exported, got %+v", ledger.rows)
	}

	// Second pass finds nothing to do
	if err := w.ProcessPendingTransactions(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("expected no duplicate export, got %d rows", len(ledger.rows))
	}
}

func TestStartupSyncCheck(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	saveTransaction(t, repo)

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("expected 1 exported row after startup check, got %d", len(ledger.rows))
	}
}
