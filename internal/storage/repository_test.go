package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetapp/internal/core"

	"github.com/google/uuid"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func saveTransaction(t *testing.T, repo *SQLiteRepository, userID int64, location string, createdAt time.Time) core.Transaction {
	t.Helper()
	tr := core.Transaction{
		ID:        uuid.NewString(),
		Location:  location,
		Amount:    10,
		Category:  "Food",
		CreatedAt: createdAt,
	}
	if err := repo.CreateTransaction(context.Background(), userID, tr); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tr
}

func TestCreateUserDuplicate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.CreateUser(ctx, "alice", "hash-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err = repo.CreateUser(ctx, "alice", "hash-2")
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}

	// The original record must be untouched
	got, err := repo.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != first.ID || got.PasswordHash != "hash-1" {
		t.Fatalf("existing user changed by failed registration: %+v", got)
	}
}

func TestGetUserNotFound(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.GetUserByUsername(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetUserByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTransactionAtomic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	tr := saveTransaction(t, repo, user.ID, "Cafe", time.Now())

	owns, err := repo.UserOwnsTransaction(ctx, user.ID, tr.ID)
	if err != nil {
		t.Fatalf("ownership check: %v", err)
	}
	if !owns {
		t.Fatalf("expected ownership link created with transaction")
	}

	got, err := repo.GetTransaction(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.Location != "Cafe" || got.Amount != 10 || got.Category != "Food" {
		t.Fatalf("unexpected transaction: %+v", got)
	}
}

func TestCreateTransactionDuplicateIDRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	tr := saveTransaction(t, repo, user.ID, "Cafe", time.Now())

	// Same id again must fail and leave exactly one row and one link
	dup := tr
	if err := repo.CreateTransaction(ctx, user.ID, dup); err == nil {
		t.Fatalf("expected error on duplicate transaction id")
	}

	list, err := repo.ListTransactionsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 transaction after failed insert, got %d", len(list))
	}
}

func TestListTransactionsNewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	old := saveTransaction(t, repo, user.ID, "Old", base)
	mid := saveTransaction(t, repo, user.ID, "Mid", base.Add(10*time.Minute))
	newest := saveTransaction(t, repo, user.ID, "New", base.Add(20*time.Minute))

	list, err := repo.ListTransactionsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(list))
	}
	if list[0].ID != newest.ID || list[1].ID != mid.ID || list[2].ID != old.ID {
		t.Fatalf("expected newest-first order, got %s %s %s",
			list[0].Location, list[1].Location, list[2].Location)
	}
}

func TestListTransactionsIsolatedPerUser(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	alice, _ := repo.CreateUser(ctx, "alice", "hash")
	bob, _ := repo.CreateUser(ctx, "bob", "hash")

	aliceTx := saveTransaction(t, repo, alice.ID, "Cafe", time.Now())
	saveTransaction(t, repo, bob.ID, "Market", time.Now())

	list, err := repo.ListTransactionsForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != aliceTx.ID {
		t.Fatalf("expected only alice's transaction, got %+v", list)
	}

	owns, err := repo.UserOwnsTransaction(ctx, bob.ID, aliceTx.ID)
	if err != nil {
		t.Fatalf("ownership check: %v", err)
	}
	if owns {
		t.Fatalf("bob must not own alice's transaction")
	}
}

func TestUpdateTransaction(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user, _ := repo.CreateUser(ctx, "alice", "hash")
	tr := saveTransaction(t, repo, user.ID, "Cafe", time.Now())

	if err := repo.MarkSynced(ctx, tr.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	tr.Location = "Market"
	tr.Amount = 42
	tr.Details = "weekly shop"
	if err := repo.UpdateTransaction(ctx, tr); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetTransaction(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Location != "Market" || got.Amount != 42 || got.Details != "weekly shop" {
		t.Fatalf("unexpected fields after update: %+v", got)
	}

	// Update resets the sync state so the row is exported again
	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != tr.ID {
		t.Fatalf("expected row back in the pending queue, got %+v", pending)
	}
}

func TestUpdateTransactionNotFound(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.UpdateTransaction(context.Background(), core.Transaction{ID: "missing", Location: "x", Amount: 1, Category: "y"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTransaction(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user, _ := repo.CreateUser(ctx, "alice", "hash")
	tr := saveTransaction(t, repo, user.ID, "Cafe", time.Now())

	if err := repo.DeleteTransaction(ctx, tr.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if owns, _ := repo.UserOwnsTransaction(ctx, user.ID, tr.ID); owns {
		t.Fatalf("expected ownership link removed")
	}

	if err := repo.DeleteTransaction(ctx, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user, _ := repo.CreateUser(ctx, "alice", "hash")
	base := time.Now().Add(-time.Hour)
	first := saveTransaction(t, repo, user.ID, "First", base)
	second := saveTransaction(t, repo, user.ID, "Second", base.Add(time.Minute))

	// Oldest first, both pending
	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("unexpected pending queue: %+v", pending)
	}

	if err := repo.MarkSynced(ctx, first.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, second.ID); err != nil {
		t.Fatalf("mark sync error: %v", err)
	}

	// Synced and errored rows both leave the queue
	pending, err = repo.GetPendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending queue, got %+v", pending)
	}
}

func TestPendingSyncLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user, _ := repo.CreateUser(ctx, "alice", "hash")
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		saveTransaction(t, repo, user.ID, "Row", base.Add(time.Duration(i)*time.Minute))
	}

	pending, err := repo.GetPendingSyncTransactions(ctx, 3)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(pending))
	}
}

func TestOwnerUsername(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user, _ := repo.CreateUser(ctx, "alice", "hash")
	tr := saveTransaction(t, repo, user.ID, "Cafe", time.Now())

	name, err := repo.OwnerUsername(ctx, tr.ID)
	if err != nil {
		t.Fatalf("owner username: %v", err)
	}
	if name != "alice" {
		t.Fatalf("expected alice, got %q", name)
	}

	if _, err := repo.OwnerUsername(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
