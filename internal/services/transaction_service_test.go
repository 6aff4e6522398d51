package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"budgetapp/internal/core"
	"budgetapp/internal/storage"
)

type fakePublisher struct {
	syncIDs   []string
	deleteIDs []string
	fail      bool
}

func (f *fakePublisher) PublishTransactionSync(ctx context.Context, id string, version int64) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.syncIDs = append(f.syncIDs, id)
	return nil
}

func (f *fakePublisher) PublishTransactionDelete(ctx context.Context, id, location string, amount int64, category string) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.deleteIDs = append(f.deleteIDs, id)
	return nil
}

func newTestService(t *testing.T) (*TransactionService, *storage.SQLiteRepository, *fakePublisher) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	pub := &fakePublisher{}
	return NewTransactionService(repo, pub), repo, pub
}

func newTestUser(t *testing.T, repo *storage.SQLiteRepository) *core.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestCreateTransaction(t *testing.T) {
	svc, repo, pub := newTestService(t)
	user := newTestUser(t, repo)
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, user.ID, core.Transaction{
		Location: "Cafe",
		Amount:   12,
		Category: "Food",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	// Exactly one transaction and one ownership link
	list, err := repo.ListTransactionsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("expected the created transaction in the list, got %+v", list)
	}
	owns, err := repo.UserOwnsTransaction(ctx, user.ID, created.ID)
	if err != nil || !owns {
		t.Fatalf("expected ownership link (owns=%v, err=%v)", owns, err)
	}

	if len(pub.syncIDs) != 1 || pub.syncIDs[0] != created.ID {
		t.Fatalf("expected one sync message for %s, got %v", created.ID, pub.syncIDs)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	user := newTestUser(t, repo)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, user.ID, core.Transaction{
		Location: "",
		Amount:   12,
		Category: "Food",
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}

	// Validation failure must leave the store unchanged
	list, err := repo.ListTransactionsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no rows after validation failure, got %d", len(list))
	}
}

func TestCreateTransactionPublisherFailureDoesNotFail(t *testing.T) {
	svc, repo, pub := newTestService(t)
	user := newTestUser(t, repo)
	pub.fail = true

	created, err := svc.CreateTransaction(context.Background(), user.ID, core.Transaction{
		Location: "Cafe",
		Amount:   12,
		Category: "Food",
	})
	if err != nil {
		t.Fatalf("create must succeed despite publish failure: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestUpdateTransactionOverwritesAllFields(t *testing.T) {
	svc, repo, _ := newTestService(t)
	user := newTestUser(t, repo)
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, user.ID, core.Transaction{
		Location: "Cafe",
		Amount:   12,
		Category: "Food",
		Details:  "lunch",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Every field is rewritten, even the unchanged ones
	updated := created
	updated.Location = "Market"
	updated.Amount = 30
	if err := svc.UpdateTransaction(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Location != "Market" || got.Amount != 30 || got.Category != "Food" || got.Details != "lunch" {
		t.Fatalf("unexpected fields after update: %+v", got)
	}
}

func TestUpdateTransactionNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.UpdateTransaction(context.Background(), core.Transaction{
		ID:       "missing",
		Location: "Cafe",
		Amount:   1,
		Category: "Food",
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTransaction(t *testing.T) {
	svc, repo, pub := newTestService(t)
	user := newTestUser(t, repo)
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, user.ID, core.Transaction{
		Location: "Cafe",
		Amount:   12,
		Category: "Food",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.GetTransaction(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if owns, _ := repo.UserOwnsTransaction(ctx, user.ID, created.ID); owns {
		t.Fatalf("expected ownership link to be removed")
	}
	if len(pub.deleteIDs) != 1 || pub.deleteIDs[0] != created.ID {
		t.Fatalf("expected one delete message, got %v", pub.deleteIDs)
	}
}

func TestDeleteTransactionNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.DeleteTransaction(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
