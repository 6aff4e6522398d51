package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetapp/internal/core"
	"budgetapp/internal/storage"

	"github.com/google/uuid"
)

// LedgerPublisher publishes export events for the sync worker. A nil
// publisher degrades to local-only operation.
type LedgerPublisher interface {
	PublishTransactionSync(ctx context.Context, id string, version int64) error
	PublishTransactionDelete(ctx context.Context, id, location string, amount int64, category string) error
}

// TransactionService orchestrates transaction writes across SQLite and AMQP
type TransactionService struct {
	storage   *storage.SQLiteRepository
	publisher LedgerPublisher
}

func NewTransactionService(storage *storage.SQLiteRepository, publisher LedgerPublisher) *TransactionService {
	return &TransactionService{
		storage:   storage,
		publisher: publisher,
	}
}

// CreateTransaction assigns a random id, saves the transaction together
// with its ownership link, and publishes a sync message.
func (s *TransactionService) CreateTransaction(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()

	if err := s.storage.CreateTransaction(ctx, userID, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	// Publish async sync message (non-blocking, version 1 for a new row)
	if err := s.publishSyncMessage(ctx, t.ID, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", t.ID, "error", err)
		// Don't fail the request - the transaction is saved locally
	}

	return t, nil
}

// UpdateTransaction overwrites all four mutable fields unconditionally and
// queues the row for re-export.
func (s *TransactionService) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if err := s.storage.UpdateTransaction(ctx, t); err != nil {
		return err
	}

	if err := s.publishSyncMessage(ctx, t.ID, 2); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", t.ID, "error", err)
	}

	return nil
}

// DeleteTransaction removes the transaction permanently and publishes a
// delete message carrying the exported fields.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) error {
	// Fetch first: the delete message needs the field values
	t, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	if err := s.publishDeleteMessage(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", id, "error", err)
		// Don't fail the request - the transaction is deleted locally
	}

	return nil
}

func (s *TransactionService) publishSyncMessage(ctx context.Context, id string, version int64) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Ledger publisher not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishTransactionSync(ctx, id, version)
}

func (s *TransactionService) publishDeleteMessage(ctx context.Context, t *core.Transaction) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Ledger publisher not available, skipping delete message")
		return nil
	}
	return s.publisher.PublishTransactionDelete(ctx, t.ID, t.Location, t.Amount, t.Category)
}
