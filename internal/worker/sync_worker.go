package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetapp/internal/amqp"
	"budgetapp/internal/export"
	"budgetapp/internal/storage"
)

// SyncWorker exports transactions from SQLite to the Google Sheets ledger.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	ledger    export.LedgerAppender
	remover   export.LedgerRemover
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, ledger export.LedgerAppender, remover export.LedgerRemover, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		ledger:    ledger,
		remover:   remover,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single transaction sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	if err := w.exportTransaction(ctx, msg.ID); err != nil {
		// The row may have been deleted before the message arrived
		if errors.Is(err, storage.ErrNotFound) {
			slog.WarnContext(ctx, "Transaction no longer exists, skipping export", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("export transaction: %w", err)
	}

	return nil
}

// HandleDeleteMessage processes a single transaction delete message from AMQP
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.TransactionDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "id", msg.ID)

	if w.remover == nil {
		slog.WarnContext(ctx, "No ledger remover configured, skipping row removal", "id", msg.ID)
		return nil
	}

	if err := w.remover.Remove(ctx, msg.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to remove ledger row",
			"id", msg.ID,
			"error", err,
			"timestamp", msg.Timestamp)
		return fmt.Errorf("remove ledger row: %w", err)
	}

	slog.InfoContext(ctx, "Ledger row removed", "id", msg.ID)
	return nil
}

// ProcessPendingTransactions exports any transactions that haven't been
// synced yet. This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingTransactions(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, p := range pending {
		if err := w.exportTransaction(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck exports any pending transactions at worker startup,
// recovering from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	// Larger batch for the startup pass
	pending, err := w.storage.GetPendingSyncTransactions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		if err := w.exportTransaction(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

// exportTransaction reads the full row plus its owner and appends it to the
// ledger, then flips the sync flags accordingly.
func (w *SyncWorker) exportTransaction(ctx context.Context, id string) error {
	t, err := w.storage.GetTransaction(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
			}
		}
		return err
	}

	owner, err := w.storage.OwnerUsername(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("resolve owner: %w", err)
	}

	row := export.LedgerRow{
		ID:        t.ID,
		Location:  t.Location,
		Amount:    t.Amount,
		Category:  t.Category,
		Details:   t.Details,
		Owner:     owner,
		CreatedAt: t.CreatedAt,
	}

	ref, err := w.ledger.Append(ctx, row)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
		// The export itself worked, don't fail the message
	}

	slog.InfoContext(ctx, "Transaction exported",
		"id", id,
		"ledger_ref", ref,
		"location", t.Location,
		"amount", t.Amount)

	return nil
}
