package export

import (
	"context"
	"time"
)

// LedgerRow is one exported transaction as it appears in the ledger sheet.
type LedgerRow struct {
	ID        string
	Location  string
	Amount    int64
	Category  string
	Details   string
	Owner     string
	CreatedAt time.Time
}

// Ports for outbound adapters.
type (
	LedgerAppender interface {
		Append(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerRemover clears a previously exported row by transaction id.
	LedgerRemover interface {
		Remove(ctx context.Context, id string) error
	}
)
