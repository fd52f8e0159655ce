package forecast

import (
	"context"
	"time"

	"undertow/internal/core"
)

// Source supplies the four read-only record snapshots a month build needs.
// The engine fetches each collection once per build and never writes back.
// Implementations return (nil, nil) for the single-record getters when the
// user has no such record.
type Source interface {
	ListRecurring(ctx context.Context, userID int64) ([]core.RecurringDefinition, error)
	GetPaycheckStream(ctx context.Context, userID int64) (*core.PaycheckStream, error)
	GetStartingBalance(ctx context.Context, userID int64) (*core.StartingBalance, error)
	ListTransactions(ctx context.Context, userID int64, from, to time.Time) ([]core.Transaction, error)
}
