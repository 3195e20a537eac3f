package ledger

import (
	"context"

	"creditledger/internal/core"
)

// Ports for credit persistence.
type (
	// Reader answers the read-side queries.
	Reader interface {
		// List returns every credit ordered by date desc, then id desc.
		List(ctx context.Context) ([]core.Credit, error)
		// ListByMonth returns the credits of one calendar month, same ordering as List.
		ListByMonth(ctx context.Context, q core.MonthQuery) ([]core.Credit, error)
		// Get returns core.ErrNotFound when no credit has the id.
		Get(ctx context.Context, id int64) (core.Credit, error)
	}

	// Writer mutates credits. Each call is a single atomic store operation.
	Writer interface {
		// Create assigns a fresh id and createdAt.
		Create(ctx context.Context, in core.CreditInput) (core.Credit, error)
		// Update applies the non-nil patch fields and returns core.ErrNotFound for unknown ids.
		Update(ctx context.Context, id int64, p core.CreditPatch) (core.Credit, error)
		// Delete reports whether a credit existed and was removed.
		Delete(ctx context.Context, id int64) (bool, error)
	}

	// Store is the full Record Store contract every backend implements.
	Store interface {
		Reader
		Writer
		Ping(ctx context.Context) error
		Close() error
	}
)
