// Package ledger declares the storage ports the services depend on.
package ledger

import (
	"context"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
)

// EntryFilter selects entries. Zero-valued fields do not constrain.
type EntryFilter struct {
	UserID     int64
	CategoryID int64
	Kind       core.Kind
	Date       core.Date
	Amount     *core.Money
	Cycle      cycle.Key
	From, To   core.Date // [From, To)
	// DescriptionLike is a SQL LIKE pattern matched against the description.
	DescriptionLike string
	Limit           int
}

// Ports for outbound adapters.
type (
	// LedgerReader holds the reads the reconciliation engine needs.
	LedgerReader interface {
		// GetUserProfile returns core.ErrUserNotFound for unknown users.
		GetUserProfile(ctx context.Context, userID int64) (core.UserProfile, error)
		SystemCategories(ctx context.Context) (core.SystemCatalog, error)
		FindEntry(ctx context.Context, f EntryFilter) (bool, error)
		// SumEntries totals one kind of entry over a cycle.
		SumEntries(ctx context.Context, userID int64, kind core.Kind, c cycle.Key) (core.Money, error)
	}

	EntryWriter interface {
		InsertEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	}

	// Tx is the view of the store inside one transaction.
	Tx interface {
		LedgerReader
		EntryWriter
		// LockUser blocks until the (userID, namespace) lock is held. The
		// lock is released when the enclosing transaction ends.
		LockUser(ctx context.Context, userID int64, namespace string) error
	}

	// Transactor runs fn in a transaction: commit when fn returns nil,
	// rollback otherwise.
	Transactor interface {
		InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	}

	UserStore interface {
		CreateUser(ctx context.Context, p core.UserProfile) (core.UserProfile, error)
		UpdateUser(ctx context.Context, p core.UserProfile) (core.UserProfile, error)
		ListUserIDs(ctx context.Context) ([]int64, error)
	}

	CategoryStore interface {
		// ListCategories returns system categories plus the user's own.
		ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	}

	EntryStore interface {
		GetEntry(ctx context.Context, userID, id int64) (core.Entry, error)
		// ListEntries orders by date then id, newest first.
		ListEntries(ctx context.Context, f EntryFilter) ([]core.Entry, error)
		UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
		DeleteEntry(ctx context.Context, userID, id int64) error
	}

	AnalyticsReader interface {
		// SumByCategory groups a cycle's entries by category. A zero cycle
		// covers all time.
		SumByCategory(ctx context.Context, userID int64, c cycle.Key) ([]core.CategoryTotal, error)
		// MonthlyTotals returns one row per cycle in [from, to], including
		// cycles without entries.
		MonthlyTotals(ctx context.Context, userID int64, from, to cycle.Key) ([]core.MonthlyTotal, error)
		TotalByKind(ctx context.Context, userID int64, kind core.Kind) (core.Money, error)
	}

	// Store is the full ledger backend.
	Store interface {
		Transactor
		LedgerReader
		EntryWriter
		UserStore
		CategoryStore
		EntryStore
		AnalyticsReader
		Ping(ctx context.Context) error
		Close() error
	}
)
