package backend

import (
	"context"

	"wealthwise/internal/ledger"
)

// BackendType names a ledger store implementation.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	}
	return false
}

// MultiInstance reports whether several processes may reconcile against the
// same store. Only PostgreSQL advisory locks are visible across processes;
// the SQLite and memory stores serialize users with an in-process mutex.
func (bt BackendType) MultiInstance() bool {
	return bt == PostgresBackend
}

// BackendResult is an opened ledger store. Cleanup closes it.
type BackendResult struct {
	Store   ledger.Store
	Type    BackendType
	Cleanup func() error
}

// Factory opens ledger stores.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
