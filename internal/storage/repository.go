package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"wealthwise/internal/ledger"
	"wealthwise/internal/lock"
)

// Dialect selects SQL flavour and locking strategy.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

func (d Dialect) dsn(raw string) string {
	if d != DialectSQLite || strings.HasPrefix(raw, "file:") {
		return raw
	}
	return "file:" + raw + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate&_time_format=sqlite"
}

// rebind rewrites ? placeholders to $n for PostgreSQL. Queries in this
// package never contain a literal question mark.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is the SQL-backed ledger.Store.
type Repository struct {
	queries
	db    *sql.DB
	locks *lock.KeyedMutex
}

var _ ledger.Store = (*Repository)(nil)

// NewSQLiteRepository opens (creating if needed) a SQLite database and
// migrates it. SQLite allows a single writer, so the pool holds one
// connection and transactions queue on it.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DialectSQLite, dbPath, func(db *sql.DB) {
		db.SetMaxOpenConns(1)
	})
}

// NewPostgresRepository connects to PostgreSQL and migrates it.
func NewPostgresRepository(dsn string) (*Repository, error) {
	return open(DialectPostgres, dsn, func(db *sql.DB) {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	})
}

func open(dialect Dialect, dsn string, tune func(*sql.DB)) (*Repository, error) {
	db, err := sql.Open(dialect.driverName(), dialect.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	tune(db)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		queries: queries{db: db, dialect: dialect},
		db:      db,
		locks:   lock.NewKeyedMutex(),
	}, nil
}

func (r *Repository) Dialect() Dialect {
	return r.dialect
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InTx implements ledger.Transactor. Locks taken through the transaction are
// released only after commit or rollback.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := &repoTx{queries: queries{db: sqlTx, dialect: r.dialect}, sqlTx: sqlTx, locks: r.locks}
	defer tx.releaseLocks()
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type repoTx struct {
	queries
	sqlTx    *sql.Tx
	locks    *lock.KeyedMutex
	releases []func()
}

// LockUser serializes transactions per (user, namespace). PostgreSQL uses a
// transaction-scoped advisory lock so separate processes agree; SQLite runs
// in a single process and uses the in-memory keyed mutex.
func (tx *repoTx) LockUser(ctx context.Context, userID int64, namespace string) error {
	if tx.dialect == DialectPostgres {
		_, err := tx.sqlTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1::int8)",
			advisoryKey(namespace, userID))
		if err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		return nil
	}

	unlock, err := tx.locks.Lock(ctx, lock.UserKey(userID, namespace))
	if err != nil {
		return err
	}
	tx.releases = append(tx.releases, unlock)
	return nil
}

func (tx *repoTx) releaseLocks() {
	for i := len(tx.releases) - 1; i >= 0; i-- {
		tx.releases[i]()
	}
}

// advisoryKey folds the namespace and the full user id into the single
// bigint key space of pg_advisory_xact_lock.
func advisoryKey(namespace string, userID int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(namespace))
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], uint64(userID))
	h.Write(id[:])
	return int64(h.Sum64())
}
