package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/ledger"
	"wealthwise/internal/lock"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createUser(t *testing.T, repo *Repository) core.UserProfile {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.UserProfile{
		Name:           "Ana",
		Email:          "ana@example.com",
		FixedIncome:    core.Money{Cents: 300000},
		FixedExpenses:  core.Money{Cents: 120000},
		PaydayDay:      15,
		InitialBalance: core.Money{Cents: 50000},
		CreatedAt:      time.Date(2024, 1, 20, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return u
}

func systemCategory(t *testing.T, repo *Repository, name string, kind core.Kind) core.Category {
	t.Helper()
	catalog, err := repo.SystemCategories(context.Background())
	require.NoError(t, err)
	c, ok := catalog.Lookup(name, kind)
	require.True(t, ok, "missing system category %s/%s", name, kind)
	return c
}

func TestRebind(t *testing.T) {
	q := "SELECT 1 FROM entries WHERE user_id = ? AND kind = ? LIMIT ?"
	assert.Equal(t, q, DialectSQLite.rebind(q))
	assert.Equal(t, "SELECT 1 FROM entries WHERE user_id = $1 AND kind = $2 LIMIT $3", DialectPostgres.rebind(q))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Contains(t, DialectSQLite.dsn("/tmp/x.db"), "file:/tmp/x.db?")
	assert.Equal(t, "file:custom.db", DialectSQLite.dsn("file:custom.db"))
	assert.Equal(t, "postgres://localhost/db", DialectPostgres.dsn("postgres://localhost/db"))
}

func TestRepository_SeedsSystemCatalog(t *testing.T) {
	repo := newTestRepo(t)
	catalog, err := repo.SystemCategories(context.Background())
	require.NoError(t, err)

	for _, key := range []core.CategoryKey{
		{Name: core.CategoryInitialAdjustment, Kind: core.KindIncome},
		{Name: core.CategorySalary, Kind: core.KindIncome},
		{Name: core.CategoryFixedExpenses, Kind: core.KindExpense},
		{Name: core.CategoryPreviousBalance, Kind: core.KindIncome},
		{Name: core.CategoryPreviousBalance, Kind: core.KindExpense},
	} {
		c, ok := catalog.Lookup(key.Name, key.Kind)
		assert.True(t, ok, "%s/%s", key.Name, key.Kind)
		assert.True(t, c.IsSystem)
	}
}

func TestRepository_Users(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, repo)

	got, err := repo.GetUserProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.Email)
	assert.Equal(t, int64(50000), got.InitialBalance.Cents)
	assert.True(t, got.CreatedAt.Equal(u.CreatedAt))

	_, err = repo.CreateUser(ctx, core.UserProfile{Name: "Dup", Email: "ANA@example.com", PaydayDay: 1})
	assert.ErrorIs(t, err, core.ErrDuplicateEmail)

	assert.True(t, got.SavingsGoal.IsZero())

	got.PaydayDay = 30
	got.SavingsGoal = core.Money{Cents: 80000}
	updated, err := repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, 30, updated.PaydayDay)
	reloaded, err := repo.GetUserProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(80000), reloaded.SavingsGoal.Cents)

	_, err = repo.GetUserProfile(ctx, 999)
	assert.ErrorIs(t, err, core.ErrUserNotFound)

	ids, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{u.ID}, ids)
}

func TestRepository_UserCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, repo)

	c, err := repo.CreateCategory(ctx, core.Category{Name: "Books", Kind: core.KindExpense, UserID: u.ID})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)

	_, err = repo.CreateCategory(ctx, core.Category{Name: "Books", Kind: core.KindExpense, UserID: u.ID})
	assert.ErrorIs(t, err, core.ErrDuplicateCategory)

	list, err := repo.ListCategories(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, len(core.DefaultSystemCategories())+1)

	got, err := repo.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)
	assert.False(t, got.IsSystem)

	_, err = repo.GetCategory(ctx, 4242)
	assert.ErrorIs(t, err, core.ErrCategoryNotFound)
}

func TestRepository_EntriesAndFingerprints(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, repo)
	salary := systemCategory(t, repo, core.CategorySalary, core.KindIncome)
	food := systemCategory(t, repo, "Food", core.KindExpense)

	inserted, err := repo.InsertEntry(ctx, core.Entry{
		UserID: u.ID, CategoryID: salary.ID, Kind: core.KindIncome,
		Amount: core.Money{Cents: 300000}, Date: core.NewDate(2024, 2, 15),
		Description: "Monthly salary",
	})
	require.NoError(t, err)

	got, err := repo.GetEntry(ctx, u.ID, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-15", got.Date.String())
	assert.Equal(t, core.CategorySalary, got.CategoryName)
	assert.Equal(t, core.KindIncome, got.Kind)

	_, err = repo.GetEntry(ctx, u.ID+1, inserted.ID)
	assert.ErrorIs(t, err, core.ErrEntryNotFound)

	amount := core.Money{Cents: 300000}
	found, err := repo.FindEntry(ctx, ledger.EntryFilter{
		UserID: u.ID, CategoryID: salary.ID, Date: core.NewDate(2024, 2, 15), Amount: &amount,
	})
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.FindEntry(ctx, ledger.EntryFilter{
		UserID: u.ID, CategoryID: salary.ID, Cycle: cycle.New(2024, time.March),
	})
	require.NoError(t, err)
	assert.False(t, found)

	got.CategoryID = food.ID
	got.Kind = core.KindExpense
	got.Amount = core.Money{Cents: 1250}
	got.Description = ""
	updated, err := repo.UpdateEntry(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Food", updated.CategoryName)
	assert.Empty(t, updated.Description)

	require.NoError(t, repo.DeleteEntry(ctx, u.ID, got.ID))
	assert.ErrorIs(t, repo.DeleteEntry(ctx, u.ID, got.ID), core.ErrEntryNotFound)
}

func TestRepository_SumsAndAnalytics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, repo)
	salary := systemCategory(t, repo, core.CategorySalary, core.KindIncome)
	food := systemCategory(t, repo, "Food", core.KindExpense)

	for _, e := range []core.Entry{
		{CategoryID: food.ID, Kind: core.KindExpense, Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 2, 1), Description: "Groceries"},
		{CategoryID: food.ID, Kind: core.KindExpense, Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, 2, 29), Description: "Lunch"},
		{CategoryID: food.ID, Kind: core.KindExpense, Amount: core.Money{Cents: 700}, Date: core.NewDate(2024, 3, 1)},
		{CategoryID: salary.ID, Kind: core.KindIncome, Amount: core.Money{Cents: 300000}, Date: core.NewDate(2024, 2, 15)},
	} {
		e.UserID = u.ID
		_, err := repo.InsertEntry(ctx, e)
		require.NoError(t, err)
	}

	feb := cycle.New(2024, time.February)
	sum, err := repo.SumEntries(ctx, u.ID, core.KindExpense, feb)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), sum.Cents)

	empty, err := repo.SumEntries(ctx, u.ID, core.KindIncome, cycle.New(2023, time.December))
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	total, err := repo.TotalByKind(ctx, u.ID, core.KindExpense)
	require.NoError(t, err)
	assert.Equal(t, int64(2200), total.Cents)

	byCat, err := repo.SumByCategory(ctx, u.ID, feb)
	require.NoError(t, err)
	require.Len(t, byCat, 2)
	assert.Equal(t, core.CategorySalary, byCat[0].Name)
	assert.Equal(t, int64(1500), byCat[1].Total.Cents)

	monthly, err := repo.MonthlyTotals(ctx, u.ID, cycle.New(2024, time.January), cycle.New(2024, time.March))
	require.NoError(t, err)
	require.Len(t, monthly, 3)
	assert.Equal(t, core.MonthlyTotal{Cycle: "2024-01"}, monthly[0])
	assert.Equal(t, int64(300000), monthly[1].Income.Cents)
	assert.Equal(t, int64(1500), monthly[1].Expense.Cents)
	assert.Equal(t, int64(700), monthly[2].Expense.Cents)

	list, err := repo.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID, DescriptionLike: "%LUN%"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Lunch", list[0].Description)

	limited, err := repo.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "2024-03-01", limited[0].Date.String())
	assert.Equal(t, "2024-02-29", limited[1].Date.String())
}

func TestRepository_InTxRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, repo)
	food := systemCategory(t, repo, "Food", core.KindExpense)

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.InsertEntry(ctx, core.Entry{
			UserID: u.ID, CategoryID: food.ID, Kind: core.KindExpense,
			Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 2, 1),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := repo.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, repo.locks.Len())
}

// Concurrent guarded check-then-insert must produce exactly one row.
func TestRepository_WithUserLockInsertsOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, repo)
	salary := systemCategory(t, repo, core.CategorySalary, core.KindIncome)
	amount := core.Money{Cents: 300000}
	date := core.NewDate(2024, 2, 15)

	var inserts int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lock.WithUserLock(ctx, repo, u.ID, "ledger-reconcile", func(ctx context.Context, tx ledger.Tx) error {
				found, err := tx.FindEntry(ctx, ledger.EntryFilter{
					UserID: u.ID, CategoryID: salary.ID, Date: date, Amount: &amount,
				})
				if err != nil || found {
					return err
				}
				atomic.AddInt32(&inserts, 1)
				_, err = tx.InsertEntry(ctx, core.Entry{
					UserID: u.ID, CategoryID: salary.ID, Kind: core.KindIncome, Amount: amount, Date: date,
				})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&inserts))
	list, err := repo.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAdvisoryKey(t *testing.T) {
	assert.Equal(t, advisoryKey("ledger-reconcile", 7), advisoryKey("ledger-reconcile", 7))
	assert.NotEqual(t, advisoryKey("ledger-reconcile", 7), advisoryKey("other", 7))

	// Ids that agree in their low 32 bits still get distinct keys.
	low := int64(42)
	high := low + 1<<32
	assert.NotEqual(t, advisoryKey("ledger-reconcile", low), advisoryKey("ledger-reconcile", high))
}
