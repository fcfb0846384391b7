package services

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/ledger"
	"wealthwise/internal/storage"
)

func newSQLiteLedger(t *testing.T) (*storage.Repository, core.UserProfile) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	u, err := repo.CreateUser(context.Background(), core.UserProfile{
		Name:           "Ana",
		Email:          "ana@example.com",
		FixedIncome:    core.Money{Cents: 300000},
		FixedExpenses:  core.Money{Cents: 120000},
		InitialBalance: core.Money{Cents: 50000},
		PaydayDay:      15,
		CreatedAt:      at(2024, time.January, 20),
	})
	require.NoError(t, err)
	return repo, u
}

func categoriesOf(entries []core.Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.CategoryName + "/" + string(e.Kind) + "@" + e.Date.String()
	}
	sort.Strings(names)
	return names
}

func TestReconcile_SQLiteLedger(t *testing.T) {
	repo, u := newSQLiteLedger(t)
	r := NewReconciler(repo)
	ctx := context.Background()

	steps := []struct {
		name string
		now  time.Time
		want []string
	}{
		{
			name: "signup after payday books opening balance",
			now:  at(2024, time.January, 25),
			want: []string{core.CategoryInitialAdjustment + "/income@2024-01-25"},
		},
		{
			name: "same cycle again",
			now:  at(2024, time.January, 31),
		},
		{
			name: "before first payday",
			now:  at(2024, time.February, 14),
		},
		{
			name: "first payday books salary and fixed expenses",
			now:  at(2024, time.February, 16),
			want: []string{
				core.CategoryFixedExpenses + "/expense@2024-02-15",
				core.CategorySalary + "/income@2024-02-15",
			},
		},
		{
			name: "repeat after payday",
			now:  at(2024, time.February, 20),
		},
	}

	for _, step := range steps {
		res, err := r.Reconcile(ctx, u.ID, cycle.Key{}, step.now)
		require.NoError(t, err, step.name)
		if step.want == nil {
			assert.Empty(t, res.Inserted, step.name)
			continue
		}
		assert.Equal(t, step.want, categoriesOf(res.Inserted), step.name)
	}

	entries, err := repo.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestReconcile_SQLiteConcurrentCallsInsertOnce(t *testing.T) {
	repo, u := newSQLiteLedger(t)
	r := NewReconciler(repo)
	ctx := context.Background()

	// Book February before racing on March.
	_, err := r.Reconcile(ctx, u.ID, cycle.New(2024, time.February), at(2024, time.February, 16))
	require.NoError(t, err)

	const callers = 20
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
		errs  []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Reconcile(ctx, u.ID, cycle.New(2024, time.March), at(2024, time.March, 16))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			total += len(res.Inserted)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 3, total)

	entries, err := repo.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID, Cycle: cycle.New(2024, time.March)})
	require.NoError(t, err)
	assert.Equal(t, []string{
		core.CategoryFixedExpenses + "/expense@2024-03-15",
		core.CategoryPreviousBalance + "/income@2024-03-01",
		core.CategorySalary + "/income@2024-03-15",
	}, categoriesOf(entries))
}
