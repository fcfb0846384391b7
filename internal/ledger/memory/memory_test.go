package memory

import (
	"context"
	"errors"
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

func seedUser(t *testing.T, s *Store) core.UserProfile {
	t.Helper()
	u, err := s.CreateUser(context.Background(), core.UserProfile{
		Name:        "Ana",
		Email:       "ana@example.com",
		FixedIncome: core.Money{Cents: 300000},
		PaydayDay:   15,
		CreatedAt:   time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return u
}

func category(t *testing.T, s *Store, name string, kind core.Kind) core.Category {
	t.Helper()
	catalog, err := s.SystemCategories(context.Background())
	require.NoError(t, err)
	c, ok := catalog.Lookup(name, kind)
	require.True(t, ok, "missing %s/%s", name, kind)
	return c
}

func TestStore_UsersAndDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s)

	got, err := s.GetUserProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)

	_, err = s.CreateUser(ctx, core.UserProfile{Name: "B", Email: "ANA@example.com", PaydayDay: 1})
	assert.ErrorIs(t, err, core.ErrDuplicateEmail)

	_, err = s.GetUserProfile(ctx, 999)
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestStore_FindEntryFingerprints(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s)
	salary := category(t, s, core.CategorySalary, core.KindIncome)

	_, err := s.InsertEntry(ctx, core.Entry{
		UserID: u.ID, CategoryID: salary.ID, Kind: core.KindIncome,
		Amount: core.Money{Cents: 300000}, Date: core.NewDate(2024, 2, 15),
	})
	require.NoError(t, err)

	amount := core.Money{Cents: 300000}
	other := core.Money{Cents: 1}
	tests := []struct {
		name   string
		filter ledger.EntryFilter
		want   bool
	}{
		{"exact date and amount", ledger.EntryFilter{UserID: u.ID, CategoryID: salary.ID, Date: core.NewDate(2024, 2, 15), Amount: &amount}, true},
		{"different amount", ledger.EntryFilter{UserID: u.ID, CategoryID: salary.ID, Date: core.NewDate(2024, 2, 15), Amount: &other}, false},
		{"same cycle", ledger.EntryFilter{UserID: u.ID, CategoryID: salary.ID, Cycle: cycle.New(2024, time.February), Amount: &amount}, true},
		{"other cycle", ledger.EntryFilter{UserID: u.ID, CategoryID: salary.ID, Cycle: cycle.New(2024, time.March)}, false},
		{"other user", ledger.EntryFilter{UserID: u.ID + 1, CategoryID: salary.ID}, false},
		{"kind mismatch", ledger.EntryFilter{UserID: u.ID, Kind: core.KindExpense}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := s.FindEntry(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, found)
		})
	}
}

func TestStore_SumsAndAnalytics(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s)
	food := category(t, s, "Food", core.KindExpense)
	salary := category(t, s, core.CategorySalary, core.KindIncome)

	for _, e := range []core.Entry{
		{CategoryID: food.ID, Kind: core.KindExpense, Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 2, 1), Description: "Groceries"},
		{CategoryID: food.ID, Kind: core.KindExpense, Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, 2, 29), Description: "Lunch"},
		{CategoryID: food.ID, Kind: core.KindExpense, Amount: core.Money{Cents: 700}, Date: core.NewDate(2024, 3, 1)},
		{CategoryID: salary.ID, Kind: core.KindIncome, Amount: core.Money{Cents: 300000}, Date: core.NewDate(2024, 2, 15)},
	} {
		e.UserID = u.ID
		_, err := s.InsertEntry(ctx, e)
		require.NoError(t, err)
	}

	feb := cycle.New(2024, time.February)
	sum, err := s.SumEntries(ctx, u.ID, core.KindExpense, feb)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), sum.Cents)

	byCat, err := s.SumByCategory(ctx, u.ID, feb)
	require.NoError(t, err)
	require.Len(t, byCat, 2)
	assert.Equal(t, core.CategorySalary, byCat[0].Name)

	monthly, err := s.MonthlyTotals(ctx, u.ID, cycle.New(2024, time.January), cycle.New(2024, time.March))
	require.NoError(t, err)
	require.Len(t, monthly, 3)
	assert.Equal(t, "2024-01", monthly[0].Cycle)
	assert.Zero(t, monthly[0].Income.Cents)
	assert.Equal(t, int64(300000), monthly[1].Income.Cents)
	assert.Equal(t, int64(700), monthly[2].Expense.Cents)

	list, err := s.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID, DescriptionLike: "%lun%"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Lunch", list[0].Description)
	assert.Equal(t, "Food", list[0].CategoryName)

	all, err := s.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "2024-03-01", all[0].Date.String(), "newest first")
}

func TestStore_InTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s)
	food := category(t, s, "Food", core.KindExpense)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.InsertEntry(ctx, core.Entry{
			UserID: u.ID, CategoryID: food.ID, Kind: core.KindExpense,
			Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 2, 1),
		})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := s.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_InTxRollsBackOnPanic(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s)
	food := category(t, s, "Food", core.KindExpense)

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			require.NoError(t, tx.LockUser(ctx, u.ID, "ledger-reconcile"))
			_, err := tx.InsertEntry(ctx, core.Entry{
				UserID: u.ID, CategoryID: food.ID, Kind: core.KindExpense,
				Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 2, 1),
			})
			require.NoError(t, err)
			panic("boom")
		})
	})

	list, err := s.ListEntries(ctx, ledger.EntryFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, s.locks.Len())
}

func TestWithUserLock_SerializesAndReleases(t *testing.T) {
	s := New()
	ctx := context.Background()

	var inside, overlaps int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lock.WithUserLock(ctx, s, 1, "ledger-reconcile", func(ctx context.Context, tx ledger.Tx) error {
				if atomic.AddInt32(&inside, 1) > 1 {
					atomic.AddInt32(&overlaps, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return errors.New("body failure still releases")
			})
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlaps))
	assert.Zero(t, s.locks.Len())
}
