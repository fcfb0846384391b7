// Package memory is an in-process ledger.Store for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/ledger"
	"wealthwise/internal/lock"
)

type Store struct {
	mu         sync.Mutex
	users      map[int64]core.UserProfile
	categories map[int64]core.Category
	entries    map[int64]core.Entry
	nextID     struct{ user, category, entry int64 }
	locks      *lock.KeyedMutex
	now        func() time.Time
}

var _ ledger.Store = (*Store)(nil)

// New returns a store seeded with the default system categories.
func New() *Store {
	s := &Store{
		users:      make(map[int64]core.UserProfile),
		categories: make(map[int64]core.Category),
		entries:    make(map[int64]core.Entry),
		locks:      lock.NewKeyedMutex(),
		now:        time.Now,
	}
	for _, c := range core.DefaultSystemCategories() {
		s.nextID.category++
		c.ID = s.nextID.category
		s.categories[c.ID] = c
	}
	return s
}

// WithClock overrides the clock used to stamp created_at columns.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// InTx runs fn against a transaction view. Entries inserted through the view
// are removed again if fn fails or panics; user locks are released when fn
// returns.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx := &memTx{Store: s}
	defer tx.releaseLocks()
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memTx struct {
	*Store
	releases []func()
	inserted []int64
}

func (tx *memTx) LockUser(ctx context.Context, userID int64, namespace string) error {
	unlock, err := tx.locks.Lock(ctx, lock.UserKey(userID, namespace))
	if err != nil {
		return err
	}
	tx.releases = append(tx.releases, unlock)
	return nil
}

func (tx *memTx) InsertEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	created, err := tx.Store.InsertEntry(ctx, e)
	if err != nil {
		return core.Entry{}, err
	}
	tx.inserted = append(tx.inserted, created.ID)
	return created, nil
}

func (tx *memTx) rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for _, id := range tx.inserted {
		delete(tx.entries, id)
	}
}

func (tx *memTx) releaseLocks() {
	for i := len(tx.releases) - 1; i >= 0; i-- {
		tx.releases[i]()
	}
}

// Users

func (s *Store) CreateUser(_ context.Context, p core.UserProfile) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, p.Email) {
			return core.UserProfile{}, core.ErrDuplicateEmail
		}
	}
	s.nextID.user++
	p.ID = s.nextID.user
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	s.users[p.ID] = p
	return p, nil
}

func (s *Store) UpdateUser(_ context.Context, p core.UserProfile) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[p.ID]
	if !ok {
		return core.UserProfile{}, core.ErrUserNotFound
	}
	for _, u := range s.users {
		if u.ID != p.ID && strings.EqualFold(u.Email, p.Email) {
			return core.UserProfile{}, core.ErrDuplicateEmail
		}
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	s.users[p.ID] = p
	return p, nil
}

func (s *Store) GetUserProfile(_ context.Context, userID int64) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.users[userID]
	if !ok {
		return core.UserProfile{}, core.ErrUserNotFound
	}
	return p, nil
}

func (s *Store) ListUserIDs(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Categories

func (s *Store) SystemCategories(context.Context) (core.SystemCatalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		all = append(all, c)
	}
	return core.NewSystemCatalog(all), nil
}

// RemoveCategory deletes a category outright. Tests use it to simulate a
// catalog missing one of the engine's categories.
func (s *Store) RemoveCategory(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, id)
}

func (s *Store) ListCategories(_ context.Context, userID int64) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Category
	for _, c := range s.categories {
		if c.VisibleTo(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrCategoryNotFound
	}
	return c, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if existing.UserID == c.UserID && existing.IsSystem == c.IsSystem &&
			strings.EqualFold(existing.Name, c.Name) && existing.Kind == c.Kind {
			return core.Category{}, core.ErrDuplicateCategory
		}
	}
	s.nextID.category++
	c.ID = s.nextID.category
	s.categories[c.ID] = c
	return c, nil
}

// Entries

func (s *Store) InsertEntry(_ context.Context, e core.Entry) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[e.UserID]; !ok {
		return core.Entry{}, core.ErrUserNotFound
	}
	cat, ok := s.categories[e.CategoryID]
	if !ok {
		return core.Entry{}, core.ErrCategoryNotFound
	}
	s.nextID.entry++
	e.ID = s.nextID.entry
	e.CategoryName = cat.Name
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	s.entries[e.ID] = e
	return e, nil
}

func (s *Store) GetEntry(_ context.Context, userID, id int64) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return core.Entry{}, core.ErrEntryNotFound
	}
	return s.withCategoryName(e), nil
}

func (s *Store) UpdateEntry(_ context.Context, e core.Entry) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[e.ID]
	if !ok || existing.UserID != e.UserID {
		return core.Entry{}, core.ErrEntryNotFound
	}
	if _, ok := s.categories[e.CategoryID]; !ok {
		return core.Entry{}, core.ErrCategoryNotFound
	}
	e.CreatedAt = existing.CreatedAt
	s.entries[e.ID] = e
	return s.withCategoryName(e), nil
}

func (s *Store) DeleteEntry(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return core.ErrEntryNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) FindEntry(_ context.Context, f ledger.EntryFilter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if matches(e, f) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListEntries(_ context.Context, f ledger.EntryFilter) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Entry
	for _, e := range s.entries {
		if matches(e, f) {
			out = append(out, s.withCategoryName(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Time.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) SumEntries(_ context.Context, userID int64, kind core.Kind, c cycle.Key) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sum(ledger.EntryFilter{UserID: userID, Kind: kind, Cycle: c}), nil
}

func (s *Store) TotalByKind(_ context.Context, userID int64, kind core.Kind) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sum(ledger.EntryFilter{UserID: userID, Kind: kind}), nil
}

// Analytics

func (s *Store) SumByCategory(_ context.Context, userID int64, c cycle.Key) ([]core.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := map[core.CategoryKey]int64{}
	for _, e := range s.entries {
		if !matches(e, ledger.EntryFilter{UserID: userID, Cycle: c}) {
			continue
		}
		name := s.categories[e.CategoryID].Name
		totals[core.CategoryKey{Name: name, Kind: e.Kind}] += e.Amount.Cents
	}

	out := make([]core.CategoryTotal, 0, len(totals))
	for k, cents := range totals {
		out = append(out, core.CategoryTotal{Name: k.Name, Kind: k.Kind, Total: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) MonthlyTotals(_ context.Context, userID int64, from, to cycle.Key) ([]core.MonthlyTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.MonthlyTotal
	for k := from; !k.After(to); k = k.Next() {
		out = append(out, core.MonthlyTotal{
			Cycle:   k.String(),
			Income:  s.sum(ledger.EntryFilter{UserID: userID, Kind: core.KindIncome, Cycle: k}),
			Expense: s.sum(ledger.EntryFilter{UserID: userID, Kind: core.KindExpense, Cycle: k}),
		})
	}
	return out, nil
}

// sum must be called with s.mu held.
func (s *Store) sum(f ledger.EntryFilter) core.Money {
	var total int64
	for _, e := range s.entries {
		if matches(e, f) {
			total += e.Amount.Cents
		}
	}
	return core.Money{Cents: total}
}

// withCategoryName must be called with s.mu held.
func (s *Store) withCategoryName(e core.Entry) core.Entry {
	if c, ok := s.categories[e.CategoryID]; ok {
		e.CategoryName = c.Name
	}
	return e
}

func matches(e core.Entry, f ledger.EntryFilter) bool {
	if f.UserID != 0 && e.UserID != f.UserID {
		return false
	}
	if f.CategoryID != 0 && e.CategoryID != f.CategoryID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if !f.Date.IsZero() && !e.Date.Equal(f.Date) {
		return false
	}
	if f.Amount != nil && e.Amount.Cents != f.Amount.Cents {
		return false
	}
	if !f.Cycle.IsZero() && cycle.Of(e.Date.Time) != f.Cycle {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && !e.Date.Before(f.To.Time) {
		return false
	}
	if f.DescriptionLike != "" && !like(e.Description, f.DescriptionLike) {
		return false
	}
	return true
}

// like is a case-insensitive SQL LIKE with % and _ wildcards.
func like(s, pattern string) bool {
	s, pattern = strings.ToLower(s), strings.ToLower(pattern)
	var match func(si, pi int) bool
	match = func(si, pi int) bool {
		for pi < len(pattern) {
			switch pattern[pi] {
			case '%':
				for k := si; k <= len(s); k++ {
					if match(k, pi+1) {
						return true
					}
				}
				return false
			case '_':
				if si >= len(s) {
					return false
				}
			default:
				if si >= len(s) || s[si] != pattern[pi] {
					return false
				}
			}
			si++
			pi++
		}
		return si == len(s)
	}
	return match(0, 0)
}
