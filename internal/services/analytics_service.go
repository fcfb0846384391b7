package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wealthwise/internal/cache"
	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/ledger"
	wlog "wealthwise/internal/log"
)

const (
	DefaultMonths = 6
	MaxMonths     = 24
)

// CategoryRepository is the part of the Ledger Store CategoryService needs.
type CategoryRepository interface {
	GetUserProfile(ctx context.Context, userID int64) (core.UserProfile, error)
	ledger.CategoryStore
}

type CategoryService struct {
	store CategoryRepository
}

func NewCategoryService(store CategoryRepository) *CategoryService {
	return &CategoryService{store: store}
}

// List returns the system categories plus the user's own.
func (s *CategoryService) List(ctx context.Context, userID int64) ([]core.Category, error) {
	if _, err := s.store.GetUserProfile(ctx, userID); err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Create adds a user-defined category.
func (s *CategoryService) Create(ctx context.Context, userID int64, name string, kind core.Kind) (core.Category, error) {
	if _, err := s.store.GetUserProfile(ctx, userID); err != nil {
		return core.Category{}, err
	}
	c := core.Category{Name: strings.TrimSpace(name), Kind: kind, UserID: userID}
	if err := c.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}

	created, err := s.store.CreateCategory(ctx, c)
	if errors.Is(err, core.ErrDuplicateCategory) {
		return core.Category{}, invalid(err)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	wlog.FromContext(ctx).WithComponent(wlog.ComponentEntries).InfoContext(ctx, "Category created",
		wlog.FieldUserID, userID,
		wlog.FieldCategory, created.Name,
		wlog.FieldKind, string(created.Kind))
	return created, nil
}

// AnalyticsService serves the chart aggregations, cached per user until the
// TTL runs out or the user's ledger changes.
type AnalyticsService struct {
	store    ledger.AnalyticsReader
	location *time.Location
	byCat    cache.Cache[[]core.CategoryTotal]
	monthly  cache.Cache[[]core.MonthlyTotal]
}

// NewAnalyticsService returns the service and the caches it fills, so the
// caller can register them for periodic cleanup.
func NewAnalyticsService(store ledger.AnalyticsReader, loc *time.Location, size int, ttl time.Duration) (*AnalyticsService, []cache.Cleaner) {
	if loc == nil {
		loc = time.UTC
	}
	byCat := cache.NewLRUCache[[]core.CategoryTotal](size, ttl)
	monthly := cache.NewLRUCache[[]core.MonthlyTotal](size, ttl)
	return &AnalyticsService{
		store:    store,
		location: loc,
		byCat:    byCat,
		monthly:  monthly,
	}, []cache.Cleaner{byCat, monthly}
}

// SumByCategory totals a cycle's entries per category. A zero cycle covers
// all time.
func (s *AnalyticsService) SumByCategory(ctx context.Context, userID int64, c cycle.Key) ([]core.CategoryTotal, error) {
	key := fmt.Sprintf("%d:bycat:%s", userID, c)
	if v, ok := s.byCat.Get(key); ok {
		return v, nil
	}
	totals, err := s.store.SumByCategory(ctx, userID, c)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	s.byCat.Set(key, totals)
	return totals, nil
}

// MonthlyTotals returns income and expense for the months cycles ending at
// the cycle containing now, oldest first.
func (s *AnalyticsService) MonthlyTotals(ctx context.Context, userID int64, months int, now time.Time) ([]core.MonthlyTotal, error) {
	if months <= 0 {
		months = DefaultMonths
	}
	if months > MaxMonths {
		return nil, invalid(fmt.Errorf("months must be at most %d", MaxMonths))
	}
	keys := cycle.Last(cycle.Of(now.In(s.location)), months)
	from, to := keys[0], keys[len(keys)-1]

	key := fmt.Sprintf("%d:monthly:%s:%d", userID, to, months)
	if v, ok := s.monthly.Get(key); ok {
		return v, nil
	}
	totals, err := s.store.MonthlyTotals(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	s.monthly.Set(key, totals)
	return totals, nil
}

// Invalidate drops every cached aggregate of userID.
func (s *AnalyticsService) Invalidate(userID int64) {
	prefix := fmt.Sprintf("%d:", userID)
	s.byCat.DeletePrefix(prefix)
	s.monthly.DeletePrefix(prefix)
}
