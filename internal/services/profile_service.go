package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	wlog "wealthwise/internal/log"
)

// ProfileRepository is the part of the Ledger Store ProfileService needs.
type ProfileRepository interface {
	GetUserProfile(ctx context.Context, userID int64) (core.UserProfile, error)
	CreateUser(ctx context.Context, p core.UserProfile) (core.UserProfile, error)
	UpdateUser(ctx context.Context, p core.UserProfile) (core.UserProfile, error)
	SumEntries(ctx context.Context, userID int64, kind core.Kind, c cycle.Key) (core.Money, error)
	TotalByKind(ctx context.Context, userID int64, kind core.Kind) (core.Money, error)
}

// ProfilePatch holds the profile fields to change; nil fields are kept.
type ProfilePatch struct {
	Name           *string
	Email          *string
	FixedIncome    *core.Money
	FixedExpenses  *core.Money
	PaydayDay      *int
	InitialBalance *core.Money
	SavingsGoal    *core.Money
}

type ProfileService struct {
	store    ProfileRepository
	location *time.Location
}

func NewProfileService(store ProfileRepository, loc *time.Location) *ProfileService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProfileService{store: store, location: loc}
}

// Create registers a user. A zero payday defaults to the 1st.
func (s *ProfileService) Create(ctx context.Context, p core.UserProfile) (core.UserProfile, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.PaydayDay == 0 {
		p.PaydayDay = core.MinPaydayDay
	}
	if err := p.Validate(); err != nil {
		return core.UserProfile{}, invalid(err)
	}

	created, err := s.store.CreateUser(ctx, p)
	if errors.Is(err, core.ErrDuplicateEmail) {
		return core.UserProfile{}, invalid(err)
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("create user: %w", err)
	}

	wlog.FromContext(ctx).WithComponent(wlog.ComponentProfile).InfoContext(ctx, "User created",
		wlog.FieldOperation, wlog.OpCreate,
		wlog.FieldUserID, created.ID,
		"payday_day", created.PaydayDay)
	return created, nil
}

func (s *ProfileService) Get(ctx context.Context, userID int64) (core.UserProfile, error) {
	return s.store.GetUserProfile(ctx, userID)
}

// Update applies patch. Entries already booked by reconciliation are left
// as they are; new values apply from the next reconciliation on.
func (s *ProfileService) Update(ctx context.Context, userID int64, patch ProfilePatch) (core.UserProfile, error) {
	p, err := s.store.GetUserProfile(ctx, userID)
	if err != nil {
		return core.UserProfile{}, err
	}

	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		p.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
	}
	if patch.FixedIncome != nil {
		p.FixedIncome = *patch.FixedIncome
	}
	if patch.FixedExpenses != nil {
		p.FixedExpenses = *patch.FixedExpenses
	}
	if patch.PaydayDay != nil {
		p.PaydayDay = *patch.PaydayDay
	}
	if patch.InitialBalance != nil {
		p.InitialBalance = *patch.InitialBalance
	}
	if patch.SavingsGoal != nil {
		p.SavingsGoal = *patch.SavingsGoal
	}
	if err := p.Validate(); err != nil {
		return core.UserProfile{}, invalid(err)
	}

	updated, err := s.store.UpdateUser(ctx, p)
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		return core.UserProfile{}, err
	case errors.Is(err, core.ErrDuplicateEmail):
		return core.UserProfile{}, invalid(err)
	case err != nil:
		return core.UserProfile{}, fmt.Errorf("update user: %w", err)
	}

	wlog.FromContext(ctx).WithComponent(wlog.ComponentProfile).InfoContext(ctx, "User updated",
		wlog.FieldOperation, wlog.OpUpdate,
		wlog.FieldUserID, userID)
	return updated, nil
}

// Stats summarizes the account as of now. The cycle figures cover the cycle
// containing now.
func (s *ProfileService) Stats(ctx context.Context, userID int64, now time.Time) (core.AccountStats, error) {
	p, err := s.store.GetUserProfile(ctx, userID)
	if err != nil {
		return core.AccountStats{}, err
	}
	now = now.In(s.location)
	current := cycle.Of(now)

	totalExpenses, err := s.store.TotalByKind(ctx, userID, core.KindExpense)
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("total expenses: %w", err)
	}
	income, err := s.store.SumEntries(ctx, userID, core.KindIncome, current)
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("sum income of %s: %w", current, err)
	}
	expenses, err := s.store.SumEntries(ctx, userID, core.KindExpense, current)
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("sum expenses of %s: %w", current, err)
	}

	savings := core.CycleBalance(p.FixedIncome, income, p.FixedExpenses, expenses)
	return core.AccountStats{
		DaysActive:    daysBetween(core.DateOf(p.CreatedAt.In(s.location)), core.DateOf(now)),
		TotalExpenses: totalExpenses,
		CycleIncome:   income,
		CycleExpenses: expenses,
		Savings:       savings,
		SavingsGoal:   p.SavingsGoal,
		GoalReached:   p.SavingsGoal.Cents > 0 && savings.Cents >= p.SavingsGoal.Cents,
	}, nil
}

// daysBetween counts calendar days from a to b, never negative.
func daysBetween(a, b core.Date) int {
	days := int(b.Sub(a.Time).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
