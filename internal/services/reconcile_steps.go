package services

import (
	"context"
	"fmt"
	"time"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/ledger"
)

// Step names, used in logs, metrics and Result.
const (
	StepInitialAdjustment = "initial_adjustment"
	StepCarryover         = "carryover"
	StepSalary            = "salary"
	StepFixedExpenses     = "fixed_expenses"
)

// cycleFacts is everything a step may decide on.
type cycleFacts struct {
	profile core.UserProfile
	target  cycle.Key
	current cycle.Key
	first   cycle.Key
	today   core.Date
	// createdOn is the account creation day in the reconciler's location.
	createdOn    core.Date
	isOnboarding bool
	isFirst      bool
	isAfterFirst bool
}

func newCycleFacts(p core.UserProfile, target cycle.Key, now time.Time) cycleFacts {
	created := p.CreatedAt.In(now.Location())
	first := cycle.First(created, p.PaydayDay)
	return cycleFacts{
		profile:      p,
		target:       target,
		current:      cycle.Of(now),
		first:        first,
		today:        core.DateOf(now),
		createdOn:    core.DateOf(created),
		isOnboarding: target == cycle.Of(created),
		isFirst:      target == first,
		isAfterFirst: target.Compare(first) == cycle.After,
	}
}

// paydayReached reports whether recurring payday entries are due: the target
// is the running cycle, the first cycle has been reached and today is on or
// past the clamped payday.
func (f cycleFacts) paydayReached() bool {
	if f.target != f.current {
		return false
	}
	if !f.isFirst && !f.isAfterFirst {
		return false
	}
	return f.today.Day() >= f.target.ClampDay(f.profile.PaydayDay)
}

func (f cycleFacts) payday() core.Date {
	return core.DateOf(f.target.Date(f.profile.PaydayDay))
}

// plannedEntry is an entry a step wants to exist, identified by the filter
// its fingerprint builds once the category is resolved.
type plannedEntry struct {
	step        string
	category    core.CategoryKey
	amount      core.Money
	date        core.Date
	description string
	fingerprint func(userID int64, c core.Category) ledger.EntryFilter
}

// reconcileStep is one strategy of the reconciliation. It looks at the cycle
// facts and plans the entries that must exist; the Reconciler resolves
// categories, checks fingerprints and inserts.
type reconcileStep interface {
	Name() string
	// Plan returns the entries the step requires. Reads go through r so they
	// observe the locked transaction.
	Plan(ctx context.Context, r ledger.LedgerReader, f cycleFacts) ([]plannedEntry, error)
}

// reconcileSteps run in this order.
var reconcileSteps = []reconcileStep{
	initialAdjustmentStep{},
	carryoverStep{},
	salaryStep{},
	fixedExpensesStep{},
}

// initialAdjustmentStep books the opening balance in the onboarding cycle.
type initialAdjustmentStep struct{}

func (initialAdjustmentStep) Name() string { return StepInitialAdjustment }

func (initialAdjustmentStep) Plan(_ context.Context, _ ledger.LedgerReader, f cycleFacts) ([]plannedEntry, error) {
	if !f.isOnboarding || f.profile.InitialBalance.Cents <= 0 {
		return nil, nil
	}
	date := f.createdOn
	if f.target.Contains(f.today.Time) {
		date = f.today
	}
	amount := f.profile.InitialBalance
	target := f.target
	return []plannedEntry{{
		step:        StepInitialAdjustment,
		category:    core.CategoryKey{Name: core.CategoryInitialAdjustment, Kind: core.KindIncome},
		amount:      amount,
		date:        date,
		description: "Opening balance",
		fingerprint: func(userID int64, c core.Category) ledger.EntryFilter {
			return ledger.EntryFilter{UserID: userID, CategoryID: c.ID, Amount: &amount, Cycle: target}
		},
	}}, nil
}

// carryoverStep moves the previous cycle's balance into the target cycle.
type carryoverStep struct{}

func (carryoverStep) Name() string { return StepCarryover }

func (carryoverStep) Plan(ctx context.Context, r ledger.LedgerReader, f cycleFacts) ([]plannedEntry, error) {
	if !f.isAfterFirst {
		return nil, nil
	}
	prev := f.target.Prev()
	userID := f.profile.ID

	income, err := r.SumEntries(ctx, userID, core.KindIncome, prev)
	if err != nil {
		return nil, fmt.Errorf("sum income of %s: %w", prev, err)
	}
	expenses, err := r.SumEntries(ctx, userID, core.KindExpense, prev)
	if err != nil {
		return nil, fmt.Errorf("sum expenses of %s: %w", prev, err)
	}

	balance := core.CycleBalance(f.profile.FixedIncome, income, f.profile.FixedExpenses, expenses)
	if balance.IsZero() {
		return nil, nil
	}

	kind := core.KindIncome
	if balance.Cents < 0 {
		kind = core.KindExpense
	}
	amount := balance.Abs()
	date := core.DateOf(f.target.FirstDay())
	return []plannedEntry{{
		step:        StepCarryover,
		category:    core.CategoryKey{Name: core.CategoryPreviousBalance, Kind: kind},
		amount:      amount,
		date:        date,
		description: "Balance carried over from " + prev.String(),
		fingerprint: func(userID int64, c core.Category) ledger.EntryFilter {
			return ledger.EntryFilter{UserID: userID, CategoryID: c.ID, Kind: kind, Date: date, Amount: &amount}
		},
	}}, nil
}

// paydayEntry plans a recurring payday entry dated on the clamped payday.
func paydayEntry(step string, key core.CategoryKey, amount core.Money, f cycleFacts, description string) []plannedEntry {
	if amount.Cents <= 0 || !f.paydayReached() {
		return nil
	}
	date := f.payday()
	return []plannedEntry{{
		step:        step,
		category:    key,
		amount:      amount,
		date:        date,
		description: description,
		fingerprint: func(userID int64, c core.Category) ledger.EntryFilter {
			return ledger.EntryFilter{UserID: userID, CategoryID: c.ID, Date: date, Amount: &amount}
		},
	}}
}

type salaryStep struct{}

func (salaryStep) Name() string { return StepSalary }

func (salaryStep) Plan(_ context.Context, _ ledger.LedgerReader, f cycleFacts) ([]plannedEntry, error) {
	return paydayEntry(StepSalary,
		core.CategoryKey{Name: core.CategorySalary, Kind: core.KindIncome},
		f.profile.FixedIncome, f, "Salary for "+f.target.String()), nil
}

type fixedExpensesStep struct{}

func (fixedExpensesStep) Name() string { return StepFixedExpenses }

func (fixedExpensesStep) Plan(_ context.Context, _ ledger.LedgerReader, f cycleFacts) ([]plannedEntry, error) {
	return paydayEntry(StepFixedExpenses,
		core.CategoryKey{Name: core.CategoryFixedExpenses, Kind: core.KindExpense},
		f.profile.FixedExpenses, f, "Fixed expenses for "+f.target.String()), nil
}
