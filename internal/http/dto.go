package http

import (
	"time"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
)

// Request bodies. Amounts are decimal strings ("3000.00") or JSON numbers.

type createUserRequest struct {
	Name           string     `json:"name" validate:"required,max=100"`
	Email          string     `json:"email" validate:"required,email,max=254"`
	FixedIncome    core.Money `json:"fixed_income"`
	FixedExpenses  core.Money `json:"fixed_expenses"`
	PaydayDay      int        `json:"payday_day" validate:"omitempty,min=1,max=30"`
	InitialBalance core.Money `json:"initial_balance"`
	SavingsGoal    core.Money `json:"savings_goal"`
}

type updateUserRequest struct {
	Name           *string     `json:"name" validate:"omitempty,max=100"`
	Email          *string     `json:"email" validate:"omitempty,email,max=254"`
	FixedIncome    *core.Money `json:"fixed_income"`
	FixedExpenses  *core.Money `json:"fixed_expenses"`
	PaydayDay      *int        `json:"payday_day" validate:"omitempty,min=1,max=30"`
	InitialBalance *core.Money `json:"initial_balance"`
	SavingsGoal    *core.Money `json:"savings_goal"`
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Kind string `json:"kind" validate:"required,oneof=income expense"`
}

type entryRequest struct {
	CategoryID  int64      `json:"category_id" validate:"required,gt=0"`
	Description string     `json:"description" validate:"max=200"`
	Amount      core.Money `json:"amount" validate:"gt=0"`
	Date        string     `json:"date" validate:"required,datetime=2006-01-02"`
	Kind        string     `json:"kind" validate:"omitempty,oneof=income expense"`
}

// Response bodies.

type userResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	FixedIncome    core.Money `json:"fixed_income"`
	FixedExpenses  core.Money `json:"fixed_expenses"`
	PaydayDay      int        `json:"payday_day"`
	InitialBalance core.Money `json:"initial_balance"`
	SavingsGoal    core.Money `json:"savings_goal"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func newUserResponse(p core.UserProfile) userResponse {
	return userResponse{
		ID:             p.ID,
		Name:           p.Name,
		Email:          p.Email,
		FixedIncome:    p.FixedIncome,
		FixedExpenses:  p.FixedExpenses,
		PaydayDay:      p.PaydayDay,
		InitialBalance: p.InitialBalance,
		SavingsGoal:    p.SavingsGoal,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type statsResponse struct {
	Cycle         string     `json:"cycle"`
	DaysActive    int        `json:"days_active"`
	TotalExpenses core.Money `json:"total_expenses"`
	CycleIncome   core.Money `json:"cycle_income"`
	CycleExpenses core.Money `json:"cycle_expenses"`
	Savings       core.Money `json:"savings"`
	SavingsGoal   core.Money `json:"savings_goal"`
	GoalReached   bool       `json:"goal_reached"`
}

type categoryResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	IsSystem bool   `json:"is_system"`
}

func newCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Kind: string(c.Kind), IsSystem: c.IsSystem}
}

type entryResponse struct {
	ID          int64      `json:"id"`
	CategoryID  int64      `json:"category_id"`
	Category    string     `json:"category"`
	Description string     `json:"description,omitempty"`
	Amount      core.Money `json:"amount"`
	Date        string     `json:"date"`
	Kind        string     `json:"kind"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newEntryResponse(e core.Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		CategoryID:  e.CategoryID,
		Category:    e.CategoryName,
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date.String(),
		Kind:        string(e.Kind),
		CreatedAt:   e.CreatedAt,
	}
}

type categoryTotalResponse struct {
	Category string     `json:"category"`
	Kind     string     `json:"kind"`
	Total    core.Money `json:"total"`
}

type monthlyTotalResponse struct {
	Cycle   string     `json:"cycle"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
}

type reconcileResponse struct {
	OK       bool          `json:"ok"`
	Cycle    cycle.Key     `json:"cycle"`
	Inserted int           `json:"inserted"`
	Skipped  []skippedStep `json:"skipped,omitempty"`
}

type skippedStep struct {
	Step   string `json:"step"`
	Reason string `json:"reason"`
}
