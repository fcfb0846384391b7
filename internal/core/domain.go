package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Names of the categories the reconciliation engine writes into.
const (
	CategoryInitialAdjustment = "Initial Adjustment"
	CategorySalary            = "Salary"
	CategoryFixedExpenses     = "Fixed Expenses"
	CategoryPreviousBalance   = "Previous-Month Balance"
)

const (
	MinPaydayDay = 1
	MaxPaydayDay = 30

	maxDescriptionLen = 200
	maxNameLen        = 100
)

type (
	Kind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID       int64
		Name     string
		Kind     Kind
		IsSystem bool
		UserID   int64 // 0 for system categories
	}

	// Entry is one row of a user's ledger.
	Entry struct {
		ID           int64
		UserID       int64
		CategoryID   int64
		CategoryName string // populated on reads
		Description  string
		Amount       Money
		Date         Date
		Kind         Kind
		CreatedAt    time.Time
	}

	UserProfile struct {
		ID             int64
		Name           string
		Email          string
		FixedIncome    Money
		FixedExpenses  Money
		PaydayDay      int
		InitialBalance Money
		// SavingsGoal is the amount the user aims to keep each cycle. Zero
		// means no goal.
		SavingsGoal Money
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}
)

var (
	ErrInvalidDay           = errors.New("invalid day")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrNegativeAmount       = errors.New("amount cannot be negative")
	ErrInvalidKind          = errors.New("invalid kind")
	ErrInvalidPayday        = errors.New("payday must be between 1 and 30")
	ErrEmptyName            = errors.New("empty name")
	ErrEmptyEmail           = errors.New("empty email")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrMissingCategory      = errors.New("missing category")
	ErrUserNotFound         = errors.New("user not found")
	ErrEntryNotFound        = errors.New("entry not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrDuplicateCategory    = errors.New("category already exists")
	ErrCategoryKindMismatch = errors.New("category kind does not match entry kind")
)

// ParseKind accepts "income" or "expense", case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

func (k Kind) String() string {
	return string(k)
}

// NewDate creates a new Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// Equal compares calendar days only.
func (d Date) Equal(o Date) bool {
	return d.String() == o.String()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > maxNameLen {
		return fmt.Errorf("category name too long (max %d characters)", maxNameLen)
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

// VisibleTo reports whether userID may book entries against the category.
func (c Category) VisibleTo(userID int64) bool {
	return c.IsSystem || c.UserID == userID
}

func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Kind.Valid() {
		return ErrInvalidKind
	}
	if e.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if len(e.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (p UserProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > maxNameLen {
		return fmt.Errorf("name too long (max %d characters)", maxNameLen)
	}
	if strings.TrimSpace(p.Email) == "" {
		return ErrEmptyEmail
	}
	for _, m := range []Money{p.FixedIncome, p.FixedExpenses, p.InitialBalance, p.SavingsGoal} {
		if m.Cents < 0 {
			return ErrNegativeAmount
		}
	}
	if p.PaydayDay < MinPaydayDay || p.PaydayDay > MaxPaydayDay {
		return ErrInvalidPayday
	}
	return nil
}
