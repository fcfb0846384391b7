package core

// CategoryTotal represents an amount aggregated by category name.
type CategoryTotal struct {
	Name  string
	Kind  Kind
	Total Money
}

// MonthlyTotal is the income and expense sum of one cycle ("YYYY-MM").
type MonthlyTotal struct {
	Cycle   string
	Income  Money
	Expense Money
}

// Balance returns income minus expense.
func (t MonthlyTotal) Balance() Money {
	return t.Income.Sub(t.Expense)
}

// AccountStats summarizes a user's account for the settings screen.
type AccountStats struct {
	DaysActive    int
	TotalExpenses Money
	CycleIncome   Money
	CycleExpenses Money
	// Savings is (fixed income + cycle income) - (fixed expenses + cycle expenses).
	Savings Money
	// SavingsGoal echoes the profile goal; GoalReached is false when unset.
	SavingsGoal Money
	GoalReached bool
}

// CycleBalance applies the month balance formula shared by the settings
// screen and the carryover step.
func CycleBalance(fixedIncome, income, fixedExpenses, expenses Money) Money {
	return fixedIncome.Add(income).Sub(fixedExpenses.Add(expenses))
}
