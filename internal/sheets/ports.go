// Package sheets declares the spreadsheet export ports.
package sheets

import (
	"context"

	"wealthwise/internal/core"
)

// Header is the column layout of exported ledger rows.
var Header = []string{"Date", "User", "Kind", "Category", "Description", "Amount", "Entry ID"}

// Ports for outbound adapters.
type (
	// EntryWriter appends ledger entries as spreadsheet rows and returns a
	// reference to the written range.
	EntryWriter interface {
		AppendEntries(ctx context.Context, userID int64, entries []core.Entry) (rowRef string, err error)
	}
)

// Row renders one entry in Header order. Amounts are decimal strings and
// expenses are negative so the sheet can sum a column.
func Row(userID int64, e core.Entry) []any {
	amount := e.Amount.String()
	if e.Kind == core.KindExpense {
		amount = "-" + amount
	}
	return []any{
		e.Date.String(),
		userID,
		string(e.Kind),
		e.CategoryName,
		e.Description,
		amount,
		e.ID,
	}
}
