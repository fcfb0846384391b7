package memory

import (
	"context"
	"errors"
	"testing"

	"wealthwise/internal/core"
)

func TestWriterAppendEntries(t *testing.T) {
	w := New()
	ctx := context.Background()

	ref, err := w.AppendEntries(ctx, 7, []core.Entry{
		{ID: 1, CategoryName: "Salary", Kind: core.KindIncome, Amount: core.Money{Cents: 300000}, Date: core.NewDate(2024, 2, 15)},
		{ID: 2, CategoryName: "Food", Kind: core.KindExpense, Amount: core.Money{Cents: 1250}, Date: core.NewDate(2024, 2, 16), Description: "Lunch"},
	})
	if err != nil || ref != "mem:1-2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	rows := w.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[1][5] != "-12.50" {
		t.Errorf("expense amount = %v, want -12.50", rows[1][5])
	}

	if ref, err := w.AppendEntries(ctx, 7, nil); err != nil || ref != "" {
		t.Errorf("empty append: ref=%q err=%v", ref, err)
	}
}

func TestWriterFailure(t *testing.T) {
	w := New()
	boom := errors.New("quota exceeded")
	w.FailWith(boom)

	_, err := w.AppendEntries(context.Background(), 1, []core.Entry{{ID: 1}})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(w.Rows()) != 0 {
		t.Error("failed append must not record rows")
	}
}
