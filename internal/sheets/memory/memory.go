// Package memory is an in-process sheets.EntryWriter for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"wealthwise/internal/core"
	"wealthwise/internal/sheets"
)

type Writer struct {
	mu   sync.Mutex
	rows [][]any
	err  error
}

var _ sheets.EntryWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// FailWith makes subsequent appends return err. Pass nil to recover.
func (w *Writer) FailWith(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

func (w *Writer) AppendEntries(_ context.Context, userID int64, entries []core.Entry) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return "", w.err
	}
	if len(entries) == 0 {
		return "", nil
	}
	first := len(w.rows) + 1
	for _, e := range entries {
		w.rows = append(w.rows, sheets.Row(userID, e))
	}
	return fmt.Sprintf("mem:%d-%d", first, len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]any, len(w.rows))
	copy(out, w.rows)
	return out
}
