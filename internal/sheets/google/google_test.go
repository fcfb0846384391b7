package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"

	"wealthwise/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "abc"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2024, "2024 Ledger"},
		{"2023 Ledger", 2024, "2023 Ledger"},
		{"  Export ", 2025, "2025 Export"},
		{"", 2024, ""},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
				t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
			}
		})
	}
}

func TestGroupByYear(t *testing.T) {
	entries := []core.Entry{
		{ID: 1, Date: core.NewDate(2024, 1, 1)},
		{ID: 2, Date: core.NewDate(2023, 12, 31)},
		{ID: 3, Date: core.NewDate(2024, 1, 2)},
	}
	groups := groupByYear(entries)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].year != 2023 || len(groups[0].entries) != 1 {
		t.Errorf("first group = %+v", groups[0])
	}
	if groups[1].entries[0].ID != 1 || groups[1].entries[1].ID != 3 {
		t.Errorf("order within year not kept: %+v", groups[1].entries)
	}
}

func TestToRows(t *testing.T) {
	rows := toRows(7, []core.Entry{
		{ID: 10, CategoryName: "Salary", Kind: core.KindIncome, Amount: core.Money{Cents: 300000}, Date: core.NewDate(2024, 2, 15)},
		{ID: 11, CategoryName: "Food", Kind: core.KindExpense, Amount: core.Money{Cents: 999}, Date: core.NewDate(2024, 2, 16), Description: "Pizza"},
	})
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][0] != "2024-02-15" || rows[0][5] != "3000.00" {
		t.Errorf("income row = %v", rows[0])
	}
	if rows[1][4] != "Pizza" || rows[1][5] != "-9.99" {
		t.Errorf("expense row = %v", rows[1])
	}
}

type appendCall struct {
	rng    string
	values [][]any
}

func newFakeSheets(t *testing.T) (*Client, *[]appendCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []appendCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":append") {
			http.Error(w, "unexpected request "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rng := strings.TrimSuffix(r.URL.Path[strings.LastIndex(r.URL.Path, "/values/")+len("/values/"):], ":append")

		mu.Lock()
		calls = append(calls, appendCall{rng: rng, values: body.Values})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": rng, "updatedRows": len(body.Values)},
		})
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, &calls
}

func TestClient_AppendEntries(t *testing.T) {
	c, calls := newFakeSheets(t)

	ref, err := c.AppendEntries(context.Background(), 7, []core.Entry{
		{ID: 1, CategoryName: "Previous-Month Balance", Kind: core.KindIncome, Amount: core.Money{Cents: 50000}, Date: core.NewDate(2024, 1, 1)},
		{ID: 2, CategoryName: "Food", Kind: core.KindExpense, Amount: core.Money{Cents: 1000}, Date: core.NewDate(2023, 12, 31)},
	})
	if err != nil {
		t.Fatalf("AppendEntries() error = %v", err)
	}

	if len(*calls) != 2 {
		t.Fatalf("append calls = %d, want 2", len(*calls))
	}
	if (*calls)[0].rng != "2023 Ledger!A:G" || (*calls)[1].rng != "2024 Ledger!A:G" {
		t.Errorf("ranges = %q, %q", (*calls)[0].rng, (*calls)[1].rng)
	}
	if ref != "2023 Ledger!A:G,2024 Ledger!A:G" {
		t.Errorf("ref = %q", ref)
	}
	if got := (*calls)[1].values[0][5]; got != "500.00" {
		t.Errorf("amount cell = %v, want 500.00", got)
	}
}

func TestClient_AppendEntriesEmpty(t *testing.T) {
	c, calls := newFakeSheets(t)
	ref, err := c.AppendEntries(context.Background(), 7, nil)
	if err != nil || ref != "" || len(*calls) != 0 {
		t.Fatalf("ref=%q err=%v calls=%d", ref, err, len(*calls))
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	if _, err := c.AppendEntries(context.Background(), 1, []core.Entry{{ID: 1}}); err == nil {
		t.Fatal("expected error for nil service")
	}
}
