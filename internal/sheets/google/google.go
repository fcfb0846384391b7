package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"wealthwise/internal/core"
	ports "wealthwise/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Ledger"

type Config struct {
	SpreadsheetID string
	// SheetName is the base tab name; each year goes to "<year> <SheetName>".
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ ports.EntryWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account. Extra
// options are appended after the credentials, which lets tests point the
// client at a fake endpoint.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	var clientOpts []goption.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		clientOpts = append(clientOpts, goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", cfg.CredentialsFile)
		clientOpts = append(clientOpts, goption.WithCredentialsFile(cfg.CredentialsFile))
	case len(opts) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON)")
	}
	clientOpts = append(clientOpts, goption.WithScopes(gsheet.SpreadsheetsScope))
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = defaultSheetName
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetBase: base}, nil
}

// AppendEntries appends one row per entry to the tab of the entry's year.
// The returned reference lists the updated ranges, comma separated.
func (c *Client) AppendEntries(ctx context.Context, userID int64, entries []core.Entry) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(entries) == 0 {
		return "", nil
	}

	var refs []string
	for _, group := range groupByYear(entries) {
		sheet := yearPrefixedName(c.sheetBase, group.year)
		rng := fmt.Sprintf("%s!A:G", sheet)
		vr := &gsheet.ValueRange{Values: toRows(userID, group.entries)}

		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return strings.Join(refs, ","), fmt.Errorf("append to %s: %w", sheet, err)
		}

		ref := rng
		if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
			ref = resp.Updates.UpdatedRange
		}
		refs = append(refs, ref)
		slog.InfoContext(ctx, "Appended ledger rows",
			"sheet", sheet,
			"rows", len(group.entries),
			"user_id", userID,
			"range", ref)
	}
	return strings.Join(refs, ","), nil
}

type yearGroup struct {
	year    int
	entries []core.Entry
}

// groupByYear splits entries by calendar year, oldest year first, keeping
// input order within a year.
func groupByYear(entries []core.Entry) []yearGroup {
	idx := map[int]int{}
	var groups []yearGroup
	for _, e := range entries {
		y := e.Date.Year()
		i, ok := idx[y]
		if !ok {
			i = len(groups)
			idx[y] = i
			groups = append(groups, yearGroup{year: y})
		}
		groups[i].entries = append(groups[i].entries, e)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].year < groups[j].year })
	return groups
}

func toRows(userID int64, entries []core.Entry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ports.Row(userID, e))
	}
	return rows
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
