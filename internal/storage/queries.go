package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/ledger"
)

type queries struct {
	db      querier
	dialect Dialect
}

const userColumns = `id, name, email, fixed_income_cents, fixed_expenses_cents, payday_day,
	initial_balance_cents, savings_goal_cents, created_at, updated_at`

const entryColumns = `e.id, e.user_id, e.category_id, c.name, COALESCE(e.description, ''),
	e.amount_cents, e.entry_date, e.kind, e.created_at`

const categoryColumns = `id, name, kind, is_system, user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.rebind(query), args...)
}

// Users

func scanUser(row rowScanner) (core.UserProfile, error) {
	var p core.UserProfile
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.FixedIncome.Cents, &p.FixedExpenses.Cents,
		&p.PaydayDay, &p.InitialBalance.Cents, &p.SavingsGoal.Cents, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *queries) GetUserProfile(ctx context.Context, userID int64) (core.UserProfile, error) {
	p, err := scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get user %d: %w", userID, err)
	}
	return p, nil
}

func (q *queries) CreateUser(ctx context.Context, p core.UserProfile) (core.UserProfile, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt

	err := q.queryRow(ctx, `INSERT INTO users (name, email, fixed_income_cents, fixed_expenses_cents,
		payday_day, initial_balance_cents, savings_goal_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.Name, p.Email, p.FixedIncome.Cents, p.FixedExpenses.Cents,
		p.PaydayDay, p.InitialBalance.Cents, p.SavingsGoal.Cents, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if isUniqueViolation(err) {
		return core.UserProfile{}, core.ErrDuplicateEmail
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("create user: %w", err)
	}
	return p, nil
}

func (q *queries) UpdateUser(ctx context.Context, p core.UserProfile) (core.UserProfile, error) {
	res, err := q.exec(ctx, `UPDATE users SET name = ?, email = ?, fixed_income_cents = ?,
		fixed_expenses_cents = ?, payday_day = ?, initial_balance_cents = ?,
		savings_goal_cents = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Email, p.FixedIncome.Cents, p.FixedExpenses.Cents,
		p.PaydayDay, p.InitialBalance.Cents, p.SavingsGoal.Cents, time.Now().UTC(), p.ID)
	if isUniqueViolation(err) {
		return core.UserProfile{}, core.ErrDuplicateEmail
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("update user %d: %w", p.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.UserProfile{}, core.ErrUserNotFound
	}
	return q.GetUserProfile(ctx, p.ID)
}

func (q *queries) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Categories

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c      core.Category
		kind   string
		userID sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.Name, &kind, &c.IsSystem, &userID); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	c.UserID = userID.Int64
	return c, nil
}

func (q *queries) listCategories(ctx context.Context, where string, args ...any) ([]core.Category, error) {
	rows, err := q.query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE `+where+` ORDER BY kind, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) SystemCategories(ctx context.Context) (core.SystemCatalog, error) {
	cats, err := q.listCategories(ctx, `is_system = ?`, true)
	if err != nil {
		return nil, err
	}
	return core.NewSystemCatalog(cats), nil
}

func (q *queries) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	return q.listCategories(ctx, `is_system = ? OR user_id = ?`, true, userID)
}

func (q *queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(q.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (q *queries) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	var userID sql.NullInt64
	if c.UserID != 0 {
		userID = sql.NullInt64{Int64: c.UserID, Valid: true}
	}
	err := q.queryRow(ctx, `INSERT INTO categories (name, kind, is_system, user_id)
		VALUES (?, ?, ?, ?) RETURNING id`,
		c.Name, string(c.Kind), c.IsSystem, userID,
	).Scan(&c.ID)
	if isUniqueViolation(err) {
		return core.Category{}, core.ErrDuplicateCategory
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// Entries

func scanEntry(row rowScanner) (core.Entry, error) {
	var (
		e    core.Entry
		date string
		kind string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.CategoryID, &e.CategoryName, &e.Description,
		&e.Amount.Cents, &date, &kind, &e.CreatedAt); err != nil {
		return core.Entry{}, err
	}
	// DATE columns come back as RFC 3339 strings from PostgreSQL
	if len(date) > 10 {
		date = date[:10]
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Entry{}, err
	}
	e.Date = d
	e.Kind = core.Kind(kind)
	return e, nil
}

func nullableDescription(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func dateParam(t time.Time) string {
	return t.Format(time.DateOnly)
}

func (q *queries) InsertEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := q.queryRow(ctx, `INSERT INTO entries (user_id, category_id, description, amount_cents,
		entry_date, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.UserID, e.CategoryID, nullableDescription(e.Description), e.Amount.Cents,
		e.Date.String(), string(e.Kind), e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	return e, nil
}

func (q *queries) GetEntry(ctx context.Context, userID, id int64) (core.Entry, error) {
	e, err := scanEntry(q.queryRow(ctx, `SELECT `+entryColumns+`
		FROM entries e JOIN categories c ON c.id = e.category_id
		WHERE e.id = ? AND e.user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, core.ErrEntryNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}

func (q *queries) UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	res, err := q.exec(ctx, `UPDATE entries SET category_id = ?, description = ?, amount_cents = ?,
		entry_date = ?, kind = ? WHERE id = ? AND user_id = ?`,
		e.CategoryID, nullableDescription(e.Description), e.Amount.Cents,
		e.Date.String(), string(e.Kind), e.ID, e.UserID)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry %d: %w", e.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Entry{}, core.ErrEntryNotFound
	}
	return q.GetEntry(ctx, e.UserID, e.ID)
}

func (q *queries) DeleteEntry(ctx context.Context, userID, id int64) error {
	res, err := q.exec(ctx, `DELETE FROM entries WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrEntryNotFound
	}
	return nil
}

// entryWhere turns a filter into a WHERE clause over alias e.
func entryWhere(f ledger.EntryFilter) (string, []any) {
	conds := []string{"e.user_id = ?"}
	args := []any{f.UserID}

	if f.CategoryID != 0 {
		conds = append(conds, "e.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Kind != "" {
		conds = append(conds, "e.kind = ?")
		args = append(args, string(f.Kind))
	}
	if !f.Date.IsZero() {
		conds = append(conds, "e.entry_date = ?")
		args = append(args, f.Date.String())
	}
	if f.Amount != nil {
		conds = append(conds, "e.amount_cents = ?")
		args = append(args, f.Amount.Cents)
	}
	if !f.Cycle.IsZero() {
		start, end := f.Cycle.Range()
		conds = append(conds, "e.entry_date >= ?", "e.entry_date < ?")
		args = append(args, dateParam(start), dateParam(end))
	}
	if !f.From.IsZero() {
		conds = append(conds, "e.entry_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "e.entry_date < ?")
		args = append(args, f.To.String())
	}
	if f.DescriptionLike != "" {
		conds = append(conds, "LOWER(COALESCE(e.description, '')) LIKE LOWER(?)")
		args = append(args, f.DescriptionLike)
	}
	return strings.Join(conds, " AND "), args
}

func (q *queries) FindEntry(ctx context.Context, f ledger.EntryFilter) (bool, error) {
	where, args := entryWhere(f)
	var one int
	err := q.queryRow(ctx, `SELECT 1 FROM entries e WHERE `+where+` LIMIT 1`, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find entry: %w", err)
	}
	return true, nil
}

func (q *queries) ListEntries(ctx context.Context, f ledger.EntryFilter) ([]core.Entry, error) {
	where, args := entryWhere(f)
	query := `SELECT ` + entryColumns + `
		FROM entries e JOIN categories c ON c.id = e.category_id
		WHERE ` + where + ` ORDER BY e.entry_date DESC, e.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) SumEntries(ctx context.Context, userID int64, kind core.Kind, c cycle.Key) (core.Money, error) {
	where, args := entryWhere(ledger.EntryFilter{UserID: userID, Kind: kind, Cycle: c})
	var cents int64
	if err := q.queryRow(ctx, `SELECT COALESCE(SUM(e.amount_cents), 0) FROM entries e WHERE `+where, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum %s entries for %s: %w", kind, c, err)
	}
	return core.Money{Cents: cents}, nil
}

func (q *queries) TotalByKind(ctx context.Context, userID int64, kind core.Kind) (core.Money, error) {
	var cents int64
	err := q.queryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM entries WHERE user_id = ? AND kind = ?`,
		userID, string(kind)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("total %s entries: %w", kind, err)
	}
	return core.Money{Cents: cents}, nil
}

// Analytics

func (q *queries) SumByCategory(ctx context.Context, userID int64, c cycle.Key) ([]core.CategoryTotal, error) {
	where, args := entryWhere(ledger.EntryFilter{UserID: userID, Cycle: c})
	rows, err := q.query(ctx, `SELECT c.name, e.kind, SUM(e.amount_cents) AS total
		FROM entries e JOIN categories c ON c.id = e.category_id
		WHERE `+where+`
		GROUP BY c.name, e.kind
		ORDER BY total DESC, c.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var (
			t    core.CategoryTotal
			kind string
		)
		if err := rows.Scan(&t.Name, &kind, &t.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		t.Kind = core.Kind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *queries) monthExpr() string {
	if q.dialect == DialectPostgres {
		return "to_char(entry_date, 'YYYY-MM')"
	}
	return "substr(entry_date, 1, 7)"
}

func (q *queries) MonthlyTotals(ctx context.Context, userID int64, from, to cycle.Key) ([]core.MonthlyTotal, error) {
	start, _ := from.Range()
	_, end := to.Range()
	month := q.monthExpr()

	rows, err := q.query(ctx, `SELECT `+month+` AS cycle,
		COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents ELSE 0 END), 0)
		FROM entries
		WHERE user_id = ? AND entry_date >= ? AND entry_date < ?
		GROUP BY `+month, userID, dateParam(start), dateParam(end))
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	found := map[string]core.MonthlyTotal{}
	for rows.Next() {
		var t core.MonthlyTotal
		if err := rows.Scan(&t.Cycle, &t.Income.Cents, &t.Expense.Cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		found[t.Cycle] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []core.MonthlyTotal
	for k := from; !k.After(to); k = k.Next() {
		t, ok := found[k.String()]
		if !ok {
			t = core.MonthlyTotal{Cycle: k.String()}
		}
		out = append(out, t)
	}
	return out, nil
}
