// Package cycle implements calendar-month arithmetic for ledger cycles.
//
// A cycle is identified by its (year, month) key and serialized as
// "YYYY-MM". All functions are pure; callers decide which location a
// timestamp is interpreted in before handing it over.
package cycle

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Key identifies one calendar-month cycle. The zero Key means "unset".
type Key struct {
	Year  int
	Month time.Month
}

// Order is the result of comparing two keys.
type Order int

const (
	Before Order = -1
	Same   Order = 0
	After  Order = 1
)

var ErrInvalidKey = errors.New("invalid cycle key")

func New(year int, month time.Month) Key {
	return Key{Year: year, Month: month}
}

// Of returns the cycle containing t, read in t's own location.
func Of(t time.Time) Key {
	return Key{Year: t.Year(), Month: t.Month()}
}

// Parse reads a strict "YYYY-MM" key.
func Parse(s string) (Key, error) {
	if len(s) != 7 || s[4] != '-' {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 1 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	month, err := strconv.Atoi(s[5:])
	if err != nil || month < 1 || month > 12 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key{Year: year, Month: time.Month(month)}, nil
}

func (k Key) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

func (k Key) IsZero() bool {
	return k == Key{}
}

// Prev returns the previous cycle, wrapping January into December.
func (k Key) Prev() Key {
	if k.Month == time.January {
		return Key{Year: k.Year - 1, Month: time.December}
	}
	return Key{Year: k.Year, Month: k.Month - 1}
}

// Next returns the following cycle, wrapping December into January.
func (k Key) Next() Key {
	if k.Month == time.December {
		return Key{Year: k.Year + 1, Month: time.January}
	}
	return Key{Year: k.Year, Month: k.Month + 1}
}

func (k Key) Compare(o Key) Order {
	switch {
	case k.Year < o.Year, k.Year == o.Year && k.Month < o.Month:
		return Before
	case k == o:
		return Same
	default:
		return After
	}
}

func (k Key) Before(o Key) bool { return k.Compare(o) == Before }
func (k Key) After(o Key) bool  { return k.Compare(o) == After }

// DaysIn returns the number of days in the cycle's month.
func (k Key) DaysIn() int {
	return time.Date(k.Year, k.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay returns min(day, DaysIn()).
func (k Key) ClampDay(day int) int {
	if last := k.DaysIn(); day > last {
		return last
	}
	return day
}

// Date returns the given day of the cycle at UTC midnight. The day is
// clamped to the month length.
func (k Key) Date(day int) time.Time {
	return time.Date(k.Year, k.Month, k.ClampDay(day), 0, 0, 0, 0, time.UTC)
}

// FirstDay is Date(1).
func (k Key) FirstDay() time.Time {
	return k.Date(1)
}

// Range returns [first day of k, first day of the next cycle).
func (k Key) Range() (start, end time.Time) {
	return k.FirstDay(), k.Next().FirstDay()
}

// Contains reports whether t falls inside the cycle, read in t's location.
func (k Key) Contains(t time.Time) bool {
	return Of(t) == k
}

// First returns the first cycle in which payday-driven entries apply for an
// account created at createdAt: the creation cycle when the account was
// opened on or before that cycle's clamped payday, otherwise the next one.
func First(createdAt time.Time, paydayDay int) Key {
	created := Of(createdAt)
	if createdAt.Day() <= created.ClampDay(paydayDay) {
		return created
	}
	return created.Next()
}

// Last returns the n cycles ending at k, oldest first.
func Last(k Key, n int) []Key {
	if n <= 0 {
		return nil
	}
	keys := make([]Key, n)
	for i := n - 1; i >= 0; i-- {
		keys[i] = k
		k = k.Prev()
	}
	return keys
}

func (k Key) MarshalText() ([]byte, error) {
	if k.IsZero() {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = Key{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
