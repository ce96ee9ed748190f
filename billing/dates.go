package billing

import (
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date
// =============================================================================

// Date is a calendar date with day granularity, always UTC.
// Enrollment, checkout, and fee effective-dating all operate on whole days;
// the inclusive day count between two Dates is the unit of proration.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func Today() Date { return DateOf(time.Now().UTC()) }

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// MonthKey returns the YYYY-MM identifier of the month containing d.
func (d Date) MonthKey() string { return d.t.Format("2006-01") }

// SameMonth reports whether two dates fall in the same calendar month.
func SameMonth(a, b Date) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// =============================================================================
// CALENDAR MONTH HELPERS
// =============================================================================

// DaysInMonth returns the actual day count of a calendar month (28-31),
// leap-year aware via time.Date normalization.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func StartOfMonth(d Date) Date {
	return NewDate(d.Year(), d.Month(), 1)
}

func EndOfMonth(d Date) Date {
	return NewDate(d.Year(), d.Month(), DaysInMonth(d.Year(), d.Month()))
}

// InclusiveDays counts days between from and to with both endpoints included.
// InclusiveDays(d, d) == 1.
func InclusiveDays(from, to Date) int {
	return int(to.t.Sub(from.t).Hours()/24) + 1
}
