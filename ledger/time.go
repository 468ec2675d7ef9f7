package ledger

import "time"

// =============================================================================
// DATE - Calendar day without time-of-day
// =============================================================================

// Date is a calendar date (UTC, day granularity). Due dates, entry dates, and
// pricing ranges are all plain dates; comparing them never involves clocks or
// zones.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now().UTC()) }

// ParseDate parses a "2006-01-02" calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// nowUTC is the single timestamp source for created-at fields.
func nowUTC() time.Time { return time.Now().UTC() }

// Comparison
func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool {
	return d.Before(other) || d.Equal(other)
}
func (d Date) AfterOrEqual(other Date) bool {
	return d.After(other) || d.Equal(other)
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date   { return DateOf(d.Time.AddDate(0, 0, n)) }
func (d Date) AddWeeks(n int) Date  { return DateOf(d.Time.AddDate(0, 0, 7*n)) }
func (d Date) AddMonths(n int) Date { return DateOf(d.Time.AddDate(0, n, 0)) }

// DaysUntil returns the whole number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.normalize().Sub(d.normalize()).Hours() / 24)
}

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.normalize().Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }

// SameMonthDay compares month and day only, ignoring the year. Used for
// recurring holiday matching.
func (d Date) SameMonthDay(other Date) bool {
	return d.Month() == other.Month() && d.Day() == other.Day()
}

func (d Date) String() string { return d.normalize().Format("2006-01-02") }
