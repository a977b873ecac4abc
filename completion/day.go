package completion

import (
	"time"
)

// =============================================================================
// DAY - Calendar day bucket for day-logs
// =============================================================================

const (
	// DayLayout is the ISO date format used in file names and records.
	DayLayout = "2006-01-02"

	// DisplayLayout is the pt-BR display format shown in report listings.
	DisplayLayout = "02/01/2006"
)

// Day is a calendar date in the local time zone. The zero Day is invalid.
type Day struct {
	Time time.Time
}

// Constructors
func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.Local)}
}

func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// ParseDay parses an ISO date ("2006-01-02").
func ParseDay(s string) (Day, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.Local)
	if err != nil {
		return Day{}, err
	}
	return DayOf(t), nil
}

// Formatting
func (d Day) String() string  { return d.Time.Format(DayLayout) }
func (d Day) Display() string { return d.Time.Format(DisplayLayout) }
func (d Day) IsZero() bool    { return d.Time.IsZero() }

// Comparison
func (d Day) Before(other Day) bool { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool  { return d.Time.After(other.Time) }
func (d Day) Equal(other Day) bool  { return d.String() == other.String() }

// Arithmetic
func (d Day) AddDays(n int) Day { return DayOf(d.Time.AddDate(0, 0, n)) }

// Range returns every day in [from, to], oldest first.
func Range(from, to Day) []Day {
	var days []Day
	for cur := from; !cur.After(to); cur = cur.AddDays(1) {
		days = append(days, cur)
	}
	return days
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current time. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
