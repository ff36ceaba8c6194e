package core

import (
	"fmt"
	"time"
)

// Month identifies a calendar month, the granularity at which budget
// recommendations are keyed and upserted.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, &ValidationError{Field: "month", Reason: fmt.Sprintf("%q is not in YYYY-MM format", s)}
	}
	return MonthOf(t), nil
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the last day of the month.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, -1)
}

// Days returns the number of calendar days in the month.
func (m Month) Days() int {
	return m.End().Day()
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
