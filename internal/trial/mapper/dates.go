package mapper

import "time"

// Registry dates arrive in exactly two textual shapes. Anything else,
// including the empty string, maps to absent rather than an error: a bad date
// is a data quality fact, not an ingest failure.
const (
	yearMonthLayout = "2006-01"
	fullDateLayout  = "2006-01-02"
)

// ParseDate recovers a calendar date from a registry date string, or nil.
// YYYY-MM resolves to the first day of the month.
func ParseDate(s string) *time.Time {
	var (
		t   time.Time
		err error
	)
	switch len(s) {
	case len(yearMonthLayout):
		t, err = time.Parse(yearMonthLayout, s)
	case len(fullDateLayout):
		t, err = time.Parse(fullDateLayout, s)
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return &t
}
