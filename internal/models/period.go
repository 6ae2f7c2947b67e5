package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the civil date layout used on every input and output surface
const DateLayout = "2006-01-02"

// PeriodRange is an inclusive range of civil dates with a display label.
// Values are immutable once constructed.
type PeriodRange struct {
	start time.Time
	end   time.Time
	label string
}

// NewPeriodRange creates a PeriodRange, truncating both dates to midnight UTC
func NewPeriodRange(start, end time.Time, label string) PeriodRange {
	return PeriodRange{
		start: Civil(start),
		end:   Civil(end),
		label: label,
	}
}

// Civil truncates t to midnight UTC of its calendar date
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Start returns the first day of the period
func (p PeriodRange) Start() time.Time { return p.start }

// End returns the last day of the period
func (p PeriodRange) End() time.Time { return p.end }

// Label returns the display label
func (p PeriodRange) Label() string { return p.label }

// IsZero reports whether the period was never set
func (p PeriodRange) IsZero() bool { return p.start.IsZero() && p.end.IsZero() }

// Days returns the number of days in the period, both ends included
func (p PeriodRange) Days() int {
	return int(p.end.Sub(p.start).Hours()/24) + 1
}

// Contains reports whether t falls on a day inside the period
func (p PeriodRange) Contains(t time.Time) bool {
	day := Civil(t)
	return !day.Before(p.start) && !day.After(p.end)
}

// String returns a string representation of the PeriodRange
func (p PeriodRange) String() string {
	return fmt.Sprintf("%s..%s", p.start.Format(DateLayout), p.end.Format(DateLayout))
}

type periodJSON struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Label     string `json:"label"`
}

// MarshalJSON implements custom JSON marshaling for PeriodRange
func (p PeriodRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{
		StartDate: p.start.Format(DateLayout),
		EndDate:   p.end.Format(DateLayout),
		Label:     p.label,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for PeriodRange
func (p *PeriodRange) UnmarshalJSON(data []byte) error {
	var aux periodJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	start, err := ParseDate(aux.StartDate)
	if err != nil {
		return err
	}
	end, err := ParseDate(aux.EndDate)
	if err != nil {
		return err
	}

	*p = NewPeriodRange(start, end, aux.Label)
	return nil
}
