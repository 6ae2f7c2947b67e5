package statement

import (
	"fmt"
	"strings"
	"time"

	"dataconta/internal/models"
	apperrors "dataconta/pkg/errors"
)

// ComparisonMode selects how the comparison period is derived
type ComparisonMode string

const (
	PreviousPeriod ComparisonMode = "previous_period"
	PriorYear      ComparisonMode = "prior_year"
	Custom         ComparisonMode = "custom"
	NoComparison   ComparisonMode = "none"
)

// ParseComparisonMode validates a mode string; empty means previous_period
func ParseComparisonMode(s string) (ComparisonMode, error) {
	switch mode := ComparisonMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return PreviousPeriod, nil
	case PreviousPeriod, PriorYear, Custom, NoComparison:
		return mode, nil
	default:
		return "", apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "comparison", s, nil).
			WithSuggestion("use one of: previous_period, prior_year, custom, none")
	}
}

const labelDate = "02/01/2006"

func rangeLabel(prefix string, start, end time.Time) string {
	return fmt.Sprintf("%s %s - %s", prefix, start.Format(labelDate), end.Format(labelDate))
}

// CurrentPeriod builds the reporting period with its display label
func CurrentPeriod(start, end time.Time) models.PeriodRange {
	return models.NewPeriodRange(start, end, rangeLabel("Periodo", start, end))
}

// PreviousPeriodOf returns the period of equal length ending the day before current starts
func PreviousPeriodOf(current models.PeriodRange) models.PeriodRange {
	duration := current.Days()
	end := current.Start().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(duration - 1))
	return models.NewPeriodRange(start, end, rangeLabel("Periodo anterior", start, end))
}

// PriorYearOf returns the same calendar dates one year earlier
func PriorYearOf(current models.PeriodRange) models.PeriodRange {
	start := yearBefore(current.Start())
	end := yearBefore(current.End())
	return models.NewPeriodRange(start, end, rangeLabel("Mismo periodo año anterior", start, end))
}

// CustomPeriod labels an explicit comparison period
func CustomPeriod(start, end time.Time) models.PeriodRange {
	return models.NewPeriodRange(start, end, rangeLabel("Periodo personalizado", start, end))
}

// yearBefore moves t back one year; 29 February becomes 28 February
func yearBefore(t time.Time) time.Time {
	y, m, d := t.Date()
	if m == time.February && d == 29 {
		d = 28
	}
	return time.Date(y-1, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodRequest is the caller's raw period selection
type PeriodRequest struct {
	Start        string
	End          string
	Mode         ComparisonMode
	CompareStart string
	CompareEnd   string
}

// ResolvePeriods validates a request and returns the current and comparison periods
func (v *Validator) ResolvePeriods(req PeriodRequest) (models.PeriodRange, *models.PeriodRange, error) {
	start, end, err := v.ParseDateRange(req.Start, req.End)
	if err != nil {
		return models.PeriodRange{}, nil, err
	}
	current := CurrentPeriod(start, end)

	mode := req.Mode
	if mode == "" {
		mode = PreviousPeriod
	}

	var comparison models.PeriodRange
	switch mode {
	case PreviousPeriod:
		comparison = PreviousPeriodOf(current)
	case PriorYear:
		comparison = PriorYearOf(current)
	case Custom:
		if strings.TrimSpace(req.CompareStart) == "" || strings.TrimSpace(req.CompareEnd) == "" {
			return models.PeriodRange{}, nil, apperrors.DateRangeError(apperrors.CodeMissingComparison, req.CompareStart, req.CompareEnd, nil)
		}
		cs, ce, err := v.parseDates(req.CompareStart, req.CompareEnd)
		if err != nil {
			return models.PeriodRange{}, nil, err
		}
		if err := v.validateSpan(cs, ce); err != nil {
			return models.PeriodRange{}, nil, err
		}
		comparison = CustomPeriod(cs, ce)
	case NoComparison:
		return current, nil, nil
	default:
		_, err := ParseComparisonMode(string(mode))
		return models.PeriodRange{}, nil, err
	}

	return current, &comparison, nil
}
