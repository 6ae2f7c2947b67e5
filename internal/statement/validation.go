package statement

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dataconta/internal/models"
	apperrors "dataconta/pkg/errors"
)

const (
	// MaxRangeDays is the longest accepted reporting span
	MaxRangeDays = 730
	// MaxFutureDays is how far past today an end date may fall
	MaxFutureDays = 30
)

var sanityFactor = decimal.NewFromInt(3)

// Validator checks date ranges against an injectable clock
type Validator struct {
	now func() time.Time
}

// NewValidator creates a Validator; a nil clock means time.Now
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// ParseDateRange parses and validates a YYYY-MM-DD date pair
func (v *Validator) ParseDateRange(start, end string) (time.Time, time.Time, error) {
	s, e, err := v.parseDates(start, end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if err := v.ValidateDateRange(s, e); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}

func (v *Validator) parseDates(start, end string) (time.Time, time.Time, error) {
	s, err := models.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.DateRangeError(apperrors.CodeInvalidDateFormat, start, end, err)
	}
	e, err := models.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.DateRangeError(apperrors.CodeInvalidDateFormat, start, end, err)
	}
	return s, e, nil
}

// ValidateDateRange rejects reversed, overlong or far-future ranges
func (v *Validator) ValidateDateRange(start, end time.Time) error {
	if err := v.validateSpan(start, end); err != nil {
		return err
	}

	if today := models.Civil(v.now()); end.After(today) {
		if days := int(end.Sub(today).Hours() / 24); days > MaxFutureDays {
			return apperrors.DateRangeError(apperrors.CodeTooFarInFuture, start.Format(models.DateLayout), end.Format(models.DateLayout), nil).
				WithContext("days_in_future", days)
		}
	}
	return nil
}

func (v *Validator) validateSpan(start, end time.Time) error {
	s, e := start.Format(models.DateLayout), end.Format(models.DateLayout)
	if !start.Before(end) {
		return apperrors.DateRangeError(apperrors.CodeStartNotBeforeEnd, s, e, nil)
	}
	if days := int(end.Sub(start).Hours() / 24); days > MaxRangeDays {
		return apperrors.DateRangeError(apperrors.CodeRangeTooLong, s, e, nil).
			WithContext("days", days)
	}
	return nil
}

// SourceItem is one raw line of categorized accounting data
type SourceItem struct {
	AccountCode string          `json:"codigo"`
	Description string          `json:"descripcion"`
	Value       decimal.Decimal `json:"valor"`
}

// MatchKey identifies the item across periods: the account code, or the
// description for lines without one
func (i SourceItem) MatchKey() string {
	if i.AccountCode != "" {
		return i.AccountCode
	}
	return "\x00" + i.Description
}

// SourceData maps category keys to their raw items
type SourceData map[string][]SourceItem

// Keys returns the keys present, sorted
func (d SourceData) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total sums the items of one key
func (d SourceData) Total(key string) decimal.Decimal {
	total := decimal.Zero
	for _, item := range d[key] {
		total = total.Add(item.Value)
	}
	return total
}

// Totals computes the category totals of the dataset
func (d SourceData) Totals() Totals {
	var t Totals
	for _, c := range Categories() {
		t.values[c] = d.Total(c.Key())
	}
	return t
}

// EmptySourceData returns a dataset carrying every required key with no items
func EmptySourceData() SourceData {
	data := make(SourceData, numCategories)
	for _, key := range categoryKeys {
		data[key] = []SourceItem{}
	}
	return data
}

// ValidateSourceData fails when a required category key is missing
func ValidateSourceData(data SourceData) error {
	for _, key := range categoryKeys {
		if _, ok := data[key]; !ok {
			available := data.Keys()
			return apperrors.DataValidationError(apperrors.CodeMissingSection, key, available, nil).
				WithDetail("available keys: " + strings.Join(available, ", "))
		}
	}
	return nil
}

// ValidateTotals rejects negative revenue, cost or operating expense totals.
// When costs plus expenses exceed three times revenue it returns a
// calculation error for which apperrors.IsWarning is true; the caller decides
// whether that is fatal.
func ValidateTotals(t Totals) error {
	revenue := t.Of(Revenue)
	costs := t.Of(CostOfSales)
	expenses := t.OperatingExpenses()

	checks := []struct {
		concept string
		value   decimal.Decimal
	}{
		{"revenue", revenue},
		{"cost of sales", costs},
		{"operating expenses", expenses},
	}
	for _, check := range checks {
		if check.value.IsNegative() {
			return apperrors.CalculationError(apperrors.CodeNegativeTotal, check.concept, check.value.String())
		}
	}

	if revenue.IsPositive() && costs.Add(expenses).GreaterThan(revenue.Mul(sanityFactor)) {
		return apperrors.CalculationError(apperrors.CodeSanityExceeded, "costs and expenses", costs.Add(expenses).String()).
			WithContext("revenue", revenue.String())
	}
	return nil
}
