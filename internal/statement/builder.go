package statement

import (
	"time"

	"github.com/shopspring/decimal"

	"dataconta/internal/models"
)

// Build assembles an IncomeStatement from the current dataset and, when a
// comparison period is given, the comparison dataset.
//
// Each current item takes as prior value the sum of the comparison items
// with the same account code in the same category. Lines without a code
// match by description. Items without a match keep a nil prior value.
func Build(current models.PeriodRange, comparison *models.PeriodRange, data, prior SourceData, generatedAt time.Time) (*IncomeStatement, error) {
	if err := ValidateSourceData(data); err != nil {
		return nil, err
	}

	if comparison != nil {
		if prior == nil {
			prior = EmptySourceData()
		}
		if err := ValidateSourceData(prior); err != nil {
			return nil, err
		}
	}

	s := NewIncomeStatement(current, comparison, generatedAt)

	for _, c := range Categories() {
		var index map[string]decimal.Decimal
		if comparison != nil {
			index = indexByKey(prior[c.Key()])
		}

		for _, raw := range data[c.Key()] {
			item := LineItem{
				AccountCode: raw.AccountCode,
				Description: raw.Description,
				Current:     raw.Value,
			}
			if v, ok := index[raw.MatchKey()]; ok {
				p := v
				item.Prior = &p
			}
			s.Add(c, item)
		}
	}

	if comparison != nil {
		t := prior.Totals()
		s.priorTotals = &t
	}

	return s, nil
}

func indexByKey(items []SourceItem) map[string]decimal.Decimal {
	index := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		key := item.MatchKey()
		index[key] = index[key].Add(item.Value)
	}
	return index
}
