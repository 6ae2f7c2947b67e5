package statement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_CodelessItemsMatchByDescription(t *testing.T) {
	current := period("2024-03-01", "2024-03-31")
	comparison := PreviousPeriodOf(current)

	data := fullData(map[string][]SourceItem{
		"gastos_admin": {
			{Description: "Arriendo", Value: d("110")},
			{Description: "Nomina", Value: d("220")},
			{Description: "Papeleria", Value: d("15")},
		},
	})
	prior := fullData(map[string][]SourceItem{
		"gastos_admin": {
			{Description: "Arriendo", Value: d("100")},
			{Description: "Nomina", Value: d("200")},
		},
	})

	s, err := Build(current, &comparison, data, prior, time.Now())
	require.NoError(t, err)

	items := s.Items(AdminExpenses)
	require.Len(t, items, 3)

	tests := []struct {
		description string
		prior       string
		variance    string
	}{
		{"Arriendo", "100", "10"},
		{"Nomina", "200", "20"},
	}
	for i, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			item := items[i]
			assert.Equal(t, tt.description, item.Description)
			require.NotNil(t, item.Prior)
			assert.True(t, item.Prior.Equal(d(tt.prior)), "prior %s", item.Prior)
			assert.True(t, item.Variance().Equal(d(tt.variance)), "variance %s", item.Variance())
			assert.True(t, item.PercentVariance().Equal(d("10")))
		})
	}
	assert.Nil(t, items[2].Prior, "no prior line named Papeleria")

	priorSum := d("0")
	for _, item := range items {
		if item.Prior != nil {
			priorSum = priorSum.Add(*item.Prior)
		}
	}
	assert.True(t, priorSum.Equal(s.PriorTotals().Of(AdminExpenses)), "item priors add up to the prior subtotal")
}

func TestBuild_CodeAndDescriptionDoNotCollide(t *testing.T) {
	current := period("2024-03-01", "2024-03-31")
	comparison := PreviousPeriodOf(current)

	data := fullData(map[string][]SourceItem{
		"ingresos": {
			{AccountCode: "4135", Description: "Ventas", Value: d("50")},
			{Description: "4135", Value: d("70")},
		},
	})
	prior := fullData(map[string][]SourceItem{
		"ingresos": {
			{AccountCode: "4135", Description: "Ventas", Value: d("40")},
		},
	})

	s, err := Build(current, &comparison, data, prior, time.Now())
	require.NoError(t, err)

	items := s.Items(Revenue)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Prior)
	assert.True(t, items[0].Prior.Equal(d("40")))
	assert.Nil(t, items[1].Prior, "a description equal to a code is not that code")
}

func TestSourceItem_MatchKey(t *testing.T) {
	assert.Equal(t, "4135", SourceItem{AccountCode: "4135", Description: "Ventas"}.MatchKey())
	assert.NotEqual(t,
		SourceItem{Description: "Arriendo"}.MatchKey(),
		SourceItem{Description: "Nomina"}.MatchKey())
	assert.NotEqual(t, "Arriendo", SourceItem{Description: "Arriendo"}.MatchKey())
}
