package kpi

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataconta/internal/models"
)

func march() models.PeriodRange {
	return models.NewPeriodRange(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		"Marzo 2024",
	)
}

func invoice(nit, name, total string, day int) models.Invoice {
	inv := models.Invoice{
		Customer: models.Customer{Identification: nit, Name: []string{name}},
		Total:    decimal.RequireFromString(total),
	}
	if day != 0 {
		inv.Date = models.NewDate(time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC))
	}
	return inv
}

func TestCalculate_NoData(t *testing.T) {
	k := Calculate(nil, march())

	assert.Equal(t, StatusNoData, k.Status)
	assert.Equal(t, NoData, k.Distribution)
	assert.Nil(t, k.TopClient)
	assert.Nil(t, k.TopClientShare)
	assert.Empty(t, k.Clients)
	assert.Equal(t, 0, k.InvoiceCount)
	assert.True(t, k.TotalSales.IsZero())
}

func TestCalculate_Aggregates(t *testing.T) {
	invoices := []models.Invoice{
		invoice("900.123.456-7", "Comercial Andina", "1190000", 5),
		invoice("900123456", "Comercial Andina", "810000", 12),
		invoice("800197268", "Distribuciones Caribe", "1000000", 20),
		invoice("800197268", "Distribuciones Caribe", "500000", 0),
		invoice("700111222", "Fuera de Periodo", "9999999", 0),
	}
	// dated in April, ignored
	invoices[4].Date = models.NewDate(time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))

	k := Calculate(invoices, march())

	require.Equal(t, StatusActive, k.Status)
	assert.Equal(t, 4, k.InvoiceCount)
	assert.Equal(t, 2, k.ActiveClients)
	assert.True(t, k.TotalSales.Equal(decimal.NewFromInt(3500000)), k.TotalSales.String())
	assert.True(t, k.AverageTicket.Equal(decimal.NewFromInt(875000)), k.AverageTicket.String())

	require.Len(t, k.Clients, 2)
	top := k.Clients[0]
	assert.Equal(t, "900123456", top.NIT)
	assert.Equal(t, "Comercial Andina", top.Name)
	assert.Equal(t, 2, top.InvoiceCount)
	assert.True(t, top.Total.Equal(decimal.NewFromInt(2000000)))
	assert.True(t, top.AverageTicket.Equal(decimal.NewFromInt(1000000)))
	assert.True(t, top.Share.Equal(decimal.RequireFromString("57.14")), top.Share.String())

	second := k.Clients[1]
	assert.Equal(t, "800197268", second.NIT)
	assert.True(t, second.AverageTicket.Equal(decimal.NewFromInt(750000)))
	assert.True(t, second.Share.Equal(decimal.RequireFromString("42.86")), second.Share.String())

	require.NotNil(t, k.TopClient)
	assert.Equal(t, top.NIT, k.TopClient.NIT)
	require.NotNil(t, k.TopClientShare)
	assert.True(t, k.TopClientShare.Equal(decimal.RequireFromString("57.14")))
	assert.True(t, k.MaxClientSales.Equal(decimal.NewFromInt(2000000)))
	assert.True(t, k.MinClientSales.Equal(decimal.NewFromInt(1500000)))
	assert.True(t, k.MarketAverageTicket.Equal(decimal.NewFromInt(875000)), k.MarketAverageTicket.String())
	assert.Equal(t, VeryConcentrated, k.Distribution)
}

func TestCalculate_Distribution(t *testing.T) {
	tests := []struct {
		name   string
		totals []string
		expect Distribution
	}{
		{name: "single client", totals: []string{"100"}, expect: VeryConcentrated},
		{name: "exactly fifty", totals: []string{"50", "25", "25"}, expect: VeryConcentrated},
		{name: "concentrated", totals: []string{"40", "35", "25"}, expect: Concentrated},
		{name: "exactly thirty", totals: []string{"30", "30", "20", "20"}, expect: Concentrated},
		{name: "moderate", totals: []string{"20", "20", "20", "20", "20"}, expect: Moderate},
		{name: "distributed", totals: []string{"10", "10", "10", "10", "10", "10", "10", "10", "10", "10"}, expect: Distributed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var invoices []models.Invoice
			for i, total := range tt.totals {
				invoices = append(invoices, invoice(fmt.Sprintf("9000000%02d", i), "Cliente", total, 10))
			}

			k := Calculate(invoices, march())
			assert.Equal(t, tt.expect, k.Distribution)
		})
	}
}

func TestCalculate_TiesSortByNIT(t *testing.T) {
	invoices := []models.Invoice{
		invoice("900000003", "C", "100", 1),
		invoice("900000001", "A", "100", 1),
		invoice("900000002", "B", "100", 1),
	}

	k := Calculate(invoices, march())

	require.Len(t, k.Clients, 3)
	assert.Equal(t, "900000001", k.Clients[0].NIT)
	assert.Equal(t, "900000002", k.Clients[1].NIT)
	assert.Equal(t, "900000003", k.Clients[2].NIT)
	assert.True(t, k.Clients[0].Share.Equal(decimal.RequireFromString("33.33")))
}

func TestCalculate_ZeroTotals(t *testing.T) {
	k := Calculate([]models.Invoice{invoice("900000001", "A", "0", 3)}, march())

	assert.Equal(t, StatusActive, k.Status)
	assert.Nil(t, k.TopClientShare)
	assert.Equal(t, NoData, k.Distribution)
	require.NotNil(t, k.TopClient)
	assert.True(t, k.TopClient.Share.IsZero())
}
