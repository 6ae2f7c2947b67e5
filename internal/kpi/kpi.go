// Package kpi computes sales indicators from the invoices of a period.
package kpi

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"dataconta/internal/models"
)

// Distribution classifies how concentrated sales are on the top client
type Distribution string

const (
	NoData           Distribution = "sin_datos"
	VeryConcentrated Distribution = "muy_concentrada"
	Concentrated     Distribution = "concentrada"
	Moderate         Distribution = "moderada"
	Distributed      Distribution = "distribuida"
)

// Status of the indicator set
type Status string

const (
	StatusActive Status = "ACTIVO"
	StatusNoData Status = "SIN_DATOS"
)

var (
	hundred       = decimal.NewFromInt(100)
	veryThreshold = decimal.NewFromInt(50)
	concThreshold = decimal.NewFromInt(30)
	modThreshold  = decimal.NewFromInt(15)
)

// ClientSales aggregates the invoices of one customer
type ClientSales struct {
	NIT           string          `json:"nit"`
	Name          string          `json:"nombre"`
	Total         decimal.Decimal `json:"total_ventas"`
	InvoiceCount  int             `json:"numero_facturas"`
	AverageTicket decimal.Decimal `json:"ticket_promedio"`
	Share         decimal.Decimal `json:"participacion"`
}

// SalesKPIs is the indicator set of one period
type SalesKPIs struct {
	Period              models.PeriodRange `json:"periodo"`
	TotalSales          decimal.Decimal    `json:"ventas_totales"`
	InvoiceCount        int                `json:"numero_facturas"`
	AverageTicket       decimal.Decimal    `json:"ticket_promedio"`
	Clients             []ClientSales      `json:"ventas_por_cliente"`
	TopClient           *ClientSales       `json:"cliente_top"`
	TopClientShare      *decimal.Decimal   `json:"concentracion_top"`
	MarketAverageTicket decimal.Decimal    `json:"ticket_promedio_mercado"`
	MinClientSales      decimal.Decimal    `json:"venta_minima"`
	MaxClientSales      decimal.Decimal    `json:"venta_maxima"`
	Distribution        Distribution       `json:"distribucion_ventas"`
	ActiveClients       int                `json:"clientes_activos"`
	Status              Status             `json:"estado_sistema"`
	CalculatedAt        time.Time          `json:"fecha_calculo"`
}

// Calculate derives the sales indicators from invoices. Invoice totals
// include taxes. Invoices dated outside period are ignored.
func Calculate(invoices []models.Invoice, period models.PeriodRange) *SalesKPIs {
	k := &SalesKPIs{
		Period:       period,
		Distribution: NoData,
		Status:       StatusNoData,
	}

	byClient := make(map[string]*ClientSales)
	for _, inv := range invoices {
		if !inv.Date.IsZero() && !period.Contains(inv.Date.Time) {
			continue
		}

		nit := models.NormalizeNIT(inv.Customer.Identification)
		c, ok := byClient[nit]
		if !ok {
			c = &ClientSales{NIT: nit, Name: inv.Customer.DisplayName()}
			byClient[nit] = c
		}
		c.Total = c.Total.Add(inv.Total)
		c.InvoiceCount++

		k.TotalSales = k.TotalSales.Add(inv.Total)
		k.InvoiceCount++
	}

	if k.InvoiceCount == 0 {
		return k
	}
	k.Status = StatusActive
	k.AverageTicket = k.TotalSales.DivRound(decimal.NewFromInt(int64(k.InvoiceCount)), 2)

	k.Clients = make([]ClientSales, 0, len(byClient))
	ticketSum := decimal.Zero
	for _, c := range byClient {
		c.AverageTicket = c.Total.DivRound(decimal.NewFromInt(int64(c.InvoiceCount)), 2)
		if !k.TotalSales.IsZero() {
			c.Share = c.Total.Mul(hundred).DivRound(k.TotalSales, 2)
		}
		ticketSum = ticketSum.Add(c.AverageTicket)
		k.Clients = append(k.Clients, *c)
	}
	sort.Slice(k.Clients, func(i, j int) bool {
		if !k.Clients[i].Total.Equal(k.Clients[j].Total) {
			return k.Clients[i].Total.GreaterThan(k.Clients[j].Total)
		}
		return k.Clients[i].NIT < k.Clients[j].NIT
	})

	k.ActiveClients = len(k.Clients)
	k.MarketAverageTicket = ticketSum.DivRound(decimal.NewFromInt(int64(len(k.Clients))), 2)
	k.MaxClientSales = k.Clients[0].Total
	k.MinClientSales = k.Clients[len(k.Clients)-1].Total

	top := k.Clients[0]
	k.TopClient = &top
	if !k.TotalSales.IsZero() {
		share := top.Share
		k.TopClientShare = &share
	}
	k.Distribution = classify(k.TopClientShare)

	return k
}

func classify(share *decimal.Decimal) Distribution {
	switch {
	case share == nil:
		return NoData
	case share.GreaterThanOrEqual(veryThreshold):
		return VeryConcentrated
	case share.GreaterThanOrEqual(concThreshold):
		return Concentrated
	case share.GreaterThanOrEqual(modThreshold):
		return Moderate
	default:
		return Distributed
	}
}
