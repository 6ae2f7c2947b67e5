// Package bi flattens sales invoices into a star schema for Power BI: one
// fact table of invoice lines and five deduplicated dimension tables.
package bi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dataconta/internal/models"
)

// Placeholder keys used when an invoice has no items, payments or seller
const (
	NoItem    = "NO_ITEM"
	NoPayment = "NO_PAYMENT"
	NoSeller  = "NO_SELLER"
)

// Unspecified fills dimension attributes the data does not carry
const Unspecified = "No Especificado"

// maxObservations bounds the observation text stored on each fact
const maxObservations = 500

// Fact is the finest grain: one invoice line crossed with one payment
type Fact struct {
	InvoiceID     string
	Date          string
	ClientID      string
	SellerID      string
	ProductCode   string
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	Discount      decimal.Decimal
	LineTotal     decimal.Decimal
	PaymentID     string
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Taxes         decimal.Decimal
	Total         decimal.Decimal
	Status        string
	Observations  string
}

// Client is a row of the clients dimension
type Client struct {
	ID             string
	Identification string
	Name           string
	Email          string
	Type           string
	Regime         string
}

// Seller is a row of the sellers dimension
type Seller struct {
	ID   string
	Name string
	Zone string
}

// Product is a row of the products dimension
type Product struct {
	Code          string
	Description   string
	Category      string
	StandardPrice decimal.Decimal
}

// Payment is a row of the payment-methods dimension
type Payment struct {
	ID       string
	Name     string
	Category string
}

// Date is a row of the calendar dimension
type Date struct {
	Date      string
	Year      int
	Month     int
	Day       int
	Quarter   int
	MonthName string
	DayName   string
}

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// indexed by time.Weekday, Sunday first
var dayNames = [...]string{
	"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado",
}

// NewDate builds the calendar row of t
func NewDate(t time.Time) Date {
	return Date{
		Date:      t.Format(models.DateLayout),
		Year:      t.Year(),
		Month:     int(t.Month()),
		Day:       t.Day(),
		Quarter:   (int(t.Month())-1)/3 + 1,
		MonthName: monthNames[t.Month()-1],
		DayName:   dayNames[t.Weekday()],
	}
}

// Schema holds the fact table and the dimensions in first-seen order.
// A dimension row is never replaced once its key has been seen.
type Schema struct {
	Facts    []Fact
	Clients  []Client
	Sellers  []Seller
	Products []Product
	Payments []Payment
	Dates    []Date

	invoices int
	seen     map[string]map[string]bool
}

// Stats summarizes a schema
type Stats struct {
	Invoices int `json:"processed_invoices"`
	Facts    int `json:"total_facts"`
	Clients  int `json:"unique_clients"`
	Sellers  int `json:"unique_sellers"`
	Products int `json:"unique_products"`
	Payments int `json:"unique_payments"`
	Dates    int `json:"unique_dates"`
}

// Build flattens invoices into a star schema
func Build(invoices []models.Invoice) *Schema {
	s := &Schema{seen: make(map[string]map[string]bool)}
	for _, inv := range invoices {
		s.add(inv)
	}
	return s
}

// Stats returns the row counts of every table
func (s *Schema) Stats() Stats {
	return Stats{
		Invoices: s.invoices,
		Facts:    len(s.Facts),
		Clients:  len(s.Clients),
		Sellers:  len(s.Sellers),
		Products: len(s.Products),
		Payments: len(s.Payments),
		Dates:    len(s.Dates),
	}
}

// firstSeen records key in the named dimension and reports whether it is new
func (s *Schema) firstSeen(dimension, key string) bool {
	keys, ok := s.seen[dimension]
	if !ok {
		keys = make(map[string]bool)
		s.seen[dimension] = keys
	}
	if keys[key] {
		return false
	}
	keys[key] = true
	return true
}

func (s *Schema) add(inv models.Invoice) {
	s.invoices++

	var date string
	if !inv.Date.IsZero() {
		d := NewDate(inv.Date.Time)
		date = d.Date
		if s.firstSeen("dates", date) {
			s.Dates = append(s.Dates, d)
		}
	}

	clientID := models.NormalizeNIT(inv.Customer.Identification)
	if s.firstSeen("clients", clientID) {
		kind, regime := ClientInfo(inv.Observations)
		s.Clients = append(s.Clients, Client{
			ID:             clientID,
			Identification: inv.Customer.Identification,
			Name:           inv.Customer.DisplayName(),
			Type:           kind,
			Regime:         regime,
		})
	}

	sellerID, sellerName := NoSeller, "Sin vendedor"
	if inv.Seller != 0 {
		sellerID = strconv.Itoa(inv.Seller)
		sellerName = "Vendedor " + sellerID
	}
	if s.firstSeen("sellers", sellerID) {
		s.Sellers = append(s.Sellers, Seller{ID: sellerID, Name: sellerName, Zone: Unspecified})
	}

	items := inv.Items
	if len(items) == 0 {
		items = []models.InvoiceItem{{Code: NoItem, Description: "Sin items"}}
	}
	payments := inv.Payments
	if len(payments) == 0 {
		payments = []models.Payment{{Name: "Sin pago"}}
	}

	discountTotal := decimal.Zero
	for _, item := range inv.Items {
		discountTotal = discountTotal.Add(item.Discount)
	}

	status := Unspecified
	if inv.Stamp != nil && inv.Stamp.Status != "" {
		status = inv.Stamp.Status
	}
	observations := truncateRunes(strings.TrimSpace(inv.Observations), maxObservations)
	subtotal, taxes := inv.Subtotal(), inv.TaxTotal()

	for _, item := range items {
		code := s.addProduct(item)
		for _, p := range payments {
			s.Facts = append(s.Facts, Fact{
				InvoiceID:     invoiceID(inv),
				Date:          date,
				ClientID:      clientID,
				SellerID:      sellerID,
				ProductCode:   code,
				Quantity:      item.Quantity,
				Price:         item.Price,
				Discount:      item.Discount,
				LineTotal:     item.Subtotal(),
				PaymentID:     s.addPayment(p),
				Subtotal:      subtotal,
				DiscountTotal: discountTotal,
				Taxes:         taxes,
				Total:         inv.Total,
				Status:        status,
				Observations:  observations,
			})
		}
	}
}

func (s *Schema) addProduct(item models.InvoiceItem) string {
	code := strings.TrimSpace(item.Code)
	if s.firstSeen("products", code) {
		s.Products = append(s.Products, Product{
			Code:          code,
			Description:   item.Description,
			Category:      ProductCategory(item.Description),
			StandardPrice: item.Price,
		})
	}
	return code
}

func (s *Schema) addPayment(p models.Payment) string {
	id := NoPayment
	if p.ID != 0 {
		id = strconv.Itoa(p.ID)
	}
	if s.firstSeen("payments", id) {
		s.Payments = append(s.Payments, Payment{ID: id, Name: p.Name, Category: PaymentCategory(p.Name)})
	}
	return id
}

func invoiceID(inv models.Invoice) string {
	switch {
	case inv.ID != "":
		return inv.ID
	case inv.Name != "":
		return inv.Name
	default:
		return strconv.Itoa(inv.Number)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Validation is the outcome of a referential-integrity check
type Validation struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

// Validate checks that every fact key resolves to a dimension row and that
// the schema has facts and clients at all
func (s *Schema) Validate() Validation {
	v := Validation{Valid: true, Warnings: []string{}, Errors: []string{}}

	if len(s.Facts) == 0 {
		v.Valid = false
		v.Errors = append(v.Errors, "no fact data")
	}
	if len(s.Clients) == 0 {
		v.Valid = false
		v.Errors = append(v.Errors, "no clients dimension data")
	}

	keys := []struct {
		dimension string
		key       func(Fact) string
	}{
		{"clients", func(f Fact) string { return f.ClientID }},
		{"sellers", func(f Fact) string { return f.SellerID }},
		{"products", func(f Fact) string { return f.ProductCode }},
		{"payments", func(f Fact) string { return f.PaymentID }},
		{"dates", func(f Fact) string { return f.Date }},
	}
	for _, k := range keys {
		orphans := make(map[string]bool)
		for _, f := range s.Facts {
			if key := k.key(f); !s.seen[k.dimension][key] {
				orphans[key] = true
			}
		}
		if len(orphans) == 0 {
			continue
		}
		list := make([]string, 0, len(orphans))
		for key := range orphans {
			list = append(list, fmt.Sprintf("%q", key))
		}
		sort.Strings(list)
		v.Warnings = append(v.Warnings, fmt.Sprintf("orphaned %s keys in facts: %s", k.dimension, strings.Join(list, ", ")))
	}

	return v
}
