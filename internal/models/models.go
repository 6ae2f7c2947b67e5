package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date is a calendar date as sent by the Siigo API ("2024-01-15" or RFC 3339)
type Date struct {
	time.Time
}

// NewDate wraps t as a Date truncated to its calendar day
func NewDate(t time.Time) Date {
	return Date{Time: Civil(t)}
}

// MarshalJSON writes the date as YYYY-MM-DD
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON accepts YYYY-MM-DD, RFC 3339 and null
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		d.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}

	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = Civil(t)
			return nil
		}
	}
	return fmt.Errorf("invalid date format %q", s)
}

// Document identifies the Siigo document type used to emit a voucher
type Document struct {
	ID int `json:"id"`
}

// Customer is the third party billed on an invoice or credit note
type Customer struct {
	Identification string   `json:"identification"`
	CheckDigit     string   `json:"check_digit,omitempty"`
	BranchOffice   int      `json:"branch_office"`
	Name           []string `json:"name,omitempty"`
	CommercialName string   `json:"commercial_name,omitempty"`
}

// DisplayName returns the customer's name, falling back to the commercial
// name and then to the identification
func (c Customer) DisplayName() string {
	var parts []string
	for _, p := range c.Name {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if name := strings.TrimSpace(c.CommercialName); name != "" {
		return name
	}
	if c.Identification != "" {
		return c.Identification
	}
	return "Cliente sin nombre"
}

// Tax is a tax or retention line on an invoice
type Tax struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Percentage decimal.Decimal `json:"percentage"`
	Value      decimal.Decimal `json:"value"`
}

// InvoiceItem is a single billed product or service
type InvoiceItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Taxes       []Tax           `json:"taxes,omitempty"`
}

// Subtotal returns quantity × price − discount
func (i InvoiceItem) Subtotal() decimal.Decimal {
	return i.Quantity.Mul(i.Price).Sub(i.Discount)
}

// Payment is a payment method applied to an invoice
type Payment struct {
	ID      int             `json:"id"`
	Name    string          `json:"name,omitempty"`
	Value   decimal.Decimal `json:"value"`
	DueDate Date            `json:"due_date"`
}

// Stamp is the DIAN electronic-invoicing state of a document
type Stamp struct {
	Status string `json:"status"`
}

// Invoice is a sales invoice (Siigo document type FV)
type Invoice struct {
	ID           string          `json:"id"`
	Document     Document        `json:"document"`
	Number       int             `json:"number"`
	Name         string          `json:"name"`
	Date         Date            `json:"date"`
	Customer     Customer        `json:"customer"`
	Items        []InvoiceItem   `json:"items"`
	Payments     []Payment       `json:"payments,omitempty"`
	Taxes        []Tax           `json:"taxes,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Seller       int             `json:"seller,omitempty"`
	CostCenter   int             `json:"cost_center,omitempty"`
	Observations string          `json:"observations,omitempty"`
	Stamp        *Stamp          `json:"stamp,omitempty"`
}

// AllTaxes returns the invoice-level taxes, or the item taxes when the
// invoice carries none of its own
func (inv Invoice) AllTaxes() []Tax {
	if len(inv.Taxes) > 0 {
		return inv.Taxes
	}
	var taxes []Tax
	for _, item := range inv.Items {
		taxes = append(taxes, item.Taxes...)
	}
	return taxes
}

// TaxTotal sums the value of every tax on the invoice
func (inv Invoice) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, tax := range inv.AllTaxes() {
		total = total.Add(tax.Value)
	}
	return total
}

// Subtotal returns the invoice total net of taxes
func (inv Invoice) Subtotal() decimal.Decimal {
	return inv.Total.Sub(inv.TaxTotal())
}

// CreditNote reverses all or part of a sales invoice
type CreditNote struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Date      Date            `json:"date"`
	Customer  Customer        `json:"customer"`
	Total     decimal.Decimal `json:"total"`
	InvoiceID string          `json:"invoice,omitempty"`
}

// Supplier is the third party on a purchase
type Supplier struct {
	Identification string `json:"identification"`
	BranchOffice   int    `json:"branch_office"`
}

// PurchaseItem is a purchase line. Lines of type "Account" post directly
// to the PUC account in Code.
type PurchaseItem struct {
	Type        string          `json:"type"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
}

// AccountCode returns the PUC account posted by the line, if any
func (i PurchaseItem) AccountCode() string {
	if strings.EqualFold(i.Type, "Account") {
		return strings.TrimSpace(i.Code)
	}
	return ""
}

// Value returns quantity × price − discount
func (i PurchaseItem) Value() decimal.Decimal {
	return i.Quantity.Mul(i.Price).Sub(i.Discount)
}

// Purchase is a supplier invoice
type Purchase struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Date     Date            `json:"date"`
	Supplier Supplier        `json:"supplier"`
	Items    []PurchaseItem  `json:"items"`
	Total    decimal.Decimal `json:"total"`
}

// Movement is the side of a journal line
type Movement string

const (
	MovementDebit  Movement = "Debit"
	MovementCredit Movement = "Credit"
)

// JournalAccount names the account and side of a journal line
type JournalAccount struct {
	Code     string   `json:"code"`
	Movement Movement `json:"movement"`
}

// JournalItem is one line of a journal entry
type JournalItem struct {
	Account     JournalAccount  `json:"account"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
}

// IsDebit reports whether the line is a debit
func (i JournalItem) IsDebit() bool {
	return strings.EqualFold(string(i.Account.Movement), string(MovementDebit))
}

// JournalEntry is a manual accounting voucher (comprobante contable)
type JournalEntry struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Date  Date          `json:"date"`
	Items []JournalItem `json:"items"`
}

// TrialBalanceAccount is one account row of a trial balance
type TrialBalanceAccount struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	FinalBalance decimal.Decimal `json:"final_balance"`
}

// TrialBalance is the per-account balance at a cut-off date
type TrialBalance struct {
	Date     Date                  `json:"date"`
	Accounts []TrialBalanceAccount `json:"accounts"`
}
