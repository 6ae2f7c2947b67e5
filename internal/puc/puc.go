// Package puc maps Colombian Plan Único de Cuentas account codes onto
// account classes and income statement categories.
package puc

import (
	"sort"
	"strings"

	apperrors "dataconta/pkg/errors"
)

// AccountClass is the PUC class given by the first digit of an account code
type AccountClass int

const (
	ClassUnknown AccountClass = iota
	ClassAsset
	ClassLiability
	ClassEquity
	ClassIncome
	ClassExpense
	ClassCostOfSales
	ClassProductionCost
	ClassMemorandum
)

var classNames = map[AccountClass]string{
	ClassUnknown:        "desconocida",
	ClassAsset:          "activo",
	ClassLiability:      "pasivo",
	ClassEquity:         "patrimonio",
	ClassIncome:         "ingresos",
	ClassExpense:        "gastos",
	ClassCostOfSales:    "costos de ventas",
	ClassProductionCost: "costos de producción",
	ClassMemorandum:     "cuentas de orden",
}

func (c AccountClass) String() string {
	return classNames[c]
}

// IsResult reports whether accounts of the class close into the period result
func (c AccountClass) IsResult() bool {
	return c == ClassIncome || c == ClassExpense || c == ClassCostOfSales
}

// IsCurrent reports whether an asset or liability account is current:
// groups 11 to 13 for assets and 21 to 22 for liabilities
func IsCurrent(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case "11", "12", "13", "21", "22":
		return true
	}
	return false
}

// ClassOf returns the class of an account code
func ClassOf(code string) AccountClass {
	code = strings.TrimSpace(code)
	if code == "" {
		return ClassUnknown
	}

	switch code[0] {
	case '1':
		return ClassAsset
	case '2':
		return ClassLiability
	case '3':
		return ClassEquity
	case '4':
		return ClassIncome
	case '5':
		return ClassExpense
	case '6':
		return ClassCostOfSales
	case '7':
		return ClassProductionCost
	case '8', '9':
		return ClassMemorandum
	default:
		return ClassUnknown
	}
}

// CheckCompliance returns a normative error when code is not a well-formed PUC code
func CheckCompliance(code string) error {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) < 2 || !isDigits(trimmed) || ClassOf(trimmed) == ClassUnknown {
		return apperrors.NormativeError(apperrors.CodeInvalidAccountCode, code)
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

type prefixRule struct {
	prefix   string
	category string
}

// Default prefix table. Longer prefixes take precedence.
var defaultCategories = map[string][]string{
	"ingresos":           {"41", "42"},
	"costos":             {"61", "62"},
	"gastos_admin":       {"51"},
	"gastos_ventas":      {"52"},
	"otros_ingresos":     {"4295", "4299"},
	"otros_gastos":       {"5295", "5299"},
	"gastos_financieros": {"53"},
	"impuestos":          {"54"},
}

var defaultAccounts = map[string]string{
	"1105": "Caja",
	"1110": "Bancos",
	"1305": "Clientes",
	"1435": "Mercancías no fabricadas por la empresa",
	"2205": "Proveedores nacionales",
	"2365": "Retención en la fuente",
	"2408": "IVA por pagar",
	"3105": "Capital suscrito y pagado",
	"3605": "Utilidad del ejercicio",
	"4135": "Comercio al por mayor y al por menor",
	"4140": "Hoteles y restaurantes",
	"4155": "Actividades inmobiliarias, empresariales y de alquiler",
	"4175": "Devoluciones en ventas",
	"4210": "Ingresos financieros",
	"4295": "Ingresos diversos",
	"5105": "Gastos de personal",
	"5110": "Honorarios",
	"5115": "Impuestos",
	"5120": "Arrendamientos",
	"5135": "Servicios",
	"5195": "Gastos diversos",
	"5205": "Gastos de personal de ventas",
	"5235": "Servicios de ventas",
	"5295": "Gastos diversos de ventas",
	"5305": "Gastos financieros",
	"5405": "Impuesto de renta y complementarios",
	"6135": "Costo de ventas - comercio al por mayor y al por menor",
}

// Categories lists the category keys the built-in chart classifies into
func Categories() []string {
	keys := make([]string, 0, len(defaultCategories))
	for k := range defaultCategories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Chart is a PUC prefix table plus canonical account names
type Chart struct {
	rules    []prefixRule
	accounts map[string]string
}

// DefaultChart returns the built-in chart
func DefaultChart() *Chart {
	return newChart(defaultCategories, defaultAccounts)
}

func newChart(categories map[string][]string, accounts map[string]string) *Chart {
	c := &Chart{accounts: make(map[string]string, len(accounts))}
	for category, prefixes := range categories {
		for _, p := range prefixes {
			c.rules = append(c.rules, prefixRule{prefix: p, category: category})
		}
	}
	sort.Slice(c.rules, func(i, j int) bool {
		if len(c.rules[i].prefix) != len(c.rules[j].prefix) {
			return len(c.rules[i].prefix) > len(c.rules[j].prefix)
		}
		return c.rules[i].prefix < c.rules[j].prefix
	})
	for code, name := range accounts {
		c.accounts[code] = name
	}
	return c
}

// Classify returns the statement category key for an account code.
// The longest matching prefix wins.
func (c *Chart) Classify(code string) (string, bool) {
	code = strings.TrimSpace(code)
	for _, r := range c.rules {
		if strings.HasPrefix(code, r.prefix) {
			return r.category, true
		}
	}
	return "", false
}

// AccountName returns the canonical name of code, trying shorter
// prefixes down to the four-digit account level
func (c *Chart) AccountName(code string) (string, bool) {
	code = strings.TrimSpace(code)
	for n := len(code); n >= 4; n-- {
		if name, ok := c.accounts[code[:n]]; ok {
			return name, true
		}
	}
	return "", false
}

var defaultChart = DefaultChart()

// Classify classifies code with the built-in chart
func Classify(code string) (string, bool) {
	return defaultChart.Classify(code)
}

// AccountName looks code up in the built-in chart
func AccountName(code string) (string, bool) {
	return defaultChart.AccountName(code)
}
