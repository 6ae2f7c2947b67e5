package bi

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Client types and tax regimes recognised in invoice observations
const (
	LegalPerson   = "Persona Jurídica"
	NaturalPerson = "Persona Natural"

	RegimeVATResponsible    = "Responsable del IVA"
	RegimeNotVATResponsible = "No Responsable del IVA"
	RegimeSimplified        = "Régimen Simplificado"
	RegimeLargeTaxpayer     = "Gran Contribuyente"
)

// rule maps a label to the patterns that select it; rules are tried in order
type rule struct {
	label    string
	patterns []*regexp.Regexp
}

func newRule(label string, patterns ...string) rule {
	r := rule{label: label}
	for _, p := range patterns {
		r.patterns = append(r.patterns, regexp.MustCompile(p))
	}
	return r
}

// Patterns run on lower-case text with accents removed
var (
	clientTypeRules = []rule{
		newRule(LegalPerson, `persona\s+juridica`, `\bp\.?\s*juridica`, `empresa`, `sociedad`, `\bs\.a\.s\b`, `\bs\.a\.`, `\bltda\b`, `corporacion`),
		newRule(NaturalPerson, `persona\s+natural`, `\bp\.?\s*natural`, `individual`),
	}

	// "no responsable" must be tried before "responsable"
	regimeRules = []rule{
		newRule(RegimeNotVATResponsible, `no\s+responsable\s+(del\s+)?iva`, `exento\s+(de\s+)?iva`),
		newRule(RegimeVATResponsible, `responsable\s+del\s+impuesto\s+sobre\s+las\s+ventas`, `responsable\s+(del\s+)?iva`),
		newRule(RegimeSimplified, `regimen\s+simplificado`, `simplificado`),
		newRule(RegimeLargeTaxpayer, `gran\s+contribuyente`, `\bg\.?\s*contribuyente`),
	}

	paymentRules = []rule{
		newRule("Efectivo", `efectivo`, `cash`, `contado`),
		newRule("Tarjeta de Débito", `debito`, `debit`),
		newRule("Tarjeta de Crédito", `tarjeta`, `credito`, `credit`, `visa`, `mastercard`),
		newRule("Transferencia", `transferencia`, `transfer`, `bancaria`, `\bpse\b`),
		newRule("Cheque", `cheque`, `check`),
		newRule("Consignación", `consignacion`, `deposito`),
	}

	productRules = []rule{
		newRule("Servicios", `servicio`, `service`, `cuidado`, `alojamiento`, `consultoria`),
		newRule("Productos", `producto`, `articulo`, `item`, `mercancia`),
		newRule("Software", `software`, `licencia`, `aplicacion`, `sistema`),
		newRule("Salud", `medic`, `salud`, `hospital`, `clinica`),
		newRule("Educación", `educacion`, `curso`, `capacitacion`, `entrenamiento`),
		newRule("Transporte", `transporte`, `flete`, `envio`, `logistica`),
		newRule("Alimentación", `alimento`, `comida`, `restaurante`, `catering`),
	}
)

var spaces = regexp.MustCompile(`\s+`)

// fold lower-cases s, strips accents and collapses whitespace
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.TrimSpace(spaces.ReplaceAllString(out, " "))
}

func classify(text string, rs []rule, fallback string) string {
	if text == "" {
		return fallback
	}
	for _, r := range rs {
		for _, p := range r.patterns {
			if p.MatchString(text) {
				return r.label
			}
		}
	}
	return fallback
}

// ClientInfo extracts the client type and tax regime from free-text
// invoice observations
func ClientInfo(observations string) (kind, regime string) {
	text := fold(observations)
	return classify(text, clientTypeRules, Unspecified), classify(text, regimeRules, Unspecified)
}

// PaymentCategory groups a payment method name
func PaymentCategory(name string) string {
	text := fold(name)
	if text == "" {
		return Unspecified
	}
	return classify(text, paymentRules, "Otros")
}

// ProductCategory groups a product by its description
func ProductCategory(description string) string {
	return classify(fold(description), productRules, "General")
}
