package statement

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dataconta/internal/models"
	"dataconta/internal/puc"
)

// BalanceTolerance is the largest rounding difference accepted when
// comparing balance figures
var BalanceTolerance = decimal.New(1, -2)

// BalanceSection groups trial-balance accounts of one PUC class.
// Current and NonCurrent split the total of asset and liability sections.
type BalanceSection struct {
	Class      puc.AccountClass
	Title      string
	Accounts   []models.TrialBalanceAccount
	Total      decimal.Decimal
	Current    decimal.Decimal
	NonCurrent decimal.Decimal
}

// BalanceSheet is a condensed Estado de Situación Financiera
type BalanceSheet struct {
	Date         time.Time
	Assets       BalanceSection
	Liabilities  BalanceSection
	Equity       BalanceSection
	PeriodResult decimal.Decimal
}

// BuildBalanceSheet groups the leaf accounts of a trial balance by class.
// Balances are taken in the natural sign of each class. Income, expense and
// cost accounts are netted into the period result.
func BuildBalanceSheet(tb models.TrialBalance) *BalanceSheet {
	b := &BalanceSheet{
		Date:        tb.Date.Time,
		Assets:      BalanceSection{Class: puc.ClassAsset, Title: "ACTIVO"},
		Liabilities: BalanceSection{Class: puc.ClassLiability, Title: "PASIVO"},
		Equity:      BalanceSection{Class: puc.ClassEquity, Title: "PATRIMONIO"},
	}

	for _, acc := range leafAccounts(tb.Accounts) {
		switch class := puc.ClassOf(acc.Code); class {
		case puc.ClassAsset:
			b.Assets.add(acc)
		case puc.ClassLiability:
			b.Liabilities.add(acc)
		case puc.ClassEquity:
			b.Equity.add(acc)
		case puc.ClassIncome:
			b.PeriodResult = b.PeriodResult.Add(acc.FinalBalance)
		case puc.ClassExpense, puc.ClassCostOfSales:
			b.PeriodResult = b.PeriodResult.Sub(acc.FinalBalance)
		}
	}

	return b
}

func (s *BalanceSection) add(acc models.TrialBalanceAccount) {
	s.Accounts = append(s.Accounts, acc)
	s.Total = s.Total.Add(acc.FinalBalance)
	if s.Class == puc.ClassEquity {
		return
	}
	if puc.IsCurrent(acc.Code) {
		s.Current = s.Current.Add(acc.FinalBalance)
	} else {
		s.NonCurrent = s.NonCurrent.Add(acc.FinalBalance)
	}
}

// leafAccounts drops aggregate rows (class, group, account) whose
// sub-accounts are also listed, so balances are not counted twice
func leafAccounts(accounts []models.TrialBalanceAccount) []models.TrialBalanceAccount {
	sorted := append([]models.TrialBalanceAccount(nil), accounts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	var leaves []models.TrialBalanceAccount
	for i, acc := range sorted {
		if i+1 < len(sorted) && strings.HasPrefix(sorted[i+1].Code, acc.Code) && sorted[i+1].Code != acc.Code {
			continue
		}
		leaves = append(leaves, acc)
	}
	return leaves
}

// Difference returns assets − (liabilities + equity + period result)
func (b *BalanceSheet) Difference() decimal.Decimal {
	return b.Assets.Total.Sub(b.Liabilities.Total.Add(b.Equity.Total).Add(b.PeriodResult))
}

// Balanced reports whether assets equal liabilities plus equity plus the
// period result, within BalanceTolerance
func (b *BalanceSheet) Balanced() bool {
	return b.Difference().Abs().LessThanOrEqual(BalanceTolerance)
}

// TotalEquity is equity including the period result
func (b *BalanceSheet) TotalEquity() decimal.Decimal {
	return b.Equity.Total.Add(b.PeriodResult)
}

// CurrentRatio returns current assets / current liabilities, zero without
// current liabilities
func (b *BalanceSheet) CurrentRatio() decimal.Decimal {
	return ratio(b.Assets.Current, b.Liabilities.Current)
}

// DebtRatio returns total liabilities / total assets, zero without assets
func (b *BalanceSheet) DebtRatio() decimal.Decimal {
	return ratio(b.Liabilities.Total, b.Assets.Total)
}

func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.DivRound(den, 4)
}

// FinancialSummary pairs an income statement with the balance sheet cut at
// the end of its period
type FinancialSummary struct {
	Statement *IncomeStatement
	Balance   *BalanceSheet
}

// NewFinancialSummary combines a statement and a balance sheet
func NewFinancialSummary(s *IncomeStatement, b *BalanceSheet) *FinancialSummary {
	return &FinancialSummary{Statement: s, Balance: b}
}

// NetProfit is the net profit of the income statement
func (f *FinancialSummary) NetProfit() decimal.Decimal {
	return f.Statement.Totals().NetProfit()
}

// ResultDifference returns the balance period result minus the statement net profit
func (f *FinancialSummary) ResultDifference() decimal.Decimal {
	return f.Balance.PeriodResult.Sub(f.NetProfit())
}

// Coherent reports whether the period result carried by the balance sheet
// matches the statement net profit within BalanceTolerance
func (f *FinancialSummary) Coherent() bool {
	return f.ResultDifference().Abs().LessThanOrEqual(BalanceTolerance)
}

// ROA returns net profit as a percentage of total assets, zero without assets
func (f *FinancialSummary) ROA() decimal.Decimal {
	return percentOf(f.NetProfit(), f.Balance.Assets.Total)
}

// ROE returns net profit as a percentage of total equity, zero without equity
func (f *FinancialSummary) ROE() decimal.Decimal {
	return percentOf(f.NetProfit(), f.Balance.TotalEquity())
}

func percentOf(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Mul(hundred).DivRound(den, 2)
}

// MarshalJSON writes the combined indicators with decimals as strings
func (f *FinancialSummary) MarshalJSON() ([]byte, error) {
	totals := f.Statement.Totals()
	return json.Marshal(struct {
		Balance          *BalanceSheet `json:"balance"`
		NetProfit        string        `json:"utilidad_neta"`
		GrossMargin      *string       `json:"margen_bruto"`
		NetMargin        *string       `json:"margen_neto"`
		CurrentRatio     string        `json:"ratio_liquidez"`
		DebtRatio        string        `json:"ratio_endeudamiento"`
		ROA              string        `json:"roa"`
		ROE              string        `json:"roe"`
		Coherent         bool          `json:"coherente"`
		ResultDifference string        `json:"diferencia_resultado"`
	}{
		Balance:          f.Balance,
		NetProfit:        f.NetProfit().String(),
		GrossMargin:      decimalString(totals.GrossMargin()),
		NetMargin:        decimalString(totals.NetMargin()),
		CurrentRatio:     f.Balance.CurrentRatio().String(),
		DebtRatio:        f.Balance.DebtRatio().String(),
		ROA:              f.ROA().String(),
		ROE:              f.ROE().String(),
		Coherent:         f.Coherent(),
		ResultDifference: f.ResultDifference().String(),
	})
}

type balanceSectionJSON struct {
	Title      string                       `json:"title"`
	Accounts   []models.TrialBalanceAccount `json:"accounts"`
	Total      string                       `json:"total"`
	Current    string                       `json:"corriente,omitempty"`
	NonCurrent string                       `json:"no_corriente,omitempty"`
}

func (s BalanceSection) toJSON() balanceSectionJSON {
	accounts := s.Accounts
	if accounts == nil {
		accounts = []models.TrialBalanceAccount{}
	}
	out := balanceSectionJSON{Title: s.Title, Accounts: accounts, Total: s.Total.String()}
	if s.Class != puc.ClassEquity {
		out.Current = s.Current.String()
		out.NonCurrent = s.NonCurrent.String()
	}
	return out
}

// MarshalJSON writes the sheet with decimals as strings
func (b *BalanceSheet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date         string             `json:"date"`
		Assets       balanceSectionJSON `json:"activo"`
		Liabilities  balanceSectionJSON `json:"pasivo"`
		Equity       balanceSectionJSON `json:"patrimonio"`
		PeriodResult string             `json:"resultado_periodo"`
		TotalEquity  string             `json:"total_patrimonio"`
		Balanced     bool               `json:"cuadrado"`
		Difference   string             `json:"diferencia"`
		CurrentRatio string             `json:"ratio_liquidez"`
		DebtRatio    string             `json:"ratio_endeudamiento"`
	}{
		Date:         b.Date.Format(models.DateLayout),
		Assets:       b.Assets.toJSON(),
		Liabilities:  b.Liabilities.toJSON(),
		Equity:       b.Equity.toJSON(),
		PeriodResult: b.PeriodResult.String(),
		TotalEquity:  b.TotalEquity().String(),
		Balanced:     b.Balanced(),
		Difference:   b.Difference().String(),
		CurrentRatio: b.CurrentRatio().String(),
		DebtRatio:    b.DebtRatio().String(),
	})
}
