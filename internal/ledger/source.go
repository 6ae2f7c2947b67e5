// Package ledger provides the sources of categorized accounting data the
// income statement is built from: the Siigo API, a CSV export and a fixed
// demo dataset.
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"dataconta/internal/models"
	"dataconta/internal/puc"
	"dataconta/internal/statement"
)

//go:generate mockgen -source=source.go -destination=source_mock.go -package=ledger

// Source returns the categorized line items of one period. Every required
// category key is present in the result, possibly with no items.
type Source interface {
	Fetch(ctx context.Context, period models.PeriodRange) (statement.SourceData, error)
	Name() string
}

// Notices collects the per-request remarks sources make while fetching
type Notices struct {
	mu       sync.Mutex
	demo     bool
	messages []string
}

type noticesKey struct{}

// WithNotices attaches a fresh Notices collector to ctx
func WithNotices(ctx context.Context) (context.Context, *Notices) {
	n := &Notices{}
	return context.WithValue(ctx, noticesKey{}, n), n
}

func notify(ctx context.Context, demo bool, message string) {
	n, ok := ctx.Value(noticesKey{}).(*Notices)
	if !ok {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.demo = n.demo || demo
	n.messages = append(n.messages, message)
}

// Demo reports whether any fetch was served from demo data
func (n *Notices) Demo() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.demo
}

// Messages returns the collected remarks in arrival order
func (n *Notices) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// aggregator sums lines by account code inside each category
type aggregator struct {
	chart    *puc.Chart
	sections map[string]map[string]*statement.SourceItem
}

func newAggregator(chart *puc.Chart) *aggregator {
	if chart == nil {
		chart = puc.DefaultChart()
	}
	return &aggregator{
		chart:    chart,
		sections: make(map[string]map[string]*statement.SourceItem),
	}
}

func (a *aggregator) add(category, code, description string, value decimal.Decimal) {
	lines, ok := a.sections[category]
	if !ok {
		lines = make(map[string]*statement.SourceItem)
		a.sections[category] = lines
	}

	key := statement.SourceItem{AccountCode: code, Description: description}.MatchKey()

	line, ok := lines[key]
	if !ok {
		if description == "" {
			description, _ = a.chart.AccountName(code)
		}
		lines[key] = &statement.SourceItem{AccountCode: code, Description: description, Value: value}
		return
	}

	line.Value = line.Value.Add(value)
	if line.Description != description {
		if name, found := a.chart.AccountName(code); found {
			line.Description = name
		}
	}
}

// data returns every required key, with lines ordered by account code
func (a *aggregator) data() statement.SourceData {
	out := statement.EmptySourceData()
	for category, lines := range a.sections {
		items := make([]statement.SourceItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, *line)
		}
		sort.Slice(items, func(i, j int) bool {
			if items[i].AccountCode != items[j].AccountCode {
				return items[i].AccountCode < items[j].AccountCode
			}
			return items[i].Description < items[j].Description
		})
		out[category] = items
	}
	return out
}
