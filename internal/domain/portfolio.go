package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// PortfolioItem is one position. Unique by Symbol within a Portfolio.
type PortfolioItem struct {
	Symbol      string  `json:"symbol"`
	Amount      float64 `json:"amount"`
	AvgBuyPrice float64 `json:"avg_buy_price"`
}

// Validate checks symbol presence and that amount/avg price are positive finite numbers.
func (it PortfolioItem) Validate() error {
	if NormalizeSymbol(it.Symbol) == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidHolding)
	}
	if !ValidPrice(it.Amount) {
		return fmt.Errorf("%w: amount %v", ErrInvalidHolding, it.Amount)
	}
	if !ValidPrice(it.AvgBuyPrice) {
		return fmt.Errorf("%w: avg buy price %v", ErrInvalidHolding, it.AvgBuyPrice)
	}
	return nil
}

// Portfolio holds at most one item per symbol.
//
// Set replaces an existing record instead of merging cost basis; this mirrors
// how holdings are entered (the user states the latest amount and average).
type Portfolio struct {
	items map[string]PortfolioItem
}

// NewPortfolio builds a portfolio applying Set for every item in order.
// Invalid items are skipped.
func NewPortfolio(items ...PortfolioItem) Portfolio {
	p := Portfolio{items: make(map[string]PortfolioItem, len(items))}
	for _, it := range items {
		_ = p.Set(it)
	}
	return p
}

// Set inserts or replaces the record for item.Symbol.
func (p *Portfolio) Set(item PortfolioItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if p.items == nil {
		p.items = make(map[string]PortfolioItem)
	}
	item.Symbol = NormalizeSymbol(item.Symbol)
	p.items[item.Symbol] = item
	return nil
}

// Remove deletes symbol; reports whether it was present.
func (p *Portfolio) Remove(symbol string) bool {
	symbol = NormalizeSymbol(symbol)
	if _, ok := p.items[symbol]; !ok {
		return false
	}
	delete(p.items, symbol)
	return true
}

// Get returns the record for symbol.
func (p Portfolio) Get(symbol string) (PortfolioItem, bool) {
	it, ok := p.items[NormalizeSymbol(symbol)]
	return it, ok
}

// Items returns all records sorted by symbol.
func (p Portfolio) Items() []PortfolioItem {
	out := make([]PortfolioItem, 0, len(p.items))
	for _, it := range p.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols returns held symbols sorted.
func (p Portfolio) Symbols() []string {
	items := p.Items()
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Symbol
	}
	return out
}

func (p Portfolio) Len() int { return len(p.items) }

// Totals are the derived portfolio metrics.
type Totals struct {
	Invested   float64 `json:"invested"`
	Current    float64 `json:"current"`
	PnL        float64 `json:"pnl"`
	PnLPercent float64 `json:"pnl_percent"`
}

var hundred = decimal.NewFromInt(100)

// CalculateTotals derives invested/current value and P&L from holdings and a price map.
//
// Items with a non-positive or non-finite amount or avg price contribute nothing to
// invested; an unpriced holding contributes 0 to current. Never returns NaN/Inf.
func CalculateTotals(items []PortfolioItem, prices map[string]float64) Totals {
	invested := decimal.Zero
	current := decimal.Zero

	for _, it := range items {
		if !ValidPrice(it.Amount) {
			continue
		}
		amount := decimal.NewFromFloat(it.Amount)
		if ValidPrice(it.AvgBuyPrice) {
			invested = invested.Add(amount.Mul(decimal.NewFromFloat(it.AvgBuyPrice)))
		}
		if px, ok := prices[it.Symbol]; ok && ValidPrice(px) {
			current = current.Add(amount.Mul(decimal.NewFromFloat(px)))
		}
	}

	pnl := current.Sub(invested)
	pnlPercent := decimal.Zero
	if invested.IsPositive() {
		pnlPercent = pnl.Div(invested).Mul(hundred)
	}

	return Totals{
		Invested:   finiteOrZero(invested),
		Current:    finiteOrZero(current),
		PnL:        finiteOrZero(pnl),
		PnLPercent: finiteOrZero(pnlPercent),
	}
}

func finiteOrZero(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	if !IsFinite(f) {
		return 0
	}
	return f
}
