package monitor

import (
	"fmt"
	"math"
	"strings"

	"coinfolio/internal/domain"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

type Formatter struct {
	Quote string // 显示时去掉的计价后缀
}

func NewFormatter(quote string) *Formatter {
	return &Formatter{Quote: domain.NormalizeSymbol(quote)}
}

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

// Render 一行：每个持仓的价格/24h 涨跌，末尾是组合估值
func (f *Formatter) Render(st *State, items []domain.PortfolioItem, mode RenderMode) string {
	snap := st.Snapshot()
	symbols := st.Symbols()

	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}

	sb.WriteString(colorize("[COINFOLIO] ", ansiDim))

	for i, sym := range symbols {
		if i > 0 {
			sb.WriteString(colorize("  ||  ", ansiDim))
		}
		ps := snap[sym]

		px := "--"
		pxCol := ansiYellow
		chg := ""
		if ps.HasValue {
			px = FormatPrice(ps.Ticker.Price)
			switch ps.Direction {
			case domain.DirectionUp:
				pxCol = ansiGreen
			case domain.DirectionDown:
				pxCol = ansiRed
			}
			chg = " " + colorize(fmt.Sprintf("%+.2f%%", ps.Ticker.ChangePercent), signColor(ps.Ticker.ChangePercent))
		}

		sb.WriteString(f.display(sym))
		sb.WriteString(" ")
		sb.WriteString(colorize(px, pxCol))
		sb.WriteString(chg)
	}

	totals := domain.CalculateTotals(items, st.Prices())
	if len(symbols) > 0 {
		sb.WriteString(colorize("  ||  ", ansiDim))
	}
	sb.WriteString(fmt.Sprintf("value=%.2f invested=%.2f ", totals.Current, totals.Invested))
	sb.WriteString(colorize(fmt.Sprintf("pnl=%+.2f (%+.2f%%)", totals.PnL, totals.PnLPercent), signColor(totals.PnL)))

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}

func (f *Formatter) display(sym string) string {
	if f.Quote != "" && len(sym) > len(f.Quote) {
		return strings.TrimSuffix(sym, f.Quote)
	}
	return sym
}

func signColor(v float64) string {
	switch {
	case v > 0:
		return ansiGreen
	case v < 0:
		return ansiRed
	default:
		return ansiYellow
	}
}

// FormatPrice 价格 >= 1 保留两位小数，更小的价格保留 6 位有效数字
func FormatPrice(p float64) string {
	if !domain.IsFinite(p) {
		return "--"
	}
	if math.Abs(p) >= 1 {
		return fmt.Sprintf("%.2f", p)
	}
	return fmt.Sprintf("%.6g", p)
}
