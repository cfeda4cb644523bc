package domain

import (
	"math"
	"sort"
	"strings"
)

// Ticker is the normalized price/volume/change view of one symbol.
type Ticker struct {
	Price         float64  `json:"price"`
	ChangePercent float64  `json:"change_percent"` // 24h 涨跌幅 (%)
	QuoteVolume   *float64 `json:"quote_volume,omitempty"` // nil 表示交易所未提供
}

// TickerUpdate maps symbol -> ticker for one frame or one snapshot.
type TickerUpdate map[string]Ticker

// Prices flattens the update into symbol -> last price.
func (u TickerUpdate) Prices() map[string]float64 {
	out := make(map[string]float64, len(u))
	for sym, t := range u {
		out[sym] = t.Price
	}
	return out
}

// Candle is one OHLC bar.
type Candle struct {
	OpenTime  int64    `json:"open_time"` // unix ms
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	Volume    *float64 `json:"volume,omitempty"`
	CloseTime int64    `json:"close_time"` // unix ms
}

// Instrument is one row of the exchange instrument catalog.
type Instrument struct {
	Symbol      string
	Status      string
	QuoteAsset  string
	Permissions []string
	SpotAllowed *bool // 部分接口只给权限列表，部分只给布尔开关
}

// Universe is the immutable set of tradable symbols.
type Universe map[string]struct{}

// NewUniverse builds a universe from the given symbols.
func NewUniverse(symbols ...string) Universe {
	u := make(Universe, len(symbols))
	for _, s := range symbols {
		s = NormalizeSymbol(s)
		if s == "" {
			continue
		}
		u[s] = struct{}{}
	}
	return u
}

// Contains reports whether symbol is tradable.
func (u Universe) Contains(symbol string) bool {
	_, ok := u[symbol]
	return ok
}

func (u Universe) Len() int { return len(u) }

// Symbols returns the universe sorted alphabetically.
func (u Universe) Symbols() []string {
	out := make([]string, 0, len(u))
	for s := range u {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// NormalizeSymbol upper-cases and trims a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsFinite reports whether f is neither NaN nor ±Inf.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ValidPrice reports whether p is a usable price (finite and > 0).
func ValidPrice(p float64) bool {
	return IsFinite(p) && p > 0
}
