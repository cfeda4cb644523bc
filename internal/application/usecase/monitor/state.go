package monitor

import (
	"sync"

	"coinfolio/internal/domain"
)

// State 持仓相关交易对的最新行情，流推送与 REST 回补都写入这里
type State struct {
	mu sync.Mutex

	order  []string
	prices map[string]*domain.PriceState
}

func NewState(symbols []string) *State {
	s := &State{}
	s.SetSymbols(symbols)
	return s
}

// SetSymbols 更新关注的交易对；已有行情保留
func (s *State) SetSymbols(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := make([]string, 0, len(symbols))
	prices := make(map[string]*domain.PriceState, len(symbols))
	for _, sym := range symbols {
		u := domain.NormalizeSymbol(sym)
		if u == "" {
			continue
		}
		if _, dup := prices[u]; dup {
			continue
		}
		order = append(order, u)
		if ps, ok := s.prices[u]; ok {
			prices[u] = ps
		} else {
			prices[u] = &domain.PriceState{}
		}
	}
	s.order = order
	s.prices = prices
}

func (s *State) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Apply 应用一次更新，只保留关注的交易对
// 返回是否有价格变化，以及被采纳的那部分更新（用于持久化）
func (s *State) Apply(update domain.TickerUpdate, ts int64) (bool, domain.TickerUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	tracked := make(domain.TickerUpdate)
	for sym, ps := range s.prices {
		t, ok := update[sym]
		if !ok || !domain.ValidPrice(t.Price) {
			continue
		}
		tracked[sym] = t
		if ps.Update(t, ts) {
			changed = true
		}
	}
	return changed, tracked
}

// Prices 当前已知价格，供估值使用
func (s *State) Prices() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]float64, len(s.prices))
	for sym, ps := range s.prices {
		if ps.HasValue {
			out[sym] = ps.Ticker.Price
		}
	}
	return out
}

func (s *State) Snapshot() map[string]domain.PriceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.PriceState, len(s.prices))
	for k, v := range s.prices {
		out[k] = *v
	}
	return out
}
