package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

// PortfolioService 持仓管理
// 同一 symbol 再次录入时直接覆盖（最新数量与均价），不做加权平均
type PortfolioService struct {
	repo     port.PortfolioRepository
	symbols  port.SymbolNormalizer
	universe port.UniverseResolver // 为 nil 时不校验是否可交易
	now      func() time.Time
}

func NewPortfolioService(repo port.PortfolioRepository, symbols port.SymbolNormalizer, universe port.UniverseResolver) *PortfolioService {
	return &PortfolioService{
		repo:     repo,
		symbols:  symbols,
		universe: universe,
		now:      time.Now,
	}
}

// SetHolding 录入或覆盖一条持仓；symbol 可以只写币种（BTC）
func (s *PortfolioService) SetHolding(ctx context.Context, symbol string, amount, avgBuyPrice float64) (domain.PortfolioItem, error) {
	item := domain.PortfolioItem{
		Symbol:      s.normalize(symbol),
		Amount:      amount,
		AvgBuyPrice: avgBuyPrice,
	}
	if err := item.Validate(); err != nil {
		return domain.PortfolioItem{}, err
	}

	if s.universe != nil {
		u, err := s.universe.Resolve(ctx)
		if err != nil {
			return domain.PortfolioItem{}, fmt.Errorf("resolve symbol universe: %w", err)
		}
		if !u.Contains(item.Symbol) {
			return domain.PortfolioItem{}, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, item.Symbol)
		}
	}

	if err := s.repo.UpsertHolding(ctx, item, s.now().UnixMilli()); err != nil {
		return domain.PortfolioItem{}, err
	}
	log.Info().
		Str("symbol", item.Symbol).
		Float64("amount", item.Amount).
		Float64("avg_buy_price", item.AvgBuyPrice).
		Msg("holding set")
	return item, nil
}

// RemoveHolding 删除持仓；不存在时返回 domain.ErrNotFound
func (s *PortfolioService) RemoveHolding(ctx context.Context, symbol string) error {
	sym := s.normalize(symbol)
	if sym == "" {
		return fmt.Errorf("%w: empty symbol", domain.ErrInvalidHolding)
	}
	return s.repo.DeleteHolding(ctx, sym)
}

func (s *PortfolioService) ListHoldings(ctx context.Context) ([]domain.PortfolioItem, error) {
	return s.repo.ListHoldings(ctx)
}

// Portfolio 当前全部持仓
func (s *PortfolioService) Portfolio(ctx context.Context) (domain.Portfolio, error) {
	items, err := s.repo.ListHoldings(ctx)
	if err != nil {
		return domain.Portfolio{}, err
	}
	return domain.NewPortfolio(items...), nil
}

// Seed 写入配置中的初始持仓，已存在的 symbol 不覆盖；返回新写入条数
func (s *PortfolioService) Seed(ctx context.Context, items []domain.PortfolioItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	existing, err := s.Portfolio(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	ts := s.now().UnixMilli()
	for _, it := range items {
		it.Symbol = s.normalize(it.Symbol)
		if _, ok := existing.Get(it.Symbol); ok {
			continue
		}
		if err := it.Validate(); err != nil {
			log.Warn().Err(err).Str("symbol", it.Symbol).Msg("skip invalid seed holding")
			continue
		}
		if err := s.repo.UpsertHolding(ctx, it, ts); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *PortfolioService) normalize(symbol string) string {
	if s.symbols == nil {
		return domain.NormalizeSymbol(symbol)
	}
	return s.symbols.Coin2Symbol(symbol)
}
