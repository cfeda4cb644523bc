package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

// MarketService 展示层使用的行情快照接口
// 所有"全市场"结果都与可交易 universe 求交集并按计价后缀过滤，调用方看不到不可交易的交易对
type MarketService struct {
	client   port.MarketDataClient
	universe port.UniverseResolver
	quote    string
}

func NewMarketService(client port.MarketDataClient, universe port.UniverseResolver, quote string) *MarketService {
	return &MarketService{
		client:   client,
		universe: universe,
		quote:    domain.NormalizeSymbol(quote),
	}
}

// FetchSnapshotAll 全市场 24h 统计（已过滤）；universe 解析与统计请求并发进行
func (s *MarketService) FetchSnapshotAll(ctx context.Context) (domain.TickerUpdate, error) {
	var (
		u     domain.Universe
		stats domain.TickerUpdate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		u, err = s.universe.Resolve(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.client.GetAll24hStats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	out := make(domain.TickerUpdate, len(u))
	for sym, t := range stats {
		if s.eligible(sym, u) && domain.ValidPrice(t.Price) {
			out[sym] = t
		}
	}
	return out, nil
}

// FetchAllPrices 全市场最新价（已过滤）
func (s *MarketService) FetchAllPrices(ctx context.Context) (map[string]float64, error) {
	var (
		u      domain.Universe
		prices map[string]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		u, err = s.universe.Resolve(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		prices, err = s.client.GetAllPrices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	out := make(map[string]float64, len(u))
	for sym, px := range prices {
		if s.eligible(sym, u) && domain.ValidPrice(px) {
			out[sym] = px
		}
	}
	return out, nil
}

// FetchPrice 单个交易对最新价
func (s *MarketService) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	return s.client.GetPrice(ctx, domain.NormalizeSymbol(symbol))
}

// FetchKlines K 线
func (s *MarketService) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return s.client.GetKlines(ctx, domain.NormalizeSymbol(symbol), interval, limit)
}

// Universe 当前可交易交易对
func (s *MarketService) Universe(ctx context.Context) (domain.Universe, error) {
	return s.universe.Resolve(ctx)
}

func (s *MarketService) eligible(sym string, u domain.Universe) bool {
	return len(sym) > len(s.quote) && strings.HasSuffix(sym, s.quote) && u.Contains(sym)
}

var _ port.SnapshotProvider = (*MarketService)(nil)
