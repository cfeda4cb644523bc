package port

import (
	"context"

	"coinfolio/internal/domain"
)

// CatalogSource 交易所交易对目录
type CatalogSource interface {
	GetInstruments(ctx context.Context) ([]domain.Instrument, error)
}

// UniverseResolver 可交易交易对集合（带缓存）
type UniverseResolver interface {
	Resolve(ctx context.Context) (domain.Universe, error)
}

// MarketDataClient 交易所 REST 快照接口（无重试，失败直接返回）
type MarketDataClient interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetAllPrices(ctx context.Context) (map[string]float64, error)
	GetAll24hStats(ctx context.Context) (domain.TickerUpdate, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

// SnapshotProvider 展示层使用的快照接口（已按 universe 过滤）
type SnapshotProvider interface {
	FetchSnapshotAll(ctx context.Context) (domain.TickerUpdate, error)
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

// SymbolNormalizer 把用户输入的币种或交易对统一为交易所交易对（BTC -> BTCUSDT）
type SymbolNormalizer interface {
	Coin2Symbol(coin string) string
}
