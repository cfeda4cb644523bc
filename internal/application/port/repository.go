package port

import (
	"context"

	"coinfolio/internal/domain"
)

// Repository 行情镜像与估值快照存储
type Repository interface {
	// Price operations
	UpsertLatestPrices(ctx context.Context, update domain.TickerUpdate, ts int64) error

	// Snapshot operations
	InsertSnapshot(ctx context.Context, ts int64, totals domain.Totals, payload string) error
}

// PortfolioRepository 持仓存储，按 symbol 唯一（后写覆盖）
type PortfolioRepository interface {
	UpsertHolding(ctx context.Context, item domain.PortfolioItem, ts int64) error
	DeleteHolding(ctx context.Context, symbol string) error
	ListHoldings(ctx context.Context) ([]domain.PortfolioItem, error)
}
