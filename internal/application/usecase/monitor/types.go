package monitor

import (
	"context"

	"coinfolio/internal/domain"
)

// HoldingsSource 当前持仓（由 PortfolioService 提供）
type HoldingsSource interface {
	Portfolio(ctx context.Context) (domain.Portfolio, error)
}
