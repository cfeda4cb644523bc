package service

import (
	"context"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

// PriceService 把最新行情镜像到存储
type PriceService struct {
	repo port.Repository
}

func NewPriceService(repo port.Repository) *PriceService {
	return &PriceService{repo: repo}
}

func (s *PriceService) UpdatePrices(ctx context.Context, update domain.TickerUpdate, ts int64) error {
	if len(update) == 0 {
		return nil
	}
	return s.repo.UpsertLatestPrices(ctx, update, ts)
}
