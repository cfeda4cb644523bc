package monitor

import (
	"context"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

type noopRepo struct{}

func NewNoopRepo() port.Repository { return &noopRepo{} }

func (n *noopRepo) UpsertLatestPrices(ctx context.Context, update domain.TickerUpdate, ts int64) error {
	return nil
}
func (n *noopRepo) InsertSnapshot(ctx context.Context, ts int64, totals domain.Totals, payload string) error {
	return nil
}
