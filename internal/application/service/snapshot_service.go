package service

import (
	"context"
	"encoding/json"
	"fmt"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

type SnapshotService struct {
	repo port.Repository
}

func NewSnapshotService(repo port.Repository) *SnapshotService {
	return &SnapshotService{repo: repo}
}

// SnapshotPayload 估值快照的持久化内容
type SnapshotPayload struct {
	Totals   domain.Totals          `json:"totals"`
	Holdings []domain.PortfolioItem `json:"holdings"`
	Prices   map[string]float64     `json:"prices"`
}

func (s *SnapshotService) SaveSnapshot(ctx context.Context, ts int64, payload SnapshotPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.repo.InsertSnapshot(ctx, ts, payload.Totals, string(b))
}
