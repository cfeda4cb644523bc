package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"coinfolio/internal/domain"
)

type mockRepository struct {
	priceUpdates map[string]float64
	upserts      int
	snapshots    []string
	totals       []domain.Totals
}

func (m *mockRepository) UpsertLatestPrices(ctx context.Context, update domain.TickerUpdate, ts int64) error {
	m.upserts++
	for sym, t := range update {
		m.priceUpdates[sym] = t.Price
	}
	return nil
}

func (m *mockRepository) InsertSnapshot(ctx context.Context, ts int64, totals domain.Totals, payload string) error {
	m.snapshots = append(m.snapshots, payload)
	m.totals = append(m.totals, totals)
	return nil
}

func TestPriceServiceUpdatePrices(t *testing.T) {
	mock := &mockRepository{priceUpdates: make(map[string]float64)}
	svc := NewPriceService(mock)

	ctx := context.Background()
	err := svc.UpdatePrices(ctx, domain.TickerUpdate{"BTCUSDT": {Price: 45000}}, 1234567890)
	if err != nil {
		t.Fatalf("UpdatePrices failed: %v", err)
	}

	if price, exists := mock.priceUpdates["BTCUSDT"]; !exists || price != 45000.0 {
		t.Errorf("expected price 45000.0, got %v", price)
	}

	if err := svc.UpdatePrices(ctx, domain.TickerUpdate{}, 1); err != nil {
		t.Fatalf("empty update failed: %v", err)
	}
	if mock.upserts != 1 {
		t.Errorf("empty update should not hit the repository, upserts=%d", mock.upserts)
	}
}

func TestSnapshotServiceSaveSnapshot(t *testing.T) {
	mock := &mockRepository{priceUpdates: make(map[string]float64)}
	svc := NewSnapshotService(mock)

	payload := SnapshotPayload{
		Totals:   domain.Totals{Invested: 200, Current: 300, PnL: 100, PnLPercent: 50},
		Holdings: []domain.PortfolioItem{{Symbol: "BTCUSDT", Amount: 2, AvgBuyPrice: 100}},
		Prices:   map[string]float64{"BTCUSDT": 150},
	}
	if err := svc.SaveSnapshot(context.Background(), 42, payload); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if len(mock.snapshots) != 1 || mock.totals[0] != payload.Totals {
		t.Fatalf("unexpected snapshots %+v", mock.snapshots)
	}

	var got SnapshotPayload
	if err := json.Unmarshal([]byte(mock.snapshots[0]), &got); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if got.Prices["BTCUSDT"] != 150 || len(got.Holdings) != 1 {
		t.Errorf("unexpected payload %+v", got)
	}
}

type failingRepository struct{ mockRepository }

func (f *failingRepository) UpsertLatestPrices(context.Context, domain.TickerUpdate, int64) error {
	return errors.New("disk full")
}

func TestPriceServicePropagatesError(t *testing.T) {
	svc := NewPriceService(&failingRepository{})
	if err := svc.UpdatePrices(context.Background(), domain.TickerUpdate{"BTCUSDT": {Price: 1}}, 1); err == nil {
		t.Fatal("expected error")
	}
}
