package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"coinfolio/internal/domain"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepoUpsertLatestPrices(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	vol := 1200.5
	err := repo.UpsertLatestPrices(ctx, domain.TickerUpdate{
		"BTCUSDT": {Price: 45000, ChangePercent: 1.5, QuoteVolume: &vol},
		"ETHUSDT": {Price: 3000, ChangePercent: -0.5},
	}, 1000)
	if err != nil {
		t.Fatalf("UpsertLatestPrices failed: %v", err)
	}

	if err := repo.UpsertLatestPrices(ctx, domain.TickerUpdate{"BTCUSDT": {Price: 46000}}, 2000); err != nil {
		t.Fatalf("UpsertLatestPrices failed: %v", err)
	}

	got, ts, err := repo.LatestPrice(ctx, "btcusdt")
	if err != nil {
		t.Fatalf("LatestPrice failed: %v", err)
	}
	if got.Price != 46000 || ts != 2000 || got.QuoteVolume != nil {
		t.Errorf("expected overwritten row, got %+v ts=%d", got, ts)
	}

	eth, _, err := repo.LatestPrice(ctx, "ETHUSDT")
	if err != nil {
		t.Fatalf("LatestPrice failed: %v", err)
	}
	if eth.ChangePercent != -0.5 {
		t.Errorf("expected change -0.5, got %v", eth.ChangePercent)
	}

	if _, _, err := repo.LatestPrice(ctx, "SOLUSDT"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteRepoEmptyUpdateIsNoop(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.UpsertLatestPrices(context.Background(), nil, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSQLiteRepoHoldings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertHolding(ctx, domain.PortfolioItem{Symbol: "ethusdt", Amount: 2, AvgBuyPrice: 1500}, 1); err != nil {
		t.Fatalf("UpsertHolding failed: %v", err)
	}
	if err := repo.UpsertHolding(ctx, domain.PortfolioItem{Symbol: "BTCUSDT", Amount: 1, AvgBuyPrice: 30000}, 2); err != nil {
		t.Fatalf("UpsertHolding failed: %v", err)
	}
	// set-latest: the second write replaces the first
	if err := repo.UpsertHolding(ctx, domain.PortfolioItem{Symbol: "BTCUSDT", Amount: 0.5, AvgBuyPrice: 40000}, 3); err != nil {
		t.Fatalf("UpsertHolding failed: %v", err)
	}

	items, err := repo.ListHoldings(ctx)
	if err != nil {
		t.Fatalf("ListHoldings failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(items))
	}
	if items[0].Symbol != "BTCUSDT" || items[0].Amount != 0.5 || items[0].AvgBuyPrice != 40000 {
		t.Errorf("unexpected first holding: %+v", items[0])
	}
	if items[1].Symbol != "ETHUSDT" {
		t.Errorf("expected normalized symbol ETHUSDT, got %s", items[1].Symbol)
	}

	if err := repo.DeleteHolding(ctx, "ETHUSDT"); err != nil {
		t.Fatalf("DeleteHolding failed: %v", err)
	}
	if err := repo.DeleteHolding(ctx, "ETHUSDT"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteRepoInsertSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, _, _, err := repo.LastSnapshot(ctx); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}

	totals := domain.Totals{Invested: 100, Current: 150, PnL: 50, PnLPercent: 50}
	if err := repo.InsertSnapshot(ctx, 10, domain.Totals{Invested: 1}, `{}`); err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}
	if err := repo.InsertSnapshot(ctx, 20, totals, `{"holdings":[]}`); err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}

	ts, got, payload, err := repo.LastSnapshot(ctx)
	if err != nil {
		t.Fatalf("LastSnapshot failed: %v", err)
	}
	if ts != 20 || got != totals || payload != `{"holdings":[]}` {
		t.Errorf("unexpected snapshot: ts=%d totals=%+v payload=%s", ts, got, payload)
	}
}
