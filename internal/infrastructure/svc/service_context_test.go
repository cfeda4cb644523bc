package svc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"coinfolio/internal/application/stream"
	"coinfolio/internal/infrastructure/config"
)

func TestServiceContextWiring(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "coinfolio.db")
	cfg.Portfolio.Holdings = []config.Holding{
		{Symbol: "btc", Amount: 1, AvgBuyPrice: 100},
		{Symbol: "eth", Amount: -1, AvgBuyPrice: 100},
	}

	ctx := context.Background()
	sc, err := New(ctx, cfg)
	require.NoError(t, err)

	items, err := sc.Portfolio().ListHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "BTCUSDT", items[0].Symbol)

	deps := sc.BuildMonitorServiceDeps()
	require.NotNil(t, deps.Stream)
	require.NotNil(t, deps.Market)
	require.NotNil(t, deps.Holdings)
	require.NotNil(t, deps.Repo)
	require.Equal(t, "USDT", deps.Quote)
	require.Equal(t, stream.StateClosed, sc.Stream().State())

	require.NoError(t, sc.Close())
	require.Equal(t, stream.StateShutDown, sc.Stream().State())
}

func TestServiceContextStorageFailure(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "coinfolio.db")
	cfg.Storage.Redis.Enabled = true
	cfg.Storage.Redis.Addr = "127.0.0.1:1"

	_, err = New(context.Background(), cfg)
	require.ErrorIs(t, err, ErrStorageInitFailed)
}

func TestServiceContextUnknownExchange(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "coinfolio.db")
	cfg.Market.Exchange = "nowhere"

	_, err = New(context.Background(), cfg)
	require.ErrorIs(t, err, ErrStreamInitFailed)
}
