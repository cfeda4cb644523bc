package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "USDT", cfg.Market.Quote)
	require.Equal(t, 30*time.Second, cfg.RefreshEvery())
	require.Equal(t, 2*time.Second, cfg.ReconnectDelay())
	require.Equal(t, 10*time.Second, cfg.RestTimeout())
	require.Equal(t, 5, cfg.Rest.BreakerFailures)
	require.Equal(t, "wss://stream.binance.com:9443/ws/!ticker@arr", cfg.Exchange.Binance.WsURL)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[app]
print_every_min = 1

[market]
quote = "fdusd"

[storage.redis]
enabled = true
ttl_sec = 60

[[portfolio.holdings]]
symbol = "BTC"
amount = 0.5
avg_buy_price = 30000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "FDUSD", cfg.Market.Quote)
	require.Equal(t, time.Minute, cfg.PrintEvery())
	require.True(t, cfg.Storage.Redis.Enabled)
	require.Equal(t, time.Minute, cfg.RedisTTL())
	require.Len(t, cfg.Portfolio.Holdings, 1)
	require.Equal(t, 0.5, cfg.Portfolio.Holdings[0].Amount)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("COINFOLIO_QUOTE", "busd")
	t.Setenv("COINFOLIO_REST_RPS", "7")
	t.Setenv("COINFOLIO_SQLITE_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "BUSD", cfg.Market.Quote)
	require.Equal(t, 7, cfg.Rest.RequestsPerSecond)
	require.True(t, cfg.Storage.SQLite.Enabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "[exchange.binance]\nws_url = \"http://x\"\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "[storage.postgres]\nenabled = true\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "[[portfolio.holdings]]\namount = 1\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
