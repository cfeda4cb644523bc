package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"coinfolio/internal/domain"
)

type Holding struct {
	Symbol      string  `toml:"symbol"`
	Amount      float64 `toml:"amount"`
	AvgBuyPrice float64 `toml:"avg_buy_price"`
}

type Config struct {
	App struct {
		LogLevel        string `toml:"log_level"`
		RefreshEverySec int    `toml:"refresh_every_sec"`
		RenderEveryMs   int    `toml:"render_every_ms"`
		PrintEveryMin   int    `toml:"print_every_min"`
	} `toml:"app"`

	Market struct {
		Exchange string `toml:"exchange"` // 行情流来源，见 pricefeed 注册表
		Quote    string `toml:"quote"`
	} `toml:"market"`

	Exchange struct {
		Binance struct {
			RestURL string `toml:"rest_url"`
			WsURL   string `toml:"ws_url"`
		} `toml:"binance"`
	} `toml:"exchange"`

	Stream struct {
		ReconnectDelayMs int `toml:"reconnect_delay_ms"`
		DialTimeoutSec   int `toml:"dial_timeout_sec"`
	} `toml:"stream"`

	Rest struct {
		TimeoutSec         int `toml:"timeout_sec"`
		RequestsPerSecond  int `toml:"requests_per_second"`
		BreakerFailures    int `toml:"breaker_failures"`
		BreakerCooldownSec int `toml:"breaker_cooldown_sec"`
	} `toml:"rest"`

	Storage struct {
		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`

		Redis struct {
			Enabled         bool   `toml:"enabled"`
			Addr            string `toml:"addr"`
			Password        string `toml:"password"`
			DB              int    `toml:"db"`
			Prefix          string `toml:"prefix"`
			TTLSec          int    `toml:"ttl_sec"`
			SnapshotStream  string `toml:"snapshot_stream"`
			SnapshotChannel string `toml:"snapshot_channel"`
		} `toml:"redis"`
	} `toml:"storage"`

	Metrics struct {
		Enabled    bool   `toml:"enabled"`
		ListenAddr string `toml:"listen_addr"`
	} `toml:"metrics"`

	Portfolio struct {
		Holdings []Holding `toml:"holdings"`
	} `toml:"portfolio"`
}

// Load 读取 TOML 配置；path 为空时只使用默认值。
// 随后加载 .env（不存在则忽略）并应用 COINFOLIO_* 环境变量覆盖。
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) RefreshEvery() time.Duration {
	return time.Duration(c.App.RefreshEverySec) * time.Second
}

func (c *Config) RenderEvery() time.Duration {
	return time.Duration(c.App.RenderEveryMs) * time.Millisecond
}

func (c *Config) PrintEvery() time.Duration {
	return time.Duration(c.App.PrintEveryMin) * time.Minute
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Stream.ReconnectDelayMs) * time.Millisecond
}

func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Stream.DialTimeoutSec) * time.Second
}

func (c *Config) RestTimeout() time.Duration {
	return time.Duration(c.Rest.TimeoutSec) * time.Second
}

func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Rest.BreakerCooldownSec) * time.Second
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Storage.Redis.TTLSec) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.RefreshEverySec <= 0 {
		cfg.App.RefreshEverySec = 30
	}
	if cfg.App.RenderEveryMs <= 0 {
		cfg.App.RenderEveryMs = 200
	}
	if cfg.App.PrintEveryMin <= 0 {
		cfg.App.PrintEveryMin = 5
	}
	if strings.TrimSpace(cfg.Market.Exchange) == "" {
		cfg.Market.Exchange = "binance"
	}
	if strings.TrimSpace(cfg.Market.Quote) == "" {
		cfg.Market.Quote = "USDT"
	}
	if cfg.Exchange.Binance.RestURL == "" {
		cfg.Exchange.Binance.RestURL = "https://api.binance.com"
	}
	if cfg.Exchange.Binance.WsURL == "" {
		cfg.Exchange.Binance.WsURL = "wss://stream.binance.com:9443/ws/!ticker@arr"
	}
	if cfg.Stream.ReconnectDelayMs <= 0 {
		cfg.Stream.ReconnectDelayMs = 2000
	}
	if cfg.Stream.DialTimeoutSec <= 0 {
		cfg.Stream.DialTimeoutSec = 10
	}
	if cfg.Rest.TimeoutSec <= 0 {
		cfg.Rest.TimeoutSec = 10
	}
	if cfg.Rest.BreakerFailures <= 0 {
		cfg.Rest.BreakerFailures = 5
	}
	if cfg.Rest.BreakerCooldownSec <= 0 {
		cfg.Rest.BreakerCooldownSec = 30
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/coinfolio.db"
	}
	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "coinfolio"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9108"
	}
}

func validate(cfg *Config) error {
	cfg.Market.Quote = domain.NormalizeSymbol(cfg.Market.Quote)

	if strings.TrimSpace(cfg.Exchange.Binance.RestURL) == "" {
		return errors.New("exchange.binance.rest_url is empty")
	}
	if !strings.HasPrefix(cfg.Exchange.Binance.WsURL, "ws://") && !strings.HasPrefix(cfg.Exchange.Binance.WsURL, "wss://") {
		return fmt.Errorf("exchange.binance.ws_url %q is not a websocket url", cfg.Exchange.Binance.WsURL)
	}
	if cfg.Rest.RequestsPerSecond < 0 {
		return errors.New("rest.requests_per_second must be >= 0")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	for i, h := range cfg.Portfolio.Holdings {
		if strings.TrimSpace(h.Symbol) == "" {
			return fmt.Errorf("portfolio.holdings[%d]: symbol is empty", i)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.App.LogLevel, "COINFOLIO_LOG_LEVEL")
	setStr(&cfg.Market.Exchange, "COINFOLIO_EXCHANGE")
	setStr(&cfg.Market.Quote, "COINFOLIO_QUOTE")
	setStr(&cfg.Exchange.Binance.RestURL, "COINFOLIO_BINANCE_REST_URL")
	setStr(&cfg.Exchange.Binance.WsURL, "COINFOLIO_BINANCE_WS_URL")
	setInt(&cfg.Rest.RequestsPerSecond, "COINFOLIO_REST_RPS")

	setBool(&cfg.Storage.SQLite.Enabled, "COINFOLIO_SQLITE_ENABLED")
	setStr(&cfg.Storage.SQLite.Path, "COINFOLIO_SQLITE_PATH")
	setBool(&cfg.Storage.Postgres.Enabled, "COINFOLIO_POSTGRES_ENABLED")
	setStr(&cfg.Storage.Postgres.DSN, "COINFOLIO_POSTGRES_DSN")
	setBool(&cfg.Storage.Redis.Enabled, "COINFOLIO_REDIS_ENABLED")
	setStr(&cfg.Storage.Redis.Addr, "COINFOLIO_REDIS_ADDR")
	setStr(&cfg.Storage.Redis.Password, "COINFOLIO_REDIS_PASSWORD")

	setBool(&cfg.Metrics.Enabled, "COINFOLIO_METRICS_ENABLED")
	setStr(&cfg.Metrics.ListenAddr, "COINFOLIO_METRICS_ADDR")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
