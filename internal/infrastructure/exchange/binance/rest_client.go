package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
	"coinfolio/internal/infrastructure/exchange"
)

const (
	DefaultRestURL = "https://api.binance.com"

	defaultKlineLimit = 100
	maxKlineLimit     = 1000
)

// REST 接口名，用于指标与错误信息
const (
	EndpointExchangeInfo = "exchange_info"
	EndpointPrice        = "ticker_price"
	EndpointAllPrices    = "ticker_price_all"
	EndpointStats24h     = "ticker_24hr"
	EndpointKlines       = "klines"
)

var klineIntervals = map[string]struct{}{
	"1s": {}, "1m": {}, "3m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "2h": {}, "4h": {}, "6h": {}, "8h": {}, "12h": {},
	"1d": {}, "3d": {}, "1w": {}, "1M": {},
}

// ValidInterval 是否为 Binance 支持的 K 线周期
func ValidInterval(interval string) bool {
	_, ok := klineIntervals[interval]
	return ok
}

// ClampLimit K 线数量：<=0 取默认 100，上限 1000
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultKlineLimit
	}
	if limit > maxKlineLimit {
		return maxKlineLimit
	}
	return limit
}

// RestOptions REST 客户端配置
type RestOptions struct {
	BaseURL           string
	Timeout           time.Duration // 单次请求超时，默认 10s
	RequestsPerSecond int           // <=0 不限速
	BreakerFailures   uint32        // 连续失败多少次后熔断，默认 5
	BreakerCooldown   time.Duration // 熔断打开后多久进入半开，默认 30s

	// Observe 每次请求结束后回调（指标）
	Observe func(endpoint string, took time.Duration, err error)
}

// RestClient Binance 现货公共行情 REST 客户端
// 无重试：失败直接返回，由调用方决定是否跳过本轮
type RestClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker
	observe    func(endpoint string, took time.Duration, err error)
}

// NewRestClient 创建 Binance REST 客户端
func NewRestClient(opts RestOptions) *RestClient {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultRestURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	if opts.Observe == nil {
		opts.Observe = func(string, time.Duration, error) {}
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}

	return &RestClient{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: limiter,
		breaker: newCircuitBreaker(opts.BreakerFailures, opts.BreakerCooldown),
		observe: opts.Observe,
	}
}

func newCircuitBreaker(maxFailures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "binance-rest",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				log.Warn().Str("breaker", name).Msg("binance rest seems down, stop allowing requests")
			}
			if from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen {
				log.Info().Str("breaker", name).Msg("checking binance rest status")
			}
			if from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed {
				log.Info().Str("breaker", name).Msg("binance rest seems ok, restart allowing requests")
			}
		},
	})
}

type exchangeInfoResp struct {
	Symbols []struct {
		Symbol               string     `json:"symbol"`
		Status               string     `json:"status"`
		QuoteAsset           string     `json:"quoteAsset"`
		IsSpotTradingAllowed *bool      `json:"isSpotTradingAllowed"`
		Permissions          []string   `json:"permissions"`
		PermissionSets       [][]string `json:"permissionSets"`
	} `json:"symbols"`
}

// GetExchangeInfo 拉取交易对目录
// 权限可能出现在 permissions 或 permissionSets 中，这里合并为一个列表
func (c *RestClient) GetExchangeInfo(ctx context.Context) ([]domain.Instrument, error) {
	body, err := c.publicRequest(ctx, EndpointExchangeInfo, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}

	var resp exchangeInfoResp
	if err := exchange.ParseJSON(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", EndpointExchangeInfo, err)
	}
	if resp.Symbols == nil {
		return nil, fmt.Errorf("%s: payload has no symbols", EndpointExchangeInfo)
	}

	out := make([]domain.Instrument, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if strings.TrimSpace(s.Symbol) == "" {
			continue
		}
		perms := append([]string(nil), s.Permissions...)
		for _, set := range s.PermissionSets {
			perms = append(perms, set...)
		}
		out = append(out, domain.Instrument{
			Symbol:      domain.NormalizeSymbol(s.Symbol),
			Status:      s.Status,
			QuoteAsset:  s.QuoteAsset,
			Permissions: perms,
			SpotAllowed: s.IsSpotTradingAllowed,
		})
	}
	return out, nil
}

// GetInstruments 实现 port.CatalogSource
func (c *RestClient) GetInstruments(ctx context.Context) ([]domain.Instrument, error) {
	return c.GetExchangeInfo(ctx)
}

type priceRecord struct {
	Symbol string          `json:"symbol"`
	Price  json.RawMessage `json:"price"`
}

// GetPrice 单个交易对最新价
func (c *RestClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("%s: symbol is empty: %w", EndpointPrice, domain.ErrUnknownSymbol)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.publicRequest(ctx, EndpointPrice, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, err
	}

	var rec priceRecord
	if err := exchange.ParseJSON(body, &rec); err != nil {
		return 0, fmt.Errorf("%s: %w", EndpointPrice, err)
	}
	px, ok := parseNumber(rec.Price)
	if !ok || !domain.ValidPrice(px) {
		return 0, fmt.Errorf("%s: invalid price for %s", EndpointPrice, symbol)
	}
	return px, nil
}

// GetAllPrices 全部交易对最新价；价格无效的记录被剔除
func (c *RestClient) GetAllPrices(ctx context.Context) (map[string]float64, error) {
	body, err := c.publicRequest(ctx, EndpointAllPrices, "/api/v3/ticker/price", nil)
	if err != nil {
		return nil, err
	}

	var recs []priceRecord
	if err := exchange.ParseJSON(body, &recs); err != nil {
		return nil, fmt.Errorf("%s: %w", EndpointAllPrices, err)
	}

	out := make(map[string]float64, len(recs))
	for _, r := range recs {
		sym := domain.NormalizeSymbol(r.Symbol)
		px, ok := parseNumber(r.Price)
		if sym == "" || !ok || !domain.ValidPrice(px) {
			continue
		}
		out[sym] = px
	}
	return out, nil
}

type stats24hRecord struct {
	Symbol             string          `json:"symbol"`
	LastPrice          json.RawMessage `json:"lastPrice"`
	PriceChangePercent json.RawMessage `json:"priceChangePercent"`
	QuoteVolume        json.RawMessage `json:"quoteVolume"`
}

// GetAll24hStats 全部交易对 24h 统计
// 价格与涨跌幅为必填字段，缺失或非有限值时整条剔除；成交额缺失时置空
func (c *RestClient) GetAll24hStats(ctx context.Context) (domain.TickerUpdate, error) {
	body, err := c.publicRequest(ctx, EndpointStats24h, "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}

	var recs []stats24hRecord
	if err := exchange.ParseJSON(body, &recs); err != nil {
		return nil, fmt.Errorf("%s: %w", EndpointStats24h, err)
	}

	out := make(domain.TickerUpdate, len(recs))
	for _, r := range recs {
		sym := domain.NormalizeSymbol(r.Symbol)
		px, ok := parseNumber(r.LastPrice)
		if sym == "" || !ok || !domain.ValidPrice(px) {
			continue
		}
		pct, ok := parseNumber(r.PriceChangePercent)
		if !ok {
			continue
		}
		out[sym] = domain.Ticker{
			Price:         px,
			ChangePercent: pct,
			QuoteVolume:   optionalNumber(r.QuoteVolume),
		}
	}
	return out, nil
}

// GetKlines K 线；interval 需为交易所支持的周期，limit 会被规整到 [1,1000]
func (c *RestClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%s: symbol is empty: %w", EndpointKlines, domain.ErrUnknownSymbol)
	}
	interval = strings.TrimSpace(interval)
	if !ValidInterval(interval) {
		return nil, fmt.Errorf("%s: %q: %w", EndpointKlines, interval, domain.ErrInvalidInterval)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(ClampLimit(limit)))
	body, err := c.publicRequest(ctx, EndpointKlines, "/api/v3/klines", params)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := exchange.ParseJSON(body, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", EndpointKlines, err)
	}

	out := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		if candle, err := parseKline(row); err == nil {
			out = append(out, candle)
		}
	}
	return out, nil
}

// parseKline [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 7 {
		return domain.Candle{}, errors.New("short kline row")
	}

	var ohlc [4]float64
	for i := range ohlc {
		v, ok := parseNumber(row[i+1])
		if !ok || !domain.ValidPrice(v) {
			return domain.Candle{}, errors.New("invalid ohlc")
		}
		ohlc[i] = v
	}
	openTime, ok := parseNumber(row[0])
	if !ok {
		return domain.Candle{}, errors.New("invalid open time")
	}
	closeTime, ok := parseNumber(row[6])
	if !ok {
		return domain.Candle{}, errors.New("invalid close time")
	}

	return domain.Candle{
		OpenTime:  int64(openTime),
		Open:      ohlc[0],
		High:      ohlc[1],
		Low:       ohlc[2],
		Close:     ohlc[3],
		Volume:    optionalNumber(row[5]),
		CloseTime: int64(closeTime),
	}, nil
}

var (
	_ port.MarketDataClient = (*RestClient)(nil)
	_ port.CatalogSource    = (*RestClient)(nil)
)
