package svc

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	appcontainer "coinfolio/internal/application/container"
	"coinfolio/internal/application/port"
	"coinfolio/internal/application/service"
	"coinfolio/internal/application/stream"
	"coinfolio/internal/application/universe"
	"coinfolio/internal/application/usecase/monitor"
	"coinfolio/internal/domain"
	"coinfolio/internal/infrastructure/config"
	infracontainer "coinfolio/internal/infrastructure/container"
	"coinfolio/internal/infrastructure/exchange"
	"coinfolio/internal/infrastructure/exchange/binance"
	"coinfolio/internal/infrastructure/metrics"
	"coinfolio/internal/infrastructure/pricefeed"
	"coinfolio/internal/interfaces/console"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	storage  *infracontainer.Container
	metrics  *metrics.Metrics
	rest     *binance.RestClient
	resolver *universe.Resolver
	symbols  *exchange.CommonSymbolConverter

	// 输出端口
	Sink port.Sink

	// 应用业务组件（依赖基础设施）
	services *appcontainer.Container
	mux      *stream.Multiplexer

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(nil),
		metrics:     metrics.New(),
		symbols:     exchange.NewCommonSymbolConverter(cfg.Market.Quote),
		closerChain: make([]func() error, 0),
	}

	// 初始化所有组件，按依赖顺序
	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 初始化所有应用组件
func (sc *ServiceContext) initializeComponents() error {
	// 0. 存储层
	storage, err := infracontainer.New(sc.Config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}
	sc.storage = storage
	sc.closerChain = append(sc.closerChain, storage.Close)

	// 1. 交易所 REST + 交易对集合
	sc.rest = binance.NewRestClient(binance.RestOptions{
		BaseURL:           sc.Config.Exchange.Binance.RestURL,
		Timeout:           sc.Config.RestTimeout(),
		RequestsPerSecond: sc.Config.Rest.RequestsPerSecond,
		BreakerFailures:   uint32(sc.Config.Rest.BreakerFailures),
		BreakerCooldown:   sc.Config.BreakerCooldown(),
		Observe:           sc.metrics.ObserveREST,
	})
	sc.resolver = universe.NewResolver(sc.rest, sc.Config.Market.Quote, sc.Config.RestTimeout())

	// 2. 应用服务
	sc.services = appcontainer.New(appcontainer.Deps{
		Repo:          storage.MarketRepo(),
		PortfolioRepo: storage.PortfolioRepo(),
		Market:        sc.rest,
		Universe:      sc.resolver,
		Symbols:       sc.symbols,
		Quote:         sc.Config.Market.Quote,
	})

	// 3. 全进程唯一的行情流多路复用器
	factory, ok := pricefeed.Get(sc.Config.Market.Exchange)
	if !ok {
		return fmt.Errorf("%w: no stream for exchange %q (registered: %v)",
			ErrStreamInitFailed, sc.Config.Market.Exchange, pricefeed.Names())
	}
	feed := factory(sc.Config.Exchange.Binance.WsURL)
	mux, err := stream.NewMultiplexer(stream.Options{
		Dialer:         feed.Dialer,
		Decode:         feed.Decode,
		Universe:       sc.resolver,
		Quote:          sc.Config.Market.Quote,
		ReconnectDelay: sc.Config.ReconnectDelay(),
		DialTimeout:    sc.Config.DialTimeout(),
		Observer:       sc.metrics,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamInitFailed, err)
	}
	sc.mux = mux
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("shutting down ticker stream")
		mux.Shutdown()
		return nil
	})

	// 4. 配置中的初始持仓
	if n, err := sc.seedHoldings(); err != nil {
		log.Warn().Err(err).Msg("seed holdings failed")
	} else if n > 0 {
		log.Info().Int("holdings", n).Msg("seeded holdings from config")
	}

	log.Info().
		Str("exchange", sc.Config.Market.Exchange).
		Str("quote", sc.Config.Market.Quote).
		Int("market_repos", storage.MarketRepo().Len()).
		Msg("all components initialized")
	return nil
}

func (sc *ServiceContext) seedHoldings() (int, error) {
	if len(sc.Config.Portfolio.Holdings) == 0 {
		return 0, nil
	}
	items := make([]domain.PortfolioItem, 0, len(sc.Config.Portfolio.Holdings))
	for _, h := range sc.Config.Portfolio.Holdings {
		items = append(items, domain.PortfolioItem{Symbol: h.Symbol, Amount: h.Amount, AvgBuyPrice: h.AvgBuyPrice})
	}
	return sc.services.PortfolioService().Seed(sc.Ctx, items)
}

// Portfolio 持仓服务
func (sc *ServiceContext) Portfolio() *service.PortfolioService {
	return sc.services.PortfolioService()
}

// Market REST 快照服务（已按 universe 过滤）
func (sc *ServiceContext) Market() *service.MarketService {
	return sc.services.MarketService()
}

func (sc *ServiceContext) Stream() *stream.Multiplexer {
	return sc.mux
}

func (sc *ServiceContext) Metrics() *metrics.Metrics {
	return sc.metrics
}

// BuildMonitorServiceDeps 构建 Monitor Service 所需的所有依赖
func (sc *ServiceContext) BuildMonitorServiceDeps() monitor.ServiceDeps {
	return monitor.ServiceDeps{
		Stream:       sc.mux,
		Market:       sc.services.MarketService(),
		Holdings:     sc.services.PortfolioService(),
		Sink:         sc.Sink,
		Repo:         sc.services.Repository(),
		Quote:        sc.Config.Market.Quote,
		RefreshEvery: sc.Config.RefreshEvery(),
		RenderEvery:  sc.Config.RenderEvery(),
		PrintEvery:   sc.Config.PrintEvery(),
	}
}

// Close 关闭 ServiceContext 中的所有资源
// 按照相反的顺序关闭：先停行情流，再关存储
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}

// Normalize 把币种或交易对统一为交易所交易对（btc -> BTCUSDT）
func (sc *ServiceContext) Normalize(symbol string) string {
	return sc.symbols.Coin2Symbol(symbol)
}
