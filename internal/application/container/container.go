package container

import (
	"coinfolio/internal/application/port"
	"coinfolio/internal/application/service"
)

// Deps 应用服务需要的端口
type Deps struct {
	Repo          port.Repository
	PortfolioRepo port.PortfolioRepository
	Market        port.MarketDataClient
	Universe      port.UniverseResolver
	Symbols       port.SymbolNormalizer
	Quote         string
}

type Container struct {
	deps Deps

	priceService     *service.PriceService
	portfolioService *service.PortfolioService
	snapshotService  *service.SnapshotService
	marketService    *service.MarketService
}

func New(deps Deps) *Container {
	return &Container{deps: deps}
}

func (c *Container) Repository() port.Repository {
	return c.deps.Repo
}

func (c *Container) PriceService() *service.PriceService {
	if c.priceService == nil {
		c.priceService = service.NewPriceService(c.deps.Repo)
	}
	return c.priceService
}

func (c *Container) PortfolioService() *service.PortfolioService {
	if c.portfolioService == nil {
		c.portfolioService = service.NewPortfolioService(c.deps.PortfolioRepo, c.deps.Symbols, c.deps.Universe)
	}
	return c.portfolioService
}

func (c *Container) SnapshotService() *service.SnapshotService {
	if c.snapshotService == nil {
		c.snapshotService = service.NewSnapshotService(c.deps.Repo)
	}
	return c.snapshotService
}

func (c *Container) MarketService() *service.MarketService {
	if c.marketService == nil {
		c.marketService = service.NewMarketService(c.deps.Market, c.deps.Universe, c.deps.Quote)
	}
	return c.marketService
}
