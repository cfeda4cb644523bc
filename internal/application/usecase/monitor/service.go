package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"coinfolio/internal/application/port"
	"coinfolio/internal/application/service"
	"coinfolio/internal/domain"
)

type ServiceDeps struct {
	Stream   port.TickerSource
	Market   port.SnapshotProvider
	Holdings HoldingsSource
	Sink     port.Sink
	Repo     port.Repository

	Quote        string
	RefreshEvery time.Duration // REST 回补间隔
	RenderEvery  time.Duration // live 行最短重绘间隔
	PrintEvery   time.Duration // 快照行间隔
}

type Service struct {
	deps      ServiceDeps
	st        *State
	fmt       *Formatter
	prices    *service.PriceService
	snapshots *service.SnapshotService
	now       func() time.Time

	items      []domain.PortfolioItem
	refreshing atomic.Bool
}

func NewService(deps ServiceDeps) *Service {
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	if deps.RefreshEvery <= 0 {
		deps.RefreshEvery = 30 * time.Second
	}
	if deps.RenderEvery <= 0 {
		deps.RenderEvery = 200 * time.Millisecond
	}
	if deps.PrintEvery <= 0 {
		deps.PrintEvery = time.Minute
	}
	return &Service{
		deps:      deps,
		st:        NewState(nil),
		fmt:       NewFormatter(deps.Quote),
		prices:    service.NewPriceService(deps.Repo),
		snapshots: service.NewSnapshotService(deps.Repo),
		now:       time.Now,
	}
}

// Run 订阅行情流并周期性 REST 回补，直到 ctx 结束
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Stream == nil || s.deps.Holdings == nil || s.deps.Sink == nil {
		return errors.New("monitor: stream, holdings and sink are required")
	}
	if err := s.reloadHoldings(ctx); err != nil {
		return err
	}
	if len(s.items) == 0 {
		log.Warn().Msg("portfolio is empty, add holdings with `coinfolio holding set`")
	}

	// 回调在多路复用器的读 goroutine 中执行，不能阻塞；更新 map 只读
	updates := make(chan domain.TickerUpdate, 64)
	unsubscribe := s.deps.Stream.Subscribe(func(u domain.TickerUpdate) {
		select {
		case updates <- u:
		default:
			log.Debug().Int("symbols", len(u)).Msg("monitor busy, stream frame skipped")
		}
	})
	defer unsubscribe()
	log.Info().Int("holdings", len(s.items)).Msg("monitor started")

	backfills := make(chan domain.TickerUpdate, 1)
	s.startBackfill(ctx, backfills)

	refreshTicker := time.NewTicker(s.deps.RefreshEvery)
	defer refreshTicker.Stop()
	renderTicker := time.NewTicker(s.deps.RenderEvery)
	defer renderTicker.Stop()
	snapTicker := time.NewTicker(s.deps.PrintEvery)
	defer snapTicker.Stop()

	// initial live line
	_ = s.deps.Sink.WriteLive(s.fmt.Render(s.st, s.items, RenderLive))
	dirty := false

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case u := <-updates:
			dirty = s.apply(ctx, u) || dirty

		case u := <-backfills:
			dirty = s.apply(ctx, u) || dirty

		case <-refreshTicker.C:
			if err := s.reloadHoldings(ctx); err != nil {
				log.Warn().Err(err).Msg("reload holdings failed, keeping previous")
			}
			s.startBackfill(ctx, backfills)

		case <-renderTicker.C:
			if dirty {
				_ = s.deps.Sink.WriteLive(s.fmt.Render(s.st, s.items, RenderLive))
				dirty = false
			}

		case now := <-snapTicker.C:
			s.snapshot(ctx, now)
		}
	}
}

func (s *Service) apply(ctx context.Context, u domain.TickerUpdate) bool {
	ts := s.now().UnixMilli()
	changed, tracked := s.st.Apply(u, ts)
	if err := s.prices.UpdatePrices(ctx, tracked, ts); err != nil {
		log.Warn().Err(err).Msg("persist latest prices failed")
	}
	return changed
}

// startBackfill 后台拉一次 REST 快照；上一次尚未结束时跳过
func (s *Service) startBackfill(ctx context.Context, out chan<- domain.TickerUpdate) {
	if s.deps.Market == nil || !s.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.refreshing.Store(false)

		snap, err := s.deps.Market.FetchSnapshotAll(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("rest snapshot failed, skipping this refresh")
			}
			return
		}
		select {
		case out <- snap:
		case <-ctx.Done():
		}
	}()
}

func (s *Service) reloadHoldings(ctx context.Context) error {
	p, err := s.deps.Holdings.Portfolio(ctx)
	if err != nil {
		return err
	}
	s.items = p.Items()
	s.st.SetSymbols(p.Symbols())
	return nil
}

func (s *Service) snapshot(ctx context.Context, now time.Time) {
	line := s.fmt.Render(s.st, s.items, RenderSnapshot)
	_ = s.deps.Sink.WriteSnapshot(now, line)

	prices := s.st.Prices()
	payload := service.SnapshotPayload{
		Totals:   domain.CalculateTotals(s.items, prices),
		Holdings: s.items,
		Prices:   prices,
	}
	if err := s.snapshots.SaveSnapshot(ctx, now.UnixMilli(), payload); err != nil {
		log.Warn().Err(err).Msg("persist snapshot failed")
	}
}
