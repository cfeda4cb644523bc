package universe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

const (
	statusTrading  = "TRADING"
	permissionSpot = "SPOT"
	flightKey      = "catalog"
)

// Resolver 可交易交易对解析器
// 首次调用拉取交易所目录，成功结果在进程生命周期内缓存；
// 并发调用共享同一次请求，失败不缓存，下次调用重试
type Resolver struct {
	source  port.CatalogSource
	quote   string
	timeout time.Duration

	group singleflight.Group

	mu     sync.RWMutex
	cached domain.Universe
}

// NewResolver 创建解析器；quote 为计价资产后缀（如 USDT）
func NewResolver(source port.CatalogSource, quote string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		source:  source,
		quote:   strings.ToUpper(strings.TrimSpace(quote)),
		timeout: timeout,
	}
}

// Quote 返回计价资产后缀
func (r *Resolver) Quote() string { return r.quote }

// Cached 非阻塞地读取已缓存的 universe
func (r *Resolver) Cached() (domain.Universe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cached, r.cached != nil
}

// Resolve 返回可交易交易对集合
// ctx 取消只会让当前调用方放弃等待，不会取消共享的目录请求
func (r *Resolver) Resolve(ctx context.Context) (domain.Universe, error) {
	if u, ok := r.Cached(); ok {
		return u, nil
	}

	ch := r.group.DoChan(flightKey, func() (interface{}, error) {
		// a previous flight may have landed between Cached() and DoChan
		if u, ok := r.Cached(); ok {
			return u, nil
		}
		return r.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domain.Universe), nil
	}
}

// Contains 判断 symbol 是否可交易
func (r *Resolver) Contains(ctx context.Context, symbol string) (bool, error) {
	u, err := r.Resolve(ctx)
	if err != nil {
		return false, err
	}
	return u.Contains(domain.NormalizeSymbol(symbol)), nil
}

func (r *Resolver) fetch(ctx context.Context) (domain.Universe, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	instruments, err := r.source.GetInstruments(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("instrument catalog fetch failed")
		return nil, fmt.Errorf("fetch instrument catalog: %w", err)
	}

	u := Filter(instruments, r.quote)

	r.mu.Lock()
	r.cached = u
	r.mu.Unlock()

	log.Info().
		Int("instruments", len(instruments)).
		Int("tradable", u.Len()).
		Str("quote", r.quote).
		Dur("took", time.Since(start)).
		Msg("symbol universe resolved")
	return u, nil
}

// Filter 按 状态=TRADING、现货权限、计价后缀 过滤目录
func Filter(instruments []domain.Instrument, quote string) domain.Universe {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	symbols := make([]string, 0, len(instruments))
	for _, in := range instruments {
		if Qualifies(in, quote) {
			symbols = append(symbols, in.Symbol)
		}
	}
	return domain.NewUniverse(symbols...)
}

// Qualifies 单个交易对是否进入 universe
// 交易所对现货资格的表达不一致：可能是权限列表，也可能是布尔开关，任一成立即可
func Qualifies(in domain.Instrument, quote string) bool {
	sym := domain.NormalizeSymbol(in.Symbol)
	if !strings.EqualFold(strings.TrimSpace(in.Status), statusTrading) {
		return false
	}
	if quote == "" || len(sym) <= len(quote) || !strings.HasSuffix(sym, quote) {
		return false
	}
	if in.SpotAllowed != nil && *in.SpotAllowed {
		return true
	}
	for _, p := range in.Permissions {
		if strings.EqualFold(strings.TrimSpace(p), permissionSpot) {
			return true
		}
	}
	return false
}

var _ port.UniverseResolver = (*Resolver)(nil)
