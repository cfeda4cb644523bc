package stream

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

const (
	defaultReconnectDelay = 2 * time.Second
	defaultDialTimeout    = 10 * time.Second
)

// 整帧被丢弃的原因
const (
	DropDecode   = "decode"
	DropUniverse = "universe"
)

// Options 多路复用器依赖
type Options struct {
	Dialer   port.StreamDialer
	Decode   port.FrameDecoder
	Universe port.UniverseResolver
	Quote    string

	ReconnectDelay time.Duration // 非主动关闭后的固定重连间隔
	DialTimeout    time.Duration
	Observer       Observer
}

type subscription struct {
	id uuid.UUID
	cb port.Subscriber
}

// cachedUniverse 可选能力：非阻塞读取已解析的 universe
type cachedUniverse interface {
	Cached() (domain.Universe, bool)
}

// Multiplexer 全市场 ticker 流多路复用器
// 无论有多少订阅者，同一时刻至多持有一条连接；每帧只解析过滤一次，再把同一份结果分发给所有订阅者
type Multiplexer struct {
	dialer         port.StreamDialer
	decode         port.FrameDecoder
	universe       port.UniverseResolver
	quote          string
	reconnectDelay time.Duration
	dialTimeout    time.Duration
	obs            Observer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    ConnState
	subs     []subscription
	conn     port.StreamConn
	gen      uint64 // 每次发起连接或主动断开时递增，旧连接上的事件据此丢弃
	dialing  bool
	timer    *time.Timer
	timerSeq uint64
}

// NewMultiplexer 创建多路复用器；不会立即建立连接，首个订阅者到来时才拨号
func NewMultiplexer(opts Options) (*Multiplexer, error) {
	if opts.Dialer == nil || opts.Decode == nil || opts.Universe == nil {
		return nil, errors.New("stream: dialer, decoder and universe are required")
	}
	quote := domain.NormalizeSymbol(opts.Quote)
	if quote == "" {
		return nil, errors.New("stream: quote asset is required")
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Multiplexer{
		dialer:         opts.Dialer,
		decode:         opts.Decode,
		universe:       opts.Universe,
		quote:          quote,
		reconnectDelay: opts.ReconnectDelay,
		dialTimeout:    opts.DialTimeout,
		obs:            opts.Observer,
		ctx:            ctx,
		cancel:         cancel,
		state:          StateClosed,
	}, nil
}

// Subscribe 注册回调；如当前没有连接则发起连接
// 返回的取消函数可重复调用；最后一个订阅者离开时主动关闭连接且不重连
func (m *Multiplexer) Subscribe(cb port.Subscriber) func() {
	if cb == nil {
		return func() {}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateShutDown {
		log.Warn().Msg("subscribe after shutdown ignored")
		return func() {}
	}

	id := uuid.New()
	m.subs = append(m.subs, subscription{id: id, cb: cb})
	m.obs.SubscribersChanged(len(m.subs))

	if m.state == StateClosed {
		m.connectLocked()
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(id) })
	}
}

// Shutdown 终止多路复用器：清空订阅者、取消重连定时器并关闭连接；之后 Subscribe 不再建立连接
func (m *Multiplexer) Shutdown() {
	m.mu.Lock()
	if m.state == StateShutDown {
		m.mu.Unlock()
		return
	}
	m.subs = nil
	m.obs.SubscribersChanged(0)
	m.stopTimerLocked()
	m.gen++
	m.setStateLocked(StateShutDown)
	m.closeConnLocked(true)
	m.mu.Unlock()

	m.cancel()
	log.Info().Msg("ticker stream multiplexer shut down")
}

// State 当前连接状态
func (m *Multiplexer) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SubscriberCount 当前订阅者数量
func (m *Multiplexer) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Multiplexer) unsubscribe(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := slices.IndexFunc(m.subs, func(s subscription) bool { return s.id == id })
	if idx < 0 {
		return
	}
	m.subs = slices.Delete(m.subs, idx, idx+1)
	m.obs.SubscribersChanged(len(m.subs))
	if len(m.subs) > 0 {
		return
	}

	switch m.state {
	case StateOpen:
		m.gen++
		m.closeConnLocked(true)
		m.setStateLocked(StateClosed)
		log.Info().Msg("last subscriber left, ticker stream closed")
	case StateConnecting:
		// 进行中的拨号结果会被丢弃
		m.gen++
		m.setStateLocked(StateClosed)
	case StateReconnecting:
		m.stopTimerLocked()
		m.setStateLocked(StateClosed)
	}
}

func (m *Multiplexer) setStateLocked(s ConnState) {
	if m.state == s {
		return
	}
	log.Debug().Str("from", m.state.String()).Str("to", s.String()).Msg("ticker stream state")
	m.state = s
	m.obs.StateChanged(s)
}

// connectLocked 进入 Connecting；同一时刻至多一个拨号 goroutine，新的连接请求复用进行中的拨号
func (m *Multiplexer) connectLocked() {
	m.gen++
	m.setStateLocked(StateConnecting)
	if m.dialing {
		return
	}
	m.dialing = true
	go m.dial()
}

func (m *Multiplexer) dial() {
	ctx, cancel := context.WithTimeout(m.ctx, m.dialTimeout)
	conn, err := m.dialer.Dial(ctx)
	cancel()

	m.mu.Lock()
	m.dialing = false
	if m.state != StateConnecting {
		if conn != nil {
			_ = conn.Close(true)
		}
		m.mu.Unlock()
		return
	}
	if err != nil {
		log.Warn().Err(err).Dur("retry_in", m.reconnectDelay).Msg("ticker stream dial failed")
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}
	gen := m.gen
	m.conn = conn
	m.setStateLocked(StateOpen)
	m.mu.Unlock()

	log.Info().Int("subscribers", m.SubscriberCount()).Msg("ticker stream connected")
	m.readLoop(gen, conn)
}

// readLoop 每条连接一个读 goroutine，保证帧按到达顺序处理
func (m *Multiplexer) readLoop(gen uint64, conn port.StreamConn) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			m.onClosed(gen, err)
			return
		}
		m.handleFrame(gen, frame)
	}
}

func (m *Multiplexer) onClosed(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 主动关闭或已被新连接取代
	if gen != m.gen || m.state != StateOpen {
		return
	}
	m.closeConnLocked(false)
	if len(m.subs) == 0 {
		m.setStateLocked(StateClosed)
		return
	}
	log.Warn().Err(err).Dur("retry_in", m.reconnectDelay).Msg("ticker stream closed unexpectedly")
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked 进入 Reconnecting，并保证至多一个待触发的重连定时器
func (m *Multiplexer) scheduleReconnectLocked() {
	m.setStateLocked(StateReconnecting)
	if m.timer != nil {
		return
	}
	m.timerSeq++
	seq := m.timerSeq
	m.obs.ReconnectScheduled()
	m.timer = time.AfterFunc(m.reconnectDelay, func() { m.onReconnectTimer(seq) })
}

func (m *Multiplexer) onReconnectTimer(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer == nil || seq != m.timerSeq || m.state != StateReconnecting {
		return
	}
	m.timer = nil
	log.Info().Msg("ticker stream reconnecting")
	m.connectLocked()
}

func (m *Multiplexer) stopTimerLocked() {
	if m.timer == nil {
		return
	}
	m.timer.Stop()
	m.timer = nil
	m.timerSeq++
}

func (m *Multiplexer) closeConnLocked(clean bool) {
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(clean); err != nil {
		log.Debug().Err(err).Bool("clean", clean).Msg("ticker stream close")
	}
	m.conn = nil
}

func (m *Multiplexer) handleFrame(gen uint64, frame []byte) {
	m.obs.FrameReceived()

	records, err := m.decode(frame)
	if err != nil {
		log.Error().Err(err).Int("bytes", len(frame)).Msg("drop undecodable ticker frame")
		m.obs.FrameDropped(DropDecode)
		return
	}

	universe, err := m.resolveUniverse()
	if err != nil {
		log.Error().Err(err).Int("records", len(records)).Msg("drop ticker frame, symbol universe unavailable")
		m.obs.FrameDropped(DropUniverse)
		return
	}

	update, dropped := m.filter(records, universe)
	for reason, n := range dropped {
		m.obs.RecordsDropped(reason, n)
	}
	if len(update) == 0 {
		return
	}
	m.obs.RecordsAccepted(len(update))

	for _, s := range m.currentSubscribers(gen) {
		m.deliver(s, update)
	}
}

// resolveUniverse 缓存已就绪时直接读取，否则等待解析完成
func (m *Multiplexer) resolveUniverse() (domain.Universe, error) {
	if c, ok := m.universe.(cachedUniverse); ok {
		if u, ok := c.Cached(); ok {
			return u, nil
		}
	}
	return m.universe.Resolve(m.ctx)
}

// filter 把一帧记录合并为一份 TickerUpdate，并按原因统计被丢弃的记录
func (m *Multiplexer) filter(records []port.TickerRecord, universe domain.Universe) (domain.TickerUpdate, map[string]int) {
	update := make(domain.TickerUpdate, len(records))
	dropped := make(map[string]int)

	for _, rec := range records {
		if rec.Reject != "" {
			dropped[rec.Reject]++
			continue
		}
		sym := domain.NormalizeSymbol(rec.Symbol)
		switch {
		case sym == "":
			dropped[port.RejectMissingSymbol]++
		case !domain.ValidPrice(rec.Ticker.Price):
			dropped[port.RejectInvalidPrice]++
		case len(sym) <= len(m.quote) || !strings.HasSuffix(sym, m.quote):
			dropped[port.RejectQuoteSuffix]++
		case !universe.Contains(sym):
			dropped[port.RejectNotTradable]++
		default:
			update[sym] = rec.Ticker
		}
	}
	return update, dropped
}

// currentSubscribers 连接仍是当前连接时返回订阅者快照（注册顺序）
func (m *Multiplexer) currentSubscribers(gen uint64) []subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.state != StateOpen {
		return nil
	}
	return slices.Clone(m.subs)
}

func (m *Multiplexer) deliver(s subscription, update domain.TickerUpdate) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("subscriber", s.id.String()).
				Interface("panic", r).
				Msg("ticker subscriber panicked")
		}
	}()
	s.cb(update)
}

var _ port.TickerSource = (*Multiplexer)(nil)
