package pricefeed

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"coinfolio/internal/application/port"
)

// Feed 一个交易所全市场 ticker 流：连接方式 + 帧解析
type Feed struct {
	Dialer port.StreamDialer
	Decode port.FrameDecoder
}

// factory函数类型
// wsURL: WebSocket连接URL，为空时使用交易所默认地址
type Factory func(wsURL string) Feed

// registry maps exchange names to their respective feed factories
var registry = make(map[string]Factory)

// Register 注册一个交易所的 feed factory
// 这是由各个交易所包的init()函数调用来自注册的
func Register(exchangeName string, factory Factory) {
	name := strings.ToUpper(strings.TrimSpace(exchangeName))
	if factory == nil || name == "" {
		log.Warn().Str("exchange", exchangeName).Msg("invalid price feed factory")
		return
	}
	if _, exists := registry[name]; exists {
		log.Warn().Str("exchange", name).Msg("price feed factory already registered, overwriting")
	}
	registry[name] = factory
	log.Debug().Str("exchange", name).Msg("price feed factory registered")
}

// Get 获取已注册的 feed factory；名称不区分大小写
func Get(exchangeName string) (Factory, bool) {
	factory, ok := registry[strings.ToUpper(strings.TrimSpace(exchangeName))]
	return factory, ok
}

// Names 已注册的交易所
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
