package exchange

import (
	"strings"
)

// SymbolConverter 符号转换接口
// 持仓录入允许只写币种（BTC），这里统一换算成交易所交易对（BTCUSDT）
type SymbolConverter interface {
	// Symbol2Coin 将交易对转换为币种
	// 例: BTCUSDT -> BTC
	Symbol2Coin(symbol string) string

	// Coin2Symbol 将币种转换为交易对
	// 例: BTC -> BTCUSDT
	Coin2Symbol(coin string) string

	// SymbolSuffix 返回计价资产后缀，例: USDT
	SymbolSuffix() string
}

// CommonSymbolConverter 后缀拼接式的通用转换器（Binance 现货即此格式）
type CommonSymbolConverter struct {
	suffix string
}

// NewCommonSymbolConverter 创建通用符号转换器
func NewCommonSymbolConverter(suffix string) *CommonSymbolConverter {
	return &CommonSymbolConverter{suffix: strings.ToUpper(strings.TrimSpace(suffix))}
}

// SymbolSuffix 返回符号后缀
func (c *CommonSymbolConverter) SymbolSuffix() string {
	return c.suffix
}

// Symbol2Coin 将交易对转换为币种；不带后缀的输入原样返回（大写）
func (c *CommonSymbolConverter) Symbol2Coin(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" || c.suffix == "" || len(sym) <= len(c.suffix) {
		return sym
	}
	return strings.TrimSuffix(sym, c.suffix)
}

// Coin2Symbol 将币种转换为交易对
// 例: BTC -> BTCUSDT, BTCUSDT -> BTCUSDT
func (c *CommonSymbolConverter) Coin2Symbol(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ""
	}

	// 已经包含后缀（且不只是后缀本身），直接返回
	if len(coin) > len(c.suffix) && strings.HasSuffix(coin, c.suffix) {
		return coin
	}
	return coin + c.suffix
}
