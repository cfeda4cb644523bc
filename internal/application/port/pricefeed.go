package port

import (
	"context"

	"coinfolio/internal/domain"
)

// StreamConn 一条已建立的行情流连接
type StreamConn interface {
	// ReadMessage 阻塞读取下一帧；连接关闭或出错时返回 error
	ReadMessage() ([]byte, error)
	// Close 关闭连接；clean=true 表示应用主动关闭（发送 1000 关闭帧）
	Close(clean bool) error
}

// StreamDialer 建立到交易所全市场 ticker 流的连接
type StreamDialer interface {
	Dial(ctx context.Context) (StreamConn, error)
}

// Subscriber 行情订阅回调，每帧收到一份已过滤的 TickerUpdate
type Subscriber func(domain.TickerUpdate)

// TickerSource 行情多路复用器对外暴露的订阅接口
type TickerSource interface {
	Subscribe(cb Subscriber) (unsubscribe func())
}

// 记录被丢弃的原因
const (
	RejectMissingSymbol = "missing_symbol"
	RejectInvalidPrice  = "invalid_price"
	RejectQuoteSuffix   = "quote_suffix"
	RejectNotTradable   = "not_tradable"
	RejectMalformed     = "malformed"
)

// TickerRecord 单条 ticker 记录的解析结果；Reject 非空表示该记录被丢弃及原因
type TickerRecord struct {
	Symbol string
	Ticker domain.Ticker
	Reject string
}

// FrameDecoder 把一帧原始消息解析为记录列表；整帧无法解析时返回 error
type FrameDecoder func(frame []byte) ([]TickerRecord, error)
