package binance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"coinfolio/internal/application/port"
	"coinfolio/internal/infrastructure/exchange"
)

const (
	DefaultStreamURL    = "wss://stream.binance.com:9443/ws/!ticker@arr"
	defaultPingInterval = 25 * time.Second
	closeWriteTimeout   = time.Second
)

// StreamDialer 建立到全市场 ticker 流的 websocket 连接
// 只负责传输：不重连、不设读超时，连接存活只由传输层的关闭或错误判断
type StreamDialer struct {
	helper       exchange.WSHelper
	pingInterval time.Duration
}

// NewStreamDialer 使用给定 ws 地址创建拨号器，空地址使用默认全市场流
func NewStreamDialer(wsURL string) *StreamDialer {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		wsURL = DefaultStreamURL
	}
	return &StreamDialer{
		helper:       exchange.WSHelper{URL: wsURL},
		pingInterval: defaultPingInterval,
	}
}

func (d *StreamDialer) Dial(ctx context.Context) (port.StreamConn, error) {
	conn, err := d.helper.DialWS(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("url", d.helper.URL).Msg("ws connected")

	c := &streamConn{conn: conn, done: make(chan struct{})}
	go exchange.PingEvery(conn, d.pingInterval, c.done)
	return c, nil
}

type streamConn struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (c *streamConn) ReadMessage() ([]byte, error) {
	_, b, err := c.conn.ReadMessage()
	return b, err
}

// Close clean=true 时先发送 1000 关闭帧，表明是应用主动关闭
func (c *streamConn) Close(clean bool) error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if clean {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
		}
		err = c.conn.Close()
	})
	return err
}

var _ port.StreamDialer = (*StreamDialer)(nil)
