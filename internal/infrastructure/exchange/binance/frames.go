package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
	"coinfolio/internal/infrastructure/exchange"
)

// wsTicker 24hrTicker 事件（!ticker@arr 中的单条记录）
// 数值字段保留原始 JSON，交易所用字符串传数字，这里统一解析并校验
type wsTicker struct {
	Event         string          `json:"e"`
	Symbol        string          `json:"s"`
	Close         json.RawMessage `json:"c"`
	ChangePercent json.RawMessage `json:"P"`
	QuoteVolume   json.RawMessage `json:"q"`
	Open          json.RawMessage `json:"o"`
	High          json.RawMessage `json:"h"`
	Low           json.RawMessage `json:"l"`
	Volume        json.RawMessage `json:"v"`
}

type combinedEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// DecodeTickerFrame 解析一帧全市场 ticker 消息
// 支持裸数组（/ws/!ticker@arr）与组合流信封（/stream?streams=...）；整帧无法解析时返回 error，
// 单条记录问题只会让该条记录带上丢弃原因
func DecodeTickerFrame(frame []byte) ([]port.TickerRecord, error) {
	b := exchange.BytesTrimSpace(frame)
	if len(b) == 0 {
		return nil, errors.New("empty frame")
	}

	if b[0] == '{' {
		var env combinedEnvelope
		if err := exchange.ParseJSON(b, &env); err != nil {
			return nil, err
		}
		b = exchange.BytesTrimSpace(env.Data)
		if len(b) == 0 {
			return nil, fmt.Errorf("envelope without data (stream %q)", env.Stream)
		}
		if b[0] == '{' {
			return []port.TickerRecord{decodeTicker(b)}, nil
		}
	}

	if b[0] != '[' {
		return nil, fmt.Errorf("unexpected ticker frame: %.32s", string(b))
	}
	var raws []json.RawMessage
	if err := exchange.ParseJSON(b, &raws); err != nil {
		return nil, err
	}

	out := make([]port.TickerRecord, 0, len(raws))
	for _, raw := range raws {
		out = append(out, decodeTicker(raw))
	}
	return out, nil
}

func decodeTicker(raw json.RawMessage) port.TickerRecord {
	var t wsTicker
	if err := json.Unmarshal(raw, &t); err != nil {
		return port.TickerRecord{Reject: port.RejectMalformed}
	}

	rec := port.TickerRecord{Symbol: domain.NormalizeSymbol(t.Symbol)}
	if rec.Symbol == "" {
		rec.Reject = port.RejectMissingSymbol
		return rec
	}

	price, ok := parseNumber(t.Close)
	if !ok || !domain.ValidPrice(price) {
		rec.Reject = port.RejectInvalidPrice
		return rec
	}
	rec.Ticker.Price = price

	if pct, ok := parseNumber(t.ChangePercent); ok {
		rec.Ticker.ChangePercent = pct
	}
	rec.Ticker.QuoteVolume = optionalNumber(t.QuoteVolume)
	return rec
}

// parseNumber 接受带引号的数字字符串或裸数字；缺失、null、无法解析或非有限值返回 false
func parseNumber(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !domain.IsFinite(f) {
		return 0, false
	}
	return f, true
}

// optionalNumber 可选的非负数值字段（成交量），无效即视为缺失
func optionalNumber(raw json.RawMessage) *float64 {
	f, ok := parseNumber(raw)
	if !ok || f < 0 {
		return nil
	}
	return &f
}

var _ port.FrameDecoder = DecodeTickerFrame
