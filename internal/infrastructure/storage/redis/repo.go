package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

type Repo struct {
	rdb            *redis.Client
	prefix         string
	ttl            time.Duration
	keyLatest      string // prefix + ":latest"
	snapshotStream string
	snapshotChan   string
	maxLen         int64
}

type LatestPrice struct {
	Symbol        string   `json:"symbol"`
	Price         float64  `json:"price"`
	ChangePercent float64  `json:"change_percent"`
	QuoteVolume   *float64 `json:"quote_volume,omitempty"`
	Ts            int64    `json:"ts"`
}

// SnapshotMessage PUBLISH 到快照频道的消息体
type SnapshotMessage struct {
	Ts      int64           `json:"ts_ms"`
	Totals  domain.Totals   `json:"totals"`
	Payload json.RawMessage `json:"payload"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, snapshotStream, snapshotChan string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "coinfolio"
	}
	if strings.TrimSpace(snapshotStream) == "" {
		snapshotStream = prefix + ":snapshots"
	}
	if strings.TrimSpace(snapshotChan) == "" {
		snapshotChan = prefix + ":snapshots:pub"
	}
	return &Repo{
		rdb:            rdb,
		prefix:         prefix,
		ttl:            ttl,
		keyLatest:      prefix + ":latest",
		snapshotStream: snapshotStream,
		snapshotChan:   snapshotChan,
		maxLen:         10000,
	}
}

func (r *Repo) Close() error { return r.rdb.Close() }

func (r *Repo) UpsertLatestPrices(ctx context.Context, update domain.TickerUpdate, ts int64) error {
	if len(update) == 0 {
		return nil
	}

	// Hash: field = "BTCUSDT" -> json
	values := make(map[string]any, len(update))
	for sym, t := range update {
		if !domain.ValidPrice(t.Price) {
			continue
		}
		b, err := json.Marshal(LatestPrice{
			Symbol:        sym,
			Price:         t.Price,
			ChangePercent: t.ChangePercent,
			QuoteVolume:   t.QuoteVolume,
			Ts:            ts,
		})
		if err != nil {
			return err
		}
		values[sym] = string(b)
	}
	if len(values) == 0 {
		return nil
	}

	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, values)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// LatestPrice 读取 hash 中单个交易对
func (r *Repo) LatestPrice(ctx context.Context, symbol string) (LatestPrice, error) {
	var lp LatestPrice
	raw, err := r.rdb.HGet(ctx, r.keyLatest, domain.NormalizeSymbol(symbol)).Result()
	if err == redis.Nil {
		return lp, domain.ErrNotFound
	}
	if err != nil {
		return lp, err
	}
	err = json.Unmarshal([]byte(raw), &lp)
	return lp, err
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, totals domain.Totals, payload string) error {
	// 1) Stream: XADD <stream> MAXLEN ~ N * ts totals payload
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.snapshotStream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"ts_ms":    ts,
			"invested": totals.Invested,
			"current":  totals.Current,
			"pnl":      totals.PnL,
			"payload":  payload,
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	raw := json.RawMessage(payload)
	if !json.Valid(raw) {
		b, _ := json.Marshal(payload)
		raw = b
	}
	msg, err := json.Marshal(SnapshotMessage{Ts: ts, Totals: totals, Payload: raw})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.snapshotChan, msg).Err()
}

var _ port.Repository = (*Repo)(nil)
