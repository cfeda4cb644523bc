package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS holdings (
  symbol TEXT PRIMARY KEY,
  amount REAL NOT NULL,
  avg_buy_price REAL NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS latest_prices (
  symbol TEXT PRIMARY KEY,
  price REAL NOT NULL,
  change_percent REAL NOT NULL,
  quote_volume REAL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_latest_prices_ts ON latest_prices(ts_ms);

CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  invested REAL NOT NULL,
  current_value REAL NOT NULL,
  pnl REAL NOT NULL,
  pnl_percent REAL NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
`)
	return err
}

// UpsertLatestPrices 一次更新在同一个事务内写入
func (r *Repo) UpsertLatestPrices(ctx context.Context, update domain.TickerUpdate, ts int64) error {
	if len(update) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO latest_prices(symbol, price, change_percent, quote_volume, ts_ms)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
		price=excluded.price, change_percent=excluded.change_percent,
		quote_volume=excluded.quote_volume, ts_ms=excluded.ts_ms
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for sym, t := range update {
		if _, err := stmt.ExecContext(ctx, sym, t.Price, t.ChangePercent, nullFloat(t.QuoteVolume), ts); err != nil {
			return fmt.Errorf("upsert %s: %w", sym, err)
		}
	}
	return tx.Commit()
}

// LatestPrice 读取镜像中的最新价格；不存在返回 domain.ErrNotFound
func (r *Repo) LatestPrice(ctx context.Context, symbol string) (domain.Ticker, int64, error) {
	var (
		t  domain.Ticker
		qv sql.NullFloat64
		ts int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT price, change_percent, quote_volume, ts_ms FROM latest_prices WHERE symbol=?`,
		domain.NormalizeSymbol(symbol)).Scan(&t.Price, &t.ChangePercent, &qv, &ts)
	if err == sql.ErrNoRows {
		return domain.Ticker{}, 0, domain.ErrNotFound
	}
	if err != nil {
		return domain.Ticker{}, 0, err
	}
	if qv.Valid {
		v := qv.Float64
		t.QuoteVolume = &v
	}
	return t, ts, nil
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, totals domain.Totals, payload string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots(ts_ms, invested, current_value, pnl, pnl_percent, payload, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, ts, totals.Invested, totals.Current, totals.PnL, totals.PnLPercent, payload, time.Now().UnixMilli())
	return err
}

// LastSnapshot 最近一次估值快照
func (r *Repo) LastSnapshot(ctx context.Context) (int64, domain.Totals, string, error) {
	var (
		ts      int64
		totals  domain.Totals
		payload string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT ts_ms, invested, current_value, pnl, pnl_percent, payload
		FROM snapshots ORDER BY ts_ms DESC, id DESC LIMIT 1
	`).Scan(&ts, &totals.Invested, &totals.Current, &totals.PnL, &totals.PnLPercent, &payload)
	if err == sql.ErrNoRows {
		return 0, domain.Totals{}, "", domain.ErrNotFound
	}
	return ts, totals, payload, err
}

func (r *Repo) UpsertHolding(ctx context.Context, item domain.PortfolioItem, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holdings(symbol, amount, avg_buy_price, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
		amount=excluded.amount, avg_buy_price=excluded.avg_buy_price, updated_at=excluded.updated_at
	`, domain.NormalizeSymbol(item.Symbol), item.Amount, item.AvgBuyPrice, ts, ts)
	return err
}

func (r *Repo) DeleteHolding(ctx context.Context, symbol string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM holdings WHERE symbol=?`, domain.NormalizeSymbol(symbol))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("holding %s: %w", symbol, domain.ErrNotFound)
	}
	return nil
}

func (r *Repo) ListHoldings(ctx context.Context) ([]domain.PortfolioItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol, amount, avg_buy_price FROM holdings ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PortfolioItem
	for rows.Next() {
		var it domain.PortfolioItem
		if err := rows.Scan(&it.Symbol, &it.Amount, &it.AvgBuyPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

var (
	_ port.Repository          = (*Repo)(nil)
	_ port.PortfolioRepository = (*Repo)(nil)
)
