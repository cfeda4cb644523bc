package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS holdings (
  symbol TEXT PRIMARY KEY,
  amount DOUBLE PRECISION NOT NULL,
  avg_buy_price DOUBLE PRECISION NOT NULL,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS latest_prices (
  symbol TEXT PRIMARY KEY,
  price DOUBLE PRECISION NOT NULL,
  change_percent DOUBLE PRECISION NOT NULL,
  quote_volume DOUBLE PRECISION,
  ts_ms BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  invested DOUBLE PRECISION NOT NULL,
  current_value DOUBLE PRECISION NOT NULL,
  pnl DOUBLE PRECISION NOT NULL,
  pnl_percent DOUBLE PRECISION NOT NULL,
  payload TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
`)
	return err
}

func (r *Repo) UpsertLatestPrices(ctx context.Context, update domain.TickerUpdate, ts int64) error {
	if len(update) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for sym, t := range update {
		var qv sql.NullFloat64
		if t.QuoteVolume != nil {
			qv = sql.NullFloat64{Float64: *t.QuoteVolume, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO latest_prices(symbol, price, change_percent, quote_volume, ts_ms)
			VALUES($1, $2, $3, $4, $5)
			ON CONFLICT(symbol) DO UPDATE SET
			price=EXCLUDED.price, change_percent=EXCLUDED.change_percent,
			quote_volume=EXCLUDED.quote_volume, ts_ms=EXCLUDED.ts_ms
		`, sym, t.Price, t.ChangePercent, qv, ts)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", sym, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) InsertSnapshot(ctx context.Context, ts int64, totals domain.Totals, payload string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots(ts_ms, invested, current_value, pnl, pnl_percent, payload, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7)
	`, ts, totals.Invested, totals.Current, totals.PnL, totals.PnLPercent, payload, time.Now().UnixMilli())
	return err
}

func (r *Repo) UpsertHolding(ctx context.Context, item domain.PortfolioItem, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holdings(symbol, amount, avg_buy_price, created_at, updated_at)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT(symbol) DO UPDATE SET
		amount=EXCLUDED.amount, avg_buy_price=EXCLUDED.avg_buy_price, updated_at=EXCLUDED.updated_at
	`, domain.NormalizeSymbol(item.Symbol), item.Amount, item.AvgBuyPrice, ts, ts)
	return err
}

func (r *Repo) DeleteHolding(ctx context.Context, symbol string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM holdings WHERE symbol=$1`, domain.NormalizeSymbol(symbol))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
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

var (
	_ port.Repository          = (*Repo)(nil)
	_ port.PortfolioRepository = (*Repo)(nil)
)
