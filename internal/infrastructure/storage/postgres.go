package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// PostgresStore journals trade records to PostgreSQL.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not ping database: %w", err)
	}

	store := &PostgresStore{Pool: pool}
	if err := store.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// postgresSchema uses unconstrained NUMERIC so decimals round-trip exactly.
// The ALTERs widen tables created with the earlier NUMERIC(30, 12) columns.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id VARCHAR(26) PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		kind VARCHAR(8) NOT NULL,
		quantity NUMERIC NOT NULL,
		price NUMERIC NOT NULL,
		reason VARCHAR(16) NOT NULL DEFAULT '',
		fill_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		entry_price NUMERIC,
		realized_profit NUMERIC,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`ALTER TABLE trades
		ALTER COLUMN quantity TYPE NUMERIC,
		ALTER COLUMN price TYPE NUMERIC,
		ALTER COLUMN entry_price TYPE NUMERIC,
		ALTER COLUMN realized_profit TYPE NUMERIC;`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol_created ON trades(symbol, created_at);`,
}

func (s *PostgresStore) InitSchema(ctx context.Context) error {
	for _, q := range postgresSchema {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveTrade(ctx context.Context, rec domain.TradeRecord) error {
	query := `INSERT INTO trades (id, symbol, kind, quantity, price, reason, fill_confirmed, entry_price, realized_profit, created_at)
			  VALUES ($1, $2, $3, CAST($4::text AS NUMERIC), CAST($5::text AS NUMERIC), $6, $7,
			          CAST($8::text AS NUMERIC), CAST($9::text AS NUMERIC), $10)
			  ON CONFLICT (id) DO NOTHING`
	_, err := s.Pool.Exec(ctx, query,
		rec.ID, rec.Symbol, string(rec.Kind), rec.Quantity.String(), rec.Price.String(),
		string(rec.Reason), rec.FillConfirmed, textOrNil(rec.EntryPrice), textOrNil(rec.RealizedProfit), rec.Timestamp)
	return err
}

func (s *PostgresStore) ListTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT id, symbol, kind, quantity::text, price::text, reason, fill_confirmed,
			         entry_price::text, realized_profit::text, created_at
			  FROM trades ORDER BY id DESC LIMIT $1`
	rows, err := s.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			rec           domain.TradeRecord
			kind, reason  string
			qty, price    string
			entry, profit *string
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &kind, &qty, &price, &reason, &rec.FillConfirmed, &entry, &profit, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Kind = domain.TradeKind(kind)
		rec.Reason = domain.ExitReason(reason)
		if rec.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if rec.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if rec.EntryPrice, err = parseOptional(entry); err != nil {
			return nil, err
		}
		if rec.RealizedProfit, err = parseOptional(profit); err != nil {
			return nil, err
		}
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}

func textOrNil(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseOptional(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
