package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// SQLiteStore journals trade records to a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite3 serializes writers anyway.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			kind TEXT NOT NULL,
			quantity TEXT NOT NULL,
			price TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			fill_confirmed BOOLEAN NOT NULL DEFAULT 0,
			entry_price TEXT,
			realized_profit TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol_created ON trades(symbol, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// SaveTrade is idempotent on the record ID.
func (s *SQLiteStore) SaveTrade(ctx context.Context, rec domain.TradeRecord) error {
	query := `INSERT OR IGNORE INTO trades (id, symbol, kind, quantity, price, reason, fill_confirmed, entry_price, realized_profit, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Symbol, string(rec.Kind), rec.Quantity.String(), rec.Price.String(),
		string(rec.Reason), rec.FillConfirmed, nullDecimal(rec.EntryPrice), nullDecimal(rec.RealizedProfit), rec.Timestamp.UTC())
	return err
}

// ListTrades returns the newest limit records, newest first.
func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT id, symbol, kind, quantity, price, reason, fill_confirmed, entry_price, realized_profit, created_at
			  FROM trades ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			rec           domain.TradeRecord
			kind, reason  string
			entry, profit decimal.NullDecimal
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &kind, &rec.Quantity, &rec.Price, &reason, &rec.FillConfirmed, &entry, &profit, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Kind = domain.TradeKind(kind)
		rec.Reason = domain.ExitReason(reason)
		rec.EntryPrice = fromNull(entry)
		rec.RealizedProfit = fromNull(profit)
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func fromNull(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	v := n.Decimal
	return &v
}
