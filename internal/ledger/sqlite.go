package ledger

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// TradeRecord is a confirmed order kept next to the equity history.
type TradeRecord struct {
	Ref      string
	OrderID  string
	Symbol   string
	Leg      string
	Side     string
	Filled   float64
	AvgPrice float64
	Time     time.Time
	Reason   string
}

// SQLite mirrors the ledger and confirmed trades into a database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) RecordEquity(e Entry) error {
	_, err := s.db.Exec(`
		INSERT INTO equity (time, total_equity, pnl_usdt, pnl_percent)
		VALUES (?, ?, ?, ?)`,
		e.Time.UTC(), e.TotalEquity, e.PnL, e.PnLPercent,
	)
	return err
}

func (s *SQLite) RecordTrade(t TradeRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO trades (ref, order_id, symbol, leg, side, filled, avg_price, time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Ref, t.OrderID, t.Symbol, t.Leg, t.Side, t.Filled, t.AvgPrice, t.Time.UTC(), t.Reason,
	)
	return err
}

// RecentEquity returns up to limit rows, oldest first. A negative limit returns every row.
func (s *SQLite) RecentEquity(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, total_equity, pnl_usdt, pnl_percent FROM (
			SELECT id, time, total_equity, pnl_usdt, pnl_percent FROM equity ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Time, &e.TotalEquity, &e.PnL, &e.PnLPercent); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TradesBySymbol lists recorded trades for symbol, oldest first.
func (s *SQLite) TradesBySymbol(ctx context.Context, symbol string) ([]TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref, order_id, symbol, leg, side, filled, avg_price, time, reason
		FROM trades WHERE symbol = ? ORDER BY time ASC`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.Ref, &t.OrderID, &t.Symbol, &t.Leg, &t.Side, &t.Filled, &t.AvgPrice, &t.Time, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
