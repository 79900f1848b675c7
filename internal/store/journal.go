package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"cryptrade/internal/errors"
	"cryptrade/internal/models"
)

// Journal is the SQLite record of our own activity: executed trades as
// reported by the exchange, and periodic equity snapshots. It is a local
// mirror for reporting; the exchange remains the source of truth.
type Journal struct {
	db *sql.DB
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS own_trades (
	timestamp  INTEGER NOT NULL,
	market     TEXT    NOT NULL,
	price      TEXT    NOT NULL,
	amount     TEXT    NOT NULL,
	side       TEXT    NOT NULL,
	order_type TEXT    NOT NULL,
	UNIQUE(timestamp, market, price, amount, side)
);
CREATE INDEX IF NOT EXISTS idx_own_trades_market_ts ON own_trades(market, timestamp);

CREATE TABLE IF NOT EXISTS equity_snapshots (
	timestamp INTEGER NOT NULL,
	market    TEXT    NOT NULL,
	equity    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_equity_market_ts ON equity_snapshots(market, timestamp);
`

// OpenJournal opens (creating if needed) the journal database at
// <root>/journal.db.
func OpenJournal(root string) (*Journal, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(root, "journal.db"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialising journal schema")
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordOwnTrades inserts own trades, silently skipping rows already present.
func (j *Journal) RecordOwnTrades(market string, trades []models.OwnTrade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := j.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning journal tx")
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO own_trades
		(timestamp, market, price, amount, side, order_type)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "preparing own-trade insert")
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.Exec(t.Timestamp, market, t.Price.String(),
			t.Amount.String(), string(t.Side), t.Type); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "inserting own trade")
		}
	}
	return tx.Commit()
}

// OwnTrades returns recorded own trades for the market since the given unix
// timestamp, oldest first.
func (j *Journal) OwnTrades(market string, since int64) ([]models.OwnTrade, error) {
	rows, err := j.db.Query(`SELECT timestamp, price, amount, side, order_type
		FROM own_trades WHERE market = ? AND timestamp >= ?
		ORDER BY timestamp ASC`, market, since)
	if err != nil {
		return nil, errors.Wrap(err, "querying own trades")
	}
	defer rows.Close()

	var trades []models.OwnTrade
	for rows.Next() {
		var (
			t           models.OwnTrade
			price, amt  string
			side, otype string
		)
		if err := rows.Scan(&t.Timestamp, &price, &amt, &side, &otype); err != nil {
			return nil, errors.Wrap(err, "scanning own trade")
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrap(err, "parsing journal price")
		}
		if t.Amount, err = decimal.NewFromString(amt); err != nil {
			return nil, errors.Wrap(err, "parsing journal amount")
		}
		t.Side = models.OrderSide(side)
		t.Type = otype
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// RecordEquity stores one equity snapshot.
func (j *Journal) RecordEquity(market string, at time.Time, equity decimal.Decimal) error {
	_, err := j.db.Exec(`INSERT INTO equity_snapshots (timestamp, market, equity)
		VALUES (?, ?, ?)`, at.Unix(), market, equity.String())
	return errors.Wrap(err, "recording equity snapshot")
}

// EquitySeries returns equity snapshots for the market since the given unix
// timestamp, oldest first.
func (j *Journal) EquitySeries(market string, since int64) ([]EquityPoint, error) {
	rows, err := j.db.Query(`SELECT timestamp, equity FROM equity_snapshots
		WHERE market = ? AND timestamp >= ? ORDER BY timestamp ASC`, market, since)
	if err != nil {
		return nil, errors.Wrap(err, "querying equity snapshots")
	}
	defer rows.Close()

	var points []EquityPoint
	for rows.Next() {
		var (
			p   EquityPoint
			raw string
		)
		if err := rows.Scan(&p.Timestamp, &raw); err != nil {
			return nil, errors.Wrap(err, "scanning equity snapshot")
		}
		if p.Equity, err = decimal.NewFromString(raw); err != nil {
			return nil, errors.Wrap(err, "parsing equity value")
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// EquityPoint is one equity snapshot.
type EquityPoint struct {
	Timestamp int64
	Equity    decimal.Decimal
}
