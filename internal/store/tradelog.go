package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"cryptrade/internal/models"
)

// TradeLog is the append-only raw trade file for one market. Rows are
// headerless timestamp,price,amount lines in arrival order.
type TradeLog struct {
	path string
}

// NewTradeLog opens (or prepares) the trade log for a market under
// <root>/trades/<market>.csv.
func NewTradeLog(root, market string) (*TradeLog, error) {
	dir := filepath.Join(root, "trades")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating trade dir: %w", err)
	}
	return &TradeLog{path: filepath.Join(dir, market+".csv")}, nil
}

// Path returns the underlying file path.
func (l *TradeLog) Path() string {
	return l.path
}

// Append writes trades to the end of the log.
func (l *TradeLog) Append(trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening trade log: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalWithoutHeaders(&trades, f); err != nil {
		return fmt.Errorf("appending trade log %s: %w", l.path, err)
	}
	return nil
}

// Load reads the whole trade log. A missing file yields an empty slice.
func (l *TradeLog) Load() ([]models.Trade, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening trade log: %w", err)
	}
	defer f.Close()

	var trades []models.Trade
	if err := gocsv.UnmarshalWithoutHeaders(f, &trades); err != nil {
		return nil, fmt.Errorf("parsing trade log %s: %w", l.path, err)
	}
	return trades, nil
}

// LoadSince reads trades with timestamp >= since.
func (l *TradeLog) LoadSince(since int64) ([]models.Trade, error) {
	all, err := l.Load()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if t.Timestamp >= since {
			out = append(out, t)
		}
	}
	return out, nil
}

// LastTimestamp returns the timestamp of the last logged trade, or 0 when
// the log is empty.
func (l *TradeLog) LastTimestamp() (int64, error) {
	trades, err := l.Load()
	if err != nil {
		return 0, err
	}
	if len(trades) == 0 {
		return 0, nil
	}
	return trades[len(trades)-1].Timestamp, nil
}
