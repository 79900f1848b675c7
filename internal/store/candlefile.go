// Package store handles on-disk persistence: headerless CSV files for
// candles and raw trades, and a SQLite journal for our own activity.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"

	"cryptrade/internal/models"
	"cryptrade/pkg/utils"
)

// CandlePath returns the candle file path for a market and period, e.g.
// <root>/candles/bitfinex_BTC_USD_15m.csv.
func CandlePath(root, market string, period utils.Period) string {
	return filepath.Join(root, "candles", fmt.Sprintf("%s_%s.csv", market, period))
}

// LoadCandles reads all candles from a headerless CSV file, sorted by start.
// A missing file yields an empty slice and no error.
func LoadCandles(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening candle file: %w", err)
	}
	defer f.Close()

	var candles []models.Candle
	if err := gocsv.UnmarshalWithoutHeaders(f, &candles); err != nil {
		return nil, fmt.Errorf("parsing candle file %s: %w", path, err)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Start < candles[j].Start })
	return candles, nil
}

// WriteCandles replaces the candle file with the given rows.
func WriteCandles(path string, candles []models.Candle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating candle dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating candle file: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalWithoutHeaders(&candles, f); err != nil {
		return fmt.Errorf("writing candle file %s: %w", path, err)
	}
	return nil
}

// AppendCandles appends rows to the candle file, creating it if absent.
func AppendCandles(path string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating candle dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening candle file: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalWithoutHeaders(&candles, f); err != nil {
		return fmt.Errorf("appending candle file %s: %w", path, err)
	}
	return nil
}
