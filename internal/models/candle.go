package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a fixed-period OHLCV bar. Start is the period start in unix
// seconds, aligned to a whole number of periods from UTC midnight.
//
// Invariants: Open is the price of the first trade in the period, Close the
// price of the last (by arrival order), High/Low bound every trade price and
// Volume is the exact sum of trade amounts.
type Candle struct {
	Start  int64           `csv:"start"`
	Open   decimal.Decimal `csv:"open"`
	Close  decimal.Decimal `csv:"close"`
	High   decimal.Decimal `csv:"high"`
	Low    decimal.Decimal `csv:"low"`
	Volume decimal.Decimal `csv:"volume"`
}

// StartTime returns the period start as UTC time.
func (c Candle) StartTime() time.Time {
	return time.Unix(c.Start, 0).UTC()
}

// NewCandle builds a candle from a period start and the trades that occurred
// within it. Trade timestamps are not rechecked here; callers are expected to
// have bucketed them already.
func NewCandle(start int64, trades []Trade) Candle {
	c := Candle{
		Start: start,
		Open:  trades[0].Price,
		Close: trades[len(trades)-1].Price,
		High:  trades[0].Price,
		Low:   trades[0].Price,
	}
	for _, t := range trades {
		if t.Price.GreaterThan(c.High) {
			c.High = t.Price
		}
		if t.Price.LessThan(c.Low) {
			c.Low = t.Price
		}
		c.Volume = c.Volume.Add(t.Amount)
	}
	return c
}

// Merge combines c with a candle built from newer trades of the same period:
// the open is kept, the close taken from the newer candle, high/low widened
// and volumes summed.
func (c Candle) Merge(newer Candle) Candle {
	merged := c
	merged.Close = newer.Close
	if newer.High.GreaterThan(merged.High) {
		merged.High = newer.High
	}
	if newer.Low.LessThan(merged.Low) {
		merged.Low = newer.Low
	}
	merged.Volume = merged.Volume.Add(newer.Volume)
	return merged
}

// Closes extracts the close series from a candle sequence.
func Closes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
