// Package indicators computes moving-average indicators over candle
// sequences and the two-sample-confirmed comparisons used by the strategy
// layer.
package indicators

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cryptrade/internal/models"
)

// Indicator computes a value series aligned 1:1 with a candle sequence. The
// series is recomputed in full on every call; nothing is cached between
// candle batches.
type Indicator interface {
	Name() string
	Values(candles []models.Candle) []decimal.Decimal
}

// MovingAverage is an indicator parameterised by a lookback window.
type MovingAverage interface {
	Indicator
	Window() int
}

// SMA is the simple moving average of closing prices.
type SMA struct {
	window int
}

// NewSMA creates a simple moving average over the given window.
func NewSMA(window int) *SMA {
	return &SMA{window: window}
}

func (s *SMA) Name() string { return fmt.Sprintf("sma(%d)", s.window) }

func (s *SMA) Window() int { return s.window }

// Values returns, at each index, the mean of the last window closes ending
// there; earlier indexes average over the shorter prefix available.
func (s *SMA) Values(candles []models.Candle) []decimal.Decimal {
	closes := models.Closes(candles)
	out := make([]decimal.Decimal, len(closes))
	var sum decimal.Decimal
	for i, c := range closes {
		sum = sum.Add(c)
		n := i + 1
		if i >= s.window {
			sum = sum.Sub(closes[i-s.window])
			n = s.window
		}
		out[i] = sum.Div(decimal.NewFromInt(int64(n)))
	}
	return out
}

// EMA is the exponential moving average of closing prices, seeded with the
// running mean over the first window values.
type EMA struct {
	window int
}

// NewEMA creates an exponential moving average over the given window.
func NewEMA(window int) *EMA {
	return &EMA{window: window}
}

func (e *EMA) Name() string { return fmt.Sprintf("ema(%d)", e.window) }

func (e *EMA) Window() int { return e.window }

func (e *EMA) Values(candles []models.Candle) []decimal.Decimal {
	closes := models.Closes(candles)
	out := make([]decimal.Decimal, len(closes))
	if len(closes) == 0 {
		return out
	}
	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(e.window + 1)))
	var sum decimal.Decimal
	for i, c := range closes {
		if i < e.window {
			sum = sum.Add(c)
			out[i] = sum.Div(decimal.NewFromInt(int64(i + 1)))
			continue
		}
		out[i] = c.Sub(out[i-1]).Mul(k).Add(out[i-1])
	}
	return out
}

// MACD is the elementwise difference between a fast and a slow moving
// average: fast minus slow, ordered by window regardless of argument order.
type MACD struct {
	fast MovingAverage
	slow MovingAverage
}

// NewMACD creates a convergence-divergence indicator from two moving
// averages of different windows.
func NewMACD(a, b MovingAverage) *MACD {
	if a.Window() > b.Window() {
		a, b = b, a
	}
	return &MACD{fast: a, slow: b}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("macd(%s,%s)", m.fast.Name(), m.slow.Name())
}

func (m *MACD) Values(candles []models.Candle) []decimal.Decimal {
	fast := m.fast.Values(candles)
	slow := m.slow.Values(candles)
	out := make([]decimal.Decimal, len(fast))
	for i := range fast {
		out[i] = fast[i].Sub(slow[i])
	}
	return out
}

// Comparison is a confirmed predicate over a candle sequence.
type Comparison func(candles []models.Candle) bool

// confirmed evaluates rel at the last and second-to-last indexes of the two
// series and requires both to hold. With fewer than two values there is no
// closed-period confirmation yet, so the result is false.
func confirmed(a, b []decimal.Decimal, rel func(x, y decimal.Decimal) bool) bool {
	n := len(a)
	if n < 2 || len(b) != n {
		return false
	}
	return rel(a[n-1], b[n-1]) && rel(a[n-2], b[n-2])
}

// GreaterThan reports a > b, confirmed over the last two values.
func GreaterThan(a, b Indicator) Comparison {
	return func(candles []models.Candle) bool {
		return confirmed(a.Values(candles), b.Values(candles), decimal.Decimal.GreaterThan)
	}
}

// LessThan reports a < b, confirmed over the last two values.
func LessThan(a, b Indicator) Comparison {
	return func(candles []models.Candle) bool {
		return confirmed(a.Values(candles), b.Values(candles), decimal.Decimal.LessThan)
	}
}

// Above reports a > level, confirmed over the last two values.
func Above(a Indicator, level decimal.Decimal) Comparison {
	return func(candles []models.Candle) bool {
		values := a.Values(candles)
		scalar := make([]decimal.Decimal, len(values))
		for i := range scalar {
			scalar[i] = level
		}
		return confirmed(values, scalar, decimal.Decimal.GreaterThan)
	}
}

// Below reports a < level, confirmed over the last two values.
func Below(a Indicator, level decimal.Decimal) Comparison {
	return func(candles []models.Candle) bool {
		values := a.Values(candles)
		scalar := make([]decimal.Decimal, len(values))
		for i := range scalar {
			scalar[i] = level
		}
		return confirmed(values, scalar, decimal.Decimal.LessThan)
	}
}
