// Package strategy evaluates composable trading conditions over market
// state and turns them into buy/sell signals.
package strategy

import (
	"github.com/shopspring/decimal"

	"cryptrade/internal/indicators"
	"cryptrade/internal/models"
)

// CandleSource is the candle access conditions need; satisfied by
// *candles.CandleStream.
type CandleSource interface {
	All(n int) []models.Candle
	Closed(n int) []models.Candle
	From(ts int64) []models.Candle
	Active() *models.Candle
}

// Context is the shared state a condition evaluates against. Each condition
// reads only the subset it needs.
type Context struct {
	Position  models.Position
	OwnTrades []models.OwnTrade
	Candles   CandleSource
}

// Condition is a named predicate over a Context.
type Condition struct {
	Name string
	Eval func(ctx *Context) bool
}

// And yields a condition true iff both c and other are true.
func (c Condition) And(other Condition) Condition {
	return Condition{
		Name: c.Name + "+" + other.Name,
		Eval: func(ctx *Context) bool { return c.Eval(ctx) && other.Eval(ctx) },
	}
}

// AndNot yields a condition true iff c is true and other is false.
func (c Condition) AndNot(other Condition) Condition {
	return Condition{
		Name: c.Name + "-" + other.Name,
		Eval: func(ctx *Context) bool { return c.Eval(ctx) && !other.Eval(ctx) },
	}
}

// Trend wraps a confirmed indicator comparison as a condition, evaluated
// over all candles including the active one.
func Trend(name string, cmp indicators.Comparison) Condition {
	return Condition{
		Name: name,
		Eval: func(ctx *Context) bool {
			return cmp(ctx.Candles.All(0))
		},
	}
}

// LongPosition is true iff the current position is long.
func LongPosition() Condition {
	return Condition{
		Name: "long",
		Eval: func(ctx *Context) bool { return ctx.Position == models.PositionLong },
	}
}

// RecentStoploss blocks buy signals after a stop-loss exit. It stays true
// (blocking) until either the trend flipped since the stop, or at least
// reboundCount consecutive closed candles have closed strictly above the
// stop's exit price. Inert when the last own trade was not a stop exit.
func RecentStoploss(trend Condition, reboundCount int) Condition {
	return Condition{
		Name: "recent-stoploss",
		Eval: func(ctx *Context) bool {
			trades := ctx.OwnTrades
			if len(trades) == 0 {
				return false
			}
			last := trades[len(trades)-1]
			if last.Side != models.SideSell || !last.IsStopExit() {
				return false
			}
			if trendFlipped(ctx, trend, last.Timestamp) {
				return false
			}
			if rebounded(ctx, last.Timestamp, last.Price, reboundCount) {
				return false
			}
			return true
		},
	}
}

// trendFlipped evaluates trend candle-by-candle since the stop exit and
// groups consecutive identical results; more than one group means the trend
// changed at least once after the stop.
func trendFlipped(ctx *Context, trend Condition, since int64) bool {
	all := ctx.Candles.All(0)
	interval := ctx.Candles.From(since)
	if len(interval) == 0 {
		return false
	}
	first := len(all) - len(interval)

	groups := 0
	var prev bool
	for i := first; i < len(all); i++ {
		sub := &Context{Position: ctx.Position, OwnTrades: ctx.OwnTrades, Candles: prefixSource{all[:i+1]}}
		r := trend.Eval(sub)
		if groups == 0 || r != prev {
			groups++
			prev = r
		}
	}
	return groups > 1
}

// rebounded reports whether the most recent closed candles since the stop
// form a run of at least reboundCount closes strictly above the exit price.
func rebounded(ctx *Context, since int64, exitPrice decimal.Decimal, reboundCount int) bool {
	if reboundCount <= 0 {
		return false
	}
	closed := ctx.Candles.From(since)
	if active := ctx.Candles.Active(); active != nil && len(closed) > 0 &&
		closed[len(closed)-1].Start == active.Start {
		closed = closed[:len(closed)-1]
	}
	run := 0
	for i := len(closed) - 1; i >= 0; i-- {
		if !closed[i].Close.GreaterThan(exitPrice) {
			break
		}
		run++
	}
	return run >= reboundCount
}

// prefixSource exposes a fixed candle slice as a CandleSource so conditions
// can be replayed over historical prefixes.
type prefixSource struct {
	candles []models.Candle
}

func (p prefixSource) All(n int) []models.Candle {
	if n <= 0 || n >= len(p.candles) {
		return p.candles
	}
	return p.candles[len(p.candles)-n:]
}

func (p prefixSource) Closed(n int) []models.Candle { return p.All(n) }

func (p prefixSource) From(ts int64) []models.Candle {
	for i, c := range p.candles {
		if c.Start >= ts {
			return p.candles[i:]
		}
	}
	return nil
}

func (p prefixSource) Active() *models.Candle { return nil }
