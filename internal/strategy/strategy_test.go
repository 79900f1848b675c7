package strategy

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cryptrade/internal/models"
)

const step int64 = 60

// fakeSource serves a fixed candle sequence; when hasActive is set, the last
// candle plays the role of the still-forming one.
type fakeSource struct {
	candles   []models.Candle
	hasActive bool
}

func (f *fakeSource) All(n int) []models.Candle {
	if n <= 0 || n >= len(f.candles) {
		return f.candles
	}
	return f.candles[len(f.candles)-n:]
}

func (f *fakeSource) Closed(n int) []models.Candle {
	closed := f.candles
	if f.hasActive && len(closed) > 0 {
		closed = closed[:len(closed)-1]
	}
	if n <= 0 || n >= len(closed) {
		return closed
	}
	return closed[len(closed)-n:]
}

func (f *fakeSource) From(ts int64) []models.Candle {
	for i, c := range f.candles {
		if c.Start >= ts-step {
			return f.candles[i:]
		}
	}
	return nil
}

func (f *fakeSource) Active() *models.Candle {
	if !f.hasActive || len(f.candles) == 0 {
		return nil
	}
	return &f.candles[len(f.candles)-1]
}

func sourceFromCloses(closes ...int64) *fakeSource {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{Start: int64(i) * step, Close: decimal.NewFromInt(c)}
	}
	return &fakeSource{candles: out}
}

// lastCloseAbove is a toy trend: true when the newest candle closed above
// the level.
func lastCloseAbove(level int64) Condition {
	return Condition{
		Name: "above",
		Eval: func(ctx *Context) bool {
			all := ctx.Candles.All(0)
			if len(all) == 0 {
				return false
			}
			return all[len(all)-1].Close.GreaterThan(decimal.NewFromInt(level))
		},
	}
}

func always(v bool) Condition {
	return Condition{Name: "const", Eval: func(*Context) bool { return v }}
}

func TestConditionCombinators(t *testing.T) {
	ctx := &Context{}

	assert.True(t, always(true).And(always(true)).Eval(ctx))
	assert.False(t, always(true).And(always(false)).Eval(ctx))
	assert.False(t, always(false).And(always(true)).Eval(ctx))

	assert.True(t, always(true).AndNot(always(false)).Eval(ctx))
	assert.False(t, always(true).AndNot(always(true)).Eval(ctx))
	assert.False(t, always(false).AndNot(always(false)).Eval(ctx))
}

func TestLongPositionCondition(t *testing.T) {
	cond := LongPosition()
	assert.True(t, cond.Eval(&Context{Position: models.PositionLong}))
	assert.False(t, cond.Eval(&Context{Position: models.PositionFlat}))
}

func TestStrategyCheckGating(t *testing.T) {
	strat := New(zerolog.Nop()).
		AddBuyCondition(always(true)).
		AddSellCondition(always(true))

	assert.Equal(t, SignalBuy, strat.Check(&Context{Position: models.PositionFlat}))
	assert.Equal(t, SignalSell, strat.Check(&Context{Position: models.PositionLong}))

	idle := New(zerolog.Nop()).
		AddBuyCondition(always(false)).
		AddSellCondition(always(false))
	assert.Equal(t, SignalNone, idle.Check(&Context{Position: models.PositionFlat}))
	assert.Equal(t, SignalNone, idle.Check(&Context{Position: models.PositionLong}))
}

func stopExit(ts int64, price int64) models.OwnTrade {
	return models.OwnTrade{
		Timestamp: ts,
		Price:     decimal.NewFromInt(price),
		Side:      models.SideSell,
		Type:      "exchange stop",
	}
}

func TestRecentStoplossInertWithoutStopExit(t *testing.T) {
	guard := RecentStoploss(lastCloseAbove(100), 2)

	assert.False(t, guard.Eval(&Context{
		OwnTrades: nil,
		Candles:   sourceFromCloses(90, 91, 92),
	}))

	marketSell := models.OwnTrade{Timestamp: step, Side: models.SideSell, Type: "exchange market"}
	assert.False(t, guard.Eval(&Context{
		OwnTrades: []models.OwnTrade{marketSell},
		Candles:   sourceFromCloses(90, 91, 92),
	}))
}

func TestRecentStoplossBlocksAfterStopExit(t *testing.T) {
	guard := RecentStoploss(lastCloseAbove(100), 2)

	// Stop out at 95 during the second candle; trend stays false and every
	// close since stays at or below the exit price.
	ctx := &Context{
		OwnTrades: []models.OwnTrade{stopExit(step, 95)},
		Candles:   sourceFromCloses(98, 94, 93, 95, 92),
	}
	assert.True(t, guard.Eval(ctx), "no flip, no rebound: stay blocked")
}

func TestRecentStoplossUnblocksOnTrendFlip(t *testing.T) {
	guard := RecentStoploss(lastCloseAbove(100), 99)

	// Closes since the stop move from above 100 to below it: the toy trend
	// evaluates true then false, two groups, so the guard lifts.
	ctx := &Context{
		OwnTrades: []models.OwnTrade{stopExit(step, 95)},
		Candles:   sourceFromCloses(98, 101, 102, 99, 97),
	}
	assert.False(t, guard.Eval(ctx))
}

func TestRecentStoplossUnblocksOnRebound(t *testing.T) {
	guard := RecentStoploss(lastCloseAbove(1000), 2)

	// Trend never evaluates true (single group) but the last two closes are
	// strictly above the 95 exit.
	ctx := &Context{
		OwnTrades: []models.OwnTrade{stopExit(step, 95)},
		Candles:   sourceFromCloses(98, 94, 96, 97),
	}
	assert.False(t, guard.Eval(ctx))
}

func TestRecentStoplossReboundNeedsStrictlyAbove(t *testing.T) {
	guard := RecentStoploss(lastCloseAbove(1000), 2)

	// Closes touch the exit price without exceeding it: not a rebound.
	ctx := &Context{
		OwnTrades: []models.OwnTrade{stopExit(step, 95)},
		Candles:   sourceFromCloses(98, 94, 95, 95),
	}
	assert.True(t, guard.Eval(ctx))
}
