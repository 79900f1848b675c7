package candles

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptrade/internal/models"
	"cryptrade/internal/store"
	"cryptrade/internal/stream"
	"cryptrade/pkg/utils"
)

// t0 is an arbitrary minute-aligned unix timestamp.
const t0 int64 = 1_699_999_980

func newTestStream(t *testing.T, period utils.Period) (*CandleStream, string) {
	t.Helper()
	dir := t.TempDir()
	log, err := store.NewTradeLog(dir, "bitfinex_BTC_USD")
	require.NoError(t, err)
	path := filepath.Join(dir, "candles.csv")
	s, err := NewCandleStream(period, path, log, nil, zerolog.Nop())
	require.NoError(t, err)
	return s, path
}

func trade(ts int64, price, amount int64) models.Trade {
	return models.Trade{
		Timestamp: ts,
		Price:     decimal.NewFromInt(price),
		Amount:    decimal.NewFromInt(amount),
	}
}

func TestSingleCandleAggregation(t *testing.T) {
	s, _ := newTestStream(t, utils.Period{Value: 1, Unit: 'm'})

	closed, err := s.Update([]models.Trade{
		trade(t0, 100, 1),
		trade(t0+1, 101, 1),
		trade(t0+2, 99, 2),
	})
	require.NoError(t, err)
	assert.Empty(t, closed, "period not elapsed yet")
	require.NotNil(t, s.Active())

	closed, err = s.Update([]models.Trade{trade(t0+60, 102, 1)})
	require.NoError(t, err)
	require.Len(t, closed, 1)

	c := closed[0]
	assert.Equal(t, t0, c.Start)
	assert.True(t, c.Open.Equal(decimal.NewFromInt(100)))
	assert.True(t, c.Close.Equal(decimal.NewFromInt(99)))
	assert.True(t, c.High.Equal(decimal.NewFromInt(101)))
	assert.True(t, c.Low.Equal(decimal.NewFromInt(99)))
	assert.True(t, c.Volume.Equal(decimal.NewFromInt(4)))
}

func TestEmptyPeriodProducesNoCandle(t *testing.T) {
	s, _ := newTestStream(t, utils.Period{Value: 1, Unit: 'm'})

	_, err := s.Update([]models.Trade{trade(t0, 100, 1)})
	require.NoError(t, err)

	// Next trade five periods later: the empty periods in between close
	// nothing.
	closed, err := s.Update([]models.Trade{trade(t0+5*60, 110, 1)})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, t0, closed[0].Start)

	closed, err = s.Update([]models.Trade{trade(t0+6*60, 111, 1)})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, t0+5*60, closed[0].Start)

	starts := []int64{}
	for _, c := range s.Closed(0) {
		starts = append(starts, c.Start)
	}
	assert.Equal(t, []int64{t0, t0 + 5*60}, starts)
}

func TestBoundaryTradeOpensNextCandle(t *testing.T) {
	s, _ := newTestStream(t, utils.Period{Value: 1, Unit: 'm'})

	_, err := s.Update([]models.Trade{trade(t0, 100, 1)})
	require.NoError(t, err)
	closed, err := s.Update([]models.Trade{trade(t0+60, 105, 2)})
	require.NoError(t, err)

	require.Len(t, closed, 1)
	require.NotNil(t, s.Active())
	assert.Equal(t, t0+60, s.Active().Start)
	assert.True(t, s.Active().Open.Equal(decimal.NewFromInt(105)))
}

func TestChunkedUpdatesMatchSingleUpdate(t *testing.T) {
	trades := []models.Trade{
		trade(t0, 100, 1), trade(t0+10, 104, 2), trade(t0+59, 99, 1),
		trade(t0+61, 101, 3), trade(t0+140, 97, 2), trade(t0+200, 103, 1),
		trade(t0+380, 105, 2),
	}

	whole, _ := newTestStream(t, utils.Period{Value: 1, Unit: 'm'})
	_, err := whole.Update(trades)
	require.NoError(t, err)

	chunked, _ := newTestStream(t, utils.Period{Value: 1, Unit: 'm'})
	for _, tr := range trades {
		_, err := chunked.Update([]models.Trade{tr})
		require.NoError(t, err)
	}

	a, b := whole.Closed(0), chunked.Closed(0)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Start, b[i].Start)
		assert.True(t, a[i].Open.Equal(b[i].Open))
		assert.True(t, a[i].Close.Equal(b[i].Close))
		assert.True(t, a[i].High.Equal(b[i].High))
		assert.True(t, a[i].Low.Equal(b[i].Low))
		assert.True(t, a[i].Volume.Equal(b[i].Volume))
	}

	require.NotNil(t, whole.Active())
	require.NotNil(t, chunked.Active())
	assert.True(t, whole.Active().Volume.Equal(chunked.Active().Volume))
}

func TestClosedStartsAlignedAndIncreasing(t *testing.T) {
	s, _ := newTestStream(t, utils.Period{Value: 15, Unit: 'm'})
	step := int64(15 * 60)

	var trades []models.Trade
	ts := t0
	for i := int64(0); i < 200; i++ {
		ts += 97 * (i%5 + 1)
		trades = append(trades, trade(ts, 100+i%7, 1))
	}
	_, err := s.Update(trades)
	require.NoError(t, err)

	closed := s.Closed(0)
	require.NotEmpty(t, closed)
	for i, c := range closed {
		midnight := utils.UTCMidnight(c.StartTime()).Unix()
		assert.Zero(t, (c.Start-midnight)%step, "start aligned to UTC midnight")
		assert.False(t, c.Volume.IsZero(), "no synthetic empty candles")
		if i > 0 {
			assert.Greater(t, c.Start, closed[i-1].Start)
			assert.Zero(t, (c.Start-closed[i-1].Start)%step)
		}
	}
}

func TestPersistRewriteThenAppend(t *testing.T) {
	s, path := newTestStream(t, utils.Period{Value: 1, Unit: 'm'})

	_, err := s.Update([]models.Trade{
		trade(t0, 100, 1), trade(t0+60, 101, 1), trade(t0+120, 102, 1),
	})
	require.NoError(t, err)

	onDisk, err := store.LoadCandles(path)
	require.NoError(t, err)
	require.Len(t, onDisk, 2)

	// Subsequent closes append.
	_, err = s.Update([]models.Trade{trade(t0+180, 103, 1)})
	require.NoError(t, err)
	onDisk, err = store.LoadCandles(path)
	require.NoError(t, err)
	require.Len(t, onDisk, 3)
	for i, c := range onDisk {
		assert.Equal(t, t0+int64(i)*60, c.Start)
	}
}

func TestRestartRebuildsFromFileAndLog(t *testing.T) {
	dir := t.TempDir()
	log, err := store.NewTradeLog(dir, "bitfinex_BTC_USD")
	require.NoError(t, err)
	path := filepath.Join(dir, "candles.csv")
	period := utils.Period{Value: 1, Unit: 'm'}

	trades := []models.Trade{
		trade(t0, 100, 1), trade(t0+30, 104, 1),
		trade(t0+70, 101, 2), trade(t0+130, 99, 1),
	}
	require.NoError(t, log.Append(trades))

	first, err := NewCandleStream(period, path, log, nil, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, first.Closed(0), 2)
	_, err = first.Update([]models.Trade{trade(t0+190, 98, 1)})
	require.NoError(t, err)
	require.NoError(t, first.Flush())

	// A fresh stream over the same file and log reopens the file's tail as
	// the active candle and rebuilds it from the log.
	require.NoError(t, log.Append([]models.Trade{trade(t0+190, 98, 1)}))
	second, err := NewCandleStream(period, path, log, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, len(first.Closed(0)), len(second.Closed(0)))
	require.NotNil(t, second.Active())
	assert.Equal(t, first.Active().Start, second.Active().Start)
	assert.True(t, first.Active().Volume.Equal(second.Active().Volume))
}

func TestAccessors(t *testing.T) {
	s, _ := newTestStream(t, utils.Period{Value: 1, Unit: 'm'})
	_, err := s.Update([]models.Trade{
		trade(t0, 100, 1), trade(t0+60, 101, 1),
		trade(t0+120, 102, 1), trade(t0+180, 103, 1),
	})
	require.NoError(t, err)
	// three closed, one active

	assert.Len(t, s.Closed(0), 3)
	assert.Len(t, s.Closed(2), 2)
	assert.Len(t, s.All(0), 4)
	assert.Equal(t, t0+180, s.All(1)[0].Start)

	since := s.Since(t0 + 60)
	require.Len(t, since, 3)
	assert.Equal(t, t0+60, since[0].Start)

	// From widens by one period so the candle containing the timestamp is
	// included.
	from := s.From(t0 + 90)
	require.Len(t, from, 3)
	assert.Equal(t, t0+60, from[0].Start)
}

func TestCandleClosedEventPublished(t *testing.T) {
	dir := t.TempDir()
	log, err := store.NewTradeLog(dir, "m")
	require.NoError(t, err)
	hub := stream.NewHub()
	var got []stream.CandleClosed
	hub.OnCandleClosed(func(ev stream.CandleClosed) { got = append(got, ev) })

	s, err := NewCandleStream(utils.Period{Value: 1, Unit: 'm'}, filepath.Join(dir, "c.csv"), log, hub, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.Update([]models.Trade{trade(t0, 100, 1), trade(t0+61, 101, 1)})
	require.NoError(t, err)

	require.Len(t, got, 1)
	require.Len(t, got[0].Candles, 1)
	assert.Equal(t, t0, got[0].Candles[0].Start)
}
