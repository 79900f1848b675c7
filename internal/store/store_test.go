package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptrade/internal/models"
	"cryptrade/pkg/utils"
)

func sampleCandles() []models.Candle {
	mk := func(start int64, o, c, h, l, v string) models.Candle {
		return models.Candle{
			Start:  start,
			Open:   mustDec(o),
			Close:  mustDec(c),
			High:   mustDec(h),
			Low:    mustDec(l),
			Volume: mustDec(v),
		}
	}
	return []models.Candle{
		mk(1700000100, "100.5", "101", "102.25", "99.9", "12.5"),
		mk(1700001000, "101", "99", "101.5", "98.75", "7"),
		mk(1700001900, "99", "103", "103", "99", "0.001"),
	}
}

func mustDec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func assertCandlesEqual(t *testing.T, want, got []models.Candle) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Start, got[i].Start)
		assert.True(t, want[i].Open.Equal(got[i].Open))
		assert.True(t, want[i].Close.Equal(got[i].Close))
		assert.True(t, want[i].High.Equal(got[i].High))
		assert.True(t, want[i].Low.Equal(got[i].Low))
		assert.True(t, want[i].Volume.Equal(got[i].Volume))
	}
}

func TestCandleFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	want := sampleCandles()

	require.NoError(t, WriteCandles(path, want))
	got, err := LoadCandles(path)
	require.NoError(t, err)
	assertCandlesEqual(t, want, got)
}

func TestCandleFileAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	all := sampleCandles()

	require.NoError(t, WriteCandles(path, all[:2]))
	require.NoError(t, AppendCandles(path, all[2:]))

	got, err := LoadCandles(path)
	require.NoError(t, err)
	assertCandlesEqual(t, all, got)
}

func TestLoadCandlesMissingFile(t *testing.T) {
	got, err := LoadCandles(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadCandlesSortsByStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	all := sampleCandles()
	shuffled := []models.Candle{all[2], all[0], all[1]}

	require.NoError(t, WriteCandles(path, shuffled))
	got, err := LoadCandles(path)
	require.NoError(t, err)
	assertCandlesEqual(t, all, got)
}

func TestCandlePathEncodesMarketAndPeriod(t *testing.T) {
	p := CandlePath("/data", "bitfinex_BTC_USD", utils.Period{Value: 15, Unit: 'm'})
	assert.Equal(t, filepath.Join("/data", "candles", "bitfinex_BTC_USD_15m.csv"), p)
}

func TestTradeLogAppendAndLoad(t *testing.T) {
	log, err := NewTradeLog(t.TempDir(), "bitfinex_BTC_USD")
	require.NoError(t, err)

	batch1 := []models.Trade{
		{Timestamp: 100, Price: mustDec("50"), Amount: mustDec("1.5")},
		{Timestamp: 110, Price: mustDec("51"), Amount: mustDec("2")},
	}
	batch2 := []models.Trade{
		{Timestamp: 120, Price: mustDec("49.5"), Amount: mustDec("0.25")},
	}
	require.NoError(t, log.Append(batch1))
	require.NoError(t, log.Append(batch2))

	all, err := log.Load()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(100), all[0].Timestamp)
	assert.True(t, all[2].Amount.Equal(mustDec("0.25")))

	last, err := log.LastTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(120), last)

	since, err := log.LoadSince(110)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(110), since[0].Timestamp)
}

func TestTradeLogEmpty(t *testing.T) {
	log, err := NewTradeLog(t.TempDir(), "bitfinex_BTC_USD")
	require.NoError(t, err)

	all, err := log.Load()
	require.NoError(t, err)
	assert.Empty(t, all)

	last, err := log.LastTimestamp()
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestJournalOwnTrades(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	trades := []models.OwnTrade{
		{Timestamp: 1000, Price: mustDec("100"), Amount: mustDec("2"), Side: models.SideBuy, Type: "exchange market"},
		{Timestamp: 2000, Price: mustDec("95"), Amount: mustDec("2"), Side: models.SideSell, Type: "exchange stop"},
	}
	require.NoError(t, j.RecordOwnTrades("bitfinex_BTC_USD", trades))
	// Idempotent: replaying the same batch inserts nothing new.
	require.NoError(t, j.RecordOwnTrades("bitfinex_BTC_USD", trades))

	got, err := j.OwnTrades("bitfinex_BTC_USD", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.SideBuy, got[0].Side)
	assert.True(t, got[1].Price.Equal(mustDec("95")))
	assert.True(t, got[1].IsStopExit())

	recent, err := j.OwnTrades("bitfinex_BTC_USD", 1500)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	other, err := j.OwnTrades("bitfinex_ETH_USD", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestJournalEquitySeries(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	base := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, j.RecordEquity("bitfinex_BTC_USD", base, mustDec("1000")))
	require.NoError(t, j.RecordEquity("bitfinex_BTC_USD", base.Add(time.Hour), mustDec("1042.5")))

	points, err := j.EquitySeries("bitfinex_BTC_USD", 0)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, base.Unix(), points[0].Timestamp)
	assert.True(t, points[1].Equity.Equal(mustDec("1042.5")))
}
