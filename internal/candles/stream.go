// Package candles buckets market trades into fixed-period OHLCV candles and
// keeps the persisted candle file for each (market, period) pair current.
package candles

import (
	"github.com/rs/zerolog"

	"cryptrade/internal/models"
	"cryptrade/internal/store"
	"cryptrade/internal/stream"
	"cryptrade/pkg/utils"
)

// CandleStream owns the candle state for one market and period: the ordered
// closed-candle sequence, the single active candle and the buffer of trades
// not yet folded into a closed candle.
//
// Closed candles are immutable and strictly increasing by start; starts are
// aligned to whole periods from UTC midnight. A period with zero trades
// produces no candle; the gap is only crossed once a later trade arrives.
type CandleStream struct {
	period   utils.Period
	stepSecs int64
	path     string
	logger   zerolog.Logger
	hub      *stream.Hub

	closed       []models.Candle
	active       *models.Candle
	activeStart  int64
	activeTrades []models.Trade
	mergedCount  int

	// closed candles not yet persisted, and whether the file tail is known
	// to match the closed sequence. Until the first rewrite it is not: the
	// file's last row was reopened as the active candle at construction.
	pendingClosed   []models.Candle
	lastClosedKnown bool
}

// NewCandleStream builds a stream from the persisted candle file and the
// trade log. If a candle file exists its last row is treated as still
// active: it is popped off the closed sequence and rebuilt from the trade
// log. With no candle file the full closed/active split is derived from the
// trade log; with neither, the stream waits for the first trade.
func NewCandleStream(period utils.Period, path string, log *store.TradeLog, hub *stream.Hub, logger zerolog.Logger) (*CandleStream, error) {
	s := &CandleStream{
		period:   period,
		stepSecs: int64(period.Duration().Seconds()),
		path:     path,
		logger:   logger,
		hub:      hub,
	}

	fileCandles, err := store.LoadCandles(path)
	if err != nil {
		return nil, err
	}
	trades, err := log.Load()
	if err != nil {
		return nil, err
	}

	if len(fileCandles) > 0 {
		last := fileCandles[len(fileCandles)-1]
		s.closed = fileCandles[:len(fileCandles)-1]
		s.activeStart = last.Start
		replay := trades[:0]
		for _, t := range trades {
			if t.Timestamp >= last.Start {
				replay = append(replay, t)
			}
		}
		s.ingest(replay)
	} else if len(trades) > 0 {
		s.ingest(trades)
	}
	return s, nil
}

// Period returns the stream's candle period.
func (s *CandleStream) Period() utils.Period {
	return s.period
}

// Update folds new trades into the stream, closing and persisting candles as
// period boundaries are crossed. Newly closed candles are announced on the
// hub and returned.
func (s *CandleStream) Update(newTrades []models.Trade) ([]models.Candle, error) {
	closedNow := s.ingest(newTrades)
	if len(closedNow) > 0 {
		if err := s.dump(); err != nil {
			return closedNow, err
		}
		if s.hub != nil {
			s.hub.PublishCandleClosed(stream.CandleClosed{Period: s.period, Candles: closedNow})
		}
	}
	return closedNow, nil
}

// ingest is the pure bucketing step shared by construction replay and live
// updates.
func (s *CandleStream) ingest(newTrades []models.Trade) []models.Candle {
	s.activeTrades = append(s.activeTrades, newTrades...)
	if len(s.activeTrades) == 0 {
		return nil
	}
	if s.activeStart == 0 {
		s.activeStart = utils.PeriodStart(s.activeTrades[0].Time(), s.period.Duration()).Unix()
	}

	var closedNow []models.Candle
	for {
		next := s.activeStart + s.stepSecs
		if s.activeTrades[len(s.activeTrades)-1].Timestamp < next {
			break
		}
		var before, after []models.Trade
		for _, t := range s.activeTrades {
			if t.Timestamp < next {
				before = append(before, t)
			} else {
				after = append(after, t)
			}
		}
		if len(before) > 0 {
			c := models.NewCandle(s.activeStart, before)
			s.closed = append(s.closed, c)
			s.pendingClosed = append(s.pendingClosed, c)
			closedNow = append(closedNow, c)
		}
		s.activeStart = next
		s.activeTrades = after
		s.active = nil
		s.mergedCount = 0
		if len(s.activeTrades) == 0 {
			return closedNow
		}
	}

	// Fold trades not yet represented in the active candle.
	if s.mergedCount < len(s.activeTrades) {
		fresh := models.NewCandle(s.activeStart, s.activeTrades[s.mergedCount:])
		switch {
		case s.active == nil:
			s.active = &fresh
		case s.active.Start != fresh.Start:
			s.logger.Warn().Int64("have", s.active.Start).Int64("got", fresh.Start).
				Msg("active candle start mismatch, keeping newer")
			s.active = &fresh
		default:
			merged := s.active.Merge(fresh)
			s.active = &merged
		}
		s.mergedCount = len(s.activeTrades)
	}
	return closedNow
}

// dump persists the closed sequence: a wholesale rewrite the first time (the
// file tail was not durably closed), append-only from then on.
func (s *CandleStream) dump() error {
	if !s.lastClosedKnown {
		if err := store.WriteCandles(s.path, s.closed); err != nil {
			return err
		}
		s.lastClosedKnown = true
		s.pendingClosed = nil
		return nil
	}
	if err := store.AppendCandles(s.path, s.pendingClosed); err != nil {
		return err
	}
	s.pendingClosed = nil
	return nil
}

// Flush persists the closed sequence immediately, without waiting for the
// next candle close. Used by backfill and at shutdown.
func (s *CandleStream) Flush() error {
	if !s.lastClosedKnown || len(s.pendingClosed) > 0 {
		return s.dump()
	}
	return nil
}

// Active returns the currently forming candle, or nil when no trade has been
// seen for the current period.
func (s *CandleStream) Active() *models.Candle {
	return s.active
}

// Closed returns the most recent n closed candles; n <= 0 means all.
func (s *CandleStream) Closed(n int) []models.Candle {
	return tail(s.closed, n)
}

// All returns the most recent n candles including the active one; n <= 0
// means all.
func (s *CandleStream) All(n int) []models.Candle {
	all := s.closed
	if s.active != nil {
		all = append(append([]models.Candle{}, s.closed...), *s.active)
	}
	return tail(all, n)
}

// Since returns all candles (closed plus active) starting at or after ts.
func (s *CandleStream) Since(ts int64) []models.Candle {
	all := s.All(0)
	for i, c := range all {
		if c.Start >= ts {
			return all[i:]
		}
	}
	return nil
}

// From returns the candles covering ts onwards: the candle containing ts is
// included by widening the cutoff one period back.
func (s *CandleStream) From(ts int64) []models.Candle {
	return s.Since(ts - s.stepSecs)
}

func tail(candles []models.Candle, n int) []models.Candle {
	if n <= 0 || n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}
