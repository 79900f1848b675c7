// Package feed polls the exchange for public trades and maintains the
// on-disk trade log for a single market.
package feed

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cryptrade/internal/exchange"
	"cryptrade/internal/models"
	"cryptrade/internal/store"
)

// TradeStream is the live trade feed for one market. Each Update polls the
// exchange, keeps only trades newer than anything already seen, appends them
// to the trade log and buffers them for the candle streams.
type TradeStream struct {
	client       exchange.Client
	symbol       string
	exchangeName string
	log          *store.TradeLog
	logger       zerolog.Logger

	lastTimestamp int64
	lastTrade     *models.Trade
	pending       []models.Trade
}

// NewTradeStream builds a trade stream over an existing trade log. The log's
// last entry seeds the newness cutoff so restarts do not duplicate trades.
func NewTradeStream(client exchange.Client, symbol, exchangeName string, log *store.TradeLog, logger zerolog.Logger) (*TradeStream, error) {
	last, err := log.LastTimestamp()
	if err != nil {
		return nil, err
	}
	return &TradeStream{
		client:        client,
		symbol:        symbol,
		exchangeName:  exchangeName,
		log:           log,
		logger:        logger,
		lastTimestamp: last,
	}, nil
}

// Update polls the exchange once. Trades from other venues and trades not
// strictly newer than the last known timestamp are discarded. A transport
// failure leaves all state untouched.
func (s *TradeStream) Update(ctx context.Context) error {
	trades, err := s.client.Trades(ctx, s.symbol, s.lastTimestamp)
	if err != nil {
		return err
	}

	fresh := trades[:0]
	for _, t := range trades {
		if t.Exchange != "" && !strings.EqualFold(t.Exchange, s.exchangeName) {
			continue
		}
		if t.Timestamp <= s.lastTimestamp {
			continue
		}
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		return nil
	}

	// The exchange reports newest first; the log and candle streams want
	// arrival order.
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].Timestamp < fresh[j].Timestamp })

	if err := s.log.Append(fresh); err != nil {
		return err
	}
	s.lastTimestamp = fresh[len(fresh)-1].Timestamp
	last := fresh[len(fresh)-1]
	s.lastTrade = &last
	s.pending = append(s.pending, fresh...)
	s.logger.Debug().Int("trades", len(fresh)).Int64("last", s.lastTimestamp).Msg("trade feed updated")
	return nil
}

// NewTrades returns and clears the trades accumulated since the last call.
func (s *TradeStream) NewTrades() []models.Trade {
	out := s.pending
	s.pending = nil
	return out
}

// LastTrade returns the most recent trade seen, or nil before the first one.
func (s *TradeStream) LastTrade() *models.Trade {
	return s.lastTrade
}

// Price returns the last traded price, or zero before the first trade.
func (s *TradeStream) Price() decimal.Decimal {
	if s.lastTrade == nil {
		return decimal.Zero
	}
	return s.lastTrade.Price
}
