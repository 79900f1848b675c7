// Package models defines the core market data types shared across the engine.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents a single executed public trade on a market.
// Trades are immutable once recorded and ordered by timestamp.
type Trade struct {
	Timestamp int64           `csv:"timestamp"`
	Price     decimal.Decimal `csv:"price"`
	Amount    decimal.Decimal `csv:"amount"`
	Exchange  string          `csv:"-"`
}

// Time returns the trade timestamp as UTC time.
func (t Trade) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}

// OrderSide is the direction of an order or own trade.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OwnTrade represents one of our own executed trades, as reported by the
// exchange. The Type field carries the exchange's order-type string; a stop
// exit is recognised by Type containing "stop".
type OwnTrade struct {
	Timestamp int64
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Side      OrderSide
	Type      string
	Exchange  string
}

// IsStopExit reports whether this trade was the execution of a stop order.
func (t OwnTrade) IsStopExit() bool {
	return strings.Contains(strings.ToLower(t.Type), "stop")
}

// Position is the current market exposure, derived from the most recent own
// trade: a buy leaves us Long, a sell leaves us Flat. It is never tracked
// independently of the own-trade history.
type Position string

const (
	PositionFlat Position = "flat"
	PositionLong Position = "long"
)

// PositionFromTrades derives the position from an own-trade history.
func PositionFromTrades(trades []OwnTrade) Position {
	if len(trades) == 0 {
		return PositionFlat
	}
	if trades[len(trades)-1].Side == SideBuy {
		return PositionLong
	}
	return PositionFlat
}
