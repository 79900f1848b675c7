package models

import "github.com/shopspring/decimal"

// OrderType is the exchange order type. Spot ("exchange") variants are the
// only ones the engine places.
type OrderType string

const (
	OrderTypeMarket OrderType = "exchange market"
	OrderTypeStop   OrderType = "exchange stop"
)

// Order mirrors an open order as reported by the exchange. The local copy is
// advisory and refreshed via queued queries; it is never assumed correct
// indefinitely.
type Order struct {
	ID              int64
	Symbol          string
	Exchange        string
	Side            OrderSide
	Type            OrderType
	Price           decimal.Decimal
	OriginalAmount  decimal.Decimal
	ExecutedAmount  decimal.Decimal
	RemainingAmount decimal.Decimal
	Timestamp       int64
	IsLive          bool
	IsCancelled     bool
}

// IsStop reports whether the order is a stop order (margin or spot).
func (o Order) IsStop() bool {
	return o.Type == OrderTypeStop || o.Type == "stop"
}

// BookEntry is one resting level of the order book.
type BookEntry struct {
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Timestamp int64
}

// Book is a depth snapshot: bids and asks sorted best-first as returned by
// the exchange.
type Book struct {
	Bids []BookEntry
	Asks []BookEntry
}

// OrderRequest describes an order to be placed.
type OrderRequest struct {
	Symbol   string
	Side     OrderSide
	Type     OrderType
	Amount   decimal.Decimal
	Price    decimal.Decimal
	Exchange string
}
