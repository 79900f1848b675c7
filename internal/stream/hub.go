// Package stream provides a small synchronous event hub connecting the
// candle, strategy and execution layers.
package stream

import (
	"cryptrade/internal/models"
	"cryptrade/pkg/utils"
)

// CandleClosed fires when a candle stream closes one or more candles.
type CandleClosed struct {
	Period  utils.Period
	Candles []models.Candle
}

// OrderStateChanged fires when the execution engine observes an order
// transition (placed, filled, cancelled).
type OrderStateChanged struct {
	Order  models.Order
	Change string
}

// QuarantineRaised fires when the execution engine halts on an
// exchange-reported error.
type QuarantineRaised struct {
	Message string
}

// Hub dispatches events synchronously, in subscription order, on the
// caller's goroutine. The engine is single-threaded; the hub adds no
// concurrency of its own.
type Hub struct {
	candleSubs     []func(CandleClosed)
	orderSubs      []func(OrderStateChanged)
	quarantineSubs []func(QuarantineRaised)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// OnCandleClosed registers a candle-closed handler.
func (h *Hub) OnCandleClosed(fn func(CandleClosed)) {
	h.candleSubs = append(h.candleSubs, fn)
}

// OnOrderStateChanged registers an order-transition handler.
func (h *Hub) OnOrderStateChanged(fn func(OrderStateChanged)) {
	h.orderSubs = append(h.orderSubs, fn)
}

// OnQuarantineRaised registers a quarantine handler.
func (h *Hub) OnQuarantineRaised(fn func(QuarantineRaised)) {
	h.quarantineSubs = append(h.quarantineSubs, fn)
}

// PublishCandleClosed delivers a candle-closed event to all handlers.
func (h *Hub) PublishCandleClosed(ev CandleClosed) {
	for _, fn := range h.candleSubs {
		fn(ev)
	}
}

// PublishOrderStateChanged delivers an order transition to all handlers.
func (h *Hub) PublishOrderStateChanged(ev OrderStateChanged) {
	for _, fn := range h.orderSubs {
		fn(ev)
	}
}

// PublishQuarantineRaised delivers a quarantine event to all handlers.
func (h *Hub) PublishQuarantineRaised(ev QuarantineRaised) {
	for _, fn := range h.quarantineSubs {
		fn(ev)
	}
}
