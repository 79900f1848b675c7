// Package trading implements the order-execution engine: a strict FIFO
// action queue with at-most-one-in-flight semantics, trailing stop
// maintenance and risk-based sizing.
package trading

import (
	"context"

	"github.com/shopspring/decimal"

	"cryptrade/internal/models"
)

// action is one unit of exchange interaction. Exactly one action is
// attempted at a time; on success it is removed from the queue, on a
// transport failure it is retried verbatim next tick, on an exchange error
// it is dropped and the engine quarantines.
type action interface {
	name() string
	run(ctx context.Context, t *Trader) error
}

// placeMarketAction submits a market order.
type placeMarketAction struct {
	side   models.OrderSide
	amount amountFn
}

func (a *placeMarketAction) name() string { return "place market " + string(a.side) }

func (a *placeMarketAction) run(ctx context.Context, t *Trader) error {
	amount := a.amount(t)
	if amount.IsZero() {
		t.logger.Warn().Str("side", string(a.side)).Msg("zero amount, dropping market order")
		return nil
	}
	order, err := t.client.PlaceOrder(ctx, models.OrderRequest{
		Symbol:   t.cfg.Symbol,
		Side:     a.side,
		Type:     models.OrderTypeMarket,
		Amount:   amount,
		Exchange: t.cfg.Exchange,
	})
	if err != nil {
		return err
	}
	t.onOrderPlaced(*order)
	return nil
}

// placeStopAction submits a protective stop sell. The price and amount are
// computed at run time so that requeries queued ahead of it are reflected.
type placeStopAction struct{}

func (a *placeStopAction) name() string { return "place stop sell" }

func (a *placeStopAction) run(ctx context.Context, t *Trader) error {
	price := t.exitPrice()
	if price.IsZero() {
		price = t.feed.Price().Mul(oneMinus(t.strategy.Stoploss()))
	}
	amount := t.baseHolding()
	if amount.IsZero() {
		t.logger.Warn().Msg("no holding to protect, skipping stop placement")
		return nil
	}
	order, err := t.client.PlaceOrder(ctx, models.OrderRequest{
		Symbol:   t.cfg.Symbol,
		Side:     models.SideSell,
		Type:     models.OrderTypeStop,
		Amount:   amount,
		Price:    price,
		Exchange: t.cfg.Exchange,
	})
	if err != nil {
		return err
	}
	t.onOrderPlaced(*order)
	return nil
}

// cancelAction cancels an order by id.
type cancelAction struct {
	id int64
}

func (a *cancelAction) name() string { return "cancel order" }

func (a *cancelAction) run(ctx context.Context, t *Trader) error {
	order, err := t.client.CancelOrder(ctx, a.id)
	if err != nil {
		return err
	}
	t.onOrderCancelled(*order)
	return nil
}

// requeryAction refreshes the mirrored exchange state: open orders, wallet
// balances and own trades. It is one queue entry; a failure of any of the
// three calls retries the whole refresh.
type requeryAction struct{}

func (a *requeryAction) name() string { return "requery" }

func (a *requeryAction) run(ctx context.Context, t *Trader) error {
	orders, err := t.client.OpenOrders(ctx)
	if err != nil {
		return err
	}
	balances, err := t.client.Balances(ctx)
	if err != nil {
		return err
	}
	ownTrades, err := t.client.OwnTrades(ctx, t.cfg.Symbol, t.ownTradesSince())
	if err != nil {
		return err
	}
	t.onRequery(orders, balances, ownTrades)
	return nil
}

// amountFn resolves an order amount at execution time, after any requeries
// queued ahead of the order have refreshed the mirrored state.
type amountFn func(t *Trader) decimal.Decimal
