package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cryptrade/internal/candles"
	"cryptrade/internal/errors"
	"cryptrade/internal/exchange"
	"cryptrade/internal/feed"
	"cryptrade/internal/models"
	"cryptrade/internal/store"
	"cryptrade/internal/strategy"
	"cryptrade/internal/stream"
)

// State is the engine's externally visible mode.
type State string

const (
	// StateSyncing: queued actions are still being worked off.
	StateSyncing State = "syncing"
	// StateReady: queue empty, no pending market order; decisions allowed.
	StateReady State = "ready"
	// StateAwaitingFill: a market order is pending on the exchange.
	StateAwaitingFill State = "awaiting_fill"
	// StateBlocked: an exchange-reported error awaits acknowledgement.
	StateBlocked State = "blocked"
)

// Config identifies the traded market and the engine cadence.
type Config struct {
	Market   string // full market name, e.g. bitfinex_BTC_USD
	Symbol   string // exchange symbol, e.g. btcusd
	Base     string // base currency, e.g. BTC
	Quote    string // quote currency, e.g. USD
	Exchange string // venue name carried on orders

	// RequeryTicks is how often (in ticks) the mirrored exchange state is
	// refreshed even without queue activity.
	RequeryTicks int
	// BookDepth is how many ask levels the pre-buy fill estimate may walk.
	BookDepth int
}

// Trader is the single-threaded order-execution engine for one market. All
// mutation happens inside Tick; nothing here is safe for concurrent use.
type Trader struct {
	cfg          Config
	client       exchange.Client
	strategy     *strategy.Strategy
	candleStream *candles.CandleStream
	feed         *feed.TradeStream
	journal      *store.Journal
	hub          *stream.Hub
	logger       zerolog.Logger

	queue      []action
	finances   models.Finances
	openOrders []models.Order
	ownTrades  []models.OwnTrade

	pendingMarket *models.Order
	quarantine    []string
	tickCount     int
	synced        bool
}

// New creates a trader. journal may be nil to disable local journalling.
func New(cfg Config, client exchange.Client, strat *strategy.Strategy, cs *candles.CandleStream, tf *feed.TradeStream, journal *store.Journal, hub *stream.Hub, logger zerolog.Logger) *Trader {
	if cfg.BookDepth <= 0 {
		cfg.BookDepth = 50
	}
	return &Trader{
		cfg:          cfg,
		client:       client,
		strategy:     strat,
		candleStream: cs,
		feed:         tf,
		journal:      journal,
		hub:          hub,
		logger:       logger,
		finances:     models.Finances{},
	}
}

// State reports the engine mode. Blocked dominates; a non-empty queue means
// syncing even when a market order is also pending.
func (t *Trader) State() State {
	switch {
	case len(t.quarantine) > 0:
		return StateBlocked
	case len(t.queue) > 0:
		return StateSyncing
	case t.pendingMarket != nil:
		return StateAwaitingFill
	default:
		return StateReady
	}
}

// Messages returns the quarantined error messages, oldest first.
func (t *Trader) Messages() []string {
	out := make([]string, len(t.quarantine))
	copy(out, t.quarantine)
	return out
}

// ClearMessages acknowledges all quarantined messages, unblocking the
// engine from the next tick on.
func (t *Trader) ClearMessages() {
	if len(t.quarantine) > 0 {
		t.logger.Info().Int("messages", len(t.quarantine)).Msg("quarantine cleared")
	}
	t.quarantine = nil
}

// Position derives the market exposure from the own-trade history.
func (t *Trader) Position() models.Position {
	return models.PositionFromTrades(t.ownTrades)
}

// OpenOrders returns the mirrored open orders.
func (t *Trader) OpenOrders() []models.Order {
	out := make([]models.Order, len(t.openOrders))
	copy(out, t.openOrders)
	return out
}

// Equity returns current equity in quote terms at the last traded price.
func (t *Trader) Equity() decimal.Decimal {
	return t.equity(t.feed.Price())
}

// Tick runs one engine cycle: fast-path fill detection, queue processing,
// stop maintenance and, once idle, strategy evaluation. fresh is this
// tick's batch of newly observed market trades.
func (t *Trader) Tick(ctx context.Context, fresh []models.Trade) {
	t.tickCount++
	if len(t.quarantine) > 0 {
		return
	}

	if !t.synced && len(t.queue) == 0 {
		t.enqueue(&requeryAction{})
	}

	// A trade printing below a resting stop likely means it filled; requery
	// now instead of waiting for the periodic refresh.
	if stop := t.liveStop(); stop != nil && priceBrokeStop(fresh, stop.Price) {
		t.logger.Info().Str("stop_price", stop.Price.String()).Msg("trade below stop price, requerying")
		t.enqueue(&requeryAction{})
	}

	if !t.drain(ctx) {
		return
	}
	if !t.synced {
		return
	}

	if t.cfg.RequeryTicks > 0 && t.tickCount%t.cfg.RequeryTicks == 0 {
		t.enqueue(&requeryAction{})
		if !t.drain(ctx) {
			return
		}
		t.snapshotEquity()
	}

	if t.maintainProtection() {
		if !t.drain(ctx) {
			return
		}
	}

	if t.pendingMarket != nil || len(t.queue) > 0 {
		return
	}
	t.decide(ctx)
	t.drain(ctx)
}

func (t *Trader) enqueue(actions ...action) {
	t.queue = append(t.queue, actions...)
}

// drain attempts queued actions head-first. A success removes the entry and
// immediately attempts the next; a transport failure keeps the head for the
// next tick; an exchange error drops the head and quarantines. Returns true
// when the queue emptied.
func (t *Trader) drain(ctx context.Context) bool {
	for len(t.queue) > 0 {
		act := t.queue[0]
		err := act.run(ctx, t)
		if err == nil {
			t.queue = t.queue[1:]
			continue
		}
		if ee, ok := errors.AsExchangeError(err); ok {
			t.queue = t.queue[1:]
			t.raiseQuarantine(ee.Message)
			return false
		}
		t.logger.Warn().Str("action", act.name()).Err(err).Msg("action failed, retrying next tick")
		return false
	}
	return true
}

func (t *Trader) raiseQuarantine(msg string) {
	t.logger.Error().Str("message", msg).Msg("exchange error, trading halted")
	t.quarantine = append(t.quarantine, msg)
	if t.hub != nil {
		t.hub.PublishQuarantineRaised(stream.QuarantineRaised{Message: msg})
	}
}

// maintainProtection enforces the protected-position invariants and returns
// whether it queued any actions: a long position with no live stop gets one
// queued, and a live stop resting below the current trailing exit price is
// replaced at the higher price.
func (t *Trader) maintainProtection() bool {
	if t.Position() != models.PositionLong {
		return false
	}
	exit := t.exitPrice()
	stop := t.liveStop()

	if stop == nil {
		if last := t.lastOwnTrade(); last == nil || last.IsStopExit() {
			return false
		}
		if exit.IsZero() {
			return false
		}
		t.logger.Warn().Str("exit", exit.String()).Msg("long position unprotected, queueing stop")
		t.enqueue(&placeStopAction{}, &requeryAction{})
		return true
	}
	if !exit.IsZero() && stop.Price.LessThan(exit) {
		t.logger.Info().Str("old", stop.Price.String()).Str("new", exit.String()).
			Msg("raising trailing stop")
		t.enqueue(&cancelAction{id: stop.ID}, &requeryAction{},
			&placeStopAction{}, &requeryAction{})
		return true
	}
	return false
}

// exitPrice is the trailing stop level: the higher of entry price and the
// highest close since entry, reduced by the stop-loss fraction. Zero while
// no entry trade is known.
func (t *Trader) exitPrice() decimal.Decimal {
	entry := t.lastEntry()
	if entry == nil {
		return decimal.Zero
	}
	ref := entry.Price
	for _, c := range t.candleStream.From(entry.Timestamp) {
		if c.Close.GreaterThan(ref) {
			ref = c.Close
		}
	}
	return ref.Mul(oneMinus(t.strategy.Stoploss()))
}

func (t *Trader) decide(ctx context.Context) {
	sctx := &strategy.Context{
		Position:  t.Position(),
		OwnTrades: t.ownTrades,
		Candles:   t.candleStream,
	}
	switch t.strategy.Check(sctx) {
	case strategy.SignalBuy:
		t.queueBuy(ctx)
	case strategy.SignalSell:
		t.queueSell()
	}
}

// queueBuy sizes the entry, verifies it against the resting ask book and
// queues the buy composition: market buy, requery, protective stop, requery.
func (t *Trader) queueBuy(ctx context.Context) {
	price := t.feed.Price()
	if price.IsZero() {
		return
	}
	amount := buyAmount(t.strategy.Risk(), t.equity(price), price,
		t.strategy.Stoploss(), t.strategy.Commission())
	if amount.IsZero() {
		return
	}

	book, err := t.client.Book(ctx, t.cfg.Symbol, 1, t.cfg.BookDepth)
	if err != nil {
		if ee, ok := errors.AsExchangeError(err); ok {
			t.raiseQuarantine(ee.Message)
		} else {
			t.logger.Warn().Err(err).Msg("book unavailable, deferring buy")
		}
		return
	}
	cost, covered := fillCost(book, amount)
	available := t.finances.Available(models.WalletExchange, t.cfg.Quote)
	if cost.GreaterThan(available) {
		t.raiseQuarantine(fmt.Sprintf("insufficient funds: buying %s %s costs ~%s %s, available %s",
			amount, t.cfg.Base, cost, t.cfg.Quote, available))
		return
	}
	if !covered {
		t.logger.Warn().Str("amount", amount.String()).Msg("ask book thinner than order size")
	}

	t.logger.Info().Str("amount", amount.String()).Str("price", price.String()).Msg("queueing buy")
	fixed := amount
	t.enqueue(
		&placeMarketAction{side: models.SideBuy, amount: func(*Trader) decimal.Decimal { return fixed }},
		&requeryAction{},
		&placeStopAction{},
		&requeryAction{},
	)
}

// queueSell cancels any live protective stop first, then queues a market
// sell of the whole base holding.
func (t *Trader) queueSell() {
	if stop := t.liveStop(); stop != nil {
		t.enqueue(&cancelAction{id: stop.ID}, &requeryAction{})
	}
	t.logger.Info().Msg("queueing sell")
	t.enqueue(
		&placeMarketAction{side: models.SideSell, amount: func(t *Trader) decimal.Decimal {
			return t.baseHolding()
		}},
		&requeryAction{},
	)
}

func (t *Trader) onOrderPlaced(order models.Order) {
	if order.IsLive {
		t.openOrders = append(t.openOrders, order)
		if order.Type == models.OrderTypeMarket {
			o := order
			t.pendingMarket = &o
		}
	}
	t.logger.Info().Int64("id", order.ID).Str("type", string(order.Type)).
		Str("side", string(order.Side)).Msg("order placed")
	if t.hub != nil {
		t.hub.PublishOrderStateChanged(stream.OrderStateChanged{Order: order, Change: "placed"})
	}
}

func (t *Trader) onOrderCancelled(order models.Order) {
	kept := t.openOrders[:0]
	for _, o := range t.openOrders {
		if o.ID != order.ID {
			kept = append(kept, o)
		}
	}
	t.openOrders = kept
	if t.pendingMarket != nil && t.pendingMarket.ID == order.ID {
		t.pendingMarket = nil
	}
	t.logger.Info().Int64("id", order.ID).Msg("order cancelled")
	if t.hub != nil {
		t.hub.PublishOrderStateChanged(stream.OrderStateChanged{Order: order, Change: "cancelled"})
	}
}

func (t *Trader) onRequery(orders []models.Order, balances []models.Balance, ownTrades []models.OwnTrade) {
	t.openOrders = orders
	t.finances = models.NewFinances(balances)

	if len(ownTrades) > 0 {
		t.ownTrades = append(t.ownTrades, ownTrades...)
		if t.journal != nil {
			if err := t.journal.RecordOwnTrades(t.cfg.Market, ownTrades); err != nil {
				t.logger.Warn().Err(err).Msg("journalling own trades failed")
			}
		}
	}

	if t.pendingMarket != nil {
		live := false
		for _, o := range orders {
			if o.ID == t.pendingMarket.ID && o.IsLive {
				live = true
				break
			}
		}
		if !live {
			filled := *t.pendingMarket
			t.pendingMarket = nil
			t.logger.Info().Int64("id", filled.ID).Msg("market order no longer open")
			if t.hub != nil {
				t.hub.PublishOrderStateChanged(stream.OrderStateChanged{Order: filled, Change: "filled"})
			}
		}
	}
	t.synced = true
}

// ownTradesSince is the cutoff for the next own-trade query: just past the
// newest known trade, or everything on the first sync.
func (t *Trader) ownTradesSince() int64 {
	if len(t.ownTrades) == 0 {
		return 0
	}
	return t.ownTrades[len(t.ownTrades)-1].Timestamp + 1
}

func (t *Trader) lastOwnTrade() *models.OwnTrade {
	if len(t.ownTrades) == 0 {
		return nil
	}
	return &t.ownTrades[len(t.ownTrades)-1]
}

// lastEntry is the most recent own buy trade.
func (t *Trader) lastEntry() *models.OwnTrade {
	for i := len(t.ownTrades) - 1; i >= 0; i-- {
		if t.ownTrades[i].Side == models.SideBuy {
			return &t.ownTrades[i]
		}
	}
	return nil
}

// liveStop is the resting protective stop sell, if any.
func (t *Trader) liveStop() *models.Order {
	for i := range t.openOrders {
		o := &t.openOrders[i]
		if o.IsLive && o.IsStop() && o.Side == models.SideSell {
			return o
		}
	}
	return nil
}

func priceBrokeStop(fresh []models.Trade, stopPrice decimal.Decimal) bool {
	for _, tr := range fresh {
		if tr.Price.LessThan(stopPrice) {
			return true
		}
	}
	return false
}

func (t *Trader) baseHolding() decimal.Decimal {
	return t.finances.Available(models.WalletExchange, t.cfg.Base)
}

// equity is the quote-currency value of the exchange wallet: quote held
// plus base held at the given price.
func (t *Trader) equity(price decimal.Decimal) decimal.Decimal {
	quote := t.finances.Amount(models.WalletExchange, t.cfg.Quote)
	base := t.finances.Amount(models.WalletExchange, t.cfg.Base)
	return quote.Add(base.Mul(price))
}

func (t *Trader) snapshotEquity() {
	if t.journal == nil {
		return
	}
	price := t.feed.Price()
	if price.IsZero() {
		return
	}
	equity := t.equity(price)
	if err := t.journal.RecordEquity(t.cfg.Market, time.Now().UTC(), equity); err != nil {
		t.logger.Warn().Err(err).Msg("recording equity snapshot failed")
		return
	}
	t.logger.Info().Str("equity", equity.StringFixed(2)).
		Str("price", price.String()).Msg("equity snapshot")
}
