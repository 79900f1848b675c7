package trading

import (
	"context"

	"github.com/shopspring/decimal"

	"cryptrade/internal/errors"
	"cryptrade/internal/models"
)

// fakeClient is a scripted in-memory exchange. Market orders optionally fill
// instantly against a fixed price, updating balances and own trades the way
// the real venue would between a placement and the following requery.
type fakeClient struct {
	trades    []models.Trade
	book      *models.Book
	balances  []models.Balance
	myTrades  []models.OwnTrade
	orders    []models.Order
	placed    []models.OrderRequest
	cancelled []int64

	fillMarket  bool
	fillPrice   decimal.Decimal
	nextID      int64
	nextTradeTS int64

	fail  map[string]error
	calls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		book:        &models.Book{},
		fillPrice:   decimal.NewFromInt(100),
		nextID:      1000,
		nextTradeTS: 1_700_000_000,
		fail:        map[string]error{},
		calls:       map[string]int{},
	}
}

func (c *fakeClient) failWith(op string, err error) { c.fail[op] = err }
func (c *fakeClient) recover(op string)             { delete(c.fail, op) }

func (c *fakeClient) op(name string) error {
	c.calls[name]++
	return c.fail[name]
}

func (c *fakeClient) setBalance(currency, amount, available string) {
	for i, b := range c.balances {
		if b.Currency == currency {
			c.balances[i].Amount = mustDecimal(amount)
			c.balances[i].Available = mustDecimal(available)
			return
		}
	}
	c.balances = append(c.balances, models.Balance{
		Type:      models.WalletExchange,
		Currency:  currency,
		Amount:    mustDecimal(amount),
		Available: mustDecimal(available),
	})
}

func (c *fakeClient) balance(currency string) *models.Balance {
	for i := range c.balances {
		if c.balances[i].Currency == currency {
			return &c.balances[i]
		}
	}
	c.balances = append(c.balances, models.Balance{Type: models.WalletExchange, Currency: currency})
	return &c.balances[len(c.balances)-1]
}

func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (c *fakeClient) Trades(ctx context.Context, symbol string, since int64) ([]models.Trade, error) {
	if err := c.op("trades"); err != nil {
		return nil, err
	}
	return append([]models.Trade{}, c.trades...), nil
}

func (c *fakeClient) Book(ctx context.Context, symbol string, limitBids, limitAsks int) (*models.Book, error) {
	if err := c.op("book"); err != nil {
		return nil, err
	}
	return c.book, nil
}

func (c *fakeClient) Balances(ctx context.Context) ([]models.Balance, error) {
	if err := c.op("balances"); err != nil {
		return nil, err
	}
	return append([]models.Balance{}, c.balances...), nil
}

func (c *fakeClient) OwnTrades(ctx context.Context, symbol string, since int64) ([]models.OwnTrade, error) {
	if err := c.op("mytrades"); err != nil {
		return nil, err
	}
	var out []models.OwnTrade
	for _, t := range c.myTrades {
		if t.Timestamp >= since {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *fakeClient) OpenOrders(ctx context.Context) ([]models.Order, error) {
	if err := c.op("orders"); err != nil {
		return nil, err
	}
	return append([]models.Order{}, c.orders...), nil
}

func (c *fakeClient) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if err := c.op("order_new"); err != nil {
		return nil, err
	}
	c.placed = append(c.placed, req)
	c.nextID++
	order := models.Order{
		ID:              c.nextID,
		Symbol:          req.Symbol,
		Exchange:        req.Exchange,
		Side:            req.Side,
		Type:            req.Type,
		Price:           req.Price,
		OriginalAmount:  req.Amount,
		RemainingAmount: req.Amount,
		IsLive:          true,
	}

	if req.Type == models.OrderTypeMarket && c.fillMarket {
		order.IsLive = false
		order.ExecutedAmount = req.Amount
		order.RemainingAmount = decimal.Zero
		c.settle(req.Side, req.Amount, c.fillPrice, string(req.Type))
		return &order, nil
	}
	c.orders = append(c.orders, order)
	return &order, nil
}

// settle books a fill: records the own trade and moves balances.
func (c *fakeClient) settle(side models.OrderSide, amount, price decimal.Decimal, orderType string) {
	c.nextTradeTS += 60
	c.myTrades = append(c.myTrades, models.OwnTrade{
		Timestamp: c.nextTradeTS,
		Price:     price,
		Amount:    amount,
		Side:      side,
		Type:      orderType,
		Exchange:  "bitfinex",
	})
	base, quote := c.balance("BTC"), c.balance("USD")
	cost := amount.Mul(price)
	if side == models.SideBuy {
		base.Amount = base.Amount.Add(amount)
		base.Available = base.Available.Add(amount)
		quote.Amount = quote.Amount.Sub(cost)
		quote.Available = quote.Available.Sub(cost)
	} else {
		base.Amount = base.Amount.Sub(amount)
		base.Available = base.Available.Sub(amount)
		quote.Amount = quote.Amount.Add(cost)
		quote.Available = quote.Available.Add(cost)
	}
}

func (c *fakeClient) CancelOrder(ctx context.Context, id int64) (*models.Order, error) {
	if err := c.op("order_cancel"); err != nil {
		return nil, err
	}
	for i, o := range c.orders {
		if o.ID == id {
			c.orders = append(c.orders[:i], c.orders[i+1:]...)
			c.cancelled = append(c.cancelled, id)
			o.IsLive = false
			o.IsCancelled = true
			return &o, nil
		}
	}
	return nil, errors.NewExchangeError("order_cancel", "Order could not be cancelled.")
}
