// Package exchange provides the exchange client interface and the Bitfinex
// v1 implementation used for live trading.
package exchange

import (
	"context"

	"cryptrade/internal/models"
)

// Client defines the stateless request/response surface the trading engine
// consumes. Every call is fallible: implementations return a
// *errors.TransportError when no response was obtained (retryable) and a
// *errors.ExchangeError when the server returned an explicit error message.
type Client interface {
	// Trades returns public trades for the symbol at or after since
	// (unix seconds); since <= 0 means "most recent".
	Trades(ctx context.Context, symbol string, since int64) ([]models.Trade, error)

	// Book returns a depth snapshot limited to the given number of levels.
	Book(ctx context.Context, symbol string, limitBids, limitAsks int) (*models.Book, error)

	// Balances returns all wallet balances.
	Balances(ctx context.Context) ([]models.Balance, error)

	// OwnTrades returns our executed trades for the symbol since the given
	// unix timestamp.
	OwnTrades(ctx context.Context, symbol string, since int64) ([]models.OwnTrade, error)

	// OpenOrders returns all live orders.
	OpenOrders(ctx context.Context) ([]models.Order, error)

	// PlaceOrder submits a new order and returns its status.
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)

	// CancelOrder cancels an order by id and returns its status.
	CancelOrder(ctx context.Context, id int64) (*models.Order, error)
}
