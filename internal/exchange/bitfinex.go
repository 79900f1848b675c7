package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cryptrade/internal/errors"
	"cryptrade/internal/models"
)

const (
	defaultBaseURL = "https://api.bitfinex.com"
	callTimeout    = 5 * time.Second
)

// BitfinexConfig holds the client configuration.
type BitfinexConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string // defaults to the public endpoint
}

// Bitfinex implements Client against the Bitfinex v1 REST API.
// Authenticated calls carry a monotonically increasing nonce and an
// HMAC-SHA384 signature over the base64-encoded JSON payload.
type Bitfinex struct {
	cfg    BitfinexConfig
	http   *http.Client
	logger zerolog.Logger

	nonceMu sync.Mutex
	nonce   int64
}

// NewBitfinex creates a new Bitfinex client.
func NewBitfinex(cfg BitfinexConfig, logger zerolog.Logger) *Bitfinex {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Bitfinex{
		cfg:    cfg,
		http:   &http.Client{Timeout: callTimeout},
		logger: logger,
		nonce:  time.Now().UnixMicro(),
	}
}

func (b *Bitfinex) nextNonce() string {
	b.nonceMu.Lock()
	defer b.nonceMu.Unlock()
	b.nonce++
	return strconv.FormatInt(b.nonce, 10)
}

// errorBody is the shape of an explicit error response.
type errorBody struct {
	Message string `json:"message"`
}

// call performs one HTTP request and decodes the response into out.
// Transport-class failures come back as *errors.TransportError; an explicit
// error payload comes back as *errors.ExchangeError.
func (b *Bitfinex) call(ctx context.Context, op, method, path string, payload map[string]interface{}, signed bool, out interface{}) error {
	var headers map[string]string
	if payload != nil || signed {
		if payload == nil {
			payload = map[string]interface{}{}
		}
		if signed {
			payload["request"] = path
			payload["nonce"] = b.nextNonce()
		}
		h, err := b.prepareHeaders(payload, signed)
		if err != nil {
			return errors.NewTransportError(op, err)
		}
		headers = h
	}

	req, err := http.NewRequestWithContext(ctx, method, b.cfg.BaseURL+path, nil)
	if err != nil {
		return errors.NewTransportError(op, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := b.http.Do(req)
	if err != nil {
		b.logger.Debug().Str("op", op).Err(err).Msg("exchange call failed")
		return errors.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTransportError(op, err)
	}
	b.logger.Debug().Str("op", op).Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).Msg("exchange call")

	// The v1 API reports request errors as {"message": ...} with a non-2xx
	// status. Those are server decisions, not transport failures.
	if resp.StatusCode >= 400 {
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Message != "" {
			return errors.NewExchangeError(op, eb.Message)
		}
		return errors.NewTransportError(op, fmt.Errorf("http status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewTransportError(op, err)
	}
	return nil
}

// prepareHeaders builds the X-BFX payload header, plus key and signature
// headers when signing.
func (b *Bitfinex) prepareHeaders(payload map[string]interface{}, signed bool) (map[string]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	data := base64.StdEncoding.EncodeToString(raw)

	headers := map[string]string{"X-BFX-PAYLOAD": data}
	if signed {
		mac := hmac.New(sha512.New384, []byte(b.cfg.APISecret))
		mac.Write([]byte(data))
		headers["X-BFX-APIKEY"] = b.cfg.APIKey
		headers["X-BFX-SIGNATURE"] = hex.EncodeToString(mac.Sum(nil))
	}
	return headers, nil
}

type wireTrade struct {
	Timestamp int64           `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Exchange  string          `json:"exchange"`
}

// Trades implements Client.
func (b *Bitfinex) Trades(ctx context.Context, symbol string, since int64) ([]models.Trade, error) {
	payload := map[string]interface{}{}
	if since > 0 {
		payload["timestamp"] = since
	}
	var raw []wireTrade
	if err := b.call(ctx, "trades", http.MethodGet, "/v1/trades/"+symbol, payload, false, &raw); err != nil {
		return nil, err
	}
	trades := make([]models.Trade, 0, len(raw))
	for _, t := range raw {
		trades = append(trades, models.Trade{
			Timestamp: t.Timestamp,
			Price:     t.Price,
			Amount:    t.Amount,
			Exchange:  t.Exchange,
		})
	}
	return trades, nil
}

type wireBookEntry struct {
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp decimal.Decimal `json:"timestamp"`
}

type wireBook struct {
	Bids []wireBookEntry `json:"bids"`
	Asks []wireBookEntry `json:"asks"`
}

// Book implements Client.
func (b *Bitfinex) Book(ctx context.Context, symbol string, limitBids, limitAsks int) (*models.Book, error) {
	payload := map[string]interface{}{
		"limit_bids": limitBids,
		"limit_asks": limitAsks,
	}
	var raw wireBook
	if err := b.call(ctx, "book", http.MethodGet, "/v1/book/"+symbol, payload, false, &raw); err != nil {
		return nil, err
	}
	book := &models.Book{}
	for _, e := range raw.Bids {
		book.Bids = append(book.Bids, models.BookEntry{Price: e.Price, Amount: e.Amount, Timestamp: e.Timestamp.IntPart()})
	}
	for _, e := range raw.Asks {
		book.Asks = append(book.Asks, models.BookEntry{Price: e.Price, Amount: e.Amount, Timestamp: e.Timestamp.IntPart()})
	}
	return book, nil
}

type wireBalance struct {
	Type      string          `json:"type"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Available decimal.Decimal `json:"available"`
}

// Balances implements Client.
func (b *Bitfinex) Balances(ctx context.Context) ([]models.Balance, error) {
	var raw []wireBalance
	if err := b.call(ctx, "balances", http.MethodGet, "/v1/balances", nil, true, &raw); err != nil {
		return nil, err
	}
	balances := make([]models.Balance, 0, len(raw))
	for _, w := range raw {
		balances = append(balances, models.Balance{
			Type:      models.WalletType(w.Type),
			Currency:  w.Currency,
			Amount:    w.Amount,
			Available: w.Available,
		})
	}
	return balances, nil
}

type wireOwnTrade struct {
	Timestamp decimal.Decimal `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	Exchange  string          `json:"exchange"`
}

// OwnTrades implements Client.
func (b *Bitfinex) OwnTrades(ctx context.Context, symbol string, since int64) ([]models.OwnTrade, error) {
	payload := map[string]interface{}{
		"symbol":    symbol,
		"timestamp": since,
	}
	var raw []wireOwnTrade
	if err := b.call(ctx, "mytrades", http.MethodPost, "/v1/mytrades", payload, true, &raw); err != nil {
		return nil, err
	}
	trades := make([]models.OwnTrade, 0, len(raw))
	for _, w := range raw {
		side := models.SideBuy
		if len(w.Type) > 0 && (w.Type[0] == 's' || w.Type[0] == 'S') {
			side = models.SideSell
		}
		trades = append(trades, models.OwnTrade{
			Timestamp: w.Timestamp.IntPart(),
			Price:     w.Price,
			Amount:    w.Amount,
			Side:      side,
			Type:      w.Type,
			Exchange:  w.Exchange,
		})
	}
	return trades, nil
}

type wireOrder struct {
	ID              int64           `json:"id"`
	Symbol          string          `json:"symbol"`
	Exchange        string          `json:"exchange"`
	Price           decimal.Decimal `json:"price"`
	Side            string          `json:"side"`
	Type            string          `json:"type"`
	Timestamp       decimal.Decimal `json:"timestamp"`
	IsLive          bool            `json:"is_live"`
	IsCancelled     bool            `json:"is_cancelled"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	ExecutedAmount  decimal.Decimal `json:"executed_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

func (w wireOrder) toModel() models.Order {
	return models.Order{
		ID:              w.ID,
		Symbol:          w.Symbol,
		Exchange:        w.Exchange,
		Side:            models.OrderSide(w.Side),
		Type:            models.OrderType(w.Type),
		Price:           w.Price,
		OriginalAmount:  w.OriginalAmount,
		ExecutedAmount:  w.ExecutedAmount,
		RemainingAmount: w.RemainingAmount,
		Timestamp:       w.Timestamp.IntPart(),
		IsLive:          w.IsLive,
		IsCancelled:     w.IsCancelled,
	}
}

// OpenOrders implements Client.
func (b *Bitfinex) OpenOrders(ctx context.Context) ([]models.Order, error) {
	var raw []wireOrder
	if err := b.call(ctx, "orders", http.MethodGet, "/v1/orders", map[string]interface{}{}, true, &raw); err != nil {
		return nil, err
	}
	orders := make([]models.Order, 0, len(raw))
	for _, w := range raw {
		orders = append(orders, w.toModel())
	}
	return orders, nil
}

// PlaceOrder implements Client.
func (b *Bitfinex) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	exchangeName := req.Exchange
	if exchangeName == "" {
		exchangeName = "bitfinex"
	}
	payload := map[string]interface{}{
		"symbol":   req.Symbol,
		"amount":   req.Amount.String(),
		"price":    priceOrDefault(req),
		"exchange": exchangeName,
		"side":     string(req.Side),
		"type":     string(req.Type),
	}
	var raw wireOrder
	if err := b.call(ctx, "order_new", http.MethodPost, "/v1/order/new", payload, true, &raw); err != nil {
		return nil, err
	}
	order := raw.toModel()
	return &order, nil
}

// priceOrDefault returns the request price, or a placeholder for market
// orders where the API still requires a price field.
func priceOrDefault(req models.OrderRequest) string {
	if req.Price.IsZero() {
		return "1.0"
	}
	return req.Price.String()
}

// CancelOrder implements Client.
func (b *Bitfinex) CancelOrder(ctx context.Context, id int64) (*models.Order, error) {
	payload := map[string]interface{}{"order_id": id}
	var raw wireOrder
	if err := b.call(ctx, "order_cancel", http.MethodPost, "/v1/order/cancel", payload, true, &raw); err != nil {
		return nil, err
	}
	order := raw.toModel()
	return &order, nil
}
