package strategy

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cryptrade/internal/models"
)

// Signal is a strategy decision.
type Signal string

const (
	SignalNone Signal = "none"
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
)

// Strategy holds buy and sell condition lists plus the risk parameters the
// execution engine reads for sizing and stop placement. The conditions
// themselves never look at the risk parameters.
type Strategy struct {
	buy  []Condition
	sell []Condition

	risk       decimal.Decimal
	stoploss   decimal.Decimal
	commission decimal.Decimal

	logger zerolog.Logger
}

// New creates an empty strategy.
func New(logger zerolog.Logger) *Strategy {
	return &Strategy{logger: logger}
}

// AddBuyCondition appends a buy trigger; any one being true signals a buy.
func (s *Strategy) AddBuyCondition(c Condition) *Strategy {
	s.buy = append(s.buy, c)
	return s
}

// AddSellCondition appends a sell trigger; any one being true signals a sell.
func (s *Strategy) AddSellCondition(c Condition) *Strategy {
	s.sell = append(s.sell, c)
	return s
}

// SetRisk sets the fraction of equity put at risk per trade.
func (s *Strategy) SetRisk(risk decimal.Decimal) *Strategy {
	s.risk = risk
	return s
}

// SetStoploss sets the stop distance as a fraction of entry price.
func (s *Strategy) SetStoploss(stoploss decimal.Decimal) *Strategy {
	s.stoploss = stoploss
	return s
}

// SetCommission sets the exchange fee fraction.
func (s *Strategy) SetCommission(commission decimal.Decimal) *Strategy {
	s.commission = commission
	return s
}

// Risk returns the per-trade risk fraction.
func (s *Strategy) Risk() decimal.Decimal { return s.risk }

// Stoploss returns the stop distance fraction.
func (s *Strategy) Stoploss() decimal.Decimal { return s.stoploss }

// Commission returns the fee fraction.
func (s *Strategy) Commission() decimal.Decimal { return s.commission }

// Check evaluates the condition lists against the context: a buy is only
// considered while not long, a sell only while long.
func (s *Strategy) Check(ctx *Context) Signal {
	if ctx.Position != models.PositionLong {
		for _, c := range s.buy {
			if c.Eval(ctx) {
				s.logger.Debug().Str("condition", c.Name).Msg("buy condition met")
				return SignalBuy
			}
		}
		return SignalNone
	}
	for _, c := range s.sell {
		if c.Eval(ctx) {
			s.logger.Debug().Str("condition", c.Name).Msg("sell condition met")
			return SignalSell
		}
	}
	return SignalNone
}
