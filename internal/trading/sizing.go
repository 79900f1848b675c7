package trading

import (
	"github.com/shopspring/decimal"

	"cryptrade/internal/models"
)

// buyAmount sizes a market buy so that a stop-out loses at most the risk
// fraction of equity: (risk × equity) / (price × stoploss), trimmed by the
// commission taken on entry.
func buyAmount(risk, equity, price, stoploss, commission decimal.Decimal) decimal.Decimal {
	if price.IsZero() || stoploss.IsZero() {
		return decimal.Zero
	}
	return risk.Mul(equity).Div(price.Mul(stoploss)).Mul(oneMinus(commission))
}

// fillCost walks resting ask levels best-price-first, consuming amount until
// it is covered or the book is exhausted, and returns the accumulated cost
// plus whether the full amount was covered.
func fillCost(book *models.Book, amount decimal.Decimal) (decimal.Decimal, bool) {
	cost := decimal.Zero
	remaining := amount
	for _, level := range book.Asks {
		take := level.Amount
		if take.GreaterThan(remaining) {
			take = remaining
		}
		cost = cost.Add(take.Mul(level.Price))
		remaining = remaining.Sub(take)
		if remaining.IsZero() {
			return cost, true
		}
	}
	return cost, false
}

func oneMinus(x decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(x)
}
