package models

import "github.com/shopspring/decimal"

// WalletType is the exchange account type a balance belongs to.
type WalletType string

const (
	WalletExchange WalletType = "exchange"
	WalletTrading  WalletType = "trading"
	WalletDeposit  WalletType = "deposit"
)

// Balance is a single wallet balance entry as returned by the exchange.
type Balance struct {
	Type      WalletType
	Currency  string
	Amount    decimal.Decimal
	Available decimal.Decimal
}

// Finances maps wallet type to currency to balance. It is replaced wholesale
// on each successful balance query, never merged incrementally.
type Finances map[WalletType]map[string]Balance

// NewFinances groups a flat balance list by wallet type and currency.
func NewFinances(balances []Balance) Finances {
	f := make(Finances)
	for _, b := range balances {
		if f[b.Type] == nil {
			f[b.Type] = make(map[string]Balance)
		}
		f[b.Type][b.Currency] = b
	}
	return f
}

// Amount returns the total amount held for a currency in a wallet, zero if
// the wallet or currency is unknown.
func (f Finances) Amount(wallet WalletType, currency string) decimal.Decimal {
	if w, ok := f[wallet]; ok {
		return w[currency].Amount
	}
	return decimal.Zero
}

// Available returns the tradeable amount for a currency in a wallet.
func (f Finances) Available(wallet WalletType, currency string) decimal.Decimal {
	if w, ok := f[wallet]; ok {
		return w[currency].Available
	}
	return decimal.Zero
}
