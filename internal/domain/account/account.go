package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a registered chat together with the account number used to look up its transactions.
type Account struct {
	ChatID        int64
	AccountNumber string // Empty until the user registers a card
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasAccountNumber reports whether the account can be checked against the transaction source.
func (a *Account) HasAccountNumber() bool {
	return a != nil && a.AccountNumber != ""
}

// BalanceSnapshot is one balance lookup made on behalf of the account owner.
type BalanceSnapshot struct {
	ID        int64
	ChatID    int64
	Balance   decimal.Decimal
	CreatedAt time.Time
}
