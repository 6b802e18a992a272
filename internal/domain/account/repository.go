package account

import (
	"context"
	"errors"
)

var ErrAccountNotFound = errors.New("account not found")

// Repository defines the operations for persisting and retrieving registered accounts.
type Repository interface {
	Upsert(ctx context.Context, acc *Account) error // Registration and re-registration
	GetByChatID(ctx context.Context, chatID int64) (*Account, error)
	// GetAccountNumber returns "" without error when the account exists but has no number yet.
	GetAccountNumber(ctx context.Context, chatID int64) (string, error)
	ListAll(ctx context.Context) ([]*Account, error)

	AddBalanceSnapshot(ctx context.Context, snapshot *BalanceSnapshot) error
	ListBalanceHistory(ctx context.Context, chatID int64, limit int) ([]*BalanceSnapshot, error)
}
