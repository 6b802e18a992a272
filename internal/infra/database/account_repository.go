package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payment_notification_bot/internal/domain/account"
)

type AccountRepository struct {
	db  *DB
	now func() time.Time
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

// Upsert registers the account or replaces the account number of an existing one.
// History rows are kept on re-registration.
func (r *AccountRepository) Upsert(ctx context.Context, acc *account.Account) error {
	now := r.now().UTC()
	query := `INSERT INTO accounts (chat_id, account_number, created_at, updated_at)
               VALUES ($1, $2, $3, $3)
               ON CONFLICT (chat_id) DO UPDATE
               SET account_number = excluded.account_number, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, r.db.rebind(query), acc.ChatID, acc.AccountNumber, now); err != nil {
		return fmt.Errorf("error upserting account: %w", err)
	}

	stored, err := r.GetByChatID(ctx, acc.ChatID)
	if err != nil {
		return err
	}
	*acc = *stored
	return nil
}

func (r *AccountRepository) GetByChatID(ctx context.Context, chatID int64) (*account.Account, error) {
	query := `SELECT chat_id, account_number, created_at, updated_at FROM accounts WHERE chat_id = $1`
	acc := &account.Account{}
	err := r.db.QueryRowContext(ctx, r.db.rebind(query), chatID).Scan(&acc.ChatID, &acc.AccountNumber, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("error getting account by chat ID: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) GetAccountNumber(ctx context.Context, chatID int64) (string, error) {
	acc, err := r.GetByChatID(ctx, chatID)
	if err != nil {
		return "", err
	}
	return acc.AccountNumber, nil
}

func (r *AccountRepository) ListAll(ctx context.Context) ([]*account.Account, error) {
	query := `SELECT chat_id, account_number, created_at, updated_at FROM accounts ORDER BY chat_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*account.Account, 0)
	for rows.Next() {
		acc := &account.Account{}
		if err := rows.Scan(&acc.ChatID, &acc.AccountNumber, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning account row: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) AddBalanceSnapshot(ctx context.Context, snapshot *account.BalanceSnapshot) error {
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = r.now().UTC()
	}
	query := `INSERT INTO balance_history (chat_id, balance, created_at)
               VALUES ($1, $2, $3)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, r.db.rebind(query), snapshot.ChatID, snapshot.Balance, snapshot.CreatedAt).Scan(&snapshot.ID)
	if err != nil {
		return fmt.Errorf("error adding balance snapshot: %w", err)
	}
	return nil
}

// ListBalanceHistory returns the latest snapshots first.
func (r *AccountRepository) ListBalanceHistory(ctx context.Context, chatID int64, limit int) ([]*account.BalanceSnapshot, error) {
	query := `SELECT id, chat_id, balance, created_at FROM balance_history
               WHERE chat_id = $1
               ORDER BY created_at DESC, id DESC
               LIMIT $2`
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying balance history: %w", err)
	}
	defer rows.Close()

	history := make([]*account.BalanceSnapshot, 0, limit)
	for rows.Next() {
		s := &account.BalanceSnapshot{}
		if err := rows.Scan(&s.ID, &s.ChatID, &s.Balance, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning balance history row: %w", err)
		}
		history = append(history, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance history rows: %w", err)
	}
	return history, nil
}
