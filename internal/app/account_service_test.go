package app

import (
	"context"
	"errors"
	"testing"

	"payment_notification_bot/internal/domain/account"
	"payment_notification_bot/internal/testutil"

	"github.com/shopspring/decimal"
)

type fakeBalances struct {
	balance decimal.Decimal
	err     error
	seen    []string
}

func (f *fakeBalances) FetchBalance(_ context.Context, accountNumber string) (decimal.Decimal, error) {
	f.seen = append(f.seen, accountNumber)
	return f.balance, f.err
}

func TestRegisterValidatesCardNumber(t *testing.T) {
	tests := []struct {
		name    string
		card    string
		wantErr error
	}{
		{name: "letters", card: "1234abcd9012", wantErr: ErrInvalidCardNumber},
		{name: "empty", card: "", wantErr: ErrInvalidCardNumber},
		{name: "inner spaces", card: "1234 5678 9012", wantErr: ErrInvalidCardNumber},
		{name: "too short", card: "12345", wantErr: ErrCardNumberLength},
		{name: "too long", card: "1234567890123", wantErr: ErrCardNumberLength},
		{name: "valid with surrounding spaces", card: " 123456789012 "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAccountService(testutil.NewRegistry(), &fakeBalances{}, 12, testutil.DiscardLogger())

			_, err := svc.Register(context.Background(), 7, tt.card)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Register() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterStoresNumberWithoutCheckDigit(t *testing.T) {
	registry := testutil.NewRegistry()
	svc := NewAccountService(registry, &fakeBalances{}, 12, testutil.DiscardLogger())

	if _, err := svc.Register(context.Background(), 7, "123456789012"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	number, err := registry.GetAccountNumber(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetAccountNumber() error: %v", err)
	}
	if number != "12345678901" {
		t.Errorf("stored number = %q, want 12345678901", number)
	}

	// Re-registration replaces the number.
	if _, err := svc.Register(context.Background(), 7, "999999999990"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	number, _ = registry.GetAccountNumber(context.Background(), 7)
	if number != "99999999999" {
		t.Errorf("stored number after re-registration = %q", number)
	}
}

func TestBalanceRecordsHistory(t *testing.T) {
	registry := testutil.NewRegistry(&account.Account{ChatID: 7, AccountNumber: "12345678901"})
	balances := &fakeBalances{balance: decimal.RequireFromString("2345.67")}
	svc := NewAccountService(registry, balances, 12, testutil.DiscardLogger())

	balance, err := svc.Balance(context.Background(), 7)
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("2345.67")) {
		t.Errorf("balance = %s", balance)
	}
	if len(balances.seen) != 1 || balances.seen[0] != "12345678901" {
		t.Errorf("balance source called with %v", balances.seen)
	}

	history, err := svc.History(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(history) != 1 || !history[0].Balance.Equal(balance) {
		t.Errorf("history = %+v", history)
	}
}

func TestBalanceErrors(t *testing.T) {
	registry := testutil.NewRegistry(&account.Account{ChatID: 8})
	failing := &fakeBalances{err: errors.New("502 bad gateway")}
	svc := NewAccountService(registry, failing, 12, testutil.DiscardLogger())

	if _, err := svc.Balance(context.Background(), 7); !errors.Is(err, ErrNoAccountNumber) {
		t.Errorf("unknown chat: error = %v, want ErrNoAccountNumber", err)
	}
	if _, err := svc.Balance(context.Background(), 8); !errors.Is(err, ErrNoAccountNumber) {
		t.Errorf("chat without number: error = %v, want ErrNoAccountNumber", err)
	}

	if _, err := svc.Register(context.Background(), 8, "123456789012"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if _, err := svc.Balance(context.Background(), 8); err == nil {
		t.Error("expected the source error to be returned")
	}
	history, _ := svc.History(context.Background(), 8, 10)
	if len(history) != 0 {
		t.Errorf("failed lookups must not be stored, got %d entries", len(history))
	}
}
