package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"payment_notification_bot/internal/domain/account"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCardNumber = errors.New("card number must contain only digits")
	ErrCardNumberLength  = errors.New("card number has the wrong length")
	ErrNoAccountNumber   = errors.New("no card registered for this chat")
)

// BalanceSource returns the current balance of an account number.
type BalanceSource interface {
	FetchBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error)
}

// AccountService handles card registration and balance lookups for chat users.
type AccountService struct {
	repo       account.Repository
	balances   BalanceSource
	cardLength int
	logger     *logrus.Entry
}

func NewAccountService(repo account.Repository, balances BalanceSource, cardLength int, logger *logrus.Entry) *AccountService {
	return &AccountService{
		repo:       repo,
		balances:   balances,
		cardLength: cardLength,
		logger:     logger,
	}
}

// CardLength is the number of digits expected on registration.
func (s *AccountService) CardLength() int {
	return s.cardLength
}

// ValidateCardNumber checks the raw card number typed by the user.
func (s *AccountService) ValidateCardNumber(cardNumber string) error {
	if cardNumber == "" || strings.IndexFunc(cardNumber, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return ErrInvalidCardNumber
	}
	if len(cardNumber) != s.cardLength {
		return fmt.Errorf("%w: got %d digits, want %d", ErrCardNumberLength, len(cardNumber), s.cardLength)
	}
	return nil
}

// Register validates the card number and stores the account number it maps to:
// the card number without its trailing check digit.
func (s *AccountService) Register(ctx context.Context, chatID int64, cardNumber string) (*account.Account, error) {
	cardNumber = strings.TrimSpace(cardNumber)
	if err := s.ValidateCardNumber(cardNumber); err != nil {
		return nil, err
	}

	acc := &account.Account{
		ChatID:        chatID,
		AccountNumber: cardNumber[:len(cardNumber)-1],
	}
	if err := s.repo.Upsert(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	s.logger.WithField("chat_id", chatID).Info("Card registered")
	return acc, nil
}

// Get returns the registered account of a chat.
func (s *AccountService) Get(ctx context.Context, chatID int64) (*account.Account, error) {
	return s.repo.GetByChatID(ctx, chatID)
}

// Balance fetches the current balance and appends it to the chat's balance history.
// A failure to store the history entry does not hide the balance from the user.
func (s *AccountService) Balance(ctx context.Context, chatID int64) (decimal.Decimal, error) {
	acc, err := s.repo.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return decimal.Zero, ErrNoAccountNumber
		}
		return decimal.Zero, err
	}
	if !acc.HasAccountNumber() {
		return decimal.Zero, ErrNoAccountNumber
	}

	balance, err := s.balances.FetchBalance(ctx, acc.AccountNumber)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch balance: %w", err)
	}

	snapshot := &account.BalanceSnapshot{ChatID: chatID, Balance: balance}
	if err := s.repo.AddBalanceSnapshot(ctx, snapshot); err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to store balance history entry")
	}
	return balance, nil
}

// History returns the latest balance lookups, newest first.
func (s *AccountService) History(ctx context.Context, chatID int64, limit int) ([]*account.BalanceSnapshot, error) {
	return s.repo.ListBalanceHistory(ctx, chatID, limit)
}
