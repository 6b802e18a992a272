package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment_notification_bot/internal/domain/account"
	"payment_notification_bot/internal/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AccountRegistry is the read side of the account store used by the checker.
type AccountRegistry interface {
	ListAll(ctx context.Context) ([]*account.Account, error)
	GetAccountNumber(ctx context.Context, chatID int64) (string, error)
}

// TransactionSource returns the latest transactions of an account number.
// It must return an empty slice, not an error, when there are no transactions.
type TransactionSource interface {
	FetchRecentTransactions(ctx context.Context, accountNumber string) ([]payment.Transaction, error)
}

// Notifier informs the account owner about a detected payment.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, amount decimal.Decimal) error
}

// Outcome is the result of checking one account for one occurrence.
type Outcome string

const (
	OutcomeAlreadyNotified Outcome = "ALREADY_NOTIFIED"
	OutcomeNoAccountNumber Outcome = "NO_ACCOUNT_NUMBER"
	OutcomeFetchFailed     Outcome = "FETCH_FAILED"
	OutcomeNoMatch         Outcome = "NO_MATCH"
	OutcomeRaceLost        Outcome = "RACE_LOST" // Another writer marked the payment first
	OutcomeNotified        Outcome = "NOTIFIED"
	OutcomeNotifyFailed    Outcome = "NOTIFY_FAILED" // Recorded, but the user was not informed
	OutcomeFailed          Outcome = "FAILED"
)

// PaymentChecker looks for the payment of one occurrence on one account and
// notifies the owner at most once.
type PaymentChecker struct {
	accounts    AccountRegistry
	source      TransactionSource
	store       payment.Store
	notifier    Notifier
	minAmount   decimal.Decimal
	callTimeout time.Duration
	now         func() time.Time
	logger      *logrus.Entry
}

func NewPaymentChecker(
	accounts AccountRegistry,
	source TransactionSource,
	store payment.Store,
	notifier Notifier,
	minAmount decimal.Decimal,
	callTimeout time.Duration,
	logger *logrus.Entry,
) *PaymentChecker {
	return &PaymentChecker{
		accounts:    accounts,
		source:      source,
		store:       store,
		notifier:    notifier,
		minAmount:   minAmount,
		callTimeout: callTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the clock used for detection timestamps.
func (c *PaymentChecker) WithClock(now func() time.Time) *PaymentChecker {
	c.now = now
	return c
}

// CheckAccount runs the per-account steps of a cycle. Fetch and notification
// failures are reported through the outcome; a returned error means the store
// or the registry could not be reached and the account is retried next cycle.
func (c *PaymentChecker) CheckAccount(ctx context.Context, acc *account.Account, occ payment.Occurrence) (Outcome, error) {
	log := c.logger.WithFields(logrus.Fields{
		"chat_id":    acc.ChatID,
		"occurrence": occ.Key(),
	})

	received, err := c.hasReceived(ctx, acc.ChatID, occ)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to check payment record: %w", err)
	}
	if received {
		log.Debug("Payment already notified, skipping")
		return OutcomeAlreadyNotified, nil
	}

	accountNumber, err := c.accountNumber(ctx, acc.ChatID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			log.Debug("Account disappeared from registry, skipping")
			return OutcomeNoAccountNumber, nil
		}
		return OutcomeFailed, fmt.Errorf("failed to get account number: %w", err)
	}
	if accountNumber == "" {
		log.Debug("No account number registered, skipping")
		return OutcomeNoAccountNumber, nil
	}

	transactions, err := c.fetch(ctx, accountNumber)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch transactions, will retry next cycle")
		return OutcomeFetchFailed, nil
	}
	if len(transactions) == 0 {
		log.Debug("No transactions returned")
		return OutcomeNoMatch, nil
	}

	amount, found := c.firstQualifying(transactions, log)
	if !found {
		log.WithField("transactions", len(transactions)).Debug("No qualifying payment found")
		return OutcomeNoMatch, nil
	}
	log = log.WithField("amount", amount.String())

	if err := c.markReceived(ctx, acc.ChatID, occ, amount); err != nil {
		if errors.Is(err, payment.ErrAlreadyMarked) {
			log.Info("Payment was already marked by another writer, notification skipped")
			return OutcomeRaceLost, nil
		}
		return OutcomeFailed, fmt.Errorf("failed to mark payment received: %w", err)
	}
	log.Info("Payment detected and recorded")

	if err := c.notify(ctx, acc.ChatID, amount); err != nil {
		log.WithError(err).Error("Failed to deliver payment notification; payment stays recorded")
		return OutcomeNotifyFailed, nil
	}
	log.Info("Payment notification delivered")
	return OutcomeNotified, nil
}

// firstQualifying returns the first qualifying transaction in source order.
func (c *PaymentChecker) firstQualifying(transactions []payment.Transaction, log *logrus.Entry) (decimal.Decimal, bool) {
	for i, tx := range transactions {
		amount, ok, err := payment.Classify(tx, c.minAmount)
		if err != nil {
			log.WithError(err).WithField("index", i).Warn("Skipping transaction with unreadable amount")
			continue
		}
		if ok {
			return amount, true
		}
	}
	return decimal.Zero, false
}

func (c *PaymentChecker) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *PaymentChecker) hasReceived(ctx context.Context, chatID int64, occ payment.Occurrence) (bool, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.store.HasReceived(ctx, chatID, occ)
}

func (c *PaymentChecker) accountNumber(ctx context.Context, chatID int64) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.accounts.GetAccountNumber(ctx, chatID)
}

func (c *PaymentChecker) fetch(ctx context.Context, accountNumber string) ([]payment.Transaction, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.source.FetchRecentTransactions(ctx, accountNumber)
}

func (c *PaymentChecker) markReceived(ctx context.Context, chatID int64, occ payment.Occurrence, amount decimal.Decimal) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.store.MarkReceived(ctx, chatID, occ, amount, c.now())
}

func (c *PaymentChecker) notify(ctx context.Context, chatID int64, amount decimal.Decimal) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.notifier.Notify(ctx, chatID, amount)
}
