package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment_notification_bot/internal/domain/account"
	"payment_notification_bot/internal/domain/payment"
)

var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")

// Status summarizes the monitoring state at a point in time.
type Status struct {
	Now        time.Time
	Occurrence *payment.Occurrence // nil outside every activation window
	Accounts   int
	Registered int // Accounts with an account number
	Notified   []*payment.Record
}

type AdminService struct {
	accounts        account.Repository
	store           payment.Store
	resolver        payment.PeriodResolver
	adminTelegramID int64
	now             func() time.Time
}

func NewAdminService(accounts account.Repository, store payment.Store, resolver payment.PeriodResolver, adminID int64) *AdminService {
	return &AdminService{
		accounts:        accounts,
		store:           store,
		resolver:        resolver,
		adminTelegramID: adminID,
		now:             time.Now,
	}
}

// IsAdmin reports whether the Telegram user may run admin commands.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return s.adminTelegramID != 0 && telegramID == s.adminTelegramID
}

// Status reports the active occurrence and which accounts were notified for it.
func (s *AdminService) Status(ctx context.Context, performingAdminID int64) (*Status, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}

	status := &Status{Now: s.now()}

	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	status.Accounts = len(accounts)
	for _, acc := range accounts {
		if acc.HasAccountNumber() {
			status.Registered++
		}
	}

	occ, ok := s.resolver.Resolve(status.Now)
	if !ok {
		return status, nil
	}
	status.Occurrence = &occ

	status.Notified, err = s.store.ListByOccurrence(ctx, occ)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment records: %w", err)
	}
	return status, nil
}

// ListAccounts returns every account in the registry.
func (s *AdminService) ListAccounts(ctx context.Context, performingAdminID int64) ([]*account.Account, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}
