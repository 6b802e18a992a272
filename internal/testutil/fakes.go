// Package testutil provides in-memory collaborators for scheduler and service tests.
package testutil

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"payment_notification_bot/internal/domain/account"
	"payment_notification_bot/internal/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DiscardLogger returns a logger entry that writes nowhere.
func DiscardLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// Registry is an in-memory account registry.
type Registry struct {
	mu        sync.Mutex
	accounts  map[int64]*account.Account
	history   map[int64][]*account.BalanceSnapshot
	ListErr   error
	ListCalls int
}

func NewRegistry(accounts ...*account.Account) *Registry {
	r := &Registry{
		accounts: make(map[int64]*account.Account),
		history:  make(map[int64][]*account.BalanceSnapshot),
	}
	for _, acc := range accounts {
		r.accounts[acc.ChatID] = acc
	}
	return r
}

func (r *Registry) Upsert(_ context.Context, acc *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if existing, ok := r.accounts[acc.ChatID]; ok {
		acc.CreatedAt = existing.CreatedAt
	} else {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	stored := *acc
	r.accounts[acc.ChatID] = &stored
	return nil
}

func (r *Registry) GetByChatID(_ context.Context, chatID int64) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[chatID]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	copied := *acc
	return &copied, nil
}

func (r *Registry) GetAccountNumber(ctx context.Context, chatID int64) (string, error) {
	acc, err := r.GetByChatID(ctx, chatID)
	if err != nil {
		return "", err
	}
	return acc.AccountNumber, nil
}

func (r *Registry) ListAll(_ context.Context) ([]*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ListCalls++
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	list := make([]*account.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		copied := *acc
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ChatID < list[j].ChatID })
	return list, nil
}

func (r *Registry) AddBalanceSnapshot(_ context.Context, snapshot *account.BalanceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot.ID = int64(len(r.history[snapshot.ChatID]) + 1)
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}
	r.history[snapshot.ChatID] = append(r.history[snapshot.ChatID], snapshot)
	return nil
}

func (r *Registry) ListBalanceHistory(_ context.Context, chatID int64, limit int) ([]*account.BalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.history[chatID]
	out := make([]*account.BalanceSnapshot, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Source returns canned transactions per account number and counts calls.
type Source struct {
	mu           sync.Mutex
	Transactions map[string][]payment.Transaction
	Errs         map[string]error
	Calls        []string
}

func NewSource() *Source {
	return &Source{
		Transactions: make(map[string][]payment.Transaction),
		Errs:         make(map[string]error),
	}
}

func (s *Source) FetchRecentTransactions(_ context.Context, accountNumber string) ([]payment.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, accountNumber)
	if err := s.Errs[accountNumber]; err != nil {
		return nil, err
	}
	return s.Transactions[accountNumber], nil
}

func (s *Source) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Notification is one delivered (or attempted) notification.
type Notification struct {
	ChatID int64
	Amount decimal.Decimal
}

// Notifier records notifications. Err makes every delivery fail.
type Notifier struct {
	mu        sync.Mutex
	Err       error
	Attempts  []Notification
	Delivered []Notification
}

func (n *Notifier) Notify(_ context.Context, chatID int64, amount decimal.Decimal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	note := Notification{ChatID: chatID, Amount: amount}
	n.Attempts = append(n.Attempts, note)
	if n.Err != nil {
		return n.Err
	}
	n.Delivered = append(n.Delivered, note)
	return nil
}

func (n *Notifier) DeliveredCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Delivered)
}

// Store is an in-memory payment.Store with the same compare-and-set semantics as the SQL one.
type Store struct {
	mu        sync.Mutex
	records   map[storeKey]*payment.Record
	HasErr    error
	MarkErr   error
	MarkCalls int
}

type storeKey struct {
	chatID int64
	date   string
}

func NewStore() *Store {
	return &Store{records: make(map[storeKey]*payment.Record)}
}

func (s *Store) HasReceived(_ context.Context, chatID int64, occ payment.Occurrence) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HasErr != nil {
		return false, s.HasErr
	}
	rec, ok := s.records[storeKey{chatID, occ.Key()}]
	return ok && rec.Received, nil
}

func (s *Store) MarkReceived(_ context.Context, chatID int64, occ payment.Occurrence, amount decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MarkCalls++
	if s.MarkErr != nil {
		return s.MarkErr
	}
	key := storeKey{chatID, occ.Key()}
	if _, ok := s.records[key]; ok {
		return payment.ErrAlreadyMarked
	}
	s.records[key] = &payment.Record{
		ChatID:         chatID,
		OccurrenceDate: occ.Key(),
		Received:       true,
		Amount:         amount,
		RecordedAt:     at,
	}
	return nil
}

func (s *Store) Get(_ context.Context, chatID int64, occ payment.Occurrence) (*payment.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[storeKey{chatID, occ.Key()}]
	if !ok {
		return nil, payment.ErrRecordNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *Store) ListByOccurrence(_ context.Context, occ payment.Occurrence) ([]*payment.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*payment.Record, 0)
	for key, rec := range s.records {
		if key.date == occ.Key() {
			copied := *rec
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}
