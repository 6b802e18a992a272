package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAlreadyMarked is returned by MarkReceived when the (chat, occurrence) pair was recorded before.
	ErrAlreadyMarked  = errors.New("payment already marked as received")
	ErrRecordNotFound = errors.New("payment record not found")
)

// Record is the durable "already notified" marker for one account and occurrence.
// Once written it is never changed.
type Record struct {
	ChatID         int64
	OccurrenceDate string // Occurrence.Key()
	Received       bool
	Amount         decimal.Decimal
	RecordedAt     time.Time
}

// Store is the at-most-once gate for payment notifications.
type Store interface {
	HasReceived(ctx context.Context, chatID int64, occ Occurrence) (bool, error)
	// MarkReceived atomically creates the record. A second call for the same
	// pair leaves the first record untouched and returns ErrAlreadyMarked.
	MarkReceived(ctx context.Context, chatID int64, occ Occurrence, amount decimal.Decimal, at time.Time) error
	Get(ctx context.Context, chatID int64, occ Occurrence) (*Record, error)
	ListByOccurrence(ctx context.Context, occ Occurrence) ([]*Record, error)
}
