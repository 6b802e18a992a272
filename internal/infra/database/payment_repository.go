package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payment_notification_bot/internal/domain/payment"

	"github.com/shopspring/decimal"
)

// PaymentRepository is the SQL backed payment.Store. Rows are insert-only.
type PaymentRepository struct {
	db *DB
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) HasReceived(ctx context.Context, chatID int64, occ payment.Occurrence) (bool, error) {
	query := `SELECT COUNT(*) FROM payment_notifications
               WHERE chat_id = $1 AND occurrence_date = $2 AND received`
	var count int
	if err := r.db.QueryRowContext(ctx, r.db.rebind(query), chatID, occ.Key()).Scan(&count); err != nil {
		return false, fmt.Errorf("error checking payment record: %w", err)
	}
	return count > 0, nil
}

// MarkReceived is a compare-and-set on the (chat_id, occurrence_date) key.
// Only the first caller creates the row; later callers get payment.ErrAlreadyMarked.
func (r *PaymentRepository) MarkReceived(ctx context.Context, chatID int64, occ payment.Occurrence, amount decimal.Decimal, at time.Time) error {
	query := `INSERT INTO payment_notifications (chat_id, occurrence_date, received, amount, recorded_at)
               VALUES ($1, $2, TRUE, $3, $4)
               ON CONFLICT (chat_id, occurrence_date) DO NOTHING`
	res, err := r.db.ExecContext(ctx, r.db.rebind(query), chatID, occ.Key(), amount.StringFixed(2), at.UTC())
	if err != nil {
		return fmt.Errorf("error marking payment received: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return payment.ErrAlreadyMarked
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, chatID int64, occ payment.Occurrence) (*payment.Record, error) {
	query := `SELECT chat_id, occurrence_date, received, amount, recorded_at FROM payment_notifications
               WHERE chat_id = $1 AND occurrence_date = $2`
	rec := &payment.Record{}
	err := r.db.QueryRowContext(ctx, r.db.rebind(query), chatID, occ.Key()).Scan(
		&rec.ChatID, &rec.OccurrenceDate, &rec.Received, &rec.Amount, &rec.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrRecordNotFound
		}
		return nil, fmt.Errorf("error getting payment record: %w", err)
	}
	return rec, nil
}

func (r *PaymentRepository) ListByOccurrence(ctx context.Context, occ payment.Occurrence) ([]*payment.Record, error) {
	query := `SELECT chat_id, occurrence_date, received, amount, recorded_at FROM payment_notifications
               WHERE occurrence_date = $1 ORDER BY chat_id`
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), occ.Key())
	if err != nil {
		return nil, fmt.Errorf("error querying payment records: %w", err)
	}
	defer rows.Close()

	records := make([]*payment.Record, 0)
	for rows.Next() {
		rec := &payment.Record{}
		if err := rows.Scan(&rec.ChatID, &rec.OccurrenceDate, &rec.Received, &rec.Amount, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("error scanning payment record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment record rows: %w", err)
	}
	return records, nil
}
