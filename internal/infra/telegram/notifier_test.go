package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"payment_notification_bot/internal/app"
	"payment_notification_bot/internal/domain/payment"

	"github.com/shopspring/decimal"
	"gopkg.in/telebot.v3"
)

var _ app.Notifier = (*PaymentNotifier)(nil)

type recordingClient struct {
	err   error
	chats []int64
	texts []string
}

func (c *recordingClient) SendMessage(recipientChatID int64, text string, _ *telebot.SendOptions) error {
	c.chats = append(c.chats, recipientChatID)
	c.texts = append(c.texts, text)
	return c.err
}

func TestPaymentNotifier(t *testing.T) {
	client := &recordingClient{}
	notifier := NewPaymentNotifier(client)

	if err := notifier.Notify(context.Background(), 100, decimal.RequireFromString("1500")); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(client.texts) != 1 || client.chats[0] != 100 {
		t.Fatalf("sent = %v to %v", client.texts, client.chats)
	}
	if want := "Выплата получена! Сумма: 1500.00 NOK"; client.texts[0] != want {
		t.Errorf("text = %q, want %q", client.texts[0], want)
	}
}

func TestPaymentNotifierErrors(t *testing.T) {
	sendErr := errors.New("Forbidden: bot was blocked by the user")
	client := &recordingClient{err: sendErr}
	notifier := NewPaymentNotifier(client)

	if err := notifier.Notify(context.Background(), 100, decimal.NewFromInt(1500)); !errors.Is(err, sendErr) {
		t.Errorf("Notify() error = %v, want wrapped send error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client.err = nil
	if err := notifier.Notify(ctx, 100, decimal.NewFromInt(1500)); !errors.Is(err, context.Canceled) {
		t.Errorf("Notify() on cancelled context = %v", err)
	}
	if len(client.texts) != 1 {
		t.Errorf("messages sent = %d, want 1 (nothing after cancellation)", len(client.texts))
	}
}

func TestStatusMessage(t *testing.T) {
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	occ := payment.Occurrence{Date: date, Window: payment.Window{Start: date.AddDate(0, 0, -2), End: date.AddDate(0, 0, 2)}}
	status := &app.Status{
		Now:        time.Date(2025, 5, 2, 9, 30, 0, 0, time.UTC),
		Occurrence: &occ,
		Accounts:   3,
		Registered: 2,
		Notified: []*payment.Record{
			{ChatID: 7, OccurrenceDate: "2025-05-01", Received: true, Amount: decimal.NewFromInt(1500), RecordedAt: date.Add(30 * time.Hour)},
		},
	}

	want := "Время: 02.05.2025 09:30 (UTC)\n" +
		"Пользователей: 3, с картой: 2\n\n" +
		"Выплата: 01.05.2025 (окно 29.04.2025 - 03.05.2025)\n" +
		"Выплата получена: 1 из 2\n" +
		"7: 1500.00 NOK, 02.05.2025 06:00"
	if got := statusMessage(status, time.UTC); got != want {
		t.Errorf("statusMessage() =\n%s\nwant\n%s", got, want)
	}

	status.Occurrence = nil
	if got := statusMessage(status, time.UTC); !strings.HasSuffix(got, msgNoActiveWindow) {
		t.Errorf("statusMessage() without window = %q", got)
	}
}

func TestMaskAccountNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12345678901", "*******8901"},
		{"1234", "1234"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := maskAccountNumber(tt.in); got != tt.want {
			t.Errorf("maskAccountNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
