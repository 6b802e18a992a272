package telegram

import (
	"context"
	"fmt"

	domaintelegram "payment_notification_bot/internal/domain/telegram"

	"github.com/shopspring/decimal"
)

// PaymentNotifier delivers payment notifications through the bot.
// Delivery is attempted once; the caller decides what a failure means.
type PaymentNotifier struct {
	client domaintelegram.Client
}

func NewPaymentNotifier(client domaintelegram.Client) *PaymentNotifier {
	return &PaymentNotifier{client: client}
}

func (n *PaymentNotifier) Notify(ctx context.Context, chatID int64, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.client.SendMessage(chatID, paymentReceived(amount), nil); err != nil {
		return fmt.Errorf("failed to send payment notification: %w", err)
	}
	return nil
}
