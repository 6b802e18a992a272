package telegram

import (
	"context"
	"errors"
	"time"

	"payment_notification_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers handlers for admin commands.
// The admin service decides who is an admin.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, loc *time.Location, baseLogger *logrus.Entry) {
	b.Handle("/status", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/status",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		status, err := adminService.Status(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgNotAuthorized)
			}
			handlerLogger.WithError(err).Error("Failed to build status")
			return c.Send(msgInternalError)
		}

		if status.Occurrence != nil {
			handlerLogger = handlerLogger.WithFields(logrus.Fields{
				"occurrence": status.Occurrence.Key(),
				"notified":   len(status.Notified),
			})
		}
		handlerLogger.Info("Status sent")
		return c.Send(statusMessage(status, loc))
	})

	b.Handle("/accounts", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/accounts",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		accounts, err := adminService.ListAccounts(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgNotAuthorized)
			}
			handlerLogger.WithError(err).Error("Failed to list accounts")
			return c.Send(msgInternalError)
		}

		handlerLogger.WithField("accounts_count", len(accounts)).Info("Account list sent")
		return c.Send(accountsMessage(accounts))
	})
}
