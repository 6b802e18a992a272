package main

import (
	"context"
	"fmt"
	"time"

	"payment_notification_bot/internal/app"
	"payment_notification_bot/internal/infra/config"
	idb "payment_notification_bot/internal/infra/database"
	"payment_notification_bot/internal/infra/dnb"
	"payment_notification_bot/internal/infra/logger"
	"payment_notification_bot/internal/infra/scheduler"
	"payment_notification_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// loadConfig reads the configuration and initializes the global logger from it.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	logger.Log.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"db_driver":   cfg.DatabaseDriver,
		"timezone":    cfg.ReferenceTimezone.String(),
	}).Info("Configuration loaded")
	return cfg, nil
}

// openDatabase connects to the configured database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.AppConfig) (*idb.DB, error) {
	db, err := idb.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := idb.Migrate(ctx, db, logger.Component("migrations")); err != nil {
		db.Close()
		return nil, err
	}
	logger.Log.Info("Database connection established successfully")
	return db, nil
}

func newBot(cfg *config.AppConfig) (*telebot.Bot, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}

	botLogger := logger.Component("telebot")
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Telegram handler failed")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}

// services bundles everything the scheduler and the bot handlers share.
type services struct {
	accounts  *idb.AccountRepository
	payments  *idb.PaymentRepository
	dnb       *dnb.Client
	checker   *app.PaymentChecker
	scheduler *scheduler.PaymentScheduler
}

func newServices(cfg *config.AppConfig, db *idb.DB, bot *telebot.Bot, opts ...scheduler.Option) *services {
	s := &services{
		accounts: idb.NewAccountRepository(db),
		payments: idb.NewPaymentRepository(db),
		dnb:      dnb.NewClient(cfg.DNBBalanceURL, cfg.DNBTransactionsURL, cfg.DNBChannel, cfg.ExternalCallTimeout),
	}

	notifier := telegram.NewPaymentNotifier(telegram.NewTelebotAdapter(bot))
	s.checker = app.NewPaymentChecker(
		s.accounts,
		s.dnb,
		s.payments,
		notifier,
		cfg.MinPaymentAmount,
		cfg.ExternalCallTimeout,
		logger.Component("payment_checker"),
	)
	s.scheduler = scheduler.NewPaymentScheduler(cfg.Scheduler(), s.accounts, s.checker, logger.Component("scheduler"), opts...)
	return s
}

// parseAt parses the --at flag. An empty value means now.
func parseAt(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at value %q, expected RFC3339 such as 2025-05-02T10:00:00+02:00: %w", value, err)
	}
	return at, nil
}
