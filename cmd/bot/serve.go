package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"payment_notification_bot/internal/app"
	"payment_notification_bot/internal/domain/payment"
	"payment_notification_bot/internal/infra/logger"
	"payment_notification_bot/internal/infra/telegram"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the payment scheduler",
	Long: `Apply database migrations, start the Telegram bot and run the payment
scheduler until SIGINT or SIGTERM is received.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mainLogger := logger.Component("main")
	mainLogger.Info("Payment Notification Bot starting...")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	bot, err := newBot(cfg)
	if err != nil {
		return err
	}

	svc := newServices(cfg, db, bot)
	resolver := payment.PeriodResolver{
		Days:       cfg.PaymentDays,
		DaysBefore: cfg.DaysBefore,
		DaysAfter:  cfg.DaysAfter,
		Location:   cfg.ReferenceTimezone,
	}
	accountService := app.NewAccountService(svc.accounts, svc.dnb, cfg.CardNumberLength, logger.Component("account_service"))
	adminService := app.NewAdminService(svc.accounts, svc.payments, resolver, cfg.AdminTelegramID)

	telegram.RegisterBotCommands(ctx, bot, accountService, adminService, cfg.ReferenceTimezone, logger.Component("telegram"))
	telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.ReferenceTimezone, logger.Component("telegram_admin"))
	mainLogger.Info("Command handlers registered")

	svc.scheduler.Start(ctx)

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and scheduler are running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	mainLogger.WithField("signal", sig.String()).Info("Shutting down application...")
	svc.scheduler.Stop()
	bot.Stop()
	mainLogger.Info("Application shut down gracefully")
	return nil
}
