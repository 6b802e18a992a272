package main

import (
	"fmt"

	"payment_notification_bot/internal/domain/payment"
	"payment_notification_bot/internal/infra/config"

	"github.com/spf13/cobra"
)

var resolveAt string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the payment occurrence active at a given time",
	Long: `Resolve the configured payment days against a point in time and print the
active occurrence and its window. Nothing is read from or written to the database.

Examples:
  paybot resolve
  paybot resolve --at 2025-04-30T23:30:00Z`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveAt, "at", "", "RFC3339 time to resolve instead of now")
}

func runResolve(cmd *cobra.Command, args []string) error {
	at, err := parseAt(resolveAt)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	resolver := payment.PeriodResolver{
		Days:       cfg.PaymentDays,
		DaysBefore: cfg.DaysBefore,
		DaysAfter:  cfg.DaysAfter,
		Location:   cfg.ReferenceTimezone,
	}
	local := at.In(cfg.ReferenceTimezone)
	fmt.Printf("Time:        %s (%s)\n", local.Format("2006-01-02 15:04:05"), cfg.ReferenceTimezone)
	fmt.Printf("Payment days: %v, window -%d/+%d days\n", cfg.PaymentDays, cfg.DaysBefore, cfg.DaysAfter)

	occ, ok := resolver.Resolve(at)
	if !ok {
		fmt.Println("No active payment window")
		return nil
	}
	fmt.Printf("Occurrence:  %s\n", occ.Key())
	fmt.Printf("Window:      %s .. %s\n", occ.Window.Start.Format("2006-01-02"), occ.Window.End.Format("2006-01-02"))
	return nil
}
