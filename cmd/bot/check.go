package main

import (
	"fmt"
	"sort"
	"time"

	"payment_notification_bot/internal/app"
	"payment_notification_bot/internal/infra/scheduler"

	"github.com/spf13/cobra"
)

var checkAt string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one payment check cycle and print the report",
	Long: `Run exactly one payment check cycle against every registered account.
Detected payments are recorded and notified just like in the running bot.

Examples:
  paybot check
  paybot check --at 2025-05-02T10:00:00+02:00`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkAt, "at", "", "evaluate the payment window at this RFC3339 time instead of now")
}

func runCheck(cmd *cobra.Command, args []string) error {
	at, err := parseAt(checkAt)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	bot, err := newBot(cfg)
	if err != nil {
		return err
	}

	svc := newServices(cfg, db, bot, scheduler.WithClock(func() time.Time { return at }))
	report, err := svc.scheduler.RunCycle(cmd.Context())
	printReport(report, cfg.ReferenceTimezone)
	if err != nil {
		return fmt.Errorf("payment check cycle failed: %w", err)
	}
	return nil
}

func printReport(report scheduler.CycleReport, loc *time.Location) {
	fmt.Printf("Cycle at:   %s\n", report.StartedAt.In(loc).Format(time.RFC3339))
	if report.Occurrence == nil {
		fmt.Println("Occurrence: none (outside every payment window)")
		return
	}
	fmt.Printf("Occurrence: %s\n", report.Occurrence.Key())
	fmt.Printf("Accounts:   %d\n", report.Accounts)
	fmt.Printf("Failed:     %d\n", report.Failed)

	outcomes := make([]string, 0, len(report.Outcomes))
	for outcome := range report.Outcomes {
		outcomes = append(outcomes, string(outcome))
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Printf("  %-18s %d\n", outcome+":", report.Outcomes[app.Outcome(outcome)])
	}
}
