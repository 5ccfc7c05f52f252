package cmd

import (
	"context"
	"fmt"
	"time"

	"go-agency-billing/internal/logger"
	"go-agency-billing/internal/repository"
	"go-agency-billing/internal/services"

	"github.com/spf13/cobra"
)

var sweepAsOf string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Materialize due recurring invoices once",
	Long: `Run the recurring invoice sweep a single time and print the report.

Intended for cron and for catch-up after downtime. Re-running for the same
date is safe: a due date that was already fulfilled generates nothing.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepAsOf, "as-of", "", "sweep date as YYYY-MM-DD (default today)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer logger.GlobalLogger.Close()

	asOf := time.Now()
	if sweepAsOf != "" {
		asOf, err = time.Parse("2006-01-02", sweepAsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of date %q: %w", sweepAsOf, err)
		}
	}

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	recurringRepo := repository.NewRecurringInvoiceRepository(db, &cfg.Billing)
	notificationService := services.NewNotificationService(&cfg.Email)
	recurringService := services.NewRecurringInvoiceService(
		recurringRepo, notificationService, &cfg.Billing, services.SystemClock(), logger.GlobalLogger)

	report, err := recurringService.RunDueRecurrences(context.Background(), asOf)
	if err != nil {
		return err
	}

	fmt.Printf("Sweep for %s: %d due, %d generated, %d skipped, %d failed\n",
		report.AsOf.Format("2006-01-02"), report.Processed,
		len(report.Generated), report.Skipped, len(report.Failures))
	for _, generated := range report.Generated {
		fmt.Printf("  generated %s (due %s, next run %s)\n",
			generated.InvoiceNumber,
			generated.DueDate.Format("2006-01-02"),
			generated.NextInvoiceDate.Format("2006-01-02"))
	}
	for _, failure := range report.Failures {
		fmt.Printf("  failed %s: %s\n", failure.RecurringInvoiceID, failure.Error)
	}

	if len(report.Failures) > 0 {
		return fmt.Errorf("%d recurring invoice(s) failed to generate", len(report.Failures))
	}
	return nil
}
