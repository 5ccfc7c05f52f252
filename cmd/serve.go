package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go-agency-billing/internal/handlers"
	"go-agency-billing/internal/logger"
	"go-agency-billing/internal/middleware"
	"go-agency-billing/internal/repository"
	"go-agency-billing/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the billing HTTP API",
	Long: `Start the billing HTTP API together with the in-process scheduler
that sweeps due recurring invoices once per day.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer logger.GlobalLogger.Close()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Repositories
	quotationRepo := repository.NewQuotationRepository(db, &cfg.Billing)
	invoiceRepo := repository.NewInvoiceRepository(db, &cfg.Billing)
	recurringRepo := repository.NewRecurringInvoiceRepository(db, &cfg.Billing)
	projectRepo := repository.NewProjectRepository(db)

	// Services
	accountingService := services.NewAccountingService(&cfg.Accounting)
	notificationService := services.NewNotificationService(&cfg.Email)
	pdfService := services.NewPDFService(&cfg.Billing)
	quotationService := services.NewQuotationService(
		quotationRepo, accountingService, notificationService, &cfg.Billing, services.SystemClock(), logger.GlobalLogger)
	recurringService := services.NewRecurringInvoiceService(
		recurringRepo, notificationService, &cfg.Billing, services.SystemClock(), logger.GlobalLogger)

	monitor := middleware.NewPerformanceMonitor(2 * time.Second)

	router := handlers.NewRouter(&handlers.RouterDeps{
		Quotations: handlers.NewQuotationHandler(quotationRepo, projectRepo, quotationService, pdfService, invoiceRepo),
		Invoices:   handlers.NewInvoiceHandler(invoiceRepo, projectRepo, pdfService),
		Recurring:  handlers.NewRecurringInvoiceHandler(recurringRepo, projectRepo, recurringService),
		Financial:  handlers.NewFinancialHandler(invoiceRepo),
		Monitor:    monitor,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runSweepScheduler(ctx, recurringService, cfg.Billing.SweepHour)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.GlobalLogger.Info("HTTP server starting", map[string]interface{}{
			"addr": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.GlobalLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

// runSweepScheduler runs the recurrence sweep once at startup (catch-up
// after downtime) and then daily at sweepHour. Missed runs are not
// back-filled: one catch-up sweep covers everything that became due in the
// meantime.
func runSweepScheduler(ctx context.Context, svc *services.RecurringInvoiceService, sweepHour int) {
	runOnce := func() {
		report, err := svc.RunDueRecurrences(ctx, time.Now())
		if err != nil {
			if ctx.Err() == nil {
				logger.GlobalLogger.Error("Recurrence sweep failed", err)
			}
			return
		}
		logger.GlobalLogger.Info("Recurrence sweep completed", map[string]interface{}{
			"processed": report.Processed,
			"generated": len(report.Generated),
			"skipped":   report.Skipped,
			"failures":  len(report.Failures),
		})
	}

	runOnce()

	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), sweepHour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			runOnce()
		}
	}
}
