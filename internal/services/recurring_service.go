package services

import (
	"context"
	"fmt"
	"time"

	"go-agency-billing/internal/config"
	"go-agency-billing/internal/logger"
	"go-agency-billing/internal/models"
)

// RecurringStore is the persistence surface of the recurrence sweep.
// Satisfied by repository.RecurringInvoiceRepository.
type RecurringStore interface {
	GetRecurringInvoiceByID(id string) (*models.RecurringInvoice, error)
	FindDue(asOf time.Time) ([]models.RecurringInvoice, error)
	GenerateDueInvoice(definition *models.RecurringInvoice, invoice *models.Invoice, nextDate time.Time) error
	ToggleActive(id string) (*models.RecurringInvoice, error)
}

// InvoiceNotifier delivers generation notifications. Delivery failures are
// logged, never raised: the invoice exists regardless.
type InvoiceNotifier interface {
	NotifyInvoiceGenerated(invoice *models.Invoice, definition *models.RecurringInvoice) error
}

// ComputeNextDate advances a schedule date by one interval. Month arithmetic
// clamps to the last day of the shorter target month, so Jan 31 + 1 month is
// Feb 28 (29 in leap years), never Mar 3.
func ComputeNextDate(current time.Time, intervalType string, intervalValue int) (time.Time, error) {
	if intervalValue < 1 {
		return time.Time{}, models.NewValidationError("interval value must be at least 1")
	}

	switch intervalType {
	case models.IntervalMonthly:
		return addMonthsClamped(current, intervalValue), nil
	case models.IntervalQuarterly:
		return addMonthsClamped(current, 3*intervalValue), nil
	case models.IntervalYearly:
		return addMonthsClamped(current, 12*intervalValue), nil
	default:
		return time.Time{}, models.NewValidationError("unknown interval type: %s", intervalType)
	}
}

// addMonthsClamped adds months without the normalization overflow of
// time.AddDate (which would turn Jan 31 + 1 month into Mar 3).
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// RecurringInvoiceService owns recurring definitions and the daily sweep that
// materializes their invoices.
type RecurringInvoiceService struct {
	store    RecurringStore
	notifier InvoiceNotifier
	cfg      *config.BillingConfig
	clock    Clock
	logger   *logger.StructuredLogger
}

func NewRecurringInvoiceService(store RecurringStore, notifier InvoiceNotifier, cfg *config.BillingConfig, clock Clock, log *logger.StructuredLogger) *RecurringInvoiceService {
	if clock == nil {
		clock = SystemClock()
	}
	return &RecurringInvoiceService{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		logger:   log,
	}
}

// ToggleActive pauses or resumes a definition. The schedule is not touched:
// a definition resumed after months of pause generates exactly one catch-up
// invoice on the next sweep, not one per missed period.
func (s *RecurringInvoiceService) ToggleActive(id string) (*models.RecurringInvoice, error) {
	definition, err := s.store.ToggleActive(id)
	if err != nil {
		return nil, err
	}

	state := "paused"
	if definition.IsActive {
		state = "resumed"
	}
	s.logger.LogBusinessEvent("Recurring invoice "+state, definition.Title, "toggle_active", map[string]interface{}{
		"recurring_invoice_id": id,
		"is_active":            definition.IsActive,
		"next_invoice_date":    definition.NextInvoiceDate.Format("2006-01-02"),
	})

	return definition, nil
}

// RunDueRecurrences is the sweep: it materializes one invoice per due
// definition and advances each schedule by one interval. Re-running for the
// same date is a no-op because the schedule advance is a compare-and-set on
// the old next_invoice_date. A failing definition is reported and skipped;
// its siblings still generate.
func (s *RecurringInvoiceService) RunDueRecurrences(ctx context.Context, asOf time.Time) (*models.GenerationReport, error) {
	report := &models.GenerationReport{
		AsOf:      asOf,
		Generated: []models.GeneratedInvoiceRecord{},
		Failures:  []models.SweepFailure{},
	}

	definitions, err := s.store.FindDue(asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to find due recurring invoices: %w", err)
	}
	report.Processed = len(definitions)

	for i := range definitions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		definition := &definitions[i]

		if !definition.IsDue(asOf) {
			report.Skipped++
			continue
		}

		invoice, nextDate, err := s.generateOne(definition, asOf)
		if err != nil {
			if models.IsConflict(err) {
				// Another sweep got here first; the invoice already exists.
				report.Skipped++
				continue
			}
			s.logger.Error("Recurring invoice generation failed", err, map[string]interface{}{
				"recurring_invoice_id": definition.ID,
			})
			report.Failures = append(report.Failures, models.SweepFailure{
				RecurringInvoiceID: definition.ID,
				Error:              err.Error(),
			})
			continue
		}

		report.Generated = append(report.Generated, models.GeneratedInvoiceRecord{
			RecurringInvoiceID: definition.ID,
			InvoiceID:          invoice.ID,
			InvoiceNumber:      invoice.InvoiceNumber,
			DueDate:            *invoice.DueDate,
			NextInvoiceDate:    nextDate,
		})

		s.logger.LogBusinessEvent("Recurring invoice generated", invoice.InvoiceNumber, "sweep_generate", map[string]interface{}{
			"recurring_invoice_id": definition.ID,
			"invoice_id":           invoice.ID,
			"next_invoice_date":    nextDate.Format("2006-01-02"),
		})

		if definition.SendNotification && s.notifier != nil {
			if err := s.notifier.NotifyInvoiceGenerated(invoice, definition); err != nil {
				s.logger.Warn("Invoice generation notification failed", map[string]interface{}{
					"recurring_invoice_id": definition.ID,
					"invoice_id":           invoice.ID,
					"error":                err.Error(),
				})
			}
		}
	}

	s.logger.LogBusinessEvent("Recurrence sweep finished", asOf.Format("2006-01-02"), "sweep", map[string]interface{}{
		"processed": report.Processed,
		"generated": len(report.Generated),
		"skipped":   report.Skipped,
		"failures":  len(report.Failures),
	})

	return report, nil
}

// generateOne builds the invoice for a single due definition and hands it to
// the store together with the advanced schedule date.
func (s *RecurringInvoiceService) generateOne(definition *models.RecurringInvoice, asOf time.Time) (*models.Invoice, time.Time, error) {
	totals, err := models.ComputeTotals(definition.LineItems)
	if err != nil {
		return nil, time.Time{}, err
	}

	nextDate, err := ComputeNextDate(definition.NextInvoiceDate, definition.IntervalType, definition.IntervalValue)
	if err != nil {
		return nil, time.Time{}, err
	}

	now := s.clock.Now()
	dueDate := asOf.AddDate(0, 0, s.cfg.DefaultPaymentTerms)

	status := models.InvoiceStatusDraft
	var sentAt *time.Time
	if definition.AutoSend {
		status = models.InvoiceStatusSent
		sentAt = &now
	}

	invoice := &models.Invoice{
		Title:              fmt.Sprintf("%s (%s)", definition.Title, definition.NextInvoiceDate.Format("01/2006")),
		Description:        definition.Description,
		ProjectID:          definition.ProjectID,
		Amount:             totals.Net,
		TaxAmount:          totals.Tax,
		TotalAmount:        totals.Total,
		Currency:           definition.Currency,
		Status:             status,
		IssueDate:          asOf,
		DueDate:            &dueDate,
		RecurringInvoiceID: &definition.ID,
		SentAt:             sentAt,
		CreatedBy:          definition.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.GenerateDueInvoice(definition, invoice, nextDate); err != nil {
		return nil, time.Time{}, err
	}

	return invoice, nextDate, nil
}
