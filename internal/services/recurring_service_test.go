package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go-agency-billing/internal/config"
	"go-agency-billing/internal/logger"
	"go-agency-billing/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNextDateClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name          string
		current       string
		intervalType  string
		intervalValue int
		want          string
	}{
		{"jan 31 to leap feb", "2024-01-31", models.IntervalMonthly, 1, "2024-02-29"},
		{"jan 31 to non-leap feb", "2023-01-31", models.IntervalMonthly, 1, "2023-02-28"},
		{"feb 29 stays on day 29", "2024-02-29", models.IntervalMonthly, 1, "2024-03-29"},
		{"mid-month monthly", "2024-01-15", models.IntervalMonthly, 1, "2024-02-15"},
		{"every two months", "2024-01-15", models.IntervalMonthly, 2, "2024-03-15"},
		{"quarterly clamps", "2024-01-31", models.IntervalQuarterly, 1, "2024-04-30"},
		{"quarterly value two", "2024-01-01", models.IntervalQuarterly, 2, "2024-07-01"},
		{"yearly", "2024-03-10", models.IntervalYearly, 1, "2025-03-10"},
		{"yearly from leap day", "2024-02-29", models.IntervalYearly, 1, "2025-02-28"},
		{"december rollover", "2024-12-31", models.IntervalMonthly, 1, "2025-01-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, err := time.Parse("2006-01-02", tt.current)
			require.NoError(t, err)

			got, err := ComputeNextDate(current, tt.intervalType, tt.intervalValue)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestComputeNextDateRejectsBadInput(t *testing.T) {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := ComputeNextDate(current, "weekly", 1)
	assert.True(t, models.IsValidation(err))

	_, err = ComputeNextDate(current, models.IntervalMonthly, 0)
	assert.True(t, models.IsValidation(err))
}

func TestComputeNextDateRepeatedApplication(t *testing.T) {
	// Twelve monthly steps from Jan 31 land back on Jan 31 one year later,
	// visiting each month's clamped day along the way.
	current := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		next, err := ComputeNextDate(current, models.IntervalMonthly, 1)
		require.NoError(t, err)
		current = next
	}
	assert.Equal(t, "2025-01-29", current.Format("2006-01-02"),
		"clamping is sticky: once shortened to Feb 29 the day stays 29")
}

// ---------------------------------------------------------------
// sweep fakes
// ---------------------------------------------------------------

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeRecurringStore struct {
	defs     []models.RecurringInvoice
	invoices []models.Invoice
	failOn   map[string]error
}

func (f *fakeRecurringStore) GetRecurringInvoiceByID(id string) (*models.RecurringInvoice, error) {
	for i := range f.defs {
		if f.defs[i].ID == id {
			return &f.defs[i], nil
		}
	}
	return nil, models.NewNotFoundError("recurring invoice", id)
}

func (f *fakeRecurringStore) FindDue(asOf time.Time) ([]models.RecurringInvoice, error) {
	var due []models.RecurringInvoice
	for _, d := range f.defs {
		if d.IsDue(asOf) {
			due = append(due, d)
		}
	}
	return due, nil
}

func (f *fakeRecurringStore) GenerateDueInvoice(definition *models.RecurringInvoice, invoice *models.Invoice, nextDate time.Time) error {
	if err := f.failOn[definition.ID]; err != nil {
		return err
	}
	for i := range f.defs {
		if f.defs[i].ID != definition.ID {
			continue
		}
		if !f.defs[i].NextInvoiceDate.Equal(definition.NextInvoiceDate) {
			return models.NewConflictError("recurring invoice %s already advanced", definition.ID)
		}
		f.defs[i].NextInvoiceDate = nextDate
		f.defs[i].InvoicesGenerated++

		invoice.ID = fmt.Sprintf("inv-%d", len(f.invoices)+1)
		invoice.InvoiceNumber = fmt.Sprintf("RE-2024-%04d", len(f.invoices)+1)
		f.invoices = append(f.invoices, *invoice)
		return nil
	}
	return models.NewNotFoundError("recurring invoice", definition.ID)
}

func (f *fakeRecurringStore) ToggleActive(id string) (*models.RecurringInvoice, error) {
	for i := range f.defs {
		if f.defs[i].ID == id {
			f.defs[i].IsActive = !f.defs[i].IsActive
			return &f.defs[i], nil
		}
	}
	return nil, models.NewNotFoundError("recurring invoice", id)
}

type fakeNotifier struct {
	calls []string
	err   error
}

func (f *fakeNotifier) NotifyInvoiceGenerated(invoice *models.Invoice, definition *models.RecurringInvoice) error {
	f.calls = append(f.calls, invoice.InvoiceNumber)
	return f.err
}

func testLogger(t *testing.T) *logger.StructuredLogger {
	t.Helper()
	log, err := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       logger.ERROR,
		Service:     "test",
		Environment: "test",
	})
	require.NoError(t, err)
	return log
}

func testBillingConfig() *config.BillingConfig {
	return &config.BillingConfig{
		DefaultTaxRate:      19,
		DefaultPaymentTerms: 14,
		InvoiceNumberPrefix: "RE",
		CurrencyCode:        "EUR",
	}
}

func monthlyDefinition(id string, next time.Time) models.RecurringInvoice {
	return models.RecurringInvoice{
		ID:              id,
		Title:           "Hosting " + id,
		ProjectID:       "p1",
		Currency:        "EUR",
		IntervalType:    models.IntervalMonthly,
		IntervalValue:   1,
		StartDate:       next,
		NextInvoiceDate: next,
		IsActive:        true,
		LineItems: []models.LineItem{{
			Name:      "Hosting",
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: decimal.RequireFromString("49.00"),
			TaxRate:   19,
		}},
	}
}

func newSweepService(store *fakeRecurringStore, notifier *fakeNotifier, now time.Time, t *testing.T) *RecurringInvoiceService {
	return NewRecurringInvoiceService(store, notifier, testBillingConfig(), fixedClock{now}, testLogger(t))
}

func TestSweepGeneratesAndAdvances(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurringStore{defs: []models.RecurringInvoice{monthlyDefinition("r1", asOf)}}
	svc := newSweepService(store, nil, asOf, t)

	report, err := svc.RunDueRecurrences(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Generated, 1)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 0, report.Skipped)

	assert.Equal(t, "2024-02-01", store.defs[0].NextInvoiceDate.Format("2006-01-02"))
	assert.Equal(t, 1, store.defs[0].InvoicesGenerated)

	require.Len(t, store.invoices, 1)
	inv := store.invoices[0]
	assert.Equal(t, models.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "2024-01-01", inv.IssueDate.Format("2006-01-02"))
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, "2024-01-15", inv.DueDate.Format("2006-01-02"), "due = issue + 14 day terms")
	require.NotNil(t, inv.RecurringInvoiceID)
	assert.Equal(t, "r1", *inv.RecurringInvoiceID)
	assert.True(t, inv.Amount.Equal(decimal.RequireFromString("49.00")))
	assert.True(t, inv.TaxAmount.Equal(decimal.RequireFromString("9.31")))
	assert.True(t, inv.TotalAmount.Equal(decimal.RequireFromString("58.31")))
}

func TestSweepIsIdempotent(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurringStore{defs: []models.RecurringInvoice{monthlyDefinition("r1", asOf)}}
	svc := newSweepService(store, nil, asOf, t)

	first, err := svc.RunDueRecurrences(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, first.Generated, 1)

	second, err := svc.RunDueRecurrences(context.Background(), asOf)
	require.NoError(t, err)
	assert.Empty(t, second.Generated)
	assert.Len(t, store.invoices, 1, "re-running the same day must not duplicate")
}

func TestSweepConcurrentAdvanceCountsAsSkipped(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurringStore{defs: []models.RecurringInvoice{monthlyDefinition("r1", asOf)}}
	svc := newSweepService(store, nil, asOf, t)

	// Another sweep advances the schedule between FindDue and the CAS.
	due, err := store.FindDue(asOf)
	require.NoError(t, err)
	store.defs[0].NextInvoiceDate = asOf.AddDate(0, 1, 0)

	_, _, genErr := svc.generateOne(&due[0], asOf)
	require.Error(t, genErr)
	assert.True(t, models.IsConflict(genErr))
	assert.Empty(t, store.invoices)
}

func TestSweepHonorsEndDate(t *testing.T) {
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	def := monthlyDefinition("r1", asOf.AddDate(0, 0, -3))
	end := asOf.AddDate(0, 0, -5)
	def.EndDate = &end

	store := &fakeRecurringStore{defs: []models.RecurringInvoice{def}}
	svc := newSweepService(store, nil, asOf, t)

	report, err := svc.RunDueRecurrences(context.Background(), asOf)
	require.NoError(t, err)
	assert.Empty(t, report.Generated)
	assert.Empty(t, store.invoices)
}

func TestSweepFailureDoesNotBlockSiblings(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurringStore{
		defs: []models.RecurringInvoice{
			monthlyDefinition("r1", asOf),
			monthlyDefinition("r2", asOf),
		},
		failOn: map[string]error{"r1": errors.New("deadlock detected")},
	}
	svc := newSweepService(store, nil, asOf, t)

	report, err := svc.RunDueRecurrences(context.Background(), asOf)
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "r1", report.Failures[0].RecurringInvoiceID)
	require.Len(t, report.Generated, 1)
	assert.Equal(t, "r2", report.Generated[0].RecurringInvoiceID)
}

func TestSweepAutoSend(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	def := monthlyDefinition("r1", asOf)
	def.AutoSend = true

	store := &fakeRecurringStore{defs: []models.RecurringInvoice{def}}
	svc := newSweepService(store, nil, asOf, t)

	_, err := svc.RunDueRecurrences(context.Background(), asOf)
	require.NoError(t, err)

	require.Len(t, store.invoices, 1)
	assert.Equal(t, models.InvoiceStatusSent, store.invoices[0].Status)
	assert.NotNil(t, store.invoices[0].SentAt)
}

func TestSweepNotification(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	def := monthlyDefinition("r1", asOf)
	def.SendNotification = true

	notifier := &fakeNotifier{err: errors.New("smtp unreachable")}
	store := &fakeRecurringStore{defs: []models.RecurringInvoice{def}}
	svc := newSweepService(store, notifier, asOf, t)

	report, err := svc.RunDueRecurrences(context.Background(), asOf)
	require.NoError(t, err)

	assert.Len(t, notifier.calls, 1)
	assert.Empty(t, report.Failures, "notification failure is logged, not reported")
	assert.Len(t, report.Generated, 1)
}

func TestSweepCatchUpGeneratesSingleInvoice(t *testing.T) {
	// A definition that was paused (or missed by downtime) for months
	// catches up with exactly one invoice, not one per missed period.
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	def := monthlyDefinition("r1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	store := &fakeRecurringStore{defs: []models.RecurringInvoice{def}}
	svc := newSweepService(store, nil, asOf, t)

	report, err := svc.RunDueRecurrences(context.Background(), asOf)
	require.NoError(t, err)

	require.Len(t, report.Generated, 1)
	assert.Equal(t, "2024-02-01", store.defs[0].NextInvoiceDate.Format("2006-01-02"),
		"the schedule advances by one interval from the fulfilled date")
}

func TestToggleActiveLeavesScheduleUntouched(t *testing.T) {
	next := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurringStore{defs: []models.RecurringInvoice{monthlyDefinition("r1", next)}}
	svc := newSweepService(store, nil, next, t)

	paused, err := svc.ToggleActive("r1")
	require.NoError(t, err)
	assert.False(t, paused.IsActive)
	assert.True(t, paused.NextInvoiceDate.Equal(next))

	resumed, err := svc.ToggleActive("r1")
	require.NoError(t, err)
	assert.True(t, resumed.IsActive)
	assert.True(t, resumed.NextInvoiceDate.Equal(next))
}
