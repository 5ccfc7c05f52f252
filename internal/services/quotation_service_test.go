package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-agency-billing/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuotationStore struct {
	quotation *models.Quotation

	casCalls   int
	casErr     error
	externalID string

	convertCalls    int
	convertErr      error
	lastInvoice     *models.Invoice
	lastSetAccepted bool
}

func (f *fakeQuotationStore) GetQuotationByID(id string) (*models.Quotation, error) {
	if f.quotation == nil || f.quotation.ID != id {
		return nil, models.NewNotFoundError("quotation", id)
	}
	copied := *f.quotation
	return &copied, nil
}

func (f *fakeQuotationStore) UpdateQuotationStatusCAS(id string, fromVersion int, updates map[string]interface{}) error {
	f.casCalls++
	if f.casErr != nil {
		return f.casErr
	}
	if f.quotation.LockVersion != fromVersion {
		return models.NewConflictError("quotation %s was modified concurrently", id)
	}

	f.quotation.Status = updates["status"].(string)
	f.quotation.LockVersion = fromVersion + 1
	if ts, ok := updates["sent_at"].(time.Time); ok {
		f.quotation.SentAt = &ts
	}
	if ts, ok := updates["accepted_at"].(time.Time); ok {
		f.quotation.AcceptedAt = &ts
	}
	if ts, ok := updates["rejected_at"].(time.Time); ok {
		f.quotation.RejectedAt = &ts
	}
	return nil
}

func (f *fakeQuotationStore) SetExternalAccountingID(id string, externalID string, syncedAt time.Time) error {
	if f.quotation.ExternalAccountingID == nil {
		f.quotation.ExternalAccountingID = &externalID
		f.quotation.SyncedAt = &syncedAt
		f.externalID = externalID
	}
	return nil
}

func (f *fakeQuotationStore) ConvertQuotation(quotation *models.Quotation, invoice *models.Invoice, setAccepted bool, now time.Time) error {
	f.convertCalls++
	if f.convertErr != nil {
		return f.convertErr
	}
	invoice.ID = "inv-1"
	invoice.InvoiceNumber = "RE-2024-0001"
	f.lastInvoice = invoice
	f.lastSetAccepted = setAccepted
	if setAccepted {
		f.quotation.Status = models.QuotationStatusAccepted
		f.quotation.AcceptedAt = &now
		f.quotation.LockVersion++
	}
	return nil
}

type fakeAccounting struct {
	enabled bool
	id      string
	err     error
	calls   int
}

func (f *fakeAccounting) Enabled() bool { return f.enabled }

func (f *fakeAccounting) PushQuotation(ctx context.Context, quotation *models.Quotation) (string, error) {
	f.calls++
	if f.err != nil {
		return "", models.NewExternalServiceError("accounting", f.err)
	}
	return f.id, nil
}

func sentQuotation() *models.Quotation {
	return &models.Quotation{
		ID:              "q1",
		QuotationNumber: "Q-2024-001",
		Title:           "Website relaunch",
		ProjectID:       "p1",
		NetAmount:       decimal.RequireFromString("1000.00"),
		TaxAmount:       decimal.RequireFromString("190.00"),
		TotalAmount:     decimal.RequireFromString("1190.00"),
		Currency:        "EUR",
		Status:          models.QuotationStatusSent,
		LineItems: []models.LineItem{{
			Name:      "Design",
			Quantity:  decimal.NewFromInt(10),
			UnitPrice: decimal.RequireFromString("100.00"),
			TaxRate:   19,
		}},
	}
}

type fakeQuotationNotifier struct {
	calls int
	err   error
	last  *models.Quotation
}

func (f *fakeQuotationNotifier) NotifyQuotationSent(quotation *models.Quotation) error {
	f.calls++
	f.last = quotation
	return f.err
}

func newQuotationTestService(store *fakeQuotationStore, accounting *fakeAccounting, now time.Time, t *testing.T) *QuotationService {
	return NewQuotationService(store, accounting, nil, testBillingConfig(), fixedClock{now}, testLogger(t))
}

func TestChangeStatusDraftToSent(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := sentQuotation()
	q.Status = models.QuotationStatusDraft

	store := &fakeQuotationStore{quotation: q}
	accounting := &fakeAccounting{enabled: true, id: "acc-42"}
	svc := newQuotationTestService(store, accounting, now, t)

	result, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusSent)
	require.NoError(t, err)

	assert.Equal(t, models.QuotationStatusSent, result.Quotation.Status)
	require.NotNil(t, result.Quotation.SentAt)
	assert.True(t, result.Quotation.SentAt.Equal(now))
	assert.Empty(t, result.SyncWarning)

	assert.Equal(t, 1, accounting.calls)
	assert.Equal(t, "acc-42", store.externalID)
	require.NotNil(t, result.Quotation.ExternalAccountingID)
	assert.Equal(t, "acc-42", *result.Quotation.ExternalAccountingID)
}

func TestChangeStatusAccountingFailureKeepsTransition(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := sentQuotation()
	q.Status = models.QuotationStatusDraft

	store := &fakeQuotationStore{quotation: q}
	accounting := &fakeAccounting{enabled: true, err: errors.New("connection refused")}
	svc := newQuotationTestService(store, accounting, now, t)

	result, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusSent)
	require.NoError(t, err, "sync failure never fails the transition")

	assert.Equal(t, models.QuotationStatusSent, result.Quotation.Status)
	assert.NotEmpty(t, result.SyncWarning)
	assert.Nil(t, result.Quotation.ExternalAccountingID)
}

func TestChangeStatusSkipsPushWhenAlreadySynced(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := sentQuotation()
	q.Status = models.QuotationStatusDraft
	externalID := "acc-7"
	q.ExternalAccountingID = &externalID

	store := &fakeQuotationStore{quotation: q}
	accounting := &fakeAccounting{enabled: true, id: "acc-new"}
	svc := newQuotationTestService(store, accounting, now, t)

	_, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusSent)
	require.NoError(t, err)
	assert.Equal(t, 0, accounting.calls)
	assert.Equal(t, "acc-7", *store.quotation.ExternalAccountingID)
}

func TestChangeStatusDisabledAccounting(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := sentQuotation()
	q.Status = models.QuotationStatusDraft

	store := &fakeQuotationStore{quotation: q}
	accounting := &fakeAccounting{enabled: false}
	svc := newQuotationTestService(store, accounting, now, t)

	result, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusSent)
	require.NoError(t, err)
	assert.Equal(t, 0, accounting.calls)
	assert.Empty(t, result.SyncWarning)
}

func TestChangeStatusNotifiesOnSent(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := sentQuotation()
	q.Status = models.QuotationStatusDraft

	store := &fakeQuotationStore{quotation: q}
	notifier := &fakeQuotationNotifier{}
	svc := NewQuotationService(store, &fakeAccounting{}, notifier, testBillingConfig(), fixedClock{now}, testLogger(t))

	_, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusSent)
	require.NoError(t, err)

	assert.Equal(t, 1, notifier.calls)
	require.NotNil(t, notifier.last)
	assert.Equal(t, models.QuotationStatusSent, notifier.last.Status, "notification sees the committed state")

	// accepting afterwards must not notify again
	_, err = svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.calls)
}

func TestChangeStatusNotificationFailureIsNotFatal(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := sentQuotation()
	q.Status = models.QuotationStatusDraft

	store := &fakeQuotationStore{quotation: q}
	notifier := &fakeQuotationNotifier{err: errors.New("smtp unreachable")}
	svc := NewQuotationService(store, &fakeAccounting{}, notifier, testBillingConfig(), fixedClock{now}, testLogger(t))

	result, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusSent)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusSent, result.Quotation.Status)
	assert.Empty(t, result.SyncWarning, "notification failures stay out of the response")
}

func TestChangeStatusInvalidTransitions(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// The only forbidden moves skip the dispatch step entirely.
	tests := []struct {
		name string
		from string
		to   string
	}{
		{"draft to accepted", models.QuotationStatusDraft, models.QuotationStatusAccepted},
		{"draft to rejected", models.QuotationStatusDraft, models.QuotationStatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := sentQuotation()
			q.Status = tt.from
			store := &fakeQuotationStore{quotation: q}
			svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

			_, err := svc.ChangeStatus(context.Background(), "q1", tt.to)
			require.Error(t, err)
			assert.True(t, models.IsInvalidState(err), "got %v", err)
			assert.Equal(t, tt.from, store.quotation.Status, "status must be unchanged")
			assert.Equal(t, 0, store.casCalls)
		})
	}
}

func TestChangeStatusAllowsReversions(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		from string
		to   string
	}{
		{"accepted back to sent", models.QuotationStatusAccepted, models.QuotationStatusSent},
		{"accepted back to draft", models.QuotationStatusAccepted, models.QuotationStatusDraft},
		{"accepted corrected to rejected", models.QuotationStatusAccepted, models.QuotationStatusRejected},
		{"rejected back to sent", models.QuotationStatusRejected, models.QuotationStatusSent},
		{"rejected corrected to accepted", models.QuotationStatusRejected, models.QuotationStatusAccepted},
		{"sent back to draft", models.QuotationStatusSent, models.QuotationStatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := sentQuotation()
			q.Status = tt.from
			store := &fakeQuotationStore{quotation: q}
			svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

			result, err := svc.ChangeStatus(context.Background(), "q1", tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.to, result.Quotation.Status)
		})
	}
}

func TestChangeStatusReversionRestampsOnlyEnteredState(t *testing.T) {
	firstSent := time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC)
	accepted := time.Date(2024, 4, 25, 9, 0, 0, 0, time.UTC)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	q := sentQuotation()
	q.Status = models.QuotationStatusAccepted
	q.SentAt = &firstSent
	q.AcceptedAt = &accepted

	store := &fakeQuotationStore{quotation: q}
	svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

	result, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusSent)
	require.NoError(t, err)

	assert.Equal(t, models.QuotationStatusSent, result.Quotation.Status)
	require.NotNil(t, result.Quotation.SentAt)
	assert.True(t, result.Quotation.SentAt.Equal(now), "re-entering sent re-stamps sent_at")
	require.NotNil(t, result.Quotation.AcceptedAt)
	assert.True(t, result.Quotation.AcceptedAt.Equal(accepted), "accepted_at survives the reversion")
}

func TestChangeStatusReversionSkipsPushWhenSynced(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := sentQuotation()
	q.Status = models.QuotationStatusAccepted
	externalID := "acc-7"
	q.ExternalAccountingID = &externalID

	store := &fakeQuotationStore{quotation: q}
	accounting := &fakeAccounting{enabled: true, id: "acc-new"}
	svc := newQuotationTestService(store, accounting, now, t)

	_, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusSent)
	require.NoError(t, err)
	assert.Equal(t, 0, accounting.calls)
	assert.Equal(t, "acc-7", *store.quotation.ExternalAccountingID)
}

func TestChangeStatusSameStatusIsNoOp(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeQuotationStore{quotation: sentQuotation()}
	svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

	result, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusSent)
	require.NoError(t, err)
	assert.Equal(t, 0, store.casCalls)
	assert.Equal(t, models.QuotationStatusSent, result.Quotation.Status)
}

func TestChangeStatusConflict(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeQuotationStore{
		quotation: sentQuotation(),
		casErr:    models.NewConflictError("quotation q1 was modified concurrently"),
	}
	svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

	_, err := svc.ChangeStatus(context.Background(), "q1", models.QuotationStatusAccepted)
	require.Error(t, err)
	assert.True(t, models.IsConflict(err))
}

func TestChangeStatusUnknownStatus(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeQuotationStore{quotation: sentQuotation()}
	svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

	_, err := svc.ChangeStatus(context.Background(), "q1", "expired")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err), "derived states are never stored")
}

func TestConvertSnapshotsAmounts(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeQuotationStore{quotation: sentQuotation()}
	svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

	invoice, err := svc.Convert(context.Background(), "q1", &models.QuotationConvertRequest{})
	require.NoError(t, err)

	assert.True(t, invoice.Amount.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, invoice.TaxAmount.Equal(decimal.RequireFromString("190.00")))
	assert.True(t, invoice.TotalAmount.Equal(decimal.RequireFromString("1190.00")))
	assert.Equal(t, models.InvoiceStatusDraft, invoice.Status)
	assert.True(t, invoice.IssueDate.Equal(now))
	require.NotNil(t, invoice.DueDate)
	assert.Equal(t, "2024-05-15", invoice.DueDate.Format("2006-01-02"), "default 14 day terms")
	require.NotNil(t, invoice.QuotationID)
	assert.Equal(t, "q1", *invoice.QuotationID)
	assert.False(t, store.lastSetAccepted)
}

func TestConvertWithSetAccepted(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeQuotationStore{quotation: sentQuotation()}
	svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

	_, err := svc.Convert(context.Background(), "q1", &models.QuotationConvertRequest{SetAccepted: true})
	require.NoError(t, err)

	assert.True(t, store.lastSetAccepted)
	assert.Equal(t, models.QuotationStatusAccepted, store.quotation.Status)
	assert.NotNil(t, store.quotation.AcceptedAt)
}

func TestConvertRefusesNonConvertibleStates(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for _, status := range []string{models.QuotationStatusDraft, models.QuotationStatusRejected} {
		q := sentQuotation()
		q.Status = status
		store := &fakeQuotationStore{quotation: q}
		svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

		_, err := svc.Convert(context.Background(), "q1", &models.QuotationConvertRequest{})
		require.Error(t, err, "status %s", status)
		assert.True(t, models.IsInvalidState(err))
		assert.Equal(t, 0, store.convertCalls, "no invoice may exist after a refused conversion")
	}
}

func TestConvertPropagatesConflict(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeQuotationStore{
		quotation:  sentQuotation(),
		convertErr: models.NewConflictError("quotation q1 changed state during conversion"),
	}
	svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

	_, err := svc.Convert(context.Background(), "q1", &models.QuotationConvertRequest{SetAccepted: true})
	require.Error(t, err)
	assert.True(t, models.IsConflict(err))
}

func TestConvertRejectsPastDueDate(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -3)
	store := &fakeQuotationStore{quotation: sentQuotation()}
	svc := newQuotationTestService(store, &fakeAccounting{}, now, t)

	_, err := svc.Convert(context.Background(), "q1", &models.QuotationConvertRequest{DueDate: &past})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, 0, store.convertCalls)
}
