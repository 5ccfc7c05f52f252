package services

import (
	"context"
	"time"

	"go-agency-billing/internal/config"
	"go-agency-billing/internal/logger"
	"go-agency-billing/internal/models"
)

// QuotationStore is the persistence surface the quotation lifecycle needs.
// Satisfied by repository.QuotationRepository.
type QuotationStore interface {
	GetQuotationByID(id string) (*models.Quotation, error)
	UpdateQuotationStatusCAS(id string, fromVersion int, updates map[string]interface{}) error
	SetExternalAccountingID(id string, externalID string, syncedAt time.Time) error
	ConvertQuotation(quotation *models.Quotation, invoice *models.Invoice, setAccepted bool, now time.Time) error
}

// AccountingClient mirrors documents into the external accounting system.
type AccountingClient interface {
	Enabled() bool
	PushQuotation(ctx context.Context, quotation *models.Quotation) (string, error)
}

// QuotationNotifier delivers dispatch notifications. Delivery failures are
// logged, never surfaced to the caller.
type QuotationNotifier interface {
	NotifyQuotationSent(quotation *models.Quotation) error
}

// allowedTransitions is the quotation state machine. Operators may revert any
// decision, so accepted and rejected are not terminal; the only forbidden
// moves are draft straight to accepted/rejected, which skip the dispatch step.
// "expired" never appears because it is derived, not stored.
var allowedTransitions = map[string][]string{
	models.QuotationStatusDraft:    {models.QuotationStatusSent},
	models.QuotationStatusSent:     {models.QuotationStatusDraft, models.QuotationStatusAccepted, models.QuotationStatusRejected},
	models.QuotationStatusAccepted: {models.QuotationStatusDraft, models.QuotationStatusSent, models.QuotationStatusRejected},
	models.QuotationStatusRejected: {models.QuotationStatusDraft, models.QuotationStatusSent, models.QuotationStatusAccepted},
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// QuotationService drives the quotation lifecycle: status transitions, the
// best-effort accounting sync and the conversion into invoices.
type QuotationService struct {
	store      QuotationStore
	accounting AccountingClient
	notifier   QuotationNotifier
	cfg        *config.BillingConfig
	clock      Clock
	logger     *logger.StructuredLogger
}

func NewQuotationService(store QuotationStore, accounting AccountingClient, notifier QuotationNotifier, cfg *config.BillingConfig, clock Clock, log *logger.StructuredLogger) *QuotationService {
	if clock == nil {
		clock = SystemClock()
	}
	return &QuotationService{
		store:      store,
		accounting: accounting,
		notifier:   notifier,
		cfg:        cfg,
		clock:      clock,
		logger:     log,
	}
}

// StatusChangeResult carries the updated quotation plus a warning when the
// accounting sync failed. The transition itself has committed either way.
type StatusChangeResult struct {
	Quotation   *models.Quotation
	SyncWarning string
}

// ChangeStatus applies a lifecycle transition. Entering a state stamps its
// timestamp (sent_at, accepted_at, rejected_at); re-entering overwrites only
// that stamp. Entering sent additionally triggers the accounting push, which
// never rolls the transition back on failure.
func (s *QuotationService) ChangeStatus(ctx context.Context, id string, newStatus string) (*StatusChangeResult, error) {
	switch newStatus {
	case models.QuotationStatusDraft, models.QuotationStatusSent,
		models.QuotationStatusAccepted, models.QuotationStatusRejected:
	default:
		return nil, models.NewValidationError("invalid quotation status: %s", newStatus)
	}

	quotation, err := s.store.GetQuotationByID(id)
	if err != nil {
		return nil, err
	}

	if quotation.Status == newStatus {
		return &StatusChangeResult{Quotation: quotation}, nil
	}
	if !transitionAllowed(quotation.Status, newStatus) {
		return nil, models.NewInvalidStateError("quotation %s cannot move from %s to %s",
			quotation.QuotationNumber, quotation.Status, newStatus)
	}

	now := s.clock.Now()
	updates := map[string]interface{}{"status": newStatus}
	switch newStatus {
	case models.QuotationStatusSent:
		updates["sent_at"] = now
	case models.QuotationStatusAccepted:
		updates["accepted_at"] = now
	case models.QuotationStatusRejected:
		updates["rejected_at"] = now
	}

	if err := s.store.UpdateQuotationStatusCAS(id, quotation.LockVersion, updates); err != nil {
		return nil, err
	}

	s.logger.LogBusinessEvent("Quotation status changed", quotation.QuotationNumber, "status_change", map[string]interface{}{
		"quotation_id": id,
		"from":         quotation.Status,
		"to":           newStatus,
	})

	result := &StatusChangeResult{}
	if newStatus == models.QuotationStatusSent {
		result.SyncWarning = s.syncToAccounting(ctx, quotation)
	}

	updated, err := s.store.GetQuotationByID(id)
	if err != nil {
		return nil, err
	}
	result.Quotation = updated

	if newStatus == models.QuotationStatusSent && s.notifier != nil {
		if err := s.notifier.NotifyQuotationSent(updated); err != nil {
			s.logger.Warn("Quotation dispatch notification failed", map[string]interface{}{
				"quotation_id": id,
				"error":        err.Error(),
			})
		}
	}

	return result, nil
}

// syncToAccounting pushes the quotation and records the returned id. Returns
// a warning string on failure; the caller's transaction is already committed
// and must not be affected.
func (s *QuotationService) syncToAccounting(ctx context.Context, quotation *models.Quotation) string {
	if s.accounting == nil || !s.accounting.Enabled() {
		return ""
	}
	if quotation.ExternalAccountingID != nil && *quotation.ExternalAccountingID != "" {
		return ""
	}

	externalID, err := s.accounting.PushQuotation(ctx, quotation)
	if err != nil {
		s.logger.Warn("Accounting sync failed", map[string]interface{}{
			"quotation_id": quotation.ID,
			"error":        err.Error(),
		})
		return "accounting sync failed: " + err.Error()
	}

	if err := s.store.SetExternalAccountingID(quotation.ID, externalID, s.clock.Now()); err != nil {
		s.logger.Warn("Failed to record external accounting id", map[string]interface{}{
			"quotation_id": quotation.ID,
			"external_id":  externalID,
			"error":        err.Error(),
		})
		return "accounting sync incomplete: " + err.Error()
	}

	s.logger.LogBusinessEvent("Quotation synced to accounting", quotation.QuotationNumber, "accounting_sync", map[string]interface{}{
		"quotation_id": quotation.ID,
		"external_id":  externalID,
	})
	return ""
}

// Convert materializes an invoice from a sent or accepted quotation. The
// invoice gets a full copy of the quotation's line items and amounts; later
// edits to either document never affect the other.
func (s *QuotationService) Convert(ctx context.Context, id string, request *models.QuotationConvertRequest) (*models.Invoice, error) {
	quotation, err := s.store.GetQuotationByID(id)
	if err != nil {
		return nil, err
	}
	if !quotation.IsConvertible() {
		return nil, models.NewInvalidStateError("quotation %s cannot be converted in status %s",
			quotation.QuotationNumber, quotation.Status)
	}

	now := s.clock.Now()
	dueDate := request.DueDate
	if dueDate == nil {
		d := now.AddDate(0, 0, s.cfg.DefaultPaymentTerms)
		dueDate = &d
	}
	if dueDate.Before(now) {
		return nil, models.NewValidationError("due date cannot be before issue date")
	}

	createdBy := request.CreatedBy
	if createdBy == nil {
		createdBy = quotation.CreatedBy
	}

	invoice := &models.Invoice{
		Title:       quotation.Title,
		Description: quotation.Description,
		ProjectID:   quotation.ProjectID,
		Amount:      quotation.NetAmount,
		TaxAmount:   quotation.TaxAmount,
		TotalAmount: quotation.TotalAmount,
		Currency:    quotation.Currency,
		Status:      models.InvoiceStatusDraft,
		IssueDate:   now,
		DueDate:     dueDate,
		QuotationID: &quotation.ID,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.ConvertQuotation(quotation, invoice, request.SetAccepted, now); err != nil {
		return nil, err
	}

	s.logger.LogBusinessEvent("Quotation converted to invoice", quotation.QuotationNumber, "convert", map[string]interface{}{
		"quotation_id":   quotation.ID,
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"set_accepted":   request.SetAccepted,
	})

	return invoice, nil
}
