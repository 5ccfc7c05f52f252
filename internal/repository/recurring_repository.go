package repository

import (
	"errors"
	"fmt"
	"time"

	"go-agency-billing/internal/config"
	"go-agency-billing/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecurringInvoiceRepository struct {
	db  *Database
	cfg *config.BillingConfig
}

func NewRecurringInvoiceRepository(db *Database, cfg *config.BillingConfig) *RecurringInvoiceRepository {
	return &RecurringInvoiceRepository{db: db, cfg: cfg}
}

// ================================================================
// CORE RECURRING DEFINITION OPERATIONS
// ================================================================

// CreateRecurringInvoice creates a definition with its template line items.
// The effective tax rate is taken from the first line item, and the schedule
// starts at start_date.
func (r *RecurringInvoiceRepository) CreateRecurringInvoice(request *models.RecurringInvoiceCreateRequest) (*models.RecurringInvoice, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	recurringID := uuid.New().String()
	items := request.ToLineItems(recurringID)
	totals, err := models.ComputeTotals(items)
	if err != nil {
		return nil, err
	}

	intervalValue := request.IntervalValue
	if intervalValue < 1 {
		intervalValue = 1
	}
	currency := request.Currency
	if currency == "" {
		currency = r.cfg.CurrencyCode
	}

	now := time.Now()
	definition := &models.RecurringInvoice{
		ID:               recurringID,
		Title:            request.Title,
		Description:      request.Description,
		ProjectID:        request.ProjectID,
		NetAmount:        totals.Net,
		TaxRate:          items[0].TaxRate,
		Currency:         currency,
		IntervalType:     request.IntervalType,
		IntervalValue:    intervalValue,
		StartDate:        request.StartDate,
		EndDate:          request.EndDate,
		NextInvoiceDate:  request.StartDate,
		IsActive:         true,
		AutoSend:         request.AutoSend,
		SendNotification: request.SendNotification,
		CreatedBy:        request.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = r.db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(definition).Error; err != nil {
			return fmt.Errorf("failed to create recurring invoice: %w", err)
		}
		for i := range items {
			items[i].CreatedAt = now
			items[i].UpdatedAt = now
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create line items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	definition.LineItems = items
	return definition, nil
}

// GetRecurringInvoiceByID retrieves a definition with its line items.
func (r *RecurringInvoiceRepository) GetRecurringInvoiceByID(id string) (*models.RecurringInvoice, error) {
	var definition models.RecurringInvoice

	if err := r.db.DB.First(&definition, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("recurring invoice", id)
		}
		return nil, fmt.Errorf("failed to get recurring invoice: %w", err)
	}

	items, err := loadLineItems(r.db.DB, models.DocumentTypeRecurring, id)
	if err != nil {
		return nil, err
	}
	definition.LineItems = items

	return &definition, nil
}

// GetRecurringInvoices returns a paginated list of definitions.
func (r *RecurringInvoiceRepository) GetRecurringInvoices(filter *models.RecurringInvoiceFilter) ([]models.RecurringInvoice, int64, error) {
	var definitions []models.RecurringInvoice
	var totalCount int64

	query := r.db.DB.Model(&models.RecurringInvoice{})

	if filter != nil {
		if filter.ProjectID != "" {
			query = query.Where("project_id = ?", filter.ProjectID)
		}
		if filter.ActiveOnly {
			query = query.Where("is_active = ?", true)
		}
	}

	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recurring invoices: %w", err)
	}

	if filter != nil && filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("next_invoice_date ASC, created_at DESC").Find(&definitions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get recurring invoices: %w", err)
	}

	return definitions, totalCount, nil
}

// ToggleActive flips the pause/resume state. The schedule is deliberately
// left untouched: a resumed definition catches up on the next sweep instead
// of back-filling missed occurrences.
func (r *RecurringInvoiceRepository) ToggleActive(id string) (*models.RecurringInvoice, error) {
	result := r.db.DB.Model(&models.RecurringInvoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  gorm.Expr("NOT is_active"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to toggle recurring invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, models.NewNotFoundError("recurring invoice", id)
	}

	return r.GetRecurringInvoiceByID(id)
}

// DeleteRecurringInvoice removes a definition and its template line items.
// Invoices already generated from it are kept.
func (r *RecurringInvoiceRepository) DeleteRecurringInvoice(id string) error {
	return r.db.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.RecurringInvoice{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete recurring invoice: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("recurring invoice", id)
		}
		if err := tx.Where("document_type = ? AND document_id = ?",
			models.DocumentTypeRecurring, id).Delete(&models.LineItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete line items: %w", err)
		}
		return nil
	})
}

// ================================================================
// SWEEP SUPPORT
// ================================================================

// FindDue returns every definition matching the sweep filter for asOf:
// active, next_invoice_date due, and not past end_date. Line items are
// loaded so the caller can snapshot them into invoices.
func (r *RecurringInvoiceRepository) FindDue(asOf time.Time) ([]models.RecurringInvoice, error) {
	var definitions []models.RecurringInvoice

	if err := r.db.DB.
		Where("is_active = ? AND next_invoice_date <= ?", true, asOf).
		Where("end_date IS NULL OR next_invoice_date <= end_date").
		Order("next_invoice_date ASC").
		Find(&definitions).Error; err != nil {
		return nil, fmt.Errorf("failed to find due recurring invoices: %w", err)
	}

	for i := range definitions {
		items, err := loadLineItems(r.db.DB, models.DocumentTypeRecurring, definitions[i].ID)
		if err != nil {
			return nil, err
		}
		definitions[i].LineItems = items
	}

	return definitions, nil
}

// GenerateDueInvoice inserts the invoice for one fulfilled due date and
// advances the schedule in the same transaction. The advance is a
// compare-and-set on the old next_invoice_date: if another sweep already
// advanced it, no row matches, the transaction rolls back and no duplicate
// invoice exists. This is what makes re-running a sweep for the same asOf
// idempotent.
func (r *RecurringInvoiceRepository) GenerateDueInvoice(definition *models.RecurringInvoice, invoice *models.Invoice, nextDate time.Time) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	now := time.Now()

	return r.db.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RecurringInvoice{}).
			Where("id = ? AND is_active = ? AND next_invoice_date = ?",
				definition.ID, true, definition.NextInvoiceDate).
			Updates(map[string]interface{}{
				"next_invoice_date":  nextDate,
				"invoices_generated": gorm.Expr("invoices_generated + 1"),
				"updated_at":         now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to advance schedule: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return models.NewConflictError("recurring invoice %s already advanced past %s",
				definition.ID, definition.NextInvoiceDate.Format("2006-01-02"))
		}

		if invoice.InvoiceNumber == "" {
			number, err := allocateInvoiceNumber(tx, r.cfg.InvoiceNumberPrefix, invoice.IssueDate)
			if err != nil {
				return err
			}
			invoice.InvoiceNumber = number
		}
		if err := tx.Create(invoice).Error; err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		items := make([]models.LineItem, 0, len(definition.LineItems))
		for i, src := range definition.LineItems {
			items = append(items, models.LineItem{
				DocumentType: models.DocumentTypeInvoice,
				DocumentID:   invoice.ID,
				Name:         src.Name,
				Description:  src.Description,
				Quantity:     src.Quantity,
				UnitName:     src.UnitName,
				UnitPrice:    src.UnitPrice,
				TaxRate:      src.TaxRate,
				SortOrder:    uint(i),
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("failed to copy line items: %w", err)
			}
			invoice.LineItems = items
		}

		return nil
	})
}
