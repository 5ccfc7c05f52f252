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

type QuotationRepository struct {
	db  *Database
	cfg *config.BillingConfig
}

func NewQuotationRepository(db *Database, cfg *config.BillingConfig) *QuotationRepository {
	return &QuotationRepository{db: db, cfg: cfg}
}

// ================================================================
// CORE QUOTATION OPERATIONS
// ================================================================

// CreateQuotation creates a new quotation with its line items. Amounts are
// snapshotted from the line items at this point and never recomputed live.
func (r *QuotationRepository) CreateQuotation(request *models.QuotationCreateRequest) (*models.Quotation, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	quotationID := uuid.New().String()
	items := request.ToLineItems(quotationID)
	totals, err := models.ComputeTotals(items)
	if err != nil {
		return nil, err
	}

	status := request.Status
	if status == "" {
		status = models.QuotationStatusDraft
	}
	currency := request.Currency
	if currency == "" {
		currency = r.cfg.CurrencyCode
	}

	now := time.Now()
	quotation := &models.Quotation{
		ID:              quotationID,
		QuotationNumber: request.QuotationNumber,
		Title:           request.Title,
		Description:     request.Description,
		ProjectID:       request.ProjectID,
		NetAmount:       totals.Net,
		TaxAmount:       totals.Tax,
		TotalAmount:     totals.Total,
		Currency:        currency,
		Status:          status,
		ValidUntil:      request.ValidUntil,
		CreatedBy:       request.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if status == models.QuotationStatusSent {
		quotation.SentAt = &now
	}

	err = r.db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(quotation).Error; err != nil {
			return fmt.Errorf("failed to create quotation: %w", err)
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

	quotation.LineItems = items
	return quotation, nil
}

// GetQuotationByID retrieves a quotation with its line items.
func (r *QuotationRepository) GetQuotationByID(id string) (*models.Quotation, error) {
	var quotation models.Quotation

	if err := r.db.DB.First(&quotation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("quotation", id)
		}
		return nil, fmt.Errorf("failed to get quotation: %w", err)
	}

	items, err := loadLineItems(r.db.DB, models.DocumentTypeQuotation, id)
	if err != nil {
		return nil, err
	}
	quotation.LineItems = items

	return &quotation, nil
}

// GetQuotationByNumber retrieves a quotation by its human-readable number.
func (r *QuotationRepository) GetQuotationByNumber(number string) (*models.Quotation, error) {
	var quotation models.Quotation

	if err := r.db.DB.Where("quotation_number = ?", number).First(&quotation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("quotation", number)
		}
		return nil, fmt.Errorf("failed to get quotation: %w", err)
	}

	items, err := loadLineItems(r.db.DB, models.DocumentTypeQuotation, quotation.ID)
	if err != nil {
		return nil, err
	}
	quotation.LineItems = items

	return &quotation, nil
}

// GetQuotations returns a paginated list of quotations with filters. The
// derived expired state is applied by the handler, not the query: the status
// filter matches stored statuses only.
func (r *QuotationRepository) GetQuotations(filter *models.QuotationFilter) ([]models.Quotation, int64, error) {
	var quotations []models.Quotation
	var totalCount int64

	query := r.db.DB.Model(&models.Quotation{})

	if filter != nil {
		if filter.Status != "" && filter.Status != models.QuotationStatusExpired {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.Status == models.QuotationStatusExpired {
			query = query.Where("status = ? AND valid_until IS NOT NULL AND valid_until < ?",
				models.QuotationStatusSent, time.Now())
		}
		if filter.ProjectID != "" {
			query = query.Where("project_id = ?", filter.ProjectID)
		}
		if filter.SearchTerm != "" {
			searchTerm := "%" + filter.SearchTerm + "%"
			query = query.Where("quotation_number LIKE ? OR title LIKE ?", searchTerm, searchTerm)
		}
	}

	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count quotations: %w", err)
	}

	if filter != nil && filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("created_at DESC").Find(&quotations).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get quotations: %w", err)
	}

	return quotations, totalCount, nil
}

// UpdateQuotationStatusCAS applies a status transition with an optimistic
// lock on lock_version. A concurrent writer bumps the version first and this
// call reports a conflict instead of overwriting.
func (r *QuotationRepository) UpdateQuotationStatusCAS(id string, fromVersion int, updates map[string]interface{}) error {
	updates["lock_version"] = fromVersion + 1
	updates["updated_at"] = time.Now()

	result := r.db.DB.Model(&models.Quotation{}).
		Where("id = ? AND lock_version = ?", id, fromVersion).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update quotation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewConflictError("quotation %s was modified concurrently", id)
	}
	return nil
}

// SetExternalAccountingID records the id returned by the accounting system.
// Writes only when no id is present yet, so a repeated push stays idempotent.
func (r *QuotationRepository) SetExternalAccountingID(id string, externalID string, syncedAt time.Time) error {
	result := r.db.DB.Model(&models.Quotation{}).
		Where("id = ? AND external_accounting_id IS NULL", id).
		Updates(map[string]interface{}{
			"external_accounting_id": externalID,
			"synced_at":              syncedAt,
			"updated_at":             time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to set external accounting id: %w", result.Error)
	}
	return nil
}

// DeleteQuotation removes a quotation and its line items.
func (r *QuotationRepository) DeleteQuotation(id string) error {
	return r.db.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Quotation{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete quotation: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("quotation", id)
		}
		if err := tx.Where("document_type = ? AND document_id = ?",
			models.DocumentTypeQuotation, id).Delete(&models.LineItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete line items: %w", err)
		}
		return nil
	})
}

// ================================================================
// QUOTATION -> INVOICE CONVERSION
// ================================================================

// ConvertQuotation materializes an invoice from a quotation in a single
// transaction. When setAccepted is true the quotation is flipped to accepted
// via a conditional update; if that update matches no row (concurrent status
// change) the whole transaction rolls back and no invoice exists.
func (r *QuotationRepository) ConvertQuotation(quotation *models.Quotation, invoice *models.Invoice, setAccepted bool, now time.Time) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}

	return r.db.DB.Transaction(func(tx *gorm.DB) error {
		if invoice.InvoiceNumber == "" {
			number, err := allocateInvoiceNumber(tx, r.cfg.InvoiceNumberPrefix, now)
			if err != nil {
				return err
			}
			invoice.InvoiceNumber = number
		}

		if err := tx.Create(invoice).Error; err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		items := make([]models.LineItem, 0, len(quotation.LineItems))
		for i, src := range quotation.LineItems {
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

		if setAccepted {
			result := tx.Model(&models.Quotation{}).
				Where("id = ? AND status IN ?", quotation.ID,
					[]string{models.QuotationStatusSent, models.QuotationStatusAccepted}).
				Updates(map[string]interface{}{
					"status":       models.QuotationStatusAccepted,
					"accepted_at":  now,
					"lock_version": gorm.Expr("lock_version + 1"),
					"updated_at":   now,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to accept quotation: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return models.NewConflictError("quotation %s changed state during conversion", quotation.ID)
			}
		}

		return nil
	})
}

// loadLineItems fetches the line items belonging to one document, in the
// order they appear on the form.
func loadLineItems(db *gorm.DB, documentType, documentID string) ([]models.LineItem, error) {
	var items []models.LineItem
	if err := db.
		Where("document_type = ? AND document_id = ?", documentType, documentID).
		Order("sort_order ASC, line_item_id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}
	return items, nil
}
