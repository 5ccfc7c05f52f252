package repository

import (
	"errors"
	"fmt"
	"time"

	"go-agency-billing/internal/config"
	"go-agency-billing/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceRepository struct {
	db  *Database
	cfg *config.BillingConfig
}

func NewInvoiceRepository(db *Database, cfg *config.BillingConfig) *InvoiceRepository {
	return &InvoiceRepository{db: db, cfg: cfg}
}

// GetDB returns the database instance for direct queries
func (r *InvoiceRepository) GetDB() *gorm.DB {
	return r.db.DB
}

// ================================================================
// CORE INVOICE OPERATIONS
// ================================================================

// CreateInvoice creates a new invoice with its line items. The amount fields
// are snapshots of the line items at creation time. When the request carries
// no invoice number, the next RE-<year>-<seq> is allocated inside the same
// transaction as the insert.
func (r *InvoiceRepository) CreateInvoice(request *models.InvoiceCreateRequest) (*models.Invoice, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	invoiceID := uuid.New().String()
	items := request.ToLineItems(invoiceID)
	totals, err := models.ComputeTotals(items)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	issueDate := now
	if request.IssueDate != nil {
		issueDate = *request.IssueDate
	}
	currency := request.Currency
	if currency == "" {
		currency = r.cfg.CurrencyCode
	}

	invoice := &models.Invoice{
		ID:            invoiceID,
		InvoiceNumber: request.InvoiceNumber,
		Title:         request.Title,
		Description:   request.Description,
		ProjectID:     request.ProjectID,
		Amount:        totals.Net,
		TaxAmount:     totals.Tax,
		TotalAmount:   totals.Total,
		Currency:      currency,
		Status:        models.InvoiceStatusDraft,
		IssueDate:     issueDate,
		DueDate:       request.DueDate,
		CreatedBy:     request.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = r.db.DB.Transaction(func(tx *gorm.DB) error {
		if invoice.InvoiceNumber == "" {
			number, err := allocateInvoiceNumber(tx, r.cfg.InvoiceNumberPrefix, issueDate)
			if err != nil {
				return err
			}
			invoice.InvoiceNumber = number
		}
		if err := tx.Create(invoice).Error; err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
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

	invoice.LineItems = items
	return invoice, nil
}

// GetInvoiceByID retrieves an invoice with its line items.
func (r *InvoiceRepository) GetInvoiceByID(id string) (*models.Invoice, error) {
	var invoice models.Invoice

	if err := r.db.DB.First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("invoice", id)
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	items, err := loadLineItems(r.db.DB, models.DocumentTypeInvoice, id)
	if err != nil {
		return nil, err
	}
	invoice.LineItems = items

	return &invoice, nil
}

// GetInvoices returns a paginated list of invoices with filters. The
// overdue_only filter uses the same predicate as Invoice.IsOverdue.
func (r *InvoiceRepository) GetInvoices(filter *models.InvoiceFilter) ([]models.Invoice, int64, error) {
	var invoices []models.Invoice
	var totalCount int64

	query := r.db.DB.Model(&models.Invoice{})

	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.ProjectID != "" {
			query = query.Where("project_id = ?", filter.ProjectID)
		}
		if filter.StartDate != nil {
			query = query.Where("issue_date >= ?", *filter.StartDate)
		}
		if filter.EndDate != nil {
			query = query.Where("issue_date <= ?", *filter.EndDate)
		}
		if filter.OverdueOnly {
			query = query.Where("due_date IS NOT NULL AND due_date < ? AND status NOT IN ('paid', 'cancelled')", time.Now())
		}
		if filter.SearchTerm != "" {
			searchTerm := "%" + filter.SearchTerm + "%"
			query = query.Where("invoice_number LIKE ? OR title LIKE ?", searchTerm, searchTerm)
		}
	}

	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	if filter != nil && filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("issue_date DESC, created_at DESC").Find(&invoices).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get invoices: %w", err)
	}

	return invoices, totalCount, nil
}

// UpdateInvoiceStatus updates the stored status of an invoice, stamping
// sent_at/paid_at when entering those states.
func (r *InvoiceRepository) UpdateInvoiceStatus(id string, status string) error {
	validStatuses := map[string]bool{
		models.InvoiceStatusDraft:     true,
		models.InvoiceStatusSent:      true,
		models.InvoiceStatusPaid:      true,
		models.InvoiceStatusOverdue:   true,
		models.InvoiceStatusCancelled: true,
	}
	if !validStatuses[status] {
		return models.NewValidationError("invalid invoice status: %s", status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	switch status {
	case models.InvoiceStatusSent:
		updates["sent_at"] = &now
	case models.InvoiceStatusPaid:
		updates["paid_at"] = &now
	}

	result := r.db.DB.Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update invoice status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("invoice", id)
	}
	return nil
}

// PromoteOverdue promotes sent invoices past their due date to the stored
// overdue status. It routes every candidate through Invoice.IsOverdue so the
// stored value can never disagree with the display predicate, and it never
// touches paid or cancelled invoices.
func (r *InvoiceRepository) PromoteOverdue(now time.Time) (int, error) {
	var candidates []models.Invoice
	if err := r.db.DB.
		Where("due_date IS NOT NULL AND due_date < ? AND status = ?", now, models.InvoiceStatusSent).
		Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("failed to load overdue candidates: %w", err)
	}

	promoted := 0
	for i := range candidates {
		if !candidates[i].IsOverdue(now) {
			continue
		}
		result := r.db.DB.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", candidates[i].ID, models.InvoiceStatusSent).
			Updates(map[string]interface{}{
				"status":     models.InvoiceStatusOverdue,
				"updated_at": now,
			})
		if result.Error != nil {
			return promoted, fmt.Errorf("failed to promote invoice %s: %w", candidates[i].ID, result.Error)
		}
		promoted += int(result.RowsAffected)
	}

	return promoted, nil
}

// DeleteInvoice soft deletes an invoice by setting its status to cancelled.
func (r *InvoiceRepository) DeleteInvoice(id string) error {
	result := r.db.DB.Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.InvoiceStatusCancelled,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to cancel invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("invoice", id)
	}
	return nil
}

// ================================================================
// INVOICE NUMBER GENERATION
// ================================================================

// allocateInvoiceNumber allocates the next RE-<year>-<seq> number for the
// issue year, scanning the current maximum inside the caller's transaction.
func allocateInvoiceNumber(tx *gorm.DB, prefix string, issueDate time.Time) (string, error) {
	if prefix == "" {
		prefix = "RE"
	}
	year := issueDate.Year()
	numberPrefix := fmt.Sprintf("%s-%d-", prefix, year)

	var maxNumber int
	err := tx.Raw(`
		SELECT COALESCE(MAX(
			CAST(SUBSTRING(invoice_number FROM ? FOR 10) AS UNSIGNED)
		), 0) as max_num
		FROM invoices
		WHERE invoice_number LIKE ?
	`, len(numberPrefix)+1, numberPrefix+"%").Scan(&maxNumber).Error
	if err != nil {
		return "", fmt.Errorf("failed to scan invoice numbers: %w", err)
	}

	nextNumber := maxNumber + 1
	invoiceNumber := fmt.Sprintf("%s%04d", numberPrefix, nextNumber)

	// Guard against concurrent allocation in the same year
	for attempt := 0; attempt < 10; attempt++ {
		var count int64
		if err := tx.Model(&models.Invoice{}).Where("invoice_number = ?", invoiceNumber).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check invoice number uniqueness: %w", err)
		}
		if count == 0 {
			return invoiceNumber, nil
		}
		nextNumber++
		invoiceNumber = fmt.Sprintf("%s%04d", numberPrefix, nextNumber)
	}

	return "", fmt.Errorf("failed to allocate unique invoice number after 10 attempts")
}

// ================================================================
// STATISTICS
// ================================================================

// GetFinancialStats returns the aggregate figures for the dashboard.
func (r *InvoiceRepository) GetFinancialStats() (*models.FinancialStats, error) {
	stats := &models.FinancialStats{
		TotalRevenue:      decimal.Zero,
		OutstandingAmount: decimal.Zero,
	}
	now := time.Now()

	r.db.DB.Model(&models.Invoice{}).
		Where("status != ?", models.InvoiceStatusCancelled).
		Count(&stats.TotalInvoices)

	var revenue decimal.NullDecimal
	r.db.DB.Model(&models.Invoice{}).
		Where("status = ?", models.InvoiceStatusPaid).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&revenue)
	if revenue.Valid {
		stats.TotalRevenue = revenue.Decimal
	}

	var outstanding decimal.NullDecimal
	r.db.DB.Model(&models.Invoice{}).
		Where("status NOT IN ('paid', 'cancelled')").
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&outstanding)
	if outstanding.Valid {
		stats.OutstandingAmount = outstanding.Decimal
	}

	r.db.DB.Model(&models.Invoice{}).
		Where("due_date IS NOT NULL AND due_date < ? AND status NOT IN ('paid', 'cancelled')", now).
		Count(&stats.OverdueCount)

	r.db.DB.Model(&models.Invoice{}).
		Where("status = ?", models.InvoiceStatusDraft).
		Count(&stats.DraftCount)

	r.db.DB.Model(&models.Quotation{}).
		Where("status IN ('draft', 'sent')").
		Count(&stats.OpenQuotations)

	r.db.DB.Model(&models.RecurringInvoice{}).
		Where("is_active = ?", true).
		Count(&stats.ActiveRecurring)

	return stats, nil
}

// ================================================================
// COMPANY SETTINGS
// ================================================================

// GetCompanySettings returns the issuing company details for documents.
func (r *InvoiceRepository) GetCompanySettings() (*models.CompanySettings, error) {
	var settings models.CompanySettings

	if err := r.db.DB.First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			defaultSettings := &models.CompanySettings{
				CompanyName: "AgencyDesk",
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			}
			if err := r.db.DB.Create(defaultSettings).Error; err != nil {
				return nil, fmt.Errorf("failed to create default company settings: %w", err)
			}
			return defaultSettings, nil
		}
		return nil, fmt.Errorf("failed to get company settings: %w", err)
	}

	return &settings, nil
}
