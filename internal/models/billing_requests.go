package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ================================================================
// DTOs and Request/Response Models
// ================================================================

// LineItemRequest represents a line item in create requests.
type LineItemRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description *string         `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitName    string          `json:"unitName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TaxRate     int             `json:"taxRate"`
}

// ToLineItem converts the request into a line item owned by the given
// document, filling defaults the same way the form UI does.
func (lir *LineItemRequest) ToLineItem(documentType, documentID string, sortOrder uint) LineItem {
	unitName := lir.UnitName
	if unitName == "" {
		unitName = "Stk."
	}
	return LineItem{
		DocumentType: documentType,
		DocumentID:   documentID,
		Name:         lir.Name,
		Description:  lir.Description,
		Quantity:     lir.Quantity,
		UnitName:     unitName,
		UnitPrice:    lir.UnitPrice,
		TaxRate:      lir.TaxRate,
		SortOrder:    sortOrder,
	}
}

func buildLineItems(requests []LineItemRequest, documentType, documentID string) []LineItem {
	items := make([]LineItem, 0, len(requests))
	for i, req := range requests {
		items = append(items, req.ToLineItem(documentType, documentID, uint(i)))
	}
	return items
}

// QuotationCreateRequest represents the request to create a quotation.
// Quotations may be created in draft or directly in sent state when they are
// dispatched immediately.
type QuotationCreateRequest struct {
	QuotationNumber string            `json:"quotationNumber" binding:"required"`
	Title           string            `json:"title" binding:"required"`
	Description     *string           `json:"description"`
	ProjectID       string            `json:"projectId" binding:"required"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`
	ValidUntil      *time.Time        `json:"validUntil"`
	CreatedBy       *string           `json:"createdBy"`
	LineItems       []LineItemRequest `json:"lineItems" binding:"required,min=1,dive"`
}

// Validate validates the quotation create request.
func (qcr *QuotationCreateRequest) Validate() error {
	if strings.TrimSpace(qcr.QuotationNumber) == "" {
		return NewValidationError("quotation number is required")
	}
	if strings.TrimSpace(qcr.Title) == "" {
		return NewValidationError("title is required")
	}
	if strings.TrimSpace(qcr.ProjectID) == "" {
		return NewValidationError("project ID is required")
	}
	if qcr.Status != "" && qcr.Status != QuotationStatusDraft && qcr.Status != QuotationStatusSent {
		return NewValidationError("quotations can only be created as draft or sent")
	}
	if len(qcr.LineItems) == 0 {
		return NewValidationError("at least one line item is required")
	}
	return nil
}

// ToLineItems expands the request items for the given quotation id.
func (qcr *QuotationCreateRequest) ToLineItems(quotationID string) []LineItem {
	return buildLineItems(qcr.LineItems, DocumentTypeQuotation, quotationID)
}

// QuotationStatusRequest updates a quotation's lifecycle state.
type QuotationStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft sent accepted rejected"`
}

// QuotationConvertRequest controls the quotation -> invoice conversion.
type QuotationConvertRequest struct {
	SetAccepted bool    `json:"setAccepted"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedBy   *string `json:"createdBy"`
}

// InvoiceCreateRequest represents the request to create an invoice manually.
// When InvoiceNumber is empty the repository allocates the next RE-<year>-<seq>.
type InvoiceCreateRequest struct {
	InvoiceNumber string            `json:"invoiceNumber"`
	Title         string            `json:"title" binding:"required"`
	Description   *string           `json:"description"`
	ProjectID     string            `json:"projectId" binding:"required"`
	Currency      string            `json:"currency"`
	IssueDate     *time.Time        `json:"issueDate"`
	DueDate       *time.Time        `json:"dueDate"`
	CreatedBy     *string           `json:"createdBy"`
	LineItems     []LineItemRequest `json:"lineItems" binding:"required,min=1,dive"`
}

// Validate validates the invoice create request.
func (icr *InvoiceCreateRequest) Validate() error {
	if strings.TrimSpace(icr.Title) == "" {
		return NewValidationError("title is required")
	}
	if strings.TrimSpace(icr.ProjectID) == "" {
		return NewValidationError("project ID is required")
	}
	if icr.IssueDate != nil && icr.DueDate != nil && icr.DueDate.Before(*icr.IssueDate) {
		return NewValidationError("due date cannot be before issue date")
	}
	if len(icr.LineItems) == 0 {
		return NewValidationError("at least one line item is required")
	}
	return nil
}

// ToLineItems expands the request items for the given invoice id.
func (icr *InvoiceCreateRequest) ToLineItems(invoiceID string) []LineItem {
	return buildLineItems(icr.LineItems, DocumentTypeInvoice, invoiceID)
}

// InvoiceStatusRequest updates an invoice's stored status.
type InvoiceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft sent paid overdue cancelled"`
}

// RecurringInvoiceCreateRequest represents the request to create a recurring
// invoice definition.
type RecurringInvoiceCreateRequest struct {
	Title            string            `json:"title" binding:"required"`
	Description      *string           `json:"description"`
	ProjectID        string            `json:"projectId" binding:"required"`
	Currency         string            `json:"currency"`
	IntervalType     string            `json:"intervalType" binding:"required,oneof=monthly quarterly yearly"`
	IntervalValue    int               `json:"intervalValue"`
	StartDate        time.Time         `json:"startDate" binding:"required"`
	EndDate          *time.Time        `json:"endDate"`
	AutoSend         bool              `json:"autoSend"`
	SendNotification bool              `json:"sendNotification"`
	CreatedBy        *string           `json:"createdBy"`
	LineItems        []LineItemRequest `json:"lineItems" binding:"required,min=1,dive"`
}

// Validate validates the recurring invoice create request.
func (rcr *RecurringInvoiceCreateRequest) Validate() error {
	if strings.TrimSpace(rcr.Title) == "" {
		return NewValidationError("title is required")
	}
	if strings.TrimSpace(rcr.ProjectID) == "" {
		return NewValidationError("project ID is required")
	}
	switch rcr.IntervalType {
	case IntervalMonthly, IntervalQuarterly, IntervalYearly:
	default:
		return NewValidationError("interval type must be monthly, quarterly or yearly")
	}
	if rcr.IntervalValue < 1 {
		return NewValidationError("interval value must be at least 1")
	}
	if rcr.StartDate.IsZero() {
		return NewValidationError("start date is required")
	}
	if rcr.EndDate != nil && rcr.EndDate.Before(rcr.StartDate) {
		return NewValidationError("end date cannot be before start date")
	}
	if len(rcr.LineItems) == 0 {
		return NewValidationError("at least one line item is required")
	}
	return nil
}

// ToLineItems expands the request items for the given definition id.
func (rcr *RecurringInvoiceCreateRequest) ToLineItems(recurringID string) []LineItem {
	return buildLineItems(rcr.LineItems, DocumentTypeRecurring, recurringID)
}

// QuotationFilter represents filters for listing quotations.
type QuotationFilter struct {
	Status     string `form:"status" json:"status"`
	ProjectID  string `form:"project_id" json:"projectId"`
	SearchTerm string `form:"search" json:"searchTerm"`
	Page       int    `form:"page" json:"page"`
	PageSize   int    `form:"page_size" json:"pageSize"`
}

// InvoiceFilter represents filters for listing invoices.
type InvoiceFilter struct {
	Status      string     `form:"status" json:"status"`
	ProjectID   string     `form:"project_id" json:"projectId"`
	StartDate   *time.Time `form:"start_date" json:"startDate"`
	EndDate     *time.Time `form:"end_date" json:"endDate"`
	OverdueOnly bool       `form:"overdue_only" json:"overdueOnly"`
	SearchTerm  string     `form:"search" json:"searchTerm"`
	Page        int        `form:"page" json:"page"`
	PageSize    int        `form:"page_size" json:"pageSize"`
}

// RecurringInvoiceFilter represents filters for listing recurring definitions.
type RecurringInvoiceFilter struct {
	ProjectID  string `form:"project_id" json:"projectId"`
	ActiveOnly bool   `form:"active_only" json:"activeOnly"`
	Page       int    `form:"page" json:"page"`
	PageSize   int    `form:"page_size" json:"pageSize"`
}

// GeneratedInvoiceRecord describes one invoice materialized by the sweep.
type GeneratedInvoiceRecord struct {
	RecurringInvoiceID string    `json:"recurringInvoiceId"`
	InvoiceID          string    `json:"invoiceId"`
	InvoiceNumber      string    `json:"invoiceNumber"`
	DueDate            time.Time `json:"dueDate"`
	NextInvoiceDate    time.Time `json:"nextInvoiceDate"`
}

// SweepFailure describes one definition the sweep could not process.
// Failures never abort the sweep for sibling definitions.
type SweepFailure struct {
	RecurringInvoiceID string `json:"recurringInvoiceId"`
	Error              string `json:"error"`
}

// GenerationReport is the aggregate outcome of one due-recurrence sweep.
type GenerationReport struct {
	AsOf      time.Time                `json:"asOf"`
	Processed int                      `json:"processed"`
	Skipped   int                      `json:"skipped"`
	Generated []GeneratedInvoiceRecord `json:"generated"`
	Failures  []SweepFailure           `json:"failures"`
}

// FinancialStats backs the dashboard's financial overview.
type FinancialStats struct {
	TotalInvoices     int64           `json:"totalInvoices"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	OutstandingAmount decimal.Decimal `json:"outstandingAmount"`
	OverdueCount      int64           `json:"overdueCount"`
	DraftCount        int64           `json:"draftCount"`
	OpenQuotations    int64           `json:"openQuotations"`
	ActiveRecurring   int64           `json:"activeRecurring"`
}
