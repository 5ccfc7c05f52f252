package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quotation statuses. "expired" is a derived display state, never stored.
const (
	QuotationStatusDraft    = "draft"
	QuotationStatusSent     = "sent"
	QuotationStatusAccepted = "accepted"
	QuotationStatusRejected = "rejected"
	QuotationStatusExpired  = "expired"
)

// Invoice statuses. "overdue" is derived for display; a stored value may
// exist when the promotion job has run, the predicate stays authoritative.
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusSent      = "sent"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// Recurring interval types.
const (
	IntervalMonthly   = "monthly"
	IntervalQuarterly = "quarterly"
	IntervalYearly    = "yearly"
)

// Document types owning line items.
const (
	DocumentTypeQuotation = "quotation"
	DocumentTypeInvoice   = "invoice"
	DocumentTypeRecurring = "recurring_invoice"
)

var validTaxRates = map[int]bool{0: true, 7: true, 19: true}

// LineItem is a single billable position inside a quotation, invoice or
// recurring definition.
type LineItem struct {
	LineItemID   uint64          `gorm:"primaryKey;autoIncrement;column:line_item_id" json:"lineItemId"`
	DocumentType string          `gorm:"type:enum('quotation','invoice','recurring_invoice');not null;column:document_type" json:"documentType"`
	DocumentID   string          `gorm:"type:char(36);not null;index:idx_line_items_document;column:document_id" json:"documentId"`
	Name         string          `gorm:"not null;column:name" json:"name" binding:"required"`
	Description  *string         `gorm:"type:text;column:description" json:"description"`
	Quantity     decimal.Decimal `gorm:"type:decimal(10,2);not null;column:quantity" json:"quantity"`
	UnitName     string          `gorm:"not null;default:'Stk.';column:unit_name" json:"unitName"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null;column:unit_price" json:"unitPrice"`
	TaxRate      int             `gorm:"not null;default:19;column:tax_rate" json:"taxRate"`
	SortOrder    uint            `gorm:"not null;default:0;column:sort_order" json:"sortOrder"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (LineItem) TableName() string {
	return "line_items"
}

// Validate checks the line item against the billing rules.
func (li *LineItem) Validate() error {
	if strings.TrimSpace(li.Name) == "" {
		return NewValidationError("line item name is required")
	}
	if li.Quantity.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("quantity must be greater than 0")
	}
	if li.UnitPrice.IsNegative() {
		return NewValidationError("unit price cannot be negative")
	}
	if !validTaxRates[li.TaxRate] {
		return NewValidationError("tax rate must be one of 0, 7 or 19")
	}
	return nil
}

// LineNet returns quantity * unit price, rounded half-to-even to 2 places.
func (li *LineItem) LineNet() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice).RoundBank(2)
}

// LineTax returns the tax portion of the rounded net amount.
func (li *LineItem) LineTax() decimal.Decimal {
	return li.LineNet().
		Mul(decimal.NewFromInt(int64(li.TaxRate))).
		Div(decimal.NewFromInt(100)).
		RoundBank(2)
}

// LineTotal returns net plus tax.
func (li *LineItem) LineTotal() decimal.Decimal {
	return li.LineNet().Add(li.LineTax())
}

// Totals is the aggregate of a document's line items.
type Totals struct {
	Net   decimal.Decimal `json:"net"`
	Tax   decimal.Decimal `json:"tax"`
	Total decimal.Decimal `json:"total"`
}

// ComputeTotals sums net, tax and total over the given line items. Rounding
// is applied once per item and once on the aggregate, never compounded
// across recomputation. Pure: no item is mutated.
func ComputeTotals(items []LineItem) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, NewValidationError("at least one line item is required")
	}

	net, tax, total := decimal.Zero, decimal.Zero, decimal.Zero
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return Totals{}, NewValidationError("line item %d: %v", i+1, err)
		}
		net = net.Add(items[i].LineNet())
		tax = tax.Add(items[i].LineTax())
		total = total.Add(items[i].LineTotal())
	}

	return Totals{
		Net:   net.RoundBank(2),
		Tax:   tax.RoundBank(2),
		Total: total.RoundBank(2),
	}, nil
}

// Quotation is a pre-invoice commercial offer with its own approval
// lifecycle. Amounts are snapshots taken at creation time.
type Quotation struct {
	ID                   string          `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	QuotationNumber      string          `gorm:"uniqueIndex;not null;column:quotation_number" json:"quotationNumber"`
	Title                string          `gorm:"not null;column:title" json:"title"`
	Description          *string         `gorm:"type:text;column:description" json:"description"`
	ProjectID            string          `gorm:"type:char(36);not null;index;column:project_id" json:"projectId"`
	NetAmount            decimal.Decimal `gorm:"type:decimal(12,2);not null;column:net_amount" json:"netAmount"`
	TaxAmount            decimal.Decimal `gorm:"type:decimal(12,2);not null;column:tax_amount" json:"taxAmount"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(12,2);not null;column:total_amount" json:"totalAmount"`
	Currency             string          `gorm:"not null;default:'EUR';column:currency" json:"currency"`
	Status               string          `gorm:"type:enum('draft','sent','accepted','rejected');not null;default:'draft';column:status" json:"status"`
	ValidUntil           *time.Time      `gorm:"type:date;column:valid_until" json:"validUntil"`
	SentAt               *time.Time      `gorm:"column:sent_at" json:"sentAt"`
	AcceptedAt           *time.Time      `gorm:"column:accepted_at" json:"acceptedAt"`
	RejectedAt           *time.Time      `gorm:"column:rejected_at" json:"rejectedAt"`
	ExternalAccountingID *string         `gorm:"column:external_accounting_id" json:"externalAccountingId"`
	SyncedAt             *time.Time      `gorm:"column:synced_at" json:"syncedAt"`
	LockVersion          int             `gorm:"not null;default:0;column:lock_version" json:"-"`
	CreatedBy            *string         `gorm:"type:char(36);column:created_by" json:"createdBy"`
	CreatedAt            time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt            time.Time       `gorm:"column:updated_at" json:"updatedAt"`

	// Loaded by the repository, not by gorm relations
	LineItems []LineItem  `gorm:"-" json:"lineItems,omitempty"`
	Project   *ProjectRef `gorm:"-" json:"project,omitempty"`
}

func (Quotation) TableName() string {
	return "quotations"
}

func (q *Quotation) BeforeCreate(tx *gorm.DB) error {
	newDocumentID(&q.ID)
	return nil
}

// IsExpired reports whether the quotation should display as expired: sent
// and past its valid-until date. This is read-time only, never a stored
// transition.
func (q *Quotation) IsExpired(now time.Time) bool {
	return q.Status == QuotationStatusSent &&
		q.ValidUntil != nil &&
		q.ValidUntil.Before(now)
}

// DisplayStatus returns the status for list views, substituting the derived
// expired state where it applies.
func (q *Quotation) DisplayStatus(now time.Time) string {
	if q.IsExpired(now) {
		return QuotationStatusExpired
	}
	return q.Status
}

// IsConvertible reports whether the quotation may be materialized into an
// invoice. Only sent or accepted quotations qualify.
func (q *Quotation) IsConvertible() bool {
	return q.Status == QuotationStatusSent || q.Status == QuotationStatusAccepted
}

// Invoice is a billing document. It may originate from manual creation,
// quotation conversion or a recurring definition; the status rules are the
// same regardless of source.
type Invoice struct {
	ID                 string          `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	InvoiceNumber      string          `gorm:"uniqueIndex;not null;column:invoice_number" json:"invoiceNumber"`
	Title              string          `gorm:"not null;column:title" json:"title"`
	Description        *string         `gorm:"type:text;column:description" json:"description"`
	ProjectID          string          `gorm:"type:char(36);not null;index;column:project_id" json:"projectId"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null;column:amount" json:"amount"`
	TaxAmount          decimal.Decimal `gorm:"type:decimal(12,2);not null;column:tax_amount" json:"taxAmount"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null;column:total_amount" json:"totalAmount"`
	Currency           string          `gorm:"not null;default:'EUR';column:currency" json:"currency"`
	Status             string          `gorm:"type:enum('draft','sent','paid','overdue','cancelled');not null;default:'draft';column:status" json:"status"`
	IssueDate          time.Time       `gorm:"type:date;not null;column:issue_date" json:"issueDate"`
	DueDate            *time.Time      `gorm:"type:date;column:due_date" json:"dueDate"`
	QuotationID        *string         `gorm:"type:char(36);column:quotation_id" json:"quotationId"`
	RecurringInvoiceID *string         `gorm:"type:char(36);index;column:recurring_invoice_id" json:"recurringInvoiceId"`
	SentAt             *time.Time      `gorm:"column:sent_at" json:"sentAt"`
	PaidAt             *time.Time      `gorm:"column:paid_at" json:"paidAt"`
	CreatedBy          *string         `gorm:"type:char(36);column:created_by" json:"createdBy"`
	CreatedAt          time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt          time.Time       `gorm:"column:updated_at" json:"updatedAt"`

	LineItems []LineItem  `gorm:"-" json:"lineItems,omitempty"`
	Project   *ProjectRef `gorm:"-" json:"project,omitempty"`
}

func (Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	newDocumentID(&i.ID)
	return nil
}

// IsOverdue is the single source of truth for the overdue state wherever it
// is displayed or filtered: a due date in the past on an invoice that is
// neither paid nor cancelled.
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.DueDate != nil &&
		i.DueDate.Before(now) &&
		i.Status != InvoiceStatusPaid &&
		i.Status != InvoiceStatusCancelled
}

// DisplayStatus layers the derived overdue state over the stored status.
func (i *Invoice) DisplayStatus(now time.Time) string {
	if i.IsOverdue(now) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// RecurringInvoice is a template plus a schedule that periodically
// materializes concrete invoices.
type RecurringInvoice struct {
	ID                string          `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	Title             string          `gorm:"not null;column:title" json:"title"`
	Description       *string         `gorm:"type:text;column:description" json:"description"`
	ProjectID         string          `gorm:"type:char(36);not null;index;column:project_id" json:"projectId"`
	NetAmount         decimal.Decimal `gorm:"type:decimal(12,2);not null;column:net_amount" json:"netAmount"`
	TaxRate           int             `gorm:"not null;default:19;column:tax_rate" json:"taxRate"`
	Currency          string          `gorm:"not null;default:'EUR';column:currency" json:"currency"`
	IntervalType      string          `gorm:"type:enum('monthly','quarterly','yearly');not null;column:interval_type" json:"intervalType"`
	IntervalValue     int             `gorm:"not null;default:1;column:interval_value" json:"intervalValue"`
	StartDate         time.Time       `gorm:"type:date;not null;column:start_date" json:"startDate"`
	EndDate           *time.Time      `gorm:"type:date;column:end_date" json:"endDate"`
	NextInvoiceDate   time.Time       `gorm:"type:date;not null;index;column:next_invoice_date" json:"nextInvoiceDate"`
	IsActive          bool            `gorm:"not null;default:true;column:is_active" json:"isActive"`
	InvoicesGenerated int             `gorm:"not null;default:0;column:invoices_generated" json:"invoicesGenerated"`
	AutoSend          bool            `gorm:"not null;default:false;column:auto_send" json:"autoSend"`
	SendNotification  bool            `gorm:"not null;default:false;column:send_notification" json:"sendNotification"`
	CreatedBy         *string         `gorm:"type:char(36);column:created_by" json:"createdBy"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updatedAt"`

	LineItems []LineItem  `gorm:"-" json:"lineItems,omitempty"`
	Project   *ProjectRef `gorm:"-" json:"project,omitempty"`
}

func (RecurringInvoice) TableName() string {
	return "recurring_invoices"
}

func (r *RecurringInvoice) BeforeCreate(tx *gorm.DB) error {
	newDocumentID(&r.ID)
	return nil
}

// IsDue reports whether the definition matches the sweep filter for the
// given date: active, due, and not past its end date.
func (r *RecurringInvoice) IsDue(asOf time.Time) bool {
	if !r.IsActive || r.NextInvoiceDate.After(asOf) {
		return false
	}
	if r.EndDate != nil && r.NextInvoiceDate.After(*r.EndDate) {
		return false
	}
	return true
}
