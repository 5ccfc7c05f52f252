package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go-agency-billing/internal/models"
	"go-agency-billing/internal/repository"
	"go-agency-billing/internal/services"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoices *repository.InvoiceRepository
	projects *repository.ProjectRepository
	pdf      *services.PDFService
}

func NewInvoiceHandler(invoices *repository.InvoiceRepository, projects *repository.ProjectRepository, pdf *services.PDFService) *InvoiceHandler {
	return &InvoiceHandler{
		invoices: invoices,
		projects: projects,
		pdf:      pdf,
	}
}

// invoiceView layers the derived overdue state over the stored record.
type invoiceView struct {
	*models.Invoice
	DisplayStatus string `json:"displayStatus"`
	IsOverdue     bool   `json:"isOverdue"`
}

func newInvoiceView(inv *models.Invoice, now time.Time) invoiceView {
	return invoiceView{
		Invoice:       inv,
		DisplayStatus: inv.DisplayStatus(now),
		IsOverdue:     inv.IsOverdue(now),
	}
}

// CreateInvoice handles POST /api/v1/invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var request models.InvoiceCreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		RespondError(c, models.NewValidationError("invalid request body: %v", err))
		return
	}

	exists, err := h.projects.ProjectExists(request.ProjectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	if !exists {
		RespondError(c, models.NewValidationError("project %s does not exist", request.ProjectID))
		return
	}

	invoice, err := h.invoices.CreateInvoice(&request)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newInvoiceView(invoice, time.Now()))
}

// ListInvoices handles GET /api/v1/invoices
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	var filter models.InvoiceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		RespondError(c, models.NewValidationError("invalid query parameters: %v", err))
		return
	}

	invoices, totalCount, err := h.invoices.GetInvoices(&filter)
	if err != nil {
		RespondError(c, err)
		return
	}

	now := time.Now()
	views := make([]invoiceView, 0, len(invoices))
	for i := range invoices {
		views = append(views, newInvoiceView(&invoices[i], now))
	}

	c.JSON(http.StatusOK, ListResponse{
		Data:       views,
		Pagination: newPagination(filter.Page, filter.PageSize, totalCount),
	})
}

// GetInvoice handles GET /api/v1/invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoices.GetInvoiceByID(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	if ref, err := h.projects.GetProjectRef(invoice.ProjectID); err == nil {
		invoice.Project = ref
	}

	c.JSON(http.StatusOK, newInvoiceView(invoice, time.Now()))
}

// UpdateInvoiceStatus handles PUT /api/v1/invoices/:id/status
func (h *InvoiceHandler) UpdateInvoiceStatus(c *gin.Context) {
	var request models.InvoiceStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		RespondError(c, models.NewValidationError("invalid request body: %v", err))
		return
	}

	id := c.Param("id")
	if err := h.invoices.UpdateInvoiceStatus(id, request.Status); err != nil {
		RespondError(c, err)
		return
	}

	invoice, err := h.invoices.GetInvoiceByID(id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInvoiceView(invoice, time.Now()))
}

// PromoteOverdue handles POST /api/v1/invoices/promote-overdue. It persists
// the overdue status on every sent invoice past its due date; reporting
// always derives overdue from the due date either way.
func (h *InvoiceHandler) PromoteOverdue(c *gin.Context) {
	promoted, err := h.invoices.PromoteOverdue(time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promoted": promoted})
}

// DeleteInvoice handles DELETE /api/v1/invoices/:id
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoices.DeleteInvoice(c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetInvoicePDF handles GET /api/v1/invoices/:id/pdf
func (h *InvoiceHandler) GetInvoicePDF(c *gin.Context) {
	invoice, err := h.invoices.GetInvoiceByID(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	if ref, err := h.projects.GetProjectRef(invoice.ProjectID); err == nil {
		invoice.Project = ref
	}

	company, err := h.invoices.GetCompanySettings()
	if err != nil {
		RespondError(c, err)
		return
	}

	pdfBytes, err := h.pdf.GenerateInvoicePDF(invoice, company)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf("inline; filename=\"Invoice_%s.pdf\"", invoice.InvoiceNumber))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
