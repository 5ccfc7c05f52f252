package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go-agency-billing/internal/models"
	"go-agency-billing/internal/repository"
	"go-agency-billing/internal/services"

	"github.com/gin-gonic/gin"
)

// CompanySource resolves the issuing company's settings for PDF rendering.
type CompanySource interface {
	GetCompanySettings() (*models.CompanySettings, error)
}

type QuotationHandler struct {
	quotations *repository.QuotationRepository
	projects   *repository.ProjectRepository
	service    *services.QuotationService
	pdf        *services.PDFService
	company    CompanySource
}

func NewQuotationHandler(quotations *repository.QuotationRepository, projects *repository.ProjectRepository, service *services.QuotationService, pdf *services.PDFService, company CompanySource) *QuotationHandler {
	return &QuotationHandler{
		quotations: quotations,
		projects:   projects,
		service:    service,
		pdf:        pdf,
		company:    company,
	}
}

// quotationView layers the derived display status over the stored record.
type quotationView struct {
	*models.Quotation
	DisplayStatus string `json:"displayStatus"`
}

func newQuotationView(q *models.Quotation, now time.Time) quotationView {
	return quotationView{Quotation: q, DisplayStatus: q.DisplayStatus(now)}
}

// CreateQuotation handles POST /api/v1/quotations
func (h *QuotationHandler) CreateQuotation(c *gin.Context) {
	var request models.QuotationCreateRequest
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

	quotation, err := h.quotations.CreateQuotation(&request)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newQuotationView(quotation, time.Now()))
}

// ListQuotations handles GET /api/v1/quotations
func (h *QuotationHandler) ListQuotations(c *gin.Context) {
	var filter models.QuotationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		RespondError(c, models.NewValidationError("invalid query parameters: %v", err))
		return
	}

	quotations, totalCount, err := h.quotations.GetQuotations(&filter)
	if err != nil {
		RespondError(c, err)
		return
	}

	now := time.Now()
	views := make([]quotationView, 0, len(quotations))
	for i := range quotations {
		views = append(views, newQuotationView(&quotations[i], now))
	}

	c.JSON(http.StatusOK, ListResponse{
		Data:       views,
		Pagination: newPagination(filter.Page, filter.PageSize, totalCount),
	})
}

// GetQuotation handles GET /api/v1/quotations/:id
func (h *QuotationHandler) GetQuotation(c *gin.Context) {
	quotation, err := h.quotations.GetQuotationByID(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	if ref, err := h.projects.GetProjectRef(quotation.ProjectID); err == nil {
		quotation.Project = ref
	}

	c.JSON(http.StatusOK, newQuotationView(quotation, time.Now()))
}

// UpdateQuotationStatus handles PUT /api/v1/quotations/:id/status
func (h *QuotationHandler) UpdateQuotationStatus(c *gin.Context) {
	var request models.QuotationStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		RespondError(c, models.NewValidationError("invalid request body: %v", err))
		return
	}

	result, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), request.Status)
	if err != nil {
		RespondError(c, err)
		return
	}

	response := gin.H{"quotation": newQuotationView(result.Quotation, time.Now())}
	if result.SyncWarning != "" {
		response["warning"] = result.SyncWarning
	}
	c.JSON(http.StatusOK, response)
}

// ConvertQuotation handles POST /api/v1/quotations/:id/convert
func (h *QuotationHandler) ConvertQuotation(c *gin.Context) {
	var request models.QuotationConvertRequest
	if err := c.ShouldBindJSON(&request); err != nil && err != io.EOF {
		RespondError(c, models.NewValidationError("invalid request body: %v", err))
		return
	}

	invoice, err := h.service.Convert(c.Request.Context(), c.Param("id"), &request)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invoice)
}

// DeleteQuotation handles DELETE /api/v1/quotations/:id
func (h *QuotationHandler) DeleteQuotation(c *gin.Context) {
	if err := h.quotations.DeleteQuotation(c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetQuotationPDF handles GET /api/v1/quotations/:id/pdf
func (h *QuotationHandler) GetQuotationPDF(c *gin.Context) {
	quotation, err := h.quotations.GetQuotationByID(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	if ref, err := h.projects.GetProjectRef(quotation.ProjectID); err == nil {
		quotation.Project = ref
	}

	company, err := h.company.GetCompanySettings()
	if err != nil {
		RespondError(c, err)
		return
	}

	pdfBytes, err := h.pdf.GenerateQuotationPDF(quotation, company)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf("inline; filename=\"Quotation_%s.pdf\"", quotation.QuotationNumber))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
