package handlers

import (
	"net/http"
	"time"

	"go-agency-billing/internal/models"
	"go-agency-billing/internal/repository"
	"go-agency-billing/internal/services"

	"github.com/gin-gonic/gin"
)

type RecurringInvoiceHandler struct {
	recurring *repository.RecurringInvoiceRepository
	projects  *repository.ProjectRepository
	service   *services.RecurringInvoiceService
}

func NewRecurringInvoiceHandler(recurring *repository.RecurringInvoiceRepository, projects *repository.ProjectRepository, service *services.RecurringInvoiceService) *RecurringInvoiceHandler {
	return &RecurringInvoiceHandler{
		recurring: recurring,
		projects:  projects,
		service:   service,
	}
}

// CreateRecurringInvoice handles POST /api/v1/recurring-invoices
func (h *RecurringInvoiceHandler) CreateRecurringInvoice(c *gin.Context) {
	var request models.RecurringInvoiceCreateRequest
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

	definition, err := h.recurring.CreateRecurringInvoice(&request)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, definition)
}

// ListRecurringInvoices handles GET /api/v1/recurring-invoices
func (h *RecurringInvoiceHandler) ListRecurringInvoices(c *gin.Context) {
	var filter models.RecurringInvoiceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		RespondError(c, models.NewValidationError("invalid query parameters: %v", err))
		return
	}

	definitions, totalCount, err := h.recurring.GetRecurringInvoices(&filter)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Data:       definitions,
		Pagination: newPagination(filter.Page, filter.PageSize, totalCount),
	})
}

// GetRecurringInvoice handles GET /api/v1/recurring-invoices/:id
func (h *RecurringInvoiceHandler) GetRecurringInvoice(c *gin.Context) {
	definition, err := h.recurring.GetRecurringInvoiceByID(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	if ref, err := h.projects.GetProjectRef(definition.ProjectID); err == nil {
		definition.Project = ref
	}

	c.JSON(http.StatusOK, definition)
}

// ToggleRecurringInvoice handles POST /api/v1/recurring-invoices/:id/toggle
func (h *RecurringInvoiceHandler) ToggleRecurringInvoice(c *gin.Context) {
	definition, err := h.service.ToggleActive(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, definition)
}

// DeleteRecurringInvoice handles DELETE /api/v1/recurring-invoices/:id
func (h *RecurringInvoiceHandler) DeleteRecurringInvoice(c *gin.Context) {
	if err := h.recurring.DeleteRecurringInvoice(c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RunSweep handles POST /api/v1/recurring-invoices/sweep. The sweep normally
// runs from the scheduler; the endpoint exists for catch-up after downtime
// and for operations tooling. An as_of in the past materializes exactly the
// invoices that sweep would have produced, re-running is a no-op.
func (h *RecurringInvoiceHandler) RunSweep(c *gin.Context) {
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			RespondError(c, models.NewValidationError("as_of must be YYYY-MM-DD"))
			return
		}
		asOf = parsed
	}

	report, err := h.service.RunDueRecurrences(c.Request.Context(), asOf)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
