package handlers

import (
	"net/http"

	"go-agency-billing/internal/repository"

	"github.com/gin-gonic/gin"
)

type FinancialHandler struct {
	invoices *repository.InvoiceRepository
}

func NewFinancialHandler(invoices *repository.InvoiceRepository) *FinancialHandler {
	return &FinancialHandler{invoices: invoices}
}

// GetFinancialStats handles GET /api/v1/financial/stats
func (h *FinancialHandler) GetFinancialStats(c *gin.Context) {
	stats, err := h.invoices.GetFinancialStats()
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
