package handlers

import (
	"net/http"
	"time"

	"go-agency-billing/internal/logger"
	"go-agency-billing/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Quotations *QuotationHandler
	Invoices   *InvoiceHandler
	Recurring  *RecurringInvoiceHandler
	Financial  *FinancialHandler
	Monitor    *middleware.PerformanceMonitor
}

// NewRouter builds the gin engine with all API routes and middleware.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(RecoveryHandler())
	if logger.GlobalLogger != nil {
		router.Use(logger.GlobalLogger.LoggingMiddleware())
	}
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RequestSizeLimitMiddleware(1 << 20))
	if deps.Monitor != nil {
		router.Use(deps.Monitor.Middleware())
	}

	router.GET("/health", func(c *gin.Context) {
		if deps.Monitor != nil {
			c.JSON(http.StatusOK, deps.Monitor.Health())
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	api := router.Group("/api/v1")
	{
		quotations := api.Group("/quotations")
		{
			quotations.POST("", deps.Quotations.CreateQuotation)
			quotations.GET("", deps.Quotations.ListQuotations)
			quotations.GET("/:id", deps.Quotations.GetQuotation)
			quotations.PUT("/:id/status", deps.Quotations.UpdateQuotationStatus)
			quotations.POST("/:id/convert", deps.Quotations.ConvertQuotation)
			quotations.GET("/:id/pdf", deps.Quotations.GetQuotationPDF)
			quotations.DELETE("/:id", deps.Quotations.DeleteQuotation)
		}

		invoices := api.Group("/invoices")
		{
			invoices.POST("", deps.Invoices.CreateInvoice)
			invoices.GET("", deps.Invoices.ListInvoices)
			invoices.GET("/:id", deps.Invoices.GetInvoice)
			invoices.PUT("/:id/status", deps.Invoices.UpdateInvoiceStatus)
			invoices.POST("/promote-overdue", deps.Invoices.PromoteOverdue)
			invoices.GET("/:id/pdf", deps.Invoices.GetInvoicePDF)
			invoices.DELETE("/:id", deps.Invoices.DeleteInvoice)
		}

		recurring := api.Group("/recurring-invoices")
		{
			recurring.POST("", deps.Recurring.CreateRecurringInvoice)
			recurring.GET("", deps.Recurring.ListRecurringInvoices)
			recurring.GET("/:id", deps.Recurring.GetRecurringInvoice)
			recurring.POST("/:id/toggle", deps.Recurring.ToggleRecurringInvoice)
			recurring.POST("/sweep", deps.Recurring.RunSweep)
			recurring.DELETE("/:id", deps.Recurring.DeleteRecurringInvoice)
		}

		api.GET("/financial/stats", deps.Financial.GetFinancialStats)
	}

	router.NoRoute(NotFoundHandler())

	return router
}
