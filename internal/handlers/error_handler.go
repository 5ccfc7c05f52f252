package handlers

import (
	"net/http"

	"go-agency-billing/internal/logger"
	"go-agency-billing/internal/models"

	"github.com/gin-gonic/gin"
)

// RespondError maps domain errors to HTTP status codes. Validation failures
// are 400, lifecycle violations 422, concurrent-modification conflicts 409,
// missing resources 404. Everything else is an opaque 500.
func RespondError(c *gin.Context, err error) {
	switch {
	case models.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case models.IsInvalidState(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case models.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case models.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.Error("Unhandled request error", err, map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			})
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// RecoveryHandler converts panics into JSON 500 responses instead of closing
// the connection.
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(gin.DefaultWriter, func(c *gin.Context, recovered interface{}) {
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.Error("Panic recovered", nil, map[string]interface{}{
				"path":    c.Request.URL.Path,
				"method":  c.Request.Method,
				"recover": recovered,
			})
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// NotFoundHandler answers unknown routes with JSON.
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "resource not found",
			"path":  c.Request.URL.Path,
		})
	}
}
