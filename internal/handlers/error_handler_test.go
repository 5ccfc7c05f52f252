package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-agency-billing/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", models.NewValidationError("bad input"), http.StatusBadRequest},
		{"invalid state", models.NewInvalidStateError("cannot convert draft"), http.StatusUnprocessableEntity},
		{"conflict", models.NewConflictError("modified concurrently"), http.StatusConflict},
		{"not found", models.NewNotFoundError("quotation", "q1"), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

			RespondError(c, tt.err)

			assert.Equal(t, tt.status, recorder.Code)
			assert.Contains(t, recorder.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	RespondError(c, errors.New("dsn user:secret@tcp(db:3306)"))

	assert.NotContains(t, recorder.Body.String(), "secret")
}

func TestNewPagination(t *testing.T) {
	p := newPagination(2, 25, 51)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 25, p.PageSize)
	assert.Equal(t, int64(51), p.TotalCount)
	assert.Equal(t, 3, p.TotalPages)

	unpaged := newPagination(0, 0, 7)
	assert.Equal(t, 1, unpaged.Page)
	assert.Equal(t, 1, unpaged.TotalPages)
}
