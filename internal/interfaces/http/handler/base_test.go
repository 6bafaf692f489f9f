package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/returns/internal/application/returns"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBaseHandler_HandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "domain error",
			err:    shared.NewDomainError(shared.CodeAlreadyProcessed, "busy"),
			status: http.StatusConflict,
			code:   shared.CodeAlreadyProcessed,
		},
		{
			name:   "wrapped domain error",
			err:    fmt.Errorf("confirm: %w", shared.ErrNotFound),
			status: http.StatusNotFound,
			code:   shared.CodeNotFound,
		},
		{
			name: "compensated saga keeps the step code",
			err: &returns.SagaError{
				Step: "stock",
				Err:  shared.NewDomainError(shared.CodeInsufficientStock, "short"),
			},
			status: http.StatusUnprocessableEntity,
			code:   shared.CodeInsufficientStock,
		},
		{
			name: "saga with failed compensation",
			err: &returns.SagaError{
				Step:               "stock",
				Err:                shared.NewDomainError(shared.CodeInsufficientStock, "short"),
				CompensationErrors: []error{errors.New("restore failed")},
			},
			status: http.StatusInternalServerError,
			code:   shared.CodeCompensationFailed,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   shared.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Header(logger.RequestIDHeader, "req-1")

			h := &BaseHandler{}
			h.HandleError(c, tt.err)

			errInfo := requireError(t, w, tt.status, tt.code)
			assert.Equal(t, "req-1", errInfo.RequestID)
		})
	}
}

func TestBaseHandler_ParseIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	h := &BaseHandler{}
	_, ok := h.parseIDParam(c, "id")

	assert.False(t, ok)
	errInfo := requireError(t, w, http.StatusBadRequest, "BAD_REQUEST")
	assert.Equal(t, "Invalid id format", errInfo.Message)
}
