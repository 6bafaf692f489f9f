package handler

import (
	"context"
	"time"

	"github.com/erp/returns/internal/application/returns"
	"github.com/gin-gonic/gin"
)

// ReconciliationRunner runs one reconciliation pass
type ReconciliationRunner interface {
	Run(ctx context.Context) (*returns.ReconciliationReport, error)
}

// ReconciliationHandler triggers reconciliation on demand
type ReconciliationHandler struct {
	BaseHandler
	runner  ReconciliationRunner
	timeout time.Duration
}

// NewReconciliationHandler creates a new ReconciliationHandler. A zero timeout
// leaves the run bound only to the request.
func NewReconciliationHandler(runner ReconciliationRunner, timeout time.Duration) *ReconciliationHandler {
	return &ReconciliationHandler{runner: runner, timeout: timeout}
}

// Run godoc
// @ID           runReconciliation
// @Summary      Run reconciliation
// @Description  Post missing ledger entries for settled returns and repair drifted party balances
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} APIResponse[returns.ReconciliationReport]
// @Failure      500 {object} ErrorResponse
// @Router       /reconciliation/run [post]
func (h *ReconciliationHandler) Run(c *gin.Context) {
	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.runner.Run(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
