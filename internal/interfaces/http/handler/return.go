package handler

import (
	"context"

	"github.com/erp/returns/internal/application/returns"
	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/erp/returns/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReturnQueries reads returns for the API
type ReturnQueries interface {
	FindByID(ctx context.Context, id uuid.UUID) (*trade.Return, error)
	trade.ReturnLister
}

// ReturnHandler handles return lifecycle endpoints
type ReturnHandler struct {
	BaseHandler
	drafts     *returns.DraftService
	validation *returns.ValidationService
	processing *returns.ProcessingService
	returns    ReturnQueries
	movements  inventory.MovementReader
}

// NewReturnHandler creates a new ReturnHandler
func NewReturnHandler(
	drafts *returns.DraftService,
	validation *returns.ValidationService,
	processing *returns.ProcessingService,
	returnRepo ReturnQueries,
	movements inventory.MovementReader,
) *ReturnHandler {
	return &ReturnHandler{
		drafts:     drafts,
		validation: validation,
		processing: processing,
		returns:    returnRepo,
		movements:  movements,
	}
}

// Create godoc
// @ID           createReturn
// @Summary      Create a draft return
// @Description  Store a draft sales or purchase return from an invoice return form
// @Tags         returns
// @Accept       json
// @Produce      json
// @Param        request body ReturnFormRequest true "Return form"
// @Success      201 {object} APIResponse[ReturnResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /returns [post]
func (h *ReturnHandler) Create(c *gin.Context) {
	var req ReturnFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	r, err := h.drafts.CreateReturn(c.Request.Context(), req.toForm())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toReturnResponse(r))
}

// ValidateForm checks a return form without storing anything. The answer is
// always 200 with the validation result; only malformed bodies are 400.
// @ID           validateReturnForm
// @Summary      Validate a return form
// @Tags         returns
// @Accept       json
// @Produce      json
// @Param        request body ReturnFormRequest true "Return form"
// @Success      200 {object} APIResponse[returns.ValidationResult]
// @Failure      400 {object} ErrorResponse
// @Router       /returns/validate [post]
func (h *ReturnHandler) ValidateForm(c *gin.Context) {
	var req ReturnFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	h.Success(c, h.validation.ValidateReturnForm(c.Request.Context(), req.toForm()))
}

// List godoc
// @ID           listReturns
// @Summary      List returns
// @Description  Retrieve a paginated list of returns with optional filtering
// @Tags         returns
// @Produce      json
// @Param        return_type query string false "Return type" Enums(sales_return, purchase_return)
// @Param        status query string false "Return status" Enums(draft, confirmed, cancelled)
// @Param        party_id query string false "Party ID" format(uuid)
// @Param        invoice_id query string false "Invoice ID" format(uuid)
// @Param        search query string false "Return number contains"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Sort column" default(created_at)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc) default(desc)
// @Success      200 {object} APIResponse[[]ReturnResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /returns [get]
func (h *ReturnHandler) List(c *gin.Context) {
	var req ListReturnsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	filter := req.toFilter()
	list, total, err := h.returns.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	responses := make([]ReturnResponse, len(list))
	for i := range list {
		responses[i] = toReturnResponse(&list[i])
	}
	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}

// Get godoc
// @ID           getReturnById
// @Summary      Get a return by ID
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return ID" format(uuid)
// @Success      200 {object} APIResponse[ReturnResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /returns/{id} [get]
func (h *ReturnHandler) Get(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	r, err := h.returns.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toReturnResponse(r))
}

// Check runs the pre-transition validation for confirm, cancel or delete.
// @ID           checkReturnAction
// @Summary      Check whether an action is allowed
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return ID" format(uuid)
// @Param        action path string true "Action" Enums(confirm, cancel, delete)
// @Success      200 {object} APIResponse[returns.ValidationResult]
// @Failure      400 {object} ErrorResponse
// @Router       /returns/{id}/checks/{action} [get]
func (h *ReturnHandler) Check(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var result returns.ValidationResult
	switch c.Param("action") {
	case string(trade.ActionConfirm):
		result = h.validation.ValidateBeforeConfirm(ctx, id)
	case string(trade.ActionCancel):
		result = h.validation.ValidateBeforeCancel(ctx, id)
	case "delete":
		result = h.validation.ValidateBeforeDelete(ctx, id)
	default:
		h.BadRequest(c, "Action must be one of: confirm cancel delete")
		return
	}
	h.Success(c, result)
}

// Confirm godoc
// @ID           confirmReturn
// @Summary      Confirm a draft return
// @Description  Apply the stock movements and post the party balance. A 500 with
// @Description  BALANCE_SYNC_FAILED means status and stock are committed and the
// @Description  balance is repaired by reconciliation.
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return ID" format(uuid)
// @Success      200 {object} APIResponse[TransitionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /returns/{id}/confirm [post]
func (h *ReturnHandler) Confirm(c *gin.Context) {
	h.transition(c, trade.ActionConfirm)
}

// Cancel godoc
// @ID           cancelReturn
// @Summary      Cancel a confirmed return
// @Description  Reverse the stock movements and the party balance of a confirmed return
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return ID" format(uuid)
// @Success      200 {object} APIResponse[TransitionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /returns/{id}/cancel [post]
func (h *ReturnHandler) Cancel(c *gin.Context) {
	h.transition(c, trade.ActionCancel)
}

func (h *ReturnHandler) transition(c *gin.Context, action trade.Action) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx, _ := logger.WithReturnID(c.Request.Context(), logger.GetGinLogger(c), id.String())

	var err error
	if action == trade.ActionCancel {
		err = h.processing.Cancel(ctx, id)
	} else {
		err = h.processing.Confirm(ctx, id)
	}
	if err != nil {
		h.transitionError(c, action, err)
		return
	}

	h.Success(c, TransitionResponse{
		ReturnID: id.String(),
		Action:   action.String(),
		Status:   action.To().String(),
		Message:  "Return " + pastTense(action),
	})
}

// transitionError answers with the operator message so that a partial success
// (status and stock committed, balance pending) reads as such.
func (h *ReturnHandler) transitionError(c *gin.Context, action trade.Action, err error) {
	if sagaErr, ok := returns.AsSagaError(err); ok && !sagaErr.FullyCompensated() {
		h.HandleError(c, err)
		return
	}
	code := shared.ErrorCode(err)
	if code == "" {
		h.HandleError(c, err)
		return
	}
	h.ErrorWithCode(c, code, returns.OperatorMessage(action, err))
}

// Delete godoc
// @ID           deleteReturn
// @Summary      Delete a draft return
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return ID" format(uuid)
// @Success      200 {object} APIResponse[DeleteResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /returns/{id} [delete]
func (h *ReturnHandler) Delete(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.processing.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, DeleteResponse{ReturnID: id.String(), Deleted: true})
}

// Movements lists the stock movements recorded for a return.
// @ID           listReturnMovements
// @Summary      List stock movements of a return
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return ID" format(uuid)
// @Success      200 {object} APIResponse[[]MovementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /returns/{id}/movements [get]
func (h *ReturnHandler) Movements(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.returns.FindByID(ctx, id); err != nil {
		h.HandleError(c, err)
		return
	}
	movements, err := h.movements.FindBySource(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toMovementResponses(movements))
}

// ReturnForm prefills a return form for an invoice with the returnable quantities.
// @ID           getInvoiceReturnForm
// @Summary      Prefill a return form
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[ReturnFormResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id}/return-form [get]
func (h *ReturnHandler) ReturnForm(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	items, err := h.drafts.MaxQuantities(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReturnFormResponse{InvoiceID: id.String(), Items: items})
}

func pastTense(action trade.Action) string {
	if action == trade.ActionCancel {
		return "cancelled"
	}
	return "confirmed"
}
