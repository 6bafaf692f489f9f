package handler

import (
	"github.com/erp/returns/internal/domain/finance"
	"github.com/gin-gonic/gin"
)

// PartyHandler exposes party ledgers for operators
type PartyHandler struct {
	BaseHandler
	ledger finance.LedgerStore
}

// NewPartyHandler creates a new PartyHandler
func NewPartyHandler(ledger finance.LedgerStore) *PartyHandler {
	return &PartyHandler{ledger: ledger}
}

// Ledger godoc
// @ID           getPartyLedger
// @Summary      Get a party ledger
// @Description  Ledger entries in posting order with the cached balance and its replayed value
// @Tags         parties
// @Produce      json
// @Param        id path string true "Party ID" format(uuid)
// @Success      200 {object} APIResponse[PartyLedgerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /parties/{id}/ledger [get]
func (h *PartyHandler) Ledger(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	balance, err := h.ledger.GetPartyBalance(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	entries, err := h.ledger.FindEntriesByParty(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPartyLedgerResponse(id, balance, entries))
}
