package handler

import (
	"net/http"
	"testing"

	"github.com/erp/returns/internal/application/returns"
	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/erp/returns/internal/infrastructure/persistence/models"
	"github.com/erp/returns/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnHandler_SalesReturnLifecycle(t *testing.T) {
	e := newTestEnv(t)
	party := uuid.New()
	product := e.seedStock(t, inventory.ItemTypeFinishedProduct, "5")
	invoiceID := e.seedInvoice(t, trade.InvoiceTypeSales, &party,
		models.InvoiceLineModel{ItemID: product, ItemType: inventory.ItemTypeFinishedProduct, ItemName: "Widget", Quantity: dec("10"), UnitPrice: dec("20")},
	)

	items := returnForm(t, e, invoiceID)
	require.Len(t, items, 1)
	assert.True(t, items[0].MaxQuantity.Equal(dec("10")))

	created := createReturn(t, e, formFor(invoiceID, items, "3"))
	assert.Equal(t, "draft", created.Status)
	assert.Equal(t, "sales_return", created.ReturnType)
	assert.True(t, created.Amount.Equal(dec("60")), created.Amount.String())
	require.Len(t, created.Items, 1)
	require.NotNil(t, created.PartyID)
	assert.Equal(t, party.String(), *created.PartyID)

	path := "/returns/" + created.ID

	w := e.do(t, http.MethodGet, path+"/checks/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var check returns.ValidationResult
	decode(t, w, &check)
	assert.True(t, check.Valid)

	w = e.do(t, http.MethodPost, path+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var transition TransitionResponse
	decode(t, w, &transition)
	assert.Equal(t, TransitionResponse{
		ReturnID: created.ID,
		Action:   "confirm",
		Status:   "confirmed",
		Message:  "Return confirmed",
	}, transition)

	w = e.do(t, http.MethodGet, path+"/movements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var movements []MovementResponse
	decode(t, w, &movements)
	require.Len(t, movements, 1)
	assert.Equal(t, "in", movements[0].Direction)
	assert.True(t, movements[0].BalanceBefore.Equal(dec("5")))
	assert.True(t, movements[0].BalanceAfter.Equal(dec("8")))

	w = e.do(t, http.MethodGet, "/parties/"+party.String()+"/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ledger PartyLedgerResponse
	decode(t, w, &ledger)
	require.NotNil(t, ledger.Balance)
	assert.True(t, ledger.Balance.Equal(dec("-60")), ledger.Balance.String())
	assert.True(t, ledger.InSync)
	assert.Len(t, ledger.Entries, 1)

	w = e.do(t, http.MethodPost, path+"/confirm", nil)
	requireError(t, w, http.StatusUnprocessableEntity, shared.CodeInvalidStateTransition)

	w = e.do(t, http.MethodDelete, path, nil)
	requireError(t, w, http.StatusUnprocessableEntity, shared.CodeInvalidStateTransition)

	w = e.do(t, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &transition)
	assert.Equal(t, "cancelled", transition.Status)
	assert.Equal(t, "Return cancelled", transition.Message)

	w = e.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored ReturnResponse
	decode(t, w, &stored)
	assert.Equal(t, "cancelled", stored.Status)

	w = e.do(t, http.MethodGet, path+"/checks/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &check)
	assert.False(t, check.Valid)
	assert.Equal(t, shared.CodeInvalidStateTransition, check.Code)

	w = e.do(t, http.MethodGet, "/parties/"+party.String()+"/ledger", nil)
	decode(t, w, &ledger)
	assert.True(t, ledger.Balance.IsZero())
	assert.Len(t, ledger.Entries, 2)
}

func TestReturnHandler_PurchaseReturnInsufficientStock(t *testing.T) {
	e := newTestEnv(t)
	party := uuid.New()
	material := e.seedStock(t, inventory.ItemTypeRawMaterial, "1")
	invoiceID := e.seedInvoice(t, trade.InvoiceTypePurchase, &party,
		models.InvoiceLineModel{ItemID: material, ItemType: inventory.ItemTypeRawMaterial, ItemName: "Resin", Quantity: dec("5"), UnitPrice: dec("4")},
	)

	created := createReturn(t, e, formFor(invoiceID, returnForm(t, e, invoiceID), "3"))
	assert.Equal(t, "purchase_return", created.ReturnType)

	w := e.do(t, http.MethodGet, "/returns/"+created.ID+"/checks/confirm", nil)
	var check returns.ValidationResult
	decode(t, w, &check)
	assert.False(t, check.Valid)
	assert.Equal(t, shared.CodeInsufficientStock, check.Code)

	w = e.do(t, http.MethodPost, "/returns/"+created.ID+"/confirm", nil)
	errInfo := requireError(t, w, http.StatusUnprocessableEntity, shared.CodeInsufficientStock)
	assert.NotEmpty(t, errInfo.RequestID)

	w = e.do(t, http.MethodGet, "/returns/"+created.ID+"/movements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var movements []MovementResponse
	decode(t, w, &movements)
	assert.Empty(t, movements)
}

func TestReturnHandler_CreateRejectsInvalidForms(t *testing.T) {
	e := newTestEnv(t)
	product := e.seedStock(t, inventory.ItemTypeFinishedProduct, "0")
	invoiceID := e.seedInvoice(t, trade.InvoiceTypeSales, nil,
		models.InvoiceLineModel{ItemID: product, ItemType: inventory.ItemTypeFinishedProduct, Quantity: dec("2"), UnitPrice: dec("1")},
	)
	items := returnForm(t, e, invoiceID)

	t.Run("malformed json", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/returns", `{"invoice_id":`)
		requireError(t, w, http.StatusBadRequest, dto.ErrCodeInvalidJSON)
	})

	t.Run("bad item type is a binding error with details", func(t *testing.T) {
		req := formFor(invoiceID, items, "1")
		req.Items[0].ItemType = "gadget"
		w := e.do(t, http.MethodPost, "/returns", req)
		errInfo := requireError(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)
		assert.NotEmpty(t, errInfo.Details)
	})

	t.Run("no invoice selected", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/returns", ReturnFormRequest{})
		errInfo := requireError(t, w, http.StatusUnprocessableEntity, shared.CodeValidationFailed)
		assert.Equal(t, "Please select an invoice", errInfo.Message)
	})

	t.Run("over-return", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/returns", formFor(invoiceID, items, "3"))
		requireError(t, w, http.StatusUnprocessableEntity, shared.CodeValidationFailed)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/returns", formFor(uuid.New(), items, "1"))
		requireError(t, w, http.StatusNotFound, shared.CodeNotFound)
	})

	t.Run("return type must match invoice", func(t *testing.T) {
		req := formFor(invoiceID, items, "1")
		req.ReturnType = "purchase_return"
		w := e.do(t, http.MethodPost, "/returns", req)
		requireError(t, w, http.StatusUnprocessableEntity, shared.CodeValidationFailed)
	})
}

func TestReturnHandler_ValidateForm(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/returns/validate", ReturnFormRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	var result returns.ValidationResult
	decode(t, w, &result)
	assert.False(t, result.Valid)
	assert.Equal(t, shared.CodeValidationFailed, result.Code)
	assert.Equal(t, "Please select an invoice", result.Message)

	w = e.do(t, http.MethodPost, "/returns/validate", `not json`)
	requireError(t, w, http.StatusBadRequest, dto.ErrCodeInvalidJSON)
}

func TestReturnHandler_DeleteDraft(t *testing.T) {
	e := newTestEnv(t)
	product := e.seedStock(t, inventory.ItemTypeSemiFinished, "10")
	invoiceID := e.seedInvoice(t, trade.InvoiceTypeSales, nil,
		models.InvoiceLineModel{ItemID: product, ItemType: inventory.ItemTypeSemiFinished, Quantity: dec("4"), UnitPrice: dec("2.5")},
	)
	created := createReturn(t, e, formFor(invoiceID, returnForm(t, e, invoiceID), "4"))

	w := e.do(t, http.MethodGet, "/returns/"+created.ID+"/checks/delete", nil)
	var check returns.ValidationResult
	decode(t, w, &check)
	assert.True(t, check.Valid)

	w = e.do(t, http.MethodDelete, "/returns/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var deleted map[string]any
	decode(t, w, &deleted)
	assert.Equal(t, true, deleted["deleted"])

	w = e.do(t, http.MethodGet, "/returns/"+created.ID, nil)
	requireError(t, w, http.StatusNotFound, shared.CodeNotFound)

	w = e.do(t, http.MethodDelete, "/returns/"+created.ID, nil)
	requireError(t, w, http.StatusNotFound, shared.CodeNotFound)

	items := returnForm(t, e, invoiceID)
	require.Len(t, items, 1)
	assert.True(t, items[0].MaxQuantity.Equal(dec("4")), "a deleted draft no longer counts against the invoice")
}

func TestReturnHandler_PathParameters(t *testing.T) {
	e := newTestEnv(t)
	missing := "/returns/" + uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		status int
		code   string
	}{
		{"malformed id", http.MethodGet, "/returns/not-a-uuid", http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"malformed id on confirm", http.MethodPost, "/returns/42/confirm", http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"unknown check action", http.MethodGet, missing + "/checks/archive", http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"missing return", http.MethodGet, missing, http.StatusNotFound, shared.CodeNotFound},
		{"confirm missing return", http.MethodPost, missing + "/confirm", http.StatusNotFound, shared.CodeNotFound},
		{"cancel missing return", http.MethodPost, missing + "/cancel", http.StatusNotFound, shared.CodeNotFound},
		{"movements of missing return", http.MethodGet, missing + "/movements", http.StatusNotFound, shared.CodeNotFound},
		{"return form of missing invoice", http.MethodGet, "/invoices/" + uuid.NewString() + "/return-form", http.StatusNotFound, shared.CodeNotFound},
		{"ledger with malformed party", http.MethodGet, "/parties/x/ledger", http.StatusBadRequest, dto.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, nil)
			requireError(t, w, tt.status, tt.code)
		})
	}
}

func TestPartyHandler_UnknownPartyIsEmptyAndInSync(t *testing.T) {
	e := newTestEnv(t)
	party := uuid.New()

	w := e.do(t, http.MethodGet, "/parties/"+party.String()+"/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ledger PartyLedgerResponse
	decode(t, w, &ledger)
	assert.Equal(t, party.String(), ledger.PartyID)
	assert.Nil(t, ledger.Balance)
	assert.True(t, ledger.InSync)
	assert.Empty(t, ledger.Entries)
	assert.True(t, ledger.ReplayedBalance.IsZero())
}

func TestReconciliationHandler_RunOverDatabase(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/reconciliation/run", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report returns.ReconciliationReport
	decode(t, w, &report)
	assert.Empty(t, report.PostingsRepaired)
	assert.Empty(t, report.BalancesRepaired)
}

func TestReturnHandler_List(t *testing.T) {
	e := newTestEnv(t)
	party := uuid.New()
	product := e.seedStock(t, inventory.ItemTypeFinishedProduct, "50")
	invoiceID := e.seedInvoice(t, trade.InvoiceTypeSales, &party,
		models.InvoiceLineModel{ItemID: product, ItemType: inventory.ItemTypeFinishedProduct, Quantity: dec("10"), UnitPrice: dec("2")},
	)
	items := returnForm(t, e, invoiceID)
	first := createReturn(t, e, formFor(invoiceID, items, "1"))
	second := createReturn(t, e, formFor(invoiceID, items, "3"))
	w := e.do(t, http.MethodPost, "/returns/"+second.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("pages with meta", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/returns?page_size=1&order_by=amount&order_dir=desc", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var list []ReturnResponse
		resp := decode(t, w, &list)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, dto.Meta{Total: 2, Page: 1, PageSize: 1, TotalPages: 2}, *resp.Meta)
	})

	t.Run("filters by status and party", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/returns?status=draft&party_id="+party.String(), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var list []ReturnResponse
		decode(t, w, &list)
		require.Len(t, list, 1)
		assert.Equal(t, first.ID, list[0].ID)
	})

	t.Run("rejects malformed queries", func(t *testing.T) {
		for _, query := range []string{"status=archived", "party_id=abc", "page_size=500", "order_dir=up"} {
			w := e.do(t, http.MethodGet, "/returns?"+query, nil)
			requireError(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)
		}
	})
}
