package returns

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formFor(invoiceID uuid.UUID, items ...FormItem) ReturnForm {
	return ReturnForm{InvoiceID: &invoiceID, Items: items}
}

func TestValidationService_ValidateReturnForm(t *testing.T) {
	f := newFixture()
	invoiceID := uuid.New()
	f.invoices[invoiceID] = &trade.Invoice{ID: invoiceID, InvoiceType: trade.InvoiceTypeSales}

	item := func(selected bool, qty, max string) FormItem {
		return FormItem{
			ItemID:      uuid.New(),
			ItemType:    inventory.ItemTypeFinishedProduct,
			ItemName:    "Widget",
			Selected:    selected,
			Quantity:    dec(qty),
			MaxQuantity: dec(max),
		}
	}

	repeated := item(true, "2", "3")

	tests := []struct {
		name    string
		form    ReturnForm
		valid   bool
		code    string
		message string
	}{
		{
			name:    "missing invoice",
			form:    ReturnForm{Items: []FormItem{item(true, "1", "2")}},
			code:    shared.CodeValidationFailed,
			message: "Please select an invoice",
		},
		{
			name:    "negative quantity",
			form:    formFor(invoiceID, item(true, "-1", "2")),
			code:    shared.CodeValidationFailed,
			message: "cannot be negative",
		},
		{
			name:    "nothing selected",
			form:    formFor(invoiceID, item(false, "1", "2"), item(true, "0", "2")),
			code:    shared.CodeValidationFailed,
			message: "Please select at least one item",
		},
		{
			name:    "over returnable",
			form:    formFor(invoiceID, item(true, "3", "2")),
			code:    shared.CodeValidationFailed,
			message: "exceeds the returnable quantity (2)",
		},
		{
			name:    "same item over returnable across lines",
			form:    formFor(invoiceID, repeated, repeated),
			code:    shared.CodeValidationFailed,
			message: "exceeds the returnable quantity (3)",
		},
		{
			name:    "unknown invoice",
			form:    formFor(uuid.New(), item(true, "1", "2")),
			code:    shared.CodeNotFound,
			message: "does not exist",
		},
		{
			name:  "valid",
			form:  formFor(invoiceID, item(true, "2", "2"), item(false, "9", "1")),
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.validator.ValidateReturnForm(context.Background(), tt.form)
			assert.Equal(t, tt.valid, result.Valid)
			if tt.valid {
				assert.NoError(t, result.Err())
				return
			}
			assert.Equal(t, tt.code, result.Code)
			assert.Contains(t, result.Message, tt.message)
			assert.True(t, shared.IsCode(result.Err(), tt.code))
		})
	}
}

func TestValidationService_ValidateBeforeConfirm(t *testing.T) {
	f := newFixture()

	result := f.validator.ValidateBeforeConfirm(context.Background(), uuid.New())
	assert.False(t, result.Valid)
	assert.Equal(t, shared.CodeNotFound, result.Code)

	empty := f.draft(t, trade.ReturnTypeSales, nil)
	result = f.validator.ValidateBeforeConfirm(context.Background(), empty.ID)
	assert.Equal(t, shared.CodeIncompleteData, result.Code)

	short := f.draft(t, trade.ReturnTypePurchase, nil,
		itemSpec{itemType: inventory.ItemTypeRawMaterial, qty: "2", price: "1", stock: "1"},
	)
	result = f.validator.ValidateBeforeConfirm(context.Background(), short.ID)
	assert.Equal(t, shared.CodeInsufficientStock, result.Code)

	ok := f.draft(t, trade.ReturnTypeSales, nil,
		itemSpec{itemType: inventory.ItemTypeRawMaterial, qty: "2", price: "1", stock: "0"},
	)
	assert.True(t, f.validator.ValidateBeforeConfirm(context.Background(), ok.ID).Valid)
	assert.False(t, f.validator.ValidateBeforeCancel(context.Background(), ok.ID).Valid)
	assert.True(t, f.validator.ValidateBeforeDelete(context.Background(), ok.ID).Valid)
}

func TestValidationService_ValidateStockSumsRepeatedItems(t *testing.T) {
	f := newFixture()
	r := f.draft(t, trade.ReturnTypePurchase, nil,
		itemSpec{itemType: inventory.ItemTypeRawMaterial, qty: "2", price: "1", stock: "3"},
	)
	// a second line for the same item
	dup := r.Items[0]
	dup.ID = uuid.New()
	r.Items = append(r.Items, dup)

	result := f.validator.ValidateStock(context.Background(), r, trade.ActionConfirm)
	assert.False(t, result.Valid)
	assert.Equal(t, shared.CodeInsufficientStock, result.Code)

	// cancelling a purchase return adds stock and always passes
	assert.True(t, f.validator.ValidateStock(context.Background(), r, trade.ActionCancel).Valid)
}

func TestValidationService_LookupFailure(t *testing.T) {
	f := newFixture()
	f.repo.findErr = errors.New("connection refused")

	result := f.validator.ValidateBeforeCancel(context.Background(), uuid.New())
	require.False(t, result.Valid)
	assert.Equal(t, shared.CodeInternal, result.Code)
	assert.Contains(t, result.Message, "connection refused")
}
