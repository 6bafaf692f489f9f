package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ValidationService runs the read-only checks that gate every return transition
type ValidationService struct {
	returns  trade.ReturnRepository
	invoices trade.InvoiceReader
	adjuster *InventoryAdjuster
	logger   *zap.Logger
}

// NewValidationService creates a validation service
func NewValidationService(
	returns trade.ReturnRepository,
	invoices trade.InvoiceReader,
	adjuster *InventoryAdjuster,
	logger *zap.Logger,
) *ValidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationService{
		returns:  returns,
		invoices: invoices,
		adjuster: adjuster,
		logger:   logger,
	}
}

// ValidateReturnForm checks a return form before a draft is created
func (s *ValidationService) ValidateReturnForm(ctx context.Context, form ReturnForm) ValidationResult {
	if form.InvoiceID == nil || *form.InvoiceID == uuid.Nil {
		return Invalid(shared.CodeValidationFailed, "Please select an invoice")
	}

	for _, item := range form.Items {
		if item.Selected && item.Quantity.IsNegative() {
			return Invalid(shared.CodeValidationFailed,
				fmt.Sprintf("Return quantity for item %s cannot be negative", itemLabel(item)))
		}
	}

	selected := form.SelectedItems()
	if len(selected) == 0 {
		return Invalid(shared.CodeValidationFailed, "Please select at least one item with a quantity greater than zero")
	}

	// an item may be selected on more than one line; its lines share one limit
	requested := make(map[uuid.UUID]decimal.Decimal, len(selected))
	for _, item := range selected {
		requested[item.ItemID] = requested[item.ItemID].Add(item.Quantity)
		if requested[item.ItemID].GreaterThan(item.MaxQuantity) {
			return Invalid(shared.CodeValidationFailed,
				fmt.Sprintf("Return quantity for item %s exceeds the returnable quantity (%s)", itemLabel(item), item.MaxQuantity))
		}
	}

	if _, err := s.invoices.FindInvoiceByID(ctx, *form.InvoiceID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Invalid(shared.CodeNotFound, "The selected invoice does not exist")
		}
		return s.loadFailure("invoice", *form.InvoiceID, err)
	}

	return Valid()
}

// ValidateBeforeConfirm checks that a return can be confirmed
func (s *ValidationService) ValidateBeforeConfirm(ctx context.Context, id uuid.UUID) ValidationResult {
	r, result := s.load(ctx, id)
	if !result.Valid {
		return result
	}
	if !r.IsDraft() {
		return Invalid(shared.CodeInvalidStateTransition,
			fmt.Sprintf("Only draft returns can be confirmed, this return is %s", r.Status))
	}
	if r.ItemCount() == 0 {
		return Invalid(shared.CodeIncompleteData, "Return has no items")
	}
	if r.ReturnType == trade.ReturnTypePurchase {
		return s.ValidateStock(ctx, r, trade.ActionConfirm)
	}
	return Valid()
}

// ValidateBeforeCancel checks that a return can be cancelled
func (s *ValidationService) ValidateBeforeCancel(ctx context.Context, id uuid.UUID) ValidationResult {
	r, result := s.load(ctx, id)
	if !result.Valid {
		return result
	}
	if !r.IsConfirmed() {
		return Invalid(shared.CodeInvalidStateTransition,
			fmt.Sprintf("Only confirmed returns can be cancelled, this return is %s", r.Status))
	}
	return Valid()
}

// ValidateBeforeDelete checks that a return can be deleted. Only drafts are ever
// hard-deleted so that processed returns stay in the audit trail.
func (s *ValidationService) ValidateBeforeDelete(ctx context.Context, id uuid.UUID) ValidationResult {
	r, result := s.load(ctx, id)
	if !result.Valid {
		return result
	}
	if !r.IsDraft() {
		return Invalid(shared.CodeInvalidStateTransition,
			fmt.Sprintf("Only draft returns can be deleted, this return is %s", r.Status))
	}
	return Valid()
}

// ValidateStock checks that every item the action removes from stock is available.
// Lines for the same item are summed. Actions that add stock always pass.
func (s *ValidationService) ValidateStock(ctx context.Context, r *trade.Return, action trade.Action) ValidationResult {
	direction, err := r.StockDirection(action)
	if err != nil {
		return Invalid(shared.ErrorCode(err), err.Error())
	}
	if !direction.IsDecrease() {
		return Valid()
	}

	type stockKey struct {
		itemType inventory.ItemType
		itemID   uuid.UUID
	}
	required := make(map[stockKey]decimal.Decimal)
	order := make([]stockKey, 0, len(r.Items))
	for _, item := range r.Items {
		key := stockKey{itemType: item.ItemType, itemID: item.ItemID}
		if _, seen := required[key]; !seen {
			order = append(order, key)
		}
		required[key] = required[key].Add(item.Quantity)
	}

	for _, key := range order {
		if err := s.adjuster.CheckAvailable(ctx, key.itemType, key.itemID, required[key]); err != nil {
			code := shared.ErrorCode(err)
			if code == "" {
				s.logger.Error("stock check failed",
					zap.String("return_id", r.ID.String()),
					zap.String("item_id", key.itemID.String()),
					zap.Error(err),
				)
				code = shared.CodeInternal
			}
			return Invalid(code, err.Error())
		}
	}
	return Valid()
}

func (s *ValidationService) load(ctx context.Context, id uuid.UUID) (*trade.Return, ValidationResult) {
	r, err := s.returns.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, Invalid(shared.CodeNotFound, "Return not found")
		}
		return nil, s.loadFailure("return", id, err)
	}
	return r, Valid()
}

func (s *ValidationService) loadFailure(what string, id uuid.UUID, err error) ValidationResult {
	s.logger.Error("validation lookup failed",
		zap.String("entity", what),
		zap.String("id", id.String()),
		zap.Error(err),
	)
	return Invalid(shared.CodeInternal, fmt.Sprintf("Could not load %s: %v", what, err))
}

func itemLabel(item FormItem) string {
	if item.ItemName != "" {
		return item.ItemName
	}
	return item.ItemID.String()
}
