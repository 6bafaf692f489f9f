package trade

import (
	"fmt"
	"time"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeReturn is the aggregate type name used in events
const AggregateTypeReturn = "Return"

// ReturnType distinguishes customer returns from returns sent back to suppliers
type ReturnType string

const (
	ReturnTypeSales    ReturnType = "sales_return"
	ReturnTypePurchase ReturnType = "purchase_return"
)

// IsValid returns true if the return type is known
func (t ReturnType) IsValid() bool {
	return t == ReturnTypeSales || t == ReturnTypePurchase
}

// String returns the string representation of ReturnType
func (t ReturnType) String() string {
	return string(t)
}

// SourceType maps the return type to the movement source type
func (t ReturnType) SourceType() inventory.SourceType {
	if t == ReturnTypePurchase {
		return inventory.SourceTypePurchaseReturn
	}
	return inventory.SourceTypeSalesReturn
}

// ReturnStatus represents the lifecycle status of a return
type ReturnStatus string

const (
	ReturnStatusDraft     ReturnStatus = "draft"
	ReturnStatusConfirmed ReturnStatus = "confirmed"
	ReturnStatusCancelled ReturnStatus = "cancelled"
)

// IsValid checks if the status is a valid ReturnStatus
func (s ReturnStatus) IsValid() bool {
	switch s {
	case ReturnStatusDraft, ReturnStatusConfirmed, ReturnStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of ReturnStatus
func (s ReturnStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s ReturnStatus) CanTransitionTo(target ReturnStatus) bool {
	switch s {
	case ReturnStatusDraft:
		return target == ReturnStatusConfirmed
	case ReturnStatusConfirmed:
		return target == ReturnStatusCancelled
	case ReturnStatusCancelled:
		return false
	}
	return false
}

// Action is a lifecycle action applied to a return
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

// String returns the string representation of Action
func (a Action) String() string {
	return string(a)
}

// IsValid returns true for confirm or cancel
func (a Action) IsValid() bool {
	return a == ActionConfirm || a == ActionCancel
}

// From returns the status an action starts from
func (a Action) From() ReturnStatus {
	if a == ActionCancel {
		return ReturnStatusConfirmed
	}
	return ReturnStatusDraft
}

// To returns the status an action ends in
func (a Action) To() ReturnStatus {
	if a == ActionCancel {
		return ReturnStatusCancelled
	}
	return ReturnStatusConfirmed
}

// StockDirection decides which way stock moves for a return type and action.
//
//	sales_return    confirm -> in
//	sales_return    cancel  -> out
//	purchase_return confirm -> out
//	purchase_return cancel  -> in
func StockDirection(returnType ReturnType, action Action) (inventory.Direction, error) {
	switch {
	case returnType == ReturnTypeSales && action == ActionConfirm:
		return inventory.DirectionIn, nil
	case returnType == ReturnTypeSales && action == ActionCancel:
		return inventory.DirectionOut, nil
	case returnType == ReturnTypePurchase && action == ActionConfirm:
		return inventory.DirectionOut, nil
	case returnType == ReturnTypePurchase && action == ActionCancel:
		return inventory.DirectionIn, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput,
		fmt.Sprintf("No stock direction for %s/%s", returnType, action))
}

// BalanceDelta returns the change to the party balance (amount the party owes us)
// for a return type and action. The sign is the mirror of the stock direction:
// stock coming in lowers what the party owes, stock going out raises it.
func BalanceDelta(returnType ReturnType, action Action, amount decimal.Decimal) (decimal.Decimal, error) {
	dir, err := StockDirection(returnType, action)
	if err != nil {
		return decimal.Zero, err
	}
	if dir == inventory.DirectionIn {
		return amount.Neg(), nil
	}
	return amount, nil
}

// ReturnItem is one line of a return
type ReturnItem struct {
	ID        uuid.UUID
	ReturnID  uuid.UUID
	ItemID    uuid.UUID
	ItemType  inventory.ItemType
	ItemName  string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	CreatedAt time.Time
}

// NewReturnItem creates a return line with Total = Quantity * UnitPrice
func NewReturnItem(itemID uuid.UUID, itemType inventory.ItemType, itemName string, quantity, unitPrice decimal.Decimal) (*ReturnItem, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if !itemType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ITEM_TYPE", fmt.Sprintf("Unknown item type: %q", itemType))
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Return quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	return &ReturnItem{
		ID:        uuid.New(),
		ItemID:    itemID,
		ItemType:  itemType,
		ItemName:  itemName,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Total:     quantity.Mul(unitPrice),
		CreatedAt: time.Now(),
	}, nil
}

// Return is a commercial reversal of a prior sale or purchase
type Return struct {
	shared.BaseAggregateRoot
	ReturnNumber     string
	ReturnType       ReturnType
	InvoiceID        *uuid.UUID
	PartyID          *uuid.UUID
	Date             time.Time
	Notes            string
	Amount           decimal.Decimal
	AmountOverridden bool
	Status           ReturnStatus
	Items            []ReturnItem
}

// NewReturn creates a draft return
func NewReturn(returnType ReturnType, returnNumber string, date time.Time) (*Return, error) {
	if !returnType.IsValid() {
		return nil, shared.NewDomainError("INVALID_RETURN_TYPE", fmt.Sprintf("Unknown return type: %q", returnType))
	}
	if returnNumber == "" {
		return nil, shared.NewDomainError("INVALID_RETURN_NUMBER", "Return number cannot be empty")
	}
	if date.IsZero() {
		date = time.Now()
	}

	return &Return{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ReturnNumber:      returnNumber,
		ReturnType:        returnType,
		Date:              date,
		Amount:            decimal.Zero,
		Status:            ReturnStatusDraft,
		Items:             make([]ReturnItem, 0),
	}, nil
}

// SetInvoice links the return to its source invoice and party
func (r *Return) SetInvoice(invoiceID uuid.UUID, partyID *uuid.UUID) error {
	if !r.IsDraft() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot change invoice of return in %s status", r.Status))
	}
	r.InvoiceID = &invoiceID
	r.PartyID = partyID
	r.Touch()
	return nil
}

// AddItem appends a line to a draft return
func (r *Return) AddItem(item *ReturnItem) error {
	if !r.IsDraft() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot add items to return in %s status", r.Status))
	}
	if item == nil {
		return shared.NewDomainError("INVALID_ITEM", "Item cannot be nil")
	}
	item.ReturnID = r.ID
	r.Items = append(r.Items, *item)
	r.recalculateAmount()
	r.Touch()
	return nil
}

// SetNotes updates the notes of a draft return
func (r *Return) SetNotes(notes string) error {
	if !r.IsDraft() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot edit return in %s status", r.Status))
	}
	r.Notes = notes
	r.Touch()
	return nil
}

// SetDate updates the date of a draft return
func (r *Return) SetDate(date time.Time) error {
	if !r.IsDraft() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot edit return in %s status", r.Status))
	}
	r.Date = date
	r.Touch()
	return nil
}

// OverrideAmount fixes the amount instead of deriving it from items
func (r *Return) OverrideAmount(amount decimal.Decimal) error {
	if !r.IsDraft() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot change amount of return in %s status", r.Status))
	}
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Return amount cannot be negative")
	}
	r.Amount = amount
	r.AmountOverridden = true
	r.Touch()
	return nil
}

func (r *Return) recalculateAmount() {
	if r.AmountOverridden {
		return
	}
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Total)
	}
	r.Amount = total
}

// CheckTransition returns an error if the action is not legal from the current status
func (r *Return) CheckTransition(action Action) error {
	if !action.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown action: %q", action))
	}
	if !r.Status.CanTransitionTo(action.To()) {
		return shared.NewDomainError(shared.CodeInvalidStateTransition,
			fmt.Sprintf("Cannot %s return in %s status", action, r.Status))
	}
	return nil
}

// ApplyTransition mirrors a persisted status write on the aggregate and queues
// the matching domain event.
func (r *Return) ApplyTransition(action Action) error {
	if err := r.CheckTransition(action); err != nil {
		return err
	}
	r.Status = action.To()
	r.IncrementVersion()
	r.Touch()
	switch action {
	case ActionConfirm:
		r.RecordEvent(NewReturnConfirmedEvent(r))
	case ActionCancel:
		r.RecordEvent(NewReturnCancelledEvent(r))
	}
	return nil
}

// RevertTransition mirrors a compensating status write and drops queued events
func (r *Return) RevertTransition(action Action) {
	r.Status = action.From()
	r.IncrementVersion()
	r.Touch()
	r.ClearEvents()
}

// StockDirection returns how this return moves stock for the action
func (r *Return) StockDirection(action Action) (inventory.Direction, error) {
	return StockDirection(r.ReturnType, action)
}

// BalanceDelta returns how this return moves the party balance for the action
func (r *Return) BalanceDelta(action Action) (decimal.Decimal, error) {
	return BalanceDelta(r.ReturnType, action, r.Amount)
}

// ItemCount returns the number of lines
func (r *Return) ItemCount() int {
	return len(r.Items)
}

// HasParty returns true if the return affects a party balance
func (r *Return) HasParty() bool {
	return r.PartyID != nil && *r.PartyID != uuid.Nil
}

// IsDraft returns true if the return is in draft status
func (r *Return) IsDraft() bool {
	return r.Status == ReturnStatusDraft
}

// IsConfirmed returns true if the return is confirmed
func (r *Return) IsConfirmed() bool {
	return r.Status == ReturnStatusConfirmed
}

// IsCancelled returns true if the return is cancelled
func (r *Return) IsCancelled() bool {
	return r.Status == ReturnStatusCancelled
}
