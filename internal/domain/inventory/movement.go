package inventory

import (
	"time"

	"github.com/erp/returns/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceType identifies the document that caused a movement
type SourceType string

const (
	SourceTypeSalesReturn    SourceType = "SALES_RETURN"
	SourceTypePurchaseReturn SourceType = "PURCHASE_RETURN"
)

// String returns the string representation of SourceType
func (s SourceType) String() string {
	return string(s)
}

// IsValid returns true if the source type is known
func (s SourceType) IsValid() bool {
	return s == SourceTypeSalesReturn || s == SourceTypePurchaseReturn
}

// Movement is an immutable audit record of one quantity change.
// Corrections are new movements, never updates.
type Movement struct {
	ID            uuid.UUID
	ItemID        uuid.UUID
	ItemType      ItemType
	Direction     Direction
	Quantity      decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Reason        string
	SourceType    SourceType
	SourceID      uuid.UUID
	CreatedAt     time.Time
}

// NewMovement creates a movement record
func NewMovement(
	itemID uuid.UUID,
	itemType ItemType,
	direction Direction,
	quantity decimal.Decimal,
	balanceBefore decimal.Decimal,
	balanceAfter decimal.Decimal,
	sourceType SourceType,
	sourceID uuid.UUID,
	reason string,
) (*Movement, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Item ID cannot be empty")
	}
	if !itemType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid item type")
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid movement direction")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Quantity must be positive")
	}
	if !sourceType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid source type")
	}
	if sourceID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Source ID cannot be empty")
	}

	return &Movement{
		ID:            uuid.New(),
		ItemID:        itemID,
		ItemType:      itemType,
		Direction:     direction,
		Quantity:      quantity,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Reason:        reason,
		SourceType:    sourceType,
		SourceID:      sourceID,
		CreatedAt:     time.Now(),
	}, nil
}
