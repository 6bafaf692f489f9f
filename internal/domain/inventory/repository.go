package inventory

import (
	"context"
	"fmt"

	"github.com/erp/returns/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryStore holds on-hand quantities for a single item category
type CategoryStore interface {
	// GetQuantity returns the current quantity, shared.ErrNotFound if the item is unknown
	GetQuantity(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error)
	// SetQuantity overwrites the quantity unconditionally
	SetQuantity(ctx context.Context, itemID uuid.UUID, quantity decimal.Decimal) error
	// CompareAndSetQuantity writes next only if the stored quantity still equals expected.
	// It returns false without error when another writer got there first.
	CompareAndSetQuantity(ctx context.Context, itemID uuid.UUID, expected, next decimal.Decimal) (bool, error)
}

// Stores selects the CategoryStore for an item type
type Stores map[ItemType]CategoryStore

// Select returns the store holding items of the given type
func (s Stores) Select(itemType ItemType) (CategoryStore, error) {
	if !itemType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown item type: %q", itemType))
	}
	store, ok := s[itemType]
	if !ok || store == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("No inventory store configured for %s", itemType))
	}
	return store, nil
}

// GetQuantity reads the quantity of (itemType, itemID)
func (s Stores) GetQuantity(ctx context.Context, itemType ItemType, itemID uuid.UUID) (decimal.Decimal, error) {
	store, err := s.Select(itemType)
	if err != nil {
		return decimal.Zero, err
	}
	return store.GetQuantity(ctx, itemID)
}

// SetQuantity writes the quantity of (itemType, itemID)
func (s Stores) SetQuantity(ctx context.Context, itemType ItemType, itemID uuid.UUID, quantity decimal.Decimal) error {
	store, err := s.Select(itemType)
	if err != nil {
		return err
	}
	return store.SetQuantity(ctx, itemID, quantity)
}

// MovementRecorder appends immutable movement records
type MovementRecorder interface {
	Append(ctx context.Context, movement *Movement) error
}

// MovementReader reads the movement log
type MovementReader interface {
	FindBySource(ctx context.Context, sourceID uuid.UUID) ([]Movement, error)
}
