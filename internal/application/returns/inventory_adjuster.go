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

// DefaultMaxSwapAttempts bounds the compare-and-swap retries of one adjustment
const DefaultMaxSwapAttempts = 5

// Adjustment is the outcome of one applied stock change
type Adjustment struct {
	ItemID    uuid.UUID
	ItemType  inventory.ItemType
	Direction inventory.Direction
	Quantity  decimal.Decimal
	Before    decimal.Decimal
	After     decimal.Decimal
}

// InventoryAdjuster applies stock changes for return items across all categories
type InventoryAdjuster struct {
	stores          inventory.Stores
	recorder        inventory.MovementRecorder
	logger          *zap.Logger
	metrics         Metrics
	maxSwapAttempts int
}

// NewInventoryAdjuster creates an adjuster over the category stores
func NewInventoryAdjuster(stores inventory.Stores, recorder inventory.MovementRecorder, logger *zap.Logger) *InventoryAdjuster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryAdjuster{
		stores:          stores,
		recorder:        recorder,
		logger:          logger,
		metrics:         NopMetrics{},
		maxSwapAttempts: DefaultMaxSwapAttempts,
	}
}

// SetMetrics sets the metrics sink
func (a *InventoryAdjuster) SetMetrics(metrics Metrics) {
	if metrics != nil {
		a.metrics = metrics
	}
}

// SetMaxSwapAttempts overrides the compare-and-swap retry bound
func (a *InventoryAdjuster) SetMaxSwapAttempts(n int) {
	if n > 0 {
		a.maxSwapAttempts = n
	}
}

// CheckAvailable fails with INSUFFICIENT_STOCK when removing quantity of the
// item would take its stock below zero. It does not write anything.
func (a *InventoryAdjuster) CheckAvailable(ctx context.Context, itemType inventory.ItemType, itemID uuid.UUID, quantity decimal.Decimal) error {
	current, err := a.currentQuantity(ctx, itemType, itemID)
	if err != nil {
		return err
	}
	if current.LessThan(quantity) {
		return insufficientStock(itemType, itemID, current, quantity)
	}
	return nil
}

// Adjust moves the item's stock in the given direction and appends a movement record.
// The write is a compare-and-swap against the quantity just read, retried when a
// concurrent writer changed it in between.
func (a *InventoryAdjuster) Adjust(
	ctx context.Context,
	r *trade.Return,
	item trade.ReturnItem,
	direction inventory.Direction,
	reason string,
) (*Adjustment, error) {
	store, err := a.stores.Select(item.ItemType)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= a.maxSwapAttempts; attempt++ {
		current, err := a.read(ctx, store, item.ItemType, item.ItemID)
		if err != nil {
			return nil, err
		}
		if direction.IsDecrease() && current.LessThan(item.Quantity) {
			return nil, insufficientStock(item.ItemType, item.ItemID, current, item.Quantity)
		}

		next := direction.Apply(current, item.Quantity)
		swapped, err := store.CompareAndSetQuantity(ctx, item.ItemID, current, next)
		if err != nil {
			return nil, fmt.Errorf("failed to update stock for %s %s: %w", item.ItemType, item.ItemID, err)
		}
		if !swapped {
			a.logger.Debug("stock changed concurrently, retrying",
				zap.String("item_id", item.ItemID.String()),
				zap.String("item_type", item.ItemType.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}

		adj := &Adjustment{
			ItemID:    item.ItemID,
			ItemType:  item.ItemType,
			Direction: direction,
			Quantity:  item.Quantity,
			Before:    current,
			After:     next,
		}
		a.recordMovement(ctx, r, adj, reason)
		a.logger.Debug("stock adjusted",
			zap.String("return_id", r.ID.String()),
			zap.String("item_id", item.ItemID.String()),
			zap.String("item_type", item.ItemType.String()),
			zap.String("direction", direction.String()),
			zap.String("before", current.String()),
			zap.String("after", next.String()),
		)
		return adj, nil
	}

	return nil, shared.NewDomainError(shared.CodeConcurrencyConflict,
		fmt.Sprintf("Stock of %s %s kept changing, gave up after %d attempts", item.ItemType, item.ItemID, a.maxSwapAttempts))
}

// recordMovement appends the audit record. Failures are logged and counted only.
func (a *InventoryAdjuster) recordMovement(ctx context.Context, r *trade.Return, adj *Adjustment, reason string) {
	if a.recorder == nil {
		return
	}

	movement, err := inventory.NewMovement(
		adj.ItemID,
		adj.ItemType,
		adj.Direction,
		adj.Quantity,
		adj.Before,
		adj.After,
		r.ReturnType.SourceType(),
		r.ID,
		reason,
	)
	if err == nil {
		err = a.recorder.Append(ctx, movement)
	}
	if err != nil {
		a.logger.Warn("movement record not written",
			zap.String("code", shared.CodeAuditWriteFailed),
			zap.String("return_id", r.ID.String()),
			zap.String("item_id", adj.ItemID.String()),
			zap.String("item_type", adj.ItemType.String()),
			zap.String("direction", adj.Direction.String()),
			zap.String("quantity", adj.Quantity.String()),
			zap.Error(err),
		)
		a.metrics.RecordAuditWriteFailure(ctx, adj.ItemType)
	}
}

func (a *InventoryAdjuster) currentQuantity(ctx context.Context, itemType inventory.ItemType, itemID uuid.UUID) (decimal.Decimal, error) {
	store, err := a.stores.Select(itemType)
	if err != nil {
		return decimal.Zero, err
	}
	return a.read(ctx, store, itemType, itemID)
}

func (a *InventoryAdjuster) read(ctx context.Context, store inventory.CategoryStore, itemType inventory.ItemType, itemID uuid.UUID) (decimal.Decimal, error) {
	current, err := store.GetQuantity(ctx, itemID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return decimal.Zero, shared.WrapDomainError(shared.CodeNotFound,
				fmt.Sprintf("Inventory item %s (%s) not found", itemID, itemType), err)
		}
		return decimal.Zero, fmt.Errorf("failed to read stock for %s %s: %w", itemType, itemID, err)
	}
	return current, nil
}

func insufficientStock(itemType inventory.ItemType, itemID uuid.UUID, available, required decimal.Decimal) error {
	return shared.NewDomainError(shared.CodeInsufficientStock,
		fmt.Sprintf("Insufficient stock for %s %s: available %s, required %s", itemType, itemID, available, required))
}
