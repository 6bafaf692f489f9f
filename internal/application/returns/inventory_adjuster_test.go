package returns

import (
	"context"
	"testing"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryAdjuster_RetriesLostSwaps(t *testing.T) {
	f := newFixture()
	r := f.draft(t, trade.ReturnTypeSales, nil,
		itemSpec{itemType: inventory.ItemTypeSemiFinished, qty: "2", price: "1", stock: "3"},
	)
	store := f.stores[inventory.ItemTypeSemiFinished]
	store.conflicts = 2

	adj, err := f.adjuster.Adjust(context.Background(), r, r.Items[0], inventory.DirectionIn, "test")
	require.NoError(t, err)
	assert.Equal(t, 3, store.casCalls)
	assert.True(t, adj.Before.Equal(dec("3")))
	assert.True(t, adj.After.Equal(dec("5")))
	assert.True(t, f.stock(r.Items[0]).Equal(dec("5")))

	movements := f.movements.all()
	require.Len(t, movements, 1)
	assert.Equal(t, "test", movements[0].Reason)
	assert.Equal(t, inventory.ItemTypeSemiFinished, movements[0].ItemType)
}

func TestInventoryAdjuster_MaxSwapAttempts(t *testing.T) {
	f := newFixture()
	r := f.draft(t, trade.ReturnTypeSales, nil,
		itemSpec{itemType: inventory.ItemTypeRawMaterial, qty: "1", price: "1", stock: "3"},
	)
	f.adjuster.SetMaxSwapAttempts(2)
	f.stores[inventory.ItemTypeRawMaterial].conflicts = 2

	_, err := f.adjuster.Adjust(context.Background(), r, r.Items[0], inventory.DirectionOut, "test")
	assert.True(t, shared.IsCode(err, shared.CodeConcurrencyConflict))
	assert.True(t, f.stock(r.Items[0]).Equal(dec("3")))
	assert.Empty(t, f.movements.all())
}

func TestInventoryAdjuster_NeverGoesNegative(t *testing.T) {
	f := newFixture()
	r := f.draft(t, trade.ReturnTypePurchase, nil,
		itemSpec{itemType: inventory.ItemTypePackagingMaterial, qty: "5", price: "1", stock: "4.5"},
	)

	_, err := f.adjuster.Adjust(context.Background(), r, r.Items[0], inventory.DirectionOut, "test")
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))
	assert.Contains(t, err.Error(), "available 4.5, required 5")
	assert.True(t, f.stock(r.Items[0]).Equal(dec("4.5")))
}

func TestInventoryAdjuster_UnknownItem(t *testing.T) {
	f := newFixture()
	r := f.draft(t, trade.ReturnTypeSales, nil)
	item := trade.ReturnItem{ItemID: uuid.New(), ItemType: inventory.ItemTypeFinishedProduct, Quantity: dec("1")}

	_, err := f.adjuster.Adjust(context.Background(), r, item, inventory.DirectionIn, "test")
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))

	err = f.adjuster.CheckAvailable(context.Background(), inventory.ItemTypeFinishedProduct, item.ItemID, dec("1"))
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))
}

func TestInventoryAdjuster_UnknownCategory(t *testing.T) {
	f := newFixture()
	r := f.draft(t, trade.ReturnTypeSales, nil)
	item := trade.ReturnItem{ItemID: uuid.New(), ItemType: inventory.ItemType("service"), Quantity: dec("1")}

	_, err := f.adjuster.Adjust(context.Background(), r, item, inventory.DirectionIn, "test")
	assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
}

func TestInventoryAdjuster_CheckAvailable(t *testing.T) {
	f := newFixture()
	itemID := uuid.New()
	f.stores[inventory.ItemTypeRawMaterial].put(itemID, "2")

	assert.NoError(t, f.adjuster.CheckAvailable(context.Background(), inventory.ItemTypeRawMaterial, itemID, dec("2")))
	err := f.adjuster.CheckAvailable(context.Background(), inventory.ItemTypeRawMaterial, itemID, dec("2.01"))
	assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))
}
