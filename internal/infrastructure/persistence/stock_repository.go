package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormCategoryStore implements inventory.CategoryStore over one stock table
type GormCategoryStore struct {
	db    *gorm.DB
	table string
}

// NewGormCategoryStore creates a store over the given table
func NewGormCategoryStore(db *gorm.DB, table string) *GormCategoryStore {
	return &GormCategoryStore{db: db, table: table}
}

// NewGormStockStores creates a store per item category
func NewGormStockStores(db *gorm.DB) inventory.Stores {
	stores := make(inventory.Stores, len(models.StockTables))
	for itemType, table := range models.StockTables {
		stores[itemType] = NewGormCategoryStore(db, table)
	}
	return stores
}

// Table returns the table this store reads and writes
func (s *GormCategoryStore) Table() string {
	return s.table
}

// GetQuantity returns the current quantity of an item
func (s *GormCategoryStore) GetQuantity(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	var row models.StockItemModel
	err := s.db.WithContext(ctx).Table(s.table).Select("id", "quantity").Take(&row, "id = ?", itemID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, shared.ErrNotFound
		}
		return decimal.Zero, err
	}
	return row.Quantity, nil
}

// SetQuantity overwrites the quantity unconditionally
func (s *GormCategoryStore) SetQuantity(ctx context.Context, itemID uuid.UUID, quantity decimal.Decimal) error {
	result := s.db.WithContext(ctx).Table(s.table).
		Where("id = ?", itemID).
		Updates(map[string]any{"quantity": quantity, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CompareAndSetQuantity writes next only while the stored quantity equals expected
func (s *GormCategoryStore) CompareAndSetQuantity(ctx context.Context, itemID uuid.UUID, expected, next decimal.Decimal) (bool, error) {
	result := s.db.WithContext(ctx).Table(s.table).
		Where("id = ? AND quantity = ?", itemID, expected).
		Updates(map[string]any{"quantity": next, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
