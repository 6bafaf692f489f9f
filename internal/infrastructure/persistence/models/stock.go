package models

import (
	"time"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockTables maps each item category to the table holding its stock rows
var StockTables = map[inventory.ItemType]string{
	inventory.ItemTypeRawMaterial:       "raw_materials",
	inventory.ItemTypePackagingMaterial: "packaging_materials",
	inventory.ItemTypeSemiFinished:      "semi_finished_products",
	inventory.ItemTypeFinishedProduct:   "finished_products",
}

// StockItemModel is a stock row. The four category tables share this shape,
// so the table is chosen per query with db.Table.
type StockItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// StockMovementModel is an append-only movement record
type StockMovementModel struct {
	ID            uuid.UUID            `gorm:"type:uuid;primary_key"`
	ItemID        uuid.UUID            `gorm:"type:uuid;not null;index"`
	ItemType      inventory.ItemType   `gorm:"type:varchar(30);not null"`
	Direction     inventory.Direction  `gorm:"type:varchar(10);not null"`
	Quantity      decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	BalanceBefore decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	BalanceAfter  decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Reason        string               `gorm:"type:varchar(500)"`
	SourceType    inventory.SourceType `gorm:"type:varchar(30);not null"`
	SourceID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	CreatedAt     time.Time            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain Movement
func (m *StockMovementModel) ToDomain() inventory.Movement {
	return inventory.Movement{
		ID:            m.ID,
		ItemID:        m.ItemID,
		ItemType:      m.ItemType,
		Direction:     m.Direction,
		Quantity:      m.Quantity,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Reason:        m.Reason,
		SourceType:    m.SourceType,
		SourceID:      m.SourceID,
		CreatedAt:     m.CreatedAt,
	}
}

// StockMovementModelFromDomain creates a persistence model from a domain Movement
func StockMovementModelFromDomain(mv *inventory.Movement) *StockMovementModel {
	return &StockMovementModel{
		ID:            mv.ID,
		ItemID:        mv.ItemID,
		ItemType:      mv.ItemType,
		Direction:     mv.Direction,
		Quantity:      mv.Quantity,
		BalanceBefore: mv.BalanceBefore,
		BalanceAfter:  mv.BalanceAfter,
		Reason:        mv.Reason,
		SourceType:    mv.SourceType,
		SourceID:      mv.SourceID,
		CreatedAt:     mv.CreatedAt,
	}
}
