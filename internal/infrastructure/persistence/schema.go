package persistence

import (
	"fmt"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AutoMigrate creates every table the service reads or writes.
// Production schemas come from the SQL migrations; this is for tests and local runs.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ReturnModel{},
		&models.ReturnItemModel{},
		&models.InvoiceModel{},
		&models.InvoiceLineModel{},
		&models.StockMovementModel{},
		&models.LedgerEntryModel{},
		&models.PartyBalanceModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	for _, itemType := range inventory.AllItemTypes() {
		table := models.StockTables[itemType]
		if err := db.Table(table).AutoMigrate(&models.StockItemModel{}); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", table, err)
		}
	}
	return nil
}
