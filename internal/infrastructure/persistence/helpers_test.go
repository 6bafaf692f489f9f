package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/erp/returns/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockGormDB opens GORM on a sqlmock connection using the postgres dialect
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

// newSQLiteDB opens an in-memory database with the full schema.
// A single connection keeps every query on the same in-memory database.
func newSQLiteDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func seedStock(t *testing.T, db *gorm.DB, itemType inventory.ItemType, qty string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Table(models.StockTables[itemType]).Create(&models.StockItemModel{
		ID:        id,
		Name:      "item " + id.String()[:8],
		Quantity:  decimal.RequireFromString(qty),
		UpdatedAt: time.Now(),
	}).Error)
	return id
}

type lineSpec struct {
	itemID   uuid.UUID
	itemType inventory.ItemType
	qty      string
	price    string
}

func newDraft(t *testing.T, returnType trade.ReturnType, invoiceID, partyID *uuid.UUID, lines ...lineSpec) *trade.Return {
	t.Helper()
	r, err := trade.NewReturn(returnType, "R-"+uuid.NewString()[:8], time.Now())
	require.NoError(t, err)
	if invoiceID != nil {
		require.NoError(t, r.SetInvoice(*invoiceID, partyID))
	} else {
		r.PartyID = partyID
	}
	for _, l := range lines {
		item, err := trade.NewReturnItem(l.itemID, l.itemType, "Item", decimal.RequireFromString(l.qty), decimal.RequireFromString(l.price))
		require.NoError(t, err)
		require.NoError(t, r.AddItem(item))
	}
	return r
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
