package models

import (
	"time"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the read model of a source invoice. Rows are written by
// the invoicing service; this service only reads them.
type InvoiceModel struct {
	BaseModel
	InvoiceNumber string             `gorm:"type:varchar(50);not null;uniqueIndex"`
	InvoiceType   trade.InvoiceType  `gorm:"type:varchar(20);not null"`
	PartyID       *uuid.UUID         `gorm:"type:uuid;index"`
	Date          time.Time          `gorm:"not null"`
	Lines         []InvoiceLineModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *trade.Invoice {
	inv := &trade.Invoice{
		ID:            m.ID,
		InvoiceNumber: m.InvoiceNumber,
		InvoiceType:   m.InvoiceType,
		PartyID:       m.PartyID,
		Date:          m.Date,
		Lines:         make([]trade.InvoiceLine, len(m.Lines)),
	}
	for i, l := range m.Lines {
		inv.Lines[i] = trade.InvoiceLine{
			ID:        l.ID,
			ItemID:    l.ItemID,
			ItemType:  l.ItemType,
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return inv
}

// InvoiceLineModel is one line of a source invoice
type InvoiceLineModel struct {
	ID        uuid.UUID          `gorm:"type:uuid;primary_key"`
	InvoiceID uuid.UUID          `gorm:"type:uuid;not null;index"`
	ItemID    uuid.UUID          `gorm:"type:uuid;not null"`
	ItemType  inventory.ItemType `gorm:"type:varchar(30);not null"`
	ItemName  string             `gorm:"type:varchar(200)"`
	Quantity  decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	UnitPrice decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}
