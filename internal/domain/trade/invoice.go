package trade

import (
	"time"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceType distinguishes sales invoices from purchase invoices
type InvoiceType string

const (
	InvoiceTypeSales    InvoiceType = "sales"
	InvoiceTypePurchase InvoiceType = "purchase"
)

// ReturnType returns the kind of return raised against this invoice type
func (t InvoiceType) ReturnType() ReturnType {
	if t == InvoiceTypePurchase {
		return ReturnTypePurchase
	}
	return ReturnTypeSales
}

// InvoiceLine is one line of a source invoice
type InvoiceLine struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	ItemType  inventory.ItemType
	ItemName  string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Invoice is the read model of a source invoice a return refers to.
// Invoices are owned elsewhere; this package only reads them.
type Invoice struct {
	ID            uuid.UUID
	InvoiceNumber string
	InvoiceType   InvoiceType
	PartyID       *uuid.UUID
	Date          time.Time
	Lines         []InvoiceLine
}

// FindLine returns the line for itemID, or nil
func (i *Invoice) FindLine(itemID uuid.UUID) *InvoiceLine {
	for idx := range i.Lines {
		if i.Lines[idx].ItemID == itemID {
			return &i.Lines[idx]
		}
	}
	return nil
}
