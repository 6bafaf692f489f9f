package models

import (
	"time"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnModel is the persistence model for the Return aggregate root.
type ReturnModel struct {
	AggregateModel
	ReturnNumber     string             `gorm:"type:varchar(50);not null;uniqueIndex:idx_returns_number"`
	ReturnType       trade.ReturnType   `gorm:"type:varchar(20);not null;index"`
	InvoiceID        *uuid.UUID         `gorm:"type:uuid;index"`
	PartyID          *uuid.UUID         `gorm:"type:uuid;index"`
	Date             time.Time          `gorm:"not null"`
	Notes            string             `gorm:"type:text"`
	Amount           decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	AmountOverridden bool               `gorm:"not null;default:false"`
	Status           trade.ReturnStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	Items            []ReturnItemModel  `gorm:"foreignKey:ReturnID;references:ID"`
}

// TableName returns the table name for GORM
func (ReturnModel) TableName() string {
	return "returns"
}

// ToDomain converts the persistence model to a domain Return.
// Domain events are never persisted, so the returned aggregate has none queued.
func (m *ReturnModel) ToDomain() *trade.Return {
	r := &trade.Return{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ReturnNumber:      m.ReturnNumber,
		ReturnType:        m.ReturnType,
		InvoiceID:         m.InvoiceID,
		PartyID:           m.PartyID,
		Date:              m.Date,
		Notes:             m.Notes,
		Amount:            m.Amount,
		AmountOverridden:  m.AmountOverridden,
		Status:            m.Status,
		Items:             make([]trade.ReturnItem, len(m.Items)),
	}
	for i := range m.Items {
		r.Items[i] = m.Items[i].ToDomain()
	}
	return r
}

// FromDomain populates the persistence model from a domain Return
func (m *ReturnModel) FromDomain(r *trade.Return) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ReturnNumber = r.ReturnNumber
	m.ReturnType = r.ReturnType
	m.InvoiceID = r.InvoiceID
	m.PartyID = r.PartyID
	m.Date = r.Date
	m.Notes = r.Notes
	m.Amount = r.Amount
	m.AmountOverridden = r.AmountOverridden
	m.Status = r.Status
	m.Items = make([]ReturnItemModel, len(r.Items))
	for i := range r.Items {
		m.Items[i] = ReturnItemModelFromDomain(&r.Items[i])
		m.Items[i].ReturnID = r.ID
	}
}

// ReturnModelFromDomain creates a new persistence model from a domain Return
func ReturnModelFromDomain(r *trade.Return) *ReturnModel {
	m := &ReturnModel{}
	m.FromDomain(r)
	return m
}

// ReturnItemModel is the persistence model for one return line.
type ReturnItemModel struct {
	ID        uuid.UUID          `gorm:"type:uuid;primary_key"`
	ReturnID  uuid.UUID          `gorm:"type:uuid;not null;index"`
	ItemID    uuid.UUID          `gorm:"type:uuid;not null;index"`
	ItemType  inventory.ItemType `gorm:"type:varchar(30);not null"`
	ItemName  string             `gorm:"type:varchar(200)"`
	Quantity  decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	UnitPrice decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	Total     decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReturnItemModel) TableName() string {
	return "return_items"
}

// ToDomain converts the persistence model to a domain ReturnItem
func (m *ReturnItemModel) ToDomain() trade.ReturnItem {
	return trade.ReturnItem{
		ID:        m.ID,
		ReturnID:  m.ReturnID,
		ItemID:    m.ItemID,
		ItemType:  m.ItemType,
		ItemName:  m.ItemName,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		Total:     m.Total,
		CreatedAt: m.CreatedAt,
	}
}

// ReturnItemModelFromDomain creates a persistence model from a domain ReturnItem
func ReturnItemModelFromDomain(item *trade.ReturnItem) ReturnItemModel {
	return ReturnItemModel{
		ID:        item.ID,
		ReturnID:  item.ReturnID,
		ItemID:    item.ItemID,
		ItemType:  item.ItemType,
		ItemName:  item.ItemName,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		Total:     item.Total,
		CreatedAt: item.CreatedAt,
	}
}
