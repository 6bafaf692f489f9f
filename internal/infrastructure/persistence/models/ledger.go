package models

import (
	"time"

	"github.com/erp/returns/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntryModel is an append-only balance-affecting record.
// (party_id, sequence) keeps a party's chain gap-free and ordered; the unique
// (transaction_id, transaction_type) pair makes a posting idempotent.
type LedgerEntryModel struct {
	ID              uuid.UUID               `gorm:"type:uuid;primary_key"`
	PartyID         uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_party_sequence,priority:1"`
	Sequence        int64                   `gorm:"not null;uniqueIndex:idx_ledger_party_sequence,priority:2"`
	TransactionID   uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_transaction,priority:1"`
	TransactionType finance.TransactionType `gorm:"type:varchar(40);not null;uniqueIndex:idx_ledger_transaction,priority:2"`
	Date            time.Time               `gorm:"not null"`
	Debit           decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	Credit          decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceAfter    decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Notes           string                  `gorm:"type:varchar(500)"`
	CreatedAt       time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() finance.LedgerEntry {
	return finance.LedgerEntry{
		ID:              m.ID,
		PartyID:         m.PartyID,
		Sequence:        m.Sequence,
		TransactionID:   m.TransactionID,
		TransactionType: m.TransactionType,
		Date:            m.Date,
		Debit:           m.Debit,
		Credit:          m.Credit,
		BalanceAfter:    m.BalanceAfter,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
	}
}

// LedgerEntryModelFromDomain creates a persistence model from a domain LedgerEntry
func LedgerEntryModelFromDomain(e *finance.LedgerEntry) *LedgerEntryModel {
	return &LedgerEntryModel{
		ID:              e.ID,
		PartyID:         e.PartyID,
		Sequence:        e.Sequence,
		TransactionID:   e.TransactionID,
		TransactionType: e.TransactionType,
		Date:            e.Date,
		Debit:           e.Debit,
		Credit:          e.Credit,
		BalanceAfter:    e.BalanceAfter,
		Notes:           e.Notes,
		CreatedAt:       e.CreatedAt,
	}
}

// PartyBalanceModel is the cached current balance of a party.
// HasBalance is false for rows created only to hold the party lock.
type PartyBalanceModel struct {
	PartyID     uuid.UUID       `gorm:"type:uuid;primary_key"`
	Balance     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	HasBalance  bool            `gorm:"not null;default:false"`
	LastUpdated time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PartyBalanceModel) TableName() string {
	return "party_balances"
}

// ToDomain converts the persistence model to a domain PartyBalance
func (m *PartyBalanceModel) ToDomain() *finance.PartyBalance {
	return &finance.PartyBalance{
		PartyID:     m.PartyID,
		Balance:     m.Balance,
		LastUpdated: m.LastUpdated,
	}
}
