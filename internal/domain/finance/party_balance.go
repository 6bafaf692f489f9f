package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartyBalance is the cached current balance of a party.
// Positive means the party owes the business.
type PartyBalance struct {
	PartyID     uuid.UUID
	Balance     decimal.Decimal
	LastUpdated time.Time
}

// NewPartyBalance creates a zero balance for a party seen for the first time
func NewPartyBalance(partyID uuid.UUID) *PartyBalance {
	return &PartyBalance{
		PartyID:     partyID,
		Balance:     decimal.Zero,
		LastUpdated: time.Now(),
	}
}
