package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStore holds the append-only ledger and the party balance cache
type LedgerStore interface {
	// AppendEntry inserts a new entry; entries are never updated or deleted
	AppendEntry(ctx context.Context, entry *LedgerEntry) error
	// GetPartyBalance returns the cached balance, or nil when the party has none yet
	GetPartyBalance(ctx context.Context, partyID uuid.UUID) (*PartyBalance, error)
	// SetPartyBalance creates or overwrites the cached balance
	SetPartyBalance(ctx context.Context, partyID uuid.UUID, balance decimal.Decimal, at time.Time) error
	// CountEntries returns how many entries a party has
	CountEntries(ctx context.Context, partyID uuid.UUID) (int64, error)
	// FindEntriesByParty returns a party's entries in insertion order
	FindEntriesByParty(ctx context.Context, partyID uuid.UUID) ([]LedgerEntry, error)
	// FindEntriesByTransaction returns entries posted for a transaction in insertion order
	FindEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]LedgerEntry, error)
	// ListPartyIDs returns every party that has entries or a cached balance
	ListPartyIDs(ctx context.Context) ([]uuid.UUID, error)
	// WithPartyLock runs fn while holding an exclusive lock on the party's balance row.
	// The store passed to fn operates inside the same unit of work.
	WithPartyLock(ctx context.Context, partyID uuid.UUID, fn func(ctx context.Context, store LedgerStore) error) error
}
