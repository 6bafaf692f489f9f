package finance

import (
	"time"

	"github.com/erp/returns/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType names the business event behind a ledger entry
type TransactionType string

const (
	TransactionTypeSalesReturn            TransactionType = "sales_return"
	TransactionTypeSalesReturnReversal    TransactionType = "sales_return_reversal"
	TransactionTypePurchaseReturn         TransactionType = "purchase_return"
	TransactionTypePurchaseReturnReversal TransactionType = "purchase_return_reversal"
)

// IsValid returns true if the transaction type is known
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSalesReturn,
		TransactionTypeSalesReturnReversal,
		TransactionTypePurchaseReturn,
		TransactionTypePurchaseReturnReversal:
		return true
	}
	return false
}

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsReversal returns true for entries that undo an earlier posting
func (t TransactionType) IsReversal() bool {
	return t == TransactionTypeSalesReturnReversal || t == TransactionTypePurchaseReturnReversal
}

// LedgerEntry is an immutable balance-affecting record for a party.
// BalanceAfter is fixed at write time to the prior balance plus Debit minus Credit.
type LedgerEntry struct {
	ID              uuid.UUID
	PartyID         uuid.UUID
	Sequence        int64
	TransactionID   uuid.UUID
	TransactionType TransactionType
	Date            time.Time
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	BalanceAfter    decimal.Decimal
	Notes           string
	CreatedAt       time.Time
}

// NewLedgerEntry builds the entry that moves a party balance from prior by delta.
// A positive delta is a debit, a negative delta a credit.
func NewLedgerEntry(
	partyID uuid.UUID,
	transactionID uuid.UUID,
	txType TransactionType,
	date time.Time,
	prior decimal.Decimal,
	delta decimal.Decimal,
	notes string,
) (*LedgerEntry, error) {
	if partyID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Party ID cannot be empty")
	}
	if transactionID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Transaction ID cannot be empty")
	}
	if !txType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid ledger transaction type")
	}
	if delta.IsZero() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Ledger entry amount cannot be zero")
	}

	debit, credit := decimal.Zero, decimal.Zero
	if delta.IsPositive() {
		debit = delta
	} else {
		credit = delta.Neg()
	}
	if date.IsZero() {
		date = time.Now()
	}

	return &LedgerEntry{
		ID:              uuid.New(),
		PartyID:         partyID,
		TransactionID:   transactionID,
		TransactionType: txType,
		Date:            date,
		Debit:           debit,
		Credit:          credit,
		BalanceAfter:    prior.Add(delta),
		Notes:           notes,
		CreatedAt:       time.Now(),
	}, nil
}

// Net returns Debit minus Credit
func (e *LedgerEntry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// ReplayBalance accumulates Debit minus Credit from zero over entries in insertion order
func ReplayBalance(entries []LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for i := range entries {
		balance = balance.Add(entries[i].Net())
	}
	return balance
}
