package trade

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnRepository stores return documents
type ReturnRepository interface {
	// FindByID loads the return header with items, shared.ErrNotFound if absent
	FindByID(ctx context.Context, id uuid.UUID) (*Return, error)
	// Save inserts a new draft return with its items
	Save(ctx context.Context, r *Return) error
	// UpdateStatus moves a return from one status to another only if the stored
	// status and version still match. A lost race fails with shared.ErrAlreadyProcessed.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to ReturnStatus, expectedVersion int) error
	// DeleteDraft removes a draft return and its items if the version still matches
	DeleteDraft(ctx context.Context, id uuid.UUID, expectedVersion int) error
	// FindWithPartyByStatus lists returns that carry a party and are in one of the statuses
	FindWithPartyByStatus(ctx context.Context, statuses ...ReturnStatus) ([]Return, error)
	// SumReturnedQuantity totals quantities of an item already returned against an invoice,
	// counting draft and confirmed returns
	SumReturnedQuantity(ctx context.Context, invoiceID, itemID uuid.UUID) (decimal.Decimal, error)
}

// ReturnFilter narrows and pages a return listing. Zero values mean no
// restriction; OrderBy must already be a whitelisted column.
type ReturnFilter struct {
	ReturnType ReturnType
	Status     ReturnStatus
	PartyID    *uuid.UUID
	InvoiceID  *uuid.UUID
	Search     string
	Page       int
	PageSize   int
	OrderBy    string
	OrderDir   string
}

// ReturnLister lists return headers for operators
type ReturnLister interface {
	// List returns one page of returns without items and the total matching count
	List(ctx context.Context, filter ReturnFilter) ([]Return, int64, error)
}

// InvoiceReader reads source invoices
type InvoiceReader interface {
	// FindInvoiceByID loads an invoice with lines, shared.ErrNotFound if absent
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
}
