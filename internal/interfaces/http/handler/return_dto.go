package handler

import (
	"time"

	"github.com/erp/returns/internal/application/returns"
	"github.com/erp/returns/internal/domain/finance"
	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnFormRequest is the submitted return form. Business rules (an invoice is
// chosen, at least one line selected, quantities within range) are checked by
// the validation service so that the form endpoint can report them as messages.
type ReturnFormRequest struct {
	InvoiceID  string                  `json:"invoice_id" binding:"omitempty,uuid"`
	ReturnType string                  `json:"return_type" binding:"omitempty,oneof=sales_return purchase_return"`
	Date       *time.Time              `json:"date"`
	Notes      string                  `json:"notes" binding:"max=2000"`
	Amount     *decimal.Decimal        `json:"amount"`
	Items      []ReturnFormItemRequest `json:"items" binding:"dive"`
}

// ReturnFormItemRequest is one line of the return form
type ReturnFormItemRequest struct {
	ItemID      string          `json:"item_id" binding:"required,uuid"`
	ItemType    string          `json:"item_type" binding:"required,oneof=raw_material packaging_material semi_finished finished_product"`
	ItemName    string          `json:"item_name" binding:"max=200"`
	Selected    bool            `json:"selected"`
	Quantity    decimal.Decimal `json:"quantity"`
	MaxQuantity decimal.Decimal `json:"max_quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// toForm converts the request into the application form. Binding has already
// checked the UUIDs, so parse failures cannot happen here.
func (r ReturnFormRequest) toForm() returns.ReturnForm {
	form := returns.ReturnForm{
		ReturnType: trade.ReturnType(r.ReturnType),
		Notes:      r.Notes,
		Amount:     r.Amount,
		Items:      make([]returns.FormItem, 0, len(r.Items)),
	}
	if r.InvoiceID != "" {
		id := uuid.MustParse(r.InvoiceID)
		form.InvoiceID = &id
	}
	if r.Date != nil {
		form.Date = *r.Date
	}
	for _, item := range r.Items {
		form.Items = append(form.Items, returns.FormItem{
			ItemID:      uuid.MustParse(item.ItemID),
			ItemType:    inventory.ItemType(item.ItemType),
			ItemName:    item.ItemName,
			Selected:    item.Selected,
			Quantity:    item.Quantity,
			MaxQuantity: item.MaxQuantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return form
}

// DefaultPageSize is the page size of a listing that names none
const DefaultPageSize = 20

// ListReturnsRequest holds the query of a return listing
type ListReturnsRequest struct {
	ReturnType string `form:"return_type" binding:"omitempty,oneof=sales_return purchase_return"`
	Status     string `form:"status" binding:"omitempty,oneof=draft confirmed cancelled"`
	PartyID    string `form:"party_id" binding:"omitempty,uuid"`
	InvoiceID  string `form:"invoice_id" binding:"omitempty,uuid"`
	Search     string `form:"search" binding:"max=100"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by" binding:"max=50"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (r ListReturnsRequest) toFilter() trade.ReturnFilter {
	filter := trade.ReturnFilter{
		ReturnType: trade.ReturnType(r.ReturnType),
		Status:     trade.ReturnStatus(r.Status),
		Search:     r.Search,
		Page:       r.Page,
		PageSize:   r.PageSize,
		OrderBy:    r.OrderBy,
		OrderDir:   r.OrderDir,
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = DefaultPageSize
	}
	if r.PartyID != "" {
		id := uuid.MustParse(r.PartyID)
		filter.PartyID = &id
	}
	if r.InvoiceID != "" {
		id := uuid.MustParse(r.InvoiceID)
		filter.InvoiceID = &id
	}
	return filter
}

// ReturnFormResponse is a prefilled return form for an invoice
type ReturnFormResponse struct {
	InvoiceID string             `json:"invoice_id"`
	Items     []returns.FormItem `json:"items"`
}

// ReturnResponse represents a return in API responses
type ReturnResponse struct {
	ID               string               `json:"id"`
	ReturnNumber     string               `json:"return_number"`
	ReturnType       string               `json:"return_type"`
	Status           string               `json:"status"`
	InvoiceID        *string              `json:"invoice_id,omitempty"`
	PartyID          *string              `json:"party_id,omitempty"`
	Date             time.Time            `json:"date"`
	Notes            string               `json:"notes,omitempty"`
	Amount           decimal.Decimal      `json:"amount"`
	AmountOverridden bool                 `json:"amount_overridden"`
	Items            []ReturnItemResponse `json:"items"`
	Version          int                  `json:"version"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ReturnItemResponse represents a return line in API responses
type ReturnItemResponse struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"item_id"`
	ItemType  string          `json:"item_type"`
	ItemName  string          `json:"item_name,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// TransitionResponse reports the outcome of confirm or cancel
type TransitionResponse struct {
	ReturnID string `json:"return_id"`
	Action   string `json:"action"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// MovementResponse is one stock movement caused by a return
type MovementResponse struct {
	ID            string          `json:"id"`
	ItemID        string          `json:"item_id"`
	ItemType      string          `json:"item_type"`
	Direction     string          `json:"direction"`
	Quantity      decimal.Decimal `json:"quantity"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reason        string          `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// LedgerEntryResponse is one ledger entry of a party
type LedgerEntryResponse struct {
	ID              string          `json:"id"`
	Sequence        int64           `json:"sequence"`
	TransactionID   string          `json:"transaction_id"`
	TransactionType string          `json:"transaction_type"`
	Date            time.Time       `json:"date"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	Notes           string          `json:"notes,omitempty"`
}

// PartyLedgerResponse is the ledger of a party with its cached balance.
// InSync is false when the cached balance disagrees with the replayed entries.
type PartyLedgerResponse struct {
	PartyID         string                `json:"party_id"`
	Balance         *decimal.Decimal      `json:"balance"`
	LastUpdated     *time.Time            `json:"last_updated,omitempty"`
	ReplayedBalance decimal.Decimal       `json:"replayed_balance"`
	InSync          bool                  `json:"in_sync"`
	Entries         []LedgerEntryResponse `json:"entries"`
}

func toReturnResponse(r *trade.Return) ReturnResponse {
	resp := ReturnResponse{
		ID:               r.ID.String(),
		ReturnNumber:     r.ReturnNumber,
		ReturnType:       r.ReturnType.String(),
		Status:           r.Status.String(),
		InvoiceID:        uuidString(r.InvoiceID),
		PartyID:          uuidString(r.PartyID),
		Date:             r.Date,
		Notes:            r.Notes,
		Amount:           r.Amount,
		AmountOverridden: r.AmountOverridden,
		Items:            make([]ReturnItemResponse, 0, len(r.Items)),
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	for _, item := range r.Items {
		resp.Items = append(resp.Items, ReturnItemResponse{
			ID:        item.ID.String(),
			ItemID:    item.ItemID.String(),
			ItemType:  item.ItemType.String(),
			ItemName:  item.ItemName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		})
	}
	return resp
}

func toMovementResponses(movements []inventory.Movement) []MovementResponse {
	resp := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		resp = append(resp, MovementResponse{
			ID:            m.ID.String(),
			ItemID:        m.ItemID.String(),
			ItemType:      m.ItemType.String(),
			Direction:     m.Direction.String(),
			Quantity:      m.Quantity,
			BalanceBefore: m.BalanceBefore,
			BalanceAfter:  m.BalanceAfter,
			Reason:        m.Reason,
			CreatedAt:     m.CreatedAt,
		})
	}
	return resp
}

func toPartyLedgerResponse(partyID uuid.UUID, balance *finance.PartyBalance, entries []finance.LedgerEntry) PartyLedgerResponse {
	replayed := finance.ReplayBalance(entries)
	resp := PartyLedgerResponse{
		PartyID:         partyID.String(),
		ReplayedBalance: replayed,
		InSync:          balance == nil && len(entries) == 0,
		Entries:         make([]LedgerEntryResponse, 0, len(entries)),
	}
	if balance != nil {
		resp.Balance = &balance.Balance
		resp.LastUpdated = &balance.LastUpdated
		resp.InSync = balance.Balance.Equal(replayed)
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, LedgerEntryResponse{
			ID:              e.ID.String(),
			Sequence:        e.Sequence,
			TransactionID:   e.TransactionID.String(),
			TransactionType: e.TransactionType.String(),
			Date:            e.Date,
			Debit:           e.Debit,
			Credit:          e.Credit,
			BalanceAfter:    e.BalanceAfter,
			Notes:           e.Notes,
		})
	}
	return resp
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
