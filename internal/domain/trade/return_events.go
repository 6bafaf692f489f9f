package trade

import (
	"github.com/erp/returns/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants for Return
const (
	EventTypeReturnConfirmed = "ReturnConfirmed"
	EventTypeReturnCancelled = "ReturnCancelled"
	EventTypeReturnDeleted   = "ReturnDeleted"
)

// ReturnItemInfo represents item information for events
type ReturnItemInfo struct {
	ItemID    uuid.UUID       `json:"item_id"`
	ItemType  string          `json:"item_type"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// ReturnTransitionEvent carries the state of a return after a lifecycle action
type ReturnTransitionEvent struct {
	shared.BaseDomainEvent
	ReturnID     uuid.UUID        `json:"return_id"`
	ReturnNumber string           `json:"return_number"`
	ReturnType   ReturnType       `json:"return_type"`
	PartyID      *uuid.UUID       `json:"party_id,omitempty"`
	Amount       decimal.Decimal  `json:"amount"`
	Status       ReturnStatus     `json:"status"`
	Items        []ReturnItemInfo `json:"items"`
}

func newReturnTransitionEvent(eventType string, r *Return) *ReturnTransitionEvent {
	items := make([]ReturnItemInfo, len(r.Items))
	for i, item := range r.Items {
		items[i] = ReturnItemInfo{
			ItemID:    item.ItemID,
			ItemType:  item.ItemType.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		}
	}
	return &ReturnTransitionEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeReturn, r.ID),
		ReturnID:        r.ID,
		ReturnNumber:    r.ReturnNumber,
		ReturnType:      r.ReturnType,
		PartyID:         r.PartyID,
		Amount:          r.Amount,
		Status:          r.Status,
		Items:           items,
	}
}

// NewReturnConfirmedEvent creates the event raised when a return is confirmed
func NewReturnConfirmedEvent(r *Return) *ReturnTransitionEvent {
	return newReturnTransitionEvent(EventTypeReturnConfirmed, r)
}

// NewReturnCancelledEvent creates the event raised when a return is cancelled
func NewReturnCancelledEvent(r *Return) *ReturnTransitionEvent {
	return newReturnTransitionEvent(EventTypeReturnCancelled, r)
}

// NewReturnDeletedEvent creates the event raised when a draft return is deleted
func NewReturnDeletedEvent(r *Return) *ReturnTransitionEvent {
	return newReturnTransitionEvent(EventTypeReturnDeleted, r)
}
