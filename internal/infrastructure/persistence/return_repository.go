package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/domain/trade"
	"github.com/erp/returns/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReturnRepository implements trade.ReturnRepository using GORM
type GormReturnRepository struct {
	db *gorm.DB
}

// NewGormReturnRepository creates a new GormReturnRepository
func NewGormReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

// FindByID finds a return by ID with its items
func (r *GormReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Return, error) {
	var model models.ReturnModel
	if err := r.db.WithContext(ctx).Preload("Items", orderedItems).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save inserts a new return with its items in one transaction
func (r *GormReturnRepository) Save(ctx context.Context, ret *trade.Return) error {
	model := models.ReturnModelFromDomain(ret)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(model).Error; err != nil {
			return err
		}
		if len(model.Items) == 0 {
			return nil
		}
		return tx.Create(&model.Items).Error
	})
}

// UpdateStatus writes the new status only if status and version are unchanged.
// Zero affected rows means another request won the race.
func (r *GormReturnRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to trade.ReturnStatus, expectedVersion int) error {
	result := r.db.WithContext(ctx).Model(&models.ReturnModel{}).
		Where("id = ? AND status = ? AND version = ?", id, from, expectedVersion).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyProcessed
	}
	return nil
}

// DeleteDraft removes a draft return and its items if the version still matches
func (r *GormReturnRepository) DeleteDraft(ctx context.Context, id uuid.UUID, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND status = ? AND version = ?", id, trade.ReturnStatusDraft, expectedVersion).
			Delete(&models.ReturnModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrAlreadyProcessed
		}
		return tx.Where("return_id = ?", id).Delete(&models.ReturnItemModel{}).Error
	})
}

// FindWithPartyByStatus lists returns that carry a party, ordered by return number
func (r *GormReturnRepository) FindWithPartyByStatus(ctx context.Context, statuses ...trade.ReturnStatus) ([]trade.Return, error) {
	if len(statuses) == 0 {
		return []trade.Return{}, nil
	}
	var rows []models.ReturnModel
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("party_id IS NOT NULL AND status IN ?", statuses).
		Order("return_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]trade.Return, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// List returns one page of return headers matching filter, with the total count
func (r *GormReturnRepository) List(ctx context.Context, filter trade.ReturnFilter) ([]trade.Return, int64, error) {
	query := applyReturnFilter(r.db.WithContext(ctx).Model(&models.ReturnModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(ReturnOrder(filter.OrderBy, filter.OrderDir)).Order("id ASC")
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var rows []models.ReturnModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	result := make([]trade.Return, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, total, nil
}

func applyReturnFilter(query *gorm.DB, filter trade.ReturnFilter) *gorm.DB {
	if filter.ReturnType != "" {
		query = query.Where("return_type = ?", filter.ReturnType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PartyID != nil {
		query = query.Where("party_id = ?", *filter.PartyID)
	}
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(return_number) LIKE ? OR LOWER(notes) LIKE ?", pattern, pattern)
	}
	return query
}

// SumReturnedQuantity totals the quantity of an item on draft and confirmed returns of an invoice
func (r *GormReturnRepository) SumReturnedQuantity(ctx context.Context, invoiceID, itemID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Table("return_items").
		Select("SUM(return_items.quantity)").
		Joins("JOIN returns ON returns.id = return_items.return_id").
		Where("returns.invoice_id = ? AND return_items.item_id = ? AND returns.status IN ?",
			invoiceID, itemID, []trade.ReturnStatus{trade.ReturnStatusDraft, trade.ReturnStatusConfirmed}).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
