package persistence

import (
	"context"

	"github.com/erp/returns/internal/domain/inventory"
	"github.com/erp/returns/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMovementRepository appends and reads stock movements
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Append inserts a movement; movements are never updated
func (r *GormMovementRepository) Append(ctx context.Context, movement *inventory.Movement) error {
	return r.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(movement)).Error
}

// FindBySource returns every movement caused by a document, oldest first
func (r *GormMovementRepository) FindBySource(ctx context.Context, sourceID uuid.UUID) ([]inventory.Movement, error) {
	var rows []models.StockMovementModel
	if err := r.db.WithContext(ctx).Where("source_id = ?", sourceID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]inventory.Movement, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, nil
}
