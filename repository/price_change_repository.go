// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/utils"
	"gorm.io/gorm"
)

// PriceChangeRepositoryImpl implements PriceChangeRepository interface
type PriceChangeRepositoryImpl struct {
	*BaseRepository[models.PendingPriceChange, models.PendingPriceChangeFilter]
}

// NewPriceChangeRepository creates a new price change repository
func NewPriceChangeRepository(db *gorm.DB) PriceChangeRepository {
	return &PriceChangeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PendingPriceChange, models.PendingPriceChangeFilter](db),
	}
}

func (r *PriceChangeRepositoryImpl) applyFilter(db *gorm.DB, filter models.PendingPriceChangeFilter) *gorm.DB {
	query := db
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.ScheduleID != nil {
		query = query.Where("schedule_id = ?", *filter.ScheduleID)
	}
	if filter.Applied != nil {
		query = query.Where("applied = ?", *filter.Applied)
	}
	if filter.EffectiveBefore != nil {
		query = query.Where("effective_date <= ?", *filter.EffectiveBefore)
	}
	return query
}

// ByFilter retrieves price changes matching the filter criteria
func (r *PriceChangeRepositoryImpl) ByFilter(ctx context.Context, filter models.PendingPriceChangeFilter, orderBy string, limit, offset int) ([]*models.PendingPriceChange, error) {
	db := r.getDB(ctx)

	if orderBy == "" {
		orderBy = "effective_date ASC"
	}

	var changes []*models.PendingPriceChange
	query := r.applyFilter(db, filter).Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&changes).Error; err != nil {
		return nil, fmt.Errorf("failed to list price changes by filter: %w", err)
	}

	return changes, nil
}

// Count returns the number of price changes matching the filter
func (r *PriceChangeRepositoryImpl) Count(ctx context.Context, filter models.PendingPriceChangeFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.PendingPriceChange{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count price changes: %w", err)
	}

	return count, nil
}

// ListUnappliedBySchedule returns unapplied changes effective on or before
// the given date, ordered by effective date ascending so the materializer
// consumes the earliest first
func (r *PriceChangeRepositoryImpl) ListUnappliedBySchedule(ctx context.Context, scheduleID uint, effectiveOnOrBefore time.Time) ([]*models.PendingPriceChange, error) {
	db := r.getDB(ctx)

	var changes []*models.PendingPriceChange
	err := db.Where("schedule_id = ? AND applied = ? AND effective_date <= ?",
		scheduleID, false, utils.StartOfDayUTC(effectiveOnOrBefore)).
		Order("effective_date ASC, id ASC").
		Find(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unapplied price changes: %w", err)
	}

	return changes, nil
}

// MarkApplied consumes a price change. The applied guard makes consumption
// idempotent under re-runs.
func (r *PriceChangeRepositoryImpl) MarkApplied(ctx context.Context, id uint, appliedAt time.Time) error {
	db := r.getDB(ctx)

	result := db.Model(&models.PendingPriceChange{}).
		Where("id = ? AND applied = ?", id, false).
		Updates(map[string]any{
			"applied":    true,
			"applied_at": appliedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark price change applied: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("price change %d already applied", id)
	}

	return nil
}
