// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduleRepositoryImpl implements ScheduleRepository interface
type ScheduleRepositoryImpl struct {
	*BaseRepository[models.RecurringSchedule, models.RecurringScheduleFilter]
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &ScheduleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RecurringSchedule, models.RecurringScheduleFilter](db),
	}
}

func (r *ScheduleRepositoryImpl) applyFilter(db *gorm.DB, filter models.RecurringScheduleFilter) *gorm.DB {
	query := db
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Frequency != nil {
		query = query.Where("frequency = ?", *filter.Frequency)
	}
	if filter.NextBefore != nil {
		query = query.Where("next_date <= ?", *filter.NextBefore)
	}
	if filter.NextAfter != nil {
		query = query.Where("next_date >= ?", *filter.NextAfter)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves schedules matching the filter criteria
func (r *ScheduleRepositoryImpl) ByFilter(ctx context.Context, filter models.RecurringScheduleFilter, orderBy string, limit, offset int) ([]*models.RecurringSchedule, error) {
	db := r.getDB(ctx)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}

	var schedules []*models.RecurringSchedule
	query := r.applyFilter(db, filter).Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules by filter: %w", err)
	}

	return schedules, nil
}

// Count returns the number of schedules matching the filter
func (r *ScheduleRepositoryImpl) Count(ctx context.Context, filter models.RecurringScheduleFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.RecurringSchedule{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}

	return count, nil
}

// ByUUID retrieves a schedule by its public UUID, nil when absent
func (r *ScheduleRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.RecurringSchedule, error) {
	db := r.getDB(ctx)

	var schedule models.RecurringSchedule
	err := db.Where("uuid = ?", id).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find schedule by UUID: %w", err)
	}

	return &schedule, nil
}

// ByIDWithTemplate loads a schedule together with its ordered line-item
// template, customer and account
func (r *ScheduleRepositoryImpl) ByIDWithTemplate(ctx context.Context, id uint) (*models.RecurringSchedule, error) {
	db := r.getDB(ctx)

	var schedule models.RecurringSchedule
	err := db.Where("id = ?", id).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Customer").
		Preload("Account").
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find schedule with template: %w", err)
	}

	return &schedule, nil
}

// ListDue returns the schedules the batch runner should materialize as of
// the given date: ACTIVE, next_date reached, end_date not passed.
func (r *ScheduleRepositoryImpl) ListDue(ctx context.Context, asOf time.Time) ([]*models.RecurringSchedule, error) {
	db := r.getDB(ctx)
	day := utils.StartOfDayUTC(asOf)

	var schedules []*models.RecurringSchedule
	err := db.Where("status = ?", models.ScheduleStatusActive).
		Where("next_date <= ?", day).
		Where("end_date IS NULL OR end_date >= ?", day).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}

	return schedules, nil
}

// ListActiveByAccount returns all ACTIVE schedules of one account with their
// templates, for recurring-revenue reporting
func (r *ScheduleRepositoryImpl) ListActiveByAccount(ctx context.Context, accountID uint) ([]*models.RecurringSchedule, error) {
	db := r.getDB(ctx)

	var schedules []*models.RecurringSchedule
	err := db.Where("account_id = ? AND status = ?", accountID, models.ScheduleStatusActive).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedules by account: %w", err)
	}

	return schedules, nil
}

// UpdateStatus updates only the lifecycle status of a schedule
func (r *ScheduleRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.ScheduleStatus) error {
	db := r.getDB(ctx)

	err := db.Model(&models.RecurringSchedule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update schedule status: %w", err)
	}

	return nil
}

// AdvanceCursor moves the schedule cursor forward after a successful
// materialization. The guard on next_date keeps the cursor monotonic even
// under concurrent runs.
func (r *ScheduleRepositoryImpl) AdvanceCursor(ctx context.Context, id uint, lastDate, nextDate time.Time) error {
	db := r.getDB(ctx)

	result := db.Model(&models.RecurringSchedule{}).
		Where("id = ? AND next_date < ?", id, utils.StartOfDayUTC(nextDate)).
		Updates(map[string]any{
			"last_date":  utils.StartOfDayUTC(lastDate),
			"next_date":  utils.StartOfDayUTC(nextDate),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to advance schedule cursor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("cursor advance rejected for schedule %d: next date would not move forward", id)
	}

	return nil
}

// ReplaceLineItems swaps the full line-item template of a schedule
func (r *ScheduleRepositoryImpl) ReplaceLineItems(ctx context.Context, scheduleID uint, items []*models.ScheduleLineItem) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	if err = db.Where("schedule_id = ?", scheduleID).Delete(&models.ScheduleLineItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear schedule line items: %w", err)
	}
	for _, item := range items {
		item.ScheduleID = scheduleID
	}
	if len(items) > 0 {
		if err = db.Create(items).Error; err != nil {
			return fmt.Errorf("failed to save schedule line items: %w", err)
		}
	}

	return nil
}
