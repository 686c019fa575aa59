// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/dkortekaas/invoicing-engine/models"
	"gorm.io/gorm"
)

// ScheduleLogRepositoryImpl implements ScheduleLogRepository interface
type ScheduleLogRepositoryImpl struct {
	*BaseRepository[models.ScheduleLogEntry, models.ScheduleLogEntryFilter]
}

// NewScheduleLogRepository creates a new schedule log repository
func NewScheduleLogRepository(db *gorm.DB) ScheduleLogRepository {
	return &ScheduleLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ScheduleLogEntry, models.ScheduleLogEntryFilter](db),
	}
}

func (r *ScheduleLogRepositoryImpl) applyFilter(db *gorm.DB, filter models.ScheduleLogEntryFilter) *gorm.DB {
	query := db
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.ScheduleID != nil {
		query = query.Where("schedule_id = ?", *filter.ScheduleID)
	}
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	return query
}

// ByFilter retrieves log entries matching the filter criteria
func (r *ScheduleLogRepositoryImpl) ByFilter(ctx context.Context, filter models.ScheduleLogEntryFilter, orderBy string, limit, offset int) ([]*models.ScheduleLogEntry, error) {
	db := r.getDB(ctx)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}

	var entries []*models.ScheduleLogEntry
	query := r.applyFilter(db, filter).Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedule log entries by filter: %w", err)
	}

	return entries, nil
}

// Count returns the number of log entries matching the filter
func (r *ScheduleLogRepositoryImpl) Count(ctx context.Context, filter models.ScheduleLogEntryFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.ScheduleLogEntry{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count schedule log entries: %w", err)
	}

	return count, nil
}

// ListBySchedule retrieves the log trail of one schedule, newest first
func (r *ScheduleLogRepositoryImpl) ListBySchedule(ctx context.Context, scheduleID uint, limit, offset int) ([]*models.ScheduleLogEntry, error) {
	db := r.getDB(ctx)

	var entries []*models.ScheduleLogEntry
	err := db.Where("schedule_id = ?", scheduleID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule log entries: %w", err)
	}

	return entries, nil
}
