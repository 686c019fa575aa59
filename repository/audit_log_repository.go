// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkortekaas/invoicing-engine/models"
	"gorm.io/gorm"
)

// AuditLogRepositoryImpl implements AuditLogRepository interface
type AuditLogRepositoryImpl struct {
	*BaseRepository[models.AuditLog, models.AuditLogFilter]
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &AuditLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AuditLog, models.AuditLogFilter](db),
	}
}

func (r *AuditLogRepositoryImpl) applyFilter(db *gorm.DB, filter models.AuditLogFilter) *gorm.DB {
	query := db
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Scope != nil {
		query = query.Where("scope = ?", *filter.Scope)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.UserEmail != nil {
		query = query.Where("user_email = ?", *filter.UserEmail)
	}
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.IsSuspicious != nil {
		query = query.Where("is_suspicious = ?", *filter.IsSuspicious)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves audit entries matching the filter criteria
func (r *AuditLogRepositoryImpl) ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	db := r.getDB(ctx)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}

	var entries []*models.AuditLog
	query := r.applyFilter(db, filter).Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit entries by filter: %w", err)
	}

	return entries, nil
}

// Count returns the number of audit entries matching the filter
func (r *AuditLogRepositoryImpl) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.AuditLog{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

// LatestByScope returns the newest entry of one chain scope, nil when the
// chain is empty. Queried fresh on every append so the chain head survives
// restarts and horizontal scale-out.
func (r *AuditLogRepositoryImpl) LatestByScope(ctx context.Context, scope string) (*models.AuditLog, error) {
	db := r.getDB(ctx)

	var entry models.AuditLog
	err := db.Where("scope = ?", scope).
		Order("id DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest audit entry for scope %s: %w", scope, err)
	}

	return &entry, nil
}

// ListByScope retrieves entries of one chain scope, newest first
func (r *AuditLogRepositoryImpl) ListByScope(ctx context.Context, scope string, limit, offset int) ([]*models.AuditLog, error) {
	db := r.getDB(ctx)

	var entries []*models.AuditLog
	err := db.Where("scope = ?", scope).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries by scope: %w", err)
	}

	return entries, nil
}

// ListByScopeAscending retrieves a full chain in insertion order for
// verification replay
func (r *AuditLogRepositoryImpl) ListByScopeAscending(ctx context.Context, scope string) ([]*models.AuditLog, error) {
	db := r.getDB(ctx)

	var entries []*models.AuditLog
	err := db.Where("scope = ?", scope).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit chain for scope %s: %w", scope, err)
	}

	return entries, nil
}

// CountMutationsSince counts UPDATE/DELETE entries of one user in a trailing
// window, for bulk-change detection
func (r *AuditLogRepositoryImpl) CountMutationsSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.AuditLog{}).
		Where("user_id = ? AND action IN ? AND created_at >= ?",
			userID, []string{models.AuditActionUpdate, models.AuditActionDelete}, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent mutations: %w", err)
	}

	return count, nil
}

// CountLoginFailuresSince counts LOGIN_FAILED entries for one email in a
// trailing window, for brute-force detection
func (r *AuditLogRepositoryImpl) CountLoginFailuresSince(ctx context.Context, userEmail string, since time.Time) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.AuditLog{}).
		Where("user_email = ? AND action = ? AND created_at >= ?",
			userEmail, models.AuditActionLoginFailed, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent login failures: %w", err)
	}

	return count, nil
}

// RecentDistinctIPs returns the user's most recently seen distinct IP
// addresses, newest first
func (r *AuditLogRepositoryImpl) RecentDistinctIPs(ctx context.Context, userID uint, limit int) ([]string, error) {
	db := r.getDB(ctx)

	var ips []string
	err := db.Model(&models.AuditLog{}).
		Select("ip_address").
		Where("user_id = ? AND ip_address IS NOT NULL", userID).
		Group("ip_address").
		Order("MAX(id) DESC").
		Limit(limit).
		Pluck("ip_address", &ips).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent IPs: %w", err)
	}

	return ips, nil
}

// ListSuspicious retrieves flagged entries with pagination
func (r *AuditLogRepositoryImpl) ListSuspicious(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	db := r.getDB(ctx)

	var entries []*models.AuditLog
	err := db.Where("is_suspicious = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list suspicious audit entries: %w", err)
	}

	return entries, nil
}
