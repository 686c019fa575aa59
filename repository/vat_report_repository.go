// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkortekaas/invoicing-engine/models"
	"gorm.io/gorm"
)

// VATReportRepositoryImpl implements VATReportRepository interface
type VATReportRepositoryImpl struct {
	*BaseRepository[models.VATReport, models.VATReportFilter]
}

// NewVATReportRepository creates a new VAT report repository
func NewVATReportRepository(db *gorm.DB) VATReportRepository {
	return &VATReportRepositoryImpl{
		BaseRepository: NewBaseRepository[models.VATReport, models.VATReportFilter](db),
	}
}

func (r *VATReportRepositoryImpl) applyFilter(db *gorm.DB, filter models.VATReportFilter) *gorm.DB {
	query := db
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Year != nil {
		query = query.Where("year = ?", *filter.Year)
	}
	if filter.Quarter != nil {
		query = query.Where("quarter = ?", *filter.Quarter)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves VAT reports matching the filter criteria
func (r *VATReportRepositoryImpl) ByFilter(ctx context.Context, filter models.VATReportFilter, orderBy string, limit, offset int) ([]*models.VATReport, error) {
	db := r.getDB(ctx)

	if orderBy == "" {
		orderBy = "year DESC, quarter DESC"
	}

	var reports []*models.VATReport
	query := r.applyFilter(db, filter).Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list VAT reports by filter: %w", err)
	}

	return reports, nil
}

// Count returns the number of VAT reports matching the filter
func (r *VATReportRepositoryImpl) Count(ctx context.Context, filter models.VATReportFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.VATReport{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count VAT reports: %w", err)
	}

	return count, nil
}

// ByAccountAndPeriod retrieves the report of one filing period, nil when
// absent
func (r *VATReportRepositoryImpl) ByAccountAndPeriod(ctx context.Context, accountID uint, year, quarter int) (*models.VATReport, error) {
	db := r.getDB(ctx)

	var report models.VATReport
	err := db.Where("account_id = ? AND year = ? AND quarter = ?", accountID, year, quarter).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find VAT report for period: %w", err)
	}

	return &report, nil
}
