// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceRepositoryImpl implements InvoiceRepository interface
type InvoiceRepositoryImpl struct {
	*BaseRepository[models.Invoice, models.InvoiceFilter]
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &InvoiceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Invoice, models.InvoiceFilter](db),
	}
}

func (r *InvoiceRepositoryImpl) applyFilter(db *gorm.DB, filter models.InvoiceFilter) *gorm.DB {
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
	if filter.ScheduleID != nil {
		query = query.Where("schedule_id = ?", *filter.ScheduleID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.InvoiceNumber != nil {
		query = query.Where("invoice_number = ?", *filter.InvoiceNumber)
	}
	if filter.DateAfter != nil {
		query = query.Where("invoice_date >= ?", *filter.DateAfter)
	}
	if filter.DateBefore != nil {
		query = query.Where("invoice_date <= ?", *filter.DateBefore)
	}
	return query
}

// ByFilter retrieves invoices matching the filter criteria
func (r *InvoiceRepositoryImpl) ByFilter(ctx context.Context, filter models.InvoiceFilter, orderBy string, limit, offset int) ([]*models.Invoice, error) {
	db := r.getDB(ctx)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}

	var invoices []*models.Invoice
	query := r.applyFilter(db, filter).Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("failed to list invoices by filter: %w", err)
	}

	return invoices, nil
}

// Count returns the number of invoices matching the filter
func (r *InvoiceRepositoryImpl) Count(ctx context.Context, filter models.InvoiceFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Invoice{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	return count, nil
}

// ByUUID retrieves an invoice by its public UUID, nil when absent
func (r *InvoiceRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	db := r.getDB(ctx)

	var invoice models.Invoice
	err := db.Where("uuid = ?", id).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find invoice by UUID: %w", err)
	}

	return &invoice, nil
}

// MaxSequenceForYear returns the highest allocated sequence of the
// "{year}-{seq}" numbers an account holds for one calendar year. Zero when
// the year has no invoices yet. The unique constraint on
// (account_id, invoice_number) makes the read-increment-insert race safe:
// a loser of the race gets a duplicate-key error and retries allocation.
func (r *InvoiceRepositoryImpl) MaxSequenceForYear(ctx context.Context, accountID uint, year int) (int, error) {
	db := r.getDB(ctx)

	var numbers []string
	err := db.Model(&models.Invoice{}).
		Where("account_id = ? AND invoice_number LIKE ?", accountID, strconv.Itoa(year)+"-%").
		Pluck("invoice_number", &numbers).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query invoice numbers for year %d: %w", year, err)
	}

	maxSeq := 0
	for _, number := range numbers {
		if seq, ok := models.ParseInvoiceSequence(number, year); ok && seq > maxSeq {
			maxSeq = seq
		}
	}

	return maxSeq, nil
}

// ListByAccount retrieves invoices of one account with pagination
func (r *InvoiceRepositoryImpl) ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.Invoice, error) {
	db := r.getDB(ctx)

	var invoices []*models.Invoice
	err := db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices by account: %w", err)
	}

	return invoices, nil
}

// UpdateStatus updates the invoice status together with the matching
// settlement timestamp
func (r *InvoiceRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.InvoiceStatus, sentAt, paidAt *time.Time) error {
	db := r.getDB(ctx)

	updates := map[string]any{
		"status":     status,
		"updated_at": utils.UTCNow(),
	}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}

	err := db.Model(&models.Invoice{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}

	return nil
}

// IsUniqueViolation reports whether the error is a duplicate-key conflict,
// used by the numbering retry at the allocation step
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	type coder interface{ SQLState() string }
	var pgErr coder
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
