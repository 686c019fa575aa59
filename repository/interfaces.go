// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// AccountRepository defines operations for accounts
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Account, error)
	ByEmail(ctx context.Context, email string) (*models.Account, error)
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Customer, error)
	ListByAccount(ctx context.Context, accountID uint) ([]*models.Customer, error)
}

// ScheduleRepository defines operations for recurring schedules
type ScheduleRepository interface {
	Repository[models.RecurringSchedule, models.RecurringScheduleFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.RecurringSchedule, error)
	ByIDWithTemplate(ctx context.Context, id uint) (*models.RecurringSchedule, error)
	ListDue(ctx context.Context, asOf time.Time) ([]*models.RecurringSchedule, error)
	ListActiveByAccount(ctx context.Context, accountID uint) ([]*models.RecurringSchedule, error)
	UpdateStatus(ctx context.Context, id uint, status models.ScheduleStatus) error
	AdvanceCursor(ctx context.Context, id uint, lastDate, nextDate time.Time) error
	ReplaceLineItems(ctx context.Context, scheduleID uint, items []*models.ScheduleLineItem) error
}

// PriceChangeRepository defines operations for pending price changes
type PriceChangeRepository interface {
	Repository[models.PendingPriceChange, models.PendingPriceChangeFilter]
	ListUnappliedBySchedule(ctx context.Context, scheduleID uint, effectiveOnOrBefore time.Time) ([]*models.PendingPriceChange, error)
	MarkApplied(ctx context.Context, id uint, appliedAt time.Time) error
}

// ScheduleLogRepository defines operations for schedule log entries
type ScheduleLogRepository interface {
	Repository[models.ScheduleLogEntry, models.ScheduleLogEntryFilter]
	ListBySchedule(ctx context.Context, scheduleID uint, limit, offset int) ([]*models.ScheduleLogEntry, error)
}

// InvoiceRepository defines operations for invoices
type InvoiceRepository interface {
	Repository[models.Invoice, models.InvoiceFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Invoice, error)
	MaxSequenceForYear(ctx context.Context, accountID uint, year int) (int, error)
	ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.Invoice, error)
	UpdateStatus(ctx context.Context, id uint, status models.InvoiceStatus, sentAt, paidAt *time.Time) error
}

// VATReportRepository defines operations for VAT reports
type VATReportRepository interface {
	Repository[models.VATReport, models.VATReportFilter]
	ByAccountAndPeriod(ctx context.Context, accountID uint, year, quarter int) (*models.VATReport, error)
}

// AuditLogRepository defines operations for the audit hash chain
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	LatestByScope(ctx context.Context, scope string) (*models.AuditLog, error)
	ListByScope(ctx context.Context, scope string, limit, offset int) ([]*models.AuditLog, error)
	ListByScopeAscending(ctx context.Context, scope string) ([]*models.AuditLog, error)
	CountMutationsSince(ctx context.Context, userID uint, since time.Time) (int64, error)
	CountLoginFailuresSince(ctx context.Context, userEmail string, since time.Time) (int64, error)
	RecentDistinctIPs(ctx context.Context, userID uint, limit int) ([]string, error)
	ListSuspicious(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
