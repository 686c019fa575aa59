package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ScheduleStatus represents the lifecycle status of a recurring schedule
type ScheduleStatus string

const (
	ScheduleStatusActive    ScheduleStatus = "ACTIVE"
	ScheduleStatusPaused    ScheduleStatus = "PAUSED"
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
	ScheduleStatusCompleted ScheduleStatus = "COMPLETED"
)

// String returns the string representation of the status
func (s ScheduleStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusActive, ScheduleStatusPaused,
		ScheduleStatusCancelled, ScheduleStatusCompleted:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ScheduleStatus
func (s *ScheduleStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ScheduleStatus(v)
	case []byte:
		*s = ScheduleStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScheduleStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ScheduleStatus
func (s ScheduleStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ScheduleStatus: %s", s)
	}
	return string(s), nil
}

// IsTerminal reports whether the status admits no further transitions
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusCancelled || s == ScheduleStatusCompleted
}

// RecurringSchedule represents a subscription-like billing plan. The cursor
// pair (NextDate, LastDate) tracks materialization progress.
type RecurringSchedule struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_recurring_schedules_uuid" json:"uuid"`
	AccountID  uint      `gorm:"not null;index:idx_recurring_schedules_account_id" json:"account_id"`
	CustomerID uint      `gorm:"not null;index:idx_recurring_schedules_customer_id" json:"customer_id"`

	Frequency  Frequency `gorm:"type:schedule_frequency;not null" json:"frequency"`
	Interval   int       `gorm:"not null;default:1" json:"interval"`
	DayOfMonth *int      `gorm:"check:day_of_month IS NULL OR (day_of_month >= 1 AND day_of_month <= 28)" json:"day_of_month,omitempty"`

	StartDate time.Time      `gorm:"type:date;not null" json:"start_date"`
	EndDate   *time.Time     `gorm:"type:date" json:"end_date,omitempty"`
	NextDate  time.Time      `gorm:"type:date;not null;index:idx_recurring_schedules_next_date" json:"next_date"`
	LastDate  *time.Time     `gorm:"type:date" json:"last_date,omitempty"`
	Status    ScheduleStatus `gorm:"type:schedule_status;not null;default:'ACTIVE';index:idx_recurring_schedules_status" json:"status"`

	AutoSend  bool    `gorm:"not null;default:false" json:"auto_send"`
	SendDays  int     `gorm:"not null;default:0" json:"send_days"`
	Reference *string `gorm:"size:255" json:"reference,omitempty"`
	Notes     *string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Account      *Account             `gorm:"foreignKey:AccountID;references:ID" json:"account,omitempty"`
	Customer     *Customer            `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	LineItems    []ScheduleLineItem   `gorm:"foreignKey:ScheduleID" json:"line_items,omitempty"`
	PriceChanges []PendingPriceChange `gorm:"foreignKey:ScheduleID" json:"price_changes,omitempty"`
}

// TableName returns the table name for the model
func (RecurringSchedule) TableName() string {
	return "recurring_schedules"
}

// BeforeCreate is called before creating a new record
func (s *RecurringSchedule) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.Status == "" {
		s.Status = ScheduleStatusActive
	}
	if s.Interval < 1 {
		s.Interval = 1
	}
	s.StartDate = utils.StartOfDayUTC(s.StartDate)
	if s.NextDate.IsZero() {
		s.NextDate = s.StartDate
	}
	s.NextDate = utils.StartOfDayUTC(s.NextDate)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (s *RecurringSchedule) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	s.UpdatedAt = &now
	return nil
}

// DayOfMonthOrZero returns the clamping anchor, zero when unset
func (s *RecurringSchedule) DayOfMonthOrZero() int {
	if s.DayOfMonth == nil {
		return 0
	}
	return *s.DayOfMonth
}

// IsDueOn reports whether the schedule should materialize as of the given
// date. Only ACTIVE schedules are ever due.
func (s *RecurringSchedule) IsDueOn(asOf time.Time) bool {
	if s.Status != ScheduleStatusActive {
		return false
	}
	return DueOn(s.NextDate, s.EndDate, asOf)
}

// HasEnded reports whether the cursor has advanced past the end date
func (s *RecurringSchedule) HasEnded() bool {
	if s.EndDate == nil {
		return false
	}
	return utils.StartOfDayUTC(s.NextDate).After(utils.StartOfDayUTC(*s.EndDate))
}

// CanTransitionTo checks if the schedule can transition to the given status
func (s *RecurringSchedule) CanTransitionTo(newStatus ScheduleStatus) bool {
	switch s.Status {
	case ScheduleStatusActive:
		return newStatus == ScheduleStatusPaused ||
			newStatus == ScheduleStatusCancelled ||
			newStatus == ScheduleStatusCompleted
	case ScheduleStatusPaused:
		return newStatus == ScheduleStatusActive ||
			newStatus == ScheduleStatusCancelled
	default:
		return false
	}
}

// TemplateSubtotal sums quantity x unitPrice across the line-item template,
// excluding VAT. This is the amount recurring-revenue metrics normalize.
func (s *RecurringSchedule) TemplateSubtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.LineItems {
		total = total.Add(item.Quantity.Mul(item.UnitPrice))
	}
	return total
}

// ScheduleLineItem is one row of a schedule's invoice template. Position
// gives the stable ordering invoices are rendered in.
type ScheduleLineItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ScheduleID  uint            `gorm:"not null;index:idx_schedule_line_items_schedule_id" json:"schedule_id"`
	Position    int             `gorm:"not null;default:0" json:"position"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	VATRate     decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"vat_rate"`
	CreatedAt   time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (ScheduleLineItem) TableName() string {
	return "schedule_line_items"
}

// RecurringScheduleFilter represents filter criteria for schedules
type RecurringScheduleFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	AccountID     *uint           `json:"account_id,omitempty"`
	CustomerID    *uint           `json:"customer_id,omitempty"`
	Status        *ScheduleStatus `json:"status,omitempty"`
	Frequency     *Frequency      `json:"frequency,omitempty"`
	NextBefore    *time.Time      `json:"next_before,omitempty"`
	NextAfter     *time.Time      `json:"next_after,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
