package models

import (
	"time"
)

// Schedule log event constants
const (
	ScheduleEventCreated          = "CREATED"
	ScheduleEventUpdated          = "UPDATED"
	ScheduleEventPaused           = "PAUSED"
	ScheduleEventResumed          = "RESUMED"
	ScheduleEventCancelled        = "CANCELLED"
	ScheduleEventCompleted        = "COMPLETED"
	ScheduleEventInvoiceGenerated = "INVOICE_GENERATED"
	ScheduleEventPriceChangeAdded = "PRICE_CHANGE_ADDED"
	ScheduleEventGenerationFailed = "GENERATION_FAILED"
)

// ScheduleLogEntry is an append-only trail scoped to one schedule. Entries
// are never mutated or deleted.
type ScheduleLogEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ScheduleID uint      `gorm:"not null;index:idx_schedule_log_schedule_id" json:"schedule_id"`
	Action     string    `gorm:"size:64;not null" json:"action"`
	InvoiceID  *uint     `gorm:"index:idx_schedule_log_invoice_id" json:"invoice_id,omitempty"`
	Detail     *string   `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_schedule_log_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (ScheduleLogEntry) TableName() string {
	return "schedule_log_entries"
}

// ScheduleLogEntryFilter represents filter criteria for schedule log queries
type ScheduleLogEntryFilter struct {
	ID         *uint   `json:"id,omitempty"`
	ScheduleID *uint   `json:"schedule_id,omitempty"`
	Action     *string `json:"action,omitempty"`
	InvoiceID  *uint   `json:"invoice_id,omitempty"`
}
