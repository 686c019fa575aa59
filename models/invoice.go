package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// String returns the string representation of the status
func (s InvoiceStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for InvoiceStatus
func (s *InvoiceStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = InvoiceStatus(v)
	case []byte:
		*s = InvoiceStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into InvoiceStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for InvoiceStatus
func (s InvoiceStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid InvoiceStatus: %s", s)
	}
	return string(s), nil
}

// FormatInvoiceNumber renders the per-account per-year invoice number,
// e.g. year 2025 sequence 7 becomes "2025-0007".
func FormatInvoiceNumber(year, sequence int) string {
	return fmt.Sprintf("%d-%0*d", year, utils.InvoiceNumberSequenceDigits, sequence)
}

// ParseInvoiceSequence extracts the numeric sequence from an invoice number
// belonging to the given year. Returns false for numbers of other years or
// malformed input.
func ParseInvoiceSequence(number string, year int) (int, bool) {
	prefix := strconv.Itoa(year) + "-"
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(number, prefix))
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// Invoice is a materialized billing document. When ScheduleID is set the
// invoice originated from a recurring schedule occurrence.
type Invoice struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_invoices_uuid" json:"uuid"`
	AccountID  uint      `gorm:"not null;uniqueIndex:uk_invoices_account_number;index:idx_invoices_account_id" json:"account_id"`
	CustomerID uint      `gorm:"not null;index:idx_invoices_customer_id" json:"customer_id"`
	ScheduleID *uint     `gorm:"index:idx_invoices_schedule_id" json:"schedule_id,omitempty"`

	InvoiceNumber string    `gorm:"size:32;not null;uniqueIndex:uk_invoices_account_number" json:"invoice_number"`
	InvoiceDate   time.Time `gorm:"type:date;not null" json:"invoice_date"`
	DueDate       time.Time `gorm:"type:date;not null" json:"due_date"`

	Subtotal  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	VATAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"vat_amount"`
	Total     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`

	Status InvoiceStatus `gorm:"type:invoice_status;not null;default:'DRAFT';index:idx_invoices_status" json:"status"`
	SentAt *time.Time    `json:"sent_at,omitempty"`
	PaidAt *time.Time    `json:"paid_at,omitempty"`

	Reference *string `gorm:"size:255" json:"reference,omitempty"`
	Notes     *string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_invoices_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Account   *Account          `gorm:"foreignKey:AccountID;references:ID" json:"account,omitempty"`
	Customer  *Customer         `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	LineItems []InvoiceLineItem `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`
}

// TableName returns the table name for the model
func (Invoice) TableName() string {
	return "invoices"
}

// BeforeCreate is called before creating a new record
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == uuid.Nil {
		i.UUID = uuid.New()
	}
	if i.Status == "" {
		i.Status = InvoiceStatusDraft
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (i *Invoice) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	i.UpdatedAt = &now
	return nil
}

// IsSettled reports whether the invoice has been sent or paid. Mutations of
// settled documents are flagged by the audit classifier.
func (i *Invoice) IsSettled() bool {
	return i.SentAt != nil || i.PaidAt != nil
}

// CanTransitionTo checks if the invoice can transition to the given status
func (i *Invoice) CanTransitionTo(newStatus InvoiceStatus) bool {
	switch i.Status {
	case InvoiceStatusDraft:
		return newStatus == InvoiceStatusSent || newStatus == InvoiceStatusCancelled
	case InvoiceStatusSent:
		return newStatus == InvoiceStatusPaid || newStatus == InvoiceStatusCancelled
	default:
		return false
	}
}

// InvoiceLineItem is one priced row of an invoice
type InvoiceLineItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"not null;index:idx_invoice_line_items_invoice_id" json:"invoice_id"`
	Position    int             `gorm:"not null;default:0" json:"position"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	VATRate     decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"vat_rate"`
	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	VATAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"vat_amount"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
}

// TableName returns the table name for the model
func (InvoiceLineItem) TableName() string {
	return "invoice_line_items"
}

// Compute fills the derived amounts from quantity, unit price and VAT rate:
// subtotal = qty x price, vat = subtotal x rate/100, total = subtotal + vat.
func (l *InvoiceLineItem) Compute() {
	l.Subtotal = l.Quantity.Mul(l.UnitPrice)
	l.VATAmount = l.Subtotal.Mul(l.VATRate).Div(decimal.NewFromInt(100))
	l.Total = l.Subtotal.Add(l.VATAmount)
}

// InvoiceFilter represents filter criteria for invoices
type InvoiceFilter struct {
	ID            *uint          `json:"id,omitempty"`
	UUID          *uuid.UUID     `json:"uuid,omitempty"`
	AccountID     *uint          `json:"account_id,omitempty"`
	CustomerID    *uint          `json:"customer_id,omitempty"`
	ScheduleID    *uint          `json:"schedule_id,omitempty"`
	Status        *InvoiceStatus `json:"status,omitempty"`
	InvoiceNumber *string        `json:"invoice_number,omitempty"`
	DateAfter     *time.Time     `json:"date_after,omitempty"`
	DateBefore    *time.Time     `json:"date_before,omitempty"`
}
