package models

import (
	"time"

	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a billable party of an account. PaymentTermDays drives invoice
// due-date calculation.
type Customer struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`
	AccountID       uint       `gorm:"not null;index:idx_customers_account_id" json:"account_id"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	Email           string     `gorm:"size:255;not null;index:idx_customers_email" json:"email"`
	VATNumber       *string    `gorm:"size:32" json:"vat_number,omitempty"`
	PaymentTermDays int        `gorm:"not null;default:30" json:"payment_term_days"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`

	// Relations
	Account *Account `gorm:"foreignKey:AccountID;references:ID" json:"account,omitempty"`
}

// TableName returns the table name for the model
func (Customer) TableName() string {
	return "customers"
}

// BeforeCreate is called before creating a new record
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.PaymentTermDays <= 0 {
		c.PaymentTermDays = utils.DefaultPaymentTermDays
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// CustomerFilter represents filter criteria for customers
type CustomerFilter struct {
	ID        *uint      `json:"id,omitempty"`
	UUID      *uuid.UUID `json:"uuid,omitempty"`
	AccountID *uint      `json:"account_id,omitempty"`
	Email     *string    `json:"email,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`
}
