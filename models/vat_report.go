package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// VATReportStatus represents the filing status of a VAT report
type VATReportStatus string

const (
	VATReportStatusDraft VATReportStatus = "DRAFT"
	VATReportStatusFiled VATReportStatus = "FILED"
)

// String returns the string representation of the status
func (s VATReportStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s VATReportStatus) Valid() bool {
	return s == VATReportStatusDraft || s == VATReportStatusFiled
}

// Scan implements the sql.Scanner interface for VATReportStatus
func (s *VATReportStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = VATReportStatus(v)
	case []byte:
		*s = VATReportStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into VATReportStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for VATReportStatus
func (s VATReportStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid VATReportStatus: %s", s)
	}
	return string(s), nil
}

// VATReport is a periodic VAT declaration. Filed reports are regulatory
// documents; the audit classifier flags any update to a FILED report.
type VATReport struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AccountID uint            `gorm:"not null;index:idx_vat_reports_account_id" json:"account_id"`
	Year      int             `gorm:"not null" json:"year"`
	Quarter   int             `gorm:"not null;check:quarter >= 1 AND quarter <= 4" json:"quarter"`
	VATDue    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"vat_due"`
	Status    VATReportStatus `gorm:"type:vat_report_status;not null;default:'DRAFT'" json:"status"`
	FiledAt   *time.Time      `json:"filed_at,omitempty"`
	CreatedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (VATReport) TableName() string {
	return "vat_reports"
}

// IsFiled reports whether the report has been filed
func (r *VATReport) IsFiled() bool {
	return r.Status == VATReportStatusFiled
}

// VATReportFilter represents filter criteria for VAT reports
type VATReportFilter struct {
	ID        *uint            `json:"id,omitempty"`
	AccountID *uint            `json:"account_id,omitempty"`
	Year      *int             `json:"year,omitempty"`
	Quarter   *int             `json:"quarter,omitempty"`
	Status    *VATReportStatus `json:"status,omitempty"`
}
