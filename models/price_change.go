package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRevision is one template line's new pricing inside a pending price
// change. Lines are matched by template position; nil fields leave the
// template value untouched.
type PriceRevision struct {
	Position  int              `json:"position"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	VATRate   *decimal.Decimal `json:"vat_rate,omitempty"`
}

// PriceRevisions is the JSON payload of a pending price change
type PriceRevisions []PriceRevision

// Value implements the driver.Valuer interface for PriceRevisions
func (p PriceRevisions) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for PriceRevisions
func (p *PriceRevisions) Scan(value any) error {
	if value == nil {
		*p = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PriceRevisions", value)
	}

	return json.Unmarshal(bytes, p)
}

// PendingPriceChange is a price revision that takes effect from
// EffectiveDate. At most one unapplied change is consumed per
// materialization; consumption sets Applied with a timestamp so re-runs do
// not double-apply it.
type PendingPriceChange struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ScheduleID    uint           `gorm:"not null;index:idx_pending_price_changes_schedule_id" json:"schedule_id"`
	EffectiveDate time.Time      `gorm:"type:date;not null" json:"effective_date"`
	Revisions     PriceRevisions `gorm:"type:jsonb;not null" json:"revisions"`
	Applied       bool           `gorm:"not null;default:false;index:idx_pending_price_changes_applied" json:"applied"`
	AppliedAt     *time.Time     `json:"applied_at,omitempty"`
	CreatedAt     time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (PendingPriceChange) TableName() string {
	return "pending_price_changes"
}

// EligibleOn reports whether the change should be consumed by a
// materialization dated asOf
func (c *PendingPriceChange) EligibleOn(asOf time.Time) bool {
	return !c.Applied && !c.EffectiveDate.After(asOf)
}

// PendingPriceChangeFilter represents filter criteria for price changes
type PendingPriceChangeFilter struct {
	ID              *uint      `json:"id,omitempty"`
	ScheduleID      *uint      `json:"schedule_id,omitempty"`
	Applied         *bool      `json:"applied,omitempty"`
	EffectiveBefore *time.Time `json:"effective_before,omitempty"`
}
