package dto

import (
	"time"
)

// ChainVerificationResponse reports the outcome of replaying one audit chain
type ChainVerificationResponse struct {
	Scope     string  `json:"scope"`
	Entries   int     `json:"entries"`
	Valid     bool    `json:"valid"`
	BrokenAt  *uint   `json:"broken_at,omitempty"`
	Reason    *string `json:"reason,omitempty"`
	CheckedAt string  `json:"checked_at"`
}

// AuditEntryResponse is the API representation of one audit entry
type AuditEntryResponse struct {
	ID              uint      `json:"id"`
	Scope           string    `json:"scope"`
	UserEmail       *string   `json:"user_email,omitempty"`
	Action          string    `json:"action"`
	EntityType      string    `json:"entity_type"`
	EntityID        *string   `json:"entity_id,omitempty"`
	IsSuspicious    bool      `json:"is_suspicious"`
	SuspicionReason string    `json:"suspicion_reason,omitempty"`
	Hash            string    `json:"hash"`
	CreatedAt       time.Time `json:"created_at"`
}

// RevenueSummaryResponse is the normalized recurring-revenue report of one
// account
type RevenueSummaryResponse struct {
	AccountID        uint              `json:"account_id"`
	ActiveSchedules  int               `json:"active_schedules"`
	MonthlyRecurring string            `json:"monthly_recurring_revenue"`
	AnnualRecurring  string            `json:"annual_recurring_revenue"`
	ByFrequency      map[string]string `json:"by_frequency,omitempty"`
	ComputedAt       time.Time         `json:"computed_at"`
	FromCache        bool              `json:"from_cache"`
}
