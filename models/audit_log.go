package models

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Audit action constants
const (
	AuditActionCreate      = "CREATE"
	AuditActionUpdate      = "UPDATE"
	AuditActionDelete      = "DELETE"
	AuditActionView        = "VIEW"
	AuditActionSend        = "SEND"
	AuditActionLogin       = "LOGIN"
	AuditActionLoginFailed = "LOGIN_FAILED"
	AuditActionLogout      = "LOGOUT"
	AuditActionExport      = "EXPORT"
)

// Audit entity type constants
const (
	AuditEntityInvoice   = "invoice"
	AuditEntitySchedule  = "recurring_schedule"
	AuditEntityCustomer  = "customer"
	AuditEntityAccount   = "account"
	AuditEntityVATReport = "vat_report"
)

// AuditScopeGlobal is the chain scope for entries without a user
const AuditScopeGlobal = "global"

// AuditScopeForUser returns the per-user chain scope
func AuditScopeForUser(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// FieldChange records one field's old and new value
type FieldChange struct {
	OldValue any `json:"oldValue"`
	NewValue any `json:"newValue"`
}

// FieldChanges maps field names to their recorded change
type FieldChanges map[string]FieldChange

// Value implements the driver.Valuer interface for FieldChanges
func (c FieldChanges) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal(FieldChanges{})
	}
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for FieldChanges
func (c *FieldChanges) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into FieldChanges", value)
	}

	return json.Unmarshal(bytes, c)
}

// DetectChanges computes the field-level diff between two entity snapshots.
// For creates (oldData nil) every provided field becomes {nil, value}. For
// updates the union of keys is compared on JSON-serialized values, skipping
// bookkeeping timestamps.
func DetectChanges(oldData, newData map[string]any) FieldChanges {
	changes := FieldChanges{}

	if oldData == nil {
		for field, value := range newData {
			if isBookkeepingField(field) {
				continue
			}
			changes[field] = FieldChange{OldValue: nil, NewValue: value}
		}
		return changes
	}

	fields := make(map[string]struct{}, len(oldData)+len(newData))
	for field := range oldData {
		fields[field] = struct{}{}
	}
	for field := range newData {
		fields[field] = struct{}{}
	}

	for field := range fields {
		if isBookkeepingField(field) {
			continue
		}
		oldJSON, _ := json.Marshal(oldData[field])
		newJSON, _ := json.Marshal(newData[field])
		if string(oldJSON) != string(newJSON) {
			changes[field] = FieldChange{OldValue: oldData[field], NewValue: newData[field]}
		}
	}

	return changes
}

func isBookkeepingField(field string) bool {
	switch field {
	case "createdAt", "updatedAt", "created_at", "updated_at":
		return true
	default:
		return false
	}
}

// AuditLog is one entry of the tamper-evident audit chain. Hash covers the
// entry's own fields plus the previous entry's hash, so retroactively
// editing or deleting any entry breaks verification from that point on.
// Entries are created once and never updated.
type AuditLog struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Scope     string  `gorm:"size:64;not null;index:idx_audit_log_scope" json:"scope"`
	UserID    *uint   `gorm:"index:idx_audit_log_user_id" json:"user_id,omitempty"`
	UserEmail *string `gorm:"size:255;index:idx_audit_log_user_email" json:"user_email,omitempty"`

	Action     string  `gorm:"size:32;not null;index:idx_audit_log_action" json:"action"`
	EntityType string  `gorm:"size:64;not null;index:idx_audit_log_entity_type" json:"entity_type"`
	EntityID   *string `gorm:"size:64;index:idx_audit_log_entity_id" json:"entity_id,omitempty"`

	Changes  FieldChanges    `gorm:"type:jsonb" json:"changes,omitempty"`
	Metadata json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`

	IPAddress *string `gorm:"type:inet" json:"ip_address,omitempty"`
	UserAgent *string `gorm:"type:text" json:"user_agent,omitempty"`
	SessionID *string `gorm:"size:255" json:"session_id,omitempty"`
	RequestID *string `gorm:"size:255" json:"request_id,omitempty"`

	PreviousHash *string `gorm:"size:64" json:"previous_hash,omitempty"`
	Hash         string  `gorm:"size:64;not null" json:"hash"`

	IsSuspicious     bool           `gorm:"not null;default:false;index:idx_audit_log_suspicious" json:"is_suspicious"`
	SuspicionReasons pq.StringArray `gorm:"type:text[]" json:"suspicion_reasons,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_audit_log_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (AuditLog) TableName() string {
	return "audit_log"
}

// SuspicionReason joins the matched heuristics into one human-readable
// string, semicolon-separated
func (a *AuditLog) SuspicionReason() string {
	return strings.Join(a.SuspicionReasons, "; ")
}

// hashPayload fixes the field order and shape the chain hash is computed
// over. json.Marshal sorts map keys, so serialization is deterministic.
type hashPayload struct {
	Timestamp    string       `json:"timestamp"`
	UserID       *uint        `json:"userId"`
	UserEmail    *string      `json:"userEmail"`
	Action       string       `json:"action"`
	EntityType   string       `json:"entityType"`
	EntityID     *string      `json:"entityId"`
	Changes      FieldChanges `json:"changes"`
	PreviousHash *string      `json:"previousHash"`
}

// ComputeHash returns the SHA-256 chain hash of the entry's content fields
// and the preceding entry's hash
func (a *AuditLog) ComputeHash() (string, error) {
	payload := hashPayload{
		Timestamp:    a.CreatedAt.UTC().Format(time.RFC3339Nano),
		UserID:       a.UserID,
		UserEmail:    a.UserEmail,
		Action:       a.Action,
		EntityType:   a.EntityType,
		EntityID:     a.EntityID,
		Changes:      a.Changes,
		PreviousHash: a.PreviousHash,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize audit hash payload: %w", err)
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint      `json:"id,omitempty"`
	Scope         *string    `json:"scope,omitempty"`
	UserID        *uint      `json:"user_id,omitempty"`
	UserEmail     *string    `json:"user_email,omitempty"`
	Action        *string    `json:"action,omitempty"`
	EntityType    *string    `json:"entity_type,omitempty"`
	EntityID      *string    `json:"entity_id,omitempty"`
	IsSuspicious  *bool      `json:"is_suspicious,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
