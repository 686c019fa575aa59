// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// ToScheduleResponse converts a schedule model to its API representation
func ToScheduleResponse(schedule *models.RecurringSchedule) dto.ScheduleResponse {
	resp := dto.ScheduleResponse{
		UUID:       schedule.UUID.String(),
		CustomerID: schedule.CustomerID,
		Frequency:  schedule.Frequency.String(),
		Interval:   schedule.Interval,
		DayOfMonth: schedule.DayOfMonth,
		StartDate:  schedule.StartDate.Format("2006-01-02"),
		NextDate:   schedule.NextDate.Format("2006-01-02"),
		Status:     schedule.Status.String(),
		AutoSend:   schedule.AutoSend,
		SendDays:   schedule.SendDays,
		Reference:  schedule.Reference,
		CreatedAt:  schedule.CreatedAt,
		UpdatedAt:  schedule.UpdatedAt,
	}
	if schedule.EndDate != nil {
		resp.EndDate = utils.ToPtr(schedule.EndDate.Format("2006-01-02"))
	}
	if schedule.LastDate != nil {
		resp.LastDate = utils.ToPtr(schedule.LastDate.Format("2006-01-02"))
	}
	return resp
}

// ToInvoiceResponse converts an invoice model to its API representation
func ToInvoiceResponse(invoice *models.Invoice) dto.InvoiceResponse {
	resp := dto.InvoiceResponse{
		UUID:          invoice.UUID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		InvoiceDate:   invoice.InvoiceDate.Format("2006-01-02"),
		DueDate:       invoice.DueDate.Format("2006-01-02"),
		Status:        invoice.Status.String(),
		Subtotal:      invoice.Subtotal.StringFixed(2),
		VATAmount:     invoice.VATAmount.StringFixed(2),
		Total:         invoice.Total.StringFixed(2),
		SentAt:        invoice.SentAt,
		PaidAt:        invoice.PaidAt,
	}
	for _, line := range invoice.LineItems {
		resp.Lines = append(resp.Lines, ToInvoiceLineResponse(&line))
	}
	return resp
}

// ToInvoiceLineResponse converts an invoice line to its API representation
func ToInvoiceLineResponse(line *models.InvoiceLineItem) dto.InvoiceLineResponse {
	return dto.InvoiceLineResponse{
		Position:    line.Position,
		Description: line.Description,
		Quantity:    line.Quantity.String(),
		UnitPrice:   line.UnitPrice.StringFixed(2),
		VATRate:     line.VATRate.StringFixed(2),
		Subtotal:    line.Subtotal.StringFixed(2),
		VATAmount:   line.VATAmount.StringFixed(2),
		Total:       line.Total.StringFixed(2),
	}
}

// ToScheduleLogEntryResponse converts a schedule log entry to its API representation
func ToScheduleLogEntryResponse(entry *models.ScheduleLogEntry) dto.ScheduleLogEntryResponse {
	return dto.ScheduleLogEntryResponse{
		Action:    entry.Action,
		InvoiceID: entry.InvoiceID,
		Detail:    entry.Detail,
		CreatedAt: entry.CreatedAt,
	}
}

// ToAuditEntryResponse converts an audit log entry to its API representation
func ToAuditEntryResponse(entry *models.AuditLog) dto.AuditEntryResponse {
	return dto.AuditEntryResponse{
		ID:              entry.ID,
		Scope:           entry.Scope,
		UserEmail:       entry.UserEmail,
		Action:          entry.Action,
		EntityType:      entry.EntityType,
		EntityID:        entry.EntityID,
		IsSuspicious:    entry.IsSuspicious,
		SuspicionReason: entry.SuspicionReason(),
		Hash:            entry.Hash,
		CreatedAt:       entry.CreatedAt,
	}
}

// normalizeDate truncates a timestamp to its UTC calendar date
func normalizeDate(t time.Time) time.Time {
	return utils.StartOfDayUTC(t)
}
