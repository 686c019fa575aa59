package dto

import (
	"time"
)

// ScheduleLineItemDTO is one template line in schedule requests/responses
type ScheduleLineItemDTO struct {
	Position    int    `json:"position" validate:"gte=0"`
	Description string `json:"description" validate:"required,max=1000"`
	Quantity    string `json:"quantity" validate:"required"`
	UnitPrice   string `json:"unit_price" validate:"required"`
	VATRate     string `json:"vat_rate" validate:"required"`
}

// CreateScheduleRequest creates a new recurring schedule
type CreateScheduleRequest struct {
	AccountID    uint                  `json:"-"`
	CustomerUUID string                `json:"customer_uuid" validate:"required,uuid4"`
	Frequency    string                `json:"frequency" validate:"required,oneof=WEEKLY BIWEEKLY MONTHLY QUARTERLY BIANNUAL ANNUAL"`
	Interval     int                   `json:"interval" validate:"omitempty,gte=1,lte=36"`
	DayOfMonth   *int                  `json:"day_of_month" validate:"omitempty,gte=1,lte=28"`
	StartDate    time.Time             `json:"start_date" validate:"required"`
	EndDate      *time.Time            `json:"end_date"`
	AutoSend     bool                  `json:"auto_send"`
	SendDays     int                   `json:"send_days" validate:"gte=0,lte=90"`
	Reference    *string               `json:"reference" validate:"omitempty,max=255"`
	Notes        *string               `json:"notes"`
	LineItems    []ScheduleLineItemDTO `json:"line_items" validate:"required,min=1,dive"`
}

// UpdateScheduleRequest updates an existing schedule
type UpdateScheduleRequest struct {
	UUID       string                `json:"-"`
	AccountID  uint                  `json:"-"`
	DayOfMonth *int                  `json:"day_of_month" validate:"omitempty,gte=1,lte=28"`
	EndDate    *time.Time            `json:"end_date"`
	AutoSend   *bool                 `json:"auto_send"`
	SendDays   *int                  `json:"send_days" validate:"omitempty,gte=0,lte=90"`
	Reference  *string               `json:"reference" validate:"omitempty,max=255"`
	Notes      *string               `json:"notes"`
	LineItems  []ScheduleLineItemDTO `json:"line_items" validate:"omitempty,min=1,dive"`
}

// RegisterPriceChangeRequest registers a pending price change on a schedule
type RegisterPriceChangeRequest struct {
	ScheduleUUID  string                   `json:"-"`
	AccountID     uint                     `json:"-"`
	EffectiveDate time.Time                `json:"effective_date" validate:"required"`
	Revisions     []PriceRevisionDTO       `json:"revisions" validate:"required,min=1,dive"`
}

// PriceRevisionDTO is one line's new pricing in a price change request
type PriceRevisionDTO struct {
	Position  int     `json:"position" validate:"gte=0"`
	UnitPrice *string `json:"unit_price"`
	Quantity  *string `json:"quantity"`
	VATRate   *string `json:"vat_rate"`
}

// ScheduleResponse is the API representation of a schedule
type ScheduleResponse struct {
	UUID       string     `json:"uuid"`
	CustomerID uint       `json:"customer_id"`
	Frequency  string     `json:"frequency"`
	Interval   int        `json:"interval"`
	DayOfMonth *int       `json:"day_of_month,omitempty"`
	StartDate  string     `json:"start_date"`
	EndDate    *string    `json:"end_date,omitempty"`
	NextDate   string     `json:"next_date"`
	LastDate   *string    `json:"last_date,omitempty"`
	Status     string     `json:"status"`
	AutoSend   bool       `json:"auto_send"`
	SendDays   int        `json:"send_days"`
	Reference  *string    `json:"reference,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// ScheduleLogEntryResponse is one entry of a schedule's log trail
type ScheduleLogEntryResponse struct {
	Action    string    `json:"action"`
	InvoiceID *uint     `json:"invoice_id,omitempty"`
	Detail    *string   `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
