package dto

import (
	"time"
)

// PreviewInvoiceRequest asks what the next materialization would produce
type PreviewInvoiceRequest struct {
	ScheduleUUID string     `json:"-"`
	AccountID    uint       `json:"-"`
	InvoiceDate  *time.Time `json:"invoice_date"`
}

// GenerateInvoiceRequest materializes one schedule occurrence
type GenerateInvoiceRequest struct {
	ScheduleUUID string     `json:"-"`
	AccountID    uint       `json:"-"`
	InvoiceDate  *time.Time `json:"invoice_date"`
	SendEmail    *bool      `json:"send_email"`
}

// InvoiceLineResponse is one computed invoice line
type InvoiceLineResponse struct {
	Position    int    `json:"position"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	VATRate     string `json:"vat_rate"`
	Subtotal    string `json:"subtotal"`
	VATAmount   string `json:"vat_amount"`
	Total       string `json:"total"`
}

// InvoicePreviewResponse is the no-side-effect materialization payload
type InvoicePreviewResponse struct {
	ScheduleUUID        string                `json:"schedule_uuid"`
	InvoiceDate         string                `json:"invoice_date"`
	DueDate             string                `json:"due_date"`
	Subtotal            string                `json:"subtotal"`
	VATAmount           string                `json:"vat_amount"`
	Total               string                `json:"total"`
	AutoSend            bool                  `json:"auto_send"`
	PendingPriceChange  *uint                 `json:"pending_price_change_id,omitempty"`
	Lines               []InvoiceLineResponse `json:"lines"`
}

// InvoiceResponse is the API representation of an invoice
type InvoiceResponse struct {
	UUID          string                `json:"uuid"`
	InvoiceNumber string                `json:"invoice_number"`
	InvoiceDate   string                `json:"invoice_date"`
	DueDate       string                `json:"due_date"`
	Status        string                `json:"status"`
	Subtotal      string                `json:"subtotal"`
	VATAmount     string                `json:"vat_amount"`
	Total         string                `json:"total"`
	SentAt        *time.Time            `json:"sent_at,omitempty"`
	PaidAt        *time.Time            `json:"paid_at,omitempty"`
	Lines         []InvoiceLineResponse `json:"lines,omitempty"`
}

// GenerationResultResponse is one row of a batch run's result ledger
type GenerationResultResponse struct {
	ScheduleID    uint    `json:"schedule_id"`
	InvoiceID     *uint   `json:"invoice_id,omitempty"`
	InvoiceNumber *string `json:"invoice_number,omitempty"`
	Success       bool    `json:"success"`
	Error         *string `json:"error,omitempty"`
}

// BatchRunResponse is the full outcome of one batch run
type BatchRunResponse struct {
	AsOf      string                     `json:"as_of"`
	Total     int                        `json:"total"`
	Succeeded int                        `json:"succeeded"`
	Failed    int                        `json:"failed"`
	Results   []GenerationResultResponse `json:"results"`
}
