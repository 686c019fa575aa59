// Package services provides outbound integrations for the invoicing engine
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dkortekaas/invoicing-engine/models"
)

// InvoiceMailer delivers generated invoices to customers
type InvoiceMailer interface {
	SendInvoice(ctx context.Context, invoice *models.Invoice, recipient string) error
}

// HTTPInvoiceMailer posts invoice notifications to an external mail gateway
type HTTPInvoiceMailer struct {
	baseURL string
	apiKey  string
	sender  string
	client  *http.Client
}

// NewHTTPInvoiceMailer creates a mailer backed by an HTTP mail gateway
func NewHTTPInvoiceMailer(baseURL, apiKey, sender string, timeout time.Duration) *HTTPInvoiceMailer {
	return &HTTPInvoiceMailer{
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
		client:  &http.Client{Timeout: timeout},
	}
}

type invoiceMailPayload struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	DueDate       string `json:"due_date"`
	Total         string `json:"total"`
}

// SendInvoice posts the invoice notification to the gateway
func (m *HTTPInvoiceMailer) SendInvoice(ctx context.Context, invoice *models.Invoice, recipient string) error {
	if recipient == "" {
		return fmt.Errorf("recipient email is empty")
	}

	payload := invoiceMailPayload{
		From:          m.sender,
		To:            recipient,
		Subject:       fmt.Sprintf("Factuur %s", invoice.InvoiceNumber),
		InvoiceNumber: invoice.InvoiceNumber,
		InvoiceDate:   invoice.InvoiceDate.Format("2006-01-02"),
		DueDate:       invoice.DueDate.Format("2006-01-02"),
		Total:         invoice.Total.StringFixed(2),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/mail/invoices", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver invoice mail: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail gateway returned status %d", resp.StatusCode)
	}

	return nil
}

// MockInvoiceMailer records sent invoices for tests
type MockInvoiceMailer struct {
	mu        sync.Mutex
	Sent      []SentInvoiceMail
	FailError error
}

// SentInvoiceMail is one recorded delivery
type SentInvoiceMail struct {
	InvoiceNumber string
	Recipient     string
}

// NewMockInvoiceMailer creates a mock mailer for testing
func NewMockInvoiceMailer() *MockInvoiceMailer {
	return &MockInvoiceMailer{}
}

// SendInvoice records the delivery, or fails when FailError is set
func (m *MockInvoiceMailer) SendInvoice(_ context.Context, invoice *models.Invoice, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailError != nil {
		return m.FailError
	}
	m.Sent = append(m.Sent, SentInvoiceMail{InvoiceNumber: invoice.InvoiceNumber, Recipient: recipient})
	return nil
}

// SentCount returns the number of recorded deliveries
func (m *MockInvoiceMailer) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
