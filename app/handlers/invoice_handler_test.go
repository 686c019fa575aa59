package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	businessflow "github.com/dkortekaas/invoicing-engine/business_flow"
)

type stubGenerationFlow struct {
	previewErr  error
	generateErr error
}

func (s *stubGenerationFlow) Preview(ctx context.Context, req *dto.PreviewInvoiceRequest, metadata *businessflow.ClientMetadata) (*dto.InvoicePreviewResponse, error) {
	if s.previewErr != nil {
		return nil, s.previewErr
	}
	return &dto.InvoicePreviewResponse{}, nil
}

func (s *stubGenerationFlow) Generate(ctx context.Context, req *dto.GenerateInvoiceRequest, metadata *businessflow.ClientMetadata) (*dto.InvoiceResponse, error) {
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return &dto.InvoiceResponse{}, nil
}

func (s *stubGenerationFlow) RunDueGenerations(ctx context.Context, asOf time.Time) (*dto.BatchRunResponse, error) {
	return &dto.BatchRunResponse{}, nil
}

func (s *stubGenerationFlow) GetInvoice(ctx context.Context, invoiceUUID string, accountID uint) (*dto.InvoiceResponse, error) {
	return &dto.InvoiceResponse{}, nil
}

func (s *stubGenerationFlow) ListInvoices(ctx context.Context, accountID uint, limit, offset int) ([]dto.InvoiceResponse, error) {
	return nil, nil
}

func newInvoiceTestApp(flow businessflow.InvoiceGenerationFlow) *fiber.App {
	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		c.Locals("account_id", uint(1))
		return c.Next()
	})

	handler := NewInvoiceHandler(flow)
	app.Post("/api/v1/schedules/:uuid/invoices/preview", handler.PreviewInvoice)
	app.Post("/api/v1/schedules/:uuid/invoices", handler.GenerateInvoice)
	return app
}

func decodeErrorBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestPreviewInvoiceLookupErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		flowErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "schedule not found",
			flowErr:    businessflow.ErrScheduleNotFound,
			wantStatus: fiber.StatusNotFound,
			wantCode:   "SCHEDULE_NOT_FOUND",
		},
		{
			name:       "schedule of another account",
			flowErr:    businessflow.ErrScheduleAccessDenied,
			wantStatus: fiber.StatusForbidden,
			wantCode:   "SCHEDULE_ACCESS_DENIED",
		},
		{
			name:       "customer not found",
			flowErr:    businessflow.ErrCustomerNotFound,
			wantStatus: fiber.StatusNotFound,
			wantCode:   "CUSTOMER_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newInvoiceTestApp(&stubGenerationFlow{previewErr: tt.flowErr})

			req, err := http.NewRequest(http.MethodPost, "/api/v1/schedules/abc-123/invoices/preview", nil)
			require.NoError(t, err)
			req.Host = "example.com"

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeErrorBody(t, resp))
		})
	}
}

func TestGenerateInvoiceScheduleNotFoundStatus(t *testing.T) {
	app := newInvoiceTestApp(&stubGenerationFlow{generateErr: businessflow.ErrScheduleNotFound})

	req, err := http.NewRequest(http.MethodPost, "/api/v1/schedules/abc-123/invoices", nil)
	require.NoError(t, err)
	req.Host = "example.com"

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SCHEDULE_NOT_FOUND", decodeErrorBody(t, resp))
}
