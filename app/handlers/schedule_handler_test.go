package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	businessflow "github.com/dkortekaas/invoicing-engine/business_flow"
)

// stubScheduleFlow returns the configured error from every lookup-backed
// operation so the handler's status mapping can be exercised directly.
type stubScheduleFlow struct {
	err error
}

func (s *stubScheduleFlow) Create(ctx context.Context, req *dto.CreateScheduleRequest, metadata *businessflow.ClientMetadata) (*dto.ScheduleResponse, error) {
	return nil, s.err
}

func (s *stubScheduleFlow) Update(ctx context.Context, req *dto.UpdateScheduleRequest, metadata *businessflow.ClientMetadata) (*dto.ScheduleResponse, error) {
	return nil, s.err
}

func (s *stubScheduleFlow) Pause(ctx context.Context, scheduleUUID string, accountID uint, metadata *businessflow.ClientMetadata) (*dto.ScheduleResponse, error) {
	return nil, s.err
}

func (s *stubScheduleFlow) Resume(ctx context.Context, scheduleUUID string, accountID uint, metadata *businessflow.ClientMetadata) (*dto.ScheduleResponse, error) {
	return nil, s.err
}

func (s *stubScheduleFlow) Cancel(ctx context.Context, scheduleUUID string, accountID uint, metadata *businessflow.ClientMetadata) (*dto.ScheduleResponse, error) {
	return nil, s.err
}

func (s *stubScheduleFlow) RegisterPriceChange(ctx context.Context, req *dto.RegisterPriceChangeRequest, metadata *businessflow.ClientMetadata) error {
	return s.err
}

func (s *stubScheduleFlow) Get(ctx context.Context, scheduleUUID string, accountID uint) (*dto.ScheduleResponse, error) {
	return nil, s.err
}

func (s *stubScheduleFlow) List(ctx context.Context, accountID uint, limit, offset int) ([]dto.ScheduleResponse, error) {
	return nil, s.err
}

func (s *stubScheduleFlow) ListLogs(ctx context.Context, scheduleUUID string, accountID uint, limit, offset int) ([]dto.ScheduleLogEntryResponse, error) {
	return nil, s.err
}

type stubRevenueFlow struct{}

func (s *stubRevenueFlow) Summary(ctx context.Context, accountID uint) (*dto.RevenueSummaryResponse, error) {
	return &dto.RevenueSummaryResponse{}, nil
}

func (s *stubRevenueFlow) Invalidate(ctx context.Context, accountID uint) error {
	return nil
}

func newScheduleTestApp(flow businessflow.ScheduleFlow) *fiber.App {
	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		c.Locals("account_id", uint(1))
		return c.Next()
	})

	handler := NewScheduleHandler(flow, &stubRevenueFlow{})
	app.Get("/api/v1/schedules/:uuid", handler.GetSchedule)
	app.Post("/api/v1/schedules/:uuid/pause", handler.PauseSchedule)
	app.Post("/api/v1/schedules/:uuid/resume", handler.ResumeSchedule)
	app.Post("/api/v1/schedules/:uuid/cancel", handler.CancelSchedule)
	app.Get("/api/v1/schedules/:uuid/logs", handler.ListScheduleLogs)
	return app
}

func TestScheduleEndpointsLookupErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		flowErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "get unknown schedule",
			method:     http.MethodGet,
			target:     "/api/v1/schedules/abc-123",
			flowErr:    businessflow.ErrScheduleNotFound,
			wantStatus: fiber.StatusNotFound,
			wantCode:   "SCHEDULE_NOT_FOUND",
		},
		{
			name:       "get schedule of another account",
			method:     http.MethodGet,
			target:     "/api/v1/schedules/abc-123",
			flowErr:    businessflow.ErrScheduleAccessDenied,
			wantStatus: fiber.StatusForbidden,
			wantCode:   "SCHEDULE_ACCESS_DENIED",
		},
		{
			name:       "pause unknown schedule",
			method:     http.MethodPost,
			target:     "/api/v1/schedules/abc-123/pause",
			flowErr:    businessflow.ErrScheduleNotFound,
			wantStatus: fiber.StatusNotFound,
			wantCode:   "SCHEDULE_NOT_FOUND",
		},
		{
			name:       "resume schedule of another account",
			method:     http.MethodPost,
			target:     "/api/v1/schedules/abc-123/resume",
			flowErr:    businessflow.ErrScheduleAccessDenied,
			wantStatus: fiber.StatusForbidden,
			wantCode:   "SCHEDULE_ACCESS_DENIED",
		},
		{
			name:       "cancel unknown schedule",
			method:     http.MethodPost,
			target:     "/api/v1/schedules/abc-123/cancel",
			flowErr:    businessflow.ErrScheduleNotFound,
			wantStatus: fiber.StatusNotFound,
			wantCode:   "SCHEDULE_NOT_FOUND",
		},
		{
			name:       "logs of unknown schedule",
			method:     http.MethodGet,
			target:     "/api/v1/schedules/abc-123/logs",
			flowErr:    businessflow.ErrScheduleNotFound,
			wantStatus: fiber.StatusNotFound,
			wantCode:   "SCHEDULE_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newScheduleTestApp(&stubScheduleFlow{err: tt.flowErr})

			req, err := http.NewRequest(tt.method, tt.target, nil)
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
