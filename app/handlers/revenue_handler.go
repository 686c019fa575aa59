package handlers

import (
	"context"
	"log"
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	businessflow "github.com/dkortekaas/invoicing-engine/business_flow"
	"github.com/gofiber/fiber/v3"
)

// RevenueHandlerInterface defines the contract for revenue handlers
type RevenueHandlerInterface interface {
	GetSummary(c fiber.Ctx) error
}

// RevenueHandler handles recurring-revenue HTTP requests
type RevenueHandler struct {
	revenueFlow businessflow.RevenueFlow
}

// NewRevenueHandler creates a new revenue handler
func NewRevenueHandler(revenueFlow businessflow.RevenueFlow) *RevenueHandler {
	return &RevenueHandler{
		revenueFlow: revenueFlow,
	}
}

func (h *RevenueHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RevenueHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// GetSummary returns the account's normalized recurring revenue
// @Summary Revenue Summary
// @Description Normalize all active schedules to monthly and annual recurring revenue
// @Tags Revenue
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.RevenueSummaryResponse} "Summary computed"
// @Router /api/v1/revenue/summary [get]
func (h *RevenueHandler) GetSummary(c fiber.Ctx) error {
	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	result, err := h.revenueFlow.Summary(h.createRequestContext(c, "/api/v1/revenue/summary"), accountID)
	if err != nil {
		log.Println("Revenue summary failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute revenue summary", "REVENUE_SUMMARY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Revenue summary computed successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *RevenueHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
