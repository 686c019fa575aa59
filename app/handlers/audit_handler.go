package handlers

import (
	"context"
	"log"
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	businessflow "github.com/dkortekaas/invoicing-engine/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuditHandlerInterface defines the contract for audit trail handlers
type AuditHandlerInterface interface {
	VerifyChain(c fiber.Ctx) error
	ListEntries(c fiber.Ctx) error
	ListSuspicious(c fiber.Ctx) error
}

// AuditHandler handles audit trail HTTP requests
type AuditHandler struct {
	auditFlow businessflow.AuditTrailFlow
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditFlow businessflow.AuditTrailFlow) *AuditHandler {
	return &AuditHandler{
		auditFlow: auditFlow,
	}
}

func (h *AuditHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AuditHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// VerifyChain replays one audit chain and reports the first break, if any
// @Summary Verify Audit Chain
// @Description Replay the hash chain of the given scope and report whether it is intact
// @Tags Audit
// @Produce json
// @Param scope query string false "Chain scope, defaults to global"
// @Success 200 {object} dto.APIResponse{data=dto.ChainVerificationResponse} "Verification completed"
// @Router /api/v1/audit/verify [get]
func (h *AuditHandler) VerifyChain(c fiber.Ctx) error {
	if _, ok := c.Locals("account_id").(uint); !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	scope := c.Query("scope")
	if scope == "" {
		scope = "global"
	}

	result, err := h.auditFlow.VerifyChain(h.createRequestContext(c, "/api/v1/audit/verify"), scope)
	if err != nil {
		log.Println("Audit chain verification failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Audit chain verification failed", "CHAIN_VERIFICATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Audit chain verification completed", result)
}

// ListEntries returns the audit entries of one scope, oldest first
// @Summary List Audit Entries
// @Tags Audit
// @Produce json
// @Param scope query string false "Chain scope, defaults to global"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse "Entries retrieved"
// @Router /api/v1/audit/entries [get]
func (h *AuditHandler) ListEntries(c fiber.Ctx) error {
	if _, ok := c.Locals("account_id").(uint); !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	scope := c.Query("scope")
	if scope == "" {
		scope = "global"
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
	}

	items, err := h.auditFlow.ListEntries(h.createRequestContext(c, "/api/v1/audit/entries"), scope, limit, offset)
	if err != nil {
		log.Println("List audit entries failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list audit entries", "LIST_AUDIT_ENTRIES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Audit entries retrieved successfully", fiber.Map{
		"scope": scope,
		"items": items,
		"count": len(items),
	})
}

// ListSuspicious returns the flagged entries across all scopes, newest first
// @Summary List Suspicious Entries
// @Tags Audit
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse "Suspicious entries retrieved"
// @Router /api/v1/audit/suspicious [get]
func (h *AuditHandler) ListSuspicious(c fiber.Ctx) error {
	if _, ok := c.Locals("account_id").(uint); !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
	}

	items, err := h.auditFlow.ListSuspicious(h.createRequestContext(c, "/api/v1/audit/suspicious"), limit, offset)
	if err != nil {
		log.Println("List suspicious entries failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list suspicious entries", "LIST_SUSPICIOUS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Suspicious entries retrieved successfully", fiber.Map{
		"items": items,
		"count": len(items),
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *AuditHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
