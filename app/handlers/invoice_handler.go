package handlers

import (
	"context"
	"log"
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	businessflow "github.com/dkortekaas/invoicing-engine/business_flow"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// InvoiceHandlerInterface defines the contract for invoice handlers
type InvoiceHandlerInterface interface {
	PreviewInvoice(c fiber.Ctx) error
	GenerateInvoice(c fiber.Ctx) error
	RunBatch(c fiber.Ctx) error
	GetInvoice(c fiber.Ctx) error
	ListInvoices(c fiber.Ctx) error
}

// InvoiceHandler handles invoice materialization HTTP requests
type InvoiceHandler struct {
	generationFlow businessflow.InvoiceGenerationFlow
	validator      *validator.Validate
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(generationFlow businessflow.InvoiceGenerationFlow) *InvoiceHandler {
	return &InvoiceHandler{
		generationFlow: generationFlow,
		validator:      validator.New(),
	}
}

func (h *InvoiceHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *InvoiceHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// PreviewInvoice computes the next occurrence of a schedule without writing
// @Summary Preview Invoice
// @Description Compute what the next invoice of a schedule would look like, without side effects
// @Tags Invoices
// @Accept json
// @Produce json
// @Param uuid path string true "Schedule UUID"
// @Param request body dto.PreviewInvoiceRequest false "Preview options"
// @Success 200 {object} dto.APIResponse{data=dto.InvoicePreviewResponse} "Preview computed"
// @Failure 404 {object} dto.APIResponse "Schedule not found"
// @Router /api/v1/schedules/{uuid}/invoices/preview [post]
func (h *InvoiceHandler) PreviewInvoice(c fiber.Ctx) error {
	scheduleUUID := c.Params("uuid")
	if scheduleUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule UUID is required", "MISSING_SCHEDULE_UUID", nil)
	}

	var req dto.PreviewInvoiceRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	req.ScheduleUUID = scheduleUUID

	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}
	req.AccountID = accountID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.generationFlow.Preview(h.createRequestContext(c, "/api/v1/schedules/"+scheduleUUID+"/invoices/preview"), &req, metadata)
	if err != nil {
		if resp, ok := h.mapLookupError(c, err); ok {
			return resp
		}

		log.Println("Invoice preview failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Invoice preview failed", "INVOICE_PREVIEW_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Invoice preview computed successfully", result)
}

// GenerateInvoice materializes the next occurrence of a schedule
// @Summary Generate Invoice
// @Description Materialize one invoice from a due schedule and advance its cursor
// @Tags Invoices
// @Accept json
// @Produce json
// @Param uuid path string true "Schedule UUID"
// @Param request body dto.GenerateInvoiceRequest false "Generation options"
// @Success 201 {object} dto.APIResponse{data=dto.InvoiceResponse} "Invoice generated"
// @Failure 404 {object} dto.APIResponse "Schedule not found"
// @Failure 409 {object} dto.APIResponse "Schedule not due or number conflict"
// @Router /api/v1/schedules/{uuid}/invoices [post]
func (h *InvoiceHandler) GenerateInvoice(c fiber.Ctx) error {
	scheduleUUID := c.Params("uuid")
	if scheduleUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule UUID is required", "MISSING_SCHEDULE_UUID", nil)
	}

	var req dto.GenerateInvoiceRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	req.ScheduleUUID = scheduleUUID

	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}
	req.AccountID = accountID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.generationFlow.Generate(h.createRequestContext(c, "/api/v1/schedules/"+scheduleUUID+"/invoices"), &req, metadata)
	if err != nil {
		if resp, ok := h.mapLookupError(c, err); ok {
			return resp
		}
		if businessflow.IsScheduleNotActive(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Schedule is not active", "SCHEDULE_NOT_ACTIVE", nil)
		}
		if businessflow.IsScheduleNotDue(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Schedule is not due for generation", "SCHEDULE_NOT_DUE", nil)
		}
		if businessflow.IsInvoiceNumberConflict(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Invoice number allocation failed, try again", "INVOICE_NUMBER_CONFLICT", nil)
		}

		log.Println("Invoice generation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Invoice generation failed", "INVOICE_GENERATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Invoice generated successfully", result)
}

// RunBatch materializes every due schedule as of today
// @Summary Run Batch Generation
// @Description Run the due-schedule batch immediately instead of waiting for the scheduler
// @Tags Invoices
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.BatchRunResponse} "Batch completed"
// @Router /api/v1/invoices/run-batch [post]
func (h *InvoiceHandler) RunBatch(c fiber.Ctx) error {
	if _, ok := c.Locals("account_id").(uint); !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	// Batch runs can outlive a single request timeout
	ctx := createRequestContextWithTimeout(c, "/api/v1/invoices/run-batch", 5*time.Minute)

	result, err := h.generationFlow.RunDueGenerations(ctx, utils.UTCToday())
	if err != nil {
		log.Println("Batch run failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Batch run failed", "BATCH_RUN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Batch run completed", result)
}

// GetInvoice returns a single invoice with its lines
// @Summary Get Invoice
// @Tags Invoices
// @Produce json
// @Param uuid path string true "Invoice UUID"
// @Success 200 {object} dto.APIResponse{data=dto.InvoiceResponse} "Invoice retrieved"
// @Failure 404 {object} dto.APIResponse "Invoice not found"
// @Router /api/v1/invoices/{uuid} [get]
func (h *InvoiceHandler) GetInvoice(c fiber.Ctx) error {
	invoiceUUID := c.Params("uuid")
	if invoiceUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invoice UUID is required", "MISSING_INVOICE_UUID", nil)
	}

	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	result, err := h.generationFlow.GetInvoice(h.createRequestContext(c, "/api/v1/invoices/"+invoiceUUID), invoiceUUID, accountID)
	if err != nil {
		if businessflow.IsInvoiceNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", "INVOICE_NOT_FOUND", nil)
		}
		if businessflow.IsInvoiceAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: invoice belongs to another account", "INVOICE_ACCESS_DENIED", nil)
		}

		log.Println("Get invoice failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve invoice", "GET_INVOICE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Invoice retrieved successfully", result)
}

// ListInvoices returns the account's invoices
// @Summary List Invoices
// @Tags Invoices
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse "Invoices retrieved"
// @Router /api/v1/invoices [get]
func (h *InvoiceHandler) ListInvoices(c fiber.Ctx) error {
	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
	}

	items, err := h.generationFlow.ListInvoices(h.createRequestContext(c, "/api/v1/invoices"), accountID, limit, offset)
	if err != nil {
		log.Println("List invoices failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list invoices", "LIST_INVOICES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Invoices retrieved successfully", fiber.Map{
		"items": items,
		"count": len(items),
	})
}

// mapLookupError maps the schedule lookup errors shared by preview and
// generate. The boolean reports whether the error was handled; an unhandled
// error needs endpoint-specific mapping.
func (h *InvoiceHandler) mapLookupError(c fiber.Ctx, err error) (error, bool) {
	if businessflow.IsScheduleNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Schedule not found", "SCHEDULE_NOT_FOUND", nil), true
	}
	if businessflow.IsScheduleAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: schedule belongs to another account", "SCHEDULE_ACCESS_DENIED", nil), true
	}
	if businessflow.IsCustomerNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil), true
	}
	return nil, false
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *InvoiceHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
