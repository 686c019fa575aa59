package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	businessflow "github.com/dkortekaas/invoicing-engine/business_flow"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ScheduleHandlerInterface defines the contract for schedule handlers
type ScheduleHandlerInterface interface {
	CreateSchedule(c fiber.Ctx) error
	UpdateSchedule(c fiber.Ctx) error
	PauseSchedule(c fiber.Ctx) error
	ResumeSchedule(c fiber.Ctx) error
	CancelSchedule(c fiber.Ctx) error
	RegisterPriceChange(c fiber.Ctx) error
	GetSchedule(c fiber.Ctx) error
	ListSchedules(c fiber.Ctx) error
	ListScheduleLogs(c fiber.Ctx) error
}

// ScheduleHandler handles recurring-schedule HTTP requests
type ScheduleHandler struct {
	scheduleFlow businessflow.ScheduleFlow
	revenueFlow  businessflow.RevenueFlow
	validator    *validator.Validate
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduleFlow businessflow.ScheduleFlow, revenueFlow businessflow.RevenueFlow) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleFlow: scheduleFlow,
		revenueFlow:  revenueFlow,
		validator:    validator.New(),
	}
}

func (h *ScheduleHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ScheduleHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateSchedule handles the schedule creation process
// @Summary Create Schedule
// @Description Create a new recurring invoice schedule for a customer
// @Tags Schedules
// @Accept json
// @Produce json
// @Param request body dto.CreateScheduleRequest true "Schedule creation data"
// @Success 201 {object} dto.APIResponse{data=dto.ScheduleResponse} "Schedule created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/schedules [post]
func (h *ScheduleHandler) CreateSchedule(c fiber.Ctx) error {
	var req dto.CreateScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}
	req.AccountID = accountID

	result, err := h.scheduleFlow.Create(h.createRequestContext(c, "/api/v1/schedules"), &req, metadata)
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account not found", "ACCOUNT_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Account is inactive", "ACCOUNT_INACTIVE", nil)
		}
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsCustomerInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Customer is inactive", "CUSTOMER_INACTIVE", nil)
		}
		if businessflow.IsInvalidFrequency(err) || businessflow.IsInvalidInterval(err) ||
			businessflow.IsInvalidDayOfMonth(err) || businessflow.IsLineItemsRequired(err) ||
			businessflow.IsEndDateBeforeStart(err) || businessflow.IsInvalidAmount(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_SCHEDULE", nil)
		}

		log.Println("Schedule creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Schedule creation failed", "SCHEDULE_CREATION_FAILED", nil)
	}

	h.invalidateRevenue(c, accountID)

	return h.SuccessResponse(c, fiber.StatusCreated, "Schedule created successfully", result)
}

// UpdateSchedule handles the schedule update process
// @Summary Update Schedule
// @Description Update the mutable fields of an existing schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param uuid path string true "Schedule UUID"
// @Param request body dto.UpdateScheduleRequest true "Schedule update data"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleResponse} "Schedule updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 403 {object} dto.APIResponse "Forbidden - schedule access denied or update not allowed"
// @Failure 404 {object} dto.APIResponse "Schedule not found"
// @Router /api/v1/schedules/{uuid} [put]
func (h *ScheduleHandler) UpdateSchedule(c fiber.Ctx) error {
	scheduleUUID := c.Params("uuid")
	if scheduleUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule UUID is required", "MISSING_SCHEDULE_UUID", nil)
	}

	var req dto.UpdateScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = scheduleUUID

	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}
	req.AccountID = accountID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.scheduleFlow.Update(h.createRequestContext(c, "/api/v1/schedules/"+scheduleUUID), &req, metadata)
	if err != nil {
		if resp, ok := h.mapScheduleError(c, err); ok {
			return resp
		}
		if businessflow.IsScheduleUpdateNotAllowed(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Schedule cannot be updated in current status", "SCHEDULE_UPDATE_NOT_ALLOWED", nil)
		}
		if businessflow.IsInvalidDayOfMonth(err) || businessflow.IsEndDateBeforeStart(err) ||
			businessflow.IsLineItemsRequired(err) || businessflow.IsInvalidAmount(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_SCHEDULE", nil)
		}

		log.Println("Schedule update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Schedule update failed", "SCHEDULE_UPDATE_FAILED", nil)
	}

	h.invalidateRevenue(c, accountID)

	return h.SuccessResponse(c, fiber.StatusOK, "Schedule updated successfully", result)
}

// PauseSchedule suspends invoice generation for a schedule
// @Summary Pause Schedule
// @Tags Schedules
// @Produce json
// @Param uuid path string true "Schedule UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleResponse} "Schedule paused"
// @Failure 403 {object} dto.APIResponse "Invalid status transition"
// @Router /api/v1/schedules/{uuid}/pause [post]
func (h *ScheduleHandler) PauseSchedule(c fiber.Ctx) error {
	return h.transition(c, "pause", h.scheduleFlow.Pause)
}

// ResumeSchedule reactivates a paused schedule
// @Summary Resume Schedule
// @Tags Schedules
// @Produce json
// @Param uuid path string true "Schedule UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleResponse} "Schedule resumed"
// @Failure 403 {object} dto.APIResponse "Invalid status transition"
// @Router /api/v1/schedules/{uuid}/resume [post]
func (h *ScheduleHandler) ResumeSchedule(c fiber.Ctx) error {
	return h.transition(c, "resume", h.scheduleFlow.Resume)
}

// CancelSchedule permanently stops a schedule
// @Summary Cancel Schedule
// @Tags Schedules
// @Produce json
// @Param uuid path string true "Schedule UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleResponse} "Schedule cancelled"
// @Failure 403 {object} dto.APIResponse "Invalid status transition"
// @Router /api/v1/schedules/{uuid}/cancel [post]
func (h *ScheduleHandler) CancelSchedule(c fiber.Ctx) error {
	return h.transition(c, "cancel", h.scheduleFlow.Cancel)
}

type transitionFunc func(ctx context.Context, scheduleUUID string, accountID uint, metadata *businessflow.ClientMetadata) (*dto.ScheduleResponse, error)

func (h *ScheduleHandler) transition(c fiber.Ctx, action string, fn transitionFunc) error {
	scheduleUUID := c.Params("uuid")
	if scheduleUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule UUID is required", "MISSING_SCHEDULE_UUID", nil)
	}

	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := fn(h.createRequestContext(c, "/api/v1/schedules/"+scheduleUUID+"/"+action), scheduleUUID, accountID, metadata)
	if err != nil {
		if resp, ok := h.mapScheduleError(c, err); ok {
			return resp
		}
		if businessflow.IsInvalidStatusTransition(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, err.Error(), "INVALID_STATUS_TRANSITION", nil)
		}

		log.Println("Schedule transition failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Schedule transition failed", "SCHEDULE_TRANSITION_FAILED", nil)
	}

	h.invalidateRevenue(c, accountID)

	return h.SuccessResponse(c, fiber.StatusOK, "Schedule "+action+" applied", result)
}

// RegisterPriceChange records a pending price change for a schedule
// @Summary Register Price Change
// @Description Register a price change that takes effect on its effective date
// @Tags Schedules
// @Accept json
// @Produce json
// @Param uuid path string true "Schedule UUID"
// @Param request body dto.RegisterPriceChangeRequest true "Price change data"
// @Success 201 {object} dto.APIResponse "Price change registered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/schedules/{uuid}/price-changes [post]
func (h *ScheduleHandler) RegisterPriceChange(c fiber.Ctx) error {
	scheduleUUID := c.Params("uuid")
	if scheduleUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule UUID is required", "MISSING_SCHEDULE_UUID", nil)
	}

	var req dto.RegisterPriceChangeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.ScheduleUUID = scheduleUUID

	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}
	req.AccountID = accountID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err := h.scheduleFlow.RegisterPriceChange(h.createRequestContext(c, "/api/v1/schedules/"+scheduleUUID+"/price-changes"), &req, metadata)
	if err != nil {
		if resp, ok := h.mapScheduleError(c, err); ok {
			return resp
		}
		if businessflow.IsEffectiveDateInPast(err) || businessflow.IsInvalidAmount(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PRICE_CHANGE", nil)
		}

		log.Println("Price change registration failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Price change registration failed", "PRICE_CHANGE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Price change registered successfully", nil)
}

// GetSchedule returns a single schedule
// @Summary Get Schedule
// @Tags Schedules
// @Produce json
// @Param uuid path string true "Schedule UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleResponse} "Schedule retrieved"
// @Failure 404 {object} dto.APIResponse "Schedule not found"
// @Router /api/v1/schedules/{uuid} [get]
func (h *ScheduleHandler) GetSchedule(c fiber.Ctx) error {
	scheduleUUID := c.Params("uuid")
	if scheduleUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule UUID is required", "MISSING_SCHEDULE_UUID", nil)
	}

	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	result, err := h.scheduleFlow.Get(h.createRequestContext(c, "/api/v1/schedules/"+scheduleUUID), scheduleUUID, accountID)
	if err != nil {
		if resp, ok := h.mapScheduleError(c, err); ok {
			return resp
		}

		log.Println("Get schedule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve schedule", "GET_SCHEDULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Schedule retrieved successfully", result)
}

// ListSchedules returns the account's schedules
// @Summary List Schedules
// @Tags Schedules
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse "Schedules retrieved"
// @Router /api/v1/schedules [get]
func (h *ScheduleHandler) ListSchedules(c fiber.Ctx) error {
	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
	}

	items, err := h.scheduleFlow.List(h.createRequestContext(c, "/api/v1/schedules"), accountID, limit, offset)
	if err != nil {
		log.Println("List schedules failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list schedules", "LIST_SCHEDULES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Schedules retrieved successfully", fiber.Map{
		"items": items,
		"count": len(items),
	})
}

// ListScheduleLogs returns the log trail of one schedule
// @Summary List Schedule Logs
// @Tags Schedules
// @Produce json
// @Param uuid path string true "Schedule UUID"
// @Success 200 {object} dto.APIResponse "Schedule logs retrieved"
// @Router /api/v1/schedules/{uuid}/logs [get]
func (h *ScheduleHandler) ListScheduleLogs(c fiber.Ctx) error {
	scheduleUUID := c.Params("uuid")
	if scheduleUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule UUID is required", "MISSING_SCHEDULE_UUID", nil)
	}

	accountID, ok := c.Locals("account_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
	}

	items, err := h.scheduleFlow.ListLogs(h.createRequestContext(c, "/api/v1/schedules/"+scheduleUUID+"/logs"), scheduleUUID, accountID, limit, offset)
	if err != nil {
		if resp, ok := h.mapScheduleError(c, err); ok {
			return resp
		}

		log.Println("List schedule logs failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list schedule logs", "LIST_SCHEDULE_LOGS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Schedule logs retrieved successfully", fiber.Map{
		"items": items,
		"count": len(items),
	})
}

// mapScheduleError maps the lookup errors shared by every schedule endpoint.
// The boolean reports whether the error was handled; an unhandled error needs
// endpoint-specific mapping.
func (h *ScheduleHandler) mapScheduleError(c fiber.Ctx, err error) (error, bool) {
	if businessflow.IsScheduleNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Schedule not found", "SCHEDULE_NOT_FOUND", nil), true
	}
	if businessflow.IsScheduleAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: schedule belongs to another account", "SCHEDULE_ACCESS_DENIED", nil), true
	}
	return nil, false
}

// invalidateRevenue drops the cached revenue summary after a mutation. Cache
// misses on the next read rebuild it.
func (h *ScheduleHandler) invalidateRevenue(c fiber.Ctx, accountID uint) {
	if h.revenueFlow == nil {
		return
	}
	if err := h.revenueFlow.Invalidate(c.Context(), accountID); err != nil && !businessflow.IsCacheNotAvailable(err) {
		log.Println("Revenue cache invalidation failed", err)
	}
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *ScheduleHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}

// parsePagination reads page/page_size query params and converts them to
// limit/offset. Page numbers start at 1.
func parsePagination(c fiber.Ctx) (limit, offset int, err error) {
	page := 1
	pageSize := 25

	if raw := c.Query("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, businessflow.ErrInvalidPage
		}
	}
	if raw := c.Query("page_size"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize < 1 || pageSize > 100 {
			return 0, 0, businessflow.ErrInvalidPageSize
		}
	}

	return pageSize, (page - 1) * pageSize, nil
}
