package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/repository"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ScheduleFlow manages the lifecycle of recurring schedules
type ScheduleFlow interface {
	Create(ctx context.Context, req *dto.CreateScheduleRequest, metadata *ClientMetadata) (*dto.ScheduleResponse, error)
	Update(ctx context.Context, req *dto.UpdateScheduleRequest, metadata *ClientMetadata) (*dto.ScheduleResponse, error)
	Pause(ctx context.Context, scheduleUUID string, accountID uint, metadata *ClientMetadata) (*dto.ScheduleResponse, error)
	Resume(ctx context.Context, scheduleUUID string, accountID uint, metadata *ClientMetadata) (*dto.ScheduleResponse, error)
	Cancel(ctx context.Context, scheduleUUID string, accountID uint, metadata *ClientMetadata) (*dto.ScheduleResponse, error)
	RegisterPriceChange(ctx context.Context, req *dto.RegisterPriceChangeRequest, metadata *ClientMetadata) error
	Get(ctx context.Context, scheduleUUID string, accountID uint) (*dto.ScheduleResponse, error)
	List(ctx context.Context, accountID uint, limit, offset int) ([]dto.ScheduleResponse, error)
	ListLogs(ctx context.Context, scheduleUUID string, accountID uint, limit, offset int) ([]dto.ScheduleLogEntryResponse, error)
}

// ScheduleFlowImpl implements the schedule business flow
type ScheduleFlowImpl struct {
	db              *gorm.DB
	scheduleRepo    repository.ScheduleRepository
	accountRepo     repository.AccountRepository
	customerRepo    repository.CustomerRepository
	priceChangeRepo repository.PriceChangeRepository
	scheduleLogRepo repository.ScheduleLogRepository
	auditFlow       AuditTrailFlow
	now             func() time.Time
	runTx           func(ctx context.Context, fn func(context.Context) error) error
}

// NewScheduleFlow creates a new schedule flow
func NewScheduleFlow(
	db *gorm.DB,
	scheduleRepo repository.ScheduleRepository,
	accountRepo repository.AccountRepository,
	customerRepo repository.CustomerRepository,
	priceChangeRepo repository.PriceChangeRepository,
	scheduleLogRepo repository.ScheduleLogRepository,
	auditFlow AuditTrailFlow,
) ScheduleFlow {
	return &ScheduleFlowImpl{
		db:              db,
		scheduleRepo:    scheduleRepo,
		accountRepo:     accountRepo,
		customerRepo:    customerRepo,
		priceChangeRepo: priceChangeRepo,
		scheduleLogRepo: scheduleLogRepo,
		auditFlow:       auditFlow,
		now:             utils.UTCNow,
		runTx: func(ctx context.Context, fn func(context.Context) error) error {
			return repository.WithTransaction(ctx, db, fn)
		},
	}
}

// Create validates and persists a new recurring schedule with its line-item
// template. The cursor starts at the start date.
func (f *ScheduleFlowImpl) Create(ctx context.Context, req *dto.CreateScheduleRequest, metadata *ClientMetadata) (*dto.ScheduleResponse, error) {
	frequency := models.Frequency(req.Frequency)
	if !frequency.Valid() {
		return nil, ErrInvalidFrequency
	}

	interval := req.Interval
	if interval == 0 {
		interval = 1
	}
	if interval < 1 {
		return nil, ErrInvalidInterval
	}

	if req.DayOfMonth != nil && (*req.DayOfMonth < 1 || *req.DayOfMonth > 28) {
		return nil, ErrInvalidDayOfMonth
	}

	if len(req.LineItems) == 0 {
		return nil, ErrLineItemsRequired
	}

	startDate := normalizeDate(req.StartDate)
	if req.EndDate != nil && normalizeDate(*req.EndDate).Before(startDate) {
		return nil, ErrEndDateBeforeStart
	}

	account, err := f.accountRepo.ByID(ctx, req.AccountID)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_READ_FAILED", "failed to load account", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	customerUUID, err := uuid.Parse(req.CustomerUUID)
	if err != nil {
		return nil, ErrCustomerNotFound
	}
	customer, err := f.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_READ_FAILED", "failed to load customer", err)
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}
	if customer.AccountID != req.AccountID {
		return nil, ErrCustomerNotFound
	}
	if !customer.IsActive {
		return nil, ErrCustomerInactive
	}

	items, err := parseLineItems(req.LineItems)
	if err != nil {
		return nil, err
	}

	schedule := &models.RecurringSchedule{
		AccountID:  req.AccountID,
		CustomerID: customer.ID,
		Frequency:  frequency,
		Interval:   interval,
		DayOfMonth: req.DayOfMonth,
		StartDate:  startDate,
		NextDate:   startDate,
		AutoSend:   req.AutoSend,
		SendDays:   req.SendDays,
		Reference:  req.Reference,
		Notes:      req.Notes,
		LineItems:  items,
	}
	if req.EndDate != nil {
		schedule.EndDate = utils.ToPtr(normalizeDate(*req.EndDate))
	}

	err = f.runTx(ctx, func(txCtx context.Context) error {
		if err := f.scheduleRepo.Save(txCtx, schedule); err != nil {
			return NewBusinessError("SCHEDULE_SAVE_FAILED", "failed to save schedule", err)
		}
		entry := &models.ScheduleLogEntry{
			ScheduleID: schedule.ID,
			Action:     models.ScheduleEventCreated,
			CreatedAt:  f.now(),
		}
		if err := f.scheduleLogRepo.Save(txCtx, entry); err != nil {
			return NewBusinessError("SCHEDULE_LOG_FAILED", "failed to append schedule log entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.recordAudit(ctx, schedule, models.AuditActionCreate, nil, metadata)

	resp := ToScheduleResponse(schedule)
	return &resp, nil
}

// Update modifies a schedule's mutable fields. Frequency, interval and start
// date are fixed once the schedule exists; a new schedule replaces them.
func (f *ScheduleFlowImpl) Update(ctx context.Context, req *dto.UpdateScheduleRequest, metadata *ClientMetadata) (*dto.ScheduleResponse, error) {
	schedule, err := f.loadOwned(ctx, req.UUID, req.AccountID)
	if err != nil {
		return nil, err
	}

	if schedule.Status.IsTerminal() {
		return nil, ErrScheduleUpdateNotAllowed
	}

	oldSnapshot := scheduleSnapshot(schedule)

	if req.DayOfMonth != nil {
		if *req.DayOfMonth < 1 || *req.DayOfMonth > 28 {
			return nil, ErrInvalidDayOfMonth
		}
		schedule.DayOfMonth = req.DayOfMonth
	}
	if req.EndDate != nil {
		endDate := normalizeDate(*req.EndDate)
		if endDate.Before(schedule.StartDate) {
			return nil, ErrEndDateBeforeStart
		}
		schedule.EndDate = utils.ToPtr(endDate)
	}
	if req.AutoSend != nil {
		schedule.AutoSend = *req.AutoSend
	}
	if req.SendDays != nil {
		schedule.SendDays = *req.SendDays
	}
	if req.Reference != nil {
		schedule.Reference = req.Reference
	}
	if req.Notes != nil {
		schedule.Notes = req.Notes
	}

	var items []models.ScheduleLineItem
	if req.LineItems != nil {
		if len(req.LineItems) == 0 {
			return nil, ErrLineItemsRequired
		}
		items, err = parseLineItems(req.LineItems)
		if err != nil {
			return nil, err
		}
	}

	err = f.runTx(ctx, func(txCtx context.Context) error {
		if err := f.scheduleRepo.Update(txCtx, schedule); err != nil {
			return NewBusinessError("SCHEDULE_SAVE_FAILED", "failed to update schedule", err)
		}
		if items != nil {
			ptrs := make([]*models.ScheduleLineItem, len(items))
			for i := range items {
				ptrs[i] = &items[i]
			}
			if err := f.scheduleRepo.ReplaceLineItems(txCtx, schedule.ID, ptrs); err != nil {
				return NewBusinessError("SCHEDULE_SAVE_FAILED", "failed to replace line items", err)
			}
		}
		entry := &models.ScheduleLogEntry{
			ScheduleID: schedule.ID,
			Action:     models.ScheduleEventUpdated,
			CreatedAt:  f.now(),
		}
		if err := f.scheduleLogRepo.Save(txCtx, entry); err != nil {
			return NewBusinessError("SCHEDULE_LOG_FAILED", "failed to append schedule log entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.recordAudit(ctx, schedule, models.AuditActionUpdate, oldSnapshot, metadata)

	resp := ToScheduleResponse(schedule)
	return &resp, nil
}

// Pause suspends an active schedule. The cursor stays put, so resuming picks
// up from the same next date.
func (f *ScheduleFlowImpl) Pause(ctx context.Context, scheduleUUID string, accountID uint, metadata *ClientMetadata) (*dto.ScheduleResponse, error) {
	return f.transition(ctx, scheduleUUID, accountID, models.ScheduleStatusPaused, models.ScheduleEventPaused, metadata)
}

// Resume reactivates a paused schedule
func (f *ScheduleFlowImpl) Resume(ctx context.Context, scheduleUUID string, accountID uint, metadata *ClientMetadata) (*dto.ScheduleResponse, error) {
	return f.transition(ctx, scheduleUUID, accountID, models.ScheduleStatusActive, models.ScheduleEventResumed, metadata)
}

// Cancel terminates a schedule. Cancelled schedules never materialize again.
func (f *ScheduleFlowImpl) Cancel(ctx context.Context, scheduleUUID string, accountID uint, metadata *ClientMetadata) (*dto.ScheduleResponse, error) {
	return f.transition(ctx, scheduleUUID, accountID, models.ScheduleStatusCancelled, models.ScheduleEventCancelled, metadata)
}

func (f *ScheduleFlowImpl) transition(ctx context.Context, scheduleUUID string, accountID uint, target models.ScheduleStatus, event string, metadata *ClientMetadata) (*dto.ScheduleResponse, error) {
	schedule, err := f.loadOwned(ctx, scheduleUUID, accountID)
	if err != nil {
		return nil, err
	}

	if !schedule.CanTransitionTo(target) {
		return nil, NewBusinessErrorf("INVALID_TRANSITION", "cannot transition schedule from %s to %s", ErrInvalidStatusTransition, schedule.Status, target)
	}

	oldSnapshot := scheduleSnapshot(schedule)

	err = f.runTx(ctx, func(txCtx context.Context) error {
		if err := f.scheduleRepo.UpdateStatus(txCtx, schedule.ID, target); err != nil {
			return NewBusinessError("SCHEDULE_SAVE_FAILED", "failed to update schedule status", err)
		}
		entry := &models.ScheduleLogEntry{
			ScheduleID: schedule.ID,
			Action:     event,
			CreatedAt:  f.now(),
		}
		if err := f.scheduleLogRepo.Save(txCtx, entry); err != nil {
			return NewBusinessError("SCHEDULE_LOG_FAILED", "failed to append schedule log entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	schedule.Status = target

	f.recordAudit(ctx, schedule, models.AuditActionUpdate, oldSnapshot, metadata)

	resp := ToScheduleResponse(schedule)
	return &resp, nil
}

// RegisterPriceChange queues a price revision that takes effect from its
// effective date. The earliest eligible change is consumed by the next
// materialization.
func (f *ScheduleFlowImpl) RegisterPriceChange(ctx context.Context, req *dto.RegisterPriceChangeRequest, metadata *ClientMetadata) error {
	schedule, err := f.loadOwned(ctx, req.ScheduleUUID, req.AccountID)
	if err != nil {
		return err
	}

	if schedule.Status.IsTerminal() {
		return ErrScheduleUpdateNotAllowed
	}

	revisions := make(models.PriceRevisions, 0, len(req.Revisions))
	for _, rev := range req.Revisions {
		revision := models.PriceRevision{Position: rev.Position}
		if rev.UnitPrice != nil {
			price, err := decimal.NewFromString(*rev.UnitPrice)
			if err != nil {
				return NewBusinessErrorf("INVALID_AMOUNT", "invalid unit price %q", ErrInvalidAmount, *rev.UnitPrice)
			}
			revision.UnitPrice = &price
		}
		if rev.Quantity != nil {
			qty, err := decimal.NewFromString(*rev.Quantity)
			if err != nil {
				return NewBusinessErrorf("INVALID_AMOUNT", "invalid quantity %q", ErrInvalidAmount, *rev.Quantity)
			}
			revision.Quantity = &qty
		}
		if rev.VATRate != nil {
			rate, err := decimal.NewFromString(*rev.VATRate)
			if err != nil {
				return NewBusinessErrorf("INVALID_AMOUNT", "invalid VAT rate %q", ErrInvalidAmount, *rev.VATRate)
			}
			revision.VATRate = &rate
		}
		revisions = append(revisions, revision)
	}

	change := &models.PendingPriceChange{
		ScheduleID:    schedule.ID,
		EffectiveDate: normalizeDate(req.EffectiveDate),
		Revisions:     revisions,
		CreatedAt:     f.now(),
	}

	err = f.runTx(ctx, func(txCtx context.Context) error {
		if err := f.priceChangeRepo.Save(txCtx, change); err != nil {
			return NewBusinessError("PRICE_CHANGE_SAVE_FAILED", "failed to save price change", err)
		}
		entry := &models.ScheduleLogEntry{
			ScheduleID: schedule.ID,
			Action:     models.ScheduleEventPriceChangeAdded,
			Detail:     utils.ToPtr(fmt.Sprintf("effective from %s", change.EffectiveDate.Format("2006-01-02"))),
			CreatedAt:  f.now(),
		}
		if err := f.scheduleLogRepo.Save(txCtx, entry); err != nil {
			return NewBusinessError("SCHEDULE_LOG_FAILED", "failed to append schedule log entry", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	f.recordAudit(ctx, schedule, models.AuditActionUpdate, nil, metadata)

	return nil
}

// Get returns one schedule of the account
func (f *ScheduleFlowImpl) Get(ctx context.Context, scheduleUUID string, accountID uint) (*dto.ScheduleResponse, error) {
	schedule, err := f.loadOwned(ctx, scheduleUUID, accountID)
	if err != nil {
		return nil, err
	}

	resp := ToScheduleResponse(schedule)
	return &resp, nil
}

// List returns the account's schedules, newest first
func (f *ScheduleFlowImpl) List(ctx context.Context, accountID uint, limit, offset int) ([]dto.ScheduleResponse, error) {
	schedules, err := f.scheduleRepo.ByFilter(ctx, models.RecurringScheduleFilter{AccountID: &accountID}, "", limit, offset)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_LIST_FAILED", "failed to list schedules", err)
	}

	responses := make([]dto.ScheduleResponse, 0, len(schedules))
	for _, schedule := range schedules {
		responses = append(responses, ToScheduleResponse(schedule))
	}
	return responses, nil
}

// ListLogs returns one schedule's append-only trail, newest first
func (f *ScheduleFlowImpl) ListLogs(ctx context.Context, scheduleUUID string, accountID uint, limit, offset int) ([]dto.ScheduleLogEntryResponse, error) {
	schedule, err := f.loadOwned(ctx, scheduleUUID, accountID)
	if err != nil {
		return nil, err
	}

	entries, err := f.scheduleLogRepo.ListBySchedule(ctx, schedule.ID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_LOG_LIST_FAILED", "failed to list schedule log entries", err)
	}

	responses := make([]dto.ScheduleLogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, ToScheduleLogEntryResponse(entry))
	}
	return responses, nil
}

func (f *ScheduleFlowImpl) loadOwned(ctx context.Context, scheduleUUID string, accountID uint) (*models.RecurringSchedule, error) {
	parsed, err := uuid.Parse(scheduleUUID)
	if err != nil {
		return nil, ErrScheduleNotFound
	}

	schedule, err := f.scheduleRepo.ByUUID(ctx, parsed)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_READ_FAILED", "failed to load schedule", err)
	}
	if schedule == nil {
		return nil, ErrScheduleNotFound
	}
	if schedule.AccountID != accountID {
		return nil, ErrScheduleAccessDenied
	}

	return schedule, nil
}

func parseLineItems(items []dto.ScheduleLineItemDTO) ([]models.ScheduleLineItem, error) {
	parsed := make([]models.ScheduleLineItem, 0, len(items))
	for _, item := range items {
		quantity, err := decimal.NewFromString(item.Quantity)
		if err != nil || quantity.IsNegative() {
			return nil, NewBusinessErrorf("INVALID_AMOUNT", "invalid quantity %q", ErrInvalidAmount, item.Quantity)
		}
		unitPrice, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, NewBusinessErrorf("INVALID_AMOUNT", "invalid unit price %q", ErrInvalidAmount, item.UnitPrice)
		}
		vatRate, err := decimal.NewFromString(item.VATRate)
		if err != nil || vatRate.IsNegative() {
			return nil, NewBusinessErrorf("INVALID_AMOUNT", "invalid VAT rate %q", ErrInvalidAmount, item.VATRate)
		}
		parsed = append(parsed, models.ScheduleLineItem{
			Position:    item.Position,
			Description: item.Description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			VATRate:     vatRate,
		})
	}
	return parsed, nil
}

func scheduleSnapshot(s *models.RecurringSchedule) map[string]any {
	snapshot := map[string]any{
		"status":   s.Status.String(),
		"autoSend": s.AutoSend,
		"sendDays": s.SendDays,
	}
	if s.DayOfMonth != nil {
		snapshot["dayOfMonth"] = *s.DayOfMonth
	}
	if s.EndDate != nil {
		snapshot["endDate"] = s.EndDate.Format("2006-01-02")
	}
	if s.Reference != nil {
		snapshot["reference"] = *s.Reference
	}
	return snapshot
}

func (f *ScheduleFlowImpl) recordAudit(ctx context.Context, schedule *models.RecurringSchedule, action string, oldSnapshot map[string]any, metadata *ClientMetadata) {
	if f.auditFlow == nil {
		return
	}

	err := f.auditFlow.Record(ctx, &RecordAuditInput{
		Action:     action,
		EntityType: models.AuditEntitySchedule,
		EntityID:   utils.ToPtr(fmt.Sprintf("%d", schedule.ID)),
		Changes:    models.DetectChanges(oldSnapshot, scheduleSnapshot(schedule)),
		Metadata:   metadata,
	})
	if err != nil {
		dropAuditEntry(err)
	}
}
