package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	"github.com/dkortekaas/invoicing-engine/app/services"
	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/repository"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// numberAllocationAttempts bounds retries after an invoice number collision.
// Each attempt runs a fresh transaction, so a rolled-back attempt leaves no
// partial state behind.
const numberAllocationAttempts = 3

var (
	invoicesGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicing_invoices_generated_total",
		Help: "Total number of invoices materialized from recurring schedules",
	}, []string{"status"})

	generationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoicing_generation_failures_total",
		Help: "Total number of failed schedule materializations",
	})

	numberCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoicing_number_collisions_total",
		Help: "Total number of invoice number allocation collisions",
	})
)

// InvoiceGenerationFlow materializes invoices from recurring schedules
type InvoiceGenerationFlow interface {
	Preview(ctx context.Context, req *dto.PreviewInvoiceRequest, metadata *ClientMetadata) (*dto.InvoicePreviewResponse, error)
	Generate(ctx context.Context, req *dto.GenerateInvoiceRequest, metadata *ClientMetadata) (*dto.InvoiceResponse, error)
	RunDueGenerations(ctx context.Context, asOf time.Time) (*dto.BatchRunResponse, error)
	GetInvoice(ctx context.Context, invoiceUUID string, accountID uint) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, accountID uint, limit, offset int) ([]dto.InvoiceResponse, error)
}

// InvoiceGenerationFlowImpl implements the invoice generation business flow
type InvoiceGenerationFlowImpl struct {
	db              *gorm.DB
	scheduleRepo    repository.ScheduleRepository
	invoiceRepo     repository.InvoiceRepository
	priceChangeRepo repository.PriceChangeRepository
	scheduleLogRepo repository.ScheduleLogRepository
	customerRepo    repository.CustomerRepository
	auditFlow       AuditTrailFlow
	mailer          services.InvoiceMailer
	meter           services.UsageMeter
	logger          *log.Logger
	now             func() time.Time
	runTx           func(ctx context.Context, fn func(context.Context) error) error
}

// NewInvoiceGenerationFlow creates a new invoice generation flow
func NewInvoiceGenerationFlow(
	db *gorm.DB,
	scheduleRepo repository.ScheduleRepository,
	invoiceRepo repository.InvoiceRepository,
	priceChangeRepo repository.PriceChangeRepository,
	scheduleLogRepo repository.ScheduleLogRepository,
	customerRepo repository.CustomerRepository,
	auditFlow AuditTrailFlow,
	mailer services.InvoiceMailer,
	meter services.UsageMeter,
	logger *log.Logger,
) InvoiceGenerationFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &InvoiceGenerationFlowImpl{
		db:              db,
		scheduleRepo:    scheduleRepo,
		invoiceRepo:     invoiceRepo,
		priceChangeRepo: priceChangeRepo,
		scheduleLogRepo: scheduleLogRepo,
		customerRepo:    customerRepo,
		auditFlow:       auditFlow,
		mailer:          mailer,
		meter:           meter,
		logger:          logger,
		now:             utils.UTCNow,
		runTx: func(ctx context.Context, fn func(context.Context) error) error {
			return repository.WithTransaction(ctx, db, fn)
		},
	}
}

// materialization carries the computed pieces of one occurrence before it is
// persisted
type materialization struct {
	invoiceDate time.Time
	dueDate     time.Time
	lines       []models.InvoiceLineItem
	subtotal    decimal.Decimal
	vatAmount   decimal.Decimal
	total       decimal.Decimal
	priceChange *models.PendingPriceChange
}

// Preview computes what the next materialization of a schedule would produce
// without writing anything. Pending price changes are applied to copies of
// the template lines only.
func (f *InvoiceGenerationFlowImpl) Preview(ctx context.Context, req *dto.PreviewInvoiceRequest, metadata *ClientMetadata) (*dto.InvoicePreviewResponse, error) {
	schedule, customer, err := f.loadSchedule(ctx, req.ScheduleUUID, req.AccountID)
	if err != nil {
		return nil, err
	}

	invoiceDate := normalizeDate(schedule.NextDate)
	if req.InvoiceDate != nil {
		invoiceDate = normalizeDate(*req.InvoiceDate)
	}

	m, err := f.compute(ctx, schedule, customer, invoiceDate)
	if err != nil {
		return nil, err
	}

	resp := &dto.InvoicePreviewResponse{
		ScheduleUUID: schedule.UUID.String(),
		InvoiceDate:  m.invoiceDate.Format("2006-01-02"),
		DueDate:      m.dueDate.Format("2006-01-02"),
		Subtotal:     m.subtotal.StringFixed(2),
		VATAmount:    m.vatAmount.StringFixed(2),
		Total:        m.total.StringFixed(2),
		AutoSend:     schedule.AutoSend,
	}
	if m.priceChange != nil {
		resp.PendingPriceChange = utils.ToPtr(m.priceChange.ID)
	}
	for i := range m.lines {
		resp.Lines = append(resp.Lines, ToInvoiceLineResponse(&m.lines[i]))
	}

	return resp, nil
}

// Generate materializes the schedule's next occurrence. The invoice, price
// change consumption, cursor advance and log entry commit atomically; email
// delivery and usage metering run best-effort afterwards.
func (f *InvoiceGenerationFlowImpl) Generate(ctx context.Context, req *dto.GenerateInvoiceRequest, metadata *ClientMetadata) (*dto.InvoiceResponse, error) {
	schedule, customer, err := f.loadSchedule(ctx, req.ScheduleUUID, req.AccountID)
	if err != nil {
		return nil, err
	}

	if schedule.Status != models.ScheduleStatusActive {
		return nil, ErrScheduleNotActive
	}

	asOf := normalizeDate(f.now())
	if req.InvoiceDate != nil {
		asOf = normalizeDate(*req.InvoiceDate)
	}
	if !schedule.IsDueOn(asOf) {
		return nil, ErrScheduleNotDue
	}

	sendEmail := schedule.AutoSend
	if req.SendEmail != nil {
		sendEmail = *req.SendEmail
	}

	invoice, err := f.materialize(ctx, schedule, customer, asOf, sendEmail)
	if err != nil {
		return nil, err
	}

	f.recordGenerationAudit(ctx, invoice, metadata)

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// RunDueGenerations materializes every due schedule as of the given date.
// Failures are isolated per schedule and collected into the result ledger.
func (f *InvoiceGenerationFlowImpl) RunDueGenerations(ctx context.Context, asOf time.Time) (*dto.BatchRunResponse, error) {
	asOf = normalizeDate(asOf)

	due, err := f.scheduleRepo.ListDue(ctx, asOf)
	if err != nil {
		return nil, NewBusinessError("BATCH_LIST_FAILED", "failed to list due schedules", err)
	}

	run := &dto.BatchRunResponse{
		AsOf:  asOf.Format("2006-01-02"),
		Total: len(due),
	}

	for _, schedule := range due {
		result := f.runOne(ctx, schedule)
		if result.Success {
			run.Succeeded++
		} else {
			run.Failed++
		}
		run.Results = append(run.Results, result)
	}

	return run, nil
}

// GetInvoice returns a single invoice with its lines
func (f *InvoiceGenerationFlowImpl) GetInvoice(ctx context.Context, invoiceUUID string, accountID uint) (*dto.InvoiceResponse, error) {
	parsed, err := uuid.Parse(invoiceUUID)
	if err != nil {
		return nil, ErrInvoiceNotFound
	}

	invoice, err := f.invoiceRepo.ByUUID(ctx, parsed)
	if err != nil {
		return nil, NewBusinessError("INVOICE_READ_FAILED", "failed to load invoice", err)
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	if invoice.AccountID != accountID {
		return nil, ErrInvoiceAccessDenied
	}

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// ListInvoices returns the account's invoices, newest first
func (f *InvoiceGenerationFlowImpl) ListInvoices(ctx context.Context, accountID uint, limit, offset int) ([]dto.InvoiceResponse, error) {
	filter := models.InvoiceFilter{AccountID: utils.ToPtr(accountID)}

	invoices, err := f.invoiceRepo.ByFilter(ctx, filter, "invoice_date DESC, id DESC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("INVOICE_LIST_FAILED", "failed to list invoices", err)
	}

	items := make([]dto.InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		items = append(items, ToInvoiceResponse(invoice))
	}

	return items, nil
}

func (f *InvoiceGenerationFlowImpl) runOne(ctx context.Context, schedule *models.RecurringSchedule) dto.GenerationResultResponse {
	result := dto.GenerationResultResponse{ScheduleID: schedule.ID}

	customer, err := f.customerRepo.ByID(ctx, schedule.CustomerID)
	if err == nil && customer == nil {
		err = ErrCustomerNotFound
	}
	if err != nil {
		generationFailuresTotal.Inc()
		result.Error = utils.ToPtr(err.Error())
		f.logGenerationFailure(ctx, schedule.ID, err)
		return result
	}

	invoice, err := f.materialize(ctx, schedule, customer, schedule.NextDate, schedule.AutoSend)
	if err != nil {
		generationFailuresTotal.Inc()
		result.Error = utils.ToPtr(err.Error())
		f.logGenerationFailure(ctx, schedule.ID, err)
		return result
	}

	result.Success = true
	result.InvoiceID = utils.ToPtr(invoice.ID)
	result.InvoiceNumber = utils.ToPtr(invoice.InvoiceNumber)

	f.recordGenerationAudit(ctx, invoice, nil)

	return result
}

// logGenerationFailure appends a GENERATION_FAILED entry outside any
// transaction so the trail survives the rollback
func (f *InvoiceGenerationFlowImpl) logGenerationFailure(ctx context.Context, scheduleID uint, cause error) {
	entry := &models.ScheduleLogEntry{
		ScheduleID: scheduleID,
		Action:     models.ScheduleEventGenerationFailed,
		Detail:     utils.ToPtr(cause.Error()),
		CreatedAt:  f.now(),
	}
	if err := f.scheduleLogRepo.Save(ctx, entry); err != nil {
		f.logger.Printf("failed to log generation failure for schedule %d: %v", scheduleID, err)
	}
}

func (f *InvoiceGenerationFlowImpl) loadSchedule(ctx context.Context, scheduleUUID string, accountID uint) (*models.RecurringSchedule, *models.Customer, error) {
	parsed, err := uuid.Parse(scheduleUUID)
	if err != nil {
		return nil, nil, ErrScheduleNotFound
	}

	schedule, err := f.scheduleRepo.ByUUID(ctx, parsed)
	if err != nil {
		return nil, nil, NewBusinessError("SCHEDULE_READ_FAILED", "failed to load schedule", err)
	}
	if schedule == nil {
		return nil, nil, ErrScheduleNotFound
	}
	if schedule.AccountID != accountID {
		return nil, nil, ErrScheduleAccessDenied
	}

	customer, err := f.customerRepo.ByID(ctx, schedule.CustomerID)
	if err != nil {
		return nil, nil, NewBusinessError("CUSTOMER_READ_FAILED", "failed to load customer", err)
	}
	if customer == nil {
		return nil, nil, ErrCustomerNotFound
	}

	return schedule, customer, nil
}

// compute builds the invoice lines for one occurrence, applying at most the
// earliest eligible price change to copies of the template
func (f *InvoiceGenerationFlowImpl) compute(ctx context.Context, schedule *models.RecurringSchedule, customer *models.Customer, invoiceDate time.Time) (*materialization, error) {
	if len(schedule.LineItems) == 0 {
		return nil, ErrLineItemsRequired
	}

	pending, err := f.priceChangeRepo.ListUnappliedBySchedule(ctx, schedule.ID, invoiceDate)
	if err != nil {
		return nil, NewBusinessError("PRICE_CHANGE_READ_FAILED", "failed to list pending price changes", err)
	}

	var priceChange *models.PendingPriceChange
	if len(pending) > 0 {
		priceChange = pending[0]
	}

	lines := make([]models.InvoiceLineItem, 0, len(schedule.LineItems))
	for _, item := range schedule.LineItems {
		line := models.InvoiceLineItem{
			Position:    item.Position,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			VATRate:     item.VATRate,
		}
		if priceChange != nil {
			applyRevisions(&line, priceChange.Revisions)
		}
		line.Compute()
		lines = append(lines, line)
	}

	subtotal, vatAmount, total := decimal.Zero, decimal.Zero, decimal.Zero
	for i := range lines {
		subtotal = subtotal.Add(lines[i].Subtotal)
		vatAmount = vatAmount.Add(lines[i].VATAmount)
		total = total.Add(lines[i].Total)
	}

	termDays := customer.PaymentTermDays
	if termDays <= 0 {
		termDays = utils.DefaultPaymentTermDays
	}

	return &materialization{
		invoiceDate: invoiceDate,
		dueDate:     invoiceDate.AddDate(0, 0, termDays),
		lines:       lines,
		subtotal:    subtotal,
		vatAmount:   vatAmount,
		total:       total,
		priceChange: priceChange,
	}, nil
}

func applyRevisions(line *models.InvoiceLineItem, revisions models.PriceRevisions) {
	for _, rev := range revisions {
		if rev.Position != line.Position {
			continue
		}
		if rev.UnitPrice != nil {
			line.UnitPrice = *rev.UnitPrice
		}
		if rev.Quantity != nil {
			line.Quantity = *rev.Quantity
		}
		if rev.VATRate != nil {
			line.VATRate = *rev.VATRate
		}
	}
}

// materialize commits one occurrence on the given invoice date. Each attempt
// runs the whole unit in a single transaction: price change consumption,
// number allocation, invoice insert, cursor advance and log entry. A number
// collision rolls the attempt back and retries with a fresh sequence.
func (f *InvoiceGenerationFlowImpl) materialize(ctx context.Context, schedule *models.RecurringSchedule, customer *models.Customer, invoiceDate time.Time, sendEmail bool) (*models.Invoice, error) {
	invoiceDate = normalizeDate(invoiceDate)

	var invoice *models.Invoice
	var lastErr error

	for attempt := 0; attempt < numberAllocationAttempts; attempt++ {
		invoice = nil
		lastErr = f.runTx(ctx, func(txCtx context.Context) error {
			m, err := f.compute(txCtx, schedule, customer, invoiceDate)
			if err != nil {
				return err
			}

			if m.priceChange != nil {
				if err := f.priceChangeRepo.MarkApplied(txCtx, m.priceChange.ID, f.now()); err != nil {
					return NewBusinessError("PRICE_CHANGE_APPLY_FAILED", "failed to consume price change", err)
				}
			}

			maxSeq, err := f.invoiceRepo.MaxSequenceForYear(txCtx, schedule.AccountID, invoiceDate.Year())
			if err != nil {
				return NewBusinessError("NUMBER_ALLOCATION_FAILED", "failed to read invoice sequence", err)
			}

			status := models.InvoiceStatusDraft
			var sentAt *time.Time
			if schedule.AutoSend {
				status = models.InvoiceStatusSent
				sentAt = utils.ToPtr(f.now())
			}

			candidate := &models.Invoice{
				AccountID:     schedule.AccountID,
				CustomerID:    schedule.CustomerID,
				ScheduleID:    utils.ToPtr(schedule.ID),
				InvoiceNumber: models.FormatInvoiceNumber(invoiceDate.Year(), maxSeq+1),
				InvoiceDate:   m.invoiceDate,
				DueDate:       m.dueDate,
				Subtotal:      m.subtotal,
				VATAmount:     m.vatAmount,
				Total:         m.total,
				Status:        status,
				SentAt:        sentAt,
				Reference:     schedule.Reference,
				LineItems:     m.lines,
			}

			if err := f.invoiceRepo.Save(txCtx, candidate); err != nil {
				return err
			}

			nextDate, err := models.NextOccurrence(invoiceDate, schedule.Frequency, schedule.Interval, schedule.DayOfMonthOrZero())
			if err != nil {
				return NewBusinessError("CURSOR_ADVANCE_FAILED", "failed to compute next occurrence", err)
			}

			if err := f.scheduleRepo.AdvanceCursor(txCtx, schedule.ID, invoiceDate, nextDate); err != nil {
				return NewBusinessError("CURSOR_ADVANCE_FAILED", "failed to advance schedule cursor", err)
			}

			logEntry := &models.ScheduleLogEntry{
				ScheduleID: schedule.ID,
				Action:     models.ScheduleEventInvoiceGenerated,
				InvoiceID:  utils.ToPtr(candidate.ID),
				Detail:     utils.ToPtr(fmt.Sprintf("invoice %s generated", candidate.InvoiceNumber)),
				CreatedAt:  f.now(),
			}
			if err := f.scheduleLogRepo.Save(txCtx, logEntry); err != nil {
				return NewBusinessError("SCHEDULE_LOG_FAILED", "failed to append schedule log entry", err)
			}

			if schedule.EndDate != nil && nextDate.After(normalizeDate(*schedule.EndDate)) {
				if err := f.scheduleRepo.UpdateStatus(txCtx, schedule.ID, models.ScheduleStatusCompleted); err != nil {
					return NewBusinessError("SCHEDULE_COMPLETE_FAILED", "failed to complete schedule", err)
				}
				completedEntry := &models.ScheduleLogEntry{
					ScheduleID: schedule.ID,
					Action:     models.ScheduleEventCompleted,
					CreatedAt:  f.now(),
				}
				if err := f.scheduleLogRepo.Save(txCtx, completedEntry); err != nil {
					return NewBusinessError("SCHEDULE_LOG_FAILED", "failed to append schedule log entry", err)
				}
			}

			invoice = candidate
			return nil
		})

		if lastErr == nil {
			break
		}
		if repository.IsUniqueViolation(lastErr) {
			numberCollisionsTotal.Inc()
			f.logger.Printf("invoice number collision on schedule %d, retrying allocation", schedule.ID)
			continue
		}
		return nil, lastErr
	}

	if lastErr != nil {
		if repository.IsUniqueViolation(lastErr) {
			return nil, ErrInvoiceNumberConflict
		}
		return nil, lastErr
	}

	invoicesGeneratedTotal.WithLabelValues(invoice.Status.String()).Inc()

	f.runBestEffort(ctx, invoice, customer, sendEmail && schedule.AutoSend)

	return invoice, nil
}

// runBestEffort performs the post-commit side effects. Neither a failed mail
// delivery nor a failed usage increment fails the generation.
func (f *InvoiceGenerationFlowImpl) runBestEffort(ctx context.Context, invoice *models.Invoice, customer *models.Customer, sendEmail bool) {
	if sendEmail && f.mailer != nil {
		if err := f.mailer.SendInvoice(ctx, invoice, customer.Email); err != nil {
			f.logger.Printf("failed to send invoice %s to %s: %v", invoice.InvoiceNumber, customer.Email, err)
		}
	}

	if f.meter != nil {
		if err := f.meter.IncrementInvoiceCount(ctx, invoice.AccountID); err != nil {
			f.logger.Printf("failed to increment usage counter for account %d: %v", invoice.AccountID, err)
		}
	}
}

func (f *InvoiceGenerationFlowImpl) recordGenerationAudit(ctx context.Context, invoice *models.Invoice, metadata *ClientMetadata) {
	if f.auditFlow == nil {
		return
	}

	changes := models.DetectChanges(nil, map[string]any{
		"invoiceNumber": invoice.InvoiceNumber,
		"invoiceDate":   invoice.InvoiceDate.Format("2006-01-02"),
		"dueDate":       invoice.DueDate.Format("2006-01-02"),
		"total":         invoice.Total.StringFixed(2),
		"status":        invoice.Status.String(),
	})

	err := f.auditFlow.Record(ctx, &RecordAuditInput{
		Action:     models.AuditActionCreate,
		EntityType: models.AuditEntityInvoice,
		EntityID:   utils.ToPtr(fmt.Sprintf("%d", invoice.ID)),
		Changes:    changes,
		Metadata:   metadata,
	})
	if err != nil {
		dropAuditEntry(err)
	}
}
