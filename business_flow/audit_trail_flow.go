package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/repository"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var auditEntriesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "invoicing_audit_entries_dropped_total",
	Help: "Audit entries that could not be appended to the chain",
})

// dropAuditEntry is the best-effort path for audit appends that fail. The
// originating operation is never failed over a missing audit entry.
func dropAuditEntry(err error) {
	auditEntriesDroppedTotal.Inc()
	log.Printf("audit append failed, entry dropped: %v", err)
}

// Suspicion classifier thresholds
const (
	officeHoursStart = 6
	officeHoursEnd   = 22

	bulkMutationThreshold = 10
	bulkMutationWindow    = 5 * time.Minute

	loginFailureThreshold = 5
	loginFailureWindow    = 15 * time.Minute

	knownIPHistorySize = 10
)

// Dutch suspicion reasons, semicolon-joined when presented
const (
	reasonOutsideOfficeHours    = "activiteit buiten kantooruren"
	reasonBulkMutation          = "bulkwijziging: 10 of meer mutaties binnen 5 minuten"
	reasonPaidInvoiceMutation   = "wijziging van een betaalde factuur"
	reasonSentInvoiceMutation   = "wijziging van een verzonden factuur"
	reasonFiledVATReportChange  = "wijziging van een ingediende btw-aangifte"
	reasonRepeatedLoginFailures = "5 of meer mislukte inlogpogingen binnen 15 minuten"
	reasonUnknownIPAddress      = "onbekend IP-adres voor deze gebruiker"
)

// RecordAuditInput describes one action to append to the audit chain
type RecordAuditInput struct {
	UserID     *uint
	UserEmail  *string
	Action     string
	EntityType string
	EntityID   *string
	Changes    models.FieldChanges
	Metadata   *ClientMetadata
}

// AuditTrailFlow appends entries to the tamper-evident audit chain and
// verifies chain integrity
type AuditTrailFlow interface {
	Record(ctx context.Context, input *RecordAuditInput) error
	VerifyChain(ctx context.Context, scope string) (*dto.ChainVerificationResponse, error)
	ListEntries(ctx context.Context, scope string, limit, offset int) ([]dto.AuditEntryResponse, error)
	ListSuspicious(ctx context.Context, limit, offset int) ([]dto.AuditEntryResponse, error)
}

// AuditTrailFlowImpl implements the audit trail business flow
type AuditTrailFlowImpl struct {
	auditRepo   repository.AuditLogRepository
	invoiceRepo repository.InvoiceRepository
	vatRepo     repository.VATReportRepository
	timezone    *time.Location
	now         func() time.Time
}

// NewAuditTrailFlow creates a new audit trail flow
func NewAuditTrailFlow(
	auditRepo repository.AuditLogRepository,
	invoiceRepo repository.InvoiceRepository,
	vatRepo repository.VATReportRepository,
	timezone *time.Location,
) AuditTrailFlow {
	if timezone == nil {
		timezone = time.UTC
	}
	return &AuditTrailFlowImpl{
		auditRepo:   auditRepo,
		invoiceRepo: invoiceRepo,
		vatRepo:     vatRepo,
		timezone:    timezone,
		now:         utils.UTCNow,
	}
}

// Record appends one entry to the chain of the acting user's scope. The
// previous head is read fresh at append time so concurrent writers still
// produce a linked chain.
func (f *AuditTrailFlowImpl) Record(ctx context.Context, input *RecordAuditInput) error {
	if input == nil {
		return NewBusinessError("AUDIT_INPUT_NIL", "audit input is nil", nil)
	}

	now := f.now()

	scope := models.AuditScopeGlobal
	if input.UserID != nil {
		scope = models.AuditScopeForUser(*input.UserID)
	}

	reasons := f.classify(ctx, input, now)

	entry := &models.AuditLog{
		Scope:            scope,
		UserID:           input.UserID,
		UserEmail:        input.UserEmail,
		Action:           input.Action,
		EntityType:       input.EntityType,
		EntityID:         input.EntityID,
		Changes:          input.Changes,
		IsSuspicious:     len(reasons) > 0,
		SuspicionReasons: reasons,
		CreatedAt:        now,
	}

	if input.Metadata != nil {
		if input.Metadata.IPAddress != "" {
			entry.IPAddress = utils.ToPtr(input.Metadata.IPAddress)
		}
		if input.Metadata.UserAgent != "" {
			entry.UserAgent = utils.ToPtr(input.Metadata.UserAgent)
		}
		if input.Metadata.RequestID != "" {
			entry.RequestID = utils.ToPtr(input.Metadata.RequestID)
		}
		if input.Metadata.SessionID != "" {
			entry.SessionID = utils.ToPtr(input.Metadata.SessionID)
		}
		if raw, err := json.Marshal(input.Metadata); err == nil {
			entry.Metadata = raw
		}
	}

	head, err := f.auditRepo.LatestByScope(ctx, scope)
	if err != nil {
		return NewBusinessError("AUDIT_HEAD_READ_FAILED", "failed to read chain head", err)
	}
	if head != nil {
		entry.PreviousHash = utils.ToPtr(head.Hash)
	}

	hash, err := entry.ComputeHash()
	if err != nil {
		return NewBusinessError("AUDIT_HASH_FAILED", "failed to compute chain hash", err)
	}
	entry.Hash = hash

	if err := f.auditRepo.Save(ctx, entry); err != nil {
		return NewBusinessError("AUDIT_SAVE_FAILED", "failed to append audit entry", err)
	}

	return nil
}

// classify runs the suspicion heuristics. Classification never fails the
// append; heuristics that cannot be evaluated are skipped.
func (f *AuditTrailFlowImpl) classify(ctx context.Context, input *RecordAuditInput, now time.Time) []string {
	var reasons []string

	hour := now.In(f.timezone).Hour()
	if hour < officeHoursStart || hour >= officeHoursEnd {
		reasons = append(reasons, reasonOutsideOfficeHours)
	}

	isMutation := input.Action == models.AuditActionUpdate || input.Action == models.AuditActionDelete

	if isMutation && input.UserID != nil {
		count, err := f.auditRepo.CountMutationsSince(ctx, *input.UserID, now.Add(-bulkMutationWindow))
		// The entry being classified counts toward the threshold
		if err == nil && count+1 >= bulkMutationThreshold {
			reasons = append(reasons, reasonBulkMutation)
		}
	}

	if isMutation && input.EntityType == models.AuditEntityInvoice && input.EntityID != nil {
		if invoice := f.lookupInvoice(ctx, *input.EntityID); invoice != nil {
			if invoice.PaidAt != nil {
				reasons = append(reasons, reasonPaidInvoiceMutation)
			} else if invoice.SentAt != nil {
				reasons = append(reasons, reasonSentInvoiceMutation)
			}
		}
	}

	if input.Action == models.AuditActionUpdate && input.EntityType == models.AuditEntityVATReport && input.EntityID != nil {
		if report := f.lookupVATReport(ctx, *input.EntityID); report != nil && report.IsFiled() {
			reasons = append(reasons, reasonFiledVATReportChange)
		}
	}

	if input.Action == models.AuditActionLoginFailed && input.UserEmail != nil {
		count, err := f.auditRepo.CountLoginFailuresSince(ctx, *input.UserEmail, now.Add(-loginFailureWindow))
		if err == nil && count+1 >= loginFailureThreshold {
			reasons = append(reasons, reasonRepeatedLoginFailures)
		}
	}

	if input.UserID != nil && input.Metadata != nil && input.Metadata.IPAddress != "" {
		known, err := f.auditRepo.RecentDistinctIPs(ctx, *input.UserID, knownIPHistorySize)
		if err == nil && len(known) > 0 && !containsString(known, input.Metadata.IPAddress) {
			reasons = append(reasons, reasonUnknownIPAddress)
		}
	}

	return reasons
}

func (f *AuditTrailFlowImpl) lookupInvoice(ctx context.Context, entityID string) *models.Invoice {
	id, err := strconv.ParseUint(entityID, 10, 64)
	if err != nil {
		return nil
	}
	invoice, err := f.invoiceRepo.ByID(ctx, uint(id))
	if err != nil {
		return nil
	}
	return invoice
}

func (f *AuditTrailFlowImpl) lookupVATReport(ctx context.Context, entityID string) *models.VATReport {
	id, err := strconv.ParseUint(entityID, 10, 64)
	if err != nil {
		return nil
	}
	report, err := f.vatRepo.ByID(ctx, uint(id))
	if err != nil {
		return nil
	}
	return report
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// VerifyChain replays one scope's chain in insertion order, checking each
// entry's linkage and recomputing its hash. The replay is read-only.
func (f *AuditTrailFlowImpl) VerifyChain(ctx context.Context, scope string) (*dto.ChainVerificationResponse, error) {
	entries, err := f.auditRepo.ListByScopeAscending(ctx, scope)
	if err != nil {
		return nil, NewBusinessError("AUDIT_CHAIN_READ_FAILED", "failed to read audit chain", err)
	}

	result := &dto.ChainVerificationResponse{
		Scope:     scope,
		Entries:   len(entries),
		Valid:     true,
		CheckedAt: f.now().Format(time.RFC3339),
	}

	var previousHash *string
	for _, entry := range entries {
		if !hashPtrEqual(entry.PreviousHash, previousHash) {
			result.Valid = false
			result.BrokenAt = utils.ToPtr(entry.ID)
			result.Reason = utils.ToPtr(fmt.Sprintf("entry %d does not link to the preceding entry", entry.ID))
			return result, nil
		}

		recomputed, err := entry.ComputeHash()
		if err != nil {
			return nil, NewBusinessError("AUDIT_HASH_FAILED", "failed to recompute chain hash", err)
		}
		if recomputed != entry.Hash {
			result.Valid = false
			result.BrokenAt = utils.ToPtr(entry.ID)
			result.Reason = utils.ToPtr(fmt.Sprintf("entry %d content does not match its stored hash", entry.ID))
			return result, nil
		}

		previousHash = utils.ToPtr(entry.Hash)
	}

	return result, nil
}

func hashPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ListEntries returns one scope's entries, newest first
func (f *AuditTrailFlowImpl) ListEntries(ctx context.Context, scope string, limit, offset int) ([]dto.AuditEntryResponse, error) {
	entries, err := f.auditRepo.ListByScope(ctx, scope, limit, offset)
	if err != nil {
		return nil, NewBusinessError("AUDIT_LIST_FAILED", "failed to list audit entries", err)
	}

	responses := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, ToAuditEntryResponse(entry))
	}
	return responses, nil
}

// ListSuspicious returns flagged entries across all scopes, newest first
func (f *AuditTrailFlowImpl) ListSuspicious(ctx context.Context, limit, offset int) ([]dto.AuditEntryResponse, error) {
	entries, err := f.auditRepo.ListSuspicious(ctx, limit, offset)
	if err != nil {
		return nil, NewBusinessError("AUDIT_LIST_FAILED", "failed to list suspicious entries", err)
	}

	responses := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, ToAuditEntryResponse(entry))
	}
	return responses, nil
}
