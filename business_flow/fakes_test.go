package businessflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory repository fakes shared by the flow tests. They implement only
// the behavior the flows rely on; unused filter combinations return
// everything.

func passthroughTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func mustParseUUID(t *testing.T, value string) uuid.UUID {
	t.Helper()
	parsed, err := uuid.Parse(value)
	if err != nil {
		t.Fatalf("invalid UUID %q: %v", value, err)
	}
	return parsed
}

type fakeScheduleRepo struct {
	mu        sync.Mutex
	schedules map[uint]*models.RecurringSchedule
	nextID    uint
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: make(map[uint]*models.RecurringSchedule), nextID: 1}
}

func (r *fakeScheduleRepo) ByID(_ context.Context, id uint) (*models.RecurringSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedules[id], nil
}

func (r *fakeScheduleRepo) ByFilter(_ context.Context, filter models.RecurringScheduleFilter, _ string, _, _ int) ([]*models.RecurringSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RecurringSchedule
	for _, s := range r.schedules {
		if filter.AccountID != nil && s.AccountID != *filter.AccountID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeScheduleRepo) Save(_ context.Context, s *models.RecurringSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		s.ID = r.nextID
		r.nextID++
	}
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.ScheduleStatusActive
	}
	if s.NextDate.IsZero() {
		s.NextDate = s.StartDate
	}
	r.schedules[s.ID] = s
	return nil
}

func (r *fakeScheduleRepo) SaveBatch(ctx context.Context, entities []*models.RecurringSchedule) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeScheduleRepo) Update(_ context.Context, s *models.RecurringSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.ID] = s
	return nil
}

func (r *fakeScheduleRepo) Count(ctx context.Context, filter models.RecurringScheduleFilter) (int64, error) {
	found, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(found)), err
}

func (r *fakeScheduleRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.RecurringSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.schedules {
		if s.UUID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeScheduleRepo) ByIDWithTemplate(ctx context.Context, id uint) (*models.RecurringSchedule, error) {
	return r.ByID(ctx, id)
}

func (r *fakeScheduleRepo) ListDue(_ context.Context, asOf time.Time) ([]*models.RecurringSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day := utils.StartOfDayUTC(asOf)
	var due []*models.RecurringSchedule
	for _, s := range r.schedules {
		if s.Status != models.ScheduleStatusActive {
			continue
		}
		if s.NextDate.After(day) {
			continue
		}
		if s.EndDate != nil && s.EndDate.Before(day) {
			continue
		}
		due = append(due, s)
	}
	return due, nil
}

func (r *fakeScheduleRepo) ListActiveByAccount(_ context.Context, accountID uint) ([]*models.RecurringSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RecurringSchedule
	for _, s := range r.schedules {
		if s.AccountID == accountID && s.Status == models.ScheduleStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) UpdateStatus(_ context.Context, id uint, status models.ScheduleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.schedules[id]; ok {
		s.Status = status
	}
	return nil
}

func (r *fakeScheduleRepo) AdvanceCursor(_ context.Context, id uint, lastDate, nextDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return fmt.Errorf("schedule %d not found", id)
	}
	if !s.NextDate.Before(utils.StartOfDayUTC(nextDate)) {
		return fmt.Errorf("cursor advance rejected for schedule %d: next date would not move forward", id)
	}
	s.LastDate = utils.ToPtr(utils.StartOfDayUTC(lastDate))
	s.NextDate = utils.StartOfDayUTC(nextDate)
	return nil
}

func (r *fakeScheduleRepo) ReplaceLineItems(_ context.Context, scheduleID uint, items []*models.ScheduleLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[scheduleID]
	if !ok {
		return fmt.Errorf("schedule %d not found", scheduleID)
	}
	s.LineItems = nil
	for _, item := range items {
		item.ScheduleID = scheduleID
		s.LineItems = append(s.LineItems, *item)
	}
	return nil
}

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uint]*models.Invoice
	nextID   uint

	// forceCollisions makes the next N saves fail with a unique violation
	forceCollisions int
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[uint]*models.Invoice), nextID: 1}
}

func (r *fakeInvoiceRepo) ByID(_ context.Context, id uint) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices[id], nil
}

func (r *fakeInvoiceRepo) ByFilter(_ context.Context, _ models.InvoiceFilter, _ string, _, _ int) ([]*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Invoice
	for _, inv := range r.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (r *fakeInvoiceRepo) Save(_ context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forceCollisions > 0 {
		r.forceCollisions--
		return fmt.Errorf("failed to save entity: %w", gorm.ErrDuplicatedKey)
	}
	for _, existing := range r.invoices {
		if existing.AccountID == inv.AccountID && existing.InvoiceNumber == inv.InvoiceNumber {
			return fmt.Errorf("failed to save entity: %w", gorm.ErrDuplicatedKey)
		}
	}
	if inv.ID == 0 {
		inv.ID = r.nextID
		r.nextID++
	}
	if inv.UUID == uuid.Nil {
		inv.UUID = uuid.New()
	}
	r.invoices[inv.ID] = inv
	return nil
}

func (r *fakeInvoiceRepo) SaveBatch(ctx context.Context, entities []*models.Invoice) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeInvoiceRepo) Update(_ context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = inv
	return nil
}

func (r *fakeInvoiceRepo) Count(_ context.Context, _ models.InvoiceFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.invoices)), nil
}

func (r *fakeInvoiceRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.UUID == id {
			return inv, nil
		}
	}
	return nil, nil
}

func (r *fakeInvoiceRepo) MaxSequenceForYear(_ context.Context, accountID uint, year int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, inv := range r.invoices {
		if inv.AccountID != accountID {
			continue
		}
		if seq, ok := models.ParseInvoiceSequence(inv.InvoiceNumber, year); ok && seq > max {
			max = seq
		}
	}
	return max, nil
}

func (r *fakeInvoiceRepo) ListByAccount(_ context.Context, accountID uint, _, _ int) ([]*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Invoice
	for _, inv := range r.invoices {
		if inv.AccountID == accountID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) UpdateStatus(_ context.Context, id uint, status models.InvoiceStatus, sentAt, paidAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %d not found", id)
	}
	inv.Status = status
	if sentAt != nil {
		inv.SentAt = sentAt
	}
	if paidAt != nil {
		inv.PaidAt = paidAt
	}
	return nil
}

type fakePriceChangeRepo struct {
	mu      sync.Mutex
	changes map[uint]*models.PendingPriceChange
	nextID  uint
}

func newFakePriceChangeRepo() *fakePriceChangeRepo {
	return &fakePriceChangeRepo{changes: make(map[uint]*models.PendingPriceChange), nextID: 1}
}

func (r *fakePriceChangeRepo) ByID(_ context.Context, id uint) (*models.PendingPriceChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes[id], nil
}

func (r *fakePriceChangeRepo) ByFilter(_ context.Context, _ models.PendingPriceChangeFilter, _ string, _, _ int) ([]*models.PendingPriceChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PendingPriceChange
	for _, c := range r.changes {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakePriceChangeRepo) Save(_ context.Context, c *models.PendingPriceChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	r.changes[c.ID] = c
	return nil
}

func (r *fakePriceChangeRepo) SaveBatch(ctx context.Context, entities []*models.PendingPriceChange) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakePriceChangeRepo) Update(_ context.Context, c *models.PendingPriceChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes[c.ID] = c
	return nil
}

func (r *fakePriceChangeRepo) Count(_ context.Context, _ models.PendingPriceChangeFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.changes)), nil
}

func (r *fakePriceChangeRepo) ListUnappliedBySchedule(_ context.Context, scheduleID uint, effectiveOnOrBefore time.Time) ([]*models.PendingPriceChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day := utils.StartOfDayUTC(effectiveOnOrBefore)
	var out []*models.PendingPriceChange
	for _, c := range r.changes {
		if c.ScheduleID == scheduleID && !c.Applied && !c.EffectiveDate.After(day) {
			out = append(out, c)
		}
	}
	// earliest effective date first
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].EffectiveDate.Before(out[i].EffectiveDate) ||
				(out[j].EffectiveDate.Equal(out[i].EffectiveDate) && out[j].ID < out[i].ID) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *fakePriceChangeRepo) MarkApplied(_ context.Context, id uint, appliedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.changes[id]
	if !ok {
		return fmt.Errorf("price change %d not found", id)
	}
	if c.Applied {
		return fmt.Errorf("price change %d already applied", id)
	}
	c.Applied = true
	c.AppliedAt = utils.ToPtr(appliedAt)
	return nil
}

type fakeScheduleLogRepo struct {
	mu      sync.Mutex
	entries []*models.ScheduleLogEntry
	nextID  uint
}

func newFakeScheduleLogRepo() *fakeScheduleLogRepo {
	return &fakeScheduleLogRepo{nextID: 1}
}

func (r *fakeScheduleLogRepo) ByID(_ context.Context, id uint) (*models.ScheduleLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeScheduleLogRepo) ByFilter(_ context.Context, _ models.ScheduleLogEntryFilter, _ string, _, _ int) ([]*models.ScheduleLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.ScheduleLogEntry(nil), r.entries...), nil
}

func (r *fakeScheduleLogRepo) Save(_ context.Context, e *models.ScheduleLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == 0 {
		e.ID = r.nextID
		r.nextID++
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeScheduleLogRepo) SaveBatch(ctx context.Context, entities []*models.ScheduleLogEntry) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeScheduleLogRepo) Update(_ context.Context, _ *models.ScheduleLogEntry) error {
	return fmt.Errorf("schedule log entries are append-only")
}

func (r *fakeScheduleLogRepo) Count(_ context.Context, _ models.ScheduleLogEntryFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

func (r *fakeScheduleLogRepo) ListBySchedule(_ context.Context, scheduleID uint, _, _ int) ([]*models.ScheduleLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduleLogEntry
	for _, e := range r.entries {
		if e.ScheduleID == scheduleID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeScheduleLogRepo) actions(scheduleID uint) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.ScheduleID == scheduleID {
			out = append(out, e.Action)
		}
	}
	return out
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[uint]*models.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[uint]*models.Account)}
}

func (r *fakeAccountRepo) ByID(_ context.Context, id uint) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) ByFilter(_ context.Context, _ models.AccountFilter, _ string, _, _ int) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Account
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAccountRepo) Save(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == 0 {
		a.ID = uint(len(r.accounts) + 1)
	}
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	r.accounts[a.ID] = a
	return nil
}

func (r *fakeAccountRepo) SaveBatch(ctx context.Context, entities []*models.Account) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAccountRepo) Update(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
	return nil
}

func (r *fakeAccountRepo) Count(_ context.Context, _ models.AccountFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

func (r *fakeAccountRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UUID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[uint]*models.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uint]*models.Customer)}
}

func (r *fakeCustomerRepo) ByID(_ context.Context, id uint) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.customers[id], nil
}

func (r *fakeCustomerRepo) ByFilter(_ context.Context, _ models.CustomerFilter, _ string, _, _ int) ([]*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Customer
	for _, c := range r.customers {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeCustomerRepo) Save(_ context.Context, c *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = uint(len(r.customers) + 1)
	}
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	r.customers[c.ID] = c
	return nil
}

func (r *fakeCustomerRepo) SaveBatch(ctx context.Context, entities []*models.Customer) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCustomerRepo) Update(_ context.Context, c *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.ID] = c
	return nil
}

func (r *fakeCustomerRepo) Count(_ context.Context, _ models.CustomerFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.customers)), nil
}

func (r *fakeCustomerRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.UUID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeCustomerRepo) ListByAccount(_ context.Context, accountID uint) ([]*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Customer
	for _, c := range r.customers {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	nextID  uint
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{nextID: 1}
}

func (r *fakeAuditRepo) ByID(_ context.Context, id uint) (*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeAuditRepo) ByFilter(_ context.Context, _ models.AuditLogFilter, _ string, _, _ int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuditLog(nil), r.entries...), nil
}

func (r *fakeAuditRepo) Save(_ context.Context, e *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == 0 {
		e.ID = r.nextID
		r.nextID++
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeAuditRepo) SaveBatch(ctx context.Context, entities []*models.AuditLog) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAuditRepo) Update(_ context.Context, _ *models.AuditLog) error {
	return fmt.Errorf("audit entries are append-only")
}

func (r *fakeAuditRepo) Count(_ context.Context, _ models.AuditLogFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

func (r *fakeAuditRepo) LatestByScope(_ context.Context, scope string) (*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Scope == scope {
			return r.entries[i], nil
		}
	}
	return nil, nil
}

func (r *fakeAuditRepo) ListByScope(_ context.Context, scope string, _, _ int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Scope == scope {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) ListByScopeAscending(_ context.Context, scope string) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for _, e := range r.entries {
		if e.Scope == scope {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) CountMutationsSince(_ context.Context, userID uint, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, e := range r.entries {
		if e.UserID == nil || *e.UserID != userID {
			continue
		}
		if e.Action != models.AuditActionUpdate && e.Action != models.AuditActionDelete {
			continue
		}
		if e.CreatedAt.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeAuditRepo) CountLoginFailuresSince(_ context.Context, userEmail string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, e := range r.entries {
		if e.UserEmail == nil || !strings.EqualFold(*e.UserEmail, userEmail) {
			continue
		}
		if e.Action != models.AuditActionLoginFailed {
			continue
		}
		if e.CreatedAt.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeAuditRepo) RecentDistinctIPs(_ context.Context, userID uint, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		if e.UserID == nil || *e.UserID != userID || e.IPAddress == nil {
			continue
		}
		if _, ok := seen[*e.IPAddress]; ok {
			continue
		}
		seen[*e.IPAddress] = struct{}{}
		out = append(out, *e.IPAddress)
	}
	return out, nil
}

func (r *fakeAuditRepo) ListSuspicious(_ context.Context, _, _ int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].IsSuspicious {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

type fakeVATReportRepo struct {
	mu      sync.Mutex
	reports map[uint]*models.VATReport
}

func newFakeVATReportRepo() *fakeVATReportRepo {
	return &fakeVATReportRepo{reports: make(map[uint]*models.VATReport)}
}

func (r *fakeVATReportRepo) ByID(_ context.Context, id uint) (*models.VATReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports[id], nil
}

func (r *fakeVATReportRepo) ByFilter(_ context.Context, _ models.VATReportFilter, _ string, _, _ int) ([]*models.VATReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.VATReport
	for _, report := range r.reports {
		out = append(out, report)
	}
	return out, nil
}

func (r *fakeVATReportRepo) Save(_ context.Context, report *models.VATReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if report.ID == 0 {
		report.ID = uint(len(r.reports) + 1)
	}
	r.reports[report.ID] = report
	return nil
}

func (r *fakeVATReportRepo) SaveBatch(ctx context.Context, entities []*models.VATReport) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeVATReportRepo) Update(_ context.Context, report *models.VATReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.ID] = report
	return nil
}

func (r *fakeVATReportRepo) Count(_ context.Context, _ models.VATReportFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.reports)), nil
}

func (r *fakeVATReportRepo) ByAccountAndPeriod(_ context.Context, accountID uint, year, quarter int) (*models.VATReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, report := range r.reports {
		if report.AccountID == accountID && report.Year == year && report.Quarter == quarter {
			return report, nil
		}
	}
	return nil, nil
}
