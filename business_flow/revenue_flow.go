package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/repository"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// revenueCacheTTL bounds staleness of the cached summary. Schedule mutations
// invalidate the key eagerly, the TTL only covers missed invalidations.
const revenueCacheTTL = 15 * time.Minute

// RevenueFlow computes normalized recurring-revenue metrics per account
type RevenueFlow interface {
	Summary(ctx context.Context, accountID uint) (*dto.RevenueSummaryResponse, error)
	Invalidate(ctx context.Context, accountID uint) error
}

// RevenueFlowImpl implements the recurring-revenue business flow
type RevenueFlowImpl struct {
	scheduleRepo repository.ScheduleRepository
	cache        *redis.Client
	logger       *log.Logger
	now          func() time.Time
}

// NewRevenueFlow creates a new revenue flow
func NewRevenueFlow(scheduleRepo repository.ScheduleRepository, cache *redis.Client, logger *log.Logger) RevenueFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &RevenueFlowImpl{
		scheduleRepo: scheduleRepo,
		cache:        cache,
		logger:       logger,
		now:          utils.UTCNow,
	}
}

func revenueCacheKey(accountID uint) string {
	return fmt.Sprintf("revenue:summary:%d", accountID)
}

// Summary returns the account's MRR and ARR, normalized from all ACTIVE
// schedules. Each schedule's template subtotal (VAT excluded) is converted to
// a monthly figure from its billing cadence. Results are cached; the cache is
// a read-through layer, a cache failure falls back to computing.
func (f *RevenueFlowImpl) Summary(ctx context.Context, accountID uint) (*dto.RevenueSummaryResponse, error) {
	if f.cache != nil {
		cached, err := f.cache.Get(ctx, revenueCacheKey(accountID)).Bytes()
		if err == nil {
			var resp dto.RevenueSummaryResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				resp.FromCache = true
				return &resp, nil
			}
		} else if err != redis.Nil {
			f.logger.Printf("revenue cache read failed for account %d: %v", accountID, err)
		}
	}

	schedules, err := f.scheduleRepo.ListActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("REVENUE_READ_FAILED", "failed to list active schedules", err)
	}

	mrr := decimal.Zero
	byFrequency := make(map[string]decimal.Decimal)
	for _, schedule := range schedules {
		amount := schedule.TemplateSubtotal()
		monthly, err := models.MonthlyRecurringRevenue(amount, schedule.Frequency, schedule.Interval)
		if err != nil {
			f.logger.Printf("skipping schedule %d in revenue summary: %v", schedule.ID, err)
			continue
		}
		mrr = mrr.Add(monthly)
		key := schedule.Frequency.String()
		byFrequency[key] = byFrequency[key].Add(monthly)
	}

	resp := &dto.RevenueSummaryResponse{
		AccountID:        accountID,
		ActiveSchedules:  len(schedules),
		MonthlyRecurring: mrr.StringFixed(2),
		AnnualRecurring:  mrr.Mul(decimal.NewFromInt(12)).StringFixed(2),
		ComputedAt:       f.now(),
	}
	if len(byFrequency) > 0 {
		resp.ByFrequency = make(map[string]string, len(byFrequency))
		for key, value := range byFrequency {
			resp.ByFrequency[key] = value.StringFixed(2)
		}
	}

	if f.cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := f.cache.Set(ctx, revenueCacheKey(accountID), raw, revenueCacheTTL).Err(); err != nil {
				f.logger.Printf("revenue cache write failed for account %d: %v", accountID, err)
			}
		}
	}

	return resp, nil
}

// Invalidate drops the cached summary after a schedule mutation
func (f *RevenueFlowImpl) Invalidate(ctx context.Context, accountID uint) error {
	if f.cache == nil {
		return ErrCacheNotAvailable
	}
	if err := f.cache.Del(ctx, revenueCacheKey(accountID)).Err(); err != nil {
		return NewBusinessError("REVENUE_CACHE_FAILED", "failed to invalidate revenue cache", err)
	}
	return nil
}
