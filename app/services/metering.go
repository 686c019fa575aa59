package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsageMeter tracks per-account invoice generation counts
type UsageMeter interface {
	IncrementInvoiceCount(ctx context.Context, accountID uint) error
	InvoiceCount(ctx context.Context, accountID uint) (int64, error)
}

// RedisUsageMeter keeps usage counters in Redis keyed per account and month
type RedisUsageMeter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisUsageMeter creates a usage meter backed by Redis
func NewRedisUsageMeter(client *redis.Client, ttl time.Duration) *RedisUsageMeter {
	return &RedisUsageMeter{client: client, ttl: ttl}
}

func usageKey(accountID uint, month time.Time) string {
	return fmt.Sprintf("usage:invoices:%d:%s", accountID, month.UTC().Format("2006-01"))
}

// IncrementInvoiceCount bumps the current month's counter for the account
func (m *RedisUsageMeter) IncrementInvoiceCount(ctx context.Context, accountID uint) error {
	key := usageKey(accountID, time.Now())
	count, err := m.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment usage counter: %w", err)
	}
	if count == 1 && m.ttl > 0 {
		if err := m.client.Expire(ctx, key, m.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set usage counter expiry: %w", err)
		}
	}
	return nil
}

// InvoiceCount reads the current month's counter for the account
func (m *RedisUsageMeter) InvoiceCount(ctx context.Context, accountID uint) (int64, error) {
	count, err := m.client.Get(ctx, usageKey(accountID, time.Now())).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read usage counter: %w", err)
	}
	return count, nil
}

// MockUsageMeter counts in memory for tests
type MockUsageMeter struct {
	mu        sync.Mutex
	Counts    map[uint]int64
	FailError error
}

// NewMockUsageMeter creates a mock usage meter for testing
func NewMockUsageMeter() *MockUsageMeter {
	return &MockUsageMeter{Counts: make(map[uint]int64)}
}

// IncrementInvoiceCount bumps the in-memory counter, or fails when FailError
// is set
func (m *MockUsageMeter) IncrementInvoiceCount(_ context.Context, accountID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailError != nil {
		return m.FailError
	}
	m.Counts[accountID]++
	return nil
}

// InvoiceCount reads the in-memory counter
func (m *MockUsageMeter) InvoiceCount(_ context.Context, accountID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[accountID], nil
}
