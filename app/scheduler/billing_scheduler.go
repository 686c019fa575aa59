// Package scheduler provides the background billing loop that materializes
// invoices for due schedules
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	businessflow "github.com/dkortekaas/invoicing-engine/business_flow"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
)

// runLockKey guards against overlapping batch runs when multiple instances
// share the same database
const runLockKey = "billing:run-lock"

var (
	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicing_batch_runs_total",
		Help: "Total number of scheduled batch runs",
	}, []string{"outcome"})

	batchRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoicing_batch_run_duration_seconds",
		Help:    "Duration of scheduled batch runs",
		Buckets: prometheus.DefBuckets,
	})

	batchSchedulesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicing_batch_schedules_processed_total",
		Help: "Schedules processed by the batch runner, by result",
	}, []string{"result"})
)

// BillingScheduler periodically materializes invoices for all due schedules
type BillingScheduler struct {
	generationFlow businessflow.InvoiceGenerationFlow
	cache          *redis.Client
	logger         *log.Logger
	interval       time.Duration
	lockTTL        time.Duration

	logWriter io.Closer
}

// NewBillingScheduler creates a new billing scheduler
func NewBillingScheduler(
	generationFlow businessflow.InvoiceGenerationFlow,
	cache *redis.Client,
	interval time.Duration,
	logDir string,
) *BillingScheduler {
	if interval <= 0 {
		interval = time.Hour
	}

	s := &BillingScheduler{
		generationFlow: generationFlow,
		cache:          cache,
		interval:       interval,
		lockTTL:        interval,
	}

	if err := s.initLogger(logDir); err != nil {
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initLogger configures a logger that writes to both stdout and a rotating
// file under the log directory
func (s *BillingScheduler) initLogger(logDir string) error {
	if logDir == "" {
		logDir = "data"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("could not create scheduler log directory: %w", err)
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "billing-scheduler.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	s.logWriter = rotating

	mw := io.MultiWriter(os.Stdout, rotating)
	s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	return nil
}

// Start launches the scheduler loop in a background goroutine and returns a
// stop function
func (s *BillingScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		if s.logWriter != nil {
			_ = s.logWriter.Close()
		}
	}
}

func (s *BillingScheduler) runOnce(ctx context.Context) {
	if !s.acquireRunLock(ctx) {
		s.logger.Printf("scheduler: batch run skipped, another instance holds the lock")
		batchRunsTotal.WithLabelValues("skipped").Inc()
		return
	}
	defer s.releaseRunLock(ctx)

	started := time.Now()
	asOf := utils.UTCToday()

	run, err := s.generationFlow.RunDueGenerations(ctx, asOf)
	batchRunDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		s.logger.Printf("scheduler: batch run failed: %v", err)
		batchRunsTotal.WithLabelValues("error").Inc()
		return
	}

	batchRunsTotal.WithLabelValues("ok").Inc()
	batchSchedulesProcessed.WithLabelValues("succeeded").Add(float64(run.Succeeded))
	batchSchedulesProcessed.WithLabelValues("failed").Add(float64(run.Failed))

	if run.Total == 0 {
		return
	}

	s.logger.Printf("scheduler: batch run for %s processed %d schedules, %d succeeded, %d failed",
		run.AsOf, run.Total, run.Succeeded, run.Failed)
	for _, result := range run.Results {
		if result.Success {
			continue
		}
		s.logger.Printf("scheduler: schedule %d failed: %s", result.ScheduleID, *result.Error)
	}
}

// acquireRunLock takes the distributed run lock. Without a cache the
// scheduler assumes a single instance and always runs.
func (s *BillingScheduler) acquireRunLock(ctx context.Context) bool {
	if s.cache == nil {
		return true
	}

	ok, err := s.cache.SetNX(ctx, runLockKey, utils.UTCNow().Format(time.RFC3339), s.lockTTL).Result()
	if err != nil {
		s.logger.Printf("scheduler: run lock acquire failed, proceeding without lock: %v", err)
		return true
	}
	return ok
}

func (s *BillingScheduler) releaseRunLock(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, runLockKey).Err(); err != nil {
		s.logger.Printf("scheduler: run lock release failed: %v", err)
	}
}
