// Package scheduler runs the recurring background jobs of the service
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	businessflow "github.com/amirphl/omc-bdc-price-service/business_flow"
	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrRetryRunning is returned when a pass is requested while another one is still going
var ErrRetryRunning = errors.New("retry pass already running")

var (
	retryEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_sync_retry_entries_total",
			Help: "Entries handled by the retry pass by seller type and result",
		},
		[]string{"seller_type", "result"},
	)
	retryLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "price_sync_retry_last_run_timestamp_seconds",
		Help: "Unix time the last retry pass finished",
	})
)

// RunSummary counts the entries of one retry pass
type RunSummary struct {
	Created    int
	Updated    int
	Failed     int
	Skipped    int
	Held       int
	StartedAt  time.Time
	FinishedAt time.Time
}

// RetryScheduler redrives every entry whose create or update never reached the partner.
// It runs once a day at the configured hour and minute.
type RetryScheduler struct {
	entryRepo repository.PriceEntryRepository
	syncFlow  businessflow.SyncFlow
	cfg       config.SyncConfig
	logger    *zap.Logger

	running sync.Mutex
}

func NewRetryScheduler(
	entryRepo repository.PriceEntryRepository,
	syncFlow businessflow.SyncFlow,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *RetryScheduler {
	return &RetryScheduler{
		entryRepo: entryRepo,
		syncFlow:  syncFlow,
		cfg:       cfg,
		logger:    logger,
	}
}

// CronSpec is the daily schedule in standard five-field form
func (s *RetryScheduler) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", s.cfg.RetryMinute, s.cfg.RetryHour)
}

// Start schedules the daily pass and returns a stop function that waits for a running pass
func (s *RetryScheduler) Start(parent context.Context) (func(), error) {
	loc := time.UTC
	if s.cfg.RetryLocation != "" {
		l, err := time.LoadLocation(s.cfg.RetryLocation)
		if err != nil {
			return nil, fmt.Errorf("invalid retry location %q: %w", s.cfg.RetryLocation, err)
		}
		loc = l
	}

	ctx, cancel := context.WithCancel(parent)
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(s.CronSpec(), func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled retry pass failed", zap.Error(err))
		}
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid retry schedule: %w", err)
	}

	c.Start()
	s.logger.Info("retry scheduler started", zap.String("cron", s.CronSpec()), zap.String("location", loc.String()))

	return func() {
		cancel()
		<-c.Stop().Done()
	}, nil
}

// RunOnce performs one pass over both seller kinds.
// A failing entry is logged and counted; the pass continues with the next one.
func (s *RetryScheduler) RunOnce(ctx context.Context) (RunSummary, error) {
	if !s.running.TryLock() {
		return RunSummary{}, ErrRetryRunning
	}
	defer s.running.Unlock()

	summary := RunSummary{StartedAt: utils.UTCNow()}
	var errs []error

	for _, seller := range []models.SellerType{models.SellerTypeOMC, models.SellerTypeBDC} {
		toCreate, err := s.entryRepo.ListPendingCreate(ctx, seller)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s entries to create: %w", seller, err))
		}
		toUpdate, err := s.entryRepo.ListPendingUpdate(ctx, seller)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s entries to update: %w", seller, err))
		}

		s.logger.Info("retry pass batch",
			zap.String("seller_type", string(seller)),
			zap.Int("to_create", len(toCreate)),
			zap.Int("to_update", len(toUpdate)),
		)

		for _, entry := range append(toCreate, toUpdate...) {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				return s.finish(summary, errs)
			}
			s.redrive(ctx, seller, entry.ID, &summary)
		}
	}

	return s.finish(summary, errs)
}

func (s *RetryScheduler) redrive(ctx context.Context, seller models.SellerType, entryID uint, summary *RunSummary) {
	result := "failed"
	defer func() { retryEntries.WithLabelValues(string(seller), result).Inc() }()

	outcome, err := s.syncFlow.SyncEntry(ctx, entryID)
	switch {
	case errors.Is(err, businessflow.ErrEntryLocked), errors.Is(err, businessflow.ErrPriceEntryNotFound):
		result = "skipped"
		summary.Skipped++
		return
	case err != nil:
		summary.Failed++
		s.logger.Error("retry of price entry failed", zap.String("seller_type", string(seller)), zap.Uint("price_entry_id", entryID), zap.Error(err))
		return
	}

	switch {
	case outcome.Action == businessflow.SyncActionNone:
		result = "skipped"
		summary.Skipped++
	case outcome.Unconfirmed:
		result = "held"
		summary.Held++
	case !outcome.Delivered:
		summary.Failed++
	case outcome.Action == businessflow.SyncActionCreate:
		result = "created"
		summary.Created++
	default:
		result = "updated"
		summary.Updated++
	}
}

func (s *RetryScheduler) finish(summary RunSummary, errs []error) (RunSummary, error) {
	summary.FinishedAt = utils.UTCNow()
	retryLastRun.Set(float64(summary.FinishedAt.Unix()))

	s.logger.Info("retry pass finished",
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("held", summary.Held),
		zap.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, errors.Join(errs...)
}
