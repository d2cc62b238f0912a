// Package scheduler owns quota rollover. The router never resets counters
// itself; this is the administrative reset the usage ledger expects.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/forgeworks/forge-coordinator/internal/metrics"
)

// Ledger is the in-memory reset surface
type Ledger interface {
	ResetDaily()
	ResetMonthly()
}

// Durable is the persisted reset surface. May be nil.
type Durable interface {
	ResetDaily(ctx context.Context) error
	ResetMonthly(ctx context.Context) error
}

// Scheduler runs the daily and monthly quota resets
type Scheduler struct {
	cron    *cron.Cron
	ledger  Ledger
	durable Durable
	logger  *slog.Logger
}

// New creates a scheduler with the rollover jobs registered
func New(ledger Ledger, durable Durable, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		ledger:  ledger,
		durable: durable,
		logger:  logger,
	}

	// midnight: daily counters
	if _, err := s.cron.AddFunc("0 0 * * *", s.resetDaily); err != nil {
		return nil, err
	}
	// first of the month: monthly counters
	if _, err := s.cron.AddFunc("0 0 1 * *", s.resetMonthly); err != nil {
		return nil, err
	}

	return s, nil
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) resetDaily() {
	s.ledger.ResetDaily()
	if s.durable != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.durable.ResetDaily(ctx); err != nil {
			s.logger.Error("durable daily reset failed", "error", err)
		}
	}
	metrics.QuotaResets.WithLabelValues("daily").Inc()
	s.logger.Info("daily quota counters reset")
}

func (s *Scheduler) resetMonthly() {
	s.ledger.ResetMonthly()
	if s.durable != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.durable.ResetMonthly(ctx); err != nil {
			s.logger.Error("durable monthly reset failed", "error", err)
		}
	}
	metrics.QuotaResets.WithLabelValues("monthly").Inc()
	s.logger.Info("monthly quota counters reset")
}
