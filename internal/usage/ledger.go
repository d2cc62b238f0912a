// Package usage tracks per-(provider, model) consumption against daily and
// monthly quotas. The in-memory ledger is authoritative for routing; writes
// flow through to the durable store for restart survival.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/forgeworks/forge-coordinator/internal/config"
	"github.com/forgeworks/forge-coordinator/internal/store"
)

type key struct {
	provider string
	model    string
}

// Record is one live usage row. Rows are created lazily on first use.
type Record struct {
	DailyUsed    int
	DailyLimit   int
	MonthlyUsed  int
	MonthlyLimit int
	LastUsed     time.Time
}

// Durable receives write-through increments. Persistence failures are logged
// and never surfaced to routing.
type Durable interface {
	IncrementUsage(ctx context.Context, provider, model string, dailyLimit, monthlyLimit int) error
}

// Ledger is the mutex-protected usage table
type Ledger struct {
	mu             sync.Mutex
	rows           map[key]*Record
	limits         map[key]config.LimitConfig
	defaultDaily   int
	defaultMonthly int
	durable        Durable
	logger         *slog.Logger
}

// New creates a ledger from usage config. durable may be nil.
func New(cfg *config.UsageConfig, durable Durable, logger *slog.Logger) *Ledger {
	limits := make(map[key]config.LimitConfig, len(cfg.Limits))
	for _, l := range cfg.Limits {
		limits[key{l.Provider, l.Model}] = l
	}
	return &Ledger{
		rows:           make(map[key]*Record),
		limits:         limits,
		defaultDaily:   cfg.DefaultDaily,
		defaultMonthly: cfg.DefaultMonthly,
		durable:        durable,
		logger:         logger,
	}
}

// Warm preloads counters persisted by a prior process. Rows from a stale
// period are dropped: the scheduler owns rollover, but counters from last
// month should not gate a fresh process.
func (l *Ledger) Warm(rows []store.UsageRow) {
	today := time.Now().Format("2006-01-02")
	month := time.Now().Format("2006-01")

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range rows {
		rec := l.rowLocked(r.Provider, r.Model)
		if r.Day == today {
			rec.DailyUsed = r.DailyUsed
		}
		if r.Month == month {
			rec.MonthlyUsed = r.MonthlyUsed
		}
		rec.LastUsed = r.LastUsed
	}
}

// rowLocked returns the row for a pair, creating it with configured limits.
// Caller holds l.mu.
func (l *Ledger) rowLocked(provider, model string) *Record {
	k := key{provider, model}
	if rec, ok := l.rows[k]; ok {
		return rec
	}
	rec := &Record{
		DailyLimit:   l.defaultDaily,
		MonthlyLimit: l.defaultMonthly,
	}
	if lim, ok := l.limits[k]; ok {
		if lim.Daily > 0 {
			rec.DailyLimit = lim.Daily
		}
		if lim.Monthly > 0 {
			rec.MonthlyLimit = lim.Monthly
		}
	}
	l.rows[k] = rec
	return rec
}

// PercentUsed returns daily and monthly consumption percentages. Unseen
// pairs report (0, 0).
func (l *Ledger) PercentUsed(provider, model string) (daily, monthly float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.rows[key{provider, model}]
	if !ok {
		return 0, 0
	}
	return percent(rec.DailyUsed, rec.DailyLimit), percent(rec.MonthlyUsed, rec.MonthlyLimit)
}

// Exhausted reports whether a pair is at or over either quota
func (l *Ledger) Exhausted(provider, model string) bool {
	daily, monthly := l.PercentUsed(provider, model)
	return daily >= 100 || monthly >= 100
}

// RecordUse atomically increments both counters for a pair, creating the row
// if absent, and writes through to the durable store.
func (l *Ledger) RecordUse(ctx context.Context, provider, model string) {
	l.mu.Lock()
	rec := l.rowLocked(provider, model)
	rec.DailyUsed++
	rec.MonthlyUsed++
	rec.LastUsed = time.Now()
	dailyLimit, monthlyLimit := rec.DailyLimit, rec.MonthlyLimit
	l.mu.Unlock()

	if l.durable != nil {
		if err := l.durable.IncrementUsage(ctx, provider, model, dailyLimit, monthlyLimit); err != nil {
			l.logger.Error("usage write-through failed", "provider", provider, "model", model, "error", err)
		}
	}
}

// ResetDaily zeroes all daily counters
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.rows {
		rec.DailyUsed = 0
	}
}

// ResetMonthly zeroes all monthly counters
func (l *Ledger) ResetMonthly() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.rows {
		rec.MonthlyUsed = 0
	}
}

// PeriodUsage reports used/limit/percentage for one period
type PeriodUsage struct {
	Used       int     `json:"used"`
	Limit      int     `json:"limit"`
	Percentage float64 `json:"percentage"`
}

// QuotaInfo is the externally visible usage state for one pair
type QuotaInfo struct {
	Daily    PeriodUsage `json:"daily"`
	Monthly  PeriodUsage `json:"monthly"`
	LastUsed string      `json:"last_used,omitempty"`
}

// Snapshot returns the full usage table keyed provider then model
func (l *Ledger) Snapshot() map[string]map[string]QuotaInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]map[string]QuotaInfo)
	for k, rec := range l.rows {
		byModel, ok := out[k.provider]
		if !ok {
			byModel = make(map[string]QuotaInfo)
			out[k.provider] = byModel
		}
		info := QuotaInfo{
			Daily:   PeriodUsage{Used: rec.DailyUsed, Limit: rec.DailyLimit, Percentage: percent(rec.DailyUsed, rec.DailyLimit)},
			Monthly: PeriodUsage{Used: rec.MonthlyUsed, Limit: rec.MonthlyLimit, Percentage: percent(rec.MonthlyUsed, rec.MonthlyLimit)},
		}
		if !rec.LastUsed.IsZero() {
			info.LastUsed = rec.LastUsed.UTC().Format(time.RFC3339)
		}
		byModel[k.model] = info
	}
	return out
}

func percent(used, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}
