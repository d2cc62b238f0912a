package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/forge-coordinator/internal/config"
	"github.com/forgeworks/forge-coordinator/internal/logging"
	"github.com/forgeworks/forge-coordinator/internal/store"
)

func newTestLedger(daily, monthly int) *Ledger {
	return New(&config.UsageConfig{
		DefaultDaily:   daily,
		DefaultMonthly: monthly,
	}, nil, logging.WithComponent("test"))
}

func TestPercentUsedUnseen(t *testing.T) {
	l := newTestLedger(10, 100)

	daily, monthly := l.PercentUsed("groq", "llama3-8b-8192")
	assert.Zero(t, daily)
	assert.Zero(t, monthly)
	assert.False(t, l.Exhausted("groq", "llama3-8b-8192"))
}

func TestRecordUse(t *testing.T) {
	l := newTestLedger(10, 100)
	ctx := context.Background()

	l.RecordUse(ctx, "groq", "llama3-8b-8192")
	l.RecordUse(ctx, "groq", "llama3-8b-8192")

	daily, monthly := l.PercentUsed("groq", "llama3-8b-8192")
	assert.InDelta(t, 20.0, daily, 0.001)
	assert.InDelta(t, 2.0, monthly, 0.001)
}

func TestExhaustedAtLimit(t *testing.T) {
	l := newTestLedger(2, 100)
	ctx := context.Background()

	l.RecordUse(ctx, "gemini", "gemini-1.5-flash")
	assert.False(t, l.Exhausted("gemini", "gemini-1.5-flash"))

	// at-limit counts as exhausted
	l.RecordUse(ctx, "gemini", "gemini-1.5-flash")
	assert.True(t, l.Exhausted("gemini", "gemini-1.5-flash"))
}

func TestMonthlyExhaustionGates(t *testing.T) {
	l := newTestLedger(1000, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.RecordUse(ctx, "openrouter", "claude-3.5-sonnet")
	}
	assert.True(t, l.Exhausted("openrouter", "claude-3.5-sonnet"))
}

func TestPerPairLimitOverride(t *testing.T) {
	l := New(&config.UsageConfig{
		DefaultDaily:   100,
		DefaultMonthly: 1000,
		Limits: []config.LimitConfig{
			{Provider: "gpt_oss", Model: "gpt-oss-20b", Daily: 1, Monthly: 10},
		},
	}, nil, logging.WithComponent("test"))

	l.RecordUse(context.Background(), "gpt_oss", "gpt-oss-20b")
	assert.True(t, l.Exhausted("gpt_oss", "gpt-oss-20b"))
	assert.False(t, l.Exhausted("gpt_oss", "other-model"))
}

func TestConcurrentRecordUse(t *testing.T) {
	const callers = 200
	l := newTestLedger(1000, 10000)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			l.RecordUse(ctx, "groq", "llama3-70b-8192")
		}()
	}
	wg.Wait()

	snap := l.Snapshot()
	require.Contains(t, snap, "groq")
	require.Contains(t, snap["groq"], "llama3-70b-8192")
	assert.Equal(t, callers, snap["groq"]["llama3-70b-8192"].Daily.Used)
	assert.Equal(t, callers, snap["groq"]["llama3-70b-8192"].Monthly.Used)
}

func TestResets(t *testing.T) {
	l := newTestLedger(1, 1)
	ctx := context.Background()

	l.RecordUse(ctx, "groq", "llama3-8b-8192")
	assert.True(t, l.Exhausted("groq", "llama3-8b-8192"))

	l.ResetDaily()
	// still gated by monthly
	assert.True(t, l.Exhausted("groq", "llama3-8b-8192"))

	l.ResetMonthly()
	assert.False(t, l.Exhausted("groq", "llama3-8b-8192"))
}

func TestWarmSkipsStalePeriods(t *testing.T) {
	l := newTestLedger(10, 100)
	today := time.Now().Format("2006-01-02")
	month := time.Now().Format("2006-01")

	l.Warm([]store.UsageRow{
		{Provider: "groq", Model: "current", Day: today, Month: month, DailyUsed: 5, MonthlyUsed: 7},
		{Provider: "groq", Model: "stale", Day: "2001-01-01", Month: "2001-01", DailyUsed: 9, MonthlyUsed: 99},
	})

	daily, monthly := l.PercentUsed("groq", "current")
	assert.InDelta(t, 50.0, daily, 0.001)
	assert.InDelta(t, 7.0, monthly, 0.001)

	daily, monthly = l.PercentUsed("groq", "stale")
	assert.Zero(t, daily)
	assert.Zero(t, monthly)
}

func TestSnapshotPercentages(t *testing.T) {
	l := newTestLedger(4, 8)
	ctx := context.Background()

	l.RecordUse(ctx, "gemini", "gemini-1.5-flash")
	l.RecordUse(ctx, "gemini", "gemini-1.5-flash")

	info := l.Snapshot()["gemini"]["gemini-1.5-flash"]
	assert.Equal(t, 2, info.Daily.Used)
	assert.Equal(t, 4, info.Daily.Limit)
	assert.InDelta(t, 50.0, info.Daily.Percentage, 0.001)
	assert.InDelta(t, 25.0, info.Monthly.Percentage, 0.001)
	assert.NotEmpty(t, info.LastUsed)
}
