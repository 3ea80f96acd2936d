package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
)

func fastGuard() GuardConfig {
	return GuardConfig{Timeout: 50 * time.Millisecond, Grace: 500 * time.Millisecond, MaxAttempts: 2}
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	var seen []Attempt
	out := Execute(context.Background(), "agent", fastGuard(), nil,
		func(ctx context.Context, attempt int) (int, error) {
			return 42, nil
		},
		func(a Attempt) { seen = append(seen, a) })

	require.NoError(t, out.Err)
	assert.Equal(t, 42, out.Value)
	assert.False(t, out.Retried())
	require.Len(t, seen, 1)
	assert.Equal(t, 1, seen[0].Number)
	assert.True(t, seen[0].Exited)
}

func TestExecute_RetriesAfterTimeout(t *testing.T) {
	out := Execute(context.Background(), "slow", fastGuard(), nil,
		func(ctx context.Context, attempt int) (string, error) {
			if attempt == 1 {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "ok", nil
		}, nil)

	require.NoError(t, out.Err)
	assert.Equal(t, "ok", out.Value)
	require.Len(t, out.Attempts, 2)
	assert.True(t, out.Retried())

	var te *apperrors.AgentTimeoutError
	require.True(t, errors.As(out.Attempts[0].Err, &te))
	assert.Equal(t, "slow", te.AgentName)
	assert.Equal(t, 1, te.Attempt)
	assert.True(t, errors.Is(out.Attempts[0].Err, apperrors.ErrAgentTimeout))
}

func TestExecute_RetryStartsAfterPreviousAttemptExits(t *testing.T) {
	var running, overlap atomic.Int32
	out := Execute(context.Background(), "slow", fastGuard(), nil,
		func(ctx context.Context, attempt int) (int, error) {
			if running.Add(1) > 1 {
				overlap.Store(1)
			}
			defer running.Add(-1)
			if attempt == 1 {
				<-ctx.Done()
				time.Sleep(20 * time.Millisecond)
				return 0, ctx.Err()
			}
			return attempt, nil
		}, nil)

	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.Value)
	assert.Zero(t, overlap.Load())
}

func TestExecute_GivesUpWhenAttemptDoesNotExit(t *testing.T) {
	cfg := GuardConfig{Timeout: 20 * time.Millisecond, Grace: 20 * time.Millisecond, MaxAttempts: 2}
	release := make(chan struct{})
	defer close(release)

	var calls atomic.Int32
	out := Execute(context.Background(), "stuck", cfg, nil,
		func(ctx context.Context, attempt int) (int, error) {
			calls.Add(1)
			<-release
			return 0, nil
		}, nil)

	require.Error(t, out.Err)
	require.Len(t, out.Attempts, 1)
	assert.False(t, out.Attempts[0].Exited)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, errors.Is(out.Err, apperrors.ErrAgentTimeout))
}

func TestExecute_RecoversPanics(t *testing.T) {
	out := Execute(context.Background(), "boom", fastGuard(), nil,
		func(ctx context.Context, attempt int) (int, error) {
			panic("bad input")
		}, nil)

	require.Error(t, out.Err)
	assert.Len(t, out.Attempts, 2)
	assert.True(t, errors.Is(out.Err, apperrors.ErrAgentPanic))
	assert.Contains(t, out.Err.Error(), "bad input")
}

func TestExecute_DoesNotRetryValidationErrors(t *testing.T) {
	var calls atomic.Int32
	out := Execute(context.Background(), "ingestion", fastGuard(), nil,
		func(ctx context.Context, attempt int) (int, error) {
			calls.Add(1)
			return 0, apperrors.NewValidationError("sales", 0, "no valid sales records")
		}, nil)

	require.Error(t, out.Err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, errors.Is(out.Err, apperrors.ErrInputValidation))
}

func TestExecute_CancelledParentIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	out := Execute(ctx, "agent", fastGuard(), nil,
		func(ctx context.Context, attempt int) (int, error) {
			calls.Add(1)
			return 0, ctx.Err()
		}, nil)

	require.Error(t, out.Err)
	assert.Len(t, out.Attempts, 1)
	assert.True(t, errors.Is(out.Err, context.Canceled))
}

func TestExecute_FixedClock(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := Execute(context.Background(), "agent", fastGuard(), func() time.Time { return fixed },
		func(ctx context.Context, attempt int) (int, error) { return 1, nil }, nil)

	require.Len(t, out.Attempts, 1)
	assert.Equal(t, fixed, out.Attempts[0].Started)
	assert.Zero(t, out.Attempts[0].Duration)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		success  bool
		attempts int
		warnings []string
		want     models.AgentStatus
	}{
		{"clean", true, 1, nil, models.AgentHealthy},
		{"retried", true, 2, nil, models.AgentDegraded},
		{"warnings", true, 1, []string{"defaults applied"}, models.AgentDegraded},
		{"failed", false, 2, nil, models.AgentError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.success, tt.attempts, tt.warnings))
		})
	}
}

func TestHealthTracker(t *testing.T) {
	h := NewHealthTracker()
	h.Record(models.AgentExecutionResult{AgentName: "pattern_analysis", Status: models.AgentHealthy, Success: true, Attempts: 1, ExecutionTimeMs: 10})
	h.Record(models.AgentExecutionResult{AgentName: "pattern_analysis", Status: models.AgentHealthy, Success: true, Attempts: 1, ExecutionTimeMs: 5})
	h.Skip("kpi", models.PhaseAggregating)
	h.Skip("pattern_analysis", models.PhaseAnalyzing)

	r, ok := h.Get("pattern_analysis")
	require.True(t, ok)
	assert.Equal(t, 2, r.Attempts)
	assert.Equal(t, int64(15), r.ExecutionTimeMs)
	assert.Equal(t, models.AgentHealthy, r.Status)

	k, _ := h.Get("kpi")
	assert.Equal(t, models.AgentSkipped, k.Status)

	counts := h.Counts()
	assert.Equal(t, 1, counts[models.AgentHealthy])
	assert.Equal(t, 1, counts[models.AgentSkipped])
	assert.Equal(t, []string{"kpi", "pattern_analysis"}, h.Names())
	assert.Len(t, h.Snapshot(), 2)
}
