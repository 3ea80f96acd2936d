package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// Each write observes a later instant.
	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func testResult(id string, pattern models.WorkflowPattern, success bool) *models.WorkflowResult {
	state := models.PhaseDone
	if !success {
		state = models.PhaseFailed
	}
	return &models.WorkflowResult{
		RunID:            id,
		Success:          success,
		State:            state,
		WorkflowPattern:  pattern,
		AnalysisType:     models.AnalysisFull,
		ReferenceDate:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		ConfidenceScore:  0.82,
		DataQualityScore: 1,
		Alerts: []models.Alert{
			{ID: "a1", ProductID: "SKU-A", Type: models.AlertStockoutRisk, Severity: models.SeverityCritical},
		},
		Recommendations:  []models.Recommendation{},
		ExecutionSummary: "FULL_ANALYSIS via " + string(pattern),
	}
}

func TestSQLiteStore_Batches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveBatch(ctx, "week-1", generateTestBatch(7, 2, 10, true)))
	require.NoError(t, s.SaveBatch(ctx, "week-2", generateTestBatch(14, 3, 10, false)))

	batches, err := s.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "week-2", batches[0].Name)
	assert.Equal(t, 42, batches[0].SalesRecords)
	assert.Equal(t, 3, batches[0].Products)
	assert.Equal(t, 3, batches[0].InventoryRecords)
	assert.Equal(t, 3, batches[0].SupplierRecords)
	assert.True(t, batches[0].ImportedAt.After(batches[1].ImportedAt))

	loaded, err := s.LoadBatch(ctx, "week-2")
	require.NoError(t, err)
	assert.Nil(t, loaded.Sales[0].UnitPrice)
	assert.Nil(t, loaded.Suppliers[0].CostPerUnit)
	assert.True(t, loaded.Inventory[0].LastUpdated.IsZero())

	require.NoError(t, s.DeleteBatch(ctx, "week-1"))
	_, err = s.LoadBatch(ctx, "week-1")
	assert.True(t, errors.Is(err, apperrors.ErrDataNotFound))
	assert.True(t, errors.Is(s.DeleteBatch(ctx, "week-1"), apperrors.ErrDataNotFound))

	batches, err = s.ListBatches(ctx)
	require.NoError(t, err)
	assert.Len(t, batches, 1)
}

func TestSQLiteStore_SaveBatchRequiresName(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveBatch(context.Background(), "", &models.RawBatch{})
	assert.True(t, errors.Is(err, apperrors.ErrInputValidation))
}

func TestSQLiteStore_Runs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveRun(ctx, "week-1", testResult("run-1", models.WorkflowSequential, true)))
	require.NoError(t, s.SaveRun(ctx, "week-1", testResult("run-2", models.WorkflowParallel, true)))
	require.NoError(t, s.SaveRun(ctx, "week-2", testResult("run-3", models.WorkflowEmergency, false)))

	got, err := s.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowParallel, got.WorkflowPattern)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), got.ReferenceDate)
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, models.SeverityCritical, got.Alerts[0].Severity)

	_, err = s.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, apperrors.ErrDataNotFound))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-3", all[0].RunID)
	assert.Equal(t, models.PhaseFailed, all[0].State)
	assert.False(t, all[0].Success)
	assert.Equal(t, 1, all[0].Alerts)
	assert.Equal(t, 0.82, all[0].ConfidenceScore)

	tests := []struct {
		name   string
		filter RunFilter
		want   []string
	}{
		{"by batch", RunFilter{BatchName: "week-1"}, []string{"run-2", "run-1"}},
		{"by pattern", RunFilter{WorkflowPattern: models.WorkflowEmergency}, []string{"run-3"}},
		{"success only", RunFilter{SuccessOnly: true}, []string{"run-2", "run-1"}},
		{"limit", RunFilter{Limit: 1}, []string{"run-3"}},
		{"since", RunFilter{Since: all[1].ArchivedAt}, []string{"run-3", "run-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, r := range runs {
				ids = append(ids, r.RunID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSQLiteStore_SaveRunReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := testResult("run-1", models.WorkflowSequential, true)
	require.NoError(t, s.SaveRun(ctx, "week-1", first))
	second := testResult("run-1", models.WorkflowSequential, true)
	second.ConfidenceScore = 0.5
	require.NoError(t, s.SaveRun(ctx, "week-1", second))

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 0.5, runs[0].ConfidenceScore)

	assert.Error(t, s.SaveRun(ctx, "week-1", &models.WorkflowResult{}))
}
