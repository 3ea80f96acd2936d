// Package integration provides end-to-end tests across the loaders, store and coordinator.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-agents/internal/batch"
	"stock-agents/internal/coordinator"
	"stock-agents/internal/models"
	"stock-agents/internal/store"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func pipeline() coordinator.PipelineContext {
	return coordinator.PipelineContext{Clock: func() time.Time { return fixedNow }}
}

// generateBatch builds 120 days of sales for three products: a weekly cycle,
// a rising trend and a slow mover with no supplier on file.
func generateBatch() *models.RawBatch {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	weekly := []float64{20, 22, 25, 24, 30, 45, 40}

	b := &models.RawBatch{}
	for d := 0; d < 120; d++ {
		day := start.AddDate(0, 0, d)
		b.Sales = append(b.Sales,
			models.RawSalesRecord{ProductID: "WEEKLY", Date: day, QuantitySold: weekly[d%7], UnitPrice: ptr(12.5), Channel: "store"},
			models.RawSalesRecord{ProductID: "RISING", Date: day, QuantitySold: 5 + float64(d)/10, UnitPrice: ptr(40)},
		)
		if d%3 == 0 {
			b.Sales = append(b.Sales, models.RawSalesRecord{ProductID: "SLOW", Date: day, QuantitySold: 1, Revenue: ptr(3)})
		}
	}
	b.Inventory = []models.RawInventoryRecord{
		{ProductID: "WEEKLY", AvailableQuantity: 150, ReservedQuantity: ptr(10), Location: "main"},
		{ProductID: "RISING", AvailableQuantity: 30},
		{ProductID: "SLOW", AvailableQuantity: 400},
	}
	b.Suppliers = []models.RawSupplierRecord{
		{ProductID: "WEEKLY", SupplierID: "ACME", LeadTimeDays: 5, MinimumOrderQuantity: ptr(100), CostPerUnit: ptr(7), ReliabilityScore: ptr(0.97)},
		{ProductID: "RISING", SupplierID: "GLOBEX", LeadTimeDays: 21, CostPerUnit: ptr(25), ReliabilityScore: ptr(0.7)},
	}
	return b
}

// TestEndToEndWorkflow takes a batch through a workbook, the store and every
// workflow pattern, archiving each run.
func TestEndToEndWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Workbook round trip
	var buf bytes.Buffer
	if err := batch.WriteWorkbook(&buf, generateBatch()); err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}
	fromFile, report, err := batch.LoadWorkbook(&buf)
	if err != nil {
		t.Fatalf("Failed to load workbook: %v", err)
	}
	if len(report.Skipped) != 0 {
		t.Fatalf("Expected no skipped rows, got %v", report.Skipped)
	}

	// Store round trip
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	if err := s.SaveBatch(ctx, "q1", fromFile); err != nil {
		t.Fatalf("Failed to save batch: %v", err)
	}
	fromStore, err := s.LoadBatch(ctx, "q1")
	if err != nil {
		t.Fatalf("Failed to load batch: %v", err)
	}

	c := coordinator.New(nil)
	patterns := []models.WorkflowPattern{
		models.WorkflowSequential,
		models.WorkflowParallel,
		models.WorkflowFeedbackLoop,
		models.WorkflowEmergency,
	}

	for _, pattern := range patterns {
		t.Run(string(pattern), func(t *testing.T) {
			run := models.DefaultRunConfig()
			run.WorkflowPattern = pattern

			fileResult := c.Run(ctx, pipeline(), fromFile, run)
			storeResult := c.Run(ctx, pipeline(), fromStore, run)

			require.True(t, fileResult.Success, fileResult.Error)
			require.True(t, storeResult.Success, storeResult.Error)
			assert.Equal(t, len(fileResult.Alerts), len(storeResult.Alerts))
			assert.Equal(t, fileResult.Optimization, storeResult.Optimization)

			// Only the slow mover lacks a supplier.
			for _, o := range storeResult.Optimization {
				assert.Equal(t, o.ProductID == "SLOW", o.UsedDefaults, o.ProductID)
			}

			if err := s.SaveRun(ctx, "q1", &storeResult); err != nil {
				t.Fatalf("Failed to archive run: %v", err)
			}
			archived, err := s.GetRun(ctx, storeResult.RunID)
			require.NoError(t, err)
			assert.Equal(t, storeResult.ExecutionSummary, archived.ExecutionSummary)
			assert.Equal(t, len(storeResult.Recommendations), len(archived.Recommendations))
		})
	}

	runs, err := s.ListRuns(ctx, store.RunFilter{BatchName: "q1"})
	require.NoError(t, err)
	assert.Len(t, runs, len(patterns))

	emergency, err := s.ListRuns(ctx, store.RunFilter{WorkflowPattern: models.WorkflowEmergency})
	require.NoError(t, err)
	require.Len(t, emergency, 1)
	assert.True(t, emergency[0].Success)
}

// TestFullAnalysisSections checks the sections a full run fills in for a
// realistic batch.
func TestFullAnalysisSections(t *testing.T) {
	c := coordinator.New(nil)
	run := models.DefaultRunConfig()
	run.ForecastHorizonDays = 60

	res := c.Run(context.Background(), pipeline(), generateBatch(), run)
	require.True(t, res.Success, res.Error)

	assert.Len(t, res.DemandPatterns, 3)
	assert.Len(t, res.ProductSegments, 3)
	assert.Len(t, res.Optimization, 3)
	assert.Equal(t, 60, res.Forecasts.Summary.HorizonDays)
	assert.Equal(t, 3*60, len(res.Forecasts.ShortTerm)+len(res.Forecasts.MediumTerm)+len(res.Forecasts.LongTerm))
	assert.Equal(t, 3*28, len(res.Forecasts.ShortTerm))
	assert.Equal(t, 3, res.KPIs.Service.ProductsOptimized)

	var aShare float64
	for _, seg := range res.ProductSegments {
		if seg.ABCClassification == models.ClassA {
			aShare += seg.RevenueShare
		}
	}
	assert.Greater(t, aShare, 0.0)

	for name, perf := range res.AgentsPerformance {
		assert.NotEqual(t, models.AgentError, perf.Status, name)
		assert.NotEqual(t, models.AgentSkipped, perf.Status, name)
	}
}

// TestConcurrentRuns runs several batches through one coordinator at once.
// Runs with the same input must agree exactly.
func TestConcurrentRuns(t *testing.T) {
	c := coordinator.New(nil)
	patterns := []models.WorkflowPattern{
		models.WorkflowSequential,
		models.WorkflowParallel,
		models.WorkflowFeedbackLoop,
	}

	const rounds = 3
	results := make([][]string, len(patterns))
	for i := range results {
		results[i] = make([]string, rounds)
	}

	var wg sync.WaitGroup
	for i, pattern := range patterns {
		for r := 0; r < rounds; r++ {
			i, pattern, r := i, pattern, r
			wg.Add(1)
			go func() {
				defer wg.Done()
				run := models.DefaultRunConfig()
				run.WorkflowPattern = pattern
				res := c.Run(context.Background(), pipeline(), generateBatch(), run)
				if !res.Success {
					t.Errorf("%s run failed: %s", pattern, res.Error)
				}
				data, err := json.Marshal(res)
				if err != nil {
					t.Errorf("marshal: %v", err)
					return
				}
				results[i][r] = string(data)
			}()
		}
	}
	wg.Wait()

	for i, pattern := range patterns {
		for r := 1; r < rounds; r++ {
			assert.JSONEq(t, results[i][0], results[i][r], "pattern %s round %d", pattern, r)
		}
	}
}
