package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-agents/internal/batch"
	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
	"stock-agents/internal/store"
)

func ptr(v float64) *float64 { return &v }

// testBatch holds a product that is short on stock and one that is well covered.
func testBatch() *models.RawBatch {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &models.RawBatch{}
	pattern := []float64{8, 12, 12, 8}
	for d := 0; d < 60; d++ {
		b.Sales = append(b.Sales,
			models.RawSalesRecord{ProductID: "SKU-A", Date: start.AddDate(0, 0, d), QuantitySold: pattern[d%4], UnitPrice: ptr(5)},
			models.RawSalesRecord{ProductID: "SKU-B", Date: start.AddDate(0, 0, d), QuantitySold: 3, UnitPrice: ptr(20)},
		)
	}
	b.Inventory = []models.RawInventoryRecord{
		{ProductID: "SKU-A", AvailableQuantity: 10},
		{ProductID: "SKU-B", AvailableQuantity: 60},
	}
	b.Suppliers = []models.RawSupplierRecord{
		{ProductID: "SKU-A", SupplierID: "S1", LeadTimeDays: 7, CostPerUnit: ptr(3)},
		{ProductID: "SKU-B", SupplierID: "S2", LeadTimeDays: 10, CostPerUnit: ptr(12)},
	}
	return b
}

func writeBatch(t *testing.T, dir, name string, b *models.RawBatch) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, batch.SaveJSON(f, b))
	require.NoError(t, f.Close())
	return path
}

type harness struct {
	t         *testing.T
	app       *App
	configDir string
	dataDir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("STOCKAGENTS_LOG_LEVEL", "error")
	app := NewApp()
	t.Cleanup(app.Close)
	return &harness{t: t, app: app, configDir: t.TempDir(), dataDir: t.TempDir()}
}

// run executes the CLI with args against a fresh command tree.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(h.app)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", h.configDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) runJSON(v interface{}, args ...string) {
	h.t.Helper()
	out, err := h.run(append(args, "--json")...)
	require.NoError(h.t, err, out)
	require.NoError(h.t, json.Unmarshal([]byte(out), v), out)
}

func TestAnalyze_JSONAndArchive(t *testing.T) {
	h := newHarness(t)
	file := writeBatch(t, h.dataDir, "week-9.json", testBatch())

	var result models.WorkflowResult
	h.runJSON(&result, "analyze", file, "--reference-date", "2024-03-01", "--archive")
	assert.True(t, result.Success, result.Error)
	assert.Equal(t, models.PhaseDone, result.State)
	assert.Equal(t, models.WorkflowSequential, result.WorkflowPattern)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), result.ReferenceDate)
	assert.Len(t, result.AgentsPerformance, 8)
	assert.NotEmpty(t, result.Alerts)

	var runs []store.RunSummary
	h.runJSON(&runs, "history")
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].RunID)
	assert.Equal(t, "week-9", runs[0].BatchName)

	var archived models.WorkflowResult
	h.runJSON(&archived, "history", "show", result.RunID)
	assert.Equal(t, result.RunID, archived.RunID)
	assert.Equal(t, len(result.Recommendations), len(archived.Recommendations))
}

func TestAnalyze_RunOptions(t *testing.T) {
	h := newHarness(t)
	file := writeBatch(t, h.dataDir, "batch.json", testBatch())

	var result models.WorkflowResult
	h.runJSON(&result, "analyze", file,
		"--pattern", "parallel", "--analysis", "segmentation", "--horizon", "14", "--service-level", "0.9")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, models.WorkflowParallel, result.WorkflowPattern)
	assert.Equal(t, models.AnalysisSegmentation, result.AnalysisType)
	assert.NotEmpty(t, result.ProductSegments)
	assert.Empty(t, result.DemandPatterns)
}

func TestAnalyze_TextReport(t *testing.T) {
	h := newHarness(t)
	file := writeBatch(t, h.dataDir, "batch.json", testBatch())

	out, err := h.run("analyze", file, "--show", "summary,agents,alerts,kpis")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Run ")
	assert.Contains(t, out, "FULL_ANALYSIS via SEQUENTIAL")
	assert.Contains(t, out, "pattern_analysis")
	assert.Regexp(t, `ingestion +INGESTING +(HEALTHY|DEGRADED)`, out)
	assert.Contains(t, out, "Alerts (")
	assert.Contains(t, out, "Inventory value:")
	assert.NotContains(t, out, "Inventory Policy")
	assert.NotContains(t, out, "\x1b[", "colour is off when not writing to a terminal")
}

func TestAnalyze_FailedRunReturnsError(t *testing.T) {
	h := newHarness(t)
	file := writeBatch(t, h.dataDir, "empty.json", &models.RawBatch{})

	out, err := h.run("analyze", file, "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis failed")

	var result models.WorkflowResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Success)
	assert.Equal(t, models.PhaseFailed, result.State)

	good := writeBatch(t, h.dataDir, "batch.json", testBatch())
	out, err = h.run("analyze", good, "--service-level", "0.3", "--json")
	require.Error(t, err)
	result = models.WorkflowResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Contains(t, result.Error, "configuration error: service_level")
	assert.Equal(t, models.AgentSkipped, result.AgentsPerformance["ingestion"].Status)
}

func TestAnalyze_ArgumentErrors(t *testing.T) {
	h := newHarness(t)
	file := writeBatch(t, h.dataDir, "batch.json", testBatch())

	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{"analyze"}},
		{"file and batch", []string{"analyze", file, "--batch", "x"}},
		{"bad date", []string{"analyze", file, "--reference-date", "31/03/2024"}},
		{"bad section", []string{"analyze", file, "--show", "charts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInputValidation), err.Error())
		})
	}

	_, err := h.run("analyze", "--batch", "missing")
	assert.True(t, errors.Is(err, apperrors.ErrDataNotFound))
}

func TestBatchCommands(t *testing.T) {
	h := newHarness(t)
	file := writeBatch(t, h.dataDir, "week-10.json", testBatch())

	out, err := h.run("import", file)
	require.NoError(t, err, out)
	assert.Contains(t, out, `Imported "week-10"`)

	var batches []store.BatchInfo
	h.runJSON(&batches, "batches")
	require.Len(t, batches, 1)
	assert.Equal(t, "week-10", batches[0].Name)
	assert.Equal(t, 2, batches[0].Products)
	assert.Equal(t, 120, batches[0].SalesRecords)

	var result models.WorkflowResult
	h.runJSON(&result, "analyze", "--batch", "week-10", "--pattern", "EMERGENCY")
	assert.True(t, result.Success, result.Error)

	xlsx := filepath.Join(h.dataDir, "out.xlsx")
	_, err = h.run("export", "week-10", xlsx)
	require.NoError(t, err)
	exported, _, err := batch.LoadFile(xlsx)
	require.NoError(t, err)
	assert.Len(t, exported.Sales, 120)
	assert.Len(t, exported.Suppliers, 2)

	_, err = h.run("export", "week-10", filepath.Join(h.dataDir, "out.csv"))
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedFormat))
	_, statErr := os.Stat(filepath.Join(h.dataDir, "out.csv"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = h.run("batches", "delete", "week-10")
	require.NoError(t, err)
	batches = nil
	h.runJSON(&batches, "batches")
	assert.Empty(t, batches)
}

func TestTemplateCommand(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dataDir, "template.xlsx")

	_, err := h.run("template", path)
	require.NoError(t, err)

	got, report, err := batch.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Rows)
	assert.Empty(t, got.Sales)
}

func TestConfigAndVersionCommands(t *testing.T) {
	h := newHarness(t)

	var valid map[string]bool
	h.runJSON(&valid, "config", "validate")
	assert.True(t, valid["valid"])

	var paths map[string]string
	h.runJSON(&paths, "config", "path")
	assert.Equal(t, h.configDir, paths["path"])
	assert.Equal(t, filepath.Join(h.configDir, "stockagents.db"), paths["store"])

	out, err := h.run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "forecasting")
	assert.Contains(t, out, "Service Level:     95.0%")

	var version map[string]string
	h.runJSON(&version, "version")
	assert.Equal(t, Version, version["version"])

	out, err = h.run("commands")
	require.NoError(t, err)
	assert.Contains(t, out, "history show <run-id>")
}

func TestTable_AlignsColouredCells(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{writer: &buf, colorEnabled: true}

	table := NewTable(out, "A", "B")
	table.AddRow(out.Severity(models.SeverityCritical), "x")
	table.AddRow("LOW", "y")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "A         B", stripANSI(lines[0]))
	assert.Equal(t, "CRITICAL  x", stripANSI(lines[2]))
	assert.Equal(t, "LOW       y", stripANSI(lines[3]))
	assert.Contains(t, lines[2], "\x1b[")

	plain := &Output{writer: &buf}
	assert.Equal(t, "DEGRADED", plain.Status(models.AgentDegraded))
}
