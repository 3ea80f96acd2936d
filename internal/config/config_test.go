package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-agents/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30, cfg.Pipeline.DefaultHorizonDays)
	assert.Equal(t, 0.95, cfg.Pipeline.DefaultServiceLevel)
	assert.Equal(t, 0.6, cfg.Pipeline.FeedbackConfidenceThreshold)
	assert.Equal(t, 5000, cfg.Pipeline.EmergencyBudgetMs)
	assert.Equal(t, []int{7, 30}, cfg.Pattern.SeasonalLags)
	assert.Equal(t, 2, cfg.Agents.Workers)
	assert.Equal(t, time.Second, cfg.Agents.RetryGrace())

	assert.Equal(t, 30*time.Second, cfg.Agents.TimeoutFor(AgentForecasting))
	assert.Equal(t, 5*time.Second, cfg.Agents.TimeoutFor(AgentKPI))
	assert.Equal(t, 0.25, cfg.Agents.WeightFor(AgentForecasting))

	var total float64
	for _, name := range AgentNames() {
		total += cfg.Agents.WeightFor(name)
	}
	assert.InDelta(t, 1.0, total, 1e-9)

	require.NoError(t, cfg.Validate())
}

func TestTimeoutFallsBackToDefault(t *testing.T) {
	a := AgentConfig{DefaultTimeoutMs: 2500}
	assert.Equal(t, 2500*time.Millisecond, a.TimeoutFor("unknown"))
}

func TestLoad_CreatesTemplates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default().Pipeline, cfg.Pipeline)

	for _, name := range []string{"config.toml", "agents.toml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	// The written templates parse back to the same values.
	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Pipeline, again.Pipeline)
	assert.Equal(t, cfg.Agents.Weights, again.Agents.Weights)
	assert.Equal(t, cfg.Agents.TimeoutsMs, again.Agents.TimeoutsMs)
}

func TestLoad_ReadsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[pipeline]
default_horizon_days = 14
emergency_budget_ms = 2000

[logging]
level = "debug"
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.toml"), []byte(`
workers = 4
`), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Pipeline.DefaultHorizonDays)
	assert.Equal(t, 2000, cfg.Pipeline.EmergencyBudgetMs)
	assert.Equal(t, 0.95, cfg.Pipeline.DefaultServiceLevel)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Agents.Workers)
	assert.Equal(t, time.Second, cfg.Agents.RetryGrace())
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[pipeline]
default_service_level = 1.5
`), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfigInvalid))
	assert.Contains(t, err.Error(), "pipeline.default_service_level")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOCKAGENTS_LOG_LEVEL", "WARN")
	t.Setenv("STOCKAGENTS_WORKERS", "3")
	t.Setenv("STOCKAGENTS_SERVICE_LEVEL", "0.9")
	t.Setenv("STOCKAGENTS_STORE_PATH", "/tmp/runs.db")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Agents.Workers)
	assert.Equal(t, 0.9, cfg.Pipeline.DefaultServiceLevel)
	assert.Equal(t, "/tmp/runs.db", cfg.StorePath("ignored"))
}

func TestStorePath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("/etc/stock", "stockagents.db"), cfg.StorePath("/etc/stock"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		key  string
	}{
		{"horizon", func(c *Config) { c.Pipeline.DefaultHorizonDays = 0 }, "pipeline.default_horizon_days"},
		{"service level", func(c *Config) { c.Pipeline.DefaultServiceLevel = 0.5 }, "pipeline.default_service_level"},
		{"widen factor", func(c *Config) { c.Pipeline.FeedbackWidenFactor = 1.5 }, "pipeline.feedback_widen_factor"},
		{"emergency budget", func(c *Config) { c.Pipeline.EmergencyBudgetMs = 0 }, "pipeline.emergency_budget_ms"},
		{"seasonal lag", func(c *Config) { c.Pattern.SeasonalLags = []int{1} }, "pattern.seasonal_lags"},
		{"abc cutoffs", func(c *Config) { c.Segmentation.ABCACutoff = 0.97 }, "segmentation.abc_a_cutoff"},
		{"backtest window", func(c *Config) { c.Forecast.MaxBacktestPoints = 2 }, "forecast.min_backtest_points"},
		{"lead time", func(c *Config) { c.Optimization.DefaultLeadTimeDays = 0 }, "optimization.default_lead_time_days"},
		{"overstock", func(c *Config) { c.Alerts.OverstockMultiple = 1 }, "alerts.overstock_multiple"},
		{"workers", func(c *Config) { c.Agents.Workers = 0 }, "agents.workers"},
		{"weights", func(c *Config) { c.Agents.Weights[AgentKPI] = -1 }, "agents.weights.kpi"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			err := cfg.Validate()

			var ce *apperrors.ConfigurationError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}
