package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stock Agents Configuration

[pipeline]
# Forecast horizon used when a run does not set one (1-365)
default_horizon_days = 30
# Target service level used when a run does not set one (0.5 - 0.9999)
default_service_level = 0.95
# FEEDBACK_LOOP re-runs analysis when average forecast confidence is below this
feedback_confidence_threshold = 0.6
# Thresholds are multiplied by this factor in widened mode
feedback_widen_factor = 0.8
# Total budget of an EMERGENCY run in milliseconds
emergency_budget_ms = 5000

[pattern]
seasonality_threshold = 0.3
trend_threshold = 0.3
stable_cv_threshold = 0.5
trend_direction_min = 0.05
# Autocorrelation lags tested for seasonality
seasonal_lags = [7, 30]
widened_extra_lag = 14
# Series length at which the sample-size factor reaches 1
full_confidence_points = 60

[segmentation]
abc_a_cutoff = 0.80
abc_b_cutoff = 0.95
xyz_x_cutoff = 0.5
xyz_y_cutoff = 1.0
# Average units per day
fast_velocity = 10.0
medium_velocity = 1.0
# Gross margin fractions
high_margin = 0.40
medium_margin = 0.20

[forecast]
moving_average_window = 7
trend_window = 90
seasonal_cycles = 2
median_window = 28
erratic_inflation = 1.5
min_backtest_points = 5
max_backtest_points = 28
# Below this many residuals intervals fall back to a normal approximation
min_residual_samples = 5
external_factor_min_points = 28

[optimization]
default_lead_time_days = 14.0
default_moq = 0.0
# Unit cost as a fraction of average price when no supplier cost is known
default_cost_ratio = 0.6
ordering_cost = 50.0
holding_cost_rate = 0.25
missing_supplier_penalty = 0.3
materiality_threshold = 0.25
days_per_year = 365.0

[alerts]
overstock_multiple = 3.0
spike_z_threshold = 3.0
spike_window_days = 7
reliability_threshold = 0.8
lead_time_increase_threshold = 0.25
tracking_signal_limit = 4.0

[recommendations]
critical_deadline_days = 1
high_deadline_days = 3
medium_deadline_days = 7
low_deadline_days = 14

[logging]
# Level: trace, debug, info, warn, error
level = "info"
# Rotating log file; empty disables file logging
file = ""
max_size_mb = 10
max_backups = 3
max_age_days = 28
console = true
json_format = false

[tracing]
# Export OpenTelemetry spans to stdout
enabled = false
service_name = "stock-agents"
pretty_print = false

[store]
# SQLite database; empty uses stockagents.db in the config directory
path = ""

[ui]
color_enabled = true
date_format = "2006-01-02"
`

const agentsTemplate = `# Stock Agents Agent Configuration

# Concurrent stages in the PARALLEL topology
workers = 2
# How long a timed-out attempt may take to exit before the retry starts
retry_grace_ms = 1000
# Budget for agents without an explicit entry below
default_timeout_ms = 30000

[max_execution_time_ms]
ingestion = 10000
pattern_analysis = 15000
segmentation = 10000
forecasting = 30000
optimization = 10000
alerts = 10000
recommendations = 10000
kpi = 5000

# Weights for the overall confidence score
[weights]
ingestion = 0.10
pattern_analysis = 0.15
segmentation = 0.10
forecasting = 0.25
optimization = 0.15
alerts = 0.10
recommendations = 0.10
kpi = 0.05
`

func createTemplate(configDir, name, content string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}

	return nil
}
