// Package config provides configuration management for the analysis pipeline.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "stock-agents/internal/errors"
)

// Agent names as used for timeouts, weights and the performance report.
const (
	AgentIngestion       = "ingestion"
	AgentPattern         = "pattern_analysis"
	AgentSegmentation    = "segmentation"
	AgentForecasting     = "forecasting"
	AgentOptimization    = "optimization"
	AgentAlerts          = "alerts"
	AgentRecommendations = "recommendations"
	AgentKPI             = "kpi"
)

// AgentNames lists every agent in pipeline order.
func AgentNames() []string {
	return []string{
		AgentIngestion, AgentPattern, AgentSegmentation, AgentForecasting,
		AgentOptimization, AgentAlerts, AgentRecommendations, AgentKPI,
	}
}

// Config holds all application configuration.
type Config struct {
	Pipeline        PipelineConfig       `mapstructure:"pipeline"`
	Pattern         PatternConfig        `mapstructure:"pattern"`
	Segmentation    SegmentationConfig   `mapstructure:"segmentation"`
	Forecast        ForecastConfig       `mapstructure:"forecast"`
	Optimization    OptimizationConfig   `mapstructure:"optimization"`
	Alerts          AlertConfig          `mapstructure:"alerts"`
	Recommendations RecommendationConfig `mapstructure:"recommendations"`
	Logging         LoggingConfig        `mapstructure:"logging"`
	Tracing         TracingConfig        `mapstructure:"tracing"`
	Store           StoreConfig          `mapstructure:"store"`
	UI              UIConfig             `mapstructure:"ui"`
	Agents          AgentConfig          `mapstructure:"-"` // Loaded separately
}

// PipelineConfig holds run defaults and coordinator thresholds.
type PipelineConfig struct {
	DefaultHorizonDays          int     `mapstructure:"default_horizon_days"`
	DefaultServiceLevel         float64 `mapstructure:"default_service_level"`
	FeedbackConfidenceThreshold float64 `mapstructure:"feedback_confidence_threshold"`
	FeedbackWidenFactor         float64 `mapstructure:"feedback_widen_factor"`
	EmergencyBudgetMs           int     `mapstructure:"emergency_budget_ms"`
}

// PatternConfig holds pattern classification thresholds.
type PatternConfig struct {
	SeasonalityThreshold float64 `mapstructure:"seasonality_threshold"`
	TrendThreshold       float64 `mapstructure:"trend_threshold"`
	StableCVThreshold    float64 `mapstructure:"stable_cv_threshold"`
	TrendDirectionMin    float64 `mapstructure:"trend_direction_min"`
	SeasonalLags         []int   `mapstructure:"seasonal_lags"`
	WidenedExtraLag      int     `mapstructure:"widened_extra_lag"`
	FullConfidencePoints int     `mapstructure:"full_confidence_points"`
}

// SegmentationConfig holds ABC/XYZ, velocity and margin cutoffs.
type SegmentationConfig struct {
	ABCACutoff     float64 `mapstructure:"abc_a_cutoff"`
	ABCBCutoff     float64 `mapstructure:"abc_b_cutoff"`
	XYZXCutoff     float64 `mapstructure:"xyz_x_cutoff"`
	XYZYCutoff     float64 `mapstructure:"xyz_y_cutoff"`
	FastVelocity   float64 `mapstructure:"fast_velocity"`
	MediumVelocity float64 `mapstructure:"medium_velocity"`
	HighMargin     float64 `mapstructure:"high_margin"`
	MediumMargin   float64 `mapstructure:"medium_margin"`
}

// ForecastConfig holds model windows and backtest sizing.
type ForecastConfig struct {
	MovingAverageWindow     int     `mapstructure:"moving_average_window"`
	TrendWindow             int     `mapstructure:"trend_window"`
	SeasonalCycles          int     `mapstructure:"seasonal_cycles"`
	MedianWindow            int     `mapstructure:"median_window"`
	ErraticInflation        float64 `mapstructure:"erratic_inflation"`
	MinBacktestPoints       int     `mapstructure:"min_backtest_points"`
	MaxBacktestPoints       int     `mapstructure:"max_backtest_points"`
	MinResidualSamples      int     `mapstructure:"min_residual_samples"`
	ExternalFactorMinPoints int     `mapstructure:"external_factor_min_points"`
}

// OptimizationConfig holds inventory policy defaults.
type OptimizationConfig struct {
	DefaultLeadTimeDays    float64 `mapstructure:"default_lead_time_days"`
	DefaultMOQ             float64 `mapstructure:"default_moq"`
	DefaultCostRatio       float64 `mapstructure:"default_cost_ratio"`
	OrderingCost           float64 `mapstructure:"ordering_cost"`
	HoldingCostRate        float64 `mapstructure:"holding_cost_rate"`
	MissingSupplierPenalty float64 `mapstructure:"missing_supplier_penalty"`
	MaterialityThreshold   float64 `mapstructure:"materiality_threshold"`
	DaysPerYear            float64 `mapstructure:"days_per_year"`
}

// AlertConfig holds alert trigger thresholds.
type AlertConfig struct {
	OverstockMultiple         float64 `mapstructure:"overstock_multiple"`
	SpikeZThreshold           float64 `mapstructure:"spike_z_threshold"`
	SpikeWindowDays           int     `mapstructure:"spike_window_days"`
	ReliabilityThreshold      float64 `mapstructure:"reliability_threshold"`
	LeadTimeIncreaseThreshold float64 `mapstructure:"lead_time_increase_threshold"`
	TrackingSignalLimit       float64 `mapstructure:"tracking_signal_limit"`
}

// RecommendationConfig holds deadline offsets by priority.
type RecommendationConfig struct {
	CriticalDeadlineDays int `mapstructure:"critical_deadline_days"`
	HighDeadlineDays     int `mapstructure:"high_deadline_days"`
	MediumDeadlineDays   int `mapstructure:"medium_deadline_days"`
	LowDeadlineDays      int `mapstructure:"low_deadline_days"`
}

// LoggingConfig holds log sink configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
	JSONFormat bool   `mapstructure:"json_format"`
}

// TracingConfig holds OpenTelemetry exporter configuration.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	PrettyPrint bool   `mapstructure:"pretty_print"`
}

// StoreConfig holds the SQLite batch source location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// AgentConfig holds per-agent execution limits and confidence weights.
type AgentConfig struct {
	Workers          int                `mapstructure:"workers"`
	RetryGraceMs     int                `mapstructure:"retry_grace_ms"`
	DefaultTimeoutMs int                `mapstructure:"default_timeout_ms"`
	TimeoutsMs       map[string]int     `mapstructure:"max_execution_time_ms"`
	Weights          map[string]float64 `mapstructure:"weights"`
}

// TimeoutFor returns the execution budget of an agent.
func (a AgentConfig) TimeoutFor(agent string) time.Duration {
	if ms, ok := a.TimeoutsMs[agent]; ok && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return time.Duration(a.DefaultTimeoutMs) * time.Millisecond
}

// WeightFor returns the confidence weight of an agent, 0 if unset.
func (a AgentConfig) WeightFor(agent string) float64 {
	return a.Weights[agent]
}

// RetryGrace bounds how long a timed-out attempt may take to exit before retrying.
func (a AgentConfig) RetryGrace() time.Duration {
	return time.Duration(a.RetryGraceMs) * time.Millisecond
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-agents"
	}
	return filepath.Join(home, ".config", "stock-agents")
}

// Default returns the built-in configuration without touching disk.
func Default() *Config {
	cfg := &Config{}
	main := viper.New()
	setConfigDefaults(main)
	_ = main.Unmarshal(cfg)

	agents := viper.New()
	setAgentDefaults(agents)
	_ = agents.Unmarshal(&cfg.Agents)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files are
// created from templates and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	// Load main config
	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, apperrors.Wrap(err, "loading config.toml")
	}

	// Load agent config
	if err := loadAgentConfig(configDir, &cfg.Agents); err != nil {
		return nil, apperrors.Wrap(err, "loading agents.toml")
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "validating config")
	}

	return cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.default_horizon_days", 30)
	v.SetDefault("pipeline.default_service_level", 0.95)
	v.SetDefault("pipeline.feedback_confidence_threshold", 0.6)
	v.SetDefault("pipeline.feedback_widen_factor", 0.8)
	v.SetDefault("pipeline.emergency_budget_ms", 5000)

	v.SetDefault("pattern.seasonality_threshold", 0.3)
	v.SetDefault("pattern.trend_threshold", 0.3)
	v.SetDefault("pattern.stable_cv_threshold", 0.5)
	v.SetDefault("pattern.trend_direction_min", 0.05)
	v.SetDefault("pattern.seasonal_lags", []int{7, 30})
	v.SetDefault("pattern.widened_extra_lag", 14)
	v.SetDefault("pattern.full_confidence_points", 60)

	v.SetDefault("segmentation.abc_a_cutoff", 0.80)
	v.SetDefault("segmentation.abc_b_cutoff", 0.95)
	v.SetDefault("segmentation.xyz_x_cutoff", 0.5)
	v.SetDefault("segmentation.xyz_y_cutoff", 1.0)
	v.SetDefault("segmentation.fast_velocity", 10.0)
	v.SetDefault("segmentation.medium_velocity", 1.0)
	v.SetDefault("segmentation.high_margin", 0.40)
	v.SetDefault("segmentation.medium_margin", 0.20)

	v.SetDefault("forecast.moving_average_window", 7)
	v.SetDefault("forecast.trend_window", 90)
	v.SetDefault("forecast.seasonal_cycles", 2)
	v.SetDefault("forecast.median_window", 28)
	v.SetDefault("forecast.erratic_inflation", 1.5)
	v.SetDefault("forecast.min_backtest_points", 5)
	v.SetDefault("forecast.max_backtest_points", 28)
	v.SetDefault("forecast.min_residual_samples", 5)
	v.SetDefault("forecast.external_factor_min_points", 28)

	v.SetDefault("optimization.default_lead_time_days", 14.0)
	v.SetDefault("optimization.default_moq", 0.0)
	v.SetDefault("optimization.default_cost_ratio", 0.6)
	v.SetDefault("optimization.ordering_cost", 50.0)
	v.SetDefault("optimization.holding_cost_rate", 0.25)
	v.SetDefault("optimization.missing_supplier_penalty", 0.3)
	v.SetDefault("optimization.materiality_threshold", 0.25)
	v.SetDefault("optimization.days_per_year", 365.0)

	v.SetDefault("alerts.overstock_multiple", 3.0)
	v.SetDefault("alerts.spike_z_threshold", 3.0)
	v.SetDefault("alerts.spike_window_days", 7)
	v.SetDefault("alerts.reliability_threshold", 0.8)
	v.SetDefault("alerts.lead_time_increase_threshold", 0.25)
	v.SetDefault("alerts.tracking_signal_limit", 4.0)

	v.SetDefault("recommendations.critical_deadline_days", 1)
	v.SetDefault("recommendations.high_deadline_days", 3)
	v.SetDefault("recommendations.medium_deadline_days", 7)
	v.SetDefault("recommendations.low_deadline_days", 14)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.json_format", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "stock-agents")
	v.SetDefault("tracing.pretty_print", false)

	v.SetDefault("store.path", "")

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
}

func setAgentDefaults(v *viper.Viper) {
	v.SetDefault("workers", 2)
	v.SetDefault("retry_grace_ms", 1000)
	v.SetDefault("default_timeout_ms", 30000)
	v.SetDefault("max_execution_time_ms", map[string]interface{}{
		AgentIngestion:       10000,
		AgentPattern:         15000,
		AgentSegmentation:    10000,
		AgentForecasting:     30000,
		AgentOptimization:    10000,
		AgentAlerts:          10000,
		AgentRecommendations: 10000,
		AgentKPI:             5000,
	})
	v.SetDefault("weights", map[string]interface{}{
		AgentIngestion:       0.10,
		AgentPattern:         0.15,
		AgentSegmentation:    0.10,
		AgentForecasting:     0.25,
		AgentOptimization:    0.15,
		AgentAlerts:          0.10,
		AgentRecommendations: 0.10,
		AgentKPI:             0.05,
	})
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setConfigDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and fall back to defaults
		if err := createTemplate(configDir, "config.toml", configTemplate); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadAgentConfig(configDir string, agents *AgentConfig) error {
	v := viper.New()
	v.SetConfigName("agents")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setAgentDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplate(configDir, "agents.toml", agentsTemplate); err != nil {
			return err
		}
	}

	return v.Unmarshal(agents)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKAGENTS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("STOCKAGENTS_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("STOCKAGENTS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("STOCKAGENTS_TRACING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = b
		}
	}
	if v := os.Getenv("STOCKAGENTS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agents.Workers = n
		}
	}
	if v := os.Getenv("STOCKAGENTS_SERVICE_LEVEL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.DefaultServiceLevel = f
		}
	}
}

// StorePath returns the SQLite database path, defaulting into the config dir.
func (c *Config) StorePath(configDir string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "stockagents.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.DefaultHorizonDays < 1 || p.DefaultHorizonDays > 365 {
		return apperrors.NewConfigurationError("pipeline.default_horizon_days", p.DefaultHorizonDays, "must be between 1 and 365")
	}
	if p.DefaultServiceLevel <= 0.5 || p.DefaultServiceLevel >= 0.9999 {
		return apperrors.NewConfigurationError("pipeline.default_service_level", p.DefaultServiceLevel, "must be in (0.5, 0.9999)")
	}
	if p.FeedbackWidenFactor <= 0 || p.FeedbackWidenFactor > 1 {
		return apperrors.NewConfigurationError("pipeline.feedback_widen_factor", p.FeedbackWidenFactor, "must be in (0, 1]")
	}
	if p.EmergencyBudgetMs <= 0 {
		return apperrors.NewConfigurationError("pipeline.emergency_budget_ms", p.EmergencyBudgetMs, "must be positive")
	}

	for _, lag := range c.Pattern.SeasonalLags {
		if lag < 2 {
			return apperrors.NewConfigurationError("pattern.seasonal_lags", lag, "lags must be at least 2")
		}
	}

	s := c.Segmentation
	if s.ABCACutoff <= 0 || s.ABCACutoff >= s.ABCBCutoff || s.ABCBCutoff > 1 {
		return apperrors.NewConfigurationError("segmentation.abc_a_cutoff", s.ABCACutoff, "need 0 < abc_a_cutoff < abc_b_cutoff <= 1")
	}
	if s.XYZXCutoff <= 0 || s.XYZXCutoff > s.XYZYCutoff {
		return apperrors.NewConfigurationError("segmentation.xyz_x_cutoff", s.XYZXCutoff, "need 0 < xyz_x_cutoff <= xyz_y_cutoff")
	}

	f := c.Forecast
	if f.MovingAverageWindow < 1 || f.MedianWindow < 1 || f.TrendWindow < 2 {
		return apperrors.NewConfigurationError("forecast", f.MovingAverageWindow, "model windows must be positive")
	}
	if f.MinBacktestPoints < 1 || f.MaxBacktestPoints < f.MinBacktestPoints {
		return apperrors.NewConfigurationError("forecast.min_backtest_points", f.MinBacktestPoints, "need 1 <= min_backtest_points <= max_backtest_points")
	}

	o := c.Optimization
	if o.DefaultLeadTimeDays <= 0 {
		return apperrors.NewConfigurationError("optimization.default_lead_time_days", o.DefaultLeadTimeDays, "must be positive")
	}
	if o.HoldingCostRate <= 0 {
		return apperrors.NewConfigurationError("optimization.holding_cost_rate", o.HoldingCostRate, "must be positive")
	}
	if o.MissingSupplierPenalty < 0 || o.MissingSupplierPenalty > 1 {
		return apperrors.NewConfigurationError("optimization.missing_supplier_penalty", o.MissingSupplierPenalty, "must be between 0 and 1")
	}

	if c.Alerts.OverstockMultiple <= 1 {
		return apperrors.NewConfigurationError("alerts.overstock_multiple", c.Alerts.OverstockMultiple, "must exceed 1")
	}

	if c.Agents.Workers < 1 {
		return apperrors.NewConfigurationError("agents.workers", c.Agents.Workers, "must be at least 1")
	}
	for name, w := range c.Agents.Weights {
		if w < 0 {
			return apperrors.NewConfigurationError("agents.weights."+name, w, "must be non-negative")
		}
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return apperrors.NewConfigurationError("logging.level", c.Logging.Level, "unknown log level")
	}

	return nil
}
