package models

import "time"

// AnalysisType narrows which stages a run executes.
type AnalysisType string

const (
	AnalysisPatternDetection AnalysisType = "PATTERN_DETECTION"
	AnalysisSegmentation     AnalysisType = "SEGMENTATION"
	AnalysisTrend            AnalysisType = "TREND_ANALYSIS"
	AnalysisFull             AnalysisType = "FULL_ANALYSIS"
)

// WorkflowPattern is the execution topology selected for a run.
type WorkflowPattern string

const (
	WorkflowSequential   WorkflowPattern = "SEQUENTIAL"
	WorkflowParallel     WorkflowPattern = "PARALLEL"
	WorkflowFeedbackLoop WorkflowPattern = "FEEDBACK_LOOP"
	WorkflowEmergency    WorkflowPattern = "EMERGENCY"
)

// RunConfig is the per-invocation configuration supplied with a batch.
//
// Zero values mean "unset" and are filled from the pipeline defaults before
// validation: an empty AnalysisType or WorkflowPattern becomes FULL_ANALYSIS
// or SEQUENTIAL, ForecastHorizonDays == 0 becomes the configured default
// horizon and ServiceLevel == 0 the configured default service level. Any
// other value outside ForecastHorizonDays in [1,365] or ServiceLevel in
// (0.5, 0.9999) is rejected with a ConfigurationError. ReferenceDate, when
// set, is truncated to a UTC day; when nil the day after the latest sale is used.
type RunConfig struct {
	AnalysisType           AnalysisType    `json:"analysis_type"`
	ForecastHorizonDays    int             `json:"forecast_horizon_days"`
	IncludeExternalFactors bool            `json:"include_external_factors"`
	ServiceLevel           float64         `json:"service_level"`
	WorkflowPattern        WorkflowPattern `json:"workflow_pattern"`
	ReferenceDate          *time.Time      `json:"reference_date,omitempty"`
}

// DefaultRunConfig returns a full sequential analysis over 30 days at 95% service.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		AnalysisType:        AnalysisFull,
		ForecastHorizonDays: 30,
		ServiceLevel:        0.95,
		WorkflowPattern:     WorkflowSequential,
	}
}

// Phase is a coordinator state.
type Phase string

const (
	PhaseInit         Phase = "INIT"
	PhaseIngesting    Phase = "INGESTING"
	PhaseAnalyzing    Phase = "ANALYZING"
	PhaseForecasting  Phase = "FORECASTING"
	PhaseOptimizing   Phase = "OPTIMIZING"
	PhaseAlerting     Phase = "ALERTING"
	PhaseRecommending Phase = "RECOMMENDING"
	PhaseAggregating  Phase = "AGGREGATING"
	PhaseDone         Phase = "DONE"
	PhaseFailed       Phase = "FAILED"
)

// AgentStatus is the health of one agent within a run.
type AgentStatus string

const (
	AgentHealthy  AgentStatus = "HEALTHY"
	AgentDegraded AgentStatus = "DEGRADED"
	AgentError    AgentStatus = "ERROR"
	AgentSkipped  AgentStatus = "SKIPPED"
)

// AgentExecutionResult records how one agent fared within a run.
type AgentExecutionResult struct {
	AgentName       string      `json:"agent_name"`
	Phase           Phase       `json:"phase"`
	Status          AgentStatus `json:"status"`
	Success         bool        `json:"success"`
	Attempts        int         `json:"attempts"`
	StartedAt       time.Time   `json:"started_at"`
	ExecutionTimeMs int64       `json:"execution_time_ms"`
	Confidence      float64     `json:"confidence"`
	Error           string      `json:"error,omitempty"`
	Warnings        []string    `json:"warnings,omitempty"`
}

// WorkflowResult is the sole externally observable output of a run.
type WorkflowResult struct {
	RunID              string                          `json:"run_id"`
	Success            bool                            `json:"success"`
	Error              string                          `json:"error,omitempty"`
	State              Phase                           `json:"state"`
	WorkflowPattern    WorkflowPattern                 `json:"workflow_pattern"`
	AnalysisType       AnalysisType                    `json:"analysis_type"`
	ReferenceDate      time.Time                       `json:"reference_date"`
	ExecutionTimeMs    int64                           `json:"execution_time_ms"`
	ConfidenceScore    float64                         `json:"confidence_score"`
	DataQualityScore   float64                         `json:"data_quality_score"`
	FeedbackIterations int                             `json:"feedback_iterations"`
	Recommendations    []Recommendation                `json:"recommendations"`
	Alerts             []Alert                         `json:"alerts"`
	KPIs               StockManagementKPIs             `json:"kpis"`
	DemandPatterns     []DemandPattern                 `json:"demand_patterns"`
	ProductSegments    []ProductSegment                `json:"product_segments"`
	Forecasts          ForecastBuckets                 `json:"forecasts"`
	Optimization       []OptimizationResult            `json:"optimization"`
	AgentsPerformance  map[string]AgentExecutionResult `json:"agents_performance"`
	ExecutionSummary   string                          `json:"execution_summary"`
}
