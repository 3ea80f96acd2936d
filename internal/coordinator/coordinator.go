// Package coordinator drives the analysis agents through a run: it owns the
// phase state machine, the execution topology and the final report.
package coordinator

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"stock-agents/internal/agents"
	"stock-agents/internal/config"
	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/logging"
	"stock-agents/internal/models"
	"stock-agents/internal/resilience"
	"stock-agents/internal/tracing"
)

// PipelineContext carries the collaborators a run uses for side effects.
// It is owned by the caller; zero values fall back to no-op logging,
// the wall clock and a no-op tracer.
type PipelineContext struct {
	Logger *zerolog.Logger
	Clock  resilience.Clock
	Tracer trace.Tracer
}

func (p PipelineContext) resolve() (zerolog.Logger, resilience.Clock, trace.Tracer) {
	logger := zerolog.Nop()
	if p.Logger != nil {
		logger = *p.Logger
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	tracer := p.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("stock-agents")
	}
	return logger, clock, tracer
}

// Coordinator runs batches through the agent pipeline.
type Coordinator struct {
	cfg       *config.Config
	agents    map[string]agents.Agent
	emergency agents.Agent
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithAgent replaces the agent registered under a.Name().
func WithAgent(a agents.Agent) Option {
	return func(c *Coordinator) {
		c.agents[a.Name()] = a
	}
}

// WithEmergencyForecaster replaces the forecaster used by EMERGENCY runs.
func WithEmergencyForecaster(a agents.Agent) Option {
	return func(c *Coordinator) {
		c.emergency = a
	}
}

// New creates a coordinator with the standard agents. A nil cfg means built-in defaults.
func New(cfg *config.Config, opts ...Option) *Coordinator {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Coordinator{
		cfg: cfg,
		agents: map[string]agents.Agent{
			config.AgentIngestion:       agents.NewIngestionAgent(cfg),
			config.AgentPattern:         agents.NewPatternAgent(cfg),
			config.AgentSegmentation:    agents.NewSegmentationAgent(cfg),
			config.AgentForecasting:     agents.NewForecastingAgent(cfg),
			config.AgentOptimization:    agents.NewOptimizationAgent(cfg),
			config.AgentAlerts:          agents.NewAlertAgent(cfg),
			config.AgentRecommendations: agents.NewRecommendationAgent(cfg),
			config.AgentKPI:             agents.NewKPIAgent(cfg),
		},
		emergency: agents.NewEmergencyForecastAgent(cfg),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the configuration the coordinator runs with.
func (c *Coordinator) Config() *config.Config {
	return c.cfg
}

// runState is the mutable bookkeeping of one run.
type runState struct {
	id       string
	run      models.RunConfig
	plan     plan
	machine  *machine
	health   *resilience.HealthTracker
	state    models.StockAnalysisState
	logger   zerolog.Logger
	clock    resilience.Clock
	tracer   trace.Tracer
	feedback int
}

// Run executes one analysis run. It never returns an error and never panics:
// every failure is reported inside the WorkflowResult.
func (c *Coordinator) Run(ctx context.Context, pctx PipelineContext, batch *models.RawBatch, run models.RunConfig) (result models.WorkflowResult) {
	logger, clock, tracer := pctx.resolve()
	started := clock()
	if batch == nil {
		batch = &models.RawBatch{}
	}
	run = c.normalize(run)
	id := RunID(batch, run)

	rs := &runState{
		id:      id,
		run:     run,
		plan:    buildPlan(run),
		machine: newMachine(),
		health:  resilience.NewHealthTracker(),
		state:   models.NewState(batch, run),
		logger:  logging.WithRun(logger, id),
		clock:   clock,
		tracer:  tracer,
	}

	defer func() {
		if r := recover(); r != nil {
			result = c.failure(rs, started, fmt.Errorf("%w: coordinator: %v", apperrors.ErrAgentPanic, r))
		}
		logging.LogRun(rs.logger, rs.id, string(rs.run.WorkflowPattern), string(result.State),
			result.Success, result.ConfidenceScore, time.Duration(result.ExecutionTimeMs)*time.Millisecond)
	}()

	rs.logger.Info().
		Str("analysis_type", string(run.AnalysisType)).
		Str("workflow_pattern", string(run.WorkflowPattern)).
		Int("horizon_days", run.ForecastHorizonDays).
		Int("sales_records", len(batch.Sales)).
		Msg("Starting analysis run")

	if err := validateRun(run); err != nil {
		rs.logger.Warn().Err(err).Msg("Run options rejected")
		return c.failure(rs, started, err)
	}

	if rs.plan.emergency {
		budget := time.Duration(c.cfg.Pipeline.EmergencyBudgetMs) * time.Millisecond
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	for _, s := range rs.plan.steps {
		if err := rs.machine.advance(s.phase); err != nil {
			return c.failure(rs, started, err)
		}
		rs.logger.Debug().Str("phase", string(s.phase)).Strs("agents", s.agents).Msg("Entering phase")

		if s.phase == models.PhaseIngesting {
			if err := c.runStep(ctx, rs, s, false); err != nil {
				_ = rs.machine.advance(models.PhaseFailed)
				return c.failure(rs, started, err)
			}
			continue
		}

		_ = c.runStep(ctx, rs, s, false)
		if s.phase == models.PhaseForecasting && rs.plan.feedback {
			c.feedbackLoop(ctx, rs)
		}
	}

	if err := rs.machine.advance(models.PhaseDone); err != nil {
		return c.failure(rs, started, err)
	}
	rs.logger.Debug().Interface("phases", rs.machine.history).Msg("Run completed")
	return c.report(rs, started)
}

// runStep executes the agents of one phase and applies their outputs in plan
// order. It returns the error of the first failed agent.
func (c *Coordinator) runStep(ctx context.Context, rs *runState, s step, widened bool) error {
	if s.parallel {
		return c.runParallel(ctx, rs, s, widened)
	}
	var first error
	for _, name := range s.agents {
		out, err := c.invoke(ctx, rs, name, s.phase, rs.state, widened)
		if err != nil && first == nil {
			first = err
		}
		if err == nil || !widened {
			rs.state = rs.state.Apply(out)
		}
	}
	return first
}

// runParallel runs the phase's agents concurrently on the same snapshot.
func (c *Coordinator) runParallel(ctx context.Context, rs *runState, s step, widened bool) error {
	snapshot := rs.state
	outputs := make([]models.StageOutput, len(s.agents))
	errs := make([]error, len(s.agents))

	var g errgroup.Group
	g.SetLimit(c.workers())
	for i, name := range s.agents {
		i, name := i, name
		g.Go(func() error {
			outputs[i], errs[i] = c.invoke(ctx, rs, name, s.phase, snapshot, widened)
			return nil
		})
	}
	_ = g.Wait()

	var first error
	for i := range s.agents {
		if errs[i] != nil && first == nil {
			first = errs[i]
		}
		if errs[i] == nil || !widened {
			rs.state = rs.state.Apply(outputs[i])
		}
	}
	return first
}

func (c *Coordinator) workers() int {
	if c.cfg.Agents.Workers < 1 {
		return 1
	}
	return c.cfg.Agents.Workers
}

// feedbackLoop re-runs analysis and forecasting once with widened parameters
// when forecast confidence is below the configured threshold.
func (c *Coordinator) feedbackLoop(ctx context.Context, rs *runState) {
	if rs.feedback > 0 {
		return
	}
	confidence := rs.state.Forecasts.AverageConfidence()
	threshold := c.cfg.Pipeline.FeedbackConfidenceThreshold
	if confidence >= threshold {
		return
	}
	rs.logger.Info().
		Float64("forecast_confidence", confidence).
		Float64("threshold", threshold).
		Msg("Forecast confidence below threshold, re-running analysis with widened parameters")

	if err := rs.machine.advance(models.PhaseAnalyzing); err != nil {
		rs.logger.Error().Err(err).Msg("Feedback iteration refused")
		return
	}
	rs.feedback++
	if agentsToRun := rs.plan.analysisAgents(); len(agentsToRun) > 0 {
		_ = c.runStep(ctx, rs, step{
			phase:    models.PhaseAnalyzing,
			agents:   agentsToRun,
			parallel: rs.plan.analysisParallel(),
		}, true)
	}

	if err := rs.machine.advance(models.PhaseForecasting); err != nil {
		rs.logger.Error().Err(err).Msg("Feedback iteration refused")
		return
	}
	_ = c.runStep(ctx, rs, step{
		phase:  models.PhaseForecasting,
		agents: []string{config.AgentForecasting},
	}, true)
}

// agentFor resolves the implementation behind an agent name for this run.
func (c *Coordinator) agentFor(rs *runState, name string) agents.Agent {
	if rs.plan.emergency && name == config.AgentForecasting && c.emergency != nil {
		return c.emergency
	}
	return c.agents[name]
}

// invoke runs one agent under timeout, retry and panic recovery, records its
// health and returns its output. A failed agent yields an empty section.
func (c *Coordinator) invoke(ctx context.Context, rs *runState, name string, phase models.Phase,
	state models.StockAnalysisState, widened bool) (models.StageOutput, error) {
	log := logging.WithPhase(logging.WithAgent(rs.logger, name), string(phase))

	agent := c.agentFor(rs, name)
	if agent == nil {
		err := apperrors.NewAgentExecutionError(name, "resolve", errors.New("agent not registered"))
		rs.health.Record(models.AgentExecutionResult{
			AgentName: name, Phase: phase, Status: models.AgentError, StartedAt: rs.clock(), Error: err.Error(),
		})
		return emptyOutput(name), err
	}

	guard := resilience.GuardConfig{
		Timeout:     c.cfg.Agents.TimeoutFor(name),
		Grace:       c.cfg.Agents.RetryGrace(),
		MaxAttempts: 2,
	}
	req := agents.Request{State: state, Widened: widened}

	outcome := resilience.Execute(ctx, name, guard, rs.clock,
		func(actx context.Context, attempt int) (res *agents.Result, err error) {
			actx, span := tracing.StartAgentSpan(actx, rs.tracer, rs.id, name, attempt)
			defer func() {
				if r := recover(); r != nil {
					tracing.EndSpan(span, fmt.Errorf("%w: %v", apperrors.ErrAgentPanic, r))
					panic(r)
				}
				tracing.EndSpan(span, err)
			}()
			actx = logging.WithLogger(actx, log)
			res, err = agent.Execute(actx, req)
			if err == nil && res == nil {
				err = apperrors.NewAgentExecutionError(name, "execute", errors.New("agent returned no result"))
			}
			return res, err
		},
		func(a resilience.Attempt) {
			if a.Err != nil {
				logging.LogAgentRun(log, name, a.Number, a.Duration, 0, a.Err)
			}
		})

	rec := models.AgentExecutionResult{
		AgentName: name,
		Phase:     phase,
		Attempts:  len(outcome.Attempts),
	}
	var elapsed time.Duration
	for _, a := range outcome.Attempts {
		elapsed += a.Duration
	}
	if len(outcome.Attempts) > 0 {
		rec.StartedAt = outcome.Attempts[0].Started
	}
	rec.ExecutionTimeMs = elapsed.Milliseconds()

	if outcome.Err != nil {
		rec.Status = models.AgentError
		rec.Error = outcome.Err.Error()
		rs.health.Record(rec)
		log.Error().Err(outcome.Err).Int("attempts", rec.Attempts).Msg("Agent failed")
		return emptyOutput(name), outcome.Err
	}

	res := outcome.Value
	rec.Success = true
	rec.Confidence = agents.ClampConfidence(res.Confidence)
	rec.Warnings = res.Warnings
	rec.Status = resilience.StatusFor(true, rec.Attempts, res.Warnings)
	rs.health.Record(rec)
	logging.LogAgentRun(log, name, rec.Attempts, elapsed, rec.Confidence, nil)
	return res.Output, nil
}

// emptyOutput is the section substituted for a failed agent.
func emptyOutput(name string) models.StageOutput {
	switch name {
	case config.AgentPattern:
		return models.PatternOutput{Analysis: &models.PatternAnalysis{}}
	case config.AgentSegmentation:
		return models.SegmentationOutput{Segmentation: &models.Segmentation{}}
	case config.AgentForecasting:
		return models.ForecastOutput{Forecasts: &models.ForecastSet{}}
	case config.AgentOptimization:
		return models.OptimizationOutput{Optimization: &models.OptimizationSet{}}
	case config.AgentAlerts:
		return models.AlertOutput{Alerts: &models.AlertSet{}}
	case config.AgentRecommendations:
		return models.RecommendationOutput{Recommendations: &models.RecommendationSet{}}
	case config.AgentKPI:
		return models.KPIOutput{KPIs: &models.StockManagementKPIs{}}
	default:
		return nil
	}
}

// normalize fills unset run options from the pipeline defaults.
func (c *Coordinator) normalize(run models.RunConfig) models.RunConfig {
	if run.AnalysisType == "" {
		run.AnalysisType = models.AnalysisFull
	}
	if run.WorkflowPattern == "" {
		run.WorkflowPattern = models.WorkflowSequential
	}
	if run.ForecastHorizonDays == 0 {
		run.ForecastHorizonDays = c.cfg.Pipeline.DefaultHorizonDays
	}
	if run.ServiceLevel == 0 {
		run.ServiceLevel = c.cfg.Pipeline.DefaultServiceLevel
	}
	if run.ReferenceDate != nil {
		ref := run.ReferenceDate.UTC().Truncate(24 * time.Hour)
		run.ReferenceDate = &ref
	}
	return run
}

// validateRun rejects run options no topology can honour. It runs before
// any phase, so a rejected run leaves every agent SKIPPED.
func validateRun(run models.RunConfig) error {
	switch run.AnalysisType {
	case models.AnalysisPatternDetection, models.AnalysisSegmentation, models.AnalysisTrend, models.AnalysisFull:
	default:
		return apperrors.NewConfigurationError("analysis_type", run.AnalysisType, "unknown analysis type")
	}
	switch run.WorkflowPattern {
	case models.WorkflowSequential, models.WorkflowParallel, models.WorkflowFeedbackLoop, models.WorkflowEmergency:
	default:
		return apperrors.NewConfigurationError("workflow_pattern", run.WorkflowPattern, "unknown workflow pattern")
	}
	if run.WorkflowPattern == models.WorkflowEmergency &&
		(run.AnalysisType == models.AnalysisPatternDetection || run.AnalysisType == models.AnalysisSegmentation) {
		return apperrors.NewConfigurationError("analysis_type", run.AnalysisType,
			"EMERGENCY skips pattern analysis and segmentation")
	}
	if run.ForecastHorizonDays < 1 || run.ForecastHorizonDays > 365 {
		return apperrors.NewConfigurationError("forecast_horizon_days", run.ForecastHorizonDays, "must be between 1 and 365")
	}
	if run.ServiceLevel <= 0.5 || run.ServiceLevel >= 0.9999 {
		return apperrors.NewConfigurationError("service_level", run.ServiceLevel, "must be in (0.5, 0.9999)")
	}
	return nil
}

// RunID derives a deterministic run id from the batch and its run options.
func RunID(batch *models.RawBatch, run models.RunConfig) string {
	h := sha1.New()
	if data, err := json.Marshal(batch); err == nil {
		h.Write(data)
	}
	if data, err := json.Marshal(run); err == nil {
		h.Write(data)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, h.Sum(nil)).String()
}
