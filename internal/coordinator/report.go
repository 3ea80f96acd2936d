package coordinator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"stock-agents/internal/config"
	"stock-agents/internal/models"
	"stock-agents/internal/resilience"
	"stock-agents/internal/stats"
)

// markSkipped records every agent the plan did not run. After a failed
// ingestion every agent without a record is skipped.
func (c *Coordinator) markSkipped(rs *runState, failed bool) {
	for _, name := range config.AgentNames() {
		if failed || !rs.plan.runs(name) {
			rs.health.Skip(name, agentPhase[name])
		}
	}
}

// confidence is the weighted mean of agent confidences. Failed agents count
// as zero; skipped agents are left out.
func (c *Coordinator) confidence(h *resilience.HealthTracker) float64 {
	var sum, weights float64
	for _, name := range config.AgentNames() {
		r, ok := h.Get(name)
		if !ok || r.Status == models.AgentSkipped {
			continue
		}
		w := c.cfg.Agents.WeightFor(name)
		if w <= 0 {
			continue
		}
		weights += w
		if r.Status != models.AgentError {
			sum += w * r.Confidence
		}
	}
	if weights == 0 {
		return 0
	}
	return stats.Clamp(sum/weights, 0, 1)
}

func (c *Coordinator) baseResult(rs *runState, started time.Time) models.WorkflowResult {
	res := models.WorkflowResult{
		RunID:              rs.id,
		WorkflowPattern:    rs.run.WorkflowPattern,
		AnalysisType:       rs.run.AnalysisType,
		ExecutionTimeMs:    rs.clock().Sub(started).Milliseconds(),
		FeedbackIterations: rs.feedback,
		Recommendations:    []models.Recommendation{},
		Alerts:             []models.Alert{},
		DemandPatterns:     []models.DemandPattern{},
		ProductSegments:    []models.ProductSegment{},
		Optimization:       []models.OptimizationResult{},
		Forecasts:          emptyBuckets(rs.run.ForecastHorizonDays),
		KPIs: models.StockManagementKPIs{
			AIPerformance: models.AIPerformanceKPIs{
				AlertsBySeverity:          map[string]int{},
				RecommendationsByPriority: map[string]int{},
			},
		},
		AgentsPerformance: rs.health.Snapshot(),
	}
	switch {
	case rs.state.Processed != nil:
		res.ReferenceDate = rs.state.Processed.ReferenceDate
	case rs.run.ReferenceDate != nil:
		res.ReferenceDate = *rs.run.ReferenceDate
	}
	return res
}

// failure builds the result of a run that could not proceed past ingestion.
func (c *Coordinator) failure(rs *runState, started time.Time, err error) models.WorkflowResult {
	c.markSkipped(rs, true)
	res := c.baseResult(rs, started)
	res.Success = false
	res.State = models.PhaseFailed
	res.Error = err.Error()
	res.ExecutionSummary = fmt.Sprintf("%s via %s failed: %s", rs.run.AnalysisType, rs.run.WorkflowPattern, err)
	return res
}

// report assembles the WorkflowResult of a completed run.
func (c *Coordinator) report(rs *runState, started time.Time) models.WorkflowResult {
	c.markSkipped(rs, false)
	st := rs.state
	res := c.baseResult(rs, started)
	res.Success = true
	res.State = models.PhaseDone
	res.ConfidenceScore = c.confidence(rs.health)
	res.DataQualityScore = st.Processed.Quality()

	if st.Patterns != nil && st.Patterns.Patterns != nil {
		res.DemandPatterns = st.Patterns.Patterns
	}
	if st.Segments != nil && st.Segments.Segments != nil {
		res.ProductSegments = st.Segments.Segments
	}
	if st.Optimization != nil && st.Optimization.Results != nil {
		res.Optimization = st.Optimization.Results
	}
	if st.Alerts != nil && st.Alerts.Alerts != nil {
		res.Alerts = st.Alerts.Alerts
	}
	if st.Recommendations != nil && st.Recommendations.Recommendations != nil {
		res.Recommendations = st.Recommendations.Recommendations
	}
	if st.KPIs != nil {
		res.KPIs = *st.KPIs
	}
	if st.Forecasts != nil {
		res.Forecasts = bucketForecasts(st.Forecasts, rs.run.ForecastHorizonDays)
	}
	res.ExecutionSummary = summarize(res, rs.health, st.Processed)
	return res
}

func emptyBuckets(horizon int) models.ForecastBuckets {
	return models.ForecastBuckets{
		ShortTerm:  []models.ForecastResult{},
		MediumTerm: []models.ForecastResult{},
		LongTerm:   []models.ForecastResult{},
		Summary: models.ForecastSummary{
			HorizonDays: horizon,
			Failures:    []models.ProductFailure{},
			ModelUsage:  map[string]int{},
		},
	}
}

// bucketForecasts splits per-day forecasts into horizon buckets and digests them.
func bucketForecasts(set *models.ForecastSet, horizon int) models.ForecastBuckets {
	b := emptyBuckets(horizon)
	if set.Horizon > 0 {
		b.Summary.HorizonDays = set.Horizon
	}

	var total, accuracy float64
	for _, pf := range set.Products {
		b.Summary.ModelUsage[pf.ModelUsed]++
		if len(pf.Results) > 0 {
			accuracy += pf.Results[0].AccuracyScore
		}
		for _, r := range pf.Results {
			total += r.PredictedDemand
			switch r.Bucket {
			case models.BucketShort:
				b.ShortTerm = append(b.ShortTerm, r)
			case models.BucketMedium:
				b.MediumTerm = append(b.MediumTerm, r)
			default:
				b.LongTerm = append(b.LongTerm, r)
			}
		}
	}

	b.Summary.ProductsForecasted = len(set.Products)
	b.Summary.ProductsFailed = len(set.Failures)
	if set.Failures != nil {
		b.Summary.Failures = set.Failures
	}
	b.Summary.TotalDemand = stats.Round2(total)
	if len(set.Products) > 0 {
		b.Summary.AverageAccuracy = stats.Round(accuracy/float64(len(set.Products)), 4)
	}
	return b
}

// summarize renders a one-line digest of the run.
func summarize(res models.WorkflowResult, h *resilience.HealthTracker, processed *models.ProcessedData) string {
	products := 0
	if processed != nil {
		products = len(processed.Products)
	}
	critical := 0
	for _, a := range res.Alerts {
		if a.Severity == models.SeverityCritical {
			critical++
		}
	}

	counts := h.Counts()
	var parts []string
	parts = append(parts, fmt.Sprintf("%s via %s: %d products", res.AnalysisType, res.WorkflowPattern, products))
	if res.Forecasts.Summary.ProductsForecasted > 0 || res.Forecasts.Summary.ProductsFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d forecasted (%d failed)",
			res.Forecasts.Summary.ProductsForecasted, res.Forecasts.Summary.ProductsFailed))
	}
	parts = append(parts,
		fmt.Sprintf("%d alerts (%d critical)", len(res.Alerts), critical),
		fmt.Sprintf("%d recommendations", len(res.Recommendations)),
		fmt.Sprintf("agents %d healthy, %d degraded, %d error, %d skipped",
			counts[models.AgentHealthy], counts[models.AgentDegraded], counts[models.AgentError], counts[models.AgentSkipped]),
	)
	if res.FeedbackIterations > 0 {
		parts = append(parts, fmt.Sprintf("%d feedback iteration", res.FeedbackIterations))
	}
	if failed := failedAgents(h); len(failed) > 0 {
		parts = append(parts, "failed: "+strings.Join(failed, ","))
	}
	parts = append(parts, fmt.Sprintf("confidence %.2f", res.ConfidenceScore))
	return strings.Join(parts, "; ")
}

func failedAgents(h *resilience.HealthTracker) []string {
	var out []string
	for name, r := range h.Snapshot() {
		if r.Status == models.AgentError {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
