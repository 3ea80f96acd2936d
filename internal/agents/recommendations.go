package agents

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"stock-agents/internal/config"
	"stock-agents/internal/models"
	"stock-agents/internal/stats"
)

// RecommendationAgent turns alerts and material policy deltas into prioritized actions.
type RecommendationAgent struct {
	BaseAgent
}

// NewRecommendationAgent creates a new recommendation agent.
func NewRecommendationAgent(cfg *config.Config) *RecommendationAgent {
	return &RecommendationAgent{BaseAgent: NewBaseAgent(config.AgentRecommendations, cfg)}
}

var alertRecommendation = map[models.AlertType]models.RecommendationType{
	models.AlertStockoutRisk:      models.RecReorder,
	models.AlertOverstock:         models.RecReduceStock,
	models.AlertDemandSpike:       models.RecReviewDemand,
	models.AlertSupplierIssue:     models.RecDiversifySupplier,
	models.AlertForecastDeviation: models.RecRecalibrateForecast,
}

// Execute synthesizes recommendations from the alert, optimization and segment sections.
func (a *RecommendationAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	st := req.State
	set := &models.RecommendationSet{Recommendations: []models.Recommendation{}}
	if st.Processed == nil {
		return a.CreateResult(models.RecommendationOutput{Recommendations: set}, 0, nil), nil
	}
	reference := st.Processed.ReferenceDate
	refKey := reference.Format("2006-01-02")

	var alerts []models.Alert
	if st.Alerts != nil {
		alerts = st.Alerts.Alerts
	}
	stockAlerted := make(map[string]bool)

	for _, al := range alerts {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		recType, ok := alertRecommendation[al.Type]
		if !ok {
			continue
		}
		if al.Type == models.AlertStockoutRisk || al.Type == models.AlertOverstock {
			stockAlerted[al.ProductID] = true
		}

		opt, hasOpt := st.Optimization.ResultFor(al.ProductID)
		pf, hasForecast := st.Forecasts.ForecastFor(al.ProductID)
		priority := a.priority(al.Severity, st.Segments, al.ProductID)

		deadline := a.deadline(reference, priority)
		if al.Type == models.AlertStockoutRisk && hasOpt {
			if days := daysToStockout(opt, pf, hasForecast); !math.IsInf(days, 0) {
				lead := opt.ReorderPoint.LeadTimeDays
				deadline = reference.AddDate(0, 0, int(math.Floor(math.Max(0, days-lead))))
			}
		}

		contributors := []float64{al.Confidence}
		if hasOpt {
			contributors = append(contributors, opt.Confidence)
		}
		if hasForecast {
			contributors = append(contributors, pf.Confidence)
		}

		set.Recommendations = append(set.Recommendations, models.Recommendation{
			ID:                stableID(al.ProductID, string(recType), refKey),
			Type:              recType,
			Priority:          priority,
			ProductID:         al.ProductID,
			Action:            al.RecommendedAction,
			Reasoning:         al.Message,
			Deadline:          deadline,
			ConfidenceScore:   ClampConfidence(stats.GeometricMean(contributors)),
			AgentSource:       config.AgentAlerts,
			SourceAlertID:     al.ID,
			SuggestedQuantity: suggestedQuantity(recType, opt, hasOpt),
		})
	}

	if st.Optimization != nil {
		for _, opt := range st.Optimization.Results {
			set.Recommendations = append(set.Recommendations, a.policyAdjustments(opt, st, stockAlerted[opt.ProductID], reference, refKey)...)
		}
	}

	sort.SliceStable(set.Recommendations, func(i, j int) bool {
		x, y := set.Recommendations[i], set.Recommendations[j]
		if x.Priority.Rank() != y.Priority.Rank() {
			return x.Priority.Rank() > y.Priority.Rank()
		}
		if !x.Deadline.Equal(y.Deadline) {
			return x.Deadline.Before(y.Deadline)
		}
		if x.ProductID != y.ProductID {
			return x.ProductID < y.ProductID
		}
		return x.Type < y.Type
	})

	confidence := st.Processed.Quality()
	if len(set.Recommendations) > 0 {
		var sum float64
		for _, r := range set.Recommendations {
			sum += r.ConfidenceScore
		}
		confidence = sum / float64(len(set.Recommendations))
	}
	return a.CreateResult(models.RecommendationOutput{Recommendations: set}, confidence, nil), nil
}

// policyAdjustments recommends moving safety stock or order size when the delta is material.
func (a *RecommendationAgent) policyAdjustments(opt models.OptimizationResult, st models.StockAnalysisState,
	stockAlerted bool, reference time.Time, refKey string) []models.Recommendation {
	var recs []models.Recommendation
	pf, hasForecast := st.Forecasts.ForecastFor(opt.ProductID)
	contributors := []float64{opt.Confidence}
	if hasForecast {
		contributors = append(contributors, pf.Confidence)
	}
	confidence := ClampConfidence(stats.GeometricMean(contributors))

	if opt.SafetyStockDeltaMaterial && !stockAlerted {
		priority := a.priority(models.SeverityMedium, st.Segments, opt.ProductID)
		verb := "Raise"
		if opt.SafetyStockDelta > 0 {
			verb = "Lower"
		}
		recs = append(recs, models.Recommendation{
			ID:        stableID(opt.ProductID, string(models.RecAdjustSafetyStock), refKey),
			Type:      models.RecAdjustSafetyStock,
			Priority:  priority,
			ProductID: opt.ProductID,
			Action:    fmt.Sprintf("%s safety stock to %.2f units", verb, opt.SafetyStock.SafetyStockQuantity),
			Reasoning: fmt.Sprintf("Current buffer %.2f differs from optimal %.2f at %.1f%% service level",
				opt.CurrentSafetyStock, opt.SafetyStock.SafetyStockQuantity, opt.SafetyStock.ServiceLevel*100),
			Deadline:          a.deadline(reference, priority),
			ConfidenceScore:   confidence,
			AgentSource:       config.AgentOptimization,
			SuggestedQuantity: opt.SafetyStock.SafetyStockQuantity,
		})
	}

	if opt.OrderQuantityDeltaMaterial {
		oq := opt.OrderQuantity
		priority := a.priority(models.SeverityLow, st.Segments, opt.ProductID)
		recs = append(recs, models.Recommendation{
			ID:        stableID(opt.ProductID, string(models.RecAdjustOrderQuantity), refKey),
			Type:      models.RecAdjustOrderQuantity,
			Priority:  priority,
			ProductID: opt.ProductID,
			Action:    fmt.Sprintf("Order in lots of %.0f units", oq.EconomicOrderQuantity),
			Reasoning: fmt.Sprintf("Economic order quantity %.2f versus supplier minimum %.0f",
				oq.UnconstrainedEOQ, oq.MinimumOrderQuantity),
			Deadline:          a.deadline(reference, priority),
			ConfidenceScore:   confidence,
			AgentSource:       config.AgentOptimization,
			SuggestedQuantity: oq.EconomicOrderQuantity,
		})
	}
	return recs
}

// priority raises severity one level for strategically important products.
func (a *RecommendationAgent) priority(severity models.Severity, segments *models.Segmentation, productID string) models.Severity {
	seg, ok := segments.SegmentFor(productID)
	if ok && (seg.StrategicImportance == models.ImportanceCritical || seg.StrategicImportance == models.ImportanceHigh) {
		return models.SeverityFromRank(severity.Rank() + 1)
	}
	return severity
}

func (a *RecommendationAgent) deadline(reference time.Time, priority models.Severity) time.Time {
	rc := a.cfg.Recommendations
	days := rc.LowDeadlineDays
	switch priority {
	case models.SeverityCritical:
		days = rc.CriticalDeadlineDays
	case models.SeverityHigh:
		days = rc.HighDeadlineDays
	case models.SeverityMedium:
		days = rc.MediumDeadlineDays
	}
	return reference.AddDate(0, 0, days)
}

func suggestedQuantity(recType models.RecommendationType, opt models.OptimizationResult, hasOpt bool) float64 {
	if !hasOpt {
		return 0
	}
	rop := opt.ReorderPoint.ReorderPointQuantity
	switch recType {
	case models.RecReorder:
		return math.Max(opt.OrderQuantity.EconomicOrderQuantity, math.Ceil(rop-opt.AvailableQuantity))
	case models.RecReduceStock:
		return math.Max(0, math.Floor(opt.AvailableQuantity-rop-opt.OrderQuantity.EconomicOrderQuantity))
	default:
		return 0
	}
}
