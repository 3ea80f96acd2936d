package agents

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"stock-agents/internal/config"
	"stock-agents/internal/models"
	"stock-agents/internal/stats"
)

// KPIAgent rolls per-product results up into portfolio KPIs. It never fails.
type KPIAgent struct {
	BaseAgent
}

// NewKPIAgent creates a new KPI aggregator.
func NewKPIAgent(cfg *config.Config) *KPIAgent {
	return &KPIAgent{BaseAgent: NewBaseAgent(config.AgentKPI, cfg)}
}

func roundMoney(v float64) float64 {
	return stats.Round2(v)
}

// Execute aggregates whatever sections are present; missing sections yield zero KPIs.
func (a *KPIAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	st := req.State
	kpis := &models.StockManagementKPIs{
		ForecastAccuracy: a.forecastAccuracy(st),
		Service:          a.service(st),
		Financial:        a.financial(st),
		AIPerformance:    a.aiPerformance(st),
	}
	return a.CreateResult(models.KPIOutput{KPIs: kpis}, st.Processed.Quality(), nil), nil
}

func (a *KPIAgent) forecastAccuracy(st models.StockAnalysisState) models.ForecastAccuracyKPIs {
	var k models.ForecastAccuracyKPIs
	if st.Forecasts == nil || len(st.Forecasts.Products) == 0 {
		return k
	}

	var weighted, weights, plain, mape, wmape, bias float64
	for _, pf := range st.Forecasts.Products {
		acc := 1 - pf.Metrics.WMAPE
		if len(pf.Results) > 0 {
			acc = pf.Results[0].AccuracyScore
		}
		series, _ := st.Processed.SeriesFor(pf.ProductID)
		weighted += acc * series.TotalRevenue
		weights += series.TotalRevenue
		plain += acc
		mape += pf.Metrics.MAPE
		wmape += pf.Metrics.WMAPE
		bias += pf.Metrics.Bias
		if math.Abs(pf.Metrics.TrackingSignal) > a.cfg.Alerts.TrackingSignalLimit {
			k.ProductsOutOfControl++
		}
	}

	n := float64(len(st.Forecasts.Products))
	k.ProductsForecasted = len(st.Forecasts.Products)
	k.WeightedAccuracy = plain / n
	if weights > 0 {
		k.WeightedAccuracy = weighted / weights
	}
	k.AverageMAPE = mape / n
	k.AverageWMAPE = wmape / n
	k.AverageBias = bias / n
	return k
}

func (a *KPIAgent) service(st models.StockAnalysisState) models.ServiceKPIs {
	k := models.ServiceKPIs{TargetServiceLevel: st.Run.ServiceLevel}
	if st.Optimization == nil {
		return k
	}
	k.TargetServiceLevel = st.Optimization.ServiceLevel
	k.ProductsOptimized = len(st.Optimization.Results)

	var cover float64
	var covered int
	for _, r := range st.Optimization.Results {
		if r.AvailableQuantity < r.ReorderPoint.ReorderPointQuantity {
			k.ProductsBelowReorderPoint++
		}
		if r.ReorderPoint.DailyDemandAverage > 0 {
			cover += r.DaysOfCover
			covered++
		}
	}
	if covered > 0 {
		k.AverageDaysOfCover = cover / float64(covered)
	}

	if k.ProductsOptimized > 0 && st.Alerts != nil {
		stockouts := 0
		for _, al := range st.Alerts.Alerts {
			if al.Type == models.AlertStockoutRisk {
				stockouts++
			}
		}
		k.StockoutRiskRatio = float64(stockouts) / float64(k.ProductsOptimized)
	}
	return k
}

func (a *KPIAgent) financial(st models.StockAnalysisState) models.FinancialKPIs {
	var k models.FinancialKPIs
	if st.Optimization == nil {
		return k
	}
	oc := a.cfg.Optimization

	inventory, safety, holding, ordering, excess, atRisk := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range st.Optimization.Results {
		cost := decimal.NewFromFloat(r.UnitCost)
		ss := r.SafetyStock.SafetyStockQuantity
		eoq := r.OrderQuantity.EconomicOrderQuantity

		inventory = inventory.Add(decimal.NewFromFloat(r.AvailableQuantity).Mul(cost))
		safety = safety.Add(decimal.NewFromFloat(ss).Mul(cost))
		holding = holding.Add(decimal.NewFromFloat(eoq/2 + ss).Mul(cost).Mul(decimal.NewFromFloat(oc.HoldingCostRate)))
		ordering = ordering.Add(decimal.NewFromFloat(r.OrderQuantity.OrdersPerYear).Mul(decimal.NewFromFloat(oc.OrderingCost)))

		if over := r.AvailableQuantity - r.ReorderPoint.ReorderPointQuantity - eoq; over > 0 {
			excess = excess.Add(decimal.NewFromFloat(over).Mul(cost))
		}
	}
	if st.Alerts != nil {
		for _, al := range st.Alerts.Alerts {
			if al.Type == models.AlertStockoutRisk {
				atRisk = atRisk.Add(decimal.NewFromFloat(al.EstimatedImpact))
			}
		}
	}

	k.InventoryValue = inventory.Round(2).InexactFloat64()
	k.SafetyStockValue = safety.Round(2).InexactFloat64()
	k.AnnualHoldingCost = holding.Round(2).InexactFloat64()
	k.AnnualOrderingCost = ordering.Round(2).InexactFloat64()
	k.ExcessInventoryValue = excess.Round(2).InexactFloat64()
	k.RevenueAtRisk = atRisk.Round(2).InexactFloat64()
	return k
}

func (a *KPIAgent) aiPerformance(st models.StockAnalysisState) models.AIPerformanceKPIs {
	k := models.AIPerformanceKPIs{
		AlertsBySeverity:          map[string]int{},
		RecommendationsByPriority: map[string]int{},
	}

	if st.Patterns != nil && len(st.Patterns.Patterns) > 0 {
		var sum float64
		for _, p := range st.Patterns.Patterns {
			sum += p.Confidence
		}
		k.AveragePatternConfidence = sum / float64(len(st.Patterns.Patterns))
	}
	k.AverageForecastConfidence = st.Forecasts.AverageConfidence()

	if st.Alerts != nil {
		for _, al := range st.Alerts.Alerts {
			k.AlertsBySeverity[string(al.Severity)]++
		}
	}
	if st.Recommendations != nil && len(st.Recommendations.Recommendations) > 0 {
		var sum float64
		for _, r := range st.Recommendations.Recommendations {
			k.RecommendationsByPriority[string(r.Priority)]++
			sum += r.ConfidenceScore
		}
		k.AverageRecommendationConfidence = sum / float64(len(st.Recommendations.Recommendations))
	}
	return k
}
