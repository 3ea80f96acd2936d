package agents

import (
	"context"
	"fmt"
	"math"
	"sort"

	"stock-agents/internal/config"
	"stock-agents/internal/logging"
	"stock-agents/internal/models"
)

// AlertAgent raises at most one alert per type per product.
type AlertAgent struct {
	BaseAgent
}

// NewAlertAgent creates a new alert agent.
func NewAlertAgent(cfg *config.Config) *AlertAgent {
	return &AlertAgent{BaseAgent: NewBaseAgent(config.AgentAlerts, cfg)}
}

// demandRate prefers the forecast average and falls back to history.
func demandRate(opt models.OptimizationResult, pf models.ProductForecast, hasForecast bool) float64 {
	if hasForecast && pf.AverageDaily > 0 {
		return pf.AverageDaily
	}
	return opt.ReorderPoint.DailyDemandAverage
}

// daysToStockout is how long current stock lasts, +Inf without demand.
func daysToStockout(opt models.OptimizationResult, pf models.ProductForecast, hasForecast bool) float64 {
	rate := demandRate(opt, pf, hasForecast)
	if rate <= 0 {
		return math.Inf(1)
	}
	return opt.AvailableQuantity / rate
}

func stockoutSeverity(shortfall float64) models.Severity {
	switch {
	case shortfall < 0.25:
		return models.SeverityLow
	case shortfall < 0.5:
		return models.SeverityMedium
	case shortfall < 0.75:
		return models.SeverityHigh
	default:
		return models.SeverityCritical
	}
}

func spikeSeverity(absZ float64) models.Severity {
	switch {
	case absZ > 4.0:
		return models.SeverityCritical
	case absZ > 3.5:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

// Execute evaluates every optimized product against the alert rules.
func (a *AlertAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	log := logging.WithAgent(logging.FromContext(ctx), a.Name())
	st := req.State
	set := &models.AlertSet{Alerts: []models.Alert{}}
	if st.Optimization == nil || st.Processed == nil {
		return a.CreateResult(models.AlertOutput{Alerts: set}, 0, []string{"no optimization results to evaluate"}), nil
	}

	horizon := st.Run.ForecastHorizonDays
	if st.Forecasts != nil && st.Forecasts.Horizon > 0 {
		horizon = st.Forecasts.Horizon
	}
	if horizon <= 0 {
		horizon = a.cfg.Pipeline.DefaultHorizonDays
	}
	reference := st.Processed.ReferenceDate

	for _, opt := range st.Optimization.Results {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		pf, hasForecast := st.Forecasts.ForecastFor(opt.ProductID)
		suppliers := st.Processed.SuppliersFor(opt.ProductID)

		for _, alert := range a.evaluate(opt, pf, hasForecast, suppliers, horizon) {
			alert.ID = stableID(alert.ProductID, string(alert.Type), reference.Format("2006-01-02"))
			alert.CreatedAt = reference
			alert.Confidence = ClampConfidence(alert.Confidence)
			set.Alerts = append(set.Alerts, alert)
			logging.LogAlert(log, alert.ID, alert.ProductID, string(alert.Type), string(alert.Severity), alert.MetricValue)
		}
	}

	sort.SliceStable(set.Alerts, func(i, j int) bool {
		x, y := set.Alerts[i], set.Alerts[j]
		if x.Severity.Rank() != y.Severity.Rank() {
			return x.Severity.Rank() > y.Severity.Rank()
		}
		if x.ProductID != y.ProductID {
			return x.ProductID < y.ProductID
		}
		return x.Type < y.Type
	})

	confidence := st.Processed.Quality()
	if len(set.Alerts) > 0 {
		var sum float64
		for _, al := range set.Alerts {
			sum += al.Confidence
		}
		confidence = sum / float64(len(set.Alerts))
	}
	return a.CreateResult(models.AlertOutput{Alerts: set}, confidence, nil), nil
}

func (a *AlertAgent) evaluate(opt models.OptimizationResult, pf models.ProductForecast, hasForecast bool,
	suppliers []models.SupplierRecord, horizon int) []models.Alert {
	ac := a.cfg.Alerts
	var alerts []models.Alert

	rop := opt.ReorderPoint.ReorderPointQuantity
	available := opt.AvailableQuantity
	forecastConf := opt.Confidence
	if hasForecast {
		forecastConf = math.Min(opt.Confidence, pf.Confidence)
	}

	if rop > 0 && available < rop {
		days := daysToStockout(opt, pf, hasForecast)
		if days <= float64(horizon) {
			shortfall := (rop - available) / rop
			alerts = append(alerts, models.Alert{
				Type:              models.AlertStockoutRisk,
				Severity:          stockoutSeverity(shortfall),
				ProductID:         opt.ProductID,
				Message:           fmt.Sprintf("Stock of %.0f units is below reorder point %.2f; about %.1f days of cover left", available, rop, days),
				MetricValue:       available,
				Threshold:         rop,
				EstimatedImpact:   roundMoney((rop - available) * opt.UnitPrice),
				RecommendedAction: fmt.Sprintf("Place an order of at least %.0f units", math.Max(opt.OrderQuantity.EconomicOrderQuantity, math.Ceil(rop-available))),
				Confidence:        forecastConf,
			})
		}
	}

	if limit := ac.OverstockMultiple * rop; rop > 0 && available > limit {
		ratio := available / limit
		severity := models.SeverityLow
		switch {
		case ratio >= 2:
			severity = models.SeverityHigh
		case ratio >= 1.5:
			severity = models.SeverityMedium
		}
		alerts = append(alerts, models.Alert{
			Type:              models.AlertOverstock,
			Severity:          severity,
			ProductID:         opt.ProductID,
			Message:           fmt.Sprintf("Stock of %.0f units exceeds %.1fx the reorder point %.2f", available, ac.OverstockMultiple, rop),
			MetricValue:       available,
			Threshold:         limit,
			EstimatedImpact:   roundMoney((available - limit) * opt.UnitCost),
			RecommendedAction: "Pause replenishment and run down excess stock",
			Confidence:        opt.Confidence,
		})
	}

	if hasForecast && pf.RecentDays > 0 && pf.ResidualStdDev > 0 {
		diff := pf.RecentActual - pf.RecentForecast
		z := diff / (pf.ResidualStdDev * math.Sqrt(float64(pf.RecentDays)))
		if math.Abs(z) > ac.SpikeZThreshold {
			direction := "above"
			if z < 0 {
				direction = "below"
			}
			alerts = append(alerts, models.Alert{
				Type:              models.AlertDemandSpike,
				Severity:          spikeSeverity(math.Abs(z)),
				ProductID:         opt.ProductID,
				Message:           fmt.Sprintf("Demand over the last %d days is %.1f sigma %s forecast", pf.RecentDays, math.Abs(z), direction),
				MetricValue:       z,
				Threshold:         ac.SpikeZThreshold,
				EstimatedImpact:   roundMoney(math.Abs(diff) * opt.UnitPrice),
				RecommendedAction: "Review recent demand drivers before the next order",
				Confidence:        pf.Confidence,
			})
		}
	}

	if len(suppliers) > 0 {
		latest := suppliers[len(suppliers)-1]
		avgLead := opt.ReorderPoint.LeadTimeDays
		unreliable := latest.ReliabilityScore < ac.ReliabilityThreshold
		slower := latest.LeadTimeDays > avgLead*(1+ac.LeadTimeIncreaseThreshold)
		if unreliable || slower {
			severity := models.SeverityMedium
			if (unreliable && slower) || latest.ReliabilityScore < ac.ReliabilityThreshold/2 {
				severity = models.SeverityHigh
			}
			extraDays := math.Max(0, latest.LeadTimeDays-avgLead)
			impact := opt.ReorderPoint.LeadTimeDemand*opt.UnitPrice*(1-latest.ReliabilityScore) +
				extraDays*opt.ReorderPoint.DailyDemandAverage*opt.UnitPrice
			msg := fmt.Sprintf("Supplier %s reliability %.2f", latest.SupplierID, latest.ReliabilityScore)
			if slower {
				msg = fmt.Sprintf("Supplier %s lead time %.1f days exceeds average %.1f", latest.SupplierID, latest.LeadTimeDays, avgLead)
			}
			alerts = append(alerts, models.Alert{
				Type:              models.AlertSupplierIssue,
				Severity:          severity,
				ProductID:         opt.ProductID,
				Message:           msg,
				MetricValue:       latest.ReliabilityScore,
				Threshold:         ac.ReliabilityThreshold,
				EstimatedImpact:   roundMoney(impact),
				RecommendedAction: "Qualify an alternative supplier",
				Confidence:        opt.Confidence,
			})
		}
	}

	if hasForecast && math.Abs(pf.Metrics.TrackingSignal) > ac.TrackingSignalLimit {
		ts := pf.Metrics.TrackingSignal
		severity := models.SeverityMedium
		if math.Abs(ts) >= 1.5*ac.TrackingSignalLimit {
			severity = models.SeverityHigh
		}
		alerts = append(alerts, models.Alert{
			Type:              models.AlertForecastDeviation,
			Severity:          severity,
			ProductID:         opt.ProductID,
			Message:           fmt.Sprintf("Tracking signal %.2f is outside +/-%.1f; %s forecast is biased", ts, ac.TrackingSignalLimit, pf.ModelUsed),
			MetricValue:       ts,
			Threshold:         ac.TrackingSignalLimit,
			EstimatedImpact:   roundMoney(math.Abs(pf.Metrics.Bias) * float64(horizon) * opt.UnitPrice),
			RecommendedAction: "Recalibrate the forecast model",
			Confidence:        pf.Confidence,
		})
	}

	return alerts
}
