package models

import "time"

// AlertType is the risk condition an alert reports.
type AlertType string

const (
	AlertStockoutRisk      AlertType = "STOCKOUT_RISK"
	AlertOverstock         AlertType = "OVERSTOCK"
	AlertDemandSpike       AlertType = "DEMAND_SPIKE"
	AlertSupplierIssue     AlertType = "SUPPLIER_ISSUE"
	AlertForecastDeviation AlertType = "FORECAST_DEVIATION"
)

// Severity is shared by alerts and recommendation priorities.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities, LOW=1 .. CRITICAL=4.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// SeverityFromRank is the inverse of Rank, clamped to the valid range.
func SeverityFromRank(rank int) Severity {
	switch {
	case rank <= 1:
		return SeverityLow
	case rank == 2:
		return SeverityMedium
	case rank == 3:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Alert is a risk condition detected for one product. It is never mutated after
// creation; ResolvedAt is set by external collaborators.
type Alert struct {
	ID                string     `json:"id"`
	Type              AlertType  `json:"type"`
	Severity          Severity   `json:"severity"`
	ProductID         string     `json:"product_id"`
	CreatedAt         time.Time  `json:"created_at"`
	Message           string     `json:"message"`
	MetricValue       float64    `json:"metric_value"`
	Threshold         float64    `json:"threshold"`
	EstimatedImpact   float64    `json:"estimated_impact"`
	RecommendedAction string     `json:"recommended_action"`
	Confidence        float64    `json:"confidence"`
	ResolvedAt        *time.Time `json:"resolved_at"`
}

// AlertSet is the alert agent's section of the state.
type AlertSet struct {
	Alerts []Alert
}
