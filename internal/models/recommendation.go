package models

import "time"

// RecommendationType is the kind of action recommended.
type RecommendationType string

const (
	RecReorder             RecommendationType = "REORDER"
	RecReduceStock         RecommendationType = "REDUCE_STOCK"
	RecReviewDemand        RecommendationType = "REVIEW_DEMAND"
	RecDiversifySupplier   RecommendationType = "DIVERSIFY_SUPPLIER"
	RecRecalibrateForecast RecommendationType = "RECALIBRATE_FORECAST"
	RecAdjustSafetyStock   RecommendationType = "ADJUST_SAFETY_STOCK"
	RecAdjustOrderQuantity RecommendationType = "ADJUST_ORDER_QUANTITY"
)

// Recommendation is a prioritized action for one product.
type Recommendation struct {
	ID                string             `json:"id"`
	Type              RecommendationType `json:"type"`
	Priority          Severity           `json:"priority"`
	ProductID         string             `json:"product_id"`
	Action            string             `json:"action"`
	Reasoning         string             `json:"reasoning"`
	Deadline          time.Time          `json:"deadline"`
	ConfidenceScore   float64            `json:"confidence_score"`
	AgentSource       string             `json:"agent_source"`
	SourceAlertID     string             `json:"source_alert_id,omitempty"`
	SuggestedQuantity float64            `json:"suggested_quantity"`
}

// RecommendationSet is the recommendation agent's section of the state.
type RecommendationSet struct {
	Recommendations []Recommendation
}
