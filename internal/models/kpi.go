package models

// StockManagementKPIs are portfolio-level rollups of per-product metrics.
type StockManagementKPIs struct {
	ForecastAccuracy ForecastAccuracyKPIs `json:"forecast_accuracy"`
	Service          ServiceKPIs          `json:"service_metrics"`
	Financial        FinancialKPIs        `json:"financial_metrics"`
	AIPerformance    AIPerformanceKPIs    `json:"ai_performance"`
}

// ForecastAccuracyKPIs roll up backtest metrics.
type ForecastAccuracyKPIs struct {
	ProductsForecasted   int     `json:"products_forecasted"`
	WeightedAccuracy     float64 `json:"weighted_accuracy"`
	AverageMAPE          float64 `json:"average_mape"`
	AverageWMAPE         float64 `json:"average_wmape"`
	AverageBias          float64 `json:"average_bias"`
	ProductsOutOfControl int     `json:"products_out_of_control"`
}

// ServiceKPIs roll up stock position metrics.
type ServiceKPIs struct {
	TargetServiceLevel        float64 `json:"target_service_level"`
	ProductsOptimized         int     `json:"products_optimized"`
	ProductsBelowReorderPoint int     `json:"products_below_reorder_point"`
	StockoutRiskRatio         float64 `json:"stockout_risk_ratio"`
	AverageDaysOfCover        float64 `json:"average_days_of_cover"`
}

// FinancialKPIs roll up inventory economics, in currency units rounded to cents.
type FinancialKPIs struct {
	InventoryValue       float64 `json:"inventory_value"`
	SafetyStockValue     float64 `json:"safety_stock_value"`
	AnnualHoldingCost    float64 `json:"annual_holding_cost"`
	AnnualOrderingCost   float64 `json:"annual_ordering_cost"`
	ExcessInventoryValue float64 `json:"excess_inventory_value"`
	RevenueAtRisk        float64 `json:"revenue_at_risk"`
}

// AIPerformanceKPIs are proxies for how sure the agents were.
type AIPerformanceKPIs struct {
	AveragePatternConfidence        float64        `json:"average_pattern_confidence"`
	AverageForecastConfidence       float64        `json:"average_forecast_confidence"`
	AverageRecommendationConfidence float64        `json:"average_recommendation_confidence"`
	AlertsBySeverity                map[string]int `json:"alerts_by_severity"`
	RecommendationsByPriority       map[string]int `json:"recommendations_by_priority"`
}
