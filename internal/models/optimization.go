package models

// ReorderPoint holds the replenishment trigger of a product.
// ReorderPointQuantity == LeadTimeDemand + SafetyStockQuantity.
type ReorderPoint struct {
	ProductID            string  `json:"product_id"`
	LeadTimeDays         float64 `json:"lead_time_days"`
	DailyDemandAverage   float64 `json:"daily_demand_average"`
	LeadTimeDemand       float64 `json:"lead_time_demand"`
	SafetyStockQuantity  float64 `json:"safety_stock_quantity"`
	ReorderPointQuantity float64 `json:"reorder_point_quantity"`
}

// SafetyStock holds the buffer stock calculation of a product.
type SafetyStock struct {
	ProductID           string  `json:"product_id"`
	ServiceLevel        float64 `json:"service_level"`
	ZScore              float64 `json:"z_score"`
	DemandStdDev        float64 `json:"demand_std_dev"`
	LeadTimeDays        float64 `json:"lead_time_days"`
	SafetyStockQuantity float64 `json:"safety_stock_quantity"`
}

// OrderQuantity holds the economic order quantity of a product.
type OrderQuantity struct {
	ProductID             string  `json:"product_id"`
	AnnualDemand          float64 `json:"annual_demand"`
	OrderingCostPerOrder  float64 `json:"ordering_cost_per_order"`
	HoldingCostPerUnit    float64 `json:"holding_cost_per_unit"`
	UnconstrainedEOQ      float64 `json:"unconstrained_eoq"`
	MinimumOrderQuantity  float64 `json:"minimum_order_quantity"`
	EconomicOrderQuantity float64 `json:"economic_order_quantity"`
	OrdersPerYear         float64 `json:"orders_per_year"`
	ClampedToMinimumOrder bool    `json:"clamped_to_minimum_order"`
}

// OptimizationResult bundles the optimization outputs of a product.
type OptimizationResult struct {
	ProductID                  string        `json:"product_id"`
	ReorderPoint               ReorderPoint  `json:"reorder_point"`
	SafetyStock                SafetyStock   `json:"safety_stock"`
	OrderQuantity              OrderQuantity `json:"order_quantity"`
	UnitCost                   float64       `json:"unit_cost"`
	UnitPrice                  float64       `json:"unit_price"`
	AvailableQuantity          float64       `json:"available_quantity"`
	DaysOfCover                float64       `json:"days_of_cover"`
	CurrentSafetyStock         float64       `json:"current_safety_stock"`
	SafetyStockDelta           float64       `json:"safety_stock_delta"`
	SafetyStockDeltaMaterial   bool          `json:"safety_stock_delta_material"`
	OrderQuantityDelta         float64       `json:"order_quantity_delta"`
	OrderQuantityDeltaMaterial bool          `json:"order_quantity_delta_material"`
	UsedDefaults               bool          `json:"used_defaults"`
	Confidence                 float64       `json:"confidence"`
}

// OptimizationSet is the optimization agent's section of the state.
type OptimizationSet struct {
	Results      []OptimizationResult
	ServiceLevel float64
}

// ResultFor looks up the optimization result of a product.
func (o *OptimizationSet) ResultFor(productID string) (OptimizationResult, bool) {
	if o == nil {
		return OptimizationResult{}, false
	}
	for _, r := range o.Results {
		if r.ProductID == productID {
			return r, true
		}
	}
	return OptimizationResult{}, false
}
