package models

// PatternType classifies a product's demand behaviour.
type PatternType string

const (
	PatternSeasonal PatternType = "SEASONAL"
	PatternTrending PatternType = "TRENDING"
	PatternStable   PatternType = "STABLE"
	PatternErratic  PatternType = "ERRATIC"
)

// TrendDirection is the sign of a fitted demand trend.
type TrendDirection string

const (
	TrendUp     TrendDirection = "UP"
	TrendDown   TrendDirection = "DOWN"
	TrendStable TrendDirection = "STABLE"
)

// DemandPattern is the pattern analysis verdict for one product.
type DemandPattern struct {
	ProductID              string         `json:"product_id"`
	PatternType            PatternType    `json:"pattern_type"`
	SeasonalityStrength    float64        `json:"seasonality_strength"`
	SeasonalPeriod         int            `json:"seasonal_period"`
	TrendStrength          float64        `json:"trend_strength"`
	TrendDirection         TrendDirection `json:"trend_direction"`
	Volatility             float64        `json:"volatility"`
	CoefficientOfVariation float64        `json:"coefficient_of_variation"`
	Confidence             float64        `json:"confidence"`
	DataPoints             int            `json:"data_points"`
}

// PatternAnalysis is the pattern agent's section of the state.
type PatternAnalysis struct {
	Patterns []DemandPattern
	Widened  bool
}

// PatternFor looks up the pattern of a product.
func (p *PatternAnalysis) PatternFor(productID string) (DemandPattern, bool) {
	if p == nil {
		return DemandPattern{}, false
	}
	for _, dp := range p.Patterns {
		if dp.ProductID == productID {
			return dp, true
		}
	}
	return DemandPattern{}, false
}

// ABCClass is the revenue-contribution class.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// XYZClass is the demand-predictability class.
type XYZClass string

const (
	ClassX XYZClass = "X"
	ClassY XYZClass = "Y"
	ClassZ XYZClass = "Z"
)

// Velocity buckets average daily unit demand.
type Velocity string

const (
	VelocityFast   Velocity = "FAST"
	VelocityMedium Velocity = "MEDIUM"
	VelocitySlow   Velocity = "SLOW"
)

// MarginCategory buckets gross margin.
type MarginCategory string

const (
	MarginHigh    MarginCategory = "HIGH"
	MarginMedium  MarginCategory = "MEDIUM"
	MarginLow     MarginCategory = "LOW"
	MarginUnknown MarginCategory = "UNKNOWN"
)

// Importance is the strategic importance of a product.
type Importance string

const (
	ImportanceCritical Importance = "CRITICAL"
	ImportanceHigh     Importance = "HIGH"
	ImportanceMedium   Importance = "MEDIUM"
	ImportanceLow      Importance = "LOW"
)

// ProductSegment is the segmentation verdict for one product.
type ProductSegment struct {
	ProductID           string         `json:"product_id"`
	ABCClassification   ABCClass       `json:"abc_classification"`
	XYZClassification   XYZClass       `json:"xyz_classification"`
	Velocity            Velocity       `json:"velocity"`
	MarginCategory      MarginCategory `json:"margin_category"`
	StrategicImportance Importance     `json:"strategic_importance"`
	TotalRevenue        float64        `json:"total_revenue"`
	RevenueShare        float64        `json:"revenue_share"`
	CumulativeShare     float64        `json:"cumulative_share"`
	DemandCV            float64        `json:"demand_cv"`
}

// Segmentation is the segmentation agent's section of the state.
type Segmentation struct {
	Segments []ProductSegment
	Widened  bool
}

// SegmentFor looks up the segment of a product.
func (s *Segmentation) SegmentFor(productID string) (ProductSegment, bool) {
	if s == nil {
		return ProductSegment{}, false
	}
	for _, seg := range s.Segments {
		if seg.ProductID == productID {
			return seg, true
		}
	}
	return ProductSegment{}, false
}
