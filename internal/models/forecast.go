package models

import "time"

// Interval is a closed [Low, High] demand band.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether other lies inside i.
func (i Interval) Contains(other Interval) bool {
	return i.Low <= other.Low && other.High <= i.High
}

// HorizonBucket groups forecast days by distance from the reference date.
type HorizonBucket string

const (
	BucketShort  HorizonBucket = "SHORT_TERM"
	BucketMedium HorizonBucket = "MEDIUM_TERM"
	BucketLong   HorizonBucket = "LONG_TERM"
)

// BucketFor returns the bucket of horizon day k (1-based).
func BucketFor(k int) HorizonBucket {
	switch {
	case k <= 28:
		return BucketShort
	case k <= 90:
		return BucketMedium
	default:
		return BucketLong
	}
}

// ForecastResult is one forecast period for one product.
type ForecastResult struct {
	ProductID       string        `json:"product_id"`
	ForecastDate    time.Time     `json:"forecast_date"`
	HorizonDay      int           `json:"horizon_day"`
	Bucket          HorizonBucket `json:"bucket"`
	PredictedDemand float64       `json:"predicted_demand"`
	Confidence80    Interval      `json:"confidence_80"`
	Confidence95    Interval      `json:"confidence_95"`
	ModelUsed       string        `json:"model_used"`
	AccuracyScore   float64       `json:"accuracy_score"`
}

// ForecastMetrics are backtest accuracy measures against held-out history.
type ForecastMetrics struct {
	MAPE           float64 `json:"mape"`
	WMAPE          float64 `json:"wmape"`
	MAE            float64 `json:"mae"`
	RMSE           float64 `json:"rmse"`
	Bias           float64 `json:"bias"`
	TrackingSignal float64 `json:"tracking_signal"`
	SampleSize     int     `json:"sample_size"`
}

// ProductForecast bundles everything the forecasting stage produced for a product.
type ProductForecast struct {
	ProductID      string           `json:"product_id"`
	ModelUsed      string           `json:"model_used"`
	Results        []ForecastResult `json:"results"`
	Metrics        ForecastMetrics  `json:"metrics"`
	Confidence     float64          `json:"confidence"`
	AverageDaily   float64          `json:"average_daily"`
	RecentActual   float64          `json:"recent_actual"`
	RecentForecast float64          `json:"recent_forecast"`
	RecentDays     int              `json:"recent_days"`
	ResidualStdDev float64          `json:"residual_std_dev"`
}

// ProductFailure records a product the stage could not handle.
type ProductFailure struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

// ForecastSet is the forecasting agent's section of the state.
type ForecastSet struct {
	Products []ProductForecast
	Failures []ProductFailure
	Horizon  int
}

// ForecastFor looks up the forecast of a product.
func (f *ForecastSet) ForecastFor(productID string) (ProductForecast, bool) {
	if f == nil {
		return ProductForecast{}, false
	}
	for _, pf := range f.Products {
		if pf.ProductID == productID {
			return pf, true
		}
	}
	return ProductForecast{}, false
}

// AverageConfidence is the mean per-product forecast confidence.
func (f *ForecastSet) AverageConfidence() float64 {
	if f == nil || len(f.Products) == 0 {
		return 0
	}
	var total float64
	for _, pf := range f.Products {
		total += pf.Confidence
	}
	return total / float64(len(f.Products))
}

// ForecastSummary digests the forecast section for the report.
type ForecastSummary struct {
	HorizonDays        int              `json:"horizon_days"`
	ProductsForecasted int              `json:"products_forecasted"`
	ProductsFailed     int              `json:"products_failed"`
	Failures           []ProductFailure `json:"failures"`
	TotalDemand        float64          `json:"total_demand"`
	AverageAccuracy    float64          `json:"average_accuracy"`
	ModelUsage         map[string]int   `json:"model_usage"`
}

// ForecastBuckets is the report view of forecasts split by horizon.
type ForecastBuckets struct {
	ShortTerm  []ForecastResult `json:"short_term"`
	MediumTerm []ForecastResult `json:"medium_term"`
	LongTerm   []ForecastResult `json:"long_term"`
	Summary    ForecastSummary  `json:"summary"`
}
