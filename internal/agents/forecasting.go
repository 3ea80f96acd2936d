package agents

import (
	"context"
	"fmt"
	"math"
	"time"

	"stock-agents/internal/config"
	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/logging"
	"stock-agents/internal/models"
	"stock-agents/internal/stats"
)

// Forecast model names as reported in model_used.
const (
	ModelMovingAverage = "moving_average"
	ModelLinearTrend   = "linear_trend"
	ModelSeasonalNaive = "seasonal_naive"
	ModelRobustMedian  = "robust_median"
	ModelLastValue     = "last_value"
)

// predictor returns the forecast `step` days after the end of the fitted data.
type predictor func(step int) float64

// forecastModel is one point-forecast method.
type forecastModel struct {
	name      string
	minPoints int
	inflation float64
	// partialBacktest lets the model run on whatever tail is left after
	// minPoints, down to no backtest at all.
	partialBacktest bool
	fit             func(train []float64) predictor
}

// ForecastingAgent produces per-product daily forecasts with empirical intervals.
type ForecastingAgent struct {
	BaseAgent
	// fixed forces one model for every product; empty selects by pattern.
	fixed string
}

// NewForecastingAgent creates a new forecasting agent.
func NewForecastingAgent(cfg *config.Config) *ForecastingAgent {
	return &ForecastingAgent{BaseAgent: NewBaseAgent(config.AgentForecasting, cfg)}
}

// EmergencyForecastAgent forecasts every product with the last observed value.
// It needs no pattern analysis, so it serves the EMERGENCY topology.
type EmergencyForecastAgent struct {
	*ForecastingAgent
}

// NewEmergencyForecastAgent creates the last_value forecasting agent.
func NewEmergencyForecastAgent(cfg *config.Config) *EmergencyForecastAgent {
	fa := NewForecastingAgent(cfg)
	fa.fixed = ModelLastValue
	return &EmergencyForecastAgent{ForecastingAgent: fa}
}

func (a *ForecastingAgent) model(pattern models.DemandPattern) forecastModel {
	fc := a.cfg.Forecast
	name := a.fixed
	if name == "" {
		switch pattern.PatternType {
		case models.PatternTrending:
			name = ModelLinearTrend
		case models.PatternSeasonal:
			name = ModelSeasonalNaive
		case models.PatternErratic:
			name = ModelRobustMedian
		default:
			name = ModelMovingAverage
		}
	}

	switch name {
	case ModelLinearTrend:
		window := fc.TrendWindow
		return forecastModel{name: name, minPoints: 10, inflation: 1, fit: func(train []float64) predictor {
			tail := stats.Tail(train, window)
			reg, err := stats.LinearTrend(tail)
			if err != nil {
				m := stats.Mean(tail)
				return func(int) float64 { return m }
			}
			last := float64(len(tail) - 1)
			return func(step int) float64 { return reg.At(last + float64(step)) }
		}}
	case ModelSeasonalNaive:
		period := pattern.SeasonalPeriod
		if period < 1 {
			period = 7
		}
		cycles := fc.SeasonalCycles
		if cycles < 1 {
			cycles = 1
		}
		return forecastModel{name: name, minPoints: 2 * period, inflation: 1, fit: func(train []float64) predictor {
			return seasonalNaive(train, period, cycles)
		}}
	case ModelRobustMedian:
		window := fc.MedianWindow
		return forecastModel{name: name, minPoints: 3, inflation: fc.ErraticInflation, fit: func(train []float64) predictor {
			m := stats.Median(stats.Tail(train, window))
			return func(int) float64 { return m }
		}}
	case ModelLastValue:
		return forecastModel{name: name, minPoints: 1, inflation: 1, partialBacktest: true, fit: func(train []float64) predictor {
			v := train[len(train)-1]
			return func(int) float64 { return v }
		}}
	default:
		window := fc.MovingAverageWindow
		return forecastModel{name: ModelMovingAverage, minPoints: window, inflation: 1, fit: func(train []float64) predictor {
			m := stats.Mean(stats.Tail(train, window))
			return func(int) float64 { return m }
		}}
	}
}

// seasonalNaive averages the same phase over the last `cycles` periods.
func seasonalNaive(train []float64, period, cycles int) predictor {
	n := len(train)
	return func(step int) float64 {
		t := n - 1 + step
		back := (step + period - 1) / period
		idx := t - back*period
		var sum float64
		var count int
		for c := 0; c < cycles && idx >= 0; c++ {
			sum += train[idx]
			count++
			idx -= period
		}
		if count == 0 {
			return 0
		}
		return sum / float64(count)
	}
}

// Execute forecasts every product. Products with too little history are
// recorded as failures and excluded; they never fail the stage.
func (a *ForecastingAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	log := logging.WithAgent(logging.FromContext(ctx), a.Name())
	processed := req.State.Processed
	if processed == nil {
		return nil, apperrors.NewValidationError("processed", nil, "ingestion output missing")
	}

	horizon := req.State.Run.ForecastHorizonDays
	if horizon <= 0 {
		horizon = a.cfg.Pipeline.DefaultHorizonDays
	}

	set := &models.ForecastSet{Horizon: horizon}
	var warnings []string
	quality := processed.Quality()

	for _, id := range processed.Products {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}

		pattern, ok := req.State.Patterns.PatternFor(id)
		if !ok {
			pattern = models.DemandPattern{ProductID: id, PatternType: models.PatternStable}
		}
		series, _ := processed.SeriesFor(id)

		pf, err := a.forecastProduct(series, id, pattern, processed.ReferenceDate, horizon, req.State.Run.IncludeExternalFactors)
		if err != nil {
			plog := logging.WithProduct(log, id)
			plog.Debug().Err(err).Msg("Product excluded from forecasting")
			set.Failures = append(set.Failures, models.ProductFailure{ProductID: id, Reason: err.Error()})
			warnings = append(warnings, err.Error())
			continue
		}
		pf.Confidence = ClampConfidence(pf.Confidence * quality)
		set.Products = append(set.Products, pf)
	}

	confidence := set.AverageConfidence()
	if n := len(set.Products) + len(set.Failures); n > 0 {
		confidence *= float64(len(set.Products)) / float64(n)
	}
	return a.CreateResult(models.ForecastOutput{Forecasts: set}, confidence, warnings), nil
}

func (a *ForecastingAgent) forecastProduct(series models.ProductSeries, id string, pattern models.DemandPattern,
	reference time.Time, horizon int, external bool) (models.ProductForecast, error) {
	fc := a.cfg.Forecast
	model := a.model(pattern)
	values := series.Demand
	n := len(values)

	required := model.minPoints + fc.MinBacktestPoints
	if model.partialBacktest {
		required = model.minPoints
	}
	if n < required {
		return models.ProductForecast{}, apperrors.NewInsufficientDataError(id, model.name, required, n)
	}

	holdout := stats.ClampInt(n/4, fc.MinBacktestPoints, fc.MaxBacktestPoints)
	if n-holdout < model.minPoints {
		holdout = n - model.minPoints
	}

	// Backtest on the held-out tail.
	train := values[:n-holdout]
	back := model.fit(train)
	residuals := make([]float64, holdout)
	backForecast := make([]float64, holdout)
	for i := 0; i < holdout; i++ {
		f := math.Max(0, back(i+1))
		backForecast[i] = f
		residuals[i] = values[n-holdout+i] - f
	}
	metrics := forecastMetrics(values[n-holdout:], residuals)
	accuracy := stats.Clamp(1-metrics.WMAPE, 0, 1)
	if holdout == 0 {
		// Nothing was held out, so accuracy is unmeasured.
		accuracy = 0
	}

	bands := a.residualBands(residuals, values, model.inflation)

	var factors []float64
	if external && n >= fc.ExternalFactorMinPoints {
		factors = dayOfWeekFactors(series)
	}

	// Steps between the end of history and the reference date.
	end := series.DateAt(n - 1)
	offset := int(reference.Sub(end).Hours()/24) - 1
	if offset < 0 {
		offset = 0
	}

	full := model.fit(values)
	pf := models.ProductForecast{
		ProductID: id,
		ModelUsed: model.name,
		Results:   make([]models.ForecastResult, 0, horizon),
		Metrics:   metrics,
	}

	var total float64
	for k := 1; k <= horizon; k++ {
		date := reference.AddDate(0, 0, k-1)
		pred := math.Max(0, full(offset+k))
		if factors != nil {
			pred *= factors[int(date.Weekday())]
		}
		total += pred

		scale := math.Sqrt(math.Max(1, float64(k)/float64(max(holdout, 1))))
		pf.Results = append(pf.Results, models.ForecastResult{
			ProductID:       id,
			ForecastDate:    date,
			HorizonDay:      k,
			Bucket:          models.BucketFor(k),
			PredictedDemand: pred,
			Confidence80:    bands.interval(pred, 0, scale),
			Confidence95:    bands.interval(pred, 1, scale),
			ModelUsed:       model.name,
			AccuracyScore:   accuracy,
		})
	}
	pf.AverageDaily = total / float64(horizon)

	if holdout > 0 {
		m := stats.ClampInt(a.cfg.Alerts.SpikeWindowDays, 1, holdout)
		pf.RecentDays = m
		pf.RecentActual = stats.Sum(stats.Tail(values, m))
		pf.RecentForecast = stats.Sum(stats.Tail(backForecast, m))
		pf.ResidualStdDev = stats.StdDev(residuals)
	}
	pf.Confidence = accuracy * sampleFactor(n, a.cfg.Pattern.FullConfidencePoints)
	return pf, nil
}

// bandSet holds residual quantile offsets for the 80% and 95% intervals.
type bandSet struct {
	lo [2]float64
	hi [2]float64
}

// interval builds the band around pred; level 0 is 80%, level 1 is 95%.
func (b bandSet) interval(pred float64, level int, scale float64) models.Interval {
	return models.Interval{
		Low:  math.Max(0, math.Min(pred, pred+b.lo[level]*scale)),
		High: math.Max(pred, pred+b.hi[level]*scale),
	}
}

// residualBands uses empirical residual quantiles, or a normal approximation of
// the demand spread when there are too few residuals.
func (a *ForecastingAgent) residualBands(residuals, values []float64, inflation float64) bandSet {
	var b bandSet
	if len(residuals) >= a.cfg.Forecast.MinResidualSamples && len(residuals) > 0 {
		b.lo = [2]float64{stats.Quantile(residuals, 0.10), stats.Quantile(residuals, 0.025)}
		b.hi = [2]float64{stats.Quantile(residuals, 0.90), stats.Quantile(residuals, 0.975)}
	} else {
		sd := stats.StdDev(values)
		b.lo = [2]float64{stats.NormalQuantile(0.10) * sd, stats.NormalQuantile(0.025) * sd}
		b.hi = [2]float64{stats.NormalQuantile(0.90) * sd, stats.NormalQuantile(0.975) * sd}
	}
	if inflation > 0 {
		for i := range b.lo {
			b.lo[i] *= inflation
			b.hi[i] *= inflation
		}
	}
	return b
}

func forecastMetrics(actual, residuals []float64) models.ForecastMetrics {
	m := models.ForecastMetrics{SampleSize: len(residuals)}
	if len(residuals) == 0 {
		return m
	}

	var absSum, sqSum, errSum, actualSum, apeSum float64
	var apeCount int
	for i, e := range residuals {
		absSum += math.Abs(e)
		sqSum += e * e
		errSum += e
		actualSum += math.Abs(actual[i])
		if actual[i] != 0 {
			apeSum += math.Abs(e) / math.Abs(actual[i])
			apeCount++
		}
	}

	n := float64(len(residuals))
	m.MAE = absSum / n
	m.RMSE = math.Sqrt(sqSum / n)
	m.Bias = errSum / n
	if apeCount > 0 {
		m.MAPE = apeSum / float64(apeCount)
	}
	switch {
	case actualSum > 0:
		m.WMAPE = absSum / actualSum
	case absSum > 0:
		m.WMAPE = 1
	}
	if m.MAE > 0 {
		m.TrackingSignal = errSum / m.MAE
	}
	return m
}

// dayOfWeekFactors are weekday demand ratios normalized to mean 1, indexed by time.Weekday.
func dayOfWeekFactors(series models.ProductSeries) []float64 {
	var sums [7]float64
	var counts [7]int
	for i, v := range series.Demand {
		wd := int(series.DateAt(i).Weekday())
		sums[wd] += v
		counts[wd]++
	}

	raw := make([]float64, 7)
	var total float64
	for wd := 0; wd < 7; wd++ {
		if counts[wd] > 0 {
			raw[wd] = sums[wd] / float64(counts[wd])
		}
		total += raw[wd]
	}
	if total <= 0 {
		return nil
	}
	mean := total / 7
	for wd := range raw {
		raw[wd] /= mean
	}
	return raw
}

// Execute runs the last_value model with a descriptive error prefix.
func (a *EmergencyForecastAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	res, err := a.ForecastingAgent.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("emergency forecast: %w", err)
	}
	return res, nil
}
