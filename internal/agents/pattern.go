package agents

import (
	"context"
	"math"

	"stock-agents/internal/config"
	"stock-agents/internal/logging"
	"stock-agents/internal/models"
	"stock-agents/internal/stats"
)

// PatternAgent classifies each product's demand as seasonal, trending, stable or erratic.
type PatternAgent struct {
	BaseAgent
}

// NewPatternAgent creates a new pattern analysis agent.
func NewPatternAgent(cfg *config.Config) *PatternAgent {
	return &PatternAgent{BaseAgent: NewBaseAgent(config.AgentPattern, cfg)}
}

// patternParams are the thresholds in effect for one invocation.
type patternParams struct {
	seasonality  float64
	trend        float64
	stableCV     float64
	directionMin float64
	lags         []int
	fullPoints   int
}

func (a *PatternAgent) params(widened bool) patternParams {
	pc := a.cfg.Pattern
	p := patternParams{
		seasonality:  pc.SeasonalityThreshold,
		trend:        pc.TrendThreshold,
		stableCV:     pc.StableCVThreshold,
		directionMin: pc.TrendDirectionMin,
		lags:         append([]int(nil), pc.SeasonalLags...),
		fullPoints:   pc.FullConfidencePoints,
	}
	if widened {
		f := a.cfg.Pipeline.FeedbackWidenFactor
		p.seasonality *= f
		p.trend *= f
		p.stableCV *= f
		if pc.WidenedExtraLag > 0 && !containsInt(p.lags, pc.WidenedExtraLag) {
			p.lags = append(p.lags, pc.WidenedExtraLag)
		}
	}
	return p
}

// Execute analyzes every product. A short series degrades to ERRATIC with zero
// confidence instead of failing the stage.
func (a *PatternAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	log := logging.WithAgent(logging.FromContext(ctx), a.Name())
	processed := req.State.Processed
	quality := processed.Quality()
	params := a.params(req.Widened)

	analysis := &models.PatternAnalysis{
		Patterns: make([]models.DemandPattern, 0, len(productsOf(processed))),
		Widened:  req.Widened,
	}

	var confSum float64
	for _, id := range productsOf(processed) {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		series, _ := processed.SeriesFor(id)
		dp := detectPattern(id, series.Demand, params)
		dp.Confidence = ClampConfidence(dp.Confidence * quality)
		confSum += dp.Confidence
		analysis.Patterns = append(analysis.Patterns, dp)

		plog := logging.WithProduct(log, id)
		plog.Trace().
			Str("pattern", string(dp.PatternType)).
			Float64("seasonality", dp.SeasonalityStrength).
			Float64("trend", dp.TrendStrength).
			Float64("cv", dp.CoefficientOfVariation).
			Msg("Pattern detected")
	}

	confidence := 0.0
	if len(analysis.Patterns) > 0 {
		confidence = confSum / float64(len(analysis.Patterns))
	}
	return a.CreateResult(models.PatternOutput{Analysis: analysis}, confidence, nil), nil
}

// detectPattern runs the statistics for one series; confidence excludes data quality.
func detectPattern(productID string, demand []float64, p patternParams) models.DemandPattern {
	n := len(demand)
	dp := models.DemandPattern{
		ProductID:      productID,
		PatternType:    models.PatternErratic,
		TrendDirection: models.TrendStable,
		DataPoints:     n,
	}
	mean := stats.Mean(demand)
	if n < 2 || mean <= 0 {
		return dp
	}

	cv := stats.StdDev(demand) / mean
	dp.CoefficientOfVariation = cv
	dp.Volatility = math.Min(cv, 1)

	if reg, err := stats.LinearTrend(demand); err == nil {
		dp.TrendStrength = math.Min(math.Abs(reg.Slope)*float64(n)/mean, 1)
		if dp.TrendStrength >= p.directionMin {
			if reg.Slope > 0 {
				dp.TrendDirection = models.TrendUp
			} else if reg.Slope < 0 {
				dp.TrendDirection = models.TrendDown
			}
		}
	}

	detrended := stats.Detrend(demand)
	best, bestLag := math.Inf(-1), 0
	for _, lag := range p.lags {
		if n < 2*lag {
			continue
		}
		if acf := stats.Autocorrelation(detrended, lag); acf > best {
			best, bestLag = acf, lag
		}
	}
	if bestLag > 0 {
		dp.SeasonalityStrength = math.Max(0, best)
		dp.SeasonalPeriod = bestLag
	}

	var strength float64
	switch {
	case dp.SeasonalityStrength > p.seasonality:
		dp.PatternType = models.PatternSeasonal
		strength = dp.SeasonalityStrength
	case dp.TrendStrength > p.trend:
		dp.PatternType = models.PatternTrending
		strength = dp.TrendStrength
	case cv < p.stableCV:
		dp.PatternType = models.PatternStable
		strength = 1 - cv
	default:
		dp.PatternType = models.PatternErratic
		strength = dp.Volatility
	}

	dp.Confidence = ClampConfidence(sampleFactor(n, p.fullPoints) * strength)
	return dp
}

func productsOf(p *models.ProcessedData) []string {
	if p == nil {
		return nil
	}
	return p.Products
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
