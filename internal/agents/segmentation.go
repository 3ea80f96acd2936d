package agents

import (
	"context"
	"sort"

	"stock-agents/internal/config"
	"stock-agents/internal/models"
	"stock-agents/internal/stats"
)

// SegmentationAgent assigns ABC, XYZ, velocity, margin and strategic importance.
type SegmentationAgent struct {
	BaseAgent
}

// NewSegmentationAgent creates a new segmentation agent.
func NewSegmentationAgent(cfg *config.Config) *SegmentationAgent {
	return &SegmentationAgent{BaseAgent: NewBaseAgent(config.AgentSegmentation, cfg)}
}

// Execute segments the whole product universe. Every product lands in exactly one ABC class.
func (a *SegmentationAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	processed := req.State.Processed
	products := productsOf(processed)
	sc := a.cfg.Segmentation

	xCut, yCut := sc.XYZXCutoff, sc.XYZYCutoff
	if req.Widened && a.cfg.Pipeline.FeedbackWidenFactor > 0 {
		xCut /= a.cfg.Pipeline.FeedbackWidenFactor
		yCut /= a.cfg.Pipeline.FeedbackWidenFactor
	}

	type ranked struct {
		id      string
		revenue float64
	}
	order := make([]ranked, 0, len(products))
	var total float64
	for _, id := range products {
		s, _ := processed.SeriesFor(id)
		order = append(order, ranked{id: id, revenue: s.TotalRevenue})
		total += s.TotalRevenue
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].revenue != order[j].revenue {
			return order[i].revenue > order[j].revenue
		}
		return order[i].id < order[j].id
	})

	abc := make(map[string]models.ABCClass, len(order))
	share := make(map[string]float64, len(order))
	cumulative := make(map[string]float64, len(order))
	var before float64
	for _, r := range order {
		class := models.ClassC
		if total > 0 {
			switch {
			case before < sc.ABCACutoff:
				class = models.ClassA
			case before < sc.ABCBCutoff:
				class = models.ClassB
			}
			share[r.id] = r.revenue / total
			before += r.revenue / total
			cumulative[r.id] = before
		}
		abc[r.id] = class
	}

	seg := &models.Segmentation{
		Segments: make([]models.ProductSegment, 0, len(products)),
		Widened:  req.Widened,
	}
	withSales := 0
	for _, id := range products {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		series, ok := processed.SeriesFor(id)
		if ok && series.Len() > 0 {
			withSales++
		}

		cv := stats.CoefficientOfVariation(series.Demand)
		xyz := classifyXYZ(series, cv, xCut, yCut)
		margin := classifyMargin(series.AvgUnitPrice, latestCost(processed.SuppliersFor(id)), sc)

		seg.Segments = append(seg.Segments, models.ProductSegment{
			ProductID:           id,
			ABCClassification:   abc[id],
			XYZClassification:   xyz,
			Velocity:            classifyVelocity(series, sc),
			MarginCategory:      margin,
			StrategicImportance: strategicImportance(abc[id], xyz, margin),
			TotalRevenue:        series.TotalRevenue,
			RevenueShare:        share[id],
			CumulativeShare:     cumulative[id],
			DemandCV:            cv,
		})
	}

	confidence := 0.0
	if len(products) > 0 {
		confidence = processed.Quality() * float64(withSales) / float64(len(products))
	}
	return a.CreateResult(models.SegmentationOutput{Segmentation: seg}, confidence, nil), nil
}

func classifyXYZ(series models.ProductSeries, cv, xCut, yCut float64) models.XYZClass {
	if series.Len() == 0 || stats.Mean(series.Demand) <= 0 {
		return models.ClassZ
	}
	switch {
	case cv < xCut:
		return models.ClassX
	case cv <= yCut:
		return models.ClassY
	default:
		return models.ClassZ
	}
}

func classifyVelocity(series models.ProductSeries, sc config.SegmentationConfig) models.Velocity {
	daily := 0.0
	if series.Len() > 0 {
		daily = series.TotalUnits / float64(series.Len())
	}
	switch {
	case daily >= sc.FastVelocity:
		return models.VelocityFast
	case daily >= sc.MediumVelocity:
		return models.VelocityMedium
	default:
		return models.VelocitySlow
	}
}

func classifyMargin(price, cost float64, sc config.SegmentationConfig) models.MarginCategory {
	if cost <= 0 || price <= 0 {
		return models.MarginUnknown
	}
	margin := (price - cost) / price
	switch {
	case margin >= sc.HighMargin:
		return models.MarginHigh
	case margin >= sc.MediumMargin:
		return models.MarginMedium
	default:
		return models.MarginLow
	}
}

// importanceMatrix maps ABC x XYZ to strategic importance.
var importanceMatrix = map[models.ABCClass]map[models.XYZClass]models.Importance{
	models.ClassA: {models.ClassX: models.ImportanceCritical, models.ClassY: models.ImportanceCritical, models.ClassZ: models.ImportanceHigh},
	models.ClassB: {models.ClassX: models.ImportanceHigh, models.ClassY: models.ImportanceMedium, models.ClassZ: models.ImportanceMedium},
	models.ClassC: {models.ClassX: models.ImportanceMedium, models.ClassY: models.ImportanceLow, models.ClassZ: models.ImportanceLow},
}

func strategicImportance(abc models.ABCClass, xyz models.XYZClass, margin models.MarginCategory) models.Importance {
	imp, ok := importanceMatrix[abc][xyz]
	if !ok {
		imp = models.ImportanceLow
	}
	if imp == models.ImportanceMedium && margin == models.MarginHigh {
		imp = models.ImportanceHigh
	}
	return imp
}

// latestCost is the cost of the most recent supplier record that quotes one.
func latestCost(suppliers []models.SupplierRecord) float64 {
	for i := len(suppliers) - 1; i >= 0; i-- {
		if suppliers[i].CostPerUnit > 0 {
			return suppliers[i].CostPerUnit
		}
	}
	return 0
}
