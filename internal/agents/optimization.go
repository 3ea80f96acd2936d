package agents

import (
	"context"
	"math"

	"stock-agents/internal/config"
	"stock-agents/internal/logging"
	"stock-agents/internal/models"
	"stock-agents/internal/stats"
)

// OptimizationAgent computes safety stock, reorder points and economic order quantities.
type OptimizationAgent struct {
	BaseAgent
}

// NewOptimizationAgent creates a new optimization agent.
func NewOptimizationAgent(cfg *config.Config) *OptimizationAgent {
	return &OptimizationAgent{BaseAgent: NewBaseAgent(config.AgentOptimization, cfg)}
}

// supplierTerms are the replenishment terms in effect for a product.
type supplierTerms struct {
	leadTime     float64
	moq          float64
	unitCost     float64
	usedDefaults bool
}

func (a *OptimizationAgent) terms(suppliers []models.SupplierRecord, avgPrice float64) supplierTerms {
	oc := a.cfg.Optimization
	if len(suppliers) == 0 {
		return supplierTerms{
			leadTime:     oc.DefaultLeadTimeDays,
			moq:          oc.DefaultMOQ,
			unitCost:     avgPrice * oc.DefaultCostRatio,
			usedDefaults: true,
		}
	}

	var leadSum float64
	for _, s := range suppliers {
		leadSum += s.LeadTimeDays
	}
	latest := suppliers[len(suppliers)-1]
	t := supplierTerms{
		leadTime: leadSum / float64(len(suppliers)),
		moq:      latest.MinimumOrderQuantity,
		unitCost: latest.CostPerUnit,
	}
	if t.unitCost <= 0 {
		t.unitCost = avgPrice * oc.DefaultCostRatio
	}
	return t
}

// Execute optimizes every product. Missing supplier data falls back to
// defaults with a confidence penalty and never fails.
func (a *OptimizationAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	log := logging.WithAgent(logging.FromContext(ctx), a.Name())
	processed := req.State.Processed
	serviceLevel := req.State.Run.ServiceLevel
	if serviceLevel <= 0.5 || serviceLevel >= 1 {
		serviceLevel = a.cfg.Pipeline.DefaultServiceLevel
	}
	z := stats.NormalQuantile(serviceLevel)
	quality := processed.Quality()

	set := &models.OptimizationSet{ServiceLevel: serviceLevel}
	var confSum float64
	defaulted := 0

	for _, id := range productsOf(processed) {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		series, _ := processed.SeriesFor(id)
		inv, _ := processed.InventoryFor(id)
		terms := a.terms(processed.SuppliersFor(id), series.AvgUnitPrice)

		res := a.optimizeProduct(id, series, inv, terms, serviceLevel, z)
		res.Confidence = ClampConfidence(res.Confidence * quality)
		if terms.usedDefaults {
			defaulted++
		}
		confSum += res.Confidence
		set.Results = append(set.Results, res)
	}

	var warnings []string
	if defaulted > 0 {
		log.Debug().Int("products", defaulted).Msg("Supplier defaults applied")
		warnings = append(warnings, "supplier defaults applied to products without supplier data")
	}

	confidence := 0.0
	if len(set.Results) > 0 {
		confidence = confSum / float64(len(set.Results))
	}
	return a.CreateResult(models.OptimizationOutput{Optimization: set}, confidence, warnings), nil
}

func (a *OptimizationAgent) optimizeProduct(id string, series models.ProductSeries, inv models.InventoryRecord,
	terms supplierTerms, serviceLevel, z float64) models.OptimizationResult {
	oc := a.cfg.Optimization
	mean := stats.Mean(series.Demand)
	sd := stats.StdDev(series.Demand)

	ss := SafetyStockQuantity(z, sd, terms.leadTime)
	ltd := stats.Round2(mean * terms.leadTime)

	res := models.OptimizationResult{
		ProductID: id,
		ReorderPoint: models.ReorderPoint{
			ProductID:            id,
			LeadTimeDays:         terms.leadTime,
			DailyDemandAverage:   mean,
			LeadTimeDemand:       ltd,
			SafetyStockQuantity:  ss,
			ReorderPointQuantity: ltd + ss,
		},
		SafetyStock: models.SafetyStock{
			ProductID:           id,
			ServiceLevel:        serviceLevel,
			ZScore:              z,
			DemandStdDev:        sd,
			LeadTimeDays:        terms.leadTime,
			SafetyStockQuantity: ss,
		},
		OrderQuantity:     economicOrder(id, mean, terms, oc),
		UnitCost:          terms.unitCost,
		UnitPrice:         series.AvgUnitPrice,
		AvailableQuantity: inv.AvailableQuantity,
		UsedDefaults:      terms.usedDefaults,
		Confidence:        1,
	}
	if terms.usedDefaults {
		res.Confidence *= 1 - oc.MissingSupplierPenalty
	}
	if mean > 0 {
		res.DaysOfCover = inv.AvailableQuantity / mean
	}

	res.CurrentSafetyStock = math.Max(0, inv.AvailableQuantity-ltd)
	res.SafetyStockDelta = res.CurrentSafetyStock - ss
	res.SafetyStockDeltaMaterial = math.Abs(res.SafetyStockDelta)/math.Max(ss, 1) > oc.MaterialityThreshold

	oq := res.OrderQuantity
	if oq.MinimumOrderQuantity > 0 {
		res.OrderQuantityDelta = oq.EconomicOrderQuantity - oq.MinimumOrderQuantity
		ratio := res.OrderQuantityDelta / oq.MinimumOrderQuantity
		if oq.ClampedToMinimumOrder {
			ratio = (oq.MinimumOrderQuantity - oq.UnconstrainedEOQ) / oq.MinimumOrderQuantity
		}
		res.OrderQuantityDeltaMaterial = ratio > oc.MaterialityThreshold
	}
	return res
}

// SafetyStockQuantity is z·σ·√L rounded to two decimals, never negative.
func SafetyStockQuantity(z, demandStdDev, leadTimeDays float64) float64 {
	if leadTimeDays <= 0 || demandStdDev <= 0 {
		return 0
	}
	return math.Max(0, stats.Round2(z*demandStdDev*math.Sqrt(leadTimeDays)))
}

func economicOrder(id string, dailyMean float64, terms supplierTerms, oc config.OptimizationConfig) models.OrderQuantity {
	annual := dailyMean * oc.DaysPerYear
	holding := terms.unitCost * oc.HoldingCostRate
	oq := models.OrderQuantity{
		ProductID:            id,
		AnnualDemand:         annual,
		OrderingCostPerOrder: oc.OrderingCost,
		HoldingCostPerUnit:   holding,
		MinimumOrderQuantity: terms.moq,
	}

	if annual > 0 && holding > 0 {
		oq.UnconstrainedEOQ = math.Sqrt(2 * annual * oc.OrderingCost / holding)
	}
	oq.EconomicOrderQuantity = math.Ceil(oq.UnconstrainedEOQ)
	if oq.EconomicOrderQuantity < terms.moq || annual <= 0 {
		oq.EconomicOrderQuantity = terms.moq
		oq.ClampedToMinimumOrder = terms.moq > 0
	}
	if oq.EconomicOrderQuantity > 0 {
		oq.OrdersPerYear = annual / oq.EconomicOrderQuantity
	}
	return oq
}
