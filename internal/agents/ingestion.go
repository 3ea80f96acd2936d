package agents

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"stock-agents/internal/config"
	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/logging"
	"stock-agents/internal/models"
)

const (
	defaultChannel  = "direct"
	defaultLocation = "default"
	defaultSupplier = "default"
)

// IngestionAgent validates the raw batch and builds dense daily demand series.
type IngestionAgent struct {
	BaseAgent
}

// NewIngestionAgent creates a new ingestion agent.
func NewIngestionAgent(cfg *config.Config) *IngestionAgent {
	return &IngestionAgent{BaseAgent: NewBaseAgent(config.AgentIngestion, cfg)}
}

// Execute normalizes the batch. It fails only when no usable sales remain.
func (a *IngestionAgent) Execute(ctx context.Context, req Request) (*Result, error) {
	log := logging.WithAgent(logging.FromContext(ctx), a.Name())

	batch := req.State.Raw
	if batch == nil {
		return nil, apperrors.NewValidationError("batch", nil, "no input batch")
	}

	var issues []string
	total := len(batch.Sales) + len(batch.Inventory) + len(batch.Suppliers)

	sales := make([]models.SalesRecord, 0, len(batch.Sales))
	for i, raw := range batch.Sales {
		rec, err := normalizeSale(raw)
		if err != nil {
			issues = append(issues, fmt.Sprintf("sales[%d]: %s", i, err))
			continue
		}
		sales = append(sales, rec)
	}
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	if len(sales) == 0 {
		return nil, &apperrors.ValidationError{
			Field:   "sales",
			Value:   len(batch.Sales),
			Message: "no valid sales records",
			Err:     apperrors.ErrEmptySalesHistory,
		}
	}

	inventory := make(map[string]models.InventoryRecord)
	accepted := len(sales)
	for i, raw := range batch.Inventory {
		rec, err := normalizeInventory(raw)
		if err != nil {
			issues = append(issues, fmt.Sprintf("inventory[%d]: %s", i, err))
			continue
		}
		accepted++
		inventory[rec.ProductID] = mergeInventory(inventory[rec.ProductID], rec)
	}

	suppliers := make(map[string][]models.SupplierRecord)
	for i, raw := range batch.Suppliers {
		rec, err := normalizeSupplier(raw)
		if err != nil {
			issues = append(issues, fmt.Sprintf("suppliers[%d]: %s", i, err))
			continue
		}
		accepted++
		suppliers[rec.ProductID] = append(suppliers[rec.ProductID], rec)
	}
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	series, lastSale := buildSeries(sales)

	universe := make(map[string]struct{})
	for id := range series {
		universe[id] = struct{}{}
	}
	for id := range inventory {
		universe[id] = struct{}{}
	}
	for id := range suppliers {
		universe[id] = struct{}{}
	}
	products := make([]string, 0, len(universe))
	for id := range universe {
		products = append(products, id)
	}
	sort.Strings(products)

	reference := lastSale.AddDate(0, 0, 1)
	if req.State.Run.ReferenceDate != nil {
		reference = truncateDay(*req.State.Run.ReferenceDate)
	}

	quality := 1.0
	if total > 0 {
		quality = float64(accepted) / float64(total)
	}

	processed := &models.ProcessedData{
		ReferenceDate:    reference,
		Products:         products,
		Series:           series,
		Inventory:        inventory,
		Suppliers:        suppliers,
		TotalRecords:     total,
		AcceptedRecords:  accepted,
		DataQualityScore: quality,
		Issues:           issues,
	}

	log.Debug().
		Int("products", len(products)).
		Int("records", total).
		Int("rejected", total-accepted).
		Float64("quality", quality).
		Msg("Batch normalized")

	return a.CreateResult(models.IngestionOutput{Processed: processed}, quality, issues), nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func normalizeSale(raw models.RawSalesRecord) (models.SalesRecord, error) {
	id := strings.TrimSpace(raw.ProductID)
	if id == "" {
		return models.SalesRecord{}, fmt.Errorf("blank product_id")
	}
	if raw.Date.IsZero() {
		return models.SalesRecord{}, fmt.Errorf("missing date")
	}
	if !validNonNegative(raw.QuantitySold) {
		return models.SalesRecord{}, fmt.Errorf("invalid quantity_sold %v", raw.QuantitySold)
	}
	if raw.UnitPrice != nil && !validNonNegative(*raw.UnitPrice) {
		return models.SalesRecord{}, fmt.Errorf("invalid unit_price %v", *raw.UnitPrice)
	}
	if raw.Revenue != nil && !validNonNegative(*raw.Revenue) {
		return models.SalesRecord{}, fmt.Errorf("invalid revenue %v", *raw.Revenue)
	}

	rec := models.SalesRecord{
		ProductID:    id,
		Date:         truncateDay(raw.Date),
		QuantitySold: raw.QuantitySold,
		Channel:      raw.Channel,
	}
	if rec.Channel == "" {
		rec.Channel = defaultChannel
	}

	switch {
	case raw.UnitPrice != nil:
		rec.UnitPrice = *raw.UnitPrice
	case raw.Revenue != nil && raw.QuantitySold > 0:
		rec.UnitPrice = *raw.Revenue / raw.QuantitySold
	}
	if raw.Revenue != nil {
		rec.Revenue = *raw.Revenue
	} else {
		rec.Revenue = raw.QuantitySold * rec.UnitPrice
	}
	return rec, nil
}

func normalizeInventory(raw models.RawInventoryRecord) (models.InventoryRecord, error) {
	id := strings.TrimSpace(raw.ProductID)
	if id == "" {
		return models.InventoryRecord{}, fmt.Errorf("blank product_id")
	}
	if !validNonNegative(raw.AvailableQuantity) {
		return models.InventoryRecord{}, fmt.Errorf("invalid available_quantity %v", raw.AvailableQuantity)
	}
	rec := models.InventoryRecord{
		ProductID:         id,
		AvailableQuantity: raw.AvailableQuantity,
		Location:          raw.Location,
		LastUpdated:       raw.LastUpdated.UTC(),
	}
	if raw.ReservedQuantity != nil {
		if !validNonNegative(*raw.ReservedQuantity) {
			return models.InventoryRecord{}, fmt.Errorf("invalid reserved_quantity %v", *raw.ReservedQuantity)
		}
		rec.ReservedQuantity = *raw.ReservedQuantity
	}
	if rec.Location == "" {
		rec.Location = defaultLocation
	}
	return rec, nil
}

// mergeInventory sums stock held for one product across locations.
func mergeInventory(acc, rec models.InventoryRecord) models.InventoryRecord {
	if acc.ProductID == "" {
		return rec
	}
	acc.AvailableQuantity += rec.AvailableQuantity
	acc.ReservedQuantity += rec.ReservedQuantity
	if acc.Location != rec.Location {
		acc.Location = "multiple"
	}
	if rec.LastUpdated.After(acc.LastUpdated) {
		acc.LastUpdated = rec.LastUpdated
	}
	return acc
}

func normalizeSupplier(raw models.RawSupplierRecord) (models.SupplierRecord, error) {
	id := strings.TrimSpace(raw.ProductID)
	if id == "" {
		return models.SupplierRecord{}, fmt.Errorf("blank product_id")
	}
	if math.IsNaN(raw.LeadTimeDays) || math.IsInf(raw.LeadTimeDays, 0) || raw.LeadTimeDays <= 0 {
		return models.SupplierRecord{}, fmt.Errorf("invalid lead_time_days %v", raw.LeadTimeDays)
	}
	rec := models.SupplierRecord{
		ProductID:        id,
		SupplierID:       raw.SupplierID,
		LeadTimeDays:     raw.LeadTimeDays,
		ReliabilityScore: 1.0,
	}
	if rec.SupplierID == "" {
		rec.SupplierID = defaultSupplier
	}
	if raw.MinimumOrderQuantity != nil {
		if !validNonNegative(*raw.MinimumOrderQuantity) {
			return models.SupplierRecord{}, fmt.Errorf("invalid minimum_order_quantity %v", *raw.MinimumOrderQuantity)
		}
		rec.MinimumOrderQuantity = *raw.MinimumOrderQuantity
	}
	if raw.CostPerUnit != nil {
		if !validNonNegative(*raw.CostPerUnit) {
			return models.SupplierRecord{}, fmt.Errorf("invalid cost_per_unit %v", *raw.CostPerUnit)
		}
		rec.CostPerUnit = *raw.CostPerUnit
	}
	if raw.ReliabilityScore != nil {
		r := *raw.ReliabilityScore
		if math.IsNaN(r) {
			return models.SupplierRecord{}, fmt.Errorf("invalid reliability_score")
		}
		rec.ReliabilityScore = math.Max(0, math.Min(1, r))
	}
	return rec, nil
}

// buildSeries groups sales per product into zero-filled daily series that all
// end on the batch's last sale date.
func buildSeries(sales []models.SalesRecord) (map[string]models.ProductSeries, time.Time) {
	byProduct := make(map[string][]models.SalesRecord)
	var last time.Time
	for _, s := range sales {
		byProduct[s.ProductID] = append(byProduct[s.ProductID], s)
		if s.Date.After(last) {
			last = s.Date
		}
	}

	out := make(map[string]models.ProductSeries, len(byProduct))
	for id, recs := range byProduct {
		sort.SliceStable(recs, func(i, j int) bool {
			if !recs[i].Date.Equal(recs[j].Date) {
				return recs[i].Date.Before(recs[j].Date)
			}
			return recs[i].Channel < recs[j].Channel
		})

		start := recs[0].Date
		days := int(last.Sub(start).Hours()/24) + 1
		demand := make([]float64, days)

		var units, revenue, priceSum float64
		for _, r := range recs {
			idx := int(r.Date.Sub(start).Hours() / 24)
			demand[idx] += r.QuantitySold
			units += r.QuantitySold
			revenue += r.Revenue
			priceSum += r.UnitPrice
		}

		avgPrice := priceSum / float64(len(recs))
		if units > 0 {
			avgPrice = revenue / units
		}

		out[id] = models.ProductSeries{
			ProductID:    id,
			StartDate:    start,
			Demand:       demand,
			Sales:        recs,
			TotalUnits:   units,
			TotalRevenue: revenue,
			AvgUnitPrice: avgPrice,
		}
	}
	return out, last
}
