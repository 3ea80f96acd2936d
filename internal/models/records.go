// Package models defines the value records exchanged between pipeline stages.
package models

import "time"

// RawSalesRecord is a sales line as delivered by the ingestion collaborator.
// Optional fields are pointers so that "absent" can be told apart from zero.
type RawSalesRecord struct {
	ProductID    string    `json:"product_id"`
	Date         time.Time `json:"date"`
	QuantitySold float64   `json:"quantity_sold"`
	Revenue      *float64  `json:"revenue,omitempty"`
	UnitPrice    *float64  `json:"unit_price,omitempty"`
	Channel      string    `json:"channel,omitempty"`
}

// RawInventoryRecord is an inventory snapshot line before normalization.
type RawInventoryRecord struct {
	ProductID         string    `json:"product_id"`
	AvailableQuantity float64   `json:"available_quantity"`
	ReservedQuantity  *float64  `json:"reserved_quantity,omitempty"`
	Location          string    `json:"location,omitempty"`
	LastUpdated       time.Time `json:"last_updated"`
}

// RawSupplierRecord is a supplier terms line before normalization.
type RawSupplierRecord struct {
	ProductID            string   `json:"product_id"`
	SupplierID           string   `json:"supplier_id,omitempty"`
	LeadTimeDays         float64  `json:"lead_time_days"`
	MinimumOrderQuantity *float64 `json:"minimum_order_quantity,omitempty"`
	CostPerUnit          *float64 `json:"cost_per_unit,omitempty"`
	ReliabilityScore     *float64 `json:"reliability_score,omitempty"`
}

// RawBatch is one bounded input batch for an analysis run.
type RawBatch struct {
	Sales     []RawSalesRecord     `json:"sales"`
	Inventory []RawInventoryRecord `json:"inventory"`
	Suppliers []RawSupplierRecord  `json:"suppliers"`
}

// SalesRecord is a validated sales line.
type SalesRecord struct {
	ProductID    string    `json:"product_id"`
	Date         time.Time `json:"date"`
	QuantitySold float64   `json:"quantity_sold"`
	Revenue      float64   `json:"revenue"`
	UnitPrice    float64   `json:"unit_price"`
	Channel      string    `json:"channel"`
}

// InventoryRecord is a validated inventory snapshot.
type InventoryRecord struct {
	ProductID         string    `json:"product_id"`
	AvailableQuantity float64   `json:"available_quantity"`
	ReservedQuantity  float64   `json:"reserved_quantity"`
	Location          string    `json:"location"`
	LastUpdated       time.Time `json:"last_updated"`
}

// SupplierRecord is a validated supplier terms line.
type SupplierRecord struct {
	ProductID            string  `json:"product_id"`
	SupplierID           string  `json:"supplier_id"`
	LeadTimeDays         float64 `json:"lead_time_days"`
	MinimumOrderQuantity float64 `json:"minimum_order_quantity"`
	CostPerUnit          float64 `json:"cost_per_unit"`
	ReliabilityScore     float64 `json:"reliability_score"`
}

// ProductSeries is a dense daily demand series for one product.
// Demand[i] is the quantity sold on StartDate+i days; gaps are zero.
type ProductSeries struct {
	ProductID    string        `json:"product_id"`
	StartDate    time.Time     `json:"start_date"`
	Demand       []float64     `json:"demand"`
	Sales        []SalesRecord `json:"-"`
	TotalUnits   float64       `json:"total_units"`
	TotalRevenue float64       `json:"total_revenue"`
	AvgUnitPrice float64       `json:"avg_unit_price"`
}

// Len returns the number of days in the series.
func (s ProductSeries) Len() int {
	return len(s.Demand)
}

// DateAt returns the calendar day of index i.
func (s ProductSeries) DateAt(i int) time.Time {
	return s.StartDate.AddDate(0, 0, i)
}

// ProcessedData is the ingestion output every later stage reads from.
type ProcessedData struct {
	ReferenceDate    time.Time
	Products         []string
	Series           map[string]ProductSeries
	Inventory        map[string]InventoryRecord
	Suppliers        map[string][]SupplierRecord
	TotalRecords     int
	AcceptedRecords  int
	DataQualityScore float64
	Issues           []string
}

// SeriesFor returns the demand series of a product, if it sold anything.
func (p *ProcessedData) SeriesFor(productID string) (ProductSeries, bool) {
	if p == nil {
		return ProductSeries{}, false
	}
	s, ok := p.Series[productID]
	return s, ok
}

// InventoryFor returns the aggregated inventory snapshot of a product.
func (p *ProcessedData) InventoryFor(productID string) (InventoryRecord, bool) {
	if p == nil {
		return InventoryRecord{}, false
	}
	inv, ok := p.Inventory[productID]
	return inv, ok
}

// SuppliersFor returns supplier records of a product in input order.
func (p *ProcessedData) SuppliersFor(productID string) []SupplierRecord {
	if p == nil {
		return nil
	}
	return p.Suppliers[productID]
}

// Quality returns the data quality score, 0 when ingestion never ran.
func (p *ProcessedData) Quality() float64 {
	if p == nil {
		return 0
	}
	return p.DataQualityScore
}
