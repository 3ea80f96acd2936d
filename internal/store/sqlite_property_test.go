package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-agents/internal/models"
)

// Property: for any batch, saving it and loading it back yields the same
// records in the same order, with absent optional fields still absent.
func TestProperty_BatchRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "batches.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	seq := 0

	properties.Property("batch round-trip: save then load produces identical records", prop.ForAll(
		func(days int, products int, baseQty float64, withPrices bool) bool {
			ctx := context.Background()
			seq++
			name := fmt.Sprintf("batch_%d", seq)

			batch := generateTestBatch(days, products, baseQty, withPrices)
			if err := store.SaveBatch(ctx, name, batch); err != nil {
				t.Logf("Failed to save batch: %v", err)
				return false
			}

			loaded, err := store.LoadBatch(ctx, name)
			if err != nil {
				t.Logf("Failed to load batch: %v", err)
				return false
			}

			if !batchesEqual(batch, loaded) {
				t.Logf("Batch mismatch for %s", name)
				return false
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(1, 5),
		gen.Float64Range(0, 500),
		gen.Bool(),
	))

	properties.Property("re-saving a batch replaces it", prop.ForAll(
		func(first, second int) bool {
			ctx := context.Background()
			if err := store.SaveBatch(ctx, "replaced", generateTestBatch(first, 1, 5, true)); err != nil {
				return false
			}
			if err := store.SaveBatch(ctx, "replaced", generateTestBatch(second, 1, 5, true)); err != nil {
				return false
			}
			loaded, err := store.LoadBatch(ctx, "replaced")
			return err == nil && len(loaded.Sales) == second
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

// generateTestBatch creates a batch with days of sales for each product.
func generateTestBatch(days, products int, baseQty float64, withPrices bool) *models.RawBatch {
	batch := &models.RawBatch{}
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for p := 0; p < products; p++ {
		id := fmt.Sprintf("SKU-%02d", p)
		for d := 0; d < days; d++ {
			r := models.RawSalesRecord{
				ProductID:    id,
				Date:         baseTime.AddDate(0, 0, d),
				QuantitySold: roundToDecimal(baseQty+float64((d*7+p)%11), 2),
			}
			if withPrices {
				price := roundToDecimal(2.5+float64(p), 2)
				r.UnitPrice = &price
				r.Channel = "online"
			}
			batch.Sales = append(batch.Sales, r)
		}

		inv := models.RawInventoryRecord{ProductID: id, AvailableQuantity: float64(10 * p), Location: "main"}
		if withPrices {
			reserved := 1.0
			inv.ReservedQuantity = &reserved
			inv.LastUpdated = baseTime.AddDate(0, 0, days)
		}
		batch.Inventory = append(batch.Inventory, inv)

		sup := models.RawSupplierRecord{ProductID: id, LeadTimeDays: float64(3 + p)}
		if withPrices {
			cost, reliability := 1.25, 0.9
			sup.SupplierID = "S1"
			sup.CostPerUnit = &cost
			sup.ReliabilityScore = &reliability
		}
		batch.Suppliers = append(batch.Suppliers, sup)
	}

	return batch
}

// roundToDecimal rounds a float to specified decimal places
func roundToDecimal(val float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(val*multiplier) / multiplier
}

// batchesEqual compares two batches record by record.
func batchesEqual(a, b *models.RawBatch) bool {
	if len(a.Sales) != len(b.Sales) || len(a.Inventory) != len(b.Inventory) || len(a.Suppliers) != len(b.Suppliers) {
		return false
	}
	for i, x := range a.Sales {
		y := b.Sales[i]
		if x.ProductID != y.ProductID || !x.Date.Equal(y.Date) || x.QuantitySold != y.QuantitySold ||
			x.Channel != y.Channel || !ptrEqual(x.Revenue, y.Revenue) || !ptrEqual(x.UnitPrice, y.UnitPrice) {
			return false
		}
	}
	for i, x := range a.Inventory {
		y := b.Inventory[i]
		if x.ProductID != y.ProductID || x.AvailableQuantity != y.AvailableQuantity || x.Location != y.Location ||
			!x.LastUpdated.Equal(y.LastUpdated) || !ptrEqual(x.ReservedQuantity, y.ReservedQuantity) {
			return false
		}
	}
	for i, x := range a.Suppliers {
		y := b.Suppliers[i]
		if x.ProductID != y.ProductID || x.SupplierID != y.SupplierID || x.LeadTimeDays != y.LeadTimeDays ||
			!ptrEqual(x.MinimumOrderQuantity, y.MinimumOrderQuantity) || !ptrEqual(x.CostPerUnit, y.CostPerUnit) ||
			!ptrEqual(x.ReliabilityScore, y.ReliabilityScore) {
			return false
		}
	}
	return true
}

func ptrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
