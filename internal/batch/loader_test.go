package batch

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
)

func ptr(v float64) *float64 { return &v }

func sampleBatch() *models.RawBatch {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.RawBatch{
		Sales: []models.RawSalesRecord{
			{ProductID: "SKU-A", Date: day, QuantitySold: 12, UnitPrice: ptr(4.5), Channel: "store"},
			{ProductID: "SKU-A", Date: day.AddDate(0, 0, 1), QuantitySold: 7.5, Revenue: ptr(33.75)},
			{ProductID: "SKU-B", Date: day, QuantitySold: 3},
		},
		Inventory: []models.RawInventoryRecord{
			{ProductID: "SKU-A", AvailableQuantity: 40, ReservedQuantity: ptr(5), Location: "main", LastUpdated: day.AddDate(0, 0, 2)},
			{ProductID: "SKU-B", AvailableQuantity: 0},
		},
		Suppliers: []models.RawSupplierRecord{
			{ProductID: "SKU-A", SupplierID: "S1", LeadTimeDays: 7, MinimumOrderQuantity: ptr(50), CostPerUnit: ptr(2.25), ReliabilityScore: ptr(0.9)},
			{ProductID: "SKU-B", LeadTimeDays: 14},
		},
	}
}

func TestWorkbookRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleBatch()))

	got, report, err := LoadWorkbook(&buf)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", report.Format)
	assert.Equal(t, 7, report.Rows)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, sampleBatch(), got)
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveJSON(&buf, sampleBatch()))

	got, report, err := LoadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, "json", report.Format)
	assert.Equal(t, 7, report.Rows)
	assert.Equal(t, sampleBatch(), got)
}

func TestLoadJSON_RejectsUnknownFields(t *testing.T) {
	_, _, err := LoadJSON(strings.NewReader(`{"sales": [], "orders": []}`))
	var de *apperrors.DataError
	assert.True(t, errors.As(err, &de))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "batch.json")
	f, err := os.Create(jsonPath)
	require.NoError(t, err)
	require.NoError(t, SaveJSON(f, sampleBatch()))
	require.NoError(t, f.Close())

	got, _, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, got.Sales, 3)

	xlsxPath := filepath.Join(dir, "batch.XLSX")
	f, err = os.Create(xlsxPath)
	require.NoError(t, err)
	require.NoError(t, WriteWorkbook(f, sampleBatch()))
	require.NoError(t, f.Close())

	got, _, err = LoadFile(xlsxPath)
	require.NoError(t, err)
	assert.Len(t, got.Suppliers, 2)

	_, _, err = LoadFile(filepath.Join(dir, "batch.csv"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch.csv"), []byte("x"), 0644))
	_, _, err = LoadFile(filepath.Join(dir, "batch.csv"))
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedFormat))
}

// workbook builds an in-memory workbook from sheet name to rows.
func workbook(t *testing.T, sheets map[string][][]interface{}, order ...string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestLoadWorkbook_HeaderAliasesAndFirstSheet(t *testing.T) {
	buf := workbook(t, map[string][][]interface{}{
		"Export": {
			{"SKU", "Date", "Units", "Price"},
			{"SKU-A", "2024/3/5", 4, 2.5},
			{"SKU-A", 45357, 6, ""},
		},
		"Inventory": {
			{"sku", "on_hand"},
			{"SKU-A", 12},
		},
	}, "Export", "Inventory")

	got, report, err := LoadWorkbook(buf)
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	require.Len(t, got.Sales, 2)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got.Sales[0].Date)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), got.Sales[1].Date)
	assert.Equal(t, 2.5, *got.Sales[0].UnitPrice)
	assert.Nil(t, got.Sales[1].UnitPrice)
	require.Len(t, got.Inventory, 1)
	assert.Equal(t, 12.0, got.Inventory[0].AvailableQuantity)
	assert.Empty(t, got.Suppliers)
}

func TestLoadWorkbook_SkipsBadRows(t *testing.T) {
	buf := workbook(t, map[string][][]interface{}{
		"sales": {
			{"product_id", "date", "quantity_sold"},
			{"SKU-A", "2024-01-01", 5},
			{"", "2024-01-02", 5},
			{"SKU-A", "yesterday", 5},
			{"SKU-A", "2024-01-03", "lots"},
			{},
			{"SKU-A", "2024-01-04", -2},
		},
	}, "sales")

	got, report, err := LoadWorkbook(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Rows)
	require.Len(t, report.Skipped, 3)
	assert.Equal(t, SkippedRow{Sheet: "sales", Row: 3, Reason: "missing product_id"}, report.Skipped[0])
	assert.Equal(t, 4, report.Skipped[1].Row)
	assert.Equal(t, 5, report.Skipped[2].Row)

	// Negative quantities are left for ingestion to reject.
	require.Len(t, got.Sales, 2)
	assert.Equal(t, -2.0, got.Sales[1].QuantitySold)
}

func TestLoadWorkbook_MissingColumns(t *testing.T) {
	buf := workbook(t, map[string][][]interface{}{
		"sales": {
			{"product_id", "quantity_sold"},
			{"SKU-A", 5},
		},
	}, "sales")

	_, _, err := LoadWorkbook(buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns: date")
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetSales, SheetInventory, SheetSuppliers}, f.GetSheetList())

	rows, err := f.GetRows(SheetSuppliers)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, suppliersHeader, rows[0])
}
