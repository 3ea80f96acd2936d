package batch

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
)

// Sheet names of a batch workbook. A workbook without a "sales" sheet is read
// from its first sheet.
const (
	SheetSales     = "sales"
	SheetInventory = "inventory"
	SheetSuppliers = "suppliers"
)

var (
	salesHeader     = []string{"product_id", "date", "quantity_sold", "revenue", "unit_price", "channel"}
	inventoryHeader = []string{"product_id", "available_quantity", "reserved_quantity", "location", "last_updated"}
	suppliersHeader = []string{"product_id", "supplier_id", "lead_time_days", "minimum_order_quantity", "cost_per_unit", "reliability_score"}
)

var dateLayouts = []string{"2006-01-02", "2006/1/2", "2006/01/02", time.RFC3339, "2006-01-02 15:04:05"}

// LoadWorkbook reads a batch from an .xlsx workbook.
func LoadWorkbook(r io.Reader) (*models.RawBatch, Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, Report{}, apperrors.NewDataError("xlsx", "opening workbook", err)
	}
	defer f.Close()

	report := Report{Format: "xlsx"}
	batch := &models.RawBatch{}

	sheets := f.GetSheetList()
	salesSheet := findSheet(sheets, SheetSales)
	if salesSheet == "" && len(sheets) > 0 {
		salesSheet = sheets[0]
	}

	rows, err := sheetRows(f, salesSheet)
	if err != nil {
		return nil, report, err
	}
	if batch.Sales, err = readSales(salesSheet, rows, &report); err != nil {
		return nil, report, err
	}

	if name := findSheet(sheets, SheetInventory); name != "" {
		if rows, err = sheetRows(f, name); err != nil {
			return nil, report, err
		}
		if batch.Inventory, err = readInventory(name, rows, &report); err != nil {
			return nil, report, err
		}
	}

	if name := findSheet(sheets, SheetSuppliers); name != "" {
		if rows, err = sheetRows(f, name); err != nil {
			return nil, report, err
		}
		if batch.Suppliers, err = readSuppliers(name, rows, &report); err != nil {
			return nil, report, err
		}
	}

	return batch, report, nil
}

func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewDataError("xlsx", "reading sheet "+sheet, err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewDataError("xlsx", "sheet "+sheet+" has no header row", nil)
	}
	return rows, nil
}

func findSheet(sheets []string, name string) string {
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return s
		}
	}
	return ""
}

// findIndex finds the index of the first candidate in a header row
func findIndex(header []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, item := range header {
			if strings.EqualFold(strings.TrimSpace(item), candidate) {
				return i
			}
		}
	}
	return -1
}

// columns maps a sheet's header to the indices of its fields.
type columns map[string]int

func mapColumns(sheet string, header []string, required []string, aliases map[string][]string) (columns, error) {
	cols := make(columns)
	var missing []string
	for field, names := range aliases {
		idx := findIndex(header, append([]string{field}, names...)...)
		cols[field] = idx
	}
	for _, field := range required {
		if cols[field] < 0 {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewDataError("xlsx",
			fmt.Sprintf("sheet %s is missing required columns: %s (header: %v)", sheet, strings.Join(missing, ", "), header), nil)
	}
	return cols, nil
}

func (c columns) get(row []string, field string) string {
	idx := c[field]
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func readSales(sheet string, rows [][]string, report *Report) ([]models.RawSalesRecord, error) {
	cols, err := mapColumns(sheet, rows[0], []string{"product_id", "date", "quantity_sold"}, map[string][]string{
		"product_id":    {"product", "product_code", "sku"},
		"date":          {"sale_date"},
		"quantity_sold": {"quantity", "sales", "units"},
		"revenue":       {"amount"},
		"unit_price":    {"price"},
		"channel":       nil,
	})
	if err != nil {
		return nil, err
	}

	var out []models.RawSalesRecord
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		report.Rows++
		line := i + 2

		rec := models.RawSalesRecord{ProductID: cols.get(row, "product_id"), Channel: cols.get(row, "channel")}
		if rec.ProductID == "" {
			report.skip(sheet, line, "missing product_id")
			continue
		}
		if rec.Date, err = parseDate(cols.get(row, "date")); err != nil {
			report.skip(sheet, line, err.Error())
			continue
		}
		if rec.QuantitySold, err = parseFloat(cols.get(row, "quantity_sold")); err != nil {
			report.skip(sheet, line, "quantity_sold: "+err.Error())
			continue
		}
		if rec.Revenue, err = parseOptional(cols.get(row, "revenue")); err != nil {
			report.skip(sheet, line, "revenue: "+err.Error())
			continue
		}
		if rec.UnitPrice, err = parseOptional(cols.get(row, "unit_price")); err != nil {
			report.skip(sheet, line, "unit_price: "+err.Error())
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func readInventory(sheet string, rows [][]string, report *Report) ([]models.RawInventoryRecord, error) {
	cols, err := mapColumns(sheet, rows[0], []string{"product_id", "available_quantity"}, map[string][]string{
		"product_id":         {"product", "product_code", "sku"},
		"available_quantity": {"available", "on_hand", "stock"},
		"reserved_quantity":  {"reserved"},
		"location":           {"warehouse"},
		"last_updated":       {"updated_at"},
	})
	if err != nil {
		return nil, err
	}

	var out []models.RawInventoryRecord
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		report.Rows++
		line := i + 2

		rec := models.RawInventoryRecord{ProductID: cols.get(row, "product_id"), Location: cols.get(row, "location")}
		if rec.ProductID == "" {
			report.skip(sheet, line, "missing product_id")
			continue
		}
		if rec.AvailableQuantity, err = parseFloat(cols.get(row, "available_quantity")); err != nil {
			report.skip(sheet, line, "available_quantity: "+err.Error())
			continue
		}
		if rec.ReservedQuantity, err = parseOptional(cols.get(row, "reserved_quantity")); err != nil {
			report.skip(sheet, line, "reserved_quantity: "+err.Error())
			continue
		}
		if v := cols.get(row, "last_updated"); v != "" {
			if rec.LastUpdated, err = parseDate(v); err != nil {
				report.skip(sheet, line, err.Error())
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func readSuppliers(sheet string, rows [][]string, report *Report) ([]models.RawSupplierRecord, error) {
	cols, err := mapColumns(sheet, rows[0], []string{"product_id", "lead_time_days"}, map[string][]string{
		"product_id":             {"product", "product_code", "sku"},
		"supplier_id":            {"supplier"},
		"lead_time_days":         {"lead_time"},
		"minimum_order_quantity": {"moq"},
		"cost_per_unit":          {"unit_cost", "cost"},
		"reliability_score":      {"reliability"},
	})
	if err != nil {
		return nil, err
	}

	var out []models.RawSupplierRecord
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		report.Rows++
		line := i + 2

		rec := models.RawSupplierRecord{ProductID: cols.get(row, "product_id"), SupplierID: cols.get(row, "supplier_id")}
		if rec.ProductID == "" {
			report.skip(sheet, line, "missing product_id")
			continue
		}
		if rec.LeadTimeDays, err = parseFloat(cols.get(row, "lead_time_days")); err != nil {
			report.skip(sheet, line, "lead_time_days: "+err.Error())
			continue
		}
		optional := []struct {
			field string
			dst   **float64
		}{
			{"minimum_order_quantity", &rec.MinimumOrderQuantity},
			{"cost_per_unit", &rec.CostPerUnit},
			{"reliability_score", &rec.ReliabilityScore},
		}
		ok := true
		for _, o := range optional {
			if *o.dst, err = parseOptional(cols.get(row, o.field)); err != nil {
				report.skip(sheet, line, o.field+": "+err.Error())
				ok = false
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *Report) skip(sheet string, row int, reason string) {
	r.Skipped = append(r.Skipped, SkippedRow{Sheet: sheet, Row: row, Reason: reason})
}

// parseDate accepts ISO and slash dates as text, or an Excel date serial.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseFloat(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// WriteWorkbook writes batch as a three-sheet workbook readable by LoadWorkbook.
func WriteWorkbook(w io.Writer, batch *models.RawBatch) error {
	if batch == nil {
		batch = &models.RawBatch{}
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSales); err != nil {
		return fmt.Errorf("naming sales sheet: %w", err)
	}
	for _, name := range []string{SheetInventory, SheetSuppliers} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating %s sheet: %w", name, err)
		}
	}

	sales := [][]interface{}{toRow(salesHeader)}
	for _, r := range batch.Sales {
		sales = append(sales, []interface{}{r.ProductID, formatDate(r.Date), r.QuantitySold,
			optional(r.Revenue), optional(r.UnitPrice), r.Channel})
	}
	inventory := [][]interface{}{toRow(inventoryHeader)}
	for _, r := range batch.Inventory {
		inventory = append(inventory, []interface{}{r.ProductID, r.AvailableQuantity,
			optional(r.ReservedQuantity), r.Location, formatDate(r.LastUpdated)})
	}
	suppliers := [][]interface{}{toRow(suppliersHeader)}
	for _, r := range batch.Suppliers {
		suppliers = append(suppliers, []interface{}{r.ProductID, r.SupplierID, r.LeadTimeDays,
			optional(r.MinimumOrderQuantity), optional(r.CostPerUnit), optional(r.ReliabilityScore)})
	}

	for sheet, rows := range map[string][][]interface{}{
		SheetSales:     sales,
		SheetInventory: inventory,
		SheetSuppliers: suppliers,
	} {
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// WriteTemplate writes an empty workbook with the expected headers.
func WriteTemplate(w io.Writer) error {
	return WriteWorkbook(w, nil)
}

func toRow(header []string) []interface{} {
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	return row
}

func optional(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
