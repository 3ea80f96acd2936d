package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:  db,
		now: time.Now,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Named input batches
	CREATE TABLE IF NOT EXISTS batches (
		name TEXT PRIMARY KEY,
		imported_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales (
		batch TEXT NOT NULL,
		seq INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		date TEXT NOT NULL,
		quantity_sold REAL NOT NULL,
		revenue REAL,
		unit_price REAL,
		channel TEXT,
		PRIMARY KEY (batch, seq),
		FOREIGN KEY (batch) REFERENCES batches(name) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS inventory (
		batch TEXT NOT NULL,
		seq INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		available_quantity REAL NOT NULL,
		reserved_quantity REAL,
		location TEXT,
		last_updated TEXT NOT NULL,
		PRIMARY KEY (batch, seq),
		FOREIGN KEY (batch) REFERENCES batches(name) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS suppliers (
		batch TEXT NOT NULL,
		seq INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		supplier_id TEXT,
		lead_time_days REAL NOT NULL,
		minimum_order_quantity REAL,
		cost_per_unit REAL,
		reliability_score REAL,
		PRIMARY KEY (batch, seq),
		FOREIGN KEY (batch) REFERENCES batches(name) ON DELETE CASCADE
	);

	-- Archived run results
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		batch TEXT,
		analysis_type TEXT NOT NULL,
		workflow_pattern TEXT NOT NULL,
		state TEXT NOT NULL,
		success INTEGER NOT NULL,
		confidence REAL NOT NULL,
		data_quality REAL NOT NULL,
		alerts INTEGER NOT NULL,
		recommendations INTEGER NOT NULL,
		execution_time_ms INTEGER NOT NULL,
		result TEXT NOT NULL,
		archived_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_product ON sales(batch, product_id);
	CREATE INDEX IF NOT EXISTS idx_runs_batch ON runs(batch);
	CREATE INDEX IF NOT EXISTS idx_runs_archived ON runs(archived_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Batch Methods
// ============================================================================

// SaveBatch stores a batch under name, replacing any batch of the same name.
func (s *SQLiteStore) SaveBatch(ctx context.Context, name string, batch *models.RawBatch) error {
	if name == "" {
		return apperrors.NewValidationError("batch", name, "batch name is required")
	}
	if batch == nil {
		batch = &models.RawBatch{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"sales", "inventory", "suppliers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE batch = ?", name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to clear batch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO batches (name, imported_at) VALUES (?, ?)`,
		name, s.now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	if err := insertSales(ctx, tx, name, batch.Sales); err != nil {
		return err
	}
	if err := insertInventory(ctx, tx, name, batch.Inventory); err != nil {
		return err
	}
	if err := insertSuppliers(ctx, tx, name, batch.Suppliers); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertSales(ctx context.Context, tx *sql.Tx, name string, sales []models.RawSalesRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sales (batch, seq, product_id, date, quantity_sold, revenue, unit_price, channel)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range sales {
		if _, err := stmt.ExecContext(ctx, name, i, r.ProductID, formatTime(r.Date), r.QuantitySold,
			nullFloat(r.Revenue), nullFloat(r.UnitPrice), r.Channel); err != nil {
			return fmt.Errorf("failed to insert sales record: %w", err)
		}
	}
	return nil
}

func insertInventory(ctx context.Context, tx *sql.Tx, name string, inventory []models.RawInventoryRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inventory (batch, seq, product_id, available_quantity, reserved_quantity, location, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range inventory {
		if _, err := stmt.ExecContext(ctx, name, i, r.ProductID, r.AvailableQuantity,
			nullFloat(r.ReservedQuantity), r.Location, formatTime(r.LastUpdated)); err != nil {
			return fmt.Errorf("failed to insert inventory record: %w", err)
		}
	}
	return nil
}

func insertSuppliers(ctx context.Context, tx *sql.Tx, name string, suppliers []models.RawSupplierRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO suppliers (batch, seq, product_id, supplier_id, lead_time_days, minimum_order_quantity, cost_per_unit, reliability_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range suppliers {
		if _, err := stmt.ExecContext(ctx, name, i, r.ProductID, r.SupplierID, r.LeadTimeDays,
			nullFloat(r.MinimumOrderQuantity), nullFloat(r.CostPerUnit), nullFloat(r.ReliabilityScore)); err != nil {
			return fmt.Errorf("failed to insert supplier record: %w", err)
		}
	}
	return nil
}

// LoadBatch reads a stored batch back in its original record order.
func (s *SQLiteStore) LoadBatch(ctx context.Context, name string) (*models.RawBatch, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: batch %q", apperrors.ErrDataNotFound, name)
	}

	batch := &models.RawBatch{}
	if batch.Sales, err = s.loadSales(ctx, name); err != nil {
		return nil, err
	}
	if batch.Inventory, err = s.loadInventory(ctx, name); err != nil {
		return nil, err
	}
	if batch.Suppliers, err = s.loadSuppliers(ctx, name); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *SQLiteStore) loadSales(ctx context.Context, name string) ([]models.RawSalesRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, date, quantity_sold, revenue, unit_price, channel
		FROM sales WHERE batch = ? ORDER BY seq ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var out []models.RawSalesRecord
	for rows.Next() {
		var r models.RawSalesRecord
		var date string
		var revenue, price sql.NullFloat64
		var channel sql.NullString
		if err := rows.Scan(&r.ProductID, &date, &r.QuantitySold, &revenue, &price, &channel); err != nil {
			return nil, fmt.Errorf("failed to scan sales record: %w", err)
		}
		if r.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		r.Revenue = floatPtr(revenue)
		r.UnitPrice = floatPtr(price)
		r.Channel = channel.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) loadInventory(ctx context.Context, name string) ([]models.RawInventoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, available_quantity, reserved_quantity, location, last_updated
		FROM inventory WHERE batch = ? ORDER BY seq ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	var out []models.RawInventoryRecord
	for rows.Next() {
		var r models.RawInventoryRecord
		var reserved sql.NullFloat64
		var location sql.NullString
		var updated string
		if err := rows.Scan(&r.ProductID, &r.AvailableQuantity, &reserved, &location, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan inventory record: %w", err)
		}
		if r.LastUpdated, err = parseTime(updated); err != nil {
			return nil, err
		}
		r.ReservedQuantity = floatPtr(reserved)
		r.Location = location.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) loadSuppliers(ctx context.Context, name string) ([]models.RawSupplierRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, supplier_id, lead_time_days, minimum_order_quantity, cost_per_unit, reliability_score
		FROM suppliers WHERE batch = ? ORDER BY seq ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var out []models.RawSupplierRecord
	for rows.Next() {
		var r models.RawSupplierRecord
		var supplierID sql.NullString
		var moq, cost, reliability sql.NullFloat64
		if err := rows.Scan(&r.ProductID, &supplierID, &r.LeadTimeDays, &moq, &cost, &reliability); err != nil {
			return nil, fmt.Errorf("failed to scan supplier record: %w", err)
		}
		r.SupplierID = supplierID.String
		r.MinimumOrderQuantity = floatPtr(moq)
		r.CostPerUnit = floatPtr(cost)
		r.ReliabilityScore = floatPtr(reliability)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suppliers: %w", err)
	}
	return out, nil
}

// ListBatches returns every stored batch with its record counts, newest first.
func (s *SQLiteStore) ListBatches(ctx context.Context) ([]BatchInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.name, b.imported_at,
			(SELECT COUNT(*) FROM sales WHERE batch = b.name),
			(SELECT COUNT(DISTINCT product_id) FROM sales WHERE batch = b.name),
			(SELECT COUNT(*) FROM inventory WHERE batch = b.name),
			(SELECT COUNT(*) FROM suppliers WHERE batch = b.name)
		FROM batches b
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchInfo
	for rows.Next() {
		var b BatchInfo
		var imported string
		if err := rows.Scan(&b.Name, &imported, &b.SalesRecords, &b.Products, &b.InventoryRecords, &b.SupplierRecords); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		if b.ImportedAt, err = parseTime(imported); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ImportedAt.Equal(out[j].ImportedAt) {
			return out[i].ImportedAt.After(out[j].ImportedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// DeleteBatch removes a batch and its records. Archived runs are kept.
func (s *SQLiteStore) DeleteBatch(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"sales", "inventory", "suppliers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE batch = ?", name); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: batch %q", apperrors.ErrDataNotFound, name)
	}
	return tx.Commit()
}

// ============================================================================
// Run Methods
// ============================================================================

// SaveRun archives a run result. Re-running the same inputs replaces the entry.
func (s *SQLiteStore) SaveRun(ctx context.Context, batchName string, result *models.WorkflowResult) error {
	if result == nil || result.RunID == "" {
		return apperrors.NewValidationError("run_id", "", "run result has no id")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	success := 0
	if result.Success {
		success = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, batch, analysis_type, workflow_pattern, state, success, confidence,
			data_quality, alerts, recommendations, execution_time_ms, result, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.RunID, batchName, string(result.AnalysisType), string(result.WorkflowPattern), string(result.State),
		success, result.ConfidenceScore, result.DataQualityScore, len(result.Alerts), len(result.Recommendations),
		result.ExecutionTimeMs, string(data), s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun loads the full result of an archived run.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*models.WorkflowResult, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: run %q", apperrors.ErrDataNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var result models.WorkflowResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return &result, nil
}

// ListRuns returns archived runs matching filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `SELECT run_id, batch, analysis_type, workflow_pattern, state, success, confidence, data_quality,
		alerts, recommendations, execution_time_ms, archived_at FROM runs WHERE 1=1`
	args := []interface{}{}

	if filter.BatchName != "" {
		query += " AND batch = ?"
		args = append(args, filter.BatchName)
	}
	if filter.WorkflowPattern != "" {
		query += " AND workflow_pattern = ?"
		args = append(args, string(filter.WorkflowPattern))
	}
	if filter.SuccessOnly {
		query += " AND success = 1"
	}
	if !filter.Since.IsZero() {
		query += " AND archived_at >= ?"
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	query += " ORDER BY archived_at DESC, run_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var batch sql.NullString
		var analysis, pattern, state, archived string
		var success int
		if err := rows.Scan(&r.RunID, &batch, &analysis, &pattern, &state, &success, &r.ConfidenceScore,
			&r.DataQualityScore, &r.Alerts, &r.Recommendations, &r.ExecutionTimeMs, &archived); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.BatchName = batch.String
		r.AnalysisType = models.AnalysisType(analysis)
		r.WorkflowPattern = models.WorkflowPattern(pattern)
		r.State = models.Phase(state)
		r.Success = success == 1
		if r.ArchivedAt, err = parseTime(archived); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ============================================================================
// Helpers
// ============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q: %v", apperrors.ErrDatabaseError, s, err)
	}
	return t.UTC(), nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
