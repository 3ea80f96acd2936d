// Package store provides persistence for input batches and archived runs.
package store

import (
	"context"
	"time"

	"stock-agents/internal/models"
)

// DataStore persists named input batches and the results of analysis runs.
type DataStore interface {
	// Batches
	SaveBatch(ctx context.Context, name string, batch *models.RawBatch) error
	LoadBatch(ctx context.Context, name string) (*models.RawBatch, error)
	ListBatches(ctx context.Context) ([]BatchInfo, error)
	DeleteBatch(ctx context.Context, name string) error

	// Runs
	SaveRun(ctx context.Context, batchName string, result *models.WorkflowResult) error
	GetRun(ctx context.Context, runID string) (*models.WorkflowResult, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)

	// Lifecycle
	Close() error
}

// BatchInfo describes a stored batch.
type BatchInfo struct {
	Name             string
	Products         int
	SalesRecords     int
	InventoryRecords int
	SupplierRecords  int
	ImportedAt       time.Time
}

// RunFilter represents filters for querying archived runs.
type RunFilter struct {
	BatchName       string
	WorkflowPattern models.WorkflowPattern
	SuccessOnly     bool
	Since           time.Time
	Limit           int
}

// RunSummary is the listing view of an archived run.
type RunSummary struct {
	RunID            string
	BatchName        string
	AnalysisType     models.AnalysisType
	WorkflowPattern  models.WorkflowPattern
	State            models.Phase
	Success          bool
	ConfidenceScore  float64
	DataQualityScore float64
	Alerts           int
	Recommendations  int
	ExecutionTimeMs  int64
	ArchivedAt       time.Time
}
