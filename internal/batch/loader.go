// Package batch reads input batches from JSON and spreadsheet files.
package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
)

// SkippedRow is a spreadsheet row the loader could not turn into a record.
type SkippedRow struct {
	Sheet  string
	Row    int
	Reason string
}

// Report describes what a load read and what it had to leave out.
type Report struct {
	Format  string
	Rows    int
	Skipped []SkippedRow
}

// LoadFile reads a batch from path, choosing the format from its extension.
func LoadFile(path string) (*models.RawBatch, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, apperrors.NewDataError(path, "opening batch file", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(f)
	case ".xlsx":
		return LoadWorkbook(f)
	default:
		return nil, Report{}, apperrors.NewDataError(path, "choosing a loader", apperrors.ErrUnsupportedFormat)
	}
}

// LoadJSON decodes a batch encoded as a models.RawBatch document.
func LoadJSON(r io.Reader) (*models.RawBatch, Report, error) {
	var batch models.RawBatch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&batch); err != nil {
		return nil, Report{}, apperrors.NewDataError("json", "decoding batch", err)
	}
	return &batch, Report{
		Format: "json",
		Rows:   len(batch.Sales) + len(batch.Inventory) + len(batch.Suppliers),
	}, nil
}

// SaveJSON writes a batch as indented JSON.
func SaveJSON(w io.Writer, batch *models.RawBatch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	return nil
}
