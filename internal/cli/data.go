package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"stock-agents/internal/batch"
	apperrors "stock-agents/internal/errors"
)

// addDataCommands adds batch import/export and store management commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newTemplateCmd())
	rootCmd.AddCommand(newBatchesCmd(app))
}

func newImportCmd(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON or XLSX batch into the store",
		Long: `Import a sales, inventory and supplier batch into the local store so it can
be analyzed later with 'analyze --batch'. Importing under an existing name
replaces that batch.`,
		Example: `  stockagents import week-12.xlsx
  stockagents import export.json --name march`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := args[0]
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			raw, report, err := batch.LoadFile(path)
			if err != nil {
				return err
			}

			s, err := app.Store()
			if err != nil {
				return err
			}
			if err := s.SaveBatch(cmd.Context(), name, raw); err != nil {
				return err
			}
			app.Logger.Info().
				Str("batch", name).
				Str("format", report.Format).
				Int("sales", len(raw.Sales)).
				Int("inventory", len(raw.Inventory)).
				Int("suppliers", len(raw.Suppliers)).
				Int("skipped", len(report.Skipped)).
				Msg("Batch imported")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"batch":     name,
					"format":    report.Format,
					"sales":     len(raw.Sales),
					"inventory": len(raw.Inventory),
					"suppliers": len(raw.Suppliers),
					"skipped":   report.Skipped,
				})
			}

			output.Success("✓ Imported %q from %s", name, filepath.Base(path))
			output.Printf("  Sales:     %d\n", len(raw.Sales))
			output.Printf("  Inventory: %d\n", len(raw.Inventory))
			output.Printf("  Suppliers: %d\n", len(raw.Suppliers))
			if len(report.Skipped) > 0 {
				output.Println()
				output.Warning("⚠ %d rows skipped", len(report.Skipped))
				table := NewTable(output, "SHEET", "ROW", "REASON")
				for _, row := range report.Skipped {
					table.AddRow(row.Sheet, fmt.Sprintf("%d", row.Row), row.Reason)
				}
				table.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "batch name (default: file name without extension)")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export <batch> <file>",
		Short: "Export a stored batch to JSON or XLSX",
		Example: `  stockagents export week-12 week-12.xlsx
  stockagents export week-12 week-12.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			name, path := args[0], args[1]

			s, err := app.Store()
			if err != nil {
				return err
			}
			raw, err := s.LoadBatch(cmd.Context(), name)
			if err != nil {
				return err
			}

			f, err := os.Create(path)
			if err != nil {
				return apperrors.Wrapf(err, "creating %s", path)
			}
			defer f.Close()

			switch strings.ToLower(filepath.Ext(path)) {
			case ".json":
				err = batch.SaveJSON(f, raw)
			case ".xlsx":
				err = batch.WriteWorkbook(f, raw)
			default:
				err = apperrors.NewDataError(path, "choosing a writer", apperrors.ErrUnsupportedFormat)
			}
			if err != nil {
				f.Close()
				os.Remove(path)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"batch": name, "file": path})
			}
			output.Success("✓ Exported %q to %s", name, path)
			return nil
		},
	}
}

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template <file.xlsx>",
		Short: "Write an empty XLSX batch with the expected sheets and headers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			f, err := os.Create(args[0])
			if err != nil {
				return apperrors.Wrapf(err, "creating %s", args[0])
			}
			defer f.Close()
			if err := batch.WriteTemplate(f); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"file": args[0]})
			}
			output.Success("✓ Template written to %s", args[0])
			return nil
		},
	}
}

func newBatchesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List stored batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}
			batches, err := s.ListBatches(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(batches)
			}
			if len(batches) == 0 {
				output.Dim("No batches imported yet. Use 'stockagents import <file>'.")
				return nil
			}
			table := NewTable(output, "NAME", "PRODUCTS", "SALES", "INVENTORY", "SUPPLIERS", "IMPORTED")
			for _, b := range batches {
				table.AddRow(
					b.Name,
					fmt.Sprintf("%d", b.Products),
					fmt.Sprintf("%d", b.SalesRecords),
					fmt.Sprintf("%d", b.InventoryRecords),
					fmt.Sprintf("%d", b.SupplierRecords),
					FormatDateTime(b.ImportedAt),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}
			if err := s.DeleteBatch(cmd.Context(), args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Deleted batch %q", args[0])
			return nil
		},
	})

	return cmd
}
