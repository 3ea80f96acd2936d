package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-agents/internal/batch"
	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
)

// addAnalysisCommands adds the pipeline commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
}

// analyzeFlags mirrors models.RunConfig plus the source and output options.
type analyzeFlags struct {
	batchName     string
	analysisType  string
	pattern       string
	horizon       int
	serviceLevel  float64
	external      bool
	referenceDate string
	archive       bool
	archiveAs     string
	timeout       time.Duration
	sections      []string
}

func newAnalyzeCmd(app *App) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Run the agent pipeline over a batch",
		Long: `Run the agent pipeline over a sales, inventory and supplier batch.

The batch is read from a .json or .xlsx file, or from a batch previously
imported into the store with --batch. Unset run options fall back to the
[pipeline] defaults in config.toml.

Analysis types:   FULL_ANALYSIS, PATTERN_DETECTION, SEGMENTATION, TREND_ANALYSIS
Workflow patterns: SEQUENTIAL, PARALLEL, FEEDBACK_LOOP, EMERGENCY`,
		Example: `  stockagents analyze sales.xlsx
  stockagents analyze --batch week-12 --pattern PARALLEL --horizon 60
  stockagents analyze batch.json --reference-date 2024-03-31 --archive
  stockagents analyze batch.json --show alerts,forecasts --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			run, err := f.runConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if f.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, f.timeout)
				defer cancel()
			}

			raw, source, err := loadBatch(ctx, app, output, args, f.batchName)
			if err != nil {
				return err
			}

			result := app.Coordinator.Run(ctx, app.Pipeline(), raw, run)

			if f.archive {
				name := source
				if f.archiveAs != "" {
					name = f.archiveAs
				}
				if err := archiveRun(ctx, app, name, &result); err != nil {
					return err
				}
				if !output.IsJSON() {
					output.Dim("Archived run %s under batch %q", result.RunID, name)
				}
			}

			if output.IsJSON() {
				if err := output.JSON(result); err != nil {
					return err
				}
			} else {
				renderResult(output, &result, f.sections, app.Config.UI.DateFormat)
			}

			if !result.Success {
				return fmt.Errorf("analysis failed: %s", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.batchName, "batch", "b", "", "analyze a batch from the store instead of a file")
	cmd.Flags().StringVarP(&f.analysisType, "analysis", "a", "", "analysis type (default FULL_ANALYSIS)")
	cmd.Flags().StringVarP(&f.pattern, "pattern", "p", "", "workflow pattern (default SEQUENTIAL)")
	cmd.Flags().IntVar(&f.horizon, "horizon", 0, "forecast horizon in days, 1-365 (default from config)")
	cmd.Flags().Float64Var(&f.serviceLevel, "service-level", 0, "target service level in (0.5, 0.9999) (default from config)")
	cmd.Flags().BoolVar(&f.external, "external", false, "apply day-of-week external factors to forecasts")
	cmd.Flags().StringVar(&f.referenceDate, "reference-date", "", "analysis date YYYY-MM-DD (default: day after the last sale)")
	cmd.Flags().BoolVar(&f.archive, "archive", false, "save the result to the run archive")
	cmd.Flags().StringVar(&f.archiveAs, "archive-as", "", "batch name to archive under (default: file name or --batch)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "overall run deadline, e.g. 30s")
	cmd.Flags().StringSliceVar(&f.sections, "show", defaultSections, "report sections: "+strings.Join(allSections, ","))

	return cmd
}

// runConfig builds the run options from the flags; zero values are left for
// the coordinator to default.
func (f analyzeFlags) runConfig() (models.RunConfig, error) {
	run := models.RunConfig{
		AnalysisType:           models.AnalysisType(strings.ToUpper(f.analysisType)),
		WorkflowPattern:        models.WorkflowPattern(strings.ToUpper(f.pattern)),
		ForecastHorizonDays:    f.horizon,
		ServiceLevel:           f.serviceLevel,
		IncludeExternalFactors: f.external,
	}
	if f.referenceDate != "" {
		ref, err := time.Parse("2006-01-02", f.referenceDate)
		if err != nil {
			return run, apperrors.NewValidationError("reference-date", f.referenceDate, "expected YYYY-MM-DD")
		}
		run.ReferenceDate = &ref
	}
	for _, s := range f.sections {
		if !isSection(s) {
			return run, apperrors.NewValidationError("show", s, "unknown report section")
		}
	}
	return run, nil
}

// loadBatch reads the batch from a file argument or the store. It returns the
// batch and the name it is known by.
func loadBatch(ctx context.Context, app *App, output *Output, args []string, batchName string) (*models.RawBatch, string, error) {
	switch {
	case len(args) == 1 && batchName != "":
		return nil, "", apperrors.NewValidationError("batch", batchName, "give either a file or --batch, not both")

	case len(args) == 1:
		raw, report, err := batch.LoadFile(args[0])
		if err != nil {
			return nil, "", err
		}
		reportSkipped(app, output, args[0], report)
		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		return raw, name, nil

	case batchName != "":
		s, err := app.Store()
		if err != nil {
			return nil, "", err
		}
		raw, err := s.LoadBatch(ctx, batchName)
		if err != nil {
			return nil, "", err
		}
		return raw, batchName, nil

	default:
		return nil, "", apperrors.NewValidationError("batch", "", "a batch file or --batch name is required")
	}
}

// reportSkipped logs rows a loader left out and, in text mode, warns about them.
func reportSkipped(app *App, output *Output, path string, report batch.Report) {
	for _, row := range report.Skipped {
		app.Logger.Warn().
			Str("file", path).
			Str("sheet", row.Sheet).
			Int("row", row.Row).
			Str("reason", row.Reason).
			Msg("Skipped batch row")
	}
	if len(report.Skipped) > 0 && !output.IsJSON() {
		output.Warning("⚠ %d of %d rows in %s were skipped", len(report.Skipped), report.Rows, filepath.Base(path))
	}
}

func archiveRun(ctx context.Context, app *App, batchName string, result *models.WorkflowResult) error {
	s, err := app.Store()
	if err != nil {
		return err
	}
	if err := s.SaveRun(ctx, batchName, result); err != nil {
		return apperrors.Wrap(err, "archiving run")
	}
	return nil
}
