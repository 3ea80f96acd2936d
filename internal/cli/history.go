package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
	"stock-agents/internal/store"
)

// addHistoryCommands adds the run archive commands.
func addHistoryCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHistoryCmd(app))
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		filter  store.RunFilter
		pattern string
		since   string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs",
		Long:  "List runs saved with 'analyze --archive', newest first.",
		Example: `  stockagents history
  stockagents history --batch week-12 --success
  stockagents history show 6f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			filter.WorkflowPattern = models.WorkflowPattern(strings.ToUpper(pattern))
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return apperrors.NewValidationError("since", since, "expected YYYY-MM-DD")
				}
				filter.Since = t
			}

			s, err := app.Store()
			if err != nil {
				return err
			}
			runs, err := s.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Dim("No archived runs.")
				return nil
			}
			table := NewTable(output, "RUN", "BATCH", "WORKFLOW", "ANALYSIS", "OUTCOME", "CONF", "ALERTS", "RECS", "ARCHIVED")
			for _, r := range runs {
				table.AddRow(
					r.RunID,
					r.BatchName,
					string(r.WorkflowPattern),
					string(r.AnalysisType),
					output.Outcome(r.Success),
					FormatConfidence(r.ConfidenceScore),
					fmt.Sprintf("%d", r.Alerts),
					fmt.Sprintf("%d", r.Recommendations),
					FormatDateTime(r.ArchivedAt),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter.BatchName, "batch", "b", "", "only runs of this batch")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "only runs with this workflow pattern")
	cmd.Flags().BoolVar(&filter.SuccessOnly, "success", false, "only successful runs")
	cmd.Flags().StringVar(&since, "since", "", "only runs archived on or after YYYY-MM-DD")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "l", 20, "maximum runs to list, 0 for all")

	cmd.AddCommand(newHistoryShowCmd(app))
	return cmd
}

func newHistoryShowCmd(app *App) *cobra.Command {
	var sections []string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			for _, s := range sections {
				if !isSection(s) {
					return apperrors.NewValidationError("show", s, "unknown report section")
				}
			}

			s, err := app.Store()
			if err != nil {
				return err
			}
			result, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			renderResult(output, result, sections, app.Config.UI.DateFormat)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&sections, "show", allSections, "report sections: "+strings.Join(allSections, ","))
	return cmd
}
