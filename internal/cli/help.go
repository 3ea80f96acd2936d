package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addHelpCommands adds help and documentation commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newExamplesCmd())
}

type helpEntry struct {
	cmd  string
	desc string
}

var commandCategories = []struct {
	name     string
	commands []helpEntry
}{
	{
		name: "Analysis",
		commands: []helpEntry{
			{"analyze <file>", "Run the agent pipeline over a JSON or XLSX batch"},
			{"analyze --batch <name>", "Run the pipeline over a stored batch"},
		},
	},
	{
		name: "Batches",
		commands: []helpEntry{
			{"import <file>", "Import a batch into the store"},
			{"export <batch> <file>", "Write a stored batch to JSON or XLSX"},
			{"template <file.xlsx>", "Write an empty workbook with the expected headers"},
			{"batches", "List stored batches"},
			{"batches delete <name>", "Delete a stored batch"},
		},
	},
	{
		name: "Run Archive",
		commands: []helpEntry{
			{"history", "List archived runs"},
			{"history show <run-id>", "Show an archived run"},
		},
	},
	{
		name: "Utility",
		commands: []helpEntry{
			{"config show", "Show current configuration"},
			{"config validate", "Validate configuration files"},
			{"config path", "Show configuration directory"},
			{"version", "Print version information"},
		},
	},
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List all commands by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				all := make(map[string][]string)
				for _, c := range commandCategories {
					for _, e := range c.commands {
						all[c.name] = append(all[c.name], e.cmd)
					}
				}
				return output.JSON(all)
			}

			output.Bold("Stock Agents Commands")
			output.Println()
			for _, c := range commandCategories {
				output.Printf("%s\n", output.Cyan(c.name))
				for _, e := range c.commands {
					output.Printf("  %s%s\n", PadRight(e.cmd, 26), output.DimText(e.desc))
				}
				output.Println()
			}
			output.Dim("Global flags: --config <dir>  --json  --debug  --no-color")
			return nil
		},
	}
}

var workflowExamples = []struct {
	title    string
	commands []string
}{
	{
		title: "First Run",
		commands: []string{
			"stockagents template batch.xlsx            # Empty workbook to fill in",
			"stockagents analyze batch.xlsx             # Full sequential analysis",
			"stockagents analyze batch.xlsx --show kpis,forecasts",
		},
	},
	{
		title: "Reproducible Runs",
		commands: []string{
			"stockagents analyze batch.json --reference-date 2024-03-31 --json > run.json",
			"stockagents analyze batch.json --reference-date 2024-03-31 --archive",
			"stockagents history show <run-id>",
		},
	},
	{
		title: "Stored Batches",
		commands: []string{
			"stockagents import week-12.xlsx --name week-12",
			"stockagents analyze --batch week-12 --pattern PARALLEL --archive",
			"stockagents history --batch week-12",
		},
	},
	{
		title: "Stockout Triage",
		commands: []string{
			"stockagents analyze --batch week-12 --pattern EMERGENCY --show alerts,recommendations",
		},
	},
	{
		title: "Low-Confidence Forecasts",
		commands: []string{
			"stockagents analyze --batch week-12 --pattern FEEDBACK_LOOP --horizon 60",
		},
	},
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			output.Bold("Common Workflow Examples")
			output.Println()
			for _, ex := range workflowExamples {
				output.Printf("%s\n", output.Cyan(ex.title))
				output.Println(strings.Repeat("─", len(ex.title)))
				for _, c := range ex.commands {
					output.Printf("  %s\n", c)
				}
				output.Println()
			}
			return nil
		},
	}
}

// PadRight pads a string to the right.
func PadRight(s string, length int) string {
	if n := visibleLen(s); n < length {
		return s + strings.Repeat(" ", length-n)
	}
	return s
}
