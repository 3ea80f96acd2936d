package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-agents/internal/config"
	"stock-agents/internal/coordinator"
	"stock-agents/internal/logging"
	"stock-agents/internal/resilience"
	"stock-agents/internal/store"
	"stock-agents/internal/tracing"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2024-04-01"
)

// App holds the application dependencies.
type App struct {
	ConfigDir   string
	Config      *config.Config
	Logger      zerolog.Logger
	Tracing     *tracing.Provider
	Coordinator *coordinator.Coordinator
	Clock       resilience.Clock

	store store.DataStore
}

// NewApp returns an App with built-in defaults. The root command replaces
// them with the loaded configuration before any subcommand runs.
func NewApp() *App {
	cfg := config.Default()
	return &App{
		Config:  cfg,
		Logger:  logging.NewLogger(),
		Tracing: tracing.Disabled(),
		Clock:   time.Now,
	}
}

// init loads configuration from dir and builds the logger, tracer and coordinator.
func (a *App) init(dir string, debug bool) error {
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	a.ConfigDir = dir
	a.Config = cfg
	a.Logger = logging.NewLoggerWithConfig(logging.FromConfig(cfg.Logging))

	provider, err := tracing.New(cfg.Tracing, Version, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize tracing, spans disabled")
		provider = tracing.Disabled()
	}
	a.Tracing = provider
	a.Coordinator = coordinator.New(cfg)

	a.Logger.Debug().
		Str("config_dir", dir).
		Int("workers", cfg.Agents.Workers).
		Bool("tracing", provider.Enabled()).
		Msg("Application initialized")
	return nil
}

// Store opens the SQLite store on first use.
func (a *App) Store() (store.DataStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	path := a.Config.StorePath(a.ConfigDir)
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	a.store = s
	return s, nil
}

// Pipeline returns the per-run context handed to the coordinator.
func (a *App) Pipeline() coordinator.PipelineContext {
	logger := a.Logger
	return coordinator.PipelineContext{
		Logger: &logger,
		Clock:  a.Clock,
		Tracer: a.Tracing.Tracer(),
	}
}

// Close releases the store and flushes pending spans.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
		a.store = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Tracing.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to flush spans")
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockagents",
		Short: "Stock Agents - inventory and demand analytics pipeline",
		Long: `Stock Agents runs sales, inventory and supplier batches through a pipeline of
analysis agents: ingestion, demand patterns, segmentation, forecasting,
inventory optimization, alerting, recommendations and KPIs.

Batches are read from JSON or XLSX files, or from batches imported into the
local SQLite store. Runs can be archived and reviewed later.

Use 'stockagents help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			if err := app.init(dir, debug); err != nil {
				return err
			}
			if !app.Config.UI.ColorEnabled {
				_ = cmd.Flags().Set("no-color", "true")
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-agents)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	addCoreCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addHistoryCommands(rootCmd, app)
	addHelpCommands(rootCmd)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Stock Agents v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the pipeline configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"path":  app.ConfigDir,
					"store": app.Config.StorePath(app.ConfigDir),
				})
			}
			output.Println(app.ConfigDir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, app *App) {
	cfg := app.Config

	output.Bold("Pipeline")
	output.Printf("  Default Horizon:   %d days\n", cfg.Pipeline.DefaultHorizonDays)
	output.Printf("  Service Level:     %s\n", FormatPercent(cfg.Pipeline.DefaultServiceLevel))
	output.Printf("  Feedback Trigger:  %s confidence\n", FormatConfidence(cfg.Pipeline.FeedbackConfidenceThreshold))
	output.Printf("  Feedback Widen:    x%.2f\n", cfg.Pipeline.FeedbackWidenFactor)
	output.Printf("  Emergency Budget:  %s\n", FormatElapsed(int64(cfg.Pipeline.EmergencyBudgetMs)))
	output.Println()

	output.Bold("Optimization")
	output.Printf("  Default Lead Time: %.0f days\n", cfg.Optimization.DefaultLeadTimeDays)
	output.Printf("  Holding Cost Rate: %s / year\n", FormatPercent(cfg.Optimization.HoldingCostRate))
	output.Println()

	output.Bold("Agents")
	output.Printf("  Workers:           %d\n", cfg.Agents.Workers)
	output.Printf("  Retry Grace:       %s\n", cfg.Agents.RetryGrace())
	table := NewTable(output, "AGENT", "TIMEOUT", "WEIGHT")
	for _, name := range config.AgentNames() {
		table.AddRow(name, cfg.Agents.TimeoutFor(name).String(), FormatConfidence(cfg.Agents.WeightFor(name)))
	}
	table.Render()
	output.Println()

	output.Bold("Storage & Logging")
	output.Printf("  Store:             %s\n", cfg.StorePath(app.ConfigDir))
	output.Printf("  Log Level:         %s\n", cfg.Logging.Level)
	if cfg.Logging.File != "" {
		output.Printf("  Log File:          %s\n", cfg.Logging.File)
	}
	output.Printf("  Tracing:           %v\n", cfg.Tracing.Enabled)
}
