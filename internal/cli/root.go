// Package cli provides the command-line interface for the news feature pipeline.
package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nse-newsfeatures/internal/config"
	"nse-newsfeatures/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-05-01"
)

// App holds the application dependencies shared by the commands.
type App struct {
	ConfigDir string
	Config    *config.Config
	Logger    zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "newsfeatures",
		Short: "NSE daily news feature pipeline",
		Long: `newsfeatures collects the day's market news, tags it with symbols, events and
sentiment, and joins the per-symbol news aggregates with as-of price indicators.

Stages run in order: fetch -> nlp -> features. Use 'newsfeatures run' for all three.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/nse-newsfeatures)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addPipelineCommands(rootCmd, app)

	return rootCmd
}

// init loads configuration and builds the logger once per invocation.
func (a *App) init(cmd *cobra.Command) error {
	a.ConfigDir, _ = cmd.Flags().GetString("config")
	if a.ConfigDir == "" {
		a.ConfigDir = config.DefaultConfigDir()
	}

	cfg, err := config.Load(a.ConfigDir)
	if err != nil {
		return err
	}
	a.Config = cfg

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.File
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	} else {
		logCfg.FilePath = filepath.Join(a.ConfigDir, "logs", "newsfeatures.log")
	}
	a.Logger = logging.NewLoggerWithConfig(logCfg)

	// Handle debug flag
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	return nil
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
		// version works without a config directory
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("newsfeatures v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.ConfigDir})
			} else {
				output.Println(app.ConfigDir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			resolver, err := app.symbolResolver()
			if err != nil {
				output.Error("Symbol index unusable: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"valid": true, "symbols": resolver.Len()})
			}
			output.Success("✓ Configuration is valid (%d symbols indexed)", resolver.Len())
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("General")
	output.Printf("  Timezone:        %s\n", cfg.Timezone)
	output.Printf("  Data Dir:        %s\n", cfg.Storage.DataDir)
	output.Printf("  Database:        %s\n", cfg.Storage.DBPath)
	output.Printf("  Symbol Index:    %s\n", cfg.Reference.SymbolsCSV)
	output.Println()

	output.Bold("Sources")
	output.Printf("  Feeds:           %d\n", len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		output.Dim("    %s", f)
	}
	output.Printf("  Announcements:   %v\n", cfg.Announcements.Enabled)
	output.Println()

	output.Bold("NLP")
	output.Printf("  Events:          %v\n", cfg.NLP.Events.Enabled)
	output.Printf("  Max Symbols:     %d\n", cfg.NLP.TickerMap.MaxSymbols)
	output.Printf("  Sentiment:       %s (threshold %.2f)\n", cfg.NLP.Sentiment.Engine, cfg.NLP.Sentiment.Threshold)
	output.Println()

	output.Bold("Features")
	output.Printf("  Lookback:        %d days\n", cfg.Features.LookbackDays)
	ind := cfg.Features.Indicators
	output.Printf("  RSI/ATR:         %d/%d\n", ind.RSIPeriod, ind.ATRPeriod)
	output.Printf("  MACD:            %d/%d/%d\n", ind.MACDFast, ind.MACDSlow, ind.MACDSignal)
	output.Println()

	output.Bold("Prices")
	output.Printf("  Provider:        %s\n", cfg.Prices.Provider)
	output.Printf("  Rate Limit:      %d/min\n", cfg.Prices.MaxRequestPerMinute)
	output.Printf("  Concurrency:     %d\n", cfg.Prices.Concurrency)
	output.Printf("  Candle Cache:    %v\n", cfg.Prices.Cache)
}
