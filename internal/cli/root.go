package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cryptrade/internal/config"
	"cryptrade/internal/exchange"
	"cryptrade/internal/logging"
	"cryptrade/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-08-28"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Client  exchange.Client
	Journal *store.Journal
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.Client = exchange.NewBitfinex(exchange.BitfinexConfig{
		APIKey:    cfg.Credentials.APIKey,
		APISecret: cfg.Credentials.APISecret,
	}, logger)
	if cfg.Credentials.APIKey == "" {
		logger.Debug().Msg("no API credentials, authenticated calls will fail")
	}

	journal, err := store.OpenJournal(cfg.Data.Root)
	if err != nil {
		logger.Warn().Err(err).Msg("journal unavailable, reporting commands disabled")
	} else {
		app.Journal = journal
	}

	rootCmd := &cobra.Command{
		Use:   "cryptrade",
		Short: "cryptrade - automated spot trading for a single crypto market",
		Long: `cryptrade runs an automated spot-trading engine against one exchange
market: it aggregates trades into candles, evaluates moving-average
conditions and manages orders with a trailing stop-loss.

Use 'cryptrade help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/cryptrade)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addTradingCommands(rootCmd, app)

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
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
				return
			}
			output.Printf("cryptrade %s (built %s)\n", Version, BuildDate)
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			cfg := app.Config
			if output.IsJSON() {
				output.JSON(map[string]interface{}{
					"market":   cfg.Market,
					"strategy": cfg.Strategy,
					"data":     cfg.Data,
				})
				return
			}
			output.Bold("Market")
			output.Printf("  name:          %s\n", cfg.Market.Name)
			output.Printf("  poll seconds:  %d\n", cfg.Market.PollSeconds)
			output.Printf("  requery ticks: %d\n", cfg.Market.RequeryTicks)
			output.Bold("Strategy")
			output.Printf("  period:        %s\n", cfg.Strategy.Period)
			output.Printf("  average:       %s %d/%d\n", cfg.Strategy.AverageType,
				cfg.Strategy.FastWindow, cfg.Strategy.SlowWindow)
			output.Printf("  risk:          %.4f\n", cfg.Strategy.Risk)
			output.Printf("  stoploss:      %.4f\n", cfg.Strategy.Stoploss)
			output.Printf("  commission:    %.4f\n", cfg.Strategy.Commission)
			output.Printf("  rebound count: %d\n", cfg.Strategy.ReboundCount)
			output.Bold("Data")
			output.Printf("  root:          %s\n", cfg.Data.Root)
		},
	}
}
