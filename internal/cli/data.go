package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cryptrade/internal/store"
	"cryptrade/pkg/utils"
)

// addDataCommands adds the market-data maintenance commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newBackfillCmd(app))
	rootCmd.AddCommand(newCandlesCmd(app))
}

func newBackfillCmd(app *App) *cobra.Command {
	var (
		duration     time.Duration
		extraPeriods []string
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Collect market trades and build candle files without trading",
		Long: `Poll the public trade feed for a while, appending to the trade log and
maintaining candle files, without placing any orders. Useful for seeding
indicator history before the first live run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			e, err := buildEngine(app, extraPeriods, false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			interval := app.Config.PollInterval()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			app.Logger.Info().Str("market", e.market).Dur("for", duration).Msg("backfill started")
			for done := false; !done; {
				select {
				case <-ctx.Done():
					done = true
				case <-ticker.C:
					tick(ctx, app, e, interval)
				}
			}
			for _, cs := range e.streams {
				if err := cs.Flush(); err != nil {
					return err
				}
			}
			output.Success("backfill complete: %d trades logged", countTrades(e.tradeLog))
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "for", time.Hour, "how long to collect (0 = until interrupted)")
	cmd.Flags().StringSliceVar(&extraPeriods, "extra-periods", nil,
		"additional candle periods to maintain, e.g. 1h,4h")
	return cmd
}

func countTrades(log *store.TradeLog) int {
	trades, err := log.Load()
	if err != nil {
		return 0
	}
	return len(trades)
}

func newCandlesCmd(app *App) *cobra.Command {
	var (
		periodFlag string
		last       int
	)

	cmd := &cobra.Command{
		Use:   "candles",
		Short: "Show persisted candles for the market",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config
			if periodFlag == "" {
				periodFlag = cfg.Strategy.Period
			}
			period, err := utils.ParsePeriod(periodFlag)
			if err != nil {
				return err
			}
			rows, err := store.LoadCandles(store.CandlePath(cfg.Data.Root, cfg.Market.Name, period))
			if err != nil {
				return err
			}
			if last > 0 && last < len(rows) {
				rows = rows[len(rows)-last:]
			}
			if output.IsJSON() {
				return output.JSON(rows)
			}
			for _, c := range rows {
				line := c.StartTime().Format(time.RFC3339)
				output.Printf("%s  o %-12s c %-12s h %-12s l %-12s v %s\n",
					line, c.Open, c.Close, c.High, c.Low, c.Volume)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&periodFlag, "period", "", "candle period (default: strategy period)")
	cmd.Flags().IntVar(&last, "last", 20, "show only the most recent n candles (0 = all)")
	return cmd
}
