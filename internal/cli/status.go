package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cryptrade/internal/store"
	"cryptrade/pkg/utils"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show market data and journal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			period, err := utils.ParsePeriod(cfg.Strategy.Period)
			if err != nil {
				return err
			}
			candleRows, err := store.LoadCandles(store.CandlePath(cfg.Data.Root, cfg.Market.Name, period))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				payload := map[string]interface{}{
					"market":  cfg.Market.Name,
					"period":  period.String(),
					"candles": len(candleRows),
				}
				if len(candleRows) > 0 {
					payload["last_candle"] = candleRows[len(candleRows)-1]
				}
				if app.Journal != nil {
					if points, err := app.Journal.EquitySeries(cfg.Market.Name, 0); err == nil && len(points) > 0 {
						payload["equity"] = points[len(points)-1].Equity
					}
				}
				return output.JSON(payload)
			}

			output.Bold("Market %s, period %s", cfg.Market.Name, period)
			output.Printf("  candles on disk: %d\n", len(candleRows))
			if len(candleRows) > 0 {
				last := candleRows[len(candleRows)-1]
				output.Printf("  last candle:     %s  close %s  volume %s\n",
					last.StartTime().Format(time.RFC3339), last.Close, last.Volume)
			}

			if app.Journal == nil {
				output.Warning("journal unavailable")
				return nil
			}
			points, err := app.Journal.EquitySeries(cfg.Market.Name, 0)
			if err != nil {
				return err
			}
			if len(points) == 0 {
				output.Printf("  no equity snapshots recorded\n")
				return nil
			}
			last := points[len(points)-1]
			output.Printf("  equity:          %s (as of %s)\n", last.Equity,
				time.Unix(last.Timestamp, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func newTradesCmd(app *App) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List journalled own trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Journal == nil {
				return fmt.Errorf("journal unavailable")
			}
			cutoff := time.Now().Add(-since).Unix()
			trades, err := app.Journal.OwnTrades(app.Config.Market.Name, cutoff)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Printf("no trades in the last %s\n", since)
				return nil
			}
			for _, t := range trades {
				line := fmt.Sprintf("%s  %-4s %12s @ %-12s %s",
					time.Unix(t.Timestamp, 0).UTC().Format(time.RFC3339),
					t.Side, t.Amount, t.Price, t.Type)
				if t.Side == "buy" {
					output.Success("%s", line)
				} else {
					output.Error("%s", line)
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 30*24*time.Hour, "how far back to list")
	return cmd
}
