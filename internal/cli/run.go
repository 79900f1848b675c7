package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cryptrade/internal/candles"
	"cryptrade/internal/config"
	"cryptrade/internal/feed"
	"cryptrade/internal/indicators"
	"cryptrade/internal/logging"
	"cryptrade/internal/store"
	"cryptrade/internal/strategy"
	"cryptrade/internal/stream"
	"cryptrade/internal/trading"
	"cryptrade/pkg/utils"
)

// addTradingCommands adds the live-engine commands.
func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newTradesCmd(app))
}

// engine bundles the wired components of one live market session.
type engine struct {
	market   string
	tradeLog *store.TradeLog
	feed     *feed.TradeStream
	streams  []*candles.CandleStream
	trader   *trading.Trader
	hub      *stream.Hub
}

// buildEngine wires feed, candle streams, strategy and trader for the
// configured market. extraPeriods adds candle streams maintained alongside
// the strategy period, sharing the same trade feed.
func buildEngine(app *App, extraPeriods []string, withTrader bool) (*engine, error) {
	cfg := app.Config
	exchangeName, base, quote, err := config.SplitMarket(cfg.Market.Name)
	if err != nil {
		return nil, err
	}
	period, err := utils.ParsePeriod(cfg.Strategy.Period)
	if err != nil {
		return nil, err
	}
	symbol := strings.ToLower(base + quote)

	tradeLog, err := store.NewTradeLog(cfg.Data.Root, cfg.Market.Name)
	if err != nil {
		return nil, err
	}
	tradeFeed, err := feed.NewTradeStream(app.Client, symbol, exchangeName, tradeLog, app.Logger)
	if err != nil {
		return nil, err
	}

	hub := stream.NewHub()
	hub.OnCandleClosed(func(ev stream.CandleClosed) {
		for _, c := range ev.Candles {
			app.Logger.Info().Str("period", ev.Period.String()).
				Time("start", c.StartTime()).
				Str("close", c.Close.String()).Str("volume", c.Volume.String()).
				Msg("candle closed")
		}
	})

	periods := []utils.Period{period}
	for _, p := range extraPeriods {
		extra, err := utils.ParsePeriod(p)
		if err != nil {
			return nil, err
		}
		if extra != period {
			periods = append(periods, extra)
		}
	}

	var streams []*candles.CandleStream
	for _, p := range periods {
		path := store.CandlePath(cfg.Data.Root, cfg.Market.Name, p)
		cs, err := candles.NewCandleStream(p, path, tradeLog, hub,
			logging.WithPeriod(app.Logger, p.String()))
		if err != nil {
			return nil, err
		}
		streams = append(streams, cs)
	}

	e := &engine{
		market:   cfg.Market.Name,
		tradeLog: tradeLog,
		feed:     tradeFeed,
		streams:  streams,
		hub:      hub,
	}
	if !withTrader {
		return e, nil
	}

	strat, err := buildStrategy(app)
	if err != nil {
		return nil, err
	}
	e.trader = trading.New(trading.Config{
		Market:       cfg.Market.Name,
		Symbol:       symbol,
		Base:         base,
		Quote:        quote,
		Exchange:     exchangeName,
		RequeryTicks: cfg.Market.RequeryTicks,
	}, app.Client, strat, streams[0], tradeFeed, app.Journal, hub,
		logging.WithMarket(app.Logger, cfg.Market.Name))
	return e, nil
}

// buildStrategy assembles the condition strategy from the configured
// average type and windows: buy on a confirmed uptrend (unless freshly
// stopped out), sell on a confirmed downtrend while long.
func buildStrategy(app *App) (*strategy.Strategy, error) {
	cfg := app.Config.Strategy

	var up, down indicators.Comparison
	switch cfg.AverageType {
	case "sma":
		fast, slow := indicators.NewSMA(cfg.FastWindow), indicators.NewSMA(cfg.SlowWindow)
		up, down = indicators.GreaterThan(fast, slow), indicators.LessThan(fast, slow)
	case "ema":
		fast, slow := indicators.NewEMA(cfg.FastWindow), indicators.NewEMA(cfg.SlowWindow)
		up, down = indicators.GreaterThan(fast, slow), indicators.LessThan(fast, slow)
	case "macd":
		macd := indicators.NewMACD(indicators.NewEMA(cfg.FastWindow), indicators.NewEMA(cfg.SlowWindow))
		up, down = indicators.Above(macd, decimal.Zero), indicators.Below(macd, decimal.Zero)
	default:
		return nil, fmt.Errorf("unknown average type %q (want sma, ema or macd)", cfg.AverageType)
	}

	trendUp := strategy.Trend("trend-up", up)
	trendDown := strategy.Trend("trend-down", down)

	return strategy.New(app.Logger).
		AddBuyCondition(trendUp.AndNot(strategy.RecentStoploss(trendUp, cfg.ReboundCount))).
		AddSellCondition(trendDown.And(strategy.LongPosition())).
		SetRisk(decimal.NewFromFloat(cfg.Risk)).
		SetStoploss(decimal.NewFromFloat(cfg.Stoploss)).
		SetCommission(decimal.NewFromFloat(cfg.Commission)), nil
}

func newRunCmd(app *App) *cobra.Command {
	var extraPeriods []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live trading engine",
		Long: `Run the trading engine against the configured market.

One tick fires per poll interval: the trade feed is polled, every candle
stream is updated, then the order-execution engine takes one step. Exactly
one instance may run per market; concurrent instances corrupt the shared
trade and candle logs.

On an exchange-reported error the engine halts new activity until the
message is acknowledged; send SIGUSR1 to acknowledge and resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger = app.Logger.With().Str("session", uuid.NewString()).Logger()
			e, err := buildEngine(app, extraPeriods, true)
			if err != nil {
				return err
			}
			e.hub.OnQuarantineRaised(func(ev stream.QuarantineRaised) {
				app.Logger.Error().Str("message", ev.Message).
					Msg("trading halted; send SIGUSR1 to acknowledge")
			})
			return runLoop(app, e)
		},
	}
	cmd.Flags().StringSliceVar(&extraPeriods, "extra-periods", nil,
		"additional candle periods to maintain, e.g. 1h,4h")
	return cmd
}

func runLoop(app *App, e *engine) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ack := make(chan os.Signal, 1)
	signal.Notify(ack, syscall.SIGUSR1)
	defer signal.Stop(ack)

	interval := app.Config.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	app.Logger.Info().Str("market", e.market).Dur("interval", interval).Msg("engine started")
	for {
		select {
		case <-ctx.Done():
			app.Logger.Info().Msg("shutting down")
			for _, cs := range e.streams {
				if err := cs.Flush(); err != nil {
					app.Logger.Error().Err(err).Msg("flushing candles failed")
				}
			}
			return nil
		case <-ack:
			e.trader.ClearMessages()
		case <-ticker.C:
			tick(ctx, app, e, interval)
		}
	}
}

// tick runs one engine cycle: feed poll, candle updates, trader step.
func tick(ctx context.Context, app *App, e *engine, timeout time.Duration) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.feed.Update(tctx); err != nil {
		app.Logger.Warn().Err(err).Msg("feed poll failed")
	}
	fresh := e.feed.NewTrades()
	for _, cs := range e.streams {
		if _, err := cs.Update(fresh); err != nil {
			app.Logger.Error().Err(err).Msg("candle update failed")
		}
	}
	if e.trader != nil {
		e.trader.Tick(tctx, fresh)
	}
}
