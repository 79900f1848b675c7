// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"cryptrade/pkg/utils"
)

// Config holds all application configuration. It is an explicit value passed
// at construction; nothing in the engine reads process-wide mutable state.
type Config struct {
	Market      MarketConfig      `mapstructure:"market"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Data        DataConfig        `mapstructure:"data"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

// MarketConfig identifies the traded market and the polling cadence.
type MarketConfig struct {
	// Name is "<exchange>_<base>_<quote>", e.g. "bitfinex_BTC_USD".
	Name         string `mapstructure:"name"`
	PollSeconds  int    `mapstructure:"poll_seconds"`
	RequeryTicks int    `mapstructure:"requery_ticks"`
}

// StrategyConfig holds the trading strategy parameters.
type StrategyConfig struct {
	Period       string  `mapstructure:"period"`        // e.g. "15 m"
	AverageType  string  `mapstructure:"average_type"`  // "sma" or "ema"
	FastWindow   int     `mapstructure:"fast_window"`
	SlowWindow   int     `mapstructure:"slow_window"`
	Risk         float64 `mapstructure:"risk"`          // fraction of equity per trade
	Stoploss     float64 `mapstructure:"stoploss"`      // fraction of entry price
	Commission   float64 `mapstructure:"commission"`    // exchange fee fraction
	ReboundCount int     `mapstructure:"rebound_count"` // stoploss-guard rebound candles
}

// DataConfig holds the on-disk data layout.
type DataConfig struct {
	// Root is the data directory; trade logs live under <root>/trades,
	// candle files under <root>/candles and the journal database at
	// <root>/journal.db.
	Root string `mapstructure:"root"`
}

// CredentialsConfig holds the exchange API credentials.
type CredentialsConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cryptrade"
	}
	return filepath.Join(home, ".config", "cryptrade")
}

// Load loads configuration from the specified directory. If configDir is
// empty, the default config directory is used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("market.name", "bitfinex_BTC_USD")
	v.SetDefault("market.poll_seconds", 10)
	v.SetDefault("market.requery_ticks", 30)
	v.SetDefault("strategy.period", "15 m")
	v.SetDefault("strategy.average_type", "ema")
	v.SetDefault("strategy.fast_window", 10)
	v.SetDefault("strategy.slow_window", 21)
	v.SetDefault("strategy.risk", 0.025)
	v.SetDefault("strategy.stoploss", 0.05)
	v.SetDefault("strategy.commission", 0.0012)
	v.SetDefault("strategy.rebound_count", 2)
	v.SetDefault("data.root", filepath.Join(configDir, "data"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		// No config file: defaults plus environment overrides still apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CRYPTRADE_API_KEY"); v != "" {
		cfg.Credentials.APIKey = v
	}
	if v := os.Getenv("CRYPTRADE_API_SECRET"); v != "" {
		cfg.Credentials.APISecret = v
	}
	if v := os.Getenv("CRYPTRADE_DATA_ROOT"); v != "" {
		cfg.Data.Root = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, _, _, err := SplitMarket(c.Market.Name); err != nil {
		return err
	}
	if _, err := utils.ParsePeriod(c.Strategy.Period); err != nil {
		return err
	}
	if c.Strategy.Risk <= 0 || c.Strategy.Risk > 1 {
		return fmt.Errorf("strategy.risk must be in (0, 1]")
	}
	if c.Strategy.Stoploss <= 0 || c.Strategy.Stoploss > 1 {
		return fmt.Errorf("strategy.stoploss must be in (0, 1]")
	}
	if c.Strategy.Commission < 0 || c.Strategy.Commission >= 1 {
		return fmt.Errorf("strategy.commission must be in [0, 1)")
	}
	if c.Strategy.FastWindow <= 0 || c.Strategy.SlowWindow <= 0 {
		return fmt.Errorf("strategy windows must be positive")
	}
	if c.Market.PollSeconds <= 0 {
		return fmt.Errorf("market.poll_seconds must be positive")
	}
	return nil
}

// PollInterval returns the feed polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Market.PollSeconds) * time.Second
}

// SplitMarket splits "<exchange>_<base>_<quote>" into its parts.
func SplitMarket(name string) (exchange, base, quote string, err error) {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("market name %q: want <exchange>_<base>_<quote>", name)
	}
	return parts[0], parts[1], parts[2], nil
}
