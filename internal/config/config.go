// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Market   MarketConfig   `mapstructure:"market"`
	Detector DetectorConfig `mapstructure:"detector"`
	Digest   DigestConfig   `mapstructure:"digest"`
	Yahoo    YahooConfig    `mapstructure:"yahoo"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// MarketConfig defines the ticker universe and exchange schedule.
type MarketConfig struct {
	Timezone      string   `mapstructure:"timezone"`
	Universe      []string `mapstructure:"universe"`
	Watchlist     []string `mapstructure:"watchlist"`
	CryptoStocks  []string `mapstructure:"crypto_stocks"`
	SectorTickers []string `mapstructure:"sector_tickers"`
}

// DetectorConfig holds mover qualification thresholds.
type DetectorConfig struct {
	PremarketThreshold float64 `mapstructure:"premarket_threshold"`
	RegularThreshold   float64 `mapstructure:"regular_threshold"`
	VolumeMultiplier   float64 `mapstructure:"volume_multiplier"`
}

// DigestConfig holds digest rendering settings.
type DigestConfig struct {
	DisplayCount int `mapstructure:"display_count"`
}

// YahooConfig holds market-data provider settings.
type YahooConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// TelegramConfig holds notification destination settings.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// LedgerConfig holds alert-deduplication state settings.
type LedgerConfig struct {
	Path       string `mapstructure:"path"`
	ResetDaily bool   `mapstructure:"reset_daily"`
}

// StorageConfig holds run-history persistence settings.
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("MOVERWATCH")
	v.AutomaticEnv()

	// The original deployment supplied credentials as bare CI secrets; keep
	// honoring those names.
	_ = v.BindEnv("telegram.bot_token", "MOVERWATCH_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "MOVERWATCH_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("market.timezone", "America/New_York")

	v.SetDefault("detector.premarket_threshold", 1.0)
	v.SetDefault("detector.regular_threshold", 2.0)
	v.SetDefault("detector.volume_multiplier", 1.5)

	v.SetDefault("digest.display_count", 6)

	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.timeout", "15s")
	v.SetDefault("yahoo.max_retries", 3)
	v.SetDefault("yahoo.retry_delay_base", "1s")

	v.SetDefault("telegram.enabled", true)

	v.SetDefault("ledger.path", "./data/alerted.json")
	v.SetDefault("ledger.reset_daily", true)

	v.SetDefault("storage.db_path", "./data/moverwatch.db")
	v.SetDefault("storage.max_runs", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are usable. Missing
// destination credentials while notifications are enabled is a startup
// failure; nothing network-facing runs before this passes.
func (c *Config) Validate() error {
	if c.Market.Timezone == "" {
		return fmt.Errorf("market.timezone is required")
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone is invalid: %w", err)
	}
	if len(c.AllTickers()) == 0 {
		return fmt.Errorf("market.universe must contain at least one ticker")
	}

	if c.Detector.PremarketThreshold <= 0 {
		return fmt.Errorf("detector.premarket_threshold must be positive")
	}
	if c.Detector.RegularThreshold <= 0 {
		return fmt.Errorf("detector.regular_threshold must be positive")
	}
	if c.Detector.PremarketThreshold > c.Detector.RegularThreshold {
		return fmt.Errorf("detector.premarket_threshold must not exceed detector.regular_threshold")
	}
	if c.Detector.VolumeMultiplier <= 0 {
		return fmt.Errorf("detector.volume_multiplier must be positive")
	}

	if c.Digest.DisplayCount < 1 {
		return fmt.Errorf("digest.display_count must be at least 1")
	}

	if c.Yahoo.BaseURL == "" {
		return fmt.Errorf("yahoo.base_url is required")
	}
	if c.Yahoo.Timeout < time.Second {
		return fmt.Errorf("yahoo.timeout must be at least 1 second")
	}
	if c.Yahoo.MaxRetries < 1 {
		return fmt.Errorf("yahoo.max_retries must be at least 1")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxRuns < 1 {
		return fmt.Errorf("storage.max_runs must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// AllTickers returns the sorted, de-duplicated union of the base universe,
// watchlist, and crypto-stock lists.
func (c *Config) AllTickers() []string {
	seen := make(map[string]struct{})
	for _, group := range [][]string{c.Market.Universe, c.Market.Watchlist, c.Market.CryptoStocks} {
		for _, sym := range group {
			if sym != "" {
				seen[sym] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Location resolves the configured exchange timezone. Validate must have
// passed before this is called.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Market.Timezone)
}
