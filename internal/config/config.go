// Package config provides configuration management for the news feature pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/spf13/viper"

	apperrors "nse-newsfeatures/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Timezone      string              `mapstructure:"timezone"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Reference     ReferenceConfig     `mapstructure:"reference"`
	Feeds         []string            `mapstructure:"feeds"`
	Announcements AnnouncementsConfig `mapstructure:"announcements"`
	NLP           NLPConfig           `mapstructure:"nlp"`
	Features      FeaturesConfig      `mapstructure:"features"`
	Prices        PricesConfig        `mapstructure:"prices"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Credentials   Credentials         `mapstructure:"-" json:"-"` // Loaded separately
}

// StorageConfig holds output and database locations.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
	DBPath  string `mapstructure:"db_path"`
}

// ReferenceConfig holds reference data locations.
type ReferenceConfig struct {
	SymbolsCSV string `mapstructure:"symbols_csv"`
}

// AnnouncementsConfig holds NSE corporate announcements settings.
type AnnouncementsConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	EndpointTemplate string        `mapstructure:"endpoint_template"`
	HomeURL          string        `mapstructure:"home_url"`
	FromDaysBack     int           `mapstructure:"from_days_back"`
	ToDaysBack       int           `mapstructure:"to_days_back"`
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
}

// NLPConfig holds text processing settings.
type NLPConfig struct {
	Events    EventsConfig    `mapstructure:"events"`
	TickerMap TickerMapConfig `mapstructure:"ticker_map"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
}

// EventsConfig toggles event tagging.
type EventsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TickerMapConfig holds symbol resolution settings.
type TickerMapConfig struct {
	MaxSymbols int `mapstructure:"max_symbols"`
}

// SentimentConfig selects and tunes the sentiment engine.
type SentimentConfig struct {
	Engine        string        `mapstructure:"engine"` // rule, openai
	Model         string        `mapstructure:"model"`
	Threshold     float64       `mapstructure:"threshold"`
	MaxInputChars int           `mapstructure:"max_input_chars"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// FeaturesConfig holds feature engineering settings.
type FeaturesConfig struct {
	LookbackDays        int              `mapstructure:"lookback_days"`
	MinRatioDenominator int              `mapstructure:"min_ratio_denominator"`
	Indicators          IndicatorsConfig `mapstructure:"indicators"`
}

// IndicatorsConfig holds indicator period overrides.
type IndicatorsConfig struct {
	RSIPeriod  int `mapstructure:"rsi_period"`
	MACDFast   int `mapstructure:"macd_fast"`
	MACDSlow   int `mapstructure:"macd_slow"`
	MACDSignal int `mapstructure:"macd_signal"`
	ATRPeriod  int `mapstructure:"atr_period"`
}

// PricesConfig holds OHLCV provider settings.
type PricesConfig struct {
	Provider            string        `mapstructure:"provider"` // yahoo, kite
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Concurrency         int           `mapstructure:"concurrency"`
	Cache               bool          `mapstructure:"cache"`
	BreakerThreshold    int           `mapstructure:"breaker_threshold"`
	BreakerCooldown     time.Duration `mapstructure:"breaker_cooldown"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// Credentials holds API credentials.
type Credentials struct {
	Zerodha ZerodhaCredentials `mapstructure:"zerodha"`
	OpenAI  OpenAICredentials  `mapstructure:"openai"`
}

// ZerodhaCredentials holds Kite Connect credentials.
type ZerodhaCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/nse-newsfeatures"
	}
	return filepath.Join(home, ".config", "nse-newsfeatures")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files are
// created from templates and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timezone", "Asia/Kolkata")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.db_path", "db/news.db")
	v.SetDefault("reference.symbols_csv", "data/reference/nse_symbols.csv")
	v.SetDefault("feeds", []string{})

	v.SetDefault("announcements.enabled", false)
	v.SetDefault("announcements.endpoint_template",
		"https://www.nseindia.com/api/corporate-announcements?index=equities&from_date={from_date}&to_date={to_date}")
	v.SetDefault("announcements.home_url", "https://www.nseindia.com/")
	v.SetDefault("announcements.from_days_back", 0)
	v.SetDefault("announcements.to_days_back", 0)
	v.SetDefault("announcements.timeout", "30s")
	v.SetDefault("announcements.user_agent", "Mozilla/5.0")

	v.SetDefault("nlp.events.enabled", true)
	v.SetDefault("nlp.ticker_map.max_symbols", 5)
	v.SetDefault("nlp.sentiment.engine", "rule")
	v.SetDefault("nlp.sentiment.model", "gpt-4o-mini")
	v.SetDefault("nlp.sentiment.threshold", 0.15)
	v.SetDefault("nlp.sentiment.max_input_chars", 512)
	v.SetDefault("nlp.sentiment.timeout", "20s")

	v.SetDefault("features.lookback_days", 180)
	v.SetDefault("features.min_ratio_denominator", 1)
	v.SetDefault("features.indicators.rsi_period", 14)
	v.SetDefault("features.indicators.macd_fast", 12)
	v.SetDefault("features.indicators.macd_slow", 26)
	v.SetDefault("features.indicators.macd_signal", 9)
	v.SetDefault("features.indicators.atr_period", 14)

	v.SetDefault("prices.provider", "yahoo")
	v.SetDefault("prices.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("prices.timeout", "15s")
	v.SetDefault("prices.max_request_per_minute", 60)
	v.SetDefault("prices.concurrency", 4)
	v.SetDefault("prices.cache", true)
	v.SetDefault("prices.breaker_threshold", 5)
	v.SetDefault("prices.breaker_cooldown", "1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", "")
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, write a template and run on defaults
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	// Kite Connect credentials
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Zerodha.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Zerodha.AccessToken = v
	}

	// OpenAI credentials
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}

	if v := os.Getenv("NEWSFEATURES_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return apperrors.NewValidationError("timezone", c.Timezone, "unknown time zone")
	}

	switch strings.ToLower(c.NLP.Sentiment.Engine) {
	case "rule", "openai":
	default:
		return apperrors.NewValidationError("nlp.sentiment.engine", c.NLP.Sentiment.Engine, "must be 'rule' or 'openai'")
	}
	if c.NLP.Sentiment.Threshold <= 0 || c.NLP.Sentiment.Threshold >= 1 {
		return apperrors.NewValidationError("nlp.sentiment.threshold", c.NLP.Sentiment.Threshold, "must be in (0, 1)")
	}
	if c.NLP.TickerMap.MaxSymbols < 0 {
		return apperrors.NewValidationError("nlp.ticker_map.max_symbols", c.NLP.TickerMap.MaxSymbols, "must be non-negative")
	}

	if c.Features.LookbackDays <= 0 {
		return apperrors.NewValidationError("features.lookback_days", c.Features.LookbackDays, "must be positive")
	}
	if c.Features.MinRatioDenominator < 1 {
		return apperrors.NewValidationError("features.min_ratio_denominator", c.Features.MinRatioDenominator, "must be at least 1")
	}
	ind := c.Features.Indicators
	if ind.RSIPeriod < 1 || ind.ATRPeriod < 1 || ind.MACDFast < 1 || ind.MACDSignal < 1 {
		return apperrors.NewValidationError("features.indicators", ind, "periods must be positive")
	}
	if ind.MACDFast >= ind.MACDSlow {
		return apperrors.NewValidationError("features.indicators.macd_fast", ind.MACDFast, "must be less than macd_slow")
	}

	switch c.Prices.Provider {
	case "yahoo", "kite":
	default:
		return apperrors.NewValidationError("prices.provider", c.Prices.Provider, "must be 'yahoo' or 'kite'")
	}
	if c.Prices.Concurrency < 1 {
		return apperrors.NewValidationError("prices.concurrency", c.Prices.Concurrency, "must be at least 1")
	}
	if c.Prices.BreakerThreshold < 0 {
		return apperrors.NewValidationError("prices.breaker_threshold", c.Prices.BreakerThreshold, "must be non-negative")
	}

	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// UsesExternalSentiment returns true if a non-rule sentiment engine is selected.
func (c *Config) UsesExternalSentiment() bool {
	return !strings.EqualFold(c.NLP.Sentiment.Engine, "rule")
}
