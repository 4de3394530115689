package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nse-newsfeatures/internal/errors"
)

func TestLoadCreatesTemplates(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.FileExists(t, filepath.Join(dir, "credentials.toml"))

	assert.Equal(t, "Asia/Kolkata", cfg.Timezone)
	assert.Equal(t, "rule", cfg.NLP.Sentiment.Engine)
	assert.Equal(t, 0.15, cfg.NLP.Sentiment.Threshold)
	assert.Equal(t, 5, cfg.NLP.TickerMap.MaxSymbols)
	assert.Equal(t, 180, cfg.Features.LookbackDays)
	assert.Equal(t, 1, cfg.Features.MinRatioDenominator)
	assert.Equal(t, 14, cfg.Features.Indicators.RSIPeriod)
	assert.Equal(t, 26, cfg.Features.Indicators.MACDSlow)
	assert.Equal(t, 15*time.Second, cfg.Prices.Timeout)
	assert.True(t, cfg.NLP.Events.Enabled)
	assert.NotEmpty(t, cfg.Feeds)

	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `timezone = "UTC"
feeds = ["http://localhost/feed.xml"]

[nlp.sentiment]
engine = "openai"
threshold = 0.2

[features]
lookback_days = 90
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.toml"), []byte("[openai]\napi_key = \"from-file\"\n"), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, []string{"http://localhost/feed.xml"}, cfg.Feeds)
	assert.Equal(t, "openai", cfg.NLP.Sentiment.Engine)
	assert.Equal(t, 0.2, cfg.NLP.Sentiment.Threshold)
	assert.Equal(t, 512, cfg.NLP.Sentiment.MaxInputChars)
	assert.Equal(t, 90, cfg.Features.LookbackDays)
	assert.Equal(t, "from-file", cfg.Credentials.OpenAI.APIKey)
	assert.True(t, cfg.UsesExternalSentiment())
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("KITE_API_KEY", "kite-key")
	t.Setenv("KITE_ACCESS_TOKEN", "kite-token")
	t.Setenv("NEWSFEATURES_TIMEZONE", "UTC")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Credentials.OpenAI.APIKey)
	assert.Equal(t, "kite-key", cfg.Credentials.Zerodha.APIKey)
	assert.Equal(t, "kite-token", cfg.Credentials.Zerodha.AccessToken)
	assert.Equal(t, time.UTC.String(), cfg.Location().String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"bad engine", func(c *Config) { c.NLP.Sentiment.Engine = "bert" }, true},
		{"threshold too high", func(c *Config) { c.NLP.Sentiment.Threshold = 1.5 }, true},
		{"zero threshold", func(c *Config) { c.NLP.Sentiment.Threshold = 0 }, true},
		{"zero lookback", func(c *Config) { c.Features.LookbackDays = 0 }, true},
		{"zero denominator", func(c *Config) { c.Features.MinRatioDenominator = 0 }, true},
		{"macd fast >= slow", func(c *Config) { c.Features.Indicators.MACDFast = 30 }, true},
		{"bad provider", func(c *Config) { c.Prices.Provider = "bloomberg" }, true},
		{"kite provider", func(c *Config) { c.Prices.Provider = "kite" }, false},
		{"negative breaker threshold", func(c *Config) { c.Prices.BreakerThreshold = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
