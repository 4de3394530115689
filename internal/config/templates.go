package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# NSE News Features Configuration

# IANA zone used to resolve "today" and to stamp feed timestamps
timezone = "Asia/Kolkata"

# RSS/Atom feeds collected by the fetch stage
feeds = [
  "https://www.moneycontrol.com/rss/business.xml",
  "https://economictimes.indiatimes.com/markets/stocks/rssfeeds/2146842.cms",
]

[storage]
# Root of data/raw, data/processed and data/processed/features
data_dir = "data"
db_path = "db/news.db"

[reference]
# Columns: symbol,company_name,aliases (aliases separated by ';')
symbols_csv = "data/reference/nse_symbols.csv"

[announcements]
# NSE often rejects automated clients; enable gradually
enabled = false
from_days_back = 0
to_days_back = 0
timeout = "30s"

[nlp.events]
enabled = true

[nlp.ticker_map]
max_symbols = 5

[nlp.sentiment]
# Engine: "rule" or "openai" (falls back to rule on any failure)
engine = "rule"
model = "gpt-4o-mini"
threshold = 0.15
max_input_chars = 512

[features]
lookback_days = 180
# Floor for the pos/neg ratio denominator
min_ratio_denominator = 1

[features.indicators]
rsi_period = 14
macd_fast = 12
macd_slow = 26
macd_signal = 9
atr_period = 14

[prices]
# Provider: "yahoo" or "kite"
provider = "yahoo"
base_url = "https://query1.finance.yahoo.com"
timeout = "15s"
max_request_per_minute = 60
concurrency = 4
# Cache candles in the SQLite database
cache = true
# Stop calling the provider after this many consecutive failed symbols
breaker_threshold = 5
breaker_cooldown = "1m"

[logging]
level = "info"
console = true
file = false
file_path = ""
`

const credentialsTemplate = `# NSE News Features Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[zerodha]
api_key = ""
access_token = ""

[openai]
api_key = ""
base_url = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}
