package prices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/logging"
	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/pkg/utils"
)

// kiteClient is the subset of the Kite Connect client used for history.
type kiteClient interface {
	GetInstruments() (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// KiteConfig holds configuration for the Kite Connect provider.
type KiteConfig struct {
	APIKey        string
	AccessToken   string
	Exchange      models.Exchange
	InstrumentTTL time.Duration
	Location      *time.Location
}

// KiteProvider reads daily candles from Zerodha Kite Connect historical data.
type KiteProvider struct {
	client      kiteClient
	exchange    models.Exchange
	loc         *time.Location
	instruments *cache.Cache
	logger      zerolog.Logger
}

// NewKiteProvider creates a provider authenticated with an existing access token.
func NewKiteProvider(cfg KiteConfig, logger zerolog.Logger) (*KiteProvider, error) {
	if cfg.APIKey == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("kite api key and access token are required: %w", apperrors.ErrNotConfigured)
	}
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	return newKiteProvider(client, cfg, logger), nil
}

func newKiteProvider(client kiteClient, cfg KiteConfig, logger zerolog.Logger) *KiteProvider {
	if cfg.Exchange == "" {
		cfg.Exchange = models.NSE
	}
	if cfg.InstrumentTTL <= 0 {
		cfg.InstrumentTTL = 12 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = utils.IndiaLocation
	}
	return &KiteProvider{
		client:      client,
		exchange:    cfg.Exchange,
		loc:         cfg.Location,
		instruments: cache.New(cfg.InstrumentTTL, 2*cfg.InstrumentTTL),
		logger:      logger.With().Str("provider", "kite").Logger(),
	}
}

// Name returns the provider id.
func (k *KiteProvider) Name() string {
	return "kite"
}

// Fetch returns the normalized daily series, or an empty one on any failure.
func (k *KiteProvider) Fetch(ctx context.Context, symbol string, from, to time.Time) []models.Candle {
	start := time.Now()
	candles, err := k.fetch(ctx, symbol, from, to)
	if err != nil {
		err = apperrors.NewFetchError(k.Name(), symbol, err)
	}
	out := Normalize(candles, from, to, k.loc)
	logging.LogFetch(k.logger, k.Name(), symbol, len(out), time.Since(start), err)
	if err != nil {
		return []models.Candle{}
	}
	return out
}

func (k *KiteProvider) fetch(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token, err := k.instrumentToken(strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return nil, err
	}

	// Kite treats the upper bound as inclusive.
	data, err := k.client.GetHistoricalData(int(token), "day", from, to.Add(-time.Second), false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical data: %w", err)
	}

	candles := make([]models.Candle, len(data))
	for i, d := range data {
		candles[i] = models.Candle{
			Timestamp: d.Date.Time,
			Open:      d.Open,
			High:      d.High,
			Low:       d.Low,
			Close:     d.Close,
			Volume:    int64(d.Volume),
		}
	}
	return candles, nil
}

func instrumentKey(exchange models.Exchange, symbol string) string {
	return fmt.Sprintf("%s:%s", exchange, symbol)
}

// instrumentToken resolves symbol through the instrument cache. The exchange's
// instrument list is downloaded at most once per cache TTL, so unknown symbols
// do not trigger repeated downloads.
func (k *KiteProvider) instrumentToken(symbol string) (uint32, error) {
	key := instrumentKey(k.exchange, symbol)
	if token, ok := k.instruments.Get(key); ok {
		return token.(uint32), nil
	}

	loadedKey := instrumentKey(k.exchange, "*loaded*")
	if _, loaded := k.instruments.Get(loadedKey); !loaded {
		instruments, err := k.client.GetInstruments()
		if err != nil {
			return 0, fmt.Errorf("failed to get instruments: %w", err)
		}
		// marker first so it never outlives the tokens
		k.instruments.SetDefault(loadedKey, true)
		for _, inst := range instruments {
			if inst.Exchange != string(k.exchange) {
				continue
			}
			k.instruments.SetDefault(instrumentKey(k.exchange, inst.Tradingsymbol), uint32(inst.InstrumentToken))
		}
	}

	if token, ok := k.instruments.Get(key); ok {
		return token.(uint32), nil
	}
	return 0, fmt.Errorf("instrument not found: %s", symbol)
}
