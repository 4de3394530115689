package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/logging"
	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/resilience"
	"nse-newsfeatures/pkg/utils"
)

// NSESuffix is appended to NSE symbols for Yahoo lookups.
const NSESuffix = ".NS"

var errSymbolNotFound = errors.New("symbol not found")

// YahooConfig configures the Yahoo chart provider.
type YahooConfig struct {
	BaseURL             string
	Timeout             time.Duration
	MaxRequestPerMinute int
	Location            *time.Location
	Retry               utils.RetryConfig
	// Breaker trips after consecutive failed symbols.
	Breaker resilience.Config
}

// YahooProvider reads daily candles from the Yahoo Finance chart API.
type YahooProvider struct {
	cfg            YahooConfig
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	breaker        *resilience.Breaker
	logger         zerolog.Logger
}

// NewYahooProvider creates a rate limited Yahoo provider.
func NewYahooProvider(cfg YahooConfig, logger zerolog.Logger) *YahooProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRequestPerMinute <= 0 {
		cfg.MaxRequestPerMinute = 60
	}
	if cfg.Location == nil {
		cfg.Location = utils.IndiaLocation
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = utils.DefaultRetryConfig()
	}

	if cfg.Breaker.IsFailure == nil {
		cfg.Breaker.IsFailure = isUpstreamFailure
	}

	logger = logger.With().Str("provider", "yahoo").Logger()
	secondsPerRequest := time.Minute / time.Duration(cfg.MaxRequestPerMinute)
	return &YahooProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		breaker:        resilience.New("yahoo", cfg.Breaker, logger),
		logger:         logger,
	}
}

// Name returns the provider id.
func (p *YahooProvider) Name() string {
	return "yahoo"
}

// yahooChartResponse for Yahoo Finance chart endpoint. Quote arrays carry
// nulls for sessions without trades.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns the normalized series, or an empty one on any failure.
func (p *YahooProvider) Fetch(ctx context.Context, symbol string, from, to time.Time) []models.Candle {
	start := time.Now()
	candles, err := resilience.Call(p.breaker, func() ([]models.Candle, error) {
		return utils.RetryWithResult(ctx, p.cfg.Retry, func() ([]models.Candle, error) {
			if err := p.requestLimiter.Wait(ctx); err != nil {
				return nil, utils.Permanent(err)
			}
			return p.fetchChart(ctx, symbol, from, to)
		})
	})
	if err != nil {
		err = apperrors.NewFetchError(p.Name(), symbol, err)
	}
	out := Normalize(candles, from, to, p.cfg.Location)
	logging.LogFetch(p.logger, p.Name(), symbol, len(out), time.Since(start), err)
	if err != nil {
		return []models.Candle{}
	}
	return out
}

// Breaker exposes the provider's circuit breaker.
func (p *YahooProvider) Breaker() *resilience.Breaker {
	return p.breaker
}

// isUpstreamFailure reports whether err says the API itself is unhealthy.
// Unknown symbols and cancellation do not count.
func isUpstreamFailure(err error) bool {
	return !errors.Is(err, errSymbolNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func yahooSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(symbol, NSESuffix) || strings.HasPrefix(symbol, "^") {
		return symbol
	}
	return symbol + NSESuffix
}

func (p *YahooProvider) fetchChart(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(yahooSymbol(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, utils.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, utils.Permanent(fmt.Errorf("%w: status %d", errSymbolNotFound, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var apiResp yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, utils.Permanent(fmt.Errorf("decode chart: %w", err))
	}
	if apiResp.Chart.Error != nil {
		return nil, utils.Permanent(fmt.Errorf("chart error %s: %s", apiResp.Chart.Error.Code, apiResp.Chart.Error.Description))
	}
	if len(apiResp.Chart.Result) == 0 || len(apiResp.Chart.Result[0].Indicators.Quote) == 0 {
		return []models.Candle{}, nil
	}

	result := apiResp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]models.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePx := at(quote.Close, i)
		if closePx == nil {
			continue
		}
		c := models.Candle{
			Timestamp: time.Unix(ts, 0),
			Close:     *closePx,
			Open:      valueOr(at(quote.Open, i), *closePx),
			High:      valueOr(at(quote.High, i), *closePx),
			Low:       valueOr(at(quote.Low, i), *closePx),
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			c.Volume = *quote.Volume[i]
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
