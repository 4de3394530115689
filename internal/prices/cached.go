package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/store"
)

// CandleStore persists daily candles between runs.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
}

// CachedProvider serves series from the candle table when it already covers
// the requested window and otherwise delegates to next and stores the result.
// Results are also memoized in memory for the lifetime of the provider.
type CachedProvider struct {
	next   Provider
	store  CandleStore
	memo   *cache.Cache
	logger zerolog.Logger
}

// NewCachedProvider wraps next with the candle store and an in-memory cache.
func NewCachedProvider(next Provider, candles CandleStore, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedProvider{
		next:   next,
		store:  candles,
		memo:   cache.New(ttl, 2*ttl),
		logger: logger.With().Str("provider", "cached").Logger(),
	}
}

// Name returns the wrapped provider id.
func (c *CachedProvider) Name() string {
	return c.next.Name()
}

// Fetch returns the series of symbol for [from, to).
func (c *CachedProvider) Fetch(ctx context.Context, symbol string, from, to time.Time) []models.Candle {
	key := fmt.Sprintf("%s|%s|%s", symbol, from.Format(models.DateLayout), to.Format(models.DateLayout))
	if v, ok := c.memo.Get(key); ok {
		return copyCandles(v.([]models.Candle))
	}

	stored, err := c.store.GetCandles(ctx, symbol, store.DailyTimeframe, from, to)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read cached candles")
	}
	if err == nil && covers(stored, from, to) {
		c.logger.Debug().Str("symbol", symbol).Int("candles", len(stored)).Msg("Serving candles from store")
		c.memo.SetDefault(key, stored)
		return copyCandles(stored)
	}

	fetched := c.next.Fetch(ctx, symbol, from, to)
	if len(fetched) > 0 {
		if err := c.store.SaveCandles(ctx, symbol, store.DailyTimeframe, fetched); err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store candles")
		}
		c.memo.SetDefault(key, fetched)
	}
	return copyCandles(fetched)
}

// covers reports whether stored spans the window: the first candle falls within
// the padding days after from and the last candle is the day before to.
func covers(stored []models.Candle, from, to time.Time) bool {
	if len(stored) == 0 {
		return false
	}
	first := stored[0].Day()
	last := stored[len(stored)-1].Day()
	return first <= from.AddDate(0, 0, WindowPaddingDays).Format(models.DateLayout) &&
		last == to.AddDate(0, 0, -1).Format(models.DateLayout)
}

func copyCandles(in []models.Candle) []models.Candle {
	out := make([]models.Candle, len(in))
	copy(out, in)
	return out
}
