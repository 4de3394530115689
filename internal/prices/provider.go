// Package prices fetches daily OHLCV series for the symbols seen in news.
//
// Providers never fail: any transport or decoding problem is logged and
// yields an empty series, so the feature stage can still emit rows with null
// price fields.
package prices

import (
	"context"
	"sort"
	"sync"
	"time"

	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/pkg/utils"
)

// WindowPaddingDays is added to the lookback so the window covers holidays.
const WindowPaddingDays = 10

// Provider returns the daily candles of symbol with from <= day < to.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, from, to time.Time) []models.Candle
}

// Window returns the fetch range for a run day: lookback plus padding days
// before day, up to and including day.
func Window(day time.Time, lookbackDays int) (from, to time.Time) {
	day = utils.CalendarDate(day, time.UTC)
	from = day.AddDate(0, 0, -(lookbackDays + WindowPaddingDays))
	to = day.AddDate(0, 0, 1)
	return from, to
}

// Normalize keys candles by their calendar day in loc, keeps the last candle
// of each day, drops days outside [from, to) and sorts ascending.
func Normalize(candles []models.Candle, from, to time.Time, loc *time.Location) []models.Candle {
	if len(candles) == 0 {
		return []models.Candle{}
	}
	fromDay := from.Format(models.DateLayout)
	toDay := to.Format(models.DateLayout)

	byDay := make(map[string]models.Candle, len(candles))
	for _, c := range candles {
		c.Timestamp = utils.CalendarDate(c.Timestamp, loc)
		day := c.Day()
		if day < fromDay || day >= toDay {
			continue
		}
		byDay[day] = c
	}

	out := make([]models.Candle, 0, len(byDay))
	for _, c := range byDay {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// FetchAll fetches every symbol with at most concurrency requests in flight.
// Symbols with an empty series are omitted from the result.
func FetchAll(ctx context.Context, p Provider, symbols []string, from, to time.Time, concurrency int) map[string][]models.Candle {
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = make(map[string][]models.Candle, len(symbols))
	)

	work := make(chan string, len(symbols))
	for _, s := range symbols {
		work <- s
	}
	close(work)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range work {
				if ctx.Err() != nil {
					return
				}
				candles := p.Fetch(ctx, symbol, from, to)
				if len(candles) == 0 {
					continue
				}
				mu.Lock()
				result[symbol] = candles
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return result
}
