// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"nse-newsfeatures/internal/models"
)

// DailyTimeframe is the candle timeframe used by the price cache.
const DailyTimeframe = "1day"

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Raw news; existing URLs are left untouched.
	SaveRawItems(ctx context.Context, items []models.RawItem) (int, error)

	// NLP records keyed by URL.
	UpsertNlpRecords(ctx context.Context, records []models.NlpRecord) (inserted, updated int, err error)
	GetNlpRecord(ctx context.Context, url string) (*models.NlpRecord, error)

	// Feature rows keyed by (date, symbol).
	ReplaceFeatureRows(ctx context.Context, rows []models.FeatureRow) error
	ReplaceFeatureDay(ctx context.Context, date string, rows []models.FeatureRow) error
	GetFeatureRows(ctx context.Context, date string) ([]models.FeatureRow, error)

	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)

	// Lifecycle
	Close() error
}
