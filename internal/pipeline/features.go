package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"nse-newsfeatures/internal/analysis/indicators"
	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/export"
	"nse-newsfeatures/internal/features"
	"nse-newsfeatures/internal/logging"
	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/prices"
	"nse-newsfeatures/pkg/utils"
)

// FeatureStore replaces the feature rows of a date.
type FeatureStore interface {
	ReplaceFeatureDay(ctx context.Context, date string, rows []models.FeatureRow) error
}

// FeatureStageConfig tunes the feature stage.
type FeatureStageConfig struct {
	LookbackDays        int
	MinRatioDenominator int
	Concurrency         int
	Params              indicators.Params
}

// FeatureResult summarizes a feature stage run.
type FeatureResult struct {
	Day        string
	Symbols    int
	WithPrices int
	Rows       int
	Path       string
}

// FeatureStage joins the day's news aggregates with as-of price indicators.
type FeatureStage struct {
	layout     export.Layout
	aggregator *features.Aggregator
	provider   prices.Provider
	engine     *indicators.Engine
	store      FeatureStore
	cfg        FeatureStageConfig
	logger     zerolog.Logger
}

// NewFeatureStage creates the feature stage.
func NewFeatureStage(layout export.Layout, provider prices.Provider, engine *indicators.Engine, store FeatureStore, cfg FeatureStageConfig, logger zerolog.Logger) *FeatureStage {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 180
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if engine == nil {
		engine = indicators.NewEngine(0)
	}
	return &FeatureStage{
		layout:     layout,
		aggregator: features.NewAggregator(cfg.MinRatioDenominator),
		provider:   provider,
		engine:     engine,
		store:      store,
		cfg:        cfg,
		logger:     logging.WithStage(logger, "features"),
	}
}

// Run builds the feature rows of day. lookback overrides the configured
// lookback when positive. A missing processed file is fatal; a day without
// news aggregates is logged and clears the stored rows of day.
func (s *FeatureStage) Run(ctx context.Context, day string, lookback int) (FeatureResult, error) {
	logger := logging.WithDay(s.logger, day)
	res := FeatureResult{Day: day, Path: s.layout.FeaturesCSV(day)}

	date, err := utils.DayStart(day)
	if err != nil {
		return res, apperrors.Wrapf(err, "invalid day %q", day)
	}
	if lookback <= 0 {
		lookback = s.cfg.LookbackDays
	}

	procPath := s.layout.ProcessedJSON(day)
	var records []models.NlpRecord
	if err := export.ReadJSON(procPath, &records); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, fmt.Errorf("%s: %w", procPath, apperrors.ErrProcessedFileMissing)
		}
		return res, err
	}

	news := features.ForDate(s.aggregator.Build(records), day)
	if len(news) == 0 {
		logger.Warn().Int("records", len(records)).Msg("No news features to build")
		if err := s.store.ReplaceFeatureDay(ctx, day, nil); err != nil {
			return res, apperrors.Wrap(err, "failed to clear feature rows")
		}
		return res, nil
	}

	symbols := features.Symbols(news)
	res.Symbols = len(symbols)
	logger.Info().Int("symbols", len(symbols)).Str("provider", s.provider.Name()).Msg("Fetching prices")

	from, to := prices.Window(date, lookback)
	series := prices.FetchAll(ctx, s.provider, symbols, from, to, s.cfg.Concurrency)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	snapshots := s.snapshots(ctx, day, series)
	res.WithPrices = len(snapshots)
	if len(snapshots) == 0 {
		logger.Warn().Msg("No price rows computed, writing news features only")
	} else if utils.IsWeekend(date) {
		logger.Info().Msg("Weekend run, prices are as of the last session")
	}

	rows := features.Merge(day, news, snapshots)
	res.Rows = len(rows)

	if err := export.WriteFeatureCSV(res.Path, rows); err != nil {
		return res, err
	}
	if err := s.store.ReplaceFeatureDay(ctx, day, rows); err != nil {
		return res, apperrors.Wrap(err, "failed to store feature rows")
	}

	logging.LogStageSummary(logger, "features", map[string]int{
		"symbols":     res.Symbols,
		"with_prices": res.WithPrices,
		"rows":        res.Rows,
	})
	return res, nil
}

// snapshots computes the as-of indicator snapshot of every series, in symbol
// order. Symbols whose indicators fail or whose data starts after day are
// left out.
func (s *FeatureStage) snapshots(ctx context.Context, day string, series map[string][]models.Candle) map[string]models.PriceSnapshot {
	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	out := make(map[string]models.PriceSnapshot, len(symbols))
	for _, sym := range symbols {
		table, err := s.engine.ComputeTable(ctx, series[sym], s.cfg.Params)
		if err != nil {
			l := logging.WithSymbol(s.logger, sym)
			l.Warn().Err(err).Msg("Failed to compute indicators")
			continue
		}
		row, ok := indicators.LatestAsOf(table, day)
		if !ok {
			continue
		}
		out[sym] = indicators.Snapshot(sym, row)
	}
	return out
}
