package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"nse-newsfeatures/internal/analysis/indicators"
	"nse-newsfeatures/internal/export"
	"nse-newsfeatures/internal/nlp"
	"nse-newsfeatures/internal/pipeline"
	"nse-newsfeatures/internal/prices"
	"nse-newsfeatures/internal/resilience"
	"nse-newsfeatures/internal/sources"
	"nse-newsfeatures/internal/store"
	"nse-newsfeatures/pkg/utils"
)

func (a *App) layout() export.Layout {
	return export.Layout{DataDir: a.Config.Storage.DataDir}
}

// openStore opens the SQLite database, creating its directory.
func (a *App) openStore() (*store.SQLiteStore, error) {
	dbPath := a.Config.Storage.DBPath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")
	return db, nil
}

func (a *App) symbolResolver() (*nlp.SymbolResolver, error) {
	entries, err := nlp.LoadSymbolIndex(a.Config.Reference.SymbolsCSV)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Int("symbols", len(entries)).Msg("Symbol index loaded")
	return nlp.NewSymbolResolver(entries), nil
}

// scorer picks the sentiment strategy. The OpenAI classifier is only built
// when an API key is present; otherwise NewScorer falls back to rules.
func (a *App) scorer() nlp.Scorer {
	s := a.Config.NLP.Sentiment
	var classifier nlp.Classifier
	if a.Config.UsesExternalSentiment() && a.Config.Credentials.OpenAI.APIKey != "" {
		openAI := a.Config.Credentials.OpenAI
		classifier = nlp.NewOpenAIClassifier(openAI.APIKey, s.Model, openAI.BaseURL)
	}
	return nlp.NewScorer(nlp.ScorerConfig{
		Engine:        s.Engine,
		Threshold:     s.Threshold,
		MaxInputChars: s.MaxInputChars,
		Timeout:       s.Timeout,
	}, classifier, a.Logger)
}

// provider builds the configured OHLCV provider, optionally backed by the
// candle table.
func (a *App) provider(db *store.SQLiteStore) (prices.Provider, error) {
	cfg := a.Config.Prices
	loc := a.Config.Location()

	var p prices.Provider
	switch cfg.Provider {
	case "kite":
		creds := a.Config.Credentials.Zerodha
		kite, err := prices.NewKiteProvider(prices.KiteConfig{
			APIKey:      creds.APIKey,
			AccessToken: creds.AccessToken,
			Location:    loc,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		p = kite
	default:
		p = prices.NewYahooProvider(prices.YahooConfig{
			BaseURL:             cfg.BaseURL,
			Timeout:             cfg.Timeout,
			MaxRequestPerMinute: cfg.MaxRequestPerMinute,
			Location:            loc,
			Retry:               utils.DefaultRetryConfig(),
			Breaker: resilience.Config{
				FailureThreshold: cfg.BreakerThreshold,
				Cooldown:         cfg.BreakerCooldown,
			},
		}, a.Logger)
	}

	if cfg.Cache && db != nil {
		p = prices.NewCachedProvider(p, db, 0, a.Logger)
	}
	return p, nil
}

func (a *App) fetchStage(db *store.SQLiteStore) *pipeline.FetchStage {
	loc := a.Config.Location()
	return pipeline.NewFetchStage(
		a.layout(),
		a.Config.Feeds,
		sources.NewFeedFetcher(sources.DefaultFeedTimeout, loc, a.Logger),
		sources.NewAnnouncementFetcher(a.Config.Announcements, loc, a.Logger),
		db,
		a.Logger,
	)
}

func (a *App) nlpStage(db *store.SQLiteStore) (*pipeline.NLPStage, error) {
	resolver, err := a.symbolResolver()
	if err != nil {
		return nil, err
	}
	nc := a.Config.NLP
	builder := pipeline.NewRecordBuilder(resolver, nlp.NewEventTagger(nc.Events.Enabled), a.scorer(), nc.TickerMap.MaxSymbols)
	return pipeline.NewNLPStage(a.layout(), builder, db, a.Logger), nil
}

func (a *App) featureStage(db *store.SQLiteStore) (*pipeline.FeatureStage, error) {
	provider, err := a.provider(db)
	if err != nil {
		return nil, err
	}
	fc := a.Config.Features
	return pipeline.NewFeatureStage(a.layout(), provider, indicators.NewEngine(0), db, pipeline.FeatureStageConfig{
		LookbackDays:        fc.LookbackDays,
		MinRatioDenominator: fc.MinRatioDenominator,
		Concurrency:         a.Config.Prices.Concurrency,
		Params: indicators.Params{
			RSIPeriod:  fc.Indicators.RSIPeriod,
			MACDFast:   fc.Indicators.MACDFast,
			MACDSlow:   fc.Indicators.MACDSlow,
			MACDSignal: fc.Indicators.MACDSignal,
			ATRPeriod:  fc.Indicators.ATRPeriod,
		},
	}, a.Logger), nil
}
