package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-newsfeatures/internal/analysis/indicators"
	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/export"
	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/nlp"
	"nse-newsfeatures/internal/prices"
	"nse-newsfeatures/internal/store"
)

const runDay = "2024-05-02"

func strPtr(s string) *string { return &s }

func testIndex() []models.SymbolIndexEntry {
	return []models.SymbolIndexEntry{
		{Symbol: "TCS", Name: "Tata Consultancy Services", Aliases: []string{"Tata Consultancy Services", "TCS"}},
		{Symbol: "INFY", Name: "Infosys", Aliases: []string{"Infosys", "INFY"}},
	}
}

func testItems() []models.RawItem {
	return []models.RawItem{
		{Source: "rss", Title: "TCS declares interim dividend", Summary: "Board approves payout",
			URL: "https://news.example/tcs-dividend", PublishedAt: strPtr("2024-05-02T10:00:00+05:30"), CompanySymbols: []string{}},
		{Source: "nse_corporate", Title: "Infosys reports loss in Q4", Summary: "",
			URL: "https://news.example/infy-loss", PublishedAt: strPtr("2024-05-02T18:30:00+05:30"), CompanySymbols: []string{" infy "}},
		{Source: "", Title: "Quiet session on Dalal Street", Summary: "Indices flat",
			URL: "https://news.example/quiet", PublishedAt: strPtr("2024-05-02T15:45:00+05:30")},
		{Source: "rss", Title: "TCS order book update", Summary: "",
			URL: "https://news.example/tcs-old", PublishedAt: strPtr("2024-05-01T09:00:00+05:30")},
	}
}

func newBuilder() *RecordBuilder {
	return NewRecordBuilder(nlp.NewSymbolResolver(testIndex()), nlp.NewEventTagger(true), nlp.NewRuleScorer(0), 5)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordBuilder(t *testing.T) {
	records := newBuilder().Build(context.Background(), testItems())
	require.Len(t, records, 4)

	tcs := records[0]
	assert.Equal(t, "https://news.example/tcs-dividend", tcs.URL)
	assert.Equal(t, []string{"TCS"}, tcs.Symbols)
	assert.Equal(t, []models.EventTag{models.EventDividend}, tcs.Events)
	assert.Equal(t, models.SentimentPositive, tcs.SentimentLabel)
	assert.Equal(t, nlp.EngineRule, tcs.SentimentEngine)
	assert.Equal(t, "2024-05-02T10:00:00+05:30", *tcs.PublishedAt)

	infy := records[1]
	assert.Equal(t, []string{"INFY"}, infy.Symbols, "declared and resolved symbols are merged")
	assert.Equal(t, models.SentimentNegative, infy.SentimentLabel)
	assert.Equal(t, "nse_corporate", infy.Source)

	quiet := records[2]
	assert.Empty(t, quiet.Symbols)
	assert.NotNil(t, quiet.Symbols)
	assert.Equal(t, models.SentimentNeutral, quiet.SentimentLabel)
	assert.Equal(t, "rss", quiet.Source)

	assert.Empty(t, newBuilder().Build(context.Background(), nil))
}

func TestMergeSymbols(t *testing.T) {
	assert.Equal(t, []string{"RELIANCE", "TCS", "INFY"},
		mergeSymbols([]string{" reliance", "", "TCS"}, []string{"TCS", "INFY", "RELIANCE"}))
	assert.Equal(t, []string{}, mergeSymbols(nil, nil))
}

func TestRecordBuilderDisabledEvents(t *testing.T) {
	b := NewRecordBuilder(nlp.NewSymbolResolver(testIndex()), nlp.NewEventTagger(false), nlp.NewRuleScorer(0), 0)
	records := b.Build(context.Background(), testItems()[:1])
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Events)
}

func TestNLPStage(t *testing.T) {
	ctx := context.Background()
	layout := export.Layout{DataDir: t.TempDir()}
	db := newTestStore(t)
	stage := NewNLPStage(layout, newBuilder(), db, zerolog.Nop())

	_, err := stage.Run(ctx, runDay)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRawFileMissing)
	assert.True(t, apperrors.IsFatal(err))

	require.NoError(t, export.WriteJSON(layout.RawJSON(runDay), testItems()))

	res, err := stage.Run(ctx, runDay)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 4, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Unmapped)
	assert.FileExists(t, layout.ProcessedJSON(runDay))
	assert.FileExists(t, layout.ProcessedCSV(runDay))

	var written []models.NlpRecord
	require.NoError(t, export.ReadJSON(layout.ProcessedJSON(runDay), &written))
	require.Len(t, written, 4)
	assert.Equal(t, []string{"TCS"}, written[0].Symbols)

	res, err = stage.Run(ctx, runDay)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 4, res.Updated)

	stored, err := db.GetNlpRecord(ctx, "https://news.example/infy-loss")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"INFY"}, stored.Symbols)
}

// stubProvider serves fixed series and records the symbols it was asked for.
type stubProvider struct {
	mu     sync.Mutex
	series map[string][]models.Candle
	asked  []string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Fetch(_ context.Context, symbol string, from, to time.Time) []models.Candle {
	s.mu.Lock()
	s.asked = append(s.asked, symbol)
	s.mu.Unlock()
	return prices.Normalize(s.series[symbol], from, to, time.UTC)
}

func dailySeries(end string, n int) []models.Candle {
	last, err := time.Parse(models.DateLayout, end)
	if err != nil {
		panic(err)
	}
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: last.AddDate(0, 0, i-n+1),
			Open:      100 + float64(i),
			High:      102 + float64(i),
			Low:       98 + float64(i),
			Close:     100 + float64(i),
			Volume:    int64(1000 + 10*i),
		}
	}
	return out
}

func newFeatureStage(layout export.Layout, provider prices.Provider, db FeatureStore) *FeatureStage {
	return NewFeatureStage(layout, provider, indicators.NewEngine(2), db, FeatureStageConfig{
		LookbackDays: 120,
		Concurrency:  2,
		Params:       indicators.DefaultParams(),
	}, zerolog.Nop())
}

func TestFeatureStage(t *testing.T) {
	ctx := context.Background()
	layout := export.Layout{DataDir: t.TempDir()}
	db := newTestStore(t)
	provider := &stubProvider{series: map[string][]models.Candle{
		"TCS":  dailySeries(runDay, 80),
		"WIPR": dailySeries(runDay, 80),
	}}
	stage := newFeatureStage(layout, provider, db)

	_, err := stage.Run(ctx, runDay, 0)
	assert.ErrorIs(t, err, apperrors.ErrProcessedFileMissing)
	assert.True(t, apperrors.IsFatal(err))

	records := newBuilder().Build(ctx, testItems())
	require.NoError(t, export.WriteJSON(layout.ProcessedJSON(runDay), records))

	res, err := stage.Run(ctx, runDay, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Symbols)
	assert.Equal(t, 1, res.WithPrices)
	assert.Equal(t, 2, res.Rows)
	assert.ElementsMatch(t, []string{"INFY", "TCS"}, provider.asked, "prices are fetched for news symbols only")

	rows, err := db.GetFeatureRows(ctx, runDay)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	infy, tcs := rows[0], rows[1]
	assert.Equal(t, "INFY", infy.Symbol)
	assert.Nil(t, infy.Price)
	assert.Equal(t, 1, infy.News.NegCount)
	assert.Equal(t, 1.0, infy.News.NegRatio)

	assert.Equal(t, "TCS", tcs.Symbol)
	assert.Equal(t, 1, tcs.News.NewsCount, "items of other days are not counted")
	assert.Equal(t, 1, tcs.News.EventCounts[models.EventDividend])
	require.NotNil(t, tcs.Price)
	assert.Equal(t, runDay, tcs.Price.Date)
	require.NotNil(t, tcs.Price.Close)
	assert.Equal(t, 179.0, *tcs.Price.Close)
	assert.NotNil(t, tcs.Price.SMA20)
	assert.NotNil(t, tcs.Price.EMA50)

	assert.FileExists(t, layout.FeaturesCSV(runDay))
}

func TestFeatureStageRerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	layout := export.Layout{DataDir: t.TempDir()}
	db := newTestStore(t)
	provider := &stubProvider{series: map[string][]models.Candle{"TCS": dailySeries(runDay, 40)}}
	stage := newFeatureStage(layout, provider, db)

	require.NoError(t, export.WriteJSON(layout.ProcessedJSON(runDay), newBuilder().Build(ctx, testItems())))

	_, err := stage.Run(ctx, runDay, 30)
	require.NoError(t, err)
	first, err := db.GetFeatureRows(ctx, runDay)
	require.NoError(t, err)
	firstCSV, err := os.ReadFile(layout.FeaturesCSV(runDay))
	require.NoError(t, err)

	_, err = stage.Run(ctx, runDay, 30)
	require.NoError(t, err)
	second, err := db.GetFeatureRows(ctx, runDay)
	require.NoError(t, err)
	secondCSV, err := os.ReadFile(layout.FeaturesCSV(runDay))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, string(firstCSV), string(secondCSV))
}

func TestFeatureStageWithoutNews(t *testing.T) {
	ctx := context.Background()
	layout := export.Layout{DataDir: t.TempDir()}
	provider := &stubProvider{}
	stage := newFeatureStage(layout, provider, newTestStore(t))

	require.NoError(t, export.WriteJSON(layout.ProcessedJSON(runDay), []models.NlpRecord{}))
	res, err := stage.Run(ctx, runDay, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Rows)
	assert.Empty(t, provider.asked)
	assert.NoFileExists(t, layout.FeaturesCSV(runDay))
}

func TestFeatureStageIndicatorFailureKeepsNewsRows(t *testing.T) {
	ctx := context.Background()
	layout := export.Layout{DataDir: t.TempDir()}
	db := newTestStore(t)
	provider := &stubProvider{series: map[string][]models.Candle{"TCS": dailySeries(runDay, 60)}}

	var logs bytes.Buffer
	params := indicators.DefaultParams()
	params.MACDFast, params.MACDSlow = 30, 26
	stage := NewFeatureStage(layout, provider, indicators.NewEngine(2), db, FeatureStageConfig{
		LookbackDays: 120,
		Concurrency:  1,
		Params:       params,
	}, zerolog.New(&logs))

	require.NoError(t, export.WriteJSON(layout.ProcessedJSON(runDay), newBuilder().Build(ctx, testItems())))
	res, err := stage.Run(ctx, runDay, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Zero(t, res.WithPrices)
	assert.Contains(t, logs.String(), "Failed to compute indicators")
	assert.Contains(t, logs.String(), `"symbol":"TCS"`)

	rows, err := db.GetFeatureRows(ctx, runDay)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Nil(t, row.Price)
	}
}

func TestFeatureStageRerunDropsStaleSymbols(t *testing.T) {
	ctx := context.Background()
	layout := export.Layout{DataDir: t.TempDir()}
	db := newTestStore(t)
	stage := newFeatureStage(layout, &stubProvider{}, db)

	require.NoError(t, export.WriteJSON(layout.ProcessedJSON(runDay), newBuilder().Build(ctx, testItems())))
	_, err := stage.Run(ctx, runDay, 0)
	require.NoError(t, err)
	rows, err := db.GetFeatureRows(ctx, runDay)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// INFY no longer resolves
	onlyTCS := NewRecordBuilder(nlp.NewSymbolResolver(testIndex()[:1]), nlp.NewEventTagger(true), nlp.NewRuleScorer(0), 5)
	items := testItems()
	items[1].CompanySymbols = nil
	require.NoError(t, export.WriteJSON(layout.ProcessedJSON(runDay), onlyTCS.Build(ctx, items)))
	res, err := stage.Run(ctx, runDay, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	rows, err = db.GetFeatureRows(ctx, runDay)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "TCS", rows[0].Symbol)

	// a day without news clears the date
	require.NoError(t, export.WriteJSON(layout.ProcessedJSON(runDay), []models.NlpRecord{}))
	_, err = stage.Run(ctx, runDay, 0)
	require.NoError(t, err)
	rows, err = db.GetFeatureRows(ctx, runDay)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

type staticFeeds struct {
	items []models.RawItem
}

func (s staticFeeds) FetchAll(_ context.Context, _ []string) []models.RawItem {
	return s.items
}

type staticAnnouncements struct {
	items []models.RawItem
	day   time.Time
}

func (s *staticAnnouncements) Fetch(_ context.Context, day time.Time) []models.RawItem {
	s.day = day
	return s.items
}

func TestFetchStage(t *testing.T) {
	ctx := context.Background()
	layout := export.Layout{DataDir: t.TempDir()}
	db := newTestStore(t)

	items := testItems()
	feeds := staticFeeds{items: append([]models.RawItem{}, items[0], items[2], items[0])}
	ann := &staticAnnouncements{items: []models.RawItem{items[1], {Title: "no url"}}}
	stage := NewFetchStage(layout, []string{"https://feed.example/rss"}, feeds, ann, db, zerolog.Nop())

	res, err := stage.Run(ctx, runDay)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Fetched)
	assert.Equal(t, 3, res.Unique)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, runDay, ann.day.Format(models.DateLayout))

	var raw []models.RawItem
	require.NoError(t, export.ReadJSON(layout.RawJSON(runDay), &raw))
	require.Len(t, raw, 3)
	assert.Equal(t, items[0].URL, raw[0].URL)
	assert.Equal(t, items[2].URL, raw[1].URL)
	assert.Equal(t, items[1].URL, raw[2].URL)

	res, err = stage.Run(ctx, runDay)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)

	_, err = stage.Run(ctx, "02-05-2024")
	assert.Error(t, err)
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	layout := export.Layout{DataDir: t.TempDir()}
	db := newTestStore(t)
	provider := &stubProvider{series: map[string][]models.Candle{"TCS": dailySeries(runDay, 60)}}

	p := &Pipeline{
		Fetch:    NewFetchStage(layout, nil, staticFeeds{items: testItems()}, nil, db, zerolog.Nop()),
		NLP:      NewNLPStage(layout, newBuilder(), db, zerolog.Nop()),
		Features: newFeatureStage(layout, provider, db),
	}

	res, err := p.Run(ctx, runDay, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Fetch.Unique)
	assert.Equal(t, 4, res.NLP.Processed)
	assert.Equal(t, 2, res.Features.Rows)

	again, err := p.Run(ctx, runDay, 0)
	require.NoError(t, err)
	assert.Equal(t, res.Features.Rows, again.Features.Rows)

	rows, err := db.GetFeatureRows(ctx, runDay)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
