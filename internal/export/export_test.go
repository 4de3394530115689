package export

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/store"
)

func f64(v float64) *float64 { return &v }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	records, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return records
}

func TestLayout(t *testing.T) {
	l := Layout{DataDir: "data"}
	assert.Equal(t, filepath.Join("data", "raw", "2024-05-02.json"), l.RawJSON("2024-05-02"))
	assert.Equal(t, filepath.Join("data", "processed", "2024-05-02.json"), l.ProcessedJSON("2024-05-02"))
	assert.Equal(t, filepath.Join("data", "processed", "2024-05-02.csv"), l.ProcessedCSV("2024-05-02"))
	assert.Equal(t, filepath.Join("data", "processed", "features", "2024-05-02.csv"), l.FeaturesCSV("2024-05-02"))
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "raw.json")
	published := "2024-05-02T10:00:00+05:30"
	items := []models.RawItem{{
		Source: "rss", Title: "TCS wins order", URL: "https://x/1",
		PublishedAt: &published, CompanySymbols: []string{"TCS"},
	}}
	require.NoError(t, WriteJSON(path, items))

	var got []models.RawItem
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, items[0].Title, got[0].Title)
	assert.Equal(t, published, *got[0].PublishedAt)

	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &got)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteNlpCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed", "2024-05-02.csv")
	records := []models.NlpRecord{
		{
			URL: "https://x/1", Title: "TCS, Infosys rally", Symbols: []string{"TCS", "INFY"},
			Events:         []models.EventTag{models.EventEarnings, models.EventDividend},
			SentimentLabel: models.SentimentPositive, SentimentScore: 0.5, SentimentEngine: "rule", Source: "rss",
		},
		{URL: "https://x/2", Title: "Quiet day", Symbols: []string{}, Events: []models.EventTag{},
			SentimentLabel: models.SentimentNeutral, SentimentEngine: "rule", Source: "rss"},
	}
	require.NoError(t, WriteNlpCSV(path, records))

	got := readCSV(t, path)
	require.Len(t, got, 3)
	assert.Equal(t, nlpHeader(), got[0])
	assert.Equal(t, []string{"https://x/1", "TCS, Infosys rally", "", "TCS;INFY", "EARNINGS;DIVIDEND", "positive", "0.5", "rule", "rss"}, got[1])
	assert.Equal(t, "", got[2][3])
	assert.Equal(t, "0", got[2][6])

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, WriteNlpCSV(empty, nil))
	assert.Equal(t, [][]string{nlpHeader()}, readCSV(t, empty))
}

func TestWriteFeatureCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features", "2024-05-02.csv")
	rows := []models.FeatureRow{
		{
			Date: "2024-05-02", Symbol: "INFY",
			News: models.NewsDailyAggregate{
				Date: "2024-05-02", Symbol: "INFY", NewsCount: 2, PosCount: 1, NeuCount: 1,
				SentMean: f64(0.25), SentMax: f64(0.5), SentMin: f64(0), PosRatio: 0.5,
				EventCounts: map[models.EventTag]int{models.EventEarnings: 2},
			},
			Price: &models.PriceSnapshot{Symbol: "INFY", Date: "2024-05-02", Close: f64(1420.5), RSI: f64(55.1)},
		},
		{
			Date: "2024-05-02", Symbol: "ZZZ",
			News: models.NewsDailyAggregate{Date: "2024-05-02", Symbol: "ZZZ", NewsCount: 1, NeuCount: 1},
		},
	}
	require.NoError(t, WriteFeatureCSV(path, rows))

	got := readCSV(t, path)
	require.Len(t, got, 3)
	header := got[0]
	assert.Equal(t, store.FeatureColumns(), header)

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	infy := got[1]
	assert.Equal(t, "INFY", infy[col["symbol"]])
	assert.Equal(t, "0.25", infy[col["sent_mean"]])
	assert.Equal(t, "2", infy[col[store.EventColumn(models.EventEarnings)]])
	assert.Equal(t, "0", infy[col[store.EventColumn(models.EventFundraise)]])
	assert.Equal(t, "1420.5", infy[col["close"]])
	assert.Equal(t, "", infy[col["macd"]])

	zzz := got[2]
	assert.Len(t, zzz, len(header))
	assert.Equal(t, "", zzz[col["sent_mean"]])
	assert.Equal(t, "", zzz[col["price_date"]])
	assert.Equal(t, "", zzz[col["close"]])
}
