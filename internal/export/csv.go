package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/store"
)

// ListSeparator joins list-valued cells in CSV output.
const ListSeparator = ";"

// nlpRow is the CSV shape of an NlpRecord.
type nlpRow struct {
	URL             string `csv:"url"`
	Title           string `csv:"title"`
	PublishedAt     string `csv:"published_at"`
	Symbols         string `csv:"symbols"`
	Events          string `csv:"events"`
	SentimentLabel  string `csv:"sentiment_label"`
	SentimentScore  string `csv:"sentiment_score"`
	SentimentEngine string `csv:"sentiment_engine"`
	Source          string `csv:"source"`
}

// WriteNlpCSV writes records with one row per item.
func WriteNlpCSV(path string, records []models.NlpRecord) error {
	rows := make([]*nlpRow, 0, len(records))
	for _, r := range records {
		events := make([]string, len(r.Events))
		for i, e := range r.Events {
			events[i] = string(e)
		}
		row := &nlpRow{
			URL:             r.URL,
			Title:           r.Title,
			Symbols:         strings.Join(r.Symbols, ListSeparator),
			Events:          strings.Join(events, ListSeparator),
			SentimentLabel:  string(r.SentimentLabel),
			SentimentScore:  formatFloat(r.SentimentScore),
			SentimentEngine: r.SentimentEngine,
			Source:          r.Source,
		}
		if r.PublishedAt != nil {
			row.PublishedAt = *r.PublishedAt
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	if len(rows) == 0 {
		buf.WriteString(strings.Join(nlpHeader(), ",") + "\n")
	} else if err := gocsv.Marshal(rows, &buf); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

func nlpHeader() []string {
	return []string{
		"url", "title", "published_at", "symbols", "events",
		"sentiment_label", "sentiment_score", "sentiment_engine", "source",
	}
}

// WriteFeatureCSV writes feature rows with the feature table's columns.
// Event counts follow the canonical tag order; missing values are empty cells.
func WriteFeatureCSV(path string, rows []models.FeatureRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(store.FeatureColumns()); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(featureRecord(row)); err != nil {
			return fmt.Errorf("failed to encode %s: %w", row.Key(), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

func featureRecord(row models.FeatureRow) []string {
	n := row.News
	rec := []string{
		row.Date, row.Symbol,
		strconv.Itoa(n.NewsCount), strconv.Itoa(n.PosCount), strconv.Itoa(n.NegCount), strconv.Itoa(n.NeuCount),
		formatPtr(n.SentMean), formatPtr(n.SentMax), formatPtr(n.SentMin),
		formatFloat(n.PosRatio), formatFloat(n.NegRatio),
	}
	for _, tag := range models.AllEventTags() {
		rec = append(rec, strconv.Itoa(n.EventCounts[tag]))
	}

	if row.Price == nil {
		rec = append(rec, "")
		for range store.PriceValues(&models.PriceSnapshot{}) {
			rec = append(rec, "")
		}
		return rec
	}
	rec = append(rec, row.Price.Date)
	for _, v := range store.PriceValues(row.Price) {
		rec = append(rec, formatPtr(v))
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
