// Package features builds the per-(date, symbol) feature rows from NLP records
// and price snapshots.
package features

import (
	"math"
	"sort"
	"time"

	"nse-newsfeatures/internal/models"
)

// MinRatioDenominator is the floor applied to news_count when deriving
// pos_ratio and neg_ratio.
const MinRatioDenominator = 1

// Aggregator groups NLP records into daily per-symbol aggregates.
type Aggregator struct {
	minDenominator int
}

// NewAggregator creates an aggregator. A minDenominator below 1 uses MinRatioDenominator.
func NewAggregator(minDenominator int) *Aggregator {
	if minDenominator < 1 {
		minDenominator = MinRatioDenominator
	}
	return &Aggregator{minDenominator: minDenominator}
}

// BuildNewsFeatures aggregates records with the default ratio floor.
func BuildNewsFeatures(records []models.NlpRecord) []models.NewsDailyAggregate {
	return NewAggregator(MinRatioDenominator).Build(records)
}

// explodedRow is one (record, symbol) pair.
type explodedRow struct {
	date   string
	symbol string
	rec    *models.NlpRecord
}

type groupKey struct {
	date   string
	symbol string
}

// Build explodes records by symbol, groups by (date, symbol) and aggregates.
// Records without a parsable date contribute nothing. The result is sorted by
// date then symbol and is never nil.
func (a *Aggregator) Build(records []models.NlpRecord) []models.NewsDailyAggregate {
	rows := explode(records)
	if len(rows) == 0 {
		return []models.NewsDailyAggregate{}
	}

	groups := make(map[groupKey][]explodedRow)
	var keys []groupKey
	for _, r := range rows {
		k := groupKey{date: r.date, symbol: r.symbol}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].symbol < keys[j].symbol
	})

	out := make([]models.NewsDailyAggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.aggregate(k, groups[k]))
	}
	return out
}

func explode(records []models.NlpRecord) []explodedRow {
	var rows []explodedRow
	for i := range records {
		rec := &records[i]
		date, ok := RecordDate(rec.PublishedAt)
		if !ok {
			continue
		}
		for _, sym := range rec.Symbols {
			if sym == "" {
				continue
			}
			rows = append(rows, explodedRow{date: date, symbol: sym, rec: rec})
		}
	}
	return rows
}

// RecordDate truncates an ISO-8601 timestamp to its calendar day.
func RecordDate(publishedAt *string) (string, bool) {
	if publishedAt == nil || len(*publishedAt) < len(models.DateLayout) {
		return "", false
	}
	day := (*publishedAt)[:len(models.DateLayout)]
	if _, err := time.Parse(models.DateLayout, day); err != nil {
		return "", false
	}
	return day, true
}

func (a *Aggregator) aggregate(k groupKey, rows []explodedRow) models.NewsDailyAggregate {
	agg := models.NewsDailyAggregate{
		Date:        k.date,
		Symbol:      k.symbol,
		NewsCount:   len(rows),
		EventCounts: make(map[models.EventTag]int),
	}
	for _, tag := range models.AllEventTags() {
		agg.EventCounts[tag] = 0
	}

	var sum float64
	var finite int
	minScore, maxScore := math.Inf(1), math.Inf(-1)

	for _, r := range rows {
		switch r.rec.SentimentLabel {
		case models.SentimentPositive:
			agg.PosCount++
		case models.SentimentNegative:
			agg.NegCount++
		case models.SentimentNeutral:
			agg.NeuCount++
		}

		for _, tag := range models.AllEventTags() {
			if r.rec.HasEvent(tag) {
				agg.EventCounts[tag]++
			}
		}

		s := r.rec.SentimentScore
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		sum += s
		finite++
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}

	if finite > 0 {
		agg.SentMean = models.Float(sum / float64(finite))
		agg.SentMax = models.Float(maxScore)
		agg.SentMin = models.Float(minScore)
	}

	denom := float64(agg.NewsCount)
	if agg.NewsCount < a.minDenominator {
		denom = float64(a.minDenominator)
	}
	agg.PosRatio = float64(agg.PosCount) / denom
	agg.NegRatio = float64(agg.NegCount) / denom

	return agg
}

// Symbols returns the distinct symbols of aggs in first-seen order.
func Symbols(aggs []models.NewsDailyAggregate) []string {
	seen := make(map[string]bool, len(aggs))
	var out []string
	for _, a := range aggs {
		if !seen[a.Symbol] {
			seen[a.Symbol] = true
			out = append(out, a.Symbol)
		}
	}
	return out
}

// CountUnmapped returns how many records carry no symbol at all.
func CountUnmapped(records []models.NlpRecord) int {
	n := 0
	for _, r := range records {
		if len(r.Symbols) == 0 {
			n++
		}
	}
	return n
}

// ForDate returns the aggregates dated date, preserving order.
func ForDate(aggs []models.NewsDailyAggregate, date string) []models.NewsDailyAggregate {
	out := make([]models.NewsDailyAggregate, 0, len(aggs))
	for _, a := range aggs {
		if a.Date == date {
			out = append(out, a)
		}
	}
	return out
}
