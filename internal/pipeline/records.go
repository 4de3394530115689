// Package pipeline runs the daily stages: fetch raw news, derive per-item NLP
// records and build the per-symbol feature rows.
package pipeline

import (
	"context"
	"strings"

	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/nlp"
	"nse-newsfeatures/internal/sources"
)

// RecordBuilder turns raw items into NLP records.
type RecordBuilder struct {
	resolver   *nlp.SymbolResolver
	tagger     nlp.EventTagger
	scorer     nlp.Scorer
	maxSymbols int
}

// NewRecordBuilder creates a builder. maxSymbols bounds the symbols resolved
// from text; declared symbols are always kept.
func NewRecordBuilder(resolver *nlp.SymbolResolver, tagger nlp.EventTagger, scorer nlp.Scorer, maxSymbols int) *RecordBuilder {
	if maxSymbols <= 0 {
		maxSymbols = nlp.DefaultMaxSymbols
	}
	return &RecordBuilder{
		resolver:   resolver,
		tagger:     tagger,
		scorer:     scorer,
		maxSymbols: maxSymbols,
	}
}

// Build returns exactly one record per item, in input order.
func (b *RecordBuilder) Build(ctx context.Context, items []models.RawItem) []models.NlpRecord {
	records := make([]models.NlpRecord, 0, len(items))
	for _, it := range items {
		records = append(records, b.record(ctx, it))
	}
	return records
}

func (b *RecordBuilder) record(ctx context.Context, it models.RawItem) models.NlpRecord {
	text := nlp.CleanText(it.Title + ". " + it.Summary)

	var resolved []string
	if b.resolver != nil {
		resolved = b.resolver.Resolve(text, b.maxSymbols)
	}
	sent := b.scorer.Score(ctx, text)

	source := it.Source
	if source == "" {
		source = sources.SourceRSS
	}

	return models.NlpRecord{
		URL:             it.URL,
		Title:           it.Title,
		PublishedAt:     it.PublishedAt,
		Symbols:         mergeSymbols(it.CompanySymbols, resolved),
		Events:          b.tagger.Detect(text),
		SentimentLabel:  sent.Label,
		SentimentScore:  sent.Score,
		SentimentEngine: sent.Engine,
		Source:          source,
	}
}

// mergeSymbols returns declared followed by resolved, first occurrence wins.
func mergeSymbols(declared, resolved []string) []string {
	out := make([]string, 0, len(declared)+len(resolved))
	seen := make(map[string]struct{}, cap(out))
	add := func(sym string) {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			return
		}
		if _, ok := seen[sym]; ok {
			return
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	for _, s := range declared {
		add(s)
	}
	for _, s := range resolved {
		add(s)
	}
	return out
}
