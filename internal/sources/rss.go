// Package sources collects the day's raw news items from RSS feeds and NSE
// corporate announcements.
package sources

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/logging"
	"nse-newsfeatures/internal/models"
)

// Source ids stamped on raw items.
const (
	SourceRSS           = "rss"
	SourceNSECorporate  = "nse_corporate"
	DefaultFeedTimeout  = 20 * time.Second
	publishedTimeLayout = time.RFC3339
)

// FeedFetcher reads RSS/Atom feeds with gofeed.
type FeedFetcher struct {
	timeout time.Duration
	loc     *time.Location
	logger  zerolog.Logger
}

// NewFeedFetcher creates a fetcher that renders timestamps in loc.
func NewFeedFetcher(timeout time.Duration, loc *time.Location, logger zerolog.Logger) *FeedFetcher {
	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FeedFetcher{
		timeout: timeout,
		loc:     loc,
		logger:  logger.With().Str("source", SourceRSS).Logger(),
	}
}

// FetchAll reads every feed in order. A failing feed is logged and skipped.
func (f *FeedFetcher) FetchAll(ctx context.Context, feeds []string) []models.RawItem {
	var items []models.RawItem
	for _, url := range feeds {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		items = append(items, f.Fetch(ctx, url)...)
	}
	return items
}

// Fetch reads one feed. Any error yields an empty result.
func (f *FeedFetcher) Fetch(ctx context.Context, url string) []models.RawItem {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		logging.LogFetch(f.logger, SourceRSS, url, 0, time.Since(start), apperrors.NewFetchError(SourceRSS, url, err))
		return nil
	}

	items := make([]models.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		items = append(items, f.parseEntry(entry))
	}
	logging.LogFetch(f.logger, SourceRSS, url, len(items), time.Since(start), nil)
	return items
}

func (f *FeedFetcher) parseEntry(entry *gofeed.Item) models.RawItem {
	item := models.RawItem{
		Source:         SourceRSS,
		Title:          entry.Title,
		Summary:        entry.Description,
		URL:            entry.Link,
		CompanySymbols: []string{},
	}

	switch {
	case entry.PublishedParsed != nil:
		s := entry.PublishedParsed.In(f.loc).Format(publishedTimeLayout)
		item.PublishedAt = &s
	case entry.UpdatedParsed != nil:
		s := entry.UpdatedParsed.In(f.loc).Format(publishedTimeLayout)
		item.PublishedAt = &s
	}

	var id interface{}
	if entry.GUID != "" {
		id = entry.GUID
	}
	item.Raw, _ = json.Marshal(map[string]interface{}{"id": id})
	return item
}

// Dedupe keeps the first item of each non-empty trimmed URL, in input order.
// Items without a URL are dropped.
func Dedupe(items []models.RawItem) []models.RawItem {
	seen := make(map[string]bool, len(items))
	out := make([]models.RawItem, 0, len(items))
	for _, it := range items {
		key := strings.TrimSpace(it.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		it.URL = key
		out = append(out, it)
	}
	return out
}
