package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/export"
	"nse-newsfeatures/internal/logging"
	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/sources"
	"nse-newsfeatures/pkg/utils"
)

// FeedSource reads the configured RSS feeds.
type FeedSource interface {
	FetchAll(ctx context.Context, feeds []string) []models.RawItem
}

// AnnouncementSource reads exchange announcements for a day.
type AnnouncementSource interface {
	Fetch(ctx context.Context, day time.Time) []models.RawItem
}

// RawStore persists raw items, ignoring URLs already stored.
type RawStore interface {
	SaveRawItems(ctx context.Context, items []models.RawItem) (int, error)
}

// FetchResult summarizes a fetch stage run.
type FetchResult struct {
	Day      string
	Fetched  int
	Unique   int
	Inserted int
	Path     string
}

// FetchStage collects the raw items of a day.
type FetchStage struct {
	layout        export.Layout
	feeds         []string
	rss           FeedSource
	announcements AnnouncementSource
	store         RawStore
	logger        zerolog.Logger
}

// NewFetchStage creates the fetch stage. announcements may be nil.
func NewFetchStage(layout export.Layout, feeds []string, rss FeedSource, announcements AnnouncementSource, store RawStore, logger zerolog.Logger) *FetchStage {
	return &FetchStage{
		layout:        layout,
		feeds:         feeds,
		rss:           rss,
		announcements: announcements,
		store:         store,
		logger:        logging.WithStage(logger, "fetch"),
	}
}

// Run fetches, dedupes by URL and writes data/raw/<day>.json.
func (s *FetchStage) Run(ctx context.Context, day string) (FetchResult, error) {
	logger := logging.WithDay(s.logger, day)
	date, err := utils.DayStart(day)
	if err != nil {
		return FetchResult{}, apperrors.Wrapf(err, "invalid day %q", day)
	}

	var items []models.RawItem
	if s.rss != nil {
		items = append(items, s.rss.FetchAll(ctx, s.feeds)...)
	}
	if s.announcements != nil {
		items = append(items, s.announcements.Fetch(ctx, date)...)
	}
	if err := ctx.Err(); err != nil {
		return FetchResult{}, err
	}

	unique := sources.Dedupe(items)
	res := FetchResult{
		Day:     day,
		Fetched: len(items),
		Unique:  len(unique),
		Path:    s.layout.RawJSON(day),
	}

	if err := export.WriteJSON(res.Path, unique); err != nil {
		return res, err
	}

	if s.store != nil {
		inserted, err := s.store.SaveRawItems(ctx, unique)
		if err != nil {
			return res, apperrors.Wrap(err, "failed to store raw items")
		}
		res.Inserted = inserted
	}

	logging.LogStageSummary(logger, "fetch", map[string]int{
		"fetched":  res.Fetched,
		"unique":   res.Unique,
		"inserted": res.Inserted,
	})
	return res, nil
}
