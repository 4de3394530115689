package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/export"
	"nse-newsfeatures/internal/features"
	"nse-newsfeatures/internal/logging"
	"nse-newsfeatures/internal/models"
)

// NlpStore upserts NLP records by URL.
type NlpStore interface {
	UpsertNlpRecords(ctx context.Context, records []models.NlpRecord) (inserted, updated int, err error)
}

// NLPResult summarizes an NLP stage run.
type NLPResult struct {
	Day       string
	Processed int
	Inserted  int
	Updated   int
	Unmapped  int
	JSONPath  string
	CSVPath   string
}

// NLPStage derives NLP records from the raw items of a day.
type NLPStage struct {
	layout  export.Layout
	builder *RecordBuilder
	store   NlpStore
	logger  zerolog.Logger
}

// NewNLPStage creates the NLP stage.
func NewNLPStage(layout export.Layout, builder *RecordBuilder, store NlpStore, logger zerolog.Logger) *NLPStage {
	return &NLPStage{
		layout:  layout,
		builder: builder,
		store:   store,
		logger:  logging.WithStage(logger, "nlp"),
	}
}

// Run reads data/raw/<day>.json, writes the processed JSON and CSV and
// upserts the records. A missing raw file is fatal.
func (s *NLPStage) Run(ctx context.Context, day string) (NLPResult, error) {
	logger := logging.WithDay(s.logger, day)
	res := NLPResult{
		Day:      day,
		JSONPath: s.layout.ProcessedJSON(day),
		CSVPath:  s.layout.ProcessedCSV(day),
	}

	rawPath := s.layout.RawJSON(day)
	var items []models.RawItem
	if err := export.ReadJSON(rawPath, &items); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, fmt.Errorf("%s: %w", rawPath, apperrors.ErrRawFileMissing)
		}
		return res, err
	}

	records := s.builder.Build(ctx, items)
	res.Processed = len(records)
	res.Unmapped = features.CountUnmapped(records)

	if err := export.WriteJSON(res.JSONPath, records); err != nil {
		return res, err
	}
	if err := export.WriteNlpCSV(res.CSVPath, records); err != nil {
		return res, err
	}

	inserted, updated, err := s.store.UpsertNlpRecords(ctx, records)
	if err != nil {
		return res, apperrors.Wrap(err, "failed to store nlp records")
	}
	res.Inserted, res.Updated = inserted, updated

	if res.Unmapped > 0 {
		logger.Info().Int("unmapped", res.Unmapped).Msg("Items without any symbol")
	}
	logging.LogStageSummary(logger, "nlp", map[string]int{
		"processed": res.Processed,
		"inserted":  res.Inserted,
		"updated":   res.Updated,
		"unmapped":  res.Unmapped,
	})
	return res, nil
}
