package nlp

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/models"
)

// Engine identifiers reported in Sentiment.Engine.
const (
	EngineRule   = "rule"
	EngineOpenAI = "openai"
)

// DefaultThreshold is the polarity boundary of the rule scorer.
const DefaultThreshold = 0.15

// DefaultMaxInputChars bounds the text sent to an external classifier.
const DefaultMaxInputChars = 512

var positiveWords = []string{
	"profit", "growth", "surge", "rally", "upgrade", "order win", "bags order",
	"raises guidance", "beat", "beats", "dividend", "bonus", "buyback", "record",
	"approval", "approved", "secures", "margin expansion", "expansion",
	"qip success", "all-time high", "acquires",
}

var negativeWords = []string{
	"loss", "decline", "falls", "downgrade", "probe", "fraud", "pledge", "default",
	"delay", "resigns", "resignation", "litigation", "penalty", "raid", "sebi notice",
	"weak", "guidance cut", "miss", "fire", "closure", "strike", "bankruptcy",
	"insolvency",
}

// Sentiment is the scored polarity of a text.
type Sentiment struct {
	Label  models.SentimentLabel
	Score  float64
	Engine string
}

// Scorer assigns a sentiment to text. Implementations never fail.
type Scorer interface {
	Score(ctx context.Context, text string) Sentiment
}

// RuleScorer scores text by keyword presence.
type RuleScorer struct {
	threshold float64
}

// NewRuleScorer creates a rule scorer. A non-positive threshold means DefaultThreshold.
func NewRuleScorer(threshold float64) *RuleScorer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &RuleScorer{threshold: threshold}
}

// Score implements Scorer.
func (s *RuleScorer) Score(_ context.Context, text string) Sentiment {
	t := strings.ToLower(text)
	pos := countPresent(t, positiveWords)
	neg := countPresent(t, negativeWords)
	if pos == 0 && neg == 0 {
		return Sentiment{Label: models.SentimentNeutral, Score: 0, Engine: EngineRule}
	}

	score := float64(pos-neg) / float64(pos+neg)
	return Sentiment{Label: s.label(score), Score: score, Engine: EngineRule}
}

func (s *RuleScorer) label(score float64) models.SentimentLabel {
	switch {
	case score > s.threshold:
		return models.SentimentPositive
	case score < -s.threshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func countPresent(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// Classifier is an external text classifier.
// It returns a free-form label and a confidence in [0, 1].
type Classifier interface {
	Classify(ctx context.Context, text string) (label string, confidence float64, err error)
}

// ExternalScorer delegates to a Classifier and falls back to rules on any failure.
type ExternalScorer struct {
	engine        string
	classifier    Classifier
	fallback      *RuleScorer
	maxInputChars int
	timeout       time.Duration
	logger        zerolog.Logger
}

// NewExternalScorer creates a scorer backed by classifier.
func NewExternalScorer(cfg ScorerConfig, classifier Classifier, logger zerolog.Logger) *ExternalScorer {
	if cfg.Engine == "" {
		cfg.Engine = EngineOpenAI
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	return &ExternalScorer{
		engine:        cfg.Engine,
		classifier:    classifier,
		fallback:      NewRuleScorer(cfg.Threshold),
		maxInputChars: cfg.MaxInputChars,
		timeout:       cfg.Timeout,
		logger:        logger,
	}
}

// Score implements Scorer.
func (s *ExternalScorer) Score(ctx context.Context, text string) Sentiment {
	sent, err := s.classify(ctx, text)
	if err != nil {
		s.logger.Debug().Err(err).Str("engine", s.engine).Msg("External scorer failed, using rule engine")
		return s.fallback.Score(ctx, text)
	}
	return sent
}

func (s *ExternalScorer) classify(ctx context.Context, text string) (Sentiment, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	label, confidence, err := s.classifier.Classify(ctx, truncateRunes(text, s.maxInputChars))
	if err != nil {
		return Sentiment{}, apperrors.NewScorerError(s.engine, "classify", err)
	}
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) || confidence < 0 || confidence > 1 {
		return Sentiment{}, apperrors.NewScorerError(s.engine, "classify", apperrors.ErrClassifierResponse)
	}

	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "pos"):
		return Sentiment{Label: models.SentimentPositive, Score: confidence, Engine: s.engine}, nil
	case strings.Contains(l, "neg"):
		return Sentiment{Label: models.SentimentNegative, Score: -confidence, Engine: s.engine}, nil
	case strings.Contains(l, "neu"):
		return Sentiment{Label: models.SentimentNeutral, Score: 0, Engine: s.engine}, nil
	default:
		return Sentiment{}, apperrors.NewScorerError(s.engine, "classify", apperrors.ErrClassifierResponse)
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// ScorerConfig selects the scoring strategy.
type ScorerConfig struct {
	Engine        string
	Threshold     float64
	MaxInputChars int
	Timeout       time.Duration
}

// NewScorer selects the scoring strategy once. The rule engine is used when
// configured or when no classifier is available for an external engine.
func NewScorer(cfg ScorerConfig, classifier Classifier, logger zerolog.Logger) Scorer {
	engine := strings.ToLower(strings.TrimSpace(cfg.Engine))
	if engine == "" || engine == EngineRule {
		return NewRuleScorer(cfg.Threshold)
	}
	if classifier == nil {
		logger.Warn().Str("engine", engine).Msg("No classifier available for sentiment engine, using rule engine")
		return NewRuleScorer(cfg.Threshold)
	}
	cfg.Engine = engine
	return NewExternalScorer(cfg, classifier, logger)
}
