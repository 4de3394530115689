package nlp

import (
	"regexp"

	"nse-newsfeatures/internal/models"
)

type eventRule struct {
	tag      models.EventTag
	patterns []*regexp.Regexp
}

// eventRules is evaluated in canonical tag order. Read-only after init.
var eventRules = []eventRule{
	{models.EventEarnings, compileAll(
		`results? (?:for|of|q[1-4]|quarter|annual|fy\d{2,4})`,
		`financial (?:results|statements)`,
	)},
	{models.EventDividend, compileAll(`dividend`, `interim dividend|final dividend`)},
	{models.EventBuyback, compileAll(`buy\s*back|share repurchase`)},
	{models.EventSplit, compileAll(`stock split|split.*face value`)},
	{models.EventBonus, compileAll(`bonus (?:issue|shares)`)},
	{models.EventMergerAcquisition, compileAll(`merger|amalgamation|acquisition|acquires|takeover`)},
	{models.EventBoardMeeting, compileAll(`board meeting`)},
	{models.EventPledge, compileAll(`pledge|pledging of shares`)},
	{models.EventLitigation, compileAll(`litigation|lawsuit|legal notice|court order|writ`)},
	{models.EventRegulatory, compileAll(`SEBI|RBI|NCLT|NCLAT|SAT|regulator|show cause`)},
	{models.EventRatingAction, compileAll(
		`credit rating|rating (?:upgrade|downgrade|affirmed)`,
		`CRISIL|ICRA|CARE Ratings|Fitch|Moody`,
	)},
	{models.EventOrderWin, compileAll(`order win|secures order|bags order|contract worth`)},
	{models.EventGuidance, compileAll(`guidance|outlook|revenue guidance|EBITDA guidance`)},
	{models.EventCapex, compileAll(`capex|capital expenditure|expansion plan`)},
	{models.EventInsiderTrade, compileAll(`insider trading|promoter (?:buy|sell)|share sale by promoter`)},
	{models.EventFundraise, compileAll(`QIP|qualified institutional placement|rights issue|preferential issue|NCD|debenture issue`)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// DetectEvents returns every event tag with at least one matching pattern,
// in canonical order.
func DetectEvents(text string) []models.EventTag {
	tags := make([]models.EventTag, 0, 2)
	if text == "" {
		return tags
	}
	for _, rule := range eventRules {
		for _, p := range rule.patterns {
			if p.MatchString(text) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	return tags
}

// EventTagger wraps DetectEvents with an on/off switch.
type EventTagger struct {
	Enabled bool
}

// NewEventTagger creates a new EventTagger.
func NewEventTagger(enabled bool) EventTagger {
	return EventTagger{Enabled: enabled}
}

// Detect returns the event tags of text, or none when the tagger is disabled.
func (t EventTagger) Detect(text string) []models.EventTag {
	if !t.Enabled {
		return []models.EventTag{}
	}
	return DetectEvents(text)
}
