package models

import (
	"encoding/json"
)

// EventTag is a categorical label assigned to a news item.
type EventTag string

const (
	EventEarnings          EventTag = "EARNINGS"
	EventDividend          EventTag = "DIVIDEND"
	EventBuyback           EventTag = "BUYBACK"
	EventSplit             EventTag = "SPLIT"
	EventBonus             EventTag = "BONUS"
	EventMergerAcquisition EventTag = "MERGER_ACQUISITION"
	EventBoardMeeting      EventTag = "BOARD_MEETING"
	EventPledge            EventTag = "PLEDGE"
	EventLitigation        EventTag = "LITIGATION"
	EventRegulatory        EventTag = "REGULATORY"
	EventRatingAction      EventTag = "RATING_ACTION"
	EventOrderWin          EventTag = "ORDER_WIN"
	EventGuidance          EventTag = "GUIDANCE"
	EventCapex             EventTag = "CAPEX"
	EventInsiderTrade      EventTag = "INSIDER_TRADE"
	EventFundraise         EventTag = "FUNDRAISE"
)

var allEventTags = [...]EventTag{
	EventEarnings, EventDividend, EventBuyback, EventSplit, EventBonus,
	EventMergerAcquisition, EventBoardMeeting, EventPledge, EventLitigation,
	EventRegulatory, EventRatingAction, EventOrderWin, EventGuidance, EventCapex,
	EventInsiderTrade, EventFundraise,
}

// AllEventTags returns the closed event category set in canonical order.
func AllEventTags() []EventTag {
	out := make([]EventTag, len(allEventTags))
	copy(out, allEventTags[:])
	return out
}

// IsValid reports whether t belongs to the canonical category set.
func (t EventTag) IsValid() bool {
	for _, e := range allEventTags {
		if e == t {
			return true
		}
	}
	return false
}

// SentimentLabel is the polarity class of a piece of text.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// RawItem is a news item as emitted by a fetcher. URL is the natural key.
type RawItem struct {
	Source         string          `json:"source"`
	Title          string          `json:"title"`
	Summary        string          `json:"summary"`
	URL            string          `json:"url"`
	PublishedAt    *string         `json:"published_at"`
	CompanySymbols []string        `json:"company_symbols"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// NlpRecord is the per-item output of the NLP stage.
type NlpRecord struct {
	URL             string         `json:"url"`
	Title           string         `json:"title"`
	PublishedAt     *string        `json:"published_at"`
	Symbols         []string       `json:"symbols"`
	Events          []EventTag     `json:"events"`
	SentimentLabel  SentimentLabel `json:"sentiment_label"`
	SentimentScore  float64        `json:"sentiment_score"`
	SentimentEngine string         `json:"sentiment_engine"`
	Source          string         `json:"source"`
}

// HasEvent reports whether the record carries tag.
func (r NlpRecord) HasEvent(tag EventTag) bool {
	for _, e := range r.Events {
		if e == tag {
			return true
		}
	}
	return false
}
