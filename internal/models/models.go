// Package models provides domain models for the news feature pipeline.
package models

import (
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// DateLayout is the calendar-day layout used for run dates and feature keys.
const DateLayout = "2006-01-02"

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Day returns the candle's calendar date.
func (c Candle) Day() string {
	return c.Timestamp.Format(DateLayout)
}

// SymbolIndexEntry is one row of the reference symbol index.
// Aliases holds the company name, the declared aliases and the symbol itself, in that order.
type SymbolIndexEntry struct {
	Symbol  string   `json:"symbol"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Float returns a pointer to v. Used for nullable numeric fields.
func Float(v float64) *float64 {
	return &v
}
