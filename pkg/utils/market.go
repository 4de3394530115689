package utils

import (
	"fmt"
	"strings"
	"time"

	"nse-newsfeatures/internal/models"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// LoadLocation resolves a zone name, falling back to IndiaLocation when empty.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return IndiaLocation, nil
	}
	return time.LoadLocation(name)
}

// Today returns the current calendar day in loc as YYYY-MM-DD.
func Today(loc *time.Location) string {
	if loc == nil {
		loc = IndiaLocation
	}
	return time.Now().In(loc).Format(models.DateLayout)
}

// ResolveDay turns "today" or an empty value into the current day in loc and
// validates anything else as YYYY-MM-DD.
func ResolveDay(value string, loc *time.Location) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "today") {
		return Today(loc), nil
	}
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return "", fmt.Errorf("invalid date %q, want YYYY-MM-DD or today: %w", value, err)
	}
	return value, nil
}

// CalendarDate returns midnight UTC of the calendar day t falls on in loc.
// Daily candles are keyed by this value.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = IndiaLocation
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// DayStart parses a YYYY-MM-DD day into midnight UTC.
func DayStart(day string) (time.Time, error) {
	return time.Parse(models.DateLayout, day)
}

// IsWeekend reports whether the day falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
