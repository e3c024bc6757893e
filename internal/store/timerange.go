package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/mvolf/thermodash/internal/timekey"
)

// Range resolution errors.
var (
	ErrEmptyKey      = errors.New("time key is required")
	ErrUnparsableKey = errors.New("unsupported time key format")
)

// ResolveLocation maps the client's timezone metadata to a location. A
// named zone is preferred; an unknown name falls back to the offset, and
// the offset alone yields a fixed zone. Offset is minutes east of UTC.
func ResolveLocation(tzName string, tzOffsetMinutes int) *time.Location {
	if tzName != "" {
		if loc, err := time.LoadLocation(tzName); err == nil {
			return loc
		}
	}
	if tzOffsetMinutes != 0 {
		return time.FixedZone(fmt.Sprintf("UTC%+d", tzOffsetMinutes/60), tzOffsetMinutes*60)
	}
	return time.UTC
}

// ResolveRange converts a local time key into the UTC interval it covers,
// start inclusive, end exclusive. The key's own granularity decides the
// bucket span: "2025-11" covers the month, "2025-11-11T14" the hour.
func ResolveRange(key string, loc *time.Location) (start, end time.Time, err error) {
	if key == "" {
		return time.Time{}, time.Time{}, ErrEmptyKey
	}
	if loc == nil {
		loc = time.UTC
	}

	p := timekey.ParseKey(key)
	gran := p.Gran
	if gran == timekey.GranNone {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableKey, key)
	}
	// Seconds narrow nothing; a second-precise key covers its minute.
	if gran > timekey.GranMinute {
		gran = timekey.GranMinute
	}

	localStart := time.Date(p.Year, time.Month(p.Month), p.Day, p.Hour, p.Minute, 0, 0, loc)

	var localEnd time.Time
	switch gran {
	case timekey.GranYear:
		localStart = time.Date(p.Year, 1, 1, 0, 0, 0, 0, loc)
		localEnd = localStart.AddDate(1, 0, 0)
	case timekey.GranMonth:
		localStart = time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
		localEnd = localStart.AddDate(0, 1, 0)
	case timekey.GranDay:
		localStart = time.Date(p.Year, time.Month(p.Month), p.Day, 0, 0, 0, 0, loc)
		localEnd = localStart.AddDate(0, 0, 1)
	case timekey.GranHour:
		localStart = time.Date(p.Year, time.Month(p.Month), p.Day, p.Hour, 0, 0, 0, loc)
		localEnd = localStart.Add(time.Hour)
	case timekey.GranMinute:
		localEnd = localStart.Add(time.Minute)
	}

	return localStart.UTC(), localEnd.UTC(), nil
}

// GroupLayout returns the sqlite strftime layout that buckets readings for
// a level. Raw has no grouping; callers use Range instead.
func GroupLayout(level timekey.Level) (string, bool) {
	switch level {
	case timekey.LevelMonthly:
		return "%Y-%m", true
	case timekey.LevelDaily:
		return "%Y-%m-%d", true
	case timekey.LevelHourly:
		return "%Y-%m-%d %H", true
	case timekey.LevelMinutely:
		return "%Y-%m-%d %H:%M", true
	default:
		return "", false
	}
}
