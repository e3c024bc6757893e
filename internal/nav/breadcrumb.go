package nav

import (
	"fmt"
	"time"

	"github.com/mvolf/thermodash/internal/timekey"
)

// Segment is one breadcrumb entry. Inactive segments are navigable and
// carry the coarser (level, key) pair they lead back to.
type Segment struct {
	Label  string
	Level  timekey.Level
	Key    string
	Active bool
	Home   bool
}

// segmentLevel maps a key part to the level that expands it: the year part
// leads to the monthly view of that year, the month part to the daily view
// of that month, and so on down to the raw view of a minute.
func segmentLevel(g timekey.Granularity) (timekey.Level, bool) {
	switch g {
	case timekey.GranYear:
		return timekey.LevelMonthly, true
	case timekey.GranMonth:
		return timekey.LevelDaily, true
	case timekey.GranDay:
		return timekey.LevelHourly, true
	case timekey.GranHour:
		return timekey.LevelMinutely, true
	case timekey.GranMinute:
		return timekey.LevelRaw, true
	default:
		return "", false
	}
}

func segmentLabel(g timekey.Granularity, p timekey.Parts) string {
	switch g {
	case timekey.GranYear:
		return fmt.Sprintf("Year: %04d", p.Year)
	case timekey.GranMonth:
		return fmt.Sprintf("Month: %d", p.Month)
	case timekey.GranDay:
		return fmt.Sprintf("Day: %d", p.Day)
	case timekey.GranHour:
		return fmt.Sprintf("Hour: %02d", p.Hour)
	case timekey.GranMinute:
		return fmt.Sprintf("Minute: %02d", p.Minute)
	default:
		return ""
	}
}

// Breadcrumbs derives the navigable path for a (level, key) pair. The
// leading Home segment always re-enters at today's hourly view regardless
// of the current context. One segment is emitted per key part the level
// fills in, year first; the segment matching the current level is Active.
func Breadcrumbs(level timekey.Level, key string, now time.Time) []Segment {
	segments := []Segment{{
		Label: "Home",
		Level: timekey.LevelHourly,
		Key:   now.Format("2006-01-02"),
		Home:  true,
	}}

	p := timekey.ParseKey(key)
	deepest := timekey.KeyGranularity(level)
	if p.Gran < deepest {
		// A partial key only fills in the parts it has.
		deepest = p.Gran
	}

	for g := timekey.GranYear; g <= deepest; g++ {
		target, ok := segmentLevel(g)
		if !ok {
			continue
		}
		segments = append(segments, Segment{
			Label:  segmentLabel(g, p),
			Level:  target,
			Key:    p.Format(g),
			Active: target == level,
		})
	}
	return segments
}
