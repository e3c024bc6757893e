// Package timekey defines the aggregation level order and the codec for
// level-specific time keys.
//
// A key identifies the bucket being expanded at a level: a monthly view
// expands a year (key "2025"), a daily view expands a month ("2025-11"),
// an hourly view expands a day ("2025-11-11"), a minutely view expands an
// hour ("2025-11-11T14") and a raw view expands a minute ("2025-11-11T14:30").
package timekey

import (
	"errors"
	"fmt"
)

// Level is an aggregation granularity for the drill-down hierarchy.
type Level string

// Aggregation levels, coarsest to finest.
const (
	LevelMonthly  Level = "monthly"
	LevelDaily    Level = "daily"
	LevelHourly   Level = "hourly"
	LevelMinutely Level = "minutely"
	LevelRaw      Level = "raw"
)

// ErrUnknownLevel is returned when a level string is not part of the order.
var ErrUnknownLevel = errors.New("unknown aggregation level")

// levelOrder is the total order over levels. Drill-down moves right,
// roll-up moves left.
var levelOrder = []Level{LevelMonthly, LevelDaily, LevelHourly, LevelMinutely, LevelRaw}

// Levels returns the ordered set of levels, coarsest first.
func Levels() []Level {
	out := make([]Level, len(levelOrder))
	copy(out, levelOrder)
	return out
}

// ParseLevel validates a level string.
func ParseLevel(s string) (Level, error) {
	for _, l := range levelOrder {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Valid reports whether l is a member of the level order.
func (l Level) Valid() bool {
	_, err := ParseLevel(string(l))
	return err == nil
}

func indexOf(l Level) int {
	for i, candidate := range levelOrder {
		if candidate == l {
			return i
		}
	}
	return -1
}

// Next returns the next finer level. ok is false at LevelRaw or for an
// unknown level.
func Next(l Level) (Level, bool) {
	i := indexOf(l)
	if i < 0 || i == len(levelOrder)-1 {
		return "", false
	}
	return levelOrder[i+1], true
}

// Previous returns the next coarser level. ok is false at LevelMonthly or
// for an unknown level.
func Previous(l Level) (Level, bool) {
	i := indexOf(l)
	if i <= 0 {
		return "", false
	}
	return levelOrder[i-1], true
}

// Drillable reports whether a data row at the given level exposes a
// drill-down target. An explicit child link from the data source always
// wins; absent that, a positive sample count implies the bucket has
// something to expand. Empty buckets never drill, and raw rows never drill.
func Drillable(l Level, childLevel, childKey string, sampleCount int) bool {
	if l == LevelRaw || !l.Valid() {
		return false
	}
	if childLevel != "" && childKey != "" {
		return true
	}
	return sampleCount > 0
}
