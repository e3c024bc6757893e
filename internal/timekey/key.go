package timekey

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the deepest time part a key carries.
type Granularity int

// Granularities, coarsest to finest.
const (
	GranNone Granularity = iota
	GranYear
	GranMonth
	GranDay
	GranHour
	GranMinute
	GranSecond
)

// Parts is the decomposed form of a time key. Fields beyond Gran hold
// defaults (month/day 1, hour/minute/second 0) so a Parts value can always
// be reassembled into a timestamp.
type Parts struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
	Gran   Granularity
}

// KeyGranularity returns the canonical key granularity for a level: the
// bucket one step coarser than the rows the level displays.
func KeyGranularity(l Level) Granularity {
	switch l {
	case LevelMonthly:
		return GranYear
	case LevelDaily:
		return GranMonth
	case LevelHourly:
		return GranDay
	case LevelMinutely:
		return GranHour
	case LevelRaw:
		return GranMinute
	default:
		return GranNone
	}
}

// ParseKey decomposes a time key. Accepted forms: "YYYY", "YYYY-MM",
// "YYYY-MM-DD", "YYYY-MM-DDTHH", "YYYY-MM-DDTHH:MM", "YYYY-MM-DDTHH:MM:SS",
// with a space accepted in place of the "T". Parsing is best-effort: a
// malformed tail degrades to the parts successfully read, so display code
// downstream never has to handle a hard failure for an odd key.
func ParseKey(key string) Parts {
	p := Parts{Month: 1, Day: 1}

	s := strings.ReplaceAll(strings.TrimSpace(key), " ", "T")
	if s == "" {
		return p
	}

	read := func(start, width int) (int, bool) {
		if len(s) < start+width {
			return 0, false
		}
		v := 0
		for _, c := range s[start : start+width] {
			if c < '0' || c > '9' {
				return 0, false
			}
			v = v*10 + int(c-'0')
		}
		return v, true
	}
	sep := func(pos int, want byte) bool {
		return len(s) > pos && s[pos] == want
	}

	y, ok := read(0, 4)
	if !ok {
		return p
	}
	p.Year, p.Gran = y, GranYear

	if !sep(4, '-') {
		return p
	}
	m, ok := read(5, 2)
	if !ok || m < 1 || m > 12 {
		return p
	}
	p.Month, p.Gran = m, GranMonth

	if !sep(7, '-') {
		return p
	}
	d, ok := read(8, 2)
	if !ok || d < 1 || d > 31 {
		return p
	}
	p.Day, p.Gran = d, GranDay

	if !sep(10, 'T') {
		return p
	}
	hh, ok := read(11, 2)
	if !ok || hh > 23 {
		return p
	}
	p.Hour, p.Gran = hh, GranHour

	if !sep(13, ':') {
		return p
	}
	mm, ok := read(14, 2)
	if !ok || mm > 59 {
		return p
	}
	p.Minute, p.Gran = mm, GranMinute

	// Seconds are accepted but never required.
	if !sep(16, ':') {
		return p
	}
	ss, ok := read(17, 2)
	if !ok || ss > 59 {
		return p
	}
	p.Second, p.Gran = ss, GranSecond

	return p
}

// Time assembles the parts into a time.Time in the given location.
func (p Parts) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	month := p.Month
	if month == 0 {
		month = 1
	}
	day := p.Day
	if day == 0 {
		day = 1
	}
	return time.Date(p.Year, time.Month(month), day, p.Hour, p.Minute, p.Second, 0, loc)
}

// Format renders the parts at the given granularity in the canonical wire
// shape.
func (p Parts) Format(g Granularity) string {
	switch g {
	case GranYear:
		return fmt.Sprintf("%04d", p.Year)
	case GranMonth:
		return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
	case GranDay:
		return fmt.Sprintf("%04d-%02d-%02d", p.Year, p.Month, p.Day)
	case GranHour:
		return fmt.Sprintf("%04d-%02d-%02dT%02d", p.Year, p.Month, p.Day, p.Hour)
	case GranMinute:
		return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d", p.Year, p.Month, p.Day, p.Hour, p.Minute)
	case GranSecond:
		return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", p.Year, p.Month, p.Day, p.Hour, p.Minute, p.Second)
	default:
		return ""
	}
}

// NormalizeTransport reshapes a key to the canonical wire granularity for
// the level: truncates a finer key, pads a coarser one with bucket starts.
// It never shifts timezones; tz name/offset travel as separate query
// metadata so truncation and zone arithmetic stay orthogonal.
func NormalizeTransport(l Level, key string) string {
	return ParseKey(key).Format(KeyGranularity(l))
}

// displayLayouts render a key with exactly the time parts the level shows.
var displayLayouts = map[Granularity]string{
	GranYear:   "2006",
	GranMonth:  "January 2006",
	GranDay:    "2 January 2006",
	GranHour:   "2 January 2006 15:00",
	GranMinute: "2 January 2006 15:04",
	GranSecond: "2 January 2006 15:04:05",
}

// FormatDisplay renders a key for humans at the level's granularity: a
// daily key shows month and year, an hourly key shows the date, and so on.
// Never finer than the level, never coarser.
func FormatDisplay(l Level, key string) string {
	g := KeyGranularity(l)
	if g == GranNone {
		return key
	}
	p := ParseKey(key)
	if p.Gran == GranNone {
		return key
	}
	return p.Time(time.UTC).Format(displayLayouts[g])
}
