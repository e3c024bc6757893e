package timekey

import "testing"

func TestLevelOrder(t *testing.T) {
	levels := Levels()
	want := []Level{LevelMonthly, LevelDaily, LevelHourly, LevelMinutely, LevelRaw}
	if len(levels) != len(want) {
		t.Fatalf("Levels() returned %d levels, want %d", len(levels), len(want))
	}
	for i, l := range want {
		if levels[i] != l {
			t.Errorf("Levels()[%d] = %q, want %q", i, levels[i], l)
		}
	}
}

func TestNextPrevious(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		next   Level
		nextOK bool
		prev   Level
		prevOK bool
	}{
		{"monthly", LevelMonthly, LevelDaily, true, "", false},
		{"daily", LevelDaily, LevelHourly, true, LevelMonthly, true},
		{"hourly", LevelHourly, LevelMinutely, true, LevelDaily, true},
		{"minutely", LevelMinutely, LevelRaw, true, LevelHourly, true},
		{"raw", LevelRaw, "", false, LevelMinutely, true},
		{"unknown", Level("weekly"), "", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := Next(tt.level)
			if next != tt.next || ok != tt.nextOK {
				t.Errorf("Next(%q) = (%q, %v), want (%q, %v)", tt.level, next, ok, tt.next, tt.nextOK)
			}
			prev, ok := Previous(tt.level)
			if prev != tt.prev || ok != tt.prevOK {
				t.Errorf("Previous(%q) = (%q, %v), want (%q, %v)", tt.level, prev, ok, tt.prev, tt.prevOK)
			}
		})
	}
}

func TestNextPreviousRoundTrip(t *testing.T) {
	// next(previous(next(L))) == next(L) for all L with a successor.
	for _, l := range Levels() {
		n, ok := Next(l)
		if !ok {
			continue
		}
		back, ok := Previous(n)
		if !ok || back != l {
			t.Fatalf("Previous(Next(%q)) = (%q, %v), want (%q, true)", l, back, ok, l)
		}
		again, ok := Next(back)
		if !ok || again != n {
			t.Errorf("Next(Previous(Next(%q))) = %q, want %q", l, again, n)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, l := range Levels() {
		got, err := ParseLevel(string(l))
		if err != nil || got != l {
			t.Errorf("ParseLevel(%q) = (%q, %v), want (%q, nil)", l, got, err, l)
		}
	}
	if _, err := ParseLevel("yearly"); err == nil {
		t.Error("ParseLevel(\"yearly\") should fail")
	}
}

func TestDrillable(t *testing.T) {
	tests := []struct {
		name        string
		level       Level
		childLevel  string
		childKey    string
		sampleCount int
		want        bool
	}{
		{"explicit child wins", LevelHourly, "minutely", "2025-11-11T14", 0, true},
		{"count based", LevelHourly, "", "", 12, true},
		{"empty bucket", LevelHourly, "", "", 0, false},
		{"negative count", LevelHourly, "", "", -1, false},
		{"raw never drills", LevelRaw, "raw", "2025-11-11T14:30", 99, false},
		{"child level without key", LevelDaily, "hourly", "", 0, false},
		{"unknown level", Level("weekly"), "", "", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Drillable(tt.level, tt.childLevel, tt.childKey, tt.sampleCount)
			if got != tt.want {
				t.Errorf("Drillable() = %v, want %v", got, tt.want)
			}
		})
	}
}
