package nav

import (
	"errors"
	"testing"
	"time"

	"github.com/mvolf/thermodash/internal/timekey"
)

func TestSetContextValidatesLevel(t *testing.T) {
	s := NewState(DefaultContext(time.Now()))

	if err := s.SetContext("DHT11_01", timekey.Level("weekly"), "2025-11"); err == nil {
		t.Fatal("invalid level must fail fast")
	} else if !errors.Is(err, timekey.ErrUnknownLevel) {
		t.Fatalf("error = %v, want ErrUnknownLevel", err)
	}

	// A failed SetContext leaves the context untouched.
	if got := s.Current().SensorID; got != "" {
		t.Errorf("sensor after failed SetContext = %q, want empty", got)
	}
}

func TestSetContextNotifiesSynchronously(t *testing.T) {
	s := NewState(DefaultContext(time.Now()))

	var seen []Context
	if err := s.Subscribe("test", func(c Context) { seen = append(seen, c) }); err != nil {
		t.Fatal(err)
	}

	if err := s.SetContext("DHT11_01", timekey.LevelHourly, "2025-11-11"); err != nil {
		t.Fatal(err)
	}

	// Notification happens before SetContext returns.
	if len(seen) != 1 {
		t.Fatalf("got %d notifications, want 1", len(seen))
	}
	if seen[0].SensorID != "DHT11_01" || seen[0].Level != timekey.LevelHourly || seen[0].Key != "2025-11-11" {
		t.Errorf("notification carried %+v", seen[0])
	}
}

func TestSetContextIdempotentNotification(t *testing.T) {
	s := NewState(DefaultContext(time.Now()))
	now := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

	var crumbs [][]Segment
	_ = s.Subscribe("test", func(c Context) {
		crumbs = append(crumbs, Breadcrumbs(c.Level, c.Key, now))
	})

	for i := 0; i < 2; i++ {
		if err := s.SetContext("DHT11_01", timekey.LevelHourly, "2025-11-11"); err != nil {
			t.Fatal(err)
		}
	}

	if len(crumbs) != 2 {
		t.Fatalf("got %d notifications, want one per call", len(crumbs))
	}
	if len(crumbs[0]) != len(crumbs[1]) {
		t.Fatalf("breadcrumb lengths differ: %d vs %d", len(crumbs[0]), len(crumbs[1]))
	}
	for i := range crumbs[0] {
		if crumbs[0][i] != crumbs[1][i] {
			t.Errorf("segment %d differs: %+v vs %+v", i, crumbs[0][i], crumbs[1][i])
		}
	}
}

func TestCurrentReturnsSnapshot(t *testing.T) {
	s := NewState(DefaultContext(time.Now()))
	_ = s.SetContext("DHT11_01", timekey.LevelDaily, "2025-11")

	snap := s.Current()
	snap.SensorID = "tampered"
	snap.Key = "1999-01"

	if got := s.Current(); got.SensorID != "DHT11_01" || got.Key != "2025-11" {
		t.Errorf("mutating a snapshot leaked into state: %+v", got)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	s := NewState(DefaultContext(time.Now()))

	if err := s.Subscribe("", func(Context) {}); !errors.Is(err, ErrInvalidSubscriptionID) {
		t.Errorf("empty id error = %v", err)
	}
	if err := s.Subscribe("a", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("nil handler error = %v", err)
	}

	calls := 0
	if err := s.Subscribe("a", func(Context) { calls++ }); err != nil {
		t.Fatal(err)
	}
	if err := s.Subscribe("a", func(Context) {}); !errors.Is(err, ErrSubscriptionExists) {
		t.Errorf("duplicate id error = %v", err)
	}

	_ = s.SetContext("DHT11_01", timekey.LevelHourly, "2025-11-11")
	if err := s.Unsubscribe("a"); err != nil {
		t.Fatal(err)
	}
	_ = s.SetContext("DHT11_01", timekey.LevelHourly, "2025-11-12")

	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	if err := s.Unsubscribe("a"); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("second unsubscribe error = %v", err)
	}
}

func TestDefaultContext(t *testing.T) {
	loc := time.FixedZone("Test", 3600)
	now := time.Date(2025, 11, 11, 9, 30, 0, 0, loc)

	c := DefaultContext(now)
	if c.Level != timekey.LevelHourly {
		t.Errorf("default level = %q, want hourly", c.Level)
	}
	if c.Key != "2025-11-11" {
		t.Errorf("default key = %q, want today's date", c.Key)
	}
	if c.TZOffsetMinutes != 60 {
		t.Errorf("tz offset = %d, want 60", c.TZOffsetMinutes)
	}
	if c.SensorID != "" {
		t.Errorf("default sensor should be empty, got %q", c.SensorID)
	}
}
