// Package nav holds the navigation core of the dashboard: the authoritative
// current context, breadcrumb derivation, and the navigator that turns user
// actions into guarded data fetches.
package nav

import (
	"fmt"
	"sync"
	"time"

	"github.com/mvolf/thermodash/internal/timekey"
)

// Subscription errors.
var (
	ErrInvalidSubscriptionID = fmt.Errorf("subscription ID is required")
	ErrNilHandler            = fmt.Errorf("handler cannot be nil")
	ErrSubscriptionExists    = fmt.Errorf("subscription with this ID already exists")
	ErrSubscriptionNotFound  = fmt.Errorf("subscription not found")
)

// Context is what is on screen right now. It is owned by State and handed
// out by value only.
type Context struct {
	SensorID string
	Level    timekey.Level
	Key      string
	TZName   string
	// TZOffsetMinutes is minutes east of UTC, used when TZName is absent.
	TZOffsetMinutes int
}

// DefaultContext returns the session's starting point: today at hourly
// granularity, no sensor selected yet, local timezone attached.
func DefaultContext(now time.Time) Context {
	name := now.Location().String()
	_, offsetSec := now.Zone()
	return Context{
		Level:           timekey.LevelHourly,
		Key:             now.Format("2006-01-02"),
		TZName:          name,
		TZOffsetMinutes: offsetSec / 60,
	}
}

// Handler receives a context snapshot after every change.
type Handler func(Context)

// State is the single source of truth for the navigation context. The
// context is mutated only through SetContext; readers get value copies.
type State struct {
	mu      sync.RWMutex
	current Context
	subs    map[string]Handler
}

// NewState creates a State starting from the given context.
func NewState(initial Context) *State {
	return &State{
		current: initial,
		subs:    make(map[string]Handler),
	}
}

// Current returns a snapshot of the context. Mutating the returned value
// has no effect on the state.
func (s *State) Current() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetContext validates and stores a new (sensor, level, key) triple and
// notifies subscribers synchronously before returning, so the UI reflects
// the intended target before any network latency. An invalid level is a
// programming error in the caller and fails fast.
func (s *State) SetContext(sensorID string, level timekey.Level, key string) error {
	if !level.Valid() {
		return fmt.Errorf("set context: %w: %q", timekey.ErrUnknownLevel, level)
	}

	s.mu.Lock()
	s.current.SensorID = sensorID
	s.current.Level = level
	s.current.Key = key
	snapshot := s.current
	handlers := make([]Handler, 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	// Invoke handlers outside the lock to avoid deadlocks
	for _, h := range handlers {
		h(snapshot)
	}
	return nil
}

// SetTimezone updates the timezone metadata attached to every subsequent
// query. It does not notify; the next navigation carries it along.
func (s *State) SetTimezone(name string, offsetMinutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.TZName = name
	s.current.TZOffsetMinutes = offsetMinutes
}

// Subscribe registers a handler for context changes.
func (s *State) Subscribe(id string, h Handler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if h == nil {
		return ErrNilHandler
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[id]; exists {
		return ErrSubscriptionExists
	}
	s.subs[id] = h
	return nil
}

// Unsubscribe removes a subscription by ID.
func (s *State) Unsubscribe(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[id]; !exists {
		return ErrSubscriptionNotFound
	}
	delete(s.subs, id)
	return nil
}
