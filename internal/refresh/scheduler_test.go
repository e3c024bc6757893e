package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubRefresher counts step invocations and can hold a cycle open.
type stubRefresher struct {
	latestCalls atomic.Int32
	viewCalls   atomic.Int32
	widgetCalls atomic.Int32
	holdLatest  chan struct{}
	latestErr   error
	viewErr     error
	widgetErr   error
}

func (r *stubRefresher) RefreshLatest(ctx context.Context) error {
	r.latestCalls.Add(1)
	if r.holdLatest != nil {
		<-r.holdLatest
	}
	return r.latestErr
}

func (r *stubRefresher) RefreshView(ctx context.Context) error {
	r.viewCalls.Add(1)
	return r.viewErr
}

func (r *stubRefresher) RefreshWidgets(ctx context.Context) error {
	r.widgetCalls.Add(1)
	return r.widgetErr
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.Interval <= 0 {
		t.Error("expected positive Interval")
	}
	if config.LogTailInterval <= 0 {
		t.Error("expected positive LogTailInterval")
	}
}

func TestStartStop(t *testing.T) {
	r := &stubRefresher{}
	s := NewScheduler(Config{Interval: time.Hour}, r, func() bool { return true })

	if s.IsRunning() {
		t.Fatal("new scheduler should be idle")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start error = %v", err)
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running")
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop error = %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should be idle after Stop")
	}
}

// Two overlapping cycles must execute the refresh body exactly once.
func TestCycleGuardPreventsOverlap(t *testing.T) {
	r := &stubRefresher{holdLatest: make(chan struct{})}
	s := NewScheduler(Config{Interval: time.Hour}, r, func() bool { return true })
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop() }()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunCycle()
	}()

	// Wait until the first cycle is held open inside RefreshLatest.
	deadline := time.After(time.Second)
	for r.latestCalls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first cycle never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// The overlapping cycle is skipped, not queued.
	s.RunCycle()
	if got := r.latestCalls.Load(); got != 1 {
		t.Errorf("refresh body ran %d times during overlap, want 1", got)
	}

	close(r.holdLatest)
	wg.Wait()

	if got := r.viewCalls.Load(); got != 1 {
		t.Errorf("view refresh ran %d times, want 1", got)
	}
}

// Scenario: running with no sensor selected stops the scheduler cleanly.
func TestNoTargetStopsScheduler(t *testing.T) {
	r := &stubRefresher{}
	s := NewScheduler(Config{Interval: time.Hour}, r, func() bool { return false })
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.RunCycle()

	if s.IsRunning() {
		t.Error("scheduler should stop itself with nothing to refresh")
	}
	if r.latestCalls.Load() != 0 {
		t.Error("no refresh work should run without a target")
	}
	// Guard must be released even on the self-stop path.
	if s.cycleActive.Load() {
		t.Error("cycle guard left set")
	}
}

// Hidden display skips the cycle's work but keeps the scheduler running.
func TestHiddenDisplaySkipsCycle(t *testing.T) {
	r := &stubRefresher{}
	s := NewScheduler(Config{Interval: time.Hour}, r, func() bool { return true })
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop() }()

	s.SetVisible(false)
	s.RunCycle()

	if r.latestCalls.Load() != 0 {
		t.Error("hidden display should skip refresh work")
	}
	if !s.IsRunning() {
		t.Error("hidden display must not stop the scheduler")
	}

	// Visibility can return.
	s.SetVisible(true)
	s.RunCycle()
	if r.latestCalls.Load() != 1 {
		t.Error("cycle should resume when visible again")
	}
}

// A failing step never prevents the remaining steps, and the guard is
// always released.
func TestStepFailuresAreIsolated(t *testing.T) {
	r := &stubRefresher{
		latestErr: errors.New("latest boom"),
		viewErr:   errors.New("view boom"),
	}
	s := NewScheduler(Config{Interval: time.Hour}, r, func() bool { return true })
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop() }()

	s.RunCycle()

	if r.widgetCalls.Load() != 1 {
		t.Error("widget refresh should run despite earlier failures")
	}
	if s.cycleActive.Load() {
		t.Error("cycle guard left set after errors")
	}
	if !s.IsRunning() {
		t.Error("step failures are non-fatal")
	}

	// The next cycle still fires.
	s.RunCycle()
	if r.widgetCalls.Load() != 2 {
		t.Error("subsequent cycle did not run")
	}
}

type stubTailer struct {
	calls atomic.Int32
}

func (t *stubTailer) RefreshLogTail(ctx context.Context) error {
	t.calls.Add(1)
	return nil
}

func TestLogTailLoop(t *testing.T) {
	r := &stubRefresher{}
	tailer := &stubTailer{}
	s := NewScheduler(Config{Interval: time.Hour, LogTailInterval: 10 * time.Millisecond}, r, func() bool { return true })
	s.SetLogTailer(tailer)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for tailer.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("log tail refresh never fired")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
}
