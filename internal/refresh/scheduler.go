// Package refresh drives the recurring background update of the dashboard:
// latest value, current aggregate view and dependent widgets, on a single
// timer that never overlaps itself.
package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mvolf/thermodash/internal/logging"
)

// Scheduler errors.
var (
	ErrAlreadyRunning = errors.New("refresh scheduler already running")
	ErrNotRunning     = errors.New("refresh scheduler not running")
)

// Config contains configuration for the refresh scheduler.
type Config struct {
	// Interval is how often a full refresh cycle runs.
	// Default: 10s
	Interval time.Duration

	// LogTailInterval is how often the secondary log-tail refresh runs.
	// Zero disables it. Default: 5s
	LogTailInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        10 * time.Second,
		LogTailInterval: 5 * time.Second,
	}
}

// Refresher performs the work of one refresh cycle. Each step is invoked
// independently; an error in one never prevents the others.
type Refresher interface {
	// RefreshLatest updates the most-recent-value display.
	RefreshLatest(ctx context.Context) error
	// RefreshView re-fetches the current aggregate view.
	RefreshView(ctx context.Context) error
	// RefreshWidgets updates dependent widgets such as actuator states.
	RefreshWidgets(ctx context.Context) error
}

// LogTailer is the optional secondary refresh target.
type LogTailer interface {
	RefreshLogTail(ctx context.Context) error
}

// Scheduler runs refresh cycles on a fixed interval. The cycle guard
// guarantees two cycles never overlap; a tick that arrives while a cycle
// is executing is skipped, not queued.
type Scheduler struct {
	config    Config
	refresher Refresher
	hasTarget func() bool
	tailer    LogTailer
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// cycleActive is the refresh cycle guard.
	cycleActive atomic.Bool
	visible     atomic.Bool
}

// NewScheduler creates a Scheduler. hasTarget reports whether there is
// anything meaningful to refresh (a sensor is selected); when it turns
// false the scheduler stops itself rather than polling with no target.
func NewScheduler(config Config, refresher Refresher, hasTarget func() bool) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.LogTailInterval < 0 {
		config.LogTailInterval = 0
	}
	if hasTarget == nil {
		hasTarget = func() bool { return true }
	}

	s := &Scheduler{
		config:    config,
		refresher: refresher,
		hasTarget: hasTarget,
		logger:    logging.Component("refresh-scheduler"),
	}
	s.visible.Store(true)
	return s
}

// SetLogTailer attaches the secondary log-tail refresh. Must be called
// before Start.
func (s *Scheduler) SetLogTailer(t LogTailer) {
	s.tailer = t
}

// SetVisible tells the scheduler whether the display is foregrounded.
// While hidden, cycles are skipped but the scheduler keeps running.
func (s *Scheduler) SetVisible(visible bool) {
	s.visible.Store(visible)
}

// Start begins the refresh loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("log_tail_interval", s.config.LogTailInterval).
		Msg("refresh scheduler starting")

	s.wg.Add(1)
	go s.runLoop()

	if s.tailer != nil && s.config.LogTailInterval > 0 {
		s.wg.Add(1)
		go s.runLogTailLoop()
	}

	return nil
}

// Stop halts the refresh loop. In-flight network operations are not
// force-cancelled; staleness checks at the request gate protect against a
// late response from a cycle that started just before Stop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}

	s.logger.Info().Msg("refresh scheduler stopping")
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("refresh scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// stopSelf transitions to Idle from inside the loop, without waiting on
// the loop's own goroutine.
func (s *Scheduler) stopSelf() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.running = false
}

// runLoop is the main refresh loop.
func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunCycle()
		}
	}
}

// runLogTailLoop drives the secondary log-tail refresh.
func (s *Scheduler) runLogTailLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.LogTailInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if !s.visible.Load() {
				continue
			}
			if err := s.tailer.RefreshLogTail(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn().Err(err).Msg("log tail refresh failed")
			}
		}
	}
}

// RunCycle executes one refresh cycle. If a cycle is already executing the
// call returns immediately; the cycle is skipped, not queued. The guard is
// released on every exit path.
func (s *Scheduler) RunCycle() {
	if !s.cycleActive.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("refresh cycle already executing, skipping")
		return
	}
	defer s.cycleActive.Store(false)

	if !s.hasTarget() {
		s.logger.Warn().Msg("nothing to refresh, stopping scheduler")
		s.stopSelf()
		return
	}

	if !s.visible.Load() {
		s.logger.Debug().Msg("display not visible, skipping cycle")
		return
	}

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// Each step is isolated: a failure is logged and the cycle moves on.
	if err := s.refresher.RefreshLatest(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).Msg("latest value refresh failed")
	}
	if err := s.refresher.RefreshView(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).Msg("view refresh failed")
	}
	if err := s.refresher.RefreshWidgets(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).Msg("widget refresh failed")
	}
}
