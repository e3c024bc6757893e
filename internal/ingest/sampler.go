// Package ingest samples sensor readings into the store on a fixed
// interval and feeds the thermostat.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mvolf/thermodash/internal/actuators"
	"github.com/mvolf/thermodash/internal/logging"
	"github.com/mvolf/thermodash/internal/store"
)

// Sampler errors.
var (
	ErrAlreadyRunning = errors.New("sampler already running")
	ErrNotRunning     = errors.New("sampler not running")
)

// Source produces one batch of readings per sampling tick.
type Source interface {
	Read(ctx context.Context) ([]store.Reading, error)
}

// Config holds the sampler configuration.
type Config struct {
	// Interval between samples.
	Interval time.Duration

	// ThermostatSensor names the sensor whose temperature drives
	// auto-mode actuators. Empty uses the first reading of each batch.
	ThermostatSensor string
}

// DefaultConfig returns the default sampler configuration.
func DefaultConfig() Config {
	return Config{Interval: 60 * time.Second}
}

// Sampler drives a Source on an interval and persists what it reads.
type Sampler struct {
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	config    Config
	source    Source
	store     *store.Store
	actuators *actuators.Manager
	logger    zerolog.Logger
}

// NewSampler creates a sampler. The actuator manager may be nil.
func NewSampler(config Config, source Source, st *store.Store, manager *actuators.Manager) *Sampler {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Sampler{
		config:    config,
		source:    source,
		store:     st,
		actuators: manager,
		logger:    logging.Component("ingest"),
	}
}

// Start begins sampling. The first sample runs immediately.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.wg.Add(1)
	go s.run()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("sampler started")
	return nil
}

// Stop halts sampling and waits for the loop to exit.
func (s *Sampler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("sampler stopped")
	return nil
}

// IsRunning reports whether the sampler loop is active.
func (s *Sampler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sampler) run() {
	defer s.wg.Done()

	s.sample()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

// sample reads one batch, persists it and runs the thermostat. A failed
// read or insert is logged and skipped; the loop keeps going.
func (s *Sampler) sample() {
	readings, err := s.source.Read(s.ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("sensor read failed")
		}
		return
	}

	for _, r := range readings {
		if err := s.store.InsertReading(s.ctx, r); err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Str("sensor_id", r.SensorID).Msg("failed to store reading")
			}
			continue
		}
		s.logger.Debug().
			Str("sensor_id", r.SensorID).
			Time("ts", r.Timestamp).
			Msg("reading stored")
	}

	s.evaluateThermostat(readings)
}

func (s *Sampler) evaluateThermostat(readings []store.Reading) {
	if s.actuators == nil || len(readings) == 0 {
		return
	}
	if s.config.ThermostatSensor == "" {
		s.actuators.Evaluate(readings[0].Temperature)
		return
	}
	for _, r := range readings {
		if r.SensorID == s.config.ThermostatSensor {
			s.actuators.Evaluate(r.Temperature)
			return
		}
	}
}
