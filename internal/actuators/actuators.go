// Package actuators manages the logical state of switchable outputs
// (status LEDs, heating relays). Each actuator has a mode: forced on,
// forced off, or auto, where a thermostat with hysteresis drives the
// output from the latest temperature reading. Mode and setpoint survive
// restarts through the key/value store.
package actuators

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mvolf/thermodash/internal/api"
	"github.com/mvolf/thermodash/internal/logging"
)

// Actuator errors.
var (
	ErrUnknownActuator = errors.New("unknown actuator")
	ErrInvalidMode     = errors.New("invalid actuator mode")
)

// Modes.
const (
	ModeOn   = "on"
	ModeOff  = "off"
	ModeAuto = "auto"
)

// DefaultHysteresis is the thermostat dead band in degrees, applied on
// each side of the setpoint.
const DefaultHysteresis = 0.5

// Driver switches a physical output. Implementations must be safe to
// call repeatedly with the same value.
type Driver interface {
	Apply(on bool) error
}

// noopDriver stands in when no hardware backs the actuator.
type noopDriver struct{}

func (noopDriver) Apply(bool) error { return nil }

// KV persists actuator mode and setpoint across restarts.
type KV interface {
	GetKV(ctx context.Context, key string) (string, bool, error)
	SetKV(ctx context.Context, key, value string) error
}

type actuator struct {
	name     string
	driver   Driver
	hw       bool
	mode     string
	on       bool
	setpoint float64
}

// Manager tracks a fixed set of actuators registered at startup.
type Manager struct {
	mu         sync.Mutex
	devices    map[string]*actuator
	order      []string
	kv         KV
	hysteresis float64
	logger     zerolog.Logger
}

// NewManager creates an actuator manager. kv may be nil, in which case
// state is kept in memory only.
func NewManager(kv KV) *Manager {
	return &Manager{
		devices:    make(map[string]*actuator),
		kv:         kv,
		hysteresis: DefaultHysteresis,
		logger:     logging.Component("actuators"),
	}
}

// Register adds an actuator. A nil driver registers a software-only
// actuator. Persisted mode and setpoint, if any, are restored.
func (m *Manager) Register(ctx context.Context, name string, driver Driver, defaultSetpoint float64) {
	hw := driver != nil
	if driver == nil {
		driver = noopDriver{}
	}

	a := &actuator{
		name:     name,
		driver:   driver,
		hw:       hw,
		mode:     ModeOff,
		setpoint: defaultSetpoint,
	}
	m.restore(ctx, a)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.devices[name]; !exists {
		m.order = append(m.order, name)
	}
	m.devices[name] = a
	m.logger.Debug().
		Str("actuator", name).
		Str("mode", a.mode).
		Bool("hw", hw).
		Msg("actuator registered")
}

func (m *Manager) restore(ctx context.Context, a *actuator) {
	if m.kv == nil {
		return
	}
	if mode, ok, err := m.kv.GetKV(ctx, kvKey(a.name, "mode")); err == nil && ok {
		if mode == ModeOn || mode == ModeOff || mode == ModeAuto {
			a.mode = mode
			a.on = mode == ModeOn
		}
	}
	if raw, ok, err := m.kv.GetKV(ctx, kvKey(a.name, "setpoint")); err == nil && ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			a.setpoint = v
		}
	}
}

func kvKey(name, field string) string {
	return "actuator." + name + "." + field
}

// States returns all actuators in registration order.
func (m *Manager) States() []api.ActuatorState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]api.ActuatorState, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, stateOf(m.devices[name]))
	}
	return out
}

// State returns one actuator's state.
func (m *Manager) State(name string) (api.ActuatorState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.devices[name]
	if !ok {
		return api.ActuatorState{}, fmt.Errorf("%w: %q", ErrUnknownActuator, name)
	}
	return stateOf(a), nil
}

func stateOf(a *actuator) api.ActuatorState {
	return api.ActuatorState{Name: a.name, On: a.on, HW: a.hw, Mode: a.mode}
}

// Apply executes an actuator command. Setting a mode wins over a bare
// on/off flag; a bare flag switches the actuator into the matching
// forced mode, leaving auto.
func (m *Manager) Apply(ctx context.Context, name string, cmd api.ActuatorCommand) (api.ActuatorState, error) {
	m.mu.Lock()
	a, ok := m.devices[name]
	if !ok {
		m.mu.Unlock()
		return api.ActuatorState{}, fmt.Errorf("%w: %q", ErrUnknownActuator, name)
	}

	switch {
	case cmd.Mode != "":
		if cmd.Mode != ModeOn && cmd.Mode != ModeOff && cmd.Mode != ModeAuto {
			m.mu.Unlock()
			return api.ActuatorState{}, fmt.Errorf("%w: %q", ErrInvalidMode, cmd.Mode)
		}
		a.mode = cmd.Mode
		switch cmd.Mode {
		case ModeOn:
			a.on = true
		case ModeOff:
			a.on = false
		}
		// Auto keeps the current output until the next evaluation.
	case cmd.On != nil:
		if *cmd.On {
			a.mode, a.on = ModeOn, true
		} else {
			a.mode, a.on = ModeOff, false
		}
	}

	state := stateOf(a)
	driver, on := a.driver, a.on
	m.mu.Unlock()

	if err := driver.Apply(on); err != nil {
		m.logger.Error().Err(err).Str("actuator", name).Msg("driver apply failed")
	}
	m.persist(ctx, name, "mode", state.Mode)
	return state, nil
}

// SetSetpoint updates the thermostat target for an actuator.
func (m *Manager) SetSetpoint(ctx context.Context, name string, value float64) (api.ActuatorState, error) {
	m.mu.Lock()
	a, ok := m.devices[name]
	if !ok {
		m.mu.Unlock()
		return api.ActuatorState{}, fmt.Errorf("%w: %q", ErrUnknownActuator, name)
	}
	a.setpoint = value
	state := stateOf(a)
	m.mu.Unlock()

	m.persist(ctx, name, "setpoint", strconv.FormatFloat(value, 'f', -1, 64))
	return state, nil
}

// Setpoint returns the thermostat target for an actuator.
func (m *Manager) Setpoint(name string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.devices[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownActuator, name)
	}
	return a.setpoint, nil
}

// Evaluate runs the thermostat for all auto-mode actuators. Below
// setpoint minus the dead band the output turns on, above setpoint plus
// the dead band it turns off; inside the band it stays put. A nil
// temperature leaves everything unchanged.
func (m *Manager) Evaluate(temperature *float64) {
	if temperature == nil {
		return
	}
	temp := *temperature

	type change struct {
		driver Driver
		name   string
		on     bool
	}
	var changes []change

	m.mu.Lock()
	for _, name := range m.order {
		a := m.devices[name]
		if a.mode != ModeAuto {
			continue
		}
		switch {
		case temp < a.setpoint-m.hysteresis && !a.on:
			a.on = true
			changes = append(changes, change{a.driver, name, true})
		case temp > a.setpoint+m.hysteresis && a.on:
			a.on = false
			changes = append(changes, change{a.driver, name, false})
		}
	}
	m.mu.Unlock()

	for _, c := range changes {
		if err := c.driver.Apply(c.on); err != nil {
			m.logger.Error().Err(err).Str("actuator", c.name).Msg("driver apply failed")
			continue
		}
		m.logger.Info().
			Str("actuator", c.name).
			Bool("on", c.on).
			Float64("temperature", temp).
			Msg("thermostat switched actuator")
	}
}

func (m *Manager) persist(ctx context.Context, name, field, value string) {
	if m.kv == nil {
		return
	}
	if err := m.kv.SetKV(ctx, kvKey(name, field), value); err != nil {
		m.logger.Warn().Err(err).Str("actuator", name).Str("field", field).Msg("failed to persist actuator state")
	}
}
