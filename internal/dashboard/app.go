// Package dashboard is the terminal UI for browsing sensor history. It
// drives a navigator over the daemon API and a refresh scheduler that
// keeps the visible view current without piling up overlapping work.
package dashboard

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mvolf/thermodash/internal/actuators"
	"github.com/mvolf/thermodash/internal/api"
	"github.com/mvolf/thermodash/internal/nav"
	"github.com/mvolf/thermodash/internal/refresh"
)

// logPaneLines is how much log history the log pane requests.
const logPaneLines = 200

// Widgets is the part of the daemon API feeding the side widgets.
type Widgets interface {
	Actuators(ctx context.Context) ([]api.ActuatorState, error)
	SetActuator(ctx context.Context, name string, cmd api.ActuatorCommand) (api.ActuatorState, error)
	LogsTail(ctx context.Context, lines int) (api.LogTail, error)
}

// Config holds the dashboard configuration.
type Config struct {
	// Refresh configures the background refresh scheduler.
	Refresh refresh.Config

	// Timezone is the zone navigation keys are expressed in. Nil uses
	// the host's local zone.
	Timezone *time.Location
}

// Model is the root bubbletea model.
type Model struct {
	navigator *nav.Navigator
	scheduler *refresh.Scheduler
	widgets   Widgets

	ctx    context.Context
	cancel context.CancelFunc
	events chan tea.Msg

	width  int
	height int

	current   nav.Context
	crumbs    []nav.Segment
	rows      []api.AggregateRow
	cursor    int
	sensors   []api.Sensor
	latest    api.Latest
	actuators []api.ActuatorState
	logLines  []string
	logInfo   string

	showLog  bool
	showHelp bool
	lastErr  string
}

// NewModel wires the dashboard over a data source and widget API.
func NewModel(cfg Config, source nav.DataSource, widgets Widgets) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		widgets: widgets,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan tea.Msg, 64),
	}

	m.navigator = nav.NewNavigator(source, nav.Callbacks{
		ContextChanged: func(c nav.Context, crumbs []nav.Segment) {
			m.emit(contextMsg{ctx: c, crumbs: crumbs})
		},
		Rows: func(c nav.Context, rows []api.AggregateRow) {
			m.emit(rowsMsg{ctx: c, rows: rows})
		},
		Latest: func(sensorID string, latest api.Latest) {
			m.emit(latestMsg{sensorID: sensorID, latest: latest})
		},
		Sensors: func(sensors []api.Sensor) {
			m.emit(sensorsMsg{sensors: sensors})
		},
	})
	if cfg.Timezone != nil {
		name := cfg.Timezone.String()
		_, offsetSec := time.Now().In(cfg.Timezone).Zone()
		m.navigator.State().SetTimezone(name, offsetSec/60)
	}
	m.current = m.navigator.Current()

	m.scheduler = refresh.NewScheduler(cfg.Refresh, m, func() bool {
		return m.navigator.Current().SensorID != ""
	})
	if widgets != nil {
		m.scheduler.SetLogTailer(m)
	}
	return m
}

// Run starts the dashboard program.
func Run(cfg Config, source nav.DataSource, widgets Widgets) error {
	m := NewModel(cfg, source, widgets)
	defer m.Close()

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	_, err := program.Run()
	return err
}

// Close stops the scheduler and cancels in-flight work.
func (m *Model) Close() {
	if m.scheduler.IsRunning() {
		_ = m.scheduler.Stop()
	}
	m.cancel()
}

// Navigator exposes the underlying navigator, mainly for tests.
func (m *Model) Navigator() *nav.Navigator {
	return m.navigator
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if err := m.navigator.LoadSensors(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
				return errorMsg{err: err}
			}
			return nil
		},
		func() tea.Msg {
			_ = m.scheduler.Start(m.ctx)
			return nil
		},
		m.waitEvent(),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil

	case tea.FocusMsg:
		m.scheduler.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.scheduler.SetVisible(false)
		return m, nil

	case contextMsg:
		m.current = typed.ctx
		m.crumbs = typed.crumbs
		m.cursor = 0
		return m, m.waitEvent()

	case rowsMsg:
		m.rows = typed.rows
		if m.cursor >= len(m.rows) {
			m.cursor = max(0, len(m.rows)-1)
		}
		m.lastErr = ""
		return m, m.waitEvent()

	case latestMsg:
		if typed.sensorID == m.current.SensorID {
			m.latest = typed.latest
		}
		return m, m.waitEvent()

	case sensorsMsg:
		m.sensors = typed.sensors
		return m, m.waitEvent()

	case actuatorsMsg:
		m.actuators = typed.states
		return m, m.waitEvent()

	case logTailMsg:
		m.logLines = typed.tail.Lines
		m.logInfo = typed.tail.Info
		return m, m.waitEvent()

	case errorMsg:
		if typed.err != nil {
			m.lastErr = typed.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(typed)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.Close()
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		if m.cursor >= len(m.rows) {
			return m, nil
		}
		row := m.rows[m.cursor]
		return m, m.navCmd(func(ctx context.Context) error {
			return m.navigator.Drill(ctx, row)
		})

	case "backspace", "esc", "u":
		return m, m.navCmd(m.navigator.RollUp)

	case "h":
		return m, m.navCmd(m.navigator.Home)

	case "r":
		return m, m.navCmd(func(ctx context.Context) error {
			if err := m.navigator.RefreshLatest(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return m.navigator.Reload(ctx)
		})

	case "tab", "s":
		next := m.nextSensorID()
		if next == "" {
			return m, nil
		}
		return m, m.navCmd(func(ctx context.Context) error {
			return m.navigator.Select(ctx, next)
		})

	case "l":
		m.showLog = !m.showLog
		return m, nil

	case "a":
		return m, m.cycleActuatorCmd()

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.String()[0] - '1')
		if idx >= len(m.crumbs) {
			return m, nil
		}
		seg := m.crumbs[idx]
		return m, m.navCmd(func(ctx context.Context) error {
			return m.navigator.Navigate(ctx, seg)
		})
	}

	return m, nil
}

// navCmd runs a navigator action off the UI goroutine. Results arrive
// through the event bridge; only failures come back directly.
func (m *Model) navCmd(action func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := action(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
			return errorMsg{err: err}
		}
		return nil
	}
}

func (m *Model) nextSensorID() string {
	if len(m.sensors) == 0 {
		return ""
	}
	cur := m.current.SensorID
	for i, s := range m.sensors {
		if s.ID == cur {
			return m.sensors[(i+1)%len(m.sensors)].ID
		}
	}
	return m.sensors[0].ID
}

// cycleActuatorCmd advances the first actuator through off, on, auto.
func (m *Model) cycleActuatorCmd() tea.Cmd {
	if m.widgets == nil || len(m.actuators) == 0 {
		return nil
	}
	target := m.actuators[0]

	var next string
	switch target.Mode {
	case actuators.ModeOff:
		next = actuators.ModeOn
	case actuators.ModeOn:
		next = actuators.ModeAuto
	default:
		next = actuators.ModeOff
	}

	return func() tea.Msg {
		_, err := m.widgets.SetActuator(m.ctx, target.Name, api.ActuatorCommand{Mode: next})
		if err != nil {
			return errorMsg{err: err}
		}
		states, err := m.widgets.Actuators(m.ctx)
		if err != nil {
			return errorMsg{err: err}
		}
		return actuatorsMsg{states: states}
	}
}

// RefreshLatest is the scheduler's first cycle step.
func (m *Model) RefreshLatest(ctx context.Context) error {
	return m.navigator.RefreshLatest(ctx)
}

// RefreshView is the scheduler's second cycle step.
func (m *Model) RefreshView(ctx context.Context) error {
	return m.navigator.Reload(ctx)
}

// RefreshWidgets is the scheduler's third cycle step.
func (m *Model) RefreshWidgets(ctx context.Context) error {
	if m.widgets == nil {
		return nil
	}
	states, err := m.widgets.Actuators(ctx)
	if err != nil {
		return err
	}
	m.emit(actuatorsMsg{states: states})
	return nil
}

// RefreshLogTail feeds the log pane on its own, faster cadence.
func (m *Model) RefreshLogTail(ctx context.Context) error {
	if m.widgets == nil {
		return nil
	}
	tail, err := m.widgets.LogsTail(ctx, logPaneLines)
	if err != nil {
		return err
	}
	m.emit(logTailMsg{tail: tail})
	return nil
}
