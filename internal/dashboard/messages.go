package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mvolf/thermodash/internal/api"
	"github.com/mvolf/thermodash/internal/nav"
)

// contextMsg fires on every navigation, before the new view's data
// arrives.
type contextMsg struct {
	ctx    nav.Context
	crumbs []nav.Segment
}

// rowsMsg delivers validated aggregate rows for a context.
type rowsMsg struct {
	ctx  nav.Context
	rows []api.AggregateRow
}

// latestMsg delivers the most recent reading for a sensor.
type latestMsg struct {
	sensorID string
	latest   api.Latest
}

// sensorsMsg delivers the selectable sensor list.
type sensorsMsg struct {
	sensors []api.Sensor
}

// actuatorsMsg delivers the actuator widget states.
type actuatorsMsg struct {
	states []api.ActuatorState
}

// logTailMsg delivers the daemon log pane content.
type logTailMsg struct {
	tail api.LogTail
}

// errorMsg surfaces a failed user action in the status line.
type errorMsg struct {
	err error
}

// emit hands a message from a navigator callback or refresh step to the
// bubbletea loop. A full channel drops the message; the next refresh
// cycle delivers fresh data anyway.
func (m *Model) emit(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

// waitEvent blocks until the next bridged message arrives.
func (m *Model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}
