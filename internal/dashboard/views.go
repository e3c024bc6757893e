package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mvolf/thermodash/internal/timekey"
)

func (m *Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderBreadcrumbs(),
		m.renderTable(),
		m.renderWidgets(),
	}
	if m.showLog {
		sections = append(sections, m.renderLogPane())
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	sensor := m.current.SensorID
	if sensor == "" {
		sensor = "no sensor"
	}
	for _, s := range m.sensors {
		if s.ID == m.current.SensorID && s.Name != "" {
			sensor = s.Name
			break
		}
	}

	latest := "no data"
	if !m.latest.Empty() {
		latest = fmt.Sprintf("%s  %s  (%s)",
			metric(m.latest.Temperature, "°C"),
			metric(m.latest.Humidity, "%"),
			m.latest.Timestamp)
	}

	title := fmt.Sprintf("thermodash  %s  |  %s  |  %s", sensor, m.current.Level, latest)
	return headerStyle.Width(m.width).Render(title)
}

func (m *Model) renderBreadcrumbs() string {
	if len(m.crumbs) == 0 {
		return ""
	}

	parts := make([]string, 0, len(m.crumbs))
	for i, seg := range m.crumbs {
		label := fmt.Sprintf("%d:%s", i+1, seg.Label)
		if seg.Active {
			parts = append(parts, crumbActiveStyle.Render(label))
		} else {
			parts = append(parts, crumbStyle.Render(label))
		}
	}
	return strings.Join(parts, crumbSeparator)
}

func (m *Model) renderTable() string {
	header := fmt.Sprintf("%-22s %12s %12s %8s", "Bucket", "Temp °C", "Humidity %", "Samples")

	lines := []string{tableHeaderStyle.Render(header)}
	if len(m.rows) == 0 {
		lines = append(lines, rowEmptyStyle.Render("  no data for this view"))
	}

	visible := m.visibleRows()
	for i, row := range m.rows {
		if i >= visible {
			lines = append(lines, statusStyle.Render(fmt.Sprintf("  ... %d more", len(m.rows)-visible)))
			break
		}

		marker := " "
		if row.Drillable(m.current.Level) {
			marker = ">"
		}
		text := fmt.Sprintf("%s %-20s %12s %12s %8d",
			marker,
			timekey.FormatDisplay(rowLevel(m.current.Level), row.Key),
			metric(row.Temperature, ""),
			metric(row.Humidity, ""),
			row.Count)

		style := rowStyle
		if i == m.cursor {
			style = rowSelectedStyle
		}
		if row.Count == 0 {
			style = rowEmptyStyle
		}
		lines = append(lines, style.Render(text))
	}

	return strings.Join(lines, "\n")
}

// rowLevel maps the view level to the level whose display layout fits
// the row keys, which are one step finer than the context key.
func rowLevel(l timekey.Level) timekey.Level {
	if next, ok := timekey.Next(l); ok {
		return next
	}
	return l
}

func (m *Model) renderWidgets() string {
	if len(m.actuators) == 0 {
		return ""
	}

	parts := make([]string, 0, len(m.actuators))
	for _, a := range m.actuators {
		state := widgetOffStyle.Render("off")
		if a.On {
			state = widgetOnStyle.Render("ON")
		}
		mode := a.Mode
		if mode == "" {
			mode = "-"
		}
		parts = append(parts, fmt.Sprintf("%s %s [%s]", a.Name, state, mode))
	}
	return widgetStyle.Render(strings.Join(parts, "   "))
}

func (m *Model) renderLogPane() string {
	if m.logInfo != "" {
		return logStyle.Render("log: " + m.logInfo)
	}

	height := 8
	lines := m.logLines
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	if len(lines) == 0 {
		return logStyle.Render("log: empty")
	}
	return logStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	if m.lastErr != "" {
		return errorStyle.Render("error: " + m.lastErr)
	}
	if m.showHelp {
		return statusStyle.Render("enter drill  backspace up  h home  r reload  tab sensor  1-9 crumb  a actuator  l log  q quit")
	}
	return statusStyle.Render("? help  q quit")
}

// visibleRows is how many table rows fit the current terminal height
// after the fixed chrome.
func (m *Model) visibleRows() int {
	chrome := 6
	if m.showLog {
		chrome += 9
	}
	visible := m.height - chrome
	if visible < 5 {
		visible = 5
	}
	return visible
}

func metric(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%s", *v, unit)
}
