package nav

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mvolf/thermodash/internal/api"
	"github.com/mvolf/thermodash/internal/logging"
	"github.com/mvolf/thermodash/internal/requestgate"
	"github.com/mvolf/thermodash/internal/timekey"
)

// ErrNoSensor is returned by fetch operations when no sensor is selected.
var ErrNoSensor = errors.New("no sensor selected")

// AggregateQuery is the parameter set for one aggregate fetch. Key is
// already normalized to the level's transport shape; timezone data rides
// along untouched for the server to resolve.
type AggregateQuery struct {
	SensorID        string
	Level           timekey.Level
	Key             string
	TZName          string
	TZOffsetMinutes int
}

// DataSource is the network boundary the navigator fetches through. Each
// call returns the payload plus the server's echo of the query it actually
// applied.
type DataSource interface {
	Sensors(ctx context.Context) ([]api.Sensor, api.Query, error)
	Latest(ctx context.Context, sensorID string) (api.Latest, api.Query, error)
	Aggregate(ctx context.Context, q AggregateQuery) ([]api.AggregateRow, api.Query, error)
}

// Callbacks are invoked with validated, non-stale data. They may be called
// from any goroutine and must be safe to invoke concurrently.
type Callbacks struct {
	// ContextChanged fires synchronously on every navigation, before the
	// fetch for the new context starts.
	ContextChanged func(Context, []Segment)
	// Rows delivers the aggregate rows for the context they were fetched
	// for. A nil slice means the view should fall back to "no data".
	Rows func(Context, []api.AggregateRow)
	// Latest delivers the most recent reading for a sensor.
	Latest func(sensorID string, latest api.Latest)
	// Sensors delivers the selectable sensor list.
	Sensors func([]api.Sensor)
}

// Navigator owns the navigation state and the request gate, and turns user
// actions (sensor change, breadcrumb click, row drill) into guarded
// fetches. Stale responses never reach the callbacks.
type Navigator struct {
	state  *State
	gate   *requestgate.Gate
	source DataSource
	cb     Callbacks
	logger zerolog.Logger
	now    func() time.Time
}

// NewNavigator wires a navigator over the given data source. The starting
// context is today's hourly view with no sensor selected.
func NewNavigator(source DataSource, cb Callbacks) *Navigator {
	n := &Navigator{
		state:  NewState(DefaultContext(time.Now())),
		gate:   requestgate.New(),
		source: source,
		cb:     cb,
		logger: logging.Component("navigator"),
		now:    time.Now,
	}
	// Single internal subscription; external consumers go through the
	// ContextChanged callback.
	_ = n.state.Subscribe("navigator", func(c Context) {
		if n.cb.ContextChanged != nil {
			n.cb.ContextChanged(c, Breadcrumbs(c.Level, c.Key, n.now()))
		}
	})
	return n
}

// Current returns a snapshot of the navigation context.
func (n *Navigator) Current() Context {
	return n.state.Current()
}

// State exposes the underlying navigation state for extra subscribers.
func (n *Navigator) State() *State {
	return n.state
}

// LoadSensors fetches the sensor list. If nothing is selected yet, the
// first sensor becomes the current one and its view is loaded.
func (n *Navigator) LoadSensors(ctx context.Context) error {
	t := n.gate.Begin(ctx, requestgate.CategorySensorList)
	defer n.gate.Finish(t)

	sensors, _, err := n.source.Sensors(t.Context())
	if !n.gate.IsCurrent(t) {
		return nil
	}
	if err != nil {
		n.logger.Error().Err(err).Msg("sensor list fetch failed")
		return err
	}

	if n.cb.Sensors != nil {
		n.cb.Sensors(sensors)
	}

	if n.state.Current().SensorID == "" && len(sensors) > 0 {
		return n.Select(ctx, sensors[0].ID)
	}
	return nil
}

// Select switches the current sensor, keeping level and key, and reloads
// both the view and the latest-value display.
func (n *Navigator) Select(ctx context.Context, sensorID string) error {
	cur := n.state.Current()
	if err := n.state.SetContext(sensorID, cur.Level, cur.Key); err != nil {
		return err
	}
	if err := n.RefreshLatest(ctx); err != nil && !errors.Is(err, context.Canceled) {
		n.logger.Warn().Err(err).Str("sensor_id", sensorID).Msg("latest refresh on select failed")
	}
	return n.fetchView(ctx)
}

// NavigateTo moves to an explicit (level, key) pair for the current sensor
// and fetches the new view.
func (n *Navigator) NavigateTo(ctx context.Context, level timekey.Level, key string) error {
	cur := n.state.Current()
	if err := n.state.SetContext(cur.SensorID, level, key); err != nil {
		return err
	}
	return n.fetchView(ctx)
}

// Navigate follows a breadcrumb segment. The active segment is not
// navigable; following it is a no-op.
func (n *Navigator) Navigate(ctx context.Context, seg Segment) error {
	if seg.Active {
		return nil
	}
	return n.NavigateTo(ctx, seg.Level, seg.Key)
}

// Drill descends into a table row. Rows without a drill affordance (raw
// level, or empty buckets without an explicit child) are ignored.
func (n *Navigator) Drill(ctx context.Context, row api.AggregateRow) error {
	cur := n.state.Current()
	if !row.Drillable(cur.Level) {
		return nil
	}

	// Explicit child linkage from the data source always wins.
	if row.ChildLevel != "" && row.ChildKey != "" {
		level, err := timekey.ParseLevel(row.ChildLevel)
		if err != nil {
			n.logger.Warn().Str("child_level", row.ChildLevel).Msg("row carries unknown child level")
			return err
		}
		return n.NavigateTo(ctx, level, row.ChildKey)
	}

	next, ok := timekey.Next(cur.Level)
	if !ok {
		return nil
	}
	return n.NavigateTo(ctx, next, timekey.NormalizeTransport(next, row.Key))
}

// RollUp moves one level coarser, truncating the key accordingly.
func (n *Navigator) RollUp(ctx context.Context) error {
	cur := n.state.Current()
	prev, ok := timekey.Previous(cur.Level)
	if !ok {
		return nil
	}
	return n.NavigateTo(ctx, prev, timekey.NormalizeTransport(prev, cur.Key))
}

// Home returns to the fixed re-entry point: today's hourly view.
func (n *Navigator) Home(ctx context.Context) error {
	return n.NavigateTo(ctx, timekey.LevelHourly, n.now().Format("2006-01-02"))
}

// Reload re-fetches the current view without changing the context. Used by
// the refresh scheduler.
func (n *Navigator) Reload(ctx context.Context) error {
	return n.fetchView(ctx)
}

// RefreshLatest fetches the most recent reading for the current sensor.
func (n *Navigator) RefreshLatest(ctx context.Context) error {
	cur := n.state.Current()
	if cur.SensorID == "" {
		return ErrNoSensor
	}

	t := n.gate.Begin(ctx, requestgate.CategoryLatestValue)
	defer n.gate.Finish(t)

	latest, echo, err := n.source.Latest(t.Context(), cur.SensorID)
	if !n.gate.IsCurrent(t) {
		// Superseded while in flight; routine, not an error.
		return nil
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			n.logger.Warn().Err(err).Str("sensor_id", cur.SensorID).Msg("latest fetch failed")
		}
		return err
	}
	if echo.SensorID != "" && echo.SensorID != n.state.Current().SensorID {
		n.logger.Debug().Str("echo", echo.SensorID).Msg("latest response for superseded sensor discarded")
		return nil
	}

	if n.cb.Latest != nil {
		n.cb.Latest(cur.SensorID, latest)
	}
	return nil
}

// fetchView issues the guarded aggregate fetch for the current context and
// hands validated rows to the Rows callback.
func (n *Navigator) fetchView(ctx context.Context) error {
	snap := n.state.Current()
	if snap.SensorID == "" {
		return ErrNoSensor
	}

	q := AggregateQuery{
		SensorID:        snap.SensorID,
		Level:           snap.Level,
		Key:             timekey.NormalizeTransport(snap.Level, snap.Key),
		TZName:          snap.TZName,
		TZOffsetMinutes: snap.TZOffsetMinutes,
	}

	t := n.gate.Begin(ctx, requestgate.CategoryAggregateData)
	defer n.gate.Finish(t)

	rows, echo, err := n.source.Aggregate(t.Context(), q)
	if !n.gate.IsCurrent(t) {
		return nil
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			n.logger.Warn().Err(err).
				Str("sensor_id", q.SensorID).
				Str("level", string(q.Level)).
				Str("key", q.Key).
				Msg("aggregate fetch failed")
			if n.cb.Rows != nil {
				// Neutral fallback; the view shows "no data".
				n.cb.Rows(snap, nil)
			}
		}
		return err
	}

	// Cross-check the echo against the context on screen now. The gate
	// already discards superseded tickets; this guards against a transport
	// that answered a different query than asked.
	if !n.echoMatches(echo) {
		n.logger.Debug().
			Str("echo_sensor", echo.SensorID).
			Str("echo_key", echo.Key).
			Msg("aggregate response does not match current context, discarded")
		return nil
	}

	if n.cb.Rows != nil {
		n.cb.Rows(snap, rows)
	}
	return nil
}

func (n *Navigator) echoMatches(echo api.Query) bool {
	if echo.SensorID == "" && echo.Key == "" {
		// Source does not echo; ticket identity is the only check.
		return true
	}
	cur := n.state.Current()
	return echo.SensorID == cur.SensorID &&
		echo.Level == cur.Level &&
		echo.Key == timekey.NormalizeTransport(cur.Level, cur.Key)
}
