package nav

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mvolf/thermodash/internal/api"
	"github.com/mvolf/thermodash/internal/timekey"
)

// fakeSource is a controllable DataSource. Aggregate calls block on the
// gate registered for their key, so tests can force resolution order.
type fakeSource struct {
	mu      sync.Mutex
	sensors []api.Sensor
	queries []AggregateQuery
	gates   map[string]chan struct{}
	started chan string
}

func newFakeSource(sensors ...api.Sensor) *fakeSource {
	return &fakeSource{
		sensors: sensors,
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeSource) blockKey(key string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[key] = ch
	return ch
}

func (f *fakeSource) Sensors(ctx context.Context) ([]api.Sensor, api.Query, error) {
	return f.sensors, api.Query{Op: api.OpSensors}, nil
}

func (f *fakeSource) Latest(ctx context.Context, sensorID string) (api.Latest, api.Query, error) {
	temp := 21.5
	return api.Latest{Timestamp: "2025-11-11 14:30:00", Temperature: &temp},
		api.Query{Op: api.OpLatest, SensorID: sensorID}, nil
}

func (f *fakeSource) Aggregate(ctx context.Context, q AggregateQuery) ([]api.AggregateRow, api.Query, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	gate := f.gates[q.Key]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- q.Key
	}
	if gate != nil {
		// Deliberately ignores ctx so a cancelled request still delivers a
		// late result; staleness filtering is the navigator's job.
		<-gate
	}

	rows := []api.AggregateRow{{Key: q.Key, Count: 3}}
	echo := api.Query{Op: api.OpAggregate, SensorID: q.SensorID, Level: q.Level, Key: q.Key}
	return rows, echo, nil
}

func (f *fakeSource) recordedQueries() []AggregateQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AggregateQuery, len(f.queries))
	copy(out, f.queries)
	return out
}

type recorder struct {
	mu       sync.Mutex
	rowKeys  []string
	contexts []Context
	crumbs   [][]Segment
	latest   []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		ContextChanged: func(c Context, segs []Segment) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.contexts = append(r.contexts, c)
			r.crumbs = append(r.crumbs, segs)
		},
		Rows: func(c Context, rows []api.AggregateRow) {
			r.mu.Lock()
			defer r.mu.Unlock()
			for _, row := range rows {
				r.rowKeys = append(r.rowKeys, row.Key)
			}
		},
		Latest: func(sensorID string, l api.Latest) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.latest = append(r.latest, sensorID)
		},
	}
}

func (r *recorder) appliedRowKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.rowKeys))
	copy(out, r.rowKeys)
	return out
}

func TestNavigateIssuesExactQueryTuple(t *testing.T) {
	src := newFakeSource(api.Sensor{ID: "DHT11_01", Name: "Indoor"})
	rec := &recorder{}
	n := NewNavigator(src, rec.callbacks())

	if err := n.Select(context.Background(), "DHT11_01"); err != nil {
		t.Fatal(err)
	}
	if err := n.NavigateTo(context.Background(), timekey.LevelHourly, "2025-11-11"); err != nil {
		t.Fatal(err)
	}

	queries := src.recordedQueries()
	last := queries[len(queries)-1]
	if last.SensorID != "DHT11_01" || last.Level != timekey.LevelHourly || last.Key != "2025-11-11" {
		t.Errorf("query tuple = %+v", last)
	}

	rec.mu.Lock()
	crumbs := rec.crumbs[len(rec.crumbs)-1]
	rec.mu.Unlock()
	tail := crumbs[len(crumbs)-1]
	if tail.Label != "Day: 11" || !tail.Active {
		t.Errorf("active segment = %+v, want active Day: 11", tail)
	}
}

func TestStaleAggregateNeverReachesRows(t *testing.T) {
	src := newFakeSource(api.Sensor{ID: "DHT11_01", Name: "Indoor"})
	rec := &recorder{}
	n := NewNavigator(src, rec.callbacks())

	if err := n.Select(context.Background(), "DHT11_01"); err != nil {
		t.Fatal(err)
	}
	rec.mu.Lock()
	rec.rowKeys = nil
	rec.mu.Unlock()

	releaseA := src.blockKey("2025-11-11T14")
	releaseB := src.blockKey("2025-11-11T15")
	src.started = make(chan string, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = n.NavigateTo(context.Background(), timekey.LevelMinutely, "2025-11-11T14")
	}()
	<-src.started
	go func() {
		defer wg.Done()
		_ = n.NavigateTo(context.Background(), timekey.LevelMinutely, "2025-11-11T15")
	}()
	<-src.started

	// The newer request resolves first, the superseded one after it.
	close(releaseB)
	close(releaseA)
	wg.Wait()

	applied := rec.appliedRowKeys()
	if len(applied) != 1 || applied[0] != "2025-11-11T15" {
		t.Fatalf("applied rows = %v, want only the newest request's rows", applied)
	}
}

func TestDrillOnEmptyBucketIsNoOp(t *testing.T) {
	src := newFakeSource(api.Sensor{ID: "DHT11_01", Name: "Indoor"})
	rec := &recorder{}
	n := NewNavigator(src, rec.callbacks())

	if err := n.Select(context.Background(), "DHT11_01"); err != nil {
		t.Fatal(err)
	}
	before := n.Current()
	queriesBefore := len(src.recordedQueries())

	row := api.AggregateRow{Key: "2025-11-11T03", Count: 0}
	if err := n.Drill(context.Background(), row); err != nil {
		t.Fatal(err)
	}

	if got := n.Current(); got != before {
		t.Errorf("context changed on non-drillable row: %+v", got)
	}
	if got := len(src.recordedQueries()); got != queriesBefore {
		t.Errorf("non-drillable row issued a request (%d -> %d)", queriesBefore, got)
	}
}

func TestDrillFollowsLevelOrder(t *testing.T) {
	src := newFakeSource(api.Sensor{ID: "DHT11_01", Name: "Indoor"})
	rec := &recorder{}
	n := NewNavigator(src, rec.callbacks())

	if err := n.Select(context.Background(), "DHT11_01"); err != nil {
		t.Fatal(err)
	}
	if err := n.NavigateTo(context.Background(), timekey.LevelHourly, "2025-11-11"); err != nil {
		t.Fatal(err)
	}

	// An hourly row for 14:00 drills into the minutely view of that hour.
	if err := n.Drill(context.Background(), api.AggregateRow{Key: "2025-11-11T14", Count: 42}); err != nil {
		t.Fatal(err)
	}
	cur := n.Current()
	if cur.Level != timekey.LevelMinutely || cur.Key != "2025-11-11T14" {
		t.Errorf("after drill: %+v", cur)
	}

	// Explicit child linkage wins over the level order.
	row := api.AggregateRow{Key: "2025-11-11T14:30", Count: 1, ChildLevel: "raw", ChildKey: "2025-11-11T14:30"}
	if err := n.Drill(context.Background(), row); err != nil {
		t.Fatal(err)
	}
	cur = n.Current()
	if cur.Level != timekey.LevelRaw || cur.Key != "2025-11-11T14:30" {
		t.Errorf("after explicit-child drill: %+v", cur)
	}

	// Raw never drills further.
	if err := n.Drill(context.Background(), api.AggregateRow{Key: "2025-11-11T14:30:05", Count: 1}); err != nil {
		t.Fatal(err)
	}
	if got := n.Current(); got != cur {
		t.Errorf("raw level drilled: %+v", got)
	}
}

func TestRollUpTruncatesKey(t *testing.T) {
	src := newFakeSource(api.Sensor{ID: "DHT11_01", Name: "Indoor"})
	rec := &recorder{}
	n := NewNavigator(src, rec.callbacks())

	if err := n.Select(context.Background(), "DHT11_01"); err != nil {
		t.Fatal(err)
	}
	if err := n.NavigateTo(context.Background(), timekey.LevelRaw, "2025-11-11T14:30"); err != nil {
		t.Fatal(err)
	}

	if err := n.RollUp(context.Background()); err != nil {
		t.Fatal(err)
	}
	cur := n.Current()
	if cur.Level != timekey.LevelMinutely || cur.Key != "2025-11-11T14" {
		t.Errorf("after roll-up: %+v", cur)
	}

	for i := 0; i < 10; i++ {
		_ = n.RollUp(context.Background())
	}
	// Rolling up past the coarsest level stays put.
	if got := n.Current().Level; got != timekey.LevelMonthly {
		t.Errorf("level after repeated roll-up = %q", got)
	}
}

func TestLoadSensorsSelectsFirst(t *testing.T) {
	src := newFakeSource(
		api.Sensor{ID: "DHT11_01", Name: "Indoor"},
		api.Sensor{ID: "DHT11_02", Name: "Outdoor"},
	)
	rec := &recorder{}
	n := NewNavigator(src, rec.callbacks())

	if err := n.LoadSensors(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := n.Current().SensorID; got != "DHT11_01" {
		t.Errorf("selected sensor = %q, want first from the list", got)
	}

	// A second load keeps the existing selection.
	_ = n.Select(context.Background(), "DHT11_02")
	if err := n.LoadSensors(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := n.Current().SensorID; got != "DHT11_02" {
		t.Errorf("LoadSensors overwrote selection: %q", got)
	}
}

func TestRefreshLatestRequiresSensor(t *testing.T) {
	src := newFakeSource()
	n := NewNavigator(src, Callbacks{})

	if err := n.RefreshLatest(context.Background()); err != ErrNoSensor {
		t.Errorf("err = %v, want ErrNoSensor", err)
	}
	if err := n.Reload(context.Background()); err != ErrNoSensor {
		t.Errorf("err = %v, want ErrNoSensor", err)
	}
}

func TestHomeReturnsToToday(t *testing.T) {
	src := newFakeSource(api.Sensor{ID: "DHT11_01", Name: "Indoor"})
	n := NewNavigator(src, Callbacks{})
	n.now = func() time.Time { return time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC) }

	_ = n.Select(context.Background(), "DHT11_01")
	_ = n.NavigateTo(context.Background(), timekey.LevelRaw, "2024-01-01T00:00")

	if err := n.Home(context.Background()); err != nil {
		t.Fatal(err)
	}
	cur := n.Current()
	if cur.Level != timekey.LevelHourly || cur.Key != "2025-11-20" {
		t.Errorf("home context = %+v", cur)
	}
}
