// Package server exposes the thermodash HTTP API. Every response is an
// api.Envelope whose query echo names the parameters actually applied,
// so a client can verify a payload against its current navigation
// context before rendering it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mvolf/thermodash/internal/actuators"
	"github.com/mvolf/thermodash/internal/api"
	"github.com/mvolf/thermodash/internal/logging"
	"github.com/mvolf/thermodash/internal/store"
	"github.com/mvolf/thermodash/internal/timekey"
)

// DefaultLogTailLines matches the dashboard's log pane height budget.
const DefaultLogTailLines = 200

// Config holds the HTTP server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8093".
	Addr string

	// LogPath is the daemon log file served by the log tail endpoint.
	// Empty disables the endpoint's file access.
	LogPath string

	// SensorNames maps sensor IDs to display names. Unlisted sensors
	// fall back to their ID.
	SensorNames map[string]string
}

// Server serves the dashboard API from the readings store.
type Server struct {
	config    Config
	store     *store.Store
	actuators *actuators.Manager
	http      *http.Server
	logger    zerolog.Logger
}

// New creates a Server. The actuator manager may be nil, in which case
// the actuator endpoints report unknown actuators.
func New(config Config, st *store.Store, manager *actuators.Manager) *Server {
	s := &Server{
		config:    config,
		store:     st,
		actuators: manager,
		logger:    logging.Component("server"),
	}
	s.http = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the API routes. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sensors", s.handleSensors)
	mux.HandleFunc("GET /api/latest/{id}", s.handleLatest)
	mux.HandleFunc("GET /api/aggregate/{id}/{level}/{key}", s.handleAggregate)
	mux.HandleFunc("GET /api/actuators", s.handleActuatorList)
	mux.HandleFunc("GET /api/actuators/{name}", s.handleActuatorGet)
	mux.HandleFunc("POST /api/actuators/{name}", s.handleActuatorPost)
	mux.HandleFunc("GET /api/actuators/setpoint/{name}", s.handleSetpointGet)
	mux.HandleFunc("POST /api/actuators/setpoint/{name}", s.handleSetpointPost)
	mux.HandleFunc("GET /api/logs/tail", s.handleLogsTail)
	return mux
}

// ListenAndServe runs the server until the listener fails or Shutdown
// is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.config.Addr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	q := api.Query{Op: api.OpSensors}

	ids, err := s.store.SensorIDs(r.Context())
	if err != nil {
		s.writeError(w, q, http.StatusInternalServerError, err)
		return
	}

	sensors := make([]api.Sensor, 0, len(ids))
	for _, id := range ids {
		name := s.config.SensorNames[id]
		if name == "" {
			name = id
		}
		sensors = append(sensors, api.Sensor{ID: id, Name: name})
	}
	s.writeResult(w, q, sensors)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	sensorID := r.PathValue("id")
	q := api.Query{Op: api.OpLatest, SensorID: sensorID}

	reading, err := s.store.Current(r.Context(), sensorID)
	if errors.Is(err, store.ErrNoReading) {
		s.writeResult(w, q, api.Latest{})
		return
	}
	if err != nil {
		s.writeError(w, q, http.StatusInternalServerError, err)
		return
	}

	s.writeResult(w, q, api.Latest{
		Timestamp:   reading.Timestamp.Format(time.RFC3339),
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
	})
}

// bucketGranularity is the granularity of the row keys produced at each
// level, one step finer than the level's context key.
func bucketGranularity(level timekey.Level) timekey.Granularity {
	switch level {
	case timekey.LevelMonthly:
		return timekey.GranMonth
	case timekey.LevelDaily:
		return timekey.GranDay
	case timekey.LevelHourly:
		return timekey.GranHour
	default:
		return timekey.GranMinute
	}
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var (
		sensorID = r.PathValue("id")
		rawLevel = r.PathValue("level")
		key      = r.PathValue("key")
		tzName   = r.URL.Query().Get("tz")
	)
	tzOffset, _ := strconv.Atoi(r.URL.Query().Get("tz_offset"))

	q := api.Query{
		Op:       api.OpAggregate,
		SensorID: sensorID,
		Key:      key,
		TZName:   tzName,
		TZOffset: tzOffset,
	}

	level, err := timekey.ParseLevel(rawLevel)
	if err != nil {
		q.Level = timekey.Level(rawLevel)
		s.writeError(w, q, http.StatusBadRequest, err)
		return
	}
	q.Level = level
	q.Key = timekey.NormalizeTransport(level, key)

	loc := store.ResolveLocation(tzName, tzOffset)
	start, end, err := store.ResolveRange(q.Key, loc)
	if err != nil {
		s.writeError(w, q, http.StatusBadRequest, err)
		return
	}
	q.StartUTC = start.Format("2006-01-02 15:04:05")
	q.EndUTC = end.Format("2006-01-02 15:04:05")

	var rows []api.AggregateRow
	if level == timekey.LevelRaw {
		rows, err = s.rawRows(r.Context(), sensorID, start, end, loc)
	} else {
		rows, err = s.bucketRows(r.Context(), sensorID, level, start, end, loc)
	}
	if err != nil {
		s.writeError(w, q, http.StatusInternalServerError, err)
		return
	}
	s.writeResult(w, q, rows)
}

func (s *Server) bucketRows(ctx context.Context, sensorID string, level timekey.Level, start, end time.Time, loc *time.Location) ([]api.AggregateRow, error) {
	layout, ok := store.GroupLayout(level)
	if !ok {
		return nil, fmt.Errorf("level %q has no aggregation layout", level)
	}
	_, offsetSeconds := start.In(loc).Zone()

	buckets, err := s.store.Aggregated(ctx, sensorID, start, end, layout, offsetSeconds/60)
	if err != nil {
		return nil, err
	}

	gran := bucketGranularity(level)
	rows := make([]api.AggregateRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, api.AggregateRow{
			Key:         timekey.ParseKey(b.Key).Format(gran),
			Temperature: round2(b.AvgTemperature),
			Humidity:    round2(b.AvgHumidity),
			Count:       b.Count,
		})
	}
	return rows, nil
}

func (s *Server) rawRows(ctx context.Context, sensorID string, start, end time.Time, loc *time.Location) ([]api.AggregateRow, error) {
	readings, err := s.store.Range(ctx, sensorID, start, end)
	if err != nil {
		return nil, err
	}

	rows := make([]api.AggregateRow, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, api.AggregateRow{
			Key:         r.Timestamp.In(loc).Format("2006-01-02T15:04:05"),
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Count:       1,
		})
	}
	return rows, nil
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}

func (s *Server) handleActuatorList(w http.ResponseWriter, r *http.Request) {
	q := api.Query{Op: api.OpActuator}
	if s.actuators == nil {
		s.writeResult(w, q, []api.ActuatorState{})
		return
	}
	s.writeResult(w, q, s.actuators.States())
}

func (s *Server) handleActuatorGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	q := api.Query{Op: api.OpActuator, Actuator: name}

	state, err := s.actuatorState(name)
	if err != nil {
		s.writeError(w, q, http.StatusNotFound, err)
		return
	}
	s.writeResult(w, q, state)
}

func (s *Server) handleActuatorPost(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	q := api.Query{Op: api.OpActuator, Actuator: name}

	var cmd api.ActuatorCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		s.writeError(w, q, http.StatusBadRequest, fmt.Errorf("invalid command body: %w", err))
		return
	}
	if s.actuators == nil {
		s.writeError(w, q, http.StatusNotFound, actuators.ErrUnknownActuator)
		return
	}

	state, err := s.actuators.Apply(r.Context(), name, cmd)
	switch {
	case errors.Is(err, actuators.ErrUnknownActuator):
		s.writeError(w, q, http.StatusNotFound, err)
	case errors.Is(err, actuators.ErrInvalidMode):
		s.writeError(w, q, http.StatusBadRequest, err)
	case err != nil:
		s.writeError(w, q, http.StatusInternalServerError, err)
	default:
		s.writeResult(w, q, state)
	}
}

func (s *Server) handleSetpointGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	q := api.Query{Op: api.OpSetpoint, Actuator: name}

	if s.actuators == nil {
		s.writeError(w, q, http.StatusNotFound, actuators.ErrUnknownActuator)
		return
	}
	value, err := s.actuators.Setpoint(name)
	if err != nil {
		s.writeError(w, q, http.StatusNotFound, err)
		return
	}
	s.writeResult(w, q, api.Setpoint{Value: value})
}

func (s *Server) handleSetpointPost(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	q := api.Query{Op: api.OpSetpoint, Actuator: name}

	var sp api.Setpoint
	if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
		s.writeError(w, q, http.StatusBadRequest, fmt.Errorf("invalid setpoint body: %w", err))
		return
	}
	if s.actuators == nil {
		s.writeError(w, q, http.StatusNotFound, actuators.ErrUnknownActuator)
		return
	}

	if _, err := s.actuators.SetSetpoint(r.Context(), name, sp.Value); err != nil {
		s.writeError(w, q, http.StatusNotFound, err)
		return
	}
	s.writeResult(w, q, api.Setpoint{Value: sp.Value})
}

func (s *Server) handleLogsTail(w http.ResponseWriter, r *http.Request) {
	q := api.Query{Op: api.OpLogsTail}

	lines := DefaultLogTailLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 2000 {
			lines = n
		}
	}

	if s.config.LogPath == "" {
		s.writeResult(w, q, api.LogTail{Info: "log file not configured"})
		return
	}
	tail, err := logging.TailFile(s.config.LogPath, lines)
	if err != nil {
		s.writeResult(w, q, api.LogTail{Info: err.Error()})
		return
	}
	s.writeResult(w, q, api.LogTail{Lines: tail})
}

func (s *Server) actuatorState(name string) (api.ActuatorState, error) {
	if s.actuators == nil {
		return api.ActuatorState{}, actuators.ErrUnknownActuator
	}
	return s.actuators.State(name)
}

func (s *Server) writeResult(w http.ResponseWriter, q api.Query, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.writeError(w, q, http.StatusInternalServerError, err)
		return
	}
	s.writeEnvelope(w, http.StatusOK, api.Envelope{Query: q, Result: raw})
}

func (s *Server) writeError(w http.ResponseWriter, q api.Query, code int, err error) {
	s.logger.Warn().Err(err).Str("op", q.Op).Int("code", code).Msg("request failed")
	s.writeEnvelope(w, code, api.Envelope{Query: q, Error: err.Error(), Code: code})
}

func (s *Server) writeEnvelope(w http.ResponseWriter, code int, env api.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
