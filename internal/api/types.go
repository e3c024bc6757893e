// Package api defines the wire contract between the dashboard client and
// the thermodash daemon. Every response carries an echo of the query
// parameters actually applied so clients can cross-check a result against
// the context they are about to render, not just against ticket identity.
package api

import (
	"encoding/json"

	"github.com/mvolf/thermodash/internal/timekey"
)

// Operation names for the query echo.
const (
	OpSensors   = "sensors"
	OpLatest    = "latest"
	OpAggregate = "aggregate"
	OpActuator  = "actuator"
	OpSetpoint  = "setpoint"
	OpLogsTail  = "logs-tail"
)

// Query echoes the request parameters the server actually applied.
type Query struct {
	Op       string        `json:"op"`
	SensorID string        `json:"sensor_id,omitempty"`
	Level    timekey.Level `json:"level,omitempty"`
	Key      string        `json:"key,omitempty"`
	TZName   string        `json:"tz,omitempty"`
	TZOffset int           `json:"tz_offset,omitempty"`
	// StartUTC/EndUTC are the resolved UTC bounds of an aggregate query,
	// "2006-01-02 15:04:05", end exclusive.
	StartUTC string `json:"start_utc,omitempty"`
	EndUTC   string `json:"end_utc,omitempty"`
	Actuator string `json:"actuator,omitempty"`
}

// Envelope is the common response shape: a query echo plus either a result
// payload or an error.
type Envelope struct {
	Query  Query           `json:"query"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   int             `json:"code,omitempty"`
}

// Sensor is one selectable sensor.
type Sensor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Latest is the most recent reading for a sensor. Zero value means no data.
type Latest struct {
	Timestamp   string   `json:"timestamp,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// Empty reports whether the sensor has produced no reading yet.
func (l Latest) Empty() bool {
	return l.Timestamp == ""
}

// AggregateRow is one time bucket (or, at raw level, one sample). Metric
// pointers are nil for buckets with no samples. ChildLevel/ChildKey, when
// set, name the explicit drill-down target for the row.
type AggregateRow struct {
	Key         string   `json:"key"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Count       int      `json:"count"`
	ChildLevel  string   `json:"child_level,omitempty"`
	ChildKey    string   `json:"child_key,omitempty"`
}

// Drillable reports whether the row exposes a drill-down affordance at the
// given level.
func (r AggregateRow) Drillable(level timekey.Level) bool {
	return timekey.Drillable(level, r.ChildLevel, r.ChildKey, r.Count)
}

// ActuatorState is the logical state of one actuator.
type ActuatorState struct {
	Name string `json:"name"`
	On   bool   `json:"on"`
	// HW reports whether a physical device backs the actuator.
	HW   bool   `json:"hw"`
	Mode string `json:"mode,omitempty"`
}

// ActuatorCommand is the POST body for an actuator change.
type ActuatorCommand struct {
	On   *bool  `json:"on,omitempty"`
	Mode string `json:"mode,omitempty"`
}

// Setpoint is a thermostat target value.
type Setpoint struct {
	Value float64 `json:"value"`
}

// LogTail is the last lines of the daemon log.
type LogTail struct {
	Lines []string `json:"lines"`
	Info  string   `json:"info,omitempty"`
}
