// Package client is the HTTP client for the thermodash daemon API. It
// decodes the envelope responses and surfaces the query echo so the
// navigator can verify results against its current context.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mvolf/thermodash/internal/api"
	"github.com/mvolf/thermodash/internal/logging"
	"github.com/mvolf/thermodash/internal/nav"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 10 * time.Second

// Client talks to one thermodash daemon.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the daemon at baseURL, e.g.
// "http://localhost:8093".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logging.Component("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sensors lists the selectable sensors.
func (c *Client) Sensors(ctx context.Context) ([]api.Sensor, api.Query, error) {
	var sensors []api.Sensor
	q, err := c.get(ctx, "/api/sensors", nil, &sensors)
	return sensors, q, err
}

// Latest fetches the most recent reading for a sensor.
func (c *Client) Latest(ctx context.Context, sensorID string) (api.Latest, api.Query, error) {
	var latest api.Latest
	q, err := c.get(ctx, "/api/latest/"+url.PathEscape(sensorID), nil, &latest)
	return latest, q, err
}

// Aggregate fetches the rows for one navigation context.
func (c *Client) Aggregate(ctx context.Context, query nav.AggregateQuery) ([]api.AggregateRow, api.Query, error) {
	path := fmt.Sprintf("/api/aggregate/%s/%s/%s",
		url.PathEscape(query.SensorID),
		url.PathEscape(string(query.Level)),
		url.PathEscape(query.Key))

	params := url.Values{}
	if query.TZName != "" {
		params.Set("tz", query.TZName)
	}
	if query.TZOffsetMinutes != 0 {
		params.Set("tz_offset", strconv.Itoa(query.TZOffsetMinutes))
	}

	var rows []api.AggregateRow
	q, err := c.get(ctx, path, params, &rows)
	return rows, q, err
}

// Actuators lists all actuator states.
func (c *Client) Actuators(ctx context.Context) ([]api.ActuatorState, error) {
	var states []api.ActuatorState
	_, err := c.get(ctx, "/api/actuators", nil, &states)
	return states, err
}

// Actuator fetches one actuator's state.
func (c *Client) Actuator(ctx context.Context, name string) (api.ActuatorState, error) {
	var state api.ActuatorState
	_, err := c.get(ctx, "/api/actuators/"+url.PathEscape(name), nil, &state)
	return state, err
}

// SetActuator sends an actuator command and returns the resulting state.
func (c *Client) SetActuator(ctx context.Context, name string, cmd api.ActuatorCommand) (api.ActuatorState, error) {
	var state api.ActuatorState
	_, err := c.post(ctx, "/api/actuators/"+url.PathEscape(name), cmd, &state)
	return state, err
}

// Setpoint fetches an actuator's thermostat target.
func (c *Client) Setpoint(ctx context.Context, name string) (float64, error) {
	var sp api.Setpoint
	_, err := c.get(ctx, "/api/actuators/setpoint/"+url.PathEscape(name), nil, &sp)
	return sp.Value, err
}

// SetSetpoint updates an actuator's thermostat target.
func (c *Client) SetSetpoint(ctx context.Context, name string, value float64) error {
	var sp api.Setpoint
	_, err := c.post(ctx, "/api/actuators/setpoint/"+url.PathEscape(name), api.Setpoint{Value: value}, &sp)
	return err
}

// LogsTail fetches the last lines of the daemon log. lines <= 0 uses the
// server default.
func (c *Client) LogsTail(ctx context.Context, lines int) (api.LogTail, error) {
	params := url.Values{}
	if lines > 0 {
		params.Set("lines", strconv.Itoa(lines))
	}
	var tail api.LogTail
	_, err := c.get(ctx, "/api/logs/tail", params, &tail)
	return tail, err
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) (api.Query, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return api.Query{}, fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) (api.Query, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return api.Query{}, fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return api.Query{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) (api.Query, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return api.Query{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return api.Query{}, fmt.Errorf("failed to read response: %w", err)
	}

	var env api.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return api.Query{}, fmt.Errorf("invalid response (status %d): %w", resp.StatusCode, err)
	}
	if env.Error != "" {
		return env.Query, fmt.Errorf("server rejected %s: %s", env.Query.Op, env.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return env.Query, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return env.Query, fmt.Errorf("failed to decode %s result: %w", env.Query.Op, err)
		}
	}
	return env.Query, nil
}
