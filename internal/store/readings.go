package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// tsLayout is the stored timestamp format, always UTC.
const tsLayout = "2006-01-02 15:04:05"

// ErrNoReading is returned by Current when a sensor has no readings.
var ErrNoReading = errors.New("no reading for sensor")

// Reading is one raw measurement.
type Reading struct {
	SensorID    string
	Timestamp   time.Time
	Temperature *float64
	Humidity    *float64
}

// Bucket is one aggregated time bucket.
type Bucket struct {
	// Key is the bucket label in the grouping layout, UTC.
	Key            string
	AvgTemperature *float64
	AvgHumidity    *float64
	Count          int
}

// InsertReading stores one measurement. The timestamp is normalized to UTC.
func (s *Store) InsertReading(ctx context.Context, r Reading) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (sensor_id, ts, temperature, humidity) VALUES (?, ?, ?, ?)`,
		r.SensorID, r.Timestamp.UTC().Format(tsLayout), r.Temperature, r.Humidity)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// SensorIDs lists the distinct sensors with at least one reading.
func (s *Store) SensorIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT sensor_id FROM readings ORDER BY sensor_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Current returns the most recent reading for a sensor.
func (s *Store) Current(ctx context.Context, sensorID string) (Reading, error) {
	var (
		r  = Reading{SensorID: sensorID}
		ts string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT ts, temperature, humidity FROM readings
		 WHERE sensor_id = ? ORDER BY ts DESC, id DESC LIMIT 1`, sensorID).
		Scan(&ts, &r.Temperature, &r.Humidity)
	if err == sql.ErrNoRows {
		return Reading{}, ErrNoReading
	}
	if err != nil {
		return Reading{}, fmt.Errorf("failed to read current value: %w", err)
	}

	r.Timestamp, err = time.ParseInLocation(tsLayout, ts, time.UTC)
	if err != nil {
		return Reading{}, fmt.Errorf("corrupt timestamp %q: %w", ts, err)
	}
	return r, nil
}

// Range returns the raw readings for a sensor in [start, end), oldest
// first.
func (s *Store) Range(ctx context.Context, sensorID string, start, end time.Time) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, temperature, humidity FROM readings
		 WHERE sensor_id = ? AND ts >= ? AND ts < ?
		 ORDER BY ts, id`,
		sensorID, start.UTC().Format(tsLayout), end.UTC().Format(tsLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query readings range: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		r := Reading{SensorID: sensorID}
		var ts string
		if err := rows.Scan(&ts, &r.Temperature, &r.Humidity); err != nil {
			return nil, err
		}
		if r.Timestamp, err = time.ParseInLocation(tsLayout, ts, time.UTC); err != nil {
			return nil, fmt.Errorf("corrupt timestamp %q: %w", ts, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Aggregated groups readings for a sensor in [start, end) into buckets
// using an sqlite strftime layout (see GroupLayout), oldest bucket first.
// Stored timestamps are UTC; tzOffsetMinutes shifts them so bucket keys
// come out in the caller's local time.
func (s *Store) Aggregated(ctx context.Context, sensorID string, start, end time.Time, groupLayout string, tzOffsetMinutes int) ([]Bucket, error) {
	modifier := fmt.Sprintf("%+d minutes", tzOffsetMinutes)
	rows, err := s.db.QueryContext(ctx,
		`SELECT strftime(?, ts, ?) AS bucket, AVG(temperature), AVG(humidity), COUNT(*)
		 FROM readings
		 WHERE sensor_id = ? AND ts >= ? AND ts < ?
		 GROUP BY bucket ORDER BY bucket`,
		groupLayout, modifier, sensorID, start.UTC().Format(tsLayout), end.UTC().Format(tsLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	var out []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Key, &b.AvgTemperature, &b.AvgHumidity, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
