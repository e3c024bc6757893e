// Package export writes stored readings out as CSV for offline
// analysis.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mvolf/thermodash/internal/store"
)

// csv column order: sensor_id, timestamp (UTC RFC3339), temperature,
// humidity. Missing metrics are empty cells.
var header = []string{"sensor_id", "timestamp", "temperature", "humidity"}

// WriteCSV writes readings to w, header first.
func WriteCSV(w io.Writer, readings []store.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range readings {
		record := []string{
			r.SensorID,
			r.Timestamp.UTC().Format(time.RFC3339),
			formatMetric(r.Temperature),
			formatMetric(r.Humidity),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Range exports a sensor's readings in [start, end) to w.
func Range(ctx context.Context, st *store.Store, sensorID string, start, end time.Time, w io.Writer) (int, error) {
	readings, err := st.Range(ctx, sensorID, start, end)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(w, readings); err != nil {
		return 0, err
	}
	return len(readings), nil
}

func formatMetric(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
