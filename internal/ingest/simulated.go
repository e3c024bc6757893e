package ingest

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/mvolf/thermodash/internal/store"
)

// SimulatedSource generates plausible indoor readings when no hardware
// sensor is attached. Each sensor random-walks around its base values.
type SimulatedSource struct {
	mu      sync.Mutex
	sensors []simSensor
	rand    *rand.Rand
	now     func() time.Time
}

type simSensor struct {
	id          string
	temperature float64
	humidity    float64
}

// NewSimulatedSource creates a source for the given sensor IDs.
func NewSimulatedSource(sensorIDs []string, seed int64) *SimulatedSource {
	rng := rand.New(rand.NewSource(seed))
	s := &SimulatedSource{
		rand: rng,
		now:  time.Now,
	}
	for _, id := range sensorIDs {
		s.sensors = append(s.sensors, simSensor{
			id:          id,
			temperature: 20 + rng.Float64()*4,
			humidity:    40 + rng.Float64()*15,
		})
	}
	return s
}

// Read returns one reading per sensor.
func (s *SimulatedSource) Read(_ context.Context) ([]store.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	out := make([]store.Reading, 0, len(s.sensors))
	for i := range s.sensors {
		sen := &s.sensors[i]
		sen.temperature = clamp(sen.temperature+s.rand.Float64()*0.6-0.3, 5, 35)
		sen.humidity = clamp(sen.humidity+s.rand.Float64()*2-1, 15, 95)

		temp, hum := sen.temperature, sen.humidity
		out = append(out, store.Reading{
			SensorID:    sen.id,
			Timestamp:   ts,
			Temperature: &temp,
			Humidity:    &hum,
		})
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
