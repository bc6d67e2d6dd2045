package mock

import (
	"context"
	"math/rand"
	"time"
)

// Delay is a latency band for one class of simulated operation.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// Latency bands modelled after the real systems being mocked.
var (
	MetadataDelay = Delay{Min: 20 * time.Millisecond, Max: 80 * time.Millisecond}
	QueryDelay    = Delay{Min: 100 * time.Millisecond, Max: 500 * time.Millisecond}
	FileDelay     = Delay{Min: 30 * time.Millisecond, Max: 150 * time.Millisecond}
	NetworkDelay  = Delay{Min: 150 * time.Millisecond, Max: 600 * time.Millisecond}
)

// Sleep blocks for a random duration inside the band, or until ctx is done.
// A zero Delay returns immediately, which is how tests run without latency.
func (d Delay) Sleep(ctx context.Context) error {
	if d.Max <= 0 {
		return ctx.Err()
	}
	span := d.Max - d.Min
	dur := d.Min
	if span > 0 {
		dur += time.Duration(rand.Int63n(int64(span) + 1))
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Scale shrinks or disables a band, keeping ordering between Min and Max.
// Factor 0 disables latency entirely.
func (d Delay) Scale(factor float64) Delay {
	return Delay{
		Min: time.Duration(float64(d.Min) * factor),
		Max: time.Duration(float64(d.Max) * factor),
	}
}
