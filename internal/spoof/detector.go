// Package spoof flags location samples that look injected rather than
// produced by genuine hardware sensing. The exact heuristic is a pluggable
// strategy behind a stable verdict contract; the engine only acts on the
// boolean outcome.
package spoof

import (
	"fmt"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/geo"
)

// Verdict is the outcome of inspecting one sample.
type Verdict struct {
	Mocked bool
	Reason string
}

// Detector inspects samples in arrival order. Implementations may keep
// per-session state (e.g. the previous sample for velocity checks); Reset
// must clear it on identity switch.
type Detector interface {
	Inspect(sample attendance.LocationSample) Verdict
	Reset()
}

// Config tunes the default heuristic detector. Zero thresholds disable the
// corresponding check.
type Config struct {
	// MaxSpeedMetersPerSecond flags jumps implying an implausible velocity
	// between consecutive samples. ~83 m/s is 300 km/h.
	MaxSpeedMetersPerSecond float64
	// SuspiciousAccuracyMeters flags samples reporting better accuracy than
	// consumer GPS hardware produces. Injected fixes often claim 0-1 m.
	SuspiciousAccuracyMeters float64
}

// DefaultConfig mirrors what the backend tolerates before it starts
// rejecting submissions of its own accord.
func DefaultConfig() Config {
	return Config{
		MaxSpeedMetersPerSecond:  83,
		SuspiciousAccuracyMeters: 1,
	}
}

type heuristicDetector struct {
	cfg  Config
	prev *attendance.LocationSample
}

// NewDetector returns the default detector: the platform mock flag is
// authoritative, accuracy and implied-velocity checks back it up.
func NewDetector(cfg Config) Detector {
	return &heuristicDetector{cfg: cfg}
}

func (d *heuristicDetector) Inspect(sample attendance.LocationSample) Verdict {
	defer func() {
		s := sample
		d.prev = &s
	}()

	if sample.ProviderMocked {
		return Verdict{Mocked: true, Reason: "provider reported mock location"}
	}

	if d.cfg.SuspiciousAccuracyMeters > 0 && sample.AccuracyMeters > 0 &&
		sample.AccuracyMeters < d.cfg.SuspiciousAccuracyMeters {
		return Verdict{
			Mocked: true,
			Reason: fmt.Sprintf("reported accuracy %.2fm is below the plausible floor", sample.AccuracyMeters),
		}
	}

	if d.cfg.MaxSpeedMetersPerSecond > 0 && d.prev != nil {
		elapsed := sample.CapturedAt.Sub(d.prev.CapturedAt).Seconds()
		if elapsed > 0 {
			distance := geo.HaversineDistance(
				d.prev.Latitude, d.prev.Longitude,
				sample.Latitude, sample.Longitude,
			)
			speed := distance / elapsed
			if speed > d.cfg.MaxSpeedMetersPerSecond {
				return Verdict{
					Mocked: true,
					Reason: fmt.Sprintf("implied speed %.0fm/s exceeds %.0fm/s", speed, d.cfg.MaxSpeedMetersPerSecond),
				}
			}
		}
	}

	return Verdict{}
}

func (d *heuristicDetector) Reset() {
	d.prev = nil
}
