// Package engagement turns raw per-minute status samples into smoothed
// per-participant time series, live bucket rollups, and the size-normalised
// end-of-meeting score.
package engagement

import "fmt"

// Strategy converts a participant's binary engagement flags into a series of
// percentages in [0, 100]. The window argument is a hint in minutes; not all
// strategies use it.
type Strategy interface {
	Smooth(flags []int, window int) []float64
	Name() string
}

// NewStrategy returns the smoothing strategy registered under name.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "kalman", "":
		return NewKalman(), nil
	case "none":
		return NoSmoothing{}, nil
	default:
		return nil, fmt.Errorf("unknown smoothing strategy: %s", name)
	}
}

// NoSmoothing maps flags straight to 0 or 100 without filtering. Useful for
// real-time views where raw state changes should be visible immediately.
type NoSmoothing struct{}

func (NoSmoothing) Name() string { return "none" }

func (NoSmoothing) Smooth(flags []int, _ int) []float64 {
	out := make([]float64, len(flags))
	for i, f := range flags {
		out[i] = float64(f) * 100.0
	}
	return out
}

// Kalman applies a 1D Kalman filter to the flag series, trading a little
// responsiveness for much smoother curves. Lower process variance means a
// smoother output; lower measurement variance trusts the samples more.
type Kalman struct {
	ProcessVariance     float64
	MeasurementVariance float64
}

// NewKalman returns a filter with the default variances tuned for
// minute-resolution engagement data.
func NewKalman() *Kalman {
	return &Kalman{ProcessVariance: 1e-5, MeasurementVariance: 1e-2}
}

func (k *Kalman) Name() string { return "kalman" }

func (k *Kalman) Smooth(flags []int, _ int) []float64 {
	if len(flags) == 0 {
		return nil
	}

	estimates := make([]float64, 0, len(flags))
	estimate := float64(flags[0]) * 100.0
	errEstimate := 1.0

	for _, flag := range flags {
		measurement := float64(flag) * 100.0

		// Prediction step: no state transition model, only process noise.
		errEstimate += k.ProcessVariance

		// Update step.
		gain := errEstimate / (errEstimate + k.MeasurementVariance)
		estimate += gain * (measurement - estimate)
		errEstimate = (1 - gain) * errEstimate

		estimates = append(estimates, estimate)
	}
	return estimates
}
