/*
Package traffic
File: mechanics.go
Description:
    The "physics" helpers of the engine: braking-distance policies and the
    sufficient-distance rule every vehicle decision is built on.
*/

package traffic

import "fmt"

// Braking model names accepted in BrakingModelConfig.Model.
const (
	LookaheadModelName = "lookahead"
	FixedModelName     = "fixed"
)

// BrakingPolicy estimates how much road a vehicle needs to stop from the given speed.
// Implementations must be non-decreasing in speed.
type BrakingPolicy interface {
	BrakingDistance(speed float64) float64
}

// LookaheadBraking assumes a linear stop over a fixed number of seconds (S = V0 * t / 2).
type LookaheadBraking struct {
	Seconds float64
}

func (b LookaheadBraking) BrakingDistance(speed float64) float64 {
	return speed * b.Seconds / 2
}

// FixedBraking reserves the same distance regardless of speed.
type FixedBraking struct {
	Distance float64
}

func (b FixedBraking) BrakingDistance(float64) float64 {
	return b.Distance
}

// Build resolves the configured model. An empty model name means lookahead.
func (c BrakingModelConfig) Build() (BrakingPolicy, error) {
	switch c.Model {
	case "", LookaheadModelName:
		if c.Seconds < 0 {
			return nil, fmt.Errorf("%w: vehicle.braking_model.seconds must not be negative, got %g", ErrInvalidConfiguration, c.Seconds)
		}
		return LookaheadBraking{Seconds: c.Seconds}, nil
	case FixedModelName:
		if c.Distance < 0 {
			return nil, fmt.Errorf("%w: vehicle.braking_model.distance must not be negative, got %g", ErrInvalidConfiguration, c.Distance)
		}
		return FixedBraking{Distance: c.Distance}, nil
	}
	return nil, fmt.Errorf("%w: unknown vehicle.braking_model.model %q", ErrInvalidConfiguration, c.Model)
}

// sufficientDistance reports whether a gap leaves room for the minimum
// following gap plus the braking distance at the current speed.
func sufficientDistance(gap, minGap, speed float64, policy BrakingPolicy) bool {
	return gap > minGap+policy.BrakingDistance(speed)
}
