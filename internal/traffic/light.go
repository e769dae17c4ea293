/*
Package traffic
File: light.go
Description:
    The traffic light past the bridge. Green and red alternate with
    independent durations; the light starts green.
*/

package traffic

import (
	"fmt"
	"math"
)

// initialFlipTime puts the first phase change one second before the epoch,
// so a green phase of d seconds ends at d-1.
const initialFlipTime = -1.0

// TrafficLight is a two-phase timer. Passable means green.
type TrafficLight struct {
	green    float64
	red      float64
	passable bool
	lastFlip float64
	lastSeen float64
}

// NewTrafficLight returns a green light.
func NewTrafficLight(cfg LightConfig) (*TrafficLight, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TrafficLight{
		green:    cfg.GreenDuration,
		red:      cfg.RedDuration,
		passable: true,
		lastFlip: initialFlipTime,
		lastSeen: math.Inf(-1),
	}, nil
}

// TryUpdate flips the phase once its duration has elapsed and returns the
// current phase. Calling it again with the same time changes nothing.
func (l *TrafficLight) TryUpdate(now float64) (bool, error) {
	if now < l.lastSeen {
		return l.passable, fmt.Errorf("traffic light: update at %.3fs after %.3fs: %w", now, l.lastSeen, ErrInvalidTimeOrdering)
	}
	l.lastSeen = now

	if now > l.lastFlip+l.phaseDuration() {
		l.passable = !l.passable
		l.lastFlip = now
	}
	return l.passable, nil
}

// Passable reports the current phase without advancing the timer.
func (l *TrafficLight) Passable() bool { return l.passable }

// TimeToFlip is how long the current phase still lasts, as seen at now.
func (l *TrafficLight) TimeToFlip(now float64) float64 {
	return math.Max(0, l.lastFlip+l.phaseDuration()-now)
}

func (l *TrafficLight) phaseDuration() float64 {
	if l.passable {
		return l.green
	}
	return l.red
}
