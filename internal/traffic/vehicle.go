/*
Package traffic
File: vehicle.go
Description:
    A single vehicle: car-following, red-light handling, shoulder-lane
    switching and kinematic integration. A vehicle only ever mutates itself;
    everything it knows about the rest of the road arrives as Surroundings.
*/

package traffic

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Surroundings are the facts the Controller computes for one vehicle each tick.
// Gaps are in meters, measured from the vehicle's front; a negative gap means
// the landmark is already behind the front bumper.
type Surroundings struct {
	GapAhead          float64 // To the rear of the nearest vehicle ahead in the same lane, +Inf if none
	GapToLight        float64
	GapToShoulderEnd  float64
	LightPassable     bool
	ShoulderAvailable bool
	MainAvailable     bool
}

// Decision records what a vehicle did during one update.
type Decision struct {
	Accelerate     bool
	EmergencyBrake bool
	LaneChanged    bool
}

// Vehicle is the kinematic and decision unit of the simulation.
type Vehicle struct {
	ID     string
	Serial int

	X      float64 // Rear position, meters from the entry point
	Lane   Lane
	Speed  float64
	Length float64

	params  VehicleConfig
	braking BrakingPolicy

	lastUpdate float64

	// Lane-change memory.
	changed        bool
	lastChangeTime float64
	lastChangeX    float64
	laneChanges    int
}

// NewVehicle validates params and places a stopped vehicle at the entry of the main lane.
func NewVehicle(params VehicleConfig, now float64) (*Vehicle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	policy, err := params.BrakingModel.Build()
	if err != nil {
		return nil, err
	}
	return newVehicle(params, policy, 0, 0, now), nil
}

func newVehicle(params VehicleConfig, policy BrakingPolicy, serial int, speed, now float64) *Vehicle {
	return &Vehicle{
		ID:         uuid.NewString(),
		Serial:     serial,
		Lane:       MainLane,
		Speed:      speed,
		Length:     params.Length,
		params:     params,
		braking:    policy,
		lastUpdate: now,
	}
}

// MaxSpeed is the speed limit of the lane the vehicle is currently in.
func (v *Vehicle) MaxSpeed() float64 {
	if v.Lane == ShoulderLane {
		return v.params.ShoulderMaxSpeed
	}
	return v.params.MaxSpeed
}

// LaneChanges is the number of committed lane changes so far.
func (v *Vehicle) LaneChanges() int { return v.laneChanges }

// LastLaneChange returns the time and position of the most recent lane
// change; ok is false if the vehicle never changed lanes.
func (v *Vehicle) LastLaneChange() (at, x float64, ok bool) {
	return v.lastChangeTime, v.lastChangeX, v.changed
}

// State returns a copy of the vehicle for snapshots.
func (v *Vehicle) State() VehicleState {
	return VehicleState{
		ID:          v.ID,
		Serial:      v.Serial,
		X:           v.X,
		Lane:        v.Lane,
		Speed:       v.Speed,
		Length:      v.Length,
		LaneChanges: v.laneChanges,
	}
}

// Update advances the vehicle to now. Decisions are taken on the lane the
// vehicle starts the update in; the speed limit applied to the integration
// is the one of the lane it ends up in.
func (v *Vehicle) Update(s Surroundings, now float64) (Decision, error) {
	if now < v.lastUpdate {
		return Decision{}, fmt.Errorf("vehicle %d: update at %.3fs after %.3fs: %w", v.Serial, now, v.lastUpdate, ErrInvalidTimeOrdering)
	}
	dt := now - v.lastUpdate
	v.lastUpdate = now

	inShoulder := v.Lane == ShoulderLane
	carClose := !v.sufficient(s.GapAhead)
	shoulderEndClose := inShoulder && !v.sufficient(s.GapToShoulderEnd)

	var d Decision
	d.Accelerate = v.Speed < v.MaxSpeed() &&
		!carClose &&
		!shoulderEndClose &&
		(v.ignoresLight(s.GapToLight) || s.LightPassable)
	d.EmergencyBrake = !d.Accelerate &&
		(s.GapAhead < v.params.MinFollowingGap || (inShoulder && s.GapToShoulderEnd < v.params.MinFollowingGap))

	if v.params.CanUseShoulder {
		d.LaneChanged = v.changeLaneIfNeeded(s, carClose, now)
	}

	v.integrate(dt, d)
	return d, nil
}

func (v *Vehicle) sufficient(gap float64) bool {
	return sufficientDistance(gap, v.params.MinFollowingGap, v.Speed, v.braking)
}

// ignoresLight is true when the light is far enough away not to matter yet,
// already passed, or so close at speed that stopping is no longer an option.
// Committed means a gap under MinFollowingGap at a speed strictly above
// MaxSpeed*CommitSpeedRatio; at or below that speed the vehicle stops.
func (v *Vehicle) ignoresLight(gap float64) bool {
	if v.sufficient(gap) || gap < 0 {
		return true
	}
	return gap < v.params.MinFollowingGap && v.Speed > v.params.MaxSpeed*v.params.CommitSpeedRatio
}

func (v *Vehicle) changeLaneIfNeeded(s Surroundings, carClose bool, now float64) bool {
	toShoulder := v.Lane == MainLane &&
		carClose &&
		v.Speed < v.params.LaneChangeSpeedThreshold &&
		!s.LightPassable &&
		s.ShoulderAvailable
	toMain := v.Lane == ShoulderLane && s.MainAvailable
	if !toShoulder && !toMain {
		return false
	}
	if v.changed && (now-v.lastChangeTime <= v.params.LaneChangeCooldown || v.X == v.lastChangeX) {
		return false
	}

	v.Lane = v.Lane.Other()
	v.changed = true
	v.lastChangeTime = now
	v.lastChangeX = v.X
	v.laneChanges++
	return true
}

// integrate applies semi-implicit Euler: speed first, then position with the new speed.
func (v *Vehicle) integrate(dt float64, d Decision) {
	limit := v.MaxSpeed()
	if d.Accelerate {
		v.Speed = math.Min(limit, v.Speed+v.params.Acceleration*dt)
	} else {
		rate := v.params.Braking
		if d.EmergencyBrake {
			rate = v.params.EmergencyBraking
		}
		v.Speed = math.Max(0, v.Speed-rate*dt)
	}
	// A move onto the slower shoulder can leave the speed above the new limit.
	v.Speed = lo.Clamp(v.Speed, 0, limit)
	v.X += v.Speed * dt
}
