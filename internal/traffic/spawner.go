/*
Package traffic
File: spawner.go
Description:
    The Spawner decides when a new vehicle may enter the road. It enforces a
    minimum inter-arrival time of 1/intensity seconds and an optional cap.
    Whether the entry zone is free is the Controller's call.
*/

package traffic

import (
	"errors"
	"fmt"
	"math"
)

// Spawner admits new vehicles at a bounded rate, optionally up to a total cap.
type Spawner struct {
	cfg     SpawnerConfig
	vehicle VehicleConfig
	braking BrakingPolicy

	produced     int
	lastProduced float64
	lastSeen     float64
}

// NewSpawner validates both the spawner and the vehicle template it produces.
func NewSpawner(cfg SpawnerConfig, vehicle VehicleConfig) (*Spawner, error) {
	if err := errors.Join(cfg.Validate(vehicle), vehicle.Validate()); err != nil {
		return nil, err
	}
	policy, err := vehicle.BrakingModel.Build()
	if err != nil {
		return nil, err
	}
	return &Spawner{
		cfg:          cfg,
		vehicle:      vehicle,
		braking:      policy,
		lastProduced: math.Inf(-1),
		lastSeen:     math.Inf(-1),
	}, nil
}

// TryProduce returns a new vehicle at the entry of the main lane, or nil if
// the cap is reached or the minimum inter-arrival time has not elapsed.
func (s *Spawner) TryProduce(now float64) (*Vehicle, error) {
	if now < s.lastSeen {
		return nil, fmt.Errorf("spawner: produce at %.3fs after %.3fs: %w", now, s.lastSeen, ErrInvalidTimeOrdering)
	}
	s.lastSeen = now

	if s.Exhausted() || now <= s.lastProduced+1/s.cfg.Intensity {
		return nil, nil
	}
	s.produced++
	s.lastProduced = now
	return newVehicle(s.vehicle, s.braking, s.produced, s.cfg.StartingSpeed, now), nil
}

// Produced is the number of vehicles handed out so far.
func (s *Spawner) Produced() int { return s.produced }

// Exhausted reports whether the cap has been reached. It never is without a cap.
func (s *Spawner) Exhausted() bool {
	return s.cfg.MaxVehicles > 0 && s.produced >= s.cfg.MaxVehicles
}

// VehicleLength is the length of the vehicles this spawner produces.
func (s *Spawner) VehicleLength() float64 { return s.vehicle.Length }
