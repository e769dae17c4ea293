/*
Package traffic
File: config.go
Description:
    Loading and validation of the simulation configuration.
    LoadConfig overlays 'bridgeflow.yaml' on top of DefaultConfig, so a file
    only needs to list the values it wants to change.
*/

package traffic

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the file the server reads when no other path is given.
const DefaultConfigPath = "bridgeflow.yaml"

// DefaultConfig returns a complete, valid configuration: a 300 m approach with
// a shoulder lane, a 100 m bridge and a light 100 m past the bridge.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8081",
			TickIntervalMs: 50,
			RetireDistance: 200,
		},
		Road: RoadConfig{
			DistanceToBridge:    300,
			BridgeLength:        100,
			BridgeToLight:       100,
			EntryClearance:      10,
			LaneChangeClearance: 5,
		},
		Light: LightConfig{
			GreenDuration: 10,
			RedDuration:   20,
		},
		Spawner: SpawnerConfig{
			Intensity: 0.5,
		},
		Vehicle: VehicleConfig{
			Length:                   4.5,
			MaxSpeed:                 16.7,
			ShoulderMaxSpeed:         8.3,
			Acceleration:             2.5,
			Braking:                  4.5,
			EmergencyBraking:         9,
			MinFollowingGap:          5,
			LaneChangeCooldown:       5,
			LaneChangeSpeedThreshold: 8,
			CommitSpeedRatio:         0.8,
			CanUseShoulder:           true,
			BrakingModel: BrakingModelConfig{
				Model:   LookaheadModelName,
				Seconds: 4,
			},
		},
	}
}

// LoadConfig reads the YAML file at path and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// TickInterval is the heartbeat period of the live server.
func (s ServerConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalMs) * time.Millisecond
}

// Validate reports every problem in the configuration at once.
// Each problem wraps ErrInvalidConfiguration.
func (c Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Road.Validate(),
		c.Light.Validate(),
		c.Spawner.Validate(c.Vehicle),
		c.Vehicle.Validate(),
	)
}

func (s ServerConfig) Validate() error {
	var v validator
	v.check(s.Addr != "", "server.addr must not be empty")
	v.check(s.TickIntervalMs > 0, "server.tick_interval_ms must be positive, got %d", s.TickIntervalMs)
	v.check(s.RetireDistance >= 0, "server.retire_distance must not be negative, got %g", s.RetireDistance)
	return v.err()
}

func (r RoadConfig) Validate() error {
	var v validator
	v.check(r.DistanceToBridge > 0, "road.distance_to_bridge must be positive, got %g", r.DistanceToBridge)
	v.check(r.BridgeLength > 0, "road.bridge_length must be positive, got %g", r.BridgeLength)
	v.check(r.BridgeToLight >= 0, "road.bridge_to_light must not be negative, got %g", r.BridgeToLight)
	v.check(r.EntryClearance >= 0, "road.entry_clearance must not be negative, got %g", r.EntryClearance)
	v.check(r.LaneChangeClearance >= 0, "road.lane_change_clearance must not be negative, got %g", r.LaneChangeClearance)
	return v.err()
}

func (l LightConfig) Validate() error {
	var v validator
	v.check(l.GreenDuration > 0, "light.green_duration must be positive, got %g", l.GreenDuration)
	v.check(l.RedDuration > 0, "light.red_duration must be positive, got %g", l.RedDuration)
	return v.err()
}

// Validate checks the spawner against the vehicles it will produce.
func (s SpawnerConfig) Validate(vehicle VehicleConfig) error {
	var v validator
	v.check(s.Intensity > 0, "spawner.intensity must be positive, got %g", s.Intensity)
	v.check(s.MaxVehicles >= 0, "spawner.max_vehicles must not be negative, got %d", s.MaxVehicles)
	v.check(s.StartingSpeed >= 0, "spawner.starting_speed must not be negative, got %g", s.StartingSpeed)
	v.check(s.StartingSpeed <= vehicle.MaxSpeed, "spawner.starting_speed %g exceeds vehicle.max_speed %g", s.StartingSpeed, vehicle.MaxSpeed)
	return v.err()
}

func (c VehicleConfig) Validate() error {
	var v validator
	v.check(c.Length > 0, "vehicle.length must be positive, got %g", c.Length)
	v.check(c.MaxSpeed > 0, "vehicle.max_speed must be positive, got %g", c.MaxSpeed)
	v.check(c.ShoulderMaxSpeed > 0, "vehicle.shoulder_max_speed must be positive, got %g", c.ShoulderMaxSpeed)
	v.check(c.Acceleration > 0, "vehicle.acceleration must be positive, got %g", c.Acceleration)
	v.check(c.Braking > 0, "vehicle.braking must be positive, got %g", c.Braking)
	v.check(c.EmergencyBraking >= c.Braking, "vehicle.emergency_braking %g must be at least vehicle.braking %g", c.EmergencyBraking, c.Braking)
	v.check(c.MinFollowingGap >= 0, "vehicle.min_following_gap must not be negative, got %g", c.MinFollowingGap)
	v.check(c.LaneChangeCooldown >= 0, "vehicle.lane_change_cooldown must not be negative, got %g", c.LaneChangeCooldown)
	v.check(c.LaneChangeSpeedThreshold >= 0, "vehicle.lane_change_speed_threshold must not be negative, got %g", c.LaneChangeSpeedThreshold)
	v.check(c.CommitSpeedRatio >= 0 && c.CommitSpeedRatio <= 1, "vehicle.commit_speed_ratio must be within [0, 1], got %g", c.CommitSpeedRatio)
	if _, err := c.BrakingModel.Build(); err != nil {
		v.problems = append(v.problems, err)
	}
	return v.err()
}

// validator collects configuration problems.
type validator struct {
	problems []error
}

func (v *validator) check(ok bool, format string, args ...any) {
	if !ok {
		v.problems = append(v.problems, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfiguration}, args...)...))
	}
}

func (v *validator) err() error {
	return errors.Join(v.problems...)
}
