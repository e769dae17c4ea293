/*
Package traffic
File: models.go
Description:
    Defines the data structures used by the road simulation.
    The configuration structs map directly to 'bridgeflow.yaml', and the
    snapshot structs are what the engine hands to renderers and the
    WebSocket feed every tick.

    No simulation logic lives here; this file is the "schema" of the engine.
*/

package traffic

import "fmt"

// Lane identifies which of the two parallel lanes a vehicle occupies.
// The shoulder lane only exists before the bridge.
type Lane int

const (
	MainLane Lane = iota
	ShoulderLane
)

// String returns the lane name used in logs and the JSON feed.
func (l Lane) String() string {
	switch l {
	case MainLane:
		return "main"
	case ShoulderLane:
		return "shoulder"
	}
	return fmt.Sprintf("lane(%d)", int(l))
}

// Other returns the opposite lane.
func (l Lane) Other() Lane {
	if l == MainLane {
		return ShoulderLane
	}
	return MainLane
}

func (l Lane) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Lane) UnmarshalText(text []byte) error {
	switch string(text) {
	case "main":
		*l = MainLane
	case "shoulder":
		*l = ShoulderLane
	default:
		return fmt.Errorf("unknown lane %q", string(text))
	}
	return nil
}

// ServerConfig holds the settings of the live server. The engine itself ignores it.
type ServerConfig struct {
	Addr           string  `yaml:"addr" json:"addr"`                         // Listen address (e.g., ":8081")
	TickIntervalMs int     `yaml:"tick_interval_ms" json:"tick_interval_ms"` // Heartbeat period in milliseconds
	RetireDistance float64 `yaml:"retire_distance" json:"retire_distance"`   // Vehicles this far past the light are dropped; 0 keeps them
}

// RoadConfig describes the static geometry of the road, in meters from the entry point.
type RoadConfig struct {
	DistanceToBridge    float64 `yaml:"distance_to_bridge" json:"distance_to_bridge"`       // Entry -> bridge start (end of the shoulder lane)
	BridgeLength        float64 `yaml:"bridge_length" json:"bridge_length"`                 // Single-lane bridge segment
	BridgeToLight       float64 `yaml:"bridge_to_light" json:"bridge_to_light"`             // Bridge end -> traffic light
	EntryClearance      float64 `yaml:"entry_clearance" json:"entry_clearance"`             // Free space required behind the entry before spawning
	LaneChangeClearance float64 `yaml:"lane_change_clearance" json:"lane_change_clearance"` // Extra margin around a vehicle when checking a target lane
}

// LightPosition is the distance from the entry point to the stop line.
func (r RoadConfig) LightPosition() float64 {
	return r.DistanceToBridge + r.BridgeLength + r.BridgeToLight
}

// LightConfig holds the phase durations of the traffic light, in seconds.
type LightConfig struct {
	GreenDuration float64 `yaml:"green_duration" json:"green_duration"`
	RedDuration   float64 `yaml:"red_duration" json:"red_duration"`
}

// SpawnerConfig controls how vehicles are admitted onto the road.
type SpawnerConfig struct {
	Intensity     float64 `yaml:"intensity" json:"intensity"`           // Vehicles per second (1 / minimum inter-arrival time)
	MaxVehicles   int     `yaml:"max_vehicles" json:"max_vehicles"`     // Total cap; 0 means unlimited
	StartingSpeed float64 `yaml:"starting_speed" json:"starting_speed"` // Speed of a freshly admitted vehicle (m/s)
}

// BrakingModelConfig selects the braking-distance policy.
// Model is "lookahead" (speed * seconds / 2) or "fixed" (constant distance).
type BrakingModelConfig struct {
	Model    string  `yaml:"model" json:"model"`
	Seconds  float64 `yaml:"seconds,omitempty" json:"seconds,omitempty"`
	Distance float64 `yaml:"distance,omitempty" json:"distance,omitempty"`
}

// VehicleConfig holds the per-vehicle tunables. Speeds are m/s, rates m/s^2, distances m.
type VehicleConfig struct {
	Length                   float64            `yaml:"length" json:"length"`
	MaxSpeed                 float64            `yaml:"max_speed" json:"max_speed"`                                     // Main lane limit
	ShoulderMaxSpeed         float64            `yaml:"shoulder_max_speed" json:"shoulder_max_speed"`                   // Shoulder lane limit
	Acceleration             float64            `yaml:"acceleration" json:"acceleration"`                               // Throttle rate
	Braking                  float64            `yaml:"braking" json:"braking"`                                         // Normal deceleration
	EmergencyBraking         float64            `yaml:"emergency_braking" json:"emergency_braking"`                     // Deceleration when a gap drops below MinFollowingGap
	MinFollowingGap          float64            `yaml:"min_following_gap" json:"min_following_gap"`                     // Bumper-to-bumper minimum
	LaneChangeCooldown       float64            `yaml:"lane_change_cooldown" json:"lane_change_cooldown"`               // Seconds between two lane changes
	LaneChangeSpeedThreshold float64            `yaml:"lane_change_speed_threshold" json:"lane_change_speed_threshold"` // Must be slower than this to move onto the shoulder
	CommitSpeedRatio         float64            `yaml:"commit_speed_ratio" json:"commit_speed_ratio"`                   // Fraction of MaxSpeed above which a red light close ahead is run
	CanUseShoulder           bool               `yaml:"can_use_shoulder" json:"can_use_shoulder"`
	BrakingModel             BrakingModelConfig `yaml:"braking_model" json:"braking_model"`
}

// Config is the root configuration struct, mapping to the entire 'bridgeflow.yaml' file.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Road    RoadConfig    `yaml:"road" json:"road"`
	Light   LightConfig   `yaml:"light" json:"light"`
	Spawner SpawnerConfig `yaml:"spawner" json:"spawner"`
	Vehicle VehicleConfig `yaml:"vehicle" json:"vehicle"`
}

// VehicleState is the read-only view of one vehicle inside a Snapshot.
type VehicleState struct {
	ID          string  `json:"id"`
	Serial      int     `json:"serial"` // Spawn order, starting at 1
	X           float64 `json:"x"`      // Rear position
	Lane        Lane    `json:"lane"`
	Speed       float64 `json:"speed"`
	Length      float64 `json:"length"`
	LaneChanges int     `json:"lane_changes"`
}

// Stats accumulates counters over the lifetime of a Controller.
type Stats struct {
	Ticks           int `json:"ticks"`
	Spawned         int `json:"spawned"`
	LaneChanges     int `json:"lane_changes"`
	EmergencyBrakes int `json:"emergency_brakes"` // Vehicle-ticks spent emergency braking
	PassedLight     int `json:"passed_light"`     // Vehicles whose front crossed the stop line
	Retired         int `json:"retired"`          // Vehicles removed by the driver via Retire
}

// Snapshot is the immutable per-tick output of the engine.
type Snapshot struct {
	Time            float64        `json:"time"`
	Tick            int            `json:"tick"`
	LightPassable   bool           `json:"light_passable"`
	LightTimeToFlip float64        `json:"light_time_to_flip"`
	Vehicles        []VehicleState `json:"vehicles"`
	Stats           Stats          `json:"stats"`
}
