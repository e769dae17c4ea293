/*
Package traffic
File: controller.go
Description:
    The Controller is the orchestrator of one road. Every tick it
    1. admits a new vehicle if the entry zone is free and the spawner agrees,
    2. advances the traffic light,
    3. computes the surroundings of every vehicle from the positions at the
       start of the tick, and only then updates every vehicle,
    4. returns an immutable Snapshot.

    Step 3 is split in two passes so the outcome does not depend on the
    order vehicles are visited in.

    A Controller is not safe for concurrent use. Separate Controllers are
    independent and may be ticked in parallel.
*/

package traffic

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Controller owns the vehicles, the light and the spawner of one road.
type Controller struct {
	road    RoadConfig
	light   *TrafficLight
	spawner *Spawner

	vehicles []*Vehicle // Spawn order

	lastTick float64
	stats    Stats
	latest   Snapshot
}

// NewController validates cfg and builds an empty road.
func NewController(cfg Config) (*Controller, error) {
	if err := errors.Join(
		cfg.Road.Validate(),
		cfg.Light.Validate(),
		cfg.Spawner.Validate(cfg.Vehicle),
		cfg.Vehicle.Validate(),
	); err != nil {
		return nil, err
	}

	light, err := NewTrafficLight(cfg.Light)
	if err != nil {
		return nil, err
	}
	spawner, err := NewSpawner(cfg.Spawner, cfg.Vehicle)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		road:     cfg.Road,
		light:    light,
		spawner:  spawner,
		lastTick: math.Inf(-1),
	}
	c.latest = Snapshot{
		LightPassable: light.Passable(),
		Vehicles:      []VehicleState{},
	}
	return c, nil
}

// Tick advances the whole road to now. A time older than the previous tick is
// rejected with ErrInvalidTimeOrdering and leaves the road untouched.
func (c *Controller) Tick(now float64) (Snapshot, error) {
	if now < c.lastTick {
		return c.latest, fmt.Errorf("tick at %.3fs after %.3fs: %w", now, c.lastTick, ErrInvalidTimeOrdering)
	}
	c.lastTick = now

	// 1. Admission
	if c.entryZoneFree() {
		v, err := c.spawner.TryProduce(now)
		if err != nil {
			return c.latest, err
		}
		if v != nil {
			c.vehicles = append(c.vehicles, v)
			c.stats.Spawned++
		}
	}

	// 2. Light
	passable, err := c.light.TryUpdate(now)
	if err != nil {
		return c.latest, err
	}

	// 3a. Sense everything before anything moves.
	facts := lo.Map(c.vehicles, func(_ *Vehicle, i int) Surroundings {
		return c.surroundings(i, passable)
	})

	// 3b. Move.
	for i, v := range c.vehicles {
		beforeLight := facts[i].GapToLight >= 0
		d, err := v.Update(facts[i], now)
		if err != nil {
			return c.latest, err
		}
		if d.LaneChanged {
			c.stats.LaneChanges++
		}
		if d.EmergencyBrake {
			c.stats.EmergencyBrakes++
		}
		if beforeLight && c.gapToLight(v) < 0 {
			c.stats.PassedLight++
		}
	}

	// 4. Publish
	c.stats.Ticks++
	c.latest = Snapshot{
		Time:            now,
		Tick:            c.stats.Ticks,
		LightPassable:   passable,
		LightTimeToFlip: c.light.TimeToFlip(now),
		Vehicles:        lo.Map(c.vehicles, func(v *Vehicle, _ int) VehicleState { return v.State() }),
		Stats:           c.stats,
	}
	return c.latest, nil
}

// Snapshot returns the result of the most recent tick without advancing time.
func (c *Controller) Snapshot() Snapshot {
	snap := c.latest
	snap.Vehicles = append([]VehicleState(nil), c.latest.Vehicles...)
	return snap
}

// Retire removes the vehicles whose rear is beyond x and returns how many
// were removed. Tick never removes vehicles; that is up to the driver.
func (c *Controller) Retire(x float64) int {
	kept := lo.Filter(c.vehicles, func(v *Vehicle, _ int) bool { return v.X <= x })
	n := len(c.vehicles) - len(kept)
	c.vehicles = kept
	c.stats.Retired += n
	return n
}

// Road returns the static geometry of the road.
func (c *Controller) Road() RoadConfig { return c.road }

// Vehicles returns the live vehicles in spawn order. The slice is a copy; the
// vehicles are not and must not be mutated outside a tick.
func (c *Controller) Vehicles() []*Vehicle {
	return append([]*Vehicle(nil), c.vehicles...)
}

// entryZoneFree is true when no vehicle's rear is within one vehicle length
// plus the entry clearance of the entry point.
func (c *Controller) entryZoneFree() bool {
	zone := c.spawner.VehicleLength() + c.road.EntryClearance
	return lo.NoneBy(c.vehicles, func(v *Vehicle) bool { return v.X < zone })
}

func (c *Controller) surroundings(i int, passable bool) Surroundings {
	v := c.vehicles[i]
	return Surroundings{
		GapAhead:          c.gapAhead(i),
		GapToLight:        c.gapToLight(v),
		GapToShoulderEnd:  c.road.DistanceToBridge - v.X - v.Length,
		LightPassable:     passable,
		ShoulderAvailable: v.X+v.Length < c.road.DistanceToBridge && !c.laneOccupied(ShoulderLane, i),
		MainAvailable:     !c.laneOccupied(MainLane, i),
	}
}

func (c *Controller) gapToLight(v *Vehicle) float64 {
	return c.road.LightPosition() - v.X - v.Length
}

// gapAhead is the distance from the front of vehicle i to the rear of the
// nearest vehicle ahead of it in the same lane. Two vehicles at the very same
// position are ordered by spawn order: the earlier one counts as ahead.
func (c *Controller) gapAhead(i int) float64 {
	v := c.vehicles[i]
	gap := math.Inf(1)
	for j, u := range c.vehicles {
		if j == i || u.Lane != v.Lane {
			continue
		}
		if u.X > v.X || (u.X == v.X && j < i) {
			gap = math.Min(gap, u.X-v.X-v.Length)
		}
	}
	return gap
}

// laneOccupied reports whether any vehicle other than i sits in lane within
// one vehicle length plus the lane-change clearance of vehicle i, or is
// coming up behind too fast to stop short of vehicle i once it has moved in.
func (c *Controller) laneOccupied(lane Lane, i int) bool {
	v := c.vehicles[i]
	from, to := v.X-v.Length-c.road.LaneChangeClearance, v.X+v.Length+c.road.LaneChangeClearance
	for j, u := range c.vehicles {
		if j == i || u.Lane != lane {
			continue
		}
		if u.X >= from && u.X <= to {
			return true
		}
		// The follower only brakes once its gap stops being sufficient.
		if u.X < v.X && !u.sufficient(v.X-u.X-u.Length) {
			return true
		}
	}
	return false
}
