package traffic

import (
	"math"
	"sort"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Vehicle = testVehicleConfig()
	cfg.Light = LightConfig{GreenDuration: 1000, RedDuration: 10}
	return cfg
}

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := NewController(cfg)
	require.NoError(t, err)
	return c
}

// quietController builds a controller whose spawner is already exhausted, so
// tests can place vehicles by hand.
func quietController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	cfg.Spawner.MaxVehicles = 1
	c := newTestController(t, cfg)
	c.spawner.produced = 1
	return c
}

// place puts a vehicle on the road as if it had been spawned at time 0.
func place(c *Controller, x float64, lane Lane, speed float64) *Vehicle {
	v := newVehicle(c.spawner.vehicle, c.spawner.braking, len(c.vehicles)+1, speed, 0)
	v.X = x
	v.Lane = lane
	c.vehicles = append(c.vehicles, v)
	return v
}

func TestControllerEmptyRoad(t *testing.T) {
	c := quietController(t, testConfig())

	snap, err := c.Tick(0)
	require.NoError(t, err)
	assert.Empty(t, snap.Vehicles)
	assert.True(t, snap.LightPassable)
	assert.Equal(t, 1, snap.Tick)
	assert.Equal(t, 0, snap.Stats.Spawned)
}

func TestControllerSpawnsOnlyWhenEntryZoneIsFree(t *testing.T) {
	cfg := testConfig()
	cfg.Spawner.Intensity = 100
	c := newTestController(t, cfg)

	// Entry zone is length 5 + clearance 10.
	spawned := map[float64]int{}
	for _, now := range []float64{0, 1, 2, 3} {
		snap, err := c.Tick(now)
		require.NoError(t, err)
		spawned[now] = snap.Stats.Spawned
	}

	assert.Equal(t, 1, spawned[0], "empty road admits the first vehicle")
	assert.Equal(t, 1, spawned[1], "first vehicle still at x=0")
	assert.Equal(t, 1, spawned[2], "first vehicle at x=10, inside the zone")
	assert.Equal(t, 2, spawned[3], "first vehicle at x=30, zone free")
}

func TestControllerSingleVehicleOnEmptyRoad(t *testing.T) {
	c := quietController(t, testConfig())
	place(c, 0, MainLane, 0)

	snap, err := c.Tick(1)
	require.NoError(t, err)
	require.Len(t, snap.Vehicles, 1)
	assert.InDelta(t, 10.0, snap.Vehicles[0].Speed, 1e-9)
	assert.InDelta(t, 10.0, snap.Vehicles[0].X, 1e-9)
}

func TestControllerRearVehicleBrakesBehindCloseCar(t *testing.T) {
	c := quietController(t, testConfig())
	front := place(c, 20, MainLane, 10)
	rear := place(c, 0, MainLane, 10)

	// gapAhead(rear) = 20 - 0 - 5 = 15 < min following gap 20
	assert.InDelta(t, 15.0, c.gapAhead(1), 1e-9)

	snap, err := c.Tick(0.1)
	require.NoError(t, err)
	assert.True(t, snap.LightPassable)
	assert.Less(t, rear.Speed, 10.0)
	assert.InDelta(t, 8.0, rear.Speed, 1e-9, "emergency braking")
	assert.Greater(t, front.Speed, 10.0)
	assert.Equal(t, 1, snap.Stats.EmergencyBrakes)
}

func TestControllerShoulderVehicleMergesBeforeBridge(t *testing.T) {
	c := quietController(t, testConfig())
	merging := place(c, 280, ShoulderLane, 0) // gap to shoulder end = 300 - 280 - 5 = 15
	follower := place(c, 250, MainLane, 0) // stopped, 25 m back: beyond its 20 m following gap

	facts := c.surroundings(0, true)
	assert.InDelta(t, 15.0, facts.GapToShoulderEnd, 1e-9)
	assert.True(t, facts.MainAvailable)
	assert.True(t, math.IsInf(c.gapAhead(1), 1), "merging vehicle is not yet in the follower's lane")

	snap, err := c.Tick(0.1)
	require.NoError(t, err)
	assert.Equal(t, MainLane, merging.Lane)
	assert.Equal(t, MainLane, snap.Vehicles[0].Lane)
	assert.Equal(t, 1, snap.Stats.LaneChanges)

	gap := c.gapAhead(1)
	assert.False(t, math.IsInf(gap, 1))
	assert.InDelta(t, merging.X-follower.X-follower.Length, gap, 1e-9)
}

func TestControllerShoulderAvailability(t *testing.T) {
	c := quietController(t, testConfig())
	place(c, 100, MainLane, 0)     // 0
	place(c, 296, MainLane, 0)     // 1: front would be past the bridge start
	place(c, 60, MainLane, 0)      // 2
	place(c, 65, ShoulderLane, 0)  // 3: blocks 2's shoulder window [50, 70]
	place(c, 150, ShoulderLane, 0) // 4

	assert.True(t, c.surroundings(0, false).ShoulderAvailable)
	assert.False(t, c.surroundings(1, false).ShoulderAvailable)
	assert.False(t, c.surroundings(2, false).ShoulderAvailable)
	assert.False(t, c.surroundings(3, false).MainAvailable, "vehicle 2 is inside the window")
	assert.True(t, c.surroundings(4, false).MainAvailable)
	assert.True(t, c.surroundings(0, false).MainAvailable, "a vehicle never blocks itself")
}

func TestControllerGapToLandmarks(t *testing.T) {
	c := quietController(t, testConfig())
	place(c, 100, MainLane, 0)

	facts := c.surroundings(0, true)
	assert.InDelta(t, 300+100+100-100-5.0, facts.GapToLight, 1e-9)
	assert.InDelta(t, 300-100-5.0, facts.GapToShoulderEnd, 1e-9)
	assert.True(t, math.IsInf(facts.GapAhead, 1))
}

func TestControllerTieBreakBySpawnOrder(t *testing.T) {
	c := quietController(t, testConfig())
	place(c, 100, MainLane, 0)
	place(c, 100, MainLane, 0)
	place(c, 100, ShoulderLane, 0)

	assert.True(t, math.IsInf(c.gapAhead(0), 1), "earlier vehicle sees nothing ahead")
	assert.Equal(t, -5.0, c.gapAhead(1), "later vehicle sees the earlier one overlapping")
	assert.True(t, math.IsInf(c.gapAhead(2), 1), "other lane is ignored")
}

func TestControllerUpdateIndependentOfIterationOrder(t *testing.T) {
	positions := []float64{200, 176, 150, 131, 90}

	run := func(reverse bool) map[int]VehicleState {
		c := quietController(t, testConfig())
		order := append([]float64(nil), positions...)
		if reverse {
			for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
				order[i], order[j] = order[j], order[i]
			}
		}
		for _, x := range order {
			v := place(c, x, MainLane, 12)
			v.Serial = int(x) // identity independent of slice order
		}
		for _, now := range []float64{0.2, 0.4, 0.6, 0.8, 1.0} {
			_, err := c.Tick(now)
			require.NoError(t, err)
		}
		out := map[int]VehicleState{}
		for _, v := range c.Vehicles() {
			out[v.Serial] = v.State()
		}
		return out
	}

	forward, backward := run(false), run(true)
	require.Len(t, forward, len(positions))
	for serial, f := range forward {
		b := backward[serial]
		assert.InDelta(t, f.X, b.X, 1e-9, "vehicle %d", serial)
		assert.InDelta(t, f.Speed, b.Speed, 1e-9, "vehicle %d", serial)
		assert.Equal(t, f.Lane, b.Lane, "vehicle %d", serial)
	}
}

func TestControllerRejectsTimeGoingBackwards(t *testing.T) {
	c := newTestController(t, testConfig())

	first, err := c.Tick(1)
	require.NoError(t, err)
	_, err = c.Tick(2)
	require.NoError(t, err)
	before := c.Snapshot()

	snap, err := c.Tick(1.5)
	require.ErrorIs(t, err, ErrInvalidTimeOrdering)
	assert.Equal(t, before, snap)
	assert.Equal(t, before, c.Snapshot())
	assert.NotEqual(t, first.Tick, before.Tick)
}

func TestControllerSpawnCap(t *testing.T) {
	cfg := testConfig()
	cfg.Spawner = SpawnerConfig{Intensity: 1, MaxVehicles: 2}
	c := newTestController(t, cfg)

	var snap Snapshot
	var err error
	for i := 0; i <= 1200; i++ {
		snap, err = c.Tick(float64(i) * 0.1)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, snap.Stats.Spawned)
	assert.Len(t, snap.Vehicles, 2)
}

func TestControllerRetire(t *testing.T) {
	c := quietController(t, testConfig())
	place(c, 700, MainLane, 0)
	place(c, 100, MainLane, 0)
	place(c, 800, MainLane, 0)

	assert.Equal(t, 2, c.Retire(600))
	remaining := c.Vehicles()
	require.Len(t, remaining, 1)
	assert.Equal(t, 100.0, remaining[0].X)

	snap, err := c.Tick(0.1)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Stats.Retired)
}

func TestControllerSnapshotIsACopy(t *testing.T) {
	c := quietController(t, testConfig())
	place(c, 10, MainLane, 0)

	_, err := c.Tick(0.1)
	require.NoError(t, err)

	snap := c.Snapshot()
	snap.Vehicles[0].X = 9999
	assert.NotEqual(t, 9999.0, c.Snapshot().Vehicles[0].X)
}

func TestNewControllerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Road.BridgeLength = 0
	cfg.Light.RedDuration = -1
	_, err := NewController(cfg)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "road.bridge_length")
	assert.Contains(t, err.Error(), "light.red_duration")
}

// queueConfig makes a queue that reaches back past the bridge start during
// the red phase, so vehicles use the shoulder.
func queueConfig() Config {
	cfg := DefaultConfig()
	cfg.Road.BridgeLength = 20
	cfg.Road.BridgeToLight = 10
	cfg.Light = LightConfig{GreenDuration: 5, RedDuration: 40}
	cfg.Spawner.Intensity = 1
	return cfg
}

func TestControllerMergeWaitsForFastFollower(t *testing.T) {
	c := quietController(t, DefaultConfig())
	merging := place(c, 81, ShoulderLane, 2)
	follower := place(c, 65, MainLane, 13.5)

	// The follower is outside the clearance window [71.5, 90.5] but needs
	// 5 + 13.5*4/2 = 32 m and only has 81 - 65 - 4.5 = 11.5 m.
	assert.False(t, c.surroundings(0, false).MainAvailable)

	follower.Speed = 0
	assert.True(t, c.surroundings(0, false).MainAvailable, "a stopped follower 11.5 m back leaves room")

	follower.Speed = 13.5
	follower.X = 40 // 36.5 m gap
	assert.True(t, c.surroundings(0, false).MainAvailable)
	assert.Equal(t, ShoulderLane, merging.Lane)
}

// requireNoOverlap checks that within each lane every vehicle's front stays
// behind the rear of the vehicle ahead of it.
func requireNoOverlap(t *testing.T, vehicles []*Vehicle, now float64) {
	t.Helper()
	for lane, group := range lo.GroupBy(vehicles, func(v *Vehicle) Lane { return v.Lane }) {
		sort.Slice(group, func(a, b int) bool { return group[a].X < group[b].X })
		for k := 1; k < len(group); k++ {
			rear, front := group[k-1], group[k]
			gap := front.X - rear.X - rear.Length
			require.GreaterOrEqual(t, gap, -1e-9, "t=%.2f lane=%s vehicle %d (x=%.2f) runs into vehicle %d (x=%.2f)",
				now, lane, rear.Serial, rear.X, front.Serial, front.X)
		}
	}
}

type longRun struct {
	t     *testing.T
	cfg   Config
	ticks int
}

type history struct {
	x          float64
	lane       Lane
	lastChange float64
	lastX      float64
	changed    bool
}

// run ticks a fresh controller at 20 Hz, retiring vehicles 100 m past the
// light, and checks the per-tick invariants of every vehicle.
func (r longRun) run() Snapshot {
	t, cfg := r.t, r.cfg
	c := newTestController(t, cfg)
	seen := map[string]*history{}

	var snap Snapshot
	var err error
	for i := 0; i <= r.ticks; i++ {
		now := float64(i) * 0.05
		snap, err = c.Tick(now)
		require.NoError(t, err)
		c.Retire(cfg.Road.LightPosition() + 100)

		vehicles := c.Vehicles()
		requireNoOverlap(t, vehicles, now)
		for _, v := range vehicles {
			require.GreaterOrEqual(t, v.Speed, 0.0)
			require.LessOrEqual(t, v.Speed, v.MaxSpeed())

			h, ok := seen[v.ID]
			if !ok {
				seen[v.ID] = &history{x: v.X, lane: v.Lane}
				continue
			}
			require.GreaterOrEqual(t, v.X, h.x, "vehicle %d moved backwards", v.Serial)
			if v.Lane != h.lane {
				at, x, ok := v.LastLaneChange()
				require.True(t, ok)
				require.Equal(t, now, at)
				if h.changed {
					require.Greater(t, at-h.lastChange, cfg.Vehicle.LaneChangeCooldown)
					require.NotEqual(t, h.lastX, x)
				}
				h.changed, h.lastChange, h.lastX = true, at, x
			}
			h.x, h.lane = v.X, v.Lane
		}
	}
	return snap
}

func TestControllerInvariantsOverLongRun(t *testing.T) {
	t.Run("queue past the bridge", func(t *testing.T) {
		snap := longRun{t: t, cfg: queueConfig(), ticks: 4000}.run()
		assert.Greater(t, snap.Stats.Spawned, 20)
		assert.Greater(t, snap.Stats.PassedLight, 0)
		assert.Greater(t, snap.Stats.LaneChanges, 0)
	})

	t.Run("default road", func(t *testing.T) {
		snap := longRun{t: t, cfg: DefaultConfig(), ticks: 20000}.run()
		assert.Greater(t, snap.Stats.Spawned, 50)
		assert.Greater(t, snap.Stats.PassedLight, 0)
	})
}
