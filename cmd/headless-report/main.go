package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/samber/lo"

	"github.com/everforgeworks/bridgeflow/internal/traffic"
)

// queueSpeed is the speed below which a vehicle counts as queued.
const queueSpeed = 0.5

type runStats struct {
	seconds float64
	ticks   int

	final traffic.Snapshot

	peakVehicles   int
	peakQueue      int
	peakShoulder   int
	speedSum       float64
	speedSamples   int
	firstQueueTime float64
}

type options struct {
	duration float64
	dt       float64
	every    float64
}

func (o options) validate() error {
	var problems []error
	if o.duration <= 0 {
		problems = append(problems, fmt.Errorf("-duration must be > 0, got %g", o.duration))
	}
	if o.dt <= 0 {
		problems = append(problems, fmt.Errorf("-dt must be > 0, got %g", o.dt))
	}
	if o.every < 0 {
		problems = append(problems, fmt.Errorf("-every must not be negative, got %g", o.every))
	}
	return errors.Join(problems...)
}

func main() {
	var configPath string
	var opts options

	flag.StringVar(&configPath, "config", traffic.DefaultConfigPath, "path to the YAML road configuration")
	flag.Float64Var(&opts.duration, "duration", 300, "simulated seconds")
	flag.Float64Var(&opts.dt, "dt", 0.05, "fixed step in seconds")
	flag.Float64Var(&opts.every, "every", 10, "seconds between sample lines (0 disables them)")
	flag.Parse()

	if err := opts.validate(); err != nil {
		fmt.Println("error:", err)
		os.Exit(2)
	}

	cfg, err := traffic.LoadConfig(configPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}

	fmt.Printf("=== Headless Bridge Report ===\n")
	fmt.Printf("config=%s duration=%gs dt=%gs every=%gs\n\n", configPath, opts.duration, opts.dt, opts.every)

	stats, err := run(cfg, opts, os.Stdout)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	printSummary(os.Stdout, cfg, stats)
}

// run drives a fresh road with a fixed step and writes a sample line every
// opts.every simulated seconds.
func run(cfg traffic.Config, opts options, w io.Writer) (runStats, error) {
	ctrl, err := traffic.NewController(cfg)
	if err != nil {
		return runStats{}, err
	}

	stats := runStats{firstQueueTime: math.NaN()}
	steps := int(math.Round(opts.duration / opts.dt))
	nextSample := opts.every
	for i := 1; i <= steps; i++ {
		now := float64(i) * opts.dt
		snap, err := ctrl.Tick(now)
		if err != nil {
			return stats, err
		}
		if d := cfg.Server.RetireDistance; d > 0 {
			ctrl.Retire(cfg.Road.LightPosition() + d)
		}
		stats.observe(snap)

		if opts.every > 0 && now+1e-9 >= nextSample {
			fmt.Fprintln(w, sampleLine(snap))
			nextSample += opts.every
		}
	}
	stats.final = ctrl.Snapshot()
	return stats, nil
}

func (s *runStats) observe(snap traffic.Snapshot) {
	s.ticks++
	s.seconds = snap.Time

	queue := queueLength(snap)
	shoulder := laneCount(snap, traffic.ShoulderLane)
	s.peakVehicles = max(s.peakVehicles, len(snap.Vehicles))
	s.peakQueue = max(s.peakQueue, queue)
	s.peakShoulder = max(s.peakShoulder, shoulder)
	if queue > 0 && math.IsNaN(s.firstQueueTime) {
		s.firstQueueTime = snap.Time
	}
	for _, v := range snap.Vehicles {
		s.speedSum += v.Speed
		s.speedSamples++
	}
}

func sampleLine(snap traffic.Snapshot) string {
	return fmt.Sprintf("t=%7.1fs light=%-5s flip_in=%5.1fs vehicles=%3d main=%3d shoulder=%3d queued=%3d avg_speed=%5.2f passed=%d",
		snap.Time, lightName(snap.LightPassable), snap.LightTimeToFlip, len(snap.Vehicles),
		laneCount(snap, traffic.MainLane), laneCount(snap, traffic.ShoulderLane),
		queueLength(snap), avgSpeed(snap.Vehicles), snap.Stats.PassedLight)
}

func printSummary(w io.Writer, cfg traffic.Config, s runStats) {
	st := s.final.Stats
	fmt.Fprintln(w, "\n=== Summary ===")
	fmt.Fprintf(w, "simulated=%.1fs ticks=%d light_at=%.0fm green=%gs red=%gs intensity=%g/s\n",
		s.seconds, s.ticks, cfg.Road.LightPosition(), cfg.Light.GreenDuration, cfg.Light.RedDuration, cfg.Spawner.Intensity)
	fmt.Fprintf(w, "spawned=%d passed_light=%d retired=%d on_road=%d\n",
		st.Spawned, st.PassedLight, st.Retired, len(s.final.Vehicles))
	fmt.Fprintf(w, "flow=%.1f veh/min lane_changes=%d emergency_brake_ticks=%d\n",
		flowPerMinute(st.PassedLight, s.seconds), st.LaneChanges, st.EmergencyBrakes)
	fmt.Fprintf(w, "peak_vehicles=%d peak_queue=%d peak_shoulder=%d first_queue=%s avg_speed=%.2f m/s\n",
		s.peakVehicles, s.peakQueue, s.peakShoulder, timeString(s.firstQueueTime), s.avgSpeed())
}

func (s runStats) avgSpeed() float64 {
	if s.speedSamples == 0 {
		return 0
	}
	return s.speedSum / float64(s.speedSamples)
}

func queueLength(snap traffic.Snapshot) int {
	return lo.CountBy(snap.Vehicles, func(v traffic.VehicleState) bool { return v.Speed < queueSpeed })
}

func laneCount(snap traffic.Snapshot, lane traffic.Lane) int {
	return lo.CountBy(snap.Vehicles, func(v traffic.VehicleState) bool { return v.Lane == lane })
}

func avgSpeed(vehicles []traffic.VehicleState) float64 {
	if len(vehicles) == 0 {
		return 0
	}
	return lo.SumBy(vehicles, func(v traffic.VehicleState) float64 { return v.Speed }) / float64(len(vehicles))
}

func flowPerMinute(passed int, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(passed) / seconds * 60
}

func lightName(passable bool) string {
	if passable {
		return "green"
	}
	return "red"
}

func timeString(t float64) string {
	if math.IsNaN(t) {
		return "n/a"
	}
	return fmt.Sprintf("%.1fs", t)
}
