/*
Package api
File: state.go
Description:
    Manages the runtime state of the server.
    The Engine wraps one traffic.Controller behind a read/write lock so the
    heartbeat can tick it while HTTP handlers read the latest snapshot.

    Simulation time is the wall time elapsed since the Engine's epoch. A
    reload swaps in a fresh Controller and restarts the epoch.
*/

package api

import (
	"sync"
	"time"

	"github.com/everforgeworks/bridgeflow/internal/traffic"
)

// Engine is the shared simulation state.
// Any reader or writer of the fields below MUST hold lock.
type Engine struct {
	lock sync.RWMutex

	cfg    traffic.Config
	ctrl   *traffic.Controller
	epoch  time.Time
	latest traffic.Snapshot
}

// NewEngine builds a Controller from cfg. Simulation time zero is epoch.
func NewEngine(cfg traffic.Config, epoch time.Time) (*Engine, error) {
	ctrl, err := traffic.NewController(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, ctrl: ctrl, epoch: epoch, latest: ctrl.Snapshot()}, nil
}

// Advance ticks the road to the wall time at. Vehicles further than the
// configured retire distance past the light are dropped afterwards.
func (e *Engine) Advance(at time.Time) (traffic.Snapshot, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	snap, err := e.ctrl.Tick(at.Sub(e.epoch).Seconds())
	if err != nil {
		return snap, err
	}
	if d := e.cfg.Server.RetireDistance; d > 0 {
		e.ctrl.Retire(e.cfg.Road.LightPosition() + d)
	}
	e.latest = snap
	return snap, nil
}

// Latest returns the snapshot of the last successful tick.
func (e *Engine) Latest() traffic.Snapshot {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.latest
}

// Config returns the configuration the running road was built from.
func (e *Engine) Config() traffic.Config {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.cfg
}

// Reset replaces the road with one built from cfg, starting at epoch.
// On error the running road is kept.
func (e *Engine) Reset(cfg traffic.Config, epoch time.Time) error {
	ctrl, err := traffic.NewController(cfg)
	if err != nil {
		return err
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	e.cfg = cfg
	e.ctrl = ctrl
	e.epoch = epoch
	e.latest = ctrl.Snapshot()
	return nil
}
