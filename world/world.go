// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package world

import (
	"log/slog"
	"sync"
)

// World ties together the object store, component scheduler, message
// bus, and spatial index that make up one simulated world. The public
// mutation surface is a single sync.RWMutex: every exported method
// here locks exactly once and calls unexported helpers that assume the
// lock is held, so there is never a nested Lock() call on the same
// goroutine. Go's standard library has no re-entrant mutex; this
// structural discipline gets the same write-recursion safety without
// one.
type World struct {
	mu sync.RWMutex

	Objects   *Store
	Spatial   *Index
	Messages  *Bus
	Scheduler *Scheduler

	managers   []ComponentManager
	simulating bool
	frame      uint64
	log        *slog.Logger
}

// New creates an empty world ready to have data directories, plugins,
// and component managers attached by the host.
func New(log *slog.Logger) *World {
	if log == nil {
		log = slog.Default()
	}
	return &World{
		Objects:   NewStore(log),
		Spatial:   NewIndex(32),
		Messages:  NewBus(),
		Scheduler: NewScheduler(),
		log:       log,
	}
}

// SetSimulating enables or disables simulation; OnSimulationStarted
// fires for active components the first update after this turns true.
func (w *World) SetSimulating(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.simulating = on
	w.Scheduler.SetSimulating(on)
}

// RegisterComponentManager attaches a component manager to the world so
// Update drives its per-frame lifecycle hooks (currently
// NotifySimulationStarted) alongside the scheduler phases. Host code
// calls this once per component type, typically right after creating
// the type's Manager[T].
func (w *World) RegisterComponentManager(m ComponentManager) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.managers = append(w.managers, m)
}

// Frame returns the current frame counter, incremented once per
// Update.
func (w *World) Frame() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.frame
}

// Update runs one full world update: transform phases T2-T3 (parent
// changes are applied synchronously by Store.SetParent, so there is no
// separate T1 pass), the
// component scheduler's four phases in order, the message drain, and
// finally end-of-frame delayed deletes. dt is the simulation timestep
// in seconds.
func (w *World) Update(dt float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.frame++
	w.Objects.GlobalFromLocal() // T2: dynamic globals, level by level.
	w.Objects.Velocity(dt, nil) // T3: snapshot + velocity.

	for _, phase := range []Phase{PreAsync, Async, PostAsync, PostTransform} {
		if err := w.Scheduler.Run(phase); err != nil {
			return err
		}
	}

	if w.simulating {
		for _, m := range w.managers {
			m.NotifySimulationStarted()
		}
	}

	if w.frame == 1 {
		// First full update: AfterInitialized messages become eligible.
		w.Messages.SetInitialized()
	}
	w.Messages.Drain(dt, func(h Handle) bool {
		_, ok := w.Objects.TryGetObject(h)
		return ok
	})

	w.Objects.FlushDeletes()
	return nil
}

// RLock/RUnlock expose the read-side of the world lock for query
// callers (eg a renderer reading Spatial between updates) that need to
// hold a consistent snapshot across several calls.
func (w *World) RLock()   { w.mu.RLock() }
func (w *World) RUnlock() { w.mu.RUnlock() }
