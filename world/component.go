// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package world

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Phase is one of the four update phases a component manager's update
// functions run in, in this fixed order every world update.
type Phase int

const (
	PreAsync Phase = iota
	Async
	PostAsync
	PostTransform
)

// ComponentState tracks the lifecycle of a single component instance:
// Initializing -> Initialized -> Active/Inactive -> Deinitializing -> Dead.
type ComponentState int

const (
	Initializing ComponentState = iota
	Initialized
	Active
	Inactive
	Deinitializing
	Dead
)

// Component is the behavior interface a component manager drives
// through its lifecycle. Implementations are expected to be cheap
// value-ish structs owned by exactly one manager's storage.
type Component interface {
	Initialize()
	OnActivated()
	OnDeactivated()
	OnSimulationStarted()
	Deinitialize()
}

// UpdateFunc describes one named update callback a component manager
// registers with the scheduler.
type UpdateFunc struct {
	Name               string
	Phase              Phase
	Priority           float64 // higher runs earlier within the phase.
	DependsOn          []string
	OnlyWhenSimulating bool
	Granularity        int // Async: components per task; 0 = sequential.
	Run                func(granule []Handle, simulating bool)
	// Components lists the live component handles this update function
	// should be given, split into Granularity-sized granules by the
	// scheduler for Async dispatch.
	Components func() []Handle
}

// Scheduler computes per-phase execution order from a set of
// registered UpdateFuncs (topological by DependsOn, ties broken by
// Priority) and dispatches each phase, parallelizing Async across a
// worker pool of goroutines via errgroup.
type Scheduler struct {
	funcs      []UpdateFunc
	ordered    map[Phase][]UpdateFunc
	simulating bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler { return &Scheduler{ordered: map[Phase][]UpdateFunc{}} }

// SetSimulating toggles whether OnlyWhenSimulating update functions run.
func (s *Scheduler) SetSimulating(on bool) { s.simulating = on }

// Register adds an update function. Call Build after all registrations
// for a frame's schedule are in place (typically once, at world setup,
// or again whenever a component manager is (un)registered).
func (s *Scheduler) Register(fn UpdateFunc) { s.funcs = append(s.funcs, fn) }

// Build computes the topological order within each phase. Returns an
// error naming the phase if its DependsOn edges form a cycle; the
// functions in the cycle are not named.
func (s *Scheduler) Build() error {
	byPhase := map[Phase][]UpdateFunc{}
	for _, f := range s.funcs {
		byPhase[f.Phase] = append(byPhase[f.Phase], f)
	}
	ordered := map[Phase][]UpdateFunc{}
	for phase, fns := range byPhase {
		sorted, err := topoSort(fns)
		if err != nil {
			return fmt.Errorf("world: phase %d: %w", phase, err)
		}
		ordered[phase] = sorted
	}
	s.ordered = ordered
	return nil
}

// topoSort orders fns so every DependsOn edge is a happens-before
// relation, breaking ties by descending Priority for a deterministic
// order among functions with no relative dependency.
func topoSort(fns []UpdateFunc) ([]UpdateFunc, error) {
	byName := make(map[string]UpdateFunc, len(fns))
	for _, f := range fns {
		byName[f.Name] = f
	}
	indegree := make(map[string]int, len(fns))
	dependents := make(map[string][]string, len(fns))
	for _, f := range fns {
		indegree[f.Name] = 0
	}
	for _, f := range fns {
		for _, dep := range f.DependsOn {
			if _, ok := byName[dep]; !ok {
				continue // dependency outside this phase; ignore.
			}
			indegree[f.Name]++
			dependents[dep] = append(dependents[dep], f.Name)
		}
	}
	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	var order []UpdateFunc
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			a, b := byName[ready[i]], byName[ready[j]]
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return a.Name < b.Name
		})
		name := ready[0]
		ready = ready[1:]
		order = append(order, byName[name])
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(order) != len(fns) {
		return nil, fmt.Errorf("cyclic update-function dependency")
	}
	return order, nil
}

// Run executes phase's update functions in order, honoring
// OnlyWhenSimulating; Async functions fan their components out across
// granules dispatched concurrently, with a hard barrier before the
// phase returns.
func (s *Scheduler) Run(phase Phase) error {
	for _, fn := range s.ordered[phase] {
		if fn.OnlyWhenSimulating && !s.simulating {
			continue
		}
		if fn.Run == nil {
			continue
		}
		if phase != Async || fn.Granularity <= 0 || fn.Components == nil {
			fn.Run(nil, s.simulating)
			continue
		}
		components := fn.Components()
		granules := granulate(components, fn.Granularity)
		g := new(errgroup.Group)
		for _, gr := range granules {
			gr := gr
			g.Go(func() error {
				fn.Run(gr, s.simulating)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func granulate(handles []Handle, size int) [][]Handle {
	if size <= 0 {
		return [][]Handle{handles}
	}
	var out [][]Handle
	for i := 0; i < len(handles); i += size {
		end := i + size
		if end > len(handles) {
			end = len(handles)
		}
		out = append(out, handles[i:end])
	}
	return out
}
