// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package world

import "testing"

// countingHooks is a single-type component fixture used only to check
// that a nested Create (one component's OnActivated creating another)
// finishes its own Initialize/OnActivated before the outer Create
// returns. It says nothing about OnSimulationStarted asymmetry between
// component types; that scenario lives in world/worldtest, which needs
// two distinct types to reproduce (see
// TestNestedActivationLifecycleCounts there).
type countingHooks struct {
	activated  *int
	onActivate func()
}

func (c *countingHooks) Initialize() {}

func (c *countingHooks) OnActivated() {
	*c.activated++
	if c.onActivate != nil {
		c.onActivate()
	}
}

func (c *countingHooks) OnDeactivated()       {}
func (c *countingHooks) OnSimulationStarted() {}
func (c *countingHooks) Deinitialize()        {}

func TestNestedActivationCompletesBeforeReturn(t *testing.T) {
	const (
		tagA uint8 = iota
		tagB
	)
	activated := 0
	mgrA := NewManager[*countingHooks](tagA)
	mgrB := NewManager[*countingHooks](tagB)

	root := NewHandle(1, 1, tagGameObject)
	child := NewHandle(2, 1, tagGameObject)

	compA := &countingHooks{activated: &activated}
	compA.onActivate = func() {
		compB := &countingHooks{activated: &activated}
		mgrB.Create(child, compB, true)
	}

	mgrA.Create(root, compA, true)

	if activated != 2 {
		t.Fatalf("activated = %d, want 2", activated)
	}
}

func TestSchedulerTopoOrderAndCycle(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.Register(UpdateFunc{Name: "b", Phase: PreAsync, DependsOn: []string{"a"}, Run: func([]Handle, bool) { order = append(order, "b") }})
	s.Register(UpdateFunc{Name: "a", Phase: PreAsync, Run: func([]Handle, bool) { order = append(order, "a") }})
	if err := s.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := s.Run(PreAsync); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}

	cyclic := NewScheduler()
	cyclic.Register(UpdateFunc{Name: "x", Phase: Async, DependsOn: []string{"y"}})
	cyclic.Register(UpdateFunc{Name: "y", Phase: Async, DependsOn: []string{"x"}})
	if err := cyclic.Build(); err == nil {
		t.Fatal("expected cyclic dependency to be rejected")
	}
}
