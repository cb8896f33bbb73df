// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package worldtest provides small Component implementations used to
// exercise the world package's lifecycle and spatial-bounds machinery
// end to end, in place of hand-rolled fixtures scattered across
// individual test files.
package worldtest

import "github.com/forgelogic/core/world"

// ActivateCounter and SimulationStartedCounter are shared across both
// test component types: every NsTestComponent and NsTestComponent2
// activation bumps ActivateCounter, but only NsTestComponent overrides
// OnSimulationStarted, so the two hooks can be told apart.
var (
	ActivateCounter          int
	SimulationStartedCounter int
)

// ResetCounters zeroes both package-level counters. Call it between
// tests that reuse NsTestComponent/NsTestComponent2.
func ResetCounters() {
	ActivateCounter = 0
	SimulationStartedCounter = 0
}

// NsTestComponent is the "root" half of the nested-activation scenario:
// its OnActivated spawns a child game object carrying an
// NsTestComponent2, synchronously, before Create returns.
type NsTestComponent struct {
	Store   *world.Store
	Manager *world.Manager[*NsTestComponent2]
	Owner   world.Handle
	Spawn   bool
}

func (c *NsTestComponent) Initialize() {}

// OnActivated bumps the shared counter and, if Spawn is set, creates a
// child game object under Owner and attaches an NsTestComponent2 to it.
func (c *NsTestComponent) OnActivated() {
	ActivateCounter++
	if !c.Spawn {
		return
	}
	child := c.Store.CreateObject(world.Desc{Name: "child", Active: true}, c.Owner)
	c.Manager.Create(child, &NsTestComponent2{}, true)
}

func (c *NsTestComponent) OnDeactivated() {}

// OnSimulationStarted bumps SimulationStartedCounter; NsTestComponent2
// deliberately does not override this hook.
func (c *NsTestComponent) OnSimulationStarted() { SimulationStartedCounter++ }

func (c *NsTestComponent) Deinitialize() {}

// NsTestComponent2 is the "child" half of the nested-activation
// scenario. It shares NsTestComponent's ActivateCounter but leaves
// OnSimulationStarted as a no-op, so a scenario driven through
// World.Update can tell the two hooks apart.
type NsTestComponent2 struct{}

func (c *NsTestComponent2) Initialize()          {}
func (c *NsTestComponent2) OnActivated()         { ActivateCounter++ }
func (c *NsTestComponent2) OnDeactivated()       {}
func (c *NsTestComponent2) OnSimulationStarted() {}
func (c *NsTestComponent2) Deinitialize()        {}

// TestBoundsComponent publishes a fixed bounds record to a world.Index
// on activation and withdraws it on Deinitialize, for spatial-query
// scenarios (sphere/box queries, visibility windows) that need many
// bounds-carrying objects without a full rendering or physics
// component behind them.
type TestBoundsComponent struct {
	Index    *world.Index
	Owner    world.Handle
	Static   bool
	Category world.Category
	Sphere   world.Sphere
	Box      world.Box
}

func (c *TestBoundsComponent) Initialize() {}

func (c *TestBoundsComponent) OnActivated() {
	c.Index.Publish(world.Record{
		Owner:    c.Owner,
		Static:   c.Static,
		Category: c.Category,
		Sphere:   c.Sphere,
		Box:      c.Box,
	})
}

func (c *TestBoundsComponent) OnDeactivated()       {}
func (c *TestBoundsComponent) OnSimulationStarted() {}

func (c *TestBoundsComponent) Deinitialize() { c.Index.Remove(c.Owner) }
