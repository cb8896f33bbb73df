// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package world

// ComponentManager is the minimal surface World needs to drive a
// component manager's per-frame lifecycle hooks without depending on
// its concrete component type parameter. Manager[T] implements it for
// any T.
type ComponentManager interface {
	NotifySimulationStarted()
}

// Manager[T] owns block-allocated storage for one concrete component
// type, addressed by handle, using the sparse-map-plus-dense-array
// pattern used throughout this module's stores: a map from owning
// GameObject handle to a slot in parallel arrays. Deletion is O(1): the
// slot goes to a free list for reuse and is not compacted.
type Manager[T Component] struct {
	typeTag    uint8
	slots      *slotTable
	owners     []Handle // dense, parallel to instances; owning game object.
	instances  []T
	byOwner    map[Handle]uint32
	states     []ComponentState
	simStarted []bool // parallel to instances; true once OnSimulationStarted has fired.
}

// NewManager creates a manager for component type T, tagged typeTag so
// its handles are distinguishable from other component types'.
func NewManager[T Component](typeTag uint8) *Manager[T] {
	return &Manager[T]{
		typeTag: typeTag,
		slots:   newSlotTable(),
		byOwner: map[Handle]uint32{},
	}
}

// Create attaches a new component instance to owner and returns its
// handle. Initialize runs before the component is visible to updates;
// OnActivated runs immediately if owner is currently active, and any
// component created from within that callback (nested activation) has
// already completed its own Initialize/OnActivated by the time this
// call returns, since Create is synchronous all the way down.
func (m *Manager[T]) Create(owner Handle, value T, ownerActive bool) Handle {
	if existing, ok := m.byOwner[owner]; ok {
		return NewHandle(existing, m.slots.generations[existing], m.typeTag)
	}
	slot, gen := m.slots.alloc()
	for int(slot) >= len(m.owners) {
		var zero T
		m.owners = append(m.owners, Zero)
		m.instances = append(m.instances, zero)
		m.states = append(m.states, Dead)
		m.simStarted = append(m.simStarted, false)
	}
	m.owners[slot] = owner
	m.instances[slot] = value
	m.states[slot] = Initializing
	m.simStarted[slot] = false
	m.byOwner[owner] = slot
	h := NewHandle(slot, gen, m.typeTag)

	m.instances[slot].Initialize()
	m.states[slot] = Initialized
	if ownerActive {
		m.states[slot] = Active
		m.instances[slot].OnActivated()
	} else {
		m.states[slot] = Inactive
	}
	return h
}

// Get returns the live instance addressed by h.
func (m *Manager[T]) Get(h Handle) (*T, bool) {
	if h.Type() != m.typeTag || !m.slots.valid(h) {
		return nil, false
	}
	return &m.instances[h.Slot()], true
}

// GetByOwner returns the component owned by owner, if any.
func (m *Manager[T]) GetByOwner(owner Handle) (*T, Handle, bool) {
	slot, ok := m.byOwner[owner]
	if !ok {
		return nil, Zero, false
	}
	h := NewHandle(slot, m.slots.generations[slot], m.typeTag)
	return &m.instances[slot], h, true
}

// SetActive transitions the component at h between Active and
// Inactive, firing OnActivated/OnDeactivated exactly on the edges.
func (m *Manager[T]) SetActive(h Handle, active bool) {
	if h.Type() != m.typeTag || !m.slots.valid(h) {
		return
	}
	slot := h.Slot()
	switch {
	case active && m.states[slot] != Active:
		m.states[slot] = Active
		m.instances[slot].OnActivated()
	case !active && m.states[slot] == Active:
		m.states[slot] = Inactive
		m.instances[slot].OnDeactivated()
	}
}

// NotifySimulationStarted fires OnSimulationStarted once for every
// currently active component that has not yet received it. World
// calls this on every registered manager during Update, but only while
// simulation is enabled, so it runs exactly once per component: the
// first update after simulation turns on while that component is
// effective-active.
func (m *Manager[T]) NotifySimulationStarted() {
	for slot := range m.instances {
		if m.states[slot] != Active || m.simStarted[slot] {
			continue
		}
		m.instances[slot].OnSimulationStarted()
		m.simStarted[slot] = true
	}
}

// Destroy deinitializes and removes the component owned by owner, if
// any. Deinitialize always runs after OnDeactivated.
func (m *Manager[T]) Destroy(owner Handle) {
	slot, ok := m.byOwner[owner]
	if !ok {
		return
	}
	if m.states[slot] == Active {
		m.states[slot] = Inactive
		m.instances[slot].OnDeactivated()
	}
	m.states[slot] = Deinitializing
	m.instances[slot].Deinitialize()
	m.states[slot] = Dead
	delete(m.byOwner, owner)
	m.slots.release(slot)
}

// Live returns the handle of every component currently alive, in no
// particular order, for use as a scheduler Components callback.
func (m *Manager[T]) Live() []Handle {
	handles := make([]Handle, 0, len(m.byOwner))
	for _, slot := range m.byOwner {
		handles = append(handles, NewHandle(slot, m.slots.generations[slot], m.typeTag))
	}
	return handles
}

// Len reports the number of live component instances.
func (m *Manager[T]) Len() int { return len(m.byOwner) }
