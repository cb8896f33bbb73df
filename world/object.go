// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package world

import (
	"hash/fnv"
	"log/slog"
)

// TraverseOrder selects how Traverse walks the hierarchy.
type TraverseOrder int

const (
	BreadthFirst TraverseOrder = iota
	DepthFirst
)

// GameObject is a named, transformable node in the world hierarchy.
// Intrusive first-child/next-sibling/parent links keep re-parenting
// O(1); global transforms are cached and recomputed either eagerly
// (static) or during the transform-update phase (dynamic).
type GameObject struct {
	handle Handle
	Name   string
	Static bool // static objects compute global eagerly on mutation.

	activeFlag  bool // this object's own active flag.
	activeState bool // activeFlag AND all ancestors' activeFlag.
	Level       int  // hierarchy-level; root = 0.
	Local       Transform
	global      Transform
	prevGlobal  Transform

	parent      Handle
	firstChild  Handle
	nextSibling Handle
}

// Handle returns the stable identifier for this object.
func (g *GameObject) Handle() Handle { return g.handle }

// Global returns the cached global transform.
func (g *GameObject) Global() Transform { return g.global }

// PreviousGlobal returns the global transform as of the prior update's
// velocity phase.
func (g *GameObject) PreviousGlobal() Transform { return g.prevGlobal }

// IsActive reports the object's computed active state: its own active
// flag AND every ancestor's active flag.
func (g *GameObject) IsActive() bool { return g.activeState }

// Desc describes a new game object at creation time.
type Desc struct {
	Name   string
	Static bool
	Local  Transform
	Active bool
}

// Store owns every GameObject in one world: creation, parenting,
// deletion, traversal, and the hierarchy-level-bucketed transform
// phases. Store does no locking of its own; World.Update holds the
// world's write lock while it drives these methods.
type Store struct {
	slots   *slotTable
	objects []GameObject // dense, indexed by handle slot.
	roots   []Handle     // root objects, in creation order.

	globalKeys    map[uint64]Handle
	pendingDelete []Handle

	log *slog.Logger
}

// NewStore creates an empty object store.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		slots:      newSlotTable(),
		objects:    make([]GameObject, 1), // slot 0 reserved, unused.
		globalKeys: map[uint64]Handle{},
		log:        log,
	}
}

// CreateObject allocates a new game object from desc, optionally
// parented, and returns its handle.
func (s *Store) CreateObject(desc Desc, parent Handle) Handle {
	slot, gen := s.slots.alloc()
	h := NewHandle(slot, gen, tagGameObject)
	for int(slot) >= len(s.objects) {
		s.objects = append(s.objects, GameObject{})
	}
	obj := &s.objects[slot]
	*obj = GameObject{
		handle:      h,
		Name:        desc.Name,
		Static:      desc.Static,
		activeFlag:  desc.Active,
		activeState: desc.Active,
		Local:       desc.Local,
	}
	if parent.IsZero() {
		s.roots = append(s.roots, h)
	} else if p := s.get(parent); p != nil {
		obj.parent = parent
		obj.Level = p.Level + 1
		obj.nextSibling = p.firstChild
		p.firstChild = h
		obj.activeState = obj.activeFlag && p.activeState
	} else {
		s.roots = append(s.roots, h)
	}
	if obj.Static {
		s.refreshStaticGlobal(obj)
	}
	return h
}

// TryGetObject returns the live object for h, or nil if h is stale.
func (s *Store) TryGetObject(h Handle) (*GameObject, bool) {
	obj := s.get(h)
	return obj, obj != nil
}

func (s *Store) get(h Handle) *GameObject {
	if !s.slots.valid(h) {
		return nil
	}
	return &s.objects[h.Slot()]
}

// SetGlobalKey interns name and makes h addressable by hashed key.
func (s *Store) SetGlobalKey(h Handle, name string) {
	s.globalKeys[hashKey(name)] = h
}

// TryGetObjectWithGlobalKey resolves a previously interned key.
func (s *Store) TryGetObjectWithGlobalKey(hashedKey uint64) (*GameObject, bool) {
	h, ok := s.globalKeys[hashedKey]
	if !ok {
		return nil, false
	}
	return s.TryGetObject(h)
}

// HashKey computes the hashed key TryGetObjectWithGlobalKey expects.
func HashKey(name string) uint64 { return hashKey(name) }

func hashKey(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

// SetParent reparents child under newParent (zero to become a root).
// Refuses to create a cycle: reparenting an ancestor under its own
// descendant is rejected and returns false.
func (s *Store) SetParent(child, newParent Handle) bool {
	c := s.get(child)
	if c == nil {
		return false
	}
	if !newParent.IsZero() {
		if s.get(newParent) == nil {
			return false
		}
		if s.isDescendant(newParent, child) {
			return false // would create a cycle.
		}
	}
	s.unlinkFromParent(child)
	if newParent.IsZero() {
		c.parent = Zero
		c.Level = 0
		s.roots = append(s.roots, child)
	} else {
		p := s.get(newParent)
		c.parent = newParent
		c.Level = p.Level + 1
		c.nextSibling = p.firstChild
		p.firstChild = child
	}
	s.renumberSubtree(child)
	return true
}

// AddChild is the inverse of SetParent: it reparents child under
// parent.
func (s *Store) AddChild(parent, child Handle) bool { return s.SetParent(child, parent) }

// isDescendant reports whether candidate is h or a descendant of h.
func (s *Store) isDescendant(candidate, h Handle) bool {
	if candidate == h {
		return true
	}
	obj := s.get(h)
	if obj == nil {
		return false
	}
	for c := obj.firstChild; !c.IsZero(); {
		if s.isDescendant(candidate, c) {
			return true
		}
		co := s.get(c)
		if co == nil {
			break
		}
		c = co.nextSibling
	}
	return false
}

func (s *Store) unlinkFromParent(h Handle) {
	obj := s.get(h)
	if obj == nil {
		return
	}
	if obj.parent.IsZero() {
		for i, r := range s.roots {
			if r == h {
				s.roots = append(s.roots[:i], s.roots[i+1:]...)
				break
			}
		}
		return
	}
	p := s.get(obj.parent)
	if p == nil {
		return
	}
	if p.firstChild == h {
		p.firstChild = obj.nextSibling
		return
	}
	for sib := p.firstChild; !sib.IsZero(); {
		so := s.get(sib)
		if so == nil {
			break
		}
		if so.nextSibling == h {
			so.nextSibling = obj.nextSibling
			return
		}
		sib = so.nextSibling
	}
}

// renumberSubtree fixes Level, the computed active-state, and (for
// static subtrees) the cached global transform after a structural
// change. The node's own active-state is recomputed against its new
// parent first, so a reparented object doesn't keep the state it
// derived under the old parent.
func (s *Store) renumberSubtree(h Handle) {
	obj := s.get(h)
	if obj == nil {
		return
	}
	parentActive := true
	if !obj.parent.IsZero() {
		if p := s.get(obj.parent); p != nil {
			parentActive = p.activeState
		}
	}
	obj.activeState = obj.activeFlag && parentActive
	if obj.Static {
		s.refreshStaticGlobal(obj)
	}
	for c := obj.firstChild; !c.IsZero(); {
		co := s.get(c)
		if co == nil {
			break
		}
		co.Level = obj.Level + 1
		s.renumberSubtree(c)
		c = co.nextSibling
	}
}

func (s *Store) refreshStaticGlobal(obj *GameObject) {
	parent := Identity()
	if !obj.parent.IsZero() {
		if p := s.get(obj.parent); p != nil {
			parent = p.global
		}
	}
	obj.global = Compose(parent, obj.Local)
}

// SetLocal updates an object's local transform. Static objects get
// their global recomputed immediately (and propagated to static
// descendants); dynamic objects pick up the change on the next
// GlobalFromLocal phase.
func (s *Store) SetLocal(h Handle, local Transform) bool {
	obj := s.get(h)
	if obj == nil {
		return false
	}
	obj.Local = local
	if obj.Static {
		s.renumberSubtree(h)
	}
	return true
}

// SetActive sets h's own active flag and propagates the computed
// active-state to every descendant synchronously.
func (s *Store) SetActive(h Handle, active bool) bool {
	obj := s.get(h)
	if obj == nil {
		return false
	}
	obj.activeFlag = active
	parentActive := true
	if !obj.parent.IsZero() {
		if p := s.get(obj.parent); p != nil {
			parentActive = p.activeState
		}
	}
	s.propagateActive(h, active && parentActive)
	return true
}

func (s *Store) propagateActive(h Handle, state bool) {
	obj := s.get(h)
	if obj == nil {
		return
	}
	obj.activeState = state
	for c := obj.firstChild; !c.IsZero(); {
		co := s.get(c)
		if co == nil {
			break
		}
		s.propagateActive(c, state && co.activeFlag)
		c = co.nextSibling
	}
}

// DeleteObjectNow removes h and its descendants immediately. If
// keepChildren is true, direct children are reparented to h's parent
// instead of being deleted.
func (s *Store) DeleteObjectNow(h Handle, keepChildren bool) bool {
	obj := s.get(h)
	if obj == nil {
		return false
	}
	if keepChildren {
		parent := obj.parent
		for c := obj.firstChild; !c.IsZero(); {
			co := s.get(c)
			if co == nil {
				break
			}
			next := co.nextSibling
			s.SetParent(c, parent)
			c = next
		}
	} else {
		for c := obj.firstChild; !c.IsZero(); {
			co := s.get(c)
			if co == nil {
				break
			}
			next := co.nextSibling
			s.DeleteObjectNow(c, false)
			c = next
		}
	}
	s.unlinkFromParent(h)
	s.slots.release(h.Slot())
	return true
}

// DeleteObjectDelayed queues h for deletion at end-of-frame.
func (s *Store) DeleteObjectDelayed(h Handle) {
	if s.get(h) != nil {
		s.pendingDelete = append(s.pendingDelete, h)
	}
}

// FlushDeletes executes every delayed delete queued since the last
// flush. Called once per world update, after the frame's queries have
// run so iterators from the current phase are never invalidated.
func (s *Store) FlushDeletes() {
	pending := s.pendingDelete
	s.pendingDelete = nil
	for _, h := range pending {
		s.DeleteObjectNow(h, false)
	}
}

// Visitor is called once per visited object during Traverse; returning
// false stops the traversal early.
type Visitor func(*GameObject) bool

// Traverse walks every live object reachable from the roots exactly
// once, in the given order.
func (s *Store) Traverse(visit Visitor, order TraverseOrder) {
	switch order {
	case DepthFirst:
		for _, r := range s.roots {
			if !s.traverseDF(r, visit) {
				return
			}
		}
	default:
		queue := append([]Handle(nil), s.roots...)
		for len(queue) > 0 {
			h := queue[0]
			queue = queue[1:]
			obj := s.get(h)
			if obj == nil {
				continue
			}
			if !visit(obj) {
				return
			}
			for c := obj.firstChild; !c.IsZero(); {
				co := s.get(c)
				if co == nil {
					break
				}
				queue = append(queue, c)
				c = co.nextSibling
			}
		}
	}
}

func (s *Store) traverseDF(h Handle, visit Visitor) bool {
	obj := s.get(h)
	if obj == nil {
		return true
	}
	if !visit(obj) {
		return false
	}
	for c := obj.firstChild; !c.IsZero(); {
		co := s.get(c)
		if co == nil {
			break
		}
		if !s.traverseDF(c, visit) {
			return false
		}
		c = co.nextSibling
	}
	return true
}

// byLevel groups live dynamic object handles by hierarchy level, so
// GlobalFromLocal can process a level only after its parent level is
// done.
func (s *Store) byLevel() [][]Handle {
	var levels [][]Handle
	s.Traverse(func(o *GameObject) bool {
		if o.Static {
			return true
		}
		for len(levels) <= o.Level {
			levels = append(levels, nil)
		}
		levels[o.Level] = append(levels[o.Level], o.handle)
		return true
	}, BreadthFirst)
	return levels
}

// GlobalFromLocal is transform phase T2: for each hierarchy level in
// ascending order, recompute global = parent.global ∘ local for every
// dynamic object at that level.
func (s *Store) GlobalFromLocal() {
	for _, level := range s.byLevel() {
		for _, h := range level {
			obj := s.get(h)
			if obj == nil {
				continue
			}
			parent := Identity()
			if !obj.parent.IsZero() {
				if p := s.get(obj.parent); p != nil {
					parent = p.global
				}
			}
			obj.global = Compose(parent, obj.Local)
		}
	}
}

// Velocity is transform phase T3: snapshot current global as next
// frame's previous-global and report per-object linear velocity for
// the frame just completed.
func (s *Store) Velocity(dt float64, report func(h Handle, linear Transform)) {
	s.Traverse(func(o *GameObject) bool {
		if report != nil {
			v := Velocity(o.global, o.prevGlobal, dt)
			lv := Identity()
			lv.Pos = v
			report(o.handle, lv)
		}
		o.prevGlobal = o.global
		return true
	}, BreadthFirst)
}
