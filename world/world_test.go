// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package world

import (
	"math"
	"testing"

	"github.com/forgelogic/core/math/lin"
)

func rotZ(deg float64) lin.Q {
	rad := deg * math.Pi / 180
	return lin.Q{X: 0, Y: 0, Z: math.Sin(rad / 2), W: math.Cos(rad / 2)}
}

func TestHierarchyLevelInvariant(t *testing.T) {
	s := NewStore(nil)
	root := s.CreateObject(Desc{Name: "root", Active: true, Local: Identity()}, Zero)
	child := s.CreateObject(Desc{Name: "child", Active: true, Local: Identity()}, root)
	grandchild := s.CreateObject(Desc{Name: "grandchild", Active: true, Local: Identity()}, child)

	visited := map[Handle]bool{}
	s.Traverse(func(o *GameObject) bool {
		visited[o.handle] = true
		var wantLevel int
		if o.parent.IsZero() {
			wantLevel = 0
		} else {
			p, _ := s.TryGetObject(o.parent)
			wantLevel = p.Level + 1
		}
		if o.Level != wantLevel {
			t.Errorf("%s: level = %d, want %d", o.Name, o.Level, wantLevel)
		}
		return true
	}, BreadthFirst)

	for _, h := range []Handle{root, child, grandchild} {
		if !visited[h] {
			t.Errorf("handle %v not visited", h)
		}
	}
	if len(visited) != 3 {
		t.Errorf("expected exactly 3 visits, got %d", len(visited))
	}
}

func TestActiveStateMonotonicity(t *testing.T) {
	s := NewStore(nil)
	root := s.CreateObject(Desc{Name: "root", Active: true}, Zero)
	child := s.CreateObject(Desc{Name: "child", Active: true}, root)
	grandchild := s.CreateObject(Desc{Name: "grandchild", Active: true}, child)

	s.SetActive(root, false)

	for _, h := range []Handle{root, child, grandchild} {
		obj, _ := s.TryGetObject(h)
		if obj.IsActive() {
			t.Errorf("%s: expected inactive after ancestor deactivated", obj.Name)
		}
	}
}

func TestStaticGlobalConsistencyWithoutUpdate(t *testing.T) {
	s := NewStore(nil)
	parentLocal := Identity()
	parentLocal.Pos = lin.V3{X: 5, Y: 0, Z: 0}
	parent := s.CreateObject(Desc{Name: "P", Static: true, Active: true, Local: parentLocal}, Zero)

	childLocal := Identity()
	childLocal.Pos = lin.V3{X: 1, Y: 2, Z: 3}
	child := s.CreateObject(Desc{Name: "C", Static: true, Active: true, Local: childLocal}, parent)

	obj, _ := s.TryGetObject(child)
	p, _ := s.TryGetObject(parent)
	want := Compose(p.global, childLocal)
	if !obj.global.Pos.Aeq(&want.Pos) {
		t.Fatalf("static child global = %+v, want %+v", obj.global.Pos, want.Pos)
	}
}

// TestDynamicTransformComposition: parent and child each carry the same
// (100,0,0) / +90°Z / ×1.5 local pose. The child's global must come out
// at (100,150,0) with a 180°Z rotation and a 2.25 combined scale.
func TestDynamicTransformComposition(t *testing.T) {
	s := NewStore(nil)
	local := Transform{Pos: lin.V3{X: 100}, Rot: rotZ(90), Scale: 1.5}
	p1 := s.CreateObject(Desc{Name: "P1", Active: true, Local: local}, Zero)
	c11 := s.CreateObject(Desc{Name: "C11", Active: true, Local: local}, p1)

	s.GlobalFromLocal()

	obj, _ := s.TryGetObject(c11)
	if !obj.global.Pos.Aeq(&lin.V3{X: 100, Y: 150, Z: 0}) {
		t.Fatalf("C11 global position = %+v, want (100,150,0)", obj.global.Pos)
	}
	wantRot := rotZ(180)
	if !obj.global.Rot.Aeq(&wantRot) {
		t.Fatalf("C11 global rotation = %+v, want Rz(180) %+v", obj.global.Rot, wantRot)
	}
	if !lin.Aeq(obj.global.Scale, 2.25) {
		t.Fatalf("C11 global scale = %v, want 2.25", obj.global.Scale)
	}
}

func TestVelocity(t *testing.T) {
	s := NewStore(nil)
	h := s.CreateObject(Desc{Name: "o", Active: true, Local: Identity()}, Zero)
	s.GlobalFromLocal()
	s.Velocity(1.0, nil)

	obj, _ := s.TryGetObject(h)
	obj.Local.Pos = lin.V3{X: 10, Y: 0, Z: 0}
	s.GlobalFromLocal()

	var gotVel lin.V3
	s.Velocity(1.0, func(hh Handle, v Transform) {
		if hh == h {
			gotVel = v.Pos
		}
	})
	if !lin.Aeq(gotVel.X, 10) {
		t.Fatalf("velocity.X = %v, want 10", gotVel.X)
	}
}

func TestHandleSafetyAfterDelete(t *testing.T) {
	s := NewStore(nil)
	h := s.CreateObject(Desc{Name: "x", Active: true}, Zero)
	s.DeleteObjectNow(h, false)
	if _, ok := s.TryGetObject(h); ok {
		t.Fatal("expected stale handle to be not-found")
	}
}

func TestDeleteRemovesDescendants(t *testing.T) {
	s := NewStore(nil)
	root := s.CreateObject(Desc{Name: "root", Active: true}, Zero)
	child := s.CreateObject(Desc{Name: "child", Active: true}, root)
	s.DeleteObjectNow(root, false)
	if _, ok := s.TryGetObject(child); ok {
		t.Fatal("expected descendant to be deleted with parent")
	}
}

func TestReparentRejectsCycle(t *testing.T) {
	s := NewStore(nil)
	root := s.CreateObject(Desc{Name: "root", Active: true}, Zero)
	child := s.CreateObject(Desc{Name: "child", Active: true}, root)
	if s.SetParent(root, child) {
		t.Fatal("expected reparenting an ancestor under its descendant to fail")
	}
}

// TestReparentRecomputesActiveState: the computed active-state must
// always equal activeFlag AND all-ancestors-active, including for the
// moved node itself right after a reparent, not only after SetActive.
func TestReparentRecomputesActiveState(t *testing.T) {
	s := NewStore(nil)
	inactiveRoot := s.CreateObject(Desc{Name: "off", Active: false}, Zero)
	activeRoot := s.CreateObject(Desc{Name: "on", Active: true}, Zero)
	child := s.CreateObject(Desc{Name: "child", Active: true}, inactiveRoot)
	grandchild := s.CreateObject(Desc{Name: "grandchild", Active: true}, child)

	obj, _ := s.TryGetObject(child)
	if obj.IsActive() {
		t.Fatal("child under inactive root must start inactive")
	}

	// Promote to root: no inactive ancestors remain.
	if !s.SetParent(child, Zero) {
		t.Fatal("promote to root failed")
	}
	if obj, _ = s.TryGetObject(child); !obj.IsActive() {
		t.Fatal("child promoted to root should be active")
	}
	if gc, _ := s.TryGetObject(grandchild); !gc.IsActive() {
		t.Fatal("descendant should follow the reparented subtree's state")
	}

	// Move under the active root: still active.
	s.SetParent(child, activeRoot)
	if obj, _ = s.TryGetObject(child); !obj.IsActive() {
		t.Fatal("child under active root should be active")
	}

	// Move back under the inactive root: inactive again, transitively.
	s.SetParent(child, inactiveRoot)
	if obj, _ = s.TryGetObject(child); obj.IsActive() {
		t.Fatal("child moved under inactive root should be inactive")
	}
	if gc, _ := s.TryGetObject(grandchild); gc.IsActive() {
		t.Fatal("descendant moved under inactive root should be inactive")
	}
}

func TestSpatialSphereQueryNoDuplicates(t *testing.T) {
	idx := NewIndex(10)
	h1 := NewHandle(1, 1, tagGameObject)
	idx.Publish(Record{Owner: h1, Static: true, Category: RenderStatic, Sphere: Sphere{Center: lin.V3{X: 5}, Radius: 1}, Box: Box{Min: lin.V3{X: 4}, Max: lin.V3{X: 6}}})

	var hits []Handle
	idx.FindObjectsInSphere(Sphere{Center: lin.V3{}, Radius: 20}, Params{CategoryMask: RenderStatic}, func(r *Record) bool {
		hits = append(hits, r.Owner)
		return true
	})
	if len(hits) != 1 || hits[0] != h1 {
		t.Fatalf("expected exactly one hit for h1, got %v", hits)
	}
}

func TestLastVisibleMonotonicity(t *testing.T) {
	idx := NewIndex(10)
	h1 := NewHandle(1, 1, tagGameObject)
	idx.Publish(Record{Owner: h1, Category: RenderDynamic, Sphere: Sphere{Center: lin.V3{}, Radius: 1}, Box: Box{Min: lin.V3{X: -1}, Max: lin.V3{X: 1}}})

	f := Frustum{Planes: [6]Plane{{A: 1, D: 1000}, {A: -1, D: 1000}, {B: 1, D: 1000}, {B: -1, D: 1000}, {C: 1, D: 1000}, {C: -1, D: 1000}}}
	idx.FindVisibleObjects(f, Params{}, 5, func(*Record) bool { return true })

	rec := idx.byOwner[h1]
	for _, frame := range []uint64{5, 6, 7} {
		if rec.VisibilityState(frame) != Direct {
			t.Errorf("frame %d: expected Direct", frame)
		}
	}
	if rec.VisibilityState(8) != Invisible {
		t.Errorf("frame 8: expected Invisible")
	}
}

func TestMessagingOrderBySortKey(t *testing.T) {
	b := NewBus()
	target := NewHandle(1, 1, tagGameObject)
	var order []int
	b.Register("ping", target, func(h Handle, m Message) {
		order = append(order, int(m.SortKey()))
	})
	b.PostMessage("ping", target, sortableMsg(2), 0, ThisFrame)
	b.PostMessage("ping", target, sortableMsg(1), 0, ThisFrame)
	b.Drain(0, func(Handle) bool { return true })

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("dispatch order = %v, want [1 2]", order)
	}
}

type sortableMsg int64

func (m sortableMsg) SortKey() int64   { return int64(m) }
func (m sortableMsg) BaseType() string { return "" }

// TestSendMessageDispatchesToBaseTypeHandler: a handler registered for
// a message's base type must still fire when a derived-type message is
// sent to the same target.
func TestSendMessageDispatchesToBaseTypeHandler(t *testing.T) {
	b := NewBus()
	target := NewHandle(1, 1, tagGameObject)
	var firedBase, firedDerived bool
	b.Register("damage", target, func(Handle, Message) { firedBase = true })
	b.Register("fire-damage", target, func(Handle, Message) { firedDerived = true })

	b.SendMessage("fire-damage", target, fireDamageMsg{}, func(Handle) bool { return true })

	if !firedDerived {
		t.Fatal("handler registered for the message's own type did not fire")
	}
	if !firedBase {
		t.Fatal("handler registered for the message's base type did not fire")
	}
}

// TestSendMessageDoesNotDispatchToUnrelatedType checks the negative case:
// a handler registered for a type that is neither msg's own type nor its
// base must not fire.
func TestSendMessageDoesNotDispatchToUnrelatedType(t *testing.T) {
	b := NewBus()
	target := NewHandle(1, 1, tagGameObject)
	var fired bool
	b.Register("heal", target, func(Handle, Message) { fired = true })

	b.SendMessage("fire-damage", target, fireDamageMsg{}, func(Handle) bool { return true })

	if fired {
		t.Fatal("handler registered for an unrelated message type fired")
	}
}

// fireDamageMsg is a message type derived from "damage", for base-type
// dispatch tests.
type fireDamageMsg struct{}

func (fireDamageMsg) SortKey() int64   { return 0 }
func (fireDamageMsg) BaseType() string { return "damage" }
