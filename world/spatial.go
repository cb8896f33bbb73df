// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package world

import "github.com/forgelogic/core/math/lin"

// Category is a compile-time-registered bit tagging a spatial record
// for filtered queries. Built-in categories are a starting set; hosts
// can OR in their own bits.
type Category uint32

const (
	RenderStatic  Category = 1 << 0
	RenderDynamic Category = 1 << 1
)

// Sphere is a bounding sphere in world space.
type Sphere struct {
	Center lin.V3
	Radius float64
}

// Box is an axis-aligned bounding box in world space.
type Box struct {
	Min, Max lin.V3
}

func (s Sphere) overlapsSphere(o Sphere) bool {
	d := lin.V3{}
	d.Sub(&s.Center, &o.Center)
	r := s.Radius + o.Radius
	return d.LenSqr() <= r*r
}

func (s Sphere) overlapsBox(b Box) bool {
	clamp := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	cx := clamp(s.Center.X, b.Min.X, b.Max.X)
	cy := clamp(s.Center.Y, b.Min.Y, b.Max.Y)
	cz := clamp(s.Center.Z, b.Min.Z, b.Max.Z)
	dx, dy, dz := s.Center.X-cx, s.Center.Y-cy, s.Center.Z-cz
	return dx*dx+dy*dy+dz*dz <= s.Radius*s.Radius
}

func boxesOverlap(a, b Box) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// Plane is one half-space boundary of a view frustum, ax+by+cz+d >= 0
// for points inside.
type Plane struct {
	A, B, C, D float64
}

func (p Plane) distance(pt lin.V3) float64 { return p.A*pt.X + p.B*pt.Y + p.C*pt.Z + p.D }

// Frustum is six planes bounding a camera's visible volume.
type Frustum struct {
	Planes [6]Plane
}

// intersectsSphere reports whether sph is at least partially inside
// every plane's half-space.
func (f Frustum) intersectsSphere(sph Sphere) bool {
	for _, p := range f.Planes {
		if p.distance(sph.Center) < -sph.Radius {
			return false
		}
	}
	return true
}

func (f Frustum) intersectsBox(b Box) bool {
	for _, p := range f.Planes {
		// Positive vertex: the box corner furthest along the plane normal.
		px, py, pz := b.Min.X, b.Min.Y, b.Min.Z
		if p.A >= 0 {
			px = b.Max.X
		}
		if p.B >= 0 {
			py = b.Max.Y
		}
		if p.C >= 0 {
			pz = b.Max.Z
		}
		if p.distance(lin.V3{X: px, Y: py, Z: pz}) < 0 {
			return false
		}
	}
	return true
}

// VisibilityState reports how recently an object was found by
// FindVisibleObjects.
type VisibilityState int

const (
	Invisible VisibilityState = iota
	Indirect
	Direct
)

// visibleWindow is how many frames an object stays Direct after its
// last FindVisibleObjects hit.
const visibleWindow = 2

// Record is one game object's published spatial bounds.
type Record struct {
	Owner       Handle
	Static      bool
	Category    Category
	Sphere      Sphere
	Box         Box
	lastVisible uint64
}

// Params filters a spatial query by category. IncludeIndirect is
// carried but no query reads it: every query returns only records whose
// own bounds it tested.
type Params struct {
	CategoryMask    Category
	IncludeIndirect bool
}

func (r *Record) matches(p Params) bool {
	return p.CategoryMask == 0 || r.Category&p.CategoryMask != 0
}

// Index is the spatial query structure: static records live in a
// lazily-rebuilt uniform grid, dynamic records in a flat list updated
// by Publish and Remove. Both expose identical sphere/box/frustum queries.
type Index struct {
	byOwner map[Handle]*Record
	static  []*Record
	dynamic []*Record

	cellSize   float64
	grid       map[gridCell][]*Record
	gridDirty  bool
	frameClock uint64
}

type gridCell struct{ x, y, z int32 }

// NewIndex creates an empty spatial index. cellSize bounds the static
// grid's bucket size; pick roughly the typical static object's extent.
func NewIndex(cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = 32
	}
	return &Index{
		byOwner:  map[Handle]*Record{},
		cellSize: cellSize,
		grid:     map[gridCell][]*Record{},
	}
}

// Publish sets or updates owner's bounds record, moving it between the
// static and dynamic sets if its Static flag changed.
func (idx *Index) Publish(rec Record) {
	existing, had := idx.byOwner[rec.Owner]
	if had {
		rec.lastVisible = existing.lastVisible
	}
	stored := rec
	idx.byOwner[rec.Owner] = &stored
	if had {
		idx.remove(existing)
	}
	if stored.Static {
		idx.static = append(idx.static, &stored)
		idx.gridDirty = true
	} else {
		idx.dynamic = append(idx.dynamic, &stored)
	}
}

// Remove drops owner's published bounds.
func (idx *Index) Remove(owner Handle) {
	rec, ok := idx.byOwner[owner]
	if !ok {
		return
	}
	delete(idx.byOwner, owner)
	idx.remove(rec)
}

func (idx *Index) remove(rec *Record) {
	if rec.Static {
		idx.static = removeRecord(idx.static, rec)
		idx.gridDirty = true
	} else {
		idx.dynamic = removeRecord(idx.dynamic, rec)
	}
}

func removeRecord(list []*Record, target *Record) []*Record {
	for i, r := range list {
		if r == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (idx *Index) rebuildGridIfDirty() {
	if !idx.gridDirty {
		return
	}
	idx.grid = map[gridCell][]*Record{}
	for _, r := range idx.static {
		for _, c := range idx.cellsFor(r.Box) {
			idx.grid[c] = append(idx.grid[c], r)
		}
	}
	idx.gridDirty = false
}

func (idx *Index) cellsFor(b Box) []gridCell {
	toCell := func(v float64) int32 { return int32(v / idx.cellSize) }
	minX, minY, minZ := toCell(b.Min.X), toCell(b.Min.Y), toCell(b.Min.Z)
	maxX, maxY, maxZ := toCell(b.Max.X), toCell(b.Max.Y), toCell(b.Max.Z)
	var cells []gridCell
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				cells = append(cells, gridCell{x, y, z})
			}
		}
	}
	return cells
}

// RecordVisitor is called once per matching record; returning false
// stops the query early.
type RecordVisitor func(*Record) bool

func (idx *Index) candidatesForBox(b Box) []*Record {
	idx.rebuildGridIfDirty()
	seen := map[*Record]bool{}
	var out []*Record
	for _, c := range idx.cellsFor(b) {
		for _, r := range idx.grid[c] {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	out = append(out, idx.dynamic...)
	return out
}

// FindObjectsInSphere visits every record overlapping sph matching
// params, with no duplicates.
func (idx *Index) FindObjectsInSphere(sph Sphere, params Params, visit RecordVisitor) {
	box := Box{
		Min: lin.V3{X: sph.Center.X - sph.Radius, Y: sph.Center.Y - sph.Radius, Z: sph.Center.Z - sph.Radius},
		Max: lin.V3{X: sph.Center.X + sph.Radius, Y: sph.Center.Y + sph.Radius, Z: sph.Center.Z + sph.Radius},
	}
	for _, r := range idx.candidatesForBox(box) {
		if !r.matches(params) {
			continue
		}
		if sph.overlapsSphere(r.Sphere) || sph.overlapsBox(r.Box) {
			if !visit(r) {
				return
			}
		}
	}
}

// FindObjectsInBox visits every record overlapping b matching params,
// with no duplicates.
func (idx *Index) FindObjectsInBox(b Box, params Params, visit RecordVisitor) {
	for _, r := range idx.candidatesForBox(b) {
		if !r.matches(params) {
			continue
		}
		if boxesOverlap(b, r.Box) {
			if !visit(r) {
				return
			}
		}
	}
}

// FindVisibleObjects visits every record inside f matching params,
// stamping each visited record's last-visible-frame with frame.
// Previously-visible records outside the window age to Invisible
// without a query touching them; Moving an object never resets its
// last-visible-frame on its own.
func (idx *Index) FindVisibleObjects(f Frustum, params Params, frame uint64, visit RecordVisitor) {
	var all []*Record
	idx.rebuildGridIfDirty()
	seen := map[*Record]bool{}
	for _, r := range idx.static {
		if !seen[r] {
			seen[r] = true
			all = append(all, r)
		}
	}
	all = append(all, idx.dynamic...)
	for _, r := range all {
		if !r.matches(params) {
			continue
		}
		if f.intersectsSphere(r.Sphere) || f.intersectsBox(r.Box) {
			r.lastVisible = frame
			if !visit(r) {
				return
			}
		}
	}
}

// VisibilityState returns rec's current visibility relative to frame:
// Direct if last touched within the visibility window, else Invisible.
// A record no query has ever stamped is Invisible.
func (rec *Record) VisibilityState(frame uint64) VisibilityState {
	if rec.lastVisible == 0 {
		return Invisible
	}
	if frame >= rec.lastVisible && frame-rec.lastVisible <= visibleWindow {
		return Direct
	}
	return Invisible
}
