// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package lin

import "math"

// V3 is a 3-component vector: positions, directions, scales, bounds
// extents. The zero value is the zero vector.
type V3 struct {
	X, Y, Z float64
}

// Set assigns a's components to v. The updated v is returned.
func (v *V3) Set(a *V3) *V3 {
	v.X, v.Y, v.Z = a.X, a.Y, a.Z
	return v
}

// SetS assigns the scalar components x, y, z to v.
func (v *V3) SetS(x, y, z float64) *V3 {
	v.X, v.Y, v.Z = x, y, z
	return v
}

// Aeq reports whether every component of v is within Epsilon of a's.
func (v *V3) Aeq(a *V3) bool {
	return Aeq(v.X, a.X) && Aeq(v.Y, a.Y) && Aeq(v.Z, a.Z)
}

// Add stores a+b into v. Either operand may be v itself.
func (v *V3) Add(a, b *V3) *V3 {
	v.X, v.Y, v.Z = a.X+b.X, a.Y+b.Y, a.Z+b.Z
	return v
}

// Sub stores a-b into v. Either operand may be v itself.
func (v *V3) Sub(a, b *V3) *V3 {
	v.X, v.Y, v.Z = a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return v
}

// Scale stores a*s into v.
func (v *V3) Scale(a *V3, s float64) *V3 {
	v.X, v.Y, v.Z = a.X*s, a.Y*s, a.Z*s
	return v
}

// Dot returns the dot product of v and a.
func (v *V3) Dot(a *V3) float64 { return v.X*a.X + v.Y*a.Y + v.Z*a.Z }

// Cross stores a×b into v. Either operand may be v itself.
func (v *V3) Cross(a, b *V3) *V3 {
	x := a.Y*b.Z - a.Z*b.Y
	y := a.Z*b.X - a.X*b.Z
	z := a.X*b.Y - a.Y*b.X
	v.X, v.Y, v.Z = x, y, z
	return v
}

// Len returns the length of v.
func (v *V3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// LenSqr returns the squared length of v, avoiding the square root
// where only comparisons are needed.
func (v *V3) LenSqr() float64 { return v.Dot(v) }

// DistSqr returns the squared distance between v and a.
func (v *V3) DistSqr(a *V3) float64 {
	dx, dy, dz := a.X-v.X, a.Y-v.Y, a.Z-v.Z
	return dx*dx + dy*dy + dz*dz
}

// Unit normalizes v in place to length 1. A zero vector is left
// unchanged.
func (v *V3) Unit() *V3 {
	l := v.Len()
	if AeqZ(l) {
		return v
	}
	return v.Scale(v, 1/l)
}

// MultQ stores a rotated by quaternion q into v. Uses the
// two-cross-products expansion of the sandwich product, which avoids
// building the conjugate.
func (v *V3) MultQ(a *V3, q *Q) *V3 {
	// t = 2 * cross(q.xyz, a)
	tx, ty, tz := 2*(q.Y*a.Z-q.Z*a.Y), 2*(q.Z*a.X-q.X*a.Z), 2*(q.X*a.Y-q.Y*a.X)

	// v = a + q.w*t + cross(q.xyz, t)
	cx, cy, cz := q.Y*tz-q.Z*ty, q.Z*tx-q.X*tz, q.X*ty-q.Y*tx
	v.X, v.Y, v.Z = a.X+q.W*tx+cx, a.Y+q.W*ty+cy, a.Z+q.W*tz+cz
	return v
}
