// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package lin

import "math"

// Q is a rotation quaternion. Q{W: 1} is the identity rotation;
// rotations built with SetAa stay unit length to within Epsilon.
type Q struct {
	X, Y, Z, W float64
}

// QI returns the identity rotation.
func QI() Q { return Q{W: 1} }

// Set assigns a's components to q. The updated q is returned.
func (q *Q) Set(a *Q) *Q {
	q.X, q.Y, q.Z, q.W = a.X, a.Y, a.Z, a.W
	return q
}

// SetAa sets q to the rotation of angle radians about the axis
// (ax, ay, az). The axis need not be unit length; a zero axis yields
// the identity.
func (q *Q) SetAa(ax, ay, az, angle float64) *Q {
	alen := math.Sqrt(ax*ax + ay*ay + az*az)
	if AeqZ(alen) {
		q.X, q.Y, q.Z, q.W = 0, 0, 0, 1
		return q
	}
	s := math.Sin(angle/2) / alen
	q.X, q.Y, q.Z, q.W = ax*s, ay*s, az*s, math.Cos(angle/2)
	return q
}

// Aeq reports whether every component of q is within Epsilon of a's.
func (q *Q) Aeq(a *Q) bool {
	return Aeq(q.X, a.X) && Aeq(q.Y, a.Y) && Aeq(q.Z, a.Z) && Aeq(q.W, a.W)
}

// Mult stores the composition of rotations r then s into q. Either
// operand may be q itself.
func (q *Q) Mult(r, s *Q) *Q {
	x := r.W*s.X + r.X*s.W - r.Y*s.Z + r.Z*s.Y
	y := r.W*s.Y + r.X*s.Z + r.Y*s.W - r.Z*s.X
	z := r.W*s.Z - r.X*s.Y + r.Y*s.X + r.Z*s.W
	w := r.W*s.W - r.X*s.X - r.Y*s.Y - r.Z*s.Z
	q.X, q.Y, q.Z, q.W = x, y, z, w
	return q
}

// Inv stores the inverse rotation of a into q. For the unit
// quaternions this package produces, the inverse is the conjugate.
func (q *Q) Inv(a *Q) *Q {
	q.X, q.Y, q.Z, q.W = -a.X, -a.Y, -a.Z, a.W
	return q
}

// Unit normalizes q in place to length 1. A zero quaternion becomes
// the identity.
func (q *Q) Unit() *Q {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if AeqZ(l) {
		q.X, q.Y, q.Z, q.W = 0, 0, 0, 1
		return q
	}
	inv := 1 / l
	q.X, q.Y, q.Z, q.W = q.X*inv, q.Y*inv, q.Z*inv, q.W*inv
	return q
}
