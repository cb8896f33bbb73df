// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package lin

import (
	"math"
	"testing"
)

func TestV3AddSubScale(t *testing.T) {
	a := V3{X: 1, Y: 2, Z: 3}
	b := V3{X: 4, Y: 5, Z: 6}

	v := V3{}
	v.Add(&a, &b)
	if !v.Aeq(&V3{X: 5, Y: 7, Z: 9}) {
		t.Errorf("Add = %+v", v)
	}
	v.Sub(&b, &a)
	if !v.Aeq(&V3{X: 3, Y: 3, Z: 3}) {
		t.Errorf("Sub = %+v", v)
	}
	v.Scale(&a, 2)
	if !v.Aeq(&V3{X: 2, Y: 4, Z: 6}) {
		t.Errorf("Scale = %+v", v)
	}
}

func TestV3AliasedOperands(t *testing.T) {
	v := V3{X: 1, Y: 1, Z: 1}
	v.Add(&v, &v)
	if !v.Aeq(&V3{X: 2, Y: 2, Z: 2}) {
		t.Errorf("aliased Add = %+v", v)
	}
	v.Cross(&v, &v) // a×a = 0, and aliasing must not corrupt components mid-computation.
	if !v.Aeq(&V3{}) {
		t.Errorf("aliased Cross = %+v", v)
	}
}

func TestV3Lengths(t *testing.T) {
	v := V3{X: 3, Y: 4}
	if !Aeq(v.Len(), 5) {
		t.Errorf("Len = %v", v.Len())
	}
	if !Aeq(v.LenSqr(), 25) {
		t.Errorf("LenSqr = %v", v.LenSqr())
	}
	o := V3{X: 6, Y: 8}
	if !Aeq(v.DistSqr(&o), 25) {
		t.Errorf("DistSqr = %v", v.DistSqr(&o))
	}
}

func TestV3Unit(t *testing.T) {
	v := V3{X: 0, Y: 0, Z: 10}
	v.Unit()
	if !v.Aeq(&V3{Z: 1}) {
		t.Errorf("Unit = %+v", v)
	}
	z := V3{}
	z.Unit()
	if !z.Aeq(&V3{}) {
		t.Errorf("Unit of zero vector changed it: %+v", z)
	}
}

func TestV3MultQRotates(t *testing.T) {
	// 90 degrees about Z carries +X onto +Y.
	q := Q{}
	q.SetAa(0, 0, 1, math.Pi/2)
	v := V3{}
	v.MultQ(&V3{X: 1}, &q)
	if !v.Aeq(&V3{Y: 1}) {
		t.Errorf("Rz(90)·x = %+v, want +y", v)
	}

	// Rotating by the identity is a no-op.
	id := QI()
	v.MultQ(&V3{X: 2, Y: -3, Z: 4}, &id)
	if !v.Aeq(&V3{X: 2, Y: -3, Z: 4}) {
		t.Errorf("identity rotation moved the vector: %+v", v)
	}
}
