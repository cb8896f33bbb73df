// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package world

import "github.com/forgelogic/core/math/lin"

// Transform is a position/rotation/uniform-scale local or global pose,
// built on lin.V3/lin.Q plus an explicit uniform scale factor.
type Transform struct {
	Pos   lin.V3
	Rot   lin.Q
	Scale float64
}

// Identity returns the identity transform (origin, no rotation, unit
// scale).
func Identity() Transform {
	return Transform{Rot: lin.Q{X: 0, Y: 0, Z: 0, W: 1}, Scale: 1}
}

// Compose returns parent ∘ local: local's position is rotated and
// scaled into parent's space then offset by parent's position; local's
// rotation is applied after parent's; scales multiply.
func Compose(parent, local Transform) Transform {
	rotated := lin.V3{}
	rotated.MultQ(&local.Pos, &parent.Rot)
	out := Transform{Scale: parent.Scale * local.Scale}
	out.Pos.Scale(&rotated, parent.Scale)
	out.Pos.Add(&out.Pos, &parent.Pos)
	out.Rot.Mult(&parent.Rot, &local.Rot)
	return out
}

// Velocity returns the per-axis linear velocity implied by moving from
// previous to current over dt. dt <= 0 returns the zero vector.
func Velocity(current, previous Transform, dt float64) lin.V3 {
	if dt <= 0 {
		return lin.V3{}
	}
	delta := lin.V3{}
	delta.Sub(&current.Pos, &previous.Pos)
	return lin.V3{X: delta.X / dt, Y: delta.Y / dt, Z: delta.Z / dt}
}
