// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package lin holds the small linear-math surface the runtime core
// needs: 3D vectors, rotation quaternions, and approximate float
// comparison. It is CPU-side math called from per-frame loops, so the
// operations follow two rules throughout: methods write their result
// into the receiver instead of allocating, and operands are passed by
// pointer. Anything heavier (full matrix stacks, projective math)
// belongs to the renderer this core feeds, not here.
package lin

import "math"

// Epsilon is the tolerance for the almost-equal comparisons. Transform
// chains accumulate error well below this across a frame.
const Epsilon = 0.000001

// Rad converts degrees to radians.
func Rad(deg float64) float64 { return deg * math.Pi / 180 }

// Deg converts radians to degrees.
func Deg(rad float64) float64 { return rad * 180 / math.Pi }

// Aeq reports whether a and b are within Epsilon of each other.
func Aeq(a, b float64) bool { return math.Abs(a-b) < Epsilon }

// AeqZ reports whether x is within Epsilon of zero.
func AeqZ(x float64) bool { return math.Abs(x) < Epsilon }
