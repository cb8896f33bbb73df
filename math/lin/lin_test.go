// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package lin

import (
	"math"
	"testing"
)

func TestRadDegRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 45, 90, 180, 360, -90} {
		if got := Deg(Rad(deg)); !Aeq(got, deg) {
			t.Errorf("Deg(Rad(%v)) = %v", deg, got)
		}
	}
	if !Aeq(Rad(180), math.Pi) {
		t.Errorf("Rad(180) = %v, want pi", Rad(180))
	}
}

func TestAeq(t *testing.T) {
	if !Aeq(1, 1+Epsilon/2) {
		t.Error("values within Epsilon should compare equal")
	}
	if Aeq(1, 1+Epsilon*2) {
		t.Error("values beyond Epsilon should not compare equal")
	}
	if !AeqZ(Epsilon / 2) || AeqZ(Epsilon * 2) {
		t.Error("AeqZ tolerance mismatch")
	}
}
