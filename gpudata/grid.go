// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package gpudata

import (
	"math"

	"github.com/forgelogic/core/math/lin"
)

// View carries the per-frame camera parameters a cluster grid is built
// against: view-space near/far planes, and the vertical field of view
// and aspect ratio the 16x8 XY slicing divides. BuildGrid does not read
// ScreenW or ScreenH.
type View struct {
	Near, Far        float64
	ScreenW, ScreenH int
	FovYRadians      float64
	AspectRatio      float64
}

// Bounds is one cluster's view-space axis-aligned box, using the same
// lin.V3 vector type world/spatial.go's Box uses for world-space bounds.
type Bounds struct {
	Min, Max lin.V3
}

// depthSlice returns the view-space near/far of cluster index z along
// GridZ, using an exponential split so near clusters are thin and far
// ones wide (standard clustered-forward slicing).
func depthSlice(v View, z int) (near, far float64) {
	ratio := v.Far / v.Near
	near = v.Near * math.Pow(ratio, float64(z)/float64(GridZ))
	far = v.Near * math.Pow(ratio, float64(z+1)/float64(GridZ))
	return
}

// Grid precomputes the GridX*GridY*GridZ cluster bounds for one view.
type Grid struct {
	view   View
	bounds []Bounds
}

// BuildGrid computes view-space bounds for every cluster cell.
func BuildGrid(v View) *Grid {
	g := &Grid{view: v, bounds: make([]Bounds, GridX*GridY*GridZ)}
	tanHalfFov := math.Tan(v.FovYRadians / 2)
	for z := 0; z < GridZ; z++ {
		near, far := depthSlice(v, z)
		halfHNear, halfWNear := near*tanHalfFov, near*tanHalfFov*v.AspectRatio
		halfHFar, halfWFar := far*tanHalfFov, far*tanHalfFov*v.AspectRatio
		for y := 0; y < GridY; y++ {
			for x := 0; x < GridX; x++ {
				fx0, fx1 := float64(x)/GridX, float64(x+1)/GridX
				fy0, fy1 := float64(y)/GridY, float64(y+1)/GridY
				minX := lerp(-halfWNear, -halfWFar, fx0) // conservative: take the wider far extent.
				maxX := lerp(halfWNear, halfWFar, fx1)
				minY := lerp(-halfHNear, -halfHFar, fy0)
				maxY := lerp(halfHNear, halfHFar, fy1)
				g.bounds[index(x, y, z)] = Bounds{
					Min: lin.V3{X: min2(minX, -halfWFar*fx1), Y: min2(minY, -halfHFar*fy1), Z: near},
					Max: lin.V3{X: max2(maxX, halfWFar*fx1), Y: max2(maxY, halfHFar*fy1), Z: far},
				}
			}
		}
	}
	return g
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func index(x, y, z int) int { return (z*GridY+y)*GridX + x }

// ItemSphere is a view-space bounding sphere for one light, decal, or
// probe candidate, keyed by its index into the caller's own record
// slice.
type ItemSphere struct {
	Center lin.V3
	Radius float64
}

// overlapsSphere is the same clamp-to-box-then-compare-distance test
// world/spatial.go's Sphere.overlapsBox runs against world-space
// bounds, against this package's view-space Bounds instead.
func (b Bounds) overlapsSphere(s ItemSphere) bool {
	clamp := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	closest := lin.V3{
		X: clamp(s.Center.X, b.Min.X, b.Max.X),
		Y: clamp(s.Center.Y, b.Min.Y, b.Max.Y),
		Z: clamp(s.Center.Z, b.Min.Z, b.Max.Z),
	}
	return s.Center.DistSqr(&closest) <= s.Radius*s.Radius
}

// ClusterRecord is one packed per-cluster {offset, counts} GPU record:
// offset indexes into the flat item-index buffer, and lights/decals/
// probes counts are packed 10 bits each into the second word.
type ClusterRecord struct {
	Offset uint32
	Counts uint32 // bits 0-9 lights, 10-19 decals, 20-29 probes.
}

func packCounts(lights, decals, probes int) uint32 {
	clamp := func(n int) uint32 {
		if n > 1023 {
			n = 1023
		}
		return uint32(n)
	}
	return clamp(lights) | clamp(decals)<<10 | clamp(probes)<<20
}

// Culled is the output of one Build pass: one ClusterRecord per cell of
// the grid, and a single flat item-index buffer each cluster's Offset
// points into. Each cluster's slice of Items holds its light indices
// first, then decal indices, then probe indices, contiguously; Counts
// gives the length of each of the three sub-ranges in that order.
type Culled struct {
	Clusters []ClusterRecord
	Items    []uint32
}

// Build assigns lights, decals, and probes into g's clusters by
// sphere-vs-box overlap, producing the packed per-cluster records and
// the flat item-index buffer a clustered shading pass walks. Each
// cluster keeps at most 1023 lights, 1023 decals and 1023 probes,
// matching the 10-bit packed field width; further overlapping items
// are left out of that cluster. Callers needing more items per cluster should shrink
// their cluster cell size.
func (g *Grid) Build(lights, decals, probes []ItemSphere) Culled {
	out := Culled{Clusters: make([]ClusterRecord, len(g.bounds))}
	for i, b := range g.bounds {
		offset := len(out.Items)
		nLights := 0
		for li, s := range lights {
			if nLights < 1023 && b.overlapsSphere(s) {
				out.Items = append(out.Items, uint32(li))
				nLights++
			}
		}
		nDecals := 0
		for di, s := range decals {
			if nDecals < 1023 && b.overlapsSphere(s) {
				out.Items = append(out.Items, uint32(di))
				nDecals++
			}
		}
		nProbes := 0
		for pi, s := range probes {
			if nProbes < 1023 && b.overlapsSphere(s) {
				out.Items = append(out.Items, uint32(pi))
				nProbes++
			}
		}
		out.Clusters[i] = ClusterRecord{
			Offset: uint32(offset),
			Counts: packCounts(nLights, nDecals, nProbes),
		}
	}
	return out
}

// CellIndex maps a cluster's (x,y,z) grid coordinate to its flat index
// into Grid.bounds / Culled.Clusters.
func CellIndex(x, y, z int) int { return index(x, y, z) }
