// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package gpudata packs per-view light/decal/probe records into the
// linear GPU-facing buffers a clustered renderer consumes, and builds
// the per-cluster index lists a fragment shader walks. This package
// only prepares host-side buffers, it does not touch a GPU API (that
// boundary belongs to render/, which is out of this core's scope
// beyond the data it consumes).
package gpudata

import (
	"encoding/binary"
	"math"
)

// Grid dimensions for the clustered shading pass.
const (
	GridX = 16
	GridY = 8
	GridZ = 24

	maxLightsPerCluster = 1 << 10
	maxDecalsPerCluster = 1 << 10
	maxProbesPerCluster = 1 << 10
)

// LightType tags the packed type bits of a Light record.
type LightType uint32

const (
	LightPoint LightType = iota
	LightSpot
	LightDirectional
)

// Light is the host-side view of one packed 48-byte per-light record.
type Light struct {
	Color            [3]float32 // 0..1 RGB, packed into the high bits alongside Type.
	Type             LightType
	Intensity        float32
	Direction        [3]float32 // unit vector, packed 3x10-bit fixed point.
	ShadowIndex      uint32     // index into the shadow-record buffer, or 0xFFFFFFFF.
	Position         [3]float32
	InvSqrAttRadius  float32
	SpotInnerOuter   [2]float32 // half-angle cosines, packed as f16.
	ProjectorAtlasUV [2]float32 // packed as f16.
	ProjectorAtlasWH [2]float32 // packed as f16.
}

const lightRecordSize = 48

// Encode writes l's packed 48-byte GPU record into dst (must have
// len(dst) >= 48), little-endian.
func (l Light) Encode(dst []byte) {
	colorAndType := packColorType(l.Color, uint32(l.Type))
	binary.LittleEndian.PutUint32(dst[0:4], colorAndType)
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(l.Intensity))
	binary.LittleEndian.PutUint32(dst[8:12], packDirection(l.Direction))
	shadowOffset := l.ShadowIndex
	binary.LittleEndian.PutUint32(dst[12:16], shadowOffset)
	binary.LittleEndian.PutUint32(dst[16:20], math.Float32bits(l.Position[0]))
	binary.LittleEndian.PutUint32(dst[20:24], math.Float32bits(l.Position[1]))
	binary.LittleEndian.PutUint32(dst[24:28], math.Float32bits(l.Position[2]))
	binary.LittleEndian.PutUint32(dst[28:32], math.Float32bits(l.InvSqrAttRadius))
	binary.LittleEndian.PutUint32(dst[32:36], packF16Pair(l.SpotInnerOuter))
	binary.LittleEndian.PutUint32(dst[36:40], packF16Pair(l.ProjectorAtlasUV))
	binary.LittleEndian.PutUint32(dst[40:44], packF16Pair(l.ProjectorAtlasWH))
	binary.LittleEndian.PutUint32(dst[44:48], 0) // reserved.
}

// packColorType quantizes an RGB color to 8 bits per channel and packs
// it alongside a 2-bit type tag in the low bits.
func packColorType(c [3]float32, lightType uint32) uint32 {
	q := func(v float32) uint32 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint32(v*255 + 0.5)
	}
	return (q(c[0]) << 24) | (q(c[1]) << 16) | (q(c[2]) << 8) | (lightType & 0x3)
}

// packDirection quantizes a unit direction vector to 3x10-bit signed
// fixed point, [-1,1] mapped to [0,1023] with 0 at 512.
func packDirection(d [3]float32) uint32 {
	q := func(v float32) uint32 {
		clamped := (v + 1) * 0.5
		if clamped < 0 {
			clamped = 0
		}
		if clamped > 1 {
			clamped = 1
		}
		return uint32(clamped*1023 + 0.5)
	}
	return q(d[0]) | (q(d[1]) << 10) | (q(d[2]) << 20)
}

// packF16Pair packs two float32s as float16 bit patterns into one
// 32-bit word, low half first.
func packF16Pair(v [2]float32) uint32 {
	return uint32(float32ToFloat16(v[0])) | uint32(float32ToFloat16(v[1]))<<16
}

func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF
	switch {
	case exp <= 0:
		return sign
	case exp >= 0x1F:
		return sign | 0x7C00
	default:
		return sign | uint16(exp<<10) | uint16(mant>>13)
	}
}

// Decal is the host-side view of one packed 96-byte per-decal record.
type Decal struct {
	WorldToDecal  [12]float32 // 3x4 row-major world-to-decal transform.
	ApplyOnlyToID uint32
	Flags         uint32
	AngleFade     [2]float32 // packed as f16.
	BaseColor     [4]uint8   // RGBA8.
	Emissive      [4]float32 // RGBA, packed as two f16 pairs.
	BaseAtlasUV   [2]float32
	BaseAtlasWH   [2]float32
	NormalAtlasUV [2]float32
	NormalAtlasWH [2]float32
	ORMAtlasUV    [2]float32
	ORMAtlasWH    [2]float32
}

const decalRecordSize = 96

// Encode writes d's packed 96-byte GPU record into dst.
func (d Decal) Encode(dst []byte) {
	for i, v := range d.WorldToDecal {
		binary.LittleEndian.PutUint32(dst[i*4:i*4+4], math.Float32bits(v))
	}
	off := 48
	binary.LittleEndian.PutUint32(dst[off:off+4], d.ApplyOnlyToID)
	binary.LittleEndian.PutUint32(dst[off+4:off+8], d.Flags)
	binary.LittleEndian.PutUint32(dst[off+8:off+12], packF16Pair(d.AngleFade))
	binary.LittleEndian.PutUint32(dst[off+12:off+16],
		uint32(d.BaseColor[0])|uint32(d.BaseColor[1])<<8|uint32(d.BaseColor[2])<<16|uint32(d.BaseColor[3])<<24)
	binary.LittleEndian.PutUint32(dst[off+16:off+20], packF16Pair([2]float32{d.Emissive[0], d.Emissive[1]}))
	binary.LittleEndian.PutUint32(dst[off+20:off+24], packF16Pair([2]float32{d.Emissive[2], d.Emissive[3]}))
	binary.LittleEndian.PutUint32(dst[off+24:off+28], packF16Pair(d.BaseAtlasWH))
	binary.LittleEndian.PutUint32(dst[off+28:off+32], packF16Pair(d.BaseAtlasUV))
	binary.LittleEndian.PutUint32(dst[off+32:off+36], packF16Pair(d.NormalAtlasWH))
	binary.LittleEndian.PutUint32(dst[off+36:off+40], packF16Pair(d.NormalAtlasUV))
	binary.LittleEndian.PutUint32(dst[off+40:off+44], packF16Pair(d.ORMAtlasWH))
	binary.LittleEndian.PutUint32(dst[off+44:off+48], packF16Pair(d.ORMAtlasUV))
}

// ProbeShape selects a reflection probe's influence volume.
type ProbeShape int

const (
	ProbeSphere ProbeShape = iota
	ProbeBox
)

// Probe is the host-side view of one packed 160-byte reflection-probe
// record.
type Probe struct {
	WorldToProbe        [16]float32 // 4x4 row-major.
	Shape               ProbeShape
	Falloff             float32
	InfluenceBlendShift float32
	InfluenceBlendScale float32
	AtlasIndex          uint32
}

const probeRecordSize = 160

// Encode writes p's packed 160-byte GPU record into dst.
func (p Probe) Encode(dst []byte) {
	for i, v := range p.WorldToProbe {
		binary.LittleEndian.PutUint32(dst[i*4:i*4+4], math.Float32bits(v))
	}
	off := 64
	binary.LittleEndian.PutUint32(dst[off:off+4], uint32(p.Shape))
	binary.LittleEndian.PutUint32(dst[off+4:off+8], math.Float32bits(p.Falloff))
	binary.LittleEndian.PutUint32(dst[off+8:off+12], math.Float32bits(p.InfluenceBlendShift))
	binary.LittleEndian.PutUint32(dst[off+12:off+16], math.Float32bits(p.InfluenceBlendScale))
	binary.LittleEndian.PutUint32(dst[off+16:off+20], p.AtlasIndex)
	// Remaining bytes up to 160 are reserved padding, left zeroed.
}
