// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package exprvm

import (
	"bytes"
	"math"
	"testing"
)

// buildScaleImage returns: out0 = in0 * 2.5
func buildScaleImage() *Image {
	return &Image{
		NumTempRegisters: 3,
		Inputs:           []Descriptor{{Name: "x", Type: Float}},
		Outputs:          []Descriptor{{Name: "y", Type: Float}},
		Code: []Instr{
			{Op: LoadF, Dst: 0, Slot: 0},
			{Op: MovF_C, Dst: 1, Const: math.Float32bits(2.5)},
			{Op: MulF, Dst: 2, A: 0, B: 1},
			{Op: StoreF, Slot: 0, A: 2},
		},
	}
}

func TestExecuteScale(t *testing.T) {
	img := buildScaleImage()
	vm := New(img, nil)
	in := Row{F: []float32{1.0, -2.0, 0.0}}
	out := Row{F: make([]float32, 3)}
	batch := &Batch{Inputs: []Row{in}, Outputs: []Row{out}}
	vm.Execute(batch)

	want := []float32{2.5, -5.0, 0.0}
	for i, w := range want {
		if batch.Outputs[0].F[i] != w {
			t.Fatalf("row %d: got %v want %v", i, batch.Outputs[0].F[i], w)
		}
	}
}

func TestDivIByZeroIsSentinelNotPanic(t *testing.T) {
	img := &Image{
		NumTempRegisters: 3,
		Inputs:           []Descriptor{{Name: "a", Type: Int}},
		Outputs:          []Descriptor{{Name: "b", Type: Int}},
		Code: []Instr{
			{Op: LoadI, Dst: 0, Slot: 0},
			{Op: MovI_C, Dst: 1, Const: 0},
			{Op: DivI, Dst: 2, A: 0, B: 1},
			{Op: StoreI, Slot: 0, A: 2},
		},
	}
	vm := New(img, nil)
	batch := &Batch{
		Inputs:  []Row{{I: []int32{7}}},
		Outputs: []Row{{I: make([]int32, 1)}},
	}
	vm.Execute(batch)
	if batch.Outputs[0].I[0] != 0 {
		t.Fatalf("expected sentinel 0, got %d", batch.Outputs[0].I[0])
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	img := buildScaleImage()
	var buf bytes.Buffer
	if err := Save(&buf, img); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if Disassemble(got) != Disassemble(img) {
		t.Fatalf("disassembly mismatch after round trip:\n--- want ---\n%s\n--- got ---\n%s", Disassemble(img), Disassemble(got))
	}
}

func TestDisassembleCountsInstructions(t *testing.T) {
	img := buildScaleImage()
	out := Disassemble(img)
	if !bytes.Contains([]byte(out), []byte("instructions: 4")) {
		t.Fatalf("expected 4 instructions in listing, got:\n%s", out)
	}
}

func TestLoadRejectsOldVersion(t *testing.T) {
	// A well-formed META tag carrying version 3, below the supported
	// minimum of 4.
	var buf bytes.Buffer
	buf.Write([]byte{4, 0, 0, 0})
	buf.WriteString("META")
	buf.Write([]byte{3, 0, 0, 0})
	_, err := Load(&buf)
	if err == nil {
		t.Fatal("expected error for MetaData version below minimum")
	}
}

func TestLoadRejectsMalformedStream(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("\x00\x00\x00\x04META")
	if _, err := Load(&buf); err == nil {
		t.Fatal("expected error for malformed stream")
	}
}
