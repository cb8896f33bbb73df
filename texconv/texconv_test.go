// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package texconv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forgelogic/core/errkind"
)

func TestValidateRejectsTooManyInputs(t *testing.T) {
	opts := Options{
		Inputs:     []Input{{Path: "a"}, {Path: "b"}, {Path: "c"}, {Path: "d"}, {Path: "e"}},
		OutputPath: "out.png",
	}
	if err := opts.validate(); !errkind.Is(err, errkind.Invalid) {
		t.Fatalf("expected Invalid error for 5 inputs, got %v", err)
	}
}

func TestValidateRejectsMissingOutput(t *testing.T) {
	opts := Options{Inputs: []Input{{Path: "a"}}}
	if err := opts.validate(); !errkind.Is(err, errkind.Invalid) {
		t.Fatalf("expected Invalid error for missing output, got %v", err)
	}
}

func TestArgsIncludeAllInputsAndMappings(t *testing.T) {
	opts := Options{
		Inputs:       []Input{{Path: "albedo.png"}, {Path: "normal.png"}},
		ChannelExprs: []string{"r=in0.r", "a=in1.g"},
		Container:    DDS,
		Compression:  CompressHigh,
		MipFilter:    MipKaiser,
		Usage:        UsageLinear,
		OutputPath:   "out.dds",
	}
	args := opts.args("texconv")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-i albedo.png", "-i normal.png", "-map r=in0.r", "-map a=in1.g", "-container dds", "-compression high", "-mipfilter kaiser", "-usage linear", "-o out.dds"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

type recordingDiag struct {
	lines []string
}

func (r *recordingDiag) Line(stream, text string) {
	r.lines = append(r.lines, stream+": "+text)
}

func TestConvertReportsNonZeroExit(t *testing.T) {
	// "false" ignores all arguments and always exits 1, so this
	// exercises the exit-code/error-wrapping path without depending on
	// any particular flag syntax.
	d := NewDriver("false", nil)
	d.Timeout = 2 * time.Second
	opts := Options{Inputs: []Input{{Path: "a"}}, OutputPath: "out.png"}

	diag := &recordingDiag{}
	res, err := d.Convert(context.Background(), opts, diag)
	if err == nil {
		t.Fatal("expected false to exit non-zero")
	}
	if res.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", res.ExitCode)
	}
}

func TestConvertSucceedsOnZeroExit(t *testing.T) {
	// "true" likewise ignores all arguments and always exits 0.
	d := NewDriver("true", nil)
	d.Timeout = 2 * time.Second
	opts := Options{Inputs: []Input{{Path: "a"}}, OutputPath: "out.png"}

	if _, err := d.Convert(context.Background(), opts, nil); err != nil {
		t.Fatalf("Convert: %v", err)
	}
}

func TestConvertRespectsTimeout(t *testing.T) {
	// A shell script that ignores its arguments and sleeps runs until
	// killed whatever texconv-shaped flags it is given, so it exercises
	// the timeout path honestly.
	script := filepath.Join(t.TempDir(), "slow-converter")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 10\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	d := NewDriver(script, nil)
	d.Timeout = 50 * time.Millisecond
	opts := Options{Inputs: []Input{{Path: "a"}}, OutputPath: "out.png"}

	start := time.Now()
	_, err := d.Convert(context.Background(), opts, nil)
	elapsed := time.Since(start)

	if !errkind.Is(err, errkind.Timeout) {
		t.Fatalf("expected Timeout error, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("Convert took %v, expected to return promptly after timeout", elapsed)
	}
}
