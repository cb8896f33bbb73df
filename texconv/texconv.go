// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package texconv drives an external texture-conversion subprocess:
// building its argument list from a typed option set, collating its
// stdout/stderr without blocking the conversion, and enforcing a
// per-invocation timeout.
package texconv

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/forgelogic/core/errkind"
)

// Container is the target file format of a conversion.
type Container int

const (
	PNG Container = iota
	DDS
	TGA
)

func (c Container) String() string {
	switch c {
	case PNG:
		return "png"
	case DDS:
		return "dds"
	case TGA:
		return "tga"
	default:
		return "unknown"
	}
}

// Compression selects the target compression level.
type Compression int

const (
	CompressNone Compression = iota
	CompressMedium
	CompressHigh
)

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressMedium:
		return "medium"
	case CompressHigh:
		return "high"
	default:
		return "none"
	}
}

// MipFilter selects how mipmaps are generated.
type MipFilter int

const (
	MipNone MipFilter = iota
	MipLinear
	MipKaiser
)

func (f MipFilter) String() string {
	switch f {
	case MipNone:
		return "none"
	case MipLinear:
		return "linear"
	case MipKaiser:
		return "kaiser"
	default:
		return "none"
	}
}

// Usage tells the converter whether input samples are color data
// (gamma-encoded) or already linear (e.g. normal maps, masks).
type Usage int

const (
	UsageColor Usage = iota
	UsageLinear
)

func (u Usage) String() string {
	if u == UsageLinear {
		return "linear"
	}
	return "color"
}

// maxInputs bounds the channel-mapping inputs a single conversion may
// read from.
const maxInputs = 4

// Input is one source image feeding a channel-mapping expression.
type Input struct {
	Path string
}

// Options describes one texture-conversion invocation. ChannelExprs,
// when non-empty, maps output RGBA channels from arbitrary expressions
// over the inputs (e.g. "r=in0.r", "g=in1.g", "a=1").
type Options struct {
	Inputs        []Input
	ChannelExprs  []string
	Container     Container
	Compression   Compression
	MipFilter     MipFilter
	Usage         Usage
	MaxResolution int
	OutputPath    string
}

func (o Options) validate() error {
	if len(o.Inputs) == 0 {
		return errkind.New(errkind.Invalid, "texconv", "at least one input required")
	}
	if len(o.Inputs) > maxInputs {
		return errkind.New(errkind.Invalid, "texconv", fmt.Sprintf("at most %d inputs allowed, got %d", maxInputs, len(o.Inputs)))
	}
	if o.OutputPath == "" {
		return errkind.New(errkind.Invalid, "texconv", "output path required")
	}
	return nil
}

// args renders o into the external converter's command-line argument
// list.
func (o Options) args(binary string) []string {
	a := make([]string, 0, 16)
	for _, in := range o.Inputs {
		a = append(a, "-i", in.Path)
	}
	for _, expr := range o.ChannelExprs {
		a = append(a, "-map", expr)
	}
	a = append(a,
		"-container", o.Container.String(),
		"-compression", o.Compression.String(),
		"-mipfilter", o.MipFilter.String(),
		"-usage", o.Usage.String(),
	)
	if o.MaxResolution > 0 {
		a = append(a, "-maxres", fmt.Sprint(o.MaxResolution))
	}
	a = append(a, "-o", o.OutputPath)
	return a
}

// Result summarizes one completed (or failed) conversion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Diagnostics receives the subprocess's output as it streams, one line
// at a time, tagged by stream. A nil Diagnostics still collects
// Result.Stdout/Stderr, it just skips the live callback.
type Diagnostics interface {
	Line(stream string, text string)
}

// Driver invokes an external texture-conversion executable.
type Driver struct {
	Binary  string
	Timeout time.Duration
	Log     *slog.Logger
}

// NewDriver creates a Driver invoking binary, with a default 30s
// per-invocation timeout.
func NewDriver(binary string, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{Binary: binary, Timeout: 30 * time.Second, Log: log}
}

// Convert runs one conversion to completion, enforcing d.Timeout. The
// subprocess is killed if it outlives the timeout or ctx is cancelled
// rather than left hanging. On timeout Convert returns an
// errkind.Timeout error; on cancellation of ctx it returns the
// errkind.IO error for the killed subprocess's exit.
func (d *Driver) Convert(ctx context.Context, opts Options, diag Diagnostics) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.Binary, opts.args(d.Binary)...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, errkind.Wrap(errkind.IO, "texconv", "open stdout pipe", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, errkind.Wrap(errkind.IO, "texconv", "open stderr pipe", err)
	}

	setProcessGroup(cmd)
	cmd.Cancel = func() error { return terminateGroup(cmd) }
	if err := cmd.Start(); err != nil {
		return Result{}, errkind.Wrap(errkind.IO, "texconv", "start subprocess", err)
	}
	registerProcess(cmd)
	defer releaseProcess(cmd)

	var stdout, stderr collector
	done := make(chan struct{}, 2)
	go stdout.drain(stdoutPipe, "stdout", diag, done)
	go stderr.drain(stderrPipe, "stderr", diag, done)
	<-done
	<-done

	waitErr := cmd.Wait()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runCtx.Err() == context.DeadlineExceeded {
		d.Log.Warn("texconv: invocation timed out", "binary", d.Binary, "timeout", timeout)
		return res, errkind.New(errkind.Timeout, "texconv", "conversion exceeded timeout")
	}
	if waitErr != nil {
		d.Log.Warn("texconv: subprocess exited non-zero", "binary", d.Binary, "exit_code", res.ExitCode, "stderr", res.Stderr)
		return res, errkind.Wrap(errkind.IO, "texconv", fmt.Sprintf("conversion failed with exit code %d", res.ExitCode), waitErr)
	}
	return res, nil
}

// collector buffers a pipe's output line by line, forwarding each line
// to Diagnostics without blocking the subprocess's write side.
type collector struct {
	lines []string
}

func (c *collector) drain(r io.Reader, stream string, diag Diagnostics, done chan<- struct{}) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		c.lines = append(c.lines, line)
		if diag != nil {
			diag.Line(stream, line)
		}
	}
	done <- struct{}{}
}

func (c *collector) String() string {
	out := ""
	for i, l := range c.lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
