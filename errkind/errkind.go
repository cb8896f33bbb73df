// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package errkind classifies the fallible outcomes shared by every
// subsystem in this module: loaders, the plugin manager, the file-serve
// protocol and the world all report failures using the same small set
// of kinds instead of ad hoc sentinel errors.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is one of the error classes every subsystem propagates.
type Kind int

const (
	NotFound  Kind = iota // handle/path/resource absent.
	Invalid               // malformed input.
	Conflict              // duplicate registration, dependency cycle.
	Timeout               // network or subprocess wait exceeded.
	IO                    // underlying file/socket/subprocess failure.
	Cancelled             // operation aborted before completion.
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Invalid:
		return "invalid"
	case Conflict:
		return "conflict"
	case Timeout:
		return "timeout"
	case IO:
		return "io"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and the component that
// raised it, so callers can classify failures with errors.As without
// string matching.
type Error struct {
	Kind   Kind
	Source string // subsystem name, eg "vfs", "plugin", "exprvm".
	Msg    string
	Err    error // optional wrapped cause.
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Source, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, source, msg string) *Error {
	return &Error{Kind: kind, Source: source, Msg: msg}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, source, msg string, err error) *Error {
	return &Error{Kind: kind, Source: source, Msg: msg, Err: err}
}

// Is reports whether err was produced with the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
