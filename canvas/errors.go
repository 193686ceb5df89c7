// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package canvas

import (
	"errors"
	"fmt"
)

// Errors carried by RenderError.
var (
	// ErrUnsupported means the canvas has no graphics context.
	ErrUnsupported = errors.New("graphics context not supported")

	// ErrNoProgram means a render was requested without a live program.
	ErrNoProgram = errors.New("canvas: no program")
)

// ErrorKind classifies a render failure.
type ErrorKind uint8

const (
	// UnsupportedContext means no device could be opened for the canvas.
	UnsupportedContext ErrorKind = iota + 1
	// MissingAttribute means the program has no a_position input.
	MissingAttribute
	// DrawFailed means the device rejected a call of the render sequence.
	DrawFailed
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case UnsupportedContext:
		return "UnsupportedContext"
	case MissingAttribute:
		return "MissingAttribute"
	case DrawFailed:
		return "DrawFailed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// RenderError reports why a render did not reach the surface.
type RenderError struct {
	Kind ErrorKind
	Err  error
}

func (e *RenderError) Error() string {
	switch e.Kind {
	case UnsupportedContext:
		return ErrUnsupported.Error()
	case MissingAttribute:
		return fmt.Sprintf("canvas: missing attribute: %v", e.Err)
	default:
		return fmt.Sprintf("canvas: draw failed: %v", e.Err)
	}
}

func (e *RenderError) Unwrap() error { return e.Err }
