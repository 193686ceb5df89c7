// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"image"
	"image/color"
)

// DefaultSize is the edge length of the canvas used by the shader lab.
const DefaultSize = 400

// Surface errors.
var (
	// ErrClosed is returned when a closed surface is used.
	ErrClosed = errors.New("surface: closed")

	// ErrSizeMismatch is returned when a presented frame does not match the surface size.
	ErrSizeMismatch = errors.New("surface: frame size mismatch")
)

// Surface is a fixed-size render target.
//
// Surfaces are NOT thread-safe. Each surface should be used from a single
// goroutine, or external synchronization must be used.
type Surface interface {
	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int

	// Clear fills the entire surface with the given color.
	Clear(c color.Color)

	// Present replaces the surface contents with a finished frame.
	// The frame must have the surface dimensions.
	Present(frame *image.RGBA) error

	// Snapshot returns a copy of the current surface contents.
	Snapshot() *image.RGBA

	// Close releases the pixel memory. Close is idempotent.
	Close() error
}
