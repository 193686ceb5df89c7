// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ImageSurface is a CPU-memory surface backed by an *image.RGBA.
//
// Pixels are stored exactly as the fragment stage wrote them, so the alpha
// channel is interpreted as premultiplied, like a WebGL canvas.
//
// Example:
//
//	s := surface.NewImageSurface(400, 400)
//	defer s.Close()
//
//	s.Clear(color.Transparent)
//	img := s.Snapshot()
type ImageSurface struct {
	width  int
	height int
	img    *image.RGBA

	// generation counts presented frames
	generation uint64

	closed bool
}

// NewImageSurface creates a surface with the given dimensions.
// Non-positive dimensions are clamped to 1.
func NewImageSurface(width, height int) *ImageSurface {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	return &ImageSurface{
		width:  width,
		height: height,
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// NewImageSurfaceFromImage creates a surface backed by an existing image.
// The surface renders into the provided image directly.
func NewImageSurfaceFromImage(img *image.RGBA) *ImageSurface {
	b := img.Bounds()
	return &ImageSurface{
		width:  b.Dx(),
		height: b.Dy(),
		img:    img,
	}
}

// Width returns the surface width.
func (s *ImageSurface) Width() int {
	return s.width
}

// Height returns the surface height.
func (s *ImageSurface) Height() int {
	return s.height
}

// Bounds returns the surface rectangle with its origin at (0, 0).
func (s *ImageSurface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// Clear fills the entire surface with the given color.
func (s *ImageSurface) Clear(c color.Color) {
	if s.closed {
		return
	}
	r, g, b, a := c.RGBA()
	//nolint:gosec // G115: r>>8 is always in [0, 255]
	rgba := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
	draw.Draw(s.img, s.img.Bounds(), &image.Uniform{C: rgba}, image.Point{}, draw.Src)
}

// Present copies a finished frame onto the surface.
func (s *ImageSurface) Present(frame *image.RGBA) error {
	if s.closed {
		return ErrClosed
	}
	if frame == nil || frame.Bounds().Dx() != s.width || frame.Bounds().Dy() != s.height {
		return fmt.Errorf("%w: got %v, want %dx%d", ErrSizeMismatch, boundsOf(frame), s.width, s.height)
	}
	rowBytes := s.width * 4
	minX, minY := frame.Rect.Min.X, frame.Rect.Min.Y
	for y := 0; y < s.height; y++ {
		so := frame.PixOffset(minX, minY+y)
		do := s.img.PixOffset(s.img.Rect.Min.X, s.img.Rect.Min.Y+y)
		copy(s.img.Pix[do:do+rowBytes], frame.Pix[so:so+rowBytes])
	}
	s.generation++
	return nil
}

// Generation returns the number of frames presented so far.
func (s *ImageSurface) Generation() uint64 {
	return s.generation
}

// Snapshot returns a copy of the current surface contents.
func (s *ImageSurface) Snapshot() *image.RGBA {
	if s.closed {
		return nil
	}
	result := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.Draw(result, result.Bounds(), s.img, s.img.Bounds().Min, draw.Src)
	return result
}

// Image returns the underlying image.RGBA.
// This is a direct reference, not a copy.
func (s *ImageSurface) Image() *image.RGBA {
	return s.img
}

// Close releases resources associated with the surface.
func (s *ImageSurface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.img = nil
	return nil
}

func boundsOf(img *image.RGBA) image.Rectangle {
	if img == nil {
		return image.Rectangle{}
	}
	return img.Bounds()
}

// Compile-time interface check.
var _ Surface = (*ImageSurface)(nil)
