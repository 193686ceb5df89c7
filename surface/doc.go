// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides the pixel targets that shader programs render into.
//
// A Surface is a fixed-size RGBA pixel buffer. It knows nothing about
// shaders: a backend device draws into an off-screen frame and hands the
// finished frame to Present, so a surface only ever shows complete frames.
//
// # Surface Types
//
//   - ImageSurface: CPU memory backed by *image.RGBA (the default)
//
// # Usage
//
//	s := surface.NewImageSurface(400, 400)
//	defer s.Close()
//
//	s.Clear(color.Transparent)
//	img := s.Snapshot()
package surface
