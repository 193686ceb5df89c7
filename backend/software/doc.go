// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software implements backend.Device on the CPU.
//
// Shaders are compiled with naga into IR and interpreted directly: values
// are float32 or 32-bit integers as in WGSL, loops are bounded, and
// out-of-range indices are clamped. Triangles are clipped in homogeneous
// space, mapped to the viewport and rasterized with the top-left fill
// rule. Fragments are shaded in parallel 64x64 tiles; shaders that take
// screen-space derivatives are shaded in 2x2 quads.
//
// Importing the package registers the "software" backend:
//
//	import _ "github.com/gogpu/shaderlab/backend/software"
//
// Textures, storage buffers and atomics are rejected at compile time with
// an info log entry.
package software
