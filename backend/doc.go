// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend defines the graphics context that shader programs run on.
//
// A Device is a small GL-shaped context bound to one surface: it compiles
// WGSL shaders, links programs, owns vertex buffers, resolves attribute and
// uniform locations, and rasterizes draw calls into its surface.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime:
//
//	import _ "github.com/gogpu/shaderlab/backend/software"
//
// # Backend Selection
//
// Use OpenDefault to get the best available backend, or Open to request a
// specific backend by name:
//
//	dev, err := backend.OpenDefault(target)
//
//	// Or request a specific backend
//	dev, err := backend.Open("software", target)
//
// # Available Backends
//
//   - "software": CPU rasterizer that interprets the naga IR (always available)
//   - "wgpu": GPU rendering via gogpu/wgpu hal (needs a Vulkan adapter)
package backend
