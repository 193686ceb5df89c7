// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu provides a GPU device for shaderlab built on gogpu/wgpu.
//
// The device talks to the hardware abstraction layer (hal) directly. Each
// WGSL stage is parsed and validated with naga, translated to SPIR-V and
// loaded as a hal shader module. A linked program owns one render pipeline
// per vertex buffer layout it has been drawn with.
//
// # Rendering
//
// Every DrawArrays call renders into an offscreen RGBA8 texture:
//
//  1. The current surface contents are uploaded, so Clear and earlier
//     draws are preserved (load op Load).
//  2. Uniform buffers are written from the values set on the program.
//  3. One render pass issues the draw with the program's pipeline.
//  4. The texture is copied into a staging buffer and read back.
//  5. The frame is presented to the target surface.
//
// A frame is presented only when every step succeeds.
//
// # Device selection
//
// Open creates its own Vulkan instance and picks a discrete or integrated
// adapter. FromProvider attaches to a device owned by the host application
// through gpucontext; the host must also expose its hal device and queue.
//
// Importing this package registers the "wgpu" backend:
//
//	import _ "github.com/gogpu/shaderlab/backend/wgpu"
//
// # Limitations
//
// Vertex inputs must be f32 scalars or vectors, since vertex buffers hold
// float32 data. Uniforms must live in uniform address space buffers.
package wgpu
