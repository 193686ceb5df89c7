// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shaderlab turns natural-language prompts into rendered shaders.
//
// # Overview
//
// A prompt is sent to a shader generation service, which answers with the
// source of a WGSL fragment shader. The source is compiled against a fixed
// full-viewport vertex shader and drawn once onto a 400×400 canvas.
//
// # Quick Start
//
//	import "github.com/gogpu/shaderlab"
//
//	s := shaderlab.NewSession()
//	defer s.Close()
//
//	res, err := s.Generate(ctx, "a red circle")
//	if err != nil {
//		return err // network, service or superseded
//	}
//	if res.Err != nil {
//		fmt.Println(res.Shader) // the code is kept even when it fails to compile
//		return res.Err
//	}
//	img := s.Canvas().Surface().Snapshot()
//
// # Architecture
//
// The module is organized into:
//   - Root: Session, which coordinates generation and display
//   - generate: the HTTP client of the generation service
//   - shader: compiling and linking programs, GLSL export
//   - canvas: the surface, its graphics context and the render sequence
//   - backend: the Device interface and the backend registry
//   - backend/software: a CPU device that interprets shaders (always available)
//   - backend/wgpu: a GPU device built on gogpu/wgpu
//   - calc: the arithmetic expression evaluator
//
// # Devices
//
// Importing this package registers the software device. The GPU device is
// registered by importing backend/wgpu; when present it is preferred:
//
//	import _ "github.com/gogpu/shaderlab/backend/wgpu"
package shaderlab

// Version is the current version of the module.
const Version = "0.1.0"
