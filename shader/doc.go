// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles and links shader programs on a backend device.
//
// A Compiler wraps one device. Compile builds each stage in turn, vertex
// first, and links them into a Program. Every failure path deletes the
// objects created so far, so a failed compile never leaves shaders or
// programs alive on the device.
//
// # Usage
//
//	c := shader.NewCompiler(dev)
//	p, err := c.CompileFragment(src)
//	if err != nil {
//		var cerr *shader.CompileError
//		if errors.As(err, &cerr) {
//			fmt.Println(cerr.Stage, cerr.Log)
//		}
//		return err
//	}
//	defer p.Release()
//
// Sources are WGSL. QuadVertexSource is the full-viewport vertex stage used
// for fragment-only programs; it reads two float components per vertex from
// the attribute named PositionAttribute.
//
// ExportGLSL translates a single WGSL stage to GLSL ES 3.00 for WebGL 2.
package shader
