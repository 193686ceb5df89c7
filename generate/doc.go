// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package generate is the client of the shader generation service.
//
// The service turns a natural-language prompt into the source of a WGSL
// fragment shader:
//
//	POST {base}/generate-shader
//	Content-Type: application/json
//
//	{"prompt": "a red circle"}
//
// A successful reply carries {"shader": "..."}; a failed one carries
// {"error": "..."}. Every request is tagged with a fresh X-Request-ID.
//
//	c := generate.NewClient(generate.WithBaseURL("http://localhost:4000/api"))
//	src, err := c.Generate(ctx, "a red circle")
package generate
