// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderlab

import (
	"github.com/gogpu/shaderlab/canvas"
	"github.com/gogpu/shaderlab/generate"
)

// Option configures a Session during creation.
//
// Example:
//
//	// Default: software or GPU device, local generation service
//	s := shaderlab.NewSession()
//
//	// Remote service and a smaller canvas
//	s := shaderlab.NewSession(
//		shaderlab.WithClient(generate.NewClient(generate.WithBaseURL(url))),
//		shaderlab.WithCanvasOptions(canvas.WithSize(256, 256)),
//	)
type Option func(*options)

type options struct {
	client     *generate.Client
	canvas     *canvas.Canvas
	canvasOpts []canvas.Option
	renderer   *canvas.Renderer
}

// WithClient sets the generation service client.
func WithClient(c *generate.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithCanvas makes the session draw on an existing canvas. The session
// takes ownership and closes it in Close.
func WithCanvas(c *canvas.Canvas) Option {
	return func(o *options) {
		o.canvas = c
	}
}

// WithCanvasOptions configures the canvas the session creates. It is
// ignored when WithCanvas is given.
func WithCanvasOptions(opts ...canvas.Option) Option {
	return func(o *options) {
		o.canvasOpts = append(o.canvasOpts, opts...)
	}
}

// WithRenderer sets the renderer, for example one with a live pointer.
func WithRenderer(r *canvas.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}
