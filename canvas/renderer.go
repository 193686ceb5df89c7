// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package canvas

import (
	"fmt"

	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/internal/logging"
	"github.com/gogpu/shaderlab/shader"
)

// Uniform names set by every render.
const (
	UniformResolution = "u_resolution"
	UniformMouse      = "u_mouse"
)

// quad holds two triangles covering clip space, two floats per vertex.
var quad = [12]float32{
	-1, -1, 1, -1, -1, 1,
	-1, 1, 1, -1, 1, 1,
}

// Renderer draws programs onto canvases.
type Renderer struct {
	pointer [2]float32
	clear   backend.Color
}

// RenderOption configures a Renderer.
type RenderOption func(*Renderer)

// WithPointer sets the normalized pointer position passed as u_mouse.
func WithPointer(x, y float32) RenderOption {
	return func(r *Renderer) {
		r.pointer = [2]float32{x, y}
	}
}

// WithClearColor sets the color the surface is cleared to before drawing.
// The default is transparent black.
func WithClearColor(c backend.Color) RenderOption {
	return func(r *Renderer) {
		r.clear = c
	}
}

// NewRenderer returns a renderer with the pointer at the center.
func NewRenderer(opts ...RenderOption) *Renderer {
	r := &Renderer{pointer: [2]float32{0.5, 0.5}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPointer moves the pointer for later renders.
func (r *Renderer) SetPointer(x, y float32) {
	r.pointer = [2]float32{x, y}
}

// Pointer returns the normalized pointer position.
func (r *Renderer) Pointer() (x, y float32) {
	return r.pointer[0], r.pointer[1]
}

// Show compiles fragmentSource against the full-viewport vertex shader and
// renders it. On success the previously shown program is released. On any
// failure the previous program and its frame stay in place.
func (r *Renderer) Show(c *Canvas, fragmentSource string) error {
	dev := c.Context()
	if dev == nil {
		return c.unsupported()
	}
	p, err := shader.NewCompiler(dev).CompileFragment(fragmentSource)
	if err != nil {
		return err
	}
	if err := r.Render(c, p, c.Resolution()); err != nil {
		p.Release()
		return err
	}
	if c.program != nil {
		c.program.Release()
	}
	c.program = p
	return nil
}

// Render draws p over the whole surface of c in one draw call.
//
// A fresh vertex buffer is created for every render and deleted after the
// draw. Uniforms the program does not declare are skipped rather than
// reported, so shaders that ignore u_resolution or u_mouse still render.
func (r *Renderer) Render(c *Canvas, p *shader.Program, res Resolution) error {
	dev := c.Context()
	if dev == nil {
		return c.unsupported()
	}
	if p.Released() {
		return &RenderError{Kind: DrawFailed, Err: ErrNoProgram}
	}
	log := logging.Logger()

	buf, err := dev.CreateBuffer()
	if err != nil {
		return &RenderError{Kind: DrawFailed, Err: fmt.Errorf("create buffer: %w", err)}
	}
	defer dev.DeleteBuffer(buf)

	if err := dev.UseProgram(p.Handle()); err != nil {
		return &RenderError{Kind: DrawFailed, Err: err}
	}
	loc := dev.AttribLocation(p.Handle(), shader.PositionAttribute)
	if !loc.Found() {
		return &RenderError{
			Kind: MissingAttribute,
			Err:  fmt.Errorf("%w: %s", backend.ErrMissingAttribute, shader.PositionAttribute),
		}
	}
	if err := dev.BufferData(buf, quad[:]); err != nil {
		return &RenderError{Kind: DrawFailed, Err: err}
	}
	if err := dev.VertexAttribPointer(loc, buf, 2); err != nil {
		return &RenderError{Kind: DrawFailed, Err: err}
	}
	log.Debug("canvas: quad uploaded", "floats", len(quad))

	r.uniform(dev, p, UniformResolution, float32(res.Width), float32(res.Height))
	r.uniform(dev, p, UniformMouse, r.pointer[0], r.pointer[1])

	s := c.Surface()
	dev.Viewport(0, 0, s.Width(), s.Height())
	dev.ClearColor(r.clear)
	dev.Clear()
	if err := dev.DrawArrays(backend.Triangles, 0, len(quad)/2); err != nil {
		return &RenderError{Kind: DrawFailed, Err: err}
	}
	return nil
}

// uniform sets a uniform when the program declares it. A declared uniform of
// another type is left unset, like a GL uniform call with mismatched type.
func (r *Renderer) uniform(dev backend.Device, p *shader.Program, name string, v ...float32) {
	err := dev.Uniform(dev.UniformLocation(p.Handle(), name), v...)
	if err != nil {
		logging.Logger().Debug("canvas: uniform skipped", "name", name, "err", err)
	}
}
