// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"

	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/internal/logging"
)

// PositionAttribute is the vertex input read by QuadVertexSource.
const PositionAttribute = "a_position"

// QuadVertexSource passes two-component clip-space positions straight
// through. Two triangles over [-1, 1]² cover the whole viewport.
const QuadVertexSource = `
@vertex
fn vs_main(@location(0) a_position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(a_position, 0.0, 1.0);
}
`

// Compiler builds programs on one device.
type Compiler struct {
	device backend.Device
}

// NewCompiler returns a compiler for device. A nil device is allowed;
// every compile then fails with ErrNoDevice.
func NewCompiler(device backend.Device) *Compiler {
	return &Compiler{device: device}
}

// Device returns the device programs are built on.
func (c *Compiler) Device() backend.Device { return c.device }

// CompileFragment compiles fragmentSource against QuadVertexSource.
func (c *Compiler) CompileFragment(fragmentSource string) (*Program, error) {
	return c.Compile(QuadVertexSource, fragmentSource)
}

// Compile compiles both stages and links them into a program.
//
// A stage failure returns a *CompileError for that stage and a link failure
// returns one with StageLink. No device objects survive a failure.
func (c *Compiler) Compile(vertexSource, fragmentSource string) (*Program, error) {
	if c.device == nil {
		return nil, ErrNoDevice
	}
	d := c.device

	vs, err := c.compileStage(StageVertex, vertexSource)
	if err != nil {
		return nil, err
	}
	fs, err := c.compileStage(StageFragment, fragmentSource)
	if err != nil {
		d.DeleteShader(vs)
		return nil, err
	}

	p, err := d.CreateProgram()
	if err != nil {
		d.DeleteShader(vs)
		d.DeleteShader(fs)
		return nil, fmt.Errorf("shader: create program: %w", err)
	}
	for _, sh := range []backend.Shader{vs, fs} {
		if err := d.AttachShader(p, sh); err != nil {
			d.DeleteProgram(p)
			d.DeleteShader(vs)
			d.DeleteShader(fs)
			return nil, fmt.Errorf("shader: attach: %w", err)
		}
	}

	if !d.LinkProgram(p) {
		log := d.ProgramInfoLog(p)
		d.DeleteProgram(p)
		d.DeleteShader(vs)
		d.DeleteShader(fs)
		logging.Logger().Debug("shader: link failed", "device", d.Name())
		return nil, &CompileError{Stage: StageLink, Log: log}
	}

	d.DetachShader(p, vs)
	d.DetachShader(p, fs)
	d.DeleteShader(vs)
	d.DeleteShader(fs)

	logging.Logger().Debug("shader: program linked", "device", d.Name(), "program", p)
	return &Program{device: d, handle: p}, nil
}

// compileStage creates and compiles one shader. The shader is deleted when
// compilation fails.
func (c *Compiler) compileStage(stage Stage, source string) (backend.Shader, error) {
	d := c.device
	sh, err := d.CreateShader(stage.backend())
	if err != nil {
		return 0, fmt.Errorf("shader: create %s shader: %w", stage, err)
	}
	if !d.CompileShader(sh, source) {
		log := d.ShaderInfoLog(sh)
		d.DeleteShader(sh)
		logging.Logger().Debug("shader: compile failed", "stage", stage.String(), "device", d.Name())
		return 0, &CompileError{Stage: stage, Log: log}
	}
	return sh, nil
}

// Program is a linked program owned by a device.
type Program struct {
	device   backend.Device
	handle   backend.Program
	released bool
}

// Handle returns the device handle of the program.
func (p *Program) Handle() backend.Program { return p.handle }

// Device returns the device that owns the program.
func (p *Program) Device() backend.Device { return p.device }

// Released reports whether Release has been called.
func (p *Program) Released() bool { return p == nil || p.released }

// Release deletes the program on its device. Calling it again is a no-op.
func (p *Program) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true
	p.device.DeleteProgram(p.handle)
}
