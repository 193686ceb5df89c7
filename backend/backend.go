// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrInvalidHandle is returned when a shader, program or buffer handle
	// is unknown to the device (never created, or already deleted).
	ErrInvalidHandle = errors.New("backend: invalid handle")

	// ErrNoProgram is returned by uniform and draw calls when no linked
	// program is in use.
	ErrNoProgram = errors.New("backend: no program in use")

	// ErrNotLinked is returned when an unlinked program is used.
	ErrNotLinked = errors.New("backend: program not linked")

	// ErrMissingAttribute is returned by DrawArrays when a vertex input of
	// the program has no enabled buffer.
	ErrMissingAttribute = errors.New("backend: vertex attribute not bound")

	// ErrUniformType is returned when a uniform is set with the wrong
	// number of components.
	ErrUniformType = errors.New("backend: uniform type mismatch")

	// ErrDestroyed is returned when a destroyed device is used.
	ErrDestroyed = errors.New("backend: device destroyed")
)

// Stage identifies a programmable pipeline stage.
type Stage uint8

const (
	// StageVertex is the per-vertex stage.
	StageVertex Stage = iota
	// StageFragment is the per-pixel stage.
	StageFragment
)

// String returns the lowercase stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// Shader is a device-owned shader object. Zero is never a valid handle.
type Shader uint32

// Program is a device-owned program object. Zero is never a valid handle.
type Program uint32

// Buffer is a device-owned vertex buffer. Zero is never a valid handle.
type Buffer uint32

// Location addresses a vertex attribute or a uniform of a linked program.
// NoLocation means "not found".
type Location int32

// NoLocation is returned by lookups that found nothing.
const NoLocation Location = -1

// Found reports whether l refers to an attribute or uniform.
func (l Location) Found() bool { return l >= 0 }

// Topology selects how DrawArrays assembles vertices.
type Topology uint8

const (
	// Triangles draws independent triangles from each 3 vertices.
	Triangles Topology = iota
	// TriangleStrip draws a strip where each vertex after the second adds a triangle.
	TriangleStrip
)

// Color is a clear color with straight float components in [0, 1].
type Color struct {
	R, G, B, A float32
}

// Stats reports the live objects of a device.
type Stats struct {
	// Shaders is the number of shader objects not yet deleted.
	Shaders int
	// Programs is the number of program objects not yet deleted.
	Programs int
	// Buffers is the number of buffers not yet deleted.
	Buffers int
	// DrawCalls counts DrawArrays calls that reached the rasterizer.
	DrawCalls uint64
}

// Live returns the total number of live shader, program and buffer objects.
func (s Stats) Live() int {
	return s.Shaders + s.Programs + s.Buffers
}

// Device is the graphics context that a canvas exposes.
//
// The call sequence mirrors a GL context: shaders are created, compiled and
// attached to a program, the program is linked and put in use, vertex data
// is uploaded and bound to attribute locations, uniforms are set, and a
// draw call rasterizes into the device's target surface.
//
// Shader sources are WGSL. Each shader source must contain an entry point
// for its stage.
//
// A Device is NOT thread-safe. Each device should be used from a single
// goroutine, or external synchronization must be used.
type Device interface {
	// Name returns the backend identifier (e.g., "software", "wgpu").
	Name() string

	// CreateShader allocates an empty shader object for the given stage.
	CreateShader(stage Stage) (Shader, error)

	// CompileShader compiles source into the shader and reports success.
	// On failure the diagnostic is available from ShaderInfoLog.
	CompileShader(sh Shader, source string) bool

	// ShaderInfoLog returns the diagnostic text of the last compile.
	ShaderInfoLog(sh Shader) string

	// DeleteShader releases a shader. Deleting an unknown handle is a no-op.
	DeleteShader(sh Shader)

	// CreateProgram allocates an empty program object.
	CreateProgram() (Program, error)

	// AttachShader attaches a compiled shader to a program.
	AttachShader(p Program, sh Shader) error

	// DetachShader detaches a shader from a program.
	DetachShader(p Program, sh Shader)

	// LinkProgram links the attached stages and reports success.
	// On failure the diagnostic is available from ProgramInfoLog.
	LinkProgram(p Program) bool

	// ProgramInfoLog returns the diagnostic text of the last link.
	ProgramInfoLog(p Program) string

	// DeleteProgram releases a program. Deleting an unknown handle is a no-op.
	DeleteProgram(p Program)

	// UseProgram makes a linked program current for uniform and draw calls.
	UseProgram(p Program) error

	// CreateBuffer allocates an empty vertex buffer.
	CreateBuffer() (Buffer, error)

	// BufferData uploads vertex data, replacing any previous contents.
	BufferData(b Buffer, data []float32) error

	// DeleteBuffer releases a buffer. Deleting an unknown handle is a no-op.
	DeleteBuffer(b Buffer)

	// AttribLocation looks up a vertex input by name.
	AttribLocation(p Program, name string) Location

	// VertexAttribPointer enables the attribute at loc and sources it from
	// b, reading size tightly packed float32 components per vertex.
	VertexAttribPointer(loc Location, b Buffer, size int) error

	// UniformLocation looks up a uniform by name.
	UniformLocation(p Program, name string) Location

	// Uniform sets float components of a uniform of the current program.
	Uniform(loc Location, v ...float32) error

	// Viewport sets the rectangle, in surface pixels with a top-left origin,
	// that normalized device coordinates map onto.
	Viewport(x, y, width, height int)

	// ClearColor sets the color used by Clear.
	ClearColor(c Color)

	// Clear fills the target surface with the clear color immediately.
	Clear()

	// DrawArrays rasterizes count vertices starting at first with the
	// current program. The target surface is updated only when the whole
	// draw succeeds.
	DrawArrays(mode Topology, first, count int) error

	// Stats reports the live objects of the device.
	Stats() Stats

	// Destroy releases every object the device still owns.
	Destroy()
}
