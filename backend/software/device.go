// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/internal/handle"
	"github.com/gogpu/shaderlab/internal/logging"
	"github.com/gogpu/shaderlab/internal/parallel"
	"github.com/gogpu/shaderlab/surface"
)

func init() {
	backend.Register(backend.BackendSoftware, func(target *surface.ImageSurface) (backend.Device, error) {
		return New(target)
	})
}

// Device is a CPU implementation of backend.Device. It interprets the
// naga IR of each stage and rasterizes triangles in parallel tiles.
type Device struct {
	target *surface.ImageSurface
	pool   *parallel.WorkerPool

	shaders  handle.Table[*shader]
	programs handle.Table[*program]
	buffers  handle.Table[[]float32]

	current  backend.Program
	attribs  map[uint32]binding
	viewport image.Rectangle
	clear    backend.Color
	draws    uint64

	destroyed bool
}

// binding is the buffer enabled at an attribute location.
type binding struct {
	buffer backend.Buffer
	size   int
}

// Option configures a Device.
type Option func(*config)

type config struct {
	workers int
}

// WithWorkers sets the number of shading goroutines. Zero or a negative
// value uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// Ensure Device implements backend.Device.
var _ backend.Device = (*Device)(nil)

// New creates a software device rendering into target.
func New(target *surface.ImageSurface, opts ...Option) (*Device, error) {
	if target == nil {
		return nil, errors.New("software: nil target surface")
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	d := &Device{
		target:   target,
		pool:     parallel.NewWorkerPool(cfg.workers),
		attribs:  make(map[uint32]binding),
		viewport: target.Bounds(),
	}
	logging.Logger().Debug("software: device created",
		"width", target.Width(), "height", target.Height(), "workers", d.pool.Workers())
	return d, nil
}

// Name returns "software".
func (d *Device) Name() string { return backend.BackendSoftware }

// CreateShader allocates an empty shader object.
func (d *Device) CreateShader(stage backend.Stage) (backend.Shader, error) {
	if d.destroyed {
		return 0, backend.ErrDestroyed
	}
	if stage != backend.StageVertex && stage != backend.StageFragment {
		return 0, fmt.Errorf("software: unknown shader stage %v", stage)
	}
	return backend.Shader(d.shaders.Insert(&shader{stage: stage})), nil
}

// CompileShader compiles WGSL source for the shader's stage.
func (d *Device) CompileShader(sh backend.Shader, source string) bool {
	s, ok := d.shaders.Get(uint32(sh))
	if !ok || d.destroyed {
		return false
	}
	s.compiled, s.machine = nil, nil

	start := time.Now()
	compiled, m, err := compileShader(s.stage, source)
	if err != nil {
		s.log = errLog(err)
		logging.Logger().Debug("software: compile failed", "shader", sh, "stage", s.stage)
		return false
	}
	s.compiled, s.machine, s.log = compiled, m, ""
	logging.Logger().Debug("software: shader compiled",
		"shader", sh, "stage", s.stage, "derivatives", m.derivatives, "elapsed", time.Since(start))
	return true
}

// ShaderInfoLog returns the diagnostic of the last compile.
func (d *Device) ShaderInfoLog(sh backend.Shader) string {
	if s, ok := d.shaders.Get(uint32(sh)); ok {
		return s.log
	}
	return ""
}

// DeleteShader releases a shader. Programs linked from it keep working.
func (d *Device) DeleteShader(sh backend.Shader) {
	d.shaders.Remove(uint32(sh))
}

// CreateProgram allocates an empty program object.
func (d *Device) CreateProgram() (backend.Program, error) {
	if d.destroyed {
		return 0, backend.ErrDestroyed
	}
	p := &program{attached: make(map[backend.Stage]backend.Shader)}
	return backend.Program(d.programs.Insert(p)), nil
}

// AttachShader attaches sh to p, replacing a shader of the same stage.
func (d *Device) AttachShader(p backend.Program, sh backend.Shader) error {
	if d.destroyed {
		return backend.ErrDestroyed
	}
	prog, ok := d.programs.Get(uint32(p))
	if !ok {
		return fmt.Errorf("%w: program %d", backend.ErrInvalidHandle, p)
	}
	s, ok := d.shaders.Get(uint32(sh))
	if !ok {
		return fmt.Errorf("%w: shader %d", backend.ErrInvalidHandle, sh)
	}
	prog.attached[s.stage] = sh
	return nil
}

// DetachShader detaches sh from p.
func (d *Device) DetachShader(p backend.Program, sh backend.Shader) {
	prog, ok := d.programs.Get(uint32(p))
	if !ok {
		return
	}
	for stage, h := range prog.attached {
		if h == sh {
			delete(prog.attached, stage)
		}
	}
}

// LinkProgram links the attached vertex and fragment shaders.
func (d *Device) LinkProgram(p backend.Program) bool {
	prog, ok := d.programs.Get(uint32(p))
	if !ok || d.destroyed {
		return false
	}
	prog.linked = nil

	var stages [2]*shader
	for _, stage := range prog.attachedStages() {
		if s, ok := d.shaders.Get(uint32(prog.attached[stage])); ok {
			stages[stage] = s
		}
	}
	l, err := link(stages[backend.StageVertex], stages[backend.StageFragment])
	if err != nil {
		prog.log = errLog(err)
		logging.Logger().Debug("software: link failed", "program", p)
		return false
	}
	prog.linked, prog.log = l, ""
	logging.Logger().Debug("software: program linked", "program", p,
		"attributes", len(l.layout.Attributes), "varyings", len(l.layout.Varyings),
		"uniforms", len(l.layout.Uniforms))
	return true
}

// ProgramInfoLog returns the diagnostic of the last link.
func (d *Device) ProgramInfoLog(p backend.Program) string {
	if prog, ok := d.programs.Get(uint32(p)); ok {
		return prog.log
	}
	return ""
}

// DeleteProgram releases a program. Deleting the current program unbinds it.
func (d *Device) DeleteProgram(p backend.Program) {
	if _, ok := d.programs.Remove(uint32(p)); ok && d.current == p {
		d.current = 0
	}
}

// UseProgram makes p current. Zero unbinds the current program.
func (d *Device) UseProgram(p backend.Program) error {
	if d.destroyed {
		return backend.ErrDestroyed
	}
	if p == 0 {
		d.current = 0
		return nil
	}
	prog, ok := d.programs.Get(uint32(p))
	if !ok {
		return fmt.Errorf("%w: program %d", backend.ErrInvalidHandle, p)
	}
	if prog.linked == nil {
		return backend.ErrNotLinked
	}
	d.current = p
	return nil
}

// CreateBuffer allocates an empty vertex buffer.
func (d *Device) CreateBuffer() (backend.Buffer, error) {
	if d.destroyed {
		return 0, backend.ErrDestroyed
	}
	return backend.Buffer(d.buffers.Insert(nil)), nil
}

// BufferData copies data into b.
func (d *Device) BufferData(b backend.Buffer, data []float32) error {
	if d.destroyed {
		return backend.ErrDestroyed
	}
	if !d.buffers.Set(uint32(b), append([]float32(nil), data...)) {
		return fmt.Errorf("%w: buffer %d", backend.ErrInvalidHandle, b)
	}
	logging.Logger().Debug("software: buffer data", "buffer", b, "floats", len(data))
	return nil
}

// DeleteBuffer releases a buffer.
func (d *Device) DeleteBuffer(b backend.Buffer) {
	d.buffers.Remove(uint32(b))
}

// AttribLocation returns the @location of the named vertex input of p.
func (d *Device) AttribLocation(p backend.Program, name string) backend.Location {
	prog, ok := d.programs.Get(uint32(p))
	if !ok || prog.linked == nil {
		return backend.NoLocation
	}
	slot, ok := prog.linked.layout.Attribute(name)
	if !ok {
		return backend.NoLocation
	}
	return backend.Location(slot.Location)
}

// VertexAttribPointer sources the attribute at loc from b.
func (d *Device) VertexAttribPointer(loc backend.Location, b backend.Buffer, size int) error {
	if d.destroyed {
		return backend.ErrDestroyed
	}
	if !loc.Found() {
		return fmt.Errorf("%w: attribute location %d", backend.ErrInvalidHandle, loc)
	}
	if size < 1 || size > 4 {
		return fmt.Errorf("software: attribute size %d out of range [1, 4]", size)
	}
	if _, ok := d.buffers.Get(uint32(b)); !ok {
		return fmt.Errorf("%w: buffer %d", backend.ErrInvalidHandle, b)
	}
	d.attribs[uint32(loc)] = binding{buffer: b, size: size}
	return nil
}

// UniformLocation returns the location of the named uniform of p.
func (d *Device) UniformLocation(p backend.Program, name string) backend.Location {
	prog, ok := d.programs.Get(uint32(p))
	if !ok || prog.linked == nil {
		return backend.NoLocation
	}
	i := prog.linked.layout.UniformIndex(name)
	if i < 0 {
		return backend.NoLocation
	}
	return backend.Location(i)
}

// Uniform sets a uniform of the current program. NoLocation is ignored.
func (d *Device) Uniform(loc backend.Location, v ...float32) error {
	if d.destroyed {
		return backend.ErrDestroyed
	}
	l, err := d.currentLinked()
	if err != nil {
		return err
	}
	if !loc.Found() {
		return nil
	}
	if int(loc) >= len(l.layout.Uniforms) {
		return fmt.Errorf("%w: uniform location %d", backend.ErrInvalidHandle, loc)
	}
	u := l.layout.Uniforms[loc]
	if len(v) != u.Components {
		return fmt.Errorf("%w: %s has %d components, got %d", backend.ErrUniformType, u.Name, u.Components, len(v))
	}
	l.values[loc] = append(l.values[loc][:0], v...)
	return nil
}

// Viewport sets the target rectangle of normalized device coordinates.
func (d *Device) Viewport(x, y, width, height int) {
	d.viewport = image.Rect(x, y, x+max(width, 0), y+max(height, 0))
}

// ClearColor sets the color used by Clear.
func (d *Device) ClearColor(c backend.Color) {
	d.clear = c
}

// Clear fills the target with the clear color.
func (d *Device) Clear() {
	if d.destroyed {
		return
	}
	d.target.Clear(color.RGBA{
		R: unorm8(float64(d.clear.R)),
		G: unorm8(float64(d.clear.G)),
		B: unorm8(float64(d.clear.B)),
		A: unorm8(float64(d.clear.A)),
	})
}

// DrawArrays shades count vertices starting at first with the current
// program. The frame is rendered off-screen and presented only when every
// invocation succeeds.
func (d *Device) DrawArrays(mode backend.Topology, first, count int) error {
	if d.destroyed {
		return backend.ErrDestroyed
	}
	l, err := d.currentLinked()
	if err != nil {
		return err
	}
	if first < 0 || count < 0 {
		return fmt.Errorf("software: invalid vertex range first=%d count=%d", first, count)
	}
	if mode != backend.Triangles && mode != backend.TriangleStrip {
		return fmt.Errorf("software: unsupported topology %d", mode)
	}

	attribs := make(map[uint32]attribSource, len(l.layout.Attributes))
	for _, a := range l.layout.Attributes {
		b, ok := d.attribs[a.Location]
		if !ok {
			return fmt.Errorf("%w: %s", backend.ErrMissingAttribute, a.Name)
		}
		data, ok := d.buffers.Get(uint32(b.buffer))
		if !ok {
			return fmt.Errorf("%w: buffer %d bound to %s", backend.ErrInvalidHandle, b.buffer, a.Name)
		}
		if need := (first + count) * b.size; len(data) < need {
			return fmt.Errorf("software: buffer %d holds %d floats, %s needs %d", b.buffer, len(data), a.Name, need)
		}
		attribs[a.Location] = attribSource{data: data, size: b.size}
	}

	d.draws++
	frame := d.target.Snapshot()
	if frame == nil {
		return surface.ErrClosed
	}

	start := time.Now()
	call := &drawCall{
		prog:       l,
		attribs:    attribs,
		viewport:   d.viewport,
		target:     frame,
		pool:       d.pool,
		vsUniforms: l.uniformGlobals(l.vsm),
		fsUniforms: l.uniformGlobals(l.fsm),
	}
	if err := call.run(mode, first, count); err != nil {
		logging.Logger().Debug("software: draw failed", "err", err)
		return err
	}
	logging.Logger().Debug("software: draw", "vertices", count, "elapsed", time.Since(start))
	return d.target.Present(frame)
}

func (d *Device) currentLinked() (*linked, error) {
	if d.current == 0 {
		return nil, backend.ErrNoProgram
	}
	prog, ok := d.programs.Get(uint32(d.current))
	if !ok {
		return nil, backend.ErrNoProgram
	}
	if prog.linked == nil {
		return nil, backend.ErrNotLinked
	}
	return prog.linked, nil
}

// Stats reports live objects and the number of draws.
func (d *Device) Stats() backend.Stats {
	return backend.Stats{
		Shaders:   d.shaders.Len(),
		Programs:  d.programs.Len(),
		Buffers:   d.buffers.Len(),
		DrawCalls: d.draws,
	}
}

// Destroy releases every object and stops the worker pool.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.shaders.Drain(nil)
	d.programs.Drain(nil)
	d.buffers.Drain(nil)
	d.current = 0
	d.attribs = make(map[uint32]binding)
	d.pool.Close()
	logging.Logger().Debug("software: device destroyed", "draws", d.draws)
}
