// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan hal backend

	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/internal/handle"
	"github.com/gogpu/shaderlab/internal/logging"
	"github.com/gogpu/shaderlab/surface"
)

// Errors returned while acquiring a GPU.
var (
	// ErrNoAdapter is returned when no GPU adapter can be found.
	ErrNoAdapter = errors.New("wgpu: no GPU adapter found")

	// ErrNoHAL is returned by FromProvider when the provider does not
	// expose its hal device and queue.
	ErrNoHAL = errors.New("wgpu: provider does not expose HAL types")
)

func init() {
	backend.Register(backend.BackendWGPU, func(target *surface.ImageSurface) (backend.Device, error) {
		return Open(target)
	})
}

// GPUInfo contains information about the selected GPU.
type GPUInfo struct {
	// Name is the adapter name (e.g., "NVIDIA GeForce RTX 3080").
	Name string
	// DeviceType is the type of GPU (discrete, integrated, etc.).
	DeviceType gputypes.DeviceType
}

// String returns a human-readable description of the GPU.
func (g GPUInfo) String() string {
	if g.Name == "" {
		return "external device"
	}
	return fmt.Sprintf("%s (%v)", g.Name, g.DeviceType)
}

// Device is a backend.Device that renders on the GPU through hal.
//
// Device is NOT safe for concurrent use.
type Device struct {
	target *surface.ImageSurface

	instance hal.Instance // nil for external devices
	device   hal.Device
	queue    hal.Queue
	owned    bool
	info     GPUInfo

	shaders  handle.Table[*shader]
	programs handle.Table[*program]
	buffers  handle.Table[*buffer]

	current  backend.Program
	attribs  map[uint32]binding
	viewport image.Rectangle
	clear    backend.Color
	draws    uint64

	frame *frameTarget

	destroyed bool
}

// binding is the buffer enabled at an attribute location.
type binding struct {
	buffer backend.Buffer
	size   int
}

// buffer keeps the float data of a vertex buffer and its GPU copy.
type buffer struct {
	data []float32
	gpu  hal.Buffer
}

// Ensure Device implements backend.Device.
var _ backend.Device = (*Device)(nil)

// instanceCreator is the part of a hal backend used to open a device.
type instanceCreator interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Open creates a Vulkan instance, selects an adapter and opens a device
// rendering into target.
func Open(target *surface.ImageSurface) (*Device, error) {
	api, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", backend.ErrBackendNotAvailable)
	}
	return openWith(target, api)
}

func openWith(target *surface.ImageSurface, api instanceCreator) (*Device, error) {
	if target == nil {
		return nil, errors.New("wgpu: nil target surface")
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d := newDevice(target, openDev.Device, openDev.Queue)
	d.instance = instance
	d.owned = true
	d.info = GPUInfo{Name: selected.Info.Name, DeviceType: selected.Info.DeviceType}
	logging.Logger().Info("wgpu: device opened", "gpu", d.info.String())
	return d, nil
}

// FromProvider attaches to a device owned by the host application. The
// provider must also implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. Destroy does not release the host's device.
func FromProvider(provider gpucontext.DeviceProvider, target *surface.ImageSurface) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, ErrNoHAL
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return NewWithHAL(target, device, queue)
}

// NewWithHAL creates a device on an existing hal device and queue. The
// caller keeps ownership of both.
func NewWithHAL(target *surface.ImageSurface, device hal.Device, queue hal.Queue) (*Device, error) {
	if target == nil {
		return nil, errors.New("wgpu: nil target surface")
	}
	if device == nil || queue == nil {
		return nil, errors.New("wgpu: device and queue are required")
	}
	return newDevice(target, device, queue), nil
}

func newDevice(target *surface.ImageSurface, device hal.Device, queue hal.Queue) *Device {
	return &Device{
		target:   target,
		device:   device,
		queue:    queue,
		attribs:  make(map[uint32]binding),
		viewport: target.Bounds(),
	}
}

// Name returns "wgpu".
func (d *Device) Name() string { return backend.BackendWGPU }

// Info describes the GPU the device was opened on.
func (d *Device) Info() GPUInfo { return d.info }

// CreateShader allocates an empty shader object.
func (d *Device) CreateShader(stage backend.Stage) (backend.Shader, error) {
	if d.destroyed {
		return 0, backend.ErrDestroyed
	}
	if stage != backend.StageVertex && stage != backend.StageFragment {
		return 0, fmt.Errorf("wgpu: unknown shader stage %v", stage)
	}
	return backend.Shader(d.shaders.Insert(&shader{stage: stage})), nil
}

// CompileShader validates WGSL source and translates it to SPIR-V.
func (d *Device) CompileShader(sh backend.Shader, source string) bool {
	s, ok := d.shaders.Get(uint32(sh))
	if !ok || d.destroyed {
		return false
	}
	s.compiled, s.spirv = nil, nil

	compiled, code, err := compileShader(s.stage, source)
	if err != nil {
		s.log = errLog(err)
		logging.Logger().Debug("wgpu: compile failed", "shader", sh, "stage", s.stage)
		return false
	}
	s.compiled, s.spirv, s.log = compiled, code, ""
	logging.Logger().Debug("wgpu: shader compiled", "shader", sh, "stage", s.stage, "spirv_words", len(code))
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

// LinkProgram links the attached stages and creates their GPU objects.
func (d *Device) LinkProgram(p backend.Program) bool {
	prog, ok := d.programs.Get(uint32(p))
	if !ok || d.destroyed {
		return false
	}
	if prog.linked != nil {
		prog.linked.release(d.device)
		prog.linked = nil
	}

	vs, _ := d.shaders.Get(uint32(prog.attached[backend.StageVertex]))
	fs, _ := d.shaders.Get(uint32(prog.attached[backend.StageFragment]))
	l, err := link(d.device, vs, fs)
	if err != nil {
		prog.log = errLog(err)
		logging.Logger().Debug("wgpu: link failed", "program", p)
		return false
	}
	prog.linked, prog.log = l, ""
	logging.Logger().Debug("wgpu: program linked", "program", p,
		"attributes", len(l.layout.Attributes), "uniform_buffers", len(l.layout.Bindings))
	return true
}

// ProgramInfoLog returns the diagnostic of the last link.
func (d *Device) ProgramInfoLog(p backend.Program) string {
	if prog, ok := d.programs.Get(uint32(p)); ok {
		return prog.log
	}
	return ""
}

// DeleteProgram releases a program and its GPU objects. Deleting the
// current program unbinds it.
func (d *Device) DeleteProgram(p backend.Program) {
	prog, ok := d.programs.Remove(uint32(p))
	if !ok {
		return
	}
	if prog.linked != nil {
		prog.linked.release(d.device)
	}
	if d.current == p {
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
	return backend.Buffer(d.buffers.Insert(&buffer{})), nil
}

// BufferData uploads data to b, reallocating the GPU buffer when its size
// changes.
func (d *Device) BufferData(b backend.Buffer, data []float32) error {
	if d.destroyed {
		return backend.ErrDestroyed
	}
	buf, ok := d.buffers.Get(uint32(b))
	if !ok {
		return fmt.Errorf("%w: buffer %d", backend.ErrInvalidHandle, b)
	}
	if buf.gpu != nil && len(buf.data) != len(data) {
		d.device.DestroyBuffer(buf.gpu)
		buf.gpu = nil
	}
	buf.data = append(buf.data[:0], data...)
	if len(data) == 0 {
		return nil
	}
	if buf.gpu == nil {
		gpu, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("shaderlab_vertex_%d", b),
			Size:  uint64(len(data)) * 4,
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("wgpu: create vertex buffer: %w", err)
		}
		buf.gpu = gpu
	}
	d.queue.WriteBuffer(buf.gpu, 0, floatBytes(data))
	logging.Logger().Debug("wgpu: buffer data", "buffer", b, "floats", len(data))
	return nil
}

// DeleteBuffer releases a buffer.
func (d *Device) DeleteBuffer(b backend.Buffer) {
	if buf, ok := d.buffers.Remove(uint32(b)); ok && buf.gpu != nil {
		d.device.DestroyBuffer(buf.gpu)
	}
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
		return fmt.Errorf("wgpu: attribute size %d out of range [1, 4]", size)
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
		R: unorm8(d.clear.R),
		G: unorm8(d.clear.G),
		B: unorm8(d.clear.B),
		A: unorm8(d.clear.A),
	})
}

// DrawArrays renders count vertices starting at first with the current
// program and presents the result.
func (d *Device) DrawArrays(mode backend.Topology, first, count int) error {
	if d.destroyed {
		return backend.ErrDestroyed
	}
	l, err := d.currentLinked()
	if err != nil {
		return err
	}
	if first < 0 || count < 0 {
		return fmt.Errorf("wgpu: invalid vertex range first=%d count=%d", first, count)
	}
	if mode != backend.Triangles && mode != backend.TriangleStrip {
		return fmt.Errorf("wgpu: unsupported topology %d", mode)
	}

	sources := make([]vertexSource, 0, len(l.layout.Attributes))
	for _, a := range l.layout.Attributes {
		b, ok := d.attribs[a.Location]
		if !ok {
			return fmt.Errorf("%w: %s", backend.ErrMissingAttribute, a.Name)
		}
		buf, ok := d.buffers.Get(uint32(b.buffer))
		if !ok {
			return fmt.Errorf("%w: buffer %d bound to %s", backend.ErrInvalidHandle, b.buffer, a.Name)
		}
		if need := (first + count) * b.size; len(buf.data) < need || buf.gpu == nil {
			return fmt.Errorf("wgpu: buffer %d holds %d floats, %s needs %d", b.buffer, len(buf.data), a.Name, need)
		}
		sources = append(sources, vertexSource{location: a.Location, size: b.size, buf: buf.gpu})
	}

	d.draws++
	pixels := d.target.Snapshot()
	if pixels == nil {
		return surface.ErrClosed
	}
	if count < 3 {
		return d.target.Present(pixels)
	}

	pipeline, err := l.pipeline(d.device, mode, sources)
	if err != nil {
		return fmt.Errorf("wgpu: %w", err)
	}
	if d.frame == nil || !d.frame.fits(pixels.Bounds()) {
		d.frame.release(d.device)
		d.frame = nil
		ft, err := newFrameTarget(d.device, pixels.Bounds().Dx(), pixels.Bounds().Dy())
		if err != nil {
			return fmt.Errorf("wgpu: %w", err)
		}
		d.frame = ft
	}

	call := &drawCall{
		device:   d.device,
		queue:    d.queue,
		frame:    d.frame,
		pipeline: pipeline,
		prog:     l,
		sources:  sources,
		viewport: d.viewport,
		first:    uint32(first), //nolint:gosec // checked non-negative above
		count:    uint32(count), //nolint:gosec // checked non-negative above
	}
	if err := call.render(pixels); err != nil {
		logging.Logger().Debug("wgpu: draw failed", "err", err)
		return fmt.Errorf("wgpu: %w", err)
	}
	return d.target.Present(pixels)
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

// Destroy releases every GPU object. The hal device and instance are
// destroyed only when Open created them.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.shaders.Drain(nil)
	d.programs.Drain(func(_ uint32, p *program) {
		if p.linked != nil {
			p.linked.release(d.device)
		}
	})
	d.buffers.Drain(func(_ uint32, b *buffer) {
		if b.gpu != nil {
			d.device.DestroyBuffer(b.gpu)
		}
	})
	d.frame.release(d.device)
	d.frame = nil
	d.current = 0
	d.attribs = make(map[uint32]binding)

	if d.owned {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device, d.queue, d.instance = nil, nil, nil
	logging.Logger().Debug("wgpu: device destroyed", "draws", d.draws)
}

func unorm8(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
