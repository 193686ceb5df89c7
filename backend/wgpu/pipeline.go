// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/internal/wgslc"
)

// shader is a shader object. compiled is nil until a compile succeeds.
type shader struct {
	stage    backend.Stage
	compiled *wgslc.Shader
	spirv    []uint32
	log      string
}

// program is a program object with its attached shaders.
type program struct {
	attached map[backend.Stage]backend.Shader
	linked   *linked
	log      string
}

// linked holds the GPU objects of a successfully linked program.
// Render pipelines depend on the vertex buffer layout, so they are created
// on first use and cached per layout.
type linked struct {
	layout   *wgslc.Layout
	vsEntry  string
	fsEntry  string
	vsModule hal.ShaderModule
	fsModule hal.ShaderModule

	groupLayouts []hal.BindGroupLayout // indexed by @group
	pipeLayout   hal.PipelineLayout
	pipelines    map[string]hal.RenderPipeline

	// uniformBufs is parallel to layout.Bindings.
	uniformBufs []hal.Buffer
	// values holds the components set for each layout uniform.
	values [][]float32
}

// vertexSource is one enabled attribute of a draw.
type vertexSource struct {
	location uint32
	size     int
	buf      hal.Buffer
}

func compileShader(stage backend.Stage, source string) (*wgslc.Shader, []uint32, error) {
	irStage := ir.StageVertex
	if stage == backend.StageFragment {
		irStage = ir.StageFragment
	}
	sh, err := wgslc.Compile(source, irStage)
	if err != nil {
		return nil, nil, err
	}
	if stage == backend.StageVertex {
		for _, in := range sh.Inputs() {
			sc, ok := wgslc.ScalarOf(wgslc.Inner(sh.Module, in.Type))
			if !ok || sc.Kind != ir.ScalarFloat || sc.Width != 4 {
				return nil, nil, &wgslc.Error{Log: fmt.Sprintf(
					"error: vertex input %q at @location(%d) must be f32 or a vector of f32", in.Name, in.Location)}
			}
		}
	}

	code, err := naga.GenerateSPIRV(sh.Module, spirv.DefaultOptions())
	if err != nil {
		return nil, nil, &wgslc.Error{Log: "error: " + err.Error()}
	}
	return sh, spirvWords(code), nil
}

// spirvWords converts a little-endian SPIR-V byte stream to words.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

func link(device hal.Device, vs, fs *shader) (l *linked, err error) {
	if vs == nil || fs == nil || vs.compiled == nil || fs.compiled == nil {
		return nil, &wgslc.Error{Log: "error: program needs one compiled vertex and one compiled fragment shader"}
	}
	layout, err := wgslc.Link(vs.compiled, fs.compiled)
	if err != nil {
		return nil, err
	}
	hasPosition := false
	for _, b := range vs.compiled.OutputBuiltins() {
		if b.Value == ir.BuiltinPosition {
			hasPosition = true
		}
	}
	if !hasPosition {
		return nil, &wgslc.Error{Log: "error: vertex stage does not write @builtin(position)"}
	}

	l = &linked{
		layout:    layout,
		vsEntry:   vs.compiled.Entry.Name,
		fsEntry:   fs.compiled.Entry.Name,
		pipelines: make(map[string]hal.RenderPipeline),
		values:    make([][]float32, len(layout.Uniforms)),
	}
	defer func() {
		if err != nil {
			l.release(device)
			err = &wgslc.Error{Log: "error: " + err.Error()}
		}
	}()

	if l.vsModule, err = createModule(device, "shaderlab_vs", vs.spirv); err != nil {
		return nil, err
	}
	if l.fsModule, err = createModule(device, "shaderlab_fs", fs.spirv); err != nil {
		return nil, err
	}
	if err = l.createLayouts(device); err != nil {
		return nil, err
	}
	for _, b := range layout.Bindings {
		buf, cerr := device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("shaderlab_uniforms_%d_%d", b.Group, b.Binding),
			Size:  uint64(b.Size),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if cerr != nil {
			err = fmt.Errorf("create uniform buffer: %w", cerr)
			return nil, err
		}
		l.uniformBufs = append(l.uniformBufs, buf)
	}
	return l, nil
}

func createModule(device hal.Device, label string, code []uint32) (hal.ShaderModule, error) {
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}
	return module, nil
}

// createLayouts creates one bind group layout per @group up to the highest
// group in use, and the pipeline layout over them.
func (l *linked) createLayouts(device hal.Device) error {
	groups := 0
	for _, b := range l.layout.Bindings {
		groups = max(groups, int(b.Group)+1)
	}
	for g := range groups {
		var entries []gputypes.BindGroupLayoutEntry
		for _, b := range l.layout.Bindings {
			if int(b.Group) != g {
				continue
			}
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    b.Binding,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			})
		}
		bgl, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("shaderlab_group_%d", g),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("create bind group layout: %w", err)
		}
		l.groupLayouts = append(l.groupLayouts, bgl)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "shaderlab_pipe_layout",
		BindGroupLayouts: l.groupLayouts,
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	l.pipeLayout = pipeLayout
	return nil
}

// pipeline returns the render pipeline for the topology and vertex layout
// of a draw, creating it on first use.
func (l *linked) pipeline(device hal.Device, mode backend.Topology, sources []vertexSource) (hal.RenderPipeline, error) {
	key := pipelineKey(mode, sources)
	if p, ok := l.pipelines[key]; ok {
		return p, nil
	}

	topology := gputypes.PrimitiveTopologyTriangleList
	if mode == backend.TriangleStrip {
		topology = gputypes.PrimitiveTopologyTriangleStrip
	}
	p, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "shaderlab_pipeline",
		Layout: l.pipeLayout,
		Vertex: hal.VertexState{
			Module:     l.vsModule,
			EntryPoint: l.vsEntry,
			Buffers:    vertexLayouts(sources),
		},
		Fragment: &hal.FragmentState{
			Module:     l.fsModule,
			EntryPoint: l.fsEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    frameFormat,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}
	l.pipelines[key] = p
	return p, nil
}

func pipelineKey(mode backend.Topology, sources []vertexSource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", mode)
	for _, s := range sources {
		fmt.Fprintf(&b, ";%d:%d", s.location, s.size)
	}
	return b.String()
}

// vertexLayouts gives every attribute its own tightly packed buffer slot.
func vertexLayouts(sources []vertexSource) []gputypes.VertexBufferLayout {
	layouts := make([]gputypes.VertexBufferLayout, len(sources))
	for i, s := range sources {
		l := gputypes.VertexBufferLayout{StepMode: gputypes.VertexStepModeVertex}
		attr := gputypes.VertexAttribute{Offset: 0, ShaderLocation: s.location}
		switch s.size {
		case 1:
			l.ArrayStride = 4
			attr.Format = gputypes.VertexFormatFloat32
		case 2:
			l.ArrayStride = 8
			attr.Format = gputypes.VertexFormatFloat32x2
		case 3:
			l.ArrayStride = 12
			attr.Format = gputypes.VertexFormatFloat32x3
		default:
			l.ArrayStride = 16
			attr.Format = gputypes.VertexFormatFloat32x4
		}
		l.Attributes = []gputypes.VertexAttribute{attr}
		layouts[i] = l
	}
	return layouts
}

// release destroys the GPU objects of l in reverse creation order.
func (l *linked) release(device hal.Device) {
	if device == nil {
		return
	}
	keys := make([]string, 0, len(l.pipelines))
	for k := range l.pipelines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		device.DestroyRenderPipeline(l.pipelines[k])
	}
	l.pipelines = map[string]hal.RenderPipeline{}
	for _, buf := range l.uniformBufs {
		device.DestroyBuffer(buf)
	}
	l.uniformBufs = nil
	if l.pipeLayout != nil {
		device.DestroyPipelineLayout(l.pipeLayout)
		l.pipeLayout = nil
	}
	for _, bgl := range l.groupLayouts {
		device.DestroyBindGroupLayout(bgl)
	}
	l.groupLayouts = nil
	if l.fsModule != nil {
		device.DestroyShaderModule(l.fsModule)
		l.fsModule = nil
	}
	if l.vsModule != nil {
		device.DestroyShaderModule(l.vsModule)
		l.vsModule = nil
	}
}

// errLog extracts the info log text from a compile or link error.
func errLog(err error) string {
	var cerr *wgslc.Error
	if errors.As(err, &cerr) {
		return cerr.Log
	}
	return "error: " + err.Error()
}
