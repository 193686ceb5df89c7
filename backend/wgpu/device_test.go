// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/internal/wgslc"
	"github.com/gogpu/shaderlab/surface"
)

const quadVS = `
@vertex
fn vs_main(@location(0) a_position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(a_position, 0.0, 1.0);
}
`

const uniformFS = `
struct Uniforms {
    u_resolution: vec2<f32>,
    u_time: f32,
}

@group(0) @binding(0) var<uniform> uniforms: Uniforms;

@fragment
fn fs_main(@builtin(position) p: vec4<f32>) -> @location(0) vec4<f32> {
    let uv = p.xy / uniforms.u_resolution;
    return vec4<f32>(uv, fract(uniforms.u_time), 1.0);
}
`

// newNoopDevice opens a device on the noop hal backend.
func newNoopDevice(t *testing.T, w, h int) (*Device, *surface.ImageSurface) {
	t.Helper()
	s := surface.NewImageSurface(w, h)
	d, err := openWith(s, &noop.API{})
	if err != nil {
		t.Fatalf("openWith(noop) error = %v", err)
	}
	t.Cleanup(func() {
		d.Destroy()
		_ = s.Close()
	})
	return d, s
}

func buildProgram(t *testing.T, d *Device, vs, fs string) backend.Program {
	t.Helper()
	v, _ := d.CreateShader(backend.StageVertex)
	f, _ := d.CreateShader(backend.StageFragment)
	if !d.CompileShader(v, vs) {
		t.Fatalf("vertex compile failed:\n%s", d.ShaderInfoLog(v))
	}
	if !d.CompileShader(f, fs) {
		t.Fatalf("fragment compile failed:\n%s", d.ShaderInfoLog(f))
	}
	p, _ := d.CreateProgram()
	if err := d.AttachShader(p, v); err != nil {
		t.Fatal(err)
	}
	if err := d.AttachShader(p, f); err != nil {
		t.Fatal(err)
	}
	if !d.LinkProgram(p) {
		t.Fatalf("link failed:\n%s", d.ProgramInfoLog(p))
	}
	d.DeleteShader(v)
	d.DeleteShader(f)
	if err := d.UseProgram(p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOpenNoop(t *testing.T) {
	d, _ := newNoopDevice(t, 16, 16)
	if d.Name() != backend.BackendWGPU {
		t.Errorf("Name() = %q", d.Name())
	}
	if d.Info().String() == "" {
		t.Error("Info().String() is empty")
	}
}

func TestNewWithHALRequiresDevice(t *testing.T) {
	if _, err := NewWithHAL(surface.NewImageSurface(4, 4), nil, nil); err == nil {
		t.Error("NewWithHAL(nil, nil) succeeded")
	}
	if _, err := NewWithHAL(nil, nil, nil); err == nil {
		t.Error("NewWithHAL with nil target succeeded")
	}
}

func TestFromProviderWithoutHAL(t *testing.T) {
	_, err := FromProvider(nil, surface.NewImageSurface(4, 4))
	if !errors.Is(err, ErrNoHAL) {
		t.Errorf("FromProvider(nil) error = %v, want ErrNoHAL", err)
	}
}

func TestCompileProducesSPIRV(t *testing.T) {
	d, _ := newNoopDevice(t, 8, 8)
	sh, _ := d.CreateShader(backend.StageVertex)
	if !d.CompileShader(sh, quadVS) {
		t.Fatalf("CompileShader() failed:\n%s", d.ShaderInfoLog(sh))
	}
	s, _ := d.shaders.Get(uint32(sh))
	if len(s.spirv) == 0 {
		t.Fatal("no SPIR-V generated")
	}
	// SPIR-V magic number.
	if s.spirv[0] != 0x07230203 {
		t.Errorf("first word = %#x, want SPIR-V magic", s.spirv[0])
	}
}

func TestCompileFailures(t *testing.T) {
	tests := []struct {
		name  string
		stage backend.Stage
		src   string
		want  string
	}{
		{"syntax", backend.StageFragment, "@fragment fn fs_main( {", "error"},
		{"wrong stage", backend.StageVertex, uniformFS, "no @vertex entry point"},
		{
			"integer attribute", backend.StageVertex, `
@vertex
fn vs_main(@location(0) a_id: i32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(f32(a_id), 0.0, 0.0, 1.0);
}
`, "must be f32",
		},
	}

	d, _ := newNoopDevice(t, 8, 8)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh, _ := d.CreateShader(tt.stage)
			defer d.DeleteShader(sh)
			if d.CompileShader(sh, tt.src) {
				t.Fatal("CompileShader() succeeded")
			}
			if log := d.ShaderInfoLog(sh); !strings.Contains(log, tt.want) {
				t.Errorf("ShaderInfoLog() = %q, want it to contain %q", log, tt.want)
			}
		})
	}
	if live := d.Stats().Live(); live != 0 {
		t.Errorf("Live() = %d after failed compiles", live)
	}
}

func TestDrawNoop(t *testing.T) {
	d, s := newNoopDevice(t, 32, 32)
	p := buildProgram(t, d, quadVS, uniformFS)

	b, _ := d.CreateBuffer()
	if err := d.BufferData(b, []float32{-1, -1, 1, -1, -1, 1, -1, 1, 1, -1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := d.VertexAttribPointer(d.AttribLocation(p, "a_position"), b, 2); err != nil {
		t.Fatal(err)
	}
	if err := d.Uniform(d.UniformLocation(p, "u_resolution"), 32, 32); err != nil {
		t.Fatal(err)
	}
	if err := d.Uniform(d.UniformLocation(p, "u_time"), 1, 2); !errors.Is(err, backend.ErrUniformType) {
		t.Errorf("Uniform(u_time, 2 values) error = %v, want ErrUniformType", err)
	}

	d.Clear()
	for range 2 {
		if err := d.DrawArrays(backend.Triangles, 0, 6); err != nil {
			t.Fatalf("DrawArrays() error = %v", err)
		}
	}
	if got := d.Stats().DrawCalls; got != 2 {
		t.Errorf("DrawCalls = %d, want 2", got)
	}
	if got := s.Generation(); got != 2 {
		t.Errorf("Generation() = %d, want 2", got)
	}
	prog, _ := d.programs.Get(uint32(p))
	if n := len(prog.linked.pipelines); n != 1 {
		t.Errorf("cached pipelines = %d, want 1", n)
	}

	d.DeleteBuffer(b)
	d.DeleteProgram(p)
	if live := d.Stats().Live(); live != 0 {
		t.Errorf("Live() = %d, want 0", live)
	}
}

func TestDrawMissingAttribute(t *testing.T) {
	d, s := newNoopDevice(t, 8, 8)
	buildProgram(t, d, quadVS, uniformFS)

	err := d.DrawArrays(backend.Triangles, 0, 6)
	if !errors.Is(err, backend.ErrMissingAttribute) {
		t.Fatalf("DrawArrays() error = %v, want ErrMissingAttribute", err)
	}
	if d.Stats().DrawCalls != 0 || s.Generation() != 0 {
		t.Error("failed draw reached the surface")
	}
}

func TestEncodeUniforms(t *testing.T) {
	f32 := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	i32 := ir.ScalarType{Kind: ir.ScalarSint, Width: 4}
	layout := &wgslc.Layout{
		Uniforms: []wgslc.Uniform{
			{Name: "u_resolution", Offset: 0, Type: ir.VectorType{Size: ir.Vec2, Scalar: f32}, Scalar: f32, Components: 2},
			{Name: "u_frame", Offset: 8, Type: i32, Scalar: i32, Components: 1},
			{Name: "u_m", Offset: 16, Type: ir.MatrixType{Columns: ir.Vec3, Rows: ir.Vec3, Scalar: f32}, Scalar: f32, Components: 9},
			{Name: "u_unset", Offset: 12, Type: f32, Scalar: f32, Components: 1},
		},
	}
	values := [][]float32{{400, 300}, {-2}, {1, 2, 3, 4, 5, 6, 7, 8, 9}, nil}

	buf := encodeUniforms(layout, values, wgslc.BufferBinding{Size: 64})
	if len(buf) != 64 {
		t.Fatalf("len = %d, want 64", len(buf))
	}
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	if f(0) != 400 || f(4) != 300 {
		t.Errorf("u_resolution = (%v, %v)", f(0), f(4))
	}
	if got := binary.LittleEndian.Uint32(buf[8:]); got != 0xFFFFFFFE {
		t.Errorf("u_frame bits = %#x, want 0xfffffffe", got)
	}
	if f(12) != 0 {
		t.Errorf("u_unset = %v, want 0", f(12))
	}
	// mat3x3 columns are 16 bytes apart.
	for col := range 3 {
		for row := range 3 {
			want := float32(col*3 + row + 1)
			if got := f(16 + col*16 + row*4); got != want {
				t.Errorf("u_m[%d][%d] = %v, want %v", col, row, got, want)
			}
		}
	}
}

func TestVertexLayouts(t *testing.T) {
	layouts := vertexLayouts([]vertexSource{{location: 0, size: 2}, {location: 3, size: 4}})
	if len(layouts) != 2 {
		t.Fatalf("len = %d", len(layouts))
	}
	if layouts[0].ArrayStride != 8 || layouts[1].ArrayStride != 16 {
		t.Errorf("strides = %d, %d", layouts[0].ArrayStride, layouts[1].ArrayStride)
	}
	if layouts[1].Attributes[0].ShaderLocation != 3 {
		t.Errorf("location = %d, want 3", layouts[1].Attributes[0].ShaderLocation)
	}
}
