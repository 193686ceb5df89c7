// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgslc

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/naga/ir"
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
    u_mouse: vec2<f32>,
}

@group(0) @binding(0) var<uniform> uniforms: Uniforms;
@group(0) @binding(1) var<uniform> u_time: f32;

@fragment
fn fs_main(@builtin(position) frag_coord: vec4<f32>) -> @location(0) vec4<f32> {
    let uv = frag_coord.xy / uniforms.u_resolution;
    return vec4<f32>(uv, u_time, 1.0);
}
`

const varyingVS = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) a_position: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(a_position, 0.0, 1.0);
    out.uv = a_position;
    return out;
}
`

const varyingFS = `
@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(uv, 0.0, 1.0);
}
`

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		stage   ir.ShaderStage
		wantErr string
	}{
		{"vertex", quadVS, ir.StageVertex, ""},
		{"fragment", uniformFS, ir.StageFragment, ""},
		{"empty", "  \n\t", ir.StageFragment, "empty shader source"},
		{"syntax", "@fragment fn main( {", ir.StageFragment, "error"},
		{"unresolved", `@fragment fn main() -> @location(0) vec4<f32> { return missing; }`, ir.StageFragment, "missing"},
		{"wrong stage", quadVS, ir.StageFragment, "no @fragment entry point"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh, err := Compile(tt.source, tt.stage)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Compile() error = %v", err)
				}
				if sh.Stage() != tt.stage {
					t.Errorf("Stage() = %v, want %v", sh.Stage(), tt.stage)
				}
				return
			}
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("Compile() error = %v, want *Error", err)
			}
			if cerr.Log == "" || !strings.Contains(cerr.Log, tt.wantErr) {
				t.Errorf("Log = %q, want it to contain %q", cerr.Log, tt.wantErr)
			}
		})
	}
}

func TestInputsOutputs(t *testing.T) {
	vs, err := Compile(varyingVS, ir.StageVertex)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	in := vs.Inputs()
	if len(in) != 1 || in[0].Name != "a_position" || in[0].Location != 0 || in[0].Components != 2 {
		t.Errorf("Inputs() = %v", in)
	}

	out := vs.Outputs()
	if len(out) != 1 || out[0].Name != "uv" || out[0].Member != 1 || out[0].Arg != -1 {
		t.Errorf("Outputs() = %v", out)
	}

	bs := vs.OutputBuiltins()
	if len(bs) != 1 || bs[0].Value != ir.BuiltinPosition || bs[0].Member != 0 {
		t.Errorf("OutputBuiltins() = %+v", bs)
	}
}

func TestLink(t *testing.T) {
	vs, err := Compile(quadVS, ir.StageVertex)
	if err != nil {
		t.Fatal(err)
	}
	fs, err := Compile(uniformFS, ir.StageFragment)
	if err != nil {
		t.Fatal(err)
	}

	layout, err := Link(vs, fs)
	if err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	if _, ok := layout.Attribute("a_position"); !ok {
		t.Error("a_position attribute not found")
	}

	tests := []struct {
		name       string
		binding    uint32
		offset     uint32
		components int
	}{
		{"u_resolution", 0, 0, 2},
		{"u_mouse", 0, 8, 2},
		{"u_time", 1, 0, 1},
	}
	for _, tt := range tests {
		i := layout.UniformIndex(tt.name)
		if i < 0 {
			t.Errorf("uniform %s not found", tt.name)
			continue
		}
		u := layout.Uniforms[i]
		if u.Binding != tt.binding || u.Offset != tt.offset || u.Components != tt.components {
			t.Errorf("uniform %s = %+v", tt.name, u)
		}
	}
	if layout.UniformIndex("uniforms") >= 0 {
		t.Error("struct global should not be a settable uniform")
	}
	if len(layout.Bindings) != 2 {
		t.Errorf("Bindings = %+v, want 2", layout.Bindings)
	}
	for _, b := range layout.Bindings {
		if b.Size%16 != 0 || b.Size == 0 {
			t.Errorf("binding %+v size not rounded to 16", b)
		}
	}
}

func TestLinkVaryings(t *testing.T) {
	vs, err := Compile(varyingVS, ir.StageVertex)
	if err != nil {
		t.Fatal(err)
	}
	fs, err := Compile(varyingFS, ir.StageFragment)
	if err != nil {
		t.Fatal(err)
	}
	layout, err := Link(vs, fs)
	if err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if len(layout.Varyings) != 1 || layout.Varyings[0].Location != 0 {
		t.Errorf("Varyings = %v", layout.Varyings)
	}

	// The plain quad vertex shader writes no @location(0).
	quad, err := Compile(quadVS, ir.StageVertex)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Link(quad, fs)
	var lerr *Error
	if !errors.As(err, &lerr) || !strings.Contains(lerr.Log, "not written by the vertex stage") {
		t.Errorf("Link() error = %v, want missing varying", err)
	}
}

func TestLinkStageMismatch(t *testing.T) {
	vs, err := Compile(quadVS, ir.StageVertex)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Link(vs, vs); err == nil {
		t.Error("Link(vs, vs) should fail")
	}
	if _, err := Link(nil, vs); err == nil {
		t.Error("Link(nil, vs) should fail")
	}
}
