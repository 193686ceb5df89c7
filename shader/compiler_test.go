// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/shaderlab/backend/software"
	"github.com/gogpu/shaderlab/surface"
)

const redFS = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

const varyingFS = `
@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(uv, 0.0, 1.0);
}
`

func newCompiler(t *testing.T) (*Compiler, *software.Device) {
	t.Helper()
	s := surface.NewImageSurface(8, 8)
	d, err := software.New(s, software.WithWorkers(1))
	if err != nil {
		t.Fatalf("software.New() error = %v", err)
	}
	t.Cleanup(func() {
		d.Destroy()
		_ = s.Close()
	})
	return NewCompiler(d), d
}

func TestCompileFragment(t *testing.T) {
	c, d := newCompiler(t)
	p, err := c.CompileFragment(redFS)
	if err != nil {
		t.Fatalf("CompileFragment() error = %v", err)
	}
	st := d.Stats()
	if st.Programs != 1 || st.Shaders != 0 {
		t.Errorf("Stats() = %+v, want 1 program and no shaders", st)
	}
	if loc := d.AttribLocation(p.Handle(), PositionAttribute); !loc.Found() {
		t.Errorf("AttribLocation(%q) not found", PositionAttribute)
	}
	if p.Device() != c.Device() {
		t.Error("program device differs from compiler device")
	}
}

func TestCompileFailures(t *testing.T) {
	tests := []struct {
		name   string
		vs, fs string
		stage  Stage
		prefix string
	}{
		{"vertex syntax", "@vertex fn vs_main( {", redFS, StageVertex, "Could not compile shader:\n"},
		{"fragment syntax", QuadVertexSource, "@fragment fn fs_main() -> {", StageFragment, "Could not compile shader:\n"},
		{"fragment empty", QuadVertexSource, "", StageFragment, "Could not compile shader:\n"},
		{"unmatched varying", QuadVertexSource, varyingFS, StageLink, "Could not link program:\n"},
	}

	c, d := newCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := c.Compile(tt.vs, tt.fs)
			if p != nil {
				t.Fatal("Compile() returned a program")
			}
			var cerr *CompileError
			if !errors.As(err, &cerr) {
				t.Fatalf("Compile() error = %v, want *CompileError", err)
			}
			if cerr.Stage != tt.stage {
				t.Errorf("Stage = %v, want %v", cerr.Stage, tt.stage)
			}
			if cerr.Log == "" {
				t.Error("Log is empty")
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("Error() = %q, want prefix %q", err.Error(), tt.prefix)
			}
		})
	}
	if live := d.Stats().Live(); live != 0 {
		t.Errorf("Live() = %d after failed compiles, want 0", live)
	}
}

func TestLinkLogNamesInput(t *testing.T) {
	c, _ := newCompiler(t)
	_, err := c.Compile(QuadVertexSource, varyingFS)
	var cerr *CompileError
	if !errors.As(err, &cerr) || !strings.Contains(cerr.Log, "uv") {
		t.Errorf("Compile() error = %v, want a link log naming uv", err)
	}
}

func TestCompileNoDevice(t *testing.T) {
	_, err := NewCompiler(nil).CompileFragment(redFS)
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("error = %v, want ErrNoDevice", err)
	}
}

func TestRelease(t *testing.T) {
	c, d := newCompiler(t)
	p, err := c.CompileFragment(redFS)
	if err != nil {
		t.Fatal(err)
	}
	if p.Released() {
		t.Fatal("new program reports released")
	}
	p.Release()
	p.Release()
	if !p.Released() {
		t.Error("Released() = false after Release")
	}
	if live := d.Stats().Live(); live != 0 {
		t.Errorf("Live() = %d after Release, want 0", live)
	}

	var nilProgram *Program
	nilProgram.Release()
}

func TestCompileErrorMessage(t *testing.T) {
	tests := []struct {
		err  *CompileError
		want string
	}{
		{&CompileError{Stage: StageVertex, Log: "bad"}, "Could not compile shader:\nbad"},
		{&CompileError{Stage: StageFragment, Log: ""}, "Could not compile shader:\n"},
		{&CompileError{Stage: StageLink, Log: "mismatch"}, "Could not link program:\nmismatch"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestStageString(t *testing.T) {
	for s, want := range map[Stage]string{StageVertex: "vertex", StageFragment: "fragment", StageLink: "link", 9: "Stage(9)"} {
		if got := s.String(); got != want {
			t.Errorf("Stage(%d).String() = %q, want %q", uint8(s), got, want)
		}
	}
}
