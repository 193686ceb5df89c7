// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const redFS = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

func TestParseMouse(t *testing.T) {
	tests := []struct {
		in      string
		x, y    float32
		wantErr bool
	}{
		{"0.5,0.5", 0.5, 0.5, false},
		{" 0 , 1 ", 0, 1, false},
		{"0.25", 0, 0, true},
		{"a,b", 0, 0, true},
		{"1.5,0", 0, 0, true},
	}
	for _, tt := range tests {
		x, y, err := parseMouse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMouse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (x != tt.x || y != tt.y) {
			t.Errorf("parseMouse(%q) = (%v, %v)", tt.in, x, y)
		}
	}
}

func TestRunCalc(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"-calc", "(1 + 2) * 3"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut.String())
	}
	if got := strings.TrimSpace(out.String()); got != "9" {
		t.Errorf("output = %q, want 9", got)
	}

	errOut.Reset()
	if code := run(context.Background(), []string{"-calc", "1 / 0"}, &out, &errOut); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "Division by zero") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRunNoInput(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(context.Background(), nil, &out, &errOut); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "-prompt") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRunInvalidSize(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero width", []string{"-shader", "x.wgsl", "-width", "0"}, "invalid canvas size 0x400"},
		{"negative height", []string{"-shader", "x.wgsl", "-height", "-3"}, "invalid canvas size 400x-3"},
		{"zero scale", []string{"-shader", "x.wgsl", "-scale", "0"}, "invalid -scale 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if code := run(context.Background(), tt.args, &out, &errOut); code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if !strings.Contains(errOut.String(), tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", errOut.String(), tt.want)
			}
			if out.Len() != 0 {
				t.Errorf("stdout = %q, want empty", out.String())
			}
		})
	}
}

func TestRunShaderFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "red.wgsl")
	if err := os.WriteFile(src, []byte(redFS), 0o600); err != nil {
		t.Fatal(err)
	}
	outPNG := filepath.Join(dir, "out.png")
	outGLSL := filepath.Join(dir, "out.frag")

	var out, errOut bytes.Buffer
	args := []string{
		"-shader", src, "-device", "software", "-width", "8", "-height", "4",
		"-scale", "2", "-o", outPNG, "-glsl", outGLSL,
	}
	if code := run(context.Background(), args, &out, &errOut); code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut.String())
	}

	f, err := os.Open(outPNG)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("image size = %v, want 16x8", b)
	}
	if r, g, b, a := img.At(3, 3).RGBA(); r != 0xffff || g != 0 || b != 0 || a != 0xffff {
		t.Errorf("pixel = %v, want red", img.At(3, 3))
	}

	glsl, err := os.ReadFile(outGLSL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(glsl), "#version 300 es") {
		t.Errorf("GLSL output = %q", glsl)
	}
}

func TestRunPromptAnnotatesCompileError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"shader": "@fragment fn fs_main() -> {"})
	}))
	defer srv.Close()

	outPNG := filepath.Join(t.TempDir(), "err.png")
	var out, errOut bytes.Buffer
	args := []string{
		"-prompt", "broken", "-api", srv.URL, "-device", "software",
		"-width", "64", "-height", "64", "-annotate", "-o", outPNG,
	}
	if code := run(context.Background(), args, &out, &errOut); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "Could not compile shader") {
		t.Errorf("stderr = %q", errOut.String())
	}
	if _, err := os.Stat(outPNG); err != nil {
		t.Errorf("annotated image not written: %v", err)
	}
}
