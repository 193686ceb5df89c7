// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderlab

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/canvas"
	"github.com/gogpu/shaderlab/generate"
	"github.com/gogpu/shaderlab/shader"
)

const (
	redFS = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`
	blueFS = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 1.0, 1.0);
}
`
	brokenFS = `@fragment fn fs_main() -> {`
)

// shaderService answers prompts from a fixed table.
func shaderService(t *testing.T, shaders map[string]string) *generate.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generate.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(generate.Response{Error: "bad json"})
			return
		}
		src, ok := shaders[req.Prompt]
		if !ok {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(generate.Response{Error: "bad prompt"})
			return
		}
		_ = json.NewEncoder(w).Encode(generate.Response{Shader: src})
	}))
	t.Cleanup(srv.Close)
	return generate.NewClient(generate.WithBaseURL(srv.URL), generate.WithHTTPClient(srv.Client()))
}

func newSession(t *testing.T, client *generate.Client, size int) *Session {
	t.Helper()
	s := NewSession(
		WithClient(client),
		WithCanvasOptions(canvas.WithDevice(backend.BackendSoftware), canvas.WithSize(size, size)),
	)
	t.Cleanup(func() { _ = s.Close() })
	if s.Canvas().Context() == nil {
		t.Fatalf("no context: %v", s.Canvas().OpenError())
	}
	return s
}

func allPixels(t *testing.T, s *Session, want color.RGBA) {
	t.Helper()
	img := s.Canvas().Surface().Snapshot()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if got := img.RGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d, %d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestGenerateRedCircle(t *testing.T) {
	s := newSession(t, shaderService(t, map[string]string{"a red circle": redFS}), 400)

	res, err := s.Generate(context.Background(), "a red circle")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Err != nil {
		t.Fatalf("Result.Err = %v", res.Err)
	}
	if res.ID != 1 || res.Shader != redFS {
		t.Errorf("Result = {ID: %d, Shader: %q}", res.ID, res.Shader)
	}
	allPixels(t, s, color.RGBA{R: 255, A: 255})
	if st := s.Canvas().Context().Stats(); st.DrawCalls != 1 {
		t.Errorf("DrawCalls = %d, want 1", st.DrawCalls)
	}
	if s.Loading() {
		t.Error("Loading() = true after completion")
	}
}

func TestGenerateCompileFailureKeepsCode(t *testing.T) {
	s := newSession(t, shaderService(t, map[string]string{
		"red":    redFS,
		"broken": brokenFS,
	}), 8)

	if _, err := s.Generate(context.Background(), "red"); err != nil {
		t.Fatal(err)
	}
	res, err := s.Generate(context.Background(), "broken")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	var cerr *shader.CompileError
	if !errors.As(res.Err, &cerr) || cerr.Stage != shader.StageFragment || cerr.Log == "" {
		t.Fatalf("Result.Err = %v, want fragment CompileError", res.Err)
	}
	if res.Shader != brokenFS {
		t.Errorf("Result.Shader = %q, want the failing source", res.Shader)
	}
	allPixels(t, s, color.RGBA{R: 255, A: 255})
	if st := s.Canvas().Context().Stats(); st.DrawCalls != 1 || st.Live() != 1 {
		t.Errorf("Stats() = %+v, want one draw and one live program", st)
	}
}

func TestGenerateServiceError(t *testing.T) {
	s := newSession(t, shaderService(t, nil), 8)
	_, err := s.Generate(context.Background(), "unknown")
	var serr *generate.ServiceError
	if !errors.As(err, &serr) || serr.Message != "bad prompt" {
		t.Errorf("Generate() error = %v, want ServiceError \"bad prompt\"", err)
	}
	if s.Canvas().Surface().Generation() != 0 {
		t.Error("canvas changed on a failed request")
	}
}

func TestGenerateSuperseded(t *testing.T) {
	arrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generate.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "slow" {
			close(arrived)
			<-r.Context().Done()
			return
		}
		_ = json.NewEncoder(w).Encode(generate.Response{Shader: blueFS})
	}))
	defer srv.Close()
	client := generate.NewClient(generate.WithBaseURL(srv.URL), generate.WithHTTPClient(srv.Client()))
	s := newSession(t, client, 8)

	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := s.Generate(context.Background(), "slow")
		first <- outcome{res, err}
	}()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("first request never reached the server")
	}
	if !s.Loading() {
		t.Error("Loading() = false with a request in flight")
	}

	res, err := s.Generate(context.Background(), "fast")
	if err != nil || res.Err != nil {
		t.Fatalf("second Generate() = %v, %v", res, err)
	}
	if res.ID != 2 {
		t.Errorf("second ID = %d, want 2", res.ID)
	}

	select {
	case o := <-first:
		if !errors.Is(o.err, ErrSuperseded) || o.res != nil {
			t.Errorf("first Generate() = %v, %v, want ErrSuperseded", o.res, o.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first request was not canceled")
	}
	allPixels(t, s, color.RGBA{B: 255, A: 255})
}

func TestApplySupersedesAndClose(t *testing.T) {
	s := newSession(t, shaderService(t, nil), 8)
	res, err := s.Apply(redFS)
	if err != nil || res.Err != nil {
		t.Fatalf("Apply() = %v, %v", res, err)
	}
	allPixels(t, s, color.RGBA{R: 255, A: 255})

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := s.Apply(blueFS); !errors.Is(err, ErrClosed) {
		t.Errorf("Apply() after Close error = %v, want ErrClosed", err)
	}
	if _, err := s.Generate(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Generate() after Close error = %v, want ErrClosed", err)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	s := newSession(t, shaderService(t, nil), 8)
	if _, err := s.Generate(context.Background(), "  "); !errors.Is(err, generate.ErrEmptyPrompt) {
		t.Errorf("Generate() error = %v, want ErrEmptyPrompt", err)
	}
}

func TestGenerateEmptyPromptKeepsInflight(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		_ = json.NewEncoder(w).Encode(generate.Response{Shader: redFS})
	}))
	defer srv.Close()
	client := generate.NewClient(generate.WithBaseURL(srv.URL), generate.WithHTTPClient(srv.Client()))
	s := newSession(t, client, 8)

	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := s.Generate(context.Background(), "a red circle")
		first <- outcome{res, err}
	}()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the server")
	}
	if _, err := s.Generate(context.Background(), " \t"); !errors.Is(err, generate.ErrEmptyPrompt) {
		t.Errorf("Generate(empty) error = %v, want ErrEmptyPrompt", err)
	}
	if !s.Loading() {
		t.Error("Loading() = false after an empty prompt, want the first request still in flight")
	}
	close(release)

	select {
	case o := <-first:
		if o.err != nil || o.res == nil || o.res.Err != nil {
			t.Fatalf("in-flight Generate() = %v, %v", o.res, o.err)
		}
		if o.res.ID != 1 {
			t.Errorf("ID = %d, want 1", o.res.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request never finished")
	}
	allPixels(t, s, color.RGBA{R: 255, A: 255})
}
