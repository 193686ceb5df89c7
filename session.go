// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderlab

import (
	"context"
	"errors"
	"sync"

	"github.com/gogpu/shaderlab/canvas"
	"github.com/gogpu/shaderlab/generate"
	"github.com/gogpu/shaderlab/internal/logging"

	// The software device is always available to sessions.
	_ "github.com/gogpu/shaderlab/backend/software"
)

var (
	// ErrSuperseded is returned when a newer request started before this
	// one could be applied. The canvas is left untouched.
	ErrSuperseded = errors.New("shaderlab: superseded by a newer request")

	// ErrClosed is returned by a closed session.
	ErrClosed = errors.New("shaderlab: session closed")
)

// Result is the outcome of an applied request.
type Result struct {
	// ID is the request id, increasing per session.
	ID uint64
	// Shader is the fragment source, kept even when it failed to compile.
	Shader string
	// Err is the compile or render error, nil when the frame is shown.
	Err error
}

// Session generates shaders and shows them on one canvas.
//
// Only the latest request is ever applied: starting a request cancels the
// one in flight, and a response that arrives after a newer request started
// is dropped with ErrSuperseded. Apply steps are serialized, so a Session
// may be used from several goroutines.
type Session struct {
	client   *generate.Client
	canvas   *canvas.Canvas
	renderer *canvas.Renderer

	mu       sync.Mutex // guards the fields below
	latest   uint64
	cancel   context.CancelFunc
	inflight int
	closed   bool

	// applyMu serializes compile and render on the canvas.
	applyMu sync.Mutex
}

// NewSession creates a session. Without options it talks to the default
// generation service and draws on a 400×400 canvas with the best
// available device.
func NewSession(opts ...Option) *Session {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := &Session{client: o.client, canvas: o.canvas, renderer: o.renderer}
	if s.client == nil {
		s.client = generate.NewClient()
	}
	if s.canvas == nil {
		s.canvas = canvas.New(o.canvasOpts...)
	}
	if s.renderer == nil {
		s.renderer = canvas.NewRenderer()
	}
	return s
}

// Canvas returns the canvas the session draws on.
func (s *Session) Canvas() *canvas.Canvas { return s.canvas }

// Renderer returns the renderer used to show shaders.
func (s *Session) Renderer() *canvas.Renderer { return s.renderer }

// Client returns the generation service client.
func (s *Session) Client() *generate.Client { return s.client }

// Loading reports whether a generation request is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// begin registers a new request and cancels the previous one.
func (s *Session) begin(ctx context.Context) (uint64, context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, nil, ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.latest++
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return s.latest, ctx, cancel, nil
}

func (s *Session) isLatest(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && id == s.latest
}

// Generate requests a shader for prompt and shows it.
//
// Failures of the request itself are returned as the error. A shader that
// arrives but does not compile or render is reported in Result.Err, and the
// previous frame stays on the canvas. An empty prompt is refused without
// touching a request already in flight.
func (s *Session) Generate(ctx context.Context, prompt string) (*Result, error) {
	if generate.NormalizePrompt(prompt) == "" {
		return nil, generate.ErrEmptyPrompt
	}
	id, ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
		cancel()
	}()

	log := logging.Logger().With("id", id)
	log.Debug("shaderlab: generation started")

	src, err := s.client.Generate(ctx, prompt)
	if !s.isLatest(id) {
		log.Warn("shaderlab: result superseded")
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return s.apply(id, src)
}

// Apply shows a shader source directly, superseding any request in flight.
func (s *Session) Apply(src string) (*Result, error) {
	id, _, cancel, err := s.begin(context.Background())
	if err != nil {
		return nil, err
	}
	defer cancel()
	return s.apply(id, src)
}

func (s *Session) apply(id uint64, src string) (*Result, error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if !s.isLatest(id) {
		logging.Logger().Warn("shaderlab: result superseded", "id", id)
		return nil, ErrSuperseded
	}

	res := &Result{ID: id, Shader: src}
	if err := s.renderer.Show(s.canvas, src); err != nil {
		res.Err = err
		logging.Logger().Debug("shaderlab: shader not shown", "id", id, "err", err)
		return res, nil
	}
	logging.Logger().Info("shaderlab: generation applied", "id", id, "bytes", len(src))
	return res, nil
}

// Close cancels any request in flight and releases the shown program, the
// device and the canvas. Calling Close again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	return s.canvas.Close()
}
