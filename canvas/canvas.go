// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package canvas

import (
	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/internal/logging"
	"github.com/gogpu/shaderlab/shader"
	"github.com/gogpu/shaderlab/surface"
)

// Resolution is a size in pixels.
type Resolution struct {
	Width, Height int
}

// Canvas is a surface and the graphics context bound to it.
//
// A Canvas is not safe for concurrent use.
type Canvas struct {
	surface *surface.ImageSurface
	device  backend.Device
	openErr error

	// program is the program whose frame is on screen, owned by Show.
	program *shader.Program
	// warned is set once the missing context has been logged.
	warned bool
}

// Option configures a Canvas.
type Option func(*config)

type config struct {
	width, height int
	device        string
	factory       backend.Factory
}

// WithSize sets the surface size. The default is 400×400.
func WithSize(width, height int) Option {
	return func(c *config) {
		c.width, c.height = width, height
	}
}

// WithDevice selects a registered backend by name. An empty name or "auto"
// picks the best available one.
func WithDevice(name string) Option {
	return func(c *config) {
		c.device = name
	}
}

// WithDeviceFactory opens the context with factory instead of the registry.
func WithDeviceFactory(factory backend.Factory) Option {
	return func(c *config) {
		c.factory = factory
	}
}

// New creates a canvas and opens its graphics context. Failing to open a
// device is not an error here; the canvas reports it on the first render.
func New(opts ...Option) *Canvas {
	cfg := config{width: surface.DefaultSize, height: surface.DefaultSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Canvas{surface: surface.NewImageSurface(cfg.width, cfg.height)}
	var dev backend.Device
	var err error
	switch {
	case cfg.factory != nil:
		dev, err = cfg.factory(c.surface)
	case cfg.device == "" || cfg.device == "auto":
		dev, err = backend.OpenDefault(c.surface)
	default:
		dev, err = backend.Open(cfg.device, c.surface)
	}
	if err != nil {
		c.openErr = err
		return c
	}
	c.device = dev
	logging.Logger().Debug("canvas: context opened", "device", dev.Name(),
		"width", c.surface.Width(), "height", c.surface.Height())
	return c
}

// Context returns the graphics context, or nil when none could be opened.
func (c *Canvas) Context() backend.Device {
	if c == nil || c.device == nil {
		return nil
	}
	return c.device
}

// Surface returns the pixel surface of the canvas.
func (c *Canvas) Surface() *surface.ImageSurface { return c.surface }

// Resolution returns the surface size.
func (c *Canvas) Resolution() Resolution {
	return Resolution{Width: c.surface.Width(), Height: c.surface.Height()}
}

// OpenError returns the error that prevented the context from opening.
func (c *Canvas) OpenError() error { return c.openErr }

// Program returns the program last shown on the canvas, or nil.
func (c *Canvas) Program() *shader.Program { return c.program }

// Close releases the shown program, the device and the surface.
func (c *Canvas) Close() error {
	if c.program != nil {
		c.program.Release()
		c.program = nil
	}
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
	}
	return c.surface.Close()
}

// unsupported logs the missing context once and returns the render error.
func (c *Canvas) unsupported() error {
	if !c.warned {
		c.warned = true
		logging.Logger().Error("canvas: "+ErrUnsupported.Error(), "err", c.openErr)
	}
	return &RenderError{Kind: UnsupportedContext, Err: ErrUnsupported}
}
