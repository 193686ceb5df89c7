// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command shaderlab renders a shader generated from a text prompt.
//
// Usage:
//
//	shaderlab -prompt "a red circle" -o circle.png
//	shaderlab -shader plasma.wgsl -mouse 0.2,0.8 -scale 2 -o plasma.png
//	shaderlab -calc "(1 + 2) * 3"
//
// The generation service defaults to $SHADERLAB_API, or
// http://localhost:4000/api when it is unset.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gogpu/shaderlab"
	"github.com/gogpu/shaderlab/calc"
	"github.com/gogpu/shaderlab/canvas"
	"github.com/gogpu/shaderlab/generate"
	"github.com/gogpu/shaderlab/shader"
	"github.com/gogpu/shaderlab/surface"

	_ "github.com/gogpu/shaderlab/backend/software"
	_ "github.com/gogpu/shaderlab/backend/wgpu"
)

// envAPI overrides the default generation service root.
const envAPI = "SHADERLAB_API"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type config struct {
	prompt, shaderFile, api, output, device, mouse, glslOut, calcExpr string
	width, height, scale                                              int
	annotate, verbose                                                 bool
}

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	api := os.Getenv(envAPI)
	if api == "" {
		api = generate.DefaultBaseURL
	}

	var c config
	fs := flag.NewFlagSet("shaderlab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.prompt, "prompt", "", "describe the shader to generate")
	fs.StringVar(&c.shaderFile, "shader", "", "render a WGSL fragment shader file instead of generating one")
	fs.StringVar(&c.api, "api", api, "generation service base URL")
	fs.StringVar(&c.output, "o", "shader.png", "output PNG file")
	fs.IntVar(&c.width, "width", surface.DefaultSize, "canvas width")
	fs.IntVar(&c.height, "height", surface.DefaultSize, "canvas height")
	fs.StringVar(&c.device, "device", "auto", "graphics device: auto, software or wgpu")
	fs.StringVar(&c.mouse, "mouse", "0.5,0.5", "normalized pointer position x,y")
	fs.StringVar(&c.glslOut, "glsl", "", "also write the shader as GLSL ES 3.00 to this file")
	fs.BoolVar(&c.annotate, "annotate", false, "on compile errors, write the last frame with the error printed on it")
	fs.IntVar(&c.scale, "scale", 1, "integer upscale factor for the output image")
	fs.StringVar(&c.calcExpr, "calc", "", "evaluate an arithmetic expression and exit")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.calcExpr == "" && c.prompt == "" && c.shaderFile == "" {
		return nil, errors.New("one of -prompt, -shader or -calc is required")
	}
	if c.width < 1 || c.height < 1 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", c.width, c.height)
	}
	if c.scale < 1 {
		return nil, fmt.Errorf("invalid -scale %d", c.scale)
	}
	return &c, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "shaderlab:", err)
		}
		return 1
	}
	if c.verbose {
		shaderlab.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if c.calcExpr != "" {
		err = runCalc(ctx, c.calcExpr, stdout)
	} else {
		err = render(ctx, c, stdout)
	}
	if err != nil {
		fmt.Fprintln(stderr, "shaderlab:", err)
		return 1
	}
	return 0
}

func runCalc(ctx context.Context, expr string, stdout io.Writer) error {
	e := calc.NewEvaluator()
	e.Init(ctx)
	select {
	case <-e.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}
	v, err := e.Calculate(expr)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, strconv.FormatFloat(v, 'g', -1, 64))
	return nil
}

func render(ctx context.Context, c *config, stdout io.Writer) error {
	x, y, err := parseMouse(c.mouse)
	if err != nil {
		return err
	}

	s := shaderlab.NewSession(
		shaderlab.WithClient(generate.NewClient(generate.WithBaseURL(c.api))),
		shaderlab.WithCanvasOptions(canvas.WithSize(c.width, c.height), canvas.WithDevice(c.device)),
		shaderlab.WithRenderer(canvas.NewRenderer(canvas.WithPointer(x, y))),
	)
	defer func() { _ = s.Close() }()

	var res *shaderlab.Result
	if c.shaderFile != "" {
		src, rerr := os.ReadFile(c.shaderFile)
		if rerr != nil {
			return rerr
		}
		res, err = s.Apply(string(src))
	} else {
		res, err = s.Generate(ctx, c.prompt)
	}
	if err != nil {
		return err
	}

	if res.Err != nil {
		if c.annotate {
			img := canvas.Annotate(s.Canvas().Surface().Snapshot(), res.Err.Error())
			if err := writePNG(c.output, canvas.Scale(img, c.scale)); err != nil {
				return err
			}
		}
		return res.Err
	}

	if err := writePNG(c.output, canvas.Scale(s.Canvas().Surface().Snapshot(), c.scale)); err != nil {
		return err
	}
	if c.glslOut != "" {
		if err := writeGLSL(c.glslOut, res.Shader); err != nil {
			return err
		}
	}
	dev := s.Canvas().Context()
	fmt.Fprintf(stdout, "wrote %s (%dx%d, %s device)\n", c.output, c.width*c.scale, c.height*c.scale, dev.Name())
	return nil
}

// parseMouse parses "x,y" with both components in [0, 1].
func parseMouse(s string) (x, y float32, err error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid -mouse %q: want x,y", s)
	}
	fx, errX := strconv.ParseFloat(strings.TrimSpace(xs), 32)
	fy, errY := strconv.ParseFloat(strings.TrimSpace(ys), 32)
	if errX != nil || errY != nil || fx < 0 || fx > 1 || fy < 0 || fy > 1 {
		return 0, 0, fmt.Errorf("invalid -mouse %q: components must be in [0, 1]", s)
	}
	return float32(fx), float32(fy), nil
}

func writeGLSL(path, src string) error {
	out, err := shader.ExportGLSL(src, shader.StageFragment)
	if err != nil {
		return fmt.Errorf("glsl export: %w", err)
	}
	return os.WriteFile(path, []byte(out), 0o644) //nolint:gosec // output file
}

func writePNG(path string, img *image.RGBA) (err error) {
	f, err := os.Create(path) //nolint:gosec // output file
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}
