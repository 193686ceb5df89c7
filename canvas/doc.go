// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package canvas draws shader programs onto a surface.
//
// A Canvas pairs an ImageSurface with the graphics context (a backend
// Device) that renders into it. When no device can be opened the canvas
// still exists, but Context returns nil and every render fails with an
// UnsupportedContext RenderError.
//
// A Renderer runs the single-shot draw: it uploads a full-viewport quad,
// binds a_position, sets u_resolution and u_mouse, clears the surface and
// issues one six-vertex draw.
//
//	c := canvas.New()
//	defer c.Close()
//
//	r := canvas.NewRenderer(canvas.WithPointer(0.25, 0.75))
//	if err := r.Show(c, fragmentSource); err != nil {
//		return err
//	}
//	img := c.Surface().Snapshot()
//
// Annotate and Scale post-process snapshots for output files.
package canvas
