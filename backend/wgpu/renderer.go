// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderlab/internal/wgslc"
)

// frameFormat matches the byte order of image.RGBA, so frames are uploaded
// and read back without swizzling.
const frameFormat = gputypes.TextureFormatRGBA8Unorm

// copyPitchAlignment is the required BytesPerRow alignment of
// texture-to-buffer copies.
const copyPitchAlignment = 256

// fenceTimeout bounds the wait for one draw to finish on the GPU.
const fenceTimeout = 5 * time.Second

// frameTarget is the offscreen color texture draws render into.
type frameTarget struct {
	tex           hal.Texture
	view          hal.TextureView
	width, height uint32
}

func newFrameTarget(device hal.Device, width, height int) (*frameTarget, error) {
	w, h := uint32(width), uint32(height) //nolint:gosec // surface sizes are positive
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "shaderlab_frame",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        frameFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create frame texture: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "shaderlab_frame_view",
		Format:        frameFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("create frame view: %w", err)
	}
	return &frameTarget{tex: tex, view: view, width: w, height: h}, nil
}

func (f *frameTarget) fits(r image.Rectangle) bool {
	return f != nil && int(f.width) == r.Dx() && int(f.height) == r.Dy()
}

func (f *frameTarget) release(device hal.Device) {
	if f == nil || device == nil {
		return
	}
	device.DestroyTextureView(f.view)
	device.DestroyTexture(f.tex)
}

// drawCall encodes, submits and reads back a single draw.
type drawCall struct {
	device   hal.Device
	queue    hal.Queue
	frame    *frameTarget
	pipeline hal.RenderPipeline
	prog     *linked
	sources  []vertexSource
	viewport image.Rectangle
	first    uint32
	count    uint32
}

// render draws on top of pixels and replaces them with the result.
func (c *drawCall) render(pixels *image.RGBA) error {
	w, h := c.frame.width, c.frame.height
	size := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	c.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: c.frame.tex, MipLevel: 0},
		pixels.Pix,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&size,
	)

	for i, b := range c.prog.layout.Bindings {
		c.queue.WriteBuffer(c.prog.uniformBufs[i], 0, encodeUniforms(c.prog.layout, c.prog.values, b))
	}
	bindGroups, err := c.bindGroups()
	defer func() {
		for _, bg := range bindGroups {
			c.device.DestroyBindGroup(bg)
		}
	}()
	if err != nil {
		return err
	}

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "shaderlab_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("shaderlab_draw"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "shaderlab_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:    c.frame.view,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			},
		},
	})
	rp.SetPipeline(c.pipeline)
	for g, bg := range bindGroups {
		rp.SetBindGroup(uint32(g), bg, nil) //nolint:gosec // group count is small
	}
	for i, s := range c.sources {
		rp.SetVertexBuffer(uint32(i), s.buf, 0) //nolint:gosec // attribute count is small
	}
	vp := c.viewport
	rp.SetViewport(float32(vp.Min.X), float32(vp.Min.Y), float32(vp.Dx()), float32(vp.Dy()), 0, 1)
	rp.Draw(c.count, 1, c.first, 0)
	rp.End()

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.frame.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)
	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "shaderlab_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	encoder.CopyTextureToBuffer(c.frame.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: c.frame.tex, MipLevel: 0},
		Size:         size,
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.frame.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	fence, err := c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := c.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("wait for GPU: timed out after %v", fenceTimeout)
	}

	readback := make([]byte, stagingSize)
	if err := c.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	for row := range int(h) {
		src := row * int(alignedBytesPerRow)
		dst := pixels.PixOffset(pixels.Rect.Min.X, pixels.Rect.Min.Y+row)
		copy(pixels.Pix[dst:dst+int(bytesPerRow)], readback[src:src+int(bytesPerRow)])
	}
	return nil
}

// bindGroups creates one bind group per layout group. Groups are returned
// even on error so the caller can release them.
func (c *drawCall) bindGroups() ([]hal.BindGroup, error) {
	l := c.prog
	groups := make([]hal.BindGroup, 0, len(l.groupLayouts))
	for g, bgl := range l.groupLayouts {
		var entries []gputypes.BindGroupEntry
		for i, b := range l.layout.Bindings {
			if int(b.Group) != g {
				continue
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding: b.Binding,
				Resource: gputypes.BufferBinding{
					Buffer: l.uniformBufs[i].NativeHandle(), Offset: 0, Size: uint64(b.Size),
				},
			})
		}
		bg, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   fmt.Sprintf("shaderlab_bind_%d", g),
			Layout:  bgl,
			Entries: entries,
		})
		if err != nil {
			return groups, fmt.Errorf("create bind group: %w", err)
		}
		groups = append(groups, bg)
	}
	return groups, nil
}

// encodeUniforms lays out the values set for the uniforms of buffer b.
// Unset uniforms stay zero.
func encodeUniforms(layout *wgslc.Layout, values [][]float32, b wgslc.BufferBinding) []byte {
	buf := make([]byte, b.Size)
	for i, u := range layout.Uniforms {
		if u.Group != b.Group || u.Binding != b.Binding || len(values[i]) == 0 {
			continue
		}
		rows, stride := u.Components, uint32(0)
		if m, ok := u.Type.(ir.MatrixType); ok {
			rows, stride = int(m.Rows), wgslc.ColumnStride(m)
		}
		for j, v := range values[i] {
			off := u.Offset + stride*uint32(j/rows) + 4*uint32(j%rows) //nolint:gosec // small indices
			if int(off)+4 > len(buf) {
				break
			}
			binary.LittleEndian.PutUint32(buf[off:], scalarBits(u.Scalar.Kind, v))
		}
	}
	return buf
}

func scalarBits(kind ir.ScalarKind, v float32) uint32 {
	switch kind {
	case ir.ScalarSint:
		return uint32(int32(v))
	case ir.ScalarUint:
		return uint32(v)
	case ir.ScalarBool:
		if v != 0 {
			return 1
		}
		return 0
	default:
		return math.Float32bits(v)
	}
}

func floatBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
