// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/shaderlab/internal/logging"
)

const (
	annotateSize   = 12
	annotateMargin = 6
)

var (
	bandColor = color.RGBA{A: 192}
	textColor = color.RGBA{R: 255, G: 110, B: 110, A: 255}
)

var (
	fontOnce sync.Once
	fontData *opentype.Font
)

func overlayFont() *opentype.Font {
	fontOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			logging.Logger().Warn("canvas: overlay font unavailable", "err", err)
			return
		}
		fontData = f
	})
	return fontData
}

// Annotate returns a copy of img with msg printed over a dark band along
// the top edge. Long lines are wrapped at word boundaries to the image width.
func Annotate(img *image.RGBA, msg string) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	f := overlayFont()
	if f == nil || strings.TrimSpace(msg) == "" {
		return out
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    annotateSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return out
	}
	defer func() {
		_ = face.Close()
	}()

	lines := wrap(face, msg, fixed.I(out.Bounds().Dx()-2*annotateMargin))
	m := face.Metrics()
	lineHeight := m.Height.Ceil()
	band := min(len(lines)*lineHeight+2*annotateMargin, out.Bounds().Dy())
	draw.Draw(out, image.Rect(0, 0, out.Bounds().Dx(), band), image.NewUniform(bandColor), image.Point{}, draw.Over)

	d := &font.Drawer{Dst: out, Src: image.NewUniform(textColor), Face: face}
	y := annotateMargin + m.Ascent.Ceil()
	for _, line := range lines {
		if y > band {
			break
		}
		d.Dot = fixed.P(annotateMargin, y)
		d.DrawString(line)
		y += lineHeight
	}
	return out
}

// wrap splits msg into lines no wider than width.
func wrap(face font.Face, msg string, width fixed.Int26_6) []string {
	var lines []string
	for _, para := range strings.Split(msg, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if font.MeasureString(face, line+" "+w) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return lines
}

// Scale enlarges img by an integer factor with nearest-neighbor sampling,
// keeping pixels sharp. Factors below 2 return img unchanged.
func Scale(img *image.RGBA, factor int) *image.RGBA {
	if factor < 2 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
