// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel provides tile-based parallel shading for the software device.
//
// A draw call covers a screen-space rectangle. The rectangle is split into
// 64x64 pixel tiles that are shaded independently on a WorkerPool:
//
//   - tiles never overlap, so workers write disjoint pixels without locks
//   - tile origins are even, so 2x2 pixel quads never straddle two tiles
//
// Thread safety: Tiles is a pure function. Use the WorkerPool for parallel access.
package parallel

import "image"

// Tile size constants.
const (
	// TileWidth is the width of a tile in pixels.
	TileWidth = 64

	// TileHeight is the height of a tile in pixels.
	TileHeight = 64

	// TilePixels is the total number of pixels in a full tile.
	TilePixels = TileWidth * TileHeight
)

// Tile is a rectangular region of the target in pixel space.
// Edge tiles may be smaller than TileWidth x TileHeight.
type Tile struct {
	// X is the tile column index (0-based) within the split region.
	X int

	// Y is the tile row index (0-based) within the split region.
	Y int

	// Rect is the pixel rectangle covered by the tile.
	Rect image.Rectangle
}

// Width returns the tile width in pixels.
func (t Tile) Width() int { return t.Rect.Dx() }

// Height returns the tile height in pixels.
func (t Tile) Height() int { return t.Rect.Dy() }

// Contains returns true if the pixel (x, y) is within this tile.
func (t Tile) Contains(x, y int) bool {
	return image.Pt(x, y).In(t.Rect)
}

// Tiles splits r into tiles anchored at an even origin so that 2x2 quads
// never cross a tile border. Tiles are returned in row-major order.
// An empty rectangle yields no tiles.
func Tiles(r image.Rectangle) []Tile {
	r = r.Canon()
	if r.Empty() {
		return nil
	}
	x0 := r.Min.X &^ 1
	y0 := r.Min.Y &^ 1

	var tiles []Tile
	row := 0
	for ty := y0; ty < r.Max.Y; ty += TileHeight {
		col := 0
		for tx := x0; tx < r.Max.X; tx += TileWidth {
			tr := image.Rect(tx, ty, tx+TileWidth, ty+TileHeight).Intersect(r)
			if !tr.Empty() {
				tiles = append(tiles, Tile{X: col, Y: row, Rect: tr})
			}
			col++
		}
		row++
	}
	return tiles
}

// ForEachTile runs fn once per tile of r on pool and waits for completion.
// A nil pool runs the tiles sequentially on the calling goroutine.
func ForEachTile(pool *WorkerPool, r image.Rectangle, fn func(Tile)) {
	tiles := Tiles(r)
	if pool == nil || len(tiles) == 1 {
		for _, t := range tiles {
			fn(t)
		}
		return
	}
	work := make([]func(), len(tiles))
	for i, t := range tiles {
		work[i] = func() { fn(t) }
	}
	pool.ExecuteAll(work)
}
