// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"image"
	"sync"
	"testing"
)

func TestTiles(t *testing.T) {
	tests := []struct {
		name  string
		rect  image.Rectangle
		count int
	}{
		{"empty", image.Rectangle{}, 0},
		{"single pixel", image.Rect(5, 5, 6, 6), 1},
		{"exact tile", image.Rect(0, 0, 64, 64), 1},
		{"default canvas", image.Rect(0, 0, 400, 400), 49},
		{"odd origin", image.Rect(63, 0, 130, 10), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiles := Tiles(tt.rect)
			if len(tiles) != tt.count {
				t.Fatalf("len(Tiles(%v)) = %d, want %d", tt.rect, len(tiles), tt.count)
			}
			area := 0
			for _, tile := range tiles {
				if !tile.Rect.In(tt.rect) {
					t.Errorf("tile %v outside %v", tile.Rect, tt.rect)
				}
				if tile.Width() > TileWidth || tile.Height() > TileHeight {
					t.Errorf("tile %v larger than %dx%d", tile.Rect, TileWidth, TileHeight)
				}
				area += tile.Width() * tile.Height()
			}
			if want := tt.rect.Dx() * tt.rect.Dy(); area != want {
				t.Errorf("tiles cover %d pixels, want %d", area, want)
			}
		})
	}
}

func TestTiles_EvenBorders(t *testing.T) {
	for _, tile := range Tiles(image.Rect(3, 7, 301, 211)) {
		if tile.Rect.Max.X != 301 && tile.Rect.Max.X%2 != 0 {
			t.Errorf("inner tile border x=%d is odd", tile.Rect.Max.X)
		}
		if tile.Rect.Max.Y != 211 && tile.Rect.Max.Y%2 != 0 {
			t.Errorf("inner tile border y=%d is odd", tile.Rect.Max.Y)
		}
	}
}

func TestForEachTile(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	r := image.Rect(0, 0, 200, 130)
	var mu sync.Mutex
	seen := make(map[image.Point]int)

	ForEachTile(pool, r, func(tile Tile) {
		mu.Lock()
		defer mu.Unlock()
		for y := tile.Rect.Min.Y; y < tile.Rect.Max.Y; y++ {
			for x := tile.Rect.Min.X; x < tile.Rect.Max.X; x++ {
				seen[image.Pt(x, y)]++
			}
		}
	})

	if len(seen) != r.Dx()*r.Dy() {
		t.Fatalf("visited %d pixels, want %d", len(seen), r.Dx()*r.Dy())
	}
	for p, n := range seen {
		if n != 1 {
			t.Fatalf("pixel %v visited %d times", p, n)
		}
	}
}

func TestForEachTile_NilPool(t *testing.T) {
	count := 0
	ForEachTile(nil, image.Rect(0, 0, 130, 64), func(Tile) { count++ })
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestTile_Contains(t *testing.T) {
	tile := Tile{Rect: image.Rect(64, 0, 128, 64)}
	if !tile.Contains(64, 0) || tile.Contains(128, 0) || tile.Contains(63, 10) {
		t.Error("Contains does not honor half-open bounds")
	}
}
