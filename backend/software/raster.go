// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/internal/parallel"
	"github.com/gogpu/shaderlab/internal/wgslc"
)

// ErrShaderFault is returned by DrawArrays when a shader invocation fails
// at run time, for example by exceeding the loop limit.
var ErrShaderFault = errors.New("software: shader fault")

// clipEpsilon keeps vertices strictly in front of the eye.
const clipEpsilon = 1e-6

// attribSource feeds one vertex attribute location.
type attribSource struct {
	data []float32
	size int
}

// clipVertex is a shaded vertex in clip space with its raw varyings.
type clipVertex struct {
	pos  [4]float64
	vary []float64
}

// screenVertex is a vertex in window coordinates. Varyings are divided by
// w for perspective-correct interpolation.
type screenVertex struct {
	x, y, z, invW float64
	vary          []float64
}

type triangle struct {
	v      [3]screenVertex
	area   float64
	front  bool
	flat   []float64 // varyings of the provoking vertex
	bounds image.Rectangle
}

// drawCall rasterizes one DrawArrays call into target.
type drawCall struct {
	prog     *linked
	attribs  map[uint32]attribSource
	viewport image.Rectangle
	target   *image.RGBA
	pool     *parallel.WorkerPool

	vsUniforms []value
	fsUniforms []value

	failed atomic.Bool
	once   sync.Once
	err    error
}

func (d *drawCall) fail(stage string, p any) {
	d.once.Do(func() {
		if f, ok := p.(fault); ok {
			d.err = fmt.Errorf("%w: %s stage: %s", ErrShaderFault, stage, f.msg)
		} else {
			d.err = fmt.Errorf("%w: %s stage: %v", ErrShaderFault, stage, p)
		}
		d.failed.Store(true)
	})
}

// run shades count vertices from first, assembles primitives and shades
// every covered pixel.
func (d *drawCall) run(mode backend.Topology, first, count int) error {
	verts := d.shadeVertices(first, count)
	if d.failed.Load() {
		return d.err
	}

	var tris []triangle
	assemble(mode, len(verts), func(a, b, c int) {
		tris = d.setup(tris, verts[a], verts[b], verts[c])
	})

	area := d.viewport.Intersect(d.target.Bounds())
	if len(tris) == 0 || area.Empty() {
		return nil
	}
	parallel.ForEachTile(d.pool, area, func(t parallel.Tile) {
		d.shadeTile(t, tris)
	})
	if d.failed.Load() {
		return d.err
	}
	return nil
}

// assemble calls emit with the vertex indices of each triangle.
func assemble(mode backend.Topology, n int, emit func(a, b, c int)) {
	switch mode {
	case backend.TriangleStrip:
		for i := 0; i+2 < n; i++ {
			if i%2 == 0 {
				emit(i, i+1, i+2)
			} else {
				emit(i+1, i, i+2)
			}
		}
	default:
		for i := 0; i+2 < n; i += 3 {
			emit(i, i+1, i+2)
		}
	}
}

func (d *drawCall) shadeVertices(first, count int) []clipVertex {
	p := d.prog
	out := make([]clipVertex, 0, count)
	defer func() {
		if r := recover(); r != nil {
			d.fail("vertex", r)
		}
	}()

	inv := newInvocation(p.vsm, d.vsUniforms)
	m := p.vs.Module
	fn := p.vs.Function()
	var args []value
	for i := first; i < first+count; i++ {
		args = entryArgs(m, fn, args[:0], func(b ir.Binding, t ir.TypeInner) value {
			switch b := b.(type) {
			case ir.LocationBinding:
				return d.attribute(b.Location, i, t)
			case ir.BuiltinBinding:
				if b.Builtin == ir.BuiltinVertexIndex {
					return coerce(scalar(kindUint, float64(i)), zeroOf(m, t))
				}
			}
			return zeroOf(m, t)
		})
		ret, _ := inv.run(args)

		cv := clipVertex{vary: make([]float64, 0, p.varyingWidth)}
		pos := resultMember(ret, p.position)
		for c := 0; c < 4 && c < pos.n; c++ {
			cv.pos[c] = pos.c[c]
		}
		for _, member := range p.varyingMembers {
			cv.vary = flatten(cv.vary, resultMember(ret, member))
		}
		out = append(out, cv)
	}
	return out
}

// attribute reads vertex i of the attribute at loc, filling missing
// components from (0, 0, 0, 1).
func (d *drawCall) attribute(loc uint32, i int, t ir.TypeInner) value {
	v := zeroOf(d.prog.vs.Module, t)
	src := d.attribs[loc]
	defaults := [4]float64{0, 0, 0, 1}
	for c := 0; c < v.n; c++ {
		x := defaults[c]
		if c < src.size {
			x = float64(src.data[i*src.size+c])
		}
		v.c[c] = convertScalar(kindFloat, v.kind, norm(kindFloat, x))
	}
	return v
}

func resultMember(ret value, member int) value {
	if member < 0 {
		return ret
	}
	return ret.elems[member]
}

// entryArgs builds entry point arguments, calling bind for each argument
// or struct member that carries a binding.
func entryArgs(m *ir.Module, fn *ir.Function, dst []value, bind func(ir.Binding, ir.TypeInner) value) []value {
	for _, arg := range fn.Arguments {
		t := wgslc.Inner(m, arg.Type)
		if arg.Binding != nil {
			dst = append(dst, bind(*arg.Binding, t))
			continue
		}
		v := zeroOf(m, t)
		if st, ok := t.(ir.StructType); ok {
			for j, member := range st.Members {
				if member.Binding != nil {
					v.elems[j] = bind(*member.Binding, wgslc.Inner(m, member.Type))
				}
			}
		}
		dst = append(dst, v)
	}
	return dst
}

// setup clips a triangle against the near, far and w > 0 planes, then
// converts the resulting fan to window coordinates.
func (d *drawCall) setup(tris []triangle, a, b, c clipVertex) []triangle {
	poly := []clipVertex{a, b, c}
	for _, plane := range []func(p [4]float64) float64{
		func(p [4]float64) float64 { return p[3] - clipEpsilon },
		func(p [4]float64) float64 { return p[2] },
		func(p [4]float64) float64 { return p[3] - p[2] },
	} {
		poly = clipPolygon(poly, plane)
		if len(poly) < 3 {
			return tris
		}
	}

	vp := d.viewport
	screen := make([]screenVertex, len(poly))
	for i, v := range poly {
		invW := 1 / v.pos[3]
		sv := screenVertex{
			x:    float64(vp.Min.X) + (v.pos[0]*invW+1)/2*float64(vp.Dx()),
			y:    float64(vp.Min.Y) + (1-v.pos[1]*invW)/2*float64(vp.Dy()),
			z:    v.pos[2] * invW,
			invW: invW,
			vary: make([]float64, len(v.vary)),
		}
		for j, x := range v.vary {
			sv.vary[j] = x * invW
		}
		screen[i] = sv
	}

	for i := 1; i+1 < len(screen); i++ {
		t := triangle{v: [3]screenVertex{screen[0], screen[i], screen[i+1]}, flat: a.vary}
		t.area = edge(t.v[0], t.v[1], t.v[2].x, t.v[2].y)
		if t.area == 0 || math.IsNaN(t.area) {
			continue
		}
		// Window y points down, so counter-clockwise in NDC has negative area.
		t.front = t.area < 0
		if t.area < 0 {
			t.v[1], t.v[2] = t.v[2], t.v[1]
			t.area = -t.area
		}
		minX := math.Min(t.v[0].x, math.Min(t.v[1].x, t.v[2].x))
		minY := math.Min(t.v[0].y, math.Min(t.v[1].y, t.v[2].y))
		maxX := math.Max(t.v[0].x, math.Max(t.v[1].x, t.v[2].x))
		maxY := math.Max(t.v[0].y, math.Max(t.v[1].y, t.v[2].y))
		t.bounds = image.Rect(
			int(math.Floor(minX)), int(math.Floor(minY)),
			int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1,
		).Intersect(vp)
		if t.bounds.Empty() {
			continue
		}
		tris = append(tris, t)
	}
	return tris
}

func clipPolygon(in []clipVertex, dist func([4]float64) float64) []clipVertex {
	out := make([]clipVertex, 0, len(in)+2)
	for i := range in {
		cur, next := in[i], in[(i+1)%len(in)]
		dc, dn := dist(cur.pos), dist(next.pos)
		if dc >= 0 {
			out = append(out, cur)
		}
		if (dc >= 0) != (dn >= 0) {
			out = append(out, lerpVertex(cur, next, dc/(dc-dn)))
		}
	}
	return out
}

func lerpVertex(a, b clipVertex, t float64) clipVertex {
	var out clipVertex
	for i := range out.pos {
		out.pos[i] = a.pos[i] + (b.pos[i]-a.pos[i])*t
	}
	out.vary = make([]float64, len(a.vary))
	for i := range a.vary {
		out.vary[i] = a.vary[i] + (b.vary[i]-a.vary[i])*t
	}
	return out
}

// edge is the signed area spanned by a->b and a->p.
func edge(a, b screenVertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// topLeft reports whether the edge a->b owns pixels exactly on it.
func topLeft(a, b screenVertex) bool {
	dx, dy := b.x-a.x, b.y-a.y
	return (dy == 0 && dx > 0) || dy < 0
}

// coverage returns the barycentric weights of the pixel center (px, py)
// and whether the pixel is inside t.
func (t *triangle) coverage(px, py float64) ([3]float64, bool) {
	w := [3]float64{
		edge(t.v[1], t.v[2], px, py),
		edge(t.v[2], t.v[0], px, py),
		edge(t.v[0], t.v[1], px, py),
	}
	inside := true
	for i, e := range w {
		a, b := t.v[(i+1)%3], t.v[(i+2)%3]
		if e < 0 || (e == 0 && !topLeft(a, b)) {
			inside = false
		}
	}
	for i := range w {
		w[i] /= t.area
	}
	return w, inside
}

// fragmentShader is the per-tile fragment state.
type fragmentShader struct {
	d    *drawCall
	inv  *invocation
	args []value
	vary []float64
}

func (d *drawCall) shadeTile(tile parallel.Tile, tris []triangle) {
	if d.failed.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.fail("fragment", r)
		}
	}()

	fs := &fragmentShader{
		d:    d,
		inv:  newInvocation(d.prog.fsm, d.fsUniforms),
		vary: make([]float64, d.prog.varyingWidth),
	}
	quads := d.prog.fsm.derivatives
	if quads {
		fs.inv.deriv = &derivatives{quad: &[4][]value{}}
	}

	for i := range tris {
		if d.failed.Load() {
			return
		}
		t := &tris[i]
		r := t.bounds.Intersect(tile.Rect)
		if r.Empty() {
			continue
		}
		if quads {
			fs.quads(t, r, tile.Rect)
		} else {
			fs.pixels(t, r)
		}
	}
}

func (fs *fragmentShader) pixels(t *triangle, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			w, inside := t.coverage(px, py)
			if !inside {
				continue
			}
			if c, ok := fs.shade(t, w, px, py); ok {
				fs.d.write(x, y, c)
			}
		}
	}
}

// quads shades r in aligned 2x2 blocks. Lanes outside the triangle or
// the tile run as helpers: they feed derivatives but write nothing.
func (fs *fragmentShader) quads(t *triangle, r, owned image.Rectangle) {
	d := fs.inv.deriv
	for qy := r.Min.Y &^ 1; qy < r.Max.Y; qy += 2 {
		for qx := r.Min.X &^ 1; qx < r.Max.X; qx += 2 {
			var w [4][3]float64
			var covered [4]bool
			hit := false
			for lane := range 4 {
				x, y := qx+lane&1, qy+lane>>1
				w[lane], covered[lane] = t.coverage(float64(x)+0.5, float64(y)+0.5)
				covered[lane] = covered[lane] && image.Pt(x, y).In(owned) && image.Pt(x, y).In(r)
				hit = hit || covered[lane]
			}
			if !hit {
				continue
			}
			for lane := range 4 {
				x, y := qx+lane&1, qy+lane>>1
				d.begin(lane, false)
				fs.shade(t, w[lane], float64(x)+0.5, float64(y)+0.5)
			}
			for lane := range 4 {
				if !covered[lane] {
					continue
				}
				x, y := qx+lane&1, qy+lane>>1
				d.begin(lane, true)
				if c, ok := fs.shade(t, w[lane], float64(x)+0.5, float64(y)+0.5); ok {
					fs.d.write(x, y, c)
				}
			}
		}
	}
}

// shade runs the fragment stage at one pixel. It reports false when the
// fragment was discarded.
func (fs *fragmentShader) shade(t *triangle, w [3]float64, px, py float64) ([4]float64, bool) {
	p := fs.d.prog
	invW := w[0]*t.v[0].invW + w[1]*t.v[1].invW + w[2]*t.v[2].invW
	z := w[0]*t.v[0].z + w[1]*t.v[1].z + w[2]*t.v[2].z
	for i := range fs.vary {
		fs.vary[i] = (w[0]*t.v[0].vary[i] + w[1]*t.v[1].vary[i] + w[2]*t.v[2].vary[i]) / invW
	}

	m := p.fs.Module
	fs.args = entryArgs(m, p.fs.Function(), fs.args[:0], func(b ir.Binding, typ ir.TypeInner) value {
		switch b := b.(type) {
		case ir.LocationBinding:
			return fs.varying(t, b.Location, typ)
		case ir.BuiltinBinding:
			switch b.Builtin {
			case ir.BuiltinPosition:
				return vecFrom(kindFloat, []float64{px, py, z, invW})
			case ir.BuiltinFrontFacing:
				return scalar(kindBool, b2f(t.front))
			case ir.BuiltinSampleMask:
				return scalar(kindUint, math.MaxUint32)
			}
		}
		return zeroOf(m, typ)
	})

	ret, ok := fs.inv.run(fs.args)
	if !ok {
		return [4]float64{}, false
	}
	out := resultMember(ret, p.color)
	c := [4]float64{0, 0, 0, 1}
	for i := 0; i < out.n && i < 4; i++ {
		c[i] = out.c[i]
	}
	return c, true
}

func (fs *fragmentShader) varying(t *triangle, loc uint32, typ ir.TypeInner) value {
	p := fs.d.prog
	v := zeroOf(p.fs.Module, typ)
	i, ok := p.varyingAt[loc]
	if !ok {
		return v
	}
	src := fs.vary
	if p.layout.Varyings[i].Flat {
		src = t.flat
	}
	off := p.varyingOffsets[i]
	for c := 0; c < v.n; c++ {
		v.c[c] = convertScalar(kindFloat, v.kind, norm(kindFloat, src[off+c]))
	}
	return v
}

// write stores c as raw RGBA8. Components are clamped to [0, 1].
func (d *drawCall) write(x, y int, c [4]float64) {
	o := d.target.PixOffset(x, y)
	px := d.target.Pix[o : o+4 : o+4]
	for i, v := range c {
		px[i] = unorm8(v)
	}
}

func unorm8(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
