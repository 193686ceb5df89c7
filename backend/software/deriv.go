// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"

	"github.com/gogpu/naga/ir"
)

// derivatives is the screen-space derivative state of a fragment
// invocation. Fragments that reach a derivative are shaded in 2x2 quads
// twice: the first pass records the operand of every derivative in
// evaluation order, the second pass replays each occurrence from the
// records of the four quad lanes.
type derivatives struct {
	replay bool
	seq    int
	lane   int // 0 top-left, 1 top-right, 2 bottom-left, 3 bottom-right
	quad   *[4][]value
}

func (d *derivatives) begin(lane int, replay bool) {
	d.lane = lane
	d.replay = replay
	d.seq = 0
	if !replay {
		d.quad[lane] = d.quad[lane][:0]
	}
}

func (inv *invocation) derivative(e ir.ExprDerivative, v value) value {
	if !v.numeric() {
		failf("derivative of %s", v.kind)
	}
	zero := vector(kindFloat, v.n)
	d := inv.deriv
	if d == nil {
		return zero
	}
	k := d.seq
	d.seq++
	if !d.replay {
		d.quad[d.lane] = append(d.quad[d.lane], v)
		return zero
	}

	var rec [4]value
	for i := range rec {
		if k >= len(d.quad[i]) || d.quad[i][k].n != v.n {
			return zero
		}
		rec[i] = d.quad[i][k]
	}

	x0, x1, y0, y1 := 0, 1, 0, 2
	if e.Control != ir.DerivativeCoarse {
		x0, x1 = d.lane&^1, d.lane|1
		y0, y1 = d.lane&^2, d.lane|2
	}
	out := vector(kindFloat, v.n)
	for i := 0; i < v.n; i++ {
		dx := rec[x1].c[i] - rec[x0].c[i]
		dy := rec[y1].c[i] - rec[y0].c[i]
		switch e.Axis {
		case ir.DerivativeX:
			out.c[i] = norm(kindFloat, dx)
		case ir.DerivativeY:
			out.c[i] = norm(kindFloat, dy)
		default:
			out.c[i] = norm(kindFloat, math.Abs(dx)+math.Abs(dy))
		}
	}
	return out
}

// usesDerivatives reports whether a function reachable from entry
// computes a derivative.
func usesDerivatives(m *ir.Module, entry ir.FunctionHandle) bool {
	for _, h := range reachable(m, entry) {
		for _, e := range m.Functions[h].Expressions {
			if _, ok := e.Kind.(ir.ExprDerivative); ok {
				return true
			}
		}
	}
	return false
}
