// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"
	"math/bits"

	"github.com/gogpu/naga/ir"
)

// unify converts args to a common kind and component count. Scalars are
// splatted to the widest vector.
func unify(args []value) []value {
	n, k := 1, args[0].kind
	for _, a := range args {
		if !a.numeric() {
			failf("builtin argument of type %s", a.kind)
		}
		n = max(n, a.n)
		k = promote(k, a.kind)
	}
	out := make([]value, len(args))
	for i, a := range args {
		if a.kind != k {
			a = a.convert(k)
		}
		if a.n == 1 && n > 1 {
			a = splat(a, n)
		}
		if a.n != n {
			failf("builtin arguments have %d and %d components", a.n, n)
		}
		out[i] = a
	}
	return out
}

// each applies fn component-wise to unified args.
func each(args []value, fn func(k kind, xs []float64) float64) value {
	args = unify(args)
	k, n := args[0].kind, args[0].n
	out := vector(k, n)
	xs := make([]float64, len(args))
	for i := range n {
		for j, a := range args {
			xs[j] = a.c[i]
		}
		out.c[i] = norm(k, fn(k, xs))
	}
	return out
}

// float1 wraps a one-argument float function.
func float1(fn func(float64) float64) func(kind, []float64) float64 {
	return func(k kind, xs []float64) float64 {
		if k != kindFloat {
			failf("builtin requires f32, got %s", k)
		}
		return fn(xs[0])
	}
}

func floatArgs(args []value) []value {
	for i := range args {
		if args[i].kind != kindFloat {
			args[i] = args[i].convert(kindFloat)
		}
	}
	return args
}

func arity(fun ir.MathFunction, args []value, n int) {
	if len(args) != n {
		failf("math function %d takes %d arguments, got %d", fun, n, len(args))
	}
}

func mathCall(fun ir.MathFunction, args []value) value {
	if args[0].kind == kindMatrix {
		return matrixMath(fun, args)
	}
	switch fun {
	case ir.MathAbs:
		return each(args, func(k kind, xs []float64) float64 {
			if k == kindUint {
				return xs[0]
			}
			return math.Abs(xs[0])
		})
	case ir.MathMin:
		arity(fun, args, 2)
		return each(args, func(_ kind, xs []float64) float64 { return math.Min(xs[0], xs[1]) })
	case ir.MathMax:
		arity(fun, args, 2)
		return each(args, func(_ kind, xs []float64) float64 { return math.Max(xs[0], xs[1]) })
	case ir.MathClamp:
		arity(fun, args, 3)
		return each(args, func(_ kind, xs []float64) float64 { return math.Min(math.Max(xs[0], xs[1]), xs[2]) })
	case ir.MathSaturate:
		return each(floatArgs(args), func(_ kind, xs []float64) float64 { return math.Min(math.Max(xs[0], 0), 1) })
	case ir.MathCos:
		return each(floatArgs(args), float1(math.Cos))
	case ir.MathCosh:
		return each(floatArgs(args), float1(math.Cosh))
	case ir.MathSin:
		return each(floatArgs(args), float1(math.Sin))
	case ir.MathSinh:
		return each(floatArgs(args), float1(math.Sinh))
	case ir.MathTan:
		return each(floatArgs(args), float1(math.Tan))
	case ir.MathTanh:
		return each(floatArgs(args), float1(math.Tanh))
	case ir.MathAcos:
		return each(floatArgs(args), float1(math.Acos))
	case ir.MathAsin:
		return each(floatArgs(args), float1(math.Asin))
	case ir.MathAtan:
		return each(floatArgs(args), float1(math.Atan))
	case ir.MathAtan2:
		arity(fun, args, 2)
		return each(floatArgs(args), func(_ kind, xs []float64) float64 { return math.Atan2(xs[0], xs[1]) })
	case ir.MathAsinh:
		return each(floatArgs(args), float1(math.Asinh))
	case ir.MathAcosh:
		return each(floatArgs(args), float1(math.Acosh))
	case ir.MathAtanh:
		return each(floatArgs(args), float1(math.Atanh))
	case ir.MathRadians:
		return each(floatArgs(args), float1(func(x float64) float64 { return x * math.Pi / 180 }))
	case ir.MathDegrees:
		return each(floatArgs(args), float1(func(x float64) float64 { return x * 180 / math.Pi }))
	case ir.MathCeil:
		return each(floatArgs(args), float1(math.Ceil))
	case ir.MathFloor:
		return each(floatArgs(args), float1(math.Floor))
	case ir.MathRound:
		return each(floatArgs(args), float1(math.RoundToEven))
	case ir.MathFract:
		return each(floatArgs(args), float1(func(x float64) float64 { return x - math.Floor(x) }))
	case ir.MathTrunc:
		return each(floatArgs(args), float1(math.Trunc))
	case ir.MathLdexp:
		arity(fun, args, 2)
		e := args[1]
		if e.n == 1 && args[0].n > 1 {
			e = splat(e, args[0].n)
		}
		out := vector(kindFloat, args[0].n)
		for i := 0; i < args[0].n; i++ {
			out.c[i] = norm(kindFloat, math.Ldexp(args[0].c[i], int(e.c[i])))
		}
		return out
	case ir.MathExp:
		return each(floatArgs(args), float1(math.Exp))
	case ir.MathExp2:
		return each(floatArgs(args), float1(math.Exp2))
	case ir.MathLog:
		return each(floatArgs(args), float1(math.Log))
	case ir.MathLog2:
		return each(floatArgs(args), float1(math.Log2))
	case ir.MathPow:
		arity(fun, args, 2)
		return each(floatArgs(args), func(_ kind, xs []float64) float64 { return math.Pow(xs[0], xs[1]) })
	case ir.MathSqrt:
		return each(floatArgs(args), float1(math.Sqrt))
	case ir.MathInverseSqrt:
		return each(floatArgs(args), float1(func(x float64) float64 { return 1 / math.Sqrt(x) }))
	case ir.MathSign:
		return each(args, func(_ kind, xs []float64) float64 {
			switch {
			case xs[0] > 0:
				return 1
			case xs[0] < 0:
				return -1
			default:
				return 0
			}
		})
	case ir.MathFma:
		arity(fun, args, 3)
		return each(floatArgs(args), func(_ kind, xs []float64) float64 { return math.FMA(xs[0], xs[1], xs[2]) })
	case ir.MathMix:
		arity(fun, args, 3)
		return each(floatArgs(args), func(_ kind, xs []float64) float64 { return xs[0]*(1-xs[2]) + xs[1]*xs[2] })
	case ir.MathStep:
		arity(fun, args, 2)
		return each(floatArgs(args), func(_ kind, xs []float64) float64 { return b2f(xs[1] >= xs[0]) })
	case ir.MathSmoothStep:
		arity(fun, args, 3)
		return each(floatArgs(args), func(_ kind, xs []float64) float64 {
			t := math.Min(math.Max((xs[2]-xs[0])/(xs[1]-xs[0]), 0), 1)
			return t * t * (3 - 2*t)
		})
	case ir.MathDot:
		arity(fun, args, 2)
		a := unify(args)
		return scalar(a[0].kind, dot(a[0], a[1]))
	case ir.MathOuter:
		arity(fun, args, 2)
		a, b := floatArgs(args)[0], args[1]
		out := value{kind: kindMatrix, index: -1, elems: make([]value, b.n)}
		for j := 0; j < b.n; j++ {
			out.elems[j] = binary(ir.BinaryMultiply, a, scalar(kindFloat, b.c[j]))
		}
		return out
	case ir.MathCross:
		arity(fun, args, 2)
		a := unify(floatArgs(args))
		x, y := a[0], a[1]
		if x.n != 3 {
			failf("cross requires vec3")
		}
		return vecFrom(kindFloat, []float64{
			x.c[1]*y.c[2] - x.c[2]*y.c[1],
			x.c[2]*y.c[0] - x.c[0]*y.c[2],
			x.c[0]*y.c[1] - x.c[1]*y.c[0],
		})
	case ir.MathLength:
		v := floatArgs(args)[0]
		return scalar(kindFloat, math.Sqrt(dot(v, v)))
	case ir.MathDistance:
		arity(fun, args, 2)
		d := binary(ir.BinarySubtract, floatArgs(args)[0], args[1])
		return scalar(kindFloat, math.Sqrt(dot(d, d)))
	case ir.MathNormalize:
		v := floatArgs(args)[0]
		l := math.Sqrt(dot(v, v))
		return binary(ir.BinaryDivide, v, scalar(kindFloat, l))
	case ir.MathFaceForward:
		arity(fun, args, 3)
		a := unify(floatArgs(args))
		if dot(a[1], a[2]) < 0 {
			return a[0]
		}
		return unary(ir.UnaryNegate, a[0])
	case ir.MathReflect:
		arity(fun, args, 2)
		a := unify(floatArgs(args))
		d := dot(a[1], a[0])
		return binary(ir.BinarySubtract, a[0], binary(ir.BinaryMultiply, a[1], scalar(kindFloat, 2*d)))
	case ir.MathRefract:
		arity(fun, args, 3)
		a := floatArgs(args)
		e1, e2, eta := a[0], a[1], a[2].c[0]
		d := dot(e2, e1)
		k := 1 - eta*eta*(1-d*d)
		if k < 0 {
			return vector(kindFloat, e1.n)
		}
		return binary(ir.BinarySubtract,
			binary(ir.BinaryMultiply, e1, scalar(kindFloat, eta)),
			binary(ir.BinaryMultiply, e2, scalar(kindFloat, eta*d+math.Sqrt(k))))
	case ir.MathCountTrailingZeros, ir.MathCountLeadingZeros, ir.MathCountOneBits,
		ir.MathReverseBits, ir.MathFirstTrailingBit, ir.MathFirstLeadingBit:
		return each(args, func(k kind, xs []float64) float64 { return bitOp(fun, k, xs[0]) })
	case ir.MathExtractBits:
		arity(fun, args, 3)
		return extractBits(args[0], uint32(args[1].c[0]), uint32(args[2].c[0]))
	case ir.MathInsertBits:
		arity(fun, args, 4)
		return insertBits(args[0], args[1], uint32(args[2].c[0]), uint32(args[3].c[0]))
	case ir.MathPack4x8snorm, ir.MathPack4x8unorm, ir.MathPack2x16snorm, ir.MathPack2x16unorm,
		ir.MathPack4xI8, ir.MathPack4xU8, ir.MathPack4xI8Clamp, ir.MathPack4xU8Clamp:
		return scalar(kindUint, float64(pack(fun, args[0])))
	case ir.MathUnpack4x8snorm, ir.MathUnpack4x8unorm, ir.MathUnpack2x16snorm, ir.MathUnpack2x16unorm,
		ir.MathUnpack4xI8, ir.MathUnpack4xU8:
		return unpack(fun, uint32(args[0].c[0]))
	default:
		failf("unsupported math function %d", fun)
	}
	return value{}
}

func matrixMath(fun ir.MathFunction, args []value) value {
	m := args[0]
	switch fun {
	case ir.MathTranspose:
		rows := m.elems[0].n
		out := value{kind: kindMatrix, index: -1, elems: make([]value, rows)}
		for r := range rows {
			col := vector(kindFloat, len(m.elems))
			for c, src := range m.elems {
				col.c[c] = src.c[r]
			}
			out.elems[r] = col
		}
		return out
	case ir.MathDeterminant:
		return scalar(kindFloat, determinant(m))
	default:
		failf("math function %d is not defined for matrices", fun)
	}
	return value{}
}

// determinant expands along the first column.
func determinant(m value) float64 {
	n := len(m.elems)
	if n == 0 || m.elems[0].n != n {
		failf("determinant of a non-square matrix")
	}
	if n == 1 {
		return m.elems[0].c[0]
	}
	if n == 2 {
		return m.elems[0].c[0]*m.elems[1].c[1] - m.elems[1].c[0]*m.elems[0].c[1]
	}
	var det float64
	sign := 1.0
	for r := range n {
		minor := value{kind: kindMatrix, index: -1, elems: make([]value, n-1)}
		for c := 1; c < n; c++ {
			col := vector(kindFloat, n-1)
			k := 0
			for rr := range n {
				if rr != r {
					col.c[k] = m.elems[c].c[rr]
					k++
				}
			}
			minor.elems[c-1] = col
		}
		det += sign * m.elems[0].c[r] * determinant(minor)
		sign = -sign
	}
	return norm(kindFloat, det)
}

func bitOp(fun ir.MathFunction, k kind, x float64) float64 {
	if k != kindSint && k != kindUint {
		failf("bit function on %s", k)
	}
	var u uint32
	if k == kindSint {
		u = uint32(int32(x))
	} else {
		u = uint32(x)
	}
	var r uint32
	switch fun {
	case ir.MathCountTrailingZeros:
		r = uint32(bits.TrailingZeros32(u))
	case ir.MathCountLeadingZeros:
		r = uint32(bits.LeadingZeros32(u))
	case ir.MathCountOneBits:
		r = uint32(bits.OnesCount32(u))
	case ir.MathReverseBits:
		r = bits.Reverse32(u)
	case ir.MathFirstTrailingBit:
		if u == 0 {
			r = math.MaxUint32
		} else {
			r = uint32(bits.TrailingZeros32(u))
		}
	case ir.MathFirstLeadingBit:
		if k == kindSint && int32(u) < 0 {
			u = ^u
		}
		if u == 0 {
			r = math.MaxUint32
		} else {
			r = 31 - uint32(bits.LeadingZeros32(u))
		}
	}
	if k == kindSint {
		return float64(int32(r))
	}
	return float64(r)
}

func bitRange(offset, count uint32) (uint32, uint32) {
	o := min(offset, 32)
	return o, min(count, 32-o)
}

func extractBits(v value, offset, count uint32) value {
	o, c := bitRange(offset, count)
	out := vector(v.kind, v.n)
	for i := 0; i < v.n; i++ {
		if c == 0 {
			continue
		}
		switch v.kind {
		case kindUint:
			out.c[i] = float64((uint32(v.c[i]) >> o) & (uint32(1<<c - 1)))
		case kindSint:
			x := int32(v.c[i])
			out.c[i] = float64((x << (32 - o - c)) >> (32 - c))
		default:
			failf("extractBits on %s", v.kind)
		}
	}
	return out
}

func insertBits(e, nb value, offset, count uint32) value {
	o, c := bitRange(offset, count)
	if nb.n == 1 && e.n > 1 {
		nb = splat(nb, e.n)
	}
	mask := uint32((uint64(1)<<c - 1) << o)
	out := vector(e.kind, e.n)
	for i := 0; i < e.n; i++ {
		var x, y uint32
		if e.kind == kindSint {
			x, y = uint32(int32(e.c[i])), uint32(int32(nb.c[i]))
		} else {
			x, y = uint32(e.c[i]), uint32(nb.c[i])
		}
		r := (x &^ mask) | ((y << o) & mask)
		if e.kind == kindSint {
			out.c[i] = float64(int32(r))
		} else {
			out.c[i] = float64(r)
		}
	}
	return out
}

func pack(fun ir.MathFunction, v value) uint32 {
	var out uint32
	for i := 0; i < v.n; i++ {
		x := v.c[i]
		var b uint32
		switch fun {
		case ir.MathPack4x8snorm:
			b = uint32(uint8(int8(math.Floor(0.5 + 127*math.Min(1, math.Max(-1, x))))))
		case ir.MathPack4x8unorm:
			b = uint32(uint8(math.Floor(0.5 + 255*math.Min(1, math.Max(0, x)))))
		case ir.MathPack2x16snorm:
			b = uint32(uint16(int16(math.Floor(0.5 + 32767*math.Min(1, math.Max(-1, x))))))
		case ir.MathPack2x16unorm:
			b = uint32(uint16(math.Floor(0.5 + 65535*math.Min(1, math.Max(0, x)))))
		case ir.MathPack4xI8, ir.MathPack4xU8:
			b = uint32(int64(x)) & 0xff
		case ir.MathPack4xI8Clamp:
			b = uint32(uint8(int8(math.Min(127, math.Max(-128, x)))))
		case ir.MathPack4xU8Clamp:
			b = uint32(math.Min(255, math.Max(0, x)))
		}
		width := uint32(8)
		if fun == ir.MathPack2x16snorm || fun == ir.MathPack2x16unorm {
			width = 16
		}
		out |= b << (width * uint32(i))
	}
	return out
}

func unpack(fun ir.MathFunction, u uint32) value {
	switch fun {
	case ir.MathUnpack4x8snorm:
		out := vector(kindFloat, 4)
		for i := range 4 {
			out.c[i] = norm(kindFloat, math.Max(float64(int8(u>>(8*i)))/127, -1))
		}
		return out
	case ir.MathUnpack4x8unorm:
		out := vector(kindFloat, 4)
		for i := range 4 {
			out.c[i] = norm(kindFloat, float64(uint8(u>>(8*i)))/255)
		}
		return out
	case ir.MathUnpack2x16snorm:
		out := vector(kindFloat, 2)
		for i := range 2 {
			out.c[i] = norm(kindFloat, math.Max(float64(int16(u>>(16*i)))/32767, -1))
		}
		return out
	case ir.MathUnpack2x16unorm:
		out := vector(kindFloat, 2)
		for i := range 2 {
			out.c[i] = norm(kindFloat, float64(uint16(u>>(16*i)))/65535)
		}
		return out
	case ir.MathUnpack4xI8:
		out := vector(kindSint, 4)
		for i := range 4 {
			out.c[i] = float64(int8(u >> (8 * i)))
		}
		return out
	default:
		out := vector(kindUint, 4)
		for i := range 4 {
			out.c[i] = float64(uint8(u >> (8 * i)))
		}
		return out
	}
}
