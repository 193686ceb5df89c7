// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"math"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderlab/internal/wgslc"
)

// kind is the runtime class of a value.
type kind uint8

const (
	kindVoid kind = iota
	kindFloat
	kindSint
	kindUint
	kindBool
	kindMatrix    // elems are column vectors
	kindComposite // struct or array; elems are members
	kindPointer
)

func (k kind) String() string {
	switch k {
	case kindVoid:
		return "void"
	case kindFloat:
		return "f32"
	case kindSint:
		return "i32"
	case kindUint:
		return "u32"
	case kindBool:
		return "bool"
	case kindMatrix:
		return "matrix"
	case kindComposite:
		return "composite"
	case kindPointer:
		return "pointer"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// value is an interpreter value. Scalars and vectors keep up to four
// components in c; integers and booleans are stored exactly as float64.
type value struct {
	kind  kind
	n     int
	c     [4]float64
	elems []value
	ref   *value
	index int // component of *ref addressed by a pointer, or -1
}

// fault is a runtime shader error. It is raised with panic inside the
// interpreter and recovered at the draw boundary.
type fault struct {
	msg string
}

func (f fault) Error() string { return f.msg }

func failf(format string, args ...any) {
	panic(fault{msg: fmt.Sprintf(format, args...)})
}

func scalar(k kind, x float64) value {
	v := value{kind: k, n: 1, index: -1}
	v.c[0] = norm(k, x)
	return v
}

func vector(k kind, n int) value {
	return value{kind: k, n: n, index: -1}
}

func pointerTo(ref *value, index int) value {
	return value{kind: kindPointer, ref: ref, index: index}
}

func (v value) numeric() bool {
	return v.kind >= kindFloat && v.kind <= kindBool
}

func (v value) clone() value {
	if v.elems == nil {
		return v
	}
	out := v
	out.elems = make([]value, len(v.elems))
	for i := range v.elems {
		out.elems[i] = v.elems[i].clone()
	}
	return out
}

// norm rounds x to the precision of kind k: floats to float32, integers
// wrap to 32 bits, booleans to 0 or 1.
func norm(k kind, x float64) float64 {
	switch k {
	case kindFloat:
		return float64(float32(x))
	case kindSint:
		if x >= -2147483648 && x <= 2147483647 {
			return math.Trunc(x)
		}
		return float64(int32(int64(x)))
	case kindUint:
		if x >= 0 && x <= 4294967295 {
			return math.Trunc(x)
		}
		return float64(uint32(int64(x)))
	case kindBool:
		if x != 0 {
			return 1
		}
		return 0
	default:
		return x
	}
}

// convertScalar performs a value conversion between scalar kinds.
func convertScalar(from, to kind, x float64) float64 {
	if from == to {
		return x
	}
	switch to {
	case kindFloat:
		return norm(kindFloat, x)
	case kindSint:
		if from == kindFloat {
			if math.IsNaN(x) {
				return 0
			}
			return math.Trunc(math.Max(-2147483648, math.Min(2147483520, x)))
		}
		return norm(kindSint, x)
	case kindUint:
		if from == kindFloat {
			if math.IsNaN(x) {
				return 0
			}
			return math.Trunc(math.Max(0, math.Min(4294967040, x)))
		}
		return norm(kindUint, x)
	case kindBool:
		return norm(kindBool, x)
	default:
		return x
	}
}

// bitcastScalar reinterprets the 32 bits of x as kind to.
func bitcastScalar(from, to kind, x float64) float64 {
	if from == to {
		return x
	}
	var bits uint32
	switch from {
	case kindFloat:
		bits = math.Float32bits(float32(x))
	case kindSint:
		bits = uint32(int32(x))
	case kindUint:
		bits = uint32(x)
	default:
		failf("bitcast from %s", from)
	}
	switch to {
	case kindFloat:
		return float64(math.Float32frombits(bits))
	case kindSint:
		return float64(int32(bits))
	case kindUint:
		return float64(bits)
	default:
		failf("bitcast to %s", to)
	}
	return 0
}

func (v value) convert(to kind) value {
	if !v.numeric() {
		failf("cannot convert %s to %s", v.kind, to)
	}
	out := vector(to, v.n)
	for i := 0; i < v.n; i++ {
		out.c[i] = convertScalar(v.kind, to, v.c[i])
	}
	return out
}

func (v value) truthy() bool {
	if !v.numeric() || v.n != 1 {
		failf("condition must be a scalar, got %s x%d", v.kind, v.n)
	}
	return v.c[0] != 0
}

// int returns v as an integer index.
func (v value) int() int {
	if !v.numeric() || v.n != 1 {
		failf("index must be a scalar")
	}
	return int(v.c[0])
}

func kindOf(s ir.ScalarKind) kind {
	switch s {
	case ir.ScalarFloat:
		return kindFloat
	case ir.ScalarSint:
		return kindSint
	case ir.ScalarUint:
		return kindUint
	case ir.ScalarBool:
		return kindBool
	default:
		return kindVoid
	}
}

// zeroOf returns the zero value of a type.
func zeroOf(m *ir.Module, t ir.TypeInner) value {
	switch t := t.(type) {
	case ir.ScalarType:
		return vector(kindOf(t.Kind), 1)
	case ir.AtomicType:
		return vector(kindOf(t.Scalar.Kind), 1)
	case ir.VectorType:
		return vector(kindOf(t.Scalar.Kind), int(t.Size))
	case ir.MatrixType:
		out := value{kind: kindMatrix, index: -1, elems: make([]value, t.Columns)}
		for i := range out.elems {
			out.elems[i] = vector(kindOf(t.Scalar.Kind), int(t.Rows))
		}
		return out
	case ir.StructType:
		out := value{kind: kindComposite, index: -1, elems: make([]value, len(t.Members))}
		for i, member := range t.Members {
			out.elems[i] = zeroOf(m, wgslc.Inner(m, member.Type))
		}
		return out
	case ir.ArrayType:
		if t.Size.Constant == nil {
			failf("runtime-sized arrays are not supported")
		}
		n := int(*t.Size.Constant)
		out := value{kind: kindComposite, index: -1, elems: make([]value, n)}
		base := wgslc.Inner(m, t.Base)
		for i := range out.elems {
			out.elems[i] = zeroOf(m, base)
		}
		return out
	default:
		failf("unsupported type %T", t)
	}
	return value{}
}

// coerce converts v to the shape and scalar kinds of like.
func coerce(v, like value) value {
	switch like.kind {
	case kindFloat, kindSint, kindUint, kindBool:
		if !v.numeric() {
			failf("cannot assign %s to %s", v.kind, like.kind)
		}
		if v.n == 1 && like.n > 1 {
			v = splat(v, like.n)
		}
		if v.n != like.n {
			failf("cannot assign %d components to %d", v.n, like.n)
		}
		return v.convert(like.kind)
	case kindMatrix, kindComposite:
		if len(v.elems) != len(like.elems) {
			failf("cannot assign %s with %d members to %d", v.kind, len(v.elems), len(like.elems))
		}
		out := value{kind: like.kind, index: -1, elems: make([]value, len(like.elems))}
		for i := range like.elems {
			out.elems[i] = coerce(v.elems[i], like.elems[i])
		}
		return out
	default:
		return v.clone()
	}
}

func splat(v value, n int) value {
	out := vector(v.kind, n)
	for i := 0; i < n; i++ {
		out.c[i] = v.c[0]
	}
	return out
}

// load reads the value a pointer refers to.
func load(p value) value {
	if p.kind != kindPointer {
		return p
	}
	if p.index >= 0 {
		return scalar(p.ref.kind, p.ref.c[p.index])
	}
	return p.ref.clone()
}

// store writes v through a pointer, converting it to the target's kind.
func store(p, v value) {
	if p.kind != kindPointer {
		failf("store through a non-pointer")
	}
	v = load(v)
	if p.index >= 0 {
		if !v.numeric() || v.n != 1 {
			failf("cannot store a %s into a vector component", v.kind)
		}
		p.ref.c[p.index] = convertScalar(v.kind, p.ref.kind, v.c[0])
		return
	}
	assign(p.ref, coerce(v, *p.ref))
}

// assign copies v into dst, reusing dst's member storage so that pointers
// to members stay valid.
func assign(dst *value, v value) {
	if dst.elems == nil || len(dst.elems) != len(v.elems) {
		*dst = v
		return
	}
	for i := range v.elems {
		assign(&dst.elems[i], v.elems[i])
	}
}

// member returns the i-th member, column or component of v. Pointers
// yield pointers so that stores reach the original storage.
func member(v value, i int) value {
	if v.kind == kindPointer {
		target := v.ref
		if v.index >= 0 {
			failf("cannot index a scalar")
		}
		switch target.kind {
		case kindMatrix, kindComposite:
			return pointerTo(&target.elems[clampIndex(i, len(target.elems))], -1)
		default:
			return pointerTo(target, clampIndex(i, target.n))
		}
	}
	switch v.kind {
	case kindMatrix, kindComposite:
		return v.elems[clampIndex(i, len(v.elems))]
	case kindFloat, kindSint, kindUint, kindBool:
		return scalar(v.kind, v.c[clampIndex(i, v.n)])
	default:
		failf("cannot index %s", v.kind)
	}
	return value{}
}

// clampIndex keeps out-of-bounds accesses inside the object.
func clampIndex(i, n int) int {
	if n == 0 {
		failf("index into an empty object")
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// flatten appends the scalar components of v to dst.
func flatten(dst []float64, v value) []float64 {
	switch v.kind {
	case kindMatrix, kindComposite:
		for _, e := range v.elems {
			dst = flatten(dst, e)
		}
		return dst
	default:
		return append(dst, v.c[:v.n]...)
	}
}

func vecFrom(k kind, xs []float64) value {
	if len(xs) > 4 {
		failf("vector with %d components", len(xs))
	}
	out := vector(k, len(xs))
	for i, x := range xs {
		out.c[i] = norm(k, x)
	}
	return out
}
