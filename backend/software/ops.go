// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"

	"github.com/gogpu/naga/ir"
)

func unary(op ir.UnaryOperator, v value) value {
	if v.kind == kindMatrix && op == ir.UnaryNegate {
		out := value{kind: kindMatrix, index: -1, elems: make([]value, len(v.elems))}
		for i, col := range v.elems {
			out.elems[i] = unary(op, col)
		}
		return out
	}
	if !v.numeric() {
		failf("unary operator on %s", v.kind)
	}
	out := vector(v.kind, v.n)
	for i := 0; i < v.n; i++ {
		x := v.c[i]
		switch op {
		case ir.UnaryNegate:
			out.c[i] = norm(v.kind, -x)
		case ir.UnaryLogicalNot:
			out.c[i] = b2f(x == 0)
		case ir.UnaryBitwiseNot:
			switch v.kind {
			case kindSint:
				out.c[i] = float64(^int32(x))
			case kindUint:
				out.c[i] = float64(^uint32(x))
			case kindBool:
				out.c[i] = b2f(x == 0)
			default:
				failf("bitwise not on %s", v.kind)
			}
		default:
			failf("unsupported unary operator %d", op)
		}
	}
	return out
}

// promote returns the kind both operands are evaluated in. Literals of
// either integer kind mix with floats, so a float operand wins.
func promote(a, b kind) kind {
	if a == kindFloat || b == kindFloat {
		return kindFloat
	}
	return a
}

func binary(op ir.BinaryOperator, l, r value) value {
	if l.kind == kindMatrix || r.kind == kindMatrix {
		return matrixBinary(op, l, r)
	}
	if !l.numeric() || !r.numeric() {
		failf("binary operator on %s and %s", l.kind, r.kind)
	}
	n := max(l.n, r.n)
	if l.n != r.n {
		switch {
		case l.n == 1:
			l = splat(l, n)
		case r.n == 1:
			r = splat(r, n)
		default:
			failf("operands have %d and %d components", l.n, r.n)
		}
	}

	if op == ir.BinaryShiftLeft || op == ir.BinaryShiftRight {
		out := vector(l.kind, n)
		for i := range n {
			out.c[i] = shift(op, l.kind, l.c[i], r.c[i])
		}
		return out
	}

	k := promote(l.kind, r.kind)
	if l.kind != k {
		l = l.convert(k)
	}
	if r.kind != k {
		r = r.convert(k)
	}

	switch op {
	case ir.BinaryEqual, ir.BinaryNotEqual, ir.BinaryLess, ir.BinaryLessEqual,
		ir.BinaryGreater, ir.BinaryGreaterEqual:
		out := vector(kindBool, n)
		for i := range n {
			out.c[i] = b2f(compare(op, l.c[i], r.c[i]))
		}
		return out
	case ir.BinaryLogicalAnd, ir.BinaryLogicalOr:
		out := vector(kindBool, n)
		for i := range n {
			a, b := l.c[i] != 0, r.c[i] != 0
			if op == ir.BinaryLogicalAnd {
				out.c[i] = b2f(a && b)
			} else {
				out.c[i] = b2f(a || b)
			}
		}
		return out
	}

	out := vector(k, n)
	for i := range n {
		if k == kindFloat {
			out.c[i] = floatOp(op, l.c[i], r.c[i])
		} else {
			out.c[i] = intOp(op, k, l.c[i], r.c[i])
		}
	}
	return out
}

func compare(op ir.BinaryOperator, a, b float64) bool {
	switch op {
	case ir.BinaryEqual:
		return a == b
	case ir.BinaryNotEqual:
		return a != b
	case ir.BinaryLess:
		return a < b
	case ir.BinaryLessEqual:
		return a <= b
	case ir.BinaryGreater:
		return a > b
	default:
		return a >= b
	}
}

func floatOp(op ir.BinaryOperator, a, b float64) float64 {
	var x float64
	switch op {
	case ir.BinaryAdd:
		x = a + b
	case ir.BinarySubtract:
		x = a - b
	case ir.BinaryMultiply:
		x = a * b
	case ir.BinaryDivide:
		x = a / b
	case ir.BinaryModulo:
		x = math.Mod(a, b)
	default:
		failf("operator %d is not defined for f32", op)
	}
	return norm(kindFloat, x)
}

// intOp evaluates integer arithmetic with 32-bit wrapping. Division by
// zero yields the dividend and the remainder of a division by zero is
// zero, as WGSL specifies.
func intOp(op ir.BinaryOperator, k kind, a, b float64) float64 {
	if k == kindBool {
		switch op {
		case ir.BinaryAnd:
			return b2f(a != 0 && b != 0)
		case ir.BinaryInclusiveOr:
			return b2f(a != 0 || b != 0)
		case ir.BinaryExclusiveOr:
			return b2f((a != 0) != (b != 0))
		default:
			failf("operator %d is not defined for bool", op)
		}
	}
	if k == kindUint {
		x, y := uint32(a), uint32(b)
		var z uint32
		switch op {
		case ir.BinaryAdd:
			z = x + y
		case ir.BinarySubtract:
			z = x - y
		case ir.BinaryMultiply:
			z = x * y
		case ir.BinaryDivide:
			if y == 0 {
				z = x
			} else {
				z = x / y
			}
		case ir.BinaryModulo:
			if y != 0 {
				z = x % y
			}
		case ir.BinaryAnd:
			z = x & y
		case ir.BinaryInclusiveOr:
			z = x | y
		case ir.BinaryExclusiveOr:
			z = x ^ y
		default:
			failf("operator %d is not defined for u32", op)
		}
		return float64(z)
	}

	x, y := int32(a), int32(b)
	var z int32
	switch op {
	case ir.BinaryAdd:
		z = x + y
	case ir.BinarySubtract:
		z = x - y
	case ir.BinaryMultiply:
		z = x * y
	case ir.BinaryDivide:
		if y == 0 || (x == math.MinInt32 && y == -1) {
			z = x
		} else {
			z = x / y
		}
	case ir.BinaryModulo:
		if y != 0 && !(x == math.MinInt32 && y == -1) {
			z = x % y
		}
	case ir.BinaryAnd:
		z = x & y
	case ir.BinaryInclusiveOr:
		z = x | y
	case ir.BinaryExclusiveOr:
		z = x ^ y
	default:
		failf("operator %d is not defined for i32", op)
	}
	return float64(z)
}

func shift(op ir.BinaryOperator, k kind, a, b float64) float64 {
	s := uint32(b) & 31
	switch k {
	case kindSint:
		if op == ir.BinaryShiftLeft {
			return float64(int32(a) << s)
		}
		return float64(int32(a) >> s)
	case kindUint:
		if op == ir.BinaryShiftLeft {
			return float64(uint32(a) << s)
		}
		return float64(uint32(a) >> s)
	default:
		failf("shift of %s", k)
	}
	return 0
}

// matrixBinary implements matrix arithmetic. Matrices are column-major.
func matrixBinary(op ir.BinaryOperator, l, r value) value {
	switch op {
	case ir.BinaryAdd, ir.BinarySubtract:
		if l.kind != kindMatrix || r.kind != kindMatrix || len(l.elems) != len(r.elems) {
			failf("matrix %s needs matrices of the same shape", opName(op))
		}
		out := value{kind: kindMatrix, index: -1, elems: make([]value, len(l.elems))}
		for i := range l.elems {
			out.elems[i] = binary(op, l.elems[i], r.elems[i])
		}
		return out
	case ir.BinaryMultiply:
	default:
		failf("matrix %s is not defined", opName(op))
	}

	switch {
	case l.kind == kindMatrix && r.kind == kindMatrix:
		// Each result column is l times the matching column of r.
		out := value{kind: kindMatrix, index: -1, elems: make([]value, len(r.elems))}
		for i, col := range r.elems {
			out.elems[i] = matVec(l, col)
		}
		return out
	case l.kind == kindMatrix && r.n > 1:
		return matVec(l, r)
	case r.kind == kindMatrix && l.n > 1:
		// Row vector times matrix: one dot product per column.
		out := vector(kindFloat, len(r.elems))
		for i, col := range r.elems {
			out.c[i] = dot(l, col)
		}
		return out
	default:
		m, s := l, r
		if r.kind == kindMatrix {
			m, s = r, l
		}
		out := value{kind: kindMatrix, index: -1, elems: make([]value, len(m.elems))}
		for i, col := range m.elems {
			out.elems[i] = binary(ir.BinaryMultiply, col, s)
		}
		return out
	}
}

func matVec(m, v value) value {
	if len(m.elems) != v.n {
		failf("matrix with %d columns times vec%d", len(m.elems), v.n)
	}
	rows := m.elems[0].n
	out := vector(kindFloat, rows)
	for r := range rows {
		var sum float64
		for c, col := range m.elems {
			sum += col.c[r] * v.c[c]
		}
		out.c[r] = norm(kindFloat, sum)
	}
	return out
}

func dot(a, b value) float64 {
	if a.n != b.n {
		failf("dot of vec%d and vec%d", a.n, b.n)
	}
	var sum float64
	for i := 0; i < a.n; i++ {
		sum += a.c[i] * b.c[i]
	}
	return norm(a.kind, sum)
}

func opName(op ir.BinaryOperator) string {
	switch op {
	case ir.BinaryAdd:
		return "addition"
	case ir.BinarySubtract:
		return "subtraction"
	case ir.BinaryMultiply:
		return "multiplication"
	case ir.BinaryDivide:
		return "division"
	default:
		return "operator"
	}
}
