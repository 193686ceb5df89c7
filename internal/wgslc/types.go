// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgslc

import "github.com/gogpu/naga/ir"

// Inner returns the inner type of h, or nil when h is out of range.
func Inner(m *ir.Module, h ir.TypeHandle) ir.TypeInner {
	if int(h) >= len(m.Types) {
		return nil
	}
	return m.Types[h].Inner
}

// ResInner returns the inner type of a resolution.
func ResInner(m *ir.Module, res ir.TypeResolution) ir.TypeInner {
	if res.Handle != nil {
		return Inner(m, *res.Handle)
	}
	return res.Value
}

// Components returns the number of scalar components in a scalar, vector or
// matrix type, and 0 for anything else.
func Components(t ir.TypeInner) int {
	switch t := t.(type) {
	case ir.ScalarType:
		return 1
	case ir.VectorType:
		return int(t.Size)
	case ir.MatrixType:
		return int(t.Columns) * int(t.Rows)
	default:
		return 0
	}
}

// ScalarOf returns the scalar type of a scalar, vector, matrix or atomic type.
func ScalarOf(t ir.TypeInner) (ir.ScalarType, bool) {
	switch t := t.(type) {
	case ir.ScalarType:
		return t, true
	case ir.VectorType:
		return t.Scalar, true
	case ir.MatrixType:
		return t.Scalar, true
	case ir.AtomicType:
		return t.Scalar, true
	default:
		return ir.ScalarType{}, false
	}
}

// AlignSize returns the uniform-buffer alignment and size of a type,
// following the layout naga uses for struct member offsets.
func AlignSize(m *ir.Module, t ir.TypeInner) (align, size uint32) {
	switch t := t.(type) {
	case ir.ScalarType, ir.AtomicType:
		return 4, 4
	case ir.VectorType:
		return vectorAlignSize(uint8(t.Size))
	case ir.MatrixType:
		colAlign, _ := vectorAlignSize(uint8(t.Rows))
		return colAlign, ColumnStride(t) * uint32(t.Columns)
	case ir.ArrayType:
		elemAlign, elemSize := AlignSize(m, Inner(m, t.Base))
		stride := t.Stride
		if stride == 0 {
			stride = (elemSize + elemAlign - 1) &^ (elemAlign - 1)
		}
		if t.Size.Constant == nil {
			return elemAlign, stride
		}
		return elemAlign, stride * *t.Size.Constant
	case ir.StructType:
		var maxAlign uint32 = 1
		for _, member := range t.Members {
			a, _ := AlignSize(m, Inner(m, member.Type))
			maxAlign = max(maxAlign, a)
		}
		return maxAlign, t.Span
	default:
		return 4, 4
	}
}

// ColumnStride returns the byte distance between matrix columns.
func ColumnStride(t ir.MatrixType) uint32 {
	if t.Rows == ir.Vec2 {
		return 8
	}
	return 16
}

func vectorAlignSize(n uint8) (align, size uint32) {
	switch n {
	case 2:
		return 8, 8
	case 3:
		return 16, 12
	case 4:
		return 16, 16
	default:
		return 4, 4
	}
}
