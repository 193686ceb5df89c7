// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sort"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderlab/internal/wgslc"
)

// reachable returns entry and every function it calls, directly or not.
func reachable(m *ir.Module, entry ir.FunctionHandle) []ir.FunctionHandle {
	seen := map[ir.FunctionHandle]bool{entry: true}
	queue := []ir.FunctionHandle{entry}
	for i := 0; i < len(queue); i++ {
		walk(m.Functions[queue[i]].Body, func(st *ir.Statement) {
			if c, ok := st.Kind.(ir.StmtCall); ok && !seen[c.Function] && int(c.Function) < len(m.Functions) {
				seen[c.Function] = true
				queue = append(queue, c.Function)
			}
		})
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })
	return queue
}

func walk(b []ir.Statement, fn func(*ir.Statement)) {
	for i := range b {
		st := &b[i]
		fn(st)
		switch k := st.Kind.(type) {
		case ir.StmtBlock:
			walk(k.Block, fn)
		case ir.StmtIf:
			walk(k.Accept, fn)
			walk(k.Reject, fn)
		case ir.StmtLoop:
			walk(k.Body, fn)
			walk(k.Continuing, fn)
		case ir.StmtSwitch:
			for _, c := range k.Cases {
				walk(c.Body, fn)
			}
		}
	}
}

// unsupported lists the features of sh that the software device cannot
// execute. Only code reachable from the entry point is inspected.
func unsupported(sh *wgslc.Shader) []string {
	m := sh.Module
	var problems []string
	add := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		for _, p := range problems {
			if p == msg {
				return
			}
		}
		problems = append(problems, msg)
	}

	used := make(map[ir.GlobalVariableHandle]bool)
	for _, h := range reachable(m, sh.Entry.Function) {
		fn := &m.Functions[h]
		for _, e := range fn.Expressions {
			switch k := e.Kind.(type) {
			case ir.ExprGlobalVariable:
				used[k.Variable] = true
			case ir.ExprImageSample, ir.ExprImageLoad, ir.ExprImageQuery:
				add("%s: textures are not supported by the software device", fn.Name)
			case ir.ExprAtomicResult:
				add("%s: atomics are not supported by the software device", fn.Name)
			case ir.ExprArrayLength:
				add("%s: runtime-sized arrays are not supported by the software device", fn.Name)
			case ir.ExprMath:
				switch k.Fun {
				case ir.MathModf, ir.MathFrexp, ir.MathDot4I8Packed, ir.MathDot4U8Packed,
					ir.MathPack2x16float, ir.MathUnpack2x16float, ir.MathQuantizeF16, ir.MathInverse:
					add("%s: math function %d is not supported by the software device", fn.Name, k.Fun)
				}
			}
		}
		walk(fn.Body, func(st *ir.Statement) {
			switch st.Kind.(type) {
			case ir.StmtImageStore:
				add("%s: textureStore is not supported by the software device", fn.Name)
			case ir.StmtAtomic:
				add("%s: atomics are not supported by the software device", fn.Name)
			case ir.StmtBarrier, ir.StmtWorkGroupUniformLoad:
				add("%s: workgroup operations are not supported by the software device", fn.Name)
			case ir.StmtRayQuery:
				add("%s: ray queries are not supported by the software device", fn.Name)
			}
		})
	}

	handles := make([]ir.GlobalVariableHandle, 0, len(used))
	for h := range used {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		gv := m.GlobalVariables[h]
		switch gv.Space {
		case ir.SpaceUniform, ir.SpacePrivate, ir.SpaceFunction:
		default:
			add("global %q: address space %s is not supported by the software device", gv.Name, spaceName(gv.Space))
		}
	}
	return problems
}

func spaceName(s ir.AddressSpace) string {
	switch s {
	case ir.SpaceWorkGroup:
		return "workgroup"
	case ir.SpaceStorage:
		return "storage"
	case ir.SpacePushConstant:
		return "push_constant"
	case ir.SpaceHandle:
		return "handle"
	default:
		return fmt.Sprintf("space(%d)", s)
	}
}
