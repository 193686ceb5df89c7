// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"

	"github.com/gogpu/naga/ir"
)

// op is an executable statement kind.
type op uint8

const (
	opInit op = iota // initialize local variables
	opEmit
	opBlock
	opIf
	opSwitch
	opLoop
	opBreak
	opContinue
	opReturn
	opKill
	opStore
	opCall
)

// stmt is an executable statement. Function bodies are rebuilt from the IR
// so that local variable initialization happens at the declaration site.
type stmt struct {
	op       op
	expr     ir.ExpressionHandle // condition, selector, store pointer, return value
	value    ir.ExpressionHandle // store value
	hasExpr  bool
	emit     ir.Range
	vars     []uint32
	body     []stmt // block, accept, loop body
	alt      []stmt // reject, continuing
	cases    []switchCase
	breakIf  *ir.ExpressionHandle
	function ir.FunctionHandle
	args     []ir.ExpressionHandle
	result   *ir.ExpressionHandle
}

type switchCase struct {
	def         bool
	value       float64
	body        []stmt
	fallThrough bool
}

// scope places local variable declarations. The IR keeps locals in a flat
// list with their initializers; a declaration has no statement of its own.
// The position of a declaration is recovered from expression handles,
// which the front end allocates in source order: a variable belongs to the
// innermost compound statement whose own expressions were created around
// its handle, and starts right before the first statement that refers to
// a handle created after it.
type scope struct {
	fn      *ir.Function
	named   []bool
	varExpr []ir.ExpressionHandle
}

const noHandle = math.MaxUint32

func newScope(fn *ir.Function) *scope {
	s := &scope{
		fn:      fn,
		named:   make([]bool, len(fn.Expressions)),
		varExpr: make([]ir.ExpressionHandle, len(fn.LocalVars)),
	}
	for i := range s.varExpr {
		s.varExpr[i] = noHandle
	}
	for h, e := range fn.Expressions {
		switch k := e.Kind.(type) {
		case ir.ExprLocalVariable:
			s.named[h] = true
			if int(k.Variable) < len(s.varExpr) && s.varExpr[k.Variable] == noHandle {
				s.varExpr[k.Variable] = ir.ExpressionHandle(h)
			}
		case ir.ExprFunctionArgument, ir.ExprGlobalVariable:
			s.named[h] = true
		}
	}
	markEmits(fn.Body, s.named)
	return s
}

func markEmits(b ir.Block, named []bool) {
	for _, st := range b {
		switch k := st.Kind.(type) {
		case ir.StmtEmit:
			for h := k.Range.Start; h < k.Range.End && int(h) < len(named); h++ {
				named[h] = true
			}
		case ir.StmtBlock:
			markEmits(k.Block, named)
		case ir.StmtIf:
			markEmits(k.Accept, named)
			markEmits(k.Reject, named)
		case ir.StmtLoop:
			markEmits(k.Body, named)
			markEmits(k.Continuing, named)
		case ir.StmtSwitch:
			for _, c := range k.Cases {
				markEmits(c.Body, named)
			}
		}
	}
}

// build returns the executable body of the function.
func (s *scope) build() []stmt {
	vars := make([]uint32, 0, len(s.fn.LocalVars))
	for i, h := range s.varExpr {
		if h != noHandle {
			vars = append(vars, uint32(i))
		}
	}
	return s.block(s.fn.Body, vars)
}

type bounds struct {
	lo, hi ir.ExpressionHandle
	any    bool // hi is meaningful
}

func (b *bounds) ref(h ir.ExpressionHandle) {
	if !b.any || h > b.hi {
		b.hi = h
	}
	b.any = true
}

func (b *bounds) merge(o bounds) {
	if o.any {
		b.ref(o.hi)
	}
	if o.lo < b.lo {
		b.lo = o.lo
	}
}

func (s *scope) created(b *bounds, h ir.ExpressionHandle) {
	if int(h) >= len(s.named) || s.named[h] {
		return
	}
	if h < b.lo {
		b.lo = h
	}
	for _, op := range operands(s.fn.Expressions[h].Kind) {
		s.created(b, op)
	}
}

func (s *scope) use(b *bounds, h ir.ExpressionHandle) {
	b.ref(h)
	s.created(b, h)
}

func (s *scope) blockBounds(blk ir.Block) bounds {
	b := bounds{lo: noHandle}
	for i := range blk {
		b.merge(s.stmtBounds(&blk[i]))
	}
	return b
}

func (s *scope) stmtBounds(st *ir.Statement) bounds {
	b := bounds{lo: noHandle}
	switch k := st.Kind.(type) {
	case ir.StmtEmit:
		if k.Range.End > k.Range.Start {
			b.ref(k.Range.End - 1)
		}
	case ir.StmtBlock:
		b.merge(s.blockBounds(k.Block))
	case ir.StmtIf:
		s.use(&b, k.Condition)
		b.merge(s.blockBounds(k.Accept))
		b.merge(s.blockBounds(k.Reject))
	case ir.StmtSwitch:
		s.use(&b, k.Selector)
		for _, c := range k.Cases {
			b.merge(s.blockBounds(c.Body))
		}
	case ir.StmtLoop:
		b.merge(s.blockBounds(k.Body))
		b.merge(s.blockBounds(k.Continuing))
		if k.BreakIf != nil {
			s.use(&b, *k.BreakIf)
		}
	case ir.StmtReturn:
		if k.Value != nil {
			s.use(&b, *k.Value)
		}
	case ir.StmtStore:
		s.use(&b, k.Pointer)
		s.use(&b, k.Value)
	case ir.StmtCall:
		for _, a := range k.Arguments {
			s.use(&b, a)
		}
		if k.Result != nil {
			s.use(&b, *k.Result)
		}
	}
	return b
}

func compound(st *ir.Statement) bool {
	switch st.Kind.(type) {
	case ir.StmtBlock, ir.StmtIf, ir.StmtSwitch, ir.StmtLoop:
		return true
	}
	return false
}

func (s *scope) block(blk ir.Block, vars []uint32) []stmt {
	all := make([]bounds, len(blk))
	for i := range blk {
		all[i] = s.stmtBounds(&blk[i])
	}

	nested := make(map[int][]uint32)
	before := make(map[int][]uint32)
	var trailing []uint32

outer:
	for _, v := range vars {
		hv := s.varExpr[v]
		for i := range blk {
			if compound(&blk[i]) && all[i].any && all[i].lo <= hv && hv <= all[i].hi {
				nested[i] = append(nested[i], v)
				continue outer
			}
		}
		for i := range blk {
			if all[i].any && all[i].hi >= hv {
				before[i] = append(before[i], v)
				continue outer
			}
		}
		trailing = append(trailing, v)
	}

	out := make([]stmt, 0, len(blk)+len(before)+1)
	for i := range blk {
		if vs := before[i]; len(vs) > 0 {
			out = append(out, stmt{op: opInit, vars: vs})
		}
		out = append(out, s.stmt(&blk[i], nested[i]))
	}
	if len(trailing) > 0 {
		out = append(out, stmt{op: opInit, vars: trailing})
	}
	return out
}

// split assigns vars to the first candidate block that refers to a handle
// at or after the variable.
func (s *scope) split(vars []uint32, blocks ...ir.Block) [][]uint32 {
	out := make([][]uint32, len(blocks))
	bs := make([]bounds, len(blocks))
	for i, b := range blocks {
		bs[i] = s.blockBounds(b)
	}
	for _, v := range vars {
		hv := s.varExpr[v]
		placed := false
		for i := range blocks {
			if bs[i].any && bs[i].hi >= hv {
				out[i] = append(out[i], v)
				placed = true
				break
			}
		}
		if !placed && len(blocks) > 0 {
			out[0] = append(out[0], v)
		}
	}
	return out
}

func (s *scope) stmt(st *ir.Statement, vars []uint32) stmt {
	switch k := st.Kind.(type) {
	case ir.StmtEmit:
		return stmt{op: opEmit, emit: k.Range}
	case ir.StmtBlock:
		return stmt{op: opBlock, body: s.block(k.Block, vars)}
	case ir.StmtIf:
		parts := s.split(vars, k.Accept, k.Reject)
		return stmt{
			op:   opIf,
			expr: k.Condition,
			body: s.block(k.Accept, parts[0]),
			alt:  s.block(k.Reject, parts[1]),
		}
	case ir.StmtSwitch:
		out := stmt{op: opSwitch, expr: k.Selector}
		for _, c := range k.Cases {
			var own []uint32
			if len(vars) > 0 {
				cb := s.blockBounds(c.Body)
				for _, v := range vars {
					if cb.any && cb.hi >= s.varExpr[v] {
						own = append(own, v)
					}
				}
			}
			sc := switchCase{body: s.block(c.Body, own), fallThrough: c.FallThrough}
			switch val := c.Value.(type) {
			case ir.SwitchValueI32:
				sc.value = float64(val)
			case ir.SwitchValueU32:
				sc.value = float64(val)
			default:
				sc.def = true
			}
			out.cases = append(out.cases, sc)
		}
		return out
	case ir.StmtLoop:
		parts := s.split(vars, k.Body, k.Continuing)
		return stmt{
			op:      opLoop,
			body:    s.block(k.Body, parts[0]),
			alt:     s.block(k.Continuing, parts[1]),
			breakIf: k.BreakIf,
		}
	case ir.StmtBreak:
		return stmt{op: opBreak}
	case ir.StmtContinue:
		return stmt{op: opContinue}
	case ir.StmtReturn:
		if k.Value != nil {
			return stmt{op: opReturn, expr: *k.Value, hasExpr: true}
		}
		return stmt{op: opReturn}
	case ir.StmtKill:
		return stmt{op: opKill}
	case ir.StmtStore:
		return stmt{op: opStore, expr: k.Pointer, value: k.Value}
	case ir.StmtCall:
		return stmt{op: opCall, function: k.Function, args: k.Arguments, result: k.Result}
	default:
		// Unsupported statements are rejected before a program is built.
		return stmt{op: opBlock}
	}
}

// operands returns the expression handles an expression reads.
func operands(k ir.ExpressionKind) []ir.ExpressionHandle {
	switch e := k.(type) {
	case ir.ExprCompose:
		return e.Components
	case ir.ExprAccess:
		return []ir.ExpressionHandle{e.Base, e.Index}
	case ir.ExprAccessIndex:
		return []ir.ExpressionHandle{e.Base}
	case ir.ExprSplat:
		return []ir.ExpressionHandle{e.Value}
	case ir.ExprSwizzle:
		return []ir.ExpressionHandle{e.Vector}
	case ir.ExprLoad:
		return []ir.ExpressionHandle{e.Pointer}
	case ir.ExprUnary:
		return []ir.ExpressionHandle{e.Expr}
	case ir.ExprBinary:
		return []ir.ExpressionHandle{e.Left, e.Right}
	case ir.ExprSelect:
		return []ir.ExpressionHandle{e.Condition, e.Accept, e.Reject}
	case ir.ExprDerivative:
		return []ir.ExpressionHandle{e.Expr}
	case ir.ExprRelational:
		return []ir.ExpressionHandle{e.Argument}
	case ir.ExprMath:
		ops := []ir.ExpressionHandle{e.Arg}
		for _, a := range []*ir.ExpressionHandle{e.Arg1, e.Arg2, e.Arg3} {
			if a != nil {
				ops = append(ops, *a)
			}
		}
		return ops
	case ir.ExprAs:
		return []ir.ExpressionHandle{e.Expr}
	case ir.ExprArrayLength:
		return []ir.ExpressionHandle{e.Array}
	default:
		return nil
	}
}
