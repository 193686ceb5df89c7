// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderlab/internal/wgslc"
)

// maxLoopIterations bounds every loop execution so that a shader cannot
// hang a draw.
const maxLoopIterations = 1 << 16

// signal is the control flow outcome of executing statements.
type signal uint8

const (
	sigNone signal = iota
	sigBreak
	sigContinue
	sigReturn
	sigKill
)

// machine is an executable stage: the rebuilt functions of a module and
// its evaluated constants. A machine is immutable and shared by all
// invocations of a draw.
type machine struct {
	module    *ir.Module
	entry     ir.FunctionHandle
	funcs     []*funcInfo
	constants []value
	// derivatives reports that the entry point reaches a derivative.
	derivatives bool
}

type funcInfo struct {
	fn     *ir.Function
	body   []stmt
	zeros  []value // zero value of each local
	byRef  []bool  // argument is a pointer
	result bool
}

func newMachine(sh *wgslc.Shader) *machine {
	m := &machine{module: sh.Module, entry: sh.Entry.Function}
	m.constants = make([]value, len(m.module.Constants))
	for i := range m.module.Constants {
		m.constants[i] = m.constant(ir.ConstantHandle(i))
	}
	m.funcs = make([]*funcInfo, len(m.module.Functions))
	for i := range m.module.Functions {
		fn := &m.module.Functions[i]
		info := &funcInfo{
			fn:     fn,
			body:   newScope(fn).build(),
			zeros:  make([]value, len(fn.LocalVars)),
			byRef:  make([]bool, len(fn.Arguments)),
			result: fn.Result != nil,
		}
		for j, lv := range fn.LocalVars {
			info.zeros[j] = zeroOf(m.module, wgslc.Inner(m.module, lv.Type))
		}
		for j, arg := range fn.Arguments {
			_, info.byRef[j] = wgslc.Inner(m.module, arg.Type).(ir.PointerType)
		}
		m.funcs[i] = info
	}
	m.derivatives = usesDerivatives(m.module, m.entry)
	return m
}

func (m *machine) constant(h ir.ConstantHandle) value {
	c := m.module.Constants[h]
	zero := zeroOf(m.module, wgslc.Inner(m.module, c.Type))
	switch v := c.Value.(type) {
	case ir.ScalarValue:
		var x float64
		k := kindOf(v.Kind)
		switch v.Kind {
		case ir.ScalarFloat:
			x = float64(math.Float32frombits(uint32(v.Bits)))
		case ir.ScalarSint:
			x = float64(int32(v.Bits))
		case ir.ScalarUint:
			x = float64(uint32(v.Bits))
		case ir.ScalarBool:
			x = norm(kindBool, float64(v.Bits))
		}
		return coerce(scalar(k, x), zero)
	case ir.CompositeValue:
		parts := make([]value, len(v.Components))
		for i, ch := range v.Components {
			if int(ch) < int(h) {
				parts[i] = m.constants[ch]
			} else {
				parts[i] = m.constant(ch)
			}
		}
		return compose(m.module, wgslc.Inner(m.module, c.Type), parts)
	default:
		failf("unsupported constant %T", c.Value)
	}
	return value{}
}

// frame is the evaluation state of one function. WGSL forbids recursion,
// so each function needs at most one live frame per invocation.
type frame struct {
	info   *funcInfo
	locals []value
	args   []value
	cache  []value
	cached []bool
	ret    value
}

func (f *frame) reset(args []value) {
	for i := range f.locals {
		f.locals[i] = f.info.zeros[i].clone()
	}
	for i := range f.cached {
		f.cached[i] = false
	}
	f.args = args
	f.ret = value{}
}

// invocation runs one shader stage for one vertex or fragment. It is
// reused across vertices and fragments of a tile.
type invocation struct {
	m       *machine
	frames  []*frame
	globals []value
	private []value // zero value of private globals, nil for other spaces
	deriv   *derivatives
}

func newInvocation(m *machine, uniforms []value) *invocation {
	inv := &invocation{
		m:       m,
		frames:  make([]*frame, len(m.funcs)),
		globals: make([]value, len(m.module.GlobalVariables)),
		private: make([]value, len(m.module.GlobalVariables)),
	}
	for i, gv := range m.module.GlobalVariables {
		switch gv.Space {
		case ir.SpaceUniform:
			inv.globals[i] = uniforms[i]
		case ir.SpacePrivate, ir.SpaceFunction:
			if gv.Init != nil {
				inv.private[i] = m.constants[*gv.Init]
			} else {
				inv.private[i] = zeroOf(m.module, wgslc.Inner(m.module, gv.Type))
			}
		}
	}
	return inv
}

func (inv *invocation) frame(h ir.FunctionHandle) *frame {
	if f := inv.frames[h]; f != nil {
		return f
	}
	info := inv.m.funcs[h]
	n := len(info.fn.Expressions)
	f := &frame{
		info:   info,
		locals: make([]value, len(info.fn.LocalVars)),
		cache:  make([]value, n),
		cached: make([]bool, n),
	}
	inv.frames[h] = f
	return f
}

// run executes the entry point with args. It reports false when the
// invocation was discarded.
func (inv *invocation) run(args []value) (value, bool) {
	for i, z := range inv.private {
		if z.kind != kindVoid {
			inv.globals[i] = z.clone()
		}
	}
	if inv.deriv != nil {
		inv.deriv.seq = 0
	}
	return inv.call(inv.m.entry, args)
}

func (inv *invocation) call(h ir.FunctionHandle, args []value) (value, bool) {
	f := inv.frame(h)
	f.reset(args)
	switch inv.exec(f, f.info.body) {
	case sigKill:
		return value{}, false
	default:
		return f.ret, true
	}
}

func (inv *invocation) exec(f *frame, body []stmt) signal {
	for i := range body {
		s := &body[i]
		switch s.op {
		case opInit:
			for _, v := range s.vars {
				init := f.info.fn.LocalVars[v].Init
				if init == nil {
					f.locals[v] = f.info.zeros[v].clone()
					continue
				}
				f.locals[v] = coerce(inv.get(f, *init), f.info.zeros[v])
			}
		case opEmit:
			r := s.emit
			for h := r.Start; h < r.End; h++ {
				f.cached[h] = false
			}
			for h := r.Start; h < r.End; h++ {
				f.cache[h] = inv.eval(f, h)
				f.cached[h] = true
			}
		case opBlock:
			if sig := inv.exec(f, s.body); sig != sigNone {
				return sig
			}
		case opIf:
			branch := s.alt
			if inv.get(f, s.expr).truthy() {
				branch = s.body
			}
			if sig := inv.exec(f, branch); sig != sigNone {
				return sig
			}
		case opSwitch:
			if sig := inv.execSwitch(f, s); sig != sigNone {
				return sig
			}
		case opLoop:
			if sig := inv.execLoop(f, s); sig != sigNone {
				return sig
			}
		case opBreak:
			return sigBreak
		case opContinue:
			return sigContinue
		case opReturn:
			if s.hasExpr {
				f.ret = inv.get(f, s.expr)
			}
			return sigReturn
		case opKill:
			return sigKill
		case opStore:
			store(inv.eval(f, s.expr), inv.get(f, s.value))
		case opCall:
			callee := inv.m.funcs[s.function]
			args := make([]value, len(s.args))
			for j, a := range s.args {
				if j < len(callee.byRef) && callee.byRef[j] {
					args[j] = inv.eval(f, a)
				} else {
					args[j] = inv.get(f, a)
				}
			}
			ret, ok := inv.call(s.function, args)
			if !ok {
				return sigKill
			}
			if s.result != nil {
				f.cache[*s.result] = ret
				f.cached[*s.result] = true
			}
		}
	}
	return sigNone
}

func (inv *invocation) execSwitch(f *frame, s *stmt) signal {
	sel := inv.get(f, s.expr)
	if !sel.numeric() || sel.n != 1 {
		failf("switch selector must be a scalar integer")
	}
	start := -1
	for i, c := range s.cases {
		if !c.def && c.value == sel.c[0] {
			start = i
			break
		}
	}
	if start < 0 {
		for i, c := range s.cases {
			if c.def {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return sigNone
	}
	for i := start; i < len(s.cases); i++ {
		sig := inv.exec(f, s.cases[i].body)
		switch sig {
		case sigBreak:
			return sigNone
		case sigNone:
			if !s.cases[i].fallThrough {
				return sigNone
			}
		default:
			return sig
		}
	}
	return sigNone
}

func (inv *invocation) execLoop(f *frame, s *stmt) signal {
	for iter := 0; ; iter++ {
		if iter >= maxLoopIterations {
			failf("loop exceeded %d iterations", maxLoopIterations)
		}
		switch sig := inv.exec(f, s.body); sig {
		case sigBreak:
			return sigNone
		case sigReturn, sigKill:
			return sig
		}
		switch sig := inv.exec(f, s.alt); sig {
		case sigBreak:
			return sigNone
		case sigReturn, sigKill:
			return sig
		}
		if s.breakIf != nil && inv.get(f, *s.breakIf).truthy() {
			return sigNone
		}
	}
}

// get evaluates h and dereferences pointers.
func (inv *invocation) get(f *frame, h ir.ExpressionHandle) value {
	return load(inv.eval(f, h))
}

// eval evaluates expression h. References to variables evaluate to
// pointers.
func (inv *invocation) eval(f *frame, h ir.ExpressionHandle) value {
	if f.cached[h] {
		return f.cache[h]
	}
	m := inv.m.module
	switch e := f.info.fn.Expressions[h].Kind.(type) {
	case ir.Literal:
		return literal(e.Value)
	case ir.ExprConstant:
		return inv.m.constants[e.Constant]
	case ir.ExprZeroValue:
		if int(e.Type) >= len(m.Types) {
			return value{}
		}
		return zeroOf(m, wgslc.Inner(m, e.Type))
	case ir.ExprCompose:
		parts := make([]value, len(e.Components))
		for i, c := range e.Components {
			parts[i] = inv.get(f, c)
		}
		return compose(m, wgslc.Inner(m, e.Type), parts)
	case ir.ExprAccess:
		// The base stays a pointer so that the access can be stored through.
		return member(inv.eval(f, e.Base), inv.get(f, e.Index).int())
	case ir.ExprAccessIndex:
		return member(inv.eval(f, e.Base), int(e.Index))
	case ir.ExprSplat:
		v := inv.get(f, e.Value)
		return splat(v, int(e.Size))
	case ir.ExprSwizzle:
		v := inv.get(f, e.Vector)
		out := vector(v.kind, int(e.Size))
		for i := 0; i < int(e.Size); i++ {
			out.c[i] = v.c[clampIndex(int(e.Pattern[i]), v.n)]
		}
		return out
	case ir.ExprFunctionArgument:
		return f.args[e.Index]
	case ir.ExprGlobalVariable:
		return pointerTo(&inv.globals[e.Variable], -1)
	case ir.ExprLocalVariable:
		return pointerTo(&f.locals[e.Variable], -1)
	case ir.ExprLoad:
		return inv.get(f, e.Pointer)
	case ir.ExprUnary:
		return unary(e.Op, inv.get(f, e.Expr))
	case ir.ExprBinary:
		return binary(e.Op, inv.get(f, e.Left), inv.get(f, e.Right))
	case ir.ExprSelect:
		return selectValue(inv.get(f, e.Condition), inv.get(f, e.Accept), inv.get(f, e.Reject))
	case ir.ExprDerivative:
		return inv.derivative(e, inv.get(f, e.Expr))
	case ir.ExprRelational:
		return relational(e.Fun, inv.get(f, e.Argument))
	case ir.ExprMath:
		args := []value{inv.get(f, e.Arg)}
		for _, a := range []*ir.ExpressionHandle{e.Arg1, e.Arg2, e.Arg3} {
			if a != nil {
				args = append(args, inv.get(f, *a))
			}
		}
		return mathCall(e.Fun, args)
	case ir.ExprAs:
		v := inv.get(f, e.Expr)
		to := kindOf(e.Kind)
		if e.Convert != nil {
			return convertValue(v, to)
		}
		return bitcastValue(v, to)
	case ir.ExprCallResult:
		failf("call result read before the call")
	default:
		failf("unsupported expression %T", e)
	}
	return value{}
}

func literal(l ir.LiteralValue) value {
	switch v := l.(type) {
	case ir.LiteralF32:
		return scalar(kindFloat, float64(v))
	case ir.LiteralF64:
		return scalar(kindFloat, float64(v))
	case ir.LiteralAbstractFloat:
		return scalar(kindFloat, float64(v))
	case ir.LiteralI32:
		return scalar(kindSint, float64(v))
	case ir.LiteralI64:
		return scalar(kindSint, float64(v))
	case ir.LiteralAbstractInt:
		return scalar(kindSint, float64(v))
	case ir.LiteralU32:
		return scalar(kindUint, float64(v))
	case ir.LiteralU64:
		return scalar(kindUint, float64(v))
	case ir.LiteralBool:
		if v {
			return scalar(kindBool, 1)
		}
		return scalar(kindBool, 0)
	default:
		failf("unsupported literal %T", l)
	}
	return value{}
}

// compose builds a value of type t from parts. Vector and matrix
// constructors accept any mix of scalars and vectors; a single scalar is
// splatted.
func compose(m *ir.Module, t ir.TypeInner, parts []value) value {
	switch t := t.(type) {
	case ir.ScalarType:
		if len(parts) != 1 {
			failf("scalar constructor with %d arguments", len(parts))
		}
		return convertValue(parts[0], kindOf(t.Kind))
	case ir.VectorType:
		k := kindOf(t.Scalar.Kind)
		n := int(t.Size)
		xs, from := flattenParts(parts)
		if len(xs) == 1 {
			out := vector(k, n)
			for i := range n {
				out.c[i] = convertScalar(from[0], k, xs[0])
			}
			return out
		}
		if len(xs) != n {
			failf("vec%d constructor with %d components", n, len(xs))
		}
		out := vector(k, n)
		for i := range n {
			out.c[i] = convertScalar(from[i], k, xs[i])
		}
		return out
	case ir.MatrixType:
		k := kindOf(t.Scalar.Kind)
		cols, rows := int(t.Columns), int(t.Rows)
		xs, from := flattenParts(parts)
		if len(xs) != cols*rows {
			failf("mat%dx%d constructor with %d components", cols, rows, len(xs))
		}
		out := value{kind: kindMatrix, index: -1, elems: make([]value, cols)}
		for c := range cols {
			col := vector(k, rows)
			for r := range rows {
				col.c[r] = convertScalar(from[c*rows+r], k, xs[c*rows+r])
			}
			out.elems[c] = col
		}
		return out
	case ir.StructType, ir.ArrayType:
		zero := zeroOf(m, t)
		if len(parts) != len(zero.elems) {
			failf("constructor with %d of %d members", len(parts), len(zero.elems))
		}
		out := value{kind: kindComposite, index: -1, elems: make([]value, len(parts))}
		for i, p := range parts {
			out.elems[i] = coerce(p, zero.elems[i])
		}
		return out
	default:
		failf("cannot construct %T", t)
	}
	return value{}
}

// flattenParts returns the scalar components of parts with the kind of
// each component.
func flattenParts(parts []value) ([]float64, []kind) {
	var xs []float64
	var kinds []kind
	for _, p := range parts {
		before := len(xs)
		xs = flatten(xs, p)
		k := p.kind
		if k == kindMatrix && len(p.elems) > 0 {
			k = p.elems[0].kind
		}
		for range len(xs) - before {
			kinds = append(kinds, k)
		}
	}
	return xs, kinds
}

func convertValue(v value, to kind) value {
	if v.kind == kindMatrix {
		out := value{kind: kindMatrix, index: -1, elems: make([]value, len(v.elems))}
		for i, col := range v.elems {
			out.elems[i] = col.convert(to)
		}
		return out
	}
	return v.convert(to)
}

func bitcastValue(v value, to kind) value {
	if !v.numeric() {
		failf("cannot bitcast %s", v.kind)
	}
	out := vector(to, v.n)
	for i := 0; i < v.n; i++ {
		out.c[i] = bitcastScalar(v.kind, to, v.c[i])
	}
	return out
}

func selectValue(cond, accept, reject value) value {
	if cond.n == 1 {
		if cond.truthy() {
			return accept
		}
		return reject
	}
	if !accept.numeric() || accept.n != cond.n || reject.n != cond.n {
		failf("select with mismatched vector sizes")
	}
	out := accept
	for i := 0; i < cond.n; i++ {
		if cond.c[i] == 0 {
			out.c[i] = reject.c[i]
		}
	}
	return out
}

func relational(fun ir.RelationalFunction, v value) value {
	if !v.numeric() {
		failf("relational function on %s", v.kind)
	}
	switch fun {
	case ir.RelationalAll, ir.RelationalAny:
		every, some := true, false
		for i := 0; i < v.n; i++ {
			if v.c[i] != 0 {
				some = true
			} else {
				every = false
			}
		}
		if fun == ir.RelationalAll {
			return scalar(kindBool, b2f(every))
		}
		return scalar(kindBool, b2f(some))
	case ir.RelationalIsNan, ir.RelationalIsInf:
		out := vector(kindBool, v.n)
		for i := 0; i < v.n; i++ {
			if fun == ir.RelationalIsNan {
				out.c[i] = b2f(math.IsNaN(v.c[i]))
			} else {
				out.c[i] = b2f(math.IsInf(v.c[i], 0))
			}
		}
		return out
	default:
		failf("unsupported relational function %d", fun)
	}
	return value{}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
