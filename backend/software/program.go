// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"sort"
	"strings"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderlab/backend"
	"github.com/gogpu/shaderlab/internal/wgslc"
)

// shader is a shader object. compiled is nil until a compile succeeds.
type shader struct {
	stage    backend.Stage
	compiled *wgslc.Shader
	machine  *machine
	log      string
}

// program is a program object with its attached shaders.
type program struct {
	attached map[backend.Stage]backend.Shader
	linked   *linked
	log      string
}

// linked is the executable state of a successfully linked program. It
// keeps its own references to the compiled stages, so deleting a shader
// after linking does not affect it.
type linked struct {
	vs, fs   *wgslc.Shader
	vsm, fsm *machine
	layout   *wgslc.Layout

	// values holds the components set for each layout uniform.
	values [][]float32

	position       int // vertex result member with the position, -1 for the result
	varyingMembers []int
	varyingOffsets []int
	varyingWidth   int
	varyingAt      map[uint32]int
	color          int // fragment result member with @location(0)
}

func compileShader(stage backend.Stage, source string) (*wgslc.Shader, *machine, error) {
	irStage := ir.StageVertex
	if stage == backend.StageFragment {
		irStage = ir.StageFragment
	}
	sh, err := wgslc.Compile(source, irStage)
	if err != nil {
		return nil, nil, err
	}
	if problems := unsupported(sh); len(problems) > 0 {
		for i := range problems {
			problems[i] = "error: " + problems[i]
		}
		return nil, nil, &wgslc.Error{Log: strings.Join(problems, "\n")}
	}

	var m *machine
	err = protect(func() { m = newMachine(sh) })
	if err != nil {
		return nil, nil, &wgslc.Error{Log: "error: " + err.Error()}
	}
	return sh, m, nil
}

// protect runs fn and converts an interpreter fault into an error.
func protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(fault); ok {
				err = f
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}

func link(vs, fs *shader) (*linked, error) {
	if vs == nil || fs == nil || vs.compiled == nil || fs.compiled == nil {
		return nil, &wgslc.Error{Log: "error: program needs one compiled vertex and one compiled fragment shader"}
	}
	layout, err := wgslc.Link(vs.compiled, fs.compiled)
	if err != nil {
		return nil, err
	}

	l := &linked{
		vs:        vs.compiled,
		fs:        fs.compiled,
		vsm:       vs.machine,
		fsm:       fs.machine,
		layout:    layout,
		values:    make([][]float32, len(layout.Uniforms)),
		position:  -2,
		varyingAt: make(map[uint32]int),
		color:     -2,
	}

	for _, b := range vs.compiled.OutputBuiltins() {
		if b.Value == ir.BuiltinPosition {
			l.position = b.Member
		}
	}
	if l.position == -2 {
		return nil, &wgslc.Error{Log: "error: vertex stage does not write @builtin(position)"}
	}

	outputs := make(map[uint32]wgslc.Slot)
	for _, out := range vs.compiled.Outputs() {
		outputs[out.Location] = out
	}
	for i, in := range layout.Varyings {
		l.varyingMembers = append(l.varyingMembers, outputs[in.Location].Member)
		l.varyingOffsets = append(l.varyingOffsets, l.varyingWidth)
		l.varyingWidth += in.Components
		l.varyingAt[in.Location] = i
	}

	for _, out := range fs.compiled.Outputs() {
		if out.Location == 0 {
			l.color = out.Member
		}
	}
	return l, nil
}

// uniformGlobals builds the uniform globals of one stage from the values
// set on the program. Unset uniforms read as zero.
func (l *linked) uniformGlobals(m *machine) []value {
	mod := m.module
	globals := make([]value, len(mod.GlobalVariables))
	for i, gv := range mod.GlobalVariables {
		if gv.Space != ir.SpaceUniform {
			continue
		}
		inner := wgslc.Inner(mod, gv.Type)
		v := zeroOf(mod, inner)
		if st, ok := inner.(ir.StructType); ok {
			for j, member := range st.Members {
				if k := l.layout.UniformIndex(member.Name); k >= 0 {
					fill(&v.elems[j], l.values[k])
				}
			}
		} else if k := l.layout.UniformIndex(gv.Name); k >= 0 {
			fill(&v, l.values[k])
		}
		globals[i] = v
	}
	return globals
}

// fill writes float components into a scalar, vector or column-major
// matrix value.
func fill(v *value, xs []float32) {
	if len(xs) == 0 {
		return
	}
	if v.kind == kindMatrix {
		i := 0
		for c := range v.elems {
			col := &v.elems[c]
			for r := 0; r < col.n && i < len(xs); r++ {
				col.c[r] = convertScalar(kindFloat, col.kind, float64(xs[i]))
				i++
			}
		}
		return
	}
	for c := 0; c < v.n && c < len(xs); c++ {
		v.c[c] = convertScalar(kindFloat, v.kind, float64(xs[c]))
	}
}

// errLog extracts the info log text from a compile or link error.
func errLog(err error) string {
	var cerr *wgslc.Error
	if errors.As(err, &cerr) {
		return cerr.Log
	}
	return "error: " + err.Error()
}

// attachedStages returns the attached shader handles in stage order.
func (p *program) attachedStages() []backend.Stage {
	stages := make([]backend.Stage, 0, len(p.attached))
	for st := range p.attached {
		stages = append(stages, st)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	return stages
}
