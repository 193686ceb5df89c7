// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgslc

import (
	"fmt"
	"sort"

	"github.com/gogpu/naga/ir"
)

// Slot is a location-bound entry point input or output.
type Slot struct {
	// Name is the argument or struct member name.
	Name string
	// Location is the @location index.
	Location uint32
	// Arg is the entry point argument index, or -1 for results.
	Arg int
	// Member is the struct member index, or -1 when the argument or the
	// result itself carries the binding.
	Member int
	// Type is the IR type of the slot.
	Type ir.TypeHandle
	// Components is the number of scalar components.
	Components int
	// Flat reports that the value is not interpolated.
	Flat bool
}

// Builtin is a builtin-bound entry point input or output.
type Builtin struct {
	Value  ir.BuiltinValue
	Arg    int
	Member int
}

// Inputs returns the location-bound inputs of the entry point, ordered by
// location.
func (s *Shader) Inputs() []Slot {
	fn := s.Function()
	var slots []Slot
	for i, arg := range fn.Arguments {
		slots = s.collect(slots, arg.Name, arg.Type, arg.Binding, i)
	}
	sortSlots(slots)
	return slots
}

// Outputs returns the location-bound outputs of the entry point, ordered by
// location.
func (s *Shader) Outputs() []Slot {
	fn := s.Function()
	if fn.Result == nil {
		return nil
	}
	slots := s.collect(nil, "", fn.Result.Type, fn.Result.Binding, -1)
	sortSlots(slots)
	return slots
}

// InputBuiltins returns the builtin-bound inputs of the entry point.
func (s *Shader) InputBuiltins() []Builtin {
	fn := s.Function()
	var out []Builtin
	for i, arg := range fn.Arguments {
		out = s.builtins(out, arg.Type, arg.Binding, i)
	}
	return out
}

// OutputBuiltins returns the builtin-bound outputs of the entry point.
func (s *Shader) OutputBuiltins() []Builtin {
	fn := s.Function()
	if fn.Result == nil {
		return nil
	}
	return s.builtins(nil, fn.Result.Type, fn.Result.Binding, -1)
}

func (s *Shader) collect(slots []Slot, name string, typ ir.TypeHandle, binding *ir.Binding, arg int) []Slot {
	if binding != nil {
		if loc, ok := (*binding).(ir.LocationBinding); ok {
			slots = append(slots, s.slot(name, loc, typ, arg, -1))
		}
		return slots
	}
	st, ok := Inner(s.Module, typ).(ir.StructType)
	if !ok {
		return slots
	}
	for j, member := range st.Members {
		if member.Binding == nil {
			continue
		}
		if loc, ok := (*member.Binding).(ir.LocationBinding); ok {
			slots = append(slots, s.slot(member.Name, loc, member.Type, arg, j))
		}
	}
	return slots
}

func (s *Shader) slot(name string, loc ir.LocationBinding, typ ir.TypeHandle, arg, member int) Slot {
	inner := Inner(s.Module, typ)
	flat := false
	if loc.Interpolation != nil && loc.Interpolation.Kind == ir.InterpolationFlat {
		flat = true
	}
	if sc, ok := ScalarOf(inner); ok && sc.Kind != ir.ScalarFloat {
		flat = true
	}
	return Slot{
		Name:       name,
		Location:   loc.Location,
		Arg:        arg,
		Member:     member,
		Type:       typ,
		Components: Components(inner),
		Flat:       flat,
	}
}

func (s *Shader) builtins(out []Builtin, typ ir.TypeHandle, binding *ir.Binding, arg int) []Builtin {
	if binding != nil {
		if b, ok := (*binding).(ir.BuiltinBinding); ok {
			out = append(out, Builtin{Value: b.Builtin, Arg: arg, Member: -1})
		}
		return out
	}
	st, ok := Inner(s.Module, typ).(ir.StructType)
	if !ok {
		return out
	}
	for j, member := range st.Members {
		if member.Binding == nil {
			continue
		}
		if b, ok := (*member.Binding).(ir.BuiltinBinding); ok {
			out = append(out, Builtin{Value: b.Builtin, Arg: arg, Member: j})
		}
	}
	return out
}

func sortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Location < slots[j].Location })
}

// Uniform is a settable value inside a uniform buffer binding.
type Uniform struct {
	// Name is the global name, or the struct member name for uniform blocks.
	Name string
	// Group and Binding locate the buffer.
	Group, Binding uint32
	// Offset is the byte offset of the value inside the buffer.
	Offset uint32
	// Type is the value type.
	Type ir.TypeInner
	// Scalar is the component type.
	Scalar ir.ScalarType
	// Components is the number of scalar components.
	Components int
}

// BufferBinding is one uniform buffer used by a program.
type BufferBinding struct {
	Group, Binding uint32
	// Size is the buffer size in bytes, rounded up to 16.
	Size uint32
}

// Uniforms returns the settable uniforms of the shader's module. Struct
// uniforms contribute one entry per scalar, vector or matrix member.
func (s *Shader) Uniforms() ([]Uniform, []BufferBinding, error) {
	var uniforms []Uniform
	var bindings []BufferBinding
	for _, gv := range s.Module.GlobalVariables {
		if gv.Space != ir.SpaceUniform {
			continue
		}
		if gv.Binding == nil {
			return nil, nil, errorf("uniform %q has no @group/@binding", gv.Name)
		}
		inner := Inner(s.Module, gv.Type)
		_, size := AlignSize(s.Module, inner)
		bindings = append(bindings, BufferBinding{
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
			Size:    (size + 15) &^ 15,
		})

		if st, ok := inner.(ir.StructType); ok {
			for _, member := range st.Members {
				mi := Inner(s.Module, member.Type)
				sc, ok := ScalarOf(mi)
				if !ok || Components(mi) == 0 {
					continue
				}
				uniforms = append(uniforms, Uniform{
					Name:       member.Name,
					Group:      gv.Binding.Group,
					Binding:    gv.Binding.Binding,
					Offset:     member.Offset,
					Type:       mi,
					Scalar:     sc,
					Components: Components(mi),
				})
			}
			continue
		}
		sc, ok := ScalarOf(inner)
		if !ok || Components(inner) == 0 {
			continue
		}
		uniforms = append(uniforms, Uniform{
			Name:       gv.Name,
			Group:      gv.Binding.Group,
			Binding:    gv.Binding.Binding,
			Type:       inner,
			Scalar:     sc,
			Components: Components(inner),
		})
	}
	return uniforms, bindings, nil
}

// Layout is the interface of a linked vertex and fragment pair.
type Layout struct {
	// Attributes are the vertex stage inputs.
	Attributes []Slot
	// Varyings are the fragment stage inputs, matched to vertex outputs.
	Varyings []Slot
	// Uniforms are the settable uniforms of both stages.
	Uniforms []Uniform
	// Bindings are the uniform buffers of both stages.
	Bindings []BufferBinding
}

// Attribute looks up a vertex attribute by name.
func (l *Layout) Attribute(name string) (Slot, bool) {
	for _, a := range l.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Slot{}, false
}

// AttributeAt looks up a vertex attribute by location.
func (l *Layout) AttributeAt(location uint32) (Slot, bool) {
	for _, a := range l.Attributes {
		if a.Location == location {
			return a, true
		}
	}
	return Slot{}, false
}

// UniformIndex returns the index of the named uniform, or -1.
func (l *Layout) UniformIndex(name string) int {
	for i, u := range l.Uniforms {
		if u.Name == name {
			return i
		}
	}
	return -1
}

// Link checks that vs and fs form a program and returns its layout.
// Failures are returned as *Error.
func Link(vs, fs *Shader) (*Layout, error) {
	if vs == nil || fs == nil {
		return nil, errorf("program needs one vertex and one fragment shader")
	}
	if vs.Stage() != ir.StageVertex {
		return nil, errorf("attached vertex shader has a @%s entry point", StageName(vs.Stage()))
	}
	if fs.Stage() != ir.StageFragment {
		return nil, errorf("attached fragment shader has a @%s entry point", StageName(fs.Stage()))
	}

	hasColor := false
	for _, out := range fs.Outputs() {
		if out.Location == 0 {
			hasColor = true
		}
	}
	if !hasColor {
		return nil, errorf("fragment stage does not write @location(0)")
	}

	outputs := make(map[uint32]Slot)
	for _, out := range vs.Outputs() {
		outputs[out.Location] = out
	}
	varyings := fs.Inputs()
	for _, in := range varyings {
		out, ok := outputs[in.Location]
		if !ok {
			return nil, errorf("fragment input %q at @location(%d) is not written by the vertex stage", in.Name, in.Location)
		}
		if out.Components != in.Components {
			return nil, errorf("@location(%d) has %d components in the vertex stage and %d in the fragment stage",
				in.Location, out.Components, in.Components)
		}
	}

	layout := &Layout{Attributes: vs.Inputs(), Varyings: varyings}
	for _, s := range []*Shader{vs, fs} {
		uniforms, bindings, err := s.Uniforms()
		if err != nil {
			return nil, err
		}
		for _, u := range uniforms {
			if i := layout.UniformIndex(u.Name); i >= 0 {
				prev := layout.Uniforms[i]
				if prev.Group != u.Group || prev.Binding != u.Binding || prev.Offset != u.Offset || prev.Components != u.Components {
					return nil, errorf("uniform %q is declared differently in the vertex and fragment stages", u.Name)
				}
				continue
			}
			layout.Uniforms = append(layout.Uniforms, u)
		}
		for _, b := range bindings {
			layout.Bindings = mergeBinding(layout.Bindings, b)
		}
	}
	return layout, nil
}

func mergeBinding(list []BufferBinding, b BufferBinding) []BufferBinding {
	for i := range list {
		if list[i].Group == b.Group && list[i].Binding == b.Binding {
			list[i].Size = max(list[i].Size, b.Size)
			return list
		}
	}
	return append(list, b)
}

// String describes a slot for logs.
func (s Slot) String() string {
	return fmt.Sprintf("%s@location(%d)x%d", s.Name, s.Location, s.Components)
}
