// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"strings"
	"testing"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderlab/internal/wgslc"
)

// moduleWith builds a module whose entry point calls a helper function.
// The helper holds exprs and body; unused holds code that is never called.
func moduleWith(globals []ir.GlobalVariable, exprs []ir.Expression, body ir.Block, unused ir.Block) *wgslc.Shader {
	m := &ir.Module{
		Types: []ir.Type{{Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}},
		GlobalVariables: globals,
		Functions: []ir.Function{
			{
				Name: "fs_main",
				Body: ir.Block{{Kind: ir.StmtCall{Function: 1}}},
			},
			{Name: "helper", Expressions: exprs, Body: body},
			{Name: "dead", Body: unused},
		},
	}
	m.EntryPoints = []ir.EntryPoint{{Name: "fs_main", Stage: ir.StageFragment, Function: 0}}
	return &wgslc.Shader{Module: m, Entry: m.EntryPoints[0]}
}

func TestUnsupported(t *testing.T) {
	tests := []struct {
		name  string
		sh    *wgslc.Shader
		wants []string
	}{
		{
			name: "plain",
			sh:   moduleWith(nil, []ir.Expression{{Kind: ir.Literal{Value: ir.LiteralF32(1)}}}, nil, nil),
		},
		{
			name: "atomics and barrier",
			sh: moduleWith(nil,
				[]ir.Expression{{Kind: ir.ExprAtomicResult{}}},
				ir.Block{{Kind: ir.StmtBlock{Block: ir.Block{{Kind: ir.StmtBarrier{}}}}}},
				nil),
			wants: []string{"helper: atomics", "helper: workgroup operations"},
		},
		{
			name: "storage global",
			sh: moduleWith(
				[]ir.GlobalVariable{{Name: "data", Space: ir.SpaceStorage}},
				[]ir.Expression{{Kind: ir.ExprGlobalVariable{Variable: 0}}},
				nil, nil),
			wants: []string{`global "data": address space storage`},
		},
		{
			name: "unreachable code",
			sh:   moduleWith(nil, nil, nil, ir.Block{{Kind: ir.StmtBarrier{}}}),
		},
		{
			name: "math",
			sh: moduleWith(nil,
				[]ir.Expression{
					{Kind: ir.Literal{Value: ir.LiteralF32(1)}},
					{Kind: ir.ExprMath{Fun: ir.MathInverse, Arg: 0}},
				},
				nil, nil),
			wants: []string{"helper: math function"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unsupported(tt.sh)
			if len(got) != len(tt.wants) {
				t.Fatalf("unsupported() = %q, want %d problems", got, len(tt.wants))
			}
			for i, want := range tt.wants {
				if !strings.HasPrefix(got[i], want) {
					t.Errorf("problem %d = %q, want prefix %q", i, got[i], want)
				}
			}
		})
	}
}
