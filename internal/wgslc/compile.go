// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgslc compiles and reflects WGSL stages with naga for every device.
//
// Compile runs the naga front end (parse, lower, validate) and selects the
// entry point of the requested stage. Link matches a vertex stage with a
// fragment stage and reports their attributes and uniforms.
package wgslc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/wgsl"
)

// Error is a compiler or linker diagnostic. Log holds one or more lines of
// text suitable for an info log.
type Error struct {
	Log string
}

func (e *Error) Error() string { return e.Log }

func errorf(format string, args ...any) *Error {
	return &Error{Log: "error: " + fmt.Sprintf(format, args...)}
}

// Shader is one compiled WGSL stage.
type Shader struct {
	// Source is the WGSL text the shader was compiled from.
	Source string
	// Module is the lowered and validated IR.
	Module *ir.Module
	// Entry is the entry point of the shader's stage.
	Entry ir.EntryPoint
}

// Stage returns the pipeline stage of the entry point.
func (s *Shader) Stage() ir.ShaderStage { return s.Entry.Stage }

// Function returns the entry point function.
func (s *Shader) Function() *ir.Function {
	return &s.Module.Functions[s.Entry.Function]
}

// StageName returns the WGSL attribute name of a stage.
func StageName(stage ir.ShaderStage) string {
	switch stage {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	case ir.StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("stage(%d)", stage)
	}
}

// Compile parses, lowers and validates source, and selects the first entry
// point declared for stage. All failures are returned as *Error.
func Compile(source string, stage ir.ShaderStage) (*Shader, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errorf("empty shader source")
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, errorf("%v", err)
	}

	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		var list *wgsl.SourceErrors
		if errors.As(err, &list) {
			return nil, &Error{Log: list.FormatAll()}
		}
		return nil, errorf("%v", err)
	}

	problems, err := naga.Validate(module)
	if err != nil {
		return nil, errorf("%v", err)
	}
	if len(problems) > 0 {
		lines := make([]string, len(problems))
		for i := range problems {
			lines[i] = "error: " + problems[i].Error()
		}
		return nil, &Error{Log: strings.Join(lines, "\n")}
	}

	for _, ep := range module.EntryPoints {
		if ep.Stage == stage {
			return &Shader{Source: source, Module: module, Entry: ep}, nil
		}
	}
	return nil, errorf("no @%s entry point", StageName(stage))
}
