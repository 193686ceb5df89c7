// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shaderlab/internal/wgslc"
)

// ExportGLSL translates the stage entry point of a WGSL source to GLSL ES
// 3.00, the language of WebGL 2. Floats are declared highp.
//
// A source that does not compile returns a *CompileError for stage.
func ExportGLSL(source string, stage Stage) (string, error) {
	var irStage ir.ShaderStage
	switch stage {
	case StageVertex:
		irStage = ir.StageVertex
	case StageFragment:
		irStage = ir.StageFragment
	default:
		return "", fmt.Errorf("shader: cannot export %s stage", stage)
	}

	sh, err := wgslc.Compile(source, irStage)
	if err != nil {
		var cerr *wgslc.Error
		if errors.As(err, &cerr) {
			return "", &CompileError{Stage: stage, Log: cerr.Log}
		}
		return "", &CompileError{Stage: stage, Log: err.Error()}
	}

	out, _, err := glsl.Compile(sh.Module, glsl.Options{
		LangVersion:        glsl.VersionES300,
		EntryPoint:         sh.Entry.Name,
		ForceHighPrecision: true,
	})
	if err != nil {
		return "", fmt.Errorf("shader: export GLSL: %w", err)
	}
	return out, nil
}
