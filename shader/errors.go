// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/shaderlab/backend"
)

// ErrNoDevice is returned when a compiler has no graphics context.
var ErrNoDevice = errors.New("shader: no graphics context")

// Stage names the step of program construction that failed.
type Stage uint8

const (
	// StageVertex is the vertex shader compile.
	StageVertex Stage = iota
	// StageFragment is the fragment shader compile.
	StageFragment
	// StageLink is the program link.
	StageLink
)

// String returns the lowercase stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageLink:
		return "link"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

func (s Stage) backend() backend.Stage {
	if s == StageFragment {
		return backend.StageFragment
	}
	return backend.StageVertex
}

// CompileError reports a failed compile or link together with the device's
// info log.
type CompileError struct {
	Stage Stage
	Log   string
}

func (e *CompileError) Error() string {
	if e.Stage == StageLink {
		return "Could not link program:\n" + e.Log
	}
	return "Could not compile shader:\n" + e.Log
}
