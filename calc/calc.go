// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package calc evaluates arithmetic expressions.
//
// Expressions are built from decimal numbers, the binary operators + - * /
// and parentheses. Multiplication and division bind tighter than addition
// and subtraction, and operators of equal precedence associate to the left.
// There is no unary minus.
package calc

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotReady is returned by Evaluator.Calculate before Init completes.
	ErrNotReady = errors.New("calc: evaluator not ready")

	// ErrInvalidExpression is wrapped by every *Error.
	ErrInvalidExpression = errors.New("calc: invalid expression")
)

// Error describes why an expression could not be evaluated.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return ErrInvalidExpression }

func invalid(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Evaluator refuses work until its asynchronous initialization is done.
type Evaluator struct {
	mu      sync.Mutex
	started bool
	ready   chan struct{}
	ops     map[byte]operator
}

// NewEvaluator returns an evaluator that is not yet initialized.
func NewEvaluator() *Evaluator {
	return &Evaluator{ready: make(chan struct{})}
}

// Init starts initialization in the background. Calls made while an
// initialization is running or after it completed are no-ops.
// If ctx is done first the initialization is abandoned and a later Init
// starts over.
func (e *Evaluator) Init(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	go func() {
		ops := operatorTable()
		e.mu.Lock()
		defer e.mu.Unlock()
		if ctx.Err() != nil {
			e.started = false
			return
		}
		e.ops = ops
		close(e.ready)
	}()
}

// Ready returns a channel that is closed once Init has completed.
func (e *Evaluator) Ready() <-chan struct{} { return e.ready }

// Calculate evaluates expr. It returns ErrNotReady until Ready is closed.
func (e *Evaluator) Calculate(expr string) (float64, error) {
	select {
	case <-e.ready:
	default:
		return 0, ErrNotReady
	}
	return evaluate(expr, e.ops)
}

// Calculate evaluates expr without an Evaluator.
func Calculate(expr string) (float64, error) {
	return evaluate(expr, operatorTable())
}
