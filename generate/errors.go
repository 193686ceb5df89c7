// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package generate

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt is returned before any request when the prompt is blank.
	ErrEmptyPrompt = errors.New("generate: prompt is empty")

	// ErrEmptyResponse is returned when the service replies with no body.
	ErrEmptyResponse = errors.New("Received empty response from the server.") //nolint:staticcheck // user-facing message
)

// defaultServiceMessage is used when a failed reply carries no error text.
const defaultServiceMessage = "Failed to generate shader"

// NetworkError reports a request that never produced a response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("Failed to generate shader: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServiceError reports a reply the service marked as failed, or one that
// does not match the response schema.
type ServiceError struct {
	// Status is the HTTP status code of the reply.
	Status int
	// Message is the error text reported by the service.
	Message string
}

func (e *ServiceError) Error() string { return e.Message }
