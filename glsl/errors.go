// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"

	"github.com/gogpu/shade/lang"
)

// ErrorKind categorizes GLSL compilation errors.
type ErrorKind uint8

const (
	// ErrUnsupportedFeature indicates a shader feature the target version lacks.
	ErrUnsupportedFeature ErrorKind = iota

	// ErrEntryPointNotFound indicates the requested stage has no entry point.
	ErrEntryPointNotFound

	// ErrInternalError indicates an internal compiler error.
	ErrInternalError
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedFeature:
		return "UnsupportedFeature"
	case ErrEntryPointNotFound:
		return "EntryPointNotFound"
	case ErrInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Error represents a GLSL compilation error.
type Error struct {
	Kind    ErrorKind
	Message string
	// Span optionally identifies the source construct.
	Span *lang.Span
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Span, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates a new GLSL error without span information.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorWithSpan creates a new GLSL error pointing at a source construct.
func NewErrorWithSpan(kind ErrorKind, message string, span lang.Span) *Error {
	return &Error{Kind: kind, Message: message, Span: &span}
}

// IsUnsupportedFeature returns true if the error is ErrUnsupportedFeature.
func (e *Error) IsUnsupportedFeature() bool {
	return e.Kind == ErrUnsupportedFeature
}
