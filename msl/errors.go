package msl

import (
	"fmt"

	"github.com/gogpu/shade/lang"
)

// ErrorKind categorizes MSL compilation errors.
type ErrorKind uint8

const (
	// ErrUnsupportedFeature indicates a construct Metal cannot express.
	ErrUnsupportedFeature ErrorKind = iota
	// ErrMissingBinding indicates a resource has no entry in BindingMap.
	ErrMissingBinding
	// ErrInternalError indicates an internal compiler error.
	ErrInternalError
	// ErrEntryPointNotFound indicates the requested stage has no entry point.
	ErrEntryPointNotFound
)

var errorKindNames = [...]string{
	ErrUnsupportedFeature: "UnsupportedFeature",
	ErrMissingBinding:     "MissingBinding",
	ErrInternalError:      "InternalError",
	ErrEntryPointNotFound: "EntryPointNotFound",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "Unknown"
}

// Error is an MSL compilation error, optionally tied to a source span.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    *lang.Span
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("msl %s at %s: %s", e.Kind, e.Span, e.Message)
	}
	return fmt.Sprintf("msl %s: %s", e.Kind, e.Message)
}

// NewError creates an error without span information.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorWithSpan creates an error pointing at a source construct.
func NewErrorWithSpan(kind ErrorKind, message string, span lang.Span) *Error {
	return &Error{Kind: kind, Message: message, Span: &span}
}
