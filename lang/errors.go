package lang

import "fmt"

// ParseError is the single user-facing error type of the front end and the
// analyser. Lex, parse, type and assignability errors all carry the span of
// the offending source text.
type ParseError struct {
	Span    Span
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Span, e.Message)
}

// Errorf creates a ParseError with a formatted message.
func Errorf(span Span, format string, args ...any) *ParseError {
	return &ParseError{Span: span, Message: fmt.Sprintf(format, args...)}
}
