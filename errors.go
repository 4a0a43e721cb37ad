package shade

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gogpu/shade/glsl"
	"github.com/gogpu/shade/hlsl"
	"github.com/gogpu/shade/lang"
	"github.com/gogpu/shade/msl"
)

// SourceError is a compile error resolved to a file position.
type SourceError struct {
	Filename string
	Line     int // 1-based
	Col      int // 1-based, in runes
	Message  string

	// Source is the offending line. A line that starts inside a fragment
	// with a Col offset is padded so Col indexes it directly.
	Source string
	// Length is the width of the culprit on Source, at least 1.
	Length int

	// Err is the underlying *lang.ParseError or backend error.
	Err error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Line, e.Col, e.Message)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error { return e.Err }

// Culprit highlighting, as used by terminals that understand SGR.
var (
	culpritBegin = "\033[1;4m"
	culpritEnd   = "\033[m"
)

// FormatWithContext returns the error message with source context: the
// offending line and a caret marker under the culprit. If color is true the
// culprit is also highlighted with ANSI escapes.
func (e *SourceError) FormatWithContext(color bool) string {
	if e.Source == "" || e.Line < 1 || e.Col < 1 {
		return "error: " + e.Error() + "\n"
	}

	runes := []rune(e.Source)
	col := min(e.Col, len(runes)+1)
	length := max(min(e.Length, len(runes)-col+1), 1)

	line := e.Source
	if color && col <= len(runes) {
		line = string(runes[:col-1]) + culpritBegin + string(runes[col-1:col-1+length]) + culpritEnd + string(runes[col-1+length:])
	}

	// Keep tabs so the marker lines up with the source.
	var pad strings.Builder
	for _, r := range runes[:col-1] {
		if r == '\t' {
			pad.WriteRune('\t')
		} else {
			pad.WriteByte(' ')
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "error: %s\n", e.Message)
	if e.Filename != "" {
		fmt.Fprintf(&sb, "  --> %s:%d:%d\n", e.Filename, e.Line, e.Col)
	} else {
		fmt.Fprintf(&sb, "  --> line %d:%d\n", e.Line, e.Col)
	}
	width := len(fmt.Sprint(e.Line))
	gutter := strings.Repeat(" ", width)
	fmt.Fprintf(&sb, "%s |\n", gutter)
	fmt.Fprintf(&sb, "%d | %s\n", e.Line, line)
	fmt.Fprintf(&sb, "%s | %s%s\n", gutter, pad.String(), strings.Repeat("^", length))
	return sb.String()
}

// errorSpan extracts the source span and message of a front-end or backend
// error.
func errorSpan(err error) (lang.Span, string, bool) {
	var (
		perr *lang.ParseError
		gerr *glsl.Error
		herr *hlsl.Error
		merr *msl.Error
	)
	switch {
	case errors.As(err, &perr):
		return perr.Span, perr.Message, true
	case errors.As(err, &gerr) && gerr.Span != nil:
		return *gerr.Span, gerr.Message, true
	case errors.As(err, &herr) && herr.Span != nil:
		return *herr.Span, herr.Message, true
	case errors.As(err, &merr) && merr.Span != nil:
		return *merr.Span, merr.Message, true
	}
	return lang.Span{}, "", false
}

// newSourceError resolves the span of err against the fragments it was
// lexed from. Errors without a usable span are returned unchanged.
func newSourceError(fragments []CodeFragment, err error) error {
	span, message, ok := errorSpan(err)
	if !ok || span.Fragment < 0 || span.Fragment >= len(fragments) {
		return err
	}
	frag := fragments[span.Fragment]
	code := frag.Code
	start := min(max(span.Start, 0), len(code))
	end := min(max(span.End, start), len(code))

	lineStart := strings.LastIndexByte(code[:start], '\n') + 1
	lineEnd := len(code)
	if i := strings.IndexByte(code[start:], '\n'); i >= 0 {
		lineEnd = start + i
	}
	newlines := strings.Count(code[:start], "\n")

	baseLine, baseCol := max(frag.Line, 1), max(frag.Col, 1)
	source := code[lineStart:lineEnd]
	col := utf8.RuneCountInString(code[lineStart:start]) + 1
	if newlines == 0 {
		source = strings.Repeat(" ", baseCol-1) + source
		col += baseCol - 1
	}

	return &SourceError{
		Filename: frag.Filename,
		Line:     baseLine + newlines,
		Col:      col,
		Message:  message,
		Source:   strings.TrimRight(source, "\r"),
		Length:   max(utf8.RuneCountInString(code[start:min(end, lineEnd)]), 1),
		Err:      err,
	}
}
