// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"

	"github.com/gogpu/shade/analysis"
)

// Version represents a GLSL version.
type Version struct {
	Major uint8
	Minor uint8
	ES    bool // true for GLSL ES (OpenGL ES / WebGL)
}

// Common GLSL versions.
var (
	// Desktop OpenGL versions
	Version330 = Version{Major: 3, Minor: 30, ES: false} // OpenGL 3.3 Core
	Version400 = Version{Major: 4, Minor: 0, ES: false}  // OpenGL 4.0
	Version410 = Version{Major: 4, Minor: 10, ES: false} // OpenGL 4.1
	Version450 = Version{Major: 4, Minor: 50, ES: false} // OpenGL 4.5

	// OpenGL ES / WebGL versions
	VersionES100 = Version{Major: 1, Minor: 0, ES: true}  // ES 2.0 / WebGL 1.0
	VersionES300 = Version{Major: 3, Minor: 0, ES: true}  // ES 3.0 / WebGL 2.0
	VersionES310 = Version{Major: 3, Minor: 10, ES: true} // ES 3.1
)

// String returns the version as a GLSL version directive value.
func (v Version) String() string {
	if v.ES {
		if v.isLegacy() {
			return v.VersionNumber()
		}
		return fmt.Sprintf("%d%02d es", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d%02d core", v.Major, v.Minor)
}

// VersionNumber returns just the numeric version (e.g., "330", "300").
func (v Version) VersionNumber() string {
	return fmt.Sprintf("%d%02d", v.Major, v.Minor)
}

// ParseVersion parses a version number as accepted by the #version
// directive: "330", "300 es", "100".
func ParseVersion(s string) (Version, error) {
	var number int
	var profile string
	if n, _ := fmt.Sscanf(s, "%d %s", &number, &profile); n == 0 {
		return Version{}, fmt.Errorf("glsl: invalid version %q", s)
	}
	v := Version{Major: uint8(number / 100), Minor: uint8(number % 100)}
	switch {
	case number == 100 || number == 300 || number == 310 || number == 320:
		v.ES = true
	case profile == "es":
		return Version{}, fmt.Errorf("glsl: %d is not a GLSL ES version", number)
	case number < 330:
		return Version{}, fmt.Errorf("glsl: version %d is older than 330", number)
	}
	return v, nil
}

// isLegacy reports whether v is GLSL ES 1.00, which predates in/out
// qualifiers, texture() and fragment outputs.
func (v Version) isLegacy() bool {
	return v.ES && v.Major < 3
}

// Options configures GLSL code generation.
type Options struct {
	// LangVersion is the target GLSL version.
	// Defaults to Version330 if zero.
	LangVersion Version

	// Stage selects the entry point to compile.
	Stage analysis.Stage

	// ForceHighPrecision selects highp as the default precision (ES only).
	// If false, mediump is used.
	ForceHighPrecision bool
}

// DefaultOptions returns sensible default options for GLSL generation.
func DefaultOptions() Options {
	return Options{
		LangVersion:        Version330,
		ForceHighPrecision: true,
	}
}

// TranslationInfo contains metadata about the translation.
type TranslationInfo struct {
	// EntryPointNames maps the entry point function to the name it is
	// emitted under. The stage itself always starts at main.
	EntryPointNames map[string]string

	// UsedExtensions lists GLSL extensions required by the shader.
	UsedExtensions []string

	// Attributes are the vertex inputs by location (vertex stage only).
	Attributes []analysis.Binding

	// Varyings are the values passed between the stages, by location.
	Varyings []analysis.Binding

	// Textures are the sampler2D uniforms by texture unit.
	Textures []analysis.Binding

	// Uniforms lists the uniform blocks the stage reads, laid out with
	// std140 rules. The uniforms themselves are emitted as plain uniforms.
	Uniforms []analysis.LayoutBlock
}

// Compile generates GLSL source code for one stage of an analysed module.
// Returns the GLSL source as a string, translation info, or an error.
func Compile(module *analysis.Module, options Options) (string, TranslationInfo, error) {
	// Apply defaults for zero values
	if options.LangVersion.Major == 0 {
		options.LangVersion = Version330
	}

	closure := module.Closure(options.Stage)
	if closure == nil {
		return "", TranslationInfo{}, fmt.Errorf("glsl: %w", NewError(ErrEntryPointNotFound,
			fmt.Sprintf("entry point `%s` is not declared", options.Stage)))
	}

	w := newWriter(module, closure, &options)
	if err := w.writeModule(); err != nil {
		return "", TranslationInfo{}, fmt.Errorf("glsl: %w", err)
	}
	return w.String(), w.translationInfo(), nil
}
