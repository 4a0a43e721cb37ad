package msl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/shade/analysis"
)

// Version represents an MSL language version.
type Version struct {
	Major uint8
	Minor uint8
}

// Common MSL versions.
var (
	Version1_2 = Version{Major: 1, Minor: 2}
	Version2_0 = Version{Major: 2, Minor: 0}
	Version2_1 = Version{Major: 2, Minor: 1}
	Version2_3 = Version{Major: 2, Minor: 3}
	Version3_0 = Version{Major: 3, Minor: 0}
)

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v is older than o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// ParseVersion parses "major.minor", for example "2.1".
func ParseVersion(s string) (Version, error) {
	major, minor, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, NewError(ErrUnsupportedFeature, fmt.Sprintf("invalid MSL version %q", s))
	}
	ma, err1 := strconv.ParseUint(major, 10, 8)
	mi, err2 := strconv.ParseUint(minor, 10, 8)
	if err1 != nil || err2 != nil {
		return Version{}, NewError(ErrUnsupportedFeature, fmt.Sprintf("invalid MSL version %q", s))
	}
	v := Version{Major: uint8(ma), Minor: uint8(mi)}
	if v.Less(Version1_2) {
		return Version{}, NewError(ErrUnsupportedFeature, fmt.Sprintf("MSL %s is not supported", v))
	}
	return v, nil
}

// Options configures MSL code generation.
type Options struct {
	// LangVersion is the target MSL version.
	// Defaults to Version2_1 if zero.
	LangVersion Version

	// Stage selects the entry point to compile.
	Stage analysis.Stage

	// BindingMap maps uniform block names to [[buffer(n)]] slots and
	// texture names to [[texture(n)]] slots. The default block is keyed by
	// "uniforms".
	BindingMap map[string]uint8

	// FakeMissingBindings generates slots for resources not found in
	// BindingMap: blocks use their index, textures their texture unit.
	// If false, a missing binding fails with ErrMissingBinding.
	FakeMissingBindings bool
}

// DefaultOptions returns sensible default options for MSL generation.
func DefaultOptions() Options {
	return Options{
		LangVersion:         Version2_1,
		FakeMissingBindings: true,
	}
}

// TranslationInfo contains information about the compiled MSL output.
type TranslationInfo struct {
	// EntryPointNames maps the entry function to the generated stage
	// function, "vertex_main" or "pixel_main".
	EntryPointNames map[string]string

	// Attributes are the [[attribute(n)]] inputs of the vertex stage. A
	// matrix takes one attribute per column, starting at Slot.
	Attributes []analysis.Binding

	// Varyings are the [[user(locnN)]] values passed between stages.
	Varyings []analysis.Binding

	// Buffers are the uniform block arguments by [[buffer(n)]] slot.
	Buffers []analysis.Binding

	// Textures are the texture arguments by [[texture(n)]] slot.
	Textures []analysis.Binding

	// Uniforms are the block structs with Metal struct layout.
	Uniforms []analysis.LayoutBlock
}

// Compile generates MSL source code for one stage of an analysed module.
// Returns the MSL source as a string and translation info, or an error.
func Compile(module *analysis.Module, options Options) (string, TranslationInfo, error) {
	if module == nil {
		return "", TranslationInfo{}, NewError(ErrInternalError, "module is nil")
	}
	// Apply defaults for zero values
	if options.LangVersion.Major == 0 {
		options.LangVersion = Version2_1
	}
	if options.LangVersion.Less(Version1_2) {
		return "", TranslationInfo{}, fmt.Errorf("msl: %w", NewError(ErrUnsupportedFeature,
			fmt.Sprintf("MSL %s is not supported", options.LangVersion)))
	}

	closure := module.Closure(options.Stage)
	if closure == nil {
		return "", TranslationInfo{}, fmt.Errorf("msl: %w", NewError(ErrEntryPointNotFound,
			fmt.Sprintf("entry point `%s` is not declared", options.Stage)))
	}

	w := newWriter(module, closure, &options)
	if err := w.writeModule(); err != nil {
		return "", TranslationInfo{}, fmt.Errorf("msl: %w", err)
	}
	return w.String(), w.translationInfo(), nil
}
