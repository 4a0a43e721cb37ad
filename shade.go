// Package shade provides a Pure Go shader compiler.
//
// shade compiles a small Rust-like shading language to source text for three
// graphics APIs:
//   - GLSL: OpenGL Shading Language for OpenGL 3.3+, ES 1.0 and ES 3.0+
//   - HLSL: High-Level Shading Language for Direct3D
//   - MSL: Metal Shading Language for macOS/iOS
//
// A shader is an ordered list of code fragments. Fragments are lexed as one
// stream, so a shared library of functions can be prepended to every shader
// (see [Prelude]). The entry points are fn vertex() -> vec4 and
// fn pixel() -> vec4; each stage is compiled separately.
//
// Example usage:
//
//	fragments := []shade.CodeFragment{{
//	    Filename: "tint.shd",
//	    Line:     1,
//	    Col:      1,
//	    Code: `
//	geometry pos: vec2;
//	uniform tint: vec4;
//	fn vertex() -> vec4 { return vec4(pos, 0.0, 1.0); }
//	fn pixel() -> vec4 { return tint; }
//	`,
//	}}
//	out, err := shade.Compile(fragments, shade.TargetGLSL, shade.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out.Vertex, out.Pixel)
//
// For lower-level access, analyse once and call a backend per stage:
//
//	module, _ := shade.GenerateShaderAst(fragments, builtin.Default())
//	hlslCode, info, err := hlsl.Compile(module, hlsl.DefaultOptions())
package shade

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/shade/analysis"
	"github.com/gogpu/shade/builtin"
	"github.com/gogpu/shade/glsl"
	"github.com/gogpu/shade/hlsl"
	"github.com/gogpu/shade/lang"
	"github.com/gogpu/shade/msl"
)

// CodeFragment is one piece of shader source. Line and Col give the
// 1-based position of the first byte of Code within Filename, so fragments
// cut out of a larger file report errors at their real location.
type CodeFragment struct {
	Filename string
	Line     int
	Col      int
	Code     string
}

// Target selects the output shading language.
type Target uint8

const (
	TargetGLSL Target = iota
	TargetHLSL
	TargetMSL
)

// Targets lists every supported target.
var Targets = []Target{TargetGLSL, TargetHLSL, TargetMSL}

var targetNames = [...]string{"glsl", "hlsl", "msl"}

// String returns the lower-case target name.
func (t Target) String() string {
	if int(t) < len(targetNames) {
		return targetNames[t]
	}
	return fmt.Sprintf("Target(%d)", t)
}

// Ext returns the conventional file extension for the target.
func (t Target) Ext() string {
	if t == TargetMSL {
		return ".metal"
	}
	return "." + t.String()
}

// ParseTarget parses a target name. Case is ignored and "metal" is
// accepted for MSL.
func ParseTarget(s string) (Target, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "metal" {
		return TargetMSL, nil
	}
	for i, n := range targetNames {
		if n == name {
			return Target(i), nil
		}
	}
	return 0, fmt.Errorf("unknown target %q (want glsl, hlsl or msl)", s)
}

// ErrNoEntryPoint is returned by Compile when a shader declares neither
// fn vertex nor fn pixel.
var ErrNoEntryPoint = errors.New("shader declares no entry point")

// CompileOptions configures shader compilation.
type CompileOptions struct {
	// GLSL, HLSL and MSL are the per-backend options. Their Stage field is
	// set by Compile for each stage.
	GLSL glsl.Options
	HLSL hlsl.Options
	MSL  msl.Options

	// Prelude prepends the embedded standard library to the fragments.
	Prelude bool

	// Builtins is the builtin function table. Nil means builtin.Default().
	Builtins builtin.Table
}

// DefaultOptions returns sensible default options.
func DefaultOptions() CompileOptions {
	return CompileOptions{
		GLSL: glsl.DefaultOptions(),
		HLSL: hlsl.DefaultOptions(),
		MSL:  msl.DefaultOptions(),
	}
}

// Output holds the generated source of each stage. A stage whose entry
// point is not declared is left empty.
type Output struct {
	Vertex string
	Pixel  string
}

// Stage returns the source generated for s.
func (o Output) Stage(s analysis.Stage) string {
	if s == analysis.StagePixel {
		return o.Pixel
	}
	return o.Vertex
}

func (o *Output) set(s analysis.Stage, code string) {
	if s == analysis.StagePixel {
		o.Pixel = code
	} else {
		o.Vertex = code
	}
}

// GenerateShaderAst parses and analyses the fragments as one shader.
// Front-end errors are returned as *SourceError.
func GenerateShaderAst(fragments []CodeFragment, builtins builtin.Table) (*analysis.Module, error) {
	if builtins == nil {
		builtins = builtin.Default()
	}
	codes := make([]string, len(fragments))
	for i, f := range fragments {
		codes[i] = f.Code
	}

	tokens, err := lang.LexFragments(codes)
	if err != nil {
		return nil, newSourceError(fragments, err)
	}
	ast, err := lang.Parse(tokens)
	if err != nil {
		return nil, newSourceError(fragments, err)
	}
	module, err := analysis.Analyse(ast, builtins)
	if err != nil {
		return nil, newSourceError(fragments, err)
	}

	Logger().Debug("shade: analysed shader",
		"fragments", len(fragments),
		"tokens", len(tokens),
		"decls", len(ast.Decls))
	return module, nil
}

// CompileStage generates one stage of an analysed module for target.
func CompileStage(module *analysis.Module, target Target, stage analysis.Stage, opts CompileOptions) (string, error) {
	var (
		code string
		err  error
	)
	switch target {
	case TargetGLSL:
		o := opts.GLSL
		o.Stage = stage
		code, _, err = glsl.Compile(module, o)
	case TargetHLSL:
		o := opts.HLSL
		o.Stage = stage
		code, _, err = hlsl.Compile(module, o)
	case TargetMSL:
		o := opts.MSL
		o.Stage = stage
		code, _, err = msl.Compile(module, o)
	default:
		return "", fmt.Errorf("unknown target %v", target)
	}
	return code, err
}

// Compile compiles every declared stage of the shader to target.
//
// The compilation pipeline is:
//  1. Lex and parse the fragments into one AST
//  2. Analyse it (types, assignability, dependencies, constants)
//  3. Generate the vertex and pixel stages that are declared
func Compile(fragments []CodeFragment, target Target, opts CompileOptions) (Output, error) {
	if opts.Prelude {
		fragments = append(Prelude(), fragments...)
	}
	module, err := GenerateShaderAst(fragments, opts.Builtins)
	if err != nil {
		return Output{}, err
	}

	var out Output
	compiled := 0
	for _, stage := range analysis.Stages {
		closure := module.Closure(stage)
		if closure == nil {
			continue
		}
		code, err := CompileStage(module, target, stage, opts)
		if err != nil {
			return Output{}, newSourceError(fragments, err)
		}
		Logger().Debug("shade: compiled stage",
			"target", target,
			"stage", stage,
			"functions", len(closure.Functions),
			"globals", len(closure.Globals),
			"bytes", len(code))
		out.set(stage, code)
		compiled++
	}
	if compiled == 0 {
		return Output{}, ErrNoEntryPoint
	}
	return out, nil
}
