// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gogpu/shade/analysis"
	"github.com/gogpu/shade/lang"
)

// Writer generates GLSL source code for one stage of a module.
type Writer struct {
	module  *analysis.Module
	info    *analysis.Info
	closure *analysis.Closure
	options *Options
	stage   analysis.Stage

	// Output buffer
	out strings.Builder

	// Current indentation level
	indent int

	// Name management
	namer   *namer
	structs map[lang.Ident]string
	fns     map[*lang.FnDecl]string
	globals map[*analysis.Global]string
	consts  map[*analysis.Const]string

	// forwarded names the varyings that carry attributes to the pixel stage.
	forwarded map[*analysis.Global]string
	// inputs are the attributes the vertex stage fetches.
	inputs    []*analysis.Global
	fragColor string

	// Function context (set during function writing)
	fnNamer *namer
	locals  map[lang.Node]string

	extensions []string
	err        error
}

// namer generates unique identifiers.
type namer struct {
	usedNames map[string]struct{}
	counter   uint32
}

func newNamer() *namer {
	return &namer{
		usedNames: make(map[string]struct{}),
	}
}

// call generates a unique name based on the given base.
func (n *namer) call(base string) string {
	// Escape reserved words
	escaped := escapeKeyword(base)

	// First try the base name directly
	if _, used := n.usedNames[escaped]; !used {
		n.usedNames[escaped] = struct{}{}
		return escaped
	}

	// Add numeric suffix
	for {
		n.counter++
		candidate := fmt.Sprintf("%s_%d", escaped, n.counter)
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

// clone returns a namer that starts with every name n has handed out.
func (n *namer) clone() *namer {
	return &namer{usedNames: maps.Clone(n.usedNames), counter: n.counter}
}

// newWriter creates a new GLSL writer.
func newWriter(module *analysis.Module, closure *analysis.Closure, options *Options) *Writer {
	w := &Writer{
		module:    module,
		info:      module.Info,
		closure:   closure,
		options:   options,
		stage:     options.Stage,
		namer:     newNamer(),
		structs:   make(map[lang.Ident]string),
		fns:       make(map[*lang.FnDecl]string),
		globals:   make(map[*analysis.Global]string),
		consts:    make(map[*analysis.Const]string),
		forwarded: make(map[*analysis.Global]string),
	}
	if w.stage == analysis.StageVertex {
		w.inputs = module.Attributes()
	}
	return w
}

// String returns the generated GLSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

func (w *Writer) legacy() bool {
	return w.options.LangVersion.isLegacy()
}

// writeModule generates GLSL code for the stage.
func (w *Writer) writeModule() error {
	if err := w.checkFeatures(); err != nil {
		return err
	}
	w.registerNames()

	w.writeLine("#version %s", w.options.LangVersion)
	for _, ext := range w.extensions {
		w.writeLine("#extension %s : enable", ext)
	}
	w.writeLine("")
	w.writePrecisionQualifiers()
	w.writeStructs()
	w.writeConstants()
	w.writeGlobalVariables()
	w.writeInterface()
	for _, fn := range w.closure.Functions {
		w.writeFunction(fn)
	}
	w.writeEntryPoint()
	return w.err
}

// checkFeatures rejects built-ins the target cannot express and records
// the extensions the others need.
func (w *Writer) checkFeatures() error {
	for _, name := range []string{"dFdx", "dFdy"} {
		if !w.closure.UsesBuiltin(name) {
			continue
		}
		if w.stage == analysis.StageVertex {
			return NewError(ErrUnsupportedFeature, name+" is not available in the vertex stage")
		}
		if w.legacy() {
			w.requireExtension("GL_OES_standard_derivatives")
		}
	}
	if w.legacy() && w.closure.UsesBuiltin("transpose") {
		return NewError(ErrUnsupportedFeature, "transpose needs GLSL ES 3.00 or desktop GLSL")
	}
	return nil
}

func (w *Writer) requireExtension(name string) {
	if !slices.Contains(w.extensions, name) {
		w.extensions = append(w.extensions, name)
	}
}

// writePrecisionQualifiers writes precision qualifiers for ES.
func (w *Writer) writePrecisionQualifiers() {
	if !w.options.LangVersion.ES {
		return
	}
	precision := "mediump"
	if w.options.ForceHighPrecision {
		precision = "highp"
	}
	w.writeLine("precision %s float;", precision)
	w.writeLine("precision %s int;", precision)
	w.writeLine("precision %s sampler2D;", precision)
	w.writeLine("")
}

// registerNames assigns unique names to everything the stage declares.
// The stage interface goes first so both stages agree on its names.
func (w *Writer) registerNames() {
	for _, v := range w.module.Interface() {
		g := v.Global
		if !v.Forwarded {
			w.globals[g] = w.namer.call(g.Name.String())
			continue
		}
		name := w.namer.call("v_" + g.Name.String())
		w.forwarded[g] = name
		if w.stage == analysis.StagePixel {
			w.globals[g] = name
		}
	}
	for _, s := range w.closure.Structs {
		w.structs[s.Name] = w.namer.call(s.Name.String())
	}
	for _, fn := range w.closure.Functions {
		w.fns[fn.Decl] = w.namer.call(fn.Mangled())
	}
	for _, g := range w.module.Globals {
		if _, named := w.globals[g]; named {
			continue
		}
		if w.closure.Uses(g) || slices.Contains(w.inputs, g) {
			w.globals[g] = w.namer.call(g.Name.String())
		}
	}
	for _, c := range w.closure.Consts {
		w.consts[c] = w.namer.call(c.Name.String())
	}
	if w.stage == analysis.StagePixel && !w.legacy() {
		w.fragColor = w.namer.call("frag_color")
	}
}

func (w *Writer) writeStructs() {
	for _, s := range w.closure.Structs {
		w.writeLine("struct %s {", w.structs[s.Name])
		w.pushIndent()
		for _, f := range s.Fields {
			w.writeLine("%s;", w.declaration(f.Ty, escapeKeyword(f.Name.String())))
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}
}

func (w *Writer) writeConstants() {
	for _, c := range w.closure.Consts {
		value, _ := w.value(c.Val)
		w.writeLine("const %s %s = %s;", w.typeName(c.Ty), w.consts[c], value)
	}
	if len(w.closure.Consts) > 0 {
		w.writeLine("")
	}
}

// writeGlobalVariables writes the uniforms and textures the stage reads.
// Uniform blocks flatten into plain uniforms.
func (w *Writer) writeGlobalVariables() {
	n := 0
	for _, g := range w.closure.Globals {
		switch g.Kind {
		case analysis.VarUniform:
			w.writeLine("uniform %s;", w.declaration(g.Ty, w.globals[g]))
		case analysis.VarTexture:
			w.writeLine("uniform sampler2D %s;", w.globals[g])
		default:
			continue
		}
		n++
	}
	if n > 0 {
		w.writeLine("")
	}
}

// writeInterface declares the vertex attributes, the varyings shared by
// both stages and the pixel output.
func (w *Writer) writeInterface() {
	for _, g := range w.inputs {
		if w.legacy() {
			w.writeLine("attribute %s;", w.declaration(g.Ty, w.globals[g]))
		} else {
			w.writeLine("layout(location = %d) in %s;", g.Slot, w.declaration(g.Ty, w.globals[g]))
		}
	}

	qualifier := "out"
	switch {
	case w.legacy():
		qualifier = "varying"
	case w.stage == analysis.StagePixel:
		qualifier = "in"
	}
	iface := w.module.Interface()
	for _, v := range iface {
		w.writeLine("%s %s;", qualifier, w.declaration(v.Global.Ty, w.interfaceName(v)))
	}

	if w.fragColor != "" {
		w.writeLine("layout(location = 0) out vec4 %s;", w.fragColor)
	}
	if len(w.inputs) > 0 || len(iface) > 0 || w.fragColor != "" {
		w.writeLine("")
	}
}

func (w *Writer) interfaceName(v analysis.InterfaceVar) string {
	if v.Forwarded {
		return w.forwarded[v.Global]
	}
	return w.globals[v.Global]
}

func (w *Writer) writeFunction(fn *analysis.Function) {
	w.beginFunction()
	params := make([]string, len(fn.Params))
	for i, p := range fn.Decl.Params {
		params[i] = w.declaration(fn.Params[i], w.local(p, p.Name))
		if p.Inout {
			params[i] = "inout " + params[i]
		}
	}
	w.writeLine("%s %s(%s) {", w.typeName(fn.Return), w.fns[fn.Decl], strings.Join(params, ", "))
	w.pushIndent()
	w.writeStmts(fn.Decl.Body.Stmts)
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
}

// writeEntryPoint writes main, which runs the entry function and stores
// its result in the stage output.
func (w *Writer) writeEntryPoint() {
	entry := w.fns[w.closure.Entry.Decl]
	w.writeLine("void main() {")
	w.pushIndent()
	switch {
	case w.stage == analysis.StageVertex:
		for _, v := range w.module.Interface() {
			if v.Forwarded {
				w.writeLine("%s = %s;", w.forwarded[v.Global], w.globals[v.Global])
			}
		}
		w.writeLine("gl_Position = %s();", entry)
	case w.legacy():
		w.writeLine("gl_FragColor = %s();", entry)
	default:
		w.writeLine("%s = %s();", w.fragColor, entry)
	}
	w.popIndent()
	w.writeLine("}")
}

func (w *Writer) translationInfo() TranslationInfo {
	info := TranslationInfo{
		EntryPointNames: map[string]string{
			w.closure.Entry.Path.String(): w.fns[w.closure.Entry.Decl],
		},
		UsedExtensions: w.extensions,
	}
	for _, g := range w.inputs {
		info.Attributes = append(info.Attributes, analysis.Binding{Name: w.globals[g], Slot: g.Slot, Ty: g.Ty})
	}
	for _, v := range w.module.Interface() {
		info.Varyings = append(info.Varyings, analysis.Binding{Name: w.interfaceName(v), Slot: v.Location, Ty: v.Global.Ty})
	}
	for _, g := range w.closure.GlobalsOf(analysis.VarTexture) {
		info.Textures = append(info.Textures, analysis.Binding{Name: w.globals[g], Slot: g.Slot, Ty: g.Ty})
	}
	for _, b := range w.closure.Blocks(w.module) {
		info.Uniforms = append(info.Uniforms, b.Layout(analysis.LayoutStd140))
	}
	return info
}

// beginFunction resets the per-function naming state.
func (w *Writer) beginFunction() {
	w.fnNamer = w.namer.clone()
	w.locals = make(map[lang.Node]string)
}

// local names a parameter, let binding or loop variable of the current
// function.
func (w *Writer) local(decl lang.Node, name lang.Ident) string {
	s := w.fnNamer.call(name.String())
	w.locals[decl] = s
	return s
}

func (w *Writer) fail(kind ErrorKind, span lang.Span, format string, args ...any) {
	if w.err == nil {
		w.err = NewErrorWithSpan(kind, fmt.Sprintf(format, args...), span)
	}
}

// Output helpers

// writeLine writes a line with indentation and newline.
//
//nolint:goprintffuncname
func (w *Writer) writeLine(format string, args ...any) {
	if format != "" {
		w.writeIndent()
	}
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for range w.indent {
		w.out.WriteString("    ")
	}
}

// pushIndent increases indentation.
func (w *Writer) pushIndent() {
	w.indent++
}

// popIndent decreases indentation.
func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}
