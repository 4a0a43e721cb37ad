// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/shade/analysis"
	"github.com/gogpu/shade/lang"
)

// Writer generates HLSL source code for one stage of a module.
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
	namer    *namer
	structs  map[lang.Ident]string
	fns      map[*lang.FnDecl]string
	globals  map[*analysis.Global]string
	consts   map[*analysis.Const]string
	samplers map[*analysis.Global]string
	cbuffers map[*analysis.UniformBlock]string

	// forwarded names the varyings that carry attributes to the pixel stage.
	forwarded map[*analysis.Global]string
	// inputs are the attributes the vertex stage fetches.
	inputs []*analysis.Global
	// inputFields and varyingFields name the members of the stage structs.
	inputFields   map[*analysis.Global]string
	varyingFields map[*analysis.Global]string

	// Helpers the stage needs.
	needMod    bool
	diag       [5]bool
	makeStruct map[lang.Ident]string

	registerBindings map[string]string
	helperFunctions  []string

	// Function context (set during function writing)
	fnNamer *namer
	locals  map[lang.Node]string

	err error
}

// newWriter creates a new HLSL writer.
func newWriter(module *analysis.Module, closure *analysis.Closure, options *Options) *Writer {
	w := &Writer{
		module:           module,
		info:             module.Info,
		closure:          closure,
		options:          options,
		stage:            options.Stage,
		namer:            newNamer(),
		structs:          make(map[lang.Ident]string),
		fns:              make(map[*lang.FnDecl]string),
		globals:          make(map[*analysis.Global]string),
		consts:           make(map[*analysis.Const]string),
		samplers:         make(map[*analysis.Global]string),
		cbuffers:         make(map[*analysis.UniformBlock]string),
		forwarded:        make(map[*analysis.Global]string),
		inputFields:      make(map[*analysis.Global]string),
		varyingFields:    make(map[*analysis.Global]string),
		makeStruct:       make(map[lang.Ident]string),
		registerBindings: make(map[string]string),
	}
	if w.stage == analysis.StageVertex {
		w.inputs = module.Attributes()
	}
	return w
}

// String returns the generated HLSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

// writeModule generates HLSL code for the stage.
func (w *Writer) writeModule() error {
	if err := w.checkFeatures(); err != nil {
		return err
	}
	w.scanHelpers()
	w.registerNames()

	w.writeStructs()
	w.writeConstants()
	if err := w.writeResources(); err != nil {
		return err
	}
	w.writeStatics()
	w.writeStageStructs()
	w.writeHelpers()
	for _, fn := range w.closure.Functions {
		w.writeFunction(fn)
	}
	w.writeEntryPoint()
	return w.err
}

func (w *Writer) checkFeatures() error {
	if w.stage != analysis.StageVertex {
		return nil
	}
	for _, name := range []string{"dFdx", "dFdy"} {
		if w.closure.UsesBuiltin(name) {
			return NewError(ErrUnsupportedFeature, name+" is not available in the vertex stage")
		}
	}
	return nil
}

// scanHelpers finds the constructs that need a generated helper function.
func (w *Writer) scanHelpers() {
	w.needMod = w.closure.UsesBuiltin("mod")
	for e := range w.closure.Exprs() {
		switch e := e.(type) {
		case *lang.ConsCallExpr:
			t := e.Ty.ToTy()
			if t.IsMatrix() && len(e.Args) == 1 {
				w.diag[t.Size()] = true
			}
		case *lang.CallExpr:
			if target := w.info.Calls[e.ID]; target.Kind == analysis.CallStruct {
				w.makeStruct[target.Struct.Name] = ""
			}
		}
	}
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
		if _, ok := w.makeStruct[s.Name]; ok {
			w.makeStruct[s.Name] = w.namer.call(MakeStructPrefix + s.Name.String())
		}
	}
	for _, fn := range w.closure.Functions {
		w.fns[fn.Decl] = w.namer.call(fn.Mangled())
	}
	for _, b := range w.closure.Blocks(w.module) {
		w.cbuffers[b] = w.namer.call(blockName(b))
		// Every member is declared so the buffer keeps its layout.
		for _, g := range b.Uniforms {
			w.globals[g] = w.namer.call(g.Name.String())
		}
	}
	for _, g := range w.module.Globals {
		if _, named := w.globals[g]; named {
			continue
		}
		if w.closure.Uses(g) || slices.Contains(w.inputs, g) {
			w.globals[g] = w.namer.call(g.Name.String())
		}
		if g.Kind == analysis.VarTexture && w.closure.Uses(g) {
			w.samplers[g] = w.namer.call(g.Name.String() + SamplerSuffix)
		}
	}
	for _, c := range w.closure.Consts {
		w.consts[c] = w.namer.call(c.Name.String())
	}

	fields := newNamer()
	for _, g := range w.inputs {
		w.inputFields[g] = fields.call(w.globals[g])
	}
	fields = newNamer()
	fields.reserve(PositionField)
	for _, v := range w.module.Interface() {
		w.varyingFields[v.Global] = fields.call(w.interfaceName(v))
	}
}

// blockName is the source name of a uniform block; the default block is
// called "uniforms".
func blockName(b *analysis.UniformBlock) string {
	if b.Name.IsZero() {
		return "uniforms"
	}
	return b.Name.String()
}

func (w *Writer) interfaceName(v analysis.InterfaceVar) string {
	if v.Forwarded {
		return w.forwarded[v.Global]
	}
	return w.globals[v.Global]
}

func (w *Writer) writeStructs() {
	for _, s := range w.closure.Structs {
		w.writeLine("struct %s {", w.structs[s.Name])
		w.pushIndent()
		for _, f := range s.Fields {
			w.writeLine("%s;", w.memberDeclaration(f.Ty, Escape(f.Name.String())))
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}
}

func (w *Writer) writeConstants() {
	for _, c := range w.closure.Consts {
		value, _ := w.value(c.Val)
		w.writeLine("static const %s %s = %s;", w.typeName(c.Ty), w.consts[c], value)
	}
	if len(w.closure.Consts) > 0 {
		w.writeLine("")
	}
}

// bindTarget resolves the register of a resource.
func (w *Writer) bindTarget(name string, fallback int) (BindTarget, error) {
	if bt, ok := w.options.BindingMap[name]; ok {
		return bt, nil
	}
	if !w.options.FakeMissingBindings {
		return BindTarget{}, NewError(ErrMissingBinding, fmt.Sprintf("resource `%s` has no binding", name))
	}
	return BindTarget{Register: uint32(fallback)}, nil
}

// writeResources declares a cbuffer per uniform block and a texture and
// sampler pair per texture.
func (w *Writer) writeResources() error {
	n := 0
	for _, b := range w.closure.Blocks(w.module) {
		bt, err := w.bindTarget(blockName(b), b.Index)
		if err != nil {
			return err
		}
		name := w.cbuffers[b]
		reg := bt.Annotation(RegisterTypeB)
		w.registerBindings[name] = reg
		w.writeLine("cbuffer %s : %s {", name, reg)
		w.pushIndent()
		for _, g := range b.Uniforms {
			w.writeLine("%s;", w.memberDeclaration(g.Ty, w.globals[g]))
		}
		w.popIndent()
		w.writeLine("};")
		n++
	}
	for _, g := range w.closure.GlobalsOf(analysis.VarTexture) {
		bt, err := w.bindTarget(g.Name.String(), g.Slot)
		if err != nil {
			return err
		}
		tex, smp := bt.Annotation(RegisterTypeT), bt.Annotation(RegisterTypeS)
		w.registerBindings[w.globals[g]] = tex
		w.registerBindings[w.samplers[g]] = smp
		w.writeLine("Texture2D<float4> %s : %s;", w.globals[g], tex)
		w.writeLine("SamplerState %s : %s;", w.samplers[g], smp)
		n++
	}
	if n > 0 {
		w.writeLine("")
	}
	return nil
}

// writeStatics declares the attributes and varyings as static globals; the
// entry point copies them from and to the stage structs.
func (w *Writer) writeStatics() {
	n := 0
	for _, g := range w.inputs {
		w.writeLine("static %s;", w.declaration(g.Ty, w.globals[g]))
		n++
	}
	for _, v := range w.module.Interface() {
		if v.Forwarded && w.stage == analysis.StageVertex {
			continue
		}
		w.writeLine("static %s;", w.declaration(v.Global.Ty, w.globals[v.Global]))
		n++
	}
	if n > 0 {
		w.writeLine("")
	}
}

func (w *Writer) writeStageStructs() {
	if len(w.inputs) > 0 {
		w.writeLine("struct %s {", VertexInputStruct)
		w.pushIndent()
		for _, g := range w.inputs {
			semantic := "GEOM"
			if g.Kind == analysis.VarInstance {
				semantic = "INST"
			}
			w.writeLine("%s : %s%d;", w.memberDeclaration(g.Ty, w.inputFields[g]), semantic, g.Slot)
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}

	w.writeLine("struct %s {", VaryingsStruct)
	w.pushIndent()
	w.writeLine("float4 %s : SV_POSITION;", PositionField)
	for _, v := range w.module.Interface() {
		w.writeLine("%s : TEXCOORD%d;", w.declaration(v.Global.Ty, w.varyingFields[v.Global]), v.Location)
	}
	w.popIndent()
	w.writeLine("};")
	w.writeLine("")
}

// writeEntryPoint writes main, which loads the stage inputs into the
// statics, runs the entry function and packs the outputs.
func (w *Writer) writeEntryPoint() {
	entry := w.fns[w.closure.Entry.Decl]
	if w.stage == analysis.StagePixel {
		w.writeLine("float4 %s(%s %s) : SV_TARGET0 {", EntryPointName, VaryingsStruct, InputParam)
		w.pushIndent()
		for _, v := range w.module.Interface() {
			w.writeLine("%s = %s.%s;", w.globals[v.Global], InputParam, w.varyingFields[v.Global])
		}
		w.writeLine("return %s();", entry)
		w.popIndent()
		w.writeLine("}")
		return
	}

	params := ""
	if len(w.inputs) > 0 {
		params = VertexInputStruct + " " + InputParam
	}
	w.writeLine("%s %s(%s) {", VaryingsStruct, EntryPointName, params)
	w.pushIndent()
	for _, g := range w.inputs {
		w.writeLine("%s = %s.%s;", w.globals[g], InputParam, w.inputFields[g])
	}
	w.writeLine("%s %s;", VaryingsStruct, OutputVar)
	w.writeLine("%s.%s = %s();", OutputVar, PositionField, entry)
	for _, v := range w.module.Interface() {
		w.writeLine("%s.%s = %s;", OutputVar, w.varyingFields[v.Global], w.globals[v.Global])
	}
	w.writeLine("return %s;", OutputVar)
	w.popIndent()
	w.writeLine("}")
}

func (w *Writer) translationInfo() TranslationInfo {
	info := TranslationInfo{
		EntryPointNames: map[string]string{
			w.closure.Entry.Path.String(): w.fns[w.closure.Entry.Decl],
		},
		Profile:          w.options.ShaderModel.Profile(w.stage),
		RegisterBindings: w.registerBindings,
		HelperFunctions:  w.helperFunctions,
	}
	for _, g := range w.inputs {
		info.Attributes = append(info.Attributes, analysis.Binding{Name: w.inputFields[g], Slot: g.Slot, Ty: g.Ty})
	}
	for _, v := range w.module.Interface() {
		info.Varyings = append(info.Varyings, analysis.Binding{Name: w.varyingFields[v.Global], Slot: v.Location, Ty: v.Global.Ty})
	}
	for _, g := range w.closure.GlobalsOf(analysis.VarTexture) {
		bt, _ := w.bindTarget(g.Name.String(), g.Slot)
		info.Textures = append(info.Textures, analysis.Binding{Name: w.globals[g], Slot: int(bt.Register), Ty: g.Ty})
	}
	for _, b := range w.closure.Blocks(w.module) {
		info.Uniforms = append(info.Uniforms, b.Layout(analysis.LayoutHLSL))
	}
	return info
}

// beginFunction resets the per-function naming state.
func (w *Writer) beginFunction() {
	w.fnNamer = w.namer.clone()
	w.locals = make(map[lang.Node]string)
}

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
