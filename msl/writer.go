package msl

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/shade/analysis"
	"github.com/gogpu/shade/lang"
)

// Writer generates MSL source code for one stage of a module.
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
	namer        *namer
	structs      map[lang.Ident]string
	fns          map[*lang.FnDecl]string
	globals      map[*analysis.Global]string
	consts       map[*analysis.Const]string
	blocks       map[*analysis.UniformBlock]string
	blockStructs map[*analysis.UniformBlock]string
	blockOf      map[*analysis.Global]*analysis.UniformBlock

	// forwarded names the varyings that carry attributes to the pixel stage.
	forwarded map[*analysis.Global]string
	// inputs are the attributes the vertex stage fetches.
	inputs []*analysis.Global
	// inputFields and varyingFields name the members of the stage structs,
	// one per matrix column.
	inputFields   map[*analysis.Global][]string
	varyingFields map[*analysis.Global][]string

	// ctx holds the per-invocation state threaded through the functions
	// that touch globals.
	ctx []contextMember

	needMod bool

	// Function context (set during function writing)
	fnNamer *namer
	locals  map[lang.Node]string

	err error
}

type contextMember struct {
	decl string
	init string
}

// newWriter creates a new MSL writer.
func newWriter(module *analysis.Module, closure *analysis.Closure, options *Options) *Writer {
	w := &Writer{
		module:        module,
		info:          module.Info,
		closure:       closure,
		options:       options,
		stage:         options.Stage,
		namer:         newNamer(),
		structs:       make(map[lang.Ident]string),
		fns:           make(map[*lang.FnDecl]string),
		globals:       make(map[*analysis.Global]string),
		consts:        make(map[*analysis.Const]string),
		blocks:        make(map[*analysis.UniformBlock]string),
		blockStructs:  make(map[*analysis.UniformBlock]string),
		blockOf:       make(map[*analysis.Global]*analysis.UniformBlock),
		forwarded:     make(map[*analysis.Global]string),
		inputFields:   make(map[*analysis.Global][]string),
		varyingFields: make(map[*analysis.Global][]string),
	}
	if w.stage == analysis.StageVertex {
		w.inputs = module.Attributes()
	}
	return w
}

// String returns the generated MSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

// writeModule generates MSL code for the stage.
func (w *Writer) writeModule() error {
	if w.stage == analysis.StageVertex {
		for _, name := range []string{"dFdx", "dFdy"} {
			if w.closure.UsesBuiltin(name) {
				return NewError(ErrUnsupportedFeature, name+" is not available in the vertex stage")
			}
		}
	}
	w.needMod = w.closure.UsesBuiltin("mod")

	w.writeHeader()
	w.registerNames()
	w.writeStructs()
	w.writeConstants()
	w.writeBlockStructs()
	w.planContext()
	if len(w.ctx) > 0 {
		w.writeLine("struct %s {", ContextStruct)
		w.pushIndent()
		for _, m := range w.ctx {
			w.writeLine("%s;", m.decl)
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}
	w.writeStageStructs()
	w.writeHelpers()
	for _, fn := range w.closure.Functions {
		w.writeFunction(fn)
	}
	if err := w.writeEntryPoint(); err != nil {
		return err
	}
	return w.err
}

// writeHeader writes the MSL file header.
func (w *Writer) writeHeader() {
	w.writeLine("#include <metal_stdlib>")
	w.writeLine("#include <simd/simd.h>")
	w.writeLine("")
	w.writeLine("using metal::uint;")
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
	for _, b := range w.closure.Blocks(w.module) {
		w.blockStructs[b] = w.namer.call(blockName(b) + BlockSuffix)
		w.blocks[b] = w.namer.call(blockName(b))
		for _, g := range b.Uniforms {
			w.globals[g] = w.namer.call(g.Name.String())
			w.blockOf[g] = b
		}
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

	fields := newNamer()
	for _, g := range w.inputs {
		w.inputFields[g] = columnFields(fields, g.Ty, w.globals[g])
	}
	fields = newNamer()
	fields.call(PositionField)
	for _, v := range w.module.Interface() {
		name := w.globals[v.Global]
		if v.Forwarded {
			name = w.forwarded[v.Global]
		}
		w.varyingFields[v.Global] = columnFields(fields, v.Global.Ty, name)
	}
}

// columnFields names the stage struct members of one value. Metal has no
// matrix attributes, so a matrix is passed one column per member.
func columnFields(n *namer, t lang.Ty, name string) []string {
	if !t.IsMatrix() {
		return []string{n.call(name)}
	}
	out := make([]string, t.Size())
	for i := range out {
		out[i] = n.call(fmt.Sprintf("%s_%d", name, i))
	}
	return out
}

// blockName is the source name of a uniform block; the default block is
// called "uniforms".
func blockName(b *analysis.UniformBlock) string {
	if b.IsDefault() {
		return "uniforms"
	}
	return b.Name.String()
}

func (w *Writer) writeStructs() {
	for _, s := range w.closure.Structs {
		w.writeLine("struct %s {", w.structs[s.Name])
		w.pushIndent()
		for _, f := range s.Fields {
			w.writeLine("%s;", w.declaration(f.Ty, Escape(f.Name.String())))
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}
}

func (w *Writer) writeConstants() {
	for _, c := range w.closure.Consts {
		value, _ := w.value(c.Val)
		w.writeLine("constant %s %s = %s;", w.typeName(c.Ty), w.consts[c], value)
	}
	if len(w.closure.Consts) > 0 {
		w.writeLine("")
	}
}

// writeBlockStructs declares one struct per uniform block; the entry point
// receives each as a constant buffer reference.
func (w *Writer) writeBlockStructs() {
	for _, b := range w.closure.Blocks(w.module) {
		w.writeLine("struct %s {", w.blockStructs[b])
		w.pushIndent()
		for _, g := range b.Uniforms {
			w.writeLine("%s;", w.declaration(g.Ty, w.globals[g]))
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}
}

// planContext lays out the context struct: the uniform buffers, then the
// attributes, then the stage interface.
func (w *Writer) planContext() {
	for _, b := range w.closure.Blocks(w.module) {
		w.ctx = append(w.ctx, contextMember{
			decl: fmt.Sprintf("constant %s* %s", w.blockStructs[b], w.blocks[b]),
			init: "&" + w.blocks[b],
		})
	}
	for _, g := range w.inputs {
		w.ctx = append(w.ctx, contextMember{
			decl: w.declaration(g.Ty, w.globals[g]),
			init: w.gather(g.Ty, w.inputFields[g]),
		})
	}
	for _, v := range w.module.Interface() {
		g := v.Global
		if w.stage == analysis.StageVertex {
			if v.Forwarded {
				continue
			}
			w.ctx = append(w.ctx, contextMember{decl: w.declaration(g.Ty, w.globals[g]), init: "{}"})
			continue
		}
		w.ctx = append(w.ctx, contextMember{
			decl: w.declaration(g.Ty, w.globals[g]),
			init: w.gather(g.Ty, w.varyingFields[g]),
		})
	}
}

// gather reads a value back from its stage struct members.
func (w *Writer) gather(t lang.Ty, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = InputParam + "." + f
	}
	if !t.IsMatrix() {
		return parts[0]
	}
	return w.typeName(t) + "(" + strings.Join(parts, ", ") + ")"
}

func (w *Writer) writeStageStructs() {
	if len(w.inputs) > 0 {
		w.writeLine("struct %s {", VertexInputStruct)
		w.pushIndent()
		for _, g := range w.inputs {
			for i, f := range w.inputFields[g] {
				w.writeLine("%s [[attribute(%d)]];", w.declaration(columnType(g.Ty), f), g.Slot+i)
			}
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}

	w.writeLine("struct %s {", VaryingsStruct)
	w.pushIndent()
	w.writeLine("%sfloat4 %s [[position]];", Namespace, PositionField)
	for _, v := range w.module.Interface() {
		for i, f := range w.varyingFields[v.Global] {
			w.writeLine("%s [[user(locn%d)]];", w.declaration(columnType(v.Global.Ty), f), v.Location+i)
		}
	}
	w.popIndent()
	w.writeLine("};")
	w.writeLine("")
}

// columnType is the type of one stage struct member of a value of type t.
func columnType(t lang.Ty) lang.Ty {
	if t.IsMatrix() {
		return t.Column()
	}
	return t
}

// resourceSlot resolves the buffer or texture slot of a resource.
func (w *Writer) resourceSlot(name string, fallback int) (int, error) {
	if slot, ok := w.options.BindingMap[name]; ok {
		return int(slot), nil
	}
	if !w.options.FakeMissingBindings {
		return 0, NewError(ErrMissingBinding, fmt.Sprintf("resource `%s` has no binding", name))
	}
	return fallback, nil
}

// writeEntryPoint writes the [[vertex]] or [[fragment]] function. It
// builds the context from the stage inputs and resources, runs the entry
// function and, for the vertex stage, packs the varyings.
func (w *Writer) writeEntryPoint() error {
	var params []string
	if w.stage == analysis.StagePixel {
		params = append(params, fmt.Sprintf("%s %s [[stage_in]]", VaryingsStruct, InputParam))
	} else if len(w.inputs) > 0 {
		params = append(params, fmt.Sprintf("%s %s [[stage_in]]", VertexInputStruct, InputParam))
	}
	for _, b := range w.closure.Blocks(w.module) {
		slot, err := w.resourceSlot(blockName(b), b.Index)
		if err != nil {
			return err
		}
		params = append(params, fmt.Sprintf("constant %s& %s [[buffer(%d)]]", w.blockStructs[b], w.blocks[b], slot))
	}
	for _, g := range w.closure.GlobalsOf(analysis.VarTexture) {
		slot, err := w.resourceSlot(g.Name.String(), g.Slot)
		if err != nil {
			return err
		}
		params = append(params, fmt.Sprintf("%s [[texture(%d)]]", w.declaration(g.Ty, w.globals[g]), slot))
	}

	entry := w.closure.Entry
	call := w.fns[entry.Decl] + "(" + joinParams(w.contextArgs(entry, nil)) + ")"

	if w.stage == analysis.StagePixel {
		w.writeLine("fragment %sfloat4 %s(%s) {", Namespace, stageFunctions[w.stage], joinParams(params))
		w.pushIndent()
		w.writeContext()
		w.writeLine("return %s;", call)
		w.popIndent()
		w.writeLine("}")
		return nil
	}

	w.writeLine("vertex %s %s(%s) {", VaryingsStruct, stageFunctions[w.stage], joinParams(params))
	w.pushIndent()
	w.writeContext()
	w.writeLine("%s %s;", VaryingsStruct, OutputVar)
	w.writeLine("%s.%s = %s;", OutputVar, PositionField, call)
	for _, v := range w.module.Interface() {
		value := ContextParam + "." + w.globals[v.Global]
		fields := w.varyingFields[v.Global]
		if len(fields) == 1 {
			w.writeLine("%s.%s = %s;", OutputVar, fields[0], value)
			continue
		}
		for i, f := range fields {
			w.writeLine("%s.%s = %s[%d];", OutputVar, f, value, i)
		}
	}
	w.writeLine("return %s;", OutputVar)
	w.popIndent()
	w.writeLine("}")
	return nil
}

func (w *Writer) writeContext() {
	if len(w.ctx) == 0 {
		return
	}
	inits := make([]string, len(w.ctx))
	for i, m := range w.ctx {
		inits[i] = m.init
	}
	w.writeLine("%s %s = {%s};", ContextStruct, ContextParam, strings.Join(inits, ", "))
}

// needsContext reports whether fn, or anything it calls, touches a global
// other than a texture.
func (w *Writer) needsContext(fn *analysis.Function) bool {
	return len(w.ctx) > 0 && slices.ContainsFunc(fn.Deps.AllGlobals, func(g *analysis.Global) bool {
		return g.Kind != analysis.VarTexture
	})
}

// textures returns the textures fn or its callees sample. They are passed
// as arguments after the context.
func textures(fn *analysis.Function) []*analysis.Global {
	var out []*analysis.Global
	for _, g := range fn.Deps.AllGlobals {
		if g.Kind == analysis.VarTexture {
			out = append(out, g)
		}
	}
	return out
}

// contextArgs returns the leading arguments of a call to fn followed by
// args.
func (w *Writer) contextArgs(fn *analysis.Function, args []string) []string {
	var out []string
	if w.needsContext(fn) {
		out = append(out, ContextParam)
	}
	for _, g := range textures(fn) {
		out = append(out, w.globals[g])
	}
	return append(out, args...)
}

func (w *Writer) translationInfo() TranslationInfo {
	info := TranslationInfo{
		EntryPointNames: map[string]string{
			w.closure.Entry.Path.String(): stageFunctions[w.stage],
		},
	}
	for _, g := range w.inputs {
		info.Attributes = append(info.Attributes, analysis.Binding{Name: w.inputFields[g][0], Slot: g.Slot, Ty: g.Ty})
	}
	for _, v := range w.module.Interface() {
		info.Varyings = append(info.Varyings, analysis.Binding{Name: w.varyingFields[v.Global][0], Slot: v.Location, Ty: v.Global.Ty})
	}
	for _, b := range w.closure.Blocks(w.module) {
		slot, _ := w.resourceSlot(blockName(b), b.Index)
		info.Buffers = append(info.Buffers, analysis.Binding{Name: w.blocks[b], Slot: slot})
		info.Uniforms = append(info.Uniforms, b.Layout(analysis.LayoutMetal))
	}
	for _, g := range w.closure.GlobalsOf(analysis.VarTexture) {
		slot, _ := w.resourceSlot(g.Name.String(), g.Slot)
		info.Textures = append(info.Textures, analysis.Binding{Name: w.globals[g], Slot: slot, Ty: g.Ty})
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

// writeLine writes a line with optional format args and a newline.
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

func joinParams(params []string) string {
	return strings.Join(params, ", ")
}
