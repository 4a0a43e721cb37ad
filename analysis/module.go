// Package analysis type-checks a parsed shader and computes everything the
// backends need to emit it: resolved types, variable and call targets,
// per-entry-point dependency closures and folded constants.
//
// Results are kept in side tables keyed by lang.NodeID rather than on the
// AST, which stays immutable after parsing.
package analysis

import (
	"fmt"

	"github.com/gogpu/shade/builtin"
	"github.com/gogpu/shade/lang"
)

// VarKind tells what a variable reference resolves to.
type VarKind uint8

const (
	VarLocal VarKind = iota
	VarParam
	VarInoutParam
	VarLoop
	VarInstance
	VarGeometry
	VarUniform
	VarVarying
	VarTexture
	VarConst
)

var varKindNames = [...]string{
	VarLocal:      "local",
	VarParam:      "parameter",
	VarInoutParam: "inout parameter",
	VarLoop:       "loop variable",
	VarInstance:   "instance",
	VarGeometry:   "geometry",
	VarUniform:    "uniform",
	VarVarying:    "varying",
	VarTexture:    "texture",
	VarConst:      "const",
}

func (k VarKind) String() string { return varKindNames[k] }

// IsGlobal reports whether k is a storage-class global (not a const).
func (k VarKind) IsGlobal() bool { return k >= VarInstance && k <= VarTexture }

// IsAttribute reports whether k is fed per vertex or per instance.
func (k VarKind) IsAttribute() bool { return k == VarInstance || k == VarGeometry }

func kindOfStorage(s lang.Storage) VarKind {
	switch s {
	case lang.StorageInstance:
		return VarInstance
	case lang.StorageGeometry:
		return VarGeometry
	case lang.StorageUniform:
		return VarUniform
	case lang.StorageVarying:
		return VarVarying
	default:
		return VarTexture
	}
}

// VarRef is the target of a variable reference.
type VarRef struct {
	Kind VarKind
	Name lang.Ident
	// Decl is the declaring node: *lang.VarDecl, *lang.ConstDecl,
	// *lang.LetStmt, *lang.Param or *lang.ForStmt.
	Decl lang.Node
}

// CallKind tells what a call expression invokes.
type CallKind uint8

const (
	CallFn CallKind = iota
	CallBuiltin
	CallStruct
)

// CallTarget is the resolved callee of a CallExpr or MethodCallExpr.
type CallTarget struct {
	Kind    CallKind
	Fn      *lang.FnDecl      // CallFn
	Builtin *builtin.Builtin  // CallBuiltin
	Sig     builtin.Signature // CallBuiltin
	Struct  *lang.StructDecl  // CallStruct
}

func (c CallTarget) same(o CallTarget) bool {
	return c.Kind == o.Kind && c.Fn == o.Fn && c.Builtin == o.Builtin && c.Struct == o.Struct
}

// Info holds the per-node analysis results. The tables only grow: the
// first write for a node wins and a different second write is a bug.
type Info struct {
	Types  map[lang.NodeID]lang.Ty
	Vars   map[lang.NodeID]VarRef
	Calls  map[lang.NodeID]CallTarget
	Consts map[lang.NodeID]lang.Val
	// Locals holds the resolved type of every let binding.
	Locals map[*lang.LetStmt]lang.Ty
}

// NewInfo returns empty side tables.
func NewInfo() *Info {
	return &Info{
		Types:  make(map[lang.NodeID]lang.Ty),
		Vars:   make(map[lang.NodeID]VarRef),
		Calls:  make(map[lang.NodeID]CallTarget),
		Consts: make(map[lang.NodeID]lang.Val),
		Locals: make(map[*lang.LetStmt]lang.Ty),
	}
}

// TypeOf returns the resolved type of e.
func (info *Info) TypeOf(e lang.Expr) lang.Ty {
	ty, ok := info.Types[e.NodeID()]
	if !ok {
		panic(fmt.Sprintf("analysis: expression %d at %s has no type", e.NodeID(), e.Pos()))
	}
	return ty
}

// ConstOf returns the folded value of e, if it is constant.
func (info *Info) ConstOf(e lang.Expr) (lang.Val, bool) {
	v, ok := info.Consts[e.NodeID()]
	return v, ok
}

func (info *Info) setType(id lang.NodeID, ty lang.Ty) {
	if old, ok := info.Types[id]; ok {
		if !old.Equal(ty) {
			panic(fmt.Sprintf("analysis: node %d retyped from %s to %s", id, old, ty))
		}
		return
	}
	info.Types[id] = ty
}

func (info *Info) setVar(id lang.NodeID, ref VarRef) {
	if old, ok := info.Vars[id]; ok {
		if old.Kind != ref.Kind || old.Decl != ref.Decl {
			panic(fmt.Sprintf("analysis: node %d rebound from %s %s to %s %s", id, old.Kind, old.Name, ref.Kind, ref.Name))
		}
		return
	}
	info.Vars[id] = ref
}

func (info *Info) setCall(id lang.NodeID, target CallTarget) {
	if old, ok := info.Calls[id]; ok {
		if !old.same(target) {
			panic(fmt.Sprintf("analysis: node %d call target changed", id))
		}
		return
	}
	info.Calls[id] = target
}

func (info *Info) setLocal(s *lang.LetStmt, ty lang.Ty) {
	if old, ok := info.Locals[s]; ok {
		if !old.Equal(ty) {
			panic(fmt.Sprintf("analysis: local %s retyped from %s to %s", s.Name, old, ty))
		}
		return
	}
	info.Locals[s] = ty
}

func (info *Info) setConst(id lang.NodeID, v lang.Val) {
	if old, ok := info.Consts[id]; ok {
		if old != v {
			panic(fmt.Sprintf("analysis: node %d folded to %s, then %s", id, old, v))
		}
		return
	}
	info.Consts[id] = v
}

// Struct is a struct declaration with resolved field types.
type Struct struct {
	Decl   *lang.StructDecl
	Name   lang.Ident
	Fields []StructField
}

// StructField is one resolved struct field.
type StructField struct {
	Name lang.Ident
	Ty   lang.Ty
}

// Field returns the index of the field called name, or -1.
func (s *Struct) Field(name lang.Ident) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Function is a function declaration with its resolved signature and
// dependencies.
type Function struct {
	Decl   *lang.FnDecl
	Path   lang.IdentPath
	Params []lang.Ty
	Return lang.Ty
	Deps   FnDeps
}

// Global is an instance, geometry, uniform, varying or texture variable.
type Global struct {
	Decl *lang.VarDecl
	Name lang.Ident
	Kind VarKind
	Ty   lang.Ty
	// Block is the uniform block name, zero for the default block.
	Block lang.Ident
	// Default is the uniform's folded default value, if one was given.
	Default *lang.Val
	// Index is the position among all globals in declaration order.
	Index int
	// Slot numbers the globals of one kind in declaration order: the
	// attribute location, varying location or texture unit. A matrix takes
	// one location per column. Uniforms are numbered within their block.
	Slot int
}

// Const is a const declaration with its folded value.
type Const struct {
	Decl *lang.ConstDecl
	Name lang.Ident
	Ty   lang.Ty
	Val  lang.Val
	// Deps lists the consts its initializer refers to.
	Deps []*Const
}

// Module is an analysed shader.
type Module struct {
	Ast      *lang.ShaderAst
	Info     *Info
	Builtins builtin.Table

	Structs   []*Struct
	Functions []*Function
	Globals   []*Global
	Consts    []*Const
	// Blocks are the uniform blocks in order of first declaration.
	Blocks []*UniformBlock

	// Vertex and Pixel are the entry point closures, nil when the entry
	// point is not declared.
	Vertex *Closure
	Pixel  *Closure

	structByName map[lang.Ident]*Struct
	fnByPath     map[lang.IdentPath]*Function
	fnByDecl     map[*lang.FnDecl]*Function
	globalByDecl map[*lang.VarDecl]*Global
	constByDecl  map[*lang.ConstDecl]*Const
}

// Struct returns the struct called name.
func (m *Module) Struct(name lang.Ident) (*Struct, bool) {
	s, ok := m.structByName[name]
	return s, ok
}

// Function returns the function declared at path.
func (m *Module) Function(path lang.IdentPath) (*Function, bool) {
	f, ok := m.fnByPath[path]
	return f, ok
}

// FunctionOf returns the analysed form of decl.
func (m *Module) FunctionOf(decl *lang.FnDecl) *Function { return m.fnByDecl[decl] }

// GlobalOf returns the analysed form of decl.
func (m *Module) GlobalOf(decl *lang.VarDecl) *Global { return m.globalByDecl[decl] }

// ConstOf returns the analysed form of decl.
func (m *Module) ConstOf(decl *lang.ConstDecl) *Const { return m.constByDecl[decl] }

// GlobalRef returns the global a variable reference points at, if any.
func (m *Module) GlobalRef(ref VarRef) (*Global, bool) {
	decl, ok := ref.Decl.(*lang.VarDecl)
	if !ok {
		return nil, false
	}
	return m.globalByDecl[decl], true
}

// Entry returns the closure for the entry point called name.
func (m *Module) Entry(name string) *Closure {
	switch name {
	case EntryVertex:
		return m.Vertex
	case EntryPixel:
		return m.Pixel
	}
	return nil
}

// Entry point names.
const (
	EntryVertex = "vertex"
	EntryPixel  = "pixel"
)

// Analyse checks shader against the built-in table and returns the
// analysed module. User errors are returned as *lang.ParseError.
func Analyse(shader *lang.ShaderAst, builtins builtin.Table) (*Module, error) {
	return AnalyseInto(shader, builtins, NewInfo())
}

// AnalyseInto is Analyse writing into existing side tables. Analysing the
// same AST into the same Info again leaves the tables unchanged.
func AnalyseInto(shader *lang.ShaderAst, builtins builtin.Table, info *Info) (*Module, error) {
	m := &Module{
		Ast:          shader,
		Info:         info,
		Builtins:     builtins,
		structByName: make(map[lang.Ident]*Struct),
		fnByPath:     make(map[lang.IdentPath]*Function),
		fnByDecl:     make(map[*lang.FnDecl]*Function),
		globalByDecl: make(map[*lang.VarDecl]*Global),
		constByDecl:  make(map[*lang.ConstDecl]*Const),
	}
	a := &analyser{m: m, info: info}

	passes := []func() *lang.ParseError{
		a.collectDecls,
		a.checkBodies,
		a.checkAssignments,
		a.computeDeps,
		a.foldConsts,
	}
	for _, pass := range passes {
		if err := pass(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// analyser carries the state shared by all passes.
type analyser struct {
	m    *Module
	info *Info

	// topLevel holds every top-level name, methods by mangled name.
	topLevel map[string]lang.Span
	// values maps global and const names to their declarations.
	values map[lang.Ident]lang.Decl
	// fnDecls maps mangled function names to their declarations.
	fnDecls map[string]*lang.FnDecl
}
