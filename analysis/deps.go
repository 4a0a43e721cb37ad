package analysis

import (
	"errors"
	"iter"
	"slices"
	"strings"

	"github.com/gogpu/shade/lang"
)

// FnDeps are the dependencies of one function. The direct sets come from
// its body; the All* sets include everything its callees use.
type FnDeps struct {
	Calls    []*Function // direct callees in first-call order
	Globals  []*Global   // read or written, declaration order
	Writes   []*Global   // assigned or passed as inout, declaration order
	Consts   []*Const
	Structs  []*Struct
	Builtins []string // sorted

	AllGlobals  []*Global
	AllWrites   []*Global
	AllBuiltins []string
}

// Closure is everything one entry point needs, in emission order.
type Closure struct {
	Entry *Function
	// Functions lists callees before callers; Entry is last.
	Functions []*Function
	// Structs lists field types before the structs that contain them.
	Structs []*Struct
	Globals []*Global // declaration order
	Consts  []*Const  // declaration order
	// Builtins are the built-in functions called anywhere in the closure.
	Builtins []string
}

// Uses reports whether g is part of the closure.
func (c *Closure) Uses(g *Global) bool { return slices.Contains(c.Globals, g) }

// UsesBuiltin reports whether the built-in called name is part of the closure.
func (c *Closure) UsesBuiltin(name string) bool {
	_, ok := slices.BinarySearch(c.Builtins, name)
	return ok
}

// GlobalsOf returns the closure's globals of one kind.
func (c *Closure) GlobalsOf(kind VarKind) []*Global {
	var out []*Global
	for _, g := range c.Globals {
		if g.Kind == kind {
			out = append(out, g)
		}
	}
	return out
}

// computeDeps fills FnDeps for every function, rejects call cycles and
// builds the vertex and pixel closures.
func (a *analyser) computeDeps() *lang.ParseError {
	writeSites := make(map[*Function]map[*Global]lang.Span)
	for _, fn := range a.m.Functions {
		writeSites[fn] = a.directDeps(fn)
	}
	if err := a.checkCycles(); err != nil {
		return err
	}

	// Functions in callee-first order make the transitive sets a single pass.
	for _, fn := range a.postOrder(a.m.Functions) {
		d := &fn.Deps
		d.AllGlobals = slices.Clone(d.Globals)
		d.AllWrites = slices.Clone(d.Writes)
		d.AllBuiltins = slices.Clone(d.Builtins)
		for _, callee := range d.Calls {
			d.AllGlobals = mergeGlobals(d.AllGlobals, callee.Deps.AllGlobals)
			d.AllWrites = mergeGlobals(d.AllWrites, callee.Deps.AllWrites)
			d.AllBuiltins = mergeNames(d.AllBuiltins, callee.Deps.AllBuiltins)
		}
	}

	if fn, ok := a.m.fnByPath[lang.PathOf(lang.NewIdent(EntryVertex))]; ok {
		a.m.Vertex = a.closure(fn)
	}
	if fn, ok := a.m.fnByPath[lang.PathOf(lang.NewIdent(EntryPixel))]; ok {
		a.m.Pixel = a.closure(fn)
		for _, f := range a.m.Pixel.Functions {
			for _, g := range f.Deps.Writes {
				if g.Kind == VarVarying {
					return lang.Errorf(writeSites[f][g], "varying `%s` is written in the pixel stage (by `%s`)", g.Name, f.Path)
				}
			}
		}
	}
	return nil
}

// directDeps collects what fn's own body uses. It returns the first write
// site of each global it assigns.
func (a *analyser) directDeps(fn *Function) map[*Global]lang.Span {
	d := &fn.Deps
	sites := make(map[*Global]lang.Span)
	addStruct := func(t lang.Ty) {
		if t = baseType(t); t.Kind == lang.TyStruct {
			if s := a.m.structByName[t.Struct]; !slices.Contains(d.Structs, s) {
				d.Structs = append(d.Structs, s)
			}
		}
	}
	addWrite := func(e lang.Expr) {
		v := rootVar(e)
		if v == nil {
			return
		}
		if g, ok := a.m.GlobalRef(a.info.Vars[v.ID]); ok {
			if _, seen := sites[g]; !seen {
				sites[g] = e.Pos()
				d.Writes = mergeGlobals(d.Writes, []*Global{g})
			}
		}
	}

	for _, t := range fn.Params {
		addStruct(t)
	}
	addStruct(fn.Return)
	for stmt := range Stmts(fn.Decl.Body) {
		if let, ok := stmt.(*lang.LetStmt); ok {
			addStruct(a.info.Locals[let])
		}
	}

	for stmt, root := range RootExprs(fn.Decl.Body) {
		if s, ok := stmt.(*lang.AssignStmt); ok && root == s.Left {
			addWrite(s.Left)
		}
		_ = Visit(root, PreOrder, func(e lang.Expr) error {
			addStruct(a.info.TypeOf(e))
			switch e := e.(type) {
			case *lang.VarExpr:
				ref := a.info.Vars[e.ID]
				if g, ok := a.m.GlobalRef(ref); ok {
					d.Globals = mergeGlobals(d.Globals, []*Global{g})
				}
				if c, ok := ref.Decl.(*lang.ConstDecl); ok && ref.Kind == VarConst {
					if cc := a.m.constByDecl[c]; !slices.Contains(d.Consts, cc) {
						d.Consts = append(d.Consts, cc)
					}
				}
			case *lang.CallExpr, *lang.MethodCallExpr:
				a.callDeps(e, d, addWrite)
			}
			return nil
		})
	}
	// Writes are reads too as far as emission is concerned.
	d.Globals = mergeGlobals(d.Globals, d.Writes)
	return sites
}

func (a *analyser) callDeps(e lang.Expr, d *FnDeps, addWrite func(lang.Expr)) {
	target, ok := a.info.Calls[e.NodeID()]
	if !ok {
		return
	}
	switch target.Kind {
	case CallFn:
		callee := a.m.fnByDecl[target.Fn]
		if !slices.Contains(d.Calls, callee) {
			d.Calls = append(d.Calls, callee)
		}
		args := Children(e)
		for i, p := range target.Fn.Params {
			if p.Inout {
				addWrite(args[i])
			}
		}
	case CallBuiltin:
		d.Builtins = mergeNames(d.Builtins, []string{target.Builtin.Name.String()})
	}
}

// rootVar returns the variable at the base of a place expression.
func rootVar(e lang.Expr) *lang.VarExpr {
	for {
		switch x := e.(type) {
		case *lang.VarExpr:
			return x
		case *lang.MemberExpr:
			e = x.Expr
		case *lang.IndexExpr:
			e = x.Expr
		default:
			return nil
		}
	}
}

// constRefs yields the const declarations referenced inside e.
func constRefs(e lang.Expr, info *Info) iter.Seq[*lang.ConstDecl] {
	return func(yield func(*lang.ConstDecl) bool) {
		_ = Visit(e, PreOrder, func(x lang.Expr) error {
			v, ok := x.(*lang.VarExpr)
			if !ok {
				return nil
			}
			if c, ok := info.Vars[v.ID].Decl.(*lang.ConstDecl); ok {
				if !yield(c) {
					return errStop
				}
			}
			return nil
		})
	}
}

var errStop = errors.New("stop")

func (a *analyser) checkCycles() *lang.ParseError {
	const (
		visiting = iota + 1
		done
	)
	state := make(map[*Function]int)
	var stack []*Function
	var visit func(fn *Function) *lang.ParseError
	visit = func(fn *Function) *lang.ParseError {
		switch state[fn] {
		case visiting:
			i := slices.Index(stack, fn)
			names := make([]string, 0, len(stack)-i+1)
			for _, f := range stack[i:] {
				names = append(names, f.Path.String())
			}
			names = append(names, fn.Path.String())
			return lang.Errorf(fn.Decl.Span, "recursive call cycle: %s", strings.Join(names, " -> "))
		case done:
			return nil
		}
		state[fn] = visiting
		stack = append(stack, fn)
		for _, callee := range fn.Deps.Calls {
			if err := visit(callee); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[fn] = done
		return nil
	}
	for _, fn := range a.m.Functions {
		if err := visit(fn); err != nil {
			return err
		}
	}
	return nil
}

// postOrder returns roots and everything they call, callees first. The
// call graph must be acyclic.
func (a *analyser) postOrder(roots []*Function) []*Function {
	var out []*Function
	seen := make(map[*Function]bool)
	var visit func(fn *Function)
	visit = func(fn *Function) {
		if seen[fn] {
			return
		}
		seen[fn] = true
		for _, callee := range fn.Deps.Calls {
			visit(callee)
		}
		out = append(out, fn)
	}
	for _, fn := range roots {
		visit(fn)
	}
	return out
}

func (a *analyser) closure(entry *Function) *Closure {
	c := &Closure{
		Entry:     entry,
		Functions: a.postOrder([]*Function{entry}),
		Globals:   entry.Deps.AllGlobals,
		Builtins:  entry.Deps.AllBuiltins,
	}

	var structs []*Struct
	consts := make(map[*Const]bool)
	var addConst func(k *Const)
	addConst = func(k *Const) {
		if consts[k] {
			return
		}
		consts[k] = true
		for _, dep := range k.Deps {
			addConst(dep)
		}
	}
	for _, fn := range c.Functions {
		for _, s := range fn.Deps.Structs {
			if !slices.Contains(structs, s) {
				structs = append(structs, s)
			}
		}
		for _, k := range fn.Deps.Consts {
			addConst(k)
		}
	}
	for _, k := range a.m.Consts {
		if consts[k] {
			c.Consts = append(c.Consts, k)
		}
	}
	c.Structs = a.structOrder(structs)
	return c
}

// structOrder returns roots plus every struct they contain, contained
// structs first, otherwise in declaration order.
func (a *analyser) structOrder(roots []*Struct) []*Struct {
	var out []*Struct
	seen := make(map[*Struct]bool)
	var visit func(s *Struct)
	visit = func(s *Struct) {
		if seen[s] {
			return
		}
		seen[s] = true
		for _, f := range s.Fields {
			if t := baseType(f.Ty); t.Kind == lang.TyStruct {
				visit(a.m.structByName[t.Struct])
			}
		}
		out = append(out, s)
	}
	for _, s := range a.m.Structs {
		if slices.Contains(roots, s) {
			visit(s)
		}
	}
	return out
}

// mergeGlobals adds the globals of b missing from a, keeping declaration
// order.
func mergeGlobals(a, b []*Global) []*Global {
	for _, g := range b {
		i, found := slices.BinarySearchFunc(a, g.Index, func(x *Global, idx int) int { return x.Index - idx })
		if !found {
			a = slices.Insert(a, i, g)
		}
	}
	return a
}

func mergeNames(a, b []string) []string {
	for _, name := range b {
		i, found := slices.BinarySearch(a, name)
		if !found {
			a = slices.Insert(a, i, name)
		}
	}
	return a
}
