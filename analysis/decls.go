package analysis

import (
	"slices"

	"github.com/gogpu/shade/lang"
)

// collectDecls checks top-level names and resolves every declared type:
// consts (folded in declaration order), struct fields, globals and
// function signatures.
func (a *analyser) collectDecls() *lang.ParseError {
	ast := a.m.Ast
	a.topLevel = make(map[string]lang.Span)
	a.values = make(map[lang.Ident]lang.Decl)
	a.fnDecls = make(map[string]*lang.FnDecl)

	for _, decl := range ast.Decls {
		var name string
		var span lang.Span
		switch d := decl.(type) {
		case *lang.StructDecl:
			name, span = d.Name.String(), d.Span
		case *lang.FnDecl:
			name, span = mangle(d.Path), d.Span
			a.fnDecls[name] = d
		case *lang.VarDecl:
			name, span = d.Name.String(), d.Span
			a.values[d.Name] = d
		case *lang.ConstDecl:
			name, span = d.Name.String(), d.Span
			a.values[d.Name] = d
		}
		if err := a.declareTopLevel(name, span); err != nil {
			return err
		}
	}

	for _, d := range ast.Structs {
		s := &Struct{Decl: d, Name: d.Name}
		a.m.Structs = append(a.m.Structs, s)
		a.m.structByName[d.Name] = s
	}

	for _, d := range ast.Consts {
		if err := a.collectConst(d); err != nil {
			return err
		}
	}
	for _, s := range a.m.Structs {
		if err := a.collectStruct(s); err != nil {
			return err
		}
	}
	if err := a.checkStructCycles(); err != nil {
		return err
	}
	for _, d := range ast.Vars {
		if err := a.collectGlobal(d); err != nil {
			return err
		}
	}
	for _, d := range ast.Fns {
		if err := a.collectFunction(d); err != nil {
			return err
		}
	}
	return nil
}

// mangle returns the flat name a function is emitted under: methods
// become Type_method.
func mangle(p lang.IdentPath) string {
	if p.IsQualified() {
		return p.Qualifier.String() + "_" + p.Name.String()
	}
	return p.Name.String()
}

// Mangled returns the flat emitted name of f.
func (f *Function) Mangled() string { return mangle(f.Path) }

func (a *analyser) declareTopLevel(name string, span lang.Span) *lang.ParseError {
	if _, ok := a.m.Builtins.Lookup(lang.NewIdent(name)); ok {
		return lang.Errorf(span, "`%s` is a built-in function and cannot be redeclared", name)
	}
	if prev, ok := a.topLevel[name]; ok {
		return lang.Errorf(span, "`%s` redeclared (previous declaration at %s)", name, prev)
	}
	a.topLevel[name] = span
	return nil
}

func (a *analyser) collectConst(d *lang.ConstDecl) *lang.ParseError {
	ty, err := a.resolveType(d.Type)
	if err != nil {
		return err
	}
	switch {
	case ty.IsScalar():
	case ty.IsVector() && ty.Scalar() == lang.TyFloat:
	default:
		return lang.Errorf(d.Type.Pos(), "const `%s` must have a scalar or float vector type, found %s", d.Name, ty)
	}
	if d.Init == nil {
		return lang.Errorf(d.Span, "const `%s` needs an initializer", d.Name)
	}

	c := &Const{Decl: d, Name: d.Name, Ty: ty}
	initTy, err := a.expr(d.Init, nil)
	if err != nil {
		return err
	}
	if !initTy.Equal(ty) {
		return lang.Errorf(d.Init.Pos(), "type mismatch: const `%s` is %s, initializer is %s", d.Name, ty, initTy)
	}
	v, ok, err := a.foldExpr(d.Init)
	if err != nil {
		return err
	}
	if !ok {
		return lang.Errorf(d.Init.Pos(), "initializer of const `%s` is not a constant expression", d.Name)
	}
	c.Val = v
	for e := range constRefs(d.Init, a.info) {
		dep := a.m.constByDecl[e]
		if !slices.Contains(c.Deps, dep) {
			c.Deps = append(c.Deps, dep)
		}
	}

	a.m.Consts = append(a.m.Consts, c)
	a.m.constByDecl[d] = c
	return nil
}

func (a *analyser) collectStruct(s *Struct) *lang.ParseError {
	seen := make(map[lang.Ident]bool)
	for _, f := range s.Decl.Fields {
		if seen[f.Name] {
			return lang.Errorf(f.Span, "field `%s` declared twice in struct %s", f.Name, s.Name)
		}
		seen[f.Name] = true
		ty, err := a.resolveType(f.Type)
		if err != nil {
			return err
		}
		if ty.Kind == lang.TyTexture2D {
			return lang.Errorf(f.Type.Pos(), "struct field `%s` cannot be a texture", f.Name)
		}
		s.Fields = append(s.Fields, StructField{Name: f.Name, Ty: ty})
	}
	if len(s.Fields) == 0 {
		return lang.Errorf(s.Decl.Span, "struct %s has no fields", s.Name)
	}
	return nil
}

// checkStructCycles rejects structs that contain themselves.
func (a *analyser) checkStructCycles() *lang.ParseError {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*Struct]int)
	var visit func(s *Struct) *lang.ParseError
	visit = func(s *Struct) *lang.ParseError {
		switch state[s] {
		case visiting:
			return lang.Errorf(s.Decl.Span, "struct %s contains itself", s.Name)
		case done:
			return nil
		}
		state[s] = visiting
		for _, f := range s.Fields {
			if inner, ok := a.m.structByName[baseType(f.Ty).Struct]; ok && baseType(f.Ty).Kind == lang.TyStruct {
				if err := visit(inner); err != nil {
					return err
				}
			}
		}
		state[s] = done
		return nil
	}
	for _, s := range a.m.Structs {
		if err := visit(s); err != nil {
			return err
		}
	}
	return nil
}

// baseType strips array wrappers.
func baseType(t lang.Ty) lang.Ty {
	for t.Kind == lang.TyArray {
		t = *t.Elem
	}
	return t
}

func (a *analyser) collectGlobal(d *lang.VarDecl) *lang.ParseError {
	ty, err := a.resolveType(d.Type)
	if err != nil {
		return err
	}
	g := &Global{
		Decl:  d,
		Name:  d.Name,
		Kind:  kindOfStorage(d.Storage),
		Ty:    ty,
		Block: d.Block,
		Index: len(a.m.Globals),
	}

	if !d.Block.IsZero() && g.Kind != VarUniform {
		return lang.Errorf(d.Span, "only uniforms can be placed in a block, `%s` is %s", d.Name, d.Storage)
	}
	if d.Init != nil && g.Kind != VarUniform {
		return lang.Errorf(d.Init.Pos(), "%s `%s` cannot have an initializer", d.Storage, d.Name)
	}

	switch g.Kind {
	case VarTexture:
		if ty.Kind != lang.TyTexture2D {
			return lang.Errorf(d.Type.Pos(), "texture `%s` must have type texture2D, found %s", d.Name, ty)
		}
	case VarUniform:
		if !isUniformType(ty) {
			return lang.Errorf(d.Type.Pos(), "uniform `%s` cannot have type %s", d.Name, ty)
		}
		if d.Init != nil {
			initTy, err := a.expr(d.Init, nil)
			if err != nil {
				return err
			}
			if !initTy.Equal(ty) {
				return lang.Errorf(d.Init.Pos(), "type mismatch: uniform `%s` is %s, default is %s", d.Name, ty, initTy)
			}
			v, ok, err := a.foldExpr(d.Init)
			if err != nil {
				return err
			}
			if !ok {
				return lang.Errorf(d.Init.Pos(), "default value of uniform `%s` is not a constant expression", d.Name)
			}
			g.Default = &v
		}
	default:
		if !isFloatShape(ty) {
			return lang.Errorf(d.Type.Pos(), "%s `%s` must be a float, float vector or matrix, found %s", d.Storage, d.Name, ty)
		}
	}

	if g.Kind == VarUniform {
		a.m.addToBlock(g)
	} else {
		for _, other := range a.m.Globals {
			if other.Kind == g.Kind || other.Kind.IsAttribute() && g.Kind.IsAttribute() {
				g.Slot += Locations(other.Ty)
			}
		}
	}
	a.m.Globals = append(a.m.Globals, g)
	a.m.globalByDecl[d] = g
	return nil
}

// isFloatShape reports whether t can be a vertex attribute or varying.
func isFloatShape(t lang.Ty) bool {
	return t.Scalar() == lang.TyFloat
}

func isUniformType(t lang.Ty) bool {
	t = baseType(t)
	return t.IsScalar() || t.IsVector() || t.IsMatrix()
}

func (a *analyser) collectFunction(d *lang.FnDecl) *lang.ParseError {
	if d.Path.IsQualified() {
		if _, ok := a.m.structByName[d.Path.Qualifier]; !ok {
			return lang.Errorf(d.Span, "method `%s` is declared on unknown struct %s", d.Path, d.Path.Qualifier)
		}
	}
	fn := &Function{Decl: d, Path: d.Path, Return: lang.Void}
	names := make(map[lang.Ident]bool)
	for _, p := range d.Params {
		if names[p.Name] {
			return lang.Errorf(p.Span, "parameter `%s` declared twice", p.Name)
		}
		names[p.Name] = true
		if err := a.checkLocalName(p.Name, p.Span, nil); err != nil {
			return err
		}
		ty, err := a.resolveType(p.Type)
		if err != nil {
			return err
		}
		if ty.Kind == lang.TyTexture2D {
			return lang.Errorf(p.Type.Pos(), "parameter `%s` cannot be a texture; sample the texture global directly", p.Name)
		}
		fn.Params = append(fn.Params, ty)
	}
	if d.Return != nil {
		ty, err := a.resolveType(d.Return)
		if err != nil {
			return err
		}
		if ty.Kind == lang.TyTexture2D {
			return lang.Errorf(d.Return.Pos(), "function `%s` cannot return a texture", d.Path)
		}
		fn.Return = ty
	}

	if !d.Path.IsQualified() {
		if name := d.Path.Name.String(); name == EntryVertex || name == EntryPixel {
			if len(fn.Params) != 0 || !fn.Return.Equal(lang.Vec4) {
				return lang.Errorf(d.Span, "entry point must be declared `fn %s() -> vec4`", name)
			}
		}
	}

	a.m.Functions = append(a.m.Functions, fn)
	a.m.fnByPath[d.Path] = fn
	a.m.fnByDecl[d] = fn
	return nil
}

// resolveType turns a written type into a Ty. Array lengths must fold to
// positive int constants.
func (a *analyser) resolveType(t lang.TypeExpr) (lang.Ty, *lang.ParseError) {
	switch t := t.(type) {
	case *lang.TyLitType:
		return t.Lit.ToTy(), nil
	case *lang.NamedType:
		if _, ok := a.m.structByName[t.Name]; !ok {
			return lang.Ty{}, lang.Errorf(t.Span, "unknown type `%s`", t.Name)
		}
		return lang.StructTy(t.Name), nil
	case *lang.ArrayType:
		elem, err := a.resolveType(t.Elem)
		if err != nil {
			return lang.Ty{}, err
		}
		if elem.Kind == lang.TyArray {
			return lang.Ty{}, lang.Errorf(t.Span, "arrays of arrays are not supported")
		}
		if elem.Kind == lang.TyTexture2D {
			return lang.Ty{}, lang.Errorf(t.Span, "arrays of textures are not supported")
		}
		n, err := a.constInt(t.Len, nil, "array length")
		if err != nil {
			return lang.Ty{}, err
		}
		if n <= 0 {
			return lang.Ty{}, lang.Errorf(t.Len.Pos(), "array length must be positive, found %d", n)
		}
		return lang.ArrayOf(elem, int(n)), nil
	}
	return lang.Ty{}, lang.Errorf(t.Pos(), "invalid type")
}

// constInt type-checks e as an int and folds it.
func (a *analyser) constInt(e lang.Expr, sc *scope, what string) (int64, *lang.ParseError) {
	ty, err := a.expr(e, sc)
	if err != nil {
		return 0, err
	}
	if !ty.Equal(lang.Int) {
		return 0, lang.Errorf(e.Pos(), "%s must be an int, found %s", what, ty)
	}
	v, ok, err := a.foldExpr(e)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, lang.Errorf(e.Pos(), "%s must be a constant expression", what)
	}
	return v.Int, nil
}
