package analysis

import (
	"strings"

	"github.com/gogpu/shade/lang"
)

type scope struct {
	parent *scope
	vars   map[lang.Ident]local
}

type local struct {
	ref VarRef
	ty  lang.Ty
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: make(map[lang.Ident]local)}
}

func (sc *scope) lookup(name lang.Ident) (local, bool) {
	for s := sc; s != nil; s = s.parent {
		if l, ok := s.vars[name]; ok {
			return l, true
		}
	}
	return local{}, false
}

type fnCtx struct {
	fn    *Function
	loops int
}

// checkBodies type-checks every function body.
func (a *analyser) checkBodies() *lang.ParseError {
	for _, fn := range a.m.Functions {
		params := newScope(nil)
		for i, p := range fn.Decl.Params {
			kind := VarParam
			if p.Inout {
				kind = VarInoutParam
			}
			params.vars[p.Name] = local{ref: VarRef{Kind: kind, Name: p.Name, Decl: p}, ty: fn.Params[i]}
		}
		fc := &fnCtx{fn: fn}
		if err := a.block(fn.Decl.Body, newScope(params), fc); err != nil {
			return err
		}
		if !fn.Return.Equal(lang.Void) && !returns(fn.Decl.Body) {
			return lang.Errorf(fn.Decl.Span, "function `%s` must return a %s on every path", fn.Path, fn.Return)
		}
	}
	return nil
}

// returns reports whether s always ends in a return statement.
func returns(s lang.Stmt) bool {
	switch s := s.(type) {
	case *lang.ReturnStmt:
		return true
	case *lang.BlockStmt:
		for _, inner := range s.Stmts {
			if returns(inner) {
				return true
			}
		}
	case *lang.IfStmt:
		return s.Else != nil && returns(s.Then) && returns(s.Else)
	}
	return false
}

func (a *analyser) block(b *lang.BlockStmt, sc *scope, fc *fnCtx) *lang.ParseError {
	for _, s := range b.Stmts {
		if err := a.stmt(s, sc, fc); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyser) stmt(s lang.Stmt, sc *scope, fc *fnCtx) *lang.ParseError {
	switch s := s.(type) {
	case *lang.BlockStmt:
		return a.block(s, newScope(sc), fc)

	case *lang.LetStmt:
		return a.letStmt(s, sc)

	case *lang.AssignStmt:
		lt, err := a.expr(s.Left, sc)
		if err != nil {
			return err
		}
		rt, err := a.expr(s.Right, sc)
		if err != nil {
			return err
		}
		if s.Op == lang.TokenEqual {
			if !rt.Equal(lt) {
				return lang.Errorf(s.Right.Pos(), "type mismatch: cannot assign %s to %s", rt, lt)
			}
			return nil
		}
		res, ok := binaryType(CompoundOp(s.Op), lt, rt)
		if !ok || !res.Equal(lt) {
			return lang.Errorf(s.Span, "cannot apply `%s` to %s and %s", s.Op, lt, rt)
		}
		return nil

	case *lang.ExprStmt:
		_, err := a.expr(s.Expr, sc)
		return err

	case *lang.IfStmt:
		if err := a.condition(s.Cond, sc, "if condition"); err != nil {
			return err
		}
		if err := a.block(s.Then, newScope(sc), fc); err != nil {
			return err
		}
		if s.Else != nil {
			return a.stmt(s.Else, sc, fc)
		}
		return nil

	case *lang.ForStmt:
		if err := a.checkLocalName(s.Var, s.Span, sc); err != nil {
			return err
		}
		bounds := []lang.Expr{s.From, s.To}
		if s.Step != nil {
			bounds = append(bounds, s.Step)
		}
		for _, e := range bounds {
			ty, err := a.expr(e, sc)
			if err != nil {
				return err
			}
			if !ty.Equal(lang.Int) {
				return lang.Errorf(e.Pos(), "loop bounds must be int, found %s", ty)
			}
		}
		body := newScope(sc)
		body.vars[s.Var] = local{ref: VarRef{Kind: VarLoop, Name: s.Var, Decl: s}, ty: lang.Int}
		fc.loops++
		defer func() { fc.loops-- }()
		return a.block(s.Body, body, fc)

	case *lang.BreakStmt:
		if fc.loops == 0 {
			return lang.Errorf(s.Span, "`break` outside of a loop")
		}
		return nil

	case *lang.ContinueStmt:
		if fc.loops == 0 {
			return lang.Errorf(s.Span, "`continue` outside of a loop")
		}
		return nil

	case *lang.ReturnStmt:
		want := fc.fn.Return
		if s.Value == nil {
			if !want.Equal(lang.Void) {
				return lang.Errorf(s.Span, "missing return value: `%s` returns %s", fc.fn.Path, want)
			}
			return nil
		}
		got, err := a.expr(s.Value, sc)
		if err != nil {
			return err
		}
		if want.Equal(lang.Void) {
			return lang.Errorf(s.Value.Pos(), "function `%s` does not return a value", fc.fn.Path)
		}
		if !got.Equal(want) {
			return lang.Errorf(s.Value.Pos(), "type mismatch: `%s` returns %s, found %s", fc.fn.Path, want, got)
		}
		return nil
	}
	return lang.Errorf(s.Pos(), "unsupported statement")
}

func (a *analyser) letStmt(s *lang.LetStmt, sc *scope) *lang.ParseError {
	if err := a.checkLocalName(s.Name, s.Span, sc); err != nil {
		return err
	}
	var ty lang.Ty
	declared := s.Type != nil
	if declared {
		var err *lang.ParseError
		if ty, err = a.resolveType(s.Type); err != nil {
			return err
		}
	}
	switch {
	case s.Init != nil:
		initTy, err := a.expr(s.Init, sc)
		if err != nil {
			return err
		}
		if declared && !initTy.Equal(ty) {
			return lang.Errorf(s.Init.Pos(), "type mismatch: expected %s, found %s", ty, initTy)
		}
		ty = initTy
	case !declared:
		return lang.Errorf(s.Span, "`%s` needs a type or an initializer", s.Name)
	}
	switch ty.Kind {
	case lang.TyVoid:
		return lang.Errorf(s.Span, "`%s` cannot hold a value of type ()", s.Name)
	case lang.TyTexture2D:
		return lang.Errorf(s.Span, "local `%s` cannot hold a texture", s.Name)
	}
	a.info.setLocal(s, ty)
	sc.vars[s.Name] = local{ref: VarRef{Kind: VarLocal, Name: s.Name, Decl: s}, ty: ty}
	return nil
}

func (a *analyser) condition(e lang.Expr, sc *scope, what string) *lang.ParseError {
	ty, err := a.expr(e, sc)
	if err != nil {
		return err
	}
	if !ty.Equal(lang.Bool) {
		return lang.Errorf(e.Pos(), "%s must be bool, found %s", what, ty)
	}
	return nil
}

// checkLocalName rejects locals and parameters that would hide another
// name: target compilers resolve such names differently.
func (a *analyser) checkLocalName(name lang.Ident, span lang.Span, sc *scope) *lang.ParseError {
	if _, ok := a.m.Builtins.Lookup(name); ok {
		return lang.Errorf(span, "`%s` is a built-in function and cannot be used as a variable name", name)
	}
	if _, ok := a.topLevel[name.String()]; ok {
		return lang.Errorf(span, "`%s` shadows a top-level declaration", name)
	}
	if _, ok := sc.lookup(name); ok {
		return lang.Errorf(span, "`%s` redeclared in this scope", name)
	}
	return nil
}

// lookup resolves a variable reference through the local scopes, then
// the consts and globals.
func (a *analyser) lookup(name lang.Ident, span lang.Span, sc *scope) (VarRef, lang.Ty, *lang.ParseError) {
	if l, ok := sc.lookup(name); ok {
		return l.ref, l.ty, nil
	}
	switch d := a.values[name].(type) {
	case *lang.ConstDecl:
		c, ok := a.m.constByDecl[d]
		if !ok {
			return VarRef{}, lang.Ty{}, lang.Errorf(span, "const `%s` is used before its declaration", name)
		}
		return VarRef{Kind: VarConst, Name: name, Decl: d}, c.Ty, nil
	case *lang.VarDecl:
		g, ok := a.m.globalByDecl[d]
		if !ok {
			return VarRef{}, lang.Ty{}, lang.Errorf(span, "`%s` cannot be used in a constant expression", name)
		}
		return VarRef{Kind: g.Kind, Name: name, Decl: d}, g.Ty, nil
	}
	if _, ok := a.m.fnByPath[lang.PathOf(name)]; ok {
		return VarRef{}, lang.Ty{}, lang.Errorf(span, "function `%s` is not a value", name)
	}
	if _, ok := a.m.structByName[name]; ok {
		return VarRef{}, lang.Ty{}, lang.Errorf(span, "type `%s` is not a value", name)
	}
	return VarRef{}, lang.Ty{}, lang.Errorf(span, "unknown identifier `%s`", name)
}

// expr type-checks e and records its type.
func (a *analyser) expr(e lang.Expr, sc *scope) (lang.Ty, *lang.ParseError) {
	ty, err := a.exprType(e, sc)
	if err != nil {
		return lang.Ty{}, err
	}
	a.info.setType(e.NodeID(), ty)
	return ty, nil
}

func (a *analyser) exprs(es []lang.Expr, sc *scope) ([]lang.Ty, *lang.ParseError) {
	tys := make([]lang.Ty, len(es))
	for i, e := range es {
		ty, err := a.expr(e, sc)
		if err != nil {
			return nil, err
		}
		tys[i] = ty
	}
	return tys, nil
}

func (a *analyser) exprType(e lang.Expr, sc *scope) (lang.Ty, *lang.ParseError) {
	switch e := e.(type) {
	case *lang.LitExpr:
		return e.Lit.ToTy(), nil

	case *lang.VarExpr:
		ref, ty, err := a.lookup(e.Name, e.Span, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		a.info.setVar(e.ID, ref)
		return ty, nil

	case *lang.MemberExpr:
		rt, err := a.expr(e.Expr, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		return a.member(e, rt)

	case *lang.IndexExpr:
		rt, err := a.expr(e.Expr, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		it, err := a.expr(e.Index, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		if !it.Equal(lang.Int) {
			return lang.Ty{}, lang.Errorf(e.Index.Pos(), "index must be an int, found %s", it)
		}
		switch {
		case rt.IsVector():
			return lang.VecOf(rt.Scalar(), 1), nil
		case rt.IsMatrix():
			return rt.Column(), nil
		case rt.Kind == lang.TyArray:
			return *rt.Elem, nil
		}
		return lang.Ty{}, lang.Errorf(e.Expr.Pos(), "type %s cannot be indexed", rt)

	case *lang.CallExpr:
		return a.call(e, sc)

	case *lang.MethodCallExpr:
		return a.methodCall(e, sc)

	case *lang.ConsCallExpr:
		tys, err := a.exprs(e.Args, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		return construct(e, tys)

	case *lang.BinaryExpr:
		lt, err := a.expr(e.Left, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		rt, err := a.expr(e.Right, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		ty, ok := binaryType(e.Op, lt, rt)
		if !ok {
			return lang.Ty{}, lang.Errorf(e.Span, "cannot apply `%s` to %s and %s", e.Op, lt, rt)
		}
		return ty, nil

	case *lang.UnaryExpr:
		ot, err := a.expr(e.Operand, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		switch {
		case e.Op == lang.TokenMinus && ot.IsNumeric():
			return ot, nil
		case e.Op == lang.TokenBang && ot.Equal(lang.Bool):
			return ot, nil
		}
		return lang.Ty{}, lang.Errorf(e.Span, "cannot apply unary `%s` to %s", e.Op, ot)

	case *lang.CondExpr:
		if err := a.condition(e.Cond, sc, "ternary condition"); err != nil {
			return lang.Ty{}, err
		}
		tt, err := a.expr(e.Then, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		et, err := a.expr(e.Else, sc)
		if err != nil {
			return lang.Ty{}, err
		}
		if !tt.Equal(et) {
			return lang.Ty{}, lang.Errorf(e.Span, "ternary branches have different types: %s and %s", tt, et)
		}
		if tt.Kind == lang.TyTexture2D {
			return lang.Ty{}, lang.Errorf(e.Span, "a ternary cannot select between textures")
		}
		return tt, nil
	}
	return lang.Ty{}, lang.Errorf(e.Pos(), "unsupported expression")
}

func (a *analyser) member(e *lang.MemberExpr, rt lang.Ty) (lang.Ty, *lang.ParseError) {
	name := e.Member.String()
	switch {
	case rt.IsVector():
		idx, ok := Swizzle(name)
		if !ok {
			return lang.Ty{}, lang.Errorf(e.Span, "invalid swizzle `.%s`", name)
		}
		for _, i := range idx {
			if i >= rt.Size() {
				return lang.Ty{}, lang.Errorf(e.Span, "swizzle `.%s` is out of range for %s", name, rt)
			}
		}
		return lang.VecOf(rt.Scalar(), len(idx)), nil
	case rt.Kind == lang.TyStruct:
		s := a.m.structByName[rt.Struct]
		i := s.Field(e.Member)
		if i < 0 {
			return lang.Ty{}, lang.Errorf(e.Span, "struct %s has no field `%s`", rt.Struct, name)
		}
		return s.Fields[i].Ty, nil
	}
	return lang.Ty{}, lang.Errorf(e.Span, "type %s has no field `%s`", rt, name)
}

const (
	swizzleXYZW = "xyzw"
	swizzleRGBA = "rgba"
)

// Swizzle returns the component indices of a swizzle written with either
// the xyzw or the rgba set. Mixing sets is invalid.
func Swizzle(s string) ([]int, bool) {
	if len(s) == 0 || len(s) > 4 {
		return nil, false
	}
	for _, set := range []string{swizzleXYZW, swizzleRGBA} {
		idx := make([]int, 0, len(s))
		for _, c := range s {
			i := strings.IndexRune(set, c)
			if i < 0 {
				break
			}
			idx = append(idx, i)
		}
		if len(idx) == len(s) {
			return idx, true
		}
	}
	return nil, false
}

// SwizzleXYZW rewrites a swizzle in the xyzw set.
func SwizzleXYZW(s string) string {
	idx, ok := Swizzle(s)
	if !ok {
		return s
	}
	var sb strings.Builder
	for _, i := range idx {
		sb.WriteByte(swizzleXYZW[i])
	}
	return sb.String()
}

func (a *analyser) call(e *lang.CallExpr, sc *scope) (lang.Ty, *lang.ParseError) {
	tys, err := a.exprs(e.Args, sc)
	if err != nil {
		return lang.Ty{}, err
	}
	path := e.Callee

	if fn, ok := a.m.fnByPath[path]; ok {
		if name := path.String(); name == EntryVertex || name == EntryPixel {
			return lang.Ty{}, lang.Errorf(e.Span, "entry point `%s` cannot be called", name)
		}
		if err := checkArgs(path.String(), fn.Params, e.Args, tys, e.Span); err != nil {
			return lang.Ty{}, err
		}
		a.info.setCall(e.ID, CallTarget{Kind: CallFn, Fn: fn.Decl})
		return fn.Return, nil
	}
	if d, ok := a.fnDecls[mangle(path)]; ok && a.m.fnByDecl[d] == nil {
		// Functions are collected after consts and globals.
		return lang.Ty{}, lang.Errorf(e.Span, "`%s` cannot be called in a constant expression", path)
	}
	if path.IsQualified() {
		return lang.Ty{}, lang.Errorf(e.Span, "unknown function `%s`", path)
	}

	if s, ok := a.m.structByName[path.Name]; ok {
		params := make([]lang.Ty, len(s.Fields))
		for i, f := range s.Fields {
			params[i] = f.Ty
		}
		if err := checkArgs(s.Name.String(), params, e.Args, tys, e.Span); err != nil {
			return lang.Ty{}, err
		}
		a.info.setCall(e.ID, CallTarget{Kind: CallStruct, Struct: s.Decl})
		return lang.StructTy(s.Name), nil
	}

	if b, ok := a.m.Builtins.Lookup(path.Name); ok {
		sig, ok := b.Resolve(tys)
		if !ok {
			return lang.Ty{}, lang.Errorf(e.Span, "no overload of `%s` accepts (%s)", path.Name, joinTypes(tys))
		}
		if path.Name.String() == "sample2d" {
			if ref, ok := a.info.Vars[e.Args[0].NodeID()]; !ok || ref.Kind != VarTexture {
				return lang.Ty{}, lang.Errorf(e.Args[0].Pos(), "the first argument of sample2d must be a texture global")
			}
		}
		a.info.setCall(e.ID, CallTarget{Kind: CallBuiltin, Builtin: b, Sig: sig})
		return sig.Return, nil
	}

	return lang.Ty{}, lang.Errorf(e.Span, "unknown function `%s`", path)
}

func (a *analyser) methodCall(e *lang.MethodCallExpr, sc *scope) (lang.Ty, *lang.ParseError) {
	rt, err := a.expr(e.Receiver, sc)
	if err != nil {
		return lang.Ty{}, err
	}
	if rt.Kind != lang.TyStruct {
		return lang.Ty{}, lang.Errorf(e.Receiver.Pos(), "method `%s` called on %s; methods exist only on structs", e.Method, rt)
	}
	path := lang.IdentPath{Qualifier: rt.Struct, Name: e.Method}
	fn, ok := a.m.fnByPath[path]
	if !ok {
		return lang.Ty{}, lang.Errorf(e.Span, "struct %s has no method `%s`", rt.Struct, e.Method)
	}
	tys, err := a.exprs(e.Args, sc)
	if err != nil {
		return lang.Ty{}, err
	}
	args := append([]lang.Expr{e.Receiver}, e.Args...)
	tys = append([]lang.Ty{rt}, tys...)
	if err := checkArgs(path.String(), fn.Params, args, tys, e.Span); err != nil {
		return lang.Ty{}, err
	}
	a.info.setCall(e.ID, CallTarget{Kind: CallFn, Fn: fn.Decl})
	return fn.Return, nil
}

func checkArgs(name string, params []lang.Ty, args []lang.Expr, tys []lang.Ty, span lang.Span) *lang.ParseError {
	if len(params) != len(args) {
		return lang.Errorf(span, "`%s` expects %d arguments, found %d", name, len(params), len(args))
	}
	for i, p := range params {
		if !tys[i].Equal(p) {
			return lang.Errorf(args[i].Pos(), "argument %d of `%s`: expected %s, found %s", i+1, name, p, tys[i])
		}
	}
	return nil
}

func joinTypes(tys []lang.Ty) string {
	parts := make([]string, len(tys))
	for i, t := range tys {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// construct checks a built-in type constructor.
func construct(e *lang.ConsCallExpr, tys []lang.Ty) (lang.Ty, *lang.ParseError) {
	target := e.Ty.ToTy()
	switch {
	case target.IsScalar():
		if len(tys) == 1 && tys[0].IsScalar() {
			return target, nil
		}
		return lang.Ty{}, lang.Errorf(e.Span, "%s(...) takes exactly one scalar argument", target)

	case target.IsVector():
		if len(tys) == 1 && tys[0].IsScalar() {
			return target, nil
		}
		n := 0
		for i, t := range tys {
			if !(t.IsScalar() || t.IsVector()) || t.Scalar() != target.Scalar() {
				return lang.Ty{}, lang.Errorf(e.Args[i].Pos(), "cannot use %s in a %s constructor", t, target)
			}
			n += t.Size()
		}
		if n != target.Size() {
			return lang.Ty{}, lang.Errorf(e.Span, "%s constructor needs %d components, found %d", target, target.Size(), n)
		}
		return target, nil

	case target.IsMatrix():
		n := target.Size()
		if len(tys) == 1 && tys[0].Equal(lang.Float) {
			return target, nil
		}
		if allEqual(tys, target.Column()) && len(tys) == n {
			return target, nil
		}
		if allEqual(tys, lang.Float) && len(tys) == n*n {
			return target, nil
		}
		return lang.Ty{}, lang.Errorf(e.Span, "%s constructor takes one float, %d %s columns or %d floats", target, n, target.Column(), n*n)
	}
	return lang.Ty{}, lang.Errorf(e.Span, "%s values cannot be constructed", target)
}

func allEqual(tys []lang.Ty, t lang.Ty) bool {
	for _, x := range tys {
		if !x.Equal(t) {
			return false
		}
	}
	return true
}

// CompoundOp returns the binary operator of a compound assignment.
func CompoundOp(op lang.TokenKind) lang.TokenKind {
	switch op {
	case lang.TokenPlusEqual:
		return lang.TokenPlus
	case lang.TokenMinusEqual:
		return lang.TokenMinus
	case lang.TokenStarEqual:
		return lang.TokenStar
	case lang.TokenSlashEqual:
		return lang.TokenSlash
	}
	return op
}

// binaryType returns the result type of l op r.
func binaryType(op lang.TokenKind, l, r lang.Ty) (lang.Ty, bool) {
	switch op {
	case lang.TokenPlus, lang.TokenMinus, lang.TokenStar, lang.TokenSlash:
		if !l.IsNumeric() || !r.IsNumeric() || l.Scalar() != r.Scalar() {
			return lang.Ty{}, false
		}
		if l.IsMatrix() || r.IsMatrix() {
			return matrixType(op, l, r)
		}
		switch {
		case l.Equal(r):
			return l, true
		case l.IsVector() && r.IsScalar():
			return l, true
		case l.IsScalar() && r.IsVector():
			return r, true
		}

	case lang.TokenLess, lang.TokenGreater, lang.TokenLessEqual, lang.TokenGreaterEqual:
		if l.IsScalar() && l.IsNumeric() && l.Equal(r) {
			return lang.Bool, true
		}

	case lang.TokenEqualEqual, lang.TokenBangEqual:
		if (l.IsScalar() || l.IsVector()) && l.Equal(r) {
			return lang.Bool, true
		}

	case lang.TokenAmpAmp, lang.TokenPipePipe:
		if l.Equal(lang.Bool) && r.Equal(lang.Bool) {
			return lang.Bool, true
		}
	}
	return lang.Ty{}, false
}

// matrixType covers matN op matN, matN * vecN, vecN * matN and scaling
// by a float.
func matrixType(op lang.TokenKind, l, r lang.Ty) (lang.Ty, bool) {
	switch op {
	case lang.TokenPlus, lang.TokenMinus:
		if l.IsMatrix() && l.Equal(r) {
			return l, true
		}
	case lang.TokenStar:
		switch {
		case l.IsMatrix() && l.Equal(r):
			return l, true
		case l.IsMatrix() && r.Equal(l.Column()):
			return r, true
		case r.IsMatrix() && l.Equal(r.Column()):
			return l, true
		case l.IsMatrix() && r.Equal(lang.Float):
			return l, true
		case r.IsMatrix() && l.Equal(lang.Float):
			return r, true
		}
	}
	return lang.Ty{}, false
}
