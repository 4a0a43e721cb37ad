package msl

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/shade/analysis"
	"github.com/gogpu/shade/lang"
)

// Operator precedence, loosest first.
const (
	precTernary = 1 + iota
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
	precPrimary
)

func binaryPrec(op lang.TokenKind) int {
	switch op {
	case lang.TokenPipePipe:
		return precOr
	case lang.TokenAmpAmp:
		return precAnd
	case lang.TokenEqualEqual, lang.TokenBangEqual:
		return precEquality
	case lang.TokenLess, lang.TokenGreater, lang.TokenLessEqual, lang.TokenGreaterEqual:
		return precRelational
	case lang.TokenPlus, lang.TokenMinus:
		return precAdditive
	default:
		return precMultiplicative
	}
}

var renamedBuiltins = map[string]string{
	"inversesqrt": "rsqrt",
	"dFdx":        "dfdx",
	"dFdy":        "dfdy",
}

// comparisonBuiltins are the component-wise comparisons; Metal's vector
// operators already compare per component.
var comparisonBuiltins = map[string]string{
	"lessThan":         "<",
	"lessThanEqual":    "<=",
	"greaterThan":      ">",
	"greaterThanEqual": ">=",
	"equal":            "==",
	"notEqual":         "!=",
}

// angleFactors convert between degrees and radians, which have no Metal
// function.
var angleFactors = map[string]string{
	"radians": "0.017453292519943295",
	"degrees": "57.29577951308232",
}

// splatBuiltins take scalar arguments next to vector ones.
var splatBuiltins = map[string]bool{
	"min": true, "max": true, "clamp": true, "mix": true,
	"step": true, "smoothstep": true, "mod": true,
}

// expr writes e, parenthesized when it binds looser than minPrec.
func (w *Writer) expr(e lang.Expr, minPrec int) string {
	s, prec := w.writeExpr(e)
	if prec < minPrec {
		return "(" + s + ")"
	}
	return s
}

func (w *Writer) exprs(es []lang.Expr) []string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = w.expr(e, precTernary)
	}
	return parts
}

// writeExpr returns the text of e and its precedence. Constant
// subexpressions are written as their folded value.
func (w *Writer) writeExpr(e lang.Expr) (string, int) {
	if v, ok := w.info.ConstOf(e); ok && !isLeaf(e) {
		return w.value(v)
	}

	switch e := e.(type) {
	case *lang.LitExpr:
		return w.value(e.Lit.ToVal())

	case *lang.VarExpr:
		return w.varName(e)

	case *lang.MemberExpr:
		base := w.expr(e.Expr, precPostfix)
		if w.info.TypeOf(e.Expr).IsVector() {
			return base + "." + analysis.SwizzleXYZW(e.Member.String()), precPostfix
		}
		return base + "." + Escape(e.Member.String()), precPostfix

	case *lang.IndexExpr:
		return w.expr(e.Expr, precPostfix) + "[" + w.expr(e.Index, 0) + "]", precPostfix

	case *lang.CallExpr, *lang.MethodCallExpr:
		return w.call(e)

	case *lang.ConsCallExpr:
		return w.construct(e), precPostfix

	case *lang.BinaryExpr:
		return w.binary(e)

	case *lang.UnaryExpr:
		return unary(e.Op.String(), w.expr(e.Operand, precUnary)), precUnary

	case *lang.CondExpr:
		return w.expr(e.Cond, precOr) + " ? " + w.expr(e.Then, precTernary) + " : " + w.expr(e.Else, precTernary), precTernary
	}

	w.fail(ErrInternalError, e.Pos(), "unexpected expression %T", e)
	return "", precPrimary
}

// isLeaf reports whether e is written as itself even when constant.
func isLeaf(e lang.Expr) bool {
	switch e.(type) {
	case *lang.LitExpr, *lang.VarExpr:
		return true
	}
	return false
}

// unary applies a prefix operator without producing "--".
func unary(op, operand string) string {
	if op == "-" && strings.HasPrefix(operand, "-") {
		return "-(" + operand + ")"
	}
	return op + operand
}

func (w *Writer) value(v lang.Val) (string, int) {
	switch {
	case v.Kind == lang.ValInt && v.Int == math.MinInt32:
		return "(-2147483647 - 1)", precPrimary
	case v.Kind == lang.ValVec:
		return fmt.Sprintf("%sfloat%d(%s)", Namespace, v.N, strings.Join(v.ComponentStrings(), ", ")), precPostfix
	}
	s := v.String()
	if strings.HasPrefix(s, "-") {
		return s, precUnary
	}
	return s, precPrimary
}

// varName resolves a variable. Globals other than textures live in the
// context; uniforms are read through their block's buffer.
func (w *Writer) varName(e *lang.VarExpr) (string, int) {
	ref := w.info.Vars[e.ID]
	switch {
	case ref.Kind == analysis.VarConst:
		c := w.module.ConstOf(ref.Decl.(*lang.ConstDecl))
		return w.consts[c], precPrimary
	case ref.Kind == analysis.VarTexture:
		g, _ := w.module.GlobalRef(ref)
		return w.globals[g], precPrimary
	case ref.Kind == analysis.VarUniform:
		g, _ := w.module.GlobalRef(ref)
		return ContextParam + "." + w.blocks[w.blockOf[g]] + "->" + w.globals[g], precPostfix
	case ref.Kind.IsGlobal():
		g, _ := w.module.GlobalRef(ref)
		return ContextParam + "." + w.globals[g], precPostfix
	}
	return w.locals[ref.Decl], precPrimary
}

// binary writes a binary operator. Vector equality reduces to a single
// bool like the source language.
func (w *Writer) binary(e *lang.BinaryExpr) (string, int) {
	if e.Op == lang.TokenEqualEqual || e.Op == lang.TokenBangEqual {
		if w.info.TypeOf(e.Left).IsVector() {
			fn := "all"
			if e.Op == lang.TokenBangEqual {
				fn = "any"
			}
			return Namespace + fn + "(" + w.expr(e.Left, precEquality) + " " + e.Op.String() + " " + w.expr(e.Right, precEquality+1) + ")", precPostfix
		}
	}
	prec := binaryPrec(e.Op)
	return w.expr(e.Left, prec) + " " + e.Op.String() + " " + w.expr(e.Right, prec+1), prec
}

// construct writes a constructor call. A matrix given every component is
// built from column vectors.
func (w *Writer) construct(e *lang.ConsCallExpr) string {
	t := e.Ty.ToTy()
	args := w.exprs(e.Args)
	if n := t.Size(); t.IsMatrix() && len(args) == n*n {
		col := w.typeName(t.Column())
		cols := make([]string, n)
		for i := range cols {
			cols[i] = col + "(" + joinParams(args[i*n:(i+1)*n]) + ")"
		}
		args = cols
	}
	return w.typeName(t) + "(" + joinParams(args) + ")"
}

// call writes a user function, struct constructor or built-in call.
// Methods are called as free functions with the receiver first.
func (w *Writer) call(e lang.Expr) (string, int) {
	target := w.info.Calls[e.NodeID()]
	args := analysis.Children(e)
	switch target.Kind {
	case analysis.CallFn:
		fn := w.module.FunctionOf(target.Fn)
		for i, p := range target.Fn.Params {
			if p.Inout && w.isSwizzle(args[i]) {
				w.fail(ErrUnsupportedFeature, args[i].Pos(), "a swizzle cannot be passed to inout parameter `%s`", p.Name)
			}
		}
		return w.fns[target.Fn] + "(" + joinParams(w.contextArgs(fn, w.exprs(args))) + ")", precPostfix
	case analysis.CallStruct:
		return w.structs[target.Struct.Name] + "{" + joinParams(w.exprs(args)) + "}", precPostfix
	}
	return w.builtin(target, args)
}

// isSwizzle reports whether the place e selects vector components by
// name, which Metal cannot bind to a reference.
func (w *Writer) isSwizzle(e lang.Expr) bool {
	for {
		switch x := e.(type) {
		case *lang.MemberExpr:
			if w.info.TypeOf(x.Expr).IsVector() {
				return true
			}
			e = x.Expr
		case *lang.IndexExpr:
			e = x.Expr
		default:
			return false
		}
	}
}

func (w *Writer) builtin(target analysis.CallTarget, args []lang.Expr) (string, int) {
	name := target.Builtin.Name.String()
	ret := target.Sig.Return

	if op, ok := comparisonBuiltins[name]; ok {
		prec := precRelational
		if op == "==" || op == "!=" {
			prec = precEquality
		}
		return w.expr(args[0], prec) + " " + op + " " + w.expr(args[1], prec+1), prec
	}
	if factor, ok := angleFactors[name]; ok {
		return w.expr(args[0], precMultiplicative) + " * " + factor, precMultiplicative
	}

	switch name {
	case "not":
		return unary("!", w.expr(args[0], precUnary)), precUnary
	case "sample2d":
		g, _ := w.module.GlobalRef(w.info.Vars[args[0].(*lang.VarExpr).ID])
		coord := w.expr(args[1], precTernary)
		if w.stage == analysis.StageVertex {
			return fmt.Sprintf("%s.sample(%s, %s, %slevel(0.0))", w.globals[g], SamplerName, coord, Namespace), precPostfix
		}
		return fmt.Sprintf("%s.sample(%s, %s)", w.globals[g], SamplerName, coord), precPostfix
	}

	parts := make([]string, len(args))
	for i, a := range args {
		if splatBuiltins[name] && ret.IsVector() && target.Sig.Params[i].IsScalar() {
			parts[i] = w.typeName(ret) + "(" + w.expr(a, precTernary) + ")"
			continue
		}
		parts[i] = w.expr(a, precTernary)
	}

	switch {
	case name == "mod":
		return ModFunction + "(" + joinParams(parts) + ")", precPostfix
	case name == "atan" && len(args) == 2:
		name = "atan2"
	default:
		if renamed, ok := renamedBuiltins[name]; ok {
			name = renamed
		}
	}
	return Namespace + name + "(" + joinParams(parts) + ")", precPostfix
}
