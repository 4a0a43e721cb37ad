// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

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

// renamedBuiltins maps built-ins whose HLSL intrinsic has another name.
var renamedBuiltins = map[string]string{
	"mix":         "lerp",
	"fract":       "frac",
	"inversesqrt": "rsqrt",
	"dFdx":        "ddx",
	"dFdy":        "ddy",
}

// comparisonBuiltins are the component-wise comparisons, written as
// operators on vectors.
var comparisonBuiltins = map[string]string{
	"lessThan":         "<",
	"lessThanEqual":    "<=",
	"greaterThan":      ">",
	"greaterThanEqual": ">=",
	"equal":            "==",
	"notEqual":         "!=",
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

func (w *Writer) exprs(es []lang.Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = w.expr(e, precTernary)
	}
	return strings.Join(parts, ", ")
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
		return w.varName(e), precPrimary

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
		return w.construct(e), precPrimary

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

// value writes a constant.
func (w *Writer) value(v lang.Val) (string, int) {
	switch {
	case v.Kind == lang.ValInt && v.Int == math.MinInt32:
		return "(-2147483647 - 1)", precPrimary
	case v.Kind == lang.ValVec:
		return fmt.Sprintf("float%d(%s)", v.N, strings.Join(v.ComponentStrings(), ", ")), precPrimary
	}
	s := v.String()
	if strings.HasPrefix(s, "-") {
		return s, precUnary
	}
	return s, precPrimary
}

func (w *Writer) varName(e *lang.VarExpr) string {
	ref := w.info.Vars[e.ID]
	switch {
	case ref.Kind == analysis.VarConst:
		c := w.module.ConstOf(ref.Decl.(*lang.ConstDecl))
		return w.consts[c]
	case ref.Kind.IsGlobal():
		g, _ := w.module.GlobalRef(ref)
		return w.globals[g]
	}
	return w.locals[ref.Decl]
}

// binary writes a binary operator. Matrix products become mul() with the
// operands swapped, and vector equality reduces to a single bool.
func (w *Writer) binary(e *lang.BinaryExpr) (string, int) {
	lt, rt := w.info.TypeOf(e.Left), w.info.TypeOf(e.Right)
	switch e.Op {
	case lang.TokenStar:
		if isMatrixProduct(lt, rt) {
			return "mul(" + w.expr(e.Right, precTernary) + ", " + w.expr(e.Left, precTernary) + ")", precPostfix
		}
	case lang.TokenEqualEqual, lang.TokenBangEqual:
		if lt.IsVector() {
			fn := "all"
			if e.Op == lang.TokenBangEqual {
				fn = "any"
			}
			return fn + "(" + w.expr(e.Left, precEquality) + " " + e.Op.String() + " " + w.expr(e.Right, precEquality+1) + ")", precPostfix
		}
	}
	prec := binaryPrec(e.Op)
	return w.expr(e.Left, prec) + " " + e.Op.String() + " " + w.expr(e.Right, prec+1), prec
}

// isMatrixProduct reports whether l * r is a linear-algebra product rather
// than a component-wise or scalar one.
func isMatrixProduct(l, r lang.Ty) bool {
	return l.IsMatrix() && (r.IsMatrix() || r.IsVector()) || l.IsVector() && r.IsMatrix()
}

// construct writes a constructor call.
func (w *Writer) construct(e *lang.ConsCallExpr) string {
	t := e.Ty.ToTy()
	switch {
	case len(e.Args) == 1 && t.IsMatrix():
		return diagFunction(t.Size()) + "(" + w.exprs(e.Args) + ")"
	case len(e.Args) == 1 && t.IsVector():
		return w.splat(t, e.Args[0])
	}
	return w.typeName(t) + "(" + w.exprs(e.Args) + ")"
}

// splat converts a scalar to a vector with a cast, which repeats it.
func (w *Writer) splat(t lang.Ty, e lang.Expr) string {
	return "((" + w.typeName(t) + ")" + w.expr(e, precUnary) + ")"
}

// call writes a user function, struct constructor or built-in call.
// Methods are called as free functions with the receiver first.
func (w *Writer) call(e lang.Expr) (string, int) {
	target := w.info.Calls[e.NodeID()]
	args := analysis.Children(e)
	switch target.Kind {
	case analysis.CallFn:
		return w.fns[target.Fn] + "(" + w.exprs(args) + ")", precPostfix
	case analysis.CallStruct:
		return w.makeStruct[target.Struct.Name] + "(" + w.exprs(args) + ")", precPostfix
	}
	return w.builtin(target, args)
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

	switch name {
	case "not":
		return unary("!", w.expr(args[0], precUnary)), precUnary
	case "sign":
		// sign returns an int type in HLSL.
		return w.typeName(ret) + "(sign(" + w.exprs(args) + "))", precPostfix
	case "atan":
		if len(args) == 2 {
			return "atan2(" + w.exprs(args) + ")", precPostfix
		}
	case "mod":
		name = ModFunction
	case "sample2d":
		g, _ := w.module.GlobalRef(w.info.Vars[args[0].(*lang.VarExpr).ID])
		coord := w.expr(args[1], precTernary)
		if w.stage == analysis.StageVertex {
			return w.globals[g] + ".SampleLevel(" + w.samplers[g] + ", " + coord + ", 0.0)", precPostfix
		}
		return w.globals[g] + ".Sample(" + w.samplers[g] + ", " + coord + ")", precPostfix
	}
	if renamed, ok := renamedBuiltins[name]; ok {
		name = renamed
	}

	parts := make([]string, len(args))
	for i, a := range args {
		if splatBuiltins[target.Builtin.Name.String()] && ret.IsVector() && target.Sig.Params[i].IsScalar() {
			parts[i] = w.splat(ret, a)
			continue
		}
		parts[i] = w.expr(a, precTernary)
	}
	return name + "(" + strings.Join(parts, ", ") + ")", precPostfix
}
