// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
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
		return base + "." + escapeKeyword(e.Member.String()), precPostfix

	case *lang.IndexExpr:
		return w.expr(e.Expr, precPostfix) + "[" + w.expr(e.Index, 0) + "]", precPostfix

	case *lang.CallExpr, *lang.MethodCallExpr:
		return w.call(e), precPostfix

	case *lang.ConsCallExpr:
		return w.typeName(e.Ty.ToTy()) + "(" + w.exprs(e.Args) + ")", precPostfix

	case *lang.BinaryExpr:
		prec := binaryPrec(e.Op)
		return w.expr(e.Left, prec) + " " + e.Op.String() + " " + w.expr(e.Right, prec+1), prec

	case *lang.UnaryExpr:
		return unary(e.Op.String(), w.expr(e.Operand, precUnary)), precUnary

	case *lang.CondExpr:
		return w.expr(e.Cond, precOr) + " ? " + w.expr(e.Then, precTernary) + " : " + w.expr(e.Else, precTernary), precTernary
	}

	w.fail(ErrInternalError, e.Pos(), "unexpected expression %T", e)
	return "", precPrimary
}

// isLeaf reports whether e is written as itself even when constant: a
// literal, or a reference to a named const.
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
	if v.Kind == lang.ValInt && v.Int == math.MinInt32 {
		// The literal 2147483648 does not fit an int.
		return "(-2147483647 - 1)", precPrimary
	}
	// Val formats vectors as vecN(...) constructors.
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

// call writes a user function, struct constructor or built-in call.
// Methods are called as free functions with the receiver first.
func (w *Writer) call(e lang.Expr) string {
	target := w.info.Calls[e.NodeID()]
	args := analysis.Children(e)
	switch target.Kind {
	case analysis.CallFn:
		return w.fns[target.Fn] + "(" + w.exprs(args) + ")"
	case analysis.CallStruct:
		return w.structs[target.Struct.Name] + "(" + w.exprs(args) + ")"
	}
	return w.builtin(target, args)
}

func (w *Writer) builtin(target analysis.CallTarget, args []lang.Expr) string {
	name := target.Builtin.Name.String()
	if name != "sample2d" {
		return name + "(" + w.exprs(args) + ")"
	}

	// The vertex stage has no derivatives to pick a mip level from.
	fn, lod := "texture", ""
	if w.stage == analysis.StageVertex {
		fn, lod = "textureLod", ", 0.0"
	}
	if w.legacy() {
		fn = strings.Replace(fn, "texture", "texture2D", 1)
	}
	return fn + "(" + w.exprs(args) + lod + ")"
}
