// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"

	"github.com/gogpu/shade/analysis"
	"github.com/gogpu/shade/lang"
)

func (w *Writer) writeStmts(stmts []lang.Stmt) {
	for _, s := range stmts {
		w.writeStmt(s)
	}
}

func (w *Writer) writeBlock(b *lang.BlockStmt) {
	w.pushIndent()
	w.writeStmts(b.Stmts)
	w.popIndent()
}

func (w *Writer) writeStmt(s lang.Stmt) {
	switch s := s.(type) {
	case *lang.BlockStmt:
		w.writeLine("{")
		w.writeBlock(s)
		w.writeLine("}")

	case *lang.LetStmt:
		w.writeLet(s)

	case *lang.AssignStmt:
		w.writeAssign(s)

	case *lang.ExprStmt:
		w.writeLine("%s;", w.expr(s.Expr, 0))

	case *lang.IfStmt:
		w.writeIf(s)

	case *lang.ForStmt:
		w.writeFor(s)

	case *lang.BreakStmt:
		w.writeLine("break;")

	case *lang.ContinueStmt:
		w.writeLine("continue;")

	case *lang.ReturnStmt:
		if s.Value == nil {
			w.writeLine("return;")
		} else {
			w.writeLine("return %s;", w.expr(s.Value, 0))
		}

	default:
		w.fail(ErrInternalError, s.Pos(), "unexpected statement %T", s)
	}
}

// writeLet declares a local. Without an initializer the local starts at
// its zero value.
func (w *Writer) writeLet(s *lang.LetStmt) {
	ty := w.info.Locals[s]
	var init string
	if s.Init != nil {
		init = w.expr(s.Init, 0)
	} else {
		init = w.zeroValue(ty)
	}
	w.writeLine("%s = %s;", w.declaration(ty, w.local(s, s.Name)), init)
}

// writeAssign writes an assignment. A compound *= that multiplies by a
// matrix has no operator form and is expanded.
func (w *Writer) writeAssign(s *lang.AssignStmt) {
	lhs := w.expr(s.Left, 0)
	if s.Op == lang.TokenStarEqual {
		lt, rt := w.info.TypeOf(s.Left), w.info.TypeOf(s.Right)
		if isMatrixProduct(lt, rt) {
			w.writeLine("%s = mul(%s, %s);", lhs, w.expr(s.Right, precTernary), lhs)
			return
		}
	}
	w.writeLine("%s %s %s;", lhs, s.Op, w.expr(s.Right, 0))
}

func (w *Writer) writeIf(s *lang.IfStmt) {
	w.writeLine("if (%s) {", w.expr(s.Cond, 0))
	for {
		w.writeBlock(s.Then)
		switch e := s.Else.(type) {
		case *lang.IfStmt:
			w.writeLine("} else if (%s) {", w.expr(e.Cond, 0))
			s = e
			continue
		case *lang.BlockStmt:
			w.writeLine("} else {")
			w.writeBlock(e)
		}
		w.writeLine("}")
		return
	}
}

// writeFor writes a counted loop. The range excludes its end; a negative
// step counts down.
func (w *Writer) writeFor(s *lang.ForStmt) {
	from, to := w.expr(s.From, 0), w.expr(s.To, precRelational+1)
	step := int64(1)
	if s.Step != nil {
		v, _ := w.info.ConstOf(s.Step)
		step = v.Int
	}
	name := w.local(s, s.Var)

	cmp, inc := "<", name+"++"
	switch {
	case step < 0:
		cmp = ">"
		inc = name + "--"
		if step != -1 {
			inc = fmt.Sprintf("%s -= %d", name, -step)
		}
	case step != 1:
		inc = fmt.Sprintf("%s += %d", name, step)
	}
	w.writeLine("for (int %s = %s; %s %s %s; %s) {", name, from, name, cmp, to, inc)
	w.writeBlock(s.Body)
	w.writeLine("}")
}

// writeFunction writes a user function. Methods take their receiver as
// the first parameter.
func (w *Writer) writeFunction(fn *analysis.Function) {
	if fn.Return.Kind == lang.TyArray {
		w.fail(ErrUnsupportedFeature, fn.Decl.Span, "function `%s` returns an array, which HLSL cannot express", fn.Path)
		return
	}
	w.beginFunction()
	params := make([]string, len(fn.Params))
	for i, p := range fn.Decl.Params {
		params[i] = w.declaration(fn.Params[i], w.local(p, p.Name))
		if p.Inout {
			params[i] = "inout " + params[i]
		}
	}
	w.writeLine("%s %s(%s) {", w.typeName(fn.Return), w.fns[fn.Decl], joinParams(params))
	w.pushIndent()
	w.writeStmts(fn.Decl.Body.Stmts)
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
}
