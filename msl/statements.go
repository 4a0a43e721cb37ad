package msl

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
		ty := w.info.Locals[s]
		init := w.zeroValue(ty)
		if s.Init != nil {
			init = w.expr(s.Init, 0)
		}
		w.writeLine("%s = %s;", w.declaration(ty, w.local(s, s.Name)), init)

	case *lang.AssignStmt:
		w.writeLine("%s %s %s;", w.expr(s.Left, 0), s.Op, w.expr(s.Right, 0))

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

// writeFor writes a counted loop over [from, to); a negative step counts
// down.
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

// writeFunction writes a user function. Functions that touch globals take
// the context first, then the textures they sample; inout parameters
// become thread references.
func (w *Writer) writeFunction(fn *analysis.Function) {
	w.beginFunction()
	var params []string
	if w.needsContext(fn) {
		params = append(params, fmt.Sprintf("thread %s& %s", ContextStruct, ContextParam))
	}
	for _, g := range textures(fn) {
		params = append(params, w.declaration(g.Ty, w.globals[g]))
	}
	for i, p := range fn.Decl.Params {
		name := w.local(p, p.Name)
		if p.Inout {
			params = append(params, fmt.Sprintf("thread %s& %s", w.typeName(fn.Params[i]), name))
			continue
		}
		params = append(params, w.declaration(fn.Params[i], name))
	}
	w.writeLine("%s %s(%s) {", w.typeName(fn.Return), w.fns[fn.Decl], joinParams(params))
	w.pushIndent()
	w.writeStmts(fn.Decl.Body.Stmts)
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
}

// writeHelpers emits the floored modulo; metal::fmod truncates.
func (w *Writer) writeHelpers() {
	if w.needMod {
		w.writeLine("template <typename T>")
		w.writeLine("T %s(T x, T y) {", ModFunction)
		w.pushIndent()
		w.writeLine("return x - y * %sfloor(x / y);", Namespace)
		w.popIndent()
		w.writeLine("}")
		w.writeLine("")
	}
	if len(w.closure.GlobalsOf(analysis.VarTexture)) > 0 {
		w.writeLine("constexpr %ssampler %s(%sfilter::linear, %saddress::clamp_to_edge);", Namespace, SamplerName, Namespace, Namespace)
		w.writeLine("")
	}
}
