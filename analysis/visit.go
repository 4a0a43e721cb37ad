package analysis

import (
	"iter"

	"github.com/gogpu/shade/lang"
)

// Order selects the traversal order of Visit.
type Order uint8

const (
	// PreOrder visits a node before its children.
	PreOrder Order = iota
	// PostOrder visits all children before their parent.
	PostOrder
)

// Children returns the direct subexpressions of e in source order.
func Children(e lang.Expr) []lang.Expr {
	switch e := e.(type) {
	case *lang.MemberExpr:
		return []lang.Expr{e.Expr}
	case *lang.IndexExpr:
		return []lang.Expr{e.Expr, e.Index}
	case *lang.CallExpr:
		return e.Args
	case *lang.MethodCallExpr:
		return append([]lang.Expr{e.Receiver}, e.Args...)
	case *lang.ConsCallExpr:
		return e.Args
	case *lang.BinaryExpr:
		return []lang.Expr{e.Left, e.Right}
	case *lang.UnaryExpr:
		return []lang.Expr{e.Operand}
	case *lang.CondExpr:
		return []lang.Expr{e.Cond, e.Then, e.Else}
	}
	return nil
}

type frame struct {
	e        lang.Expr
	expanded bool
}

// Visit calls fn for root and every expression below it. The traversal uses
// an explicit stack, so nesting depth does not grow the Go stack. The first
// error returned by fn stops the walk.
func Visit(root lang.Expr, order Order, fn func(lang.Expr) error) error {
	stack := []frame{{e: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if order == PreOrder || top.expanded {
			if err := fn(top.e); err != nil {
				return err
			}
			if order == PostOrder {
				continue
			}
		} else {
			stack = append(stack, frame{e: top.e, expanded: true})
		}

		children := Children(top.e)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{e: children[i]})
		}
	}
	return nil
}

// RootExprs yields the top-level expressions of a statement tree in source
// order, together with the statement that owns each one.
func RootExprs(body lang.Stmt) iter.Seq2[lang.Stmt, lang.Expr] {
	return func(yield func(lang.Stmt, lang.Expr) bool) {
		stack := []lang.Stmt{body}
		for len(stack) > 0 {
			s := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			var exprs []lang.Expr
			var nested []lang.Stmt
			switch s := s.(type) {
			case *lang.BlockStmt:
				nested = s.Stmts
			case *lang.LetStmt:
				exprs = arrayLenExprs(s.Type)
				if s.Init != nil {
					exprs = append(exprs, s.Init)
				}
			case *lang.AssignStmt:
				exprs = []lang.Expr{s.Left, s.Right}
			case *lang.ExprStmt:
				exprs = []lang.Expr{s.Expr}
			case *lang.IfStmt:
				exprs = []lang.Expr{s.Cond}
				nested = []lang.Stmt{s.Then}
				if s.Else != nil {
					nested = append(nested, s.Else)
				}
			case *lang.ForStmt:
				exprs = []lang.Expr{s.From, s.To}
				if s.Step != nil {
					exprs = append(exprs, s.Step)
				}
				nested = []lang.Stmt{s.Body}
			case *lang.ReturnStmt:
				if s.Value != nil {
					exprs = []lang.Expr{s.Value}
				}
			}

			for _, e := range exprs {
				if !yield(s, e) {
					return
				}
			}
			for i := len(nested) - 1; i >= 0; i-- {
				stack = append(stack, nested[i])
			}
		}
	}
}

// Stmts yields every statement of a statement tree in source order.
func Stmts(body lang.Stmt) iter.Seq[lang.Stmt] {
	return func(yield func(lang.Stmt) bool) {
		stack := []lang.Stmt{body}
		for len(stack) > 0 {
			s := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(s) {
				return
			}
			var nested []lang.Stmt
			switch s := s.(type) {
			case *lang.BlockStmt:
				nested = s.Stmts
			case *lang.IfStmt:
				nested = []lang.Stmt{s.Then}
				if s.Else != nil {
					nested = append(nested, s.Else)
				}
			case *lang.ForStmt:
				nested = []lang.Stmt{s.Body}
			}
			for i := len(nested) - 1; i >= 0; i-- {
				stack = append(stack, nested[i])
			}
		}
	}
}

// arrayLenExprs returns the length expressions of a (possibly nested)
// array type.
func arrayLenExprs(t lang.TypeExpr) []lang.Expr {
	var out []lang.Expr
	for {
		arr, ok := t.(*lang.ArrayType)
		if !ok {
			return out
		}
		out = append(out, arr.Len)
		t = arr.Elem
	}
}
