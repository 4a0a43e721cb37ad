package analysis

import (
	"fmt"

	"github.com/gogpu/shade/lang"
)

// checkAssignments verifies that every assignment target and every inout
// argument is a mutable place.
func (a *analyser) checkAssignments() *lang.ParseError {
	for _, fn := range a.m.Functions {
		for stmt, root := range RootExprs(fn.Decl.Body) {
			if as, ok := stmt.(*lang.AssignStmt); ok && root == as.Left {
				if bad, what := a.place(as.Left); bad != nil {
					return lang.Errorf(bad.Pos(), "cannot assign to %s", what)
				}
			}
			err := Visit(root, PreOrder, func(e lang.Expr) error {
				if perr := a.checkInoutArgs(e); perr != nil {
					return perr
				}
				return nil
			})
			if err != nil {
				return err.(*lang.ParseError)
			}
		}
	}
	return nil
}

func (a *analyser) checkInoutArgs(e lang.Expr) *lang.ParseError {
	var args []lang.Expr
	switch e := e.(type) {
	case *lang.CallExpr:
		args = e.Args
	case *lang.MethodCallExpr:
		args = append([]lang.Expr{e.Receiver}, e.Args...)
	default:
		return nil
	}
	target, ok := a.info.Calls[e.NodeID()]
	if !ok || target.Kind != CallFn {
		return nil
	}
	for i, p := range target.Fn.Params {
		if !p.Inout {
			continue
		}
		if bad, what := a.place(args[i]); bad != nil {
			return lang.Errorf(bad.Pos(), "cannot pass %s as inout argument `%s` of `%s`", what, p.Name, target.Fn.Path)
		}
	}
	return nil
}

// place checks that e denotes writable storage. It returns the offending
// subexpression and a description of it, or nil when e is a place.
func (a *analyser) place(e lang.Expr) (lang.Expr, string) {
	for {
		switch x := e.(type) {
		case *lang.VarExpr:
			ref := a.info.Vars[x.ID]
			switch ref.Kind {
			case VarLocal, VarInoutParam, VarVarying:
				return nil, ""
			}
			return x, fmt.Sprintf("%s `%s`", ref.Kind, x.Name)
		case *lang.MemberExpr:
			if a.info.TypeOf(x.Expr).IsVector() && hasRepeats(x.Member.String()) {
				return x, fmt.Sprintf("swizzle `.%s` with repeated components", x.Member)
			}
			e = x.Expr
		case *lang.IndexExpr:
			e = x.Expr
		default:
			return e, "a temporary value"
		}
	}
}

func hasRepeats(swizzle string) bool {
	idx, _ := Swizzle(swizzle)
	var seen [4]bool
	for _, i := range idx {
		if seen[i] {
			return true
		}
		seen[i] = true
	}
	return false
}
